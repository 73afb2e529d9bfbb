package pipeline

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino/compose"
	pipelinenode "github.com/tanpawarit/Finsight-Equity-Analysis-Pipeline/analysis/nodes"
)

// compileAnalysisGraph wires the fixed stage sequence. Stage errors are
// wrapped in StageError so the service can name the failing stage when it
// reports the halted run.
func (p *Pipeline) compileAnalysisGraph(
	ctx context.Context,
) (compose.Runnable[*pipelinenode.GraphState, pipelinenode.GraphOutput], error) {
	graph := compose.NewGraph[*pipelinenode.GraphState, pipelinenode.GraphOutput]()

	if err := graph.AddLambdaNode(pipelinenode.StageFetchStock,
		compose.InvokableLambda(func(ctx context.Context, in *pipelinenode.GraphState) (*pipelinenode.GraphState, error) {
			out, err := pipelinenode.FetchStock(ctx, in, p.tools)
			if err != nil {
				return nil, &StageError{Stage: pipelinenode.StageFetchStock, Err: err}
			}
			return out, nil
		}),
	); err != nil {
		return nil, fmt.Errorf("add node fetch_stock: %w", err)
	}

	if err := graph.AddLambdaNode(pipelinenode.StageSearchNews,
		compose.InvokableLambda(func(ctx context.Context, in *pipelinenode.GraphState) (*pipelinenode.GraphState, error) {
			out, err := pipelinenode.SearchNews(ctx, in, p.tools)
			if err != nil {
				return nil, &StageError{Stage: pipelinenode.StageSearchNews, Err: err}
			}
			return out, nil
		}),
	); err != nil {
		return nil, fmt.Errorf("add node search_news: %w", err)
	}

	if err := graph.AddLambdaNode(pipelinenode.StageRetrieveDocs,
		compose.InvokableLambda(func(ctx context.Context, in *pipelinenode.GraphState) (*pipelinenode.GraphState, error) {
			out, err := pipelinenode.RetrieveDocs(ctx, in, p.docs)
			if err != nil {
				return nil, &StageError{Stage: pipelinenode.StageRetrieveDocs, Err: err}
			}
			return out, nil
		}),
	); err != nil {
		return nil, fmt.Errorf("add node retrieve_docs: %w", err)
	}

	if err := graph.AddLambdaNode(pipelinenode.StageAnalyze,
		compose.InvokableLambda(func(ctx context.Context, in *pipelinenode.GraphState) (*pipelinenode.GraphState, error) {
			out, err := pipelinenode.Analyze(ctx, in, p.engine)
			if err != nil {
				return nil, &StageError{Stage: pipelinenode.StageAnalyze, Err: err}
			}
			return out, nil
		}),
	); err != nil {
		return nil, fmt.Errorf("add node analyze: %w", err)
	}

	if err := graph.AddLambdaNode(pipelinenode.StageRecordRun,
		compose.InvokableLambda(func(ctx context.Context, in *pipelinenode.GraphState) (*pipelinenode.GraphState, error) {
			out, err := pipelinenode.RecordRun(ctx, in, p.store)
			if err != nil {
				return nil, &StageError{Stage: pipelinenode.StageRecordRun, Err: err}
			}
			return out, nil
		}),
	); err != nil {
		return nil, fmt.Errorf("add node record_run: %w", err)
	}

	if err := graph.AddLambdaNode(pipelinenode.StageFinalizeReport,
		compose.InvokableLambda(func(ctx context.Context, in *pipelinenode.GraphState) (pipelinenode.GraphOutput, error) {
			out, err := pipelinenode.FinalizeReport(in)
			if err != nil {
				return pipelinenode.GraphOutput{}, &StageError{Stage: pipelinenode.StageFinalizeReport, Err: err}
			}
			return out, nil
		}),
	); err != nil {
		return nil, fmt.Errorf("add node finalize_report: %w", err)
	}

	edges := [][2]string{
		{compose.START, pipelinenode.StageFetchStock},
		{pipelinenode.StageFetchStock, pipelinenode.StageSearchNews},
		{pipelinenode.StageSearchNews, pipelinenode.StageRetrieveDocs},
		{pipelinenode.StageRetrieveDocs, pipelinenode.StageAnalyze},
		{pipelinenode.StageAnalyze, pipelinenode.StageRecordRun},
		{pipelinenode.StageRecordRun, pipelinenode.StageFinalizeReport},
		{pipelinenode.StageFinalizeReport, compose.END},
	}

	for _, edge := range edges {
		if err := graph.AddEdge(edge[0], edge[1]); err != nil {
			return nil, fmt.Errorf("add edge %s->%s: %w", edge[0], edge[1], err)
		}
	}

	runner, err := graph.Compile(ctx, compose.WithGraphName("pipeline.analysis"))
	if err != nil {
		return nil, fmt.Errorf("compile analysis graph: %w", err)
	}
	return runner, nil
}
