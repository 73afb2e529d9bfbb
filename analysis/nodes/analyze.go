package pipelinenode

import (
	"context"
	"fmt"

	contractx "github.com/tanpawarit/Finsight-Equity-Analysis-Pipeline/analysis/contract"
)

func Analyze(
	ctx context.Context,
	in *GraphState,
	engine contractx.SynthesisEngine,
) (*GraphState, error) {
	if in == nil || in.Run == nil {
		return nil, fmt.Errorf("%w: graph state is nil", contractx.ErrValidation)
	}

	analysis, err := engine.Generate(ctx, contractx.AnalysisContext{
		CompanyName: in.Run.CompanyName,
		Ticker:      in.Run.Ticker,
		Query:       in.Run.Query,
		Stock:       in.Run.Stock,
		News:        in.Run.News,
		DocContext:  in.Run.DocContext,
	})
	if err != nil {
		return nil, err
	}

	if err := in.Run.AttachAnalysis(analysis); err != nil {
		return nil, err
	}
	return in, nil
}
