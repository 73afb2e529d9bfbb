package pipelinenode

import (
	"fmt"
	"strings"

	contractx "github.com/tanpawarit/Finsight-Equity-Analysis-Pipeline/analysis/contract"
)

func FinalizeReport(in *GraphState) (GraphOutput, error) {
	if in == nil || in.Run == nil {
		return GraphOutput{}, fmt.Errorf("%w: graph state is nil", contractx.ErrValidation)
	}

	analysis := strings.TrimSpace(in.Run.Analysis)
	if analysis == "" {
		return GraphOutput{}, fmt.Errorf("%w: run finished without analysis text", contractx.ErrGeneration)
	}

	return GraphOutput{
		Report: contractx.Report{
			RunID:       in.Run.RunID,
			CompanyName: in.Run.CompanyName,
			Ticker:      in.Run.Ticker,
			Query:       in.Run.Query,
			Analysis:    analysis,
			GeneratedAt: in.Now,
		},
	}, nil
}
