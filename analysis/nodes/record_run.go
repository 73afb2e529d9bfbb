package pipelinenode

import (
	"context"
	"fmt"

	contractx "github.com/tanpawarit/Finsight-Equity-Analysis-Pipeline/analysis/contract"
	statex "github.com/tanpawarit/Finsight-Equity-Analysis-Pipeline/analysis/state"
)

// RecordRun marks the run done and persists the terminal record.
func RecordRun(
	ctx context.Context,
	in *GraphState,
	store statex.Store,
) (*GraphState, error) {
	if in == nil || in.Run == nil {
		return nil, fmt.Errorf("%w: graph state is nil", contractx.ErrValidation)
	}

	in.Run.MarkDone(in.Now)
	if err := in.Run.Validate(); err != nil {
		return nil, err
	}
	if err := store.Save(ctx, in.Run); err != nil {
		return nil, fmt.Errorf("%w: save run record: %v", contractx.ErrUnavailable, err)
	}
	return in, nil
}
