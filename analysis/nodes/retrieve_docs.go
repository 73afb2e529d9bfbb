package pipelinenode

import (
	"context"
	"fmt"

	contractx "github.com/tanpawarit/Finsight-Equity-Analysis-Pipeline/analysis/contract"
)

// RetrieveDocs queries the document index. An empty result degrades the
// run instead of halting it; only an unavailable index is an error.
func RetrieveDocs(
	ctx context.Context,
	in *GraphState,
	docs contractx.RetrievalStore,
) (*GraphState, error) {
	if in == nil || in.Run == nil {
		return nil, fmt.Errorf("%w: graph state is nil", contractx.ErrValidation)
	}

	chunks, err := docs.Query(ctx, in.Run.Query, in.TopK)
	if err != nil {
		return nil, err
	}

	if err := in.Run.AttachDocContext(chunks); err != nil {
		return nil, err
	}
	return in, nil
}
