package pipelinenode

import (
	"context"
	"fmt"

	contractx "github.com/tanpawarit/Finsight-Equity-Analysis-Pipeline/analysis/contract"
)

func FetchStock(
	ctx context.Context,
	in *GraphState,
	tools contractx.ToolGateway,
) (*GraphState, error) {
	if in == nil || in.Run == nil {
		return nil, fmt.Errorf("%w: graph state is nil", contractx.ErrValidation)
	}

	res, err := tools.Invoke(ctx, contractx.ToolStockSnapshot, map[string]any{
		"ticker": in.Run.Ticker,
	})
	if err != nil {
		return nil, err
	}

	snap, ok := res.Payload.(*contractx.StockSnapshot)
	if !ok {
		return nil, fmt.Errorf("%w: tool %s returned unexpected payload %T",
			contractx.ErrConfiguration, contractx.ToolStockSnapshot, res.Payload)
	}

	if err := in.Run.AttachStock(snap); err != nil {
		return nil, err
	}
	return in, nil
}
