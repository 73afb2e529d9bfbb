package tool

import (
	"context"
	"fmt"
	"time"

	"github.com/cloudwego/eino/schema"
	"github.com/piquette/finance-go/quote"
	"github.com/shopspring/decimal"

	contractx "github.com/tanpawarit/Finsight-Equity-Analysis-Pipeline/analysis/contract"
)

func stockSnapshotInfo() *schema.ToolInfo {
	return &schema.ToolInfo{
		Name: contractx.ToolStockSnapshot,
		Desc: "Fetch the current market snapshot (price, range, volume) for a ticker symbol.",
		ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
			"ticker": {Type: schema.String, Desc: "Ticker symbol, e.g. 3778.T", Required: true},
		}),
	}
}

// fetchStockSnapshot pulls a realtime quote from Yahoo Finance.
func fetchStockSnapshot(ctx context.Context, args map[string]any) (any, error) {
	ticker := stringArg(args, "ticker")
	if ticker == "" {
		return nil, fmt.Errorf("%w: ticker is required", contractx.ErrValidation)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	q, err := quote.Get(ticker)
	if err != nil {
		return nil, fmt.Errorf("%w: quote for %s: %v", contractx.ErrUnavailable, ticker, err)
	}
	if q == nil {
		return nil, fmt.Errorf("%w: no quote returned for %s", contractx.ErrUnavailable, ticker)
	}

	return &contractx.StockSnapshot{
		Ticker:    ticker,
		Name:      q.ShortName,
		Exchange:  q.FullExchangeName,
		Price:     decimal.NewFromFloat(q.RegularMarketPrice),
		Open:      decimal.NewFromFloat(q.RegularMarketOpen),
		High:      decimal.NewFromFloat(q.RegularMarketDayHigh),
		Low:       decimal.NewFromFloat(q.RegularMarketDayLow),
		PrevClose: decimal.NewFromFloat(q.RegularMarketPreviousClose),
		Volume:    int64(q.RegularMarketVolume),
		AsOf:      time.Now().UTC(),
	}, nil
}
