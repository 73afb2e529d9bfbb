package synth

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	contractx "github.com/tanpawarit/Finsight-Equity-Analysis-Pipeline/analysis/contract"
)

// Engine turns an aggregated analysis context into free-text analysis via
// one chat model call. Output is best-effort, not idempotent: identical
// contexts may yield different text.
type Engine struct {
	invoke func(ctx context.Context, in map[string]any) (*schema.Message, error)
}

func NewEngine(ctx context.Context, chatModel einomodel.BaseChatModel, systemPrompt string) (*Engine, error) {
	if chatModel == nil {
		return nil, fmt.Errorf("%w: chat model is required", contractx.ErrConfiguration)
	}
	if strings.TrimSpace(systemPrompt) == "" {
		return nil, fmt.Errorf("%w: system prompt is required", contractx.ErrConfiguration)
	}

	runner, err := compileSynthesisGraph(ctx, chatModel, systemPrompt)
	if err != nil {
		return nil, fmt.Errorf("%w: compile synthesis graph: %v", contractx.ErrConfiguration, err)
	}

	return &Engine{
		invoke: func(ctx context.Context, in map[string]any) (*schema.Message, error) {
			return runner.Invoke(ctx, in)
		},
	}, nil
}

func (e *Engine) Generate(ctx context.Context, ac contractx.AnalysisContext) (string, error) {
	if strings.TrimSpace(ac.Ticker) == "" {
		return "", fmt.Errorf("%w: ticker is required", contractx.ErrValidation)
	}
	if strings.TrimSpace(ac.Query) == "" {
		return "", fmt.Errorf("%w: query is required", contractx.ErrValidation)
	}

	input, err := json.Marshal(buildPayload(ac))
	if err != nil {
		return "", fmt.Errorf("%w: marshal analysis context: %v", contractx.ErrValidation, err)
	}

	msg, err := e.invoke(ctx, map[string]any{"input": string(input)})
	if err != nil {
		return "", fmt.Errorf("%w: synthesis invoke: %v", contractx.ErrGeneration, err)
	}
	if msg == nil {
		return "", fmt.Errorf("%w: model returned no message", contractx.ErrGeneration)
	}

	analysis := strings.TrimSpace(msg.Content)
	if analysis == "" {
		return "", fmt.Errorf("%w: model returned empty analysis", contractx.ErrGeneration)
	}
	return analysis, nil
}

// buildPayload shapes the prompt payload. Missing document context is
// flagged so the model grounds itself on stock and news data only.
func buildPayload(ac contractx.AnalysisContext) map[string]any {
	payload := map[string]any{
		"company_name": ac.CompanyName,
		"ticker":       ac.Ticker,
		"query":        ac.Query,
		"news":         ac.News,
	}
	if ac.Stock != nil {
		payload["stock"] = ac.Stock
	}
	if len(ac.DocContext) > 0 {
		payload["doc_context"] = ac.DocContext
	} else {
		payload["doc_context_note"] = "no internal documents matched the query; do not invent citations"
	}
	return payload
}
