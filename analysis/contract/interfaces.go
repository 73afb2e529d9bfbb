package contract

import "context"

type ToolGateway interface {
	Invoke(ctx context.Context, tool string, args map[string]any) (ToolResult, error)
}

type RetrievalStore interface {
	Query(ctx context.Context, text string, topK int) ([]RetrievedChunk, error)
}

type SynthesisEngine interface {
	Generate(ctx context.Context, ac AnalysisContext) (string, error)
}

type Notifier interface {
	PublishReport(ctx context.Context, report Report) error
}
