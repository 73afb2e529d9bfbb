package contract

import (
	"time"

	"github.com/shopspring/decimal"
)

// Tool names known to the gateway.
const (
	ToolStockSnapshot = "stock.snapshot"
	ToolNewsSearch    = "news.search"
)

// ToolResult is the tagged outcome of a gateway call. Errors travel as Go
// errors next to it; Payload is only meaningful when the call succeeded.
type ToolResult struct {
	Tool    string `json:"tool"`
	Payload any    `json:"payload,omitempty"`
}

type StockSnapshot struct {
	Ticker    string          `json:"ticker"`
	Name      string          `json:"name,omitempty"`
	Exchange  string          `json:"exchange,omitempty"`
	Price     decimal.Decimal `json:"price"`
	Open      decimal.Decimal `json:"open"`
	High      decimal.Decimal `json:"high"`
	Low       decimal.Decimal `json:"low"`
	PrevClose decimal.Decimal `json:"prev_close"`
	Volume    int64           `json:"volume"`
	AsOf      time.Time       `json:"as_of"`
}

type NewsItem struct {
	Title       string    `json:"title"`
	Source      string    `json:"source,omitempty"`
	URL         string    `json:"url,omitempty"`
	Snippet     string    `json:"snippet,omitempty"`
	PublishedAt time.Time `json:"published_at,omitempty"`
}

// RetrievedChunk is a span of grounding text plus its relevance score.
// Sequences are ordered most relevant first and scoped to one query.
type RetrievedChunk struct {
	Content string  `json:"content"`
	Score   float64 `json:"score"`
	Source  string  `json:"source,omitempty"`
}

// AnalysisContext aggregates everything upstream stages collected for the
// synthesis engine.
type AnalysisContext struct {
	CompanyName string           `json:"company_name"`
	Ticker      string           `json:"ticker"`
	Query       string           `json:"query"`
	Stock       *StockSnapshot   `json:"stock,omitempty"`
	News        []NewsItem       `json:"news,omitempty"`
	DocContext  []RetrievedChunk `json:"doc_context,omitempty"`
}

type Report struct {
	RunID       string    `json:"run_id"`
	CompanyName string    `json:"company_name"`
	Ticker      string    `json:"ticker"`
	Query       string    `json:"query"`
	Analysis    string    `json:"analysis"`
	GeneratedAt time.Time `json:"generated_at"`
}
