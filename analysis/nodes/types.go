package pipelinenode

import (
	"errors"
	"strings"
	"time"

	statex "github.com/tanpawarit/Finsight-Equity-Analysis-Pipeline/analysis/state"

	contractx "github.com/tanpawarit/Finsight-Equity-Analysis-Pipeline/analysis/contract"
)

var (
	ErrInvalidRunID  = errors.New("run id is empty")
	ErrInvalidTicker = errors.New("ticker is empty")
	ErrInvalidQuery  = errors.New("query is empty")
)

// Stage names, used for halt reporting.
const (
	StageFetchStock     = "fetch_stock"
	StageSearchNews     = "search_news"
	StageRetrieveDocs   = "retrieve_docs"
	StageAnalyze        = "analyze"
	StageRecordRun      = "record_run"
	StageFinalizeReport = "finalize_report"
)

type GraphInput struct {
	RunID       string
	CompanyName string
	Ticker      string
	Query       string
}

type GraphOutput struct {
	Report contractx.Report
}

// GraphState threads through every stage of one run. The orchestrator
// creates it before invoking the graph and keeps the pointer, so the
// partial state survives a mid-run halt.
type GraphState struct {
	Run *statex.RunState
	Now time.Time

	TopK      int
	NewsLimit int
}

// NewGraphState validates the initial request and seeds the run state.
// An empty company name falls back to the ticker.
func NewGraphState(in GraphInput, topK, newsLimit int, now time.Time) (*GraphState, error) {
	runID := strings.TrimSpace(in.RunID)
	if runID == "" {
		return nil, ErrInvalidRunID
	}
	ticker := strings.TrimSpace(in.Ticker)
	if ticker == "" {
		return nil, ErrInvalidTicker
	}
	query := strings.TrimSpace(in.Query)
	if query == "" {
		return nil, ErrInvalidQuery
	}
	company := strings.TrimSpace(in.CompanyName)
	if company == "" {
		company = ticker
	}

	return &GraphState{
		Run:       statex.NewRunState(runID, company, ticker, query, now),
		Now:       now.UTC(),
		TopK:      topK,
		NewsLimit: newsLimit,
	}, nil
}
