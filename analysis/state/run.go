package state

import (
	"errors"
	"fmt"
	"strings"
	"time"

	contractx "github.com/tanpawarit/Finsight-Equity-Analysis-Pipeline/analysis/contract"
)

var (
	ErrNilRunState    = errors.New("run state is nil")
	ErrInvalidRun     = errors.New("run id is empty")
	ErrFieldPopulated = errors.New("run field already populated")
)

type RunStatus string

const (
	RunRunning RunStatus = "running"
	RunDone    RunStatus = "done"
	RunHalted  RunStatus = "halted"
)

// RunState is the evolving shared state of one pipeline run. Fields are
// append-only: once a stage populates a field, later stages may read but
// never clear or overwrite it. The Attach* helpers enforce that.
type RunState struct {
	RunID       string `json:"run_id"`
	CompanyName string `json:"company_name"`
	Ticker      string `json:"ticker"`
	Query       string `json:"query"`

	Stock      *contractx.StockSnapshot   `json:"stock,omitempty"`
	News       []contractx.NewsItem       `json:"news,omitempty"`
	DocContext []contractx.RetrievedChunk `json:"doc_context,omitempty"`
	Analysis   string                     `json:"analysis,omitempty"`

	Status      RunStatus `json:"status"`
	FailedStage string    `json:"failed_stage,omitempty"`
	FailureKind string    `json:"failure_kind,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	newsSet bool
	docsSet bool
}

func NewRunState(runID, companyName, ticker, query string, now time.Time) *RunState {
	return &RunState{
		RunID:       runID,
		CompanyName: companyName,
		Ticker:      ticker,
		Query:       query,
		Status:      RunRunning,
		CreatedAt:   now.UTC(),
		UpdatedAt:   now.UTC(),
	}
}

func (r *RunState) Touch(now time.Time) {
	r.UpdatedAt = now.UTC()
}

func (r *RunState) AttachStock(snap *contractx.StockSnapshot) error {
	if r == nil {
		return ErrNilRunState
	}
	if snap == nil {
		return fmt.Errorf("%w: stock snapshot is nil", contractx.ErrValidation)
	}
	if r.Stock != nil {
		return fmt.Errorf("%w: stock", ErrFieldPopulated)
	}
	r.Stock = snap
	return nil
}

// AttachNews accepts an empty slice: a successful search with zero hits is
// still a populated field.
func (r *RunState) AttachNews(items []contractx.NewsItem) error {
	if r == nil {
		return ErrNilRunState
	}
	if r.newsSet {
		return fmt.Errorf("%w: news", ErrFieldPopulated)
	}
	if items == nil {
		items = []contractx.NewsItem{}
	}
	r.News = items
	r.newsSet = true
	return nil
}

// AttachDocContext accepts an empty slice: retrieval below the relevance
// threshold degrades the run instead of halting it.
func (r *RunState) AttachDocContext(chunks []contractx.RetrievedChunk) error {
	if r == nil {
		return ErrNilRunState
	}
	if r.docsSet {
		return fmt.Errorf("%w: doc_context", ErrFieldPopulated)
	}
	if chunks == nil {
		chunks = []contractx.RetrievedChunk{}
	}
	r.DocContext = chunks
	r.docsSet = true
	return nil
}

func (r *RunState) AttachAnalysis(text string) error {
	if r == nil {
		return ErrNilRunState
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return fmt.Errorf("%w: analysis text is empty", contractx.ErrGeneration)
	}
	if r.Analysis != "" {
		return fmt.Errorf("%w: analysis", ErrFieldPopulated)
	}
	r.Analysis = text
	return nil
}

func (r *RunState) MarkDone(now time.Time) {
	r.Status = RunDone
	r.FailedStage = ""
	r.FailureKind = ""
	r.Touch(now)
}

// MarkHalted records the failing stage and error kind. A run that already
// reached done stays done; only the save after it can still fail.
func (r *RunState) MarkHalted(stage, kind string, now time.Time) {
	if r.Status == RunDone {
		return
	}
	r.Status = RunHalted
	r.FailedStage = stage
	r.FailureKind = kind
	r.Touch(now)
}

func (r *RunState) Validate() error {
	if r == nil {
		return ErrNilRunState
	}
	if strings.TrimSpace(r.RunID) == "" {
		return ErrInvalidRun
	}
	if strings.TrimSpace(r.Ticker) == "" {
		return fmt.Errorf("%w: ticker is empty", contractx.ErrValidation)
	}
	if strings.TrimSpace(r.Query) == "" {
		return fmt.Errorf("%w: query is empty", contractx.ErrValidation)
	}
	if r.Status == RunHalted && strings.TrimSpace(r.FailedStage) == "" {
		return fmt.Errorf("%w: halted run must name the failed stage", contractx.ErrValidation)
	}
	return nil
}
