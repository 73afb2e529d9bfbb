package pipeline

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/shopspring/decimal"

	contractx "github.com/tanpawarit/Finsight-Equity-Analysis-Pipeline/analysis/contract"
	pipelinenode "github.com/tanpawarit/Finsight-Equity-Analysis-Pipeline/analysis/nodes"
	statex "github.com/tanpawarit/Finsight-Equity-Analysis-Pipeline/analysis/state"
)

type toolCallRecord struct {
	tool string
	args map[string]any
}

type fakeGateway struct {
	payloads map[string]any
	errs     map[string]error
	calls    []toolCallRecord
}

func (f *fakeGateway) Invoke(ctx context.Context, tool string, args map[string]any) (contractx.ToolResult, error) {
	f.calls = append(f.calls, toolCallRecord{tool: tool, args: args})
	if err, ok := f.errs[tool]; ok && err != nil {
		return contractx.ToolResult{}, err
	}
	payload, ok := f.payloads[tool]
	if !ok {
		return contractx.ToolResult{}, fmt.Errorf("%w: unknown tool %q", contractx.ErrConfiguration, tool)
	}
	return contractx.ToolResult{Tool: tool, Payload: payload}, nil
}

type fakeDocs struct {
	chunks []contractx.RetrievedChunk
	err    error
	calls  int
	lastQ  string
	lastK  int
}

func (f *fakeDocs) Query(ctx context.Context, text string, topK int) ([]contractx.RetrievedChunk, error) {
	f.calls++
	f.lastQ = text
	f.lastK = topK
	if f.err != nil {
		return nil, f.err
	}
	return append([]contractx.RetrievedChunk(nil), f.chunks...), nil
}

type fakeEngine struct {
	analysis string
	err      error
	calls    int
	lastCtx  contractx.AnalysisContext
}

func (f *fakeEngine) Generate(ctx context.Context, ac contractx.AnalysisContext) (string, error) {
	f.calls++
	f.lastCtx = ac
	if f.err != nil {
		return "", f.err
	}
	return f.analysis, nil
}

type fakeStore struct {
	saveErr error
	saved   []*statex.RunState
}

func (f *fakeStore) Load(ctx context.Context, runID string) (*statex.RunState, error) {
	return nil, statex.ErrRunNotFound
}

func (f *fakeStore) Save(ctx context.Context, run *statex.RunState) error {
	if f.saveErr != nil {
		return f.saveErr
	}
	copied := *run
	f.saved = append(f.saved, &copied)
	return nil
}

func (f *fakeStore) Delete(ctx context.Context, runID string) error {
	return nil
}

type fakeNotifier struct {
	err     error
	reports []contractx.Report
}

func (f *fakeNotifier) PublishReport(ctx context.Context, report contractx.Report) error {
	if f.err != nil {
		return f.err
	}
	f.reports = append(f.reports, report)
	return nil
}

func snapshotFor(ticker string) *contractx.StockSnapshot {
	return &contractx.StockSnapshot{
		Ticker: ticker,
		Price:  decimal.NewFromFloat(4321.0),
		Open:   decimal.NewFromFloat(4280.0),
		High:   decimal.NewFromFloat(4350.0),
		Low:    decimal.NewFromFloat(4270.0),
		Volume: 1_200_000,
	}
}

func healthyGateway(ticker string) *fakeGateway {
	return &fakeGateway{
		payloads: map[string]any{
			contractx.ToolStockSnapshot: snapshotFor(ticker),
			contractx.ToolNewsSearch: []contractx.NewsItem{
				{Title: "Sakura Internet expands government cloud capacity"},
				{Title: "New datacenter contract announced"},
			},
		},
	}
}

func newTestPipeline(
	t *testing.T,
	tools contractx.ToolGateway,
	docs contractx.RetrievalStore,
	engine contractx.SynthesisEngine,
	store statex.Store,
	notifier contractx.Notifier,
) *Pipeline {
	t.Helper()
	p, err := New(tools, docs, engine, store, notifier, Config{TopK: 3, NewsLimit: 5})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return p
}

func TestRunInvalidRequest(t *testing.T) {
	t.Parallel()

	p := newTestPipeline(t, healthyGateway("3778.T"), &fakeDocs{}, &fakeEngine{analysis: "x"}, nil, nil)

	_, err := p.Run(context.Background(), Request{Ticker: "   ", Query: "anything"})
	if !errors.Is(err, ErrInvalidTicker) {
		t.Fatalf("expected ErrInvalidTicker, got %v", err)
	}

	_, err = p.Run(context.Background(), Request{Ticker: "3778.T", Query: "   "})
	if !errors.Is(err, ErrInvalidQuery) {
		t.Fatalf("expected ErrInvalidQuery, got %v", err)
	}
}

func TestRunSuccessPopulatesAllFields(t *testing.T) {
	t.Parallel()

	tools := healthyGateway("3778.T")
	docs := &fakeDocs{chunks: []contractx.RetrievedChunk{
		{Content: "FY2025 digital infrastructure procurement summary", Score: 0.91, Source: "gov_contracts.md"},
	}}
	engine := &fakeEngine{analysis: "Sakura Internet is well positioned for government AI workloads."}
	store := &fakeStore{}
	notifier := &fakeNotifier{}

	p := newTestPipeline(t, tools, docs, engine, store, notifier)

	run, err := p.Run(context.Background(), Request{
		CompanyName: "Sakura Internet",
		Ticker:      "3778.T",
		Query:       "government AI contracts",
	})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if run.Status != statex.RunDone {
		t.Fatalf("status = %s, want done", run.Status)
	}
	if run.Stock == nil {
		t.Fatal("stock snapshot not populated")
	}
	if len(run.News) != 2 {
		t.Fatalf("news items = %d, want 2", len(run.News))
	}
	if len(run.DocContext) != 1 {
		t.Fatalf("doc chunks = %d, want 1", len(run.DocContext))
	}
	if run.Analysis == "" {
		t.Fatal("analysis is empty")
	}

	if len(tools.calls) != 2 {
		t.Fatalf("tool calls = %d, want 2", len(tools.calls))
	}
	if tools.calls[0].tool != contractx.ToolStockSnapshot {
		t.Fatalf("first tool = %s, want %s", tools.calls[0].tool, contractx.ToolStockSnapshot)
	}
	if got := tools.calls[1].args["query"]; got != "Sakura Internet government AI contracts" {
		t.Fatalf("news query = %v", got)
	}
	if docs.lastK != 3 {
		t.Fatalf("topK = %d, want 3", docs.lastK)
	}
	if engine.calls != 1 {
		t.Fatalf("engine calls = %d, want 1", engine.calls)
	}
	if engine.lastCtx.Stock == nil || len(engine.lastCtx.News) != 2 {
		t.Fatalf("engine context incomplete: %+v", engine.lastCtx)
	}
	if len(store.saved) != 1 || store.saved[0].Status != statex.RunDone {
		t.Fatalf("expected one done run saved, got %+v", store.saved)
	}
	if len(notifier.reports) != 1 || notifier.reports[0].Analysis != engine.analysis {
		t.Fatalf("expected one published report, got %+v", notifier.reports)
	}
}

func TestRunHaltsOnStockUnavailable(t *testing.T) {
	t.Parallel()

	tools := healthyGateway("3778.T")
	tools.errs = map[string]error{
		contractx.ToolStockSnapshot: fmt.Errorf("%w: quote endpoint timed out", contractx.ErrUnavailable),
	}
	docs := &fakeDocs{}
	engine := &fakeEngine{analysis: "should not run"}
	store := &fakeStore{}

	p := newTestPipeline(t, tools, docs, engine, store, nil)

	run, err := p.Run(context.Background(), Request{Ticker: "3778.T", Query: "government AI contracts"})
	if !errors.Is(err, contractx.ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}

	var se *StageError
	if !errors.As(err, &se) || se.Stage != pipelinenode.StageFetchStock {
		t.Fatalf("expected fetch_stock stage error, got %v", err)
	}

	if run == nil {
		t.Fatal("expected partial run state")
	}
	if run.Status != statex.RunHalted || run.FailedStage != pipelinenode.StageFetchStock {
		t.Fatalf("halt not recorded: status=%s stage=%s", run.Status, run.FailedStage)
	}
	if run.Stock != nil || run.News != nil || run.DocContext != nil || run.Analysis != "" {
		t.Fatalf("partial state should be empty before the failing stage: %+v", run)
	}
	if docs.calls != 0 || engine.calls != 0 {
		t.Fatal("later stages must not run after a halt")
	}
	if len(store.saved) != 1 || store.saved[0].Status != statex.RunHalted {
		t.Fatalf("halted run not recorded: %+v", store.saved)
	}
}

func TestRunHaltsOnNewsUnavailableKeepsStock(t *testing.T) {
	t.Parallel()

	tools := healthyGateway("3778.T")
	tools.errs = map[string]error{
		contractx.ToolNewsSearch: fmt.Errorf("%w: news endpoint 503", contractx.ErrUnavailable),
	}
	engine := &fakeEngine{analysis: "should not run"}

	p := newTestPipeline(t, tools, &fakeDocs{}, engine, nil, nil)

	run, err := p.Run(context.Background(), Request{Ticker: "3778.T", Query: "government AI contracts"})
	if !errors.Is(err, contractx.ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}

	var se *StageError
	if !errors.As(err, &se) || se.Stage != pipelinenode.StageSearchNews {
		t.Fatalf("expected search_news stage error, got %v", err)
	}

	// Partial state holds exactly what the prior stage produced.
	if run.Stock == nil {
		t.Fatal("stock from the prior stage must survive the halt")
	}
	if run.News != nil || run.DocContext != nil || run.Analysis != "" {
		t.Fatalf("fields past the failing stage must stay empty: %+v", run)
	}
	if engine.calls != 0 {
		t.Fatal("analyze must not run after a halt")
	}
}

func TestRunEmptyRetrievalDegrades(t *testing.T) {
	t.Parallel()

	tools := healthyGateway("3778.T")
	docs := &fakeDocs{chunks: []contractx.RetrievedChunk{}}
	engine := &fakeEngine{analysis: "analysis grounded on market data and news only"}

	p := newTestPipeline(t, tools, docs, engine, nil, nil)

	run, err := p.Run(context.Background(), Request{
		CompanyName: "Sakura Internet",
		Ticker:      "3778.T",
		Query:       "government AI contracts",
	})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if len(run.DocContext) != 0 {
		t.Fatalf("doc context = %v, want empty", run.DocContext)
	}
	if engine.calls != 1 {
		t.Fatal("analyze must still run with empty document context")
	}
	if run.Analysis == "" || run.Status != statex.RunDone {
		t.Fatalf("run did not complete: %+v", run)
	}
}

func TestRunHaltsOnRetrievalUnavailable(t *testing.T) {
	t.Parallel()

	docs := &fakeDocs{err: fmt.Errorf("%w: index is down", contractx.ErrUnavailable)}
	engine := &fakeEngine{analysis: "should not run"}

	p := newTestPipeline(t, healthyGateway("3778.T"), docs, engine, nil, nil)

	run, err := p.Run(context.Background(), Request{Ticker: "3778.T", Query: "government AI contracts"})
	if !errors.Is(err, contractx.ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
	if run.FailedStage != pipelinenode.StageRetrieveDocs {
		t.Fatalf("failed stage = %s, want retrieve_docs", run.FailedStage)
	}
	if run.Stock == nil || run.News == nil {
		t.Fatal("stages before the failure must stay populated")
	}
	if engine.calls != 0 {
		t.Fatal("analyze must not run after a halt")
	}
}

func TestRunHaltsOnGenerationError(t *testing.T) {
	t.Parallel()

	engine := &fakeEngine{err: fmt.Errorf("%w: model returned empty analysis", contractx.ErrGeneration)}
	store := &fakeStore{}

	p := newTestPipeline(t, healthyGateway("3778.T"), &fakeDocs{}, engine, store, nil)

	run, err := p.Run(context.Background(), Request{Ticker: "3778.T", Query: "government AI contracts"})
	if !errors.Is(err, contractx.ErrGeneration) {
		t.Fatalf("expected ErrGeneration, got %v", err)
	}
	if run.FailedStage != pipelinenode.StageAnalyze || run.FailureKind != "generation" {
		t.Fatalf("halt metadata: stage=%s kind=%s", run.FailedStage, run.FailureKind)
	}
	if run.Analysis != "" {
		t.Fatal("analysis must stay empty after a generation failure")
	}
	if len(store.saved) != 1 || store.saved[0].Status != statex.RunHalted {
		t.Fatalf("halted run not recorded: %+v", store.saved)
	}
}

func TestRunUnknownToolIsConfigurationError(t *testing.T) {
	t.Parallel()

	tools := &fakeGateway{payloads: map[string]any{}}

	p := newTestPipeline(t, tools, &fakeDocs{}, &fakeEngine{analysis: "x"}, nil, nil)

	run, err := p.Run(context.Background(), Request{Ticker: "3778.T", Query: "government AI contracts"})
	if !errors.Is(err, contractx.ErrConfiguration) {
		t.Fatalf("expected ErrConfiguration, got %v", err)
	}
	if run.FailureKind != "configuration" {
		t.Fatalf("failure kind = %s, want configuration", run.FailureKind)
	}
}

func TestRunNotifierFailureDoesNotFailRun(t *testing.T) {
	t.Parallel()

	notifier := &fakeNotifier{err: errors.New("qstash down")}

	p := newTestPipeline(t, healthyGateway("3778.T"), &fakeDocs{}, &fakeEngine{analysis: "fine"}, nil, notifier)

	run, err := p.Run(context.Background(), Request{Ticker: "3778.T", Query: "government AI contracts"})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if run.Status != statex.RunDone {
		t.Fatalf("status = %s, want done", run.Status)
	}
}

func TestRunMintsRunIDWhenEmpty(t *testing.T) {
	t.Parallel()

	p := newTestPipeline(t, healthyGateway("3778.T"), &fakeDocs{}, &fakeEngine{analysis: "ok"}, nil, nil)

	run, err := p.Run(context.Background(), Request{Ticker: "3778.T", Query: "government AI contracts"})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if run.RunID == "" {
		t.Fatal("expected a minted run id")
	}

	run2, err := p.Run(context.Background(), Request{RunID: "run-42", Ticker: "3778.T", Query: "government AI contracts"})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if run2.RunID != "run-42" {
		t.Fatalf("run id = %s, want run-42", run2.RunID)
	}
}
