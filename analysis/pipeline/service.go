package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cloudwego/eino/compose"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	contractx "github.com/tanpawarit/Finsight-Equity-Analysis-Pipeline/analysis/contract"
	pipelinenode "github.com/tanpawarit/Finsight-Equity-Analysis-Pipeline/analysis/nodes"
	statex "github.com/tanpawarit/Finsight-Equity-Analysis-Pipeline/analysis/state"
)

var (
	ErrInvalidRunID  = pipelinenode.ErrInvalidRunID
	ErrInvalidTicker = pipelinenode.ErrInvalidTicker
	ErrInvalidQuery  = pipelinenode.ErrInvalidQuery
)

const (
	defaultTopK      = 5
	defaultNewsLimit = 10
)

type Config struct {
	TopK      int
	NewsLimit int
}

// Request is the initial state of one run. RunID is optional; a fresh one
// is minted when empty.
type Request struct {
	RunID       string
	CompanyName string
	Ticker      string
	Query       string
}

// StageError names the pipeline stage an error escaped from.
type StageError struct {
	Stage string
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("stage %s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// Pipeline runs the fixed analysis sequence
// fetch_stock -> search_news -> retrieve_docs -> analyze over a shared run
// state. It is the only component aware of stage order; each stage is a
// stateless transformation of the state it receives. Safe for concurrent
// runs: every run owns its own state.
type Pipeline struct {
	tools    contractx.ToolGateway
	docs     contractx.RetrievalStore
	engine   contractx.SynthesisEngine
	store    statex.Store
	notifier contractx.Notifier

	graphRunner compose.Runnable[*pipelinenode.GraphState, pipelinenode.GraphOutput]

	topK      int
	newsLimit int

	now func() time.Time
	log zerolog.Logger
}

func New(
	tools contractx.ToolGateway,
	docs contractx.RetrievalStore,
	engine contractx.SynthesisEngine,
	store statex.Store,
	notifier contractx.Notifier,
	cfg Config,
) (*Pipeline, error) {
	if tools == nil {
		return nil, errors.New("tool gateway is required")
	}
	if docs == nil {
		return nil, errors.New("retrieval store is required")
	}
	if engine == nil {
		return nil, errors.New("synthesis engine is required")
	}
	if store == nil {
		store = noopRunStore{}
	}
	if notifier == nil {
		notifier = noopNotifier{}
	}

	topK := cfg.TopK
	if topK < 1 {
		topK = defaultTopK
	}
	newsLimit := cfg.NewsLimit
	if newsLimit < 1 {
		newsLimit = defaultNewsLimit
	}

	p := &Pipeline{
		tools:     tools,
		docs:      docs,
		engine:    engine,
		store:     store,
		notifier:  notifier,
		topK:      topK,
		newsLimit: newsLimit,
		now:       time.Now,
		log:       log.With().Str("component", "pipeline").Logger(),
	}

	graphRunner, err := p.compileAnalysisGraph(context.Background())
	if err != nil {
		return nil, err
	}
	p.graphRunner = graphRunner

	return p, nil
}

// Run executes one end-to-end analysis. On success the returned state is
// terminal with a non-empty Analysis field. On a stage failure the run
// halts: the error names the failing stage and the returned state carries
// exactly the fields populated before the failure.
func (p *Pipeline) Run(ctx context.Context, req Request) (*statex.RunState, error) {
	runID := strings.TrimSpace(req.RunID)
	if runID == "" {
		runID = uuid.NewString()
	}

	gs, err := pipelinenode.NewGraphState(pipelinenode.GraphInput{
		RunID:       runID,
		CompanyName: req.CompanyName,
		Ticker:      req.Ticker,
		Query:       req.Query,
	}, p.topK, p.newsLimit, p.now())
	if err != nil {
		return nil, err
	}

	runLog := p.log.With().Str("run_id", runID).Str("ticker", gs.Run.Ticker).Logger()
	runLog.Info().Str("query", gs.Run.Query).Msg("run started")

	out, err := p.graphRunner.Invoke(ctx, gs)
	if err != nil {
		stage, kind := classify(err)
		gs.Run.MarkHalted(stage, kind, p.now())
		if saveErr := p.store.Save(ctx, gs.Run); saveErr != nil {
			runLog.Warn().Err(saveErr).Msg("failed to record halted run")
		}
		runLog.Error().Str("stage", stage).Str("kind", kind).Err(err).Msg("run halted")
		return gs.Run, err
	}

	if notifyErr := p.notifier.PublishReport(ctx, out.Report); notifyErr != nil {
		runLog.Warn().Err(notifyErr).Msg("failed to publish report")
	}

	runLog.Info().Msg("run completed")
	return gs.Run, nil
}

// classify extracts the failing stage name and maps the error onto the
// taxonomy for halt reporting.
func classify(err error) (stage, kind string) {
	stage = "unknown"
	var se *StageError
	if errors.As(err, &se) {
		stage = se.Stage
	}

	switch {
	case errors.Is(err, contractx.ErrValidation):
		kind = "validation"
	case errors.Is(err, contractx.ErrUnavailable):
		kind = "unavailable"
	case errors.Is(err, contractx.ErrConfiguration):
		kind = "configuration"
	case errors.Is(err, contractx.ErrGeneration):
		kind = "generation"
	default:
		kind = "internal"
	}
	return stage, kind
}

type noopRunStore struct{}

func (noopRunStore) Load(context.Context, string) (*statex.RunState, error) {
	return nil, statex.ErrRunNotFound
}

func (noopRunStore) Save(context.Context, *statex.RunState) error {
	return nil
}

func (noopRunStore) Delete(context.Context, string) error {
	return nil
}

type noopNotifier struct{}

func (noopNotifier) PublishReport(context.Context, contractx.Report) error {
	return nil
}
