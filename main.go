package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	contractx "github.com/tanpawarit/Finsight-Equity-Analysis-Pipeline/analysis/contract"
	llmx "github.com/tanpawarit/Finsight-Equity-Analysis-Pipeline/analysis/llm"
	pipelinex "github.com/tanpawarit/Finsight-Equity-Analysis-Pipeline/analysis/pipeline"
	promptx "github.com/tanpawarit/Finsight-Equity-Analysis-Pipeline/analysis/prompt"
	retrievalx "github.com/tanpawarit/Finsight-Equity-Analysis-Pipeline/analysis/retrieval"
	statex "github.com/tanpawarit/Finsight-Equity-Analysis-Pipeline/analysis/state"
	synthx "github.com/tanpawarit/Finsight-Equity-Analysis-Pipeline/analysis/synth"
	toolx "github.com/tanpawarit/Finsight-Equity-Analysis-Pipeline/analysis/tool"
	configx "github.com/tanpawarit/Finsight-Equity-Analysis-Pipeline/pkg/config"
	_ "github.com/tanpawarit/Finsight-Equity-Analysis-Pipeline/pkg/logger/autoload"
	openrouterx "github.com/tanpawarit/Finsight-Equity-Analysis-Pipeline/pkg/openrouter"
	qstashx "github.com/tanpawarit/Finsight-Equity-Analysis-Pipeline/pkg/qstash"
)

type AppConfig struct {
	DocsDir           string  `envconfig:"DOCS_DIR" split_words:"true"`
	TopK              int     `envconfig:"TOP_K" split_words:"true" default:"5"`
	NewsLimit         int     `envconfig:"NEWS_LIMIT" split_words:"true" default:"10"`
	MinScore          float64 `envconfig:"MIN_SCORE" split_words:"true" default:"0.1"`
	EmbeddingAPIKey   string  `envconfig:"EMBEDDING_API_KEY" split_words:"true"`
	EmbeddingBaseURL  string  `envconfig:"EMBEDDING_BASE_URL" split_words:"true" default:"https://api.openai.com/v1"`
	EmbeddingModel    string  `envconfig:"EMBEDDING_MODEL" split_words:"true"`
	StoreBackend      string  `envconfig:"STORE_BACKEND" split_words:"true" default:"none"`
	QStashDestination string  `envconfig:"QSTASH_DESTINATION" split_words:"true"`
}

type flags struct {
	ticker  string
	company string
	query   string
	topK    int
	docsDir string
}

func main() {
	var f flags

	rootCmd := &cobra.Command{
		Use:   "finsight",
		Short: "Tool-augmented equity analysis pipeline",
		Long: "Finsight fetches a stock snapshot, searches recent news, retrieves grounding\n" +
			"documents, and synthesizes an analysis for a free-text research question.",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runAnalysis(cmd.Context(), f)
		},
	}

	rootCmd.Flags().StringVar(&f.ticker, "ticker", "", "ticker symbol, e.g. 3778.T (required)")
	rootCmd.Flags().StringVar(&f.company, "company", "", "company name; defaults to the ticker")
	rootCmd.Flags().StringVar(&f.query, "query", "", "free-text research question (required)")
	rootCmd.Flags().IntVar(&f.topK, "top-k", 0, "max document chunks to retrieve")
	rootCmd.Flags().StringVar(&f.docsDir, "docs-dir", "", "directory of .txt/.md research documents")
	_ = rootCmd.MarkFlagRequired("ticker")
	_ = rootCmd.MarkFlagRequired("query")

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runAnalysis(ctx context.Context, f flags) error {
	appCfg, err := configx.New[AppConfig]("FINSIGHT")
	if err != nil {
		return fmt.Errorf("load app config: %w", err)
	}
	if f.topK > 0 {
		appCfg.TopK = f.topK
	}
	if strings.TrimSpace(f.docsDir) != "" {
		appCfg.DocsDir = f.docsDir
	}

	llmCfg, err := configx.New[llmx.Config]("LLM")
	if err != nil {
		return fmt.Errorf("load llm config: %w", err)
	}
	if err := llmCfg.Validate(); err != nil {
		return err
	}

	synthCfg := llmCfg.SynthesisConfig()
	chatModel, err := synthCfg.New(ctx)
	if err != nil {
		return err
	}

	prompts := promptx.LoadPromptSet()
	engine, err := synthx.NewEngine(ctx, chatModel, prompts.Analyst)
	if err != nil {
		return err
	}

	docs, err := buildIndex(ctx, appCfg)
	if err != nil {
		return err
	}

	store, err := buildStore(ctx, appCfg)
	if err != nil {
		return err
	}

	notifier, err := buildNotifier(appCfg)
	if err != nil {
		return err
	}

	p, err := pipelinex.New(toolx.NewGateway(), docs, engine, store, notifier, pipelinex.Config{
		TopK:      appCfg.TopK,
		NewsLimit: appCfg.NewsLimit,
	})
	if err != nil {
		return err
	}

	run, err := p.Run(ctx, pipelinex.Request{
		CompanyName: f.company,
		Ticker:      f.ticker,
		Query:       f.query,
	})
	if err != nil {
		if run != nil {
			log.Error().
				Str("run_id", run.RunID).
				Str("failed_stage", run.FailedStage).
				Str("failure_kind", run.FailureKind).
				Msg("analysis halted; partial state recorded")
		}
		return err
	}

	fmt.Println(run.Analysis)
	return nil
}

func buildIndex(ctx context.Context, cfg *AppConfig) (*retrievalx.Index, error) {
	opts := []retrievalx.Option{retrievalx.WithMinScore(cfg.MinScore)}

	if strings.TrimSpace(cfg.EmbeddingAPIKey) != "" {
		client := openrouterx.NewClient(openrouterx.Config{
			APIKey:  cfg.EmbeddingAPIKey,
			BaseURL: cfg.EmbeddingBaseURL,
		})
		embedder, err := retrievalx.NewOpenAIEmbedder(client, cfg.EmbeddingModel)
		if err != nil {
			return nil, err
		}
		opts = append(opts, retrievalx.WithEmbedder(embedder))
	}

	index := retrievalx.NewIndex(opts...)

	if dir := strings.TrimSpace(cfg.DocsDir); dir != "" {
		count, err := index.LoadDirectory(ctx, dir)
		if err != nil {
			return nil, err
		}
		log.Info().Int("files", count).Int("chunks", index.Len()).Str("dir", dir).Msg("document index loaded")
	}

	return index, nil
}

func buildStore(ctx context.Context, cfg *AppConfig) (statex.Store, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.StoreBackend)) {
	case "", "none":
		return nil, nil
	case "upstash":
		redisCfg, err := configx.New[statex.UpstashRedisConfig]("UPSTASH")
		if err != nil {
			return nil, fmt.Errorf("load upstash config: %w", err)
		}
		return statex.NewUpstashRedisStore(*redisCfg)
	case "postgres":
		pgCfg, err := configx.New[statex.PostgresConfig]("POSTGRES")
		if err != nil {
			return nil, fmt.Errorf("load postgres config: %w", err)
		}
		store, err := statex.NewPostgresStore(*pgCfg)
		if err != nil {
			return nil, err
		}
		if err := store.Init(ctx); err != nil {
			return nil, err
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.StoreBackend)
	}
}

func buildNotifier(cfg *AppConfig) (contractx.Notifier, error) {
	destination := strings.TrimSpace(cfg.QStashDestination)
	if destination == "" {
		return nil, nil
	}

	qstashCfg, err := configx.New[qstashx.Config]("QSTASH")
	if err != nil {
		return nil, fmt.Errorf("load qstash config: %w", err)
	}
	client, err := qstashx.NewClient(*qstashCfg)
	if err != nil {
		return nil, err
	}

	return &reportPublisher{client: client, destination: destination}, nil
}

// reportPublisher forwards finished reports to a QStash destination.
type reportPublisher struct {
	client      *qstashx.Client
	destination string
}

func (p *reportPublisher) PublishReport(ctx context.Context, report contractx.Report) error {
	return p.client.PublishJSON(ctx, p.destination, report)
}
