package state

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
)

type PostgresConfig struct {
	DSN     string        `envconfig:"DSN" split_words:"true" required:"true"`
	Timeout time.Duration `envconfig:"TIMEOUT" split_words:"true" default:"10s"`
}

type runRecord struct {
	bun.BaseModel `bun:"table:analysis_runs,alias:ar"`

	RunID     string    `bun:"run_id,pk"`
	Ticker    string    `bun:"ticker,notnull"`
	Status    string    `bun:"status,notnull"`
	Payload   []byte    `bun:"payload,type:jsonb,notnull"`
	UpdatedAt time.Time `bun:"updated_at,notnull"`
}

// PostgresStore keeps run records in Postgres through bun.
type PostgresStore struct {
	db *bun.DB
}

func NewPostgresStore(cfg PostgresConfig) (*PostgresStore, error) {
	dsn := strings.TrimSpace(cfg.DSN)
	if dsn == "" {
		return nil, errors.New("postgres dsn is required")
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	sqldb := sql.OpenDB(pgdriver.NewConnector(
		pgdriver.WithDSN(dsn),
		pgdriver.WithTimeout(timeout),
	))

	return &PostgresStore{db: bun.NewDB(sqldb, pgdialect.New())}, nil
}

// Init creates the runs table when it does not exist yet.
func (s *PostgresStore) Init(ctx context.Context) error {
	_, err := s.db.NewCreateTable().
		Model((*runRecord)(nil)).
		IfNotExists().
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("create analysis_runs table: %w", err)
	}
	return nil
}

func (s *PostgresStore) Load(ctx context.Context, runID string) (*RunState, error) {
	if strings.TrimSpace(runID) == "" {
		return nil, ErrInvalidRun
	}

	rec := new(runRecord)
	err := s.db.NewSelect().
		Model(rec).
		Where("run_id = ?", runID).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRunNotFound
		}
		return nil, fmt.Errorf("select run: %w", err)
	}

	var run RunState
	if err := json.Unmarshal(rec.Payload, &run); err != nil {
		return nil, fmt.Errorf("unmarshal run state: %w", err)
	}
	if err := run.Validate(); err != nil {
		return nil, fmt.Errorf("invalid run state loaded from store: %w", err)
	}
	return &run, nil
}

func (s *PostgresStore) Save(ctx context.Context, run *RunState) error {
	if run == nil {
		return ErrNilRunState
	}
	if strings.TrimSpace(run.RunID) == "" {
		return ErrInvalidRun
	}
	if run.UpdatedAt.IsZero() {
		run.UpdatedAt = time.Now().UTC()
	}

	payload, err := json.Marshal(run)
	if err != nil {
		return fmt.Errorf("marshal run state: %w", err)
	}

	rec := &runRecord{
		RunID:     run.RunID,
		Ticker:    run.Ticker,
		Status:    string(run.Status),
		Payload:   payload,
		UpdatedAt: run.UpdatedAt.UTC(),
	}

	_, err = s.db.NewInsert().
		Model(rec).
		On("CONFLICT (run_id) DO UPDATE").
		Set("status = EXCLUDED.status").
		Set("payload = EXCLUDED.payload").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("upsert run: %w", err)
	}
	return nil
}

func (s *PostgresStore) Delete(ctx context.Context, runID string) error {
	if strings.TrimSpace(runID) == "" {
		return ErrInvalidRun
	}
	_, err := s.db.NewDelete().
		Model((*runRecord)(nil)).
		Where("run_id = ?", runID).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("delete run: %w", err)
	}
	return nil
}

func (s *PostgresStore) Close() error {
	return s.db.Close()
}
