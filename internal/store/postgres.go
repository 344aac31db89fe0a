package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/prospector/internal/aggregate"
	"github.com/sells-group/prospector/internal/source"
)

// Pool is the subset of pgxpool.Pool the store needs. pgxmock satisfies it,
// which keeps the postgres store unit-testable without a live database.
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Ping(ctx context.Context) error
	Close()
}

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool Pool
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS runs (
	id              TEXT PRIMARY KEY,
	location        TEXT NOT NULL,
	industry        TEXT NOT NULL DEFAULT '',
	target_count    INTEGER NOT NULL,
	sources_tried   INTEGER NOT NULL,
	records_fetched INTEGER NOT NULL,
	unique_entities INTEGER NOT NULL,
	returned        INTEGER NOT NULL,
	started_at      TIMESTAMPTZ NOT NULL,
	duration_ms     BIGINT NOT NULL
);

CREATE TABLE IF NOT EXISTS source_snapshots (
	run_id   TEXT NOT NULL REFERENCES runs(id),
	source   TEXT NOT NULL,
	snapshot JSONB NOT NULL,
	PRIMARY KEY (run_id, source)
);

CREATE INDEX IF NOT EXISTS idx_runs_location ON runs(location);
CREATE INDEX IF NOT EXISTS idx_runs_started_at ON runs(started_at);
CREATE INDEX IF NOT EXISTS idx_source_snapshots_run_id ON source_snapshots(run_id);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func (s *PostgresStore) SaveRun(ctx context.Context, run aggregate.RunSummary) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO runs (id, location, industry, target_count, sources_tried, records_fetched, unique_entities, returned, started_at, duration_ms)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		run.RunID, run.Location, run.Industry, run.TargetCount, run.SourcesTried,
		run.RecordsFetched, run.UniqueEntities, run.Returned,
		run.StartedAt.UTC(), run.Duration.Milliseconds(),
	)
	return eris.Wrapf(err, "postgres: insert run %s", run.RunID)
}

func (s *PostgresStore) GetRun(ctx context.Context, runID string) (*aggregate.RunSummary, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, location, industry, target_count, sources_tried, records_fetched, unique_entities, returned, started_at, duration_ms
		 FROM runs WHERE id = $1`,
		runID,
	)
	run, err := scanRun(row.Scan)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get run %s", runID)
	}
	return run, nil
}

func (s *PostgresStore) ListRuns(ctx context.Context, filter RunFilter) ([]aggregate.RunSummary, error) {
	query := `SELECT id, location, industry, target_count, sources_tried, records_fetched, unique_entities, returned, started_at, duration_ms
	 FROM runs WHERE ($1 = '' OR location = $1) AND ($2 = '' OR industry = $2)
	 ORDER BY started_at DESC LIMIT $3 OFFSET $4`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}

	rows, err := s.pool.Query(ctx, query, filter.Location, filter.Industry, limit, filter.Offset)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list runs")
	}
	defer rows.Close()

	var runs []aggregate.RunSummary
	for rows.Next() {
		run, err := scanRun(rows.Scan)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan run")
		}
		runs = append(runs, *run)
	}
	return runs, eris.Wrap(rows.Err(), "postgres: list runs iterate")
}

func (s *PostgresStore) SaveSourceSnapshots(ctx context.Context, runID string, snaps []source.MetricsSnapshot) error {
	for _, snap := range snaps {
		data, err := json.Marshal(snap)
		if err != nil {
			return eris.Wrapf(err, "postgres: marshal snapshot for %s", snap.Source)
		}
		if _, err := s.pool.Exec(ctx,
			`INSERT INTO source_snapshots (run_id, source, snapshot) VALUES ($1, $2, $3)
			 ON CONFLICT (run_id, source) DO UPDATE SET snapshot = EXCLUDED.snapshot`,
			runID, snap.Source, string(data),
		); err != nil {
			return eris.Wrapf(err, "postgres: insert snapshot for %s", snap.Source)
		}
	}
	return nil
}

func (s *PostgresStore) ListSourceSnapshots(ctx context.Context, runID string) ([]source.MetricsSnapshot, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT snapshot FROM source_snapshots WHERE run_id = $1 ORDER BY source`,
		runID,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: list snapshots for run %s", runID)
	}
	defer rows.Close()

	var snaps []source.MetricsSnapshot
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, eris.Wrap(err, "postgres: scan snapshot")
		}
		var snap source.MetricsSnapshot
		if err := json.Unmarshal(data, &snap); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal snapshot")
		}
		snaps = append(snaps, snap)
	}
	return snaps, eris.Wrap(rows.Err(), "postgres: list snapshots iterate")
}
