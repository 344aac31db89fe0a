package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/prospector/internal/aggregate"
	"github.com/sells-group/prospector/internal/source"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS runs (
	id              TEXT PRIMARY KEY,
	location        TEXT NOT NULL,
	industry        TEXT NOT NULL DEFAULT '',
	target_count    INTEGER NOT NULL,
	sources_tried   INTEGER NOT NULL,
	records_fetched INTEGER NOT NULL,
	unique_entities INTEGER NOT NULL,
	returned        INTEGER NOT NULL,
	started_at      DATETIME NOT NULL,
	duration_ms     INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS source_snapshots (
	run_id   TEXT NOT NULL REFERENCES runs(id),
	source   TEXT NOT NULL,
	snapshot TEXT NOT NULL,
	PRIMARY KEY (run_id, source)
);

CREATE INDEX IF NOT EXISTS idx_runs_location ON runs(location);
CREATE INDEX IF NOT EXISTS idx_runs_started_at ON runs(started_at);
CREATE INDEX IF NOT EXISTS idx_source_snapshots_run_id ON source_snapshots(run_id);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) SaveRun(ctx context.Context, run aggregate.RunSummary) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (id, location, industry, target_count, sources_tried, records_fetched, unique_entities, returned, started_at, duration_ms)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.RunID, run.Location, run.Industry, run.TargetCount, run.SourcesTried,
		run.RecordsFetched, run.UniqueEntities, run.Returned,
		run.StartedAt.UTC(), run.Duration.Milliseconds(),
	)
	return eris.Wrapf(err, "sqlite: insert run %s", run.RunID)
}

func (s *SQLiteStore) GetRun(ctx context.Context, runID string) (*aggregate.RunSummary, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, location, industry, target_count, sources_tried, records_fetched, unique_entities, returned, started_at, duration_ms
		 FROM runs WHERE id = ?`,
		runID,
	)
	run, err := scanRun(row.Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get run %s", runID)
	}
	return run, nil
}

func (s *SQLiteStore) ListRuns(ctx context.Context, filter RunFilter) ([]aggregate.RunSummary, error) {
	query := `SELECT id, location, industry, target_count, sources_tried, records_fetched, unique_entities, returned, started_at, duration_ms
	 FROM runs WHERE 1=1`
	var args []any

	if filter.Location != "" {
		query += ` AND location = ?`
		args = append(args, filter.Location)
	}
	if filter.Industry != "" {
		query += ` AND industry = ?`
		args = append(args, filter.Industry)
	}
	query += ` ORDER BY started_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += ` LIMIT ?`
	args = append(args, limit)

	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list runs")
	}
	defer rows.Close()

	var runs []aggregate.RunSummary
	for rows.Next() {
		run, err := scanRun(rows.Scan)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan run")
		}
		runs = append(runs, *run)
	}
	return runs, eris.Wrap(rows.Err(), "sqlite: list runs iterate")
}

func (s *SQLiteStore) SaveSourceSnapshots(ctx context.Context, runID string, snaps []source.MetricsSnapshot) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin snapshots tx")
	}
	defer tx.Rollback()

	for _, snap := range snaps {
		data, err := json.Marshal(snap)
		if err != nil {
			return eris.Wrapf(err, "sqlite: marshal snapshot for %s", snap.Source)
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT OR REPLACE INTO source_snapshots (run_id, source, snapshot) VALUES (?, ?, ?)`,
			runID, snap.Source, string(data),
		); err != nil {
			return eris.Wrapf(err, "sqlite: insert snapshot for %s", snap.Source)
		}
	}
	return eris.Wrap(tx.Commit(), "sqlite: commit snapshots")
}

func (s *SQLiteStore) ListSourceSnapshots(ctx context.Context, runID string) ([]source.MetricsSnapshot, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT snapshot FROM source_snapshots WHERE run_id = ? ORDER BY source`,
		runID,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: list snapshots for run %s", runID)
	}
	defer rows.Close()

	var snaps []source.MetricsSnapshot
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan snapshot")
		}
		var snap source.MetricsSnapshot
		if err := json.Unmarshal([]byte(data), &snap); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal snapshot")
		}
		snaps = append(snaps, snap)
	}
	return snaps, eris.Wrap(rows.Err(), "sqlite: list snapshots iterate")
}

// scanRun reads one runs row via the given scan function, shared by the
// single-row and multi-row paths.
func scanRun(scan func(dest ...any) error) (*aggregate.RunSummary, error) {
	var run aggregate.RunSummary
	var startedAt time.Time
	var durationMS int64
	if err := scan(
		&run.RunID, &run.Location, &run.Industry, &run.TargetCount,
		&run.SourcesTried, &run.RecordsFetched, &run.UniqueEntities,
		&run.Returned, &startedAt, &durationMS,
	); err != nil {
		return nil, err
	}
	run.StartedAt = startedAt.UTC()
	run.Duration = time.Duration(durationMS) * time.Millisecond
	return &run, nil
}
