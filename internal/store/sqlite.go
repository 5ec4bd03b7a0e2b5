package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/projectmerge/internal/model"
	"github.com/sells-group/projectmerge/pkg/geocode"
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
			_ = db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS runs (
	id          TEXT PRIMARY KEY,
	status      TEXT NOT NULL,
	started_at  DATETIME NOT NULL,
	finished_at DATETIME NOT NULL,
	canonical   TEXT NOT NULL,
	inputs      TEXT NOT NULL,
	outputs     TEXT NOT NULL,
	totals      TEXT NOT NULL,
	error       TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS run_files (
	run_id         TEXT NOT NULL REFERENCES runs(id),
	position       INTEGER NOT NULL,
	file           TEXT NOT NULL,
	schema_name    TEXT NOT NULL,
	row_count      INTEGER NOT NULL,
	duplicate_count INTEGER NOT NULL,
	review_count   INTEGER NOT NULL,
	new_count      INTEGER NOT NULL,
	skipped_count  INTEGER NOT NULL,
	filtered_count INTEGER NOT NULL,
	errored_count  INTEGER NOT NULL,
	PRIMARY KEY (run_id, position)
);

CREATE TABLE IF NOT EXISTS geocode_cache (
	cache_key TEXT PRIMARY KEY,
	result    TEXT NOT NULL,
	cached_at DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_runs_started_at ON runs(started_at);
CREATE INDEX IF NOT EXISTS idx_runs_status ON runs(status);
`

// Migrate creates the tables if needed.
func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// RecordRun inserts a run and its per-file counts in one transaction. An
// empty run id is filled with a new UUID.
func (s *SQLiteStore) RecordRun(ctx context.Context, run *model.Run) error {
	if run.ID == "" {
		run.ID = uuid.New().String()
	}
	inputs, outputs, totals, err := marshalRun(run)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal run")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin")
	}
	defer tx.Rollback() //nolint:errcheck

	_, err = tx.ExecContext(ctx,
		`INSERT INTO runs (id, status, started_at, finished_at, canonical, inputs, outputs, totals, error)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, string(run.Status), run.StartedAt.UTC(), run.FinishedAt.UTC(), run.Canonical,
		string(inputs), string(outputs), string(totals), run.Error,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: insert run %s", run.ID)
	}

	for i, f := range run.Files {
		_, err = tx.ExecContext(ctx,
			`INSERT INTO run_files (run_id, position, file, `+fileColumns+`)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			run.ID, i, f.File, f.Schema, f.Rows, f.Duplicates, f.Review, f.New, f.Skipped, f.Filtered, f.Errored,
		)
		if err != nil {
			return eris.Wrapf(err, "sqlite: insert run file %s", f.File)
		}
	}
	return eris.Wrap(tx.Commit(), "sqlite: commit run")
}

// GetRun returns a run with its per-file counts.
func (s *SQLiteStore) GetRun(ctx context.Context, id string) (*model.Run, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, status, started_at, finished_at, canonical, inputs, outputs, totals, error FROM runs WHERE id = ?`,
		id,
	)
	r, err := scanRun(row)
	if err == sql.ErrNoRows {
		return nil, eris.Wrapf(ErrRunNotFound, "sqlite: get run %s", id)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get run %s", id)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT file, `+fileColumns+`
		 FROM run_files WHERE run_id = ? ORDER BY position`,
		id,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get run files %s", id)
	}
	defer rows.Close() //nolint:errcheck

	for rows.Next() {
		f, err := scanFile(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan run file")
		}
		r.Files = append(r.Files, f)
	}
	return r, eris.Wrap(rows.Err(), "sqlite: get run files iterate")
}

// ListRuns returns runs newest first, without per-file counts.
func (s *SQLiteStore) ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error) {
	query := `SELECT id, status, started_at, finished_at, canonical, inputs, outputs, totals, error FROM runs WHERE 1=1`
	var args []any

	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(filter.Status))
	}
	query += ` ORDER BY started_at DESC LIMIT ?`
	args = append(args, listLimit(filter))
	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list runs")
	}
	defer rows.Close() //nolint:errcheck

	var runs []model.Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan run")
		}
		runs = append(runs, *r)
	}
	return runs, eris.Wrap(rows.Err(), "sqlite: list runs iterate")
}

// GetCachedGeocode implements geocode.Cache.
func (s *SQLiteStore) GetCachedGeocode(ctx context.Context, key string, maxAge time.Duration) (*geocode.ReverseResult, bool, error) {
	var payload string
	var cachedAt time.Time
	err := s.db.QueryRowContext(ctx,
		`SELECT result, cached_at FROM geocode_cache WHERE cache_key = ?`, key,
	).Scan(&payload, &cachedAt)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, eris.Wrap(err, "sqlite: get cached geocode")
	}
	if expired(cachedAt, maxAge) {
		return nil, false, nil
	}
	var res geocode.ReverseResult
	if err := json.Unmarshal([]byte(payload), &res); err != nil {
		return nil, false, eris.Wrap(err, "sqlite: unmarshal cached geocode")
	}
	return &res, true, nil
}

// SetCachedGeocode implements geocode.Cache.
func (s *SQLiteStore) SetCachedGeocode(ctx context.Context, key string, res *geocode.ReverseResult) error {
	payload, err := json.Marshal(res)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal geocode")
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO geocode_cache (cache_key, result, cached_at) VALUES (?, ?, ?)
		 ON CONFLICT (cache_key) DO UPDATE SET result = excluded.result, cached_at = excluded.cached_at`,
		key, string(payload), time.Now().UTC(),
	)
	return eris.Wrap(err, "sqlite: set cached geocode")
}

// helpers

const fileColumns = `schema_name, row_count, duplicate_count, review_count, new_count, skipped_count, filtered_count, errored_count`

type scannable interface {
	Scan(dest ...any) error
}

func marshalRun(run *model.Run) (inputs, outputs, totals []byte, err error) {
	if inputs, err = json.Marshal(nonNil(run.Inputs)); err != nil {
		return nil, nil, nil, err
	}
	if outputs, err = json.Marshal(nonNil(run.Outputs)); err != nil {
		return nil, nil, nil, err
	}
	totals, err = json.Marshal(run.Totals)
	return inputs, outputs, totals, err
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func scanRun(row scannable) (*model.Run, error) {
	var r model.Run
	var status, inputs, outputs, totals string
	if err := row.Scan(&r.ID, &status, &r.StartedAt, &r.FinishedAt, &r.Canonical, &inputs, &outputs, &totals, &r.Error); err != nil {
		return nil, err
	}
	r.Status = model.RunStatus(status)
	if err := unmarshalRun(&r, []byte(inputs), []byte(outputs), []byte(totals)); err != nil {
		return nil, err
	}
	return &r, nil
}

func unmarshalRun(r *model.Run, inputs, outputs, totals []byte) error {
	if err := json.Unmarshal(inputs, &r.Inputs); err != nil {
		return eris.Wrap(err, "unmarshal inputs")
	}
	if err := json.Unmarshal(outputs, &r.Outputs); err != nil {
		return eris.Wrap(err, "unmarshal outputs")
	}
	return eris.Wrap(json.Unmarshal(totals, &r.Totals), "unmarshal totals")
}

func scanFile(row scannable) (model.FileStats, error) {
	var f model.FileStats
	err := row.Scan(&f.File, &f.Schema, &f.Rows, &f.Duplicates, &f.Review, &f.New, &f.Skipped, &f.Filtered, &f.Errored)
	return f, err
}
