package store

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/projectmerge/internal/db"
	"github.com/sells-group/projectmerge/internal/model"
	"github.com/sells-group/projectmerge/pkg/geocode"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
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

	maxConns, minConns := int32(4), int32(1)
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
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS runs (
	id          TEXT PRIMARY KEY,
	status      TEXT NOT NULL,
	started_at  TIMESTAMPTZ NOT NULL,
	finished_at TIMESTAMPTZ NOT NULL,
	canonical   TEXT NOT NULL,
	inputs      JSONB NOT NULL,
	outputs     JSONB NOT NULL,
	totals      JSONB NOT NULL,
	error       TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS run_files (
	run_id          TEXT NOT NULL REFERENCES runs(id),
	position        INTEGER NOT NULL,
	file            TEXT NOT NULL,
	schema_name     TEXT NOT NULL,
	row_count       INTEGER NOT NULL,
	duplicate_count INTEGER NOT NULL,
	review_count    INTEGER NOT NULL,
	new_count       INTEGER NOT NULL,
	skipped_count   INTEGER NOT NULL,
	filtered_count  INTEGER NOT NULL,
	errored_count   INTEGER NOT NULL,
	PRIMARY KEY (run_id, position)
);

CREATE TABLE IF NOT EXISTS geocode_cache (
	cache_key TEXT PRIMARY KEY,
	result    JSONB NOT NULL,
	cached_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_runs_started_at ON runs(started_at DESC);
CREATE INDEX IF NOT EXISTS idx_runs_status ON runs(status);
`

var runFileColumns = []string{
	"run_id", "position", "file", "schema_name", "row_count", "duplicate_count",
	"review_count", "new_count", "skipped_count", "filtered_count", "errored_count",
}

// Migrate creates the tables if needed.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

// Close releases the pool.
func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

// RecordRun inserts a run and COPYs its per-file counts in one
// transaction. An empty run id is filled with a new UUID.
func (s *PostgresStore) RecordRun(ctx context.Context, run *model.Run) error {
	if run.ID == "" {
		run.ID = uuid.New().String()
	}
	inputs, outputs, totals, err := marshalRun(run)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal run")
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return eris.Wrap(err, "postgres: begin")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	_, err = tx.Exec(ctx,
		`INSERT INTO runs (id, status, started_at, finished_at, canonical, inputs, outputs, totals, error)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		run.ID, string(run.Status), run.StartedAt.UTC(), run.FinishedAt.UTC(), run.Canonical,
		inputs, outputs, totals, run.Error,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: insert run %s", run.ID)
	}

	rows := make([][]any, len(run.Files))
	for i, f := range run.Files {
		rows[i] = []any{run.ID, i, f.File, f.Schema, f.Rows, f.Duplicates, f.Review, f.New, f.Skipped, f.Filtered, f.Errored}
	}
	if _, err := db.CopyFrom(ctx, tx, "run_files", runFileColumns, rows); err != nil {
		return eris.Wrapf(err, "postgres: insert run files %s", run.ID)
	}
	return eris.Wrap(tx.Commit(ctx), "postgres: commit run")
}

// GetRun returns a run with its per-file counts.
func (s *PostgresStore) GetRun(ctx context.Context, id string) (*model.Run, error) {
	r, err := scanPostgresRun(s.pool.QueryRow(ctx,
		`SELECT id, status, started_at, finished_at, canonical, inputs, outputs, totals, error FROM runs WHERE id = $1`,
		id,
	))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Wrapf(ErrRunNotFound, "postgres: get run %s", id)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get run %s", id)
	}

	rows, err := s.pool.Query(ctx,
		`SELECT file, `+fileColumns+` FROM run_files WHERE run_id = $1 ORDER BY position`,
		id,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get run files %s", id)
	}
	defer rows.Close()

	for rows.Next() {
		f, err := scanFile(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan run file")
		}
		r.Files = append(r.Files, f)
	}
	return r, eris.Wrap(rows.Err(), "postgres: get run files iterate")
}

// ListRuns returns runs newest first, without per-file counts.
func (s *PostgresStore) ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error) {
	query := `SELECT id, status, started_at, finished_at, canonical, inputs, outputs, totals, error FROM runs`
	args := []any{}
	if filter.Status != "" {
		query += ` WHERE status = $1`
		args = append(args, string(filter.Status))
	}
	args = append(args, listLimit(filter), filter.Offset)
	query += ` ORDER BY started_at DESC LIMIT $` + strconv.Itoa(len(args)-1) + ` OFFSET $` + strconv.Itoa(len(args))

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list runs")
	}
	defer rows.Close()

	var runs []model.Run
	for rows.Next() {
		r, err := scanPostgresRun(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan run")
		}
		runs = append(runs, *r)
	}
	return runs, eris.Wrap(rows.Err(), "postgres: list runs iterate")
}

// GetCachedGeocode implements geocode.Cache.
func (s *PostgresStore) GetCachedGeocode(ctx context.Context, key string, maxAge time.Duration) (*geocode.ReverseResult, bool, error) {
	var payload []byte
	var cachedAt time.Time
	err := s.pool.QueryRow(ctx,
		`SELECT result, cached_at FROM geocode_cache WHERE cache_key = $1`, key,
	).Scan(&payload, &cachedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, eris.Wrap(err, "postgres: get cached geocode")
	}
	if expired(cachedAt, maxAge) {
		return nil, false, nil
	}
	var res geocode.ReverseResult
	if err := json.Unmarshal(payload, &res); err != nil {
		return nil, false, eris.Wrap(err, "postgres: unmarshal cached geocode")
	}
	return &res, true, nil
}

// SetCachedGeocode implements geocode.Cache.
func (s *PostgresStore) SetCachedGeocode(ctx context.Context, key string, res *geocode.ReverseResult) error {
	payload, err := json.Marshal(res)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal geocode")
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO geocode_cache (cache_key, result, cached_at) VALUES ($1, $2, now())
		 ON CONFLICT (cache_key) DO UPDATE SET result = EXCLUDED.result, cached_at = now()`,
		key, payload,
	)
	return eris.Wrap(err, "postgres: set cached geocode")
}

func scanPostgresRun(row scannable) (*model.Run, error) {
	var r model.Run
	var status string
	var inputs, outputs, totals []byte
	if err := row.Scan(&r.ID, &status, &r.StartedAt, &r.FinishedAt, &r.Canonical, &inputs, &outputs, &totals, &r.Error); err != nil {
		return nil, err
	}
	r.Status = model.RunStatus(status)
	if err := unmarshalRun(&r, inputs, outputs, totals); err != nil {
		return nil, err
	}
	return &r, nil
}
