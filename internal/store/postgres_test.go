package store

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/projectmerge/internal/model"
	"github.com/sells-group/projectmerge/pkg/geocode"
)

// newMockPostgresStore creates a PostgresStore backed by pgxmock for unit testing.
func newMockPostgresStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { mock.Close() })

	return &PostgresStore{pool: mock}, mock
}

func TestPostgresStore_Migrate(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS runs`).WillReturnResult(pgxmock.NewResult("CREATE", 0))

	require.NoError(t, s.Migrate(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_RecordRun(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	run := sampleRun(time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC))
	run.ID = "run-1"

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO runs`).
		WithArgs("run-1", "complete", pgxmock.AnyArg(), pgxmock.AnyArg(), "wh.csv",
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), "").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCopyFrom(pgx.Identifier{"run_files"}, runFileColumns).WillReturnResult(2)
	mock.ExpectCommit()

	require.NoError(t, s.RecordRun(context.Background(), run))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_RecordRun_InsertFails(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO runs`).
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnError(eris.New("boom"))
	mock.ExpectRollback()

	err := s.RecordRun(context.Background(), sampleRun(time.Now()))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "insert run")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetRun_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT id, status, started_at, finished_at, canonical, inputs, outputs, totals, error FROM runs WHERE id = \$1`).
		WithArgs("nonexistent-run").
		WillReturnError(pgx.ErrNoRows)

	_, err := s.GetRun(context.Background(), "nonexistent-run")
	require.Error(t, err)
	assert.True(t, eris.Is(err, ErrRunNotFound))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetRun(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	started := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`FROM runs WHERE id = \$1`).
		WithArgs("run-1").
		WillReturnRows(pgxmock.NewRows([]string{"id", "status", "started_at", "finished_at", "canonical", "inputs", "outputs", "totals", "error"}).
			AddRow("run-1", "complete", started, started.Add(time.Second), "wh.csv",
				[]byte(`["doe.csv"]`), []byte(`["out.csv"]`), []byte(`{"rows":3,"new":2,"duplicates":1}`), ""))
	mock.ExpectQuery(`FROM run_files WHERE run_id = \$1 ORDER BY position`).
		WithArgs("run-1").
		WillReturnRows(pgxmock.NewRows([]string{"file", "schema_name", "row_count", "duplicate_count", "review_count", "new_count", "skipped_count", "filtered_count", "errored_count"}).
			AddRow("doe.csv", "DOE", 3, 1, 0, 2, 0, 0, 0))

	run, err := s.GetRun(context.Background(), "run-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"doe.csv"}, run.Inputs)
	assert.Equal(t, 2, run.Totals.New)
	require.Len(t, run.Files, 1)
	assert.Equal(t, "DOE", run.Files[0].Schema)
	assert.Equal(t, 1, run.Files[0].Duplicates)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ListRuns_StatusFilter(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`FROM runs WHERE status = \$1 ORDER BY started_at DESC LIMIT \$2 OFFSET \$3`).
		WithArgs("failed", 100, 0).
		WillReturnRows(pgxmock.NewRows([]string{"id", "status", "started_at", "finished_at", "canonical", "inputs", "outputs", "totals", "error"}))

	runs, err := s.ListRuns(context.Background(), RunFilter{Status: model.RunStatusFailed})
	require.NoError(t, err)
	assert.Empty(t, runs)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetCachedGeocode_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT result, cached_at FROM geocode_cache`).
		WithArgs("1.00000,2.00000").
		WillReturnError(pgx.ErrNoRows)

	res, ok, err := s.GetCachedGeocode(context.Background(), "1.00000,2.00000", time.Hour)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Nil(t, res)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetCachedGeocode_Expired(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT result, cached_at FROM geocode_cache`).
		WithArgs("k").
		WillReturnRows(pgxmock.NewRows([]string{"result", "cached_at"}).
			AddRow([]byte(`{"found":true}`), time.Now().Add(-72*time.Hour)))

	_, ok, err := s.GetCachedGeocode(context.Background(), "k", 24*time.Hour)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_SetCachedGeocode_Upsert(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`ON CONFLICT`).
		WithArgs("39.95000,-75.16000", pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err := s.SetCachedGeocode(context.Background(), "39.95000,-75.16000", &geocode.ReverseResult{State: "PA", Found: true})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
