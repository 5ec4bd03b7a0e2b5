// Package store persists the run ledger and the reverse geocoding cache.
package store

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/projectmerge/internal/model"
	"github.com/sells-group/projectmerge/pkg/geocode"
)

// ErrRunNotFound is returned by GetRun for an unknown id.
var ErrRunNotFound = eris.New("store: run not found")

// RunFilter specifies criteria for listing runs.
type RunFilter struct {
	Status model.RunStatus `json:"status,omitempty"`
	Limit  int             `json:"limit,omitempty"`
	Offset int             `json:"offset,omitempty"`
}

// Store defines the persistence interface for merge runs.
type Store interface {
	// Runs
	RecordRun(ctx context.Context, run *model.Run) error
	GetRun(ctx context.Context, id string) (*model.Run, error)
	ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error)

	// Geocode cache
	GetCachedGeocode(ctx context.Context, key string, maxAge time.Duration) (*geocode.ReverseResult, bool, error)
	SetCachedGeocode(ctx context.Context, key string, res *geocode.ReverseResult) error

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

var _ geocode.Cache = Store(nil)

// Open connects to the configured backend and migrates it.
func Open(ctx context.Context, driver, dsn string) (Store, error) {
	var (
		st  Store
		err error
	)
	switch driver {
	case "", "sqlite":
		st, err = NewSQLite(dsn)
	case "postgres":
		st, err = NewPostgres(ctx, dsn, nil)
	default:
		return nil, eris.Errorf("store: unknown driver %q", driver)
	}
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, err
	}
	return st, nil
}

const defaultListLimit = 100

func listLimit(f RunFilter) int {
	if f.Limit <= 0 {
		return defaultListLimit
	}
	return f.Limit
}

// expired reports whether an entry cached at t is older than maxAge.
func expired(t time.Time, maxAge time.Duration) bool {
	return maxAge > 0 && time.Since(t) > maxAge
}
