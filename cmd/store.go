package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/projectmerge/internal/resilience"
	"github.com/sells-group/projectmerge/internal/store"
	"github.com/sells-group/projectmerge/pkg/geocode"
)

// initStore opens and migrates the run ledger.
func initStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "", "sqlite":
		dsn := cfg.Store.DSN
		if dsn == "" {
			dsn = "projectmerge.db"
		}
		return store.Open(ctx, "sqlite", dsn)
	case "postgres":
		st, err := store.NewPostgres(ctx, cfg.Store.DatabaseURL, &store.PoolConfig{
			MaxConns: cfg.Store.MaxConns,
			MinConns: cfg.Store.MinConns,
		})
		if err != nil {
			return nil, err
		}
		if err := st.Migrate(ctx); err != nil {
			_ = st.Close()
			return nil, err
		}
		return st, nil
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
}

// initGeocoder builds the reverse geocoder, caching answers in st.
func initGeocoder(st store.Store) *geocode.Client {
	opts := []geocode.Option{
		geocode.WithBreakerConfig(resilience.FromConfig(
			cfg.Geocode.BreakerFailureThreshold,
			cfg.Geocode.BreakerCooldownSecs,
		)),
	}
	if cfg.Geocode.GoogleAPIKey != "" {
		opts = append(opts, geocode.WithGoogleAPIKey(cfg.Geocode.GoogleAPIKey))
	}
	if cfg.Geocode.RateLimit > 0 {
		opts = append(opts, geocode.WithRateLimit(cfg.Geocode.RateLimit))
	}
	if st != nil {
		opts = append(opts, geocode.WithCache(st, time.Duration(cfg.Geocode.CacheTTLHours)*time.Hour))
	}
	return geocode.NewClient(opts...)
}
