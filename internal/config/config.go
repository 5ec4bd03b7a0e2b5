package config

import (
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Log     LogConfig     `yaml:"log" mapstructure:"log"`
	Store   StoreConfig   `yaml:"store" mapstructure:"store"`
	Dedup   DedupConfig   `yaml:"dedup" mapstructure:"dedup"`
	Scoring ScoringConfig `yaml:"scoring" mapstructure:"scoring"`
	Enrich  EnrichConfig  `yaml:"enrich" mapstructure:"enrich"`
	Geocode GeocodeConfig `yaml:"geocode" mapstructure:"geocode"`
	Output  OutputConfig  `yaml:"output" mapstructure:"output"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// StoreConfig configures the run ledger and geocode cache.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"` // sqlite or postgres
	DSN         string `yaml:"dsn" mapstructure:"dsn"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns    int32  `yaml:"min_conns" mapstructure:"min_conns"`
}

// DedupConfig configures candidate finding and classification.
type DedupConfig struct {
	DuplicateThreshold    int     `yaml:"duplicate_threshold" mapstructure:"duplicate_threshold"`
	ReviewThreshold       int     `yaml:"review_threshold" mapstructure:"review_threshold"`
	RadiusKm              float64 `yaml:"radius_km" mapstructure:"radius_km"`
	CellDegrees           float64 `yaml:"cell_degrees" mapstructure:"cell_degrees"`
	FallbackMaxCandidates int     `yaml:"fallback_max_candidates" mapstructure:"fallback_max_candidates"`
	FallbackMinSimilarity float64 `yaml:"fallback_min_similarity" mapstructure:"fallback_min_similarity"`
	TopMatches            int     `yaml:"top_matches" mapstructure:"top_matches"`
}

// ScoringConfig configures the scoring fan-out.
type ScoringConfig struct {
	Workers int `yaml:"workers" mapstructure:"workers"` // 0 means one per CPU
}

// EnrichConfig configures reverse-geocode backfill of new records.
type EnrichConfig struct {
	Enabled     bool `yaml:"enabled" mapstructure:"enabled"`
	Concurrency int  `yaml:"concurrency" mapstructure:"concurrency"`
	TimeoutSecs int  `yaml:"timeout_secs" mapstructure:"timeout_secs"`
}

// GeocodeConfig configures the reverse geocoding providers.
type GeocodeConfig struct {
	GoogleAPIKey            string  `yaml:"google_api_key" mapstructure:"google_api_key"`
	RateLimit               float64 `yaml:"rate_limit" mapstructure:"rate_limit"`
	CacheTTLHours           int     `yaml:"cache_ttl_hours" mapstructure:"cache_ttl_hours"`
	BreakerFailureThreshold int     `yaml:"breaker_failure_threshold" mapstructure:"breaker_failure_threshold"`
	BreakerCooldownSecs     int     `yaml:"breaker_cooldown_secs" mapstructure:"breaker_cooldown_secs"`
}

// OutputConfig configures where and how results are written.
type OutputConfig struct {
	Dir                string `yaml:"dir" mapstructure:"dir"`
	ReviewFile         string `yaml:"review_file" mapstructure:"review_file"`
	SummaryFile        string `yaml:"summary_file" mapstructure:"summary_file"`
	RequireCoordinates bool   `yaml:"require_coordinates" mapstructure:"require_coordinates"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("PROJECTMERGE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.dsn", "projectmerge.db")
	v.SetDefault("store.database_url", "")
	v.SetDefault("store.max_conns", 4)
	v.SetDefault("store.min_conns", 1)
	v.SetDefault("dedup.duplicate_threshold", 80)
	v.SetDefault("dedup.review_threshold", 40)
	v.SetDefault("dedup.radius_km", 100.0)
	v.SetDefault("dedup.cell_degrees", 1.0)
	v.SetDefault("dedup.fallback_max_candidates", 50)
	v.SetDefault("dedup.fallback_min_similarity", 0.3)
	v.SetDefault("dedup.top_matches", 5)
	v.SetDefault("scoring.workers", 0)
	v.SetDefault("enrich.enabled", true)
	v.SetDefault("enrich.concurrency", 10)
	v.SetDefault("enrich.timeout_secs", 10)
	v.SetDefault("geocode.google_api_key", "")
	v.SetDefault("geocode.rate_limit", 50.0)
	v.SetDefault("geocode.cache_ttl_hours", 720)
	v.SetDefault("geocode.breaker_failure_threshold", 5)
	v.SetDefault("geocode.breaker_cooldown_secs", 30)
	v.SetDefault("output.dir", "output")
	v.SetDefault("output.review_file", "review.csv")
	v.SetDefault("output.summary_file", "summary.yaml")
	v.SetDefault("output.require_coordinates", false)

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate checks every setting and reports all problems at once.
func (c *Config) Validate() error {
	var errs []string

	d := c.Dedup
	if d.ReviewThreshold < 0 || d.DuplicateThreshold > 100 || d.ReviewThreshold > d.DuplicateThreshold {
		errs = append(errs, fmt.Sprintf("dedup thresholds must satisfy 0 <= review_threshold (%d) <= duplicate_threshold (%d) <= 100",
			d.ReviewThreshold, d.DuplicateThreshold))
	}
	if d.RadiusKm < 0 {
		errs = append(errs, "dedup.radius_km must be >= 0")
	}
	if c.Scoring.Workers < 0 {
		errs = append(errs, "scoring.workers must be >= 0")
	}
	if c.Enrich.Concurrency < 0 || c.Enrich.Concurrency > 100 {
		errs = append(errs, "enrich.concurrency must be between 0 and 100")
	}
	if c.Enrich.TimeoutSecs < 0 {
		errs = append(errs, "enrich.timeout_secs must be >= 0")
	}
	if c.Geocode.RateLimit < 0 {
		errs = append(errs, "geocode.rate_limit must be >= 0")
	}

	switch c.Store.Driver {
	case "", "sqlite":
	case "postgres":
		if c.Store.DatabaseURL == "" {
			errs = append(errs, "store.database_url is required for the postgres driver")
		}
	default:
		errs = append(errs, fmt.Sprintf("unknown store.driver %q", c.Store.Driver))
	}

	if len(errs) > 0 {
		return eris.Errorf("config: %s", strings.Join(errs, "; "))
	}
	return nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
