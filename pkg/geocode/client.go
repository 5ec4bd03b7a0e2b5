// Package geocode resolves coordinates to administrative areas via the
// Census Geocoder (primary) and Google reverse geocoding (fallback).
package geocode

import (
	"context"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/projectmerge/internal/resilience"
)

// Reverser resolves a coordinate to the administrative areas containing it.
type Reverser interface {
	Reverse(ctx context.Context, lat, lon float64) (*ReverseResult, error)
}

// ReverseResult holds the administrative areas for a coordinate. Found is
// false when the provider answered but the point lies in no known area.
type ReverseResult struct {
	State    string `json:"state,omitempty"`
	County   string `json:"county,omitempty"`
	City     string `json:"city,omitempty"`
	District string `json:"district,omitempty"`
	Source   string `json:"source,omitempty"`
	Found    bool   `json:"found"`
}

// Provider is a single reverse geocoding backend.
type Provider interface {
	Name() string
	Reverse(ctx context.Context, lat, lon float64) (*ReverseResult, error)
}

// Option configures the Client.
type Option func(*Client)

// WithGoogleAPIKey enables Google reverse geocoding as a fallback.
func WithGoogleAPIKey(key string) Option {
	return func(c *Client) {
		c.googleKey = key
	}
}

// WithHTTPClient sets the HTTP client used by the built-in providers.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithRateLimit sets the requests-per-second limit shared by the built-in
// providers.
func WithRateLimit(rps float64) Option {
	return func(c *Client) {
		burst := int(rps)
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

// WithCache caches answers (including not-found) for ttl. A ttl of zero
// never expires entries.
func WithCache(cache Cache, ttl time.Duration) Option {
	return func(c *Client) {
		c.cache = cache
		c.cacheTTL = ttl
	}
}

// WithBreakerConfig sets the per-provider circuit breaker config.
func WithBreakerConfig(cfg resilience.BreakerConfig) Option {
	return func(c *Client) {
		c.breakers = resilience.NewBreakers(cfg)
	}
}

// WithProviders replaces the built-in providers.
func WithProviders(providers ...Provider) Option {
	return func(c *Client) {
		c.providers = providers
	}
}

// Client tries providers in order until one answers.
type Client struct {
	httpClient *http.Client
	googleKey  string
	limiter    *rate.Limiter
	providers  []Provider
	breakers   *resilience.Breakers
	cache      Cache
	cacheTTL   time.Duration
}

// NewClient creates a Client. Without WithProviders it uses Census, then
// Google when an API key is set.
func NewClient(opts ...Option) *Client {
	c := &Client{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		limiter:    rate.NewLimiter(50, 50), // Census default: 50 req/s
		breakers:   resilience.NewBreakers(resilience.DefaultBreakerConfig()),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.providers == nil {
		c.providers = []Provider{NewCensus(c.httpClient, c.limiter)}
		if c.googleKey != "" {
			c.providers = append(c.providers, NewGoogle(c.googleKey, c.httpClient, c.limiter))
		}
	}
	return c
}

// Providers returns the provider names in cascade order.
func (c *Client) Providers() []string {
	names := make([]string, len(c.providers))
	for i, p := range c.providers {
		names[i] = p.Name()
	}
	return names
}

// Reverse implements Reverser. A not-found answer from every provider is
// returned as a result with Found=false; an error is returned only when
// no provider answered at all. Errors are never cached.
func (c *Client) Reverse(ctx context.Context, lat, lon float64) (*ReverseResult, error) {
	key := CacheKey(lat, lon)
	if c.cache != nil {
		cached, ok, err := c.cache.GetCachedGeocode(ctx, key, c.cacheTTL)
		switch {
		case err != nil:
			zap.L().Debug("geocode: cache read failed", zap.String("key", key), zap.Error(err))
		case ok:
			return cached, nil
		}
	}

	var lastErr error
	answered := false
	for _, p := range c.providers {
		res, err := resilience.Call(ctx, c.breakers.Get(p.Name()), func(ctx context.Context) (*ReverseResult, error) {
			return p.Reverse(ctx, lat, lon)
		})
		if err != nil {
			zap.L().Debug("geocode: provider error, trying next",
				zap.String("provider", p.Name()),
				zap.String("key", key),
				zap.Error(err),
			)
			lastErr = err
			continue
		}
		answered = true
		if res.Found {
			c.store(ctx, key, res)
			return res, nil
		}
	}

	if !answered {
		if lastErr == nil {
			lastErr = eris.New("geocode: no providers configured")
		}
		return nil, eris.Wrapf(lastErr, "geocode: reverse %s", key)
	}
	miss := &ReverseResult{Found: false}
	c.store(ctx, key, miss)
	return miss, nil
}

func (c *Client) store(ctx context.Context, key string, res *ReverseResult) {
	if c.cache == nil {
		return
	}
	if err := c.cache.SetCachedGeocode(ctx, key, res); err != nil {
		zap.L().Warn("geocode: cache write failed", zap.String("key", key), zap.Error(err))
	}
}
