package geocode

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// newTestLimiter creates a rate limiter that effectively does not limit for tests.
func newTestLimiter() *rate.Limiter {
	return rate.NewLimiter(rate.Inf, 1)
}

// newRewriteClient creates an HTTP client that sends requests for each
// target prefix to the paired test server URL.
func newRewriteClient(routes map[string]string) *http.Client {
	return &http.Client{
		Transport: &rewriteTransport{base: http.DefaultTransport, routes: routes},
	}
}

type rewriteTransport struct {
	base   http.RoundTripper
	routes map[string]string // target prefix -> test server URL
}

func (t *rewriteTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	origURL := req.URL.String()
	for prefix, server := range t.routes {
		if !strings.HasPrefix(origURL, prefix) {
			continue
		}
		parsed, err := req.URL.Parse(server + origURL[len(prefix):])
		if err != nil {
			return nil, err
		}
		newReq := req.Clone(req.Context())
		newReq.URL = parsed
		newReq.Host = parsed.Host
		return t.base.RoundTrip(newReq)
	}
	return t.base.RoundTrip(req)
}

// memCache is an in-memory Cache.
type memCache struct {
	mu      sync.Mutex
	entries map[string]ReverseResult
	reads   int
}

func newMemCache() *memCache {
	return &memCache{entries: make(map[string]ReverseResult)}
}

func (c *memCache) GetCachedGeocode(_ context.Context, key string, _ time.Duration) (*ReverseResult, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.reads++
	r, ok := c.entries[key]
	if !ok {
		return nil, false, nil
	}
	return &r, true, nil
}

func (c *memCache) SetCachedGeocode(_ context.Context, key string, res *ReverseResult) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = *res
	return nil
}

// stubProvider returns canned answers.
type stubProvider struct {
	name  string
	res   *ReverseResult
	err   error
	calls int
}

func (p *stubProvider) Name() string { return p.name }

func (p *stubProvider) Reverse(context.Context, float64, float64) (*ReverseResult, error) {
	p.calls++
	return p.res, p.err
}
