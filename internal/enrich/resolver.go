// Package enrich backfills administrative fields of new records from
// their coordinates.
package enrich

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/projectmerge/internal/model"
	"github.com/sells-group/projectmerge/internal/normalize"
	"github.com/sells-group/projectmerge/internal/resilience"
	"github.com/sells-group/projectmerge/pkg/geocode"
)

// Defaults for Options.
const (
	DefaultConcurrency = 10
	DefaultTimeout     = 10 * time.Second
)

// Options configures a Resolver.
type Options struct {
	Concurrency int           // 0 means DefaultConcurrency
	Timeout     time.Duration // per lookup; 0 means DefaultTimeout
}

// GeocodeLookupError reports a failed lookup for one record. The record's
// fields are left as they were.
type GeocodeLookupError struct {
	ID       string
	Lat, Lon float64
	Err      error
}

func (e *GeocodeLookupError) Error() string {
	return fmt.Sprintf("enrich: lookup %s (%.5f,%.5f): %v", e.ID, e.Lat, e.Lon, e.Err)
}

func (e *GeocodeLookupError) Unwrap() error {
	return e.Err
}

// Stats counts lookup outcomes for one batch.
type Stats struct {
	Eligible int // records with coordinates and a missing field
	Filled   int // records that gained at least one field
	NotFound int
	Failed   int
	// Failures counts failed lookups by resilience class.
	Failures map[string]int
}

// Resolver fills missing district, state, city and county fields.
type Resolver struct {
	rev  geocode.Reverser
	opts Options
}

// NewResolver returns a Resolver over rev.
func NewResolver(rev geocode.Reverser, opts Options) *Resolver {
	if opts.Concurrency <= 0 {
		opts.Concurrency = DefaultConcurrency
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	return &Resolver{rev: rev, opts: opts}
}

type lookup struct {
	res *geocode.ReverseResult
	err error
}

// Eligible reports whether p has coordinates and lacks an administrative
// field a lookup could provide.
func Eligible(p *model.Project) bool {
	return p.HasLocation() && len(p.MissingAdminFields()) > 0
}

// Resolve looks up every eligible record once and fills its empty fields.
// Failures are logged and returned; they never stop the batch.
func (r *Resolver) Resolve(ctx context.Context, records []*model.Project) (Stats, []error) {
	stats := Stats{Failures: make(map[string]int)}
	slots := make([]*lookup, len(records))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.opts.Concurrency)
	for i, rec := range records {
		if !Eligible(rec) {
			continue
		}
		stats.Eligible++
		lat, lon := rec.Lat(), rec.Lon()
		g.Go(func() error {
			lctx, cancel := context.WithTimeout(gctx, r.opts.Timeout)
			defer cancel()
			res, err := r.rev.Reverse(lctx, lat, lon)
			slots[i] = &lookup{res: res, err: err}
			return nil
		})
	}
	_ = g.Wait()

	var errs []error
	for i, slot := range slots {
		if slot == nil {
			continue
		}
		rec := records[i]
		switch {
		case slot.err != nil:
			stats.Failed++
			stats.Failures[resilience.Classify(slot.err)]++
			lerr := &GeocodeLookupError{ID: rec.ID, Lat: rec.Lat(), Lon: rec.Lon(), Err: slot.err}
			zap.L().Warn("enrich: geocode lookup failed",
				zap.String("id", rec.ID),
				zap.String("name", rec.Name),
				zap.Error(slot.err),
			)
			errs = append(errs, lerr)
		case slot.res == nil || !slot.res.Found:
			stats.NotFound++
		default:
			if filled := Fill(rec, slot.res); len(filled) > 0 {
				stats.Filled++
				zap.L().Debug("enrich: filled fields",
					zap.String("id", rec.ID),
					zap.Strings("fields", filled),
					zap.String("source", slot.res.Source),
				)
			}
		}
	}
	return stats, errs
}

// Fill copies looked-up values into empty fields of p and returns the
// names of the fields it set. Populated fields are never changed.
func Fill(p *model.Project, res *geocode.ReverseResult) []string {
	var filled []string
	if p.District == "" && res.District != "" {
		p.District = res.District
		filled = append(filled, "district")
	}
	if p.State == "" {
		if code, known := normalize.State(res.State); known {
			p.State, p.StateKnown = code, true
			filled = append(filled, "state")
		}
	}
	if p.City == "" && res.City != "" {
		p.City = displayName(res.City)
		filled = append(filled, "city")
	}
	if p.County == "" && res.County != "" {
		p.County = displayName(res.County)
		filled = append(filled, "county")
	}
	return filled
}

// displayName title-cases names that arrive in all capitals.
func displayName(s string) string {
	s = strings.TrimSpace(s)
	if strings.ToUpper(s) == s {
		return normalize.Title(s)
	}
	return s
}
