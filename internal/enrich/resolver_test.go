package enrich

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/projectmerge/internal/model"
	"github.com/sells-group/projectmerge/internal/resilience"
	"github.com/sells-group/projectmerge/pkg/geocode"
)

type reverserFunc func(ctx context.Context, lat, lon float64) (*geocode.ReverseResult, error)

func (f reverserFunc) Reverse(ctx context.Context, lat, lon float64) (*geocode.ReverseResult, error) {
	return f(ctx, lat, lon)
}

var philly = &geocode.ReverseResult{
	State: "PA", County: "Philadelphia County", City: "Philadelphia", District: "PA-03",
	Source: "census", Found: true,
}

func located(id string) *model.Project {
	return &model.Project{ID: id, Name: id, Location: model.NewPoint(39.95, -75.16)}
}

func TestResolve_FillsEmptyFields(t *testing.T) {
	rec := located("A")
	rec.City = "Manayunk"

	r := NewResolver(reverserFunc(func(context.Context, float64, float64) (*geocode.ReverseResult, error) {
		return philly, nil
	}), Options{})

	stats, errs := r.Resolve(context.Background(), []*model.Project{rec})

	assert.Empty(t, errs)
	assert.Equal(t, 1, stats.Eligible)
	assert.Equal(t, 1, stats.Filled)
	assert.Equal(t, "PA", rec.State)
	assert.True(t, rec.StateKnown)
	assert.Equal(t, "Philadelphia County", rec.County)
	assert.Equal(t, "PA-03", rec.District)
	assert.Equal(t, "Manayunk", rec.City, "populated fields are never overwritten")
}

func TestResolve_SkipsIneligible(t *testing.T) {
	var calls atomic.Int32
	r := NewResolver(reverserFunc(func(context.Context, float64, float64) (*geocode.ReverseResult, error) {
		calls.Add(1)
		return philly, nil
	}), Options{})

	noCoords := &model.Project{ID: "B", Name: "B"}
	complete := located("C")
	complete.State, complete.City, complete.County, complete.District = "PA", "X", "Y", "PA-01"

	stats, errs := r.Resolve(context.Background(), []*model.Project{noCoords, complete})
	assert.Empty(t, errs)
	assert.Zero(t, stats.Eligible)
	assert.Zero(t, calls.Load())
	assert.Empty(t, noCoords.State)
}

func TestResolve_Timeout(t *testing.T) {
	r := NewResolver(reverserFunc(func(ctx context.Context, _, _ float64) (*geocode.ReverseResult, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}), Options{Timeout: 20 * time.Millisecond})

	rec := located("slow")
	stats, errs := r.Resolve(context.Background(), []*model.Project{rec})

	require.Len(t, errs, 1)
	var lerr *GeocodeLookupError
	require.True(t, errors.As(errs[0], &lerr))
	assert.Equal(t, "slow", lerr.ID)
	assert.ErrorIs(t, errs[0], context.DeadlineExceeded)
	assert.Equal(t, 1, stats.Failed)
	assert.Equal(t, 1, stats.Failures[resilience.ClassTimeout])
	assert.Empty(t, rec.State)
	assert.Empty(t, rec.County)
}

func TestResolve_FailureDoesNotAbortBatch(t *testing.T) {
	r := NewResolver(reverserFunc(func(_ context.Context, lat, _ float64) (*geocode.ReverseResult, error) {
		if lat > 40 {
			return nil, errors.New("census down")
		}
		return philly, nil
	}), Options{Concurrency: 2})

	bad := &model.Project{ID: "bad", Name: "bad", Location: model.NewPoint(41, -75)}
	recs := []*model.Project{located("1"), bad, located("2"), located("3")}

	stats, errs := r.Resolve(context.Background(), recs)

	assert.Len(t, errs, 1)
	assert.Equal(t, 4, stats.Eligible)
	assert.Equal(t, 3, stats.Filled)
	assert.Equal(t, 1, stats.Failures[resilience.ClassPermanent])
	for _, id := range []int{0, 2, 3} {
		assert.Equal(t, "PA", recs[id].State)
	}
	assert.Empty(t, bad.State)
}

func TestResolve_NotFound(t *testing.T) {
	r := NewResolver(reverserFunc(func(context.Context, float64, float64) (*geocode.ReverseResult, error) {
		return &geocode.ReverseResult{Source: "census"}, nil
	}), Options{})
	stats, errs := r.Resolve(context.Background(), []*model.Project{located("sea")})
	assert.Empty(t, errs)
	assert.Equal(t, 1, stats.NotFound)
	assert.Zero(t, stats.Filled)
}

func TestResolve_BoundedConcurrency(t *testing.T) {
	var mu sync.Mutex
	var inFlight, peak int
	r := NewResolver(reverserFunc(func(context.Context, float64, float64) (*geocode.ReverseResult, error) {
		mu.Lock()
		inFlight++
		if inFlight > peak {
			peak = inFlight
		}
		mu.Unlock()
		time.Sleep(5 * time.Millisecond)
		mu.Lock()
		inFlight--
		mu.Unlock()
		return philly, nil
	}), Options{Concurrency: 3})

	recs := make([]*model.Project, 20)
	for i := range recs {
		recs[i] = located("r")
	}
	_, errs := r.Resolve(context.Background(), recs)
	assert.Empty(t, errs)
	assert.LessOrEqual(t, peak, 3)
}

func TestFill_UnknownStateAndCaps(t *testing.T) {
	p := located("x")
	filled := Fill(p, &geocode.ReverseResult{State: "Ontario", City: "SAN JUAN", County: "Bexar County", Found: true})
	assert.Equal(t, []string{"city", "county"}, filled)
	assert.Empty(t, p.State)
	assert.False(t, p.StateKnown)
	assert.Equal(t, "San Juan", p.City)
	assert.Equal(t, "Bexar County", p.County)
}
