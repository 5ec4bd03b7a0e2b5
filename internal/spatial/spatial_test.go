package spatial

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twpayne/go-geom"
)

func pt(lat, lon float64) *geom.Point {
	return geom.NewPointFlat(geom.XY, []float64{lon, lat})
}

func TestHaversineKm_Known(t *testing.T) {
	// Philadelphia to New York City, roughly 130 km.
	d := HaversineKm(39.9526, -75.1652, 40.7128, -74.0060)
	assert.InDelta(t, 129.6, d, 1.0)

	assert.Zero(t, HaversineKm(40, -75, 40, -75))
}

func TestHaversineKm_Symmetric(t *testing.T) {
	a := HaversineKm(40.0, -75.0, 40.001, -75.001)
	b := HaversineKm(40.001, -75.001, 40.0, -75.0)
	assert.Equal(t, a, b)
}

func TestOffsetNorth(t *testing.T) {
	lat := OffsetNorth(40, 1.0)
	assert.InDelta(t, 1.0, HaversineKm(40, -75, lat, -75), 1e-9)

	lat = OffsetNorth(40, 0.999)
	assert.InDelta(t, 0.999, HaversineKm(40, -75, lat, -75), 1e-9)
}

func TestDistance_MissingIsInf(t *testing.T) {
	assert.True(t, math.IsInf(Distance(nil, pt(1, 1)), 1))
	assert.True(t, math.IsInf(Distance(pt(1, 1), nil), 1))
	assert.InDelta(t, 0, Distance(pt(1, 1), pt(1, 1)), 1e-12)
}

func TestGrid_Within(t *testing.T) {
	g := NewGrid(0)
	g.Insert(0, pt(40.0, -75.0))
	g.Insert(1, pt(40.5, -75.0))  // ~55.6 km
	g.Insert(2, pt(41.5, -75.0))  // ~166 km
	g.Insert(3, pt(40.0, -74.99)) // ~0.85 km
	g.Insert(4, nil)
	require.Equal(t, 4, g.Len())

	got := g.Within(pt(40.0, -75.0), 100, 0)
	require.Len(t, got, 3)
	assert.Equal(t, 0, got[0].ID)
	assert.Equal(t, 3, got[1].ID)
	assert.Equal(t, 1, got[2].ID)
	assert.InDelta(t, 55.6, got[2].DistanceKm, 0.5)
}

func TestGrid_WithinMaxResults(t *testing.T) {
	g := NewGrid(1)
	for i := 0; i < 10; i++ {
		g.Insert(i, pt(40.0+float64(i)*0.01, -75.0))
	}
	got := g.Within(pt(40.0, -75.0), 100, 3)
	require.Len(t, got, 3)
	assert.Equal(t, []int{0, 1, 2}, []int{got[0].ID, got[1].ID, got[2].ID})
}

func TestGrid_WithinTiesBrokenByID(t *testing.T) {
	g := NewGrid(1)
	g.Insert(7, pt(40.1, -75.0))
	g.Insert(2, pt(40.1, -75.0))
	got := g.Within(pt(40.0, -75.0), 100, 0)
	require.Len(t, got, 2)
	assert.Equal(t, 2, got[0].ID)
	assert.Equal(t, 7, got[1].ID)
}

func TestGrid_CellBoundary(t *testing.T) {
	g := NewGrid(1)
	g.Insert(0, pt(40.999, -75.0))
	g.Insert(1, pt(41.001, -75.0))
	got := g.Within(pt(41.0, -75.0), 1, 0)
	assert.Len(t, got, 2)
}

func TestGrid_Antimeridian(t *testing.T) {
	g := NewGrid(1)
	g.Insert(0, pt(52.0, 179.9))
	g.Insert(1, pt(52.0, -179.9))
	g.Insert(2, pt(52.0, 170.0))

	got := g.Within(pt(52.0, 179.95), 100, 0)
	ids := make([]int, 0, len(got))
	for _, n := range got {
		ids = append(ids, n.ID)
	}
	assert.ElementsMatch(t, []int{0, 1}, ids)
}

func TestGrid_NearPole(t *testing.T) {
	g := NewGrid(1)
	g.Insert(0, pt(89.9, 0))
	g.Insert(1, pt(89.9, 180))
	got := g.Within(pt(89.95, 90), 100, 0)
	assert.Len(t, got, 2)
}

func TestGrid_EmptyQuery(t *testing.T) {
	g := NewGrid(1)
	assert.Nil(t, g.Within(pt(0, 0), 100, 0))
	g.Insert(0, pt(1, 1))
	assert.Nil(t, g.Within(nil, 100, 0))
}

func TestQueryBounds_CoversRadius(t *testing.T) {
	bounds := QueryBounds(pt(40, -75), 100)
	require.Len(t, bounds, 1)
	b := bounds[0]
	assert.Less(t, b.Min(1), 40-0.89)
	assert.Greater(t, b.Max(1), 40+0.89)
	assert.Less(t, b.Min(0), -76.1)
	assert.Greater(t, b.Max(0), -73.9)
}
