package spatial

import (
	"math"
	"sort"

	"github.com/twpayne/go-geom"
)

// DefaultCellDegrees is the default grid cell edge.
const DefaultCellDegrees = 1.0

// Neighbor is a point returned by a radius query.
type Neighbor struct {
	ID         int
	DistanceKm float64
}

type cellKey struct {
	lat, lon int
}

type entry struct {
	id  int
	lat float64
	lon float64
}

// Grid buckets points into fixed-size lon/lat cells. Inserting n points is
// O(n); a radius query visits only the cells overlapping the query
// envelope. A Grid is not safe for concurrent Insert, but concurrent
// queries on a fully built Grid are safe.
type Grid struct {
	cell  float64
	cells map[cellKey][]entry
	size  int
}

// NewGrid returns an empty grid. A non-positive cell size uses
// DefaultCellDegrees.
func NewGrid(cellDegrees float64) *Grid {
	if cellDegrees <= 0 {
		cellDegrees = DefaultCellDegrees
	}
	return &Grid{cell: cellDegrees, cells: make(map[cellKey][]entry)}
}

// Len returns the number of inserted points.
func (g *Grid) Len() int { return g.size }

// Insert adds a point under id. Nil or empty points are ignored.
func (g *Grid) Insert(id int, pt *geom.Point) {
	if pt == nil || pt.Empty() {
		return
	}
	lat, lon := pt.Y(), pt.X()
	k := g.key(lat, lon)
	g.cells[k] = append(g.cells[k], entry{id: id, lat: lat, lon: lon})
	g.size++
}

func (g *Grid) key(lat, lon float64) cellKey {
	return cellKey{
		lat: int(math.Floor(lat / g.cell)),
		lon: int(math.Floor(lon / g.cell)),
	}
}

// QueryBounds returns the lon/lat envelopes that cover every point within
// radiusKm of center. Envelopes crossing the antimeridian are split in two.
func QueryBounds(center *geom.Point, radiusKm float64) []*geom.Bounds {
	lat, lon := center.Y(), center.X()
	dLat := radiusKm/KmPerDegreeLat + 1e-9
	minLat := math.Max(lat-dLat, -90)
	maxLat := math.Min(lat+dLat, 90)

	// Longitude span is widest at the envelope edge nearest a pole.
	edge := math.Max(math.Abs(minLat), math.Abs(maxLat))
	cosEdge := math.Cos(edge * math.Pi / 180)
	if maxLat >= 90 || minLat <= -90 || cosEdge < 1e-9 || dLat/cosEdge >= 180 {
		return []*geom.Bounds{geom.NewBounds(geom.XY).Set(-180, minLat, 180, maxLat)}
	}
	dLon := dLat / cosEdge

	minLon, maxLon := lon-dLon, lon+dLon
	switch {
	case minLon < -180:
		return []*geom.Bounds{
			geom.NewBounds(geom.XY).Set(-180, minLat, maxLon, maxLat),
			geom.NewBounds(geom.XY).Set(minLon+360, minLat, 180, maxLat),
		}
	case maxLon > 180:
		return []*geom.Bounds{
			geom.NewBounds(geom.XY).Set(minLon, minLat, 180, maxLat),
			geom.NewBounds(geom.XY).Set(-180, minLat, maxLon-360, maxLat),
		}
	default:
		return []*geom.Bounds{geom.NewBounds(geom.XY).Set(minLon, minLat, maxLon, maxLat)}
	}
}

// Within returns all points within radiusKm (inclusive) of center, sorted
// by distance then id. maxResults <= 0 means no limit.
func (g *Grid) Within(center *geom.Point, radiusKm float64, maxResults int) []Neighbor {
	if center == nil || center.Empty() || g.size == 0 {
		return nil
	}
	lat, lon := center.Y(), center.X()

	// Split envelopes can share a cell, so dedupe by id rather than cell.
	added := make(map[int]bool)
	var out []Neighbor
	for _, b := range QueryBounds(center, radiusKm) {
		lo := g.key(b.Min(1), b.Min(0))
		hi := g.key(b.Max(1), b.Max(0))
		for cy := lo.lat; cy <= hi.lat; cy++ {
			for cx := lo.lon; cx <= hi.lon; cx++ {
				for _, e := range g.cells[cellKey{lat: cy, lon: cx}] {
					if added[e.id] || !b.OverlapsPoint(geom.XY, geom.Coord{e.lon, e.lat}) {
						continue
					}
					d := HaversineKm(lat, lon, e.lat, e.lon)
					if d <= radiusKm {
						added[e.id] = true
						out = append(out, Neighbor{ID: e.id, DistanceKm: d})
					}
				}
			}
		}
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].DistanceKm != out[j].DistanceKm {
			return out[i].DistanceKm < out[j].DistanceKm
		}
		return out[i].ID < out[j].ID
	})
	if maxResults > 0 && len(out) > maxResults {
		out = out[:maxResults]
	}
	return out
}
