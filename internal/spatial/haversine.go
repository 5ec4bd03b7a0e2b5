// Package spatial provides great-circle distance and a grid index over
// lon/lat points.
package spatial

import (
	"math"

	"github.com/twpayne/go-geom"
)

// EarthRadiusKm is the mean Earth radius used for haversine distances.
const EarthRadiusKm = 6371.0

// HaversineKm returns the great-circle distance between two lat/lon pairs
// in kilometers.
func HaversineKm(lat1, lon1, lat2, lon2 float64) float64 {
	phi1 := lat1 * math.Pi / 180
	phi2 := lat2 * math.Pi / 180
	dPhi := (lat2 - lat1) * math.Pi / 180
	dLambda := (lon2 - lon1) * math.Pi / 180

	a := math.Sin(dPhi/2)*math.Sin(dPhi/2) +
		math.Cos(phi1)*math.Cos(phi2)*math.Sin(dLambda/2)*math.Sin(dLambda/2)
	if a > 1 {
		a = 1
	}
	return 2 * EarthRadiusKm * math.Asin(math.Sqrt(a))
}

// Distance returns the haversine distance between two lon/lat points, or
// +Inf when either is nil or empty.
func Distance(a, b *geom.Point) float64 {
	if a == nil || b == nil || a.Empty() || b.Empty() {
		return math.Inf(1)
	}
	return HaversineKm(a.Y(), a.X(), b.Y(), b.X())
}

// KmPerDegreeLat is the length of one degree of latitude on the sphere.
const KmPerDegreeLat = EarthRadiusKm * math.Pi / 180

// OffsetNorth returns the latitude reached by moving km north of lat along
// a meridian. Tests use it to place points at exact distances.
func OffsetNorth(lat, km float64) float64 {
	return lat + km/KmPerDegreeLat
}
