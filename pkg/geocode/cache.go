package geocode

import (
	"context"
	"math"
	"strconv"
	"time"
)

// Cache stores reverse geocoding answers keyed by CacheKey.
type Cache interface {
	// GetCachedGeocode returns an entry no older than maxAge (zero means
	// any age). ok is false on a miss.
	GetCachedGeocode(ctx context.Context, key string, maxAge time.Duration) (res *ReverseResult, ok bool, err error)
	SetCachedGeocode(ctx context.Context, key string, res *ReverseResult) error
}

// CacheKey rounds a coordinate to 5 decimals (about a meter).
func CacheKey(lat, lon float64) string {
	return strconv.FormatFloat(round5(lat), 'f', 5, 64) + "," + strconv.FormatFloat(round5(lon), 'f', 5, 64)
}

func round5(v float64) float64 {
	r := math.Round(v*1e5) / 1e5
	if r == 0 {
		return 0 // no "-0.00000"
	}
	return r
}
