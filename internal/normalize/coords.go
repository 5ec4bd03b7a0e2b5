package normalize

import (
	"math"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"

	"github.com/sells-group/projectmerge/internal/model"
)

var (
	errNotNumeric  = eris.New("not numeric")
	errOutOfRange  = eris.New("out of range")
	errHalfPresent = eris.New("only one of latitude and longitude present")
)

// Coordinate parses a single coordinate value. ok is false for empty input.
func Coordinate(raw string) (v float64, ok bool, err error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0, false, nil
	}
	v, err = strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false, errNotNumeric
	}
	return v, true, nil
}

// Location parses a latitude/longitude pair into a point. A nil point with a
// nil error means the pair is absent (both empty, or the (0,0) placeholder).
// A non-nil error means a value is present but unusable.
func Location(rawLat, rawLon string) (*geom.Point, error) {
	lat, latOK, err := Coordinate(rawLat)
	if err != nil {
		return nil, &FieldError{Field: "latitude", Value: rawLat, Err: err}
	}
	lon, lonOK, err := Coordinate(rawLon)
	if err != nil {
		return nil, &FieldError{Field: "longitude", Value: rawLon, Err: err}
	}
	switch {
	case !latOK && !lonOK:
		return nil, nil
	case latOK != lonOK:
		return nil, &FieldError{Field: "latitude", Value: rawLat + "," + rawLon, Err: errHalfPresent}
	}
	if lat == 0 && lon == 0 {
		return nil, nil
	}
	if lat < -90 || lat > 90 {
		return nil, &FieldError{Field: "latitude", Value: rawLat, Err: errOutOfRange}
	}
	if lon < -180 || lon > 180 {
		return nil, &FieldError{Field: "longitude", Value: rawLon, Err: errOutOfRange}
	}
	return model.NewPoint(lat, lon), nil
}
