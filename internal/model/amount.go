package model

import (
	"math"
	"strconv"
)

// Amount is a currency value in cents. The zero value is an unknown amount,
// which is distinct from a known amount of zero.
type Amount struct {
	Cents int64 `json:"cents"`
	Known bool  `json:"known"`
}

// UnknownAmount is returned for empty or unparseable currency fields.
var UnknownAmount = Amount{}

// Dollars builds a known amount from a dollar value.
func Dollars(d float64) Amount {
	return Amount{Cents: int64(math.Round(d * 100)), Known: true}
}

// Float returns the amount in dollars.
func (a Amount) Float() float64 {
	return float64(a.Cents) / 100
}

// String formats known amounts without trailing zero cents; unknown is "".
func (a Amount) String() string {
	if !a.Known {
		return ""
	}
	if a.Cents%100 == 0 {
		return strconv.FormatInt(a.Cents/100, 10)
	}
	return strconv.FormatFloat(a.Float(), 'f', 2, 64)
}

// WithinRatio reports whether both amounts are known, not both zero, and
// differ by strictly less than ratio relative to the larger one.
func (a Amount) WithinRatio(b Amount, ratio float64) bool {
	if !a.Known || !b.Known {
		return false
	}
	hi, lo := a.Cents, b.Cents
	if lo > hi {
		hi, lo = lo, hi
	}
	if hi == 0 {
		return false
	}
	return float64(lo)/float64(hi) > 1-ratio
}
