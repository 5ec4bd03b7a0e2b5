// Package model defines the record types shared by every pipeline stage.
package model

import (
	"strings"
	"unicode"

	"github.com/twpayne/go-geom"
)

// FundingSource identifies the appropriation a project was funded under.
type FundingSource string

const (
	FundingIRA   FundingSource = "IRA"
	FundingBIL   FundingSource = "BIL"
	FundingOther FundingSource = "other"
)

// ParseFundingSource maps free-form funding labels ("IRA Section 50121",
// "Bipartisan Infrastructure Law") onto the enumerated sources.
func ParseFundingSource(s string) FundingSource {
	switch {
	case s == "":
		return FundingOther
	case containsFold(s, "IRA"), containsFold(s, "inflation reduction"):
		return FundingIRA
	case containsFold(s, "BIL"), containsFold(s, "IIJA"), containsFold(s, "bipartisan infrastructure"):
		return FundingBIL
	default:
		return FundingOther
	}
}

// ReviewStatus is the decision attached to a record in the output files.
type ReviewStatus string

const (
	StatusConfirmed   ReviewStatus = "confirmed"
	StatusNeedsReview ReviewStatus = "needs-review"
	StatusNew         ReviewStatus = "new"
)

// LocationPrecision describes how trustworthy the coordinates are.
type LocationPrecision string

const (
	PrecisionNone        LocationPrecision = "none"
	PrecisionApproximate LocationPrecision = "approximate" // agency HQ or recipient address
	PrecisionPrecise     LocationPrecision = "precise"
)

// Provenance records where a record came from.
type Provenance struct {
	Schema string `json:"schema"`
	File   string `json:"file"`
	Row    int    `json:"row"` // 1-based data row, header excluded
}

// Project is the canonical representation of one funded project.
type Project struct {
	ID string `json:"id"`

	Name            string `json:"name"`
	NameNorm        string `json:"name_norm"`
	Description     string `json:"description,omitempty"`
	DescriptionNorm string `json:"description_norm,omitempty"`

	FundingSource FundingSource `json:"funding_source"`
	Amount        Amount        `json:"amount"`

	Agency      string `json:"agency"`
	Bureau      string `json:"bureau,omitempty"`
	ProgramName string `json:"program_name,omitempty"`
	ProgramID   string `json:"program_id,omitempty"`
	Category    string `json:"category,omitempty"`
	Subcategory string `json:"subcategory,omitempty"`

	// State is the two-letter code when StateKnown, otherwise the raw value.
	State      string `json:"state,omitempty"`
	StateKnown bool   `json:"state_known"`
	City       string `json:"city,omitempty"`
	County     string `json:"county,omitempty"`
	Tribe      string `json:"tribe,omitempty"`
	District   string `json:"district,omitempty"`

	// Location is nil when the record carries no usable coordinates.
	// X is longitude, Y is latitude.
	Location  *geom.Point       `json:"-"`
	Precision LocationPrecision `json:"precision"`

	Link   string       `json:"link,omitempty"`
	Status ReviewStatus `json:"status"`
	Source Provenance   `json:"source"`

	// Raw holds the originating row keyed by (trimmed) column name.
	Raw map[string]string `json:"-"`
}

// NewPoint builds a lon/lat point.
func NewPoint(lat, lon float64) *geom.Point {
	return geom.NewPointFlat(geom.XY, []float64{lon, lat})
}

// HasLocation reports whether the record has usable coordinates.
func (p *Project) HasLocation() bool {
	return p.Location != nil && !p.Location.Empty()
}

// Lat returns the latitude, or 0 when absent.
func (p *Project) Lat() float64 {
	if !p.HasLocation() {
		return 0
	}
	return p.Location.Y()
}

// Lon returns the longitude, or 0 when absent.
func (p *Project) Lon() float64 {
	if !p.HasLocation() {
		return 0
	}
	return p.Location.X()
}

// MissingAdminFields lists the administrative fields a geocoder could fill.
func (p *Project) MissingAdminFields() []string {
	var missing []string
	if p.District == "" {
		missing = append(missing, "district")
	}
	if p.State == "" {
		missing = append(missing, "state")
	}
	if p.City == "" {
		missing = append(missing, "city")
	}
	if p.County == "" {
		missing = append(missing, "county")
	}
	return missing
}

// Clone returns a copy safe to mutate independently of p.
func (p *Project) Clone() *Project {
	c := *p
	if p.Location != nil {
		c.Location = NewPoint(p.Location.Y(), p.Location.X())
	}
	if p.Raw != nil {
		c.Raw = make(map[string]string, len(p.Raw))
		for k, v := range p.Raw {
			c.Raw[k] = v
		}
	}
	return &c
}

func containsFold(s, sub string) bool {
	if len(sub) <= 3 && strings.ToUpper(sub) == sub {
		// Short acronyms must stand alone: "IRA" must not match "SPIRAL".
		for _, f := range strings.FieldsFunc(s, func(r rune) bool {
			return !unicode.IsLetter(r) && !unicode.IsDigit(r)
		}) {
			if f == sub {
				return true
			}
		}
		return false
	}
	return strings.Contains(strings.ToLower(s), strings.ToLower(sub))
}
