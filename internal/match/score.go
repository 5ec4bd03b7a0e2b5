package match

import (
	"fmt"
	"math"

	"github.com/sells-group/projectmerge/internal/model"
	"github.com/sells-group/projectmerge/internal/spatial"
	"github.com/sells-group/projectmerge/internal/textsim"
)

// MaxScore caps the total of all criteria.
const MaxScore = 100

// AmountTolerance is the relative difference under which two funding
// amounts are considered similar.
const AmountTolerance = 0.10

// Breakdown is the per-criterion scoring of one pair.
type Breakdown struct {
	Geo           int `json:"geo" yaml:"geo"`
	State         int `json:"state" yaml:"state"`
	FundingSource int `json:"funding_source" yaml:"funding_source"`
	Name          int `json:"name" yaml:"name"`
	Description   int `json:"description" yaml:"description"`
	Amount        int `json:"amount" yaml:"amount"`
	Agency        int `json:"agency" yaml:"agency"`

	// DistanceKm is +Inf when either record lacks coordinates.
	DistanceKm            float64  `json:"-" yaml:"-"`
	NameSimilarity        float64  `json:"name_similarity" yaml:"name_similarity"`
	DescriptionSimilarity float64  `json:"description_similarity" yaml:"description_similarity"`
	Reasons               []string `json:"reasons" yaml:"reasons"`
}

// Total sums the criteria, capped at MaxScore.
func (b Breakdown) Total() int {
	t := b.Geo + b.State + b.FundingSource + b.Name + b.Description + b.Amount + b.Agency
	if t > MaxScore {
		return MaxScore
	}
	return t
}

// HasDistance reports whether both records had coordinates.
func (b Breakdown) HasDistance() bool {
	return !math.IsInf(b.DistanceKm, 1)
}

// Features is a record with its vectors in the index's text space.
type Features struct {
	Project     *model.Project
	Name        textsim.Vector
	Description textsim.Vector
}

// Compare scores two records. Every criterion is symmetric in a and b.
func Compare(a, b Features) Breakdown {
	var bd Breakdown

	bd.DistanceKm = spatial.Distance(a.Project.Location, b.Project.Location)
	bd.Geo = geoPoints(bd.DistanceKm)
	if bd.Geo > 0 {
		bd.Reasons = append(bd.Reasons, fmt.Sprintf("Geographic distance <%gkm (%.2fkm)", geoTier(bd.DistanceKm), bd.DistanceKm))
	}

	if a.Project.StateKnown && b.Project.StateKnown && a.Project.State == b.Project.State {
		bd.State = 10
		bd.Reasons = append(bd.Reasons, "State match: "+a.Project.State)
	}

	fa, fb := a.Project.FundingSource, b.Project.FundingSource
	if fa == fb && (fa == model.FundingIRA || fa == model.FundingBIL) {
		bd.FundingSource = 5
		bd.Reasons = append(bd.Reasons, "Funding source match: "+string(fa))
	}

	bd.NameSimilarity = textsim.Cosine(a.Name, b.Name)
	bd.Name = namePoints(bd.NameSimilarity)
	if bd.Name > 0 {
		bd.Reasons = append(bd.Reasons, fmt.Sprintf("Project name %s similarity (%.1f%%)", level(bd.Name, 30, 20), bd.NameSimilarity*100))
	}

	bd.DescriptionSimilarity = textsim.Cosine(a.Description, b.Description)
	bd.Description = descriptionPoints(bd.DescriptionSimilarity)
	if bd.Description > 0 {
		bd.Reasons = append(bd.Reasons, fmt.Sprintf("Project description %s similarity (%.1f%%)", level(bd.Description, 15, 10), bd.DescriptionSimilarity*100))
	}

	if a.Project.Amount.WithinRatio(b.Project.Amount, AmountTolerance) {
		bd.Amount = 5
		lo, hi := a.Project.Amount.Cents, b.Project.Amount.Cents
		if lo > hi {
			lo, hi = hi, lo
		}
		bd.Reasons = append(bd.Reasons, fmt.Sprintf("Funding amount similar (ratio: %.2f)", float64(lo)/float64(hi)))
	}

	if a.Project.Agency != "" && a.Project.Agency == b.Project.Agency {
		bd.Agency = 5
		bd.Reasons = append(bd.Reasons, "Agency match: "+a.Project.Agency)
	}

	return bd
}

// distanceScale sets the resolution (1e-9 km) at which distances are
// compared against tier boundaries.
const distanceScale = 1e9

func roundDistance(km float64) float64 {
	if math.IsInf(km, 0) {
		return km
	}
	return math.Round(km*distanceScale) / distanceScale
}

func geoPoints(km float64) int {
	switch d := roundDistance(km); {
	case d < 1:
		return 40
	case d < 10:
		return 30
	case d < 50:
		return 15
	case d < 100:
		return 5
	default:
		return 0
	}
}

func geoTier(km float64) float64 {
	switch d := roundDistance(km); {
	case d < 1:
		return 1
	case d < 10:
		return 10
	case d < 50:
		return 50
	default:
		return 100
	}
}

func namePoints(cos float64) int {
	switch {
	case cos > 0.8:
		return 30
	case cos > 0.5:
		return 20
	case cos > 0.3:
		return 10
	default:
		return 0
	}
}

func descriptionPoints(cos float64) int {
	switch {
	case cos > 0.7:
		return 15
	case cos > 0.4:
		return 10
	case cos > 0.2:
		return 5
	default:
		return 0
	}
}

func level(points, high, medium int) string {
	switch {
	case points >= high:
		return "high"
	case points >= medium:
		return "medium"
	default:
		return "low"
	}
}
