package decide

import (
	"strconv"

	"github.com/sells-group/projectmerge/internal/model"
)

// Column names of the canonical file.
const (
	ColID           = "Unique ID"
	ColDataSource   = "Data Source"
	ColName         = "Project Name"
	ColDescription  = "Project Description"
	ColLocationType = "Project Location Type"
	ColLatitude     = "Latitude"
	ColLongitude    = "Longitude"
	ColState        = "State"
	ColCity         = "City"
	ColCounty       = "County"
	ColTribe        = "Tribe"
	ColDistrict     = "118th CD"
	ColAmount       = "Funding Amount"
	ColFunding      = "Funding Source"
	ColAgency       = "Agency Name"
	ColBureau       = "Bureau Name"
	ColCategory     = "Category"
	ColSubcategory  = "Subcategory"
	ColProgramName  = "Program Name"
	ColProgramID    = "Program ID"
	ColProgramType  = "Program Type"
	ColLink         = "Link"
	ColReviewStatus = "Review Status"
)

// Location type labels written for new rows.
const (
	LocationPrecise     = "Latitude and Longitude"
	LocationApproximate = "Approximate"
)

// FormatCoordinate renders a coordinate with the shortest exact form.
func FormatCoordinate(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// Columns renders the canonical columns a record carries. Only non-empty
// values are included.
func Columns(p *model.Project) map[string]string {
	cols := map[string]string{
		ColID:          p.ID,
		ColName:        p.Name,
		ColDescription: p.Description,
		ColState:       p.State,
		ColCity:        p.City,
		ColCounty:      p.County,
		ColTribe:       p.Tribe,
		ColDistrict:    p.District,
		ColAmount:      p.Amount.String(),
		ColAgency:      p.Agency,
		ColBureau:      p.Bureau,
		ColCategory:    p.Category,
		ColSubcategory: p.Subcategory,
		ColProgramName: p.ProgramName,
		ColProgramID:   p.ProgramID,
		ColLink:        CleanLink(p.Link),
	}
	if p.FundingSource == model.FundingIRA || p.FundingSource == model.FundingBIL {
		cols[ColFunding] = string(p.FundingSource)
	}
	if p.HasLocation() {
		cols[ColLatitude] = FormatCoordinate(p.Lat())
		cols[ColLongitude] = FormatCoordinate(p.Lon())
		if p.Precision == model.PrecisionApproximate {
			cols[ColLocationType] = LocationApproximate
		} else {
			cols[ColLocationType] = LocationPrecise
		}
	}
	if p.Status != "" {
		cols[ColReviewStatus] = string(p.Status)
	}
	for k, v := range cols {
		if v == "" {
			delete(cols, k)
		}
	}
	return cols
}
