package decide

import (
	"regexp"
	"strings"

	"go.uber.org/zap"

	"github.com/sells-group/projectmerge/internal/model"
	"github.com/sells-group/projectmerge/internal/normalize"
)

// mergeColumns lists the canonical columns a duplicate may fill, in the
// order they are reported.
var mergeColumns = []string{
	ColDescription,
	ColLatitude,
	ColLongitude,
	ColLocationType,
	ColState,
	ColCity,
	ColCounty,
	ColTribe,
	ColDistrict,
	ColAmount,
	ColFunding,
	ColAgency,
	ColBureau,
	ColCategory,
	ColSubcategory,
	ColProgramName,
	ColProgramID,
	ColLink,
}

// GapFill copies incoming values into canonical columns that are empty.
// Populated canonical values always win. Only columns present in the
// canonical row are considered, so the canonical schema is preserved.
// Coordinates fill as a pair. It returns the filled columns.
func GapFill(canon, incoming *model.Project) []string {
	if canon.Raw == nil {
		return nil
	}
	values := Columns(incoming)
	coordsFree := !canon.HasLocation() && absentCoords(canon.Raw[ColLatitude], canon.Raw[ColLongitude])

	var filled []string
	for _, col := range mergeColumns {
		cur, inSchema := canon.Raw[col]
		v := values[col]
		isCoord := col == ColLatitude || col == ColLongitude
		if !inSchema || v == "" || (!blank(cur) && !(isCoord && coordsFree)) {
			continue
		}
		if (col == ColLatitude || col == ColLongitude || col == ColLocationType) && !coordsFree {
			continue
		}
		canon.Raw[col] = v
		applyColumn(canon, incoming, col)
		filled = append(filled, col)
	}
	return filled
}

func blank(s string) bool {
	return strings.TrimSpace(s) == ""
}

// absentCoords reports whether a raw pair carries no location: both cells
// empty or the (0,0) placeholder.
func absentCoords(lat, lon string) bool {
	p, err := normalize.Location(lat, lon)
	return p == nil && err == nil
}

// applyColumn keeps the typed fields in step with a filled raw column.
func applyColumn(canon, in *model.Project, col string) {
	switch col {
	case ColDescription:
		canon.Description, canon.DescriptionNorm = in.Description, in.DescriptionNorm
	case ColLatitude, ColLongitude:
		if in.HasLocation() {
			canon.Location = model.NewPoint(in.Lat(), in.Lon())
			canon.Precision = in.Precision
		}
	case ColLocationType:
		// Written alongside the coordinates.
	case ColState:
		canon.State, canon.StateKnown = in.State, in.StateKnown
	case ColCity:
		canon.City = in.City
	case ColCounty:
		canon.County = in.County
	case ColTribe:
		canon.Tribe = in.Tribe
	case ColDistrict:
		canon.District = in.District
	case ColAmount:
		canon.Amount = in.Amount
	case ColFunding:
		canon.FundingSource = in.FundingSource
	case ColAgency:
		canon.Agency = in.Agency
	case ColBureau:
		canon.Bureau = in.Bureau
	case ColCategory:
		canon.Category = in.Category
	case ColSubcategory:
		canon.Subcategory = in.Subcategory
	case ColProgramName:
		canon.ProgramName = in.ProgramName
	case ColProgramID:
		canon.ProgramID = in.ProgramID
	case ColLink:
		canon.Link = in.Link
	default:
		zap.L().Debug("merge: unmapped column", zap.String("column", col))
	}
}

var hrefRe = regexp.MustCompile(`href="([^"]+)"`)

// CleanLink extracts the target of an HTML anchor, or returns the trimmed
// value unchanged.
func CleanLink(link string) string {
	if m := hrefRe.FindStringSubmatch(link); m != nil {
		return m[1]
	}
	return strings.TrimSpace(link)
}
