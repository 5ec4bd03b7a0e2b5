package pipeline

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/sells-group/projectmerge/internal/decide"
	"github.com/sells-group/projectmerge/internal/match"
	"github.com/sells-group/projectmerge/internal/model"
)

// Review columns appended after the canonical header.
var reviewColumns = []string{
	"matchedId",
	"matchScore",
	"geoScore",
	"stateScore",
	"fundingSourceScore",
	"nameScore",
	"descriptionScore",
	"amountScore",
	"agencyScore",
	"distanceKm",
	"matchReasons",
	"topMatches",
}

// canonicalRows renders the canonical records in their original order,
// followed by the new records in batch order.
func canonicalRows(snap *snapshot, canonical, news []*model.Project) [][]string {
	header := snap.outputHeader()
	rows := make([][]string, 0, len(canonical)+len(news))
	for _, rec := range canonical {
		row := make([]string, len(header))
		for i, h := range header {
			row[i] = rec.Raw[h]
		}
		if !snap.hasStatus {
			row[len(row)-1] = string(rec.Status)
		}
		rows = append(rows, row)
	}
	for _, rec := range news {
		rows = append(rows, recordRow(header, rec, model.StatusNew))
	}
	return rows
}

// recordRow renders an incoming record in the canonical layout. Columns
// the record does not carry are left empty.
func recordRow(header []string, rec *model.Project, status model.ReviewStatus) []string {
	cols := decide.Columns(rec)
	cols[decide.ColDataSource] = strings.ToUpper(rec.Source.Schema)
	cols[decide.ColReviewStatus] = string(status)
	row := make([]string, len(header))
	for i, h := range header {
		row[i] = cols[h]
	}
	return row
}

func reviewHeader(canonical []string) []string {
	out := make([]string, 0, len(canonical)+len(reviewColumns))
	out = append(out, canonical...)
	return append(out, reviewColumns...)
}

// reviewRows renders review records with the best match's breakdown.
func reviewRows(header []string, reviews []decide.Review) [][]string {
	rows := make([][]string, 0, len(reviews))
	for _, rv := range reviews {
		row := recordRow(header, rv.Incoming, model.StatusNeedsReview)
		rows = append(rows, append(row, matchColumns(rv.Match)...))
	}
	return rows
}

func matchColumns(r match.Result) []string {
	out := make([]string, len(reviewColumns))
	if r.Best == nil {
		return out
	}
	bd := r.Best.Breakdown
	out[0] = r.Best.Candidate.ID
	out[1] = strconv.Itoa(r.Best.Score)
	out[2] = strconv.Itoa(bd.Geo)
	out[3] = strconv.Itoa(bd.State)
	out[4] = strconv.Itoa(bd.FundingSource)
	out[5] = strconv.Itoa(bd.Name)
	out[6] = strconv.Itoa(bd.Description)
	out[7] = strconv.Itoa(bd.Amount)
	out[8] = strconv.Itoa(bd.Agency)
	if bd.HasDistance() {
		out[9] = strconv.FormatFloat(bd.DistanceKm, 'f', 3, 64)
	}
	out[10] = strings.Join(bd.Reasons, "; ")
	out[11] = topMatches(r.Top)
	return out
}

// topMatches renders ranked candidates as "id (score%)".
func topMatches(top []match.Pair) string {
	parts := make([]string, len(top))
	for i, p := range top {
		parts[i] = fmt.Sprintf("%s (%d%%)", p.Candidate.ID, p.Score)
	}
	return strings.Join(parts, "; ")
}
