package decide

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/projectmerge/internal/match"
	"github.com/sells-group/projectmerge/internal/model"
)

func TestClassify_Boundaries(t *testing.T) {
	th := DefaultThresholds()
	tests := []struct {
		score int
		want  Outcome
	}{
		{100, Duplicate},
		{80, Duplicate},
		{79, NeedsReview},
		{40, NeedsReview},
		{39, New},
		{0, New},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, th.Classify(tt.score), "score %d", tt.score)
	}
}

func TestThresholds_Validate(t *testing.T) {
	assert.NoError(t, DefaultThresholds().Validate())
	assert.NoError(t, Thresholds{Duplicate: 50, Review: 50}.Validate())
	assert.Error(t, Thresholds{Duplicate: 40, Review: 80}.Validate())
	assert.Error(t, Thresholds{Duplicate: 101, Review: 40}.Validate())
	assert.Error(t, Thresholds{Duplicate: 80, Review: -1}.Validate())
}

func TestDecide_NoCandidatesIsNew(t *testing.T) {
	th := Thresholds{Duplicate: 0, Review: 0}
	got := th.Decide([]match.Result{{Incoming: &model.Project{Name: "x"}, Path: match.PathNone}})
	require.Len(t, got, 1)
	assert.Equal(t, New, got[0].Outcome)
}

func TestOutcome_Status(t *testing.T) {
	assert.Equal(t, model.StatusConfirmed, Duplicate.Status())
	assert.Equal(t, model.StatusNeedsReview, NeedsReview.Status())
	assert.Equal(t, model.StatusNew, New.Status())
}

func TestIDAllocator_GeneratedIDsDoNotCollide(t *testing.T) {
	ids := NewIDAllocator([]string{"WH-1", "WH-2"})
	seen := map[string]bool{}
	for i := 0; i < 200; i++ {
		p := &model.Project{Name: "Same Name", Source: model.Provenance{Schema: "EPA", File: "epa.csv", Row: i % 3}}
		id := ids.Assign(p)
		assert.True(t, strings.HasPrefix(id, "PROJ"), id)
		assert.Len(t, id, 12)
		assert.False(t, seen[id], "duplicate id %s", id)
		seen[id] = true
	}
	assert.False(t, ids.Reserve("WH-1"))
}

func TestIDAllocator_Deterministic(t *testing.T) {
	p := &model.Project{Name: "Dam Repair", Source: model.Provenance{Schema: "USBR", File: "usbr.csv", Row: 7}}
	a := NewIDAllocator(nil).Assign(p)
	b := NewIDAllocator(nil).Assign(p)
	assert.Equal(t, a, b)
}

func TestIDAllocator_ReusesAwardID(t *testing.T) {
	ids := NewIDAllocator([]string{"ASST_TAKEN"})
	p := &model.Project{
		Name:      "Grant",
		ProgramID: "ASST_TAKEN",
		Raw:       map[string]string{"Award ID": "ASST_NON_123", "Other": "CONT_AWD_9"},
	}
	assert.Equal(t, "ASST_NON_123", ids.Assign(p))

	// The same award id is not handed out twice.
	q := &model.Project{Name: "Grant", Raw: map[string]string{"Award ID": "ASST_NON_123"}}
	assert.True(t, strings.HasPrefix(ids.Assign(q), "PROJ"))
}

func canonRecord() *model.Project {
	return &model.Project{
		ID:          "WH-1",
		Name:        "Lead Line Replacement",
		Description: "",
		State:       "PA",
		StateKnown:  true,
		City:        "",
		Agency:      "EPA",
		Raw: map[string]string{
			ColID:          "WH-1",
			ColName:        "Lead Line Replacement",
			ColDescription: "",
			ColState:       "PA",
			ColCity:        "",
			ColAgency:      "EPA",
			ColLatitude:    "",
			ColLongitude:   "",
		},
	}
}

func TestGapFill_CanonicalWins(t *testing.T) {
	canon := canonRecord()
	in := &model.Project{
		Name:        "Lead Service Line Replacement",
		Description: "Replace lead service lines",
		State:       "NJ",
		StateKnown:  true,
		City:        "Philadelphia",
		County:      "Philadelphia County",
		Agency:      "DOE",
		Location:    model.NewPoint(39.95, -75.16),
		Precision:   model.PrecisionPrecise,
	}

	filled := GapFill(canon, in)

	assert.Equal(t, []string{ColDescription, ColLatitude, ColLongitude, ColCity}, filled)
	assert.Equal(t, "Replace lead service lines", canon.Raw[ColDescription])
	assert.Equal(t, "Philadelphia", canon.City)
	assert.Equal(t, "PA", canon.Raw[ColState])
	assert.Equal(t, "EPA", canon.Agency)
	assert.True(t, canon.HasLocation())
	assert.InDelta(t, 39.95, canon.Lat(), 1e-9)
	// County is not a canonical column here, so it is not added.
	_, ok := canon.Raw[ColCounty]
	assert.False(t, ok)
	assert.Empty(t, canon.County)
}

func TestGapFill_CoordinatesOnlyAsPair(t *testing.T) {
	canon := canonRecord()
	canon.Raw[ColLatitude] = "40.0"
	in := &model.Project{Name: "x", Location: model.NewPoint(39.95, -75.16)}

	filled := GapFill(canon, in)

	assert.NotContains(t, filled, ColLongitude)
	assert.Empty(t, canon.Raw[ColLongitude])
}

func TestGapFill_ZeroPlaceholderCoordinates(t *testing.T) {
	canon := canonRecord()
	canon.Raw[ColLatitude] = "0"
	canon.Raw[ColLongitude] = "0.0"
	in := &model.Project{Name: "x", Location: model.NewPoint(39.95, -75.16)}

	filled := GapFill(canon, in)

	assert.Contains(t, filled, ColLatitude)
	assert.Contains(t, filled, ColLongitude)
	assert.NotEqual(t, "0", canon.Raw[ColLatitude])
	assert.True(t, canon.HasLocation())
	assert.InDelta(t, -75.16, canon.Lon(), 1e-9)
}

func TestGapFill_RealCoordinatesKept(t *testing.T) {
	canon := canonRecord()
	canon.Raw[ColLatitude] = "0"
	canon.Raw[ColLongitude] = "12.5"
	in := &model.Project{Name: "x", Location: model.NewPoint(39.95, -75.16)}

	filled := GapFill(canon, in)

	assert.NotContains(t, filled, ColLatitude)
	assert.Equal(t, "12.5", canon.Raw[ColLongitude])
}

func TestApply(t *testing.T) {
	canon := canonRecord()
	canonical := []*model.Project{canon}
	dup := &model.Project{Name: "dup", City: "Pittsburgh"}
	review := &model.Project{Name: "review"}
	fresh := &model.Project{Name: "fresh", Source: model.Provenance{Schema: "DOE", File: "doe.csv", Row: 1}}

	best := &match.Pair{Candidate: canon, Pos: 0, Score: 90}
	decisions := []Decision{
		{Outcome: Duplicate, Match: match.Result{Incoming: dup, Best: best}},
		{Outcome: NeedsReview, Match: match.Result{Incoming: review, Best: &match.Pair{Candidate: canon, Score: 50}}},
		{Outcome: New, Match: match.Result{Incoming: fresh}},
	}

	applied := Apply(canonical, decisions, NewIDAllocator([]string{"WH-1"}))

	require.Len(t, applied.Canonical, 1)
	assert.Equal(t, "Pittsburgh", applied.Canonical[0].City)
	assert.Empty(t, canon.City, "input canonical record must not change")
	require.Len(t, applied.Merges, 1)
	assert.Equal(t, "WH-1", applied.Merges[0].CanonicalID)
	assert.Equal(t, []string{ColCity}, applied.Merges[0].Filled)

	require.Len(t, applied.Review, 1)
	assert.Equal(t, model.StatusNeedsReview, applied.Review[0].Incoming.Status)

	require.Len(t, applied.New, 1)
	assert.True(t, strings.HasPrefix(applied.New[0].ID, "PROJ"))
	assert.Equal(t, model.StatusNew, applied.New[0].Status)

	d, r, n := applied.Counts()
	assert.Equal(t, 1, d)
	assert.Equal(t, 1, r)
	assert.Equal(t, 1, n)
}

func TestApply_SequentialMergesIntoSameRecord(t *testing.T) {
	canon := canonRecord()
	first := &model.Project{Name: "a", City: "Erie"}
	second := &model.Project{Name: "b", City: "Scranton", Description: "second"}
	best := &match.Pair{Candidate: canon, Pos: 0, Score: 95}

	applied := Apply([]*model.Project{canon}, []Decision{
		{Outcome: Duplicate, Match: match.Result{Incoming: first, Best: best}},
		{Outcome: Duplicate, Match: match.Result{Incoming: second, Best: best}},
	}, NewIDAllocator(nil))

	assert.Equal(t, "Erie", applied.Canonical[0].City)
	assert.Equal(t, "second", applied.Canonical[0].Description)
	assert.Equal(t, []string{ColCity}, applied.Merges[0].Filled)
	assert.Equal(t, []string{ColDescription}, applied.Merges[1].Filled)
}

func TestColumns(t *testing.T) {
	p := &model.Project{
		ID:            "X",
		Name:          "Name",
		FundingSource: model.FundingOther,
		Amount:        model.Amount{Cents: 150000, Known: true},
		Location:      model.NewPoint(40.5, -75.25),
		Precision:     model.PrecisionApproximate,
		Link:          `<a href="https://example.gov/p">site</a>`,
	}
	cols := Columns(p)
	assert.Equal(t, "1500", cols[ColAmount])
	assert.Equal(t, "40.5", cols[ColLatitude])
	assert.Equal(t, "-75.25", cols[ColLongitude])
	assert.Equal(t, LocationApproximate, cols[ColLocationType])
	assert.Equal(t, "https://example.gov/p", cols[ColLink])
	_, ok := cols[ColFunding]
	assert.False(t, ok)
	_, ok = cols[ColCity]
	assert.False(t, ok)
}

func TestCleanLink(t *testing.T) {
	assert.Equal(t, "https://a.gov/x", CleanLink(`<a href="https://a.gov/x" target="_blank">Link</a>`))
	assert.Equal(t, "https://b.gov", CleanLink("  https://b.gov "))
	assert.Equal(t, "", CleanLink(""))
}
