package match

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/projectmerge/internal/index"
	"github.com/sells-group/projectmerge/internal/model"
	"github.com/sells-group/projectmerge/internal/normalize"
	"github.com/sells-group/projectmerge/internal/spatial"
)

type recOpt func(*model.Project)

func at(lat, lon float64) recOpt {
	return func(p *model.Project) { p.Location = model.NewPoint(lat, lon) }
}

func inState(s string) recOpt {
	return func(p *model.Project) { p.State, p.StateKnown = normalize.State(s) }
}

func funded(src model.FundingSource, dollars float64) recOpt {
	return func(p *model.Project) {
		p.FundingSource = src
		p.Amount = model.Dollars(dollars)
	}
}

func agency(a string) recOpt {
	return func(p *model.Project) { p.Agency = a }
}

func described(d string) recOpt {
	return func(p *model.Project) {
		p.Description = d
		p.DescriptionNorm = normalize.Text(d)
	}
}

func project(id, name string, opts ...recOpt) *model.Project {
	p := &model.Project{ID: id, Name: name, NameNorm: normalize.Text(name), FundingSource: model.FundingOther}
	for _, o := range opts {
		o(p)
	}
	return p
}

func buildIndex(t *testing.T, records ...*model.Project) *index.SimilarityIndex {
	t.Helper()
	ix, err := index.Build(records, index.Options{})
	require.NoError(t, err)
	return ix
}

func canonicalSet() []*model.Project {
	return []*model.Project{
		project("C1", "Solar Grid Upgrade Project", at(40.001, -75.001), inState("PA"),
			funded(model.FundingIRA, 510000), agency("Department of Energy"),
			described("Upgrade the distribution grid to support rooftop solar")),
		project("C2", "Lead Service Line Replacement", at(34.0, -118.0), inState("CA"),
			funded(model.FundingBIL, 1000000), agency("Environmental Protection Agency"),
			described("Replace lead pipes in drinking water systems")),
		project("C3", "Wetland Restoration", at(29.9, -90.1), inState("LA"),
			funded(model.FundingBIL, 250000), agency("Department of the Interior")),
	}
}

func TestGeoPoints_Bands(t *testing.T) {
	assert.Equal(t, 40, geoPoints(0))
	assert.Equal(t, 40, geoPoints(0.999))
	assert.Equal(t, 30, geoPoints(1.0))
	assert.Equal(t, 30, geoPoints(9.99))
	assert.Equal(t, 15, geoPoints(10))
	assert.Equal(t, 5, geoPoints(50))
	assert.Equal(t, 5, geoPoints(99.9))
	assert.Equal(t, 0, geoPoints(100))
	assert.Equal(t, 0, geoPoints(math.Inf(1)))
}

func TestTextPoints_Bands(t *testing.T) {
	assert.Equal(t, 30, namePoints(0.81))
	assert.Equal(t, 20, namePoints(0.8))
	assert.Equal(t, 10, namePoints(0.5))
	assert.Equal(t, 0, namePoints(0.3))

	assert.Equal(t, 15, descriptionPoints(0.71))
	assert.Equal(t, 10, descriptionPoints(0.7))
	assert.Equal(t, 5, descriptionPoints(0.4))
	assert.Equal(t, 0, descriptionPoints(0.2))
}

func TestCompare_DistanceBoundary(t *testing.T) {
	ix := buildIndex(t, canonicalSet()...)
	m := NewMatcher(ix, Options{})

	base := project("X", "a", at(40.0, -75.0))
	oneKm := project("Y", "b", at(spatial.OffsetNorth(40.0, 1.0), -75.0))
	justUnder := project("Z", "c", at(spatial.OffsetNorth(40.0, 0.999), -75.0))

	bd := Compare(m.Features(base), m.Features(oneKm))
	assert.Equal(t, 30, bd.Geo)
	assert.InDelta(t, 1.0, bd.DistanceKm, 1e-9)

	bd = Compare(m.Features(base), m.Features(justUnder))
	assert.Equal(t, 40, bd.Geo)
}

func TestCompare_IdenticalIs100(t *testing.T) {
	ix := buildIndex(t, canonicalSet()...)
	m := NewMatcher(ix, Options{})

	c := ix.Record(0)
	dup := c.Clone()
	dup.ID = "INCOMING"

	bd := Compare(m.Features(dup), m.canonical(0))
	assert.Equal(t, 40, bd.Geo)
	assert.Equal(t, 10, bd.State)
	assert.Equal(t, 5, bd.FundingSource)
	assert.Equal(t, 30, bd.Name)
	assert.Equal(t, 15, bd.Description)
	assert.Equal(t, 5, bd.Amount)
	assert.Equal(t, 5, bd.Agency)
	assert.Equal(t, 100, bd.Total())
}

func TestCompare_FarUnrelatedIsZero(t *testing.T) {
	ix := buildIndex(t, canonicalSet()...)
	m := NewMatcher(ix, Options{})

	far := project("F", "Wetland Restoration", at(29.9, -90.1), inState("LA"),
		funded(model.FundingIRA, 100), agency("Department of Commerce"))
	c2 := m.canonical(1)

	bd := Compare(m.Features(far), c2)
	assert.Equal(t, 0, bd.Total())
	assert.Empty(t, bd.Reasons)

	far.Agency = c2.Project.Agency
	assert.Equal(t, 5, Compare(m.Features(far), c2).Total())
}

func TestCompare_Symmetric(t *testing.T) {
	ix := buildIndex(t, canonicalSet()...)
	m := NewMatcher(ix, Options{})

	a := project("A", "Solar Grid Modernization", at(40.01, -75.02), inState("PA"),
		funded(model.FundingIRA, 480000), agency("Department of Energy"),
		described("rooftop solar grid"))
	b := m.canonical(0)

	ab := Compare(m.Features(a), b)
	ba := Compare(b, m.Features(a))
	assert.Equal(t, ab.Geo, ba.Geo)
	assert.Equal(t, ab.DistanceKm, ba.DistanceKm)
	assert.Equal(t, ab.Name, ba.Name)
	assert.Equal(t, ab.NameSimilarity, ba.NameSimilarity)
	assert.Equal(t, ab.Description, ba.Description)
	assert.Equal(t, ab.Agency, ba.Agency)
	assert.Equal(t, ab.Total(), ba.Total())
}

func TestCompare_UnknownStateNeverMatches(t *testing.T) {
	a := project("A", "x", inState("Atlantis"))
	b := project("B", "y", inState("Atlantis"))
	assert.Equal(t, 0, Compare(Features{Project: a}, Features{Project: b}).State)
}

func TestCompare_FundingOtherNeverMatches(t *testing.T) {
	a := project("A", "x", funded(model.FundingOther, 10))
	b := project("B", "y", funded(model.FundingOther, 10))
	bd := Compare(Features{Project: a}, Features{Project: b})
	assert.Equal(t, 0, bd.FundingSource)
	assert.Equal(t, 5, bd.Amount)
}

func TestCompare_AmountZeroAndUnknown(t *testing.T) {
	a := project("A", "x", funded(model.FundingIRA, 0))
	b := project("B", "y", funded(model.FundingIRA, 0))
	assert.Equal(t, 0, Compare(Features{Project: a}, Features{Project: b}).Amount)

	b.Amount = model.UnknownAmount
	assert.Equal(t, 0, Compare(Features{Project: a}, Features{Project: b}).Amount)
}

func TestCompare_AgencyExactOnly(t *testing.T) {
	a := project("A", "x", agency("Department of Energy"))
	b := project("B", "y", agency("department of energy"))
	assert.Equal(t, 0, Compare(Features{Project: a}, Features{Project: b}).Agency)

	a.Agency, b.Agency = "", ""
	assert.Equal(t, 0, Compare(Features{Project: a}, Features{Project: b}).Agency)
}

func TestMatch_PennsylvaniaSolarScenario(t *testing.T) {
	ix := buildIndex(t, canonicalSet()...)
	m := NewMatcher(ix, Options{})

	in := project("", "Solar Grid Upgrade", at(40.0, -75.0), inState("PA"), funded(model.FundingIRA, 500000))
	res := m.Match(in)
	require.NotNil(t, res.Best)

	bd := res.Best.Breakdown
	assert.Equal(t, "C1", res.Best.Candidate.ID)
	assert.Equal(t, 40, bd.Geo)
	assert.Equal(t, 10, bd.State)
	assert.Equal(t, 5, bd.FundingSource)
	assert.GreaterOrEqual(t, bd.Name, 20)
	assert.Equal(t, 5, bd.Amount)
	assert.GreaterOrEqual(t, res.Best.Score, 80)
	assert.Equal(t, PathBoth, res.Path)
}

func TestMatch_NoCandidates(t *testing.T) {
	ix := buildIndex(t, canonicalSet()...)
	m := NewMatcher(ix, Options{})

	res := m.Match(project("", "Hydrogen Hub", at(47.6, -122.3), inState("Atlantis")))
	assert.Nil(t, res.Best)
	assert.Zero(t, res.BestScore())
	assert.Zero(t, res.Candidates)
	assert.Equal(t, PathNone, res.Path)
}

func TestFinder_Paths(t *testing.T) {
	ix := buildIndex(t, canonicalSet()...)
	f := NewFinder(ix, FinderOptions{})

	got, path := f.Find(project("", "x", at(40.0, -75.0)))
	assert.Equal(t, []int{0}, got)
	assert.Equal(t, PathSpatial, path)

	got, path = f.Find(project("", "x", inState("California")))
	assert.Equal(t, []int{1}, got)
	assert.Equal(t, PathState, path)

	got, path = f.Find(project("", "x", at(40.0, -75.0), inState("LA")))
	assert.Equal(t, []int{0, 2}, got)
	assert.Equal(t, PathBoth, path)
}

func TestFinder_TextFallback(t *testing.T) {
	ix := buildIndex(t, canonicalSet()...)
	f := NewFinder(ix, FinderOptions{})

	got, path := f.Find(project("", "Lead Service Line Replacement"))
	assert.Equal(t, []int{1}, got)
	assert.Equal(t, PathText, path)

	got, path = f.Find(project("", "Hydrogen Hub"))
	assert.Empty(t, got)
	assert.Equal(t, PathNone, path)
}

func TestFinder_TextFallbackBounded(t *testing.T) {
	var records []*model.Project
	for i := 0; i < 20; i++ {
		records = append(records, project(string(rune('A'+i)), "Solar Array"))
	}
	ix := buildIndex(t, records...)
	f := NewFinder(ix, FinderOptions{FallbackMax: 5})

	got, _ := f.Find(project("", "Solar Array"))
	assert.Len(t, got, 5)
}

func TestRank_TieBreak(t *testing.T) {
	pairs := []Pair{
		{Candidate: &model.Project{ID: "B"}, Score: 50, Breakdown: Breakdown{DistanceKm: 2}},
		{Candidate: &model.Project{ID: "Z"}, Score: 50, Breakdown: Breakdown{DistanceKm: math.Inf(1)}},
		{Candidate: &model.Project{ID: "A"}, Score: 50, Breakdown: Breakdown{DistanceKm: 2}},
		{Candidate: &model.Project{ID: "C"}, Score: 50, Breakdown: Breakdown{DistanceKm: 1}},
		{Candidate: &model.Project{ID: "Y"}, Score: 50, Breakdown: Breakdown{DistanceKm: math.Inf(1)}},
		{Candidate: &model.Project{ID: "D"}, Score: 90, Breakdown: Breakdown{DistanceKm: 40}},
	}
	Rank(pairs)

	ids := make([]string, len(pairs))
	for i, p := range pairs {
		ids[i] = p.Candidate.ID
	}
	assert.Equal(t, []string{"D", "C", "A", "B", "Y", "Z"}, ids)
}

func TestMatch_TopNLimited(t *testing.T) {
	var records []*model.Project
	for i := 0; i < 8; i++ {
		records = append(records, project(string(rune('A'+i)), "Bridge Repair", at(40.0+float64(i)*0.01, -75.0), inState("PA")))
	}
	ix := buildIndex(t, records...)
	m := NewMatcher(ix, Options{TopN: 5})

	res := m.Match(project("", "Bridge Repair", at(40.0, -75.0), inState("PA")))
	require.NotNil(t, res.Best)
	assert.Equal(t, 8, res.Candidates)
	assert.Len(t, res.Top, 5)
	assert.Equal(t, "A", res.Best.Candidate.ID)
	assert.Equal(t, res.Best.Candidate.ID, res.Top[0].Candidate.ID)
}

func TestMatchAll_PreservesOrder(t *testing.T) {
	ix := buildIndex(t, canonicalSet()...)
	m := NewMatcher(ix, Options{Workers: 4})

	var batch []*model.Project
	for i := 0; i < 50; i++ {
		if i%2 == 0 {
			batch = append(batch, project("", "Solar Grid Upgrade", at(40.0, -75.0), inState("PA")))
		} else {
			batch = append(batch, project("", "Hydrogen Hub", at(47.6, -122.3)))
		}
	}

	results, err := m.MatchAll(context.Background(), batch)
	require.NoError(t, err)
	require.Len(t, results, 50)
	for i, r := range results {
		assert.Same(t, batch[i], r.Incoming)
		if i%2 == 0 {
			assert.NotNil(t, r.Best, i)
		} else {
			assert.Nil(t, r.Best, i)
		}
	}
}

func TestMatchAll_Cancelled(t *testing.T) {
	ix := buildIndex(t, canonicalSet()...)
	m := NewMatcher(ix, Options{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := m.MatchAll(ctx, []*model.Project{project("", "x")})
	assert.Error(t, err)
}
