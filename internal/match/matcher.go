package match

import (
	"context"
	"math"
	"runtime"
	"sort"

	"github.com/rotisserie/eris"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/projectmerge/internal/index"
	"github.com/sells-group/projectmerge/internal/model"
)

// DefaultTopN is how many ranked candidates a Result keeps.
const DefaultTopN = 5

// Pair is an incoming record scored against one canonical candidate.
type Pair struct {
	Candidate *model.Project
	Pos       int // candidate position in the index
	Score     int
	Breakdown Breakdown
}

// Result is the outcome of matching one incoming record.
type Result struct {
	Incoming   *model.Project
	Best       *Pair // nil when there were no candidates
	Top        []Pair
	Candidates int
	Path       Path
}

// BestScore returns the best candidate's score, or 0 when there is none.
func (r Result) BestScore() int {
	if r.Best == nil {
		return 0
	}
	return r.Best.Score
}

// Options configures a Matcher.
type Options struct {
	Finder  FinderOptions
	TopN    int // 0 means DefaultTopN
	Workers int // 0 means runtime.NumCPU()
}

// Matcher runs candidate finding and scoring against a shared index.
type Matcher struct {
	ix      *index.SimilarityIndex
	finder  *Finder
	topN    int
	workers int
}

// NewMatcher returns a Matcher over ix.
func NewMatcher(ix *index.SimilarityIndex, opts Options) *Matcher {
	if opts.TopN <= 0 {
		opts.TopN = DefaultTopN
	}
	if opts.Workers <= 0 {
		opts.Workers = runtime.NumCPU()
	}
	return &Matcher{
		ix:      ix,
		finder:  NewFinder(ix, opts.Finder),
		topN:    opts.TopN,
		workers: opts.Workers,
	}
}

// Features vectorizes an incoming record in the index's text space.
func (m *Matcher) Features(in *model.Project) Features {
	return Features{
		Project:     in,
		Name:        m.ix.TextVector(in.NameNorm),
		Description: m.ix.TextVector(in.DescriptionNorm),
	}
}

func (m *Matcher) canonical(pos int) Features {
	return Features{
		Project:     m.ix.Record(pos),
		Name:        m.ix.NameVector(pos),
		Description: m.ix.DescriptionVector(pos),
	}
}

// Match finds and scores the candidates for one incoming record.
func (m *Matcher) Match(in *model.Project) Result {
	positions, path := m.finder.Find(in)
	res := Result{Incoming: in, Candidates: len(positions), Path: path}
	if len(positions) == 0 {
		return res
	}

	feat := m.Features(in)
	pairs := make([]Pair, len(positions))
	for i, pos := range positions {
		bd := Compare(feat, m.canonical(pos))
		pairs[i] = Pair{Candidate: m.ix.Record(pos), Pos: pos, Score: bd.Total(), Breakdown: bd}
	}
	Rank(pairs)

	best := pairs[0]
	res.Best = &best
	if len(pairs) > m.topN {
		pairs = pairs[:m.topN]
	}
	res.Top = pairs
	return res
}

// Rank orders pairs best first: higher score, then smaller distance
// (missing distance last), then lexicographically smaller id.
func Rank(pairs []Pair) {
	sort.SliceStable(pairs, func(i, j int) bool {
		a, b := pairs[i], pairs[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		da, db := a.Breakdown.DistanceKm, b.Breakdown.DistanceKm
		if da != db {
			if math.IsNaN(da) {
				return false
			}
			return da < db
		}
		return a.Candidate.ID < b.Candidate.ID
	})
}

// MatchAll matches records in parallel. Results are returned in input
// order regardless of completion order. The index is only read.
func (m *Matcher) MatchAll(ctx context.Context, records []*model.Project) ([]Result, error) {
	results := make([]Result, len(records))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(m.workers)
	for i, rec := range records {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			results[i] = m.Match(rec)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, eris.Wrap(err, "match: scoring")
	}
	if err := ctx.Err(); err != nil {
		return nil, eris.Wrap(err, "match: scoring")
	}
	return results, nil
}
