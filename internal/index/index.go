// Package index builds the read-only similarity index over a canonical
// snapshot: a spatial grid, a state index, and a fitted TF-IDF space.
package index

import (
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/sells-group/projectmerge/internal/model"
	"github.com/sells-group/projectmerge/internal/spatial"
	"github.com/sells-group/projectmerge/internal/textsim"
)

// DefaultRadiusKm covers the lowest-scoring distance tier.
const DefaultRadiusKm = 100.0

// Options configures Build.
type Options struct {
	RadiusKm    float64 // spatial candidate radius; 0 means DefaultRadiusKm
	CellDegrees float64 // grid cell edge; 0 means spatial.DefaultCellDegrees
}

// IndexBuildError reports a malformed canonical snapshot.
type IndexBuildError struct {
	Row    int // 1-based data row in the canonical file, 0 when not row-specific
	ID     string
	Reason string
	Err    error
}

func (e *IndexBuildError) Error() string {
	msg := "index: build: "
	if e.Row > 0 {
		msg += fmt.Sprintf("row %d: ", e.Row)
	}
	if e.ID != "" {
		msg += fmt.Sprintf("id %q: ", e.ID)
	}
	msg += e.Reason
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *IndexBuildError) Unwrap() error {
	return e.Err
}

// SimilarityIndex is built once per run and never mutated afterwards, so
// it may be shared by any number of scoring goroutines.
type SimilarityIndex struct {
	records  []*model.Project
	byID     map[string]int
	grid     *spatial.Grid
	radiusKm float64
	states   map[string][]int

	vec      *textsim.Vectorizer
	names    []textsim.Vector
	descs    []textsim.Vector
	postings map[int][]int // term id -> record positions, ascending
}

// Build validates the canonical records and indexes them. Record positions
// in the index match positions in records.
func Build(records []*model.Project, opts Options) (*SimilarityIndex, error) {
	if opts.RadiusKm <= 0 {
		opts.RadiusKm = DefaultRadiusKm
	}

	ix := &SimilarityIndex{
		records:  records,
		byID:     make(map[string]int, len(records)),
		grid:     spatial.NewGrid(opts.CellDegrees),
		radiusKm: opts.RadiusKm,
		states:   make(map[string][]int),
		names:    make([]textsim.Vector, len(records)),
		descs:    make([]textsim.Vector, len(records)),
		postings: make(map[int][]int),
	}

	corpus := make([]string, 0, 2*len(records))
	for i, r := range records {
		if err := validate(r, i); err != nil {
			return nil, err
		}
		if prev, dup := ix.byID[r.ID]; dup {
			return nil, &IndexBuildError{
				Row: r.Source.Row, ID: r.ID,
				Reason: fmt.Sprintf("duplicate identifier (first seen at row %d)", records[prev].Source.Row),
			}
		}
		ix.byID[r.ID] = i
		ix.grid.Insert(i, r.Location)
		if r.StateKnown {
			ix.states[r.State] = append(ix.states[r.State], i)
		}
		corpus = append(corpus, r.NameNorm, r.DescriptionNorm)
	}

	ix.vec = textsim.Fit(corpus)
	for i, r := range records {
		ix.names[i] = ix.vec.Transform(r.NameNorm)
		ix.descs[i] = ix.vec.Transform(r.DescriptionNorm)
		for _, term := range union(ix.names[i].Terms, ix.descs[i].Terms) {
			ix.postings[term] = append(ix.postings[term], i)
		}
	}

	zap.L().Debug("index: built",
		zap.Int("records", len(records)),
		zap.Int("located", ix.grid.Len()),
		zap.Int("states", len(ix.states)),
		zap.Int("vocabulary", ix.vec.VocabularySize()),
	)
	return ix, nil
}

func validate(r *model.Project, pos int) error {
	row := r.Source.Row
	if row == 0 {
		row = pos + 1
	}
	if r.ID == "" {
		return &IndexBuildError{Row: row, Reason: "empty identifier"}
	}
	if r.HasLocation() {
		lat, lon := r.Lat(), r.Lon()
		if lat < -90 || lat > 90 || lon < -180 || lon > 180 {
			return &IndexBuildError{Row: row, ID: r.ID, Reason: fmt.Sprintf("coordinates out of range (%g, %g)", lat, lon)}
		}
	}
	if r.Amount.Known && r.Amount.Cents < 0 {
		return &IndexBuildError{Row: row, ID: r.ID, Reason: "negative funding amount"}
	}
	return nil
}

func union(a, b []int) []int {
	out := make([]int, 0, len(a)+len(b))
	i, j := 0, 0
	for i < len(a) || j < len(b) {
		switch {
		case j >= len(b) || (i < len(a) && a[i] < b[j]):
			out = append(out, a[i])
			i++
		case i >= len(a) || b[j] < a[i]:
			out = append(out, b[j])
			j++
		default:
			out = append(out, a[i])
			i++
			j++
		}
	}
	return out
}

// Len returns the number of indexed records.
func (ix *SimilarityIndex) Len() int { return len(ix.records) }

// Record returns the record at position i.
func (ix *SimilarityIndex) Record(i int) *model.Project { return ix.records[i] }

// Lookup returns the position of the record with the given id.
func (ix *SimilarityIndex) Lookup(id string) (int, bool) {
	i, ok := ix.byID[id]
	return i, ok
}

// RadiusKm returns the spatial candidate radius.
func (ix *SimilarityIndex) RadiusKm() float64 { return ix.radiusKm }

// NearestCandidates returns records within the candidate radius of
// (lon, lat), nearest first. maxResults <= 0 means no limit.
func (ix *SimilarityIndex) NearestCandidates(lon, lat float64, maxResults int) []spatial.Neighbor {
	return ix.grid.Within(model.NewPoint(lat, lon), ix.radiusKm, maxResults)
}

// RecordsInState returns positions of records in a recognized state, in
// canonical order. The slice must not be modified.
func (ix *SimilarityIndex) RecordsInState(state string) []int {
	return ix.states[state]
}

// TextVector vectorizes normalized text in the fitted space.
func (ix *SimilarityIndex) TextVector(normalized string) textsim.Vector {
	return ix.vec.Transform(normalized)
}

// NameVector returns the precomputed name vector of record i.
func (ix *SimilarityIndex) NameVector(i int) textsim.Vector { return ix.names[i] }

// DescriptionVector returns the precomputed description vector of record i.
func (ix *SimilarityIndex) DescriptionVector(i int) textsim.Vector { return ix.descs[i] }

// TextMatch is a slow-path candidate found through the term postings.
type TextMatch struct {
	Pos        int
	Similarity float64
}

// TextCandidates returns records whose name or description vector has
// cosine similarity above minSim with vec, best first, at most limit
// (limit <= 0 means no limit). Only records sharing a term with vec are
// examined.
func (ix *SimilarityIndex) TextCandidates(vec textsim.Vector, minSim float64, limit int) []TextMatch {
	seen := make(map[int]bool)
	var out []TextMatch
	for _, term := range vec.Terms {
		for _, pos := range ix.postings[term] {
			if seen[pos] {
				continue
			}
			seen[pos] = true
			sim := textsim.Cosine(vec, ix.names[pos])
			if d := textsim.Cosine(vec, ix.descs[pos]); d > sim {
				sim = d
			}
			if sim > minSim {
				out = append(out, TextMatch{Pos: pos, Similarity: sim})
			}
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Similarity != out[j].Similarity {
			return out[i].Similarity > out[j].Similarity
		}
		return out[i].Pos < out[j].Pos
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}
