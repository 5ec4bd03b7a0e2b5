// Package match finds and scores canonical candidates for incoming records.
package match

import (
	"sort"

	"github.com/sells-group/projectmerge/internal/index"
	"github.com/sells-group/projectmerge/internal/model"
	"github.com/sells-group/projectmerge/internal/normalize"
)

// Path names how a candidate set was produced.
type Path string

const (
	PathNone    Path = "none"
	PathSpatial Path = "spatial"
	PathState   Path = "state"
	PathBoth    Path = "spatial+state"
	PathText    Path = "text"
)

// Defaults for the text fallback.
const (
	DefaultFallbackMax    = 50
	DefaultFallbackMinSim = 0.3
)

// FinderOptions configures the text fallback used when an incoming record
// has neither coordinates nor a recognized state.
type FinderOptions struct {
	FallbackMax    int     // 0 means DefaultFallbackMax
	FallbackMinSim float64 // 0 means DefaultFallbackMinSim
}

// Finder produces bounded candidate sets from a SimilarityIndex.
type Finder struct {
	ix   *index.SimilarityIndex
	opts FinderOptions
}

// NewFinder returns a Finder over ix.
func NewFinder(ix *index.SimilarityIndex, opts FinderOptions) *Finder {
	if opts.FallbackMax <= 0 {
		opts.FallbackMax = DefaultFallbackMax
	}
	if opts.FallbackMinSim <= 0 {
		opts.FallbackMinSim = DefaultFallbackMinSim
	}
	return &Finder{ix: ix, opts: opts}
}

// Find returns candidate positions in ascending order, deduplicated, and
// the path that produced them. The spatial radius query and the state
// index are unioned; the text fallback runs only when neither applies.
func (f *Finder) Find(in *model.Project) ([]int, Path) {
	located := in.HasLocation()
	stated := in.StateKnown && normalize.IsStateCode(in.State)

	if !located && !stated {
		text := in.NameNorm
		if in.DescriptionNorm != "" {
			text += " " + in.DescriptionNorm
		}
		matches := f.ix.TextCandidates(f.ix.TextVector(text), f.opts.FallbackMinSim, f.opts.FallbackMax)
		if len(matches) == 0 {
			return nil, PathNone
		}
		out := make([]int, len(matches))
		for i, m := range matches {
			out[i] = m.Pos
		}
		sort.Ints(out)
		return out, PathText
	}

	seen := make(map[int]bool)
	var out []int
	var spatialHits, stateHits int
	if located {
		near := f.ix.NearestCandidates(in.Lon(), in.Lat(), 0)
		spatialHits = len(near)
		for _, n := range near {
			if !seen[n.ID] {
				seen[n.ID] = true
				out = append(out, n.ID)
			}
		}
	}
	if stated {
		same := f.ix.RecordsInState(in.State)
		stateHits = len(same)
		for _, pos := range same {
			if !seen[pos] {
				seen[pos] = true
				out = append(out, pos)
			}
		}
	}

	sort.Ints(out)
	switch {
	case len(out) == 0:
		return nil, PathNone
	case spatialHits > 0 && stateHits > 0:
		return out, PathBoth
	case spatialHits > 0:
		return out, PathSpatial
	default:
		return out, PathState
	}
}
