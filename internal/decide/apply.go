package decide

import (
	"go.uber.org/zap"

	"github.com/sells-group/projectmerge/internal/match"
	"github.com/sells-group/projectmerge/internal/model"
)

// Merge records one duplicate folded into a canonical record.
type Merge struct {
	CanonicalID string
	Incoming    *model.Project
	Filled      []string
}

// Review is an incoming record routed to manual review.
type Review struct {
	Incoming *model.Project
	Match    match.Result
}

// Applied is the effect of a batch of decisions on the canonical set.
type Applied struct {
	// Canonical is the canonical set after merges. Records that received
	// values are clones; the input slice is not modified.
	Canonical []*model.Project
	New       []*model.Project
	Review    []Review
	Merges    []Merge
}

// Counts returns the number of duplicate, review and new outcomes.
func (a *Applied) Counts() (duplicates, reviews, news int) {
	return len(a.Merges), len(a.Review), len(a.New)
}

// Apply folds decisions into the canonical set. Duplicates gap-fill the
// matched canonical record in batch order, review records are queued, and
// new records get an identifier and status. Canonical positions are
// stable: the output holds one record per input record in the same order.
func Apply(canonical []*model.Project, decisions []Decision, ids *IDAllocator) *Applied {
	out := &Applied{Canonical: make([]*model.Project, len(canonical))}
	copy(out.Canonical, canonical)
	cloned := make(map[int]bool)

	for _, d := range decisions {
		in := d.Match.Incoming
		switch d.Outcome {
		case Duplicate:
			pos := d.Match.Best.Pos
			if !cloned[pos] {
				out.Canonical[pos] = out.Canonical[pos].Clone()
				cloned[pos] = true
			}
			canon := out.Canonical[pos]
			filled := GapFill(canon, in)
			out.Merges = append(out.Merges, Merge{CanonicalID: canon.ID, Incoming: in, Filled: filled})
			zap.L().Debug("decide: merged duplicate",
				zap.String("canonical_id", canon.ID),
				zap.String("incoming", in.Name),
				zap.Int("score", d.Match.BestScore()),
				zap.Strings("filled", filled),
			)
		case NeedsReview:
			in.Status = model.StatusNeedsReview
			out.Review = append(out.Review, Review{Incoming: in, Match: d.Match})
		default:
			rec := in.Clone()
			rec.ID = ids.Assign(in)
			rec.Status = model.StatusNew
			out.New = append(out.New, rec)
		}
	}
	return out
}
