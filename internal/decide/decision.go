// Package decide classifies scored records and applies the outcome to the
// canonical set: gap-fill merges, review queue, and appended new records.
package decide

import (
	"github.com/rotisserie/eris"

	"github.com/sells-group/projectmerge/internal/match"
	"github.com/sells-group/projectmerge/internal/model"
)

// Outcome is the terminal state of one incoming record.
type Outcome string

const (
	Duplicate   Outcome = "duplicate"
	NeedsReview Outcome = "needs-review"
	New         Outcome = "new"
)

// Default thresholds.
const (
	DefaultDuplicateThreshold = 80
	DefaultReviewThreshold    = 40
)

// Thresholds are inclusive lower bounds on the best score.
type Thresholds struct {
	Duplicate int
	Review    int
}

// DefaultThresholds returns the 80/40 thresholds.
func DefaultThresholds() Thresholds {
	return Thresholds{Duplicate: DefaultDuplicateThreshold, Review: DefaultReviewThreshold}
}

// Validate checks 0 <= Review <= Duplicate <= 100.
func (t Thresholds) Validate() error {
	if t.Review < 0 || t.Duplicate > match.MaxScore || t.Review > t.Duplicate {
		return eris.Errorf("decide: invalid thresholds duplicate=%d review=%d (need 0 <= review <= duplicate <= %d)",
			t.Duplicate, t.Review, match.MaxScore)
	}
	return nil
}

// Classify maps a best score to an outcome. A record without candidates
// scores 0.
func (t Thresholds) Classify(score int) Outcome {
	switch {
	case score >= t.Duplicate:
		return Duplicate
	case score >= t.Review:
		return NeedsReview
	default:
		return New
	}
}

// Decision pairs a match result with its outcome.
type Decision struct {
	Outcome Outcome
	Match   match.Result
}

// Decide classifies every result, preserving order.
func (t Thresholds) Decide(results []match.Result) []Decision {
	out := make([]Decision, len(results))
	for i, r := range results {
		outcome := t.Classify(r.BestScore())
		if r.Best == nil {
			outcome = New
		}
		out[i] = Decision{Outcome: outcome, Match: r}
	}
	return out
}

// Status maps an outcome to the review status written to output.
func (o Outcome) Status() model.ReviewStatus {
	switch o {
	case Duplicate:
		return model.StatusConfirmed
	case NeedsReview:
		return model.StatusNeedsReview
	default:
		return model.StatusNew
	}
}
