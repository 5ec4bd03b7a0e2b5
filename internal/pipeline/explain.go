package pipeline

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/projectmerge/internal/csvio"
	"github.com/sells-group/projectmerge/internal/decide"
	"github.com/sells-group/projectmerge/internal/index"
	"github.com/sells-group/projectmerge/internal/match"
	"github.com/sells-group/projectmerge/internal/model"
	"github.com/sells-group/projectmerge/internal/normalize"
)

// Explanation is how one incoming row scores against the canonical
// snapshot.
type Explanation struct {
	Incoming *model.Project
	Result   match.Result
	Outcome  decide.Outcome
}

// Explain normalizes row (1-based, header excluded) of input and scores it
// against canonical without writing anything.
func (p *Pipeline) Explain(ctx context.Context, canonical, input string, row int) (*Explanation, error) {
	thresholds := p.thresholds()
	if err := thresholds.Validate(); err != nil {
		return nil, err
	}
	snap, err := loadCanonical(canonical)
	if err != nil {
		return nil, err
	}
	ix, err := index.Build(snap.records, p.indexOptions())
	if err != nil {
		return nil, err
	}

	schema, path, err := normalize.ResolveInput(input)
	if err != nil {
		return nil, err
	}
	table, err := csvio.ReadTable(path)
	if err != nil {
		return nil, eris.Wrapf(err, "pipeline: read input %s", path)
	}
	if row < 1 || row > len(table.Rows) {
		return nil, eris.Errorf("pipeline: row %d out of range, %s has %d rows", row, path, len(table.Rows))
	}
	binding, err := schema.Bind(path, table.Header)
	if err != nil {
		return nil, err
	}
	rec, err := binding.Normalize(table.Rows[row-1], row)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, eris.Wrap(err, "pipeline: explain")
	}

	result := match.NewMatcher(ix, p.matchOptions()).Match(rec)
	outcome := thresholds.Classify(result.BestScore())
	if result.Best == nil {
		outcome = decide.New
	}
	return &Explanation{Incoming: rec, Result: result, Outcome: outcome}, nil
}
