package pipeline

import (
	"errors"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/projectmerge/internal/csvio"
	"github.com/sells-group/projectmerge/internal/decide"
	"github.com/sells-group/projectmerge/internal/index"
	"github.com/sells-group/projectmerge/internal/model"
	"github.com/sells-group/projectmerge/internal/normalize"
)

// snapshot is the parsed canonical file.
type snapshot struct {
	path      string
	header    []string
	records   []*model.Project
	hasStatus bool
}

// outputHeader is the canonical header with the review status column
// appended when the input lacked it.
func (s *snapshot) outputHeader() []string {
	if s.hasStatus {
		return s.header
	}
	out := make([]string, len(s.header), len(s.header)+1)
	copy(out, s.header)
	return append(out, decide.ColReviewStatus)
}

// loadCanonical reads and strictly normalizes the canonical file. Any
// unusable row fails the whole run.
func loadCanonical(path string) (*snapshot, error) {
	table, err := csvio.ReadTable(path)
	if err != nil {
		return nil, eris.Wrapf(err, "pipeline: read canonical %s", path)
	}
	schema, err := normalize.Lookup(normalize.Baseline)
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: baseline schema")
	}
	binding, err := schema.Bind(path, table.Header)
	if err != nil {
		return nil, &index.IndexBuildError{Reason: "canonical header", Err: err}
	}
	binding.Strict = true

	results, err := binding.Records(table.Rows)
	if err != nil {
		return nil, &index.IndexBuildError{Reason: "canonical decoder", Err: err}
	}
	snap := &snapshot{path: path, header: binding.Header, records: make([]*model.Project, 0, len(results))}
	for _, r := range results {
		if r.Err != nil {
			return nil, &index.IndexBuildError{Row: r.Row, Reason: "unusable canonical row", Err: r.Err}
		}
		snap.records = append(snap.records, r.Project)
	}
	for _, h := range binding.Header {
		if h == decide.ColReviewStatus {
			snap.hasStatus = true
		}
	}
	zap.L().Info("pipeline: loaded canonical snapshot",
		zap.String("path", path),
		zap.Int("records", len(snap.records)),
	)
	return snap, nil
}

// inputBatch is one agency file after normalization.
type inputBatch struct {
	stats      model.FileStats
	records    []*model.Project
	errs       []error
	skipReason string
}

// loadInput reads and normalizes one agency file. Problems never fail the
// run: an unreadable file or unknown schema skips every row, and bad rows
// are skipped one at a time. Each is logged, counted and returned.
func loadInput(arg string) *inputBatch {
	schema, path, schemaErr := normalize.ResolveInput(arg)
	b := &inputBatch{stats: model.FileStats{File: path}, skipReason: reasonSchema}
	if schema != nil {
		b.stats.Schema = schema.Name
	}
	log := zap.L().With(zap.String("file", path), zap.String("schema", b.stats.Schema))

	table, err := csvio.ReadTable(path)
	if err != nil {
		log.Error("pipeline: cannot read input, skipping file", zap.Error(err))
		b.errs = append(b.errs, eris.Wrapf(err, "pipeline: read input %s", path))
		b.skipReason = reasonUnreadable
		return b
	}
	b.stats.Rows = len(table.Rows)

	skipFile := func(err error) *inputBatch {
		log.Warn("pipeline: skipping file", zap.Int("rows", b.stats.Rows), zap.Error(err))
		b.stats.Skipped = b.stats.Rows
		b.errs = append(b.errs, err)
		b.skipReason = reasonUnknownSchema
		return b
	}
	if schemaErr != nil {
		return skipFile(schemaErr)
	}
	binding, err := schema.Bind(path, table.Header)
	if err != nil {
		return skipFile(err)
	}
	results, err := binding.Records(table.Rows)
	if err != nil {
		return skipFile(err)
	}

	for _, r := range results {
		switch {
		case r.Err == nil:
			b.records = append(b.records, r.Project)
		case errors.Is(r.Err, normalize.ErrRowFiltered):
			b.stats.Filtered++
		default:
			b.stats.Skipped++
			b.errs = append(b.errs, r.Err)
			log.Debug("pipeline: skipping row", zap.Int("row", r.Row), zap.Error(r.Err))
		}
	}
	log.Info("pipeline: normalized input",
		zap.Int("rows", b.stats.Rows),
		zap.Int("records", len(b.records)),
		zap.Int("skipped", b.stats.Skipped),
		zap.Int("filtered", b.stats.Filtered),
	)
	return b
}
