// Package pipeline runs one merge: it normalizes the canonical snapshot
// and every input file, matches and classifies the incoming records,
// backfills new records from their coordinates, and writes the outputs.
package pipeline

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/projectmerge/internal/config"
	"github.com/sells-group/projectmerge/internal/csvio"
	"github.com/sells-group/projectmerge/internal/decide"
	"github.com/sells-group/projectmerge/internal/enrich"
	"github.com/sells-group/projectmerge/internal/index"
	"github.com/sells-group/projectmerge/internal/match"
	"github.com/sells-group/projectmerge/internal/metrics"
	"github.com/sells-group/projectmerge/internal/model"
	"github.com/sells-group/projectmerge/internal/store"
	"github.com/sells-group/projectmerge/pkg/geocode"
)

// Skip reasons used for metrics.
const (
	reasonSchema        = "schema"
	reasonUnknownSchema = "unknown_schema"
	reasonUnreadable    = "unreadable"
	reasonFiltered      = "filtered"
	reasonNoCoordinates = "no_coordinates"
)

// Request names the files of one run.
type Request struct {
	Canonical  string   // canonical (WH) file
	Inputs     []string // agency files, "schema:path" or a path whose name selects the schema
	OutputPath string   // updated canonical file; "" derives one inside the output dir
	DryRun     bool     // compute and log everything, write nothing
}

// Result is everything a run produced.
type Result struct {
	Run model.Run

	// Canonical is the canonical set after merges, in input order.
	Canonical []*model.Project
	New       []*model.Project
	Review    []decide.Review
	Merges    []decide.Merge
	Enrich    enrich.Stats

	// Errors holds row and lookup problems that were skipped or counted.
	// None of them stopped the run.
	Errors []error

	Summary Summary
}

// Pipeline orchestrates a merge run.
type Pipeline struct {
	cfg      *config.Config
	store    store.Store      // nil disables the run ledger
	reverser geocode.Reverser // nil disables enrichment
	metrics  *metrics.Recorder
	now      func() time.Time
}

// New creates a Pipeline. st, rev and rec may be nil.
func New(cfg *config.Config, st store.Store, rev geocode.Reverser, rec *metrics.Recorder) *Pipeline {
	if rec == nil {
		rec = metrics.New()
	}
	return &Pipeline{cfg: cfg, store: st, reverser: rev, metrics: rec, now: time.Now}
}

// Metrics returns the run's metrics recorder.
func (p *Pipeline) Metrics() *metrics.Recorder { return p.metrics }

// Run executes one merge. Outputs are written all-or-nothing, and a run
// that is not a dry run is recorded in the store whether it succeeds or
// fails. On error the returned Result still carries the failed run.
func (p *Pipeline) Run(ctx context.Context, req Request) (*Result, error) {
	res := &Result{Run: model.Run{
		ID:        uuid.New().String(),
		StartedAt: p.now().UTC(),
		Canonical: req.Canonical,
		Inputs:    req.Inputs,
	}}
	log := zap.L().With(
		zap.String("component", "pipeline"),
		zap.String("run_id", res.Run.ID),
	)
	log.Info("pipeline: starting merge",
		zap.String("canonical", req.Canonical),
		zap.Strings("inputs", req.Inputs),
		zap.Bool("dry_run", req.DryRun),
	)

	err := p.run(ctx, req, res, log)
	if res.Run.FinishedAt.IsZero() {
		res.Run.FinishedAt = p.now().UTC()
	}
	res.Run.Status = model.RunStatusComplete
	if err != nil {
		res.Run.Status = model.RunStatusFailed
		res.Run.Error = err.Error()
		res.Run.Outputs = nil
	}
	p.metrics.Finished(res.Run.StartedAt, res.Run.FinishedAt, err == nil)

	if !req.DryRun {
		p.record(ctx, &res.Run)
	}
	if err != nil {
		log.Error("pipeline: merge failed", zap.Error(err))
		return res, err
	}

	log.Info("pipeline: merge complete",
		zap.Int("duplicates", res.Run.Totals.Duplicates),
		zap.Int("review", res.Run.Totals.Review),
		zap.Int("new", res.Run.Totals.New),
		zap.Int("skipped", res.Run.Totals.Skipped),
		zap.Int("filtered", res.Run.Totals.Filtered),
		zap.Int("errored", res.Run.Totals.Errored),
		zap.Duration("elapsed", res.Run.FinishedAt.Sub(res.Run.StartedAt)),
	)
	return res, nil
}

func (p *Pipeline) run(ctx context.Context, req Request, res *Result, log *zap.Logger) error {
	thresholds := p.thresholds()
	if err := thresholds.Validate(); err != nil {
		return err
	}

	var snap *snapshot
	var ix *index.SimilarityIndex
	err := p.stage(log, "index", func() error {
		var err error
		if snap, err = loadCanonical(req.Canonical); err != nil {
			return err
		}
		ix, err = index.Build(snap.records, p.indexOptions())
		return err
	})
	if err != nil {
		return err
	}

	matcher := match.NewMatcher(ix, p.matchOptions())
	existing := make([]string, len(snap.records))
	for i, r := range snap.records {
		existing[i] = r.ID
	}
	ids := decide.NewIDAllocator(existing)

	current := snap.records
	var newFile []int // input position of each record in res.New
	for fi, arg := range req.Inputs {
		if err := ctx.Err(); err != nil {
			return eris.Wrap(err, "pipeline: merge")
		}
		var batch *inputBatch
		err := p.stage(log.With(zap.String("input", arg)), "match", func() error {
			batch = loadInput(arg)
			res.Errors = append(res.Errors, batch.errs...)
			p.metrics.Rows(schemaLabel(batch.stats.Schema), batch.stats.Rows)
			p.metrics.Skipped(schemaLabel(batch.stats.Schema), batch.skipReason, batch.stats.Skipped)
			p.metrics.Skipped(schemaLabel(batch.stats.Schema), reasonFiltered, batch.stats.Filtered)
			if len(batch.records) == 0 {
				return nil
			}

			results, err := matcher.MatchAll(ctx, batch.records)
			if err != nil {
				return err
			}
			decisions := thresholds.Decide(results)
			for _, d := range decisions {
				p.metrics.Decision(batch.stats.Schema, string(d.Outcome), d.Match.BestScore())
			}

			applied := decide.Apply(current, decisions, ids)
			current = applied.Canonical
			batch.stats.Duplicates, batch.stats.Review, batch.stats.New = applied.Counts()
			res.Merges = append(res.Merges, applied.Merges...)
			res.Review = append(res.Review, applied.Review...)
			for _, rec := range applied.New {
				res.New = append(res.New, rec)
				newFile = append(newFile, fi)
			}
			return nil
		})
		if err != nil {
			return err
		}
		res.Run.Files = append(res.Run.Files, batch.stats)
	}
	res.Canonical = current

	if p.cfg.Output.RequireCoordinates {
		res.New, newFile = p.dropUnlocated(res.New, newFile, res.Run.Files)
	}

	if p.cfg.Enrich.Enabled && p.reverser != nil && len(res.New) > 0 {
		_ = p.stage(log, "enrich", func() error {
			p.enrich(ctx, res, newFile)
			return nil
		})
	}

	for _, f := range res.Run.Files {
		res.Run.Totals.Add(f.Counts)
	}

	canonOut := req.OutputPath
	if canonOut == "" {
		stem := strings.TrimSuffix(filepath.Base(req.Canonical), filepath.Ext(req.Canonical))
		canonOut = filepath.Join(p.cfg.Output.Dir, stem+"-merged.csv")
	}
	outputs := []csvio.Output{
		{Path: canonOut, Header: snap.outputHeader(), Rows: canonicalRows(snap, res.Canonical, res.New)},
		{Path: filepath.Join(p.cfg.Output.Dir, p.cfg.Output.ReviewFile), Header: reviewHeader(snap.outputHeader()), Rows: reviewRows(snap.outputHeader(), res.Review)},
	}
	summaryPath := filepath.Join(p.cfg.Output.Dir, p.cfg.Output.SummaryFile)

	res.Run.FinishedAt = p.now().UTC()
	if req.DryRun {
		res.Summary = p.summarize(res, snap, nil, true)
		log.Info("pipeline: dry run, nothing written",
			zap.String("canonical_output", canonOut),
			zap.Int("canonical_rows", len(outputs[0].Rows)),
			zap.Int("review_rows", len(outputs[1].Rows)),
		)
		return nil
	}

	paths := []string{outputs[0].Path, outputs[1].Path, summaryPath}
	res.Summary = p.summarize(res, snap, paths, false)
	data, err := MarshalSummary(res.Summary)
	if err != nil {
		return err
	}

	batch := &csvio.Batch{}
	for _, o := range outputs {
		batch.Add(o)
	}
	batch.Add(csvio.Output{Path: summaryPath, Data: data})
	if err := p.stage(log, "write", batch.Commit); err != nil {
		return eris.Wrap(err, "pipeline: write outputs")
	}
	res.Run.Outputs = batch.Paths()
	return nil
}

// dropUnlocated removes new records without coordinates, counting them as
// skipped for their input.
func (p *Pipeline) dropUnlocated(recs []*model.Project, fileOf []int, files []model.FileStats) ([]*model.Project, []int) {
	keptRecs := recs[:0]
	keptFiles := fileOf[:0]
	for i, rec := range recs {
		if rec.HasLocation() {
			keptRecs = append(keptRecs, rec)
			keptFiles = append(keptFiles, fileOf[i])
			continue
		}
		f := &files[fileOf[i]]
		f.New--
		f.Skipped++
		p.metrics.Skipped(schemaLabel(f.Schema), reasonNoCoordinates, 1)
		zap.L().Debug("pipeline: dropping new record without coordinates",
			zap.String("id", rec.ID),
			zap.String("name", rec.Name),
			zap.String("file", rec.Source.File),
			zap.Int("row", rec.Source.Row),
		)
	}
	return keptRecs, keptFiles
}

// enrich backfills new records and counts failed lookups per input.
func (p *Pipeline) enrich(ctx context.Context, res *Result, fileOf []int) {
	byID := make(map[string]int, len(res.New))
	for i, rec := range res.New {
		byID[rec.ID] = fileOf[i]
	}

	resolver := enrich.NewResolver(p.reverser, enrich.Options{
		Concurrency: p.cfg.Enrich.Concurrency,
		Timeout:     time.Duration(p.cfg.Enrich.TimeoutSecs) * time.Second,
	})
	stats, errs := resolver.Resolve(ctx, res.New)
	res.Enrich = stats

	for _, err := range errs {
		var lerr *enrich.GeocodeLookupError
		if errors.As(err, &lerr) {
			if fi, ok := byID[lerr.ID]; ok {
				res.Run.Files[fi].Errored++
			}
		}
		res.Errors = append(res.Errors, err)
	}

	p.metrics.Lookup(metrics.LookupFound, stats.Eligible-stats.NotFound-stats.Failed)
	p.metrics.Lookup(metrics.LookupNotFound, stats.NotFound)
	for class, n := range stats.Failures {
		p.metrics.Lookup(class, n)
	}
}

// stage runs fn and logs its duration.
func (p *Pipeline) stage(log *zap.Logger, name string, fn func() error) error {
	start := time.Now()
	err := fn()
	duration := time.Since(start).Milliseconds()
	if err != nil {
		log.Error("pipeline: stage failed",
			zap.String("stage", name),
			zap.Int64("duration_ms", duration),
			zap.Error(err),
		)
		return err
	}
	log.Info("pipeline: stage complete",
		zap.String("stage", name),
		zap.Int64("duration_ms", duration),
	)
	return nil
}

func (p *Pipeline) record(ctx context.Context, run *model.Run) {
	if p.store == nil {
		return
	}
	if err := p.store.RecordRun(context.WithoutCancel(ctx), run); err != nil {
		zap.L().Warn("pipeline: failed to record run", zap.String("run_id", run.ID), zap.Error(err))
	}
}

func (p *Pipeline) thresholds() decide.Thresholds {
	return decide.Thresholds{
		Duplicate: p.cfg.Dedup.DuplicateThreshold,
		Review:    p.cfg.Dedup.ReviewThreshold,
	}
}

func (p *Pipeline) indexOptions() index.Options {
	return index.Options{
		RadiusKm:    p.cfg.Dedup.RadiusKm,
		CellDegrees: p.cfg.Dedup.CellDegrees,
	}
}

func (p *Pipeline) matchOptions() match.Options {
	return match.Options{
		Finder: match.FinderOptions{
			FallbackMax:    p.cfg.Dedup.FallbackMaxCandidates,
			FallbackMinSim: p.cfg.Dedup.FallbackMinSimilarity,
		},
		TopN:    p.cfg.Dedup.TopMatches,
		Workers: p.cfg.Scoring.Workers,
	}
}

func schemaLabel(schema string) string {
	if schema == "" {
		return "unknown"
	}
	return schema
}
