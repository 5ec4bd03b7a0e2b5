package pipeline

import (
	"bytes"
	"fmt"
	"io"
	"path/filepath"
	"text/tabwriter"
	"time"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/projectmerge/internal/model"
)

// Summary is the machine-readable record of one run, written next to the
// outputs.
type Summary struct {
	RunID            string            `yaml:"run_id"`
	DryRun           bool              `yaml:"dry_run,omitempty"`
	StartedAt        time.Time         `yaml:"started_at"`
	FinishedAt       time.Time         `yaml:"finished_at"`
	Canonical        string            `yaml:"canonical"`
	CanonicalRecords int               `yaml:"canonical_records"`
	OutputRecords    int               `yaml:"output_records"`
	Thresholds       ThresholdSummary  `yaml:"thresholds"`
	Totals           model.Counts      `yaml:"totals"`
	Files            []model.FileStats `yaml:"files"`
	Geocode          *GeocodeSummary   `yaml:"geocode,omitempty"`
	Outputs          []string          `yaml:"outputs,omitempty"`
}

// ThresholdSummary records the classification bounds a run used.
type ThresholdSummary struct {
	Duplicate int `yaml:"duplicate"`
	Review    int `yaml:"review"`
}

// GeocodeSummary counts enrichment lookups.
type GeocodeSummary struct {
	Eligible int            `yaml:"eligible"`
	Filled   int            `yaml:"filled"`
	NotFound int            `yaml:"not_found"`
	Failed   int            `yaml:"failed"`
	Failures map[string]int `yaml:"failures,omitempty"`
}

func (p *Pipeline) summarize(res *Result, snap *snapshot, outputs []string, dryRun bool) Summary {
	t := p.thresholds()
	s := Summary{
		RunID:            res.Run.ID,
		DryRun:           dryRun,
		StartedAt:        res.Run.StartedAt,
		FinishedAt:       res.Run.FinishedAt,
		Canonical:        res.Run.Canonical,
		CanonicalRecords: len(snap.records),
		OutputRecords:    len(res.Canonical) + len(res.New),
		Thresholds:       ThresholdSummary{Duplicate: t.Duplicate, Review: t.Review},
		Totals:           res.Run.Totals,
		Files:            res.Run.Files,
		Outputs:          outputs,
	}
	if res.Enrich.Eligible > 0 {
		s.Geocode = &GeocodeSummary{
			Eligible: res.Enrich.Eligible,
			Filled:   res.Enrich.Filled,
			NotFound: res.Enrich.NotFound,
			Failed:   res.Enrich.Failed,
			Failures: res.Enrich.Failures,
		}
		if len(s.Geocode.Failures) == 0 {
			s.Geocode.Failures = nil
		}
	}
	return s
}

// MarshalSummary renders a summary as YAML.
func MarshalSummary(s Summary) ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(s); err != nil {
		return nil, eris.Wrap(err, "pipeline: encode summary")
	}
	if err := enc.Close(); err != nil {
		return nil, eris.Wrap(err, "pipeline: encode summary")
	}
	return buf.Bytes(), nil
}

// WriteTable prints the per-file counts and a total line.
func WriteTable(w io.Writer, files []model.FileStats, totals model.Counts) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "FILE\tSCHEMA\tROWS\tNEW\tDUPLICATES\tREVIEW\tSKIPPED\tFILTERED\tERRORED")
	for _, f := range files {
		schema := f.Schema
		if schema == "" {
			schema = "-"
		}
		fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%d\t%d\t%d\t%d\t%d\n",
			filepath.Base(f.File), schema, f.Rows, f.New, f.Duplicates, f.Review, f.Skipped, f.Filtered, f.Errored)
	}
	fmt.Fprintf(tw, "TOTAL\t\t%d\t%d\t%d\t%d\t%d\t%d\t%d\n",
		totals.Rows, totals.New, totals.Duplicates, totals.Review, totals.Skipped, totals.Filtered, totals.Errored)
	return eris.Wrap(tw.Flush(), "pipeline: write table")
}
