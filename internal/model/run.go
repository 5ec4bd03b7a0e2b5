package model

import "time"

// RunStatus is the terminal state of a merge run.
type RunStatus string

const (
	RunStatusComplete RunStatus = "complete"
	RunStatusFailed   RunStatus = "failed"
)

// Counts tallies what happened to the rows of one input (or a whole run).
type Counts struct {
	Rows       int `json:"rows" yaml:"rows"`
	Duplicates int `json:"duplicates" yaml:"duplicates"`
	Review     int `json:"review" yaml:"review"`
	New        int `json:"new" yaml:"new"`
	Skipped    int `json:"skipped" yaml:"skipped"`   // schema errors and unusable rows
	Filtered   int `json:"filtered" yaml:"filtered"` // dropped by per-source rules
	Errored    int `json:"errored" yaml:"errored"`   // failed geocode lookups
}

// Add accumulates o into c.
func (c *Counts) Add(o Counts) {
	c.Rows += o.Rows
	c.Duplicates += o.Duplicates
	c.Review += o.Review
	c.New += o.New
	c.Skipped += o.Skipped
	c.Filtered += o.Filtered
	c.Errored += o.Errored
}

// FileStats are the counts for one input file.
type FileStats struct {
	File   string `json:"file" yaml:"file"`
	Schema string `json:"schema" yaml:"schema"`
	Counts `yaml:",inline"`
}

// Run is one recorded merge run.
type Run struct {
	ID         string      `json:"id" yaml:"id"`
	Status     RunStatus   `json:"status" yaml:"status"`
	StartedAt  time.Time   `json:"started_at" yaml:"started_at"`
	FinishedAt time.Time   `json:"finished_at" yaml:"finished_at"`
	Canonical  string      `json:"canonical" yaml:"canonical"`
	Inputs     []string    `json:"inputs" yaml:"inputs"`
	Outputs    []string    `json:"outputs,omitempty" yaml:"outputs,omitempty"`
	Totals     Counts      `json:"totals" yaml:"totals"`
	Files      []FileStats `json:"files" yaml:"files"`
	Error      string      `json:"error,omitempty" yaml:"error,omitempty"`
}
