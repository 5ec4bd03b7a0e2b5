// Package metrics holds the Prometheus metrics of a merge run. Each run
// gets its own registry so metrics can be written to a node_exporter
// textfile once the run finishes.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rotisserie/eris"
)

const namespace = "projectmerge"

// Geocode lookup results besides the resilience failure classes.
const (
	LookupFound    = "found"
	LookupNotFound = "not_found"
)

// Recorder collects the metrics of one run.
type Recorder struct {
	reg *prometheus.Registry

	decisions   *prometheus.CounterVec
	skipped     *prometheus.CounterVec
	lookups     *prometheus.CounterVec
	bestScore   prometheus.Histogram
	rows        *prometheus.CounterVec
	runDuration prometheus.Gauge
	lastSuccess prometheus.Gauge
}

// New creates a Recorder with its own registry.
func New() *Recorder {
	r := &Recorder{
		reg: prometheus.NewRegistry(),

		decisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "decisions_total",
			Help:      "Incoming records by decision outcome",
		}, []string{"schema", "outcome"}),

		skipped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "skipped_rows_total",
			Help:      "Incoming rows not matched, by reason",
		}, []string{"schema", "reason"}),

		lookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "geocode_lookups_total",
			Help:      "Reverse geocode lookups by result",
		}, []string{"result"}),

		bestScore: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "best_score",
			Help:      "Best candidate score per incoming record",
			Buckets:   []float64{0, 10, 20, 30, 40, 50, 60, 70, 80, 90, 100},
		}),

		rows: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rows_read_total",
			Help:      "Rows read per input schema",
		}, []string{"schema"}),

		runDuration: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Wall time of the last run",
		}),

		lastSuccess: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_success_timestamp_seconds",
			Help:      "Unix time the last successful run finished",
		}),
	}

	r.reg.MustRegister(
		r.decisions, r.skipped, r.lookups,
		r.bestScore, r.rows,
		r.runDuration, r.lastSuccess,
	)
	return r
}

// Registry exposes the underlying registry.
func (r *Recorder) Registry() *prometheus.Registry { return r.reg }

// Rows counts rows read from an input.
func (r *Recorder) Rows(schema string, n int) {
	r.rows.WithLabelValues(schema).Add(float64(n))
}

// Decision counts one classified record and observes its best score.
func (r *Recorder) Decision(schema, outcome string, bestScore int) {
	r.decisions.WithLabelValues(schema, outcome).Inc()
	r.bestScore.Observe(float64(bestScore))
}

// Skipped counts n rows skipped for reason. Zero counts are ignored.
func (r *Recorder) Skipped(schema, reason string, n int) {
	if n <= 0 {
		return
	}
	r.skipped.WithLabelValues(schema, reason).Add(float64(n))
}

// Lookup counts n geocode lookups with the given result.
func (r *Recorder) Lookup(result string, n int) {
	if n <= 0 {
		return
	}
	r.lookups.WithLabelValues(result).Add(float64(n))
}

// Finished records the run's duration and, on success, its finish time.
func (r *Recorder) Finished(started, finished time.Time, ok bool) {
	r.runDuration.Set(finished.Sub(started).Seconds())
	if ok {
		r.lastSuccess.Set(float64(finished.Unix()))
	}
}

// WriteTextfile writes every metric in the text exposition format. The
// file is replaced atomically.
func (r *Recorder) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, r.reg); err != nil {
		return eris.Wrapf(err, "metrics: write %s", path)
	}
	return nil
}
