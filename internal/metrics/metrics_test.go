package metrics

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecorder_Counters(t *testing.T) {
	r := New()

	r.Rows("EPA", 4)
	r.Decision("EPA", "duplicate", 95)
	r.Decision("EPA", "new", 10)
	r.Decision("EPA", "new", 0)
	r.Skipped("EPA", "schema", 2)
	r.Skipped("EPA", "filtered", 0)
	r.Lookup(LookupFound, 3)
	r.Lookup("timeout", 1)

	assert.InDelta(t, 4, testutil.ToFloat64(r.rows.WithLabelValues("EPA")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(r.decisions.WithLabelValues("EPA", "duplicate")), 0)
	assert.InDelta(t, 2, testutil.ToFloat64(r.decisions.WithLabelValues("EPA", "new")), 0)
	assert.InDelta(t, 2, testutil.ToFloat64(r.skipped.WithLabelValues("EPA", "schema")), 0)
	assert.Equal(t, 1, testutil.CollectAndCount(r.skipped), "zero counts create no series")
	assert.InDelta(t, 3, testutil.ToFloat64(r.lookups.WithLabelValues(LookupFound)), 0)
	assert.Equal(t, 1, testutil.CollectAndCount(r.bestScore))
}

func TestRecorder_Finished(t *testing.T) {
	r := New()
	start := time.Unix(1_700_000_000, 0)

	r.Finished(start, start.Add(90*time.Second), false)
	assert.InDelta(t, 90, testutil.ToFloat64(r.runDuration), 0.001)
	assert.InDelta(t, 0, testutil.ToFloat64(r.lastSuccess), 0)

	r.Finished(start, start.Add(30*time.Second), true)
	assert.InDelta(t, float64(start.Add(30*time.Second).Unix()), testutil.ToFloat64(r.lastSuccess), 0)
}

func TestRecorder_WriteTextfile(t *testing.T) {
	r := New()
	r.Decision("DOE", "needs-review", 55)
	r.Lookup(LookupNotFound, 1)

	path := filepath.Join(t.TempDir(), "projectmerge.prom")
	require.NoError(t, r.WriteTextfile(path))

	body, err := os.ReadFile(path)
	require.NoError(t, err)
	text := string(body)
	assert.Contains(t, text, `projectmerge_decisions_total{outcome="needs-review",schema="DOE"} 1`)
	assert.Contains(t, text, `projectmerge_geocode_lookups_total{result="not_found"} 1`)
	assert.Contains(t, text, `projectmerge_best_score_bucket{le="60"} 1`)
}

func TestRecorder_WriteTextfileBadDir(t *testing.T) {
	r := New()
	err := r.WriteTextfile(filepath.Join(t.TempDir(), "missing", "x.prom"))
	assert.Error(t, err)
}

func TestRecorder_IndependentRegistries(t *testing.T) {
	a, b := New(), New()
	a.Decision("WH", "new", 0)
	assert.InDelta(t, 0, testutil.ToFloat64(b.decisions.WithLabelValues("WH", "new")), 0)
}
