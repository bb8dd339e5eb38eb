package metrics

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// value returns the sample of name whose labels include want.
func value(t *testing.T, m *Metrics, name string, want map[string]string) float64 {
	t.Helper()

	families, err := m.registry.Gather()
	require.NoError(t, err)

	for _, f := range families {
		if f.GetName() != name {
			continue
		}
	metrics:
		for _, metric := range f.GetMetric() {
			labels := make(map[string]string)
			for _, lp := range metric.GetLabel() {
				labels[lp.GetName()] = lp.GetValue()
			}
			for k, v := range want {
				if labels[k] != v {
					continue metrics
				}
			}
			if c := metric.GetCounter(); c != nil {
				return c.GetValue()
			}
			return metric.GetGauge().GetValue()
		}
	}

	t.Fatalf("metric %s %v not found", name, want)
	return 0
}

func TestCounters(t *testing.T) {
	m := New()

	m.Fetched("ocds", 12)
	m.Dropped("ledger", 3)
	m.Dropped("relevance", 7)
	m.Dropped("relevance", 1)
	m.Matched(2)
	m.ModelAvailable(true)
	m.Delivered("crm", 1, true)
	m.Delivered("email", 2, false)
	m.Recorded(2)

	assert.Equal(t, 12.0, value(t, m, "tender_matcher_fetched_total", map[string]string{"source": "ocds"}))
	assert.Equal(t, 8.0, value(t, m, "tender_matcher_dropped_total", map[string]string{"step": "relevance"}))
	assert.Equal(t, 2.0, value(t, m, "tender_matcher_matched", nil))
	assert.Equal(t, 1.0, value(t, m, "tender_matcher_model_available", nil))
	assert.Equal(t, 1.0, value(t, m, "tender_matcher_delivery_failures_total", map[string]string{"sink": "crm"}))
	assert.Equal(t, 2.0, value(t, m, "tender_matcher_delivered_total", map[string]string{"sink": "email"}))
	assert.Equal(t, 2.0, value(t, m, "tender_matcher_ledger_recorded_total", nil))

	m.ModelAvailable(false)
	assert.Equal(t, 0.0, value(t, m, "tender_matcher_model_available", nil))
}

func TestWriteToTextfile(t *testing.T) {
	m := New()
	m.Fetched("rss", 4)
	started := time.Unix(1700000000, 0)
	m.Finish(started, started.Add(90*time.Second))

	path := filepath.Join(t.TempDir(), "tender_matcher.prom")
	require.NoError(t, m.WriteToTextfile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	out := string(data)

	assert.Contains(t, out, `tender_matcher_fetched_total{source="rss"} 4`)
	assert.Contains(t, out, "tender_matcher_last_run_duration_seconds 90")
	assert.Contains(t, out, "tender_matcher_last_run_timestamp_seconds ")
}

func TestWriteToTextfileRequiresPath(t *testing.T) {
	require.Error(t, New().WriteToTextfile(""))
}
