// Package metrics collects per-run counters for the node-exporter textfile
// collector. The run is a batch job without a listener, so the registry is
// written to disk once at the end.
package metrics

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "tender_matcher"

type Metrics struct {
	registry *prometheus.Registry

	fetched          *prometheus.CounterVec
	dropped          *prometheus.CounterVec
	matched          prometheus.Gauge
	modelAvailable   prometheus.Gauge
	delivered        *prometheus.CounterVec
	deliveryFailures *prometheus.CounterVec
	recorded         prometheus.Counter
	lastRun          prometheus.Gauge
	duration         prometheus.Gauge
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		fetched: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fetched_total",
			Help:      "Opportunities fetched from the upstream source.",
		}, []string{"source"}),
		dropped: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dropped_total",
			Help:      "Opportunities dropped per pipeline step.",
		}, []string{"step"}),
		matched: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "matched",
			Help:      "Matches produced by the last run.",
		}),
		modelAvailable: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "model_available",
			Help:      "1 when the relevance model was loaded for the last run.",
		}),
		delivered: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "delivered_total",
			Help:      "Matches acknowledged per sink.",
		}, []string{"sink"}),
		deliveryFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "delivery_failures_total",
			Help:      "Sink deliveries that reported an error.",
		}, []string{"sink"}),
		recorded: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ledger_recorded_total",
			Help:      "Identifiers written to the processed ledger.",
		}),
		lastRun: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_run_timestamp_seconds",
			Help:      "Unix time the last run finished.",
		}),
		duration: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_run_duration_seconds",
			Help:      "Wall time of the last run.",
		}),
	}
}

func (m *Metrics) Fetched(source string, n int) {
	m.fetched.WithLabelValues(source).Add(float64(n))
}

func (m *Metrics) Dropped(step string, n int) {
	m.dropped.WithLabelValues(step).Add(float64(n))
}

func (m *Metrics) Matched(n int) {
	m.matched.Set(float64(n))
}

func (m *Metrics) ModelAvailable(ok bool) {
	if ok {
		m.modelAvailable.Set(1)
		return
	}
	m.modelAvailable.Set(0)
}

func (m *Metrics) Delivered(sink string, acked int, failed bool) {
	m.delivered.WithLabelValues(sink).Add(float64(acked))
	if failed {
		m.deliveryFailures.WithLabelValues(sink).Inc()
	}
}

func (m *Metrics) Recorded(n int) {
	m.recorded.Add(float64(n))
}

// Finish stamps the run end and its duration.
func (m *Metrics) Finish(started, now time.Time) {
	m.lastRun.Set(float64(now.Unix()))
	m.duration.Set(now.Sub(started).Seconds())
}

// WriteToTextfile writes the registry atomically to path.
func (m *Metrics) WriteToTextfile(path string) error {
	if path == "" {
		return errors.New("metrics file path is empty")
	}
	return prometheus.WriteToTextfile(path, m.registry)
}
