package telemetry

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics wraps the Prometheus collectors used by the ingest service.
type Metrics struct {
	eventsIngested prometheus.Counter
	ingestBatches  *prometheus.CounterVec
	batchSize      prometheus.Histogram
	queryDuration  prometheus.Histogram
}

// NewMetrics registers collectors with the provided registry and returns a
// helper instance.
func NewMetrics(registry *prometheus.Registry) *Metrics {
	m := &Metrics{
		eventsIngested: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "ingest_events_total",
				Help: "Total number of telemetry events durably committed.",
			},
		),
		ingestBatches: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ingest_batches_total",
				Help: "Ingest batches processed, labelled by outcome (ok, invalid, error).",
			},
			[]string{"outcome"},
		),
		batchSize: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "ingest_batch_size",
				Help:    "Number of events per accepted ingest batch.",
				Buckets: []float64{1, 2, 5, 10, 25, 50, 100, 250, 500},
			},
		),
		queryDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "ingest_query_duration_seconds",
				Help:    "Latency distribution of the event read path.",
				Buckets: prometheus.DefBuckets,
			},
		),
	}

	registry.MustRegister(m.eventsIngested, m.ingestBatches, m.batchSize, m.queryDuration)
	return m
}

// Handler returns an HTTP handler for the metrics endpoint.
func Handler(registry *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}

// ObserveIngest records the outcome of one ingest batch; committed is only
// nonzero for outcome "ok".
func (m *Metrics) ObserveIngest(outcome string, committed int) {
	m.ingestBatches.WithLabelValues(outcome).Inc()
	if committed > 0 {
		m.eventsIngested.Add(float64(committed))
		m.batchSize.Observe(float64(committed))
	}
}

// ObserveQuery records a completed read-path request.
func (m *Metrics) ObserveQuery(duration time.Duration) {
	m.queryDuration.Observe(duration.Seconds())
}
