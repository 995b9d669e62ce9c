package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the pipeline's Prometheus collectors.
type Metrics struct {
	EventsProcessed   *prometheus.CounterVec
	Duplicates        prometheus.Counter
	Failures          *prometheus.CounterVec
	BatchesRejected   prometheus.Counter
	ProcessingSeconds prometheus.Histogram
}

// New registers the collectors on reg. Passing nil registers on a private
// registry, which keeps tests independent.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	factory := promauto.With(reg)

	return &Metrics{
		EventsProcessed: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "vaultindex",
			Name:      "events_processed_total",
			Help:      "Events processed, by event kind.",
		}, []string{"kind"}),
		Duplicates: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "vaultindex",
			Name:      "duplicate_events_total",
			Help:      "Deliveries answered from the idempotency ledger.",
		}),
		Failures: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "vaultindex",
			Name:      "event_failures_total",
			Help:      "Failed events, by pipeline phase.",
		}, []string{"phase"}),
		BatchesRejected: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "vaultindex",
			Name:      "batches_rejected_total",
			Help:      "Batches rejected for exceeding the size limit.",
		}),
		ProcessingSeconds: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "vaultindex",
			Name:      "event_processing_seconds",
			Help:      "Wall time spent processing one event.",
			Buckets:   prometheus.DefBuckets,
		}),
	}
}
