// Package metrics exposes Prometheus instrumentation for oracle queries.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Query outcomes.
const (
	OutcomeOK          = "ok"
	OutcomeTransport   = "transport_error"
	OutcomeApplication = "application_error"
	OutcomeNoIntent    = "no_intent"
)

var (
	// QueriesTotal counts oracle interactions by kind and outcome.
	QueriesTotal *prometheus.CounterVec

	// QueryDuration observes gateway round-trip latency.
	QueryDuration *prometheus.HistogramVec

	// PendingQueries tracks gateway calls still in flight.
	PendingQueries prometheus.Gauge

	// SessionsActive tracks live conversation sessions.
	SessionsActive prometheus.Gauge
)

func init() {
	QueriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "oracle",
			Name:      "queries_total",
			Help:      "Total oracle queries by kind and outcome",
		},
		[]string{"kind", "outcome"},
	)

	QueryDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "oracle",
			Name:      "query_duration_seconds",
			Help:      "Oracle gateway round-trip time in seconds",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
		},
		[]string{"kind"},
	)

	PendingQueries = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "oracle",
		Name:      "queries_pending",
		Help:      "Oracle queries awaiting a gateway answer",
	})

	SessionsActive = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "conversation",
		Name:      "sessions_active",
		Help:      "Conversation sessions currently held in memory",
	})

	prometheus.MustRegister(QueriesTotal, QueryDuration, PendingQueries, SessionsActive)
}

// RecordQuery records a finished gateway query.
func RecordQuery(kind, outcome string, elapsed time.Duration) {
	if kind == "" {
		kind = "unknown"
	}
	QueriesTotal.WithLabelValues(kind, outcome).Inc()
	QueryDuration.WithLabelValues(kind).Observe(elapsed.Seconds())
}

// RecordNoIntent records an utterance that could not be routed.
func RecordNoIntent() {
	QueriesTotal.WithLabelValues("none", OutcomeNoIntent).Inc()
}

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
