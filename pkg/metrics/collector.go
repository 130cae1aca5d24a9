// Package metrics exposes Prometheus instrumentation for the conversation
// runtime.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	updatesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bot_updates_total",
			Help: "Total number of handled updates labeled by event kind and routing outcome",
		},
		[]string{"kind", "outcome"},
	)
	renderDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "node_render_duration_seconds",
			Help:    "Duration of node renders in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"node_type"},
	)
	autoHops = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "auto_transition_hops",
			Help:    "Length of completed auto-transition chains",
			Buckets: []float64{1, 2, 3, 5, 8, 13, 21},
		},
	)
	chainOverflowsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "auto_transition_overflows_total",
			Help: "Auto-transition chains aborted at the hop ceiling",
		},
	)
	routingMissesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "routing_misses_total",
			Help: "Updates whose payload matched no known node",
		},
	)
	persistenceFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "persistence_failures_total",
			Help: "Best-effort durable writes that failed after retries",
		},
		[]string{"op"},
	)
	activeSessions = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "active_sessions",
			Help: "Users currently holding a waiting session, by session type",
		},
		[]string{"type"},
	)
	broadcastsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "broadcast_messages_total",
			Help: "Broadcast deliveries by status",
		},
		[]string{"status"},
	)
)

// RecordUpdate counts one handled update.
func RecordUpdate(kind, outcome string) {
	if kind == "" {
		kind = "unknown"
	}
	if outcome == "" {
		outcome = "unknown"
	}
	updatesTotal.WithLabelValues(kind, outcome).Inc()
}

// RecordRender observes one node render.
func RecordRender(nodeType string, duration time.Duration) {
	renderDurationSeconds.WithLabelValues(nodeType).Observe(duration.Seconds())
}

// RecordAutoHops observes a completed auto-transition chain length.
func RecordAutoHops(hops int) {
	autoHops.Observe(float64(hops))
}

// RecordChainOverflow counts a chain aborted at the hop ceiling.
func RecordChainOverflow() {
	chainOverflowsTotal.Inc()
}

// RecordRoutingMiss counts an unroutable payload.
func RecordRoutingMiss() {
	routingMissesTotal.Inc()
}

// RecordPersistenceFailure counts a durable write lost after retries.
func RecordPersistenceFailure(op string) {
	persistenceFailuresTotal.WithLabelValues(op).Inc()
}

// SetActiveSessions publishes the current waiting-session counts.
func SetActiveSessions(inputs, selects int) {
	activeSessions.WithLabelValues("input").Set(float64(inputs))
	activeSessions.WithLabelValues("multi_select").Set(float64(selects))
}

// RecordBroadcast counts one broadcast delivery attempt.
func RecordBroadcast(status string) {
	broadcastsTotal.WithLabelValues(status).Inc()
}
