// Package metrics provides Prometheus metrics instrumentation.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RequestDuration tracks HTTP request duration.
	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60, 300},
		},
		[]string{"method", "path", "status"},
	)

	// RequestsTotal tracks total HTTP requests.
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	// LookupsTotal counts lookups by outcome.
	LookupsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_lookups_total",
			Help: "Total lookups by status",
		},
		[]string{"status"},
	)

	// LookupDuration tracks the full correlate+aggregate cycle.
	LookupDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "relay_lookup_duration_seconds",
			Help:    "Lookup duration including the reply window",
			Buckets: []float64{.5, 1, 2, 5, 10, 20, 30, 45, 60, 90},
		},
	)

	// RepliesPerLookup tracks how many replies a successful lookup aggregated.
	RepliesPerLookup = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "relay_replies_per_lookup",
			Help:    "Number of aggregated replies per successful lookup",
			Buckets: []float64{1, 2, 3, 4, 5, 8, 13},
		},
	)

	// UpstreamFloodWaits counts rate-limit signals received from the messaging platform.
	UpstreamFloodWaits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "relay_upstream_flood_waits_total",
			Help: "Rate-limit signals received from the messaging platform",
		},
	)

	// CorrelationFallbacks counts lookups that took the degraded send-then-read path.
	CorrelationFallbacks = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "relay_correlation_fallbacks_total",
			Help: "Correlations that fell back to reading the latest message",
		},
	)

	// BatchItemsTotal counts batch items by outcome.
	BatchItemsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_batch_items_total",
			Help: "Total batch items by status",
		},
		[]string{"status"},
	)

	// RateLimitRejections counts requests rejected by a limiter.
	RateLimitRejections = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ratelimit_rejections_total",
			Help: "Requests rejected by a rate limiter",
		},
		[]string{"scope"},
	)

	// SSEConnectionsActive tracks active SSE connections.
	SSEConnectionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "sse_connections_active",
			Help: "Number of active SSE connections",
		},
	)
)

// RecordRequest records metrics for an HTTP request.
func RecordRequest(method, path, status string, duration float64) {
	RequestDuration.WithLabelValues(method, path, status).Observe(duration)
	RequestsTotal.WithLabelValues(method, path, status).Inc()
}

// RecordLookup records metrics for a finished lookup.
func RecordLookup(status string, duration float64, replies int) {
	LookupsTotal.WithLabelValues(status).Inc()
	LookupDuration.Observe(duration)
	if replies > 0 {
		RepliesPerLookup.Observe(float64(replies))
	}
}

// IncrementSSEConnections increments the active SSE connection count.
func IncrementSSEConnections() {
	SSEConnectionsActive.Inc()
}

// DecrementSSEConnections decrements the active SSE connection count.
func DecrementSSEConnections() {
	SSEConnectionsActive.Dec()
}
