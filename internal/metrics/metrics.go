package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP request metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "smart_alerting_http_requests_total",
			Help: "Total number of HTTP requests processed",
		},
		[]string{"method", "endpoint", "status_code"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "smart_alerting_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint"},
	)

	// Pipeline metrics
	AlertsReceived = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "smart_alerting_received_total",
			Help: "Total alerts received",
		},
		[]string{"source"},
	)

	AlertsSuppressed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "smart_alerting_suppressed_total",
			Help: "Total alerts suppressed",
		},
		[]string{"reason"},
	)

	AlertGroupsCreated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "smart_alerting_grouped_total",
			Help: "Total alert groups created or extended",
		},
	)

	AlertsRouted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "smart_alerting_routed_total",
			Help: "Total alert groups routed",
		},
		[]string{"channel"},
	)

	FatigueReduction = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "smart_alerting_fatigue_reduction",
			Help: "Alert fatigue reduction percentage",
		},
	)

	ProcessingDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "smart_alerting_processing_duration_seconds",
			Help:    "Alert processing duration",
			Buckets: []float64{0.1, 0.5, 1.0, 2.0, 5.0, 10.0},
		},
	)

	// KV store metrics
	CacheRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "smart_alerting_cache_requests_total",
			Help: "Total number of KV store requests",
		},
		[]string{"operation", "result"}, // get/set/delete/incr, hit/miss/success/error
	)

	// Notification sink metrics
	NotificationsSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "smart_alerting_notifications_sent_total",
			Help: "Total number of notifications sent to sinks",
		},
		[]string{"channel", "success"}, // pagerduty/slack/mattermost, true/false
	)

	// Live stream connections
	ActiveWebSocketConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "smart_alerting_websocket_connections_active",
			Help: "Number of active WebSocket stream connections",
		},
	)
)

// RecordCacheOperation records the outcome of a single KV store operation.
func RecordCacheOperation(operation, result string) {
	CacheRequestsTotal.WithLabelValues(operation, result).Inc()
}
