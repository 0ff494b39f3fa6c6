// Package metrics provides Prometheus metrics for the dashboard service:
// proxy traffic, backend fallbacks, polling activity, notifications and
// exports.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "profiledash_http_requests_total",
			Help: "Total number of HTTP requests handled by the proxy",
		},
		[]string{"method", "endpoint", "status"},
	)
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "profiledash_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint"},
	)
	BackendFallbacks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "profiledash_backend_fallbacks_total",
			Help: "Total number of proxy responses served from mock fallbacks",
		},
		[]string{"endpoint"},
	)
	PollsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "profiledash_polls_total",
			Help: "Total number of poll fetches by kind and outcome",
		},
		[]string{"kind", "outcome"},
	)
	NotificationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "profiledash_notifications_total",
			Help: "Total number of notifications dispatched by status",
		},
		[]string{"status"},
	)
	ExportsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "profiledash_exports_total",
			Help: "Total number of CSV export attempts",
		},
		[]string{"dataset_type", "status"},
	)
	TrackedTasks = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "profiledash_tracked_tasks",
			Help: "Current number of tracked tasks by status view",
		},
		[]string{"view"},
	)
	BackendRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "profiledash_backend_request_duration_seconds",
			Help:    "Upstream backend request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)
	CacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "profiledash_cache_hits_total",
			Help: "Total number of proxy cache lookups by result",
		},
		[]string{"result"},
	)
)

func RecordHTTPRequest(method, endpoint, status string, duration time.Duration) {
	HTTPRequestsTotal.WithLabelValues(method, endpoint, status).Inc()
	HTTPRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

func RecordFallback(endpoint string) {
	BackendFallbacks.WithLabelValues(endpoint).Inc()
}

func RecordPoll(kind, outcome string) {
	PollsTotal.WithLabelValues(kind, outcome).Inc()
}

func RecordNotification(status string) {
	NotificationsTotal.WithLabelValues(status).Inc()
}

func RecordExport(datasetType, status string) {
	ExportsTotal.WithLabelValues(datasetType, status).Inc()
}

func RecordBackendRequest(operation string, duration time.Duration) {
	BackendRequestDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

func RecordCacheLookup(hit bool) {
	if hit {
		CacheHits.WithLabelValues("hit").Inc()
		return
	}
	CacheHits.WithLabelValues("miss").Inc()
}

// UpdateTaskGauges replaces the tracked task gauges from the store's derived
// views.
func UpdateTaskGauges(active, completed, failed int) {
	TrackedTasks.WithLabelValues("active").Set(float64(active))
	TrackedTasks.WithLabelValues("completed").Set(float64(completed))
	TrackedTasks.WithLabelValues("failed").Set(float64(failed))
}
