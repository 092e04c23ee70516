// Package metrics provides Prometheus metrics for docnav.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Load results. Every published outcome is counted under exactly one.
const (
	LoadOK           = "ok"
	LoadEmpty        = "empty"
	LoadInvalidState = "invalid_state"
	LoadQuietMode    = "quiet_mode"
	LoadNoPermission = "no_permission"
	LoadFailed       = "failed"
)

var (
	// Loader metrics
	loadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "docnav_loads_total",
			Help: "Published child loads by result",
		},
		[]string{"result"},
	)

	loadDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "docnav_load_duration_seconds",
			Help:    "Time from load request to publication",
			Buckets: prometheus.DefBuckets,
		},
	)

	loadsSuperseded = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "docnav_loads_superseded_total",
			Help: "Loads whose result was discarded because a newer load was requested",
		},
	)

	// Navigation metrics
	pathResolutionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "docnav_path_resolutions_total",
			Help: "Document path resolutions by result",
		},
		[]string{"result"},
	)

	accessChecksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "docnav_access_checks_total",
			Help: "Cross-profile access decisions",
		},
		[]string{"result"},
	)

	navigationEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "docnav_navigation_events_total",
			Help: "Navigation requests published by type",
		},
		[]string{"type"},
	)

	navigationSubscribers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "docnav_navigation_subscribers",
			Help: "Active navigation request subscribers",
		},
	)

	// Provider metrics
	providerOperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "docnav_provider_operation_duration_seconds",
			Help:    "Provider operation duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"provider", "operation"},
	)

	providerOperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "docnav_provider_operations_total",
			Help: "Provider operations by status",
		},
		[]string{"provider", "operation", "status"},
	)

	archiveCacheBytes = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "docnav_archive_cache_bytes",
			Help: "Bytes held by the archive cache",
		},
	)
)

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordLoad records a published load outcome.
func RecordLoad(result string, duration time.Duration) {
	loadsTotal.WithLabelValues(result).Inc()
	loadDuration.Observe(duration.Seconds())
}

// RecordLoadSuperseded records a discarded stale load.
func RecordLoadSuperseded() {
	loadsSuperseded.Inc()
}

// RecordPathResolution records the result of resolving a document to a stack.
func RecordPathResolution(result string) {
	pathResolutionsTotal.WithLabelValues(result).Inc()
}

// RecordAccessCheck records a cross-profile access decision.
func RecordAccessCheck(allowed bool) {
	result := "allowed"
	if !allowed {
		result = "denied"
	}
	accessChecksTotal.WithLabelValues(result).Inc()
}

// RecordNavigationEvent records a published navigation request.
func RecordNavigationEvent(eventType string) {
	navigationEventsTotal.WithLabelValues(eventType).Inc()
}

// SetNavigationSubscribers sets the number of navigation subscribers.
func SetNavigationSubscribers(count int64) {
	navigationSubscribers.Set(float64(count))
}

// RecordProviderOperation records a provider call.
func RecordProviderOperation(provider, operation string, duration time.Duration, success bool) {
	providerOperationDuration.WithLabelValues(provider, operation).Observe(duration.Seconds())
	status := "success"
	if !success {
		status = "error"
	}
	providerOperationsTotal.WithLabelValues(provider, operation, status).Inc()
}

// SetArchiveCacheBytes sets the archive cache size.
func SetArchiveCacheBytes(size int64) {
	archiveCacheBytes.Set(float64(size))
}
