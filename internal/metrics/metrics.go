// Package metrics provides Prometheus metrics for dropsearch.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// HTTP request metrics
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dropsearch_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "dropsearch_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	// Sync metrics
	syncRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dropsearch_sync_runs_total",
			Help: "Total sync runs by mode and status",
		},
		[]string{"mode", "status"},
	)

	syncRunDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "dropsearch_sync_run_duration_seconds",
			Help:    "Sync run duration in seconds",
			Buckets: []float64{.1, .5, 1, 5, 15, 60, 300, 900},
		},
		[]string{"mode"},
	)

	syncFilesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dropsearch_sync_files_total",
			Help: "Per-file sync outcomes",
		},
		[]string{"action"},
	)

	syncBatchDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "dropsearch_sync_batch_duration_seconds",
			Help:    "Time to settle one batch of files",
			Buckets: prometheus.DefBuckets,
		},
	)

	pollErrorsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "dropsearch_poll_errors_total",
			Help: "Long-poll failures followed by a backoff",
		},
	)

	// Provider metrics
	providerOperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "dropsearch_provider_operation_duration_seconds",
			Help:    "Storage provider operation duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	providerOperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dropsearch_provider_operations_total",
			Help: "Total storage provider operations",
		},
		[]string{"operation", "status"},
	)

	// Search metrics
	searchRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dropsearch_search_requests_total",
			Help: "Total search requests by cache result and status",
		},
		[]string{"cache", "status"},
	)

	searchDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "dropsearch_search_duration_seconds",
			Help:    "Search duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	indexDocuments = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "dropsearch_index_documents",
			Help: "Number of documents in the search index",
		},
	)
)

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordHTTPRequest records an HTTP request metric.
func RecordHTTPRequest(method, route string, status int, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	httpRequestDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

// RecordSyncRun records a completed sync run.
func RecordSyncRun(mode string, duration time.Duration, success bool) {
	syncRunsTotal.WithLabelValues(mode, status(success)).Inc()
	syncRunDuration.WithLabelValues(mode).Observe(duration.Seconds())
}

// RecordFileOutcome records the terminal outcome of one file.
func RecordFileOutcome(action string) {
	syncFilesTotal.WithLabelValues(action).Inc()
}

// RecordBatch records how long a batch took to settle.
func RecordBatch(duration time.Duration) {
	syncBatchDuration.Observe(duration.Seconds())
}

// RecordPollError records a long-poll failure.
func RecordPollError() {
	pollErrorsTotal.Inc()
}

// RecordProviderOperation records a storage provider call.
func RecordProviderOperation(operation string, duration time.Duration, success bool) {
	providerOperationDuration.WithLabelValues(operation).Observe(duration.Seconds())
	providerOperationsTotal.WithLabelValues(operation, status(success)).Inc()
}

// RecordSearch records a search request.
func RecordSearch(cacheHit bool, duration time.Duration, success bool) {
	cache := "miss"
	if cacheHit {
		cache = "hit"
	}
	searchRequestsTotal.WithLabelValues(cache, status(success)).Inc()
	searchDuration.Observe(duration.Seconds())
}

// SetIndexDocuments sets the current document count.
func SetIndexDocuments(count int) {
	indexDocuments.Set(float64(count))
}

func status(success bool) string {
	if success {
		return "success"
	}
	return "error"
}
