// Package metrics exposes Prometheus collectors for the ingestion pipeline.
package metrics

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	documentsTotal        *prometheus.CounterVec
	fetchRetriesTotal     *prometheus.CounterVec
	tombstonesTotal       *prometheus.CounterVec
	recordsTotal          *prometheus.CounterVec
	quarantineTotal       *prometheus.CounterVec
	stageDurationSeconds  *prometheus.HistogramVec
	rateLimitDelaySeconds *prometheus.HistogramVec

	httpRequestsTotal          *prometheus.CounterVec
	httpRequestDurationSeconds *prometheus.HistogramVec

	once sync.Once
)

// Init initializes the Prometheus collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		documentsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ingestor_documents_total",
				Help: "Total documents processed, labeled by source and outcome.",
			},
			[]string{"source", "outcome"},
		)

		fetchRetriesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ingestor_fetch_retries_total",
				Help: "Total fetch retries, labeled by source.",
			},
			[]string{"source"},
		)

		tombstonesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ingestor_tombstones_total",
				Help: "Total locations tombstoned after permanent fetch failures.",
			},
			[]string{"source"},
		)

		recordsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ingestor_records_total",
				Help: "Total canonical records produced, labeled by publication status.",
			},
			[]string{"status"},
		)

		quarantineTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ingestor_quarantine_total",
				Help: "Total quarantine entries, labeled by stage and error code.",
			},
			[]string{"stage", "code"},
		)

		stageDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "ingestor_stage_duration_seconds",
				Help:    "Histogram of per-document stage latencies.",
				Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 15},
			},
			[]string{"stage"},
		)

		rateLimitDelaySeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "ingestor_rate_limit_delay_seconds",
				Help:    "Histogram of per-source rate limit wait durations.",
				Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
			},
			[]string{"source"},
		)

		httpRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ingestor_http_requests_total",
				Help: "Total HTTP requests served, labeled by method, route, and status.",
			},
			[]string{"method", "route", "status"},
		)

		httpRequestDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "ingestor_http_request_duration_seconds",
				Help:    "Histogram of HTTP request latencies.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		)
	})
}

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveDocument increments the per-source document counter.
func ObserveDocument(source, outcome string) {
	if documentsTotal == nil {
		return
	}
	documentsTotal.WithLabelValues(source, outcome).Inc()
}

// ObserveFetchRetry counts one retry attempt for the source.
func ObserveFetchRetry(source string) {
	if fetchRetriesTotal == nil {
		return
	}
	fetchRetriesTotal.WithLabelValues(source).Inc()
}

// ObserveTombstone counts a newly tombstoned location.
func ObserveTombstone(source string) {
	if tombstonesTotal == nil {
		return
	}
	tombstonesTotal.WithLabelValues(source).Inc()
}

// ObserveRecord counts one canonical record by lifecycle status.
func ObserveRecord(status string) {
	if recordsTotal == nil {
		return
	}
	recordsTotal.WithLabelValues(status).Inc()
}

// ObserveQuarantine counts one quarantine entry by stage and code.
func ObserveQuarantine(stage, code string) {
	if quarantineTotal == nil {
		return
	}
	quarantineTotal.WithLabelValues(stage, code).Inc()
}

// ObserveStageDuration records how long a stage took for one document.
func ObserveStageDuration(stage string, d time.Duration) {
	if stageDurationSeconds == nil {
		return
	}
	stageDurationSeconds.WithLabelValues(stage).Observe(d.Seconds())
}

// ObserveRateLimitDelay records the duration of a rate limit wait.
func ObserveRateLimitDelay(source string, d time.Duration) {
	if rateLimitDelaySeconds == nil {
		return
	}
	rateLimitDelaySeconds.WithLabelValues(source).Observe(d.Seconds())
}

// ObserveHTTPRequest records metrics for one served HTTP request.
func ObserveHTTPRequest(method, route string, status int, d time.Duration) {
	if httpRequestsTotal == nil {
		return
	}
	httpRequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(d.Seconds())
}
