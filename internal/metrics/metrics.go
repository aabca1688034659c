// SPDX-License-Identifier: MIT

// Package metrics exposes Prometheus instrumentation for the abel service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Transform metrics
	transformDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "abel_transform_duration_seconds",
		Help:    "Duration of Abel transforms by method and direction",
		Buckets: prometheus.ExponentialBuckets(0.001, 4, 10),
	}, []string{"method", "direction"})

	transformsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "abel_transforms_total",
		Help: "Abel transforms by method, direction and outcome",
	}, []string{"method", "direction", "outcome"}) // outcome=success|error

	// Basis cache metrics
	basisCacheRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "abel_basis_cache_requests_total",
		Help: "Basis set cache lookups by outcome",
	}, []string{"outcome"}) // outcome=hit|miss|error

	basisGenerateSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "abel_basis_generate_seconds",
		Help:    "Time spent generating basis sets",
		Buckets: prometheus.ExponentialBuckets(0.01, 4, 10),
	})

	// Job metrics
	jobsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "abel_jobs_active",
		Help: "Transform jobs currently queued or running",
	})

	jobsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "abel_jobs_total",
		Help: "Completed transform jobs by outcome",
	}, []string{"outcome"}) // outcome=done|failed|canceled

	// Watcher metrics
	watchEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "abel_watch_events_total",
		Help: "Inbox watcher events by outcome",
	}, []string{"outcome"}) // outcome=processed|skipped|failed

	// HTTP metrics
	httpRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "abel_http_requests_total",
		Help: "HTTP requests by route, method and status code",
	}, []string{"route", "method", "code"})

	httpDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "abel_http_request_duration_seconds",
		Help:    "HTTP request latency by route",
		Buckets: prometheus.DefBuckets,
	}, []string{"route"})
)

// ObserveTransform records one transform attempt.
func ObserveTransform(method, direction, outcome string, seconds float64) {
	transformsTotal.WithLabelValues(method, direction, outcome).Inc()
	if outcome == "success" {
		transformDuration.WithLabelValues(method, direction).Observe(seconds)
	}
}

// IncBasisCache records a basis cache lookup outcome.
func IncBasisCache(outcome string) {
	basisCacheRequests.WithLabelValues(outcome).Inc()
}

// ObserveBasisGenerate records the duration of one basis generation.
func ObserveBasisGenerate(seconds float64) {
	basisGenerateSeconds.Observe(seconds)
}

// JobStarted marks a job as active.
func JobStarted() { jobsActive.Inc() }

// JobFinished marks a job as finished with the given outcome.
func JobFinished(outcome string) {
	jobsActive.Dec()
	jobsTotal.WithLabelValues(outcome).Inc()
}

// IncWatchEvent records one inbox watcher event outcome.
func IncWatchEvent(outcome string) {
	watchEvents.WithLabelValues(outcome).Inc()
}

// ObserveHTTP records one HTTP request.
func ObserveHTTP(route, method, code string, seconds float64) {
	httpRequests.WithLabelValues(route, method, code).Inc()
	httpDuration.WithLabelValues(route).Observe(seconds)
}
