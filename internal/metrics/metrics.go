// Package metrics declares the Prometheus collectors exported on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "mood_recommender"

var (
	// RecommendationsServed counts successful recommendations by source.
	RecommendationsServed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "recommendations_served_total",
			Help:      "Recommendations returned, by provider source",
		},
		[]string{"source"},
	)

	// ProviderFallbacks counts primary catalog failures that fell back.
	ProviderFallbacks = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "provider_fallbacks_total",
			Help:      "Primary catalog failures recovered by the fallback provider",
		},
	)

	// ExplanationOutcomes counts explanation attempts by outcome.
	ExplanationOutcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "explanations_total",
			Help:      "Explanation attempts by outcome (ok, error, timeout, disabled)",
		},
		[]string{"outcome"},
	)

	// HistoryStoreErrors counts failed history store operations.
	HistoryStoreErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "history_store_errors_total",
			Help:      "History store failures by operation",
		},
		[]string{"operation"},
	)

	// SmoothingWindowSize observes how many observations were smoothed.
	SmoothingWindowSize = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "smoothing_window_size",
			Help:      "Observations included in each smoothed distribution",
			Buckets:   []float64{1, 2, 3, 5, 10},
		},
	)

	// AnalyticsJobs counts analytics jobs by kind and status.
	AnalyticsJobs = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "analytics_jobs_total",
			Help:      "Analytics jobs by kind and status (ok, failed, dropped)",
		},
		[]string{"kind", "status"},
	)

	// CircuitBreakerState reports breaker state (0=closed, 1=half-open, 2=open).
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "circuit_breaker_state",
			Help:      "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	// CircuitBreakerRequests counts requests through a breaker by result.
	CircuitBreakerRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "circuit_breaker_requests_total",
			Help:      "Requests through the circuit breaker by result (success, failure, rejected)",
		},
		[]string{"name", "result"},
	)

	// HTTPRequestDuration observes handler latency.
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route and status",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"route", "status"},
	)
)
