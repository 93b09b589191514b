// Package metrics declares the Prometheus collectors exported at /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RoutedQueries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "insight_routed_queries_total",
			Help: "Total number of queries routed to an agent",
		},
		[]string{"agent", "outcome"},
	)

	RouteDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "insight_route_duration_seconds",
			Help:    "Duration of routed query execution in seconds",
			Buckets: []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		},
		[]string{"agent"},
	)

	StageDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "insight_stage_duration_seconds",
			Help: "Duration of agent pipeline stages in seconds",
		},
		[]string{"stage"},
	)

	StageFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "insight_stage_failures_total",
			Help: "Total number of terminal agent pipeline stage failures",
		},
		[]string{"stage"},
	)

	FallbackAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "insight_fallback_attempts_total",
			Help: "Total number of query fallback attempts by strategy",
		},
		[]string{"category", "strategy", "outcome"},
	)

	ValidationPasses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "insight_validation_passes_total",
			Help: "Total number of validation passes by kind and trust outcome",
		},
		[]string{"pass", "trusted"},
	)

	JobTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "insight_job_transitions_total",
			Help: "Total number of bulk job status transitions",
		},
		[]string{"status"},
	)

	JobsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "insight_jobs_active",
			Help: "Number of bulk jobs currently executing in this process",
		},
	)
)
