// Copyright (C) 2025 EduAdapt (oss@eduadapt.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package observability provides metrics for the adaptation service.
//
// # Description
//
// This package implements Prometheus metrics for monitoring the bandit
// engine and its HTTP surface. Metrics include:
//   - Recommendation counters (by strategy and cache state)
//   - Feedback counters (by binarized outcome)
//   - Request counters and latency histograms (by endpoint, status)
//   - Policy lifecycle events (imports, reloads)
//
// # Integration
//
// Metrics are exposed via the /metrics endpoint. Use with Prometheus +
// Grafana for dashboards and alerting.
//
// # Thread Safety
//
// All metric operations are thread-safe via Prometheus's internal locking.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// =============================================================================
// Metric Definitions
// =============================================================================

// Namespace for all metrics
const metricsNamespace = "eduadapt"

// Subsystem for adaptation engine metrics
const adaptationSubsystem = "adaptation"

// AdaptationMetrics holds all Prometheus metrics for the bandit engine
// and its HTTP endpoints.
//
// # Description
//
// Provides counters and histograms for monitoring recommendation volume,
// cache effectiveness, and feedback flow. Initialize once at startup via
// InitMetrics().
//
// # Thread Safety
//
// All operations are thread-safe.
type AdaptationMetrics struct {
	// RecommendationsTotal counts issued recommendations.
	// Labels: strategy (exploit, explore), cached (true, false)
	RecommendationsTotal *prometheus.CounterVec

	// CacheHitsTotal counts debounce cache hits.
	CacheHitsTotal prometheus.Counter

	// FeedbackTotal counts processed feedback submissions.
	// Labels: outcome (success, failure)
	FeedbackTotal *prometheus.CounterVec

	// RequestsTotal counts HTTP requests by endpoint and status.
	// Labels: endpoint (recommend_next, feedback, policy, dataset), status
	RequestsTotal *prometheus.CounterVec

	// RequestDurationSeconds measures request handling latency.
	// Labels: endpoint
	RequestDurationSeconds *prometheus.HistogramVec

	// PolicyImportsTotal counts policy installs by source.
	// Labels: source (api, seed_file, hot_reload, default)
	PolicyImportsTotal *prometheus.CounterVec

	// RateLimitedTotal counts requests rejected by the rate limiter.
	// Labels: route
	RateLimitedTotal *prometheus.CounterVec
}

// DefaultMetrics is the singleton instance of AdaptationMetrics.
// Initialized by InitMetrics().
var DefaultMetrics *AdaptationMetrics

// InitMetrics initializes the default metrics instance.
//
// # Description
//
// Creates and registers all Prometheus metrics. Should be called once
// at application startup.
//
// # Limitations
//
//   - Panics if called twice (duplicate registration).
func InitMetrics() *AdaptationMetrics {
	DefaultMetrics = &AdaptationMetrics{
		RecommendationsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: adaptationSubsystem,
				Name:      "recommendations_total",
				Help:      "Total recommendations issued by strategy and cache state",
			},
			[]string{"strategy", "cached"},
		),

		CacheHitsTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: adaptationSubsystem,
				Name:      "cache_hits_total",
				Help:      "Total debounce cache hits",
			},
		),

		FeedbackTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: adaptationSubsystem,
				Name:      "feedback_total",
				Help:      "Total feedback submissions by binarized outcome",
			},
			[]string{"outcome"},
		),

		RequestsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: adaptationSubsystem,
				Name:      "requests_total",
				Help:      "Total HTTP requests by endpoint and status",
			},
			[]string{"endpoint", "status"},
		),

		RequestDurationSeconds: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Subsystem: adaptationSubsystem,
				Name:      "request_duration_seconds",
				Help:      "Request handling latency in seconds",
				Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0},
			},
			[]string{"endpoint"},
		),

		PolicyImportsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: adaptationSubsystem,
				Name:      "policy_imports_total",
				Help:      "Total policy installs by source",
			},
			[]string{"source"},
		),

		RateLimitedTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: adaptationSubsystem,
				Name:      "rate_limited_total",
				Help:      "Total requests rejected by the rate limiter",
			},
			[]string{"route"},
		),
	}

	return DefaultMetrics
}

// =============================================================================
// Endpoint Names
// =============================================================================

// Endpoint represents an adaptation endpoint for metrics labeling.
type Endpoint string

const (
	// EndpointRecommendNext is the recommendation endpoint.
	EndpointRecommendNext Endpoint = "recommend_next"

	// EndpointFeedback is the feedback submission endpoint.
	EndpointFeedback Endpoint = "feedback"

	// EndpointPolicy covers policy info, import, and export.
	EndpointPolicy Endpoint = "policy"

	// EndpointDataset is the RL dataset status endpoint.
	EndpointDataset Endpoint = "dataset"
)

// =============================================================================
// Helper Methods
// =============================================================================

// RecordRecommendation records an issued recommendation.
//
// # Inputs
//
//   - strategy: The exploit/explore label on the recommendation.
//   - cached: Whether it was served from the debounce cache.
func (m *AdaptationMetrics) RecordRecommendation(strategy string, cached bool) {
	cachedLabel := "false"
	if cached {
		cachedLabel = "true"
		m.CacheHitsTotal.Inc()
	}
	m.RecommendationsTotal.WithLabelValues(strategy, cachedLabel).Inc()
}

// RecordFeedback records a processed feedback submission.
//
// # Inputs
//
//   - success: The binarized reward outcome.
func (m *AdaptationMetrics) RecordFeedback(success bool) {
	outcome := "failure"
	if success {
		outcome = "success"
	}
	m.FeedbackTotal.WithLabelValues(outcome).Inc()
}

// RecordRequest records a completed HTTP request.
//
// # Inputs
//
//   - endpoint: The endpoint that handled the request.
//   - status: The HTTP status class label (e.g. "200", "422").
//   - seconds: Handling latency in seconds.
func (m *AdaptationMetrics) RecordRequest(endpoint Endpoint, status string, seconds float64) {
	m.RequestsTotal.WithLabelValues(string(endpoint), status).Inc()
	m.RequestDurationSeconds.WithLabelValues(string(endpoint)).Observe(seconds)
}

// RecordPolicyImport records a policy install.
//
// # Inputs
//
//   - source: Where the policy came from (api, seed_file, hot_reload, default).
func (m *AdaptationMetrics) RecordPolicyImport(source string) {
	m.PolicyImportsTotal.WithLabelValues(source).Inc()
}

// RecordRateLimited records a rate limiter rejection.
//
// # Inputs
//
//   - route: The route that rejected the request.
func (m *AdaptationMetrics) RecordRateLimited(route string) {
	m.RateLimitedTotal.WithLabelValues(route).Inc()
}
