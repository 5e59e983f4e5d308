// Copyright (C) 2025 EduAdapt (oss@eduadapt.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package observability provides metrics for the session streaming service.
//
// # Description
//
// This package implements Prometheus metrics for monitoring live
// recommendation streams. Metrics include:
//   - Stream event counters (recommendation, heartbeat, by transport)
//   - Fallback counters (by reason)
//   - Circuit breaker state gauge and transition counter
//   - Active stream gauges
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

// Subsystem for session streaming metrics
const sessionsSubsystem = "sessions"

// SessionMetrics holds all Prometheus metrics for live recommendation
// streams.
//
// # Thread Safety
//
// All operations are thread-safe.
type SessionMetrics struct {
	// StreamEventsTotal counts emitted stream events.
	// Labels: event (recommendation, heartbeat), transport (sse, ws)
	StreamEventsTotal *prometheus.CounterVec

	// FallbacksTotal counts recommendation-shaped error events.
	// Labels: reason (adaptation_unavailable, adaptation_exception,
	// adaptation_circuit_open)
	FallbacksTotal *prometheus.CounterVec

	// BreakerState reports the upstream circuit breaker state.
	// 0=closed, 1=open, 2=half-open.
	BreakerState prometheus.Gauge

	// BreakerTransitionsTotal counts breaker state transitions.
	// Labels: to (closed, open, half_open)
	BreakerTransitionsTotal *prometheus.CounterVec

	// ActiveStreams tracks currently open stream connections.
	// Labels: transport (sse, ws)
	ActiveStreams *prometheus.GaugeVec

	// SessionsCreatedTotal counts created sessions.
	SessionsCreatedTotal prometheus.Counter

	// SessionEventsTotal counts accepted telemetry events.
	// Labels: type
	SessionEventsTotal *prometheus.CounterVec

	// UpstreamLatencySeconds measures recommendation upstream call latency.
	// Labels: status (success, error)
	UpstreamLatencySeconds *prometheus.HistogramVec

	// RateLimitedTotal counts requests rejected by the rate limiter.
	// Labels: route
	RateLimitedTotal *prometheus.CounterVec
}

// DefaultMetrics is the singleton instance of SessionMetrics.
// Initialized by InitMetrics().
var DefaultMetrics *SessionMetrics

// InitMetrics initializes the default metrics instance.
//
// # Limitations
//
//   - Panics if called twice (duplicate registration).
func InitMetrics() *SessionMetrics {
	DefaultMetrics = &SessionMetrics{
		StreamEventsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: sessionsSubsystem,
				Name:      "stream_events_total",
				Help:      "Total emitted stream events by event name and transport",
			},
			[]string{"event", "transport"},
		),

		FallbacksTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: sessionsSubsystem,
				Name:      "fallbacks_total",
				Help:      "Total recommendation-shaped error events by reason",
			},
			[]string{"reason"},
		),

		BreakerState: promauto.NewGauge(
			prometheus.GaugeOpts{
				Namespace: metricsNamespace,
				Subsystem: sessionsSubsystem,
				Name:      "breaker_state",
				Help:      "Upstream circuit breaker state (0=closed, 1=open, 2=half-open)",
			},
		),

		BreakerTransitionsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: sessionsSubsystem,
				Name:      "breaker_transitions_total",
				Help:      "Total circuit breaker state transitions by target state",
			},
			[]string{"to"},
		),

		ActiveStreams: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: metricsNamespace,
				Subsystem: sessionsSubsystem,
				Name:      "active_streams",
				Help:      "Number of currently open stream connections",
			},
			[]string{"transport"},
		),

		SessionsCreatedTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: sessionsSubsystem,
				Name:      "sessions_created_total",
				Help:      "Total created sessions",
			},
		),

		SessionEventsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: sessionsSubsystem,
				Name:      "session_events_total",
				Help:      "Total accepted telemetry events by type",
			},
			[]string{"type"},
		),

		UpstreamLatencySeconds: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Subsystem: sessionsSubsystem,
				Name:      "upstream_latency_seconds",
				Help:      "Recommendation upstream call latency in seconds",
				Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0},
			},
			[]string{"status"},
		),

		RateLimitedTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: sessionsSubsystem,
				Name:      "rate_limited_total",
				Help:      "Total requests rejected by the rate limiter",
			},
			[]string{"route"},
		),
	}

	return DefaultMetrics
}

// =============================================================================
// Helper Methods
// =============================================================================

// RecordStreamEvent records an emitted stream event.
func (m *SessionMetrics) RecordStreamEvent(event, transport string) {
	m.StreamEventsTotal.WithLabelValues(event, transport).Inc()
}

// RecordFallback records a recommendation-shaped error event.
func (m *SessionMetrics) RecordFallback(reason string) {
	m.FallbacksTotal.WithLabelValues(reason).Inc()
}

// RecordBreakerState records the breaker's current state and the
// transition that produced it.
func (m *SessionMetrics) RecordBreakerState(state float64, to string) {
	m.BreakerState.Set(state)
	m.BreakerTransitionsTotal.WithLabelValues(to).Inc()
}

// StreamStarted increments the active streams gauge.
func (m *SessionMetrics) StreamStarted(transport string) {
	m.ActiveStreams.WithLabelValues(transport).Inc()
}

// StreamEnded decrements the active streams gauge.
func (m *SessionMetrics) StreamEnded(transport string) {
	m.ActiveStreams.WithLabelValues(transport).Dec()
}

// RecordRateLimited records a rate limiter rejection.
func (m *SessionMetrics) RecordRateLimited(route string) {
	m.RateLimitedTotal.WithLabelValues(route).Inc()
}

// RecordUpstreamLatency records a recommendation upstream call.
func (m *SessionMetrics) RecordUpstreamLatency(seconds float64, success bool) {
	status := "error"
	if success {
		status = "success"
	}
	m.UpstreamLatencySeconds.WithLabelValues(status).Observe(seconds)
}
