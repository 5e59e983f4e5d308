// Copyright (C) 2025 EduAdapt (oss@eduadapt.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package stream implements the per-session live recommendation loop.
//
// # Description
//
// A Manager produces an unbounded, cancellable sequence of stream events
// for an active session: one recommendation event per cycle, heartbeats
// interleaved on a fixed cadence, and a sliding-window rate cap. Calls
// to the upstream recommendation engine are protected by a process-wide
// circuit breaker with exponential backoff between isolated failures.
//
// The transport layer (SSE or WebSocket handlers) consumes the event
// channel and handles wire formatting; this package never touches HTTP
// responses directly.
package stream

import "time"

// Stream event names on the wire.
const (
	EventRecommendation = "recommendation"
	EventHeartbeat      = "heartbeat"
)

// Fallback reasons carried in recommendation-shaped error payloads. The
// stream stays alive through upstream failures; consumers distinguish a
// real recommendation from these degraded payloads by the error field.
const (
	ReasonUnavailable = "adaptation_unavailable"
	ReasonException   = "adaptation_exception"
	ReasonCircuitOpen = "adaptation_circuit_open"
)

// Event is one item in a session's live stream.
type Event struct {
	// Name is the wire event name (recommendation or heartbeat).
	Name string `json:"event"`

	// Data is the JSON payload body.
	Data any `json:"data"`
}

// HeartbeatPayload is the body of a heartbeat event.
type HeartbeatPayload struct {
	SessionID string    `json:"session_id"`
	Timestamp time.Time `json:"timestamp"`
}

// ErrorPayload is the body of a recommendation event when the upstream
// could not serve one. Reason is one of the Reason constants.
type ErrorPayload struct {
	Error string `json:"error"`
}

// NewRecommendation builds a recommendation event carrying an upstream
// payload.
func NewRecommendation(payload any) Event {
	return Event{Name: EventRecommendation, Data: payload}
}

// NewFallback builds a recommendation-shaped error event.
func NewFallback(reason string) Event {
	return Event{Name: EventRecommendation, Data: ErrorPayload{Error: reason}}
}

// NewHeartbeat builds a heartbeat event for a session.
func NewHeartbeat(sessionID string, at time.Time) Event {
	return Event{Name: EventHeartbeat, Data: HeartbeatPayload{SessionID: sessionID, Timestamp: at}}
}
