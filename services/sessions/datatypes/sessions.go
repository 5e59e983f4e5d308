// Copyright (C) 2025 EduAdapt (oss@eduadapt.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package datatypes defines the session service's domain types.
package datatypes

import "time"

// Session statuses.
const (
	SessionActive = "active"
	SessionEnded  = "ended"
)

// Session is one learner's engagement with a learning unit. Immutable
// after creation apart from its status.
type Session struct {
	SessionID     string         `json:"session_id"`
	LearnerID     string         `json:"learner_id"`
	UnitID        string         `json:"unit_id"`
	Status        string         `json:"status"`
	DeviceContext map[string]any `json:"device_context,omitempty"`
	CreatedAt     time.Time      `json:"created_at"`
}

// SessionEvent is a fire-and-forget telemetry event reported by the
// client during a session (answer submitted, content viewed, pause).
type SessionEvent struct {
	SessionID string         `json:"session_id"`
	Type      string         `json:"type"`
	Timestamp time.Time      `json:"timestamp"`
	Payload   map[string]any `json:"payload,omitempty"`
}

// CreateSessionRequest is the body for POST /v1/sessions.
type CreateSessionRequest struct {
	LearnerID     string         `json:"learner_id" binding:"required,identifier"`
	UnitID        string         `json:"unit_id" binding:"required,identifier"`
	DeviceContext map[string]any `json:"device_context"`
}

// SessionEventRequest is the body for POST /v1/sessions/:id/events.
type SessionEventRequest struct {
	Type      string         `json:"type" binding:"required"`
	Timestamp time.Time      `json:"timestamp"`
	Payload   map[string]any `json:"payload"`
}
