// Copyright (C) 2025 EduAdapt (oss@eduadapt.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package extensions

import (
	"context"
	"time"
)

// AuditEvent captures one security-relevant platform event for compliance
// logging (session lifecycle, policy swaps, telemetry ingest).
//
// # Event Types
//
// Events are named "category.action" for filtering and alerting:
//   - "session.start", "session.event"
//   - "policy.import", "policy.export"
//   - "feedback.submit"
type AuditEvent struct {
	// EventType categorizes the event, e.g. "session.event".
	EventType string

	// Timestamp is when the event occurred (UTC). Implementations set it
	// to time.Now().UTC() when zero.
	Timestamp time.Time

	// UserID identifies who performed the action. "system" for automated
	// actions, "anonymous" when unknown.
	UserID string

	// Details holds event-specific data (session id, arm id, event type).
	// Never put raw learner content or tokens here.
	Details map[string]any
}

// AuditLogger records audit events. Implementations must be safe for
// concurrent use and must not block request handling; slow sinks should
// buffer and ship asynchronously.
//
// The open source default is NopAuditLogger, which discards all events.
type AuditLogger interface {
	Log(ctx context.Context, event AuditEvent) error
}

// NopAuditLogger discards all audit events. Appropriate for local
// single-user deployments where audit trails are not required.
type NopAuditLogger struct{}

// Log discards the event.
func (NopAuditLogger) Log(_ context.Context, _ AuditEvent) error { return nil }

var _ AuditLogger = NopAuditLogger{}
