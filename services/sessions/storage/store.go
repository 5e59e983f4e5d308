// Copyright (C) 2025 EduAdapt (oss@eduadapt.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package storage persists sessions and their telemetry events.
//
// Two implementations exist: a BadgerDB-backed store for deployments
// that must survive restarts, and an in-memory store for single-node
// development and tests. The implementation is selected at construction
// time, never swapped at runtime.
package storage

import (
	"context"
	"errors"

	"github.com/eduadapt/EduAdaptPlatform/services/sessions/datatypes"
)

// ErrSessionNotFound is returned when a session id resolves to nothing.
// For a live stream this is terminal; the stream cannot recover without
// a valid session.
var ErrSessionNotFound = errors.New("session not found")

// Store persists sessions and telemetry events.
//
// Only single-document atomicity is required; no operation spans more
// than one record.
type Store interface {
	// CreateSession persists a new session.
	CreateSession(ctx context.Context, s *datatypes.Session) error

	// Session loads a session by id. Returns ErrSessionNotFound if the
	// id is unknown.
	Session(ctx context.Context, sessionID string) (*datatypes.Session, error)

	// UpdateStatus changes a session's lifecycle status.
	UpdateStatus(ctx context.Context, sessionID, status string) error

	// RecordEvent appends a telemetry event for a session.
	RecordEvent(ctx context.Context, ev *datatypes.SessionEvent) error

	// Close releases the store's resources.
	Close() error
}
