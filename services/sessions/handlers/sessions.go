// Copyright (C) 2025 EduAdapt (oss@eduadapt.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package handlers implements the sessions service's HTTP surface:
// session lifecycle, interaction event ingest, and the live
// recommendation stream over SSE and WebSocket.
package handlers

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/eduadapt/EduAdaptPlatform/pkg/extensions"
	"github.com/eduadapt/EduAdaptPlatform/pkg/validation"
	"github.com/eduadapt/EduAdaptPlatform/services/sessions/datatypes"
	"github.com/eduadapt/EduAdaptPlatform/services/sessions/observability"
	"github.com/eduadapt/EduAdaptPlatform/services/sessions/storage"
	"github.com/eduadapt/EduAdaptPlatform/services/sessions/telemetry"
)

// CreateSession returns the handler for POST /v1/sessions.
//
// # Description
//
// Registers a learning session and returns its generated id. The
// session must exist before its live stream or event ingest endpoints
// can be used.
//
// # Outputs
//
//   - 201: {"session_id": "..."}
//   - 422: Validation failure on the request body.
//   - 500: Storage failure.
func CreateSession(store storage.Store, audit extensions.AuditLogger, metrics *observability.SessionMetrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		// learner_id and unit_id carry the identifier binding rule;
		// ShouldBindJSON rejects malformed values.
		var req datatypes.CreateSessionRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
			return
		}

		sess := &datatypes.Session{
			SessionID:     uuid.NewString(),
			LearnerID:     req.LearnerID,
			UnitID:        req.UnitID,
			Status:        datatypes.SessionActive,
			DeviceContext: req.DeviceContext,
			CreatedAt:     time.Now().UTC(),
		}
		if err := store.CreateSession(c.Request.Context(), sess); err != nil {
			slog.Error("session create failed", "learner_id", req.LearnerID, "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "session create failed"})
			return
		}

		metrics.SessionsCreatedTotal.Inc()
		if err := audit.Log(c.Request.Context(), extensions.AuditEvent{
			EventType: "session.start",
			UserID:    req.LearnerID,
			Details:   map[string]any{"session_id": sess.SessionID, "unit_id": req.UnitID},
		}); err != nil {
			slog.Warn("audit log failed", "event", "session.start", "error", err)
		}

		c.JSON(http.StatusCreated, gin.H{"session_id": sess.SessionID})
	}
}

// RecordSessionEvent returns the handler for POST /v1/sessions/:session_id/events.
//
// # Description
//
// Ingests one interaction event (answer submitted, hint requested, and
// so on) for an active session. Ingest is accept-and-return: the event
// is persisted, then shipped to the telemetry sink asynchronously.
//
// # Outputs
//
//   - 202: Event accepted.
//   - 404: Unknown session.
//   - 422: Validation failure.
//   - 500: Storage failure.
func RecordSessionEvent(store storage.Store, sink telemetry.EventSink, audit extensions.AuditLogger, metrics *observability.SessionMetrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		sessionID := c.Param("session_id")
		if err := validation.ValidateIdentifier("session_id", sessionID); err != nil {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
			return
		}

		var req datatypes.SessionEventRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
			return
		}

		sess, err := store.Session(c.Request.Context(), sessionID)
		if err == storage.ErrSessionNotFound {
			c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
			return
		} else if err != nil {
			slog.Error("session lookup failed", "session_id", sessionID, "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "session lookup failed"})
			return
		}

		at := req.Timestamp
		if at.IsZero() {
			at = time.Now().UTC()
		}
		event := &datatypes.SessionEvent{
			SessionID: sessionID,
			Type:      req.Type,
			Timestamp: at,
			Payload:   req.Payload,
		}
		if err := store.RecordEvent(c.Request.Context(), event); err != nil {
			slog.Error("event record failed", "session_id", sessionID, "type", req.Type, "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "event record failed"})
			return
		}

		sink.RecordSessionEvent(sessionID, sess.LearnerID, req.Type, at)
		metrics.SessionEventsTotal.WithLabelValues(req.Type).Inc()
		if err := audit.Log(c.Request.Context(), extensions.AuditEvent{
			EventType: "session.event",
			UserID:    sess.LearnerID,
			Details:   map[string]any{"session_id": sessionID, "type": req.Type},
		}); err != nil {
			slog.Warn("audit log failed", "event", "session.event", "error", err)
		}

		c.JSON(http.StatusAccepted, gin.H{"status": "accepted"})
	}
}

// EndSession returns the handler for POST /v1/sessions/:session_id/end.
//
// # Outputs
//
//   - 200: {"status": "ended"}
//   - 404: Unknown session.
func EndSession(store storage.Store, audit extensions.AuditLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		sessionID := c.Param("session_id")
		if err := validation.ValidateIdentifier("session_id", sessionID); err != nil {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
			return
		}

		err := store.UpdateStatus(c.Request.Context(), sessionID, datatypes.SessionEnded)
		if err == storage.ErrSessionNotFound {
			c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
			return
		} else if err != nil {
			slog.Error("session end failed", "session_id", sessionID, "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "session end failed"})
			return
		}

		if err := audit.Log(c.Request.Context(), extensions.AuditEvent{
			EventType: "session.end",
			UserID:    "system",
			Details:   map[string]any{"session_id": sessionID},
		}); err != nil {
			slog.Warn("audit log failed", "event", "session.end", "error", err)
		}

		c.JSON(http.StatusOK, gin.H{"status": "ended"})
	}
}

// Healthz returns a minimal liveness handler.
func Healthz(service, version string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "service": service, "version": version})
	}
}
