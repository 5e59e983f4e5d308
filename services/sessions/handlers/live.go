// Copyright (C) 2025 EduAdapt (oss@eduadapt.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/eduadapt/EduAdaptPlatform/pkg/middleware"
	"github.com/eduadapt/EduAdaptPlatform/pkg/validation"
	"github.com/eduadapt/EduAdaptPlatform/services/sessions/observability"
	"github.com/eduadapt/EduAdaptPlatform/services/sessions/storage"
	"github.com/eduadapt/EduAdaptPlatform/services/sessions/stream"
)

// LiveSession returns the handler for GET /v1/sessions/:session_id/live.
//
// # Description
//
// Streams one recommendation event per cycle plus periodic heartbeats
// over Server-Sent Events until the client disconnects. Upstream
// failures degrade to recommendation-shaped error payloads; the stream
// itself never terminates on upstream trouble.
//
// # Outputs
//
//   - 200: text/event-stream, unbounded.
//   - 404: Unknown session.
//   - 422: Malformed session id.
//   - 500: ResponseWriter cannot stream.
func LiveSession(manager *stream.Manager, metrics *observability.SessionMetrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		sessionID := c.Param("session_id")
		if err := validation.ValidateIdentifier("session_id", sessionID); err != nil {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
			return
		}

		ctx := stream.WithRequestID(c.Request.Context(), middleware.GetRequestID(c))
		events, err := manager.Stream(ctx, sessionID)
		if errors.Is(err, storage.ErrSessionNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
			return
		} else if err != nil {
			slog.Error("stream open failed", "session_id", sessionID, "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "stream open failed"})
			return
		}

		writer, err := NewSSEWriter(c.Writer)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "streaming unsupported"})
			return
		}
		SetSSEHeaders(c)

		metrics.StreamStarted("sse")
		defer metrics.StreamEnded("sse")

		for ev := range events {
			if err := writer.WriteEvent(ev); err != nil {
				// Client went away mid-write; the request context
				// cancels and the producer loop winds down.
				slog.Debug("sse write failed", "session_id", sessionID, "error", err)
				return
			}
			metrics.RecordStreamEvent(ev.Name, "sse")
		}
	}
}
