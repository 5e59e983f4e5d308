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
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/eduadapt/EduAdaptPlatform/pkg/middleware"
	"github.com/eduadapt/EduAdaptPlatform/pkg/validation"
	"github.com/eduadapt/EduAdaptPlatform/services/sessions/observability"
	"github.com/eduadapt/EduAdaptPlatform/services/sessions/storage"
	"github.com/eduadapt/EduAdaptPlatform/services/sessions/stream"
)

const wsWriteTimeout = 10 * time.Second

var wsUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	// Browser clients connect from the learning frontend's origin;
	// cross-origin policy is enforced at the gateway.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// LiveSessionWS returns the handler for GET /v1/sessions/:session_id/live/ws.
//
// # Description
//
// Serves the same event sequence as the SSE endpoint over a WebSocket
// for clients behind proxies that buffer SSE. Each stream event is one
// JSON text message. The server never reads application data from the
// socket; the read pump exists only to detect disconnection.
//
// # Outputs
//
//   - 101: Switching Protocols, then JSON event messages.
//   - 404: Unknown session (before upgrade).
//   - 422: Malformed session id.
func LiveSessionWS(manager *stream.Manager, metrics *observability.SessionMetrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		sessionID := c.Param("session_id")
		if err := validation.ValidateIdentifier("session_id", sessionID); err != nil {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
			return
		}

		ctx, cancel := context.WithCancel(c.Request.Context())
		defer cancel()
		ctx = stream.WithRequestID(ctx, middleware.GetRequestID(c))

		events, err := manager.Stream(ctx, sessionID)
		if errors.Is(err, storage.ErrSessionNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
			return
		} else if err != nil {
			slog.Error("stream open failed", "session_id", sessionID, "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "stream open failed"})
			return
		}

		conn, err := wsUpgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			// Upgrade already wrote the error response.
			slog.Debug("websocket upgrade failed", "session_id", sessionID, "error", err)
			return
		}
		defer conn.Close()

		metrics.StreamStarted("websocket")
		defer metrics.StreamEnded("websocket")

		// Read pump: discard inbound frames, cancel the producer when
		// the peer closes or errors.
		go func() {
			defer cancel()
			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					return
				}
			}
		}()

		for ev := range events {
			conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			if err := conn.WriteJSON(ev); err != nil {
				slog.Debug("websocket write failed", "session_id", sessionID, "error", err)
				return
			}
			metrics.RecordStreamEvent(ev.Name, "websocket")
		}
	}
}
