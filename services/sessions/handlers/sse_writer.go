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
	"encoding/json"
	"fmt"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/eduadapt/EduAdaptPlatform/services/sessions/stream"
)

// =============================================================================
// SSE Writer
// =============================================================================

// SSEWriter writes stream events to an HTTP response in Server-Sent
// Events wire format (id/event/data lines, blank-line terminated).
//
// # Thread Safety
//
// Implementations must be safe for concurrent use.
//
// # Assumptions
//
//   - Caller has set the SSE response headers before the first write.
//   - The underlying ResponseWriter supports http.Flusher.
//
// Proxy liveness between recommendations is covered by the stream's own
// heartbeat events, so there is no separate comment-ping write.
type SSEWriter interface {
	// WriteEvent writes one stream event and flushes immediately. Each
	// event gets a UUID id line for client-side deduplication.
	WriteEvent(event stream.Event) error
}

type sseWriter struct {
	mu      sync.Mutex
	w       http.ResponseWriter
	flusher http.Flusher
}

// NewSSEWriter wraps a ResponseWriter for SSE output. Returns an error
// if the writer cannot flush, which SSE requires.
func NewSSEWriter(w http.ResponseWriter) (SSEWriter, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, fmt.Errorf("response writer does not support flushing")
	}
	return &sseWriter{w: w, flusher: flusher}, nil
}

// SetSSEHeaders configures the response for Server-Sent Events. Must be
// called before the first write.
func SetSSEHeaders(c *gin.Context) {
	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")
	c.Writer.WriteHeader(http.StatusOK)
}

func (s *sseWriter) WriteEvent(event stream.Event) error {
	data, err := json.Marshal(event.Data)
	if err != nil {
		return fmt.Errorf("marshal %s event: %w", event.Name, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := fmt.Fprintf(s.w, "id: %s\nevent: %s\ndata: %s\n\n", uuid.NewString(), event.Name, data); err != nil {
		return fmt.Errorf("write %s event: %w", event.Name, err)
	}
	s.flusher.Flush()
	return nil
}
