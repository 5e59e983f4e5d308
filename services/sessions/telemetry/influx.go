// Copyright (C) 2025 EduAdapt (oss@eduadapt.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package telemetry ships session interaction events to a time-series
// sink for offline learning analytics. The sink is best effort: writes
// are buffered and asynchronous, and a down sink never fails a request.
package telemetry

import (
	"log/slog"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
)

// EventSink receives session interaction events. Implementations must
// not block the caller.
type EventSink interface {
	// RecordSessionEvent ships one interaction event.
	RecordSessionEvent(sessionID, learnerID, eventType string, at time.Time)

	// Close flushes buffered events and releases resources.
	Close()
}

// NopSink discards all events. Used when no telemetry backend is
// configured.
type NopSink struct{}

func (NopSink) RecordSessionEvent(_, _, _ string, _ time.Time) {}
func (NopSink) Close()                                         {}

var _ EventSink = NopSink{}

// =============================================================================
// InfluxDB Sink
// =============================================================================

// InfluxConfig holds the InfluxDB v2 connection settings.
type InfluxConfig struct {
	URL    string
	Token  string
	Org    string
	Bucket string
}

// InfluxSink writes session events to InfluxDB using the non-blocking
// write API. Points are batched client-side; write failures are logged
// and dropped rather than surfaced to request handlers.
type InfluxSink struct {
	client influxdb2.Client
	write  api.WriteAPI
	logger *slog.Logger
	done   chan struct{}
}

// NewInfluxSink connects a sink to the configured InfluxDB instance.
func NewInfluxSink(cfg InfluxConfig, logger *slog.Logger) *InfluxSink {
	if logger == nil {
		logger = slog.Default()
	}
	client := influxdb2.NewClient(cfg.URL, cfg.Token)
	write := client.WriteAPI(cfg.Org, cfg.Bucket)

	s := &InfluxSink{
		client: client,
		write:  write,
		logger: logger,
		done:   make(chan struct{}),
	}

	// The async write API reports failures on a channel; drain it so
	// errors surface in logs instead of backing up.
	go func() {
		defer close(s.done)
		for err := range write.Errors() {
			logger.Warn("telemetry write failed", "error", err)
		}
	}()

	return s
}

// RecordSessionEvent ships one interaction event. The session id is a
// field rather than a tag to keep series cardinality bounded.
func (s *InfluxSink) RecordSessionEvent(sessionID, learnerID, eventType string, at time.Time) {
	point := influxdb2.NewPoint(
		"session_events",
		map[string]string{"event_type": eventType},
		map[string]any{
			"session_id": sessionID,
			"learner_id": learnerID,
			"count":      1,
		},
		at,
	)
	s.write.WritePoint(point)
}

// Close flushes buffered points and shuts down the client.
func (s *InfluxSink) Close() {
	s.write.Flush()
	s.client.Close()
	<-s.done
}

var _ EventSink = (*InfluxSink)(nil)
