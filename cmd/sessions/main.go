// Copyright (C) 2025 EduAdapt (oss@eduadapt.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Command sessions starts the EduAdapt learning session HTTP server.
//
// This is the main entry point for the containerized sessions service.
// It reads configuration from environment variables and starts the server.
//
// # Environment Variables
//
//   - SESSIONS_PORT: HTTP server port (default: 12311)
//   - SESSIONS_STORE_PATH: BadgerDB directory (default: in-memory store)
//   - SESSIONS_ADAPTATION_URL: Recommendation engine base URL (default: http://eduadapt-adaptation:12310)
//   - SESSIONS_STREAM_INTERVAL_MS: Recommendation cycle interval (default: 200)
//   - SESSIONS_HEARTBEAT_INTERVAL_S: Heartbeat cadence (default: 15)
//   - SESSIONS_MAX_EVENTS_PER_SECOND: Per-stream emission cap, 0 disables (default: 0)
//   - SESSIONS_BREAKER_THRESHOLD: Failures before the breaker opens (default: 3)
//   - SESSIONS_BREAKER_RESET_S: Open interval before a recovery probe (default: 30)
//   - SESSIONS_RATE_LIMIT_PER_MIN: Per-client rate limit, 0 disables (default: 0)
//   - INFLUX_URL, INFLUX_TOKEN, INFLUX_ORG, INFLUX_BUCKET: Telemetry sink (optional)
//   - OTEL_EXPORTER_OTLP_ENDPOINT: OpenTelemetry collector (default: eduadapt-otel-collector:4317)
//
// # Usage
//
//	# Build
//	go build -o sessions ./cmd/sessions
//
//	# Run
//	./sessions
package main

import (
	"log"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/eduadapt/EduAdaptPlatform/pkg/logging"
	"github.com/eduadapt/EduAdaptPlatform/services/sessions"
	"github.com/eduadapt/EduAdaptPlatform/services/sessions/telemetry"
)

func main() {
	logger := logging.NewService("sessions")
	defer logger.Close()
	slog.SetDefault(logger.Slog())

	cfg := sessions.Config{
		Port:                 getEnvInt("SESSIONS_PORT", 12311),
		StorePath:            os.Getenv("SESSIONS_STORE_PATH"),
		AdaptationURL:        getEnvString("SESSIONS_ADAPTATION_URL", "http://eduadapt-adaptation:12310"),
		StreamInterval:       time.Duration(getEnvInt("SESSIONS_STREAM_INTERVAL_MS", 200)) * time.Millisecond,
		HeartbeatInterval:    time.Duration(getEnvInt("SESSIONS_HEARTBEAT_INTERVAL_S", 15)) * time.Second,
		MaxEventsPerSecond:   getEnvInt("SESSIONS_MAX_EVENTS_PER_SECOND", 0),
		BreakerThreshold:     getEnvInt("SESSIONS_BREAKER_THRESHOLD", 3),
		BreakerResetInterval: time.Duration(getEnvInt("SESSIONS_BREAKER_RESET_S", 30)) * time.Second,
		RateLimitPerMinute:   getEnvInt("SESSIONS_RATE_LIMIT_PER_MIN", 0),
		OTelEndpoint:         getEnvString("OTEL_EXPORTER_OTLP_ENDPOINT", "eduadapt-otel-collector:4317"),
		Influx: telemetry.InfluxConfig{
			URL:    os.Getenv("INFLUX_URL"),
			Token:  os.Getenv("INFLUX_TOKEN"),
			Org:    os.Getenv("INFLUX_ORG"),
			Bucket: os.Getenv("INFLUX_BUCKET"),
		},
	}

	slog.Info("Starting sessions service",
		"port", cfg.Port,
		"store_path", cfg.StorePath,
		"adaptation_url", cfg.AdaptationURL,
		"influx_url", cfg.Influx.URL,
	)

	svc, err := sessions.New(cfg, nil)
	if err != nil {
		log.Fatalf("Failed to create sessions service: %v", err)
	}

	if err := svc.Run(); err != nil {
		log.Fatalf("Sessions service error: %v", err)
	}
}

// getEnvString returns the environment variable value or a default.
func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt returns the environment variable as int or a default.
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}
