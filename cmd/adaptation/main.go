// Copyright (C) 2025 EduAdapt (oss@eduadapt.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Command adaptation starts the EduAdapt recommendation engine HTTP server.
//
// This is the main entry point for the containerized adaptation service.
// It reads configuration from environment variables and starts the server.
//
// # Environment Variables
//
//   - ADAPTATION_PORT: HTTP server port (default: 12310)
//   - ADAPTATION_STORE_PATH: BadgerDB directory (default: in-memory store)
//   - ADAPTATION_REDIS_ADDR: Redis address for the debounce cache (optional)
//   - ADAPTATION_POLICY_SEED: YAML policy seed file, hot-reloaded on change (optional)
//   - ADAPTATION_SUCCESS_THRESHOLD: Reward binarization threshold (default: 0.6)
//   - ADAPTATION_RATE_LIMIT_PER_MIN: Per-client rate limit, 0 disables (default: 0)
//   - ADAPTATION_HEALTHZ_RATE_LIMIT_PER_MIN: Per-client /healthz cap, 0 disables (default: 0)
//   - OTEL_EXPORTER_OTLP_ENDPOINT: OpenTelemetry collector (default: eduadapt-otel-collector:4317)
//
// # Usage
//
//	# Build
//	go build -o adaptation ./cmd/adaptation
//
//	# Run
//	./adaptation
package main

import (
	"log"
	"log/slog"
	"os"
	"strconv"

	"github.com/eduadapt/EduAdaptPlatform/pkg/logging"
	"github.com/eduadapt/EduAdaptPlatform/services/adaptation"
)

func main() {
	logger := logging.NewService("adaptation")
	defer logger.Close()
	slog.SetDefault(logger.Slog())

	cfg := adaptation.Config{
		Port:                      getEnvInt("ADAPTATION_PORT", 12310),
		StorePath:                 os.Getenv("ADAPTATION_STORE_PATH"),
		RedisAddr:                 os.Getenv("ADAPTATION_REDIS_ADDR"),
		PolicySeedPath:            os.Getenv("ADAPTATION_POLICY_SEED"),
		SuccessThreshold:          getEnvFloat("ADAPTATION_SUCCESS_THRESHOLD", 0.6),
		RateLimitPerMinute:        getEnvInt("ADAPTATION_RATE_LIMIT_PER_MIN", 0),
		HealthzRateLimitPerMinute: getEnvInt("ADAPTATION_HEALTHZ_RATE_LIMIT_PER_MIN", 0),
		OTelEndpoint:              getEnvString("OTEL_EXPORTER_OTLP_ENDPOINT", "eduadapt-otel-collector:4317"),
	}

	slog.Info("Starting adaptation service",
		"port", cfg.Port,
		"store_path", cfg.StorePath,
		"redis_addr", cfg.RedisAddr,
		"policy_seed", cfg.PolicySeedPath,
	)

	svc, err := adaptation.New(cfg, nil)
	if err != nil {
		log.Fatalf("Failed to create adaptation service: %v", err)
	}

	if err := svc.Run(); err != nil {
		log.Fatalf("Adaptation service error: %v", err)
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

// getEnvFloat returns the environment variable as float64 or a default.
func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}
