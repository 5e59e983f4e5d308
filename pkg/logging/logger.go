// Copyright (C) 2025 EduAdapt (oss@eduadapt.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package logging provides structured logging for EduAdapt services.
//
// The package is a thin layer over Go's standard slog package that gives
// every service the same JSON log shape and the same environment-driven
// configuration:
//
//   - Default: JSON output on stdout (container/collector friendly)
//   - Optional: an additional log file with automatic directory creation
//   - Hosted: extensible via the LogExporter interface for log shipping
//
// # Basic Usage
//
//	logger := logging.NewService("sessions")
//	slog.SetDefault(logger.Slog())
//	slog.Info("session created", "session_id", sessionID)
//
// # Log Levels
//
// Four levels are supported, matching slog conventions:
//
//   - Debug: development troubleshooting, verbose output
//   - Info: normal operations (request start/end, state changes)
//   - Warn: recoverable issues (retry attempts, degraded mode)
//   - Error: operation failures (but the service continues)
//
// # Security Considerations
//
// This package does NOT automatically redact sensitive data. Callers must
// ensure learner identifiers are hashed and tokens are never logged.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// =============================================================================
// Configuration
// =============================================================================

// Config controls logger construction.
//
// # Fields
//
//   - Level: minimum level emitted ("debug", "info", "warn", "error").
//   - Service: service name stamped on every record as "svc".
//   - LogDir: optional directory for a JSON log file named
//     {service}_{date}.log. Empty disables file output.
//   - Exporter: optional LogExporter for hosted deployments. May be nil.
type Config struct {
	Level    string
	Service  string
	LogDir   string
	Exporter LogExporter
}

// LogExporter receives structured log entries for shipping to an external
// system (Loki, Cloud Logging, a SIEM). Implementations must be safe for
// concurrent use and should buffer internally; Export must not block the
// logging hot path for longer than a local channel send.
type LogExporter interface {
	Export(entry Entry)
	Close() error
}

// Entry is the exporter-facing representation of one log record.
type Entry struct {
	Time    time.Time
	Level   string
	Service string
	Message string
	Attrs   map[string]any
}

// =============================================================================
// Logger
// =============================================================================

// Logger wraps an slog.Logger plus the resources it owns (log file handle,
// exporter). Close releases those resources; the zero value is not usable.
type Logger struct {
	slogger  *slog.Logger
	file     *os.File
	exporter LogExporter
	mu       sync.Mutex
	closed   bool
}

// NewService returns a JSON stdout logger for the named service using the
// EDUADAPT_LOG_LEVEL environment variable (default "info"). This is the
// constructor every service main uses.
func NewService(service string) *Logger {
	logger, err := New(Config{
		Level:   os.Getenv("EDUADAPT_LOG_LEVEL"),
		Service: service,
		LogDir:  os.Getenv("EDUADAPT_LOG_DIR"),
	})
	if err != nil {
		// Fall back to plain stdout logging rather than refusing to start.
		fallback := slog.New(slog.NewJSONHandler(os.Stdout, nil))
		fallback.Warn("file logging unavailable", "error", err)
		return &Logger{slogger: fallback.With("svc", service)}
	}
	return logger
}

// New builds a Logger from an explicit Config.
//
// # Outputs
//
//   - *Logger: ready for use; caller should defer Close when LogDir or an
//     Exporter is configured.
//   - error: non-nil if the log directory or file could not be created.
func New(cfg Config) (*Logger, error) {
	level := parseLevel(cfg.Level)

	writers := []io.Writer{os.Stdout}
	var file *os.File

	if cfg.LogDir != "" {
		dir := expandHome(cfg.LogDir)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create log dir %s: %w", dir, err)
		}
		name := fmt.Sprintf("%s_%s.log", cfg.Service, time.Now().Format("2006-01-02"))
		f, err := os.OpenFile(filepath.Join(dir, name),
			os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, fmt.Errorf("open log file: %w", err)
		}
		file = f
		writers = append(writers, f)
	}

	handler := slog.NewJSONHandler(io.MultiWriter(writers...), &slog.HandlerOptions{
		Level: level,
	})

	slogger := slog.New(handler)
	if cfg.Service != "" {
		slogger = slogger.With("svc", cfg.Service)
	}

	return &Logger{
		slogger:  slogger,
		file:     file,
		exporter: cfg.Exporter,
	}, nil
}

// Slog returns the underlying slog.Logger for use with slog.SetDefault.
func (l *Logger) Slog() *slog.Logger {
	return l.slogger
}

// Close flushes and closes the log file and exporter, if configured.
// Safe to call more than once.
func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return nil
	}
	l.closed = true

	var firstErr error
	if l.file != nil {
		if err := l.file.Close(); err != nil {
			firstErr = err
		}
	}
	if l.exporter != nil {
		if err := l.exporter.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// =============================================================================
// Helpers
// =============================================================================

// parseLevel maps a level name to slog.Level, defaulting to Info.
func parseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// expandHome expands a leading ~ to the user's home directory.
func expandHome(path string) string {
	if !strings.HasPrefix(path, "~") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~"))
}
