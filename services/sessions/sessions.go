// Copyright (C) 2025 EduAdapt (oss@eduadapt.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package sessions provides the learning session delivery service.
//
// This package contains the main service type that coordinates all
// components: session storage, the live recommendation stream manager
// with its circuit breaker, telemetry ingest, HTTP routing, and
// observability infrastructure.
//
// # Usage
//
//	cfg := sessions.Config{Port: 12311, AdaptationURL: "http://localhost:12310"}
//	svc, err := sessions.New(cfg, nil)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	svc.Run()
package sessions

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/eduadapt/EduAdaptPlatform/pkg/extensions"
	"github.com/eduadapt/EduAdaptPlatform/pkg/middleware"
	"github.com/eduadapt/EduAdaptPlatform/pkg/validation"
	"github.com/eduadapt/EduAdaptPlatform/services/sessions/observability"
	"github.com/eduadapt/EduAdaptPlatform/services/sessions/routes"
	"github.com/eduadapt/EduAdaptPlatform/services/sessions/storage"
	"github.com/eduadapt/EduAdaptPlatform/services/sessions/stream"
	"github.com/eduadapt/EduAdaptPlatform/services/sessions/telemetry"
)

// Version is the service version reported by /healthz.
const Version = "0.3.0"

// =============================================================================
// Interface Definition
// =============================================================================

// Service defines the contract for the sessions service.
//
// # Thread Safety
//
// Implementations must be safe for concurrent use. Run() blocks and
// should only be called once per instance.
type Service interface {
	// Run starts the HTTP server and blocks until shutdown or error.
	Run() error

	// Router returns the underlying Gin engine for testing.
	Router() *gin.Engine
}

// =============================================================================
// Configuration
// =============================================================================

// Config holds the sessions service configuration.
type Config struct {
	// Port is the HTTP server port. Default: 12311
	Port int

	// StorePath is the BadgerDB directory. Empty selects the in-memory
	// store, which loses all sessions on restart.
	StorePath string

	// AdaptationURL is the recommendation engine's base URL.
	// Default: "http://eduadapt-adaptation:12310"
	AdaptationURL string

	// UpstreamTimeout bounds each recommendation call. Default: 5s
	UpstreamTimeout time.Duration

	// StreamInterval is the pause between recommendation cycles.
	// Default: 200ms
	StreamInterval time.Duration

	// HeartbeatInterval is the heartbeat cadence. Default: 15s
	HeartbeatInterval time.Duration

	// MaxEventsPerSecond caps per-stream emission. 0 disables the cap.
	MaxEventsPerSecond int

	// BreakerThreshold is the consecutive-failure count that opens the
	// upstream circuit breaker. Default: 3
	BreakerThreshold int

	// BreakerResetInterval is how long the breaker stays open before a
	// recovery probe. Default: 30s
	BreakerResetInterval time.Duration

	// Influx configures the optional telemetry sink. A blank URL
	// disables it.
	Influx telemetry.InfluxConfig

	// RateLimitPerMinute caps per-client request rates on the ingest
	// endpoints. 0 disables rate limiting.
	RateLimitPerMinute int

	// OTelEndpoint is the OpenTelemetry collector endpoint.
	// Default: "eduadapt-otel-collector:4317"
	OTelEndpoint string

	// EnableMetrics enables the Prometheus metrics endpoint.
	EnableMetrics bool

	// GinMode sets the Gin framework mode ("debug", "release", "test").
	GinMode string
}

func applyConfigDefaults(cfg Config) Config {
	if cfg.Port == 0 {
		cfg.Port = 12311
	}
	if cfg.AdaptationURL == "" {
		cfg.AdaptationURL = "http://eduadapt-adaptation:12310"
	}
	if cfg.UpstreamTimeout == 0 {
		cfg.UpstreamTimeout = 5 * time.Second
	}
	if cfg.OTelEndpoint == "" {
		cfg.OTelEndpoint = "eduadapt-otel-collector:4317"
	}
	cfg.EnableMetrics = true
	return cfg
}

// =============================================================================
// Implementation
// =============================================================================

// service implements Service for production use.
type service struct {
	config        Config
	opts          extensions.ServiceOptions
	router        *gin.Engine
	store         storage.Store
	manager       *stream.Manager
	sink          telemetry.EventSink
	metrics       *observability.SessionMetrics
	tracerCleanup func(context.Context)
}

// New creates a new sessions Service with the given configuration.
//
// # Description
//
// New initializes all service components:
//  1. Applies default configuration for missing values
//  2. Initializes OpenTelemetry tracing
//  3. Initializes Prometheus metrics
//  4. Opens the session store (badger or in-memory)
//  5. Builds the stream manager over the adaptation upstream with a
//     shared circuit breaker
//  6. Connects the telemetry sink if configured
//  7. Sets up HTTP routes with extension options
//
// If opts is nil, extensions.DefaultOptions() is used.
func New(cfg Config, opts *extensions.ServiceOptions) (Service, error) {
	s := &service{
		config: applyConfigDefaults(cfg),
	}
	if opts != nil {
		s.opts = *opts
	} else {
		s.opts = extensions.DefaultOptions()
	}

	cleanup, err := s.initTracer()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize tracer: %w", err)
	}
	s.tracerCleanup = cleanup

	if s.config.EnableMetrics {
		s.metrics = observability.InitMetrics()
		slog.Info("Initialized Prometheus metrics for sessions")
	}

	if err := s.initStore(); err != nil {
		s.cleanup()
		return nil, fmt.Errorf("failed to initialize store: %w", err)
	}

	s.initStreamManager()
	s.initTelemetry()
	s.initRouter()
	return s, nil
}

// Run starts the HTTP server and blocks until shutdown or error.
func (s *service) Run() error {
	defer s.cleanup()

	addr := fmt.Sprintf(":%d", s.config.Port)
	slog.Info("Starting sessions server", "port", s.config.Port)

	return s.router.Run(addr)
}

// Router returns the underlying Gin engine for testing.
func (s *service) Router() *gin.Engine {
	return s.router
}

// =============================================================================
// Private Initialization Methods
// =============================================================================

// initTracer initializes OpenTelemetry distributed tracing.
//
// # Limitations
//
//   - Uses insecure gRPC connection (appropriate for internal networks)
func (s *service) initTracer() (func(context.Context), error) {
	ctx := context.Background()

	conn, err := grpc.NewClient(s.config.OTelEndpoint,
		grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("failed to create gRPC connection: %w", err)
	}

	traceExporter, err := otlptracegrpc.New(ctx, otlptracegrpc.WithGRPCConn(conn))
	if err != nil {
		return nil, fmt.Errorf("failed to create trace exporter: %w", err)
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(semconv.ServiceNameKey.String("sessions-service")))
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	bsp := sdktrace.NewBatchSpanProcessor(traceExporter)
	traceProvider := sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
		sdktrace.WithResource(res),
		sdktrace.WithSpanProcessor(bsp))

	otel.SetTracerProvider(traceProvider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{}, propagation.Baggage{}))

	cleanup := func(ctx context.Context) {
		ctx, cancel := context.WithTimeout(ctx, time.Second*5)
		defer cancel()
		if err := traceExporter.Shutdown(ctx); err != nil {
			slog.Error("failed to shutdown OTLP exporter", "error", err)
		}
	}

	return cleanup, nil
}

// initStore opens the session store.
func (s *service) initStore() error {
	if s.config.StorePath == "" {
		slog.Info("No store path configured, using in-memory session store")
		s.store = storage.NewMemoryStore()
		return nil
	}

	store, err := storage.OpenBadger(storage.DefaultBadgerConfig(s.config.StorePath))
	if err != nil {
		return err
	}
	s.store = store
	slog.Info("Opened badger session store", "path", s.config.StorePath)
	return nil
}

// initStreamManager builds the live stream manager over the adaptation
// upstream. The circuit breaker is shared across all streams; its state
// transitions drive the breaker gauge.
func (s *service) initStreamManager() {
	breaker := stream.NewCircuitBreaker(stream.BreakerConfig{
		FailureThreshold: s.config.BreakerThreshold,
		ResetInterval:    s.config.BreakerResetInterval,
	})
	if s.metrics != nil {
		metrics := s.metrics
		breaker.OnStateChange = func(state stream.BreakerState) {
			metrics.RecordBreakerState(float64(state), state.String())
		}
	}

	recommender := stream.NewHTTPRecommender(s.config.AdaptationURL, s.config.UpstreamTimeout)
	s.manager = stream.NewManager(s.store, recommender, breaker, stream.Config{
		Interval:           s.config.StreamInterval,
		HeartbeatInterval:  s.config.HeartbeatInterval,
		UpstreamTimeout:    s.config.UpstreamTimeout,
		MaxEventsPerSecond: s.config.MaxEventsPerSecond,
	}, slog.Default())
	slog.Info("Initialized stream manager", "adaptation_url", s.config.AdaptationURL)
}

// initTelemetry connects the telemetry sink.
func (s *service) initTelemetry() {
	if s.config.Influx.URL == "" {
		slog.Info("No influx URL configured, telemetry sink disabled")
		s.sink = telemetry.NopSink{}
		return
	}
	s.sink = telemetry.NewInfluxSink(s.config.Influx, slog.Default())
	slog.Info("Connected influx telemetry sink", "url", s.config.Influx.URL, "bucket", s.config.Influx.Bucket)
}

// initRouter sets up the Gin HTTP router with all routes.
func (s *service) initRouter() {
	if s.config.GinMode != "" {
		gin.SetMode(s.config.GinMode)
	}
	if err := validation.RegisterBindings(); err != nil {
		slog.Warn("binding validator registration failed", "error", err)
	}
	s.router = gin.Default()
	s.router.Use(otelgin.Middleware("sessions-service"))

	limiter := middleware.NewRateLimiter(s.config.RateLimitPerMinute)
	if s.metrics != nil {
		limiter.OnDenied = s.metrics.RecordRateLimited
	}

	routes.SetupRoutes(s.router, routes.Deps{
		Store:   s.store,
		Manager: s.manager,
		Sink:    s.sink,
		Metrics: s.metrics,
		Auth:    s.opts.AuthProvider,
		Audit:   s.opts.AuditLogger,
		Limiter: limiter,
		Version: Version,
	})
}

// cleanup releases all resources held by the service.
func (s *service) cleanup() {
	if s.sink != nil {
		s.sink.Close()
	}
	if s.store != nil {
		if err := s.store.Close(); err != nil {
			slog.Warn("store close error", "error", err)
		}
	}
	if s.tracerCleanup != nil {
		s.tracerCleanup(context.Background())
	}
}
