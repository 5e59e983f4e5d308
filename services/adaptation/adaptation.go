// Copyright (C) 2025 EduAdapt (oss@eduadapt.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package adaptation provides the recommendation engine service.
//
// This package contains the main service type that coordinates all
// components: the Thompson-sampling bandit engine, posterior storage,
// the debounce cache, HTTP routing, and observability infrastructure.
//
// # Usage
//
//	cfg := adaptation.Config{Port: 12310}
//	svc, err := adaptation.New(cfg, nil)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	svc.Run()
package adaptation

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
	"github.com/eduadapt/EduAdaptPlatform/services/adaptation/bandit"
	"github.com/eduadapt/EduAdaptPlatform/services/adaptation/cache"
	"github.com/eduadapt/EduAdaptPlatform/services/adaptation/datatypes"
	"github.com/eduadapt/EduAdaptPlatform/services/adaptation/observability"
	"github.com/eduadapt/EduAdaptPlatform/services/adaptation/routes"
	"github.com/eduadapt/EduAdaptPlatform/services/adaptation/storage"
)

// Version is the service version reported by /healthz.
const Version = "0.3.0"

// =============================================================================
// Interface Definition
// =============================================================================

// Service defines the contract for the adaptation service.
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

// Config holds the adaptation service configuration.
type Config struct {
	// Port is the HTTP server port. Default: 12310
	Port int

	// StorePath is the BadgerDB directory. Empty selects the in-memory
	// store, which loses all posterior evidence on restart.
	StorePath string

	// RedisAddr is the debounce cache Redis address. Empty selects the
	// in-process cache.
	RedisAddr string

	// PolicySeedPath is an optional YAML policy file imported at startup
	// and hot-reloaded on change. Empty skips seeding; the built-in
	// default policy is installed lazily on first use instead.
	PolicySeedPath string

	// SuccessThreshold binarizes feedback rewards. Default: 0.6
	SuccessThreshold float64

	// CacheTTL is the recommendation debounce window. Default: 10s
	CacheTTL time.Duration

	// RateLimitPerMinute caps per-client request rates on the hot
	// endpoints. 0 disables rate limiting.
	RateLimitPerMinute int

	// HealthzRateLimitPerMinute caps per-client /healthz hits so a
	// misconfigured probe cannot flood the service. 0 disables the cap.
	HealthzRateLimitPerMinute int

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
		cfg.Port = 12310
	}
	if cfg.SuccessThreshold == 0 {
		cfg.SuccessThreshold = bandit.DefaultSuccessThreshold
	}
	if cfg.CacheTTL == 0 {
		cfg.CacheTTL = cache.DefaultTTL
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
	engine        *bandit.Engine
	store         storage.Store
	debounce      cache.Cache
	metrics       *observability.AdaptationMetrics
	tracerCleanup func(context.Context)
	watchCancel   context.CancelFunc
}

// New creates a new adaptation Service with the given configuration.
//
// # Description
//
// New initializes all service components:
//  1. Applies default configuration for missing values
//  2. Initializes OpenTelemetry tracing
//  3. Initializes Prometheus metrics
//  4. Opens the posterior store (badger or in-memory)
//  5. Connects the debounce cache (redis or in-process)
//  6. Seeds and watches the policy file if configured
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
		slog.Info("Initialized Prometheus metrics for adaptation")
	}

	if err := s.initStore(); err != nil {
		s.cleanup()
		return nil, fmt.Errorf("failed to initialize store: %w", err)
	}
	if err := s.initCache(); err != nil {
		s.cleanup()
		return nil, fmt.Errorf("failed to initialize debounce cache: %w", err)
	}

	s.engine = bandit.NewEngine(s.store, s.debounce, slog.Default(), bandit.Config{
		SuccessThreshold: s.config.SuccessThreshold,
		CacheTTL:         s.config.CacheTTL,
	})

	if err := s.initPolicySeed(); err != nil {
		s.cleanup()
		return nil, fmt.Errorf("failed to seed policy: %w", err)
	}

	s.initRouter()
	return s, nil
}

// Run starts the HTTP server and blocks until shutdown or error.
func (s *service) Run() error {
	defer s.cleanup()

	addr := fmt.Sprintf(":%d", s.config.Port)
	slog.Info("Starting adaptation server", "port", s.config.Port)

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
		resource.WithAttributes(semconv.ServiceNameKey.String("adaptation-service")))
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

// initStore opens the posterior store.
func (s *service) initStore() error {
	if s.config.StorePath == "" {
		slog.Info("No store path configured, using in-memory posterior store")
		s.store = storage.NewMemoryStore()
		return nil
	}

	store, err := storage.OpenBadger(storage.DefaultBadgerConfig(s.config.StorePath))
	if err != nil {
		return err
	}
	s.store = store
	slog.Info("Opened badger posterior store", "path", s.config.StorePath)
	return nil
}

// initCache connects the debounce cache.
func (s *service) initCache() error {
	if s.config.RedisAddr == "" {
		slog.Info("No redis address configured, using in-process debounce cache")
		s.debounce = cache.NewMemoryCache()
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	redisCache, err := cache.NewRedisCache(ctx, s.config.RedisAddr)
	if err != nil {
		return err
	}
	s.debounce = redisCache
	slog.Info("Connected redis debounce cache", "addr", s.config.RedisAddr)
	return nil
}

// initPolicySeed imports the seed policy file and starts the hot-reload
// watcher. A missing PolicySeedPath is not an error; the built-in
// default policy is installed lazily on first use instead.
func (s *service) initPolicySeed() error {
	if s.config.PolicySeedPath == "" {
		return nil
	}

	policy, err := bandit.LoadPolicyFile(s.config.PolicySeedPath)
	if err != nil {
		return err
	}
	if err := s.engine.ImportPolicy(context.Background(), policy); err != nil {
		return err
	}
	if s.metrics != nil {
		s.metrics.RecordPolicyImport("seed_file")
	}
	slog.Info("Seeded policy from file", "path", s.config.PolicySeedPath, "policy_id", policy.ID)

	watchCtx, cancel := context.WithCancel(context.Background())
	s.watchCancel = cancel
	go func() {
		err := bandit.WatchPolicyFile(watchCtx, s.config.PolicySeedPath, slog.Default(),
			func(p *datatypes.Policy) error {
				if err := s.engine.ImportPolicy(watchCtx, p); err != nil {
					return err
				}
				if s.metrics != nil {
					s.metrics.RecordPolicyImport("hot_reload")
				}
				return nil
			})
		if err != nil && watchCtx.Err() == nil {
			slog.Error("policy watcher terminated", "error", err)
		}
	}()
	return nil
}

// initRouter sets up the Gin HTTP router with all routes.
func (s *service) initRouter() {
	if s.config.GinMode != "" {
		gin.SetMode(s.config.GinMode)
	}
	s.router = gin.Default()
	s.router.Use(otelgin.Middleware("adaptation-service"))

	limiter := middleware.NewRateLimiter(s.config.RateLimitPerMinute)
	healthLimiter := middleware.NewRateLimiter(s.config.HealthzRateLimitPerMinute)
	if s.metrics != nil {
		limiter.OnDenied = s.metrics.RecordRateLimited
		healthLimiter.OnDenied = s.metrics.RecordRateLimited
	}

	routes.SetupRoutes(s.router, routes.Deps{
		Engine:        s.engine,
		Metrics:       s.metrics,
		Auth:          s.opts.AuthProvider,
		Limiter:       limiter,
		HealthLimiter: healthLimiter,
		Version:       Version,
	})
}

// cleanup releases all resources held by the service.
func (s *service) cleanup() {
	if s.watchCancel != nil {
		s.watchCancel()
	}
	if closer, ok := s.debounce.(interface{ Close() error }); ok && closer != nil {
		if err := closer.Close(); err != nil {
			slog.Warn("debounce cache close error", "error", err)
		}
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
