// Copyright (C) 2025 EduAdapt (oss@eduadapt.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package routes

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/eduadapt/EduAdaptPlatform/pkg/extensions"
	"github.com/eduadapt/EduAdaptPlatform/pkg/middleware"
	"github.com/eduadapt/EduAdaptPlatform/services/sessions/handlers"
	"github.com/eduadapt/EduAdaptPlatform/services/sessions/observability"
	"github.com/eduadapt/EduAdaptPlatform/services/sessions/storage"
	"github.com/eduadapt/EduAdaptPlatform/services/sessions/stream"
	"github.com/eduadapt/EduAdaptPlatform/services/sessions/telemetry"
)

// Deps carries everything the route tree needs.
type Deps struct {
	Store   storage.Store
	Manager *stream.Manager
	Sink    telemetry.EventSink
	Metrics *observability.SessionMetrics
	Auth    extensions.AuthProvider
	Audit   extensions.AuditLogger
	Limiter *middleware.RateLimiter
	Version string
}

// SetupRoutes wires the sessions service's HTTP surface onto router.
func SetupRoutes(router *gin.Engine, deps Deps) {
	router.Use(middleware.RequestID())

	router.GET("/healthz", handlers.Healthz("sessions", deps.Version))
	router.GET("/health", handlers.Healthz("sessions", deps.Version))
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := router.Group("/v1")
	{
		sessions := v1.Group("/sessions")
		sessions.Use(middleware.RequireRoles(deps.Auth, extensions.RoleLearner, extensions.RoleEducator, extensions.RoleAdmin))
		{
			sessions.POST("",
				deps.Limiter.Middleware("/v1/sessions"),
				handlers.CreateSession(deps.Store, deps.Audit, deps.Metrics))
			sessions.POST("/:session_id/events",
				deps.Limiter.Middleware("/v1/sessions/events"),
				handlers.RecordSessionEvent(deps.Store, deps.Sink, deps.Audit, deps.Metrics))
			sessions.POST("/:session_id/end",
				handlers.EndSession(deps.Store, deps.Audit))

			// Live streams are long-lived; they are not rate limited,
			// the stream manager's own emission cap applies instead.
			sessions.GET("/:session_id/live",
				handlers.LiveSession(deps.Manager, deps.Metrics))
			sessions.GET("/:session_id/live/ws",
				handlers.LiveSessionWS(deps.Manager, deps.Metrics))
		}
	}
}
