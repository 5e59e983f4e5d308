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
	"github.com/eduadapt/EduAdaptPlatform/services/adaptation/bandit"
	"github.com/eduadapt/EduAdaptPlatform/services/adaptation/handlers"
	"github.com/eduadapt/EduAdaptPlatform/services/adaptation/observability"
)

// Deps carries everything the route tree needs.
type Deps struct {
	Engine  *bandit.Engine
	Metrics *observability.AdaptationMetrics
	Auth    extensions.AuthProvider
	Limiter *middleware.RateLimiter

	// HealthLimiter, when non-nil, caps /healthz hits separately from
	// the API limiter so probes and API traffic never share a budget.
	HealthLimiter *middleware.RateLimiter

	Version string
}

// SetupRoutes wires the adaptation service's HTTP surface onto router.
func SetupRoutes(router *gin.Engine, deps Deps) {
	router.Use(middleware.RequestID())

	health := []gin.HandlerFunc{handlers.Healthz("adaptation", deps.Version)}
	if deps.HealthLimiter != nil {
		health = append([]gin.HandlerFunc{deps.HealthLimiter.Middleware("/healthz")}, health...)
	}
	router.GET("/healthz", health...)
	router.GET("/health", health...)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := router.Group("/v1")
	{
		adapt := v1.Group("/adaptation")
		{
			adapt.POST("/recommend-next",
				deps.Limiter.Middleware("/v1/adaptation/recommend-next"),
				middleware.RequireRoles(deps.Auth, extensions.RoleLearner, extensions.RoleEducator, extensions.RoleAdmin),
				handlers.RecommendNext(deps.Engine, deps.Metrics))
			adapt.POST("/feedback",
				deps.Limiter.Middleware("/v1/adaptation/feedback"),
				middleware.RequireRoles(deps.Auth, extensions.RoleLearner, extensions.RoleEducator, extensions.RoleAdmin),
				handlers.SubmitFeedback(deps.Engine, deps.Metrics))
			// Policy administration is gated to educators and admins.
			policy := adapt.Group("/policy")
			policy.Use(middleware.RequireRoles(deps.Auth, extensions.RoleEducator, extensions.RoleAdmin))
			{
				policy.GET("", handlers.PolicyInfo(deps.Engine, deps.Metrics))
				policy.GET("/export", handlers.ExportPolicy(deps.Engine, deps.Metrics))
				policy.POST("/import", handlers.ImportPolicy(deps.Engine, deps.Metrics))
			}
		}
		rl := v1.Group("/rl")
		rl.Use(middleware.RequireRoles(deps.Auth, extensions.RoleEducator, extensions.RoleAdmin))
		{
			rl.GET("/dataset/status", handlers.DatasetStatus(deps.Engine, deps.Metrics))
		}
	}
}
