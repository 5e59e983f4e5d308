// Copyright (C) 2025 EduAdapt (oss@eduadapt.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package handlers implements the adaptation service's HTTP surface.
package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/eduadapt/EduAdaptPlatform/pkg/validation"
	"github.com/eduadapt/EduAdaptPlatform/services/adaptation/bandit"
	"github.com/eduadapt/EduAdaptPlatform/services/adaptation/datatypes"
	"github.com/eduadapt/EduAdaptPlatform/services/adaptation/observability"
)

// RecommendNext returns the handler for POST /v1/adaptation/recommend-next.
//
// # Description
//
// Draws the next content recommendation for a learner via Thompson
// sampling, or returns the debounced recommendation when the learner
// asked again within the cache TTL.
//
// # Outputs
//
//   - 200: The recommendation body.
//   - 422: Validation failure on the request body.
//   - 500: Engine or storage failure.
func RecommendNext(engine *bandit.Engine, metrics *observability.AdaptationMetrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		var req datatypes.RecommendRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			metrics.RecordRequest(observability.EndpointRecommendNext, "422", time.Since(start).Seconds())
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
			return
		}
		if err := validation.ValidateIdentifier("learner_id", req.LearnerID); err != nil {
			metrics.RecordRequest(observability.EndpointRecommendNext, "422", time.Since(start).Seconds())
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
			return
		}

		rec, err := engine.RecommendNext(c.Request.Context(), req.LearnerID)
		if err != nil {
			if errors.Is(err, bandit.ErrNoArmsAvailable) {
				metrics.RecordRequest(observability.EndpointRecommendNext, "422", time.Since(start).Seconds())
				c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "active policy has no arms"})
				return
			}
			slog.Error("recommendation failed", "learner_id", req.LearnerID, "error", err)
			metrics.RecordRequest(observability.EndpointRecommendNext, "500", time.Since(start).Seconds())
			c.JSON(http.StatusInternalServerError, gin.H{"error": "recommendation failed"})
			return
		}

		metrics.RecordRecommendation(rec.Strategy, rec.Cached)
		metrics.RecordRequest(observability.EndpointRecommendNext, "200", time.Since(start).Seconds())
		c.JSON(http.StatusOK, rec)
	}
}

// SubmitFeedback returns the handler for POST /v1/adaptation/feedback.
//
// # Outputs
//
//   - 204: Feedback applied to the arm's posterior.
//   - 422: Validation failure on the request body.
//   - 500: Engine or storage failure.
func SubmitFeedback(engine *bandit.Engine, metrics *observability.AdaptationMetrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		var req datatypes.FeedbackRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			metrics.RecordRequest(observability.EndpointFeedback, "422", time.Since(start).Seconds())
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
			return
		}
		if err := validation.ValidateIdentifiers("learner_id", req.LearnerID, "arm", req.Arm); err != nil {
			metrics.RecordRequest(observability.EndpointFeedback, "422", time.Since(start).Seconds())
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
			return
		}
		posterior, err := engine.ApplyFeedback(c.Request.Context(), req.LearnerID, req.Arm, req.Reward)
		if err != nil {
			slog.Error("feedback failed", "learner_id", req.LearnerID, "arm", req.Arm, "error", err)
			metrics.RecordRequest(observability.EndpointFeedback, "500", time.Since(start).Seconds())
			c.JSON(http.StatusInternalServerError, gin.H{"error": "feedback failed"})
			return
		}

		metrics.RecordFeedback(req.Reward >= engine.SuccessThreshold())
		metrics.RecordRequest(observability.EndpointFeedback, "204", time.Since(start).Seconds())
		slog.Debug("feedback applied",
			"learner_id", req.LearnerID,
			"arm", req.Arm,
			"alpha", posterior.Alpha,
			"beta", posterior.Beta)
		c.Status(http.StatusNoContent)
	}
}

// PolicyInfo returns the handler for GET /v1/adaptation/policy. It reports
// the active policy and the live posterior of every arm.
func PolicyInfo(engine *bandit.Engine, metrics *observability.AdaptationMetrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		snap, err := engine.Snapshot(c.Request.Context())
		if err != nil {
			slog.Error("policy snapshot failed", "error", err)
			metrics.RecordRequest(observability.EndpointPolicy, "500", time.Since(start).Seconds())
			c.JSON(http.StatusInternalServerError, gin.H{"error": "policy snapshot failed"})
			return
		}
		metrics.RecordRequest(observability.EndpointPolicy, "200", time.Since(start).Seconds())
		c.JSON(http.StatusOK, snap)
	}
}

// ExportPolicy returns the handler for GET /v1/adaptation/policy/export. The
// exported document can be re-imported on another deployment.
func ExportPolicy(engine *bandit.Engine, metrics *observability.AdaptationMetrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		snap, err := engine.Snapshot(c.Request.Context())
		if err != nil {
			slog.Error("policy export failed", "error", err)
			metrics.RecordRequest(observability.EndpointPolicy, "500", time.Since(start).Seconds())
			c.JSON(http.StatusInternalServerError, gin.H{"error": "policy export failed"})
			return
		}
		metrics.RecordRequest(observability.EndpointPolicy, "200", time.Since(start).Seconds())
		c.Header("Content-Disposition", `attachment; filename="policy_export.json"`)
		c.JSON(http.StatusOK, gin.H{
			"exported_at": time.Now().UTC(),
			"policy":      snap.Policy,
			"posteriors":  snap.Posteriors,
		})
	}
}

// ImportPolicy returns the handler for POST /v1/adaptation/policy/import.
//
// # Limitations
//
// Importing a policy replaces the active one but preserves posterior
// evidence for arm ids that overlap.
func ImportPolicy(engine *bandit.Engine, metrics *observability.AdaptationMetrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		var req datatypes.PolicyImportRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			metrics.RecordRequest(observability.EndpointPolicy, "422", time.Since(start).Seconds())
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
			return
		}

		if err := engine.ImportPolicy(c.Request.Context(), req.Policy); err != nil {
			if errors.Is(err, bandit.ErrNoArmsAvailable) {
				metrics.RecordRequest(observability.EndpointPolicy, "422", time.Since(start).Seconds())
				c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "policy has no arms"})
				return
			}
			slog.Error("policy import failed", "error", err)
			metrics.RecordRequest(observability.EndpointPolicy, "500", time.Since(start).Seconds())
			c.JSON(http.StatusInternalServerError, gin.H{"error": "policy import failed"})
			return
		}

		metrics.RecordPolicyImport("api")
		metrics.RecordRequest(observability.EndpointPolicy, "201", time.Since(start).Seconds())
		c.JSON(http.StatusCreated, gin.H{"status": "imported", "policy_id": req.Policy.ID})
	}
}

// DatasetStatus returns the handler for GET /v1/rl/dataset/status. It
// reports how many recommendation and feedback records have accumulated
// for offline policy training.
func DatasetStatus(engine *bandit.Engine, metrics *observability.AdaptationMetrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		recs, fbs, err := engine.DatasetStatus(c.Request.Context())
		if err != nil {
			slog.Error("dataset status failed", "error", err)
			metrics.RecordRequest(observability.EndpointDataset, "500", time.Since(start).Seconds())
			c.JSON(http.StatusInternalServerError, gin.H{"error": "dataset status failed"})
			return
		}
		metrics.RecordRequest(observability.EndpointDataset, "200", time.Since(start).Seconds())
		c.JSON(http.StatusOK, gin.H{
			"recommendations": recs,
			"feedback":        fbs,
		})
	}
}

// Healthz returns the liveness handler. Responses are intentionally
// minimal so load balancer probes stay cheap.
func Healthz(service, version string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"service": service,
			"version": version,
		})
	}
}
