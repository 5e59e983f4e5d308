// Copyright (C) 2025 EduAdapt (oss@eduadapt.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package datatypes defines the wire and storage types of the adaptation
// service: bandit policies, arms, posteriors, recommendations, feedback.
package datatypes

import "time"

// =============================================================================
// Strategy Labels
// =============================================================================

// Strategy labels attached to recommendations. "exploit" means the sampled
// winner is also the arm with the highest posterior mean; "explore" means a
// currently-uncertain arm won the draw.
const (
	StrategyExploit = "exploit"
	StrategyExplore = "explore"
)

// =============================================================================
// Policy
// =============================================================================

// Arm is one candidate content delivery option in a bandit policy.
type Arm struct {
	ID         string   `json:"id" yaml:"id"`
	Modalities []string `json:"modalities" yaml:"modalities"`
	ChunkSize  int      `json:"chunk_size" yaml:"chunk_size"`
	Difficulty string   `json:"difficulty" yaml:"difficulty"`
}

// Priors seed the Beta posterior of every arm in a policy. Both values must
// be at least 1 (Beta distribution support).
type Priors struct {
	Alpha int64 `json:"alpha" yaml:"alpha"`
	Beta  int64 `json:"beta" yaml:"beta"`
}

// DefaultPriors is the uninformative Beta(1,1) prior used when a policy or
// feedback event arrives without explicit priors.
var DefaultPriors = Priors{Alpha: 1, Beta: 1}

// Normalize clamps priors into the Beta support. Imported policies may
// carry zeros from hand-written YAML.
func (p Priors) Normalize() Priors {
	if p.Alpha < 1 {
		p.Alpha = 1
	}
	if p.Beta < 1 {
		p.Beta = 1
	}
	return p
}

// Policy is a named, versioned set of arms plus prior parameters. Policies
// are swapped whole by import/export, never mutated arm-by-arm; at most one
// policy is active at a time.
type Policy struct {
	ID            string    `json:"id" yaml:"id"`
	Type          string    `json:"type" yaml:"type"`
	Active        bool      `json:"active" yaml:"-"`
	Algorithm     string    `json:"algorithm" yaml:"algorithm"`
	Arms          []Arm     `json:"arms" yaml:"arms"`
	Priors        Priors    `json:"priors" yaml:"priors"`
	CreatedAt     time.Time `json:"created_at" yaml:"-"`
	SchemaVersion int       `json:"schema_version" yaml:"schema_version"`
}

// =============================================================================
// Posterior
// =============================================================================

// Posterior is the Beta-distribution belief about one arm's success
// probability. Alpha and Beta start at the policy priors and are only ever
// incremented; both stay >= 1 for the lifetime of the arm.
type Posterior struct {
	ArmID     string    `json:"arm_id"`
	Alpha     int64     `json:"alpha"`
	Beta      int64     `json:"beta"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Mean returns the posterior mean alpha/(alpha+beta).
func (p Posterior) Mean() float64 {
	return float64(p.Alpha) / float64(p.Alpha+p.Beta)
}

// =============================================================================
// Recommendation
// =============================================================================

// Recommendation is one issued "next content" decision. Immutable once
// issued; persisted for analytics independent of the debounce cache.
type Recommendation struct {
	ArmID        string    `json:"arm_id"`
	Modalities   []string  `json:"modalities"`
	ChunkSize    int       `json:"chunk_size"`
	Difficulty   string    `json:"difficulty"`
	PolicyID     string    `json:"policy_id"`
	IssuedAt     time.Time `json:"issued_at"`
	SampleScore  float64   `json:"sample_score"`
	ExpectedMean float64   `json:"expected_mean"`
	Alpha        int64     `json:"alpha"`
	Beta         int64     `json:"beta"`
	Strategy     string    `json:"strategy"`
	Cached       bool      `json:"cached"`
}

// =============================================================================
// Feedback
// =============================================================================

// Feedback is one reward observation for an arm. Success is derived from
// the configured threshold at ingest time and drives exactly one posterior
// increment: alpha on success, beta otherwise.
type Feedback struct {
	LearnerID string    `json:"learner_id"`
	Arm       string    `json:"arm"`
	Reward    float64   `json:"reward"`
	Success   bool      `json:"success"`
	Threshold float64   `json:"threshold"`
	CreatedAt time.Time `json:"created_at"`
}

// =============================================================================
// Request Bodies
// =============================================================================

// RecommendRequest is the body of POST /v1/adaptation/recommend-next.
// The optional signals are accepted for future contextual policies; the
// Thompson engine only uses the learner identifier today.
type RecommendRequest struct {
	LearnerID      string   `json:"learner_id" binding:"required"`
	RecentAccuracy *float64 `json:"recent_accuracy,omitempty"`
	AvgTimeMS      *float64 `json:"avg_time_ms,omitempty"`
	Engagement     *float64 `json:"engagement,omitempty"`
}

// FeedbackRequest is the body of POST /v1/adaptation/feedback.
type FeedbackRequest struct {
	LearnerID string  `json:"learner_id" binding:"required"`
	Arm       string  `json:"arm" binding:"required"`
	Reward    float64 `json:"reward"`
}

// PolicyImportRequest is the body of POST /v1/adaptation/policy/import.
type PolicyImportRequest struct {
	Policy *Policy `json:"policy" binding:"required"`
}
