// Copyright (C) 2025 EduAdapt (oss@eduadapt.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package storage provides the document store of the adaptation service:
// bandit policies, per-arm posteriors, and the recommendation/feedback
// audit trail.
//
// Two implementations exist, selected at construction time:
//
//   - BadgerStore: embedded BadgerDB for persistent single-node deployments
//   - MemoryStore: in-process maps for tests and ephemeral deployments
//
// No operation needs a multi-document transaction; every mutation is a
// single atomic update (one posterior increment, one insert, one policy
// swap), so both implementations only guarantee single-document atomicity.
package storage

import (
	"context"
	"errors"

	"github.com/eduadapt/EduAdaptPlatform/services/adaptation/datatypes"
)

// =============================================================================
// Errors
// =============================================================================

// ErrNotFound is returned when a requested document does not exist.
var ErrNotFound = errors.New("document not found")

// ErrNoActivePolicy is returned by ActivePolicy when no bandit policy is
// currently active. Callers typically respond by installing the default
// policy.
var ErrNoActivePolicy = errors.New("no active bandit policy")

// =============================================================================
// Interface
// =============================================================================

// Store is the document store consumed by the bandit engine and the HTTP
// handlers. Implementations must be safe for concurrent use; posterior
// increments in particular must be atomic per arm so concurrent feedback
// is never lost.
type Store interface {
	// ActivePolicy returns the currently active bandit policy, or
	// ErrNoActivePolicy if none is installed.
	ActivePolicy(ctx context.Context) (*datatypes.Policy, error)

	// ImportPolicy deactivates any currently active policy and installs p
	// as the new active policy. The previous policy is retained for audit.
	ImportPolicy(ctx context.Context, p *datatypes.Policy) error

	// Posterior returns the stored posterior for armID, or ErrNotFound.
	Posterior(ctx context.Context, armID string) (*datatypes.Posterior, error)

	// InitPosterior returns the posterior for armID, creating it from the
	// priors if absent. Never overwrites an existing posterior.
	InitPosterior(ctx context.Context, armID string, priors datatypes.Priors) (*datatypes.Posterior, error)

	// IncrementPosterior applies one feedback observation: alpha+1 on
	// success, beta+1 otherwise. The posterior is created from the priors
	// if absent. The increment is atomic per arm; the updated posterior
	// is returned.
	IncrementPosterior(ctx context.Context, armID string, success bool, priors datatypes.Priors) (*datatypes.Posterior, error)

	// RecordRecommendation appends one issued recommendation to the audit
	// trail. Recommendations are immutable once recorded.
	RecordRecommendation(ctx context.Context, learnerID string, rec *datatypes.Recommendation) error

	// RecordFeedback appends one raw feedback event to the audit trail,
	// regardless of whether the arm was previously seen.
	RecordFeedback(ctx context.Context, fb *datatypes.Feedback) error

	// DatasetCounts reports how many recommendations and feedback events
	// have been recorded, as a proxy for future training dataset size.
	DatasetCounts(ctx context.Context) (recommendations, feedback int64, err error)

	// Close releases the underlying resources.
	Close() error
}
