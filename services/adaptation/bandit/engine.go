// Copyright (C) 2025 EduAdapt (oss@eduadapt.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package bandit implements the Thompson-sampling recommendation engine.
//
// # Description
// Each content delivery arm carries a Beta(alpha, beta) posterior over
// its success probability. A recommendation draws one sample per arm and
// returns the arm with the highest draw, which balances exploration and
// exploitation without explicit epsilon schedules.
//
// # Assumptions
// Rewards are binarized against a success threshold before they update
// the posterior. Posterior state lives in the storage layer; the engine
// itself is stateless apart from its random source.
package bandit

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/eduadapt/EduAdaptPlatform/services/adaptation/cache"
	"github.com/eduadapt/EduAdaptPlatform/services/adaptation/datatypes"
	"github.com/eduadapt/EduAdaptPlatform/services/adaptation/storage"
)

// ErrNoArmsAvailable is returned when the active policy defines no arms.
var ErrNoArmsAvailable = errors.New("no arms available in active policy")

// DefaultSuccessThreshold binarizes rewards: reward >= threshold counts
// as a success for the chosen arm's posterior.
const DefaultSuccessThreshold = 0.6

// meanEpsilon is the tolerance when deciding whether the sampled winner
// is also the arm with the highest posterior mean.
const meanEpsilon = 1e-12

// =============================================================================
// Engine
// =============================================================================

// Config holds the engine's tunables.
type Config struct {
	// SuccessThreshold binarizes feedback rewards. Zero means
	// DefaultSuccessThreshold.
	SuccessThreshold float64

	// CacheTTL is the recommendation debounce window. Zero means
	// cache.DefaultTTL.
	CacheTTL time.Duration

	// Seed fixes the sampler's random source when non-zero. Production
	// deployments leave it zero for a time-seeded source.
	Seed int64
}

// Engine selects content delivery arms by Thompson sampling and applies
// reward feedback to per-arm posteriors.
type Engine struct {
	store     storage.Store
	cache     cache.Cache
	logger    *slog.Logger
	threshold float64
	cacheTTL  time.Duration

	// The sampler is not concurrency safe.
	samplerMu sync.Mutex
	sampler   *Sampler
}

// NewEngine builds an engine over the given store and debounce cache.
// The cache may be nil, which disables debouncing entirely.
func NewEngine(store storage.Store, debounce cache.Cache, logger *slog.Logger, cfg Config) *Engine {
	if cfg.SuccessThreshold <= 0 {
		cfg.SuccessThreshold = DefaultSuccessThreshold
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = cache.DefaultTTL
	}
	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &Engine{
		store:     store,
		cache:     debounce,
		logger:    logger,
		threshold: cfg.SuccessThreshold,
		cacheTTL:  cfg.CacheTTL,
		sampler:   NewSampler(rand.NewSource(seed)),
	}
}

// SuccessThreshold reports the reward binarization threshold in effect.
func (e *Engine) SuccessThreshold() float64 { return e.threshold }

// =============================================================================
// Recommendation
// =============================================================================

// RecommendNext returns the next content recommendation for a learner.
// A recent identical request within the debounce TTL returns the cached
// recommendation unchanged apart from its cached flag.
func (e *Engine) RecommendNext(ctx context.Context, learnerID string) (*datatypes.Recommendation, error) {
	policy, err := e.activeOrDefaultPolicy(ctx)
	if err != nil {
		return nil, err
	}

	cacheKey := cache.Key(learnerID, policy.ID)
	if e.cache != nil {
		if rec, hit, err := e.cache.Get(ctx, cacheKey); err != nil {
			e.logger.Warn("debounce cache read failed", "learner_id", learnerID, "error", err)
		} else if hit {
			rec.Cached = true
			return rec, nil
		}
	}

	rec, err := e.ChooseArm(ctx, policy)
	if err != nil {
		return nil, err
	}

	if err := e.store.RecordRecommendation(ctx, learnerID, rec); err != nil {
		e.logger.Warn("recommendation audit record failed", "learner_id", learnerID, "error", err)
	}
	if e.cache != nil {
		if err := e.cache.Put(ctx, cacheKey, rec, e.cacheTTL); err != nil {
			e.logger.Warn("debounce cache write failed", "learner_id", learnerID, "error", err)
		}
	}
	return rec, nil
}

// ChooseArm runs one round of Thompson sampling over the policy's arms.
// The strategy label is exploit when the sampled winner also has the
// highest posterior mean, explore otherwise.
func (e *Engine) ChooseArm(ctx context.Context, policy *datatypes.Policy) (*datatypes.Recommendation, error) {
	if len(policy.Arms) == 0 {
		return nil, ErrNoArmsAvailable
	}

	posteriors := make([]*datatypes.Posterior, len(policy.Arms))
	for i, arm := range policy.Arms {
		p, err := e.store.Posterior(ctx, arm.ID)
		if errors.Is(err, storage.ErrNotFound) {
			p, err = e.store.InitPosterior(ctx, arm.ID, policy.Priors)
		}
		if err != nil {
			return nil, fmt.Errorf("posterior for arm %s: %w", arm.ID, err)
		}
		posteriors[i] = p
	}

	best := 0
	bestSample := math.Inf(-1)
	maxMean := math.Inf(-1)
	samples := make([]float64, len(policy.Arms))

	e.samplerMu.Lock()
	for i, p := range posteriors {
		samples[i] = e.sampler.Beta(float64(p.Alpha), float64(p.Beta))
	}
	e.samplerMu.Unlock()

	for i, p := range posteriors {
		if samples[i] > bestSample {
			bestSample = samples[i]
			best = i
		}
		if m := p.Mean(); m > maxMean {
			maxMean = m
		}
	}

	chosen := policy.Arms[best]
	chosenPosterior := posteriors[best]
	strategy := datatypes.StrategyExplore
	if chosenPosterior.Mean() >= maxMean-meanEpsilon {
		strategy = datatypes.StrategyExploit
	}

	return &datatypes.Recommendation{
		ArmID:        chosen.ID,
		Modalities:   append([]string(nil), chosen.Modalities...),
		ChunkSize:    chosen.ChunkSize,
		Difficulty:   chosen.Difficulty,
		PolicyID:     policy.ID,
		IssuedAt:     time.Now().UTC(),
		SampleScore:  bestSample,
		ExpectedMean: chosenPosterior.Mean(),
		Alpha:        chosenPosterior.Alpha,
		Beta:         chosenPosterior.Beta,
		Strategy:     strategy,
	}, nil
}

// activeOrDefaultPolicy loads the active policy, installing the built-in
// default on first use when the store is empty.
func (e *Engine) activeOrDefaultPolicy(ctx context.Context) (*datatypes.Policy, error) {
	policy, err := e.store.ActivePolicy(ctx)
	if err == nil {
		return policy, nil
	}
	if !errors.Is(err, storage.ErrNoActivePolicy) {
		return nil, err
	}

	policy = DefaultPolicy()
	if err := e.store.ImportPolicy(ctx, policy); err != nil {
		return nil, fmt.Errorf("install default policy: %w", err)
	}
	for _, arm := range policy.Arms {
		if _, err := e.store.InitPosterior(ctx, arm.ID, policy.Priors); err != nil {
			return nil, fmt.Errorf("seed posterior for arm %s: %w", arm.ID, err)
		}
	}
	e.logger.Info("installed default policy", "policy_id", policy.ID, "arms", len(policy.Arms))
	return policy, nil
}

// =============================================================================
// Feedback
// =============================================================================

// ApplyFeedback binarizes the reward against the success threshold,
// updates the chosen arm's posterior, and persists the raw feedback for
// offline analysis. Returns the updated posterior.
func (e *Engine) ApplyFeedback(ctx context.Context, learnerID, armID string, reward float64) (*datatypes.Posterior, error) {
	policy, err := e.activeOrDefaultPolicy(ctx)
	if err != nil {
		return nil, err
	}

	success := reward >= e.threshold
	posterior, err := e.store.IncrementPosterior(ctx, armID, success, policy.Priors)
	if err != nil {
		return nil, fmt.Errorf("update posterior for arm %s: %w", armID, err)
	}

	fb := &datatypes.Feedback{
		LearnerID: learnerID,
		Arm:       armID,
		Reward:    reward,
		Success:   success,
		Threshold: e.threshold,
		CreatedAt: time.Now().UTC(),
	}
	if err := e.store.RecordFeedback(ctx, fb); err != nil {
		e.logger.Warn("feedback audit record failed", "learner_id", learnerID, "arm", armID, "error", err)
	}
	return posterior, nil
}

// =============================================================================
// Policy Management
// =============================================================================

// PolicySnapshot pairs the active policy with the current posterior of
// every arm, for the export and status endpoints.
type PolicySnapshot struct {
	Policy     *datatypes.Policy      `json:"policy"`
	Posteriors []*datatypes.Posterior `json:"posteriors"`
}

// Snapshot returns the active policy and its arm posteriors.
func (e *Engine) Snapshot(ctx context.Context) (*PolicySnapshot, error) {
	policy, err := e.activeOrDefaultPolicy(ctx)
	if err != nil {
		return nil, err
	}

	posteriors := make([]*datatypes.Posterior, 0, len(policy.Arms))
	for _, arm := range policy.Arms {
		p, err := e.store.Posterior(ctx, arm.ID)
		if errors.Is(err, storage.ErrNotFound) {
			p, err = e.store.InitPosterior(ctx, arm.ID, policy.Priors)
		}
		if err != nil {
			return nil, fmt.Errorf("posterior for arm %s: %w", arm.ID, err)
		}
		posteriors = append(posteriors, p)
	}
	return &PolicySnapshot{Policy: policy, Posteriors: posteriors}, nil
}

// ImportPolicy validates and installs a new active policy, seeding
// posteriors for any arms that have none. Existing posterior evidence
// for overlapping arm ids is preserved.
func (e *Engine) ImportPolicy(ctx context.Context, policy *datatypes.Policy) error {
	if policy.ID == "" {
		return errors.New("policy id required")
	}
	if len(policy.Arms) == 0 {
		return ErrNoArmsAvailable
	}
	for i, arm := range policy.Arms {
		if arm.ID == "" {
			return fmt.Errorf("arm %d: id required", i)
		}
	}
	policy.Priors = policy.Priors.Normalize()
	if policy.CreatedAt.IsZero() {
		policy.CreatedAt = time.Now().UTC()
	}
	if policy.SchemaVersion == 0 {
		policy.SchemaVersion = 1
	}
	if policy.Algorithm == "" {
		policy.Algorithm = "thompson_sampling"
	}
	if policy.Type == "" {
		policy.Type = "bandit_policy"
	}

	if err := e.store.ImportPolicy(ctx, policy); err != nil {
		return fmt.Errorf("import policy %s: %w", policy.ID, err)
	}
	for _, arm := range policy.Arms {
		if _, err := e.store.InitPosterior(ctx, arm.ID, policy.Priors); err != nil {
			return fmt.Errorf("seed posterior for arm %s: %w", arm.ID, err)
		}
	}
	e.logger.Info("policy imported", "policy_id", policy.ID, "arms", len(policy.Arms))
	return nil
}

// DatasetStatus reports how many recommendation and feedback records the
// store has accumulated for offline RL dataset collection.
func (e *Engine) DatasetStatus(ctx context.Context) (recommendations, feedback int64, err error) {
	return e.store.DatasetCounts(ctx)
}
