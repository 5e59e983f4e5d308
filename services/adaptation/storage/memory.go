// Copyright (C) 2025 EduAdapt (oss@eduadapt.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package storage

import (
	"context"
	"sync"
	"time"

	"github.com/eduadapt/EduAdaptPlatform/services/adaptation/datatypes"
)

// MemoryStore is the in-process Store implementation. It holds everything
// in maps guarded by a single mutex; every Store mutation is one critical
// section, which satisfies the per-arm atomicity requirement without
// per-key locking.
//
// Returned documents are copies, so callers can never mutate stored state
// through an aliased pointer.
type MemoryStore struct {
	mu         sync.RWMutex
	active     *datatypes.Policy
	archived   []*datatypes.Policy
	posteriors map[string]*datatypes.Posterior
	recCount   int64
	fbCount    int64

	// retained audit trails; bounded only by process lifetime, which is
	// acceptable for the test/ephemeral deployments this store targets
	recs []storedRecommendation
	fbs  []*datatypes.Feedback
}

type storedRecommendation struct {
	learnerID string
	rec       *datatypes.Recommendation
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		posteriors: make(map[string]*datatypes.Posterior),
	}
}

// ActivePolicy implements Store.
func (s *MemoryStore) ActivePolicy(_ context.Context) (*datatypes.Policy, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.active == nil {
		return nil, ErrNoActivePolicy
	}
	cp := *s.active
	return &cp, nil
}

// ImportPolicy implements Store.
func (s *MemoryStore) ImportPolicy(_ context.Context, p *datatypes.Policy) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active != nil {
		old := *s.active
		old.Active = false
		s.archived = append(s.archived, &old)
	}
	cp := *p
	cp.Active = true
	s.active = &cp
	return nil
}

// Posterior implements Store.
func (s *MemoryStore) Posterior(_ context.Context, armID string) (*datatypes.Posterior, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.posteriors[armID]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *p
	return &cp, nil
}

// InitPosterior implements Store.
func (s *MemoryStore) InitPosterior(_ context.Context, armID string, priors datatypes.Priors) (*datatypes.Posterior, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.initPosteriorLocked(armID, priors), nil
}

func (s *MemoryStore) initPosteriorLocked(armID string, priors datatypes.Priors) *datatypes.Posterior {
	if p, ok := s.posteriors[armID]; ok {
		cp := *p
		return &cp
	}
	priors = priors.Normalize()
	p := &datatypes.Posterior{
		ArmID:     armID,
		Alpha:     priors.Alpha,
		Beta:      priors.Beta,
		UpdatedAt: time.Now().UTC(),
	}
	s.posteriors[armID] = p
	cp := *p
	return &cp
}

// IncrementPosterior implements Store.
func (s *MemoryStore) IncrementPosterior(_ context.Context, armID string, success bool, priors datatypes.Priors) (*datatypes.Posterior, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.initPosteriorLocked(armID, priors)
	p := s.posteriors[armID]
	if success {
		p.Alpha++
	} else {
		p.Beta++
	}
	p.UpdatedAt = time.Now().UTC()
	cp := *p
	return &cp, nil
}

// RecordRecommendation implements Store.
func (s *MemoryStore) RecordRecommendation(_ context.Context, learnerID string, rec *datatypes.Recommendation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *rec
	s.recs = append(s.recs, storedRecommendation{learnerID: learnerID, rec: &cp})
	s.recCount++
	return nil
}

// RecordFeedback implements Store.
func (s *MemoryStore) RecordFeedback(_ context.Context, fb *datatypes.Feedback) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *fb
	s.fbs = append(s.fbs, &cp)
	s.fbCount++
	return nil
}

// DatasetCounts implements Store.
func (s *MemoryStore) DatasetCounts(_ context.Context) (int64, int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.recCount, s.fbCount, nil
}

// Close implements Store. A MemoryStore holds no external resources.
func (s *MemoryStore) Close() error { return nil }

var _ Store = (*MemoryStore)(nil)
