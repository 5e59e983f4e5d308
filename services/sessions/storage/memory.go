// Copyright (C) 2025 EduAdapt (oss@eduadapt.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package storage

import (
	"context"
	"sync"

	"github.com/eduadapt/EduAdaptPlatform/services/sessions/datatypes"
)

// MemoryStore is the in-process Store for single-node deployments and
// tests.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]datatypes.Session
	events   map[string][]datatypes.SessionEvent
}

// NewMemoryStore returns an empty in-memory session store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sessions: make(map[string]datatypes.Session),
		events:   make(map[string][]datatypes.SessionEvent),
	}
}

// CreateSession implements Store.
func (s *MemoryStore) CreateSession(_ context.Context, sess *datatypes.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[sess.SessionID] = *sess
	return nil
}

// Session implements Store.
func (s *MemoryStore) Session(_ context.Context, sessionID string) (*datatypes.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[sessionID]
	if !ok {
		return nil, ErrSessionNotFound
	}
	cp := sess
	return &cp, nil
}

// UpdateStatus implements Store.
func (s *MemoryStore) UpdateStatus(_ context.Context, sessionID, status string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[sessionID]
	if !ok {
		return ErrSessionNotFound
	}
	sess.Status = status
	s.sessions[sessionID] = sess
	return nil
}

// RecordEvent implements Store.
func (s *MemoryStore) RecordEvent(_ context.Context, ev *datatypes.SessionEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[ev.SessionID]; !ok {
		return ErrSessionNotFound
	}
	s.events[ev.SessionID] = append(s.events[ev.SessionID], *ev)
	return nil
}

// Events returns a copy of the recorded events for a session. Test and
// diagnostics helper.
func (s *MemoryStore) Events(sessionID string) []datatypes.SessionEvent {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]datatypes.SessionEvent(nil), s.events[sessionID]...)
}

// Close implements Store.
func (s *MemoryStore) Close() error { return nil }

var _ Store = (*MemoryStore)(nil)
