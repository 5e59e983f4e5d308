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
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"

	"github.com/eduadapt/EduAdaptPlatform/services/adaptation/datatypes"
)

// =============================================================================
// Configuration
// =============================================================================

// BadgerConfig holds configuration for the embedded BadgerDB store.
type BadgerConfig struct {
	// Path is the directory for BadgerDB files. Required unless InMemory.
	Path string

	// InMemory enables in-memory mode (no disk persistence). Useful for
	// tests that want the real badger code paths.
	InMemory bool

	// SyncWrites enables synchronous writes for durability. Default true
	// in DefaultBadgerConfig, false for tests.
	SyncWrites bool

	// GCInterval is how often to run value log garbage collection.
	// 0 disables GC.
	GCInterval time.Duration

	// Logger receives BadgerDB's internal logging. Nil disables it.
	Logger *slog.Logger
}

// DefaultBadgerConfig returns production defaults for the given directory.
func DefaultBadgerConfig(path string) BadgerConfig {
	return BadgerConfig{
		Path:       path,
		SyncWrites: true,
		GCInterval: 5 * time.Minute,
	}
}

// badgerLogger adapts slog.Logger to BadgerDB's Logger interface.
type badgerLogger struct {
	logger *slog.Logger
}

func (l *badgerLogger) Errorf(format string, args ...interface{}) {
	l.logger.Error(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Warningf(format string, args ...interface{}) {
	l.logger.Warn(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Infof(format string, args ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Debugf(format string, args ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}

// =============================================================================
// Key Layout
// =============================================================================

const (
	keyActivePolicy  = "policy:active"
	keyPolicyArchive = "policy:archive:" // + created-at nanos
	keyPosterior     = "posterior:"      // + arm id
	keyRecommend     = "rec:"            // + issued-at nanos + ":" + uuid
	keyFeedback      = "fb:"             // + created-at nanos + ":" + uuid
	keyCountRecs     = "count:recommendations"
	keyCountFeedback = "count:feedback"
)

// =============================================================================
// Store
// =============================================================================

// BadgerStore is the persistent Store implementation backed by embedded
// BadgerDB (~100µs access, no external database dependency).
//
// Badger transactions under SSI can conflict on concurrent writes to the
// same key; rather than retrying conflicts, the store serializes
// read-modify-write operations (posterior increments, policy swaps,
// counter bumps) behind a mutex. Each such operation is still one badger
// transaction, so readers always observe a consistent document.
type BadgerStore struct {
	db     *badger.DB
	mu     sync.Mutex
	gcStop chan struct{}
	gcDone chan struct{}
}

// OpenBadger opens (or creates) the store described by cfg.
func OpenBadger(cfg BadgerConfig) (*BadgerStore, error) {
	if !cfg.InMemory && cfg.Path == "" {
		return nil, errors.New("badger path required for persistent store")
	}

	opts := badger.DefaultOptions(cfg.Path).
		WithInMemory(cfg.InMemory).
		WithSyncWrites(cfg.SyncWrites).
		WithNumVersionsToKeep(1)
	if cfg.Logger != nil {
		opts = opts.WithLogger(&badgerLogger{logger: cfg.Logger})
	} else {
		opts = opts.WithLogger(nil)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger at %q: %w", cfg.Path, err)
	}

	s := &BadgerStore{db: db}
	if cfg.GCInterval > 0 && !cfg.InMemory {
		s.gcStop = make(chan struct{})
		s.gcDone = make(chan struct{})
		go s.runGC(cfg.GCInterval)
	}
	return s, nil
}

// runGC periodically reclaims value log space until Close.
func (s *BadgerStore) runGC(interval time.Duration) {
	defer close(s.gcDone)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-s.gcStop:
			return
		case <-ticker.C:
			// ErrNoRewrite just means there was nothing to collect.
			if err := s.db.RunValueLogGC(0.5); err != nil && !errors.Is(err, badger.ErrNoRewrite) {
				slog.Warn("badger value log GC failed", "error", err)
			}
		}
	}
}

// ActivePolicy implements Store.
func (s *BadgerStore) ActivePolicy(_ context.Context) (*datatypes.Policy, error) {
	var policy datatypes.Policy
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(keyActivePolicy))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &policy)
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, ErrNoActivePolicy
	}
	if err != nil {
		return nil, fmt.Errorf("load active policy: %w", err)
	}
	return &policy, nil
}

// ImportPolicy implements Store.
func (s *BadgerStore) ImportPolicy(_ context.Context, p *datatypes.Policy) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *p
	cp.Active = true
	data, err := json.Marshal(&cp)
	if err != nil {
		return fmt.Errorf("marshal policy: %w", err)
	}

	return s.db.Update(func(txn *badger.Txn) error {
		// Archive the current policy before replacing it.
		if item, err := txn.Get([]byte(keyActivePolicy)); err == nil {
			var old datatypes.Policy
			if err := item.Value(func(val []byte) error {
				return json.Unmarshal(val, &old)
			}); err == nil {
				old.Active = false
				if oldData, err := json.Marshal(&old); err == nil {
					archiveKey := fmt.Sprintf("%s%d", keyPolicyArchive, old.CreatedAt.UnixNano())
					if err := txn.Set([]byte(archiveKey), oldData); err != nil {
						return err
					}
				}
			}
		} else if !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}
		return txn.Set([]byte(keyActivePolicy), data)
	})
}

// Posterior implements Store.
func (s *BadgerStore) Posterior(_ context.Context, armID string) (*datatypes.Posterior, error) {
	var posterior datatypes.Posterior
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(keyPosterior + armID))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &posterior)
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load posterior %s: %w", armID, err)
	}
	return &posterior, nil
}

// InitPosterior implements Store.
func (s *BadgerStore) InitPosterior(ctx context.Context, armID string, priors datatypes.Priors) (*datatypes.Posterior, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mutatePosterior(armID, priors, func(*datatypes.Posterior) {})
}

// IncrementPosterior implements Store.
func (s *BadgerStore) IncrementPosterior(_ context.Context, armID string, success bool, priors datatypes.Priors) (*datatypes.Posterior, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mutatePosterior(armID, priors, func(p *datatypes.Posterior) {
		if success {
			p.Alpha++
		} else {
			p.Beta++
		}
	})
}

// mutatePosterior loads-or-seeds the posterior, applies mutate, and writes
// it back in a single transaction. Caller holds s.mu.
func (s *BadgerStore) mutatePosterior(armID string, priors datatypes.Priors, mutate func(*datatypes.Posterior)) (*datatypes.Posterior, error) {
	key := []byte(keyPosterior + armID)
	var posterior datatypes.Posterior

	err := s.db.Update(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		switch {
		case errors.Is(err, badger.ErrKeyNotFound):
			priors = priors.Normalize()
			posterior = datatypes.Posterior{
				ArmID: armID,
				Alpha: priors.Alpha,
				Beta:  priors.Beta,
			}
		case err != nil:
			return err
		default:
			if err := item.Value(func(val []byte) error {
				return json.Unmarshal(val, &posterior)
			}); err != nil {
				return err
			}
		}

		mutate(&posterior)
		posterior.UpdatedAt = time.Now().UTC()

		data, err := json.Marshal(&posterior)
		if err != nil {
			return err
		}
		return txn.Set(key, data)
	})
	if err != nil {
		return nil, fmt.Errorf("mutate posterior %s: %w", armID, err)
	}
	return &posterior, nil
}

// RecordRecommendation implements Store.
func (s *BadgerStore) RecordRecommendation(_ context.Context, learnerID string, rec *datatypes.Recommendation) error {
	doc := struct {
		LearnerID string `json:"learner_id"`
		datatypes.Recommendation
	}{LearnerID: learnerID, Recommendation: *rec}

	data, err := json.Marshal(&doc)
	if err != nil {
		return fmt.Errorf("marshal recommendation: %w", err)
	}
	key := fmt.Sprintf("%s%d:%s", keyRecommend, rec.IssuedAt.UnixNano(), uuid.New().String())

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set([]byte(key), data); err != nil {
			return err
		}
		return incrementCounter(txn, keyCountRecs)
	})
}

// RecordFeedback implements Store.
func (s *BadgerStore) RecordFeedback(_ context.Context, fb *datatypes.Feedback) error {
	data, err := json.Marshal(fb)
	if err != nil {
		return fmt.Errorf("marshal feedback: %w", err)
	}
	key := fmt.Sprintf("%s%d:%s", keyFeedback, fb.CreatedAt.UnixNano(), uuid.New().String())

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set([]byte(key), data); err != nil {
			return err
		}
		return incrementCounter(txn, keyCountFeedback)
	})
}

// DatasetCounts implements Store.
func (s *BadgerStore) DatasetCounts(_ context.Context) (int64, int64, error) {
	var recs, fbs int64
	err := s.db.View(func(txn *badger.Txn) error {
		var err error
		if recs, err = readCounter(txn, keyCountRecs); err != nil {
			return err
		}
		fbs, err = readCounter(txn, keyCountFeedback)
		return err
	})
	if err != nil {
		return 0, 0, fmt.Errorf("read dataset counts: %w", err)
	}
	return recs, fbs, nil
}

// Close stops GC and closes the database.
func (s *BadgerStore) Close() error {
	if s.gcStop != nil {
		close(s.gcStop)
		<-s.gcDone
	}
	return s.db.Close()
}

// =============================================================================
// Counter Helpers
// =============================================================================

func incrementCounter(txn *badger.Txn, key string) error {
	n, err := readCounter(txn, key)
	if err != nil {
		return err
	}
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, uint64(n+1))
	return txn.Set([]byte(key), buf)
}

func readCounter(txn *badger.Txn, key string) (int64, error) {
	item, err := txn.Get([]byte(key))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	var n int64
	err = item.Value(func(val []byte) error {
		if len(val) != 8 {
			return fmt.Errorf("counter %s: unexpected value length %d", key, len(val))
		}
		n = int64(binary.BigEndian.Uint64(val))
		return nil
	})
	return n, err
}

var _ Store = (*BadgerStore)(nil)
