// Copyright (C) 2025 EduAdapt (oss@eduadapt.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package storage

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eduadapt/EduAdaptPlatform/services/sessions/datatypes"
)

func openStores(t *testing.T) map[string]Store {
	t.Helper()

	badgerStore, err := OpenBadger(BadgerConfig{InMemory: true})
	require.NoError(t, err)
	t.Cleanup(func() { _ = badgerStore.Close() })

	return map[string]Store{
		"memory": NewMemoryStore(),
		"badger": badgerStore,
	}
}

func TestSessionLifecycle(t *testing.T) {
	for name, store := range openStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			sess := &datatypes.Session{
				SessionID: "sess-1",
				LearnerID: "learner-1",
				UnitID:    "unit-algebra-2",
				Status:    datatypes.SessionActive,
				CreatedAt: time.Now().UTC(),
			}
			require.NoError(t, store.CreateSession(ctx, sess))

			got, err := store.Session(ctx, "sess-1")
			require.NoError(t, err)
			assert.Equal(t, "learner-1", got.LearnerID)
			assert.Equal(t, datatypes.SessionActive, got.Status)

			require.NoError(t, store.UpdateStatus(ctx, "sess-1", datatypes.SessionEnded))
			got, err = store.Session(ctx, "sess-1")
			require.NoError(t, err)
			assert.Equal(t, datatypes.SessionEnded, got.Status)
		})
	}
}

func TestSessionNotFound(t *testing.T) {
	for name, store := range openStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			_, err := store.Session(ctx, "missing")
			assert.ErrorIs(t, err, ErrSessionNotFound)

			err = store.UpdateStatus(ctx, "missing", datatypes.SessionEnded)
			assert.ErrorIs(t, err, ErrSessionNotFound)

			err = store.RecordEvent(ctx, &datatypes.SessionEvent{
				SessionID: "missing",
				Type:      "answer_submitted",
				Timestamp: time.Now().UTC(),
			})
			assert.ErrorIs(t, err, ErrSessionNotFound)
		})
	}
}

func TestRecordEvent(t *testing.T) {
	for name, store := range openStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			require.NoError(t, store.CreateSession(ctx, &datatypes.Session{
				SessionID: "sess-1",
				LearnerID: "learner-1",
				UnitID:    "unit-1",
				Status:    datatypes.SessionActive,
				CreatedAt: time.Now().UTC(),
			}))

			ev := &datatypes.SessionEvent{
				SessionID: "sess-1",
				Type:      "answer_submitted",
				Timestamp: time.Now().UTC(),
				Payload:   map[string]any{"correct": true},
			}
			require.NoError(t, store.RecordEvent(ctx, ev))
		})
	}
}
