// Copyright (C) 2025 EduAdapt (oss@eduadapt.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package bandit

import (
	"context"
	"log/slog"
	"testing"

	"github.com/eduadapt/EduAdaptPlatform/services/adaptation/cache"
	"github.com/eduadapt/EduAdaptPlatform/services/adaptation/datatypes"
	"github.com/eduadapt/EduAdaptPlatform/services/adaptation/storage"
)

func newTestEngine(t *testing.T, seed int64) (*Engine, storage.Store) {
	t.Helper()
	store := storage.NewMemoryStore()
	engine := NewEngine(store, cache.NewMemoryCache(), slog.Default(), Config{Seed: seed})
	return engine, store
}

func TestChooseArmNoArms(t *testing.T) {
	engine, _ := newTestEngine(t, 1)
	policy := &datatypes.Policy{ID: "empty", Priors: datatypes.DefaultPriors}

	_, err := engine.ChooseArm(context.Background(), policy)
	if err != ErrNoArmsAvailable {
		t.Fatalf("want ErrNoArmsAvailable, got %v", err)
	}
}

func TestRecommendNextInstallsDefaultPolicy(t *testing.T) {
	engine, store := newTestEngine(t, 1)
	ctx := context.Background()

	rec, err := engine.RecommendNext(ctx, "learner-1")
	if err != nil {
		t.Fatalf("RecommendNext failed: %v", err)
	}
	if rec.PolicyID != DefaultPolicyID {
		t.Fatalf("expected default policy, got %q", rec.PolicyID)
	}
	if rec.ArmID != "text_only_small" && rec.ArmID != "rich_medium" {
		t.Fatalf("unexpected arm %q", rec.ArmID)
	}
	if rec.Cached {
		t.Fatal("first recommendation must not be cached")
	}

	policy, err := store.ActivePolicy(ctx)
	if err != nil {
		t.Fatalf("default policy was not installed: %v", err)
	}
	if len(policy.Arms) != 2 {
		t.Fatalf("default policy has %d arms, want 2", len(policy.Arms))
	}

	// Posteriors for both arms are seeded at Beta(1,1).
	for _, arm := range policy.Arms {
		p, err := store.Posterior(ctx, arm.ID)
		if err != nil {
			t.Fatalf("posterior missing for %s: %v", arm.ID, err)
		}
		if p.Alpha != 1 || p.Beta != 1 {
			t.Fatalf("arm %s seeded at Beta(%d,%d), want Beta(1,1)", arm.ID, p.Alpha, p.Beta)
		}
	}
}

func TestRecommendNextDebounce(t *testing.T) {
	engine, _ := newTestEngine(t, 42)
	ctx := context.Background()

	first, err := engine.RecommendNext(ctx, "learner-1")
	if err != nil {
		t.Fatalf("RecommendNext failed: %v", err)
	}
	second, err := engine.RecommendNext(ctx, "learner-1")
	if err != nil {
		t.Fatalf("RecommendNext failed: %v", err)
	}

	if !second.Cached {
		t.Fatal("repeat request inside TTL must be served from cache")
	}
	if second.ArmID != first.ArmID || second.Strategy != first.Strategy {
		t.Fatalf("cached recommendation differs: first=%+v second=%+v", first, second)
	}
	if !second.IssuedAt.Equal(first.IssuedAt) {
		t.Fatal("cached recommendation must keep the original issue time")
	}

	// A different learner gets a fresh draw.
	other, err := engine.RecommendNext(ctx, "learner-2")
	if err != nil {
		t.Fatalf("RecommendNext failed: %v", err)
	}
	if other.Cached {
		t.Fatal("different learner must not share the debounce entry")
	}
}

func TestThompsonFavorsStrongerArm(t *testing.T) {
	engine, store := newTestEngine(t, 7)
	ctx := context.Background()

	policy := &datatypes.Policy{
		ID:     "ab-test",
		Priors: datatypes.DefaultPriors,
		Arms: []datatypes.Arm{
			{ID: "arm-a", ChunkSize: 1},
			{ID: "arm-b", ChunkSize: 2},
		},
	}
	if _, err := store.InitPosterior(ctx, "arm-a", datatypes.Priors{Alpha: 5, Beta: 1}); err != nil {
		t.Fatal(err)
	}
	if _, err := store.InitPosterior(ctx, "arm-b", datatypes.Priors{Alpha: 1, Beta: 1}); err != nil {
		t.Fatal(err)
	}

	wins := 0
	const trials = 1000
	for i := 0; i < trials; i++ {
		rec, err := engine.ChooseArm(ctx, policy)
		if err != nil {
			t.Fatalf("ChooseArm failed: %v", err)
		}
		if rec.ArmID == "arm-a" {
			wins++
		}
	}
	// Beta(5,1) vs Beta(1,1): arm A should win well over half the time.
	if wins <= trials*60/100 {
		t.Fatalf("arm-a won only %d/%d draws", wins, trials)
	}
}

func TestChooseArmTieBreakUniform(t *testing.T) {
	engine, store := newTestEngine(t, 13)
	ctx := context.Background()

	policy := &datatypes.Policy{
		ID:     "tie-test",
		Priors: datatypes.DefaultPriors,
		Arms: []datatypes.Arm{
			{ID: "arm-a", ChunkSize: 1},
			{ID: "arm-b", ChunkSize: 2},
		},
	}
	if _, err := store.InitPosterior(ctx, "arm-a", datatypes.DefaultPriors); err != nil {
		t.Fatal(err)
	}
	if _, err := store.InitPosterior(ctx, "arm-b", datatypes.DefaultPriors); err != nil {
		t.Fatal(err)
	}

	wins := 0
	const trials = 4000
	for i := 0; i < trials; i++ {
		rec, err := engine.ChooseArm(ctx, policy)
		if err != nil {
			t.Fatalf("ChooseArm failed: %v", err)
		}
		if rec.ArmID == "arm-a" {
			wins++
		}
	}
	// Identical Beta(1,1) posteriors: each arm should win about half the
	// draws. The band is six standard deviations wide at n=4000.
	share := float64(wins) / trials
	if share < 0.45 || share > 0.55 {
		t.Fatalf("arm-a share = %.3f over %d draws, want ~0.5", share, trials)
	}
}

func TestStrategyLabeling(t *testing.T) {
	engine, store := newTestEngine(t, 3)
	ctx := context.Background()

	policy := &datatypes.Policy{
		ID:     "label-test",
		Priors: datatypes.DefaultPriors,
		Arms: []datatypes.Arm{
			{ID: "strong"},
			{ID: "weak"},
		},
	}
	if _, err := store.InitPosterior(ctx, "strong", datatypes.Priors{Alpha: 50, Beta: 1}); err != nil {
		t.Fatal(err)
	}
	if _, err := store.InitPosterior(ctx, "weak", datatypes.Priors{Alpha: 1, Beta: 50}); err != nil {
		t.Fatal(err)
	}

	for i := 0; i < 200; i++ {
		rec, err := engine.ChooseArm(ctx, policy)
		if err != nil {
			t.Fatal(err)
		}
		switch rec.ArmID {
		case "strong":
			if rec.Strategy != datatypes.StrategyExploit {
				t.Fatalf("highest-mean arm labeled %q", rec.Strategy)
			}
		case "weak":
			if rec.Strategy != datatypes.StrategyExplore {
				t.Fatalf("lower-mean arm labeled %q", rec.Strategy)
			}
		}
	}
}

func TestApplyFeedback(t *testing.T) {
	engine, store := newTestEngine(t, 1)
	ctx := context.Background()

	// Success at exactly the threshold.
	p, err := engine.ApplyFeedback(ctx, "learner-1", "text_only_small", DefaultSuccessThreshold)
	if err != nil {
		t.Fatalf("ApplyFeedback failed: %v", err)
	}
	if p.Alpha != 2 || p.Beta != 1 {
		t.Fatalf("got Beta(%d,%d), want Beta(2,1)", p.Alpha, p.Beta)
	}

	// Failure below the threshold.
	p, err = engine.ApplyFeedback(ctx, "learner-1", "text_only_small", 0.2)
	if err != nil {
		t.Fatalf("ApplyFeedback failed: %v", err)
	}
	if p.Alpha != 2 || p.Beta != 2 {
		t.Fatalf("got Beta(%d,%d), want Beta(2,2)", p.Alpha, p.Beta)
	}

	recs, fbs, err := store.DatasetCounts(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if recs != 0 || fbs != 2 {
		t.Fatalf("dataset counts recs=%d fbs=%d, want 0 and 2", recs, fbs)
	}
}

func TestImportPolicyPreservesEvidence(t *testing.T) {
	engine, store := newTestEngine(t, 1)
	ctx := context.Background()

	if _, err := engine.RecommendNext(ctx, "learner-1"); err != nil {
		t.Fatal(err)
	}
	if _, err := engine.ApplyFeedback(ctx, "learner-1", "text_only_small", 0.9); err != nil {
		t.Fatal(err)
	}

	next := &datatypes.Policy{
		ID: "richer-v2",
		Arms: []datatypes.Arm{
			{ID: "text_only_small", Modalities: []string{"text"}, ChunkSize: 1},
			{ID: "video_large", Modalities: []string{"video"}, ChunkSize: 3},
		},
	}
	if err := engine.ImportPolicy(ctx, next); err != nil {
		t.Fatalf("ImportPolicy failed: %v", err)
	}

	p, err := store.Posterior(ctx, "text_only_small")
	if err != nil {
		t.Fatal(err)
	}
	if p.Alpha != 2 {
		t.Fatalf("overlapping arm lost evidence: Beta(%d,%d)", p.Alpha, p.Beta)
	}

	p, err = store.Posterior(ctx, "video_large")
	if err != nil {
		t.Fatalf("new arm not seeded: %v", err)
	}
	if p.Alpha != 1 || p.Beta != 1 {
		t.Fatalf("new arm seeded at Beta(%d,%d), want Beta(1,1)", p.Alpha, p.Beta)
	}
}

func TestImportPolicyValidation(t *testing.T) {
	engine, _ := newTestEngine(t, 1)
	ctx := context.Background()

	if err := engine.ImportPolicy(ctx, &datatypes.Policy{Arms: []datatypes.Arm{{ID: "a"}}}); err == nil {
		t.Fatal("missing policy id accepted")
	}
	if err := engine.ImportPolicy(ctx, &datatypes.Policy{ID: "p"}); err != ErrNoArmsAvailable {
		t.Fatalf("want ErrNoArmsAvailable, got %v", err)
	}
}

func TestSnapshot(t *testing.T) {
	engine, _ := newTestEngine(t, 1)
	ctx := context.Background()

	snap, err := engine.Snapshot(ctx)
	if err != nil {
		t.Fatalf("Snapshot failed: %v", err)
	}
	if snap.Policy.ID != DefaultPolicyID {
		t.Fatalf("unexpected policy %q", snap.Policy.ID)
	}
	if len(snap.Posteriors) != len(snap.Policy.Arms) {
		t.Fatalf("snapshot has %d posteriors for %d arms", len(snap.Posteriors), len(snap.Policy.Arms))
	}
}

func TestEngineDisabledCache(t *testing.T) {
	store := storage.NewMemoryStore()
	engine := NewEngine(store, nil, slog.Default(), Config{Seed: 9})
	ctx := context.Background()

	first, err := engine.RecommendNext(ctx, "learner-1")
	if err != nil {
		t.Fatal(err)
	}
	second, err := engine.RecommendNext(ctx, "learner-1")
	if err != nil {
		t.Fatal(err)
	}
	if first.Cached || second.Cached {
		t.Fatal("nil cache must never produce cached recommendations")
	}
}
