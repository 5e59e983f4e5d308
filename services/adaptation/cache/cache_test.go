// Copyright (C) 2025 EduAdapt (oss@eduadapt.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/eduadapt/EduAdaptPlatform/services/adaptation/datatypes"
)

func testRec() *datatypes.Recommendation {
	return &datatypes.Recommendation{
		ArmID:        "text_only_small",
		Modalities:   []string{"text"},
		ChunkSize:    1,
		Difficulty:   "adaptive",
		PolicyID:     "default_bandit_v1",
		IssuedAt:     time.Now().UTC().Truncate(time.Millisecond),
		SampleScore:  0.71,
		ExpectedMean: 0.66,
		Alpha:        2,
		Beta:         1,
		Strategy:     datatypes.StrategyExploit,
	}
}

func TestKey(t *testing.T) {
	got := Key("learner-1", "policy-v1")
	want := "rec:learner-1:policy-v1"
	if got != want {
		t.Fatalf("Key() = %q, want %q", got, want)
	}
}

func TestMemoryCacheHitAndMiss(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache()

	if _, hit, err := c.Get(ctx, "rec:learner-1:p1"); err != nil || hit {
		t.Fatalf("expected clean miss, got hit=%v err=%v", hit, err)
	}

	rec := testRec()
	if err := c.Put(ctx, "rec:learner-1:p1", rec, time.Minute); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	got, hit, err := c.Get(ctx, "rec:learner-1:p1")
	if err != nil || !hit {
		t.Fatalf("expected hit, got hit=%v err=%v", hit, err)
	}
	if got.ArmID != rec.ArmID || got.Strategy != rec.Strategy {
		t.Fatalf("cached recommendation mutated: %+v", got)
	}

	// Returned value must be a copy, not shared state.
	got.ArmID = "mutated"
	again, _, _ := c.Get(ctx, "rec:learner-1:p1")
	if again.ArmID != rec.ArmID {
		t.Fatal("cache entry was mutated through a returned pointer")
	}
}

func TestMemoryCacheExpiry(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache()

	current := time.Now()
	c.now = func() time.Time { return current }

	if err := c.Put(ctx, "rec:learner-1:p1", testRec(), 10*time.Second); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	current = current.Add(9 * time.Second)
	if _, hit, _ := c.Get(ctx, "rec:learner-1:p1"); !hit {
		t.Fatal("entry expired before its TTL")
	}

	current = current.Add(2 * time.Second)
	if _, hit, _ := c.Get(ctx, "rec:learner-1:p1"); hit {
		t.Fatal("entry survived past its TTL")
	}
}

func TestRedisCacheRoundTrip(t *testing.T) {
	srv := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	ctx := context.Background()
	c := NewRedisCacheFromClient(client)

	if _, hit, err := c.Get(ctx, "rec:learner-1:p1"); err != nil || hit {
		t.Fatalf("expected clean miss, got hit=%v err=%v", hit, err)
	}

	rec := testRec()
	if err := c.Put(ctx, "rec:learner-1:p1", rec, 10*time.Second); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	got, hit, err := c.Get(ctx, "rec:learner-1:p1")
	if err != nil || !hit {
		t.Fatalf("expected hit, got hit=%v err=%v", hit, err)
	}
	if got.ArmID != rec.ArmID || got.SampleScore != rec.SampleScore {
		t.Fatalf("round trip mismatch: %+v", got)
	}
}

func TestRedisCacheTTL(t *testing.T) {
	srv := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	ctx := context.Background()
	c := NewRedisCacheFromClient(client)

	if err := c.Put(ctx, "rec:learner-1:p1", testRec(), 10*time.Second); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	srv.FastForward(11 * time.Second)

	if _, hit, _ := c.Get(ctx, "rec:learner-1:p1"); hit {
		t.Fatal("entry survived past its TTL")
	}
}
