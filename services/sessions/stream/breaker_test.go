// Copyright (C) 2025 EduAdapt (oss@eduadapt.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package stream

import (
	"testing"
	"time"
)

func newTestBreaker(cfg BreakerConfig) (*CircuitBreaker, *time.Time) {
	cb := NewCircuitBreaker(cfg)
	current := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	cb.now = func() time.Time { return current }
	return cb, &current
}

func TestBreakerOpensAtThreshold(t *testing.T) {
	cb, _ := newTestBreaker(BreakerConfig{FailureThreshold: 3, ResetInterval: 30 * time.Second})

	cb.RecordFailure()
	cb.RecordFailure()
	if got := cb.State(); got != BreakerClosed {
		t.Fatalf("state after 2 failures = %v, want closed", got)
	}

	cb.RecordFailure()
	if got := cb.State(); got != BreakerOpen {
		t.Fatalf("state after 3 failures = %v, want open", got)
	}
	if got := cb.Failures(); got != 3 {
		t.Fatalf("failures = %d, want 3", got)
	}
}

func TestBreakerSuccessResetsCounter(t *testing.T) {
	cb, _ := newTestBreaker(BreakerConfig{FailureThreshold: 3, ResetInterval: 30 * time.Second})

	cb.RecordFailure()
	cb.RecordFailure()
	cb.RecordSuccess()
	if got := cb.Failures(); got != 0 {
		t.Fatalf("failures after success = %d, want 0", got)
	}

	// The counter restarted, so it takes a full run of failures to open.
	cb.RecordFailure()
	cb.RecordFailure()
	if got := cb.State(); got != BreakerClosed {
		t.Fatalf("state = %v, want closed", got)
	}
}

func TestBreakerHalfOpenRecovery(t *testing.T) {
	cb, now := newTestBreaker(BreakerConfig{FailureThreshold: 2, ResetInterval: time.Second})

	cb.RecordFailure()
	cb.RecordFailure()
	if got := cb.State(); got != BreakerOpen {
		t.Fatalf("state = %v, want open", got)
	}
	if cb.Proceed() != BreakerOpen {
		t.Fatal("Proceed while open should report open")
	}

	// Once the reset interval elapses the next observation admits a probe.
	*now = now.Add(1100 * time.Millisecond)
	if got := cb.Proceed(); got != BreakerHalfOpen {
		t.Fatalf("state after reset interval = %v, want half_open", got)
	}

	cb.RecordSuccess()
	if got := cb.State(); got != BreakerClosed {
		t.Fatalf("state after probe success = %v, want closed", got)
	}
	if got := cb.Failures(); got != 0 {
		t.Fatalf("failures after recovery = %d, want 0", got)
	}
}

func TestBreakerHalfOpenFailureReopens(t *testing.T) {
	cb, now := newTestBreaker(BreakerConfig{FailureThreshold: 2, ResetInterval: time.Second})

	cb.RecordFailure()
	cb.RecordFailure()
	*now = now.Add(1100 * time.Millisecond)
	if got := cb.Proceed(); got != BreakerHalfOpen {
		t.Fatalf("state = %v, want half_open", got)
	}

	// A failed probe reopens immediately; the counter keeps its history.
	cb.RecordFailure()
	if got := cb.State(); got != BreakerOpen {
		t.Fatalf("state after probe failure = %v, want open", got)
	}
	if got := cb.Failures(); got != 3 {
		t.Fatalf("failures after probe failure = %d, want 3", got)
	}

	// And the full reset interval applies again.
	*now = now.Add(900 * time.Millisecond)
	if got := cb.State(); got != BreakerOpen {
		t.Fatalf("state before second interval elapses = %v, want open", got)
	}
	*now = now.Add(200 * time.Millisecond)
	if got := cb.State(); got != BreakerHalfOpen {
		t.Fatalf("state after second interval = %v, want half_open", got)
	}
}

func TestBreakerStateChangeHook(t *testing.T) {
	cb, now := newTestBreaker(BreakerConfig{FailureThreshold: 1, ResetInterval: time.Second})

	var transitions []BreakerState
	cb.OnStateChange = func(s BreakerState) { transitions = append(transitions, s) }

	cb.RecordFailure()
	*now = now.Add(1100 * time.Millisecond)
	cb.Proceed()
	cb.RecordSuccess()

	want := []BreakerState{BreakerOpen, BreakerHalfOpen, BreakerClosed}
	if len(transitions) != len(want) {
		t.Fatalf("transitions = %v, want %v", transitions, want)
	}
	for i := range want {
		if transitions[i] != want[i] {
			t.Fatalf("transition %d = %v, want %v", i, transitions[i], want[i])
		}
	}
}

func TestBreakerStateStrings(t *testing.T) {
	cases := map[BreakerState]string{
		BreakerClosed:   "closed",
		BreakerOpen:     "open",
		BreakerHalfOpen: "half_open",
	}
	for state, want := range cases {
		if got := state.String(); got != want {
			t.Errorf("String(%d) = %q, want %q", state, got, want)
		}
	}
}

func TestBackoffDuration(t *testing.T) {
	b := DefaultBackoff()
	cases := []struct {
		failures int
		want     time.Duration
	}{
		{0, 0},
		{-1, 0},
		{1, 500 * time.Millisecond},
		{2, time.Second},
		{3, 2 * time.Second},
		{4, 4 * time.Second},
		{5, 5 * time.Second},
		{20, 5 * time.Second},
	}
	for _, tc := range cases {
		if got := b.Duration(tc.failures); got != tc.want {
			t.Errorf("Duration(%d) = %v, want %v", tc.failures, got, tc.want)
		}
	}
}
