// Copyright (C) 2025 EduAdapt (oss@eduadapt.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package stream

import (
	"sync"
	"time"
)

// =============================================================================
// Circuit Breaker
// =============================================================================

// BreakerState is one of the circuit breaker's three states.
type BreakerState int

const (
	// BreakerClosed is normal operation; calls flow through.
	BreakerClosed BreakerState = iota

	// BreakerOpen short-circuits all calls until the reset interval
	// elapses.
	BreakerOpen

	// BreakerHalfOpen allows a single trial call to probe recovery.
	BreakerHalfOpen
)

// String returns the metric label for the state.
func (s BreakerState) String() string {
	switch s {
	case BreakerOpen:
		return "open"
	case BreakerHalfOpen:
		return "half_open"
	default:
		return "closed"
	}
}

// BreakerConfig holds the circuit breaker tunables.
type BreakerConfig struct {
	// FailureThreshold is the consecutive-failure count that opens the
	// breaker. Default: 3
	FailureThreshold int

	// ResetInterval is how long the breaker stays open before allowing
	// a half-open trial call. Default: 30s
	ResetInterval time.Duration
}

func (c BreakerConfig) withDefaults() BreakerConfig {
	if c.FailureThreshold <= 0 {
		c.FailureThreshold = 3
	}
	if c.ResetInterval <= 0 {
		c.ResetInterval = 30 * time.Second
	}
	return c
}

// CircuitBreaker tracks consecutive failures of calls to one upstream
// target and short-circuits calls while the target is considered down.
//
// One breaker instance is shared process-wide per upstream target, not
// per session. Every session's streaming loop reads and mutates the
// same breaker, giving it a realistic failure sample size: an upstream
// outage trips it after a handful of failed calls regardless of which
// session observed them. All mutation happens under a single mutex.
//
// The Open to HalfOpen transition is lazy: it is detected by the next
// State or Proceed call after the reset interval elapses, there is no
// independent timer.
type CircuitBreaker struct {
	cfg BreakerConfig

	// OnStateChange, when set, is invoked with the new state after each
	// transition. Called under the breaker mutex; keep it cheap.
	OnStateChange func(BreakerState)

	mu        sync.Mutex
	failures  int
	openUntil time.Time
	halfOpen  bool
	now       func() time.Time
}

// NewCircuitBreaker builds a breaker with the given configuration.
func NewCircuitBreaker(cfg BreakerConfig) *CircuitBreaker {
	return &CircuitBreaker{
		cfg: cfg.withDefaults(),
		now: time.Now,
	}
}

// Proceed reports the state the caller must act on for this cycle,
// applying the lazy Open to HalfOpen transition first.
//
//   - BreakerClosed, BreakerHalfOpen: make the upstream call and report
//     the outcome via RecordSuccess or RecordFailure.
//   - BreakerOpen: skip the call and emit the circuit-open fallback.
func (b *CircuitBreaker) Proceed() BreakerState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.stateLocked()
}

// State reports the current state without side effects beyond the lazy
// open-to-half-open check.
func (b *CircuitBreaker) State() BreakerState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.stateLocked()
}

// Failures reports the current consecutive-failure count. The backoff
// policy reads this to size its wait.
func (b *CircuitBreaker) Failures() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.failures
}

// RecordSuccess reports a successful upstream call. A half-open trial
// success closes the breaker; any success resets the failure counter.
func (b *CircuitBreaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()

	wasDegraded := b.halfOpen || b.failures > 0
	b.failures = 0
	b.halfOpen = false
	b.openUntil = time.Time{}
	if wasDegraded {
		b.notifyLocked(BreakerClosed)
	}
}

// RecordFailure reports a failed upstream call. A half-open trial
// failure reopens the breaker without resetting the counter; reaching
// the failure threshold while closed opens it.
func (b *CircuitBreaker) RecordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.halfOpen {
		// Trial call failed. Reopen for another reset interval and keep
		// the accumulated failure count.
		b.halfOpen = false
		b.openUntil = b.now().Add(b.cfg.ResetInterval)
		b.failures++
		b.notifyLocked(BreakerOpen)
		return
	}

	b.failures++
	if b.failures >= b.cfg.FailureThreshold && b.openUntil.IsZero() {
		b.openUntil = b.now().Add(b.cfg.ResetInterval)
		b.notifyLocked(BreakerOpen)
	}
}

// stateLocked computes the effective state, performing the lazy
// Open to HalfOpen transition. Caller holds b.mu.
func (b *CircuitBreaker) stateLocked() BreakerState {
	if b.halfOpen {
		return BreakerHalfOpen
	}
	if b.openUntil.IsZero() {
		return BreakerClosed
	}
	if b.now().Before(b.openUntil) {
		return BreakerOpen
	}

	// Reset interval elapsed; allow a single trial call.
	b.halfOpen = true
	b.openUntil = time.Time{}
	b.notifyLocked(BreakerHalfOpen)
	return BreakerHalfOpen
}

func (b *CircuitBreaker) notifyLocked(state BreakerState) {
	if b.OnStateChange != nil {
		b.OnStateChange(state)
	}
}
