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
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/eduadapt/EduAdaptPlatform/services/sessions/observability"
	"github.com/eduadapt/EduAdaptPlatform/services/sessions/storage"
)

// sleepSlice subdivides every wait so cancellation and heartbeat checks
// run frequently. All suspension points in the loop are multiples of
// this slice.
const sleepSlice = 50 * time.Millisecond

// =============================================================================
// Configuration
// =============================================================================

// Config holds the stream manager tunables.
type Config struct {
	// Interval is the pause between recommendation cycles. Default: 200ms
	Interval time.Duration

	// HeartbeatInterval is the cadence of heartbeat events interleaved
	// into every wait. Default: 15s
	HeartbeatInterval time.Duration

	// UpstreamTimeout bounds each recommendation call. Default: 5s
	UpstreamTimeout time.Duration

	// MaxEventsPerSecond caps recommendation emission using a sliding
	// one-second window. When the cap is reached the cycle stalls until
	// the window drains; events are never dropped or buffered
	// unboundedly. 0 disables the cap.
	MaxEventsPerSecond int

	// Backoff sizes the wait after an isolated upstream failure.
	Backoff Backoff
}

func (c Config) withDefaults() Config {
	if c.Interval <= 0 {
		c.Interval = 200 * time.Millisecond
	}
	if c.HeartbeatInterval <= 0 {
		c.HeartbeatInterval = 15 * time.Second
	}
	if c.UpstreamTimeout <= 0 {
		c.UpstreamTimeout = 5 * time.Second
	}
	if c.Backoff == (Backoff{}) {
		c.Backoff = DefaultBackoff()
	}
	return c
}

// =============================================================================
// Manager
// =============================================================================

// Manager produces live recommendation streams for active sessions.
//
// One Manager serves all sessions; each Stream call runs its own
// cooperative loop in a goroutine. The circuit breaker is shared across
// all of them, so breaker state reflects the upstream's health globally
// rather than per connection.
type Manager struct {
	sessions storage.Store
	rec      Recommender
	breaker  *CircuitBreaker
	cfg      Config
	logger   *slog.Logger
}

// NewManager builds a stream manager over the given session store,
// recommender, and shared circuit breaker.
func NewManager(sessions storage.Store, rec Recommender, breaker *CircuitBreaker, cfg Config, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		sessions: sessions,
		rec:      rec,
		breaker:  breaker,
		cfg:      cfg.withDefaults(),
		logger:   logger,
	}
}

// Breaker exposes the shared circuit breaker for wiring state hooks.
func (m *Manager) Breaker() *CircuitBreaker { return m.breaker }

// Stream opens a live event stream for a session.
//
// # Description
//
// Resolves the session up front (storage.ErrSessionNotFound is terminal
// and returned synchronously), then starts the per-session loop. The
// returned channel carries exactly one recommendation event per cycle
// with heartbeats interleaved, and is closed when ctx is cancelled.
//
// # Outputs
//
//   - <-chan Event: The live event sequence. Closed on cancellation.
//   - error: storage.ErrSessionNotFound if the session id is unknown.
func (m *Manager) Stream(ctx context.Context, sessionID string) (<-chan Event, error) {
	sess, err := m.sessions.Session(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	ch := make(chan Event)
	go m.run(ctx, sess.SessionID, sess.LearnerID, ch)
	return ch, nil
}

// run is the per-session loop. It owns ch and closes it on exit.
func (m *Manager) run(ctx context.Context, sessionID, learnerID string, ch chan<- Event) {
	defer close(ch)

	lp := &loop{
		manager:   m,
		sessionID: sessionID,
		ch:        ch,
		lastEmit:  time.Now(),
	}

	m.logger.Info("stream started", "session_id", sessionID, "learner_id", learnerID)
	defer m.logger.Info("stream ended", "session_id", sessionID)

	for {
		if ctx.Err() != nil {
			return
		}

		// Backpressure: stall (polling) until the sliding window has
		// room for another recommendation.
		if !lp.waitForBudget(ctx) {
			return
		}

		ev, backoffWait := m.cycle(ctx, learnerID)
		if ctx.Err() != nil {
			return
		}
		if !lp.emitRecommendation(ctx, ev) {
			return
		}

		// Backoff after an isolated failure, then the regular interval.
		// Heartbeats keep flowing through both waits.
		if backoffWait > 0 {
			if !lp.sleep(ctx, backoffWait) {
				return
			}
		}
		if !lp.sleep(ctx, m.cfg.Interval) {
			return
		}
	}
}

// cycle performs one recommendation attempt and returns the event to
// emit plus any backoff wait owed for a failure.
func (m *Manager) cycle(ctx context.Context, learnerID string) (Event, time.Duration) {
	if m.breaker.Proceed() == BreakerOpen {
		// Known-bad upstream: skip the call entirely and preserve
		// stream liveness with a fallback payload.
		if mtr := observability.DefaultMetrics; mtr != nil {
			mtr.RecordFallback(ReasonCircuitOpen)
		}
		return NewFallback(ReasonCircuitOpen), 0
	}

	callCtx, cancel := context.WithTimeout(ctx, m.cfg.UpstreamTimeout)
	start := time.Now()
	payload, err := m.rec.RecommendNext(callCtx, learnerID)
	cancel()

	if mtr := observability.DefaultMetrics; mtr != nil {
		mtr.RecordUpstreamLatency(time.Since(start).Seconds(), err == nil)
	}

	if err == nil {
		m.breaker.RecordSuccess()
		return NewRecommendation(payload), 0
	}

	// Consumer cancellation is not an upstream fault.
	if ctx.Err() != nil {
		return Event{}, 0
	}

	m.breaker.RecordFailure()
	reason := ReasonException
	if errors.Is(err, ErrUpstreamUnavailable) || errors.Is(err, context.DeadlineExceeded) {
		reason = ReasonUnavailable
	}
	m.logger.Warn("recommendation upstream failed",
		"learner_id", learnerID,
		"reason", reason,
		"failures", m.breaker.Failures(),
		"error", err)
	if mtr := observability.DefaultMetrics; mtr != nil {
		mtr.RecordFallback(reason)
	}

	// Backoff applies only while the breaker is not open; once open,
	// the next cycles fast-fail instead of waiting.
	var wait time.Duration
	if m.breaker.State() != BreakerOpen {
		wait = m.cfg.Backoff.Duration(m.breaker.Failures())
	}
	return NewFallback(reason), wait
}

// =============================================================================
// Per-Stream Loop State
// =============================================================================

// loop holds the per-stream emission state: the sliding rate window and
// the heartbeat schedule. Heartbeats fire only after the stream has
// been quiet for the heartbeat interval; any emission resets the clock.
type loop struct {
	manager   *Manager
	sessionID string
	ch        chan<- Event
	lastEmit  time.Time
	emitted   []time.Time
}

// waitForBudget blocks until the sliding one-second window has room for
// another recommendation event. Returns false on cancellation.
func (l *loop) waitForBudget(ctx context.Context) bool {
	maxPerSecond := l.manager.cfg.MaxEventsPerSecond
	if maxPerSecond <= 0 {
		return true
	}
	for {
		now := time.Now()
		l.pruneWindow(now)
		if len(l.emitted) < maxPerSecond {
			return true
		}
		if !l.sleep(ctx, sleepSlice) {
			return false
		}
	}
}

// pruneWindow drops emission timestamps older than one second.
func (l *loop) pruneWindow(now time.Time) {
	cutoff := now.Add(-time.Second)
	keep := l.emitted[:0]
	for _, ts := range l.emitted {
		if ts.After(cutoff) {
			keep = append(keep, ts)
		}
	}
	l.emitted = keep
}

// emitRecommendation sends a recommendation event and records it in the
// rate window. Returns false on cancellation.
func (l *loop) emitRecommendation(ctx context.Context, ev Event) bool {
	if !l.send(ctx, ev) {
		return false
	}
	l.emitted = append(l.emitted, time.Now())
	return true
}

// sleep waits for d in small slices, emitting heartbeats when the
// stream has been quiet long enough and observing cancellation at
// every slice. Returns false on cancellation.
func (l *loop) sleep(ctx context.Context, d time.Duration) bool {
	hbInterval := l.manager.cfg.HeartbeatInterval
	deadline := time.Now().Add(d)
	for {
		now := time.Now()
		if !now.Before(deadline) {
			return true
		}
		if now.Sub(l.lastEmit) >= hbInterval {
			if !l.send(ctx, NewHeartbeat(l.sessionID, now)) {
				return false
			}
		}

		slice := sleepSlice
		if remaining := deadline.Sub(now); remaining < slice {
			slice = remaining
		}
		if untilBeat := hbInterval - now.Sub(l.lastEmit); untilBeat > 0 && untilBeat < slice {
			slice = untilBeat
		}

		timer := time.NewTimer(slice)
		select {
		case <-ctx.Done():
			timer.Stop()
			return false
		case <-timer.C:
		}
	}
}

// send delivers one event and resets the heartbeat quiet clock.
// Returns false on cancellation.
func (l *loop) send(ctx context.Context, ev Event) bool {
	select {
	case <-ctx.Done():
		return false
	case l.ch <- ev:
		l.lastEmit = time.Now()
		return true
	}
}
