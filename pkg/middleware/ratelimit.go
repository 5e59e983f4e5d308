// Copyright (C) 2025 EduAdapt (oss@eduadapt.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// RateLimiter applies a per-minute request budget per client key. It wraps
// golang.org/x/time/rate token buckets, one bucket per key, with idle
// buckets evicted so long-running services do not accumulate state for
// every client address ever seen.
//
// # Thread Safety
//
// Safe for concurrent use; the key map is guarded by a mutex and each
// bucket is internally synchronized.
type RateLimiter struct {
	perMinute int
	mu        sync.Mutex
	buckets   map[string]*clientBucket

	// OnDenied, when non-nil, is invoked with the route label each time a
	// request is rejected. Services hook their prometheus counters here.
	OnDenied func(route string)
}

type clientBucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// idleEvictAfter is how long a bucket may sit unused before eviction.
const idleEvictAfter = 10 * time.Minute

// NewRateLimiter builds a limiter allowing perMinute requests per key with
// a burst of the same size. A perMinute of 0 or less disables limiting.
func NewRateLimiter(perMinute int) *RateLimiter {
	return &RateLimiter{
		perMinute: perMinute,
		buckets:   make(map[string]*clientBucket),
	}
}

// Allow reports whether the request identified by key is within budget.
func (rl *RateLimiter) Allow(key string) bool {
	if rl.perMinute <= 0 {
		return true
	}

	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	b, ok := rl.buckets[key]
	if !ok {
		b = &clientBucket{
			limiter: rate.NewLimiter(rate.Limit(float64(rl.perMinute)/60.0), rl.perMinute),
		}
		rl.buckets[key] = b
		rl.evictIdleLocked(now)
	}
	b.lastSeen = now
	return b.limiter.Allow()
}

// evictIdleLocked drops buckets unused for idleEvictAfter. Called with the
// mutex held, only on the new-key path so steady-state requests pay nothing.
func (rl *RateLimiter) evictIdleLocked(now time.Time) {
	for k, b := range rl.buckets {
		if now.Sub(b.lastSeen) > idleEvictAfter {
			delete(rl.buckets, k)
		}
	}
}

// Middleware returns gin middleware enforcing the limit per client IP,
// labeled with route for denial accounting. Rejected requests receive
// 429 {"error": "rate_limit_exceeded"} like the rest of the platform.
func (rl *RateLimiter) Middleware(route string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !rl.Allow(route + ":" + c.ClientIP()) {
			if rl.OnDenied != nil {
				rl.OnDenied(route)
			}
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "rate_limit_exceeded"})
			return
		}
		c.Next()
	}
}
