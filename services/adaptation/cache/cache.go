// Copyright (C) 2025 EduAdapt (oss@eduadapt.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package cache provides the short-TTL recommendation debounce cache.
//
// # Description
// Rapid repeat requests for the same learner and policy within the TTL
// window receive the cached recommendation instead of triggering a fresh
// posterior sample. This keeps recommendations stable while a learner
// refreshes or reconnects.
//
// # Limitations
// The cache is advisory. A miss, an expired entry, or a cache backend
// failure all fall through to fresh sampling; cache errors are never
// surfaced to callers as request failures.
package cache

import (
	"context"
	"time"

	"github.com/eduadapt/EduAdaptPlatform/services/adaptation/datatypes"
)

// DefaultTTL is the debounce window applied when callers pass a zero TTL.
const DefaultTTL = 10 * time.Second

// Key builds the debounce cache key for a learner and policy pair.
func Key(learnerID, policyID string) string {
	return "rec:" + learnerID + ":" + policyID
}

// Cache stores recently issued recommendations keyed by learner and
// policy. Implementations must be safe for concurrent use.
type Cache interface {
	// Get returns the cached recommendation and true on a hit. A miss
	// or expired entry returns (nil, false, nil).
	Get(ctx context.Context, key string) (*datatypes.Recommendation, bool, error)

	// Put stores rec under key for ttl (DefaultTTL when ttl <= 0).
	Put(ctx context.Context, key string, rec *datatypes.Recommendation, ttl time.Duration) error
}
