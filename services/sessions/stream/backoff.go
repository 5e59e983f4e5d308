// Copyright (C) 2025 EduAdapt (oss@eduadapt.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package stream

import "time"

// Backoff computes the wait before the next upstream attempt after a
// failure. It applies only while the breaker is not open: after an
// isolated failure that has not yet tripped the breaker, or during
// half-open recovery. Waits never block heartbeat delivery; the stream
// manager slices them.
type Backoff struct {
	// Base is the first-failure wait. Default: 500ms
	Base time.Duration

	// Cap bounds the exponential growth. Default: 5s
	Cap time.Duration
}

// DefaultBackoff returns the production backoff policy.
func DefaultBackoff() Backoff {
	return Backoff{Base: 500 * time.Millisecond, Cap: 5 * time.Second}
}

// Duration returns min(Base * 2^(failures-1), Cap). Zero or negative
// failure counts wait nothing.
func (b Backoff) Duration(failures int) time.Duration {
	if failures <= 0 {
		return 0
	}
	base := b.Base
	if base <= 0 {
		base = 500 * time.Millisecond
	}
	cap := b.Cap
	if cap <= 0 {
		cap = 5 * time.Second
	}

	d := base
	for i := 1; i < failures; i++ {
		d *= 2
		if d >= cap {
			return cap
		}
	}
	if d > cap {
		return cap
	}
	return d
}
