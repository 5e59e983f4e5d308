// Copyright (C) 2025 EduAdapt (oss@eduadapt.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package bandit

import (
	"math"
	"math/rand"
)

// =============================================================================
// Beta Sampling
// =============================================================================

// Sampler draws Beta-distributed variates for Thompson sampling. It wraps
// a rand.Rand so tests can seed it deterministically. Not safe for
// concurrent use; the engine serializes access.
type Sampler struct {
	rng *rand.Rand
}

// NewSampler returns a sampler seeded from src.
func NewSampler(src rand.Source) *Sampler {
	return &Sampler{rng: rand.New(src)}
}

// Beta draws one variate from Beta(alpha, beta) using the ratio of two
// Gamma draws: X/(X+Y) with X~Gamma(alpha,1), Y~Gamma(beta,1).
func (s *Sampler) Beta(alpha, beta float64) float64 {
	x := s.gamma(alpha)
	y := s.gamma(beta)
	if x+y == 0 {
		return 0.5
	}
	return x / (x + y)
}

// gamma draws from Gamma(shape, 1) via the Marsaglia-Tsang method.
// Shapes below 1 use the boosting transform Gamma(a) = Gamma(a+1) * U^(1/a).
func (s *Sampler) gamma(shape float64) float64 {
	if shape <= 0 {
		return 0
	}
	if shape < 1 {
		u := s.rng.Float64()
		for u == 0 {
			u = s.rng.Float64()
		}
		return s.gamma(shape+1) * math.Pow(u, 1/shape)
	}

	d := shape - 1.0/3.0
	c := 1.0 / math.Sqrt(9.0*d)
	for {
		var x, v float64
		for {
			x = s.rng.NormFloat64()
			v = 1.0 + c*x
			if v > 0 {
				break
			}
		}
		v = v * v * v
		u := s.rng.Float64()
		if u < 1.0-0.0331*x*x*x*x {
			return d * v
		}
		if u > 0 && math.Log(u) < 0.5*x*x+d*(1.0-v+math.Log(v)) {
			return d * v
		}
	}
}
