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
	"testing"
)

func TestBetaInUnitInterval(t *testing.T) {
	s := NewSampler(rand.NewSource(1))
	shapes := []struct{ a, b float64 }{
		{1, 1}, {0.5, 0.5}, {2, 5}, {50, 1}, {1, 50}, {100, 100},
	}
	for _, sh := range shapes {
		for i := 0; i < 1000; i++ {
			v := s.Beta(sh.a, sh.b)
			if v < 0 || v > 1 || math.IsNaN(v) {
				t.Fatalf("Beta(%v,%v) draw out of range: %v", sh.a, sh.b, v)
			}
		}
	}
}

func TestBetaSampleMean(t *testing.T) {
	s := NewSampler(rand.NewSource(7))
	cases := []struct {
		a, b float64
	}{
		{2, 2}, {8, 2}, {1, 9}, {0.5, 1.5},
	}
	const n = 20000
	for _, c := range cases {
		var sum float64
		for i := 0; i < n; i++ {
			sum += s.Beta(c.a, c.b)
		}
		got := sum / n
		want := c.a / (c.a + c.b)
		if math.Abs(got-want) > 0.02 {
			t.Fatalf("Beta(%v,%v) sample mean %v, want about %v", c.a, c.b, got, want)
		}
	}
}

func TestBetaDeterministicWithSeed(t *testing.T) {
	a := NewSampler(rand.NewSource(99))
	b := NewSampler(rand.NewSource(99))
	for i := 0; i < 100; i++ {
		if a.Beta(3, 4) != b.Beta(3, 4) {
			t.Fatal("same seed produced different sequences")
		}
	}
}

func TestGammaDegenerateShapes(t *testing.T) {
	s := NewSampler(rand.NewSource(5))
	if v := s.gamma(0); v != 0 {
		t.Fatalf("gamma(0) = %v, want 0", v)
	}
	if v := s.gamma(-1); v != 0 {
		t.Fatalf("gamma(-1) = %v, want 0", v)
	}
}
