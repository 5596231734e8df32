// Package util provides numeric guard functions used across the simulation core.
package util

import "math"

// Clamp limits v to the [lo, hi] range.
func Clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Clamp01 limits v to the [0, 1] range.
func Clamp01(v float64) float64 {
	return Clamp(v, 0, 1)
}

// Finite reports whether v is neither NaN nor infinite.
func Finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// Sanitize substitutes fallback for NaN/Inf values and returns v otherwise.
func Sanitize(v, fallback float64) float64 {
	if !Finite(v) {
		return fallback
	}
	return v
}

// SanitizeUnit maps v into [0, 1], treating NaN/Inf as 0.
func SanitizeUnit(v float64) float64 {
	return Clamp01(Sanitize(v, 0))
}

// SanitizeRange maps v into [lo, hi], treating NaN/Inf as lo.
func SanitizeRange(v, lo, hi float64) float64 {
	return Clamp(Sanitize(v, lo), lo, hi)
}

// Lerp linearly interpolates between a and b by t in [0, 1].
func Lerp(a, b, t float64) float64 {
	return a + (b-a)*Clamp01(t)
}

// MoveToward advances current toward target by at most maxDelta, never overshooting.
func MoveToward(current, target, maxDelta float64) float64 {
	if maxDelta < 0 {
		maxDelta = 0
	}
	delta := target - current
	if math.Abs(delta) <= maxDelta {
		return target
	}
	if delta > 0 {
		return current + maxDelta
	}
	return current - maxDelta
}
