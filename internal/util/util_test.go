package util

import (
	"math"
	"testing"
)

func TestClamp(t *testing.T) {
	tests := []struct {
		name       string
		v, lo, hi  float64
		expected   float64
	}{
		{"inside range", 0.5, 0, 1, 0.5},
		{"below range", -2, 0, 1, 0},
		{"above range", 7, 0, 1, 1},
		{"at lower bound", 0, 0, 1, 0},
		{"at upper bound", 1, 0, 1, 1},
		{"negative range", -5, -10, -1, -5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := Clamp(tt.v, tt.lo, tt.hi)
			if result != tt.expected {
				t.Errorf("Clamp(%v, %v, %v) = %v, want %v", tt.v, tt.lo, tt.hi, result, tt.expected)
			}
		})
	}
}

func TestSanitizeUnit(t *testing.T) {
	tests := []struct {
		name     string
		input    float64
		expected float64
	}{
		{"valid value", 0.7, 0.7},
		{"NaN becomes zero", math.NaN(), 0},
		{"positive infinity becomes zero", math.Inf(1), 0},
		{"negative infinity becomes zero", math.Inf(-1), 0},
		{"negative clamps to zero", -1, 0},
		{"above one clamps to one", 1000, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := SanitizeUnit(tt.input)
			if result != tt.expected {
				t.Errorf("SanitizeUnit(%v) = %v, want %v", tt.input, result, tt.expected)
			}
		})
	}
}

func TestSanitizeRange(t *testing.T) {
	tests := []struct {
		name      string
		v, lo, hi float64
		expected  float64
	}{
		{"valid value", 0.1, -1, 1, 0.1},
		{"NaN becomes lower bound", math.NaN(), -1, 1, -1},
		{"extreme magnitude clamps", 1e12, -1, 1, 1},
		{"below clamps", -50, -1, 1, -1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := SanitizeRange(tt.v, tt.lo, tt.hi)
			if result != tt.expected {
				t.Errorf("SanitizeRange(%v, %v, %v) = %v, want %v", tt.v, tt.lo, tt.hi, result, tt.expected)
			}
		})
	}
}

func TestMoveToward(t *testing.T) {
	tests := []struct {
		name                      string
		current, target, maxDelta float64
		expected                  float64
	}{
		{"reaches target within delta", 1, 1.5, 1, 1.5},
		{"limited by delta upward", 1, 5, 0.5, 1.5},
		{"limited by delta downward", 5, 1, 0.5, 4.5},
		{"zero delta holds", 2, 8, 0, 2},
		{"negative delta treated as zero", 2, 8, -1, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := MoveToward(tt.current, tt.target, tt.maxDelta)
			if result != tt.expected {
				t.Errorf("MoveToward(%v, %v, %v) = %v, want %v", tt.current, tt.target, tt.maxDelta, result, tt.expected)
			}
		})
	}
}

func TestFinite(t *testing.T) {
	if Finite(math.NaN()) || Finite(math.Inf(1)) || Finite(math.Inf(-1)) {
		t.Error("Finite accepted a non-finite value")
	}
	if !Finite(0) || !Finite(-123.45) {
		t.Error("Finite rejected a finite value")
	}
}
