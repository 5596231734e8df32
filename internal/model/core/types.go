// Package core holds the plain simulation domain types, free of storage and
// GIS dependencies so the numeric core can be tested in isolation.
package core

import "math"

// Wheel indices, front-left through rear-right.
const (
	WheelFL = iota
	WheelFR
	WheelRL
	WheelRR
	WheelCount
)

// Vec3 is a 3D vector in metres (position) or metres/second (velocity).
// X is forward-east, Y is left-north, Z is up.
type Vec3 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Add returns v + o.
func (v Vec3) Add(o Vec3) Vec3 {
	return Vec3{v.X + o.X, v.Y + o.Y, v.Z + o.Z}
}

// Scale returns v scaled by s.
func (v Vec3) Scale(s float64) Vec3 {
	return Vec3{v.X * s, v.Y * s, v.Z * s}
}

// Length returns the magnitude of v.
func (v Vec3) Length() float64 {
	return math.Sqrt(v.X*v.X + v.Y*v.Y + v.Z*v.Z)
}

// ClampLength uniformly scales v down so its magnitude does not exceed limit.
func (v Vec3) ClampLength(limit float64) Vec3 {
	if limit <= 0 {
		return Vec3{}
	}
	lenSq := v.X*v.X + v.Y*v.Y + v.Z*v.Z
	if lenSq <= limit*limit || lenSq == 0 {
		return v
	}
	s := limit / math.Sqrt(lenSq)
	return v.Scale(s)
}

// Finite reports whether all components are finite.
func (v Vec3) Finite() bool {
	return finite(v.X) && finite(v.Y) && finite(v.Z)
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

// ControlInputs is the per-tick driver input set supplied by the host
// application. Values are sanitized by the vehicle before use; a malformed
// input never fails a tick.
type ControlInputs struct {
	Throttle       float64      `json:"throttle"` // 0..1
	Brake          float64      `json:"brake"`    // 0..1
	Steering       float64      `json:"steering"` // -1..1, positive = left
	ClutchOverride float64      `json:"clutchOverride"` // 0..1, <1 forces partial disengagement
	HasClutch      bool         `json:"hasClutch"`
	Shift          ShiftRequest `json:"shift"`
	Mode           ShiftMode    `json:"mode"`
	HasMode        bool         `json:"hasMode"`
	Surface        SurfaceType  `json:"surface"`
}

// WheelContact carries the per-wheel grip/slip/load values supplied by the
// external tire and suspension collaborators. The core treats them as opaque
// numeric inputs.
type WheelContact struct {
	Grip float64 `json:"grip"` // friction multiplier, nominal 1.0
	Slip float64 `json:"slip"` // externally observed slip ratio
	Load float64 `json:"load"` // normal load in newtons
}

// DefaultContacts returns nominal wheel contacts for a vehicle of the given
// mass on the given surface: full grip, no slip, static load split evenly.
func DefaultContacts(mass float64, surface SurfaceType) [WheelCount]WheelContact {
	static := mass * Gravity / WheelCount
	var contacts [WheelCount]WheelContact
	for i := range contacts {
		contacts[i] = WheelContact{Grip: surface.Grip(), Load: static}
	}
	return contacts
}

// Gravity is the gravitational acceleration used throughout the model, m/s².
const Gravity = 9.81
