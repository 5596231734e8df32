package core

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"
)

// Configuration validation errors. These are fatal at construction or
// reconfiguration time; they are never deferred into tick execution.
var (
	ErrNoMass         = errors.New("vehicle mass must be positive")
	ErrNoDisplacement = errors.New("engine displacement must be positive")
	ErrBadRPMRange    = errors.New("engine max RPM must exceed idle RPM")
	ErrNoGearRatios   = errors.New("gear ratio list is empty")
	ErrBadCVTRange    = errors.New("CVT ratio range is invalid")
	ErrBadTorqueCurve = errors.New("torque curve control points must be sorted by RPM")
	ErrNoWheelRadius  = errors.New("wheel radius must be positive")
)

// TorquePoint is one control point of the torque curve: at RPM, the engine
// produces Multiplier × MaxTorqueNM before throttle/thermal/wear scaling.
type TorquePoint struct {
	RPM        float64 `json:"rpm"`
	Multiplier float64 `json:"multiplier"`
}

// EngineSpec is the immutable engine portion of a vehicle configuration.
type EngineSpec struct {
	DisplacementL float64       `json:"displacementL"`
	Cylinders     int           `json:"cylinders"`
	IdleRPM       float64       `json:"idleRPM"`
	MaxRPM        float64       `json:"maxRPM"`
	MaxTorqueNM   float64       `json:"maxTorqueNM"`
	MaxTorqueRPM  float64       `json:"maxTorqueRPM"`
	TorqueCurve   []TorquePoint `json:"torqueCurve"`
	Aspiration    Aspiration    `json:"aspiration"`

	// Thermal envelope, °C. Zero values are filled with defaults.
	AmbientTemp    float64 `json:"ambientTemp"`
	OptimalTempLow float64 `json:"optimalTempLow"`
	OptimalTempHi  float64 `json:"optimalTempHigh"`
	ThermostatTemp float64 `json:"thermostatTemp"`
	MaxTemp        float64 `json:"maxTemp"`

	// ThrottleResponse is the electronic throttle-body smoothing time
	// constant in seconds.
	ThrottleResponse float64 `json:"throttleResponse"`
}

// TransmissionSpec is the immutable transmission portion of a vehicle
// configuration.
type TransmissionSpec struct {
	Type         TransmissionType `json:"type"`
	Ratios       []float64        `json:"ratios"`       // forward gears, 1..N
	ReverseRatio float64          `json:"reverseRatio"` // negative by convention
	FinalDrive   float64          `json:"finalDrive"`
	Efficiency   float64          `json:"efficiency"`
	ShiftSeconds float64          `json:"shiftSeconds"`

	// Automatic shift tuning. Per-gear thresholds aligned with Ratios;
	// empty slices are filled from MaxRPM.
	UpshiftRPM       []float64 `json:"upshiftRPM"`
	DownshiftRPM     []float64 `json:"downshiftRPM"`
	KickdownMinSpeed float64   `json:"kickdownMinSpeed"` // m/s
	KickdownMaxSpeed float64   `json:"kickdownMaxSpeed"` // m/s
	AutoShift        bool      `json:"autoShift"`

	// CVT tuning, used only when Type == TransmissionCVT.
	CVTRatioMin   float64 `json:"cvtRatioMin"`
	CVTRatioMax   float64 `json:"cvtRatioMax"`
	CVTRatePerSec float64 `json:"cvtRatePerSec"`
}

// AeroSpec is the aerodynamic portion of a vehicle configuration.
type AeroSpec struct {
	DragCoeff      float64 `json:"dragCoeff"`
	FrontalAreaM2  float64 `json:"frontalAreaM2"`
	DownforceCoeff float64 `json:"downforceCoeff"`
	AirDensity     float64 `json:"airDensity"`
}

// IntegrationSpec tunes the sub-stepped integrator.
type IntegrationSpec struct {
	StepSeconds   float64 `json:"stepSeconds"`
	MaxSubSteps   int     `json:"maxSubSteps"`
	DampingPerSec float64 `json:"dampingPerSec"`
	MaxSpeedMS    float64 `json:"maxSpeedMS"`
}

// VehicleConfig is the complete immutable configuration of one vehicle. It is
// validated and frozen at construction; changes go through an explicit
// reconfiguration operation that revalidates and recomputes derived values.
type VehicleConfig struct {
	Name string `json:"name"`

	MassKG    float64 `json:"massKG"`
	LengthM   float64 `json:"lengthM"`
	WidthM    float64 `json:"widthM"`
	HeightM   float64 `json:"heightM"`
	CGHeightM float64 `json:"cgHeightM"`
	CGOffsetM float64 `json:"cgOffsetM"` // longitudinal offset from geometric center, + forward

	WheelbaseM   float64          `json:"wheelbaseM"`
	TrackM       float64          `json:"trackM"`
	WheelRadiusM float64          `json:"wheelRadiusM"`
	Layout       DrivetrainLayout `json:"layout"`
	BrakeForceN  float64          `json:"brakeForceN"`

	Engine       EngineSpec       `json:"engine"`
	Transmission TransmissionSpec `json:"transmission"`
	Aero         AeroSpec         `json:"aero"`
	Integration  IntegrationSpec  `json:"integration"`
}

// Normalize validates required fields and fills defaulted ones in place.
// Returned errors are configuration errors in the sense of the two-class
// error model: the vehicle must not be constructed from a config that fails.
func (c *VehicleConfig) Normalize() error {
	if c.MassKG <= 0 {
		return ErrNoMass
	}
	if c.WheelRadiusM <= 0 {
		return ErrNoWheelRadius
	}
	if err := c.Engine.Normalize(); err != nil {
		return fmt.Errorf("engine: %w", err)
	}
	if err := c.Transmission.Normalize(c.Engine.MaxRPM); err != nil {
		return fmt.Errorf("transmission: %w", err)
	}

	if c.WheelbaseM <= 0 {
		c.WheelbaseM = 2.6
	}
	if c.TrackM <= 0 {
		c.TrackM = 1.6
	}
	if c.LengthM <= 0 {
		c.LengthM = 4.3
	}
	if c.WidthM <= 0 {
		c.WidthM = 1.8
	}
	if c.HeightM <= 0 {
		c.HeightM = 1.4
	}
	if c.CGHeightM <= 0 {
		c.CGHeightM = 0.46
	}
	if c.BrakeForceN <= 0 {
		c.BrakeForceN = 12000
	}

	if c.Aero.AirDensity <= 0 {
		c.Aero.AirDensity = 1.29
	}
	if c.Aero.DragCoeff <= 0 {
		c.Aero.DragCoeff = 0.32
	}
	if c.Aero.FrontalAreaM2 <= 0 {
		c.Aero.FrontalAreaM2 = 2.0
	}

	if c.Integration.StepSeconds <= 0 {
		c.Integration.StepSeconds = 1.0 / 120.0
	}
	if c.Integration.MaxSubSteps <= 0 {
		c.Integration.MaxSubSteps = 8
	}
	if c.Integration.DampingPerSec <= 0 {
		c.Integration.DampingPerSec = 0.05
	}
	if c.Integration.MaxSpeedMS <= 0 {
		c.Integration.MaxSpeedMS = 120
	}
	return nil
}

func (e *EngineSpec) Normalize() error {
	if e.DisplacementL <= 0 {
		return ErrNoDisplacement
	}
	if e.IdleRPM <= 0 || e.MaxRPM <= e.IdleRPM {
		return ErrBadRPMRange
	}
	if e.Cylinders <= 0 {
		e.Cylinders = 4
	}
	if e.MaxTorqueNM <= 0 {
		e.MaxTorqueNM = 90 * e.DisplacementL * float64(e.Cylinders) / 4
	}
	if e.MaxTorqueRPM <= 0 {
		e.MaxTorqueRPM = e.IdleRPM + 0.55*(e.MaxRPM-e.IdleRPM)
	}
	if len(e.TorqueCurve) == 0 {
		e.TorqueCurve = defaultTorqueCurve(e.IdleRPM, e.MaxTorqueRPM, e.MaxRPM)
	}
	if !sort.SliceIsSorted(e.TorqueCurve, func(i, j int) bool {
		return e.TorqueCurve[i].RPM < e.TorqueCurve[j].RPM
	}) {
		return ErrBadTorqueCurve
	}

	if e.AmbientTemp == 0 {
		e.AmbientTemp = 20
	}
	if e.OptimalTempLow <= 0 {
		e.OptimalTempLow = 85
	}
	if e.OptimalTempHi <= 0 {
		e.OptimalTempHi = 105
	}
	if e.ThermostatTemp <= 0 {
		e.ThermostatTemp = 95
	}
	if e.MaxTemp <= 0 {
		e.MaxTemp = 130
	}
	if e.ThrottleResponse <= 0 {
		e.ThrottleResponse = 0.15
	}
	return nil
}

func (t *TransmissionSpec) Normalize(maxRPM float64) error {
	if t.Type == TransmissionCVT {
		if t.CVTRatioMin <= 0 || t.CVTRatioMax <= t.CVTRatioMin {
			return ErrBadCVTRange
		}
		if t.CVTRatePerSec <= 0 {
			t.CVTRatePerSec = 2.0
		}
	} else if len(t.Ratios) == 0 {
		return ErrNoGearRatios
	}

	if t.ReverseRatio == 0 {
		t.ReverseRatio = -3.2
	}
	if t.FinalDrive == 0 {
		t.FinalDrive = 3.9
	}
	if t.Efficiency <= 0 || t.Efficiency > 1 {
		t.Efficiency = 0.9
	}
	if t.ShiftSeconds <= 0 {
		t.ShiftSeconds = 0.5
	}

	gears := len(t.Ratios)
	if len(t.UpshiftRPM) == 0 {
		t.UpshiftRPM = make([]float64, gears)
		for i := range t.UpshiftRPM {
			t.UpshiftRPM[i] = 0.82 * maxRPM
		}
	}
	if len(t.DownshiftRPM) == 0 {
		t.DownshiftRPM = make([]float64, gears)
		for i := range t.DownshiftRPM {
			t.DownshiftRPM[i] = 0.35 * maxRPM
		}
	}
	if gears > 0 && (len(t.UpshiftRPM) != gears || len(t.DownshiftRPM) != gears) {
		return fmt.Errorf("shift threshold lists must match gear count %d", gears)
	}

	if t.KickdownMinSpeed <= 0 {
		t.KickdownMinSpeed = 5
	}
	if t.KickdownMaxSpeed <= t.KickdownMinSpeed {
		t.KickdownMaxSpeed = 40
	}
	return nil
}

// defaultTorqueCurve builds a plausible curve peaking at peakRPM.
func defaultTorqueCurve(idle, peak, max float64) []TorquePoint {
	return []TorquePoint{
		{RPM: 0, Multiplier: 0.3},
		{RPM: idle, Multiplier: 0.55},
		{RPM: (idle + peak) / 2, Multiplier: 0.85},
		{RPM: peak, Multiplier: 1.0},
		{RPM: (peak + max) / 2, Multiplier: 0.92},
		{RPM: max, Multiplier: 0.74},
	}
}

// Gears returns the number of forward gears.
func (t TransmissionSpec) Gears() int {
	return len(t.Ratios)
}

// ConfigPatch is a partial reconfiguration. Nil fields keep current values.
type ConfigPatch struct {
	MassKG       *float64          `json:"massKG,omitempty"`
	BrakeForceN  *float64          `json:"brakeForceN,omitempty"`
	Layout       *DrivetrainLayout `json:"layout,omitempty"`
	MaxRPM       *float64          `json:"maxRPM,omitempty"`
	MaxTorqueNM  *float64          `json:"maxTorqueNM,omitempty"`
	FinalDrive   *float64          `json:"finalDrive,omitempty"`
	ShiftSeconds *float64          `json:"shiftSeconds,omitempty"`
	Efficiency   *float64          `json:"efficiency,omitempty"`
	DragCoeff    *float64          `json:"dragCoeff,omitempty"`
}

// Apply returns a copy of c with the patch applied. The result must pass
// Normalize before use.
func (c VehicleConfig) Apply(p ConfigPatch) VehicleConfig {
	out := c
	out.Engine.TorqueCurve = append([]TorquePoint(nil), c.Engine.TorqueCurve...)
	out.Transmission.Ratios = append([]float64(nil), c.Transmission.Ratios...)
	out.Transmission.UpshiftRPM = append([]float64(nil), c.Transmission.UpshiftRPM...)
	out.Transmission.DownshiftRPM = append([]float64(nil), c.Transmission.DownshiftRPM...)

	if p.MassKG != nil {
		out.MassKG = *p.MassKG
	}
	if p.BrakeForceN != nil {
		out.BrakeForceN = *p.BrakeForceN
	}
	if p.Layout != nil {
		out.Layout = *p.Layout
	}
	if p.MaxRPM != nil {
		out.Engine.MaxRPM = *p.MaxRPM
	}
	if p.MaxTorqueNM != nil {
		out.Engine.MaxTorqueNM = *p.MaxTorqueNM
	}
	if p.FinalDrive != nil {
		out.Transmission.FinalDrive = *p.FinalDrive
	}
	if p.ShiftSeconds != nil {
		out.Transmission.ShiftSeconds = *p.ShiftSeconds
	}
	if p.Efficiency != nil {
		out.Transmission.Efficiency = *p.Efficiency
	}
	if p.DragCoeff != nil {
		out.Aero.DragCoeff = *p.DragCoeff
	}
	return out
}

// LoadConfig reads and validates a vehicle configuration JSON file.
func LoadConfig(path string) (VehicleConfig, error) {
	var cfg VehicleConfig
	raw, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("error reading vehicle config: %w", err)
	}
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return cfg, fmt.Errorf("error decoding vehicle config: %w", err)
	}
	if err := cfg.Normalize(); err != nil {
		return cfg, fmt.Errorf("invalid vehicle config: %w", err)
	}
	return cfg, nil
}

// MarshalJSON writes the aspiration as its config-file spelling.
func (a Aspiration) MarshalJSON() ([]byte, error) {
	return json.Marshal(a.String())
}

// UnmarshalJSON accepts the config-file spelling of the aspiration.
func (a *Aspiration) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	parsed, err := ParseAspiration(s)
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

// MarshalJSON writes the transmission type as its config-file spelling.
func (t TransmissionType) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

// UnmarshalJSON accepts the config-file spelling of the transmission type.
func (t *TransmissionType) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	parsed, err := ParseTransmissionType(s)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// MarshalJSON writes the layout as its config-file spelling.
func (l DrivetrainLayout) MarshalJSON() ([]byte, error) {
	return json.Marshal(l.String())
}

// UnmarshalJSON accepts the config-file spelling of the layout.
func (l *DrivetrainLayout) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	parsed, err := ParseDrivetrainLayout(s)
	if err != nil {
		return err
	}
	*l = parsed
	return nil
}
