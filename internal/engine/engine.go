// Package engine implements the engine dynamics model: throttle response,
// RPM pursuit against rotational inertia and friction, torque-curve lookup
// with thermal and wear derating, and the slow feedback loops for
// temperature, wear and oil pressure.
package engine

import (
	"fmt"
	"math"

	"github.com/rs/zerolog"

	"github.com/motorsim/drivetrain/internal/model/core"
	"github.com/motorsim/drivetrain/internal/util"
)

// Derating and feedback tuning. These are model constants, not per-vehicle
// configuration; per-vehicle behavior comes from EngineSpec.
const (
	rpmFloorFactor   = 0.8  // RPM never drops below idle × this
	rpmCeilFactor    = 1.1  // RPM never exceeds max × this
	wearTorqueLoss   = 0.3  // torque reduction at full wear
	coldTempLimit    = 60.0 // °C below which output is reduced
	frictionPerSec   = 0.02 // RPM loss fraction per second per RPM
	loadRPMFraction  = 0.25 // target-RPM penalty span under full load
	loadDragRPM      = 600.0 // direct RPM drag per second under full load
	heatRatePerSec   = 9.0
	coolRatePerSec   = 0.04
	maintenanceShare = 0.5 // wear removed by one service operation
)

// Engine is one vehicle's engine instance. All state is owned by the
// instance; Update is the only mutator during simulation.
type Engine struct {
	spec core.EngineSpec
	log  zerolog.Logger

	// Derived from the spec, recomputed on reconfiguration.
	inertiaSec  float64 // RPM pursuit time constant
	thermalMass float64

	// State.
	rpm         float64
	targetRPM   float64
	throttlePos float64
	torque      float64
	temperature float64
	wear        float64
	oilPressure float64
	fuelRate    float64
}

// New constructs an engine from a spec. The spec is validated; invalid
// required fields (zero displacement, max RPM not above idle) are fatal here,
// never during ticks.
func New(spec core.EngineSpec, log zerolog.Logger) (*Engine, error) {
	if err := spec.Normalize(); err != nil {
		return nil, fmt.Errorf("invalid engine spec: %w", err)
	}
	e := &Engine{
		spec:        spec,
		log:         log,
		rpm:         spec.IdleRPM,
		targetRPM:   spec.IdleRPM,
		temperature: spec.AmbientTemp,
	}
	e.computeDerived()
	e.oilPressure = e.computeOilPressure()
	e.log.Debug().
		Float64("displacementL", spec.DisplacementL).
		Int("cylinders", spec.Cylinders).
		Float64("inertiaSec", e.inertiaSec).
		Msg("Engine constructed")
	return e, nil
}

// Reconfigure swaps the spec and recomputes derived values, preserving
// running state clamped into the new bounds.
func (e *Engine) Reconfigure(spec core.EngineSpec) error {
	if err := spec.Normalize(); err != nil {
		return fmt.Errorf("invalid engine spec: %w", err)
	}
	e.spec = spec
	e.computeDerived()
	e.rpm = util.Clamp(e.rpm, spec.IdleRPM*rpmFloorFactor, spec.MaxRPM*rpmCeilFactor)
	e.temperature = util.Clamp(e.temperature, spec.AmbientTemp, spec.MaxTemp)
	return nil
}

func (e *Engine) computeDerived() {
	// Bigger displacement and more cylinders spin up slower.
	e.inertiaSec = util.Clamp(
		0.2+0.1*e.spec.DisplacementL+0.015*float64(e.spec.Cylinders),
		0.15, 1.5,
	)
	e.thermalMass = 1.0 + 0.5*e.spec.DisplacementL + 0.1*float64(e.spec.Cylinders)
}

// Update advances the engine by dt seconds. throttle and load are clamped to
// [0,1]; NaN is treated as 0; negative dt is clamped to 0. The call never
// fails: malformed input degrades gracefully.
func (e *Engine) Update(dt, throttle, load float64) core.EngineOutput {
	dt = math.Max(util.Sanitize(dt, 0), 0)
	throttle = util.SanitizeUnit(throttle)
	load = util.SanitizeUnit(load)
	if dt == 0 {
		return e.output()
	}

	// Throttle-body lag: smooth toward the commanded position.
	e.throttlePos += (throttle - e.throttlePos) * math.Min(1, dt/e.spec.ThrottleResponse)

	span := e.spec.MaxRPM - e.spec.IdleRPM
	e.targetRPM = e.spec.IdleRPM + span*e.throttlePos - load*loadRPMFraction*span
	e.targetRPM = util.Clamp(e.targetRPM, e.spec.IdleRPM*rpmFloorFactor, e.spec.MaxRPM)

	e.rpm += (e.targetRPM - e.rpm) * dt / e.inertiaSec
	e.rpm -= frictionPerSec * e.rpm * dt
	e.rpm -= load * loadDragRPM * dt
	e.rpm = util.Clamp(e.rpm, e.spec.IdleRPM*rpmFloorFactor, e.spec.MaxRPM*rpmCeilFactor)

	e.torque = e.computeTorque()
	e.stepTemperature(dt, load)
	e.stepWear(dt)
	e.oilPressure = e.computeOilPressure()
	e.fuelRate = e.spec.DisplacementL * (0.6 + 9.0*e.throttlePos*e.rpmRatio() + 1.5*load)

	return e.output()
}

func (e *Engine) output() core.EngineOutput {
	return core.EngineOutput{
		RPM:         e.rpm,
		Torque:      e.torque,
		Temperature: e.temperature,
		Wear:        e.wear,
	}
}

func (e *Engine) rpmRatio() float64 {
	return util.Clamp01(e.rpm / e.spec.MaxRPM)
}

// computeTorque evaluates the torque curve and applies throttle, thermal,
// wear and aspiration scaling.
func (e *Engine) computeTorque() float64 {
	base := e.spec.MaxTorqueNM * e.curveMultiplier(e.rpm)
	return base *
		e.throttlePos *
		e.thermalDerate() *
		(1 - wearTorqueLoss*e.wear) *
		e.aspirationFactor()
}

// curveMultiplier interpolates the sorted torque-curve control points
// piecewise-linearly, holding the end values outside the covered RPM range.
func (e *Engine) curveMultiplier(rpm float64) float64 {
	curve := e.spec.TorqueCurve
	if rpm <= curve[0].RPM {
		return curve[0].Multiplier
	}
	for i := 1; i < len(curve); i++ {
		if rpm <= curve[i].RPM {
			segment := curve[i].RPM - curve[i-1].RPM
			if segment <= 0 {
				return curve[i].Multiplier
			}
			t := (rpm - curve[i-1].RPM) / segment
			return util.Lerp(curve[i-1].Multiplier, curve[i].Multiplier, t)
		}
	}
	return curve[len(curve)-1].Multiplier
}

func (e *Engine) thermalDerate() float64 {
	t := e.temperature
	switch {
	case t < coldTempLimit:
		// Warm-up: reduced output until the block comes up to temperature.
		return 0.75 + 0.25*util.Clamp01(t/coldTempLimit)
	case t <= e.spec.OptimalTempHi:
		return 1.0
	case t < e.spec.MaxTemp:
		over := (t - e.spec.OptimalTempHi) / (e.spec.MaxTemp - e.spec.OptimalTempHi)
		return 1.0 - 0.3*over
	default:
		return 0.4
	}
}

func (e *Engine) aspirationFactor() float64 {
	switch e.spec.Aspiration {
	case core.AspirationTurbo:
		return 1.0 + 0.35*e.rpmRatio()
	case core.AspirationSupercharged:
		return 1.25
	default:
		return 1.0
	}
}

func (e *Engine) stepTemperature(dt, load float64) {
	heat := (0.5*e.rpmRatio() + 0.3*load + 0.2*e.throttlePos) * heatRatePerSec / e.thermalMass

	// Airflow cooling rises with RPM, approximating fan and road speed.
	airflow := 0.6 + 0.6*e.rpmRatio()
	cooling := coolRatePerSec * (e.temperature - e.spec.AmbientTemp) * airflow
	if e.temperature > e.spec.ThermostatTemp {
		cooling *= 2 // thermostat open
	}

	e.temperature += (heat - cooling) * dt
	e.temperature = util.Clamp(e.temperature, e.spec.AmbientTemp, e.spec.MaxTemp)
}

func (e *Engine) stepWear(dt float64) {
	var rate float64
	if r := e.rpm / e.spec.MaxRPM; r > 0.9 {
		rate += (r - 0.9) * 2e-3
	}
	if e.temperature > e.spec.OptimalTempHi {
		over := (e.temperature - e.spec.OptimalTempHi) / (e.spec.MaxTemp - e.spec.OptimalTempHi)
		rate += over * 1e-3
	}
	if e.oilPressure < 1.2 {
		rate += (1.2 - e.oilPressure) * 1e-3
	}
	e.wear = math.Min(1, e.wear+rate*dt)
}

func (e *Engine) computeOilPressure() float64 {
	hot := util.Clamp01((e.temperature - e.spec.ThermostatTemp) / (e.spec.MaxTemp - e.spec.ThermostatTemp))
	p := (1.2 + 2.8*e.rpmRatio()) * (1 - 0.35*e.wear) * (1 - 0.3*hot)
	return math.Max(p, 0)
}

// Service performs the maintenance operation: wear drops by a fixed fraction.
// This is the only way wear decreases.
func (e *Engine) Service() {
	before := e.wear
	e.wear *= 1 - maintenanceShare
	e.oilPressure = e.computeOilPressure()
	e.log.Info().
		Float64("wearBefore", before).
		Float64("wearAfter", e.wear).
		Msg("Engine serviced")
}

// Snapshot returns the full engine state for publication.
func (e *Engine) Snapshot() core.EngineSnapshot {
	return core.EngineSnapshot{
		RPM:         e.rpm,
		TargetRPM:   e.targetRPM,
		Torque:      e.torque,
		ThrottlePos: e.throttlePos,
		Temperature: e.temperature,
		Wear:        e.wear,
		OilPressure: e.oilPressure,
		FuelRateLPH: e.fuelRate,
	}
}

// Spec returns the active engine spec.
func (e *Engine) Spec() core.EngineSpec {
	return e.spec
}
