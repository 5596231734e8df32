// Package vehicle composes the engine, transmission and chassis into one
// simulated vehicle. It owns the fixed-sub-step update loop, input
// sanitization, snapshot assembly and observer fan-out.
package vehicle

import (
	"math"

	"github.com/rs/zerolog"

	"github.com/motorsim/drivetrain/internal/chassis"
	"github.com/motorsim/drivetrain/internal/engine"
	"github.com/motorsim/drivetrain/internal/model/core"
	"github.com/motorsim/drivetrain/internal/transmission"
	"github.com/motorsim/drivetrain/internal/util"
)

// Observer receives every published snapshot. Observers run synchronously on
// the update goroutine and must not block.
type Observer func(core.Snapshot)

// Vehicle is one independently simulated vehicle instance. It is not safe
// for concurrent use; the host drives it from a single goroutine.
type Vehicle struct {
	cfg core.VehicleConfig
	log zerolog.Logger

	engine  *engine.Engine
	trans   *transmission.Transmission
	chassis *chassis.Chassis

	observers []Observer

	tick      uint64
	simTime   float64
	fuelUsedL float64
	last      core.Snapshot
}

// New builds a vehicle from cfg. The configuration is normalized and
// validated up front; a bad configuration is a construction error, never a
// runtime one.
func New(cfg core.VehicleConfig, log zerolog.Logger) (*Vehicle, error) {
	if err := cfg.Normalize(); err != nil {
		return nil, err
	}
	vlog := log.With().Str("vehicle", cfg.Name).Logger()

	eng, err := engine.New(cfg.Engine, vlog)
	if err != nil {
		return nil, err
	}
	trans, err := transmission.New(cfg.Transmission, cfg.Engine, vlog)
	if err != nil {
		return nil, err
	}

	v := &Vehicle{
		cfg:     cfg,
		log:     vlog,
		engine:  eng,
		trans:   trans,
		chassis: chassis.New(cfg, vlog),
	}
	v.last = v.assemble(0, 0)
	vlog.Info().
		Str("layout", cfg.Layout.String()).
		Str("transmission", cfg.Transmission.Type.String()).
		Int("gears", len(cfg.Transmission.Ratios)).
		Msg("vehicle constructed")
	return v, nil
}

// Subscribe registers an observer for every future snapshot.
func (v *Vehicle) Subscribe(obs Observer) {
	v.observers = append(v.observers, obs)
}

// Update advances the simulation by dt seconds using fixed sub-steps and
// returns the resulting snapshot. dt == 0 returns the previous snapshot
// unchanged. Malformed inputs are sanitized and counted, never fatal.
func (v *Vehicle) Update(dt float64, in core.ControlInputs) core.Snapshot {
	sanitized := 0
	dt = sanitizeCount(dt, 0, &sanitized)
	if dt < 0 {
		dt = 0
		sanitized++
	}

	throttle := sanitizeUnitCount(in.Throttle, &sanitized)
	brake := sanitizeUnitCount(in.Brake, &sanitized)
	steering := sanitizeRangeCount(in.Steering, -1, 1, &sanitized)
	clutch := sanitizeUnitCount(in.ClutchOverride, &sanitized)

	if dt == 0 {
		return v.last
	}

	if in.HasMode {
		if err := v.trans.SetShiftMode(in.Mode); err != nil {
			v.log.Debug().Err(err).Str("mode", in.Mode.String()).Msg("mode change rejected")
		}
	}
	switch in.Shift {
	case core.ShiftUp:
		v.trans.RequestUpshift(core.ShiftCauseManual)
	case core.ShiftDown:
		v.trans.RequestDownshift(core.ShiftCauseManual)
	}

	steps := int(math.Ceil(dt / v.cfg.Integration.StepSeconds))
	if steps < 1 {
		steps = 1
	}
	if steps > v.cfg.Integration.MaxSubSteps {
		steps = v.cfg.Integration.MaxSubSteps
	}
	h := dt / float64(steps)

	contacts := core.DefaultContacts(v.cfg.MassKG, in.Surface)

	for i := 0; i < steps; i++ {
		speed := v.chassis.Speed()

		// Engine load rises with road speed and braking drag. The exact
		// shape only matters qualitatively: more load pulls the free-rev
		// point down.
		load := util.Clamp01(0.5*speed/v.cfg.Integration.MaxSpeedMS + 0.3*brake)

		out := v.engine.Update(h, throttle, load)

		v.trans.Update(h, transmission.Input{
			EngineRPM:         out.RPM,
			Throttle:          throttle,
			WheelRPM:          v.chassis.WheelRPM(),
			SpeedMS:           speed,
			ClutchOverride:    clutch,
			HasClutchOverride: in.HasClutch,
		})
		_, outputTorque := v.trans.Output(out.RPM)

		v.chassis.Step(h, chassis.StepInput{
			DriveForce: outputTorque / v.cfg.WheelRadiusM,
			Brake:      brake,
			Steering:   steering,
			Contacts:   contacts,
		})

		v.fuelUsedL += v.engine.Snapshot().FuelRateLPH / 3600.0 * h
	}

	v.tick++
	v.simTime += dt

	snap := v.assemble(steps, sanitized)
	v.last = snap
	for _, obs := range v.observers {
		obs(snap)
	}
	return snap
}

func (v *Vehicle) assemble(subSteps, sanitized int) core.Snapshot {
	return core.Snapshot{
		Tick:            v.tick,
		SimTime:         v.simTime,
		Engine:          v.engine.Snapshot(),
		Transmission:    v.trans.Snapshot(),
		Chassis:         v.chassis.Snapshot(),
		FuelUsedL:       v.fuelUsedL,
		SubSteps:        subSteps,
		SanitizedInputs: sanitized,
	}
}

// Snapshot returns the most recently published snapshot without advancing
// the simulation.
func (v *Vehicle) Snapshot() core.Snapshot {
	return v.last
}

// TakeShiftEvents drains the completed gear changes accumulated since the
// previous call.
func (v *Vehicle) TakeShiftEvents() []transmission.ShiftEvent {
	return v.trans.TakeEvents()
}

// SetShiftMode forwards a mode change outside the regular input path.
func (v *Vehicle) SetShiftMode(mode core.ShiftMode) error {
	return v.trans.SetShiftMode(mode)
}

// ApplyImpulse forwards an external velocity change to the chassis.
func (v *Vehicle) ApplyImpulse(dv core.Vec3) {
	v.chassis.ApplyImpulse(dv)
}

// Service performs scheduled maintenance, recovering part of the engine
// wear.
func (v *Vehicle) Service() {
	v.engine.Service()
	v.log.Info().Float64("wear", v.engine.Snapshot().Wear).Msg("vehicle serviced")
}

// Reconfigure applies a partial configuration change. The patched
// configuration is fully re-validated before any component is touched; on
// error the vehicle keeps running with its previous configuration.
func (v *Vehicle) Reconfigure(patch core.ConfigPatch) error {
	next := v.cfg.Apply(patch)
	if err := next.Normalize(); err != nil {
		return err
	}
	if err := v.engine.Reconfigure(next.Engine); err != nil {
		return err
	}
	if err := v.trans.Reconfigure(next.Transmission, next.Engine); err != nil {
		return err
	}
	v.chassis.Reconfigure(next)
	v.cfg = next
	v.log.Info().Msg("vehicle reconfigured")
	return nil
}

// Config returns a copy of the active configuration.
func (v *Vehicle) Config() core.VehicleConfig {
	return v.cfg
}

func sanitizeCount(val, fallback float64, counter *int) float64 {
	if !util.Finite(val) {
		*counter++
		return fallback
	}
	return val
}

func sanitizeUnitCount(val float64, counter *int) float64 {
	clean := util.SanitizeUnit(val)
	if clean != val {
		*counter++
	}
	return clean
}

func sanitizeRangeCount(val, lo, hi float64, counter *int) float64 {
	clean := util.SanitizeRange(val, lo, hi)
	if clean != val {
		*counter++
	}
	return clean
}
