package vehicle

import (
	"math"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/motorsim/drivetrain/internal/model/core"
)

func testConfig() core.VehicleConfig {
	return core.VehicleConfig{
		Name:         "testbed",
		MassKG:       1500,
		CGHeightM:    0.55,
		WheelbaseM:   2.7,
		TrackM:       1.6,
		WheelRadiusM: 0.33,
		Layout:       core.LayoutRearDrive,
		Engine: core.EngineSpec{
			DisplacementL: 3.0,
			Cylinders:     6,
			IdleRPM:       800,
			MaxRPM:        6500,
			MaxTorqueNM:   420,
			MaxTorqueRPM:  4200,
		},
		Transmission: core.TransmissionSpec{
			Type:      core.TransmissionAutomatic,
			Ratios:    []float64{3.6, 2.1, 1.4, 1.0, 0.8},
			AutoShift: true,
		},
		Aero: core.AeroSpec{
			DragCoeff:     0.32,
			FrontalAreaM2: 2.1,
		},
	}
}

func testVehicle(t *testing.T) *Vehicle {
	t.Helper()
	v, err := New(testConfig(), zerolog.Nop())
	require.NoError(t, err)
	return v
}

func drive(v *Vehicle, seconds float64, in core.ControlInputs) core.Snapshot {
	const dt = 1.0 / 60.0
	var snap core.Snapshot
	for elapsed := 0.0; elapsed < seconds; elapsed += dt {
		snap = v.Update(dt, in)
	}
	return snap
}

func TestNew_InvalidConfigFails(t *testing.T) {
	cfg := testConfig()
	cfg.MassKG = 0
	_, err := New(cfg, zerolog.Nop())
	require.ErrorIs(t, err, core.ErrNoMass)
}

func TestUpdate_ZeroDtReturnsPreviousSnapshot(t *testing.T) {
	v := testVehicle(t)
	require.NoError(t, v.SetShiftMode(core.ModeDrive))
	before := v.Update(1.0/60.0, core.ControlInputs{Throttle: 1})

	again := v.Update(0, core.ControlInputs{Throttle: 1})

	assert.Equal(t, before, again)
	assert.Equal(t, before.Tick, v.Snapshot().Tick)
}

func TestUpdate_FullThrottleLaunch(t *testing.T) {
	v := testVehicle(t)
	require.NoError(t, v.SetShiftMode(core.ModeDrive))

	snap := drive(v, 30, core.ControlInputs{Throttle: 1})

	assert.Greater(t, snap.Chassis.Speed, 20.0, "thirty seconds of full throttle must reach highway speed")
	assert.GreaterOrEqual(t, snap.Transmission.Gear, 3, "the automatic must have shifted up")
	assert.LessOrEqual(t, snap.Engine.RPM, v.Config().Engine.MaxRPM*1.1+1e-9)
	assert.GreaterOrEqual(t, snap.Engine.RPM, v.Config().Engine.IdleRPM*0.8-1e-9)
	assert.Greater(t, snap.FuelUsedL, 0.0)
	assert.Greater(t, snap.Chassis.Position.X, 0.0)
}

func TestUpdate_AutoShiftEventsAreOrdered(t *testing.T) {
	v := testVehicle(t)
	require.NoError(t, v.SetShiftMode(core.ModeDrive))

	drive(v, 20, core.ControlInputs{Throttle: 1})

	events := v.TakeShiftEvents()
	require.NotEmpty(t, events)
	for _, ev := range events {
		assert.Equal(t, ev.FromGear+1, ev.ToGear, "full-throttle run must only upshift one gear at a time")
		assert.Equal(t, core.ShiftCauseAuto, ev.Cause)
		assert.Greater(t, ev.Duration, 0.0)
	}
	assert.Empty(t, v.TakeShiftEvents(), "taking events must drain them")
}

func TestUpdate_SubStepsAreCapped(t *testing.T) {
	v := testVehicle(t)
	require.NoError(t, v.SetShiftMode(core.ModeDrive))

	snap := v.Update(1.0, core.ControlInputs{Throttle: 0.5})

	assert.Equal(t, v.Config().Integration.MaxSubSteps, snap.SubSteps)
	assert.True(t, snap.Chassis.Velocity.Finite())
}

func TestUpdate_SmallDtUsesSingleStep(t *testing.T) {
	v := testVehicle(t)
	snap := v.Update(v.Config().Integration.StepSeconds/2, core.ControlInputs{})
	assert.Equal(t, 1, snap.SubSteps)
}

func TestUpdate_MalformedInputsSanitizedNotFatal(t *testing.T) {
	v := testVehicle(t)
	require.NoError(t, v.SetShiftMode(core.ModeDrive))
	nan := math.NaN()

	var snap core.Snapshot
	for i := 0; i < 120; i++ {
		snap = v.Update(1.0/60.0, core.ControlInputs{
			Throttle: nan,
			Brake:    math.Inf(1),
			Steering: nan,
		})
	}

	assert.GreaterOrEqual(t, snap.SanitizedInputs, 3)
	assert.True(t, snap.Chassis.Position.Finite())
	assert.True(t, snap.Chassis.Velocity.Finite())
	assert.False(t, math.IsNaN(snap.Engine.RPM))
	assert.False(t, math.IsNaN(snap.Transmission.OutputTorque))

	// A NaN dt is treated as zero and leaves the state untouched.
	before := v.Snapshot()
	assert.Equal(t, before, v.Update(nan, core.ControlInputs{Throttle: 1}))
}

func TestUpdate_OutputRelationHoldsOutsideShifts(t *testing.T) {
	v := testVehicle(t)
	require.NoError(t, v.SetShiftMode(core.ModeDrive))

	snap := drive(v, 2, core.ControlInputs{Throttle: 0.4})
	require.False(t, snap.Transmission.Shifting)

	want := snap.Engine.RPM * snap.Transmission.TotalRatio * v.Config().Transmission.Efficiency
	assert.InDelta(t, want, snap.Transmission.OutputTorque, math.Abs(want)*1e-9+1e-9)
}

func TestUpdate_BrakeBringsVehicleToRest(t *testing.T) {
	v := testVehicle(t)
	require.NoError(t, v.SetShiftMode(core.ModeDrive))
	launched := drive(v, 5, core.ControlInputs{Throttle: 1})
	require.Greater(t, launched.Chassis.Speed, 5.0)

	stopped := drive(v, 10, core.ControlInputs{Brake: 1})

	assert.Less(t, stopped.Chassis.Speed, 1.0)
	assert.GreaterOrEqual(t, stopped.Engine.RPM, v.Config().Engine.IdleRPM*0.8-1e-9,
		"engine speed must never fall below the soft floor")
}

func TestUpdate_ReverseDrivesBackward(t *testing.T) {
	v := testVehicle(t)
	require.NoError(t, v.SetShiftMode(core.ModeReverse))

	snap := drive(v, 4, core.ControlInputs{Throttle: 0.4})

	assert.Less(t, snap.Chassis.Velocity.X, 0.0)
	assert.Less(t, snap.Chassis.Position.X, 0.0)
}

func TestUpdate_ParkProducesNoMotion(t *testing.T) {
	v := testVehicle(t)

	snap := drive(v, 2, core.ControlInputs{Throttle: 1})

	assert.Zero(t, snap.Transmission.Gear)
	assert.InDelta(t, 0.0, snap.Chassis.Speed, 1e-9)
	assert.Greater(t, snap.Engine.RPM, v.Config().Engine.IdleRPM, "the engine still revs freely in park")
}

func TestUpdate_InstancesAreIndependent(t *testing.T) {
	a := testVehicle(t)
	b := testVehicle(t)
	require.NoError(t, a.SetShiftMode(core.ModeDrive))

	drive(a, 5, core.ControlInputs{Throttle: 1})

	assert.Zero(t, b.Snapshot().Tick)
	assert.InDelta(t, 0.0, b.Snapshot().Chassis.Speed, 1e-9)
}

func TestSubscribe_ObserverSeesEveryTick(t *testing.T) {
	v := testVehicle(t)
	require.NoError(t, v.SetShiftMode(core.ModeDrive))

	var ticks []uint64
	v.Subscribe(func(s core.Snapshot) { ticks = append(ticks, s.Tick) })

	for i := 0; i < 10; i++ {
		v.Update(1.0/60.0, core.ControlInputs{Throttle: 0.5})
	}
	v.Update(0, core.ControlInputs{}) // no tick, no notification

	require.Len(t, ticks, 10)
	for i, tick := range ticks {
		assert.Equal(t, uint64(i+1), tick)
	}
}

func TestService_ReducesAccumulatedWear(t *testing.T) {
	v := testVehicle(t)

	// Free-revving at redline in park accumulates wear.
	for i := 0; i < 6000; i++ {
		v.Update(0.1, core.ControlInputs{Throttle: 1})
	}
	worn := v.Snapshot().Engine.Wear
	require.Greater(t, worn, 0.0)

	v.Service()
	v.Update(1.0/60.0, core.ControlInputs{})

	assert.Less(t, v.Snapshot().Engine.Wear, worn)
}

func TestReconfigure_AppliesPatchAndRejectsBadOnes(t *testing.T) {
	v := testVehicle(t)
	require.NoError(t, v.SetShiftMode(core.ModeDrive))
	drive(v, 2, core.ControlInputs{Throttle: 1})

	mass := 1800.0
	require.NoError(t, v.Reconfigure(core.ConfigPatch{MassKG: &mass}))
	assert.Equal(t, mass, v.Config().MassKG)

	badRPM := 100.0 // below idle
	err := v.Reconfigure(core.ConfigPatch{MaxRPM: &badRPM})
	require.ErrorIs(t, err, core.ErrBadRPMRange)
	assert.Equal(t, mass, v.Config().MassKG, "a rejected patch must leave the previous configuration")

	snap := v.Update(1.0/60.0, core.ControlInputs{Throttle: 0.5})
	assert.True(t, snap.Chassis.Velocity.Finite(), "the vehicle keeps running after a rejected patch")
}

func TestApplyImpulse_AddsVelocity(t *testing.T) {
	v := testVehicle(t)

	v.ApplyImpulse(core.Vec3{X: 5})
	snap := v.Update(1.0/60.0, core.ControlInputs{})

	assert.Greater(t, snap.Chassis.Speed, 3.0)
}
