package transmission

import (
	"math/rand"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/motorsim/drivetrain/internal/model/core"
)

func autoSpec() core.TransmissionSpec {
	return core.TransmissionSpec{
		Type:         core.TransmissionAutomatic,
		Ratios:       []float64{3.6, 2.1, 1.4, 1.0, 0.8},
		FinalDrive:   4.0,
		Efficiency:   0.9,
		ShiftSeconds: 0.5,
		AutoShift:    true,
	}
}

func cvtSpec() core.TransmissionSpec {
	return core.TransmissionSpec{
		Type:        core.TransmissionCVT,
		CVTRatioMin: 0.5,
		CVTRatioMax: 3.5,
	}
}

func engSpec() core.EngineSpec {
	return core.EngineSpec{DisplacementL: 2.0, Cylinders: 4, IdleRPM: 800, MaxRPM: 6500}
}

func newAuto(t *testing.T) *Transmission {
	t.Helper()
	tr, err := New(autoSpec(), engSpec(), zerolog.Nop())
	require.NoError(t, err)
	return tr
}

func TestNew_ConfigurationErrors(t *testing.T) {
	tests := []struct {
		name string
		spec core.TransmissionSpec
		want error
	}{
		{"empty gear list", core.TransmissionSpec{Type: core.TransmissionAutomatic}, core.ErrNoGearRatios},
		{"inverted CVT range", core.TransmissionSpec{Type: core.TransmissionCVT, CVTRatioMin: 3, CVTRatioMax: 1}, core.ErrBadCVTRange},
		{"zero CVT minimum", core.TransmissionSpec{Type: core.TransmissionCVT, CVTRatioMax: 3}, core.ErrBadCVTRange},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.spec, engSpec(), zerolog.Nop())
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestSetShiftMode_RepositionsGear(t *testing.T) {
	tr := newAuto(t)
	assert.Equal(t, core.ModePark, tr.Mode())
	assert.Equal(t, 0, tr.Gear())

	require.NoError(t, tr.SetShiftMode(core.ModeReverse))
	assert.Equal(t, -1, tr.Gear())

	require.NoError(t, tr.SetShiftMode(core.ModeDrive))
	assert.Equal(t, 1, tr.Gear())

	require.NoError(t, tr.SetShiftMode(core.ModeNeutral))
	assert.Equal(t, 0, tr.Gear())

	// Drive again from neutral restarts in first.
	require.NoError(t, tr.SetShiftMode(core.ModeSport))
	assert.Equal(t, 1, tr.Gear())
}

func TestSetShiftMode_ManualBoxRejectsAutomaticModes(t *testing.T) {
	spec := autoSpec()
	spec.Type = core.TransmissionManual
	tr, err := New(spec, engSpec(), zerolog.Nop())
	require.NoError(t, err)
	assert.Equal(t, core.ModeNeutral, tr.Mode())

	assert.Error(t, tr.SetShiftMode(core.ModeDrive))
	assert.Error(t, tr.SetShiftMode(core.ModePark))
	assert.NoError(t, tr.SetShiftMode(core.ModeManual))
	assert.NoError(t, tr.SetShiftMode(core.ModeReverse))
}

func TestRequestShift_Rejections(t *testing.T) {
	tr := newAuto(t)
	require.NoError(t, tr.SetShiftMode(core.ModeDrive))

	assert.False(t, tr.RequestShift(1, core.ShiftCauseManual), "same gear")
	assert.False(t, tr.RequestShift(0, core.ShiftCauseManual), "neutral not shiftable")
	assert.False(t, tr.RequestShift(6, core.ShiftCauseManual), "beyond top gear")
	assert.False(t, tr.RequestShift(-1, core.ShiftCauseManual), "reverse only via mode")

	require.True(t, tr.RequestShift(2, core.ShiftCauseManual))
	assert.False(t, tr.RequestShift(3, core.ShiftCauseManual), "already shifting")
	assert.Equal(t, 1, tr.Gear(), "rejected request must not alter state")
}

func TestRequestShift_RejectedOutsideDriveModes(t *testing.T) {
	tr := newAuto(t)

	require.NoError(t, tr.SetShiftMode(core.ModePark))
	assert.False(t, tr.RequestShift(1, core.ShiftCauseManual))

	require.NoError(t, tr.SetShiftMode(core.ModeReverse))
	assert.False(t, tr.RequestShift(1, core.ShiftCauseManual))
}

func TestShift_CompletesAfterExactDuration(t *testing.T) {
	tr := newAuto(t)
	require.NoError(t, tr.SetShiftMode(core.ModeDrive))
	require.True(t, tr.RequestShift(2, core.ShiftCauseManual))

	const dt = 1.0 / 60.0
	in := Input{EngineRPM: 3000, Throttle: 0.5}

	steps := int(0.5/dt) - 1 // one step short of shiftSeconds
	for i := 0; i < steps; i++ {
		tr.Update(dt, in)
		assert.True(t, tr.Shifting())
		assert.Equal(t, 1, tr.Gear())
	}

	tr.Update(dt, in) // crosses progress = 1.0 exactly
	assert.False(t, tr.Shifting())
	assert.Equal(t, 2, tr.Gear())
	assert.Equal(t, 1.0, tr.Snapshot().Clutch)
	assert.Equal(t, uint64(1), tr.Snapshot().ShiftCount)

	events := tr.TakeEvents()
	require.Len(t, events, 1)
	assert.Equal(t, 1, events[0].FromGear)
	assert.Equal(t, 2, events[0].ToGear)
	assert.Equal(t, core.ShiftCauseManual, events[0].Cause)
	assert.Empty(t, tr.TakeEvents(), "events are consumed")
}

func TestShift_ClutchRampAndTorqueCut(t *testing.T) {
	tr := newAuto(t)
	require.NoError(t, tr.SetShiftMode(core.ModeDrive))
	require.True(t, tr.RequestShift(2, core.ShiftCauseManual))

	const dt = 0.05 // 10 steps across a 0.5 s shift
	in := Input{EngineRPM: 3000, Throttle: 0.5}

	tr.Update(dt, in) // progress 0.1
	snap := tr.Snapshot()
	assert.InDelta(t, 0.8, snap.Clutch, 1e-9, "disengaging in first half")

	for i := 0; i < 4; i++ {
		tr.Update(dt, in)
	}
	snap = tr.Snapshot() // progress 0.5: fully disengaged
	assert.InDelta(t, 0.0, snap.Clutch, 1e-9)
	assert.InDelta(t, 0.0, snap.OutputTorque, 1e-6, "no torque transfer at shift midpoint")

	tr.Update(dt, in) // progress 0.6: re-engaging
	snap = tr.Snapshot()
	assert.InDelta(t, 0.2, snap.Clutch, 1e-9)

	// Mid-shift efficiency carries the torque cut on top of clutch scaling.
	total := tr.TotalRatio()
	expected := 3000 * total * 0.9 * 0.2 * 0.5
	assert.InDelta(t, expected, snap.OutputTorque, 1e-6)
}

func TestAutoShift_UpshiftAboveThreshold(t *testing.T) {
	tr := newAuto(t)
	require.NoError(t, tr.SetShiftMode(core.ModeDrive))
	tr.gear = 3

	// Default upshift base is 0.82 × maxRPM = 5330; full throttle scales it
	// by 1.1 to 5863.
	tr.Update(1.0/60.0, Input{EngineRPM: 6000, Throttle: 1.0, SpeedMS: 45})
	require.True(t, tr.Shifting(), "upshift must be requested within one tick")
	assert.Equal(t, 4, tr.Snapshot().TargetGear)

	for i := 0; i < 30; i++ {
		tr.Update(1.0/60.0, Input{EngineRPM: 6000, Throttle: 1.0, SpeedMS: 45})
	}
	assert.Equal(t, 4, tr.Gear(), "shift completes within shiftSeconds")
}

func TestAutoShift_ThrottleWidensUpshiftWindow(t *testing.T) {
	// 5500 RPM is above the light-throttle threshold (~4797) but below the
	// full-throttle one (~5863): only the light-throttle case may shift.
	light := newAuto(t)
	require.NoError(t, light.SetShiftMode(core.ModeDrive))
	light.gear = 3
	light.Update(1.0/60.0, Input{EngineRPM: 5500, Throttle: 0.0, SpeedMS: 45})
	assert.True(t, light.Shifting())

	full := newAuto(t)
	require.NoError(t, full.SetShiftMode(core.ModeDrive))
	full.gear = 3
	full.Update(1.0/60.0, Input{EngineRPM: 5500, Throttle: 1.0, SpeedMS: 45})
	assert.False(t, full.Shifting(), "full throttle holds the gear longer")
}

func TestAutoShift_DownshiftAtLowRPM(t *testing.T) {
	tr := newAuto(t)
	require.NoError(t, tr.SetShiftMode(core.ModeDrive))
	tr.gear = 3

	// Default downshift base is 0.35 × maxRPM = 2275; light throttle scales
	// it by 0.8 to 1820.
	tr.Update(1.0/60.0, Input{EngineRPM: 1500, Throttle: 0.0, SpeedMS: 10})
	require.True(t, tr.Shifting())
	assert.Equal(t, 2, tr.Snapshot().TargetGear)
}

func TestAutoShift_Kickdown(t *testing.T) {
	tr := newAuto(t)
	require.NoError(t, tr.SetShiftMode(core.ModeDrive))
	tr.gear = 4

	// RPM is comfortably mid-band; only the kickdown rule can fire.
	tr.Update(1.0/60.0, Input{EngineRPM: 3500, Throttle: 0.95, SpeedMS: 25})
	require.True(t, tr.Shifting())
	assert.Equal(t, 3, tr.Snapshot().TargetGear)

	for i := 0; i < 40; i++ {
		tr.Update(1.0/60.0, Input{EngineRPM: 3500, Throttle: 0.95, SpeedMS: 25})
	}
	events := tr.TakeEvents()
	require.NotEmpty(t, events)
	assert.Equal(t, core.ShiftCauseKickdown, events[0].Cause)
}

func TestAutoShift_NoKickdownOutsideSpeedBand(t *testing.T) {
	tr := newAuto(t)
	require.NoError(t, tr.SetShiftMode(core.ModeDrive))
	tr.gear = 4

	tr.Update(1.0/60.0, Input{EngineRPM: 3500, Throttle: 0.95, SpeedMS: 55})
	assert.False(t, tr.Shifting())
}

func TestCVT_RatioStaysInRange(t *testing.T) {
	tr, err := New(cvtSpec(), engSpec(), zerolog.Nop())
	require.NoError(t, err)
	require.NoError(t, tr.SetShiftMode(core.ModeDrive))

	rng := rand.New(rand.NewSource(11))
	const dt = 1.0 / 60.0
	for i := 0; i < 600; i++ { // 10 simulated seconds
		tr.Update(dt, Input{
			EngineRPM: 800 + rng.Float64()*5000,
			Throttle:  rng.Float64() * 2,
			WheelRPM:  rng.Float64() * 900,
			SpeedMS:   rng.Float64() * 40,
		})
		ratio := tr.Snapshot().CVTRatio
		assert.GreaterOrEqual(t, ratio, 0.5)
		assert.LessOrEqual(t, ratio, 3.5)
	}
}

func TestCVT_RatioMovesAtBoundedRate(t *testing.T) {
	tr, err := New(cvtSpec(), engSpec(), zerolog.Nop())
	require.NoError(t, err)
	require.NoError(t, tr.SetShiftMode(core.ModeDrive))

	before := tr.Snapshot().CVTRatio
	tr.Update(0.1, Input{EngineRPM: 2000, Throttle: 1.0, WheelRPM: 0})
	after := tr.Snapshot().CVTRatio
	// Default rate is 2.0/s: one 0.1 s step moves the ratio at most 0.2.
	assert.LessOrEqual(t, after-before, 0.2+1e-9)
}

func TestCVT_RejectsDiscreteShifts(t *testing.T) {
	tr, err := New(cvtSpec(), engSpec(), zerolog.Nop())
	require.NoError(t, err)
	require.NoError(t, tr.SetShiftMode(core.ModeDrive))
	assert.False(t, tr.RequestShift(2, core.ShiftCauseManual))
}

func TestOutput_Relation(t *testing.T) {
	tr := newAuto(t)
	require.NoError(t, tr.SetShiftMode(core.ModeDrive))
	tr.gear = 2 // ratio 2.1, final drive 4.0

	rpm, torque := tr.Output(3000)
	total := 2.1 * 4.0
	assert.InDelta(t, 3000/total, rpm, 1e-9)
	assert.InDelta(t, 3000*total*0.9, torque, 1e-9)
}

func TestOutput_NeutralIsZero(t *testing.T) {
	tr := newAuto(t)
	require.NoError(t, tr.SetShiftMode(core.ModeNeutral))

	rpm, torque := tr.Output(3000)
	assert.Zero(t, rpm)
	assert.Zero(t, torque)
}

func TestOutput_ReverseIsNegative(t *testing.T) {
	tr := newAuto(t)
	require.NoError(t, tr.SetShiftMode(core.ModeReverse))

	_, torque := tr.Output(2000)
	assert.Negative(t, torque)
}

func TestModeChange_CancelsShiftInProgress(t *testing.T) {
	tr := newAuto(t)
	require.NoError(t, tr.SetShiftMode(core.ModeDrive))
	require.True(t, tr.RequestShift(2, core.ShiftCauseManual))
	tr.Update(0.1, Input{EngineRPM: 3000, Throttle: 0.5})
	require.True(t, tr.Shifting())

	require.NoError(t, tr.SetShiftMode(core.ModeNeutral))
	assert.False(t, tr.Shifting())
	assert.Equal(t, 0, tr.Gear())
	assert.Equal(t, 1.0, tr.Snapshot().Clutch)
}

func TestClutchOverride_ScalesOutput(t *testing.T) {
	tr := newAuto(t)
	require.NoError(t, tr.SetShiftMode(core.ModeDrive))

	tr.Update(1.0/60.0, Input{EngineRPM: 3000, Throttle: 0.3, ClutchOverride: 0.5, HasClutchOverride: true})
	snap := tr.Snapshot()
	assert.InDelta(t, 0.5, snap.Clutch, 1e-9)

	total := tr.TotalRatio()
	assert.InDelta(t, 3000*total*0.9*0.5, snap.OutputTorque, 1e-6)
}
