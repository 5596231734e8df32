// Package transmission implements the gear-shift state machine: selector
// modes, clutch-timed shifts, automatic up/down/kickdown logic and the
// continuously-variable ratio controller.
package transmission

import (
	"fmt"
	"math"

	"github.com/rs/zerolog"

	"github.com/motorsim/drivetrain/internal/model/core"
	"github.com/motorsim/drivetrain/internal/util"
)

const (
	minTotalRatio  = 1e-6
	shiftTorqueCut = 0.5 // efficiency multiplier while a shift is in progress
)

// Input is the per-step input to Update, produced by the composing vehicle.
type Input struct {
	EngineRPM float64
	Throttle  float64 // sanitized 0..1
	WheelRPM  float64 // driven-wheel rotational speed
	SpeedMS   float64 // vehicle speed scalar

	ClutchOverride    float64 // 0..1, used when HasClutchOverride
	HasClutchOverride bool
}

// ShiftEvent records one completed gear change.
type ShiftEvent struct {
	FromGear int
	ToGear   int
	Cause    core.ShiftCause
	Duration float64 // seconds
}

// Transmission is one vehicle's transmission instance.
type Transmission struct {
	spec    core.TransmissionSpec
	idleRPM float64
	maxRPM  float64
	log     zerolog.Logger

	mode       core.ShiftMode
	gear       int // -1 reverse, 0 neutral, 1..N forward
	targetGear int
	shifting   bool
	progress   float64
	shiftCause core.ShiftCause
	clutch     float64
	cvtRatio   float64
	shiftCount uint64

	outputRPM    float64
	outputTorque float64

	events []ShiftEvent
}

// New constructs a transmission. Configuration errors (empty gear list,
// inverted CVT range) are fatal here.
func New(spec core.TransmissionSpec, engineSpec core.EngineSpec, log zerolog.Logger) (*Transmission, error) {
	if err := spec.Normalize(engineSpec.MaxRPM); err != nil {
		return nil, fmt.Errorf("invalid transmission spec: %w", err)
	}
	t := &Transmission{
		spec:    spec,
		idleRPM: engineSpec.IdleRPM,
		maxRPM:  engineSpec.MaxRPM,
		log:     log,
		clutch:  1.0,
	}
	if spec.Type == core.TransmissionManual {
		t.mode = core.ModeNeutral
	} else {
		t.mode = core.ModePark
	}
	if spec.Type == core.TransmissionCVT {
		t.cvtRatio = spec.CVTRatioMin
	}
	return t, nil
}

// Reconfigure swaps the spec, preserving gear state clamped into the new
// valid range.
func (t *Transmission) Reconfigure(spec core.TransmissionSpec, engineSpec core.EngineSpec) error {
	if err := spec.Normalize(engineSpec.MaxRPM); err != nil {
		return fmt.Errorf("invalid transmission spec: %w", err)
	}
	t.abortShift()
	t.spec = spec
	t.idleRPM = engineSpec.IdleRPM
	t.maxRPM = engineSpec.MaxRPM
	if t.gear > spec.Gears() {
		t.gear = spec.Gears()
	}
	if spec.Type == core.TransmissionCVT {
		t.cvtRatio = util.Clamp(t.cvtRatio, spec.CVTRatioMin, spec.CVTRatioMax)
	}
	return nil
}

// SetShiftMode changes the selector position. Mode changes are immediate,
// cancel any shift in progress and reposition the current gear.
func (t *Transmission) SetShiftMode(mode core.ShiftMode) error {
	if t.spec.Type == core.TransmissionManual {
		switch mode {
		case core.ModeNeutral, core.ModeReverse, core.ModeManual:
		default:
			return fmt.Errorf("shift mode %s not available on a manual gearbox", mode)
		}
	}
	t.abortShift()
	t.mode = mode
	switch mode {
	case core.ModePark, core.ModeNeutral:
		t.gear = 0
	case core.ModeReverse:
		t.gear = -1
	case core.ModeDrive, core.ModeSport, core.ModeManual:
		if t.gear < 1 {
			t.gear = 1
		}
	}
	return nil
}

func (t *Transmission) abortShift() {
	t.shifting = false
	t.progress = 0
	t.clutch = 1.0
}

// RequestShift asks for a change to target gear. It reports false without
// altering state when a shift is already in progress, the target equals the
// current gear, or the target is outside the mode's valid range.
func (t *Transmission) RequestShift(target int, cause core.ShiftCause) bool {
	if t.shifting || target == t.gear {
		return false
	}
	if t.spec.Type == core.TransmissionCVT {
		return false
	}
	switch t.mode {
	case core.ModeDrive, core.ModeSport, core.ModeManual:
		if target < 1 || target > t.spec.Gears() {
			return false
		}
	default:
		return false
	}

	t.shifting = true
	t.targetGear = target
	t.progress = 0
	t.shiftCause = cause
	return true
}

// RequestUpshift requests a shift to the next higher gear.
func (t *Transmission) RequestUpshift(cause core.ShiftCause) bool {
	return t.RequestShift(t.gear+1, cause)
}

// RequestDownshift requests a shift to the next lower gear.
func (t *Transmission) RequestDownshift(cause core.ShiftCause) bool {
	return t.RequestShift(t.gear-1, cause)
}

// Update advances the shift process, the automatic shift logic and the CVT
// ratio controller by dt seconds, then recomputes the output torque/RPM pair.
func (t *Transmission) Update(dt float64, in Input) {
	dt = math.Max(util.Sanitize(dt, 0), 0)
	in.Throttle = util.SanitizeUnit(in.Throttle)
	in.EngineRPM = util.Sanitize(in.EngineRPM, t.idleRPM)
	in.WheelRPM = util.Sanitize(in.WheelRPM, 0)
	in.SpeedMS = util.Sanitize(in.SpeedMS, 0)
	if dt > 0 {
		if t.shifting {
			t.advanceShift(dt)
		} else {
			t.clutch = 1.0
			if in.HasClutchOverride {
				t.clutch = util.SanitizeUnit(in.ClutchOverride)
			}
			t.evalAutoShift(in)
		}
		if t.spec.Type == core.TransmissionCVT {
			t.stepCVT(dt, in)
		}
	}

	t.outputRPM, t.outputTorque = t.Output(in.EngineRPM)
}

// advanceShift moves shift progress linearly toward 1, ramping the clutch
// out over the first half and back in over the second.
func (t *Transmission) advanceShift(dt float64) {
	t.progress += dt / t.spec.ShiftSeconds
	if t.progress >= 1-1e-9 {
		from := t.gear
		t.gear = t.targetGear
		t.shifting = false
		t.progress = 0
		t.clutch = 1.0
		t.shiftCount++
		t.events = append(t.events, ShiftEvent{
			FromGear: from,
			ToGear:   t.gear,
			Cause:    t.shiftCause,
			Duration: t.spec.ShiftSeconds,
		})
		t.log.Debug().
			Int("from", from).
			Int("to", t.gear).
			Str("cause", t.shiftCause.String()).
			Msg("Shift completed")
		return
	}
	if t.progress < 0.5 {
		t.clutch = 1 - 2*t.progress
	} else {
		t.clutch = 2*t.progress - 1
	}
}

// evalAutoShift runs the automatic up/down/kickdown decision. Only automatic
// boxes in Drive or Sport shift on their own.
func (t *Transmission) evalAutoShift(in Input) {
	if !t.spec.AutoShift || t.spec.Type != core.TransmissionAutomatic {
		return
	}
	if t.mode != core.ModeDrive && t.mode != core.ModeSport {
		return
	}
	if t.gear < 1 {
		return
	}

	// Sport holds every gear a little longer in both directions.
	modeBias := 1.0
	if t.mode == core.ModeSport {
		modeBias = 1.06
	}

	// Kickdown: hard throttle in the passing band forces a downshift. Only
	// fires while the engine still has rev headroom, otherwise a hard launch
	// would hunt between gears.
	if in.Throttle > 0.8 && t.gear > 1 && in.EngineRPM < 0.7*t.maxRPM &&
		in.SpeedMS > t.spec.KickdownMinSpeed && in.SpeedMS < t.spec.KickdownMaxSpeed {
		if t.RequestDownshift(core.ShiftCauseKickdown) {
			return
		}
	}

	// More throttle buys more RPM headroom before an upshift.
	upThreshold := t.spec.UpshiftRPM[t.gear-1] * (0.9 + 0.2*in.Throttle) * modeBias
	if t.gear < t.spec.Gears() && in.EngineRPM > upThreshold {
		t.RequestUpshift(core.ShiftCauseAuto)
		return
	}

	// Light throttle tolerates lower RPM before dropping a gear.
	if t.gear > 1 {
		downThreshold := t.spec.DownshiftRPM[t.gear-1] * (0.8 + 0.5*in.Throttle) * modeBias
		if in.EngineRPM < downThreshold {
			t.RequestDownshift(core.ShiftCauseAuto)
		}
	}
}

// stepCVT pursues a throttle-derived RPM set-point by moving the live ratio
// toward the required one at a bounded rate.
func (t *Transmission) stepCVT(dt float64, in Input) {
	if t.mode != core.ModeDrive && t.mode != core.ModeSport {
		return
	}
	setPoint := t.idleRPM + (t.maxRPM-t.idleRPM)*(0.25+0.6*in.Throttle)

	target := t.spec.CVTRatioMax // launch ratio when the wheels are stopped
	if in.WheelRPM > 1 {
		target = util.Clamp(
			setPoint/(in.WheelRPM*t.spec.FinalDrive),
			t.spec.CVTRatioMin, t.spec.CVTRatioMax,
		)
	}
	t.cvtRatio = util.MoveToward(t.cvtRatio, target, t.spec.CVTRatePerSec*dt)
}

// TotalRatio is the combined gear (or CVT) and final-drive ratio.
func (t *Transmission) TotalRatio() float64 {
	var ratio float64
	switch {
	case t.spec.Type == core.TransmissionCVT:
		if t.mode == core.ModeReverse {
			ratio = t.spec.ReverseRatio
		} else if t.mode == core.ModeDrive || t.mode == core.ModeSport {
			ratio = t.cvtRatio
		}
	case t.gear == -1:
		ratio = t.spec.ReverseRatio
	case t.gear >= 1 && t.gear <= t.spec.Gears():
		ratio = t.spec.Ratios[t.gear-1]
	}
	return ratio * t.spec.FinalDrive
}

// Output converts engine RPM into the output RPM/torque pair through the
// total ratio, clutch position and shift torque cut. A near-zero total ratio
// yields zero output.
func (t *Transmission) Output(engineRPM float64) (rpm, torque float64) {
	total := t.TotalRatio()
	if math.Abs(total) < minTotalRatio {
		return 0, 0
	}
	eff := t.spec.Efficiency * t.clutch
	if t.shifting {
		eff *= shiftTorqueCut
	}
	return engineRPM / total, engineRPM * total * eff
}

// TakeEvents returns completed shift events since the last call and clears
// the internal buffer.
func (t *Transmission) TakeEvents() []ShiftEvent {
	out := t.events
	t.events = nil
	return out
}

// Gear returns the current gear (-1 reverse, 0 neutral, 1..N forward).
func (t *Transmission) Gear() int {
	return t.gear
}

// Mode returns the current selector position.
func (t *Transmission) Mode() core.ShiftMode {
	return t.mode
}

// Shifting reports whether a gear change is in progress.
func (t *Transmission) Shifting() bool {
	return t.shifting
}

// Snapshot returns the full transmission state for publication.
func (t *Transmission) Snapshot() core.TransmissionSnapshot {
	return core.TransmissionSnapshot{
		Gear:          t.gear,
		TargetGear:    t.targetGear,
		Shifting:      t.shifting,
		ShiftProgress: t.progress,
		Clutch:        t.clutch,
		Mode:          t.mode,
		CVTRatio:      t.cvtRatio,
		TotalRatio:    t.TotalRatio(),
		OutputRPM:     t.outputRPM,
		OutputTorque:  t.outputTorque,
		ShiftCount:    t.shiftCount,
	}
}
