// Package chassis implements the force aggregation and integration layer:
// aerodynamics, braking, tire and drivetrain force summation, Euler
// integration of the body state, steering-derived yaw, per-wheel speed/slip
// bookkeeping and weight transfer.
package chassis

import (
	"math"

	"github.com/rs/zerolog"

	"github.com/motorsim/drivetrain/internal/model/core"
	"github.com/motorsim/drivetrain/internal/util"
)

const (
	maxSteerRad    = 0.61 // ~35° road-car steering lock
	brakeRefSpeed  = 3.0  // m/s; below this, brake force fades to avoid sign flips
	latGripPerSec  = 3.0  // lateral velocity decay rate at full grip
	wheelAccel     = 30.0 // m/s² wheel speed pursuit rate
	driveSlipScale = 2.0  // m/s wheel overspeed at full traction use
	brakeSlipScale = 3.0  // m/s wheel underspeed at full brake
)

// StepInput is the per-sub-step input to the chassis, assembled by the
// composing vehicle from drivetrain output and external collaborators.
type StepInput struct {
	DriveForce float64 // longitudinal force at the contact patch, N, signed
	Brake      float64 // sanitized 0..1
	Steering   float64 // sanitized -1..1, positive = left
	Contacts   [core.WheelCount]core.WheelContact
}

// Chassis is one vehicle's body state and integrator.
type Chassis struct {
	cfg core.VehicleConfig
	log zerolog.Logger

	position     core.Vec3
	velocity     core.Vec3
	acceleration core.Vec3
	yaw          float64
	yawRate      float64

	wheelSpeeds [core.WheelCount]float64
	wheelSlip   [core.WheelCount]float64
	wheelLoads  [core.WheelCount]float64
	downforce   float64
}

// New constructs a chassis at rest. cfg must already be normalized.
func New(cfg core.VehicleConfig, log zerolog.Logger) *Chassis {
	c := &Chassis{cfg: cfg, log: log}
	static := cfg.MassKG * core.Gravity / core.WheelCount
	for i := range c.wheelLoads {
		c.wheelLoads[i] = static
	}
	return c
}

// Reconfigure swaps the configuration; motion state carries over.
func (c *Chassis) Reconfigure(cfg core.VehicleConfig) {
	c.cfg = cfg
}

// DrivenWheels returns the wheel indices receiving engine force for the
// configured layout.
func (c *Chassis) DrivenWheels() []int {
	switch c.cfg.Layout {
	case core.LayoutFrontDrive:
		return []int{core.WheelFL, core.WheelFR}
	case core.LayoutAllDrive:
		return []int{core.WheelFL, core.WheelFR, core.WheelRL, core.WheelRR}
	default:
		return []int{core.WheelRL, core.WheelRR}
	}
}

// TractionLimit is the maximum longitudinal force the driven wheels can
// transmit given the current per-wheel grip and load plus downforce.
func (c *Chassis) TractionLimit(contacts [core.WheelCount]core.WheelContact) float64 {
	var limit float64
	for _, i := range c.DrivenWheels() {
		load := math.Max(contacts[i].Load, 0) + c.downforce/core.WheelCount
		limit += util.Clamp(contacts[i].Grip, 0, 2) * load
	}
	return limit
}

// Step advances the body by one fixed sub-step of dt seconds. All inputs are
// sanitized; the step never fails and always leaves finite state.
func (c *Chassis) Step(dt float64, in StepInput) {
	dt = math.Max(util.Sanitize(dt, 0), 0)
	if dt == 0 {
		return
	}
	in.Brake = util.SanitizeUnit(in.Brake)
	in.Steering = util.SanitizeRange(in.Steering, -1, 1)
	in.DriveForce = util.SanitizeRange(in.DriveForce, -1e6, 1e6)
	for i := range in.Contacts {
		in.Contacts[i].Grip = util.SanitizeRange(in.Contacts[i].Grip, 0, 2)
		in.Contacts[i].Load = util.SanitizeRange(in.Contacts[i].Load, 0, 1e6)
		in.Contacts[i].Slip = util.Sanitize(in.Contacts[i].Slip, 0)
	}

	speed := math.Hypot(c.velocity.X, c.velocity.Y)
	headX, headY := math.Cos(c.yaw), math.Sin(c.yaw)

	// Downforce scales with the square of speed and feeds the tire loads
	// before the drive force is traction-limited.
	c.downforce = c.cfg.Aero.DownforceCoeff * speed * speed

	limit := c.TractionLimit(in.Contacts)
	drive := util.Clamp(in.DriveForce, -limit, limit)

	// Aerodynamic drag opposes velocity, quadratic in speed.
	dragMag := 0.5 * c.cfg.Aero.AirDensity * c.cfg.Aero.DragCoeff * c.cfg.Aero.FrontalAreaM2 * speed
	fx := drive*headX - dragMag*c.velocity.X
	fy := drive*headY - dragMag*c.velocity.Y

	// Brake force opposes motion, fading out near standstill.
	if speed > 1e-6 {
		brakeMag := in.Brake * c.cfg.BrakeForceN * util.Clamp01(speed/brakeRefSpeed)
		fx -= brakeMag * c.velocity.X / speed
		fy -= brakeMag * c.velocity.Y / speed
	}

	// Tire lateral force bleeds off the velocity component perpendicular to
	// the heading, scaled by average grip and boosted by downforce.
	along := c.velocity.X*headX + c.velocity.Y*headY
	latX := c.velocity.X - along*headX
	latY := c.velocity.Y - along*headY
	avgGrip := (in.Contacts[0].Grip + in.Contacts[1].Grip + in.Contacts[2].Grip + in.Contacts[3].Grip) / 4
	latRate := latGripPerSec * avgGrip * (1 + c.downforce/(c.cfg.MassKG*core.Gravity))
	fx -= c.cfg.MassKG * latRate * latX
	fy -= c.cfg.MassKG * latRate * latY

	c.acceleration = core.Vec3{X: fx / c.cfg.MassKG, Y: fy / c.cfg.MassKG}

	c.velocity = c.velocity.Add(c.acceleration.Scale(dt))
	c.position = c.position.Add(c.velocity.Scale(dt))
	c.position.Z = 0
	c.velocity.Z = 0

	// Bicycle-model yaw: steering angle and speed set the yaw rate.
	c.yawRate = in.Steering * maxSteerRad * speed / c.cfg.WheelbaseM
	c.yaw += c.yawRate * dt
	c.yaw = wrapAngle(c.yaw)

	c.updateWeightTransfer(in, speed)
	c.updateWheels(dt, in, drive, limit, speed)

	// Uniform damping suppresses runaway accumulation, then clamp to sane
	// bounds.
	damp := 1 / (1 + c.cfg.Integration.DampingPerSec*dt)
	c.velocity = c.velocity.Scale(damp).ClampLength(c.cfg.Integration.MaxSpeedMS)
	c.yawRate *= damp
}

// updateWeightTransfer redistributes the externally supplied wheel loads
// plus downforce according to the current acceleration.
func (c *Chassis) updateWeightTransfer(in StepInput, speed float64) {
	headX, headY := math.Cos(c.yaw), math.Sin(c.yaw)
	ax := c.acceleration.X*headX + c.acceleration.Y*headY
	ay := c.yawRate * speed // centripetal

	longShift := c.cfg.MassKG * ax * c.cfg.CGHeightM / c.cfg.WheelbaseM
	latShift := c.cfg.MassKG * ay * c.cfg.CGHeightM / c.cfg.TrackM

	for i := range c.wheelLoads {
		load := in.Contacts[i].Load + c.downforce/core.WheelCount
		// Acceleration unloads the front axle, loads the rear.
		if i == core.WheelFL || i == core.WheelFR {
			load -= longShift / 2
		} else {
			load += longShift / 2
		}
		// A left turn (positive yaw rate) loads the right side.
		if i == core.WheelFL || i == core.WheelRL {
			load -= latShift / 2
		} else {
			load += latShift / 2
		}
		c.wheelLoads[i] = math.Max(load, 0)
	}
}

// updateWheels pursues each wheel's target contact-patch speed and records
// slip against the ground speed at that wheel.
func (c *Chassis) updateWheels(dt float64, in StepInput, drive, limit, speed float64) {
	driven := [core.WheelCount]bool{}
	for _, i := range c.DrivenWheels() {
		driven[i] = true
	}

	for i := range c.wheelSpeeds {
		ground := speed
		// Wheels on the inside of the turn run slower.
		half := c.yawRate * c.cfg.TrackM / 2
		if i == core.WheelFL || i == core.WheelRL {
			ground -= half
		} else {
			ground += half
		}
		ground = math.Max(ground, 0)

		target := ground
		if driven[i] && limit > 0 {
			target += driveSlipScale * math.Abs(drive) / limit
		}
		if in.Brake > 0 {
			target -= brakeSlipScale * in.Brake * util.Clamp01(speed/brakeRefSpeed)
			target = math.Max(target, 0)
		}

		c.wheelSpeeds[i] = util.MoveToward(c.wheelSpeeds[i], target, wheelAccel*dt)
		c.wheelSlip[i] = c.wheelSpeeds[i] - ground
	}
}

// ApplyImpulse adds an externally computed velocity change (collision
// knockback) directly to the body velocity. Non-finite components are
// ignored.
func (c *Chassis) ApplyImpulse(dv core.Vec3) {
	if !dv.Finite() {
		return
	}
	c.velocity = c.velocity.Add(dv).ClampLength(c.cfg.Integration.MaxSpeedMS)
}

// Speed returns the current horizontal speed scalar, m/s.
func (c *Chassis) Speed() float64 {
	return math.Hypot(c.velocity.X, c.velocity.Y)
}

// WheelRPM returns the mean driven-wheel rotational speed in RPM.
func (c *Chassis) WheelRPM() float64 {
	driven := c.DrivenWheels()
	var sum float64
	for _, i := range driven {
		sum += c.wheelSpeeds[i]
	}
	mean := sum / float64(len(driven))
	return mean / (2 * math.Pi * c.cfg.WheelRadiusM) * 60
}

// Snapshot returns the chassis state for publication.
func (c *Chassis) Snapshot() core.ChassisSnapshot {
	return core.ChassisSnapshot{
		Position:     c.position,
		Velocity:     c.velocity,
		Acceleration: c.acceleration,
		YawRad:       c.yaw,
		YawRateRad:   c.yawRate,
		WheelSpeeds:  c.wheelSpeeds,
		WheelSlip:    c.wheelSlip,
		WheelLoads:   c.wheelLoads,
		Downforce:    c.downforce,
		Speed:        c.Speed(),
	}
}

// wrapAngle normalizes an angle to [-π, π).
func wrapAngle(a float64) float64 {
	wrapped := math.Mod(a+math.Pi, 2*math.Pi)
	if wrapped < 0 {
		wrapped += 2 * math.Pi
	}
	return wrapped - math.Pi
}
