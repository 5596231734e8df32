package core

// EngineOutput is the per-step result of the engine dynamics model.
type EngineOutput struct {
	RPM         float64 `json:"rpm"`
	Torque      float64 `json:"torque"`
	Temperature float64 `json:"temperature"`
	Wear        float64 `json:"wear"`
}

// EngineSnapshot is the full engine state published once per tick.
type EngineSnapshot struct {
	RPM         float64 `json:"rpm"`
	TargetRPM   float64 `json:"targetRPM"`
	Torque      float64 `json:"torque"`
	ThrottlePos float64 `json:"throttlePos"`
	Temperature float64 `json:"temperature"`
	Wear        float64 `json:"wear"`
	OilPressure float64 `json:"oilPressure"` // bar
	FuelRateLPH float64 `json:"fuelRateLPH"` // litres per hour
}

// TransmissionSnapshot is the transmission state published once per tick.
type TransmissionSnapshot struct {
	Gear          int       `json:"gear"` // -1 reverse, 0 neutral, 1..N forward
	TargetGear    int       `json:"targetGear"`
	Shifting      bool      `json:"shifting"`
	ShiftProgress float64   `json:"shiftProgress"`
	Clutch        float64   `json:"clutch"`
	Mode          ShiftMode `json:"mode"`
	CVTRatio      float64   `json:"cvtRatio"`
	TotalRatio    float64   `json:"totalRatio"`
	OutputRPM     float64   `json:"outputRPM"`
	OutputTorque  float64   `json:"outputTorque"`
	ShiftCount    uint64    `json:"shiftCount"`
}

// ChassisSnapshot is the chassis motion state published once per tick. It is
// the read-only view consumed by rendering and collision collaborators.
type ChassisSnapshot struct {
	Position     Vec3    `json:"position"`
	Velocity     Vec3    `json:"velocity"`
	Acceleration Vec3    `json:"acceleration"`
	YawRad       float64 `json:"yawRad"`
	YawRateRad   float64 `json:"yawRateRad"`

	WheelSpeeds [WheelCount]float64 `json:"wheelSpeeds"` // m/s at contact patch
	WheelSlip   [WheelCount]float64 `json:"wheelSlip"`   // m/s wheel minus ground
	WheelLoads  [WheelCount]float64 `json:"wheelLoads"`  // newtons after transfer

	Downforce float64 `json:"downforce"` // newtons
	Speed     float64 `json:"speed"`     // m/s scalar
}

// Snapshot is the complete per-tick state of one vehicle, returned by every
// update call and handed to observers.
type Snapshot struct {
	Tick    uint64  `json:"tick"`
	SimTime float64 `json:"simTime"` // seconds since run start

	Engine       EngineSnapshot       `json:"engine"`
	Transmission TransmissionSnapshot `json:"transmission"`
	Chassis      ChassisSnapshot      `json:"chassis"`

	FuelUsedL float64 `json:"fuelUsedL"`

	// Tick bookkeeping for monitoring.
	SubSteps        int `json:"subSteps"`
	SanitizedInputs int `json:"sanitizedInputs"`
}
