package model

import (
	"time"

	geom "github.com/peterstace/simplefeatures/geom"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

////////////////////////
// DATABASE STRUCTURES //
////////////////////////

// DatabaseModels is a list of all the structs exported here which represent tables in the database schema
var DatabaseModels = []interface{}{
	&SimInfo{},
	&Track{},
	&Run{},
	&VehicleRecord{},
	&VehicleTickState{},
	&ShiftEventRecord{},
	&RunPerformance{},
}

var DatabaseModelsSQLite = []interface{}{
	&SimInfo{},
	&Track{},
	&Run{},
	&VehicleRecord{},
	&VehicleTickState{},
	&ShiftEventRecord{},
	&RunPerformance{},
}

////////////////////////
// SYSTEM MODELS
////////////////////////

// SimInfo contains information about the simulator instance
type SimInfo struct {
	gorm.Model
	InstanceName string `json:"instanceName" gorm:"size:127"`
	Description  string `json:"description" gorm:"size:255"`
	Version      string `json:"version" gorm:"size:64"`
}

func (*SimInfo) TableName() string {
	return "sim_infos"
}

// RunPerformance is the model for simulation loop performance metrics
type RunPerformance struct {
	Time                time.Time     `json:"time" gorm:"type:timestamptz;index:idx_time"`
	RunID               uint          `json:"runId" gorm:"index:idx_runperformance_run_id"`
	Run                 Run           `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;foreignkey:RunID;"`
	QueueLengths        QueueLengths  `json:"queueLengths" gorm:"embedded;embeddedPrefix:queue_"`
	TicksSimulated      uint64        `json:"ticksSimulated"`
	SubStepsSimulated   uint64        `json:"subStepsSimulated"`
	SanitizedInputs     uint64        `json:"sanitizedInputs"`
	LastTickDurationMs  float32       `json:"lastTickDurationMs"`
	LastWriteDurationMs float32       `json:"lastWriteDurationMs"`
}

func (*RunPerformance) TableName() string {
	return "run_performances"
}

// QueueLengths is the model for the storage write queue lengths
type QueueLengths struct {
	TickStates  uint16 `json:"tickStates"`
	ShiftEvents uint16 `json:"shiftEvents"`
	Performance uint16 `json:"performance"`
}

////////////////////////
// RECORDING MODELS
////////////////////////

// Track is the course a run is driven on
type Track struct {
	gorm.Model
	DisplayName string     `json:"displayName" gorm:"size:127"`
	TrackName   string     `json:"trackName" gorm:"size:127"`
	LengthM     float32    `json:"lengthM"`
	Surface     string     `json:"surface" gorm:"size:32;default:tarmac"`
	Latitude    float32    `json:"latitude" gorm:"-"`
	Longitude   float32    `json:"longitude" gorm:"-"`
	Location    geom.Point `json:"location"`
	Runs        []Run
}

func (*Track) TableName() string {
	return "tracks"
}

func (t *Track) GetOrInsert(db *gorm.DB) (
	created bool,
	err error,
) {
	var existingTrack Track
	err = db.Where("track_name = ?", t.TrackName).First(&existingTrack).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			// insert
			err = db.Create(t).Error
			return true, err
		}
		return false, err
	}
	// overwrite with db record if found
	*t = existingTrack
	return false, nil
}

// Run is one recorded simulation session
type Run struct {
	gorm.Model
	RunName          string    `json:"runName" gorm:"size:200"`
	ScenarioName     string    `json:"scenarioName" gorm:"size:200"`
	StartTime        time.Time `json:"runStart" gorm:"type:timestamptz;index:idx_run_start"`
	TrackID          uint
	Track            Track   `gorm:"foreignkey:TrackID"`
	TickSeconds      float32 `json:"tickSeconds" gorm:"default:0.0166667"`
	SimulatorVersion string  `json:"simulatorVersion" gorm:"size:64;default:1.0.0"`
	Tag              string  `json:"tag" gorm:"size:127"`

	Vehicles         []VehicleRecord
	ShiftEvents      []ShiftEventRecord
	RunPerformances  []RunPerformance
}

func (*Run) TableName() string {
	return "runs"
}

// VehicleRecord is one vehicle participating in a run.
// Uses composite primary key (RunID, VehicleID) - VehicleID is the sim-assigned sequential ID
type VehicleRecord struct {
	RunID        uint           `json:"runId" gorm:"primaryKey;autoIncrement:false"`
	VehicleID    uint16         `json:"vehicleId" gorm:"primaryKey;autoIncrement:false"`
	Run          Run            `gorm:"foreignkey:RunID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE;"`
	CreatedAt    time.Time      `json:"createdAt"`
	UpdatedAt    time.Time      `json:"updatedAt"`
	DeletedAt    gorm.DeletedAt `json:"deletedAt" gorm:"index"`
	JoinTime     time.Time      `json:"joinTime" gorm:"type:timestamptz;NOT NULL"` // server time when the vehicle entered the run
	JoinTick     uint64         `json:"joinTick"`
	DisplayName  string         `json:"displayName" gorm:"size:64"`
	Layout       string         `json:"layout" gorm:"size:16"`       // FWD, RWD, AWD
	Transmission string         `json:"transmission" gorm:"size:16"` // manual, automatic, cvt
	MassKG       float32        `json:"massKG"`
	Config       datatypes.JSON `json:"config" gorm:"type:jsonb;default:'{}'"` // full normalized vehicle config
}

func (*VehicleRecord) TableName() string {
	return "vehicle_records"
}

// VehicleTickState is one sampled snapshot of a vehicle
type VehicleTickState struct {
	gorm.Model
	RunID        uint          `json:"runId" gorm:"index:idx_tickstate_run_id"`
	Run          Run           `gorm:"foreignkey:RunID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE;"`
	VehicleID    uint16        `json:"vehicleId" gorm:"index:idx_tickstate_vehicle_id"`
	Tick         uint64        `json:"tick" gorm:"index:idx_tickstate_tick"`
	SimTime      float64       `json:"simTime"`
	Time         time.Time     `json:"time" gorm:"type:timestamptz"`
	Position     geom.Point    `json:"position"`
	PositionXYZ  datatypes.JSON `json:"positionXYZ" gorm:"type:jsonb;default:'[]'"` // local frame metres
	SpeedMS      float32       `json:"speedMS"`
	Heading      float32       `json:"heading"` // yaw in radians

	Engine       EngineState       `json:"engine" gorm:"embedded;embeddedPrefix:engine_"`
	Transmission TransmissionState `json:"transmission" gorm:"embedded;embeddedPrefix:trans_"`

	FuelUsedL float32        `json:"fuelUsedL"`
	SubSteps  uint8          `json:"subSteps"`
	Wheels    datatypes.JSON `json:"wheels" gorm:"type:jsonb;default:'[]'"` // per-wheel speed, slip, load
}

func (*VehicleTickState) TableName() string {
	return "vehicle_tick_states"
}

// EngineState is the embedded engine portion of a tick state
type EngineState struct {
	RPM         float32 `json:"rpm"`
	TorqueNM    float32 `json:"torqueNM"`
	ThrottlePos float32 `json:"throttlePos"`
	OilTempC    float32 `json:"oilTempC"`
	Wear        float32 `json:"wear"`
	FuelRateLPH float32 `json:"fuelRateLPH"`
}

// TransmissionState is the embedded transmission portion of a tick state
type TransmissionState struct {
	Gear         int8    `json:"gear"`
	Mode         string  `json:"mode" gorm:"size:16"`
	Shifting     bool    `json:"shifting"`
	Clutch       float32 `json:"clutch"`
	TotalRatio   float32 `json:"totalRatio"`
	OutputTorque float32 `json:"outputTorque"`
}

// ShiftEventRecord is one completed or initiated gear change
type ShiftEventRecord struct {
	gorm.Model
	RunID     uint    `json:"runId" gorm:"index:idx_shiftevent_run_id"`
	Run       Run     `gorm:"foreignkey:RunID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE;"`
	VehicleID uint16  `json:"vehicleId"`
	Tick      uint64  `json:"tick"`
	SimTime   float64 `json:"simTime"`
	FromGear  int8    `json:"fromGear"`
	ToGear    int8    `json:"toGear"`
	Cause     string  `json:"cause" gorm:"size:16"` // manual, auto, kickdown, mode
	Duration  float32 `json:"duration"`
	SpeedMS   float32 `json:"speedMS"`
	RPM       float32 `json:"rpm"`
}

func (*ShiftEventRecord) TableName() string {
	return "shift_event_records"
}
