// Package convert maps live simulation snapshots onto database rows.
package convert

import (
	"encoding/json"
	"time"

	"gorm.io/datatypes"

	"github.com/motorsim/drivetrain/internal/geo"
	"github.com/motorsim/drivetrain/internal/model"
	"github.com/motorsim/drivetrain/internal/model/core"
	"github.com/motorsim/drivetrain/internal/transmission"
)

// wheelState is the per-wheel JSON blob stored with each tick state
type wheelState struct {
	Speed float64 `json:"speed"`
	Slip  float64 `json:"slip"`
	Load  float64 `json:"load"`
}

// TickState converts a snapshot into a VehicleTickState row. The anchor
// maps the local frame onto EPSG:3857 for the Position column.
func TickState(
	vehicleID uint16,
	snap core.Snapshot,
	anchor geo.Anchor,
) model.VehicleTickState {
	wheels := make([]wheelState, core.WheelCount)
	for i := 0; i < core.WheelCount; i++ {
		wheels[i] = wheelState{
			Speed: snap.Chassis.WheelSpeeds[i],
			Slip:  snap.Chassis.WheelSlip[i],
			Load:  snap.Chassis.WheelLoads[i],
		}
	}
	wheelsJSON, _ := json.Marshal(wheels)
	posJSON, _ := json.Marshal([]float64{
		snap.Chassis.Position.X,
		snap.Chassis.Position.Y,
		snap.Chassis.Position.Z,
	})

	return model.VehicleTickState{
		VehicleID:   vehicleID,
		Tick:        snap.Tick,
		SimTime:     snap.SimTime,
		Time:        time.Now().UTC(),
		Position:    anchor.PointFromLocal(snap.Chassis.Position),
		PositionXYZ: datatypes.JSON(posJSON),
		SpeedMS:     float32(snap.Chassis.Speed),
		Heading:     float32(snap.Chassis.YawRad),
		Engine: model.EngineState{
			RPM:         float32(snap.Engine.RPM),
			TorqueNM:    float32(snap.Engine.Torque),
			ThrottlePos: float32(snap.Engine.ThrottlePos),
			OilTempC:    float32(snap.Engine.Temperature),
			Wear:        float32(snap.Engine.Wear),
			FuelRateLPH: float32(snap.Engine.FuelRateLPH),
		},
		Transmission: model.TransmissionState{
			Gear:         int8(snap.Transmission.Gear),
			Mode:         snap.Transmission.Mode.String(),
			Shifting:     snap.Transmission.Shifting,
			Clutch:       float32(snap.Transmission.Clutch),
			TotalRatio:   float32(snap.Transmission.TotalRatio),
			OutputTorque: float32(snap.Transmission.OutputTorque),
		},
		FuelUsedL: float32(snap.FuelUsedL),
		SubSteps:  uint8(snap.SubSteps),
		Wheels:    datatypes.JSON(wheelsJSON),
	}
}

// ShiftEvent converts a completed gear change into its row.
func ShiftEvent(
	vehicleID uint16,
	snap core.Snapshot,
	ev transmission.ShiftEvent,
) model.ShiftEventRecord {
	return model.ShiftEventRecord{
		VehicleID: vehicleID,
		Tick:      snap.Tick,
		SimTime:   snap.SimTime,
		FromGear:  int8(ev.FromGear),
		ToGear:    int8(ev.ToGear),
		Cause:     ev.Cause.String(),
		Duration:  float32(ev.Duration),
		SpeedMS:   float32(snap.Chassis.Speed),
		RPM:       float32(snap.Engine.RPM),
	}
}

// VehicleRecord builds the registration row for a configured vehicle.
func VehicleRecord(cfg core.VehicleConfig, joinTick uint64) model.VehicleRecord {
	cfgJSON, _ := json.Marshal(cfg)
	return model.VehicleRecord{
		JoinTime:     time.Now().UTC(),
		JoinTick:     joinTick,
		DisplayName:  cfg.Name,
		Layout:       cfg.Layout.String(),
		Transmission: cfg.Transmission.Type.String(),
		MassKG:       float32(cfg.MassKG),
		Config:       datatypes.JSON(cfgJSON),
	}
}
