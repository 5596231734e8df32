// internal/storage/storage.go
package storage

import "github.com/motorsim/drivetrain/internal/model"

// Backend is the interface all storage implementations must satisfy
type Backend interface {
	// Lifecycle
	Init() error
	Close() error

	// Run management
	StartRun(run *model.Run, track *model.Track) error
	EndRun() error

	// Vehicle registration (assigns ID to the passed pointer)
	AddVehicle(v *model.VehicleRecord) error

	// Telemetry recording
	RecordTickState(s *model.VehicleTickState) error
	RecordShiftEvent(e *model.ShiftEventRecord) error
	RecordPerformance(p *model.RunPerformance) error
}

// Uploadable is an optional interface for storage backends that produce
// files suitable for upload to a replay viewer.
type Uploadable interface {
	GetExportedFilePath() string
}
