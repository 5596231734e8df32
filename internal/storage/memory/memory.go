// internal/storage/memory/memory.go
package memory

import (
	"compress/gzip"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/motorsim/drivetrain/internal/config"
	"github.com/motorsim/drivetrain/internal/model"
)

// VehicleHistory groups a vehicle with all its time-series data
type VehicleHistory struct {
	Vehicle     model.VehicleRecord      `json:"vehicle"`
	TickStates  []model.VehicleTickState `json:"tickStates"`
	ShiftEvents []model.ShiftEventRecord `json:"shiftEvents"`
}

// Backend stores run data in memory and exports to JSON
type Backend struct {
	cfg   config.MemoryConfig
	run   *model.Run
	track *model.Track

	vehicles map[uint16]*VehicleHistory // keyed by VehicleID

	performances []model.RunPerformance

	idCounter    uint16
	exportedPath string
	mu           sync.RWMutex
}

// New creates a new memory backend
func New(cfg config.MemoryConfig) *Backend {
	return &Backend{
		cfg:      cfg,
		vehicles: make(map[uint16]*VehicleHistory),
	}
}

// Init initializes the backend
func (b *Backend) Init() error {
	if b.cfg.OutputDir == "" {
		return nil
	}
	return os.MkdirAll(b.cfg.OutputDir, 0o755)
}

// Close cleans up resources
func (b *Backend) Close() error {
	return nil
}

// StartRun begins recording a new run
func (b *Backend) StartRun(run *model.Run, track *model.Track) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.run = run
	b.track = track

	// Reset all collections
	b.vehicles = make(map[uint16]*VehicleHistory)
	b.performances = nil
	b.idCounter = 0
	b.exportedPath = ""

	return nil
}

// EndRun finalizes and exports the run data
func (b *Backend) EndRun() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.exportJSON()
}

// runExport is the JSON document written at the end of a run
type runExport struct {
	Run          *model.Run             `json:"run"`
	Track        *model.Track           `json:"track"`
	Vehicles     []*VehicleHistory      `json:"vehicles"`
	Performances []model.RunPerformance `json:"performances"`
}

// exportJSON writes the run data to a JSON file
func (b *Backend) exportJSON() error {
	if b.run == nil {
		return fmt.Errorf("no run in progress")
	}

	doc := runExport{
		Run:          b.run,
		Track:        b.track,
		Performances: b.performances,
	}
	for _, v := range b.vehicles {
		doc.Vehicles = append(doc.Vehicles, v)
	}

	name := fmt.Sprintf("%s.%s.json", b.run.RunName, time.Now().UTC().Format("20060102_150405"))
	if b.cfg.CompressOutput {
		name += ".gz"
	}
	path := filepath.Join(b.cfg.OutputDir, name)

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create export file: %w", err)
	}
	defer f.Close()

	if b.cfg.CompressOutput {
		gz := gzip.NewWriter(f)
		defer gz.Close()
		if err := json.NewEncoder(gz).Encode(doc); err != nil {
			return fmt.Errorf("failed to encode export: %w", err)
		}
	} else {
		enc := json.NewEncoder(f)
		enc.SetIndent("", "  ")
		if err := enc.Encode(doc); err != nil {
			return fmt.Errorf("failed to encode export: %w", err)
		}
	}

	b.exportedPath = path
	return nil
}

// GetExportedFilePath returns the path of the last exported run file
func (b *Backend) GetExportedFilePath() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.exportedPath
}

// AddVehicle registers a new vehicle
func (b *Backend) AddVehicle(v *model.VehicleRecord) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.idCounter++
	v.VehicleID = b.idCounter

	b.vehicles[v.VehicleID] = &VehicleHistory{
		Vehicle:    *v,
		TickStates: make([]model.VehicleTickState, 0),
	}
	return nil
}

// GetVehicleByID looks up a vehicle by its sim-assigned ID
func (b *Backend) GetVehicleByID(id uint16) (*model.VehicleRecord, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if history, ok := b.vehicles[id]; ok {
		return &history.Vehicle, true
	}
	return nil, false
}

// RecordTickState records a vehicle telemetry sample
func (b *Backend) RecordTickState(s *model.VehicleTickState) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	history, ok := b.vehicles[s.VehicleID]
	if !ok {
		return fmt.Errorf("unknown vehicle %d", s.VehicleID)
	}
	history.TickStates = append(history.TickStates, *s)
	return nil
}

// RecordShiftEvent records a gear change
func (b *Backend) RecordShiftEvent(e *model.ShiftEventRecord) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	history, ok := b.vehicles[e.VehicleID]
	if !ok {
		return fmt.Errorf("unknown vehicle %d", e.VehicleID)
	}
	history.ShiftEvents = append(history.ShiftEvents, *e)
	return nil
}

// RecordPerformance records simulation loop metrics
func (b *Backend) RecordPerformance(p *model.RunPerformance) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.performances = append(b.performances, *p)
	return nil
}
