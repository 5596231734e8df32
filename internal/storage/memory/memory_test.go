// internal/storage/memory/memory_test.go
package memory

import (
	"compress/gzip"
	"encoding/json"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/motorsim/drivetrain/internal/config"
	"github.com/motorsim/drivetrain/internal/model"
)

func TestNew(t *testing.T) {
	cfg := config.MemoryConfig{
		OutputDir:      "/tmp/test",
		CompressOutput: true,
	}
	b := New(cfg)

	if b == nil {
		t.Fatal("New returned nil")
	}
	if b.cfg.OutputDir != "/tmp/test" {
		t.Errorf("expected OutputDir=/tmp/test, got %s", b.cfg.OutputDir)
	}
	if !b.cfg.CompressOutput {
		t.Error("expected CompressOutput=true")
	}
	if b.vehicles == nil {
		t.Error("vehicles map not initialized")
	}
}

func TestInitAndClose(t *testing.T) {
	b := New(config.MemoryConfig{})

	if err := b.Init(); err != nil {
		t.Errorf("Init failed: %v", err)
	}
	if err := b.Close(); err != nil {
		t.Errorf("Close failed: %v", err)
	}
}

func TestStartRunResetsState(t *testing.T) {
	b := New(config.MemoryConfig{})

	if err := b.StartRun(&model.Run{RunName: "first"}, &model.Track{TrackName: "oval"}); err != nil {
		t.Fatalf("StartRun failed: %v", err)
	}

	v := &model.VehicleRecord{DisplayName: "roadster"}
	if err := b.AddVehicle(v); err != nil {
		t.Fatalf("AddVehicle failed: %v", err)
	}
	if v.VehicleID != 1 {
		t.Errorf("expected VehicleID=1, got %d", v.VehicleID)
	}

	if err := b.StartRun(&model.Run{RunName: "second"}, &model.Track{}); err != nil {
		t.Fatalf("StartRun failed: %v", err)
	}
	if len(b.vehicles) != 0 {
		t.Error("expected vehicle map reset on new run")
	}
	if b.idCounter != 0 {
		t.Error("expected id counter reset on new run")
	}
}

func TestRecordTickState(t *testing.T) {
	b := New(config.MemoryConfig{})
	b.StartRun(&model.Run{RunName: "run"}, &model.Track{})

	v := &model.VehicleRecord{}
	b.AddVehicle(v)

	s := &model.VehicleTickState{VehicleID: v.VehicleID, Tick: 7, SpeedMS: 12.5}
	if err := b.RecordTickState(s); err != nil {
		t.Fatalf("RecordTickState failed: %v", err)
	}

	history := b.vehicles[v.VehicleID]
	if len(history.TickStates) != 1 || history.TickStates[0].Tick != 7 {
		t.Errorf("unexpected tick states: %+v", history.TickStates)
	}
}

func TestRecordTickState_UnknownVehicle(t *testing.T) {
	b := New(config.MemoryConfig{})
	b.StartRun(&model.Run{}, &model.Track{})

	err := b.RecordTickState(&model.VehicleTickState{VehicleID: 99})
	if err == nil || !strings.Contains(err.Error(), "unknown vehicle") {
		t.Errorf("expected unknown vehicle error, got %v", err)
	}
}

func TestRecordShiftEvent(t *testing.T) {
	b := New(config.MemoryConfig{})
	b.StartRun(&model.Run{}, &model.Track{})

	v := &model.VehicleRecord{}
	b.AddVehicle(v)

	e := &model.ShiftEventRecord{VehicleID: v.VehicleID, FromGear: 1, ToGear: 2, Cause: "auto"}
	if err := b.RecordShiftEvent(e); err != nil {
		t.Fatalf("RecordShiftEvent failed: %v", err)
	}

	history := b.vehicles[v.VehicleID]
	if len(history.ShiftEvents) != 1 || history.ShiftEvents[0].ToGear != 2 {
		t.Errorf("unexpected shift events: %+v", history.ShiftEvents)
	}
}

func TestEndRunExportsJSON(t *testing.T) {
	dir := t.TempDir()
	b := New(config.MemoryConfig{OutputDir: dir})
	if err := b.Init(); err != nil {
		t.Fatalf("Init failed: %v", err)
	}

	b.StartRun(&model.Run{RunName: "export-test", StartTime: time.Now()}, &model.Track{TrackName: "oval"})
	v := &model.VehicleRecord{DisplayName: "roadster"}
	b.AddVehicle(v)
	b.RecordTickState(&model.VehicleTickState{VehicleID: v.VehicleID, Tick: 1})
	b.RecordPerformance(&model.RunPerformance{TicksSimulated: 1})

	if err := b.EndRun(); err != nil {
		t.Fatalf("EndRun failed: %v", err)
	}

	path := b.GetExportedFilePath()
	if path == "" {
		t.Fatal("expected exported file path")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read export: %v", err)
	}

	var doc runExport
	if err := json.Unmarshal(data, &doc); err != nil {
		t.Fatalf("export is not valid JSON: %v", err)
	}
	if doc.Run.RunName != "export-test" {
		t.Errorf("expected run name export-test, got %s", doc.Run.RunName)
	}
	if len(doc.Vehicles) != 1 || len(doc.Vehicles[0].TickStates) != 1 {
		t.Errorf("unexpected vehicles in export: %+v", doc.Vehicles)
	}
	if len(doc.Performances) != 1 {
		t.Errorf("expected 1 performance row, got %d", len(doc.Performances))
	}
}

func TestEndRunExportsCompressed(t *testing.T) {
	dir := t.TempDir()
	b := New(config.MemoryConfig{OutputDir: dir, CompressOutput: true})
	b.Init()

	b.StartRun(&model.Run{RunName: "gz-test"}, &model.Track{})
	if err := b.EndRun(); err != nil {
		t.Fatalf("EndRun failed: %v", err)
	}

	path := b.GetExportedFilePath()
	if !strings.HasSuffix(path, ".json.gz") {
		t.Fatalf("expected .json.gz suffix, got %s", path)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("failed to open export: %v", err)
	}
	defer f.Close()

	gz, err := gzip.NewReader(f)
	if err != nil {
		t.Fatalf("export is not gzip: %v", err)
	}
	defer gz.Close()

	var doc runExport
	if err := json.NewDecoder(gz).Decode(&doc); err != nil {
		t.Fatalf("compressed export is not valid JSON: %v", err)
	}
	if doc.Run.RunName != "gz-test" {
		t.Errorf("expected run name gz-test, got %s", doc.Run.RunName)
	}
}

func TestEndRun_NoRun(t *testing.T) {
	b := New(config.MemoryConfig{})
	if err := b.EndRun(); err == nil {
		t.Error("expected error when ending without a run")
	}
}

func TestConcurrentRecording(t *testing.T) {
	b := New(config.MemoryConfig{})
	b.StartRun(&model.Run{}, &model.Track{})

	v := &model.VehicleRecord{}
	b.AddVehicle(v)

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func(tick uint64) {
			defer wg.Done()
			b.RecordTickState(&model.VehicleTickState{VehicleID: v.VehicleID, Tick: tick})
		}(uint64(i))
	}
	wg.Wait()

	if got := len(b.vehicles[v.VehicleID].TickStates); got != 100 {
		t.Errorf("expected 100 tick states, got %d", got)
	}
}
