// internal/storage/gormdb/gormdb.go
package gormdb

import (
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/viper"

	"github.com/motorsim/drivetrain/internal/database"
	"github.com/motorsim/drivetrain/internal/model"
	"github.com/motorsim/drivetrain/internal/queue"
	"github.com/motorsim/drivetrain/internal/run"
)

const (
	flushInterval = 1 * time.Second
	writeBatch    = 2000
)

// queues buffer telemetry rows between the simulation loop and the flush loop
type queues struct {
	TickStates  *queue.Queue[model.VehicleTickState]
	ShiftEvents *queue.Queue[model.ShiftEventRecord]
	Performance *queue.Queue[model.RunPerformance]
}

// Backend persists run data through gorm, buffering rows and writing in
// batches off the simulation loop.
type Backend struct {
	db     *database.Manager
	log    zerolog.Logger
	runCtx *run.Context
	queues *queues

	stopChan chan struct{}
	wg       sync.WaitGroup

	mu        sync.Mutex
	idCounter uint16
}

// New creates a database-backed storage backend.
func New(log zerolog.Logger) *Backend {
	return &Backend{
		db:     database.NewManager(log),
		log:    log,
		runCtx: run.NewContext(),
	}
}

// Init connects to the database, migrates the schema and starts the
// background flush loop.
func (b *Backend) Init() error {
	if err := b.db.Connect(); err != nil {
		return err
	}
	if err := b.db.Setup(); err != nil {
		return err
	}

	b.queues = &queues{
		TickStates:  queue.New[model.VehicleTickState](),
		ShiftEvents: queue.New[model.ShiftEventRecord](),
		Performance: queue.New[model.RunPerformance](),
	}
	b.stopChan = make(chan struct{})

	b.wg.Add(1)
	go b.writeLoop()

	return nil
}

// Close stops the flush loop, writes remaining rows and dumps the
// in-memory database to disk when running on the SQLite fallback.
func (b *Backend) Close() error {
	if b.stopChan != nil {
		close(b.stopChan)
		b.wg.Wait()
		b.stopChan = nil
	}
	b.flushAll()

	if b.db.ShouldSaveLocal && b.db.IsValid && b.db.SqliteFilePath != "" {
		if err := b.db.DumpMemoryToDisk(); err != nil {
			b.log.Error().Err(err).Msg("Failed to dump SQLite DB to disk")
			return err
		}
	}
	return nil
}

// StartRun inserts the run and track rows and makes them current.
func (b *Backend) StartRun(r *model.Run, track *model.Track) error {
	if !b.db.IsValid {
		return fmt.Errorf("database not valid")
	}

	if _, err := track.GetOrInsert(b.db.DB); err != nil {
		return fmt.Errorf("failed to get or insert track: %w", err)
	}
	r.TrackID = track.ID
	if err := b.db.DB.Create(r).Error; err != nil {
		return fmt.Errorf("failed to create run: %w", err)
	}

	if b.db.ShouldSaveLocal {
		b.db.SqliteFilePath = filepath.Join(
			viper.GetString("logsDir"),
			fmt.Sprintf("%s.%s.db", r.RunName, time.Now().UTC().Format("20060102_150405")),
		)
	}

	b.runCtx.SetRun(r, track)
	b.mu.Lock()
	b.idCounter = 0
	b.mu.Unlock()

	b.log.Info().Str("run", r.RunName).Str("track", track.TrackName).Msg("Run started")
	return nil
}

// EndRun flushes pending rows for the current run.
func (b *Backend) EndRun() error {
	b.flushAll()
	b.log.Info().Str("run", b.runCtx.GetRun().RunName).Msg("Run ended")
	return nil
}

// AddVehicle assigns the next vehicle ID and inserts the record.
func (b *Backend) AddVehicle(v *model.VehicleRecord) error {
	b.mu.Lock()
	b.idCounter++
	v.VehicleID = b.idCounter
	b.mu.Unlock()

	v.RunID = b.runCtx.GetRun().ID
	if !b.db.IsValid {
		return nil
	}
	return b.db.DB.Create(v).Error
}

// RecordTickState queues a telemetry sample for batch insertion.
func (b *Backend) RecordTickState(s *model.VehicleTickState) error {
	s.RunID = b.runCtx.GetRun().ID
	b.queues.TickStates.Push(*s)
	return nil
}

// RecordShiftEvent queues a gear change for batch insertion.
func (b *Backend) RecordShiftEvent(e *model.ShiftEventRecord) error {
	e.RunID = b.runCtx.GetRun().ID
	b.queues.ShiftEvents.Push(*e)
	return nil
}

// RecordPerformance queues a loop metrics row for batch insertion.
func (b *Backend) RecordPerformance(p *model.RunPerformance) error {
	p.RunID = b.runCtx.GetRun().ID
	b.queues.Performance.Push(*p)
	return nil
}

// QueueLengths reports current buffer depths for performance rows.
func (b *Backend) QueueLengths() model.QueueLengths {
	return model.QueueLengths{
		TickStates:  uint16(b.queues.TickStates.Len()),
		ShiftEvents: uint16(b.queues.ShiftEvents.Len()),
		Performance: uint16(b.queues.Performance.Len()),
	}
}

func (b *Backend) writeLoop() {
	defer b.wg.Done()

	ticker := time.NewTicker(flushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			b.flushAll()
		case <-b.stopChan:
			return
		}
	}
}

func (b *Backend) flushAll() {
	if !b.db.IsValid {
		// drop buffered rows so the queues cannot grow without bound
		b.queues.TickStates.Clear()
		b.queues.ShiftEvents.Clear()
		b.queues.Performance.Clear()
		return
	}

	start := time.Now()
	wrote := 0

	for !b.queues.TickStates.Empty() {
		batch := b.queues.TickStates.PopBatch(writeBatch)
		if err := b.db.DB.CreateInBatches(batch, writeBatch).Error; err != nil {
			b.log.Error().Err(err).Msg("Failed to write tick states")
		}
		wrote += len(batch)
	}
	for !b.queues.ShiftEvents.Empty() {
		batch := b.queues.ShiftEvents.PopBatch(writeBatch)
		if err := b.db.DB.CreateInBatches(batch, writeBatch).Error; err != nil {
			b.log.Error().Err(err).Msg("Failed to write shift events")
		}
		wrote += len(batch)
	}
	for !b.queues.Performance.Empty() {
		batch := b.queues.Performance.PopBatch(writeBatch)
		if err := b.db.DB.CreateInBatches(batch, writeBatch).Error; err != nil {
			b.log.Error().Err(err).Msg("Failed to write performance rows")
		}
		wrote += len(batch)
	}

	if wrote > 0 {
		b.log.Debug().Int("rows", wrote).Dur("duration", time.Since(start)).Msg("Flushed telemetry")
	}
}
