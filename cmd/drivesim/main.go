// drivesim runs a scripted drivetrain simulation and records telemetry to
// the configured storage backend, InfluxDB and the live dashboard.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/viper"

	"github.com/motorsim/drivetrain/internal/config"
	"github.com/motorsim/drivetrain/internal/geo"
	"github.com/motorsim/drivetrain/internal/influx"
	"github.com/motorsim/drivetrain/internal/logging"
	"github.com/motorsim/drivetrain/internal/metrics"
	"github.com/motorsim/drivetrain/internal/model"
	"github.com/motorsim/drivetrain/internal/model/convert"
	"github.com/motorsim/drivetrain/internal/model/core"
	"github.com/motorsim/drivetrain/internal/run"
	"github.com/motorsim/drivetrain/internal/scenario"
	"github.com/motorsim/drivetrain/internal/storage"
	"github.com/motorsim/drivetrain/internal/storage/live"
	"github.com/motorsim/drivetrain/internal/vehicle"
)

var (
	sessionStart = time.Now()

	// LogManager handles all zerolog-based logging
	LogManager *logging.Manager
	Logger     zerolog.Logger

	runContext = run.NewContext()

	storageBackend storage.Backend
	livePublisher  *live.Publisher
	influxManager  *influx.Manager
)

func main() {
	configDir := flag.String("config", ".", "directory containing drivesim.cfg.json")
	scenarioName := flag.String("scenario", "", "builtin scenario name or path to a script file")
	vehiclePath := flag.String("vehicle", "", "path to a vehicle config JSON (default: built-in roadster)")
	runName := flag.String("run", "", "run name (default: scenario name + timestamp)")
	trackName := flag.String("track", "test oval", "track name")
	tag := flag.String("tag", "", "free-form run tag")
	vehicleCount := flag.Int("vehicles", 1, "number of vehicle instances to simulate")
	flag.Parse()

	if err := config.Load(*configDir); err != nil {
		// defaults are already registered, so a missing file is survivable
		fmt.Fprintf(os.Stderr, "config: %v, continuing with defaults\n", err)
	}

	setupLogging()

	if flag.Arg(0) == "export" {
		ids := flag.Args()[1:]
		if len(ids) == 0 {
			Logger.Fatal().Msg("No run IDs provided")
		}
		if err := exportRuns(ids); err != nil {
			Logger.Fatal().Err(err).Msg("Export failed")
		}
		return
	}

	if err := initStorage(); err != nil {
		Logger.Fatal().Err(err).Msg("Failed to initialize storage")
	}
	defer storageBackend.Close()

	initLive()
	initInflux()
	defer closeTelemetry()

	cfg, err := loadVehicleConfig(*vehiclePath)
	if err != nil {
		Logger.Fatal().Err(err).Msg("Failed to load vehicle config")
	}

	sc, err := loadScenario(*scenarioName)
	if err != nil {
		Logger.Fatal().Err(err).Msg("Failed to load scenario")
	}

	name := *runName
	if name == "" {
		name = fmt.Sprintf("%s.%s", sc.Name, sessionStart.UTC().Format("20060102_150405"))
	}

	if err := simulate(cfg, sc, name, *trackName, *tag, *vehicleCount); err != nil {
		Logger.Fatal().Err(err).Msg("Simulation failed")
	}
}

func setupLogging() {
	logsDir := viper.GetString("logsDir")
	if _, err := os.Stat(logsDir); os.IsNotExist(err) {
		os.Mkdir(logsDir, 0755)
	}

	logPath := logging.LogFilePath(logsDir, "drivesim", sessionStart)
	logFile, err := os.OpenFile(logPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to open log file %s: %v\n", logPath, err)
	}

	LogManager = logging.NewManager()
	LogManager.GetRunName = func() string { return runContext.GetRun().RunName }
	LogManager.GetRunID = func() uint { return runContext.GetRun().ID }
	LogManager.Setup(logFile)
	Logger = LogManager.Logger()

	Logger.Info().Str("path", logPath).Msg("Begin logging in logs directory")
}

func initStorage() error {
	storageCfg := config.GetStorageConfig()
	backend, err := storage.NewBackend(storageCfg, Logger)
	if err != nil {
		return err
	}
	if err := backend.Init(); err != nil {
		return err
	}
	storageBackend = backend
	Logger.Info().Str("type", storageCfg.Type).Msg("Storage backend initialized")
	return nil
}

func initLive() {
	liveCfg := config.GetLiveConfig()
	if !liveCfg.Enabled {
		return
	}
	p := live.NewPublisher(
		live.Config{URL: liveCfg.URL, Secret: liveCfg.Secret},
		logging.NewStreamLogger(Logger),
	)
	if err := p.Init(); err != nil {
		Logger.Warn().Err(err).Msg("Live telemetry unavailable, continuing without it")
		return
	}
	livePublisher = p
}

func initInflux() {
	if !viper.GetBool("influx.enabled") {
		return
	}
	backupPath := filepath.Join(viper.GetString("logsDir"), "influx_backup.lp.gz")
	m := influx.NewManager(Logger, backupPath)
	if err := m.Connect(); err != nil {
		Logger.Warn().Err(err).Msg("InfluxDB unavailable, continuing without it")
		return
	}
	influxManager = m
}

func closeTelemetry() {
	if livePublisher != nil {
		livePublisher.Close()
	}
	if influxManager != nil {
		influxManager.Close()
	}
}

func loadVehicleConfig(path string) (core.VehicleConfig, error) {
	if path != "" {
		return core.LoadConfig(path)
	}
	return defaultVehicleConfig(), nil
}

func loadScenario(name string) (*scenario.Scenario, error) {
	if name == "" {
		name = viper.GetString("sim.defaultScenario")
	}
	if _, err := os.Stat(name); err == nil {
		return scenario.Load(name)
	}
	return scenario.Builtin(name)
}

func simulate(cfg core.VehicleConfig, sc *scenario.Scenario, runName, trackName, tag string, vehicleCount int) error {
	if vehicleCount < 1 {
		vehicleCount = 1
	}
	vehicles := make([]*vehicle.Vehicle, 0, vehicleCount)
	for i := 0; i < vehicleCount; i++ {
		veh, err := vehicle.New(cfg, Logger)
		if err != nil {
			return fmt.Errorf("failed to build vehicle: %w", err)
		}
		vehicles = append(vehicles, veh)
	}

	tick := viper.GetFloat64("sim.tickSeconds")
	sampleEvery := uint64(viper.GetInt("sim.sampleEvery"))
	if sampleEvery == 0 {
		sampleEvery = 1
	}
	anchor := geo.NewAnchor(
		viper.GetFloat64("geo.anchorLongitude"),
		viper.GetFloat64("geo.anchorLatitude"),
	)

	r := &model.Run{
		RunName:      runName,
		ScenarioName: sc.Name,
		StartTime:    sessionStart.UTC(),
		TickSeconds:  float32(tick),
		Tag:          tag,
	}
	track := &model.Track{TrackName: trackName, DisplayName: trackName}
	track.Location = anchor.PointFromLocal(core.Vec3{})

	if err := storageBackend.StartRun(r, track); err != nil {
		return fmt.Errorf("failed to start run: %w", err)
	}
	runContext.SetRun(r, track)

	if livePublisher != nil {
		if err := livePublisher.StartRun(r, track); err != nil {
			Logger.Warn().Err(err).Msg("Live server did not ack run start")
		}
	}

	records := make([]model.VehicleRecord, 0, vehicleCount)
	for _, veh := range vehicles {
		vrec := convert.VehicleRecord(veh.Config(), 0)
		if err := storageBackend.AddVehicle(&vrec); err != nil {
			return fmt.Errorf("failed to register vehicle: %w", err)
		}
		if livePublisher != nil {
			livePublisher.AddVehicle(&vrec)
		}
		records = append(records, vrec)
	}

	provider := metrics.New(metrics.Config{
		Enabled:     viper.GetBool("metrics.enabled"),
		ServiceName: "drivesim",
	})
	recorder, err := metrics.NewRecorder(provider.Meter("drivesim"))
	if err != nil {
		return fmt.Errorf("failed to create metrics recorder: %w", err)
	}

	Logger.Info().
		Str("scenario", sc.Name).
		Str("vehicle", cfg.Name).
		Float64("duration", sc.Duration()).
		Float64("tickSeconds", tick).
		Msg("Simulation starting")

	ctx := context.Background()
	player := scenario.NewPlayer(sc)
	duration := sc.Duration()
	var ticks, subSteps, sanitized uint64
	nextPerf := 1.0

	for t := 0.0; t < duration; t += tick {
		tickStart := time.Now()
		inputs := player.At(t)
		ticks++

		var last core.Snapshot
		for i, veh := range vehicles {
			snap := veh.Update(tick, inputs)
			last = snap
			subSteps += uint64(snap.SubSteps)
			sanitized += uint64(snap.SanitizedInputs)
			vehicleID := records[i].VehicleID

			recorder.ObserveTick(ctx, snap)

			events := veh.TakeShiftEvents()
			recorder.ObserveShifts(ctx, len(events))
			for _, ev := range events {
				row := convert.ShiftEvent(vehicleID, snap, ev)
				if err := storageBackend.RecordShiftEvent(&row); err != nil {
					Logger.Error().Err(err).Msg("Failed to record shift event")
				}
				if livePublisher != nil {
					livePublisher.PublishShiftEvent(vehicleID, row)
				}
			}

			if snap.Tick%sampleEvery == 0 {
				row := convert.TickState(vehicleID, snap, anchor)
				if err := storageBackend.RecordTickState(&row); err != nil {
					Logger.Error().Err(err).Msg("Failed to record tick state")
				}
				if livePublisher != nil {
					livePublisher.PublishSnapshot(vehicleID, snap)
				}
				if influxManager != nil {
					influxManager.WritePoint(ctx, influx.BucketRunTelemetry,
						influx.TelemetryPoint(runName, vehicleID, snap))
					influxManager.WritePoint(ctx, influx.BucketEngineMetrics,
						influx.EnginePoint(runName, vehicleID, snap))
				}
			}
		}

		if last.SimTime >= nextPerf {
			nextPerf += 1.0
			perf := &model.RunPerformance{
				Time:               time.Now().UTC(),
				TicksSimulated:     ticks,
				SubStepsSimulated:  subSteps,
				SanitizedInputs:    sanitized,
				LastTickDurationMs: float32(time.Since(tickStart).Microseconds()) / 1000.0,
			}
			if err := storageBackend.RecordPerformance(perf); err != nil {
				Logger.Error().Err(err).Msg("Failed to record performance")
			}
			if influxManager != nil {
				influxManager.WritePoint(ctx, influx.BucketSimPerformance,
					influx.PerformancePoint(runName, last, time.Since(tickStart)))
			}
		}
	}

	if err := storageBackend.EndRun(); err != nil {
		Logger.Error().Err(err).Msg("Failed to end run")
	}
	if livePublisher != nil {
		if err := livePublisher.EndRun(); err != nil {
			Logger.Warn().Err(err).Msg("Live server did not ack run end")
		}
	}

	final := vehicles[0].Snapshot()
	Logger.Info().
		Int("vehicles", vehicleCount).
		Uint64("ticks", ticks).
		Float64("simTime", final.SimTime).
		Float64("distanceM", final.Chassis.Position.Length()).
		Float64("fuelUsedL", final.FuelUsedL).
		Uint64("shifts", final.Transmission.ShiftCount).
		Msg("Simulation complete")

	if up, ok := storageBackend.(storage.Uploadable); ok {
		if path := up.GetExportedFilePath(); path != "" {
			Logger.Info().Str("path", path).Msg("Run exported")
		}
	}

	return nil
}

// defaultVehicleConfig is a mid-size rear-drive roadster with a 3.0L six
// and a five-speed automatic.
func defaultVehicleConfig() core.VehicleConfig {
	return core.VehicleConfig{
		Name:         "roadster",
		MassKG:       1450,
		LengthM:      4.4,
		WidthM:       1.85,
		HeightM:      1.3,
		CGHeightM:    0.48,
		WheelbaseM:   2.6,
		TrackM:       1.55,
		WheelRadiusM: 0.32,
		Layout:       core.LayoutRearDrive,
		Engine: core.EngineSpec{
			DisplacementL: 3.0,
			Cylinders:     6,
			IdleRPM:       800,
			MaxRPM:        6500,
			MaxTorqueNM:   420,
			MaxTorqueRPM:  4200,
		},
		Transmission: core.TransmissionSpec{
			Type:      core.TransmissionAutomatic,
			Ratios:    []float64{3.6, 2.1, 1.4, 1.0, 0.8},
			AutoShift: true,
		},
		Aero: core.AeroSpec{
			DragCoeff:     0.31,
			FrontalAreaM2: 2.1,
		},
	}
}
