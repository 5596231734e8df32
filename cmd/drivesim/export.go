package main

import (
	"compress/gzip"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/motorsim/drivetrain/internal/database"
	"github.com/motorsim/drivetrain/internal/geo"
	"github.com/motorsim/drivetrain/internal/model"
	"github.com/motorsim/drivetrain/internal/model/core"
)

// exportRuns dumps recorded runs from the database as gzipped JSON files in
// the current directory, one file per run ID.
func exportRuns(runIDs []string) error {
	dbm := database.NewManager(Logger)
	if err := dbm.Connect(); err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	db := dbm.DB

	anchor := geo.NewAnchor(
		viper.GetFloat64("geo.anchorLongitude"),
		viper.GetFloat64("geo.anchorLatitude"),
	)

	for _, runID := range runIDs {
		idInt, err := strconv.Atoi(runID)
		if err != nil {
			return fmt.Errorf("bad run ID %q: %w", runID, err)
		}

		txStart := time.Now()
		var r model.Run
		if err := db.Model(&model.Run{}).Where("id = ?", idInt).First(&r).Error; err != nil {
			return fmt.Errorf("error getting run %d: %w", idInt, err)
		}

		doc := map[string]any{
			"runName":      r.RunName,
			"scenarioName": r.ScenarioName,
			"startTime":    r.StartTime,
			"tickSeconds":  r.TickSeconds,
			"version":      r.SimulatorVersion,
			"tag":          r.Tag,
		}

		var track model.Track
		if err := db.Model(&model.Track{}).Where("id = ?", r.TrackID).First(&track).Error; err != nil {
			return fmt.Errorf("error getting track: %w", err)
		}
		doc["trackName"] = track.TrackName
		doc["surface"] = track.Surface

		vehicles := []model.VehicleRecord{}
		if err := db.Model(&model.VehicleRecord{}).Where("run_id = ?", idInt).Find(&vehicles).Error; err != nil {
			return fmt.Errorf("error getting vehicles: %w", err)
		}

		allStates := []model.VehicleTickState{}
		if err := db.Model(&model.VehicleTickState{}).
			Where("run_id = ?", idInt).
			Order("tick ASC").
			Find(&allStates).Error; err != nil {
			return fmt.Errorf("error getting tick states: %w", err)
		}
		statesByVehicle := map[uint16][]model.VehicleTickState{}
		for _, s := range allStates {
			statesByVehicle[s.VehicleID] = append(statesByVehicle[s.VehicleID], s)
		}

		allShifts := []model.ShiftEventRecord{}
		if err := db.Model(&model.ShiftEventRecord{}).
			Where("run_id = ?", idInt).
			Order("tick ASC").
			Find(&allShifts).Error; err != nil {
			return fmt.Errorf("error getting shift events: %w", err)
		}
		shiftsByVehicle := map[uint16][]model.ShiftEventRecord{}
		for _, e := range allShifts {
			shiftsByVehicle[e.VehicleID] = append(shiftsByVehicle[e.VehicleID], e)
		}

		entities := []map[string]any{}
		for _, v := range vehicles {
			entity := map[string]any{
				"id":           v.VehicleID,
				"name":         v.DisplayName,
				"layout":       v.Layout,
				"transmission": v.Transmission,
				"massKG":       v.MassKG,
				"joinTick":     v.JoinTick,
			}

			states := statesByVehicle[v.VehicleID]
			samples := make([]any, 0, len(states))
			trace := make([]core.Vec3, 0, len(states))
			for _, s := range states {
				var xyz [3]float64
				if err := json.Unmarshal(s.PositionXYZ, &xyz); err == nil {
					trace = append(trace, core.Vec3{X: xyz[0], Y: xyz[1], Z: xyz[2]})
				}
				samples = append(samples, []any{
					s.Tick,
					xyz,
					s.SpeedMS,
					s.Engine.RPM,
					s.Transmission.Gear,
					s.Engine.OilTempC,
					s.FuelUsedL,
				})
			}
			entity["samples"] = samples

			if path, err := anchor.PathFromLocal(trace); err == nil {
				entity["trace"] = path.AsText()
			}

			shifts := make([]any, 0, len(shiftsByVehicle[v.VehicleID]))
			for _, e := range shiftsByVehicle[v.VehicleID] {
				shifts = append(shifts, []any{e.Tick, e.FromGear, e.ToGear, e.Cause, e.Duration})
			}
			entity["shifts"] = shifts

			entities = append(entities, entity)
		}
		doc["vehicles"] = entities

		var endTick uint64
		db.Model(&model.VehicleTickState{}).
			Where("run_id = ?", idInt).
			Select("COALESCE(MAX(tick), 0)").Scan(&endTick)
		doc["endTick"] = endTick

		Logger.Info().Int("runID", idInt).Dur("elapsed", time.Since(txStart)).Msg("Fetched run data")

		raw, err := json.Marshal(doc)
		if err != nil {
			return fmt.Errorf("error marshalling run data: %w", err)
		}

		fileName := fmt.Sprintf("%s_%s.json.gz", r.RunName, r.StartTime.Format("20060102_150405"))
		fileName = strings.ReplaceAll(fileName, " ", "_")
		fileName = strings.ReplaceAll(fileName, ":", "_")
		f, err := os.Create(fileName)
		if err != nil {
			return fmt.Errorf("error creating file: %w", err)
		}

		gz := gzip.NewWriter(f)
		if _, err := gz.Write(raw); err != nil {
			_ = f.Close()
			return fmt.Errorf("error writing to gzip: %w", err)
		}
		if err := gz.Close(); err != nil {
			_ = f.Close()
			return err
		}
		if err := f.Close(); err != nil {
			return err
		}

		Logger.Info().Str("path", fileName).Msg("Wrote run export")
	}

	return nil
}
