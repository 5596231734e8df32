package influx

import (
	"compress/gzip"
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	influxdb2_write "github.com/influxdata/influxdb-client-go/v2/api/write"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/motorsim/drivetrain/internal/model/core"
)

func TestTelemetryPoint(t *testing.T) {
	snap := core.Snapshot{
		Chassis:      core.ChassisSnapshot{Speed: 33.2},
		Transmission: core.TransmissionSnapshot{Gear: 4, OutputTorque: 900},
	}

	point := TelemetryPoint("morning-sprint", 2, snap)
	line := influxdb2_write.PointToLineProtocol(point, time.Nanosecond)

	assert.Contains(t, line, "vehicle_state")
	assert.Contains(t, line, "run=morning-sprint")
	assert.Contains(t, line, "vehicle=2")
	assert.Contains(t, line, "gear=4")
	assert.Contains(t, line, "speed_ms=33.2")
}

func TestEnginePoint(t *testing.T) {
	snap := core.Snapshot{
		Engine: core.EngineSnapshot{RPM: 4200, Temperature: 101.5},
	}

	point := EnginePoint("r", 1, snap)
	line := influxdb2_write.PointToLineProtocol(point, time.Nanosecond)

	assert.Contains(t, line, "engine_state")
	assert.Contains(t, line, "rpm=4200")
	assert.Contains(t, line, "oil_temp_c=101.5")
}

func TestWritePoint_BackupFallback(t *testing.T) {
	path := filepath.Join(t.TempDir(), "influx_backup.log.gz")

	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	require.NoError(t, err)

	m := NewManager(zerolog.Nop(), path)
	m.BackupWriter = gzip.NewWriter(file)

	point := TelemetryPoint("backup-run", 1, core.Snapshot{})
	require.NoError(t, m.WritePoint(context.Background(), BucketRunTelemetry, point))
	m.Close()

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	gz, err := gzip.NewReader(f)
	require.NoError(t, err)
	defer gz.Close()

	data, err := io.ReadAll(gz)
	require.NoError(t, err)
	assert.Contains(t, string(data), "run=backup-run")
}

func TestWritePoint_NoWriterNoBackup(t *testing.T) {
	m := NewManager(zerolog.Nop(), "")
	err := m.WritePoint(context.Background(), BucketRunTelemetry, TelemetryPoint("r", 1, core.Snapshot{}))
	require.Error(t, err)
}
