// Package logging configures the zerolog output stack: colored console,
// plain-text session log file and optional Graylog GELF shipping.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/Graylog2/go-gelf/gelf"
	"github.com/rs/zerolog"
	"github.com/spf13/viper"
)

// Manager owns the process logger and the callbacks that decorate every
// entry with current run state.
type Manager struct {
	logger      zerolog.Logger
	traceSample zerolog.Logger

	// Set by the host once the run context exists.
	GetRunName func() string
	GetRunID   func() uint
}

// NewManager returns a manager logging to stdout until Setup is called.
func NewManager() *Manager {
	m := &Manager{}
	m.logger = zerolog.New(zerolog.ConsoleWriter{
		Out:        os.Stdout,
		TimeFormat: time.RFC3339,
	}).With().Timestamp().Logger()
	return m
}

// Setup builds the full writer stack. file may be nil to log to console
// only. Level and Graylog settings come from the loaded configuration.
func (m *Manager) Setup(file *os.File) {
	zerolog.SetGlobalLevel(ParseLevel(viper.GetString("logLevel")))
	zerolog.TimestampFunc = func() time.Time {
		return time.Now().UTC()
	}

	writers := []io.Writer{
		zerolog.ConsoleWriter{
			Out:        os.Stdout,
			TimeFormat: time.RFC3339,
		},
	}
	if file != nil {
		writers = append(writers, zerolog.ConsoleWriter{
			Out:        file,
			TimeFormat: time.RFC3339,
			NoColor:    true,
		})
	}
	if viper.GetBool("graylog.enabled") {
		gelfWriter, err := gelf.NewWriter(viper.GetString("graylog.address"))
		if err != nil {
			m.logger.Warn().Err(err).Msg("Failed to connect to Graylog, skipping GELF output")
		} else {
			writers = append(writers, gelfWriter)
		}
	}

	m.logger = zerolog.New(zerolog.MultiLevelWriter(writers...)).
		With().Timestamp().Logger().
		Hook(zerolog.HookFunc(
			func(e *zerolog.Event, level zerolog.Level, msg string) {
				if m.GetRunName != nil {
					e.Str("currentRun", m.GetRunName())
				}
				if m.GetRunID != nil {
					e.Uint("currentRunID", m.GetRunID())
				}
			}))

	m.traceSample = m.logger.Sample(&zerolog.BurstSampler{
		// allow max 5 entries per 10 seconds, then sample 1 in 100
		Burst:       5,
		Period:      10 * time.Second,
		NextSampler: &zerolog.BasicSampler{N: 100},
	})

	m.logger.Info().Str("loglevel", zerolog.GlobalLevel().String()).Msg("Logging set up")
}

// Logger returns the configured logger.
func (m *Manager) Logger() zerolog.Logger {
	return m.logger
}

// TraceSample returns a burst-sampled logger for per-tick noise.
func (m *Manager) TraceSample() zerolog.Logger {
	return m.traceSample
}

// ParseLevel maps a config string to a zerolog level, defaulting to info.
func ParseLevel(s string) zerolog.Level {
	switch strings.ToUpper(s) {
	case "TRACE":
		return zerolog.TraceLevel
	case "DEBUG":
		return zerolog.DebugLevel
	case "INFO":
		return zerolog.InfoLevel
	case "WARN":
		return zerolog.WarnLevel
	case "ERROR":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// LogFilePath builds a log file path using OS-appropriate path separators.
func LogFilePath(logsDir, appName string, sessionStart time.Time) string {
	return filepath.Join(
		logsDir,
		fmt.Sprintf("%s.%s.log", appName, sessionStart.Format("20060102_150405")),
	)
}
