package logging

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
)

func TestNewStreamLogger(t *testing.T) {
	sl := NewStreamLogger(zerolog.New(&bytes.Buffer{}))

	if sl == nil {
		t.Fatal("expected non-nil StreamLogger")
	}
}

func TestStreamLogger_Debug(t *testing.T) {
	var buf bytes.Buffer
	sl := NewStreamLogger(zerolog.New(&buf).Level(zerolog.DebugLevel))

	sl.Debug("test message", "key1", "value1", "key2", 42)

	var logEntry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &logEntry); err != nil {
		t.Fatalf("failed to parse log output: %v", err)
	}

	if logEntry["level"] != "debug" {
		t.Errorf("expected level 'debug', got %v", logEntry["level"])
	}
	if logEntry["message"] != "test message" {
		t.Errorf("expected message 'test message', got %v", logEntry["message"])
	}
	if logEntry["key1"] != "value1" {
		t.Errorf("expected key1='value1', got %v", logEntry["key1"])
	}
	if logEntry["key2"] != float64(42) { // JSON numbers are float64
		t.Errorf("expected key2=42, got %v", logEntry["key2"])
	}
}

func TestStreamLogger_Error(t *testing.T) {
	var buf bytes.Buffer
	sl := NewStreamLogger(zerolog.New(&buf))

	sl.Error("error occurred", "code", 500, "reason", "internal")

	var logEntry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &logEntry); err != nil {
		t.Fatalf("failed to parse log output: %v", err)
	}

	if logEntry["level"] != "error" {
		t.Errorf("expected level 'error', got %v", logEntry["level"])
	}
	if logEntry["code"] != float64(500) {
		t.Errorf("expected code=500, got %v", logEntry["code"])
	}
	if logEntry["reason"] != "internal" {
		t.Errorf("expected reason='internal', got %v", logEntry["reason"])
	}
}

func TestStreamLogger_NoKeyValues(t *testing.T) {
	var buf bytes.Buffer
	sl := NewStreamLogger(zerolog.New(&buf))

	sl.Info("simple message")

	var logEntry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &logEntry); err != nil {
		t.Fatalf("failed to parse log output: %v", err)
	}

	if logEntry["message"] != "simple message" {
		t.Errorf("expected message 'simple message', got %v", logEntry["message"])
	}
}

func TestStreamLogger_ImplementsInterface(t *testing.T) {
	sl := NewStreamLogger(zerolog.New(&bytes.Buffer{}))

	// These assignments would fail to compile if the interface isn't satisfied
	var _ interface {
		Debug(msg string, keysAndValues ...any)
		Info(msg string, keysAndValues ...any)
		Error(msg string, keysAndValues ...any)
	} = sl
}
