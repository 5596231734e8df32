// Package live streams telemetry over WebSocket to a dashboard server.
// Per-tick snapshots are fire-and-forget and may be dropped under
// backpressure; run boundaries wait for a server ack.
package live

import (
	"encoding/json"
	"fmt"

	"github.com/motorsim/drivetrain/internal/model"
	"github.com/motorsim/drivetrain/internal/model/core"
)

// Message types understood by the dashboard server.
const (
	TypeStartRun   = "start_run"
	TypeEndRun     = "end_run"
	TypeAddVehicle = "add_vehicle"
	TypeSnapshot   = "snapshot"
	TypeShiftEvent = "shift_event"
)

// Envelope wraps all messages sent over the WebSocket.
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// AckMessage is the server's acknowledgement response.
type AckMessage struct {
	Type string `json:"type"`
	For  string `json:"for"`
}

// StartRunPayload carries the run and track for a new session.
type StartRunPayload struct {
	Run   *model.Run   `json:"run"`
	Track *model.Track `json:"track"`
}

// SnapshotPayload carries one vehicle tick.
type SnapshotPayload struct {
	VehicleID uint16        `json:"vehicleId"`
	Snapshot  core.Snapshot `json:"snapshot"`
}

// ShiftEventPayload carries one gear change.
type ShiftEventPayload struct {
	VehicleID uint16                 `json:"vehicleId"`
	Event     model.ShiftEventRecord `json:"event"`
}

// Logger is the minimal logging interface the publisher needs.
type Logger interface {
	Debug(msg string, keysAndValues ...any)
	Info(msg string, keysAndValues ...any)
	Error(msg string, keysAndValues ...any)
}

// Config holds WebSocket publisher configuration.
type Config struct {
	URL    string
	Secret string
}

// Publisher streams run telemetry to the dashboard server.
type Publisher struct {
	conn *connection
	cfg  Config
}

// NewPublisher creates a new WebSocket telemetry publisher.
func NewPublisher(cfg Config, log Logger) *Publisher {
	return &Publisher{
		conn: newConnection(log),
		cfg:  cfg,
	}
}

// Init connects to the WebSocket server.
func (p *Publisher) Init() error {
	return p.conn.dial(p.cfg.URL, p.cfg.Secret)
}

// Close disconnects from the WebSocket server.
func (p *Publisher) Close() error {
	return p.conn.close()
}

// marshalEnvelope builds a JSON-encoded Envelope from a message type and payload.
func marshalEnvelope(msgType string, payload any) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", msgType, err)
	}
	env := Envelope{Type: msgType, Payload: raw}
	data, err := json.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("marshal %s envelope: %w", msgType, err)
	}
	return data, nil
}

// sendEnvelope marshals the payload and pushes it to the write loop
// (fire-and-forget).
func (p *Publisher) sendEnvelope(msgType string, payload any) error {
	data, err := marshalEnvelope(msgType, payload)
	if err != nil {
		return err
	}
	p.conn.send(data)
	return nil
}

// StartRun sends run and track data and waits for server ack.
func (p *Publisher) StartRun(r *model.Run, track *model.Track) error {
	data, err := marshalEnvelope(TypeStartRun, StartRunPayload{Run: r, Track: track})
	if err != nil {
		return err
	}

	// Cache for reconnect replay.
	p.conn.mu.Lock()
	p.conn.cachedStartMsg = data
	p.conn.mu.Unlock()

	return p.conn.sendAndWait(data, TypeStartRun, ackTimeout)
}

// EndRun sends end_run and waits for server ack.
func (p *Publisher) EndRun() error {
	err := p.sendEnvelopeAndWait(TypeEndRun, nil)

	// Clear cached state regardless of error.
	p.conn.mu.Lock()
	p.conn.cachedStartMsg = nil
	p.conn.mu.Unlock()

	return err
}

func (p *Publisher) sendEnvelopeAndWait(msgType string, payload any) error {
	data, err := marshalEnvelope(msgType, payload)
	if err != nil {
		return err
	}
	return p.conn.sendAndWait(data, msgType, ackTimeout)
}

// AddVehicle announces a vehicle joining the run.
func (p *Publisher) AddVehicle(v *model.VehicleRecord) error {
	return p.sendEnvelope(TypeAddVehicle, v)
}

// PublishSnapshot streams one vehicle tick. Lossy under backpressure.
func (p *Publisher) PublishSnapshot(vehicleID uint16, snap core.Snapshot) error {
	return p.sendEnvelope(TypeSnapshot, SnapshotPayload{VehicleID: vehicleID, Snapshot: snap})
}

// PublishShiftEvent streams one gear change. Lossy under backpressure.
func (p *Publisher) PublishShiftEvent(vehicleID uint16, ev model.ShiftEventRecord) error {
	return p.sendEnvelope(TypeShiftEvent, ShiftEventPayload{VehicleID: vehicleID, Event: ev})
}
