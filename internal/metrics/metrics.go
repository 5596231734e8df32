// Package metrics exposes simulation loop counters through OpenTelemetry.
package metrics

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"

	"github.com/motorsim/drivetrain/internal/model/core"
)

// Config holds metrics configuration
type Config struct {
	Enabled     bool
	ServiceName string
}

// Provider hands out meters for simulation instruments.
// When disabled every meter is a no-op.
type Provider struct {
	config Config
}

// New creates a new metrics provider.
func New(cfg Config) *Provider {
	return &Provider{config: cfg}
}

// Meter returns a meter with the given name for creating metrics.
func (p *Provider) Meter(name string) metric.Meter {
	if !p.config.Enabled {
		return noop.Meter{}
	}
	return otel.GetMeterProvider().Meter(name)
}

// Enabled returns whether metrics are enabled
func (p *Provider) Enabled() bool {
	return p.config.Enabled
}

// Recorder holds the per-run simulation instruments.
type Recorder struct {
	ticks     metric.Int64Counter
	subSteps  metric.Int64Counter
	shifts    metric.Int64Counter
	sanitized metric.Int64Counter
	speed     metric.Float64Histogram
}

// NewRecorder creates the simulation instruments on the given meter.
func NewRecorder(meter metric.Meter) (*Recorder, error) {
	r := &Recorder{}
	var err error

	if r.ticks, err = meter.Int64Counter("sim.ticks",
		metric.WithDescription("Simulation ticks processed")); err != nil {
		return nil, fmt.Errorf("failed to create tick counter: %w", err)
	}
	if r.subSteps, err = meter.Int64Counter("sim.sub_steps",
		metric.WithDescription("Integration sub-steps executed")); err != nil {
		return nil, fmt.Errorf("failed to create sub-step counter: %w", err)
	}
	if r.shifts, err = meter.Int64Counter("sim.shifts",
		metric.WithDescription("Gear changes completed")); err != nil {
		return nil, fmt.Errorf("failed to create shift counter: %w", err)
	}
	if r.sanitized, err = meter.Int64Counter("sim.sanitized_inputs",
		metric.WithDescription("Malformed driver inputs clamped")); err != nil {
		return nil, fmt.Errorf("failed to create sanitized input counter: %w", err)
	}
	if r.speed, err = meter.Float64Histogram("sim.speed_ms",
		metric.WithDescription("Vehicle speed distribution"),
		metric.WithUnit("m/s")); err != nil {
		return nil, fmt.Errorf("failed to create speed histogram: %w", err)
	}

	return r, nil
}

// ObserveTick records the per-tick counters from a snapshot.
func (r *Recorder) ObserveTick(ctx context.Context, snap core.Snapshot) {
	r.ticks.Add(ctx, 1)
	r.subSteps.Add(ctx, int64(snap.SubSteps))
	r.sanitized.Add(ctx, int64(snap.SanitizedInputs))
	r.speed.Record(ctx, snap.Chassis.Speed)
}

// ObserveShifts records completed gear changes.
func (r *Recorder) ObserveShifts(ctx context.Context, count int) {
	if count > 0 {
		r.shifts.Add(ctx, int64(count))
	}
}
