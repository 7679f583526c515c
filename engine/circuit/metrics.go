package circuit

import (
	"context"
	"fmt"

	monitoringmetrics "github.com/sequentry/sequentry/engine/infra/monitoring/metrics"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics provides instrumentation for circuit runs and chain outcomes
type Metrics struct {
	meter             metric.Meter
	runsTotal         metric.Int64Counter
	chainFailedTotal  metric.Int64Counter
	runDurationSecond metric.Float64Histogram
}

// NewMetrics initializes circuit metrics using the provided meter
func NewMetrics(_ context.Context, meter metric.Meter) (*Metrics, error) {
	m := &Metrics{meter: meter}
	if err := m.init(); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *Metrics) init() error {
	if m.meter == nil {
		return nil
	}
	counterDefs := []struct {
		target      *metric.Int64Counter
		name        string
		description string
		errLabel    string
	}{
		{&m.runsTotal, "runs_total", "Total circuit runs by circuit and decision path", "runs"},
		{&m.chainFailedTotal, "chain_failures_total", "Total chain runs stopped by a failing circuit", "chain failures"},
	}
	for _, def := range counterDefs {
		counter, err := m.meter.Int64Counter(
			monitoringmetrics.MetricNameWithSubsystem("circuit", def.name),
			metric.WithDescription(def.description),
			metric.WithUnit("1"),
		)
		if err != nil {
			return fmt.Errorf("failed to create circuit %s counter: %w", def.errLabel, err)
		}
		*def.target = counter
	}
	histogram, err := m.meter.Float64Histogram(
		monitoringmetrics.MetricNameWithSubsystem("circuit", "run_duration_seconds"),
		metric.WithDescription("Circuit run duration including guard and capability"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(.05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60),
	)
	if err != nil {
		return fmt.Errorf("failed to create circuit run duration histogram: %w", err)
	}
	m.runDurationSecond = histogram
	return nil
}

// OnRecord counts a completed circuit run and observes its latency.
func (m *Metrics) OnRecord(ctx context.Context, record *Record) {
	if m == nil || record == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("circuit_id", record.CircuitID.String()),
		attribute.String("decision_path", string(record.DecisionPath)),
		attribute.Bool("success", record.Success),
	)
	if m.runsTotal != nil {
		m.runsTotal.Add(ctx, 1, attrs)
	}
	if m.runDurationSecond != nil {
		m.runDurationSecond.Record(ctx, float64(record.LatencyMS)/1000.0, metric.WithAttributes(
			attribute.String("circuit_id", record.CircuitID.String()),
		))
	}
}

// OnChainFailed counts a chain run stopped by the named circuit.
func (m *Metrics) OnChainFailed(ctx context.Context, id ID) {
	if m == nil || m.chainFailedTotal == nil {
		return
	}
	m.chainFailedTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("circuit_id", id.String()),
	))
}
