package strategy

import (
	"context"
	"fmt"

	monitoringmetrics "github.com/sequentry/sequentry/engine/infra/monitoring/metrics"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics provides instrumentation for autocorrection transitions
type Metrics struct {
	meter            metric.Meter
	transitionsTotal metric.Int64Counter
	correctionsTotal metric.Int64Counter
}

// NewMetrics initializes strategy metrics using the provided meter
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
		{&m.transitionsTotal, "transitions_total", "Total strategy state transitions by edge", "transitions"},
		{&m.correctionsTotal, "corrections_total", "Total correction attempts by outcome", "corrections"},
	}
	for _, def := range counterDefs {
		counter, err := m.meter.Int64Counter(
			monitoringmetrics.MetricNameWithSubsystem("strategy", def.name),
			metric.WithDescription(def.description),
			metric.WithUnit("1"),
		)
		if err != nil {
			return fmt.Errorf("failed to create strategy %s counter: %w", def.errLabel, err)
		}
		*def.target = counter
	}
	return nil
}

// OnTransition counts a state transition.
func (m *Metrics) OnTransition(ctx context.Context, from, to Status) {
	if m == nil || m.transitionsTotal == nil {
		return
	}
	m.transitionsTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("from", string(from)),
		attribute.String("to", string(to)),
	))
}

// OnCorrection counts a correction attempt outcome.
func (m *Metrics) OnCorrection(ctx context.Context, outcome string) {
	if m == nil || m.correctionsTotal == nil {
		return
	}
	m.correctionsTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("outcome", outcome),
	))
}
