package enforce

import (
	"context"
	"fmt"

	monitoringmetrics "github.com/sequentry/sequentry/engine/infra/monitoring/metrics"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics provides instrumentation for enforcement violations
type Metrics struct {
	meter           metric.Meter
	violationsTotal metric.Int64Counter
	mintedTotal     metric.Int64Counter
}

// NewMetrics initializes enforcement metrics using the provided meter
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
		{&m.violationsTotal, "violations_total", "Total enforcement violations by type and severity", "violations"},
		{&m.mintedTotal, "tokens_minted_total", "Total capability tokens minted by the chain runner", "minted"},
	}
	for _, def := range counterDefs {
		counter, err := m.meter.Int64Counter(
			monitoringmetrics.MetricNameWithSubsystem("enforce", def.name),
			metric.WithDescription(def.description),
			metric.WithUnit("1"),
		)
		if err != nil {
			return fmt.Errorf("failed to create enforce %s counter: %w", def.errLabel, err)
		}
		*def.target = counter
	}
	return nil
}

// OnViolation counts an enforcement violation partitioned by type, severity, and source circuit.
func (m *Metrics) OnViolation(ctx context.Context, violation ViolationType, severity Severity, source string) {
	if m == nil || m.violationsTotal == nil {
		return
	}
	m.violationsTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("violation_type", string(violation)),
		attribute.String("severity", string(severity)),
		attribute.String("source", source),
	))
}

// OnMinted counts a capability token mint.
func (m *Metrics) OnMinted(ctx context.Context) {
	if m == nil || m.mintedTotal == nil {
		return
	}
	m.mintedTotal.Add(ctx, 1)
}
