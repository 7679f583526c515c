package health

import (
	"context"
	"fmt"
	"strconv"

	monitoringmetrics "github.com/sequentry/sequentry/engine/infra/monitoring/metrics"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics provides instrumentation for health checks and monitoring cycles
type Metrics struct {
	meter       metric.Meter
	checksTotal metric.Int64Counter
	cyclesTotal metric.Int64Counter
}

// NewMetrics initializes health metrics using the provided meter
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
		{&m.checksTotal, "checks_total", "Total production health check evaluations by check and outcome", "checks"},
		{&m.cyclesTotal, "monitoring_cycles_total", "Total monitoring cycles by overall health outcome", "cycles"},
	}
	for _, def := range counterDefs {
		counter, err := m.meter.Int64Counter(
			monitoringmetrics.MetricNameWithSubsystem("health", def.name),
			metric.WithDescription(def.description),
			metric.WithUnit("1"),
		)
		if err != nil {
			return fmt.Errorf("failed to create health %s counter: %w", def.errLabel, err)
		}
		*def.target = counter
	}
	return nil
}

// OnChecks counts one evaluation per check result.
func (m *Metrics) OnChecks(ctx context.Context, checks []CheckResult) {
	if m == nil || m.checksTotal == nil {
		return
	}
	for _, check := range checks {
		m.checksTotal.Add(ctx, 1, metric.WithAttributes(
			attribute.String("check_id", check.ID),
			attribute.String("passed", strconv.FormatBool(check.Passed)),
		))
	}
}

// OnCycle counts a completed monitoring cycle.
func (m *Metrics) OnCycle(ctx context.Context, healthy bool) {
	if m == nil || m.cyclesTotal == nil {
		return
	}
	m.cyclesTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("healthy", strconv.FormatBool(healthy)),
	))
}
