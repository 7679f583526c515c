package workflow

import (
	"context"
	"fmt"
	"time"

	monitoringmetrics "github.com/sequentry/sequentry/engine/infra/monitoring/metrics"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics provides instrumentation for workflow submissions and outcomes
type Metrics struct {
	meter            metric.Meter
	executionsTotal  metric.Int64Counter
	rejectionsTotal  metric.Int64Counter
	executionSeconds metric.Float64Histogram
}

// NewMetrics initializes workflow metrics using the provided meter
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
	var err error
	m.executionsTotal, err = m.meter.Int64Counter(
		monitoringmetrics.MetricNameWithSubsystem("workflow", "executions_total"),
		metric.WithDescription("Total workflow executions by flow and terminal status"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return fmt.Errorf("failed to create workflow executions counter: %w", err)
	}
	m.rejectionsTotal, err = m.meter.Int64Counter(
		monitoringmetrics.MetricNameWithSubsystem("workflow", "rejections_total"),
		metric.WithDescription("Total workflow submissions rejected before an execution opened"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return fmt.Errorf("failed to create workflow rejections counter: %w", err)
	}
	m.executionSeconds, err = m.meter.Float64Histogram(
		monitoringmetrics.MetricNameWithSubsystem("workflow", "execution_duration_seconds"),
		metric.WithDescription("Wall time from accepted submission to terminal status"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return fmt.Errorf("failed to create workflow duration histogram: %w", err)
	}
	return nil
}

// OnExecution records one terminal execution outcome.
func (m *Metrics) OnExecution(ctx context.Context, flow FlowID, status Status, elapsed time.Duration) {
	if m == nil || m.executionsTotal == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("flow_id", flow.String()),
		attribute.String("status", string(status)),
	)
	m.executionsTotal.Add(ctx, 1, attrs)
	m.executionSeconds.Record(ctx, elapsed.Seconds(), attrs)
}

// OnRejection counts a submission rejected before any execution was opened.
func (m *Metrics) OnRejection(ctx context.Context, reason string) {
	if m == nil || m.rejectionsTotal == nil {
		return
	}
	m.rejectionsTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("reason", reason),
	))
}
