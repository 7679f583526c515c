package channel

import (
	"context"
	"fmt"

	monitoringmetrics "github.com/sequentry/sequentry/engine/infra/monitoring/metrics"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics provides instrumentation for the engagement ingest stream
type Metrics struct {
	meter          metric.Meter
	ingestedTotal  metric.Int64Counter
	discardedTotal metric.Int64Counter
}

// NewMetrics initializes channel metrics using the provided meter
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
		{&m.ingestedTotal, "engagement_ingested_total", "Total engagement reports persisted by the ingest worker", "ingested"},
		{&m.discardedTotal, "engagement_discarded_total", "Total engagement reports discarded as malformed or unpersistable", "discarded"},
	}
	for _, def := range counterDefs {
		counter, err := m.meter.Int64Counter(
			monitoringmetrics.MetricNameWithSubsystem("channel", def.name),
			metric.WithDescription(def.description),
			metric.WithUnit("1"),
		)
		if err != nil {
			return fmt.Errorf("failed to create channel %s counter: %w", def.errLabel, err)
		}
		*def.target = counter
	}
	return nil
}

// OnIngested counts a persisted engagement report.
func (m *Metrics) OnIngested(ctx context.Context, c Channel) {
	if m == nil || m.ingestedTotal == nil {
		return
	}
	m.ingestedTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("channel", string(c)),
	))
}

// OnDiscarded counts a discarded engagement report.
func (m *Metrics) OnDiscarded(ctx context.Context, cause string) {
	if m == nil || m.discardedTotal == nil {
		return
	}
	m.discardedTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("cause", cause),
	))
}
