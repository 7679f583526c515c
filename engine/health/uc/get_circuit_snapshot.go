package uc

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sequentry/sequentry/engine/audit"
	"github.com/sequentry/sequentry/engine/circuit"
	"github.com/sequentry/sequentry/engine/core"
	"github.com/sequentry/sequentry/engine/health"
	"github.com/sequentry/sequentry/pkg/config"
	str2duration "github.com/xhit/go-str2duration/v2"
)

// latencySampleSize caps how many recent records feed the latency figures.
// Success counts stay exact; latency is a recency sample.
const latencySampleSize = 500

type GetCircuitSnapshotInput struct {
	WorkspaceID string
	CircuitID   string
}

type CircuitSnapshot struct {
	CircuitID    circuit.ID `json:"circuit_id"`
	Description  string     `json:"description,omitempty"`
	Required     bool       `json:"required"`
	Window       string     `json:"window"`
	Total        int64      `json:"total"`
	Failures     int64      `json:"failures"`
	SuccessRate  float64    `json:"success_rate"`
	AvgLatencyMS float64    `json:"avg_latency_ms"`
	MaxLatencyMS int64      `json:"max_latency_ms"`
	SampleSize   int        `json:"sample_size"`
}

// GetCircuitSnapshot reports per-circuit success rate and latency over the
// configured success window.
type GetCircuitSnapshot struct {
	log      audit.Log
	registry *circuit.Registry
	cfg      *config.HealthConfig
}

func NewGetCircuitSnapshot(log audit.Log, registry *circuit.Registry, cfg *config.HealthConfig) *GetCircuitSnapshot {
	return &GetCircuitSnapshot{log: log, registry: registry, cfg: cfg}
}

func (uc *GetCircuitSnapshot) Execute(ctx context.Context, in *GetCircuitSnapshotInput) (*CircuitSnapshot, error) {
	if in == nil {
		return nil, ErrInvalidInput
	}
	workspaceID := strings.TrimSpace(in.WorkspaceID)
	if workspaceID == "" {
		return nil, ErrWorkspaceMissing
	}
	circuitID := strings.TrimSpace(in.CircuitID)
	if circuitID == "" {
		return nil, ErrCircuitMissing
	}
	def, err := uc.registry.Get(circuit.ID(circuitID))
	if err != nil {
		return nil, err
	}
	window, err := str2duration.ParseDuration(uc.cfg.SuccessRateWindow)
	if err != nil {
		return nil, fmt.Errorf("invalid success rate window %q: %w", uc.cfg.SuccessRateWindow, err)
	}
	filter := audit.Filter{
		WorkspaceID: core.ID(workspaceID),
		CircuitID:   def.ID,
		Since:       time.Now().UTC().Add(-window),
	}
	counts, err := uc.log.CountRecords(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("counting circuit records: %w", err)
	}
	snapshot := &CircuitSnapshot{
		CircuitID:   def.ID,
		Description: def.Description,
		Required:    def.Required,
		Window:      uc.cfg.SuccessRateWindow,
		Total:       counts.Total,
		Failures:    counts.Failures,
		SuccessRate: health.NoData,
	}
	if counts.Total > 0 {
		snapshot.SuccessRate = float64(counts.Total-counts.Failures) / float64(counts.Total)
	}
	filter.Limit = latencySampleSize
	records, err := uc.log.Records(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("sampling circuit records: %w", err)
	}
	snapshot.SampleSize = len(records)
	if len(records) > 0 {
		var sum int64
		for _, record := range records {
			sum += record.LatencyMS
			if record.LatencyMS > snapshot.MaxLatencyMS {
				snapshot.MaxLatencyMS = record.LatencyMS
			}
		}
		snapshot.AvgLatencyMS = float64(sum) / float64(len(records))
	}
	return snapshot, nil
}
