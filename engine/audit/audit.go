package audit

import (
	"context"
	"time"

	"github.com/sequentry/sequentry/engine/circuit"
	"github.com/sequentry/sequentry/engine/core"
	"github.com/sequentry/sequentry/engine/enforce"
)

// Filter narrows audit stream queries. Zero-valued fields are ignored;
// CircuitID applies to the record stream only.
type Filter struct {
	WorkspaceID core.ID
	CircuitID   circuit.ID
	ExecutionID core.ID
	Since       time.Time
	Until       time.Time
	Success     *bool
	Limit       int
}

// RecordCounts aggregates the record stream for health windows.
type RecordCounts struct {
	Total    int64 `db:"total"`
	Failures int64 `db:"failures"`
}

// Snapshot is the derived health state a monitoring cycle appends to the
// audit log. Re-deriving over the same window yields the same snapshot.
type Snapshot struct {
	ID                 core.ID   `db:"id"                   json:"id"`
	WorkspaceID        core.ID   `db:"workspace_id"         json:"workspace_id"`
	WindowStart        time.Time `db:"window_start"         json:"window_start"`
	WindowEnd          time.Time `db:"window_end"           json:"window_end"`
	SuccessRate        float64   `db:"success_rate"         json:"success_rate"`
	RecoveryCyclesMax  int       `db:"recovery_cycles_max"  json:"recovery_cycles_max"`
	BrandViolationRate float64   `db:"brand_violation_rate" json:"brand_violation_rate"`
	SystemHealthy      bool      `db:"system_healthy"       json:"system_healthy"`
	Timestamp          time.Time `db:"recorded_at"          json:"timestamp"`
}

// Log is the append-only audit trail of circuit records, enforcement events,
// and health snapshots. Implementations expose no update or delete paths.
type Log interface {
	AppendRecord(ctx context.Context, record *circuit.Record) error
	AppendEvent(ctx context.Context, event *enforce.Event) error
	AppendSnapshot(ctx context.Context, snapshot *Snapshot) error
	Records(ctx context.Context, filter Filter) ([]*circuit.Record, error)
	Events(ctx context.Context, filter Filter) ([]*enforce.Event, error)
	Snapshots(ctx context.Context, filter Filter) ([]*Snapshot, error)
	CountRecords(ctx context.Context, filter Filter) (RecordCounts, error)
	LatestSnapshot(ctx context.Context, workspaceID core.ID) (*Snapshot, error)
}
