package enforce

import (
	"context"
	"time"

	"github.com/sequentry/sequentry/engine/core"
)

// ViolationType classifies an enforcement event.
type ViolationType string

const (
	ViolationInvalidEntrypoint       ViolationType = "invalid_entrypoint"
	ViolationMissingCircuitReference ViolationType = "missing_circuit_reference"
	ViolationAutocorrectionEscalated ViolationType = "autocorrection_escalated"
	ViolationRotationUnfrozenByAdmin ViolationType = "rotation_unfrozen_by_admin"
)

// Valid checks if the violation type is a known value
func (v ViolationType) Valid() bool {
	switch v {
	case ViolationInvalidEntrypoint, ViolationMissingCircuitReference,
		ViolationAutocorrectionEscalated, ViolationRotationUnfrozenByAdmin:
		return true
	}
	return false
}

// Severity ranks enforcement events.
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityHigh     Severity = "high"
	SeverityWarning  Severity = "warning"
)

// Valid checks if the severity is a known value
func (s Severity) Valid() bool {
	return s == SeverityCritical || s == SeverityHigh || s == SeverityWarning
}

// Event is the append-only audit entry for an enforcement violation.
type Event struct {
	ID            core.ID        `db:"id"             json:"id"`
	ExecutionID   core.ID        `db:"execution_id"   json:"execution_id"`
	WorkspaceID   core.ID        `db:"workspace_id"   json:"workspace_id"`
	ViolationType ViolationType  `db:"violation_type" json:"violation_type"`
	Severity      Severity       `db:"severity"       json:"severity"`
	Source        string         `db:"source"         json:"source"`
	Detail        map[string]any `db:"detail"         json:"detail,omitempty"`
	Timestamp     time.Time      `db:"recorded_at"    json:"timestamp"`
}

// NewEvent builds an enforcement event for the given execution.
func NewEvent(
	execCtx core.ExecutionContext,
	violation ViolationType,
	severity Severity,
	source string,
	detail map[string]any,
) *Event {
	return &Event{
		ID:            core.MustNewID(),
		ExecutionID:   execCtx.RequestID,
		WorkspaceID:   execCtx.WorkspaceID,
		ViolationType: violation,
		Severity:      severity,
		Source:        source,
		Detail:        detail,
		Timestamp:     time.Now().UTC(),
	}
}

// EventSink is the audit seam enforcement violations are appended through.
type EventSink interface {
	AppendEvent(ctx context.Context, event *Event) error
}
