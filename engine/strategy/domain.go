package strategy

import (
	"errors"
	"time"

	"github.com/sequentry/sequentry/engine/core"
)

// Error codes attached to core.Error values raised by the controller.
const (
	ErrCodeStateConflict        = "STATE_CONFLICT"
	ErrCodeAutocorrectionFailed = "AUTOCORRECTION_FAILED"
)

var (
	// ErrStateNotFound is returned when no state exists for the key.
	ErrStateNotFound = errors.New("strategy state not found")
	// ErrStateConflict is returned when a compare-and-swap found the state
	// changed since it was read. Callers retry their read-decide-write cycle.
	ErrStateConflict = errors.New("strategy state changed concurrently")
	// ErrNotFrozen is returned when an admin unfreeze targets a strategy
	// that is neither frozen nor escalated.
	ErrNotFrozen = errors.New("strategy is not frozen")
)

// Status is the autocorrection lifecycle position of a strategy.
type Status string

const (
	// StatusActive strategies are eligible for rotation.
	StatusActive Status = "active"
	// StatusDeclining strategies have accumulated decline cycles.
	StatusDeclining Status = "declining"
	// StatusFrozen strategies exceeded the decline budget and are excluded
	// from rotation until a correction succeeds or an admin intervenes.
	StatusFrozen Status = "frozen"
	// StatusEscalated is terminal until an admin intervenes.
	StatusEscalated Status = "escalated"
)

// Valid checks if the status is a known value
func (s Status) Valid() bool {
	switch s {
	case StatusActive, StatusDeclining, StatusFrozen, StatusEscalated:
		return true
	}
	return false
}

// State is the per-(workspace, strategy) autocorrection record. It is the
// only cross-execution mutable state in the engine and is updated only
// through keyed compare-and-swap, never read-modify-write in place.
//
// CorrectionCycle stores the decline-cycle number of the last correction
// attempt. It enforces at most one attempt per cycle, and a non-zero value on
// an active state marks a correction whose improvement is not yet verified:
// a decline arriving in that window is a regression and escalates.
type State struct {
	StrategyID               string     `db:"strategy_id"                json:"strategy_id"`
	WorkspaceID              core.ID    `db:"workspace_id"               json:"workspace_id"`
	Status                   Status     `db:"status"                     json:"status"`
	ConsecutiveDeclineCycles int        `db:"consecutive_decline_cycles" json:"consecutive_decline_cycles"`
	RotationFrozen           bool       `db:"rotation_frozen"            json:"rotation_frozen"`
	CorrectionCycle          int        `db:"correction_cycle"           json:"correction_cycle"`
	LastRotatedAt            *time.Time `db:"last_rotated_at"            json:"last_rotated_at,omitempty"`
	UpdatedAt                time.Time  `db:"updated_at"                 json:"updated_at"`
}

// NewState returns the initial active state for a strategy.
func NewState(workspaceID core.ID, strategyID string) *State {
	return &State{
		StrategyID:  strategyID,
		WorkspaceID: workspaceID,
		Status:      StatusActive,
		UpdatedAt:   time.Now().UTC(),
	}
}

// Rotatable reports whether the strategy may be selected by rotation.
// Frozen strategies are never candidates.
func (s *State) Rotatable() bool {
	return !s.RotationFrozen && (s.Status == StatusActive || s.Status == StatusDeclining)
}

// Expected pins the fields a transition read before deciding. A swap applies
// only while the stored state still matches.
type Expected struct {
	Status                   Status
	ConsecutiveDeclineCycles int
	CorrectionCycle          int
}

// Snapshot captures the CAS expectation for the state as currently read.
func (s *State) Snapshot() Expected {
	return Expected{
		Status:                   s.Status,
		ConsecutiveDeclineCycles: s.ConsecutiveDeclineCycles,
		CorrectionCycle:          s.CorrectionCycle,
	}
}
