package circuit

import (
	"context"
	"time"

	"github.com/sequentry/sequentry/engine/core"
)

// ID identifies a policy circuit in the enforcement chain.
type ID string

const (
	IntentDetection       ID = "CX01_INTENT_DETECTION"
	AudienceResolution    ID = "CX02_AUDIENCE_RESOLUTION"
	StrategySelection     ID = "CX03_STRATEGY_SELECTION"
	ContentGeneration     ID = "CX04_CONTENT_GENERATION"
	BrandGuard            ID = "CX05_BRAND_GUARD"
	DeliveryAuthorization ID = "CX06_DELIVERY_AUTHORIZATION"
	EngagementTracking    ID = "CX07_ENGAGEMENT_TRACKING"
	AutocorrectionReview  ID = "CX08_AUTOCORRECTION_REVIEW"
)

func (id ID) String() string {
	return string(id)
}

// Definition describes a circuit loaded from the embedded catalog.
type Definition struct {
	ID          ID            `yaml:"id"                    json:"id"`
	Ordinal     int           `yaml:"ordinal"               json:"ordinal"`
	Description string        `yaml:"description,omitempty" json:"description,omitempty"`
	Guard       string        `yaml:"guard,omitempty"       json:"guard,omitempty"`
	Timeout     time.Duration `yaml:"timeout,omitempty"     json:"timeout,omitempty"`
	Required    bool          `yaml:"required"              json:"required"`
}

// DecisionPath classifies how a circuit run concluded.
type DecisionPath string

const (
	DecisionApproved        DecisionPath = "approved"
	DecisionDeclined        DecisionPath = "declined"
	DecisionGuardRejected   DecisionPath = "guard_rejected"
	DecisionTimeout         DecisionPath = "timeout"
	DecisionCapabilityError DecisionPath = "capability_error"
)

// Valid checks if the decision path is a known value
func (p DecisionPath) Valid() bool {
	switch p {
	case DecisionApproved, DecisionDeclined, DecisionGuardRejected,
		DecisionTimeout, DecisionCapabilityError:
		return true
	}
	return false
}

// Input is the request payload a circuit evaluates. The payload must carry a
// circuit_id reference matching the circuit being executed.
type Input map[string]any

const circuitReferenceKey = "circuit_id"

// CircuitReference returns the declared circuit reference, or an empty string
// when the payload carries none.
func (in Input) CircuitReference() string {
	if in == nil {
		return ""
	}
	ref, _ := in[circuitReferenceKey].(string)
	return ref
}

// WithCircuitReference returns a copy of the payload declaring the target
// circuit. The chain runner stamps each per-circuit request this way; the
// original payload is never mutated.
func (in Input) WithCircuitReference(id ID) Input {
	out := make(Input, len(in)+1)
	for k, v := range in {
		out[k] = v
	}
	out[circuitReferenceKey] = id.String()
	return out
}

// Record is the append-only audit entry produced by every circuit run.
// Confidence is a pointer so an absent score persists as NULL, never 0.0.
type Record struct {
	ID           core.ID      `db:"id"            json:"id"`
	CircuitID    ID           `db:"circuit_id"    json:"circuit_id"`
	ExecutionID  core.ID      `db:"execution_id"  json:"execution_id"`
	WorkspaceID  core.ID      `db:"workspace_id"  json:"workspace_id"`
	Success      bool         `db:"success"       json:"success"`
	Confidence   *float64     `db:"confidence"    json:"confidence,omitempty"`
	LatencyMS    int64        `db:"latency_ms"    json:"latency_ms"`
	DecisionPath DecisionPath `db:"decision_path" json:"decision_path"`
	Timestamp    time.Time    `db:"recorded_at"   json:"timestamp"`
}

// RecordAppender is the audit seam the executor writes through.
type RecordAppender interface {
	AppendRecord(ctx context.Context, record *Record) error
}
