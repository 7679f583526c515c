package workflow

import (
	"fmt"
	"strings"
	"time"

	"github.com/sequentry/sequentry/engine/channel"
	"github.com/sequentry/sequentry/engine/circuit"
	"github.com/sequentry/sequentry/engine/core"
)

// FlowID names one multi-channel delivery flow.
type FlowID string

const (
	FlowEmailThenSocial FlowID = "EMAIL_THEN_SOCIAL"
	FlowSocialThenEmail FlowID = "SOCIAL_THEN_EMAIL"
	FlowEmailOnly       FlowID = "EMAIL_ONLY"
	FlowSocialOnly      FlowID = "SOCIAL_ONLY"
)

func (f FlowID) String() string {
	return string(f)
}

// Channels resolves the flow to its ordered channel sequence. Agents run in
// exactly this order; a later channel is causally gated on the earlier one.
func (f FlowID) Channels() []channel.Channel {
	switch f {
	case FlowEmailThenSocial:
		return []channel.Channel{channel.ChannelEmail, channel.ChannelSocial}
	case FlowSocialThenEmail:
		return []channel.Channel{channel.ChannelSocial, channel.ChannelEmail}
	case FlowEmailOnly:
		return []channel.Channel{channel.ChannelEmail}
	case FlowSocialOnly:
		return []channel.Channel{channel.ChannelSocial}
	}
	return nil
}

// Valid checks if the flow is a known value
func (f FlowID) Valid() bool {
	return f.Channels() != nil
}

// ParseFlowID normalizes and validates a flow name.
func ParseFlowID(raw string) (FlowID, error) {
	f := FlowID(strings.ToUpper(strings.TrimSpace(raw)))
	if !f.Valid() {
		return "", fmt.Errorf("unknown flow: %q", raw)
	}
	return f, nil
}

// Status tracks an execution through its lifecycle.
type Status string

const (
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// Terminal reports whether the status is final. A terminal execution is
// never mutated again.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Execution is the persisted run of one multi-channel workflow. ExecutionID
// doubles as the circuit execution id: the same value correlates the circuit
// records, the suppression check, every agent call, and the engagement rows
// of this run. AgentSequence lists the agents that actually ran, in order;
// after a first-agent failure it never names the second agent.
type Execution struct {
	ExecutionID   core.ID    `db:"execution_id"   json:"execution_id"`
	WorkspaceID   core.ID    `db:"workspace_id"   json:"workspace_id"`
	ClientID      core.ID    `db:"client_id"      json:"client_id"`
	FlowID        FlowID     `db:"flow_id"        json:"flow_id"`
	AgentSequence []string   `db:"agent_sequence" json:"agent_sequence"`
	Status        Status     `db:"status"         json:"status"`
	FailureReason *string    `db:"failure_reason" json:"failure_reason,omitempty"`
	StartedAt     time.Time  `db:"started_at"     json:"started_at"`
	CompletedAt   *time.Time `db:"completed_at"   json:"completed_at,omitempty"`
}

// NewExecution opens an in-progress execution for a freshly minted context.
func NewExecution(execCtx core.ExecutionContext, flow FlowID) *Execution {
	return &Execution{
		ExecutionID:   execCtx.RequestID,
		WorkspaceID:   execCtx.WorkspaceID,
		ClientID:      execCtx.ClientID,
		FlowID:        flow,
		AgentSequence: []string{},
		Status:        StatusInProgress,
		StartedAt:     time.Now().UTC(),
	}
}

// Input is one workflow submission. Every submission mints a fresh execution
// id; callers never supply one.
type Input struct {
	WorkspaceID string            `json:"workspace_id" validate:"required"`
	ClientID    string            `json:"client_id"    validate:"required"`
	UserID      string            `json:"user_id,omitempty"`
	FlowID      string            `json:"flow_id"      validate:"required"`
	Action      string            `json:"action"       validate:"required"`
	StrategyID  string            `json:"strategy_id,omitempty"`
	Recipient   channel.Recipient `json:"recipient"`
	Subject     string            `json:"subject,omitempty"`
	Body        string            `json:"body"`
	Metadata    map[string]any    `json:"metadata,omitempty"`
	Payload     map[string]any    `json:"payload,omitempty"`
}

// Flow parses the submitted flow name.
func (in *Input) Flow() (FlowID, error) {
	return ParseFlowID(in.FlowID)
}

// CircuitInput builds the payload the circuit chain evaluates. Guards see
// plain maps, so the recipient is flattened rather than passed as a struct.
func (in *Input) CircuitInput(flow FlowID) circuit.Input {
	payload := make(circuit.Input, len(in.Payload)+6)
	for k, v := range in.Payload {
		payload[k] = v
	}
	payload["action"] = in.Action
	payload["flow_id"] = flow.String()
	recipient := map[string]any{}
	if in.Recipient.Email != "" {
		recipient["email"] = in.Recipient.Email
	}
	if in.Recipient.Handle != "" {
		recipient["handle"] = in.Recipient.Handle
	}
	payload["recipient"] = recipient
	if in.StrategyID != "" {
		payload["strategy"] = in.StrategyID
	}
	if in.Body != "" {
		payload["content"] = in.Body
	}
	return payload
}

// Outcome is the verbatim report of one agent call. The coordinator carries
// the agent's own result through; it never recomputes provider figures.
type Outcome struct {
	Agent   string          `json:"agent"`
	Channel channel.Channel `json:"channel"`
	Result  *channel.Result `json:"result"`
}

// Result is the coordinator's answer for one accepted submission.
type Result struct {
	Execution *Execution `json:"execution"`
	Outcomes  []Outcome  `json:"outcomes,omitempty"`
}
