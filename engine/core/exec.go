package core

import "fmt"

// -----------------------------------------------------------------------------
// Execution Context
// -----------------------------------------------------------------------------

// ExecutionContext identifies one governed action end to end. RequestID is
// the circuit execution id: the same value is threaded through every circuit
// run, the suppression check, every channel agent call, and the audit trail
// of that action. A new submission always mints a fresh RequestID.
type ExecutionContext struct {
	WorkspaceID ID `json:"workspace_id"`
	ClientID    ID `json:"client_id"`
	RequestID   ID `json:"request_id"`
	UserID      ID `json:"user_id,omitempty"`
}

// NewExecutionContext mints an execution context with a fresh RequestID.
func NewExecutionContext(workspaceID, clientID, userID ID) ExecutionContext {
	return ExecutionContext{
		WorkspaceID: workspaceID,
		ClientID:    clientID,
		RequestID:   MustNewID(),
		UserID:      userID,
	}
}

// Validate checks the identifiers every governed action must carry.
func (e ExecutionContext) Validate() error {
	if e.WorkspaceID.IsZero() {
		return fmt.Errorf("execution context missing workspace_id")
	}
	if e.ClientID.IsZero() {
		return fmt.Errorf("execution context missing client_id")
	}
	if e.RequestID.IsZero() {
		return fmt.Errorf("execution context missing request_id")
	}
	return nil
}
