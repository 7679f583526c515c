package workflow

import "errors"

// Error codes attached to core.Error values returned by the coordinator.
// CIRCUIT_VALIDATION_FAILED reuses the circuit package's code so a chain
// rejection reads the same whether it surfaced there or here.
const (
	ErrCodeSuppressionTriggered   = "UNIFIED_SUPPRESSION_TRIGGERED"
	ErrCodeAgentExecutionFailed   = "AGENT_EXECUTION_FAILED"
	ErrCodeSubmissionRateExceeded = "SUBMISSION_RATE_EXCEEDED"
)

var (
	// ErrInvalidSubmission is returned for submissions rejected before an
	// execution opened: missing fields, unknown flows, absent addresses.
	ErrInvalidSubmission = errors.New("invalid workflow submission")
	// ErrExecutionNotFound is returned for execution ids the store has never
	// seen, and for updates that matched no mutable row.
	ErrExecutionNotFound = errors.New("workflow execution not found")
	// ErrSubmissionLimited is returned when a workspace exhausts its
	// submission budget or the engine is at its concurrency bound.
	ErrSubmissionLimited = errors.New("workflow submission rate exceeded")
	// ErrNoAgentForChannel is returned when a flow names a channel the
	// deployment has no agent for.
	ErrNoAgentForChannel = errors.New("no agent registered for channel")
)
