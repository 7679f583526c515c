package circuit

import "errors"

// Error codes attached to core.Error values returned by the registry,
// executor, and chain runner.
const (
	ErrCodeUnknownCircuit   = "UNKNOWN_CIRCUIT"
	ErrCodeTimeout          = "CIRCUIT_TIMEOUT"
	ErrCodeValidationFailed = "CIRCUIT_VALIDATION_FAILED"
)

var (
	// ErrUnknownCircuit is returned for circuit ids absent from the catalog.
	ErrUnknownCircuit = errors.New("unknown circuit")
	// ErrSequenceOrder is returned when a chain sequence violates ordinal order.
	ErrSequenceOrder = errors.New("circuit sequence out of order")
	// ErrGuardInvalid is returned when a guard expression cannot be compiled.
	ErrGuardInvalid = errors.New("invalid guard expression")
)
