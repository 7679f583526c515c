package uc

import "errors"

var (
	ErrInvalidInput        = errors.New("invalid input")
	ErrWorkspaceMissing    = errors.New("workspace missing")
	ErrStrategyMissing     = errors.New("strategy missing")
	ErrCoordinatorDisabled = errors.New("workflow coordinator not configured")
	ErrControllerDisabled  = errors.New("autocorrection controller not configured")
	ErrExecutionsDisabled  = errors.New("execution store not configured")
	ErrEngagementsDisabled = errors.New("engagement store not configured")
)
