package uc

import "errors"

var (
	ErrInvalidInput     = errors.New("invalid input")
	ErrWorkspaceMissing = errors.New("workspace missing")
	ErrCircuitMissing   = errors.New("circuit missing")
	ErrMonitorDisabled  = errors.New("health monitor not configured")
)
