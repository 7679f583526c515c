package uc

import (
	"context"

	"github.com/sequentry/sequentry/engine/health"
)

// RunPreflight verifies deployment readiness against the wired backends.
type RunPreflight struct {
	deps health.PreflightDeps
}

func NewRunPreflight(deps health.PreflightDeps) *RunPreflight {
	return &RunPreflight{deps: deps}
}

func (uc *RunPreflight) Execute(ctx context.Context) (*health.PreflightReport, error) {
	return health.RunPreflightCheck(ctx, uc.deps), nil
}
