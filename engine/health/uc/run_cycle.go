package uc

import (
	"context"
	"strings"

	"github.com/sequentry/sequentry/engine/core"
	"github.com/sequentry/sequentry/engine/health"
)

type RunCycleInput struct {
	WorkspaceID string
}

// RunCycle triggers one monitoring cycle on demand: checks, snapshot, and
// decline forwarding for failing workspace-level checks.
type RunCycle struct {
	monitor *health.Monitor
}

func NewRunCycle(monitor *health.Monitor) *RunCycle {
	return &RunCycle{monitor: monitor}
}

func (uc *RunCycle) Execute(ctx context.Context, in *RunCycleInput) (*health.CycleReport, error) {
	if in == nil {
		return nil, ErrInvalidInput
	}
	workspaceID := strings.TrimSpace(in.WorkspaceID)
	if workspaceID == "" {
		return nil, ErrWorkspaceMissing
	}
	if uc.monitor == nil {
		return nil, ErrMonitorDisabled
	}
	return uc.monitor.RunMonitoringCycle(ctx, core.ID(workspaceID))
}
