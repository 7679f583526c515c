package uc

import (
	"context"
	"strings"

	"github.com/sequentry/sequentry/engine/core"
	"github.com/sequentry/sequentry/engine/health"
)

type RunCheckInput struct {
	WorkspaceID string
}

// RunCheck executes the production health checks and persists the derived
// snapshot to the audit log.
type RunCheck struct {
	monitor *health.Monitor
}

func NewRunCheck(monitor *health.Monitor) *RunCheck {
	return &RunCheck{monitor: monitor}
}

func (uc *RunCheck) Execute(ctx context.Context, in *RunCheckInput) (*health.Report, error) {
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
	return uc.monitor.RunProductionHealthCheck(ctx, core.ID(workspaceID))
}
