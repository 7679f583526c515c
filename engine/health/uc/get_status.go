package uc

import (
	"context"
	"strings"

	"github.com/sequentry/sequentry/engine/audit"
	"github.com/sequentry/sequentry/engine/core"
	"github.com/sequentry/sequentry/engine/health"
)

type GetStatusInput struct {
	WorkspaceID string
}

type GetStatusOutput struct {
	Report   *health.Report  `json:"report"`
	Snapshot *audit.Snapshot `json:"snapshot,omitempty"`
}

// GetStatus reports current workspace health plus the last persisted
// snapshot without appending anything.
type GetStatus struct {
	monitor *health.Monitor
	log     audit.Log
}

func NewGetStatus(monitor *health.Monitor, log audit.Log) *GetStatus {
	return &GetStatus{monitor: monitor, log: log}
}

func (uc *GetStatus) Execute(ctx context.Context, in *GetStatusInput) (*GetStatusOutput, error) {
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
	report, err := uc.monitor.RunChecks(ctx, core.ID(workspaceID))
	if err != nil {
		return nil, err
	}
	out := &GetStatusOutput{Report: report}
	if uc.log != nil {
		snapshot, err := uc.log.LatestSnapshot(ctx, core.ID(workspaceID))
		if err != nil {
			return nil, err
		}
		out.Snapshot = snapshot
	}
	return out, nil
}
