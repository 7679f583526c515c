package uc

import (
	"context"
	"strings"

	"github.com/sequentry/sequentry/engine/core"
	"github.com/sequentry/sequentry/engine/workflow"
	"github.com/sequentry/sequentry/pkg/config"
)

const defaultHistoryLimit = 50

type GetHistoryInput struct {
	WorkspaceID string
	Limit       int
}

type GetHistoryOutput struct {
	WorkspaceID core.ID               `json:"workspace_id"`
	Executions  []*workflow.Execution `json:"executions"`
	Limit       int                   `json:"limit"`
}

// GetHistory lists a workspace's executions newest first. A zero limit uses
// the configured history bound; callers can only tighten it.
type GetHistory struct {
	executions workflow.Repository
	cfg        *config.WorkflowConfig
}

func NewGetHistory(executions workflow.Repository, cfg *config.WorkflowConfig) *GetHistory {
	return &GetHistory{executions: executions, cfg: cfg}
}

func (uc *GetHistory) Execute(ctx context.Context, in *GetHistoryInput) (*GetHistoryOutput, error) {
	if in == nil {
		return nil, ErrInvalidInput
	}
	workspaceID := strings.TrimSpace(in.WorkspaceID)
	if workspaceID == "" {
		return nil, ErrWorkspaceMissing
	}
	if uc.executions == nil {
		return nil, ErrExecutionsDisabled
	}
	limit := uc.maxLimit()
	if in.Limit > 0 && in.Limit < limit {
		limit = in.Limit
	}
	executions, err := uc.executions.List(ctx, core.ID(workspaceID), limit)
	if err != nil {
		return nil, err
	}
	return &GetHistoryOutput{
		WorkspaceID: core.ID(workspaceID),
		Executions:  executions,
		Limit:       limit,
	}, nil
}

func (uc *GetHistory) maxLimit() int {
	if uc.cfg != nil && uc.cfg.HistoryLimit > 0 {
		return uc.cfg.HistoryLimit
	}
	return defaultHistoryLimit
}
