package uc

import (
	"context"

	"github.com/sequentry/sequentry/engine/core"
	"github.com/sequentry/sequentry/engine/workflow"
)

type GetStatusInput struct {
	ExecutionID core.ID
}

// GetStatus loads one execution by id. The persisted row always reflects the
// true outcome, including mid-flight agent progress.
type GetStatus struct {
	executions workflow.Repository
}

func NewGetStatus(executions workflow.Repository) *GetStatus {
	return &GetStatus{executions: executions}
}

func (uc *GetStatus) Execute(ctx context.Context, in *GetStatusInput) (*workflow.Execution, error) {
	if in == nil || in.ExecutionID.IsZero() {
		return nil, ErrInvalidInput
	}
	if uc.executions == nil {
		return nil, ErrExecutionsDisabled
	}
	return uc.executions.Get(ctx, in.ExecutionID)
}
