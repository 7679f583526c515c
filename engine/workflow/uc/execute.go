package uc

import (
	"context"

	"github.com/sequentry/sequentry/engine/workflow"
)

type ExecuteInput struct {
	Input *workflow.Input
}

// Execute submits one multi-channel workflow and waits for its terminal
// status. Input validation beyond presence belongs to the coordinator.
type Execute struct {
	coordinator *workflow.Coordinator
}

func NewExecute(coordinator *workflow.Coordinator) *Execute {
	return &Execute{coordinator: coordinator}
}

func (uc *Execute) Execute(ctx context.Context, in *ExecuteInput) (*workflow.Result, error) {
	if in == nil || in.Input == nil {
		return nil, ErrInvalidInput
	}
	if uc.coordinator == nil {
		return nil, ErrCoordinatorDisabled
	}
	return uc.coordinator.ExecuteWorkflow(ctx, in.Input)
}
