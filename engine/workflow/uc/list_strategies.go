package uc

import (
	"context"
	"strings"

	"github.com/sequentry/sequentry/engine/core"
	"github.com/sequentry/sequentry/engine/strategy"
)

type ListStrategiesInput struct {
	WorkspaceID string
}

type ListStrategiesOutput struct {
	WorkspaceID core.ID           `json:"workspace_id"`
	States      []*strategy.State `json:"states"`
}

// ListStrategies is the admin view over a workspace's strategy states,
// including frozen and escalated ones.
type ListStrategies struct {
	controller *strategy.Controller
}

func NewListStrategies(controller *strategy.Controller) *ListStrategies {
	return &ListStrategies{controller: controller}
}

func (uc *ListStrategies) Execute(ctx context.Context, in *ListStrategiesInput) (*ListStrategiesOutput, error) {
	if in == nil {
		return nil, ErrInvalidInput
	}
	workspaceID := strings.TrimSpace(in.WorkspaceID)
	if workspaceID == "" {
		return nil, ErrWorkspaceMissing
	}
	if uc.controller == nil {
		return nil, ErrControllerDisabled
	}
	states, err := uc.controller.States(ctx, core.ID(workspaceID))
	if err != nil {
		return nil, err
	}
	return &ListStrategiesOutput{
		WorkspaceID: core.ID(workspaceID),
		States:      states,
	}, nil
}
