package uc

import (
	"context"
	"strings"

	"github.com/sequentry/sequentry/engine/core"
	"github.com/sequentry/sequentry/engine/strategy"
)

type UnfreezeInput struct {
	WorkspaceID string
	StrategyID  string
	AdminID     string
}

// Unfreeze is the documented admin override for frozen and escalated
// strategies. The override itself lands on the enforcement stream.
type Unfreeze struct {
	controller *strategy.Controller
}

func NewUnfreeze(controller *strategy.Controller) *Unfreeze {
	return &Unfreeze{controller: controller}
}

func (uc *Unfreeze) Execute(ctx context.Context, in *UnfreezeInput) (*strategy.State, error) {
	if in == nil {
		return nil, ErrInvalidInput
	}
	workspaceID := strings.TrimSpace(in.WorkspaceID)
	if workspaceID == "" {
		return nil, ErrWorkspaceMissing
	}
	strategyID := strings.TrimSpace(in.StrategyID)
	if strategyID == "" {
		return nil, ErrStrategyMissing
	}
	if uc.controller == nil {
		return nil, ErrControllerDisabled
	}
	adminID := strings.TrimSpace(in.AdminID)
	if adminID == "" {
		adminID = "unspecified"
	}
	return uc.controller.Unfreeze(ctx, core.ID(workspaceID), strategyID, adminID)
}
