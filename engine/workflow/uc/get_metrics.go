package uc

import (
	"context"

	"github.com/sequentry/sequentry/engine/channel"
	"github.com/sequentry/sequentry/engine/core"
	"github.com/sequentry/sequentry/engine/workflow"
)

type GetMetricsInput struct {
	ExecutionID core.ID
}

type GetMetricsOutput struct {
	Execution  *workflow.Execution          `json:"execution"`
	Aggregated *channel.AggregatedMetrics   `json:"aggregated"`
	Channels   []*channel.EngagementMetrics `json:"channels"`
}

// GetMetrics returns the cross-channel engagement view for one execution.
// Aggregation is best-effort over whatever rows have landed; a channel whose
// metrics have not arrived yet simply contributes nothing.
type GetMetrics struct {
	executions  workflow.Repository
	engagements channel.EngagementRepository
}

func NewGetMetrics(executions workflow.Repository, engagements channel.EngagementRepository) *GetMetrics {
	return &GetMetrics{executions: executions, engagements: engagements}
}

func (uc *GetMetrics) Execute(ctx context.Context, in *GetMetricsInput) (*GetMetricsOutput, error) {
	if in == nil || in.ExecutionID.IsZero() {
		return nil, ErrInvalidInput
	}
	if uc.executions == nil {
		return nil, ErrExecutionsDisabled
	}
	if uc.engagements == nil {
		return nil, ErrEngagementsDisabled
	}
	exec, err := uc.executions.Get(ctx, in.ExecutionID)
	if err != nil {
		return nil, err
	}
	rows, err := uc.engagements.ByExecution(ctx, in.ExecutionID)
	if err != nil {
		return nil, err
	}
	return &GetMetricsOutput{
		Execution:  exec,
		Aggregated: channel.Aggregate(in.ExecutionID, rows),
		Channels:   rows,
	}, nil
}
