package uc_test

import (
	"context"
	"testing"
	"time"

	"github.com/sequentry/sequentry/engine/audit"
	"github.com/sequentry/sequentry/engine/channel"
	"github.com/sequentry/sequentry/engine/core"
	"github.com/sequentry/sequentry/engine/strategy"
	"github.com/sequentry/sequentry/engine/workflow"
	"github.com/sequentry/sequentry/engine/workflow/uc"
	"github.com/sequentry/sequentry/pkg/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedExecution(t *testing.T, repo workflow.Repository, workspaceID core.ID) *workflow.Execution {
	t.Helper()
	execCtx := core.NewExecutionContext(workspaceID, core.MustNewID(), "")
	exec := workflow.NewExecution(execCtx, workflow.FlowEmailThenSocial)
	require.NoError(t, repo.Create(context.Background(), exec))
	return exec
}

func newController(t *testing.T) (*strategy.Controller, *strategy.MemoryRepository) {
	t.Helper()
	repo := strategy.NewMemoryRepository()
	controller, err := strategy.NewController(repo, audit.NewMemoryLog())
	require.NoError(t, err)
	return controller, repo
}

func TestExecute(t *testing.T) {
	ctx := context.Background()

	t.Run("Should validate input", func(t *testing.T) {
		executeUC := uc.NewExecute(nil)
		_, err := executeUC.Execute(ctx, nil)
		assert.ErrorIs(t, err, uc.ErrInvalidInput)
		_, err = executeUC.Execute(ctx, &uc.ExecuteInput{})
		assert.ErrorIs(t, err, uc.ErrInvalidInput)
	})

	t.Run("Should require a coordinator", func(t *testing.T) {
		executeUC := uc.NewExecute(nil)
		_, err := executeUC.Execute(ctx, &uc.ExecuteInput{Input: &workflow.Input{}})
		assert.ErrorIs(t, err, uc.ErrCoordinatorDisabled)
	})
}

func TestGetStatus(t *testing.T) {
	ctx := context.Background()

	t.Run("Should validate input", func(t *testing.T) {
		statusUC := uc.NewGetStatus(workflow.NewMemoryRepository())
		_, err := statusUC.Execute(ctx, nil)
		assert.ErrorIs(t, err, uc.ErrInvalidInput)
		_, err = statusUC.Execute(ctx, &uc.GetStatusInput{})
		assert.ErrorIs(t, err, uc.ErrInvalidInput)
	})

	t.Run("Should require an execution store", func(t *testing.T) {
		statusUC := uc.NewGetStatus(nil)
		_, err := statusUC.Execute(ctx, &uc.GetStatusInput{ExecutionID: core.MustNewID()})
		assert.ErrorIs(t, err, uc.ErrExecutionsDisabled)
	})

	t.Run("Should load the persisted execution", func(t *testing.T) {
		repo := workflow.NewMemoryRepository()
		exec := seedExecution(t, repo, "ws-1")
		statusUC := uc.NewGetStatus(repo)

		out, err := statusUC.Execute(ctx, &uc.GetStatusInput{ExecutionID: exec.ExecutionID})
		require.NoError(t, err)
		assert.Equal(t, exec.ExecutionID, out.ExecutionID)
		assert.Equal(t, workflow.StatusInProgress, out.Status)
	})

	t.Run("Should report unknown executions", func(t *testing.T) {
		statusUC := uc.NewGetStatus(workflow.NewMemoryRepository())
		_, err := statusUC.Execute(ctx, &uc.GetStatusInput{ExecutionID: core.MustNewID()})
		assert.ErrorIs(t, err, workflow.ErrExecutionNotFound)
	})
}

func TestGetHistory(t *testing.T) {
	ctx := context.Background()

	t.Run("Should validate input", func(t *testing.T) {
		historyUC := uc.NewGetHistory(workflow.NewMemoryRepository(), nil)
		_, err := historyUC.Execute(ctx, nil)
		assert.ErrorIs(t, err, uc.ErrInvalidInput)
		_, err = historyUC.Execute(ctx, &uc.GetHistoryInput{WorkspaceID: "  "})
		assert.ErrorIs(t, err, uc.ErrWorkspaceMissing)
	})

	t.Run("Should require an execution store", func(t *testing.T) {
		historyUC := uc.NewGetHistory(nil, nil)
		_, err := historyUC.Execute(ctx, &uc.GetHistoryInput{WorkspaceID: "ws-1"})
		assert.ErrorIs(t, err, uc.ErrExecutionsDisabled)
	})

	t.Run("Should bound the limit by configuration", func(t *testing.T) {
		repo := workflow.NewMemoryRepository()
		for i := 0; i < 8; i++ {
			seedExecution(t, repo, "ws-1")
		}
		historyUC := uc.NewGetHistory(repo, &config.WorkflowConfig{HistoryLimit: 5})

		out, err := historyUC.Execute(ctx, &uc.GetHistoryInput{WorkspaceID: "ws-1"})
		require.NoError(t, err)
		assert.Equal(t, 5, out.Limit)
		assert.Len(t, out.Executions, 5)

		// callers can tighten but never widen
		out, err = historyUC.Execute(ctx, &uc.GetHistoryInput{WorkspaceID: "ws-1", Limit: 2})
		require.NoError(t, err)
		assert.Equal(t, 2, out.Limit)
		assert.Len(t, out.Executions, 2)

		out, err = historyUC.Execute(ctx, &uc.GetHistoryInput{WorkspaceID: "ws-1", Limit: 50})
		require.NoError(t, err)
		assert.Equal(t, 5, out.Limit)
	})
}

func TestGetMetrics(t *testing.T) {
	ctx := context.Background()

	t.Run("Should validate input", func(t *testing.T) {
		metricsUC := uc.NewGetMetrics(workflow.NewMemoryRepository(), channel.NewMemoryEngagementRepository())
		_, err := metricsUC.Execute(ctx, nil)
		assert.ErrorIs(t, err, uc.ErrInvalidInput)
	})

	t.Run("Should require its stores", func(t *testing.T) {
		metricsUC := uc.NewGetMetrics(nil, channel.NewMemoryEngagementRepository())
		_, err := metricsUC.Execute(ctx, &uc.GetMetricsInput{ExecutionID: core.MustNewID()})
		assert.ErrorIs(t, err, uc.ErrExecutionsDisabled)

		metricsUC = uc.NewGetMetrics(workflow.NewMemoryRepository(), nil)
		_, err = metricsUC.Execute(ctx, &uc.GetMetricsInput{ExecutionID: core.MustNewID()})
		assert.ErrorIs(t, err, uc.ErrEngagementsDisabled)
	})

	t.Run("Should report unknown executions", func(t *testing.T) {
		metricsUC := uc.NewGetMetrics(workflow.NewMemoryRepository(), channel.NewMemoryEngagementRepository())
		_, err := metricsUC.Execute(ctx, &uc.GetMetricsInput{ExecutionID: core.MustNewID()})
		assert.ErrorIs(t, err, workflow.ErrExecutionNotFound)
	})

	t.Run("Should aggregate per-channel rows for the execution", func(t *testing.T) {
		executions := workflow.NewMemoryRepository()
		engagements := channel.NewMemoryEngagementRepository()
		exec := seedExecution(t, executions, "ws-1")
		now := time.Now().UTC()
		require.NoError(t, engagements.Insert(ctx, &channel.EngagementMetrics{
			ID: core.MustNewID(), ExecutionID: exec.ExecutionID,
			Channel: channel.ChannelEmail, Reach: 1200, Engagements: 48,
			Source: "provider_webhook", RecordedAt: now,
		}))
		require.NoError(t, engagements.Insert(ctx, &channel.EngagementMetrics{
			ID: core.MustNewID(), ExecutionID: exec.ExecutionID,
			Channel: channel.ChannelSocial, Reach: 800, Engagements: 52,
			Source: "provider_webhook", RecordedAt: now,
		}))

		metricsUC := uc.NewGetMetrics(executions, engagements)
		out, err := metricsUC.Execute(ctx, &uc.GetMetricsInput{ExecutionID: exec.ExecutionID})
		require.NoError(t, err)
		assert.Equal(t, exec.ExecutionID, out.Execution.ExecutionID)
		assert.Len(t, out.Channels, 2)
		require.NotNil(t, out.Aggregated)
		assert.Equal(t, int64(2000), out.Aggregated.Reach)
		assert.Equal(t, int64(100), out.Aggregated.Engagements)
		require.NotNil(t, out.Aggregated.EngagementRate)
		assert.InDelta(t, 0.05, *out.Aggregated.EngagementRate, 1e-9)
	})
}

func TestListStrategies(t *testing.T) {
	ctx := context.Background()

	t.Run("Should validate input", func(t *testing.T) {
		controller, _ := newController(t)
		listUC := uc.NewListStrategies(controller)
		_, err := listUC.Execute(ctx, nil)
		assert.ErrorIs(t, err, uc.ErrInvalidInput)
		_, err = listUC.Execute(ctx, &uc.ListStrategiesInput{WorkspaceID: " "})
		assert.ErrorIs(t, err, uc.ErrWorkspaceMissing)
	})

	t.Run("Should require a controller", func(t *testing.T) {
		listUC := uc.NewListStrategies(nil)
		_, err := listUC.Execute(ctx, &uc.ListStrategiesInput{WorkspaceID: "ws-1"})
		assert.ErrorIs(t, err, uc.ErrControllerDisabled)
	})

	t.Run("Should list every tracked state", func(t *testing.T) {
		controller, repo := newController(t)
		require.NoError(t, repo.Create(ctx, strategy.NewState("ws-1", "campaign-a")))
		frozen := strategy.NewState("ws-1", "campaign-b")
		frozen.Status = strategy.StatusFrozen
		require.NoError(t, repo.Create(ctx, frozen))

		listUC := uc.NewListStrategies(controller)
		out, err := listUC.Execute(ctx, &uc.ListStrategiesInput{WorkspaceID: "ws-1"})
		require.NoError(t, err)
		assert.Equal(t, core.ID("ws-1"), out.WorkspaceID)
		assert.Len(t, out.States, 2)
	})
}

func TestUnfreeze(t *testing.T) {
	ctx := context.Background()

	t.Run("Should validate input", func(t *testing.T) {
		controller, _ := newController(t)
		unfreezeUC := uc.NewUnfreeze(controller)
		_, err := unfreezeUC.Execute(ctx, nil)
		assert.ErrorIs(t, err, uc.ErrInvalidInput)
		_, err = unfreezeUC.Execute(ctx, &uc.UnfreezeInput{StrategyID: "campaign-a"})
		assert.ErrorIs(t, err, uc.ErrWorkspaceMissing)
		_, err = unfreezeUC.Execute(ctx, &uc.UnfreezeInput{WorkspaceID: "ws-1"})
		assert.ErrorIs(t, err, uc.ErrStrategyMissing)
	})

	t.Run("Should require a controller", func(t *testing.T) {
		unfreezeUC := uc.NewUnfreeze(nil)
		_, err := unfreezeUC.Execute(ctx, &uc.UnfreezeInput{WorkspaceID: "ws-1", StrategyID: "campaign-a"})
		assert.ErrorIs(t, err, uc.ErrControllerDisabled)
	})

	t.Run("Should reactivate a frozen strategy and default the admin id", func(t *testing.T) {
		log := audit.NewMemoryLog()
		repo := strategy.NewMemoryRepository()
		controller, err := strategy.NewController(repo, log)
		require.NoError(t, err)
		frozen := strategy.NewState("ws-1", "campaign-a")
		frozen.Status = strategy.StatusFrozen
		frozen.RotationFrozen = true
		require.NoError(t, repo.Create(ctx, frozen))

		unfreezeUC := uc.NewUnfreeze(controller)
		out, err := unfreezeUC.Execute(ctx, &uc.UnfreezeInput{WorkspaceID: "ws-1", StrategyID: "campaign-a"})
		require.NoError(t, err)
		assert.Equal(t, strategy.StatusActive, out.Status)
		assert.False(t, out.RotationFrozen)

		events, err := log.Events(ctx, audit.Filter{WorkspaceID: "ws-1"})
		require.NoError(t, err)
		require.Len(t, events, 1)
		assert.Equal(t, "unspecified", events[0].Detail["admin_id"])
	})

	t.Run("Should reject unfreezing an active strategy", func(t *testing.T) {
		controller, repo := newController(t)
		require.NoError(t, repo.Create(ctx, strategy.NewState("ws-1", "campaign-a")))

		unfreezeUC := uc.NewUnfreeze(controller)
		_, err := unfreezeUC.Execute(ctx, &uc.UnfreezeInput{WorkspaceID: "ws-1", StrategyID: "campaign-a"})
		assert.ErrorIs(t, err, strategy.ErrNotFrozen)
	})
}
