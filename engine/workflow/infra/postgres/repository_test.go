package postgres_test

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/sequentry/sequentry/engine/core"
	"github.com/sequentry/sequentry/engine/workflow"
	workflowpg "github.com/sequentry/sequentry/engine/workflow/infra/postgres"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newOpenExecution() *workflow.Execution {
	execCtx := core.NewExecutionContext(core.MustNewID(), core.MustNewID(), "")
	return workflow.NewExecution(execCtx, workflow.FlowEmailThenSocial)
}

func TestRepository_Create(t *testing.T) {
	t.Run("Should insert an opened execution row", func(t *testing.T) {
		mockPool, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mockPool.Close()
		repo := workflowpg.NewRepository(mockPool)

		exec := newOpenExecution()
		mockPool.ExpectExec("INSERT INTO workflow_executions").
			WithArgs(
				exec.ExecutionID, exec.WorkspaceID, exec.ClientID, exec.FlowID,
				[]byte(`[]`), exec.Status, exec.FailureReason,
				exec.StartedAt, exec.CompletedAt,
			).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))

		assert.NoError(t, repo.Create(context.Background(), exec))
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})
}

func TestRepository_Update(t *testing.T) {
	t.Run("Should advance an in-progress execution", func(t *testing.T) {
		mockPool, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mockPool.Close()
		repo := workflowpg.NewRepository(mockPool)

		exec := newOpenExecution()
		exec.AgentSequence = []string{"email-agent"}
		mockPool.ExpectExec("UPDATE workflow_executions SET").
			WithArgs(
				[]byte(`["email-agent"]`), exec.Status, exec.FailureReason,
				exec.CompletedAt, exec.ExecutionID, workflow.StatusInProgress,
			).
			WillReturnResult(pgxmock.NewResult("UPDATE", 1))

		assert.NoError(t, repo.Update(context.Background(), exec))
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})

	t.Run("Should report not found once the row is terminal", func(t *testing.T) {
		mockPool, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mockPool.Close()
		repo := workflowpg.NewRepository(mockPool)

		exec := newOpenExecution()
		now := time.Now().UTC()
		exec.Status = workflow.StatusCompleted
		exec.CompletedAt = &now
		mockPool.ExpectExec("UPDATE workflow_executions SET").
			WithArgs(
				[]byte(`[]`), exec.Status, exec.FailureReason,
				exec.CompletedAt, exec.ExecutionID, workflow.StatusInProgress,
			).
			WillReturnResult(pgxmock.NewResult("UPDATE", 0))

		err = repo.Update(context.Background(), exec)
		assert.ErrorIs(t, err, workflow.ErrExecutionNotFound)
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})
}

func TestRepository_Get(t *testing.T) {
	t.Run("Should load one execution by id", func(t *testing.T) {
		mockPool, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mockPool.Close()
		repo := workflowpg.NewRepository(mockPool)

		executionID := core.MustNewID()
		workspaceID := core.MustNewID()
		rows := pgxmock.NewRows([]string{
			"execution_id", "workspace_id", "client_id", "flow_id",
			"agent_sequence", "status", "failure_reason", "started_at", "completed_at",
		}).
			AddRow(executionID, workspaceID, core.MustNewID(), workflow.FlowEmailOnly,
				[]string{"email-agent"}, workflow.StatusCompleted, (*string)(nil),
				time.Now().UTC(), (*time.Time)(nil))
		mockPool.ExpectQuery(`SELECT (.+) FROM workflow_executions WHERE execution_id = \$1`).
			WithArgs(executionID).
			WillReturnRows(rows)

		exec, err := repo.Get(context.Background(), executionID)
		require.NoError(t, err)
		assert.Equal(t, workspaceID, exec.WorkspaceID)
		assert.Equal(t, workflow.StatusCompleted, exec.Status)
		assert.Equal(t, []string{"email-agent"}, exec.AgentSequence)
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})

	t.Run("Should return ErrExecutionNotFound for unknown ids", func(t *testing.T) {
		mockPool, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mockPool.Close()
		repo := workflowpg.NewRepository(mockPool)

		executionID := core.MustNewID()
		mockPool.ExpectQuery(`SELECT (.+) FROM workflow_executions`).
			WithArgs(executionID).
			WillReturnError(pgx.ErrNoRows)

		_, err = repo.Get(context.Background(), executionID)
		assert.ErrorIs(t, err, workflow.ErrExecutionNotFound)
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})
}

func TestRepository_List(t *testing.T) {
	t.Run("Should list workspace executions newest first with a limit", func(t *testing.T) {
		mockPool, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mockPool.Close()
		repo := workflowpg.NewRepository(mockPool)

		workspaceID := core.MustNewID()
		now := time.Now().UTC()
		rows := pgxmock.NewRows([]string{
			"execution_id", "workspace_id", "client_id", "flow_id",
			"agent_sequence", "status", "failure_reason", "started_at", "completed_at",
		}).
			AddRow(core.MustNewID(), workspaceID, core.MustNewID(), workflow.FlowEmailThenSocial,
				[]string{"email-agent", "social-agent"}, workflow.StatusCompleted, (*string)(nil),
				now, &now).
			AddRow(core.MustNewID(), workspaceID, core.MustNewID(), workflow.FlowSocialOnly,
				[]string{}, workflow.StatusInProgress, (*string)(nil),
				now.Add(-time.Hour), (*time.Time)(nil))
		mockPool.ExpectQuery(`SELECT (.+) FROM workflow_executions WHERE workspace_id = \$1 ORDER BY started_at DESC LIMIT 50`).
			WithArgs(workspaceID).
			WillReturnRows(rows)

		execs, err := repo.List(context.Background(), workspaceID, 50)
		require.NoError(t, err)
		require.Len(t, execs, 2)
		assert.Equal(t, workflow.FlowEmailThenSocial, execs[0].FlowID)
		assert.Equal(t, workflow.StatusInProgress, execs[1].Status)
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})
}

func TestRepository_ActiveWorkspaces(t *testing.T) {
	t.Run("Should list distinct workspaces with recent executions", func(t *testing.T) {
		mockPool, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mockPool.Close()
		repo := workflowpg.NewRepository(mockPool)

		first := core.MustNewID()
		second := core.MustNewID()
		since := time.Now().Add(-24 * time.Hour)
		rows := pgxmock.NewRows([]string{"workspace_id"}).
			AddRow(first).
			AddRow(second)
		mockPool.ExpectQuery(`SELECT DISTINCT workspace_id FROM workflow_executions WHERE started_at >= \$1`).
			WithArgs(since).
			WillReturnRows(rows)

		workspaces, err := repo.ActiveWorkspaces(context.Background(), since)
		require.NoError(t, err)
		assert.Equal(t, []core.ID{first, second}, workspaces)
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})
}
