package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/sequentry/sequentry/engine/core"
	"github.com/sequentry/sequentry/engine/infra/store"
	"github.com/sequentry/sequentry/engine/workflow"
)

const executionsTable = "workflow_executions"

var executionColumns = []string{
	"execution_id", "workspace_id", "client_id", "flow_id",
	"agent_sequence", "status", "failure_reason", "started_at", "completed_at",
}

// Repository implements workflow.Repository on PostgreSQL. Updates carry a
// status guard so terminal executions stay immutable at the store.
type Repository struct {
	db DBInterface
}

// DBInterface defines the minimal interface needed by the repository
type DBInterface interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
}

// NewRepository creates a workflow execution repository
func NewRepository(db DBInterface) workflow.Repository {
	return &Repository{db: db}
}

// Create opens the execution row
func (r *Repository) Create(ctx context.Context, exec *workflow.Execution) error {
	sequence, err := store.ToJSONB(exec.AgentSequence)
	if err != nil {
		return fmt.Errorf("encoding agent sequence: %w", err)
	}
	query, args, err := squirrel.Insert(executionsTable).
		Columns(executionColumns...).
		Values(
			exec.ExecutionID, exec.WorkspaceID, exec.ClientID, exec.FlowID,
			sequence, exec.Status, exec.FailureReason,
			exec.StartedAt, exec.CompletedAt,
		).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return fmt.Errorf("building insert query: %w", err)
	}
	if _, err := r.db.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("creating workflow execution: %w", err)
	}
	return nil
}

// Update advances an in-progress execution. A row already terminal or absent
// reports ErrExecutionNotFound.
func (r *Repository) Update(ctx context.Context, exec *workflow.Execution) error {
	sequence, err := store.ToJSONB(exec.AgentSequence)
	if err != nil {
		return fmt.Errorf("encoding agent sequence: %w", err)
	}
	query, args, err := squirrel.Update(executionsTable).
		Set("agent_sequence", sequence).
		Set("status", exec.Status).
		Set("failure_reason", exec.FailureReason).
		Set("completed_at", exec.CompletedAt).
		Where(squirrel.Eq{"execution_id": exec.ExecutionID}).
		Where(squirrel.Eq{"status": workflow.StatusInProgress}).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return fmt.Errorf("building update query: %w", err)
	}
	tag, err := r.db.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("updating workflow execution: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return workflow.ErrExecutionNotFound
	}
	return nil
}

// Get loads one execution by id
func (r *Repository) Get(ctx context.Context, executionID core.ID) (*workflow.Execution, error) {
	query, args, err := squirrel.Select(executionColumns...).
		From(executionsTable).
		Where(squirrel.Eq{"execution_id": executionID}).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("building select query: %w", err)
	}
	var exec workflow.Execution
	if err := pgxscan.Get(ctx, r.db, &exec, query, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, workflow.ErrExecutionNotFound
		}
		return nil, fmt.Errorf("scanning workflow execution: %w", err)
	}
	return &exec, nil
}

// List returns the workspace's executions, newest first
func (r *Repository) List(ctx context.Context, workspaceID core.ID, limit int) ([]*workflow.Execution, error) {
	qb := squirrel.Select(executionColumns...).
		From(executionsTable).
		Where(squirrel.Eq{"workspace_id": workspaceID}).
		OrderBy("started_at DESC").
		PlaceholderFormat(squirrel.Dollar)
	if limit > 0 {
		qb = qb.Limit(uint64(limit))
	}
	query, args, err := qb.ToSql()
	if err != nil {
		return nil, fmt.Errorf("building select query: %w", err)
	}
	var execs []*workflow.Execution
	if err := pgxscan.Select(ctx, r.db, &execs, query, args...); err != nil {
		return nil, fmt.Errorf("scanning workflow executions: %w", err)
	}
	return execs, nil
}

// ActiveWorkspaces lists workspaces that started an execution since the
// given time. The monitoring scheduler iterates these.
func (r *Repository) ActiveWorkspaces(ctx context.Context, since time.Time) ([]core.ID, error) {
	query, args, err := squirrel.Select("workspace_id").
		Distinct().
		From(executionsTable).
		Where("started_at >= ?", since).
		OrderBy("workspace_id ASC").
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("building select query: %w", err)
	}
	var workspaces []core.ID
	if err := pgxscan.Select(ctx, r.db, &workspaces, query, args...); err != nil {
		return nil, fmt.Errorf("scanning active workspaces: %w", err)
	}
	return workspaces, nil
}
