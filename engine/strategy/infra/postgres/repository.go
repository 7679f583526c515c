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
	"github.com/sequentry/sequentry/engine/strategy"
)

const statesTable = "strategy_states"

var stateColumns = []string{
	"strategy_id", "workspace_id", "status",
	"consecutive_decline_cycles", "rotation_frozen", "correction_cycle",
	"last_rotated_at", "updated_at",
}

// Repository implements strategy.Repository on PostgreSQL. Writes are keyed
// compare-and-swap statements; a swap that matches no row reports a conflict
// and the controller re-reads.
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

// NewRepository creates a strategy state repository
func NewRepository(db DBInterface) strategy.Repository {
	return &Repository{db: db}
}

// Get loads the state for one strategy
func (r *Repository) Get(ctx context.Context, workspaceID core.ID, strategyID string) (*strategy.State, error) {
	query, args, err := squirrel.Select(stateColumns...).
		From(statesTable).
		Where(squirrel.Eq{"workspace_id": workspaceID}).
		Where(squirrel.Eq{"strategy_id": strategyID}).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("building select query: %w", err)
	}
	var state strategy.State
	if err := pgxscan.Get(ctx, r.db, &state, query, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, strategy.ErrStateNotFound
		}
		return nil, fmt.Errorf("scanning strategy state: %w", err)
	}
	return &state, nil
}

// List returns every strategy state in the workspace
func (r *Repository) List(ctx context.Context, workspaceID core.ID) ([]*strategy.State, error) {
	query, args, err := squirrel.Select(stateColumns...).
		From(statesTable).
		Where(squirrel.Eq{"workspace_id": workspaceID}).
		OrderBy("strategy_id ASC").
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("building select query: %w", err)
	}
	var states []*strategy.State
	if err := pgxscan.Select(ctx, r.db, &states, query, args...); err != nil {
		return nil, fmt.Errorf("scanning strategy states: %w", err)
	}
	return states, nil
}

// Create inserts the initial state. A state created concurrently for the
// same key reports a conflict.
func (r *Repository) Create(ctx context.Context, state *strategy.State) error {
	query, args, err := squirrel.Insert(statesTable).
		Columns(stateColumns...).
		Values(
			state.StrategyID, state.WorkspaceID, state.Status,
			state.ConsecutiveDeclineCycles, state.RotationFrozen,
			state.CorrectionCycle, state.LastRotatedAt, time.Now().UTC(),
		).
		Suffix("ON CONFLICT (workspace_id, strategy_id) DO NOTHING").
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return fmt.Errorf("building insert query: %w", err)
	}
	tag, err := r.db.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("creating strategy state: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return strategy.ErrStateConflict
	}
	return nil
}

// Update swaps the stored state while it still matches the expectation
func (r *Repository) Update(ctx context.Context, state *strategy.State, expected strategy.Expected) error {
	query, args, err := squirrel.Update(statesTable).
		Set("status", state.Status).
		Set("consecutive_decline_cycles", state.ConsecutiveDeclineCycles).
		Set("rotation_frozen", state.RotationFrozen).
		Set("correction_cycle", state.CorrectionCycle).
		Set("last_rotated_at", state.LastRotatedAt).
		Set("updated_at", time.Now().UTC()).
		Where(squirrel.Eq{"workspace_id": state.WorkspaceID}).
		Where(squirrel.Eq{"strategy_id": state.StrategyID}).
		Where(squirrel.Eq{"status": expected.Status}).
		Where(squirrel.Eq{"consecutive_decline_cycles": expected.ConsecutiveDeclineCycles}).
		Where(squirrel.Eq{"correction_cycle": expected.CorrectionCycle}).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return fmt.Errorf("building update query: %w", err)
	}
	tag, err := r.db.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("updating strategy state: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return strategy.ErrStateConflict
	}
	return nil
}
