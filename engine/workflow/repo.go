package workflow

import (
	"context"
	"time"

	"github.com/sequentry/sequentry/engine/core"
)

// Repository persists workflow executions. Only the coordinator writes:
// Create opens an in-progress row and Update advances it as agents complete.
// An Update against a terminal or unknown row reports ErrExecutionNotFound,
// keeping completed and failed executions immutable at the store.
type Repository interface {
	Create(ctx context.Context, exec *Execution) error
	Update(ctx context.Context, exec *Execution) error
	Get(ctx context.Context, executionID core.ID) (*Execution, error)
	List(ctx context.Context, workspaceID core.ID, limit int) ([]*Execution, error)

	// ActiveWorkspaces lists workspaces with at least one execution started
	// since the given time. The monitoring scheduler iterates these.
	ActiveWorkspaces(ctx context.Context, since time.Time) ([]core.ID, error)
}
