package strategy

import (
	"context"

	"github.com/sequentry/sequentry/engine/core"
)

// Repository persists strategy states. Update applies only while the stored
// row still matches the expectation; a mismatch returns ErrStateConflict and
// the caller re-reads before deciding again.
type Repository interface {
	Get(ctx context.Context, workspaceID core.ID, strategyID string) (*State, error)
	List(ctx context.Context, workspaceID core.ID) ([]*State, error)
	Create(ctx context.Context, state *State) error
	Update(ctx context.Context, state *State, expected Expected) error
}
