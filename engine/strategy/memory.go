package strategy

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/sequentry/sequentry/engine/core"
)

// MemoryRepository is an in-memory Repository with the same compare-and-swap
// semantics as the postgres implementation. It backs unit tests of the
// controller and the health monitor.
type MemoryRepository struct {
	mu     sync.Mutex
	states map[stateKey]*State
}

type stateKey struct {
	workspaceID core.ID
	strategyID  string
}

// NewMemoryRepository creates an empty in-memory repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{states: make(map[stateKey]*State)}
}

var _ Repository = (*MemoryRepository)(nil)

func (r *MemoryRepository) Get(_ context.Context, workspaceID core.ID, strategyID string) (*State, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	state, ok := r.states[stateKey{workspaceID, strategyID}]
	if !ok {
		return nil, ErrStateNotFound
	}
	return cloneState(state), nil
}

func (r *MemoryRepository) List(_ context.Context, workspaceID core.ID) ([]*State, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*State, 0)
	for key, state := range r.states {
		if key.workspaceID == workspaceID {
			out = append(out, cloneState(state))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].StrategyID < out[j].StrategyID
	})
	return out, nil
}

func (r *MemoryRepository) Create(_ context.Context, state *State) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := stateKey{state.WorkspaceID, state.StrategyID}
	if _, exists := r.states[key]; exists {
		return ErrStateConflict
	}
	stored := cloneState(state)
	stored.UpdatedAt = time.Now().UTC()
	r.states[key] = stored
	return nil
}

func (r *MemoryRepository) Update(_ context.Context, state *State, expected Expected) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := stateKey{state.WorkspaceID, state.StrategyID}
	current, ok := r.states[key]
	if !ok {
		return ErrStateConflict
	}
	if current.Status != expected.Status ||
		current.ConsecutiveDeclineCycles != expected.ConsecutiveDeclineCycles ||
		current.CorrectionCycle != expected.CorrectionCycle {
		return ErrStateConflict
	}
	stored := cloneState(state)
	stored.UpdatedAt = time.Now().UTC()
	r.states[key] = stored
	return nil
}

func cloneState(state *State) *State {
	out := *state
	if state.LastRotatedAt != nil {
		t := *state.LastRotatedAt
		out.LastRotatedAt = &t
	}
	return &out
}
