package workflow

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/sequentry/sequentry/engine/core"
)

// MemoryRepository is an in-memory Repository with the same mutability rules
// as the postgres implementation: terminal executions reject updates. It
// backs unit tests of the coordinator and the workflow surface.
type MemoryRepository struct {
	mu         sync.Mutex
	executions map[core.ID]*Execution
}

// NewMemoryRepository creates an empty in-memory repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{executions: make(map[core.ID]*Execution)}
}

var _ Repository = (*MemoryRepository)(nil)

func (r *MemoryRepository) Create(_ context.Context, exec *Execution) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.executions[exec.ExecutionID] = cloneExecution(exec)
	return nil
}

func (r *MemoryRepository) Update(_ context.Context, exec *Execution) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	current, ok := r.executions[exec.ExecutionID]
	if !ok || current.Status.Terminal() {
		return ErrExecutionNotFound
	}
	r.executions[exec.ExecutionID] = cloneExecution(exec)
	return nil
}

func (r *MemoryRepository) Get(_ context.Context, executionID core.ID) (*Execution, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	exec, ok := r.executions[executionID]
	if !ok {
		return nil, ErrExecutionNotFound
	}
	return cloneExecution(exec), nil
}

func (r *MemoryRepository) List(_ context.Context, workspaceID core.ID, limit int) ([]*Execution, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*Execution, 0)
	for _, exec := range r.executions {
		if exec.WorkspaceID == workspaceID {
			out = append(out, cloneExecution(exec))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].StartedAt.After(out[j].StartedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *MemoryRepository) ActiveWorkspaces(_ context.Context, since time.Time) ([]core.ID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	seen := make(map[core.ID]bool)
	out := make([]core.ID, 0)
	for _, exec := range r.executions {
		if exec.StartedAt.Before(since) || seen[exec.WorkspaceID] {
			continue
		}
		seen[exec.WorkspaceID] = true
		out = append(out, exec.WorkspaceID)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].String() < out[j].String()
	})
	return out, nil
}

func cloneExecution(exec *Execution) *Execution {
	out := *exec
	out.AgentSequence = append([]string(nil), exec.AgentSequence...)
	if exec.FailureReason != nil {
		reason := *exec.FailureReason
		out.FailureReason = &reason
	}
	if exec.CompletedAt != nil {
		t := *exec.CompletedAt
		out.CompletedAt = &t
	}
	return &out
}
