package workflow

import (
	"context"
	"fmt"
	"sync"

	"github.com/sequentry/sequentry/engine/core"
	"github.com/sequentry/sequentry/pkg/config"
	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"
)

const (
	defaultMaxConcurrent   = 32
	defaultSubmissionRate  = 5
	defaultSubmissionBurst = 10
)

// SubmissionLimiter bounds workflow intake on two axes: a token bucket per
// workspace smooths each tenant's submission rate, and one weighted semaphore
// caps in-flight executions across all tenants. Neither bound queues; an
// exhausted budget rejects the submission immediately.
type SubmissionLimiter struct {
	maxConcurrent int64
	perWorkspace  rate.Limit
	burst         int
	sem           *semaphore.Weighted
	limiters      sync.Map // map[core.ID]*rate.Limiter
}

// NewSubmissionLimiter builds the limiter from workflow configuration,
// falling back to engine defaults for unset bounds.
func NewSubmissionLimiter(cfg *config.WorkflowConfig) *SubmissionLimiter {
	maxConcurrent := int64(defaultMaxConcurrent)
	perWorkspace := rate.Limit(defaultSubmissionRate)
	burst := defaultSubmissionBurst
	if cfg != nil {
		if cfg.MaxConcurrent > 0 {
			maxConcurrent = cfg.MaxConcurrent
		}
		if cfg.SubmissionRate > 0 {
			perWorkspace = rate.Limit(cfg.SubmissionRate)
		}
		if cfg.SubmissionBurst > 0 {
			burst = cfg.SubmissionBurst
		}
	}
	return &SubmissionLimiter{
		maxConcurrent: maxConcurrent,
		perWorkspace:  perWorkspace,
		burst:         burst,
		sem:           semaphore.NewWeighted(maxConcurrent),
	}
}

// Acquire reserves one execution slot for the workspace. The returned release
// must be called exactly once when the execution finishes.
func (l *SubmissionLimiter) Acquire(_ context.Context, workspaceID core.ID) (func(), error) {
	if !l.workspaceLimiter(workspaceID).Allow() {
		return nil, fmt.Errorf("%w: workspace %s submission budget exhausted",
			ErrSubmissionLimited, workspaceID)
	}
	if !l.sem.TryAcquire(1) {
		return nil, fmt.Errorf("%w: engine at concurrency bound of %d",
			ErrSubmissionLimited, l.maxConcurrent)
	}
	return func() { l.sem.Release(1) }, nil
}

func (l *SubmissionLimiter) workspaceLimiter(workspaceID core.ID) *rate.Limiter {
	if existing, ok := l.limiters.Load(workspaceID); ok {
		return existing.(*rate.Limiter)
	}
	limiter := rate.NewLimiter(l.perWorkspace, l.burst)
	actual, _ := l.limiters.LoadOrStore(workspaceID, limiter)
	return actual.(*rate.Limiter)
}
