package channel

import (
	"context"
	"sort"
	"sync"

	"github.com/sequentry/sequentry/engine/core"
)

// EngagementRepository persists per-channel engagement rows. The stream is
// append-only; aggregation reads whatever has landed so far.
type EngagementRepository interface {
	Insert(ctx context.Context, metrics *EngagementMetrics) error
	ByExecution(ctx context.Context, executionID core.ID) ([]*EngagementMetrics, error)
}

// MemoryEngagementRepository is an in-memory EngagementRepository backing
// unit tests of the ingest worker and the aggregation path.
type MemoryEngagementRepository struct {
	mu   sync.Mutex
	rows []*EngagementMetrics
}

// NewMemoryEngagementRepository creates an empty in-memory repository.
func NewMemoryEngagementRepository() *MemoryEngagementRepository {
	return &MemoryEngagementRepository{}
}

var _ EngagementRepository = (*MemoryEngagementRepository)(nil)

func (r *MemoryEngagementRepository) Insert(_ context.Context, metrics *EngagementMetrics) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	row := *metrics
	r.rows = append(r.rows, &row)
	return nil
}

func (r *MemoryEngagementRepository) ByExecution(_ context.Context, executionID core.ID) ([]*EngagementMetrics, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*EngagementMetrics, 0)
	for _, row := range r.rows {
		if row.ExecutionID == executionID {
			copied := *row
			out = append(out, &copied)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Channel != out[j].Channel {
			return out[i].Channel < out[j].Channel
		}
		return out[i].RecordedAt.Before(out[j].RecordedAt)
	})
	return out, nil
}
