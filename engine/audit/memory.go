package audit

import (
	"context"
	"sync"
	"time"

	"github.com/sequentry/sequentry/engine/circuit"
	"github.com/sequentry/sequentry/engine/core"
	"github.com/sequentry/sequentry/engine/enforce"
)

// MemoryLog is an in-memory Log for unit tests of audit consumers. The
// production path is the postgres implementation.
type MemoryLog struct {
	mu        sync.RWMutex
	records   []*circuit.Record
	events    []*enforce.Event
	snapshots []*Snapshot
}

var _ Log = (*MemoryLog)(nil)

func NewMemoryLog() *MemoryLog {
	return &MemoryLog{}
}

func (l *MemoryLog) AppendRecord(_ context.Context, record *circuit.Record) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.records = append(l.records, record)
	return nil
}

func (l *MemoryLog) AppendEvent(_ context.Context, event *enforce.Event) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, event)
	return nil
}

func (l *MemoryLog) AppendSnapshot(_ context.Context, snapshot *Snapshot) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.snapshots = append(l.snapshots, snapshot)
	return nil
}

func (l *MemoryLog) Records(_ context.Context, filter Filter) ([]*circuit.Record, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	var out []*circuit.Record
	for i := len(l.records) - 1; i >= 0; i-- {
		record := l.records[i]
		if !matchRecord(record, filter) {
			continue
		}
		out = append(out, record)
		if filter.Limit > 0 && len(out) >= filter.Limit {
			break
		}
	}
	return out, nil
}

func (l *MemoryLog) Events(_ context.Context, filter Filter) ([]*enforce.Event, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	var out []*enforce.Event
	for i := len(l.events) - 1; i >= 0; i-- {
		event := l.events[i]
		if !matchEvent(event, filter) {
			continue
		}
		out = append(out, event)
		if filter.Limit > 0 && len(out) >= filter.Limit {
			break
		}
	}
	return out, nil
}

func (l *MemoryLog) Snapshots(_ context.Context, filter Filter) ([]*Snapshot, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	var out []*Snapshot
	for i := len(l.snapshots) - 1; i >= 0; i-- {
		snapshot := l.snapshots[i]
		if !filter.WorkspaceID.IsZero() && snapshot.WorkspaceID != filter.WorkspaceID {
			continue
		}
		if !inWindow(snapshot.Timestamp, filter) {
			continue
		}
		out = append(out, snapshot)
		if filter.Limit > 0 && len(out) >= filter.Limit {
			break
		}
	}
	return out, nil
}

func (l *MemoryLog) CountRecords(_ context.Context, filter Filter) (RecordCounts, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	var counts RecordCounts
	for _, record := range l.records {
		if !matchRecord(record, filter) {
			continue
		}
		counts.Total++
		if !record.Success {
			counts.Failures++
		}
	}
	return counts, nil
}

func (l *MemoryLog) LatestSnapshot(_ context.Context, workspaceID core.ID) (*Snapshot, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	for i := len(l.snapshots) - 1; i >= 0; i-- {
		if l.snapshots[i].WorkspaceID == workspaceID {
			return l.snapshots[i], nil
		}
	}
	return nil, nil
}

func matchRecord(record *circuit.Record, filter Filter) bool {
	if !filter.WorkspaceID.IsZero() && record.WorkspaceID != filter.WorkspaceID {
		return false
	}
	if filter.CircuitID != "" && record.CircuitID != filter.CircuitID {
		return false
	}
	if !filter.ExecutionID.IsZero() && record.ExecutionID != filter.ExecutionID {
		return false
	}
	if filter.Success != nil && record.Success != *filter.Success {
		return false
	}
	return inWindow(record.Timestamp, filter)
}

func matchEvent(event *enforce.Event, filter Filter) bool {
	if !filter.WorkspaceID.IsZero() && event.WorkspaceID != filter.WorkspaceID {
		return false
	}
	if !filter.ExecutionID.IsZero() && event.ExecutionID != filter.ExecutionID {
		return false
	}
	return inWindow(event.Timestamp, filter)
}

func inWindow(ts time.Time, filter Filter) bool {
	if !filter.Since.IsZero() && ts.Before(filter.Since) {
		return false
	}
	if !filter.Until.IsZero() && !ts.Before(filter.Until) {
		return false
	}
	return true
}
