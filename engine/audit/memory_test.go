package audit_test

import (
	"context"
	"testing"
	"time"

	"github.com/sequentry/sequentry/engine/audit"
	"github.com/sequentry/sequentry/engine/circuit"
	"github.com/sequentry/sequentry/engine/core"
	"github.com/sequentry/sequentry/engine/enforce"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRecord(workspace core.ID, id circuit.ID, success bool, at time.Time) *circuit.Record {
	return &circuit.Record{
		ID:           core.MustNewID(),
		CircuitID:    id,
		ExecutionID:  core.MustNewID(),
		WorkspaceID:  workspace,
		Success:      success,
		DecisionPath: circuit.DecisionApproved,
		Timestamp:    at,
	}
}

func TestMemoryLog_Records(t *testing.T) {
	ctx := context.Background()
	now := time.Now().UTC()
	workspace := core.ID("ws-1")

	log := audit.NewMemoryLog()
	require.NoError(t, log.AppendRecord(ctx, newRecord(workspace, circuit.IntentDetection, true, now.Add(-2*time.Hour))))
	require.NoError(t, log.AppendRecord(ctx, newRecord(workspace, circuit.BrandGuard, false, now.Add(-1*time.Hour))))
	require.NoError(t, log.AppendRecord(ctx, newRecord("ws-2", circuit.BrandGuard, true, now)))

	t.Run("Should filter records by workspace", func(t *testing.T) {
		records, err := log.Records(ctx, audit.Filter{WorkspaceID: workspace})
		require.NoError(t, err)
		assert.Len(t, records, 2)
	})

	t.Run("Should filter records by circuit and success", func(t *testing.T) {
		failed := false
		records, err := log.Records(ctx, audit.Filter{
			WorkspaceID: workspace,
			CircuitID:   circuit.BrandGuard,
			Success:     &failed,
		})
		require.NoError(t, err)
		require.Len(t, records, 1)
		assert.Equal(t, circuit.BrandGuard, records[0].CircuitID)
		assert.False(t, records[0].Success)
	})

	t.Run("Should bound records by time window", func(t *testing.T) {
		records, err := log.Records(ctx, audit.Filter{
			WorkspaceID: workspace,
			Since:       now.Add(-90 * time.Minute),
		})
		require.NoError(t, err)
		assert.Len(t, records, 1)
	})

	t.Run("Should return newest records first and honor the limit", func(t *testing.T) {
		records, err := log.Records(ctx, audit.Filter{WorkspaceID: workspace, Limit: 1})
		require.NoError(t, err)
		require.Len(t, records, 1)
		assert.Equal(t, circuit.BrandGuard, records[0].CircuitID)
	})

	t.Run("Should count totals and failures", func(t *testing.T) {
		counts, err := log.CountRecords(ctx, audit.Filter{WorkspaceID: workspace})
		require.NoError(t, err)
		assert.Equal(t, int64(2), counts.Total)
		assert.Equal(t, int64(1), counts.Failures)
	})
}

func TestMemoryLog_Events(t *testing.T) {
	ctx := context.Background()
	log := audit.NewMemoryLog()
	execCtx := core.NewExecutionContext("ws-1", "client-1", "")

	event := enforce.NewEvent(execCtx, enforce.ViolationInvalidEntrypoint, enforce.SeverityCritical, "CX01_INTENT_DETECTION", nil)
	require.NoError(t, log.AppendEvent(ctx, event))

	t.Run("Should filter events by execution", func(t *testing.T) {
		events, err := log.Events(ctx, audit.Filter{ExecutionID: execCtx.RequestID})
		require.NoError(t, err)
		require.Len(t, events, 1)
		assert.Equal(t, enforce.ViolationInvalidEntrypoint, events[0].ViolationType)
	})

	t.Run("Should return no events for another workspace", func(t *testing.T) {
		events, err := log.Events(ctx, audit.Filter{WorkspaceID: "ws-other"})
		require.NoError(t, err)
		assert.Empty(t, events)
	})
}

func TestMemoryLog_Snapshots(t *testing.T) {
	ctx := context.Background()
	log := audit.NewMemoryLog()
	workspace := core.ID("ws-1")

	t.Run("Should return nil when no snapshot exists", func(t *testing.T) {
		snapshot, err := log.LatestSnapshot(ctx, workspace)
		require.NoError(t, err)
		assert.Nil(t, snapshot)
	})

	t.Run("Should return the newest snapshot for the workspace", func(t *testing.T) {
		older := &audit.Snapshot{
			ID:          core.MustNewID(),
			WorkspaceID: workspace,
			SuccessRate: 0.95,
			Timestamp:   time.Now().Add(-time.Hour),
		}
		newer := &audit.Snapshot{
			ID:            core.MustNewID(),
			WorkspaceID:   workspace,
			SuccessRate:   0.97,
			SystemHealthy: true,
			Timestamp:     time.Now(),
		}
		require.NoError(t, log.AppendSnapshot(ctx, older))
		require.NoError(t, log.AppendSnapshot(ctx, newer))

		snapshot, err := log.LatestSnapshot(ctx, workspace)
		require.NoError(t, err)
		require.NotNil(t, snapshot)
		assert.Equal(t, newer.ID, snapshot.ID)

		all, err := log.Snapshots(ctx, audit.Filter{WorkspaceID: workspace})
		require.NoError(t, err)
		assert.Len(t, all, 2)
	})
}
