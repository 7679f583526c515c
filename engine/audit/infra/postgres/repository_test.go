package postgres_test

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/sequentry/sequentry/engine/audit"
	auditpg "github.com/sequentry/sequentry/engine/audit/infra/postgres"
	"github.com/sequentry/sequentry/engine/circuit"
	"github.com/sequentry/sequentry/engine/core"
	"github.com/sequentry/sequentry/engine/enforce"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRepository_AppendRecord(t *testing.T) {
	t.Run("Should append a record with confidence", func(t *testing.T) {
		mockPool, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mockPool.Close()
		repo := auditpg.NewRepository(mockPool)

		confidence := 0.87
		record := &circuit.Record{
			ID:           core.MustNewID(),
			CircuitID:    circuit.IntentDetection,
			ExecutionID:  core.MustNewID(),
			WorkspaceID:  core.MustNewID(),
			Success:      true,
			Confidence:   &confidence,
			LatencyMS:    42,
			DecisionPath: circuit.DecisionApproved,
			Timestamp:    time.Now().UTC(),
		}
		mockPool.ExpectExec("INSERT INTO circuit_records").
			WithArgs(
				record.ID, record.CircuitID, record.ExecutionID, record.WorkspaceID,
				record.Success, record.Confidence, record.LatencyMS,
				record.DecisionPath, record.Timestamp,
			).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))

		assert.NoError(t, repo.AppendRecord(context.Background(), record))
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})

	t.Run("Should persist an absent confidence as NULL", func(t *testing.T) {
		mockPool, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mockPool.Close()
		repo := auditpg.NewRepository(mockPool)

		var nilConfidence *float64
		record := &circuit.Record{
			ID:           core.MustNewID(),
			CircuitID:    circuit.DeliveryAuthorization,
			ExecutionID:  core.MustNewID(),
			WorkspaceID:  core.MustNewID(),
			Success:      false,
			Confidence:   nil,
			LatencyMS:    30000,
			DecisionPath: circuit.DecisionTimeout,
			Timestamp:    time.Now().UTC(),
		}
		mockPool.ExpectExec("INSERT INTO circuit_records").
			WithArgs(
				record.ID, record.CircuitID, record.ExecutionID, record.WorkspaceID,
				record.Success, nilConfidence, record.LatencyMS,
				record.DecisionPath, record.Timestamp,
			).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))

		assert.NoError(t, repo.AppendRecord(context.Background(), record))
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})
}

func TestRepository_AppendEvent(t *testing.T) {
	t.Run("Should append an event with jsonb detail", func(t *testing.T) {
		mockPool, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mockPool.Close()
		repo := auditpg.NewRepository(mockPool)

		event := &enforce.Event{
			ID:            core.MustNewID(),
			ExecutionID:   core.MustNewID(),
			WorkspaceID:   core.MustNewID(),
			ViolationType: enforce.ViolationInvalidEntrypoint,
			Severity:      enforce.SeverityCritical,
			Source:        "CX03_STRATEGY_SELECTION",
			Detail:        map[string]any{"reason": "capability token absent"},
			Timestamp:     time.Now().UTC(),
		}
		mockPool.ExpectExec("INSERT INTO enforcement_events").
			WithArgs(
				event.ID, event.ExecutionID, event.WorkspaceID,
				event.ViolationType, event.Severity, event.Source,
				[]byte(`{"reason":"capability token absent"}`), event.Timestamp,
			).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))

		assert.NoError(t, repo.AppendEvent(context.Background(), event))
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})

	t.Run("Should append an event without detail", func(t *testing.T) {
		mockPool, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mockPool.Close()
		repo := auditpg.NewRepository(mockPool)

		var nilDetail []byte
		event := &enforce.Event{
			ID:            core.MustNewID(),
			ExecutionID:   core.MustNewID(),
			WorkspaceID:   core.MustNewID(),
			ViolationType: enforce.ViolationAutocorrectionEscalated,
			Severity:      enforce.SeverityWarning,
			Source:        "autocorrection",
			Timestamp:     time.Now().UTC(),
		}
		mockPool.ExpectExec("INSERT INTO enforcement_events").
			WithArgs(
				event.ID, event.ExecutionID, event.WorkspaceID,
				event.ViolationType, event.Severity, event.Source,
				nilDetail, event.Timestamp,
			).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))

		assert.NoError(t, repo.AppendEvent(context.Background(), event))
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})
}

func TestRepository_Records(t *testing.T) {
	t.Run("Should query records for a workspace", func(t *testing.T) {
		mockPool, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mockPool.Close()
		repo := auditpg.NewRepository(mockPool)

		workspace := core.MustNewID()
		execution := core.MustNewID()
		now := time.Now().UTC()
		confidence := 0.91
		rows := mockPool.NewRows([]string{
			"id", "circuit_id", "execution_id", "workspace_id",
			"success", "confidence", "latency_ms", "decision_path", "recorded_at",
		}).
			AddRow(core.MustNewID(), circuit.BrandGuard, execution, workspace,
				true, &confidence, int64(55), circuit.DecisionApproved, now)

		mockPool.ExpectQuery("SELECT (.+) FROM circuit_records WHERE workspace_id = \\$1").
			WithArgs(workspace).
			WillReturnRows(rows)

		records, err := repo.Records(context.Background(), audit.Filter{WorkspaceID: workspace})
		require.NoError(t, err)
		require.Len(t, records, 1)
		assert.Equal(t, circuit.BrandGuard, records[0].CircuitID)
		require.NotNil(t, records[0].Confidence)
		assert.InDelta(t, 0.91, *records[0].Confidence, 1e-9)
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})
}

func TestRepository_CountRecords(t *testing.T) {
	t.Run("Should aggregate totals and failures over a window", func(t *testing.T) {
		mockPool, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mockPool.Close()
		repo := auditpg.NewRepository(mockPool)

		workspace := core.MustNewID()
		since := time.Now().Add(-24 * time.Hour)
		rows := mockPool.NewRows([]string{"total", "failures"}).AddRow(int64(120), int64(6))

		mockPool.ExpectQuery("SELECT COUNT(.+) FROM circuit_records").
			WithArgs(workspace, since).
			WillReturnRows(rows)

		counts, err := repo.CountRecords(context.Background(), audit.Filter{
			WorkspaceID: workspace,
			Since:       since,
		})
		require.NoError(t, err)
		assert.Equal(t, int64(120), counts.Total)
		assert.Equal(t, int64(6), counts.Failures)
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})
}

func TestRepository_LatestSnapshot(t *testing.T) {
	t.Run("Should return nil when the workspace has no snapshots", func(t *testing.T) {
		mockPool, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mockPool.Close()
		repo := auditpg.NewRepository(mockPool)

		workspace := core.MustNewID()
		mockPool.ExpectQuery("SELECT (.+) FROM health_snapshots WHERE workspace_id = \\$1").
			WithArgs(workspace).
			WillReturnError(pgx.ErrNoRows)

		snapshot, err := repo.LatestSnapshot(context.Background(), workspace)
		assert.NoError(t, err)
		assert.Nil(t, snapshot)
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})

	t.Run("Should return the newest snapshot", func(t *testing.T) {
		mockPool, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mockPool.Close()
		repo := auditpg.NewRepository(mockPool)

		workspace := core.MustNewID()
		now := time.Now().UTC()
		rows := mockPool.NewRows([]string{
			"id", "workspace_id", "window_start", "window_end",
			"success_rate", "recovery_cycles_max", "brand_violation_rate",
			"system_healthy", "recorded_at",
		}).
			AddRow(core.MustNewID(), workspace, now.Add(-24*time.Hour), now,
				0.94, 1, 0.002, true, now)

		mockPool.ExpectQuery("SELECT (.+) FROM health_snapshots WHERE workspace_id = \\$1").
			WithArgs(workspace).
			WillReturnRows(rows)

		snapshot, err := repo.LatestSnapshot(context.Background(), workspace)
		require.NoError(t, err)
		require.NotNil(t, snapshot)
		assert.True(t, snapshot.SystemHealthy)
		assert.InDelta(t, 0.94, snapshot.SuccessRate, 1e-9)
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})
}
