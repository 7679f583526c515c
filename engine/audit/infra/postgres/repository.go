package postgres

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/sequentry/sequentry/engine/audit"
	"github.com/sequentry/sequentry/engine/circuit"
	"github.com/sequentry/sequentry/engine/core"
	"github.com/sequentry/sequentry/engine/enforce"
	"github.com/sequentry/sequentry/engine/infra/store"
)

const (
	recordsTable   = "circuit_records"
	eventsTable    = "enforcement_events"
	snapshotsTable = "health_snapshots"
)

var (
	recordColumns = []string{
		"id", "circuit_id", "execution_id", "workspace_id",
		"success", "confidence", "latency_ms", "decision_path", "recorded_at",
	}
	eventColumns = []string{
		"id", "execution_id", "workspace_id",
		"violation_type", "severity", "source", "detail", "recorded_at",
	}
	snapshotColumns = []string{
		"id", "workspace_id", "window_start", "window_end",
		"success_rate", "recovery_cycles_max", "brand_violation_rate",
		"system_healthy", "recorded_at",
	}
)

// Repository implements the append-only audit log on PostgreSQL
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

// NewRepository creates a new audit log repository
func NewRepository(db DBInterface) audit.Log {
	return &Repository{db: db}
}

// AppendRecord appends a circuit execution record
func (r *Repository) AppendRecord(ctx context.Context, record *circuit.Record) error {
	query, args, err := squirrel.Insert(recordsTable).
		Columns(recordColumns...).
		Values(
			record.ID, record.CircuitID, record.ExecutionID, record.WorkspaceID,
			record.Success, record.Confidence, record.LatencyMS,
			record.DecisionPath, record.Timestamp,
		).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return fmt.Errorf("building insert query: %w", err)
	}
	if _, err := r.db.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("appending circuit record: %w", err)
	}
	return nil
}

// AppendEvent appends an enforcement event
func (r *Repository) AppendEvent(ctx context.Context, event *enforce.Event) error {
	detail, err := store.ToJSONB(event.Detail)
	if err != nil {
		return fmt.Errorf("encoding event detail: %w", err)
	}
	query, args, err := squirrel.Insert(eventsTable).
		Columns(eventColumns...).
		Values(
			event.ID, event.ExecutionID, event.WorkspaceID,
			event.ViolationType, event.Severity, event.Source,
			detail, event.Timestamp,
		).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return fmt.Errorf("building insert query: %w", err)
	}
	if _, err := r.db.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("appending enforcement event: %w", err)
	}
	return nil
}

// AppendSnapshot appends a health snapshot
func (r *Repository) AppendSnapshot(ctx context.Context, snapshot *audit.Snapshot) error {
	query, args, err := squirrel.Insert(snapshotsTable).
		Columns(snapshotColumns...).
		Values(
			snapshot.ID, snapshot.WorkspaceID,
			snapshot.WindowStart, snapshot.WindowEnd,
			snapshot.SuccessRate, snapshot.RecoveryCyclesMax,
			snapshot.BrandViolationRate, snapshot.SystemHealthy,
			snapshot.Timestamp,
		).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return fmt.Errorf("building insert query: %w", err)
	}
	if _, err := r.db.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("appending health snapshot: %w", err)
	}
	return nil
}

// Records queries the record stream, newest first
func (r *Repository) Records(ctx context.Context, filter audit.Filter) ([]*circuit.Record, error) {
	qb := squirrel.Select(recordColumns...).
		From(recordsTable).
		OrderBy("recorded_at DESC").
		PlaceholderFormat(squirrel.Dollar)
	qb = applyRecordFilter(qb, filter)

	query, args, err := qb.ToSql()
	if err != nil {
		return nil, fmt.Errorf("building select query: %w", err)
	}
	var records []*circuit.Record
	if err := pgxscan.Select(ctx, r.db, &records, query, args...); err != nil {
		return nil, fmt.Errorf("scanning circuit records: %w", err)
	}
	return records, nil
}

// Events queries the event stream, newest first
func (r *Repository) Events(ctx context.Context, filter audit.Filter) ([]*enforce.Event, error) {
	qb := squirrel.Select(eventColumns...).
		From(eventsTable).
		OrderBy("recorded_at DESC").
		PlaceholderFormat(squirrel.Dollar)
	qb = applyCommonFilter(qb, filter)

	query, args, err := qb.ToSql()
	if err != nil {
		return nil, fmt.Errorf("building select query: %w", err)
	}
	var events []*enforce.Event
	if err := pgxscan.Select(ctx, r.db, &events, query, args...); err != nil {
		return nil, fmt.Errorf("scanning enforcement events: %w", err)
	}
	return events, nil
}

// Snapshots queries the snapshot stream, newest first
func (r *Repository) Snapshots(ctx context.Context, filter audit.Filter) ([]*audit.Snapshot, error) {
	qb := squirrel.Select(snapshotColumns...).
		From(snapshotsTable).
		OrderBy("recorded_at DESC").
		PlaceholderFormat(squirrel.Dollar)
	if !filter.WorkspaceID.IsZero() {
		qb = qb.Where(squirrel.Eq{"workspace_id": filter.WorkspaceID})
	}
	qb = applyWindowFilter(qb, filter)

	query, args, err := qb.ToSql()
	if err != nil {
		return nil, fmt.Errorf("building select query: %w", err)
	}
	var snapshots []*audit.Snapshot
	if err := pgxscan.Select(ctx, r.db, &snapshots, query, args...); err != nil {
		return nil, fmt.Errorf("scanning health snapshots: %w", err)
	}
	return snapshots, nil
}

// CountRecords aggregates record totals and failures for a filter
func (r *Repository) CountRecords(ctx context.Context, filter audit.Filter) (audit.RecordCounts, error) {
	qb := squirrel.Select(
		"COUNT(*) AS total",
		"COUNT(*) FILTER (WHERE success = false) AS failures",
	).
		From(recordsTable).
		PlaceholderFormat(squirrel.Dollar)
	qb = applyRecordFilter(qb, filter)

	query, args, err := qb.ToSql()
	if err != nil {
		return audit.RecordCounts{}, fmt.Errorf("building count query: %w", err)
	}
	var counts audit.RecordCounts
	if err := pgxscan.Get(ctx, r.db, &counts, query, args...); err != nil {
		return audit.RecordCounts{}, fmt.Errorf("counting circuit records: %w", err)
	}
	return counts, nil
}

// LatestSnapshot returns the newest snapshot for a workspace, or nil when the
// workspace has none.
func (r *Repository) LatestSnapshot(ctx context.Context, workspaceID core.ID) (*audit.Snapshot, error) {
	query, args, err := squirrel.Select(snapshotColumns...).
		From(snapshotsTable).
		Where(squirrel.Eq{"workspace_id": workspaceID}).
		OrderBy("recorded_at DESC").
		Limit(1).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("building select query: %w", err)
	}
	var snapshot audit.Snapshot
	if err := pgxscan.Get(ctx, r.db, &snapshot, query, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("scanning health snapshot: %w", err)
	}
	return &snapshot, nil
}

func applyRecordFilter(qb squirrel.SelectBuilder, filter audit.Filter) squirrel.SelectBuilder {
	if filter.CircuitID != "" {
		qb = qb.Where(squirrel.Eq{"circuit_id": filter.CircuitID})
	}
	if filter.Success != nil {
		qb = qb.Where(squirrel.Eq{"success": *filter.Success})
	}
	return applyCommonFilter(qb, filter)
}

func applyCommonFilter(qb squirrel.SelectBuilder, filter audit.Filter) squirrel.SelectBuilder {
	if !filter.WorkspaceID.IsZero() {
		qb = qb.Where(squirrel.Eq{"workspace_id": filter.WorkspaceID})
	}
	if !filter.ExecutionID.IsZero() {
		qb = qb.Where(squirrel.Eq{"execution_id": filter.ExecutionID})
	}
	return applyWindowFilter(qb, filter)
}

func applyWindowFilter(qb squirrel.SelectBuilder, filter audit.Filter) squirrel.SelectBuilder {
	if !filter.Since.IsZero() {
		qb = qb.Where("recorded_at >= ?", filter.Since)
	}
	if !filter.Until.IsZero() {
		qb = qb.Where("recorded_at < ?", filter.Until)
	}
	if filter.Limit > 0 {
		qb = qb.Limit(uint64(filter.Limit))
	}
	return qb
}
