package postgres

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/sequentry/sequentry/engine/channel"
	"github.com/sequentry/sequentry/engine/core"
)

const metricsTable = "engagement_metrics"

var metricsColumns = []string{
	"id", "execution_id", "channel",
	"reach", "engagements", "source", "recorded_at",
}

// Repository implements channel.EngagementRepository on PostgreSQL
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

// NewRepository creates an engagement metrics repository
func NewRepository(db DBInterface) channel.EngagementRepository {
	return &Repository{db: db}
}

// Insert appends one per-channel engagement row
func (r *Repository) Insert(ctx context.Context, metrics *channel.EngagementMetrics) error {
	query, args, err := squirrel.Insert(metricsTable).
		Columns(metricsColumns...).
		Values(
			metrics.ID, metrics.ExecutionID, metrics.Channel,
			metrics.Reach, metrics.Engagements, metrics.Source, metrics.RecordedAt,
		).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return fmt.Errorf("building insert query: %w", err)
	}
	if _, err := r.db.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("inserting engagement metrics: %w", err)
	}
	return nil
}

// ByExecution returns every engagement row landed for the execution
func (r *Repository) ByExecution(ctx context.Context, executionID core.ID) ([]*channel.EngagementMetrics, error) {
	query, args, err := squirrel.Select(metricsColumns...).
		From(metricsTable).
		Where(squirrel.Eq{"execution_id": executionID}).
		OrderBy("recorded_at ASC").
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("building select query: %w", err)
	}
	var rows []*channel.EngagementMetrics
	if err := pgxscan.Select(ctx, r.db, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("scanning engagement metrics: %w", err)
	}
	return rows, nil
}
