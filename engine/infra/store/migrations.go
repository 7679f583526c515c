package store

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"sync"

	"github.com/pressly/goose/v3"
	"github.com/sequentry/sequentry/pkg/logger"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

var (
	migrationOnce sync.Once
	migrationErr  error
)

// ResetMigrationsForTest resets the migration singleton for testing.
// This function should only be used in test code.
func ResetMigrationsForTest() {
	migrationOnce = sync.Once{}
	migrationErr = nil
}

// runEmbeddedMigrations applies the embedded SQL migrations at most once per
// process. A Postgres advisory lock held on a dedicated connection keeps
// concurrent instances from racing during startup.
func runEmbeddedMigrations(ctx context.Context, db *sql.DB) error {
	migrationOnce.Do(func() {
		conn, err := db.Conn(ctx)
		if err != nil {
			migrationErr = fmt.Errorf("acquiring migration connection: %w", err)
			return
		}
		defer conn.Close()

		if _, err := conn.ExecContext(
			ctx,
			"SELECT pg_advisory_lock(hashtext($1), hashtext($2))",
			"sequentry", "migrations",
		); err != nil {
			migrationErr = fmt.Errorf("acquiring migration lock: %w", err)
			return
		}
		defer func() {
			if _, unlockErr := conn.ExecContext(
				context.WithoutCancel(ctx),
				"SELECT pg_advisory_unlock(hashtext($1), hashtext($2))",
				"sequentry", "migrations",
			); unlockErr != nil {
				log := logger.FromContext(ctx)
				log.Error("Failed to release migration lock", "error", unlockErr)
			}
		}()

		goose.SetBaseFS(migrationsFS)
		if err := goose.SetDialect("postgres"); err != nil {
			migrationErr = fmt.Errorf("setting goose dialect: %w", err)
			return
		}
		if err := goose.Up(db, "migrations"); err != nil {
			migrationErr = fmt.Errorf("migration failed: %w", err)
			return
		}
	})

	return migrationErr
}
