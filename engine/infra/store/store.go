package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/stdlib"
	"github.com/sequentry/sequentry/pkg/logger"
)

// Store owns the database handle shared by the domain repositories.
type Store struct {
	DB *DB
}

// SetupStore connects to PostgreSQL and, when AutoMigrate is set, applies the
// embedded migrations before handing out the store.
func SetupStore(ctx context.Context, cfg *Config) (*Store, error) {
	if cfg == nil {
		return nil, fmt.Errorf("store configuration is required")
	}
	db, err := NewDB(ctx, cfg)
	if err != nil {
		return nil, err
	}

	if cfg.AutoMigrate {
		log := logger.FromContext(ctx)
		log.Info("Running database migrations...")

		sqlDB := stdlib.OpenDBFromPool(db.Pool())
		defer sqlDB.Close()

		if err := runEmbeddedMigrations(ctx, sqlDB); err != nil {
			db.Close(ctx)
			return nil, fmt.Errorf("failed to run migrations: %w", err)
		}
		log.Info("Database migrations completed successfully")
	}

	return &Store{DB: db}, nil
}
