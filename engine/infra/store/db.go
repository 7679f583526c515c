package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sequentry/sequentry/pkg/config"
	"github.com/sequentry/sequentry/pkg/logger"
)

// DBInterface is the query surface repositories depend on. Both a real
// *pgxpool.Pool (via *DB) and pgxmock.PgxPoolIface satisfy it.
type DBInterface interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Config holds PostgreSQL connection settings.
type Config struct {
	ConnString  string
	Host        string
	Port        string
	User        string
	Password    string
	DBName      string
	SSLMode     string
	AutoMigrate bool
}

// FromAppConfig maps the application database section onto a store config.
func FromAppConfig(cfg *config.Config) *Config {
	return &Config{
		ConnString:  cfg.Database.ConnString,
		Host:        cfg.Database.Host,
		Port:        cfg.Database.Port,
		User:        cfg.Database.User,
		Password:    cfg.Database.Password.Value(),
		DBName:      cfg.Database.DBName,
		SSLMode:     cfg.Database.SSLMode,
		AutoMigrate: cfg.Database.AutoMigrate,
	}
}

// DSN returns the connection string, assembling one from discrete fields
// when ConnString is not set.
func (c *Config) DSN() string {
	if c.ConnString != "" {
		return c.ConnString
	}
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		valueOrDefault(c.Host, "localhost"),
		valueOrDefault(c.Port, "5432"),
		valueOrDefault(c.User, "postgres"),
		valueOrDefault(c.Password, ""),
		valueOrDefault(c.DBName, "sequentry"),
		valueOrDefault(c.SSLMode, "disable"),
	)
}

type DB struct {
	pool *pgxpool.Pool
}

// NewDB creates a pgx pool with the provided configuration and verifies
// connectivity with a bounded ping.
func NewDB(ctx context.Context, cfg *Config) (*DB, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("parsing connection string: %w", err)
	}

	poolCfg.MaxConns = 20
	poolCfg.MinConns = 2
	poolCfg.HealthCheckPeriod = 30 * time.Second
	poolCfg.ConnConfig.ConnectTimeout = 5 * time.Second

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("creating pool: %w", err)
	}

	pingCtx, pingCancel := context.WithTimeout(ctx, 3*time.Second)
	defer pingCancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	log := logger.FromContext(ctx)
	log.With(
		"host", cfg.Host,
		"port", cfg.Port,
		"db_name", cfg.DBName,
		"ssl_mode", cfg.SSLMode,
	).Info("Database connection established")
	return &DB{pool: pool}, nil
}

// Close shuts down the connection pool.
func (db *DB) Close(ctx context.Context) error {
	db.pool.Close()
	log := logger.FromContext(ctx)
	log.Info("Database connection closed")
	return nil
}

// Pool returns the underlying pgxpool.Pool
func (db *DB) Pool() *pgxpool.Pool {
	return db.pool
}

// HealthCheck verifies connectivity with a ping.
func (db *DB) HealthCheck(ctx context.Context) error {
	if err := db.pool.Ping(ctx); err != nil {
		return fmt.Errorf("ping failed: %w", err)
	}
	return nil
}

// Exec delegates to the pool's Exec method
func (db *DB) Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error) {
	return db.pool.Exec(ctx, sql, arguments...)
}

// Query delegates to the pool's Query method
func (db *DB) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	return db.pool.Query(ctx, sql, args...)
}

// QueryRow delegates to the pool's QueryRow method
func (db *DB) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	return db.pool.QueryRow(ctx, sql, args...)
}

// Begin delegates to the pool's Begin method
func (db *DB) Begin(ctx context.Context) (pgx.Tx, error) {
	return db.pool.Begin(ctx)
}

// WithTx executes fn within a transaction, rolling back on error or panic.
func (db *DB) WithTx(ctx context.Context, fn func(pgx.Tx) error) (err error) {
	log := logger.FromContext(ctx)
	tx, err := db.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			if rbErr := tx.Rollback(ctx); rbErr != nil {
				log.Error("Failed to rollback transaction", "error", rbErr)
			}
			panic(p)
		}
		if err != nil {
			if rbErr := tx.Rollback(ctx); rbErr != nil {
				log.Error("Failed to rollback transaction", "error", rbErr)
			}
			return
		}
		if commitErr := tx.Commit(ctx); commitErr != nil {
			log.Error("Failed to commit transaction", "error", commitErr)
			err = commitErr
		}
	}()

	err = fn(tx)
	return err
}

func valueOrDefault(val, def string) string {
	if val == "" {
		return def
	}
	return val
}
