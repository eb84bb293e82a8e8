package database

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/yourusername/matchcast/internal/config"
)

// ApplicationName tags matchcast sessions in pg_stat_activity.
const ApplicationName = "matchcast"

// DB is the pooled connection shared by the history, feature, prediction and
// artifact catalog repositories.
type DB struct {
	pool *pgxpool.Pool
}

// PoolOptions sizes the pool. Feature building issues many short reads per
// match, so a warm floor of idle connections matters more than a large ceiling.
type PoolOptions struct {
	MaxConns         int
	MinConns         int
	StatementTimeout time.Duration
}

// DefaultStatementTimeout bounds a single history query.
const DefaultStatementTimeout = 30 * time.Second

// NewDB creates a new database connection pool from configuration
func NewDB(ctx context.Context, cfg *config.DatabaseConfig) (*DB, error) {
	connStr := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host,
		cfg.Port,
		cfg.User,
		cfg.Password,
		cfg.Name,
		cfg.SSLMode,
	)
	return NewDBFromDSN(ctx, connStr, PoolOptions{
		MaxConns:         cfg.MaxConnections,
		MinConns:         cfg.MaxIdleConnections,
		StatementTimeout: DefaultStatementTimeout,
	})
}

// NewDBFromDSN creates a pool from a connection string
func NewDBFromDSN(ctx context.Context, dsn string, opts PoolOptions) (*DB, error) {
	poolConfig, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database config: %w", err)
	}

	if opts.MaxConns > 0 {
		poolConfig.MaxConns = int32(opts.MaxConns)
	}
	poolConfig.MinConns = 1
	if opts.MinConns > 0 && int32(opts.MinConns) <= poolConfig.MaxConns {
		poolConfig.MinConns = int32(opts.MinConns)
	}
	poolConfig.MaxConnLifetime = 30 * time.Minute
	poolConfig.MaxConnIdleTime = 5 * time.Minute
	poolConfig.HealthCheckPeriod = time.Minute

	params := poolConfig.ConnConfig.RuntimeParams
	params["application_name"] = ApplicationName
	if opts.StatementTimeout > 0 {
		params["statement_timeout"] = strconv.FormatInt(opts.StatementTimeout.Milliseconds(), 10)
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &DB{pool: pool}, nil
}

// Ping verifies database connectivity
func (db *DB) Ping(ctx context.Context) error {
	return db.pool.Ping(ctx)
}

// Close releases every pooled connection
func (db *DB) Close() {
	if db.pool != nil {
		db.pool.Close()
	}
}

// WithTransaction runs fn inside a transaction, rolling back on error
func (db *DB) WithTransaction(ctx context.Context, fn func(pgx.Tx) error) error {
	tx, err := db.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	if err := fn(tx); err != nil {
		if rollbackErr := tx.Rollback(ctx); rollbackErr != nil {
			return fmt.Errorf("transaction failed: %w, rollback failed: %w", err, rollbackErr)
		}
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// HealthCheck confirms the history store answers queries and reports how many
// finished matches it holds.
func (db *DB) HealthCheck(ctx context.Context) (int64, error) {
	var finished int64
	err := db.pool.QueryRow(ctx, `SELECT count(*) FROM matches WHERE status = 'FINISHED'`).Scan(&finished)
	if err != nil {
		return 0, fmt.Errorf("health check failed: %w", err)
	}
	return finished, nil
}

// Stats summarises pool usage for status output.
func (db *DB) Stats() map[string]int32 {
	st := db.pool.Stat()
	return map[string]int32{
		"total":    st.TotalConns(),
		"idle":     st.IdleConns(),
		"acquired": st.AcquiredConns(),
		"max":      st.MaxConns(),
	}
}

// GetPool returns the underlying pool for repository queries
func (db *DB) GetPool() *pgxpool.Pool {
	return db.pool
}
