// Package database owns the Postgres connection pool. Shape follows the
// teacher's database/database.go: a DBPool interface that both *pgxpool.Pool
// and a pgx.Tx (for transaction-scoped callers) can satisfy, and a package
// level Connect/Close pair.
package database

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// DBPool is the minimal surface every store depends on, so tests can swap
// in pgxmock.
type DBPool interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Pool wraps *pgxpool.Pool plus lifecycle management.
type Pool struct {
	*pgxpool.Pool
}

// Connect establishes the connection pool for the given DSN.
func Connect(ctx context.Context, dsn string) (*Pool, error) {
	if dsn == "" {
		return nil, fmt.Errorf("database DSN is empty")
	}

	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("unable to parse connection string: %w", err)
	}

	cfg.MaxConns = 20
	cfg.MinConns = 2
	cfg.MaxConnLifetime = time.Hour
	cfg.MaxConnIdleTime = 30 * time.Minute
	cfg.HealthCheckPeriod = time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("unable to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("database ping failed: %w", err)
	}

	log.Println("Database connection pool established successfully")
	return &Pool{Pool: pool}, nil
}

// Close releases the pool's connections.
func (p *Pool) Close() {
	if p != nil && p.Pool != nil {
		log.Println("Closing database connection pool")
		p.Pool.Close()
	}
}

// WithTx runs fn inside a transaction, committing on success and rolling
// back on error or panic. Grounded on the teacher's handlePaymentIntentSucceeded
// begin/defer-rollback/commit shape, generalized into a reusable helper since
// SPEC_FULL needs it in many engines, not just the webhook handler.
func WithTx(ctx context.Context, db DBPool, fn func(tx pgx.Tx) error) error {
	tx, err := db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("db transaction begin failed: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := fn(tx); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("db transaction commit failed: %w", err)
	}
	return nil
}
