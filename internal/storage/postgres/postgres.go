// Package postgres stores prices, sentiment, macro indicators and market
// events in PostgreSQL.
package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stockshastri/shastri/internal/core"
)

// DB is the subset of a pgx pool the repository uses. Satisfied by
// *pgxpool.Pool and by pgxmock pools.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Connect opens a pool and verifies the connection.
func Connect(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, core.WrapError(core.ErrStoreFailed, fmt.Errorf("creating connection pool: %w", err))
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, core.WrapError(core.ErrStoreFailed, fmt.Errorf("pinging database: %w", err))
	}
	return pool, nil
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS stocks (
		id BIGSERIAL PRIMARY KEY,
		ticker VARCHAR(20) NOT NULL,
		date DATE NOT NULL,
		open_price NUMERIC(12,4),
		high_price NUMERIC(12,4),
		low_price NUMERIC(12,4),
		close_price NUMERIC(12,4) NOT NULL,
		volume BIGINT,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		UNIQUE (ticker, date)
	)`,
	`CREATE TABLE IF NOT EXISTS sentiment_data (
		id BIGSERIAL PRIMARY KEY,
		ticker VARCHAR(20) NOT NULL,
		date DATE NOT NULL,
		sentiment_score NUMERIC(5,4) NOT NULL,
		news_count INT NOT NULL DEFAULT 0,
		fallback BOOLEAN NOT NULL DEFAULT FALSE,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		UNIQUE (ticker, date)
	)`,
	`CREATE TABLE IF NOT EXISTS macro_indicators (
		id BIGSERIAL PRIMARY KEY,
		date DATE NOT NULL UNIQUE,
		usd_inr_rate NUMERIC(8,4),
		interest_rate NUMERIC(6,4),
		unemployment_rate NUMERIC(6,4),
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS market_events (
		id BIGSERIAL PRIMARY KEY,
		event_date DATE NOT NULL,
		event_type VARCHAR(50) NOT NULL,
		event_name VARCHAR(200) NOT NULL DEFAULT '',
		impact_window_start DATE NOT NULL,
		impact_window_end DATE NOT NULL,
		impact_score NUMERIC(5,4) NOT NULL DEFAULT 0,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		UNIQUE (event_type, event_name, impact_window_start)
	)`,
}

// Tables lists the managed tables in creation order.
var Tables = []string{"stocks", "sentiment_data", "macro_indicators", "market_events"}

// Repository reads and writes the pipeline tables.
type Repository struct {
	db DB
}

// New creates a repository over db.
func New(db DB) *Repository {
	return &Repository{db: db}
}

// EnsureSchema creates the tables when absent.
func (r *Repository) EnsureSchema(ctx context.Context) error {
	for i, stmt := range schema {
		if _, err := r.db.Exec(ctx, stmt); err != nil {
			return core.WrapError(core.ErrStoreFailed, fmt.Errorf("creating %s: %w", Tables[i], err))
		}
	}
	return nil
}

func (r *Repository) inTx(ctx context.Context, fn func(pgx.Tx) error) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return core.WrapError(core.ErrStoreFailed, fmt.Errorf("begin: %w", err))
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback(ctx)
		return core.WrapError(core.ErrStoreFailed, err)
	}
	if err := tx.Commit(ctx); err != nil {
		return core.WrapError(core.ErrStoreFailed, fmt.Errorf("commit: %w", err))
	}
	return nil
}
