package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrPool marks connection acquisition or pool construction failures.
var ErrPool = errors.New("database pool error")

// Manager owns the shared connection pool. Read and Write return the
// same pool today; the split exists so replica routing can be added
// without touching callers.
type Manager struct {
	pool *pgxpool.Pool
}

func NewManager(ctx context.Context, dsn string, maxConns int32) (*Manager, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("%w: parse dsn: %v", ErrPool, err)
	}
	if maxConns > 0 {
		cfg.MaxConns = maxConns
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("%w: create pool: %v", ErrPool, err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("%w: ping: %v", ErrPool, err)
	}

	return &Manager{pool: pool}, nil
}

func (m *Manager) Read() *pgxpool.Pool {
	return m.pool
}

func (m *Manager) Write() *pgxpool.Pool {
	return m.pool
}

// Acquire borrows a connection from the pool, wrapping failures so
// callers can test for ErrPool.
func (m *Manager) Acquire(ctx context.Context) (*pgxpool.Conn, error) {
	conn, err := m.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: acquire: %v", ErrPool, err)
	}
	return conn, nil
}

func (m *Manager) Close() {
	m.pool.Close()
}
