package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	DefaultMaxConns        = 20
	DefaultMaxConnIdleTime = 10 * time.Second
	DefaultWarmupConns     = 10
)

// PoolConfig describes the connection pool the service runs on.
type PoolConfig struct {
	DatabaseURL     string
	MaxConns        int32
	MaxConnIdleTime time.Duration
	WarmupConns     int
}

// NewPool builds the pool without connecting. Connections are opened by the
// warmup hook or by the first request, whichever comes first.
func NewPool(ctx context.Context, pc PoolConfig) (*pgxpool.Pool, error) {
	if pc.DatabaseURL == "" {
		return nil, errors.New("parse db url: empty database url")
	}
	cfg, err := pgxpool.ParseConfig(pc.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse db url: %w", err)
	}

	if pc.MaxConns < 0 || pc.MaxConnIdleTime < 0 {
		return nil, fmt.Errorf("parse db url: invalid pool sizing (max_conns=%d, max_idle_time=%s)", pc.MaxConns, pc.MaxConnIdleTime)
	}
	cfg.MaxConns = DefaultMaxConns
	if pc.MaxConns > 0 {
		cfg.MaxConns = pc.MaxConns
	}
	cfg.MaxConnIdleTime = DefaultMaxConnIdleTime
	if pc.MaxConnIdleTime > 0 {
		cfg.MaxConnIdleTime = pc.MaxConnIdleTime
	}
	cfg.MinConns = 0

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create db pool: %w", err)
	}
	return pool, nil
}
