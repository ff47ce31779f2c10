package db

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

type PoolOptions struct {
	MaxConns       int32
	MinConns       int32
	ConnectTimeout time.Duration
}

// NewPool opens a pgx pool and pings it once before returning.
func NewPool(ctx context.Context, dsn string, opts PoolOptions) (*pgxpool.Pool, error) {
	conf, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("db: parse dsn: %w", err)
	}
	if opts.MaxConns > 0 {
		conf.MaxConns = opts.MaxConns
	}
	if opts.MinConns > 0 {
		conf.MinConns = min(opts.MinConns, conf.MaxConns)
	}
	conf.HealthCheckPeriod = time.Minute
	conf.ConnConfig.RuntimeParams["application_name"] = "tipbridge"

	timeout := opts.ConnectTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, conf)
	if err != nil {
		return nil, fmt.Errorf("db: create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("db: ping: %w", err)
	}
	return pool, nil
}
