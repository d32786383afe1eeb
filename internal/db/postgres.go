package db

import (
	"context"
	"time"

	"backend-birdtours/internal/config"

	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	newPoolFn  = pgxpool.New
	pingPoolFn = func(ctx context.Context, pool *pgxpool.Pool) error { return pool.Ping(ctx) }
)

// ConnectPostgres opens the pool for the hosted store and verifies it with a
// ping. It is called once at startup; the pool is then injected everywhere.
func ConnectPostgres(cfg config.Config) (*pgxpool.Pool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	pool, err := newPoolFn(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}
	if err := pingPoolFn(ctx, pool); err != nil {
		pool.Close()
		return nil, err
	}
	return pool, nil
}

// PoolQuerier returns pool as a Querier, or Unavailable(err) when pool is nil,
// so a failed connect never becomes a typed-nil interface.
func PoolQuerier(pool *pgxpool.Pool, err error) Querier {
	if pool == nil {
		return Unavailable(err)
	}
	return pool
}
