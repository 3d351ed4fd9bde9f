package app

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// dbConnectTimeout bounds the startup connectivity probe.
const dbConnectTimeout = 3 * time.Second

// NewDBPool builds the shared pgx pool for the agora schema and verifies
// connectivity before handing it out. Schema management (DDL for agora.users,
// agora.messages, agora.notifications and friends) is handled externally;
// the pool never runs migrations.
func NewDBPool(ctx context.Context, cfg Config) (*pgxpool.Pool, error) {
	pcfg, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}

	if cfg.DBMaxConns > 0 {
		pcfg.MaxConns = cfg.DBMaxConns
	}
	if cfg.DBMinConns >= 0 {
		pcfg.MinConns = cfg.DBMinConns
	}

	pool, err := pgxpool.NewWithConfig(ctx, pcfg)
	if err != nil {
		return nil, err
	}

	if err := PingDB(ctx, pool, dbConnectTimeout); err != nil {
		pool.Close()
		return nil, err
	}

	return pool, nil
}

// PingDB round-trips one connection within timeout. Used at startup and by
// /readyz.
func PingDB(parent context.Context, pool *pgxpool.Pool, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(parent, timeout)
	defer cancel()
	return pool.Ping(ctx)
}
