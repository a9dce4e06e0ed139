// Path: internal/store/pool.go
package store

import (
	"context"
	"fmt"

	"github.com/AhmadSaeedZaidi/viralvelocity-sub000/internal/config"

	"github.com/jackc/pgx/v5/pgxpool"
)

// OpenPool connects to the hot tier. The pool is constructed once at startup
// and injected into the repositories; callers own its lifecycle and must
// Close it on shutdown.
func OpenPool(ctx context.Context, cfg config.DatabaseConfig) (*pgxpool.Pool, error) {
	pcfg, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database url: %w", err)
	}
	if cfg.MaxConns > 0 {
		pcfg.MaxConns = int32(cfg.MaxConns)
	}

	pool, err := pgxpool.NewWithConfig(ctx, pcfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("database ping failed: %w", err)
	}

	return pool, nil
}
