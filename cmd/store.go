package main

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/dealbrief/internal/store"
)

// initStore opens the configured store backend. Callers own Close.
func initStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "sqlite":
		dsn := cfg.Store.DatabaseURL
		if dsn == "" {
			dsn = "dealbrief.db"
		}
		return store.NewSQLite(dsn)
	case "postgres":
		var poolCfg *store.PoolConfig
		if cfg.Store.MaxConns > 0 || cfg.Store.MinConns > 0 {
			poolCfg = &store.PoolConfig{
				MaxConns: int32(cfg.Store.MaxConns),
				MinConns: int32(cfg.Store.MinConns),
			}
		}
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL, poolCfg)
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
}
