package main

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/joanies-kitchen/recipes-cli/internal/store"
)

func initStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "sqlite":
		dsn := cfg.Store.DatabaseURL
		if dsn == "" {
			dsn = "recipes.db"
		}
		return store.NewSQLite(dsn)
	case "postgres":
		if cfg.Store.DatabaseURL == "" {
			return nil, eris.New("store database URL is required (RECIPES_STORE_DATABASE_URL)")
		}
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL, &store.PoolConfig{
			MaxConns: cfg.Store.MaxConns,
			MinConns: cfg.Store.MinConns,
		})
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
}
