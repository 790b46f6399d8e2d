package cmd

import (
	"context"

	"github.com/fundatrack/fundatrack/internal/config"
	"github.com/fundatrack/fundatrack/internal/store/postgres"
	"github.com/fundatrack/fundatrack/internal/store/sqlite"
	"github.com/fundatrack/fundatrack/pkg/reconcile"
)

// openStore opens the configured store backend. The returned func closes it.
func openStore(ctx context.Context) (reconcile.Store, func(), error) {
	switch cfg.StoreBackend {
	case config.StorePostgres:
		store, err := postgres.Open(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, nil, err
		}
		return store, store.Close, nil
	default:
		store, err := sqlite.Open(cfg.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		return store, func() { _ = store.Close() }, nil
	}
}
