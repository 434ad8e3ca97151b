package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/splax/crate/internal/app/migrate"
	"github.com/splax/crate/internal/repository"
	"github.com/splax/crate/internal/repository/memory"
	"github.com/splax/crate/internal/repository/sqlstore"
	"github.com/splax/crate/pkg/config"
)

// openStore builds the configured backend. SQL backends are migrated before
// they are handed out.
func openStore(ctx context.Context, cfg config.APIConfig, log *slog.Logger) (repository.Store, error) {
	var dialect sqlstore.Dialect
	switch cfg.StoreDriver {
	case config.StoreMemory, "":
		log.Warn("using in-memory store; data is lost on restart")
		return memory.New(), nil
	case config.StorePostgres:
		dialect = sqlstore.Postgres
	case config.StoreSQLite:
		dialect = sqlstore.SQLite
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
	}

	store, db, err := sqlstore.Open(ctx, dialect, cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}
	runner, err := migrate.New(db, dialect, cfg.MigrationsDir, log)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("configure migrations: %w", err)
	}
	if err := runner.Ping(ctx); err != nil {
		store.Close()
		return nil, err
	}
	if err := runner.Ensure(ctx); err != nil {
		store.Close()
		return nil, err
	}
	return store, nil
}
