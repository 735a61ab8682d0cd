package cli

import (
	"context"
	"fmt"

	"github.com/langdag/dagbuilder/internal/config"
	"github.com/langdag/dagbuilder/internal/storage"
	"github.com/langdag/dagbuilder/internal/storage/redis"
	"github.com/langdag/dagbuilder/internal/storage/sqlite"
)

// initStore opens the session store selected by storage.driver.
func initStore(ctx context.Context, cfg *config.Config) (storage.Store, error) {
	switch cfg.Storage.Driver {
	case "", "sqlite":
		store, err := initSQLite(ctx, cfg.Storage.Path)
		if err != nil {
			return nil, err
		}
		return store, nil
	case "redis":
		store, err := redis.New(cfg.Storage.RedisURL, cfg.Storage.RedisPrefix)
		if err != nil {
			return nil, err
		}
		if err := store.Init(ctx); err != nil {
			store.Close()
			return nil, err
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Storage.Driver)
	}
}

func initSQLite(ctx context.Context, path string) (*sqlite.SQLiteStorage, error) {
	if path == "" {
		path = config.GetDefaultStoragePath()
	}

	if err := config.EnsureStorageDir(path); err != nil {
		return nil, fmt.Errorf("failed to create storage directory: %w", err)
	}

	store, err := sqlite.New(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open storage: %w", err)
	}

	if err := store.Init(ctx); err != nil {
		store.Close()
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	return store, nil
}
