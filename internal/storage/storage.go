// Package storage provides the durable client-side key/value store used for
// credentials and notifications.
package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/GreenShadeZhang/BotSharp-UI/internal/config"
)

// ErrNotFound is returned when a key has no value.
var ErrNotFound = errors.New("storage: key not found")

// Store is a namespaced string key/value store.
type Store interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, keys ...string) error
	Close() error
}

// Open returns the store selected by cfg.StorageDriver.
func Open(ctx context.Context, cfg *config.Config) (Store, error) {
	switch cfg.StorageDriver {
	case config.StorageMemory:
		return NewMemoryStore(), nil
	case config.StorageSQLite:
		return NewSQLiteStore(ctx, cfg.StorageSQLitePath)
	case config.StorageRedis:
		return NewRedisStore(ctx, cfg.StorageRedisURL, "botsharp:")
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.StorageDriver)
	}
}
