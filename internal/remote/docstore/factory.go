package docstore

import (
	"context"
	"fmt"

	"github.com/bassista/snapgram/internal/config"
	"github.com/bassista/snapgram/internal/remote"
	"github.com/redis/go-redis/v9"
)

// NewFromConfig creates the DocumentStore selected by cfg.Type.
func NewFromConfig(ctx context.Context, cfg config.DocumentStoreConfig, clock remote.Clock) (remote.DocumentStore, error) {
	switch cfg.Type {
	case config.DocumentStoreMemory:
		return NewMemoryStore(clock), nil
	case config.DocumentStoreJSONFile:
		s, err := NewJSONFileStore(cfg.FilePath, clock)
		if err != nil {
			return nil, err
		}
		return s, nil
	case config.DocumentStoreSQLite:
		s, err := NewSQLiteStore(cfg.SQLitePath, clock)
		if err != nil {
			return nil, err
		}
		return s, nil
	case config.DocumentStoreRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			client.Close()
			return nil, fmt.Errorf("redis ping %s: %w: %w", cfg.RedisAddr, remote.ErrNetwork, err)
		}
		return NewRedisStore(client, cfg.RedisPrefix, clock), nil
	default:
		return nil, fmt.Errorf("unknown document store type: %s (supported: %s, %s, %s, %s)", cfg.Type,
			config.DocumentStoreMemory, config.DocumentStoreJSONFile, config.DocumentStoreSQLite, config.DocumentStoreRedis)
	}
}
