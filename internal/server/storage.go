package server

import (
	"context"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/authsession/internal/server/config"
	"github.com/dmitrijs2005/authsession/internal/server/repositories/refreshtokens"
	"github.com/dmitrijs2005/authsession/internal/server/repositories/repomanager"
	"github.com/redis/go-redis/v9"
)

// Storage is an opened backend: the repository manager plus the Redis client
// when refresh tokens live there.
type Storage struct {
	repomanager.Manager
	redis *redis.Client
}

// Close releases the database and the Redis client.
func (s *Storage) Close() error {
	err := s.Manager.Close()
	if s.redis != nil {
		err = errors.Join(err, s.redis.Close())
	}
	return err
}

// OpenStorage opens the backend selected by cfg and applies migrations.
func OpenStorage(ctx context.Context, cfg *config.Config) (*Storage, error) {
	var opts []repomanager.Option
	var rdb *redis.Client

	if cfg.RefreshStoreBackend == config.RefreshStoreRedis {
		rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err := rdb.Ping(ctx).Err(); err != nil {
			_ = rdb.Close()
			return nil, fmt.Errorf("redis init error: %w", err)
		}
		opts = append(opts, repomanager.WithRefreshTokens(refreshtokens.NewRedisRepository(rdb)))
	}

	var m repomanager.Manager
	switch cfg.StorageBackend {
	case config.StorageMemory:
		m = repomanager.NewMemoryManager(opts...)
	default:
		pm, err := repomanager.OpenPostgres(ctx, cfg.DatabaseDSN, opts...)
		if err != nil {
			if rdb != nil {
				_ = rdb.Close()
			}
			return nil, fmt.Errorf("db init error: %w", err)
		}
		m = pm
	}

	s := &Storage{Manager: m, redis: rdb}

	if err := m.RunMigrations(ctx); err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("migrations error: %w", err)
	}

	return s, nil
}
