package cache

import (
	"fmt"

	"github.com/nip10/fmp-go-cache/config"
	"github.com/nip10/fmp-go-cache/logger"
)

// Backend names accepted by FromConfig.
const (
	BackendMemory = "memory"
	BackendRedis  = "redis"
	BackendTiered = "tiered"
)

// FromConfig builds the Provider named by cfg.Cache.Backend. The redis
// and tiered backends connect to the configured Redis server.
func FromConfig(cfg *config.Config, log *logger.Logger) (Provider, error) {
	if log == nil {
		log = logger.Discard()
	}

	switch cfg.Cache.Backend {
	case "", BackendMemory:
		return NewMemoryCache(&MemoryConfig{
			MaxSize: cfg.Cache.MaxSize,
			Logger:  log,
		})

	case BackendRedis:
		return newRedisFromConfig(cfg, log)

	case BackendTiered:
		local, err := NewMemoryCache(&MemoryConfig{
			MaxSize: cfg.Cache.MaxSize,
			Logger:  log,
		})
		if err != nil {
			return nil, err
		}
		remote, err := newRedisFromConfig(cfg, log)
		if err != nil {
			return nil, err
		}
		return NewTieredCache(local, remote, &TieredConfig{
			LocalTTL: cfg.Cache.LocalTTL,
		})

	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, cfg.Cache.Backend)
	}
}

func newRedisFromConfig(cfg *config.Config, log *logger.Logger) (*RedisCache, error) {
	client, err := NewRedisClient(&cfg.Redis)
	if err != nil {
		return nil, fmt.Errorf("connect redis: %w", err)
	}
	return NewRedisCache(client, &RedisConfig{
		KeyPrefix:        cfg.Redis.KeyPrefix,
		FailureThreshold: cfg.Redis.FailureThreshold,
		BreakerTimeout:   cfg.Redis.BreakerTimeout,
		Logger:           log,
	})
}
