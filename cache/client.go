package cache

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/nip10/fmp-go-cache/config"
)

// NewRedisClient creates a new Redis client and verifies the connection.
func NewRedisClient(cfg *config.RedisConfig) (redis.UniversalClient, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, err
	}

	return client, nil
}

// CloseClient closes the Redis client.
func CloseClient(client redis.UniversalClient) error {
	return client.Close()
}
