package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sony/gobreaker/v2"

	"github.com/nip10/fmp-go-cache/logger"
)

// RedisClient is the minimal command set the adapter needs from a Redis
// client. redis.UniversalClient satisfies it.
type RedisClient interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

// keyScanner is the optional enumeration capability. Clear is a no-op
// for clients that do not provide it.
type keyScanner interface {
	Scan(ctx context.Context, cursor uint64, match string, count int64) *redis.ScanCmd
}

// envelope is the wire representation of one cached entry.
type envelope struct {
	Value     json.RawMessage `json:"v"`
	CreatedAt int64           `json:"c"` // epoch millis
	TTL       int64           `json:"t"` // millis
}

// expired reports whether the envelope is past its time-to-live at now.
func (e *envelope) expired(now time.Time) bool {
	return now.UnixMilli() >= e.CreatedAt+e.TTL
}

// RedisConfig contains external-store adapter configuration.
type RedisConfig struct {
	// KeyPrefix namespaces every physical key, isolating this
	// provider's entries from unrelated data in the same store.
	KeyPrefix string

	// FailureThreshold is the count of consecutive remote failures
	// that opens the circuit breaker. Zero disables the breaker.
	FailureThreshold uint32
	// BreakerTimeout is how long an open breaker waits before probing
	// the remote again.
	BreakerTimeout time.Duration

	Logger *logger.Logger
}

// DefaultRedisConfig returns the default adapter configuration.
func DefaultRedisConfig() *RedisConfig {
	return &RedisConfig{
		KeyPrefix:        "fmp:",
		FailureThreshold: 5,
		BreakerTimeout:   60 * time.Second,
	}
}

// RedisCache adapts the Provider contract to a Redis-compatible store.
// Entries are written as JSON envelopes carrying their own creation
// time and TTL, so they self-expire on read even against a backend with
// no native expiry. The adapter is best-effort: every transport or
// decoding failure degrades to a miss and is logged at debug level.
type RedisCache struct {
	client  RedisClient
	prefix  string
	breaker *gobreaker.CircuitBreaker[any]
	log     *logger.Logger
}

// NewRedisCache creates a new adapter over client. A nil config uses
// defaults.
func NewRedisCache(client RedisClient, cfg *RedisConfig) (*RedisCache, error) {
	if client == nil {
		return nil, ErrNilClient
	}
	if cfg == nil {
		cfg = DefaultRedisConfig()
	}

	prefix := cfg.KeyPrefix
	if prefix == "" {
		prefix = "fmp:"
	}
	log := cfg.Logger
	if log == nil {
		log = logger.Discard()
	}

	c := &RedisCache{
		client: client,
		prefix: prefix,
		log:    log,
	}

	if cfg.FailureThreshold > 0 {
		threshold := cfg.FailureThreshold
		c.breaker = gobreaker.NewCircuitBreaker[any](gobreaker.Settings{
			Name:        "cache-redis",
			MaxRequests: 1,
			Timeout:     cfg.BreakerTimeout,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= threshold
			},
			IsSuccessful: func(err error) bool {
				// A miss is a healthy response.
				return err == nil || errors.Is(err, redis.Nil)
			},
		})
	}

	return c, nil
}

// Get fetches and decodes the envelope at prefix+key. An expired
// envelope is deleted best-effort and reported as a miss, as is any
// transport or decoding failure.
func (c *RedisCache) Get(ctx context.Context, key string) (any, bool) {
	raw, err := c.do(ctx, "get", func() (any, error) {
		return c.client.Get(ctx, c.prefix+key).Result()
	})
	if err != nil {
		return nil, false
	}

	payload, _ := raw.(string)
	var env envelope
	if err := json.Unmarshal([]byte(payload), &env); err != nil {
		c.log.DebugContext(ctx, "cache entry malformed", "key", key, "error", err)
		return nil, false
	}
	if env.expired(time.Now()) {
		c.evict(ctx, key)
		return nil, false
	}

	var value any
	if err := json.Unmarshal(env.Value, &value); err != nil {
		c.log.DebugContext(ctx, "cache value malformed", "key", key, "error", err)
		return nil, false
	}
	return value, true
}

// Set writes the envelope for key with the remote expiry set to the
// same ttl, so the remote's native expiration and the embedded
// timestamp independently enforce it. A non-positive ttl stores
// nothing.
func (c *RedisCache) Set(ctx context.Context, key string, value any, ttl time.Duration) {
	if ttl <= 0 {
		return
	}

	data, err := json.Marshal(value)
	if err != nil {
		c.log.DebugContext(ctx, "cache value not serializable", "key", key, "error", err)
		return
	}
	payload, err := json.Marshal(envelope{
		Value:     data,
		CreatedAt: time.Now().UnixMilli(),
		TTL:       ttl.Milliseconds(),
	})
	if err != nil {
		c.log.DebugContext(ctx, "cache envelope not serializable", "key", key, "error", err)
		return
	}

	c.do(ctx, "set", func() (any, error) {
		return c.client.Set(ctx, c.prefix+key, payload, ttl).Result()
	})
}

// Delete reports whether the remote removed at least one key. Transport
// errors yield false.
func (c *RedisCache) Delete(ctx context.Context, key string) bool {
	removed, err := c.do(ctx, "del", func() (any, error) {
		return c.client.Del(ctx, c.prefix+key).Result()
	})
	if err != nil {
		return false
	}
	n, _ := removed.(int64)
	return n > 0
}

// Has reports whether a live entry exists for key. It applies the same
// envelope liveness check as Get rather than trusting bare existence,
// and evicts an expired entry the same way.
func (c *RedisCache) Has(ctx context.Context, key string) bool {
	raw, err := c.do(ctx, "has", func() (any, error) {
		return c.client.Get(ctx, c.prefix+key).Result()
	})
	if err != nil {
		return false
	}

	payload, _ := raw.(string)
	var env envelope
	if err := json.Unmarshal([]byte(payload), &env); err != nil {
		c.log.DebugContext(ctx, "cache entry malformed", "key", key, "error", err)
		return false
	}
	if env.expired(time.Now()) {
		c.evict(ctx, key)
		return false
	}
	return true
}

// Clear enumerates all keys under this provider's prefix and deletes
// them in one batch. If the client cannot enumerate keys, Clear is a
// no-op.
func (c *RedisCache) Clear(ctx context.Context) {
	scanner, ok := c.client.(keyScanner)
	if !ok {
		return
	}

	pattern := c.prefix + "*"
	var keys []string
	var cursor uint64
	for {
		page, err := c.do(ctx, "scan", func() (any, error) {
			found, next, err := scanner.Scan(ctx, cursor, pattern, 100).Result()
			if err != nil {
				return nil, err
			}
			cursor = next
			return found, nil
		})
		if err != nil {
			return
		}
		keys = append(keys, page.([]string)...)
		if cursor == 0 {
			break
		}
	}
	if len(keys) == 0 {
		return
	}

	c.do(ctx, "clear", func() (any, error) {
		return c.client.Del(ctx, keys...).Result()
	})
}

// evict removes an expired physical key. The outcome is not part of the
// calling operation's result.
func (c *RedisCache) evict(ctx context.Context, key string) {
	c.do(ctx, "evict", func() (any, error) {
		return c.client.Del(ctx, c.prefix+key).Result()
	})
}

// do runs one remote round-trip through the circuit breaker and the
// swallow policy. New operations route through here so they inherit the
// never-throw contract. The returned error is for internal branching
// only; callers translate it to a miss, false or no-op result.
func (c *RedisCache) do(ctx context.Context, op string, fn func() (any, error)) (any, error) {
	var (
		res any
		err error
	)
	if c.breaker != nil {
		res, err = c.breaker.Execute(fn)
	} else {
		res, err = fn()
	}
	if err != nil && !errors.Is(err, redis.Nil) {
		c.log.DebugContext(ctx, "cache backend error", "op", op, "error", err)
	}
	return res, err
}
