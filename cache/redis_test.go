package cache

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeRedisClient implements the minimal command set backed by a map.
// With failing set, every command reports a connection error.
type fakeRedisClient struct {
	store   map[string]string
	ttls    map[string]time.Duration
	failing bool

	getCalls int
	delCalls int
}

func newFakeRedisClient() *fakeRedisClient {
	return &fakeRedisClient{
		store: make(map[string]string),
		ttls:  make(map[string]time.Duration),
	}
}

var errConnRefused = errors.New("dial tcp: connection refused")

func (f *fakeRedisClient) Get(ctx context.Context, key string) *redis.StringCmd {
	f.getCalls++
	if f.failing {
		return redis.NewStringResult("", errConnRefused)
	}
	value, ok := f.store[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(value, nil)
}

func (f *fakeRedisClient) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd {
	if f.failing {
		return redis.NewStatusResult("", errConnRefused)
	}
	f.store[key] = string(value.([]byte))
	f.ttls[key] = expiration
	return redis.NewStatusResult("OK", nil)
}

func (f *fakeRedisClient) Del(ctx context.Context, keys ...string) *redis.IntCmd {
	f.delCalls++
	if f.failing {
		return redis.NewIntResult(0, errConnRefused)
	}
	var removed int64
	for _, key := range keys {
		if _, ok := f.store[key]; ok {
			delete(f.store, key)
			delete(f.ttls, key)
			removed++
		}
	}
	return redis.NewIntResult(removed, nil)
}

// scannableFakeClient additionally supports key enumeration.
type scannableFakeClient struct {
	*fakeRedisClient
}

func (f *scannableFakeClient) Scan(ctx context.Context, cursor uint64, match string, count int64) *redis.ScanCmd {
	if f.failing {
		return redis.NewScanCmdResult(nil, 0, errConnRefused)
	}
	prefix := strings.TrimSuffix(match, "*")
	var keys []string
	for key := range f.store {
		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
	}
	return redis.NewScanCmdResult(keys, 0, nil)
}

func newTestRedisCache(t *testing.T, client RedisClient) *RedisCache {
	t.Helper()
	c, err := NewRedisCache(client, &RedisConfig{})
	require.NoError(t, err)
	return c
}

func TestNewRedisCache(t *testing.T) {
	t.Run("nil client is a configuration error", func(t *testing.T) {
		_, err := NewRedisCache(nil, nil)
		assert.ErrorIs(t, err, ErrNilClient)
	})

	t.Run("defaults apply", func(t *testing.T) {
		c, err := NewRedisCache(newFakeRedisClient(), nil)
		require.NoError(t, err)
		assert.Equal(t, "fmp:", c.prefix)
		assert.NotNil(t, c.breaker)
	})

	t.Run("zero failure threshold disables the breaker", func(t *testing.T) {
		c, err := NewRedisCache(newFakeRedisClient(), &RedisConfig{})
		require.NoError(t, err)
		assert.Nil(t, c.breaker)
	})
}

func TestRedisCache_SetGet(t *testing.T) {
	ctx := context.Background()

	t.Run("round-trips a JSON value", func(t *testing.T) {
		client := newFakeRedisClient()
		c := newTestRedisCache(t, client)

		c.Set(ctx, "quote:AAPL", map[string]any{"price": 123.45}, time.Minute)

		value, ok := c.Get(ctx, "quote:AAPL")
		require.True(t, ok)
		assert.Equal(t, map[string]any{"price": 123.45}, value)
	})

	t.Run("round-trips null and falsy values", func(t *testing.T) {
		client := newFakeRedisClient()
		c := newTestRedisCache(t, client)

		c.Set(ctx, "nil", nil, time.Minute)
		c.Set(ctx, "zero", 0, time.Minute)
		c.Set(ctx, "false", false, time.Minute)

		value, ok := c.Get(ctx, "nil")
		require.True(t, ok)
		assert.Nil(t, value)

		value, ok = c.Get(ctx, "zero")
		require.True(t, ok)
		assert.Equal(t, float64(0), value)

		value, ok = c.Get(ctx, "false")
		require.True(t, ok)
		assert.Equal(t, false, value)
	})

	t.Run("writes prefixed physical keys with remote expiry", func(t *testing.T) {
		client := newFakeRedisClient()
		c := newTestRedisCache(t, client)

		c.Set(ctx, "quote:AAPL", "cached", time.Minute)

		require.Contains(t, client.store, "fmp:quote:AAPL")
		assert.Equal(t, time.Minute, client.ttls["fmp:quote:AAPL"])
	})

	t.Run("honors a custom key prefix", func(t *testing.T) {
		client := newFakeRedisClient()
		c, err := NewRedisCache(client, &RedisConfig{KeyPrefix: "acme:"})
		require.NoError(t, err)

		c.Set(ctx, "key", "value", time.Minute)
		assert.Contains(t, client.store, "acme:key")
	})

	t.Run("envelope carries creation time and TTL in millis", func(t *testing.T) {
		client := newFakeRedisClient()
		c := newTestRedisCache(t, client)

		before := time.Now().UnixMilli()
		c.Set(ctx, "key", "value", 90*time.Second)
		after := time.Now().UnixMilli()

		var env envelope
		require.NoError(t, json.Unmarshal([]byte(client.store["fmp:key"]), &env))
		assert.Equal(t, int64(90_000), env.TTL)
		assert.GreaterOrEqual(t, env.CreatedAt, before)
		assert.LessOrEqual(t, env.CreatedAt, after)
	})

	t.Run("non-positive TTL stores nothing", func(t *testing.T) {
		client := newFakeRedisClient()
		c := newTestRedisCache(t, client)

		c.Set(ctx, "key", "value", 0)
		assert.Empty(t, client.store)
	})

	t.Run("miss on absent key", func(t *testing.T) {
		c := newTestRedisCache(t, newFakeRedisClient())

		_, ok := c.Get(ctx, "never-set")
		assert.False(t, ok)
	})
}

func TestRedisCache_Expiration(t *testing.T) {
	ctx := context.Background()

	writeEnvelope := func(t *testing.T, client *fakeRedisClient, key string, createdAt time.Time, ttl time.Duration) {
		t.Helper()
		payload, err := json.Marshal(envelope{
			Value:     json.RawMessage(`"stale"`),
			CreatedAt: createdAt.UnixMilli(),
			TTL:       ttl.Milliseconds(),
		})
		require.NoError(t, err)
		client.store["fmp:"+key] = string(payload)
	}

	t.Run("expired envelope is a miss and evicted", func(t *testing.T) {
		client := newFakeRedisClient()
		c := newTestRedisCache(t, client)

		writeEnvelope(t, client, "stale", time.Now().Add(-time.Hour), time.Minute)

		_, ok := c.Get(ctx, "stale")
		assert.False(t, ok)
		assert.NotContains(t, client.store, "fmp:stale", "expired entry should be deleted best-effort")
	})

	t.Run("entry expires on read even without remote TTL support", func(t *testing.T) {
		// The remote never expires anything here; the embedded
		// envelope timestamp alone must enforce expiry.
		client := newFakeRedisClient()
		c := newTestRedisCache(t, client)

		writeEnvelope(t, client, "self-expiring", time.Now().Add(-time.Second), 10*time.Millisecond)

		_, ok := c.Get(ctx, "self-expiring")
		assert.False(t, ok)
	})

	t.Run("live envelope is served", func(t *testing.T) {
		client := newFakeRedisClient()
		c := newTestRedisCache(t, client)

		writeEnvelope(t, client, "live", time.Now(), time.Minute)

		value, ok := c.Get(ctx, "live")
		require.True(t, ok)
		assert.Equal(t, "stale", value)
	})

	t.Run("has applies the same liveness check as get", func(t *testing.T) {
		client := newFakeRedisClient()
		c := newTestRedisCache(t, client)

		writeEnvelope(t, client, "live", time.Now(), time.Minute)
		writeEnvelope(t, client, "stale", time.Now().Add(-time.Hour), time.Minute)

		assert.True(t, c.Has(ctx, "live"))
		assert.False(t, c.Has(ctx, "stale"))
		assert.NotContains(t, client.store, "fmp:stale", "has evicts expired entries")
	})
}

func TestRedisCache_ErrorSwallowing(t *testing.T) {
	ctx := context.Background()

	t.Run("transport failure degrades every operation", func(t *testing.T) {
		client := newFakeRedisClient()
		client.failing = true
		c := newTestRedisCache(t, client)

		_, ok := c.Get(ctx, "key")
		assert.False(t, ok)

		assert.NotPanics(t, func() { c.Set(ctx, "key", "value", time.Minute) })
		assert.False(t, c.Delete(ctx, "key"))
		assert.False(t, c.Has(ctx, "key"))
		assert.NotPanics(t, func() { c.Clear(ctx) })
	})

	t.Run("malformed payload is a miss", func(t *testing.T) {
		client := newFakeRedisClient()
		client.store["fmp:garbled"] = "not json at all"
		c := newTestRedisCache(t, client)

		_, ok := c.Get(ctx, "garbled")
		assert.False(t, ok)
		assert.False(t, c.Has(ctx, "garbled"))
	})

	t.Run("unserializable value is dropped silently", func(t *testing.T) {
		client := newFakeRedisClient()
		c := newTestRedisCache(t, client)

		assert.NotPanics(t, func() { c.Set(ctx, "key", make(chan int), time.Minute) })
		assert.Empty(t, client.store)
	})
}

func TestRedisCache_Delete(t *testing.T) {
	ctx := context.Background()
	client := newFakeRedisClient()
	c := newTestRedisCache(t, client)

	c.Set(ctx, "key", "value", time.Minute)

	assert.True(t, c.Delete(ctx, "key"))
	assert.False(t, c.Delete(ctx, "key"), "second delete reports no removal")
}

func TestRedisCache_Clear(t *testing.T) {
	ctx := context.Background()

	t.Run("removes only keys under the prefix", func(t *testing.T) {
		client := &scannableFakeClient{fakeRedisClient: newFakeRedisClient()}
		c := newTestRedisCache(t, client)

		c.Set(ctx, "a", 1, time.Minute)
		c.Set(ctx, "b", 2, time.Minute)
		client.store["other:untouchable"] = "leave me"

		c.Clear(ctx)

		assert.NotContains(t, client.store, "fmp:a")
		assert.NotContains(t, client.store, "fmp:b")
		assert.Contains(t, client.store, "other:untouchable")
	})

	t.Run("no-op without enumeration support", func(t *testing.T) {
		client := newFakeRedisClient()
		c := newTestRedisCache(t, client)

		c.Set(ctx, "a", 1, time.Minute)

		assert.NotPanics(t, func() { c.Clear(ctx) })
		assert.Contains(t, client.store, "fmp:a")
	})
}

func TestRedisCache_CircuitBreaker(t *testing.T) {
	ctx := context.Background()

	t.Run("open breaker short-circuits remote calls", func(t *testing.T) {
		client := newFakeRedisClient()
		client.failing = true
		c, err := NewRedisCache(client, &RedisConfig{
			FailureThreshold: 2,
			BreakerTimeout:   time.Minute,
		})
		require.NoError(t, err)

		for range 5 {
			_, ok := c.Get(ctx, "key")
			assert.False(t, ok)
		}

		assert.Equal(t, 2, client.getCalls, "calls beyond the threshold must not reach the remote")
	})

	t.Run("misses do not trip the breaker", func(t *testing.T) {
		client := newFakeRedisClient()
		c, err := NewRedisCache(client, &RedisConfig{
			FailureThreshold: 2,
			BreakerTimeout:   time.Minute,
		})
		require.NoError(t, err)

		for range 5 {
			_, ok := c.Get(ctx, "absent")
			assert.False(t, ok)
		}

		assert.Equal(t, 5, client.getCalls)
	})
}
