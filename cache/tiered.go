package cache

import (
	"context"
	"time"
)

// TieredConfig contains tiered cache configuration.
type TieredConfig struct {
	// LocalTTL caps how long the local tier keeps an entry, regardless
	// of the TTL the entry carries in the remote tier.
	LocalTTL time.Duration
}

// DefaultTieredConfig returns the default tiered cache configuration.
func DefaultTieredConfig() *TieredConfig {
	return &TieredConfig{
		LocalTTL: time.Minute,
	}
}

// TieredCache layers a fast local provider in front of a remote one.
// Reads are served from the local tier when possible; a remote hit is
// backfilled into the local tier. Writes and deletes fan out to both.
type TieredCache struct {
	local    Provider
	remote   Provider
	localTTL time.Duration
}

// NewTieredCache creates a tiered cache over the two providers. A nil
// config uses defaults.
func NewTieredCache(local, remote Provider, cfg *TieredConfig) (*TieredCache, error) {
	if local == nil || remote == nil {
		return nil, ErrNilProvider
	}
	if cfg == nil {
		cfg = DefaultTieredConfig()
	}
	localTTL := cfg.LocalTTL
	if localTTL <= 0 {
		localTTL = time.Minute
	}

	return &TieredCache{
		local:    local,
		remote:   remote,
		localTTL: localTTL,
	}, nil
}

// Get returns the value for key from the first tier holding a live
// entry. A remote hit is backfilled into the local tier under the
// configured local TTL.
func (c *TieredCache) Get(ctx context.Context, key string) (any, bool) {
	if value, ok := c.local.Get(ctx, key); ok {
		return value, true
	}
	value, ok := c.remote.Get(ctx, key)
	if !ok {
		return nil, false
	}
	c.local.Set(ctx, key, value, c.localTTL)
	return value, true
}

// Set stores value in both tiers. The local copy's TTL is clamped to
// the configured local TTL so the remote tier stays authoritative.
func (c *TieredCache) Set(ctx context.Context, key string, value any, ttl time.Duration) {
	localTTL := ttl
	if localTTL > c.localTTL {
		localTTL = c.localTTL
	}
	c.local.Set(ctx, key, value, localTTL)
	c.remote.Set(ctx, key, value, ttl)
}

// Delete removes key from both tiers and reports whether either held an
// entry.
func (c *TieredCache) Delete(ctx context.Context, key string) bool {
	localRemoved := c.local.Delete(ctx, key)
	remoteRemoved := c.remote.Delete(ctx, key)
	return localRemoved || remoteRemoved
}

// Has reports whether either tier holds a live entry for key.
func (c *TieredCache) Has(ctx context.Context, key string) bool {
	if c.local.Has(ctx, key) {
		return true
	}
	return c.remote.Has(ctx, key)
}

// Clear empties both tiers.
func (c *TieredCache) Clear(ctx context.Context) {
	c.local.Clear(ctx)
	c.remote.Clear(ctx)
}
