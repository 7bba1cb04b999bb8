// Package cache provides the response cache layer for the FMP client:
// a pluggable Provider contract with an in-process LRU store, a
// Redis-backed adapter and a tiered combination of the two.
//
// Cache operations never return errors. A backend failure degrades to a
// miss (Get), a no-op (Set, Clear) or false (Delete, Has), so cache
// unavailability is invisible to the data path it accelerates; callers
// fall back to the uncached source transparently. The only externally
// visible effect of a broken backend is a lower hit rate.
package cache

import (
	"context"
	"errors"
	"time"
)

// Provider is the capability set every cache backend implements.
// Callers hold a Provider and can swap backends without code changes.
type Provider interface {
	// Get returns the cached value for key, or false if no live entry
	// exists. A stored nil is a valid cached value and reports true.
	Get(ctx context.Context, key string) (any, bool)

	// Set stores value under key for the given ttl, replacing any
	// existing entry. A non-positive ttl stores nothing.
	Set(ctx context.Context, key string, value any, ttl time.Duration)

	// Delete removes key regardless of liveness and reports whether an
	// entry was removed.
	Delete(ctx context.Context, key string) bool

	// Has reports whether a live entry exists for key, evicting the
	// entry if it turns out to be expired.
	Has(ctx context.Context, key string) bool

	// Clear removes all entries this provider owns, scoped to its key
	// namespace.
	Clear(ctx context.Context)
}

// Construction errors. Runtime operations never fail; only invalid
// configuration is reported, and only at construction time.
var (
	// ErrInvalidMaxSize indicates a non-positive in-process store bound.
	ErrInvalidMaxSize = errors.New("cache: max size must be positive")

	// ErrNilClient indicates a missing remote client handle.
	ErrNilClient = errors.New("cache: redis client is required")

	// ErrNilProvider indicates a missing backend for a composed cache.
	ErrNilProvider = errors.New("cache: provider is required")

	// ErrUnknownBackend indicates an unrecognized backend name in
	// configuration.
	ErrUnknownBackend = errors.New("cache: unknown backend")
)
