package cache

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all cache metrics.
type Metrics struct {
	HitsTotal      *prometheus.CounterVec
	MissesTotal    *prometheus.CounterVec
	EvictionsTotal *prometheus.CounterVec
	OpDuration     *prometheus.HistogramVec
}

// NewMetrics creates a Metrics instance with all metrics registered on
// reg. A nil reg uses the default registerer.
func NewMetrics(namespace string, reg prometheus.Registerer) *Metrics {
	if namespace == "" {
		namespace = "fmp"
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Metrics{
		HitsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "cache",
				Name:      "hits_total",
				Help:      "Total number of cache hits",
			},
			[]string{"backend"},
		),
		MissesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "cache",
				Name:      "misses_total",
				Help:      "Total number of cache misses",
			},
			[]string{"backend"},
		),
		EvictionsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "cache",
				Name:      "evictions_total",
				Help:      "Total number of entries evicted by capacity pressure",
			},
			[]string{"backend"},
		),
		OpDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "cache",
				Name:      "operation_duration_seconds",
				Help:      "Cache operation duration in seconds",
				Buckets:   []float64{.0001, .0005, .001, .005, .01, .025, .05, .1, .25, .5, 1},
			},
			[]string{"backend", "operation"},
		),
	}
}

// EvictionCounter returns a hook suitable for MemoryConfig.OnEvict that
// counts capacity evictions for the given backend label.
func (m *Metrics) EvictionCounter(backend string) func(key string) {
	counter := m.EvictionsTotal.WithLabelValues(backend)
	return func(string) {
		counter.Inc()
	}
}

// InstrumentedCache decorates a Provider with hit/miss counters and
// operation timings. It adds no semantics of its own.
type InstrumentedCache struct {
	next    Provider
	metrics *Metrics
	backend string
}

// NewInstrumentedCache wraps next, recording metrics under the given
// backend label.
func NewInstrumentedCache(next Provider, m *Metrics, backend string) (*InstrumentedCache, error) {
	if next == nil {
		return nil, ErrNilProvider
	}
	return &InstrumentedCache{
		next:    next,
		metrics: m,
		backend: backend,
	}, nil
}

// Get delegates to the wrapped provider and records the outcome.
func (c *InstrumentedCache) Get(ctx context.Context, key string) (any, bool) {
	start := time.Now()
	value, ok := c.next.Get(ctx, key)
	c.observe("get", start)
	c.outcome(ok)
	return value, ok
}

// Set delegates to the wrapped provider and records the duration.
func (c *InstrumentedCache) Set(ctx context.Context, key string, value any, ttl time.Duration) {
	start := time.Now()
	c.next.Set(ctx, key, value, ttl)
	c.observe("set", start)
}

// Delete delegates to the wrapped provider and records the duration.
func (c *InstrumentedCache) Delete(ctx context.Context, key string) bool {
	start := time.Now()
	removed := c.next.Delete(ctx, key)
	c.observe("delete", start)
	return removed
}

// Has delegates to the wrapped provider and records the outcome.
func (c *InstrumentedCache) Has(ctx context.Context, key string) bool {
	start := time.Now()
	ok := c.next.Has(ctx, key)
	c.observe("has", start)
	c.outcome(ok)
	return ok
}

// Clear delegates to the wrapped provider and records the duration.
func (c *InstrumentedCache) Clear(ctx context.Context) {
	start := time.Now()
	c.next.Clear(ctx)
	c.observe("clear", start)
}

func (c *InstrumentedCache) observe(op string, start time.Time) {
	c.metrics.OpDuration.WithLabelValues(c.backend, op).Observe(time.Since(start).Seconds())
}

func (c *InstrumentedCache) outcome(hit bool) {
	if hit {
		c.metrics.HitsTotal.WithLabelValues(c.backend).Inc()
		return
	}
	c.metrics.MissesTotal.WithLabelValues(c.backend).Inc()
}
