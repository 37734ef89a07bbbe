// Package cache provides an in-process read-through cache with TTL and
// idle expiry, a bounded LRU footprint, and single-flight recomputation:
// under any number of concurrent requests for the same cold key, the
// expensive computation runs exactly once and every caller observes its
// outcome.
package cache

import (
	"context"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

// Config controls one cache instance.
type Config struct {
	// TTL is the maximum age of an entry since it was computed.
	TTL time.Duration
	// Idle is the maximum age of an entry since it was last read.
	// Whichever of TTL and Idle fires first evicts the entry.
	Idle time.Duration
	// Capacity bounds the number of resident entries; overflow evicts
	// the least recently used entry first.
	Capacity int
}

const defaultCapacity = 1024

// Cache maps keys to computed values. Completed values live in the LRU;
// in-flight computations live in a separate pending registry so capacity
// pressure can never evict a computation out from under its waiters.
type Cache[K comparable, V any] struct {
	cfg Config
	now func() time.Time

	mu      sync.Mutex
	values  *lru.Cache[K, *value[V]]
	pending map[K]*flight[V]
}

type value[V any] struct {
	val        V
	computedAt time.Time
	lastRead   time.Time
}

// flight is the pending-computation marker for one key. waiters counts
// callers blocked on done; when the last one abandons the request the
// computation's context is cancelled.
type flight[V any] struct {
	done    chan struct{}
	cancel  context.CancelFunc
	waiters int
	val     V
	err     error
}

// New creates a cache. A zero or negative capacity falls back to the
// default.
func New[K comparable, V any](cfg Config) *Cache[K, V] {
	if cfg.Capacity <= 0 {
		cfg.Capacity = defaultCapacity
	}
	values, _ := lru.New[K, *value[V]](cfg.Capacity)
	return &Cache[K, V]{
		cfg:     cfg,
		now:     time.Now,
		values:  values,
		pending: make(map[K]*flight[V]),
	}
}

// GetOrCompute returns the cached value for key, or runs compute to
// produce it. Concurrent callers for the same cold key share a single
// compute invocation and all receive its result. Failed computations are
// never cached; the next call retries.
//
// compute runs detached from any single caller's context: it is
// cancelled only when every waiter has gone away.
func (c *Cache[K, V]) GetOrCompute(ctx context.Context, key K, compute func(context.Context) (V, error)) (V, error) {
	c.mu.Lock()
	now := c.now()

	if v, ok := c.values.Get(key); ok {
		if c.fresh(v, now) {
			v.lastRead = now
			c.mu.Unlock()
			return v.val, nil
		}
		c.values.Remove(key)
	}

	if f, ok := c.pending[key]; ok {
		f.waiters++
		c.mu.Unlock()
		return c.wait(ctx, f)
	}

	f := &flight[V]{done: make(chan struct{}), waiters: 1}
	computeCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	f.cancel = cancel
	c.pending[key] = f
	c.mu.Unlock()

	go c.run(key, f, computeCtx, compute)

	return c.wait(ctx, f)
}

func (c *Cache[K, V]) run(key K, f *flight[V], ctx context.Context, compute func(context.Context) (V, error)) {
	val, err := compute(ctx)
	f.cancel()

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.pending[key] == f {
		delete(c.pending, key)
	}
	if err == nil {
		now := c.now()
		c.values.Add(key, &value[V]{val: val, computedAt: now, lastRead: now})
	}
	f.val, f.err = val, err
	close(f.done)
}

func (c *Cache[K, V]) wait(ctx context.Context, f *flight[V]) (V, error) {
	select {
	case <-f.done:
		return f.val, f.err
	case <-ctx.Done():
		c.mu.Lock()
		f.waiters--
		if f.waiters == 0 {
			select {
			case <-f.done:
			default:
				f.cancel()
			}
		}
		c.mu.Unlock()
		var zero V
		return zero, ctx.Err()
	}
}

func (c *Cache[K, V]) fresh(v *value[V], now time.Time) bool {
	return now.Sub(v.computedAt) < c.cfg.TTL && now.Sub(v.lastRead) < c.cfg.Idle
}

// Len reports the number of resident completed entries.
func (c *Cache[K, V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.values.Len()
}
