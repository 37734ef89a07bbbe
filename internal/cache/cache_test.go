package cache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCache(t *testing.T, cfg Config) (*Cache[string, int], *time.Time) {
	t.Helper()
	c := New[string, int](cfg)
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	clock := &now
	c.now = func() time.Time { return *clock }
	return c, clock
}

func TestGetOrComputeCachesValue(t *testing.T) {
	c, _ := newTestCache(t, Config{TTL: 15 * time.Minute, Idle: 5 * time.Minute, Capacity: 8})

	var calls atomic.Int64
	compute := func(context.Context) (int, error) {
		calls.Add(1)
		return 42, nil
	}

	for i := 0; i < 5; i++ {
		v, err := c.GetOrCompute(context.Background(), "key", compute)
		require.NoError(t, err)
		assert.Equal(t, 42, v)
	}
	assert.Equal(t, int64(1), calls.Load())
}

func TestSingleFlightColdKey(t *testing.T) {
	c, _ := newTestCache(t, Config{TTL: 15 * time.Minute, Idle: 5 * time.Minute, Capacity: 8})

	var calls atomic.Int64
	release := make(chan struct{})
	compute := func(context.Context) (int, error) {
		calls.Add(1)
		<-release
		return 7, nil
	}

	const n = 20
	var wg sync.WaitGroup
	results := make([]int, n)
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = c.GetOrCompute(context.Background(), "key", compute)
		}(i)
	}

	// Let every goroutine attach to the in-flight computation.
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int64(1), calls.Load())
	for i := 0; i < n; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, 7, results[i])
	}
}

func TestFailedComputationNotCached(t *testing.T) {
	c, _ := newTestCache(t, Config{TTL: 15 * time.Minute, Idle: 5 * time.Minute, Capacity: 8})

	boom := errors.New("store unreachable")
	var calls atomic.Int64
	failing := func(context.Context) (int, error) {
		calls.Add(1)
		return 0, boom
	}

	_, err := c.GetOrCompute(context.Background(), "key", failing)
	assert.ErrorIs(t, err, boom)

	v, err := c.GetOrCompute(context.Background(), "key", func(context.Context) (int, error) {
		calls.Add(1)
		return 9, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 9, v)
	assert.Equal(t, int64(2), calls.Load())
}

func TestErrorSharedWithConcurrentWaiters(t *testing.T) {
	c, _ := newTestCache(t, Config{TTL: 15 * time.Minute, Idle: 5 * time.Minute, Capacity: 8})

	boom := errors.New("boom")
	release := make(chan struct{})
	var calls atomic.Int64
	compute := func(context.Context) (int, error) {
		calls.Add(1)
		<-release
		return 0, boom
	}

	const n = 5
	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = c.GetOrCompute(context.Background(), "key", compute)
		}(i)
	}
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int64(1), calls.Load())
	for i := 0; i < n; i++ {
		assert.ErrorIs(t, errs[i], boom)
	}
}

func TestTTLExpiry(t *testing.T) {
	c, clock := newTestCache(t, Config{TTL: 15 * time.Minute, Idle: time.Hour, Capacity: 8})

	var calls atomic.Int64
	compute := func(context.Context) (int, error) {
		calls.Add(1)
		return 1, nil
	}

	_, err := c.GetOrCompute(context.Background(), "key", compute)
	require.NoError(t, err)

	// Just short of the TTL the entry is still served.
	*clock = clock.Add(14 * time.Minute)
	_, err = c.GetOrCompute(context.Background(), "key", compute)
	require.NoError(t, err)
	assert.Equal(t, int64(1), calls.Load())

	// Reads do not extend the TTL.
	*clock = clock.Add(1 * time.Minute)
	_, err = c.GetOrCompute(context.Background(), "key", compute)
	require.NoError(t, err)
	assert.Equal(t, int64(2), calls.Load())
}

func TestIdleExpiry(t *testing.T) {
	c, clock := newTestCache(t, Config{TTL: time.Hour, Idle: 5 * time.Minute, Capacity: 8})

	var calls atomic.Int64
	compute := func(context.Context) (int, error) {
		calls.Add(1)
		return 1, nil
	}

	_, err := c.GetOrCompute(context.Background(), "key", compute)
	require.NoError(t, err)

	// Regular reads keep the entry alive past the idle window.
	for i := 0; i < 3; i++ {
		*clock = clock.Add(4 * time.Minute)
		_, err = c.GetOrCompute(context.Background(), "key", compute)
		require.NoError(t, err)
	}
	assert.Equal(t, int64(1), calls.Load())

	// Five unread minutes evict it.
	*clock = clock.Add(5 * time.Minute)
	_, err = c.GetOrCompute(context.Background(), "key", compute)
	require.NoError(t, err)
	assert.Equal(t, int64(2), calls.Load())
}

func TestCapacityEvictsLeastRecentlyUsed(t *testing.T) {
	c, _ := newTestCache(t, Config{TTL: time.Hour, Idle: time.Hour, Capacity: 2})

	calls := make(map[string]int)
	compute := func(key string) func(context.Context) (int, error) {
		return func(context.Context) (int, error) {
			calls[key]++
			return len(key), nil
		}
	}

	ctx := context.Background()
	_, err := c.GetOrCompute(ctx, "a", compute("a"))
	require.NoError(t, err)
	_, err = c.GetOrCompute(ctx, "b", compute("b"))
	require.NoError(t, err)

	// Touch "a" so "b" is the eviction candidate.
	_, err = c.GetOrCompute(ctx, "a", compute("a"))
	require.NoError(t, err)

	_, err = c.GetOrCompute(ctx, "c", compute("c"))
	require.NoError(t, err)
	assert.Equal(t, 2, c.Len())

	_, err = c.GetOrCompute(ctx, "a", compute("a"))
	require.NoError(t, err)
	_, err = c.GetOrCompute(ctx, "b", compute("b"))
	require.NoError(t, err)

	assert.Equal(t, 1, calls["a"])
	assert.Equal(t, 2, calls["b"])
	assert.Equal(t, 1, calls["c"])
}

func TestWaiterDepartureDoesNotCancelComputation(t *testing.T) {
	c, _ := newTestCache(t, Config{TTL: time.Hour, Idle: time.Hour, Capacity: 8})

	release := make(chan struct{})
	var calls atomic.Int64
	compute := func(ctx context.Context) (int, error) {
		calls.Add(1)
		select {
		case <-release:
			return 3, nil
		case <-ctx.Done():
			return 0, ctx.Err()
		}
	}

	cancelCtx, cancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup

	wg.Add(1)
	var abandonedErr error
	go func() {
		defer wg.Done()
		_, abandonedErr = c.GetOrCompute(cancelCtx, "key", compute)
	}()

	time.Sleep(20 * time.Millisecond)

	wg.Add(1)
	var stayErr error
	var stayVal int
	go func() {
		defer wg.Done()
		stayVal, stayErr = c.GetOrCompute(context.Background(), "key", compute)
	}()

	time.Sleep(20 * time.Millisecond)

	// The first waiter leaves; the second still gets the result.
	cancel()
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.ErrorIs(t, abandonedErr, context.Canceled)
	require.NoError(t, stayErr)
	assert.Equal(t, 3, stayVal)
	assert.Equal(t, int64(1), calls.Load())
}

func TestLastWaiterDepartureCancelsComputation(t *testing.T) {
	c, _ := newTestCache(t, Config{TTL: time.Hour, Idle: time.Hour, Capacity: 8})

	computeCancelled := make(chan struct{})
	compute := func(ctx context.Context) (int, error) {
		<-ctx.Done()
		close(computeCancelled)
		return 0, ctx.Err()
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := c.GetOrCompute(ctx, "key", compute)
		done <- err
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()

	assert.ErrorIs(t, <-done, context.Canceled)
	select {
	case <-computeCancelled:
	case <-time.After(time.Second):
		t.Fatal("computation was not cancelled after its last waiter left")
	}
}
