package cache

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeClock is a settable time source for expiry tests
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newTestIdempotencyStore(t *testing.T) (*InMemoryIdempotencyStore, *fakeClock) {
	t.Helper()
	store := NewInMemoryIdempotencyStore(time.Hour)
	clock := newFakeClock()
	store.now = clock.Now
	t.Cleanup(func() { _ = store.Close() })
	return store, clock
}

func TestInMemoryIdempotencyStore_MarkProcessed(t *testing.T) {
	store, clock := newTestIdempotencyStore(t)
	ctx := context.Background()

	t.Run("claims a new key", func(t *testing.T) {
		claimed, err := store.MarkProcessed(ctx, "key-1", time.Minute)
		require.NoError(t, err)
		assert.True(t, claimed)
	})

	t.Run("refuses a claimed key", func(t *testing.T) {
		_, err := store.MarkProcessed(ctx, "key-2", time.Minute)
		require.NoError(t, err)

		claimed, err := store.MarkProcessed(ctx, "key-2", time.Minute)
		require.NoError(t, err)
		assert.False(t, claimed)
	})

	t.Run("claims again after expiry", func(t *testing.T) {
		_, err := store.MarkProcessed(ctx, "key-3", time.Minute)
		require.NoError(t, err)

		clock.Advance(time.Minute)

		claimed, err := store.MarkProcessed(ctx, "key-3", time.Minute)
		require.NoError(t, err)
		assert.True(t, claimed)
	})
}

func TestInMemoryIdempotencyStore_IsProcessed(t *testing.T) {
	store, clock := newTestIdempotencyStore(t)
	ctx := context.Background()

	processed, err := store.IsProcessed(ctx, "unknown")
	require.NoError(t, err)
	assert.False(t, processed)

	_, err = store.MarkProcessed(ctx, "key", time.Minute)
	require.NoError(t, err)

	processed, err = store.IsProcessed(ctx, "key")
	require.NoError(t, err)
	assert.True(t, processed)

	clock.Advance(2 * time.Minute)
	processed, err = store.IsProcessed(ctx, "key")
	require.NoError(t, err)
	assert.False(t, processed)
}

func TestInMemoryIdempotencyStore_Release(t *testing.T) {
	store, _ := newTestIdempotencyStore(t)
	ctx := context.Background()

	_, err := store.MarkProcessed(ctx, "key", time.Hour)
	require.NoError(t, err)
	require.NoError(t, store.Release(ctx, "key"))

	claimed, err := store.MarkProcessed(ctx, "key", time.Hour)
	require.NoError(t, err)
	assert.True(t, claimed, "a released key can be claimed again")

	assert.NoError(t, store.Release(ctx, "never-claimed"))
}

func TestInMemoryIdempotencyStore_Cleanup(t *testing.T) {
	store, clock := newTestIdempotencyStore(t)
	ctx := context.Background()

	_, _ = store.MarkProcessed(ctx, "short-1", time.Second)
	_, _ = store.MarkProcessed(ctx, "short-2", time.Second)
	_, _ = store.MarkProcessed(ctx, "long", time.Hour)
	assert.Equal(t, 3, store.Size())

	clock.Advance(time.Minute)
	store.cleanup()

	assert.Equal(t, 1, store.Size())
	processed, err := store.IsProcessed(ctx, "long")
	require.NoError(t, err)
	assert.True(t, processed)
}

func TestInMemoryIdempotencyStore_ConcurrentClaims(t *testing.T) {
	store, _ := newTestIdempotencyStore(t)
	ctx := context.Background()
	const workers = 100

	var wg sync.WaitGroup
	results := make(chan bool, workers)
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			claimed, err := store.MarkProcessed(ctx, "same-key", time.Hour)
			results <- err == nil && claimed
		}()
	}
	wg.Wait()
	close(results)

	claimedCount := 0
	for claimed := range results {
		if claimed {
			claimedCount++
		}
	}
	assert.Equal(t, 1, claimedCount, "exactly one caller should win the claim")
}

func TestInMemoryIdempotencyStore_Close(t *testing.T) {
	store := NewInMemoryIdempotencyStore(0)

	assert.NoError(t, store.Close())
	assert.NoError(t, store.Close())
}
