package cache

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/kiendrone/storefront/internal/domain/cart"
	"github.com/redis/go-redis/v9"
)

const defaultSnapshotPrefix = "storefront:"

// RedisSnapshotRepository keeps cart snapshots as JSON strings under
// storefront:<key>. Every save refreshes the ttl.
type RedisSnapshotRepository struct {
	client    *redis.Client
	keyPrefix string
	ttl       time.Duration
}

// NewRedisSnapshotRepository creates a snapshot repository on client.
// A zero ttl keeps snapshots forever.
func NewRedisSnapshotRepository(client *redis.Client, ttl time.Duration) *RedisSnapshotRepository {
	return &RedisSnapshotRepository{
		client:    client,
		keyPrefix: defaultSnapshotPrefix,
		ttl:       ttl,
	}
}

// Load implements cart.SnapshotRepository
func (r *RedisSnapshotRepository) Load(ctx context.Context, key string) (cart.Snapshot, error) {
	data, err := r.client.Get(ctx, r.keyPrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return cart.Snapshot{}, cart.ErrSnapshotNotFound
	}
	if err != nil {
		return cart.Snapshot{}, fmt.Errorf("failed to load cart snapshot: %w", err)
	}
	return cart.DecodeSnapshot(data)
}

// Save implements cart.SnapshotRepository. The revision check and the
// write run in one WATCH transaction on the slot.
func (r *RedisSnapshotRepository) Save(ctx context.Context, key string, snapshot cart.Snapshot) error {
	data, err := encodeNext(snapshot)
	if err != nil {
		return err
	}
	slot := r.keyPrefix + key
	err = r.client.Watch(ctx, func(tx *redis.Tx) error {
		current, err := tx.Get(ctx, slot).Bytes()
		if err != nil && !errors.Is(err, redis.Nil) {
			return err
		}
		if err == nil && !revisionMatches(current, snapshot.Revision) {
			return cart.ErrSnapshotStale
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, slot, data, r.ttl)
			return nil
		})
		return err
	}, slot)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, cart.ErrSnapshotStale), errors.Is(err, redis.TxFailedErr):
		return fmt.Errorf("failed to save cart snapshot: %w", cart.ErrSnapshotStale)
	default:
		return fmt.Errorf("failed to save cart snapshot: %w", err)
	}
}

// InMemorySnapshotRepository keeps encoded snapshots in a map. It stores
// the encoded bytes so a round trip behaves like the Redis slot.
type InMemorySnapshotRepository struct {
	mu    sync.RWMutex
	slots map[string][]byte
}

// NewInMemorySnapshotRepository creates an empty repository
func NewInMemorySnapshotRepository() *InMemorySnapshotRepository {
	return &InMemorySnapshotRepository{slots: make(map[string][]byte)}
}

// Load implements cart.SnapshotRepository
func (r *InMemorySnapshotRepository) Load(ctx context.Context, key string) (cart.Snapshot, error) {
	r.mu.RLock()
	data, ok := r.slots[key]
	r.mu.RUnlock()
	if !ok {
		return cart.Snapshot{}, cart.ErrSnapshotNotFound
	}
	return cart.DecodeSnapshot(data)
}

// Save implements cart.SnapshotRepository
func (r *InMemorySnapshotRepository) Save(ctx context.Context, key string, snapshot cart.Snapshot) error {
	data, err := encodeNext(snapshot)
	if err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if current, ok := r.slots[key]; ok && !revisionMatches(current, snapshot.Revision) {
		return fmt.Errorf("failed to save cart snapshot: %w", cart.ErrSnapshotStale)
	}
	r.slots[key] = data
	return nil
}

// Put stores raw bytes in a slot
func (r *InMemorySnapshotRepository) Put(key string, data []byte) {
	r.mu.Lock()
	r.slots[key] = append([]byte(nil), data...)
	r.mu.Unlock()
}

// encodeNext encodes snapshot as the revision following the one it was
// loaded at
func encodeNext(snapshot cart.Snapshot) ([]byte, error) {
	snapshot.Revision++
	data, err := cart.EncodeSnapshot(snapshot)
	if err != nil {
		return nil, fmt.Errorf("failed to encode cart snapshot: %w", err)
	}
	return data, nil
}

// revisionMatches reports whether the stored bytes hold revision. A corrupt
// slot matches anything so it can be overwritten.
func revisionMatches(stored []byte, revision int64) bool {
	current, err := cart.DecodeSnapshot(stored)
	if err != nil {
		return true
	}
	return current.Revision == revision
}

var (
	_ cart.SnapshotRepository = (*RedisSnapshotRepository)(nil)
	_ cart.SnapshotRepository = (*InMemorySnapshotRepository)(nil)
)
