package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/kiendrone/storefront/internal/domain/cart"
	"github.com/kiendrone/storefront/internal/domain/shared"
	"github.com/kiendrone/storefront/internal/infrastructure/config"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Stores bundles the key/value stores the storefront runs on
type Stores struct {
	Snapshots   cart.SnapshotRepository
	Idempotency shared.IdempotencyStore
	// Redis is nil when the in-memory stores are in use
	Redis *redis.Client
}

// Close releases the stores and the Redis client
func (s *Stores) Close() error {
	var errs []error
	if s.Idempotency != nil {
		errs = append(errs, s.Idempotency.Close())
	}
	if s.Redis != nil {
		errs = append(errs, s.Redis.Close())
	}
	return errors.Join(errs...)
}

// StoreFactory creates stores based on configuration
type StoreFactory struct {
	redisConfig           config.RedisConfig
	cartTTL               time.Duration
	logger                *zap.Logger
	allowInMemoryFallback bool
}

// StoreFactoryOption is a functional option for configuring the factory
type StoreFactoryOption func(*StoreFactory)

// WithLogger sets the logger for the factory
func WithLogger(logger *zap.Logger) StoreFactoryOption {
	return func(f *StoreFactory) {
		f.logger = logger
	}
}

// WithInMemoryFallback controls whether an unreachable Redis falls back
// to in-memory stores. Default is true.
func WithInMemoryFallback(allow bool) StoreFactoryOption {
	return func(f *StoreFactory) {
		f.allowInMemoryFallback = allow
	}
}

// NewStoreFactory creates a new factory
func NewStoreFactory(cfg config.RedisConfig, cartTTL time.Duration, opts ...StoreFactoryOption) *StoreFactory {
	f := &StoreFactory{
		redisConfig:           cfg,
		cartTTL:               cartTTL,
		logger:                zap.NewNop(),
		allowInMemoryFallback: true,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Create returns Redis backed stores, or in-memory ones when Redis is
// not configured or, with fallback allowed, not reachable
func (f *StoreFactory) Create(ctx context.Context) (*Stores, error) {
	client, err := NewRedisClient(ctx, f.redisConfig)
	if err == nil {
		f.logger.Info("Using Redis stores", zap.String("addr", f.redisConfig.Addr()))
		return &Stores{
			Snapshots:   NewRedisSnapshotRepository(client, f.cartTTL),
			Idempotency: NewRedisIdempotencyStore(client, ""),
			Redis:       client,
		}, nil
	}

	switch {
	case errors.Is(err, ErrRedisDisabled):
		f.logger.Info("Redis not configured, using in-memory stores")
	case f.allowInMemoryFallback:
		f.logger.Warn("Redis unavailable, falling back to in-memory stores. "+
			"Carts and submission claims are not shared between instances.",
			zap.Error(err),
		)
	default:
		return nil, fmt.Errorf("redis required but unavailable: %w", err)
	}

	return f.CreateInMemory(), nil
}

// CreateInMemory returns process-local stores
func (f *StoreFactory) CreateInMemory() *Stores {
	return &Stores{
		Snapshots:   NewInMemorySnapshotRepository(),
		Idempotency: NewInMemoryIdempotencyStore(0),
	}
}
