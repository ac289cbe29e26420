package cart

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/kiendrone/storefront/internal/domain/cart"
	"github.com/kiendrone/storefront/internal/domain/shared/valueobject"
	"go.uber.org/zap"
)

// saveAttempts bounds how often a mutation is replayed on a slot another
// instance keeps writing
const saveAttempts = 3

// Store is a shopping cart bound to one durable snapshot slot. Every
// mutation reloads the slot when it moved on, applies the change and
// saves the full snapshot at the loaded revision; a stale save replays
// the change on the newer cart.
//
// A failed save is logged and returned, but the in-memory mutation stands:
// the cart the customer sees is always the cart they built.
type Store struct {
	mu       sync.Mutex
	key      string
	cart     *cart.ShoppingCart
	rev      int64
	repo     cart.SnapshotRepository
	notifier cart.Notifier
	logger   *zap.Logger
}

// StoreOption configures a Store
type StoreOption func(*Store)

// WithNotifier sets the notifier told about added items
func WithNotifier(n cart.Notifier) StoreOption {
	return func(s *Store) {
		if n != nil {
			s.notifier = n
		}
	}
}

// WithLogger sets the store logger
func WithLogger(l *zap.Logger) StoreOption {
	return func(s *Store) {
		if l != nil {
			s.logger = l
		}
	}
}

// Open restores the cart held under key. An absent or corrupt snapshot
// yields an empty cart; a corrupt one is logged and otherwise ignored.
func Open(ctx context.Context, key string, repo cart.SnapshotRepository, opts ...StoreOption) *Store {
	s := &Store{
		key:      key,
		repo:     repo,
		notifier: cart.NopNotifier{},
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With(zap.String("cart_key", key))
	s.cart, s.rev = s.restore(ctx)
	return s
}

func (s *Store) restore(ctx context.Context) (*cart.ShoppingCart, int64) {
	snap, err := s.repo.Load(ctx, s.key)
	if err != nil {
		switch {
		case errors.Is(err, cart.ErrSnapshotNotFound):
		case errors.Is(err, cart.ErrSnapshotCorrupt):
			s.logger.Warn("discarding corrupt cart snapshot", zap.Error(err))
		default:
			s.logger.Warn("failed to load cart snapshot, starting empty", zap.Error(err))
		}
		return cart.NewShoppingCart(), 0
	}

	restored, err := cart.Restore(snap)
	if err != nil {
		s.logger.Warn("discarding corrupt cart snapshot", zap.Error(err))
		return cart.NewShoppingCart(), 0
	}
	if !restored.IsEmpty() {
		s.logger.Debug("cart restored", zap.Int("lines", restored.Len()))
	}
	return restored, snap.Revision
}

// Refresh picks up a newer snapshot written by another instance
func (s *Store) Refresh(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.refreshLocked(ctx)
}

// refreshLocked replaces the cart with the stored one when the slot moved
// past the loaded revision. An empty, corrupt or unreachable slot keeps
// the cart in memory.
func (s *Store) refreshLocked(ctx context.Context) {
	snap, err := s.repo.Load(ctx, s.key)
	if err != nil {
		if !errors.Is(err, cart.ErrSnapshotNotFound) {
			s.logger.Warn("failed to reload cart snapshot, keeping cart", zap.Error(err))
		}
		return
	}
	if snap.Revision == s.rev {
		return
	}
	restored, err := cart.Restore(snap)
	if err != nil {
		s.logger.Warn("ignoring corrupt cart snapshot", zap.Error(err))
		return
	}
	s.cart, s.rev = restored, snap.Revision
}

// mutateLocked runs change on a fresh cart and saves it, replaying change
// when the save loses against another writer. change reports whether it
// altered the cart.
func (s *Store) mutateLocked(ctx context.Context, change func(c *cart.ShoppingCart) (bool, error)) error {
	var err error
	for attempt := 1; attempt <= saveAttempts; attempt++ {
		s.refreshLocked(ctx)
		changed, changeErr := change(s.cart)
		if changeErr != nil || !changed {
			return changeErr
		}
		err = s.saveLocked(ctx)
		if err == nil {
			return nil
		}
		if !errors.Is(err, cart.ErrSnapshotStale) {
			break
		}
		s.logger.Debug("cart snapshot moved on, replaying change", zap.Int("attempt", attempt))
	}
	s.logger.Error("failed to save cart snapshot",
		zap.Int("lines", s.cart.Len()),
		zap.Error(err),
	)
	return fmt.Errorf("save cart snapshot: %w", err)
}

// Key returns the snapshot slot key
func (s *Store) Key() string {
	return s.key
}

// AddItem adds one unit of p and notifies the notifier
func (s *Store) AddItem(ctx context.Context, p cart.Product) (cart.CartLine, error) {
	var (
		line   cart.CartLine
		notice cart.ItemAddedNotice
	)
	s.mu.Lock()
	err := s.mutateLocked(ctx, func(c *cart.ShoppingCart) (bool, error) {
		var addErr error
		if line, addErr = c.Add(p); addErr != nil {
			return false, addErr
		}
		notice = cart.ItemAddedNotice{
			ProductID:  line.ProductID,
			Name:       line.Name,
			Quantity:   line.Quantity,
			TotalItems: c.TotalItems(),
		}
		return true, nil
	})
	s.mu.Unlock()

	if line.ProductID == "" {
		return cart.CartLine{}, err
	}
	s.notifier.ItemAdded(ctx, notice)
	return line, err
}

// RemoveItem removes a line. Removing an absent product is a no-op and
// does not touch the snapshot.
func (s *Store) RemoveItem(ctx context.Context, productID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mutateLocked(ctx, func(c *cart.ShoppingCart) (bool, error) {
		return c.Remove(productID), nil
	})
}

// UpdateQuantity adjusts a line by delta, never below 1
func (s *Store) UpdateQuantity(ctx context.Context, productID string, delta int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mutateLocked(ctx, func(c *cart.ShoppingCart) (bool, error) {
		return c.AdjustQuantity(productID, delta), nil
	})
}

// Clear empties the cart and persists the empty snapshot
func (s *Store) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mutateLocked(ctx, func(c *cart.ShoppingCart) (bool, error) {
		c.Clear()
		return true, nil
	})
}

// Lines returns a copy of the cart lines in insertion order
func (s *Store) Lines() []cart.CartLine {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cart.Lines()
}

// TotalItems returns the sum of quantities
func (s *Store) TotalItems() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cart.TotalItems()
}

// TotalValue returns the sum of line totals
func (s *Store) TotalValue() valueobject.Money {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cart.TotalValue()
}

func (s *Store) saveLocked(ctx context.Context) error {
	snap := s.cart.Snapshot()
	snap.Revision = s.rev
	if err := s.repo.Save(ctx, s.key, snap); err != nil {
		return err
	}
	s.rev++
	return nil
}
