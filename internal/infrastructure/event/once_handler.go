package event

import (
	"context"
	"time"

	"github.com/kiendrone/storefront/internal/domain/shared"
	"go.uber.org/zap"
)

const onceKeyPrefix = "event:"

// OnceHandler wraps an EventHandler so each event id is handled at most
// once per ttl, even when the event is published again
type OnceHandler struct {
	handler shared.EventHandler
	store   shared.IdempotencyStore
	ttl     time.Duration
	logger  *zap.Logger
}

// NewOnceHandler wraps handler with claims in store
func NewOnceHandler(handler shared.EventHandler, store shared.IdempotencyStore, ttl time.Duration, logger *zap.Logger) *OnceHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &OnceHandler{handler: handler, store: store, ttl: ttl, logger: logger}
}

// EventTypes returns the wrapped handler's event types
func (h *OnceHandler) EventTypes() []string {
	return h.handler.EventTypes()
}

// Handle claims the event id and delegates. When the store is
// unreachable the event is handled anyway. A failed handler releases
// its claim so a later delivery can retry.
func (h *OnceHandler) Handle(ctx context.Context, event shared.DomainEvent) error {
	key := onceKeyPrefix + event.EventID().String()

	claimed, err := h.store.MarkProcessed(ctx, key, h.ttl)
	if err != nil {
		h.logger.Warn("Failed to claim event, handling anyway",
			zap.String("event_id", event.EventID().String()),
			zap.Error(err),
		)
	} else if !claimed {
		h.logger.Debug("Duplicate event skipped",
			zap.String("event_id", event.EventID().String()),
			zap.String("event_type", event.EventType()),
		)
		return nil
	}

	if err := h.handler.Handle(ctx, event); err != nil {
		if claimed {
			if releaseErr := h.store.Release(ctx, key); releaseErr != nil {
				h.logger.Warn("Failed to release event claim", zap.Error(releaseErr))
			}
		}
		return err
	}
	return nil
}

var _ shared.EventHandler = (*OnceHandler)(nil)
