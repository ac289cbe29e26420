package order

import (
	"github.com/kiendrone/storefront/internal/domain/shared"
	"github.com/kiendrone/storefront/internal/domain/shared/valueobject"
)

// EventTypeOrderPlaced is emitted once an order and its items are durable
const EventTypeOrderPlaced = "OrderPlaced"

// OrderPlacedEvent is raised when the storefront places an order
type OrderPlacedEvent struct {
	shared.BaseDomainEvent
	PaymentMethod string            `json:"payment_method"`
	PaymentCode   string            `json:"payment_code"`
	Total         valueobject.Money `json:"total"`
	ItemCount     int               `json:"item_count"`
}

// NewOrderPlacedEvent creates an OrderPlaced event for o
func NewOrderPlacedEvent(o *Order) *OrderPlacedEvent {
	return &OrderPlacedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeOrderPlaced, o.ID),
		PaymentMethod:   o.Method(),
		PaymentCode:     o.PaymentCode.String(),
		Total:           o.Total,
		ItemCount:       o.ItemCount(),
	}
}
