package telemetry

import (
	"context"
	"errors"

	"github.com/kiendrone/storefront/internal/domain/cart"
	"github.com/kiendrone/storefront/internal/domain/order"
	"github.com/kiendrone/storefront/internal/domain/shared"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

// CheckoutMetrics counts order submissions and payment confirmations.
// It also handles OrderPlaced events to track placed order value, and
// serves as the cart notifier counting added items.
type CheckoutMetrics struct {
	itemsAdded *Counter
	submitted  *Counter
	confirmed  *Counter
	abandoned  *Counter
	placed     *Counter
	orderValue *Histogram
	logger     *zap.Logger
}

// NewCheckoutMetrics registers the checkout instruments on meter
func NewCheckoutMetrics(meter metric.Meter, logger *zap.Logger) (*CheckoutMetrics, error) {
	if meter == nil {
		return nil, errors.New("NewCheckoutMetrics: meter cannot be nil")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	m := &CheckoutMetrics{logger: logger}
	var err error
	if m.itemsAdded, err = NewCounter(meter, "storefront_cart_item_added_total",
		"Products added to carts", "{item}"); err != nil {
		return nil, err
	}
	if m.submitted, err = NewCounter(meter, "storefront_order_submitted_total",
		"Order submissions by payment method and outcome", "{submission}"); err != nil {
		return nil, err
	}
	if m.confirmed, err = NewCounter(meter, "storefront_payment_confirmed_total",
		"Prepayments the shopper confirmed as sent", "{payment}"); err != nil {
		return nil, err
	}
	if m.abandoned, err = NewCounter(meter, "storefront_payment_abandoned_total",
		"Payment steps left without confirmation", "{payment}"); err != nil {
		return nil, err
	}
	if m.placed, err = NewCounter(meter, "storefront_order_placed_total",
		"Orders durably placed", "{order}"); err != nil {
		return nil, err
	}
	if m.orderValue, err = NewHistogram(meter, HistogramOpts{
		Name:        "storefront_order_value",
		Description: "Total of placed orders",
		Unit:        "VND",
		Boundaries:  OrderValueBuckets,
	}); err != nil {
		return nil, err
	}
	return m, nil
}

// ItemAdded implements cart.Notifier
func (m *CheckoutMetrics) ItemAdded(ctx context.Context, notice cart.ItemAddedNotice) {
	m.itemsAdded.Inc(ctx)
	m.logger.Debug("Item added to cart",
		zap.String("product_id", notice.ProductID),
		zap.Int("quantity", notice.Quantity),
		zap.Int("total_items", notice.TotalItems),
	)
}

// RecordSubmission counts one submission attempt
func (m *CheckoutMetrics) RecordSubmission(ctx context.Context, method, outcome string) {
	m.submitted.Inc(ctx, AttrPaymentMethod.String(method), AttrOutcome.String(outcome))
}

// RecordPaymentConfirmed counts a confirmed prepayment
func (m *CheckoutMetrics) RecordPaymentConfirmed(ctx context.Context, method string) {
	m.confirmed.Inc(ctx, AttrPaymentMethod.String(method))
}

// RecordPaymentAbandoned counts a payment step closed without confirmation
func (m *CheckoutMetrics) RecordPaymentAbandoned(ctx context.Context, method string, expired bool) {
	m.abandoned.Inc(ctx, AttrPaymentMethod.String(method), AttrExpired.Bool(expired))
}

// Handle records an OrderPlaced event
func (m *CheckoutMetrics) Handle(ctx context.Context, event shared.DomainEvent) error {
	placed, ok := event.(*order.OrderPlacedEvent)
	if !ok {
		m.logger.Debug("Ignoring unexpected event", zap.String("event_type", event.EventType()))
		return nil
	}
	method := AttrPaymentMethod.String(placed.PaymentMethod)
	m.placed.Inc(ctx, method)
	m.orderValue.Record(ctx, placed.Total.Amount().InexactFloat64(), method)
	return nil
}

// EventTypes returns the event types this handler is interested in
func (m *CheckoutMetrics) EventTypes() []string {
	return []string{order.EventTypeOrderPlaced}
}
