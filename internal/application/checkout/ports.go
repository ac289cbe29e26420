package checkout

import (
	"context"

	"github.com/kiendrone/storefront/internal/domain/cart"
)

// Cart is the cart a checkout reads and drains
type Cart interface {
	Lines() []cart.CartLine
	Clear(ctx context.Context) error
}

// Submission outcomes reported to Metrics
const (
	OutcomeCompleted       = "completed"
	OutcomeAwaitingPayment = "awaiting_payment"
	OutcomeResumed         = "resumed"
	OutcomeFailed          = "failed"
	OutcomeInFlight        = "in_flight"
	OutcomeKeyReused       = "key_reused"
)

// Metrics records checkout measurements
type Metrics interface {
	RecordSubmission(ctx context.Context, method, outcome string)
	RecordPaymentConfirmed(ctx context.Context, method string)
	RecordPaymentAbandoned(ctx context.Context, method string, expired bool)
}

// QRRenderer renders a QR payload as a PNG image
type QRRenderer interface {
	PNG(payload string, size int) ([]byte, error)
}

type nopMetrics struct{}

func (nopMetrics) RecordSubmission(context.Context, string, string)     {}
func (nopMetrics) RecordPaymentConfirmed(context.Context, string)       {}
func (nopMetrics) RecordPaymentAbandoned(context.Context, string, bool) {}
