package checkout

import (
	"context"
	"sync"
	"time"

	"github.com/kiendrone/storefront/internal/domain/payment"
	"go.uber.org/zap"
)

// PaymentFlow is the pipeline side of a payment confirmation
type PaymentFlow interface {
	CompletePayment() error
	ReleasePayment() error
}

// Gate holds a pre-paid order in front of the customer until they report
// that the transfer was made, walk away, or the payment window closes.
// Confirming is a local acknowledgement only: the order stays pending
// until the back office reconciles it.
type Gate struct {
	mu           sync.Mutex
	state        GateState
	submission   *Submission
	instructions payment.Instructions
	openedAt     time.Time
	expired      bool

	window  time.Duration
	cart    Cart
	flow    PaymentFlow
	metrics Metrics
	logger  *zap.Logger
	now     func() time.Time
}

// GateOption configures a Gate
type GateOption func(*Gate)

// WithClock overrides the gate clock
func WithClock(now func() time.Time) GateOption {
	return func(g *Gate) {
		g.now = now
	}
}

// WithGateMetrics sets the gate metrics recorder
func WithGateMetrics(m Metrics) GateOption {
	return func(g *Gate) {
		if m != nil {
			g.metrics = m
		}
	}
}

// WithGateLogger sets the gate logger
func WithGateLogger(l *zap.Logger) GateOption {
	return func(g *Gate) {
		if l != nil {
			g.logger = l
		}
	}
}

// NewGate creates an idle gate. A zero window never expires.
func NewGate(c Cart, flow PaymentFlow, window time.Duration, opts ...GateOption) *Gate {
	g := &Gate{
		state:   GateIdle,
		window:  window,
		cart:    c,
		flow:    flow,
		metrics: nopMetrics{},
		logger:  zap.NewNop(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Open computes the payment instructions for sub and shows them
func (g *Gate) Open(sub *Submission, to payment.Recipient) (payment.Instructions, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.state != GateIdle {
		return payment.Instructions{}, ErrNoPendingPayment
	}
	in, err := payment.BuildInstructions(sub.Method, sub.Total, sub.Code, to)
	if err != nil {
		return payment.Instructions{}, err
	}

	s := *sub
	g.submission = &s
	g.instructions = in
	g.openedAt = g.now()
	g.state = GateQRDisplayed
	g.logger.Info("payment instructions displayed",
		zap.String("order_id", sub.OrderID.String()),
		zap.String("memo", in.Memo),
		zap.String("amount", in.Amount.String()),
	)
	return in, nil
}

// State returns the gate state, closing an expired payment window
func (g *Gate) State() GateState {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.expireLocked()
	return g.state
}

// Expired reports whether the gate was abandoned by the payment window
func (g *Gate) Expired() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.expireLocked()
	return g.expired
}

// ExpiresAt returns when the payment window closes, zero if it never does
func (g *Gate) ExpiresAt() time.Time {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.window <= 0 || g.openedAt.IsZero() {
		return time.Time{}
	}
	return g.openedAt.Add(g.window)
}

// Instructions returns the displayed instructions
func (g *Gate) Instructions() (payment.Instructions, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.expireLocked()
	if g.state != GateQRDisplayed {
		return payment.Instructions{}, ErrNoPendingPayment
	}
	return g.instructions, nil
}

// Confirm records the customer's claim that they paid. The cart is
// cleared and the checkout completes; the order itself is not touched.
func (g *Gate) Confirm(ctx context.Context) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.expireLocked()
	if g.state != GateQRDisplayed {
		return ErrNoPendingPayment
	}
	g.state = GateConfirmedLocally

	log := g.logger.With(zap.String("order_id", g.submission.OrderID.String()))
	if err := g.cart.Clear(ctx); err != nil {
		log.Warn("payment confirmed but cart snapshot was not cleared", zap.Error(err))
	}
	if err := g.flow.CompletePayment(); err != nil {
		log.Warn("checkout did not accept payment completion", zap.Error(err))
	}
	g.metrics.RecordPaymentConfirmed(ctx, g.submission.Method.String())
	log.Info("payment confirmed by customer", zap.String("memo", g.instructions.Memo))
	return nil
}

// Abandon closes the payment step without touching the cart or the order
func (g *Gate) Abandon(ctx context.Context) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.expireLocked()
	if g.state != GateQRDisplayed {
		return ErrNoPendingPayment
	}
	g.abandonLocked(ctx, false)
	return nil
}

func (g *Gate) expireLocked() {
	if g.state != GateQRDisplayed || g.window <= 0 {
		return
	}
	if g.now().Sub(g.openedAt) <= g.window {
		return
	}
	g.abandonLocked(context.Background(), true)
}

func (g *Gate) abandonLocked(ctx context.Context, expired bool) {
	g.state = GateAbandoned
	g.expired = expired
	if err := g.flow.ReleasePayment(); err != nil {
		g.logger.Warn("checkout did not accept payment release", zap.Error(err))
	}
	g.metrics.RecordPaymentAbandoned(ctx, g.submission.Method.String(), expired)
	g.logger.Info("payment step abandoned",
		zap.String("order_id", g.submission.OrderID.String()),
		zap.Bool("expired", expired),
	)
}
