package checkout

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	domaincheckout "github.com/kiendrone/storefront/internal/domain/checkout"
	"github.com/kiendrone/storefront/internal/domain/order"
	"github.com/kiendrone/storefront/internal/domain/shared"
	"github.com/kiendrone/storefront/internal/domain/shared/valueobject"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const tracerName = "github.com/kiendrone/storefront/internal/application/checkout"

// PipelineConfig holds submission tuning
type PipelineConfig struct {
	// CodeAttempts bounds the payment code collision retries
	CodeAttempts int
	// SubmitTimeout bounds one submission including both writes
	SubmitTimeout time.Duration
	// ClaimTTL is how long an idempotency claim blocks other instances
	ClaimTTL time.Duration
}

// DefaultPipelineConfig returns the default submission tuning
func DefaultPipelineConfig() PipelineConfig {
	return PipelineConfig{
		CodeAttempts:  5,
		SubmitTimeout: 15 * time.Second,
		ClaimTTL:      time.Minute,
	}
}

// PipelineDeps are the collaborators of a Pipeline. Orders and Codes are
// required; the rest may be nil.
type PipelineDeps struct {
	Orders  order.Repository
	Codes   order.CodeSource
	Claims  shared.IdempotencyStore
	Events  shared.EventPublisher
	Metrics Metrics
	Logger  *zap.Logger
}

// SubmitCommand is one order submission. An order already placed under
// IdempotencyKey is resumed only when it carries the same Fingerprint.
type SubmitCommand struct {
	Draft          *domaincheckout.OrderDraft
	CustomerRef    *uuid.UUID
	IdempotencyKey string
	Fingerprint    string
}

// Submission is the outcome of a successful submit
type Submission struct {
	OrderID     uuid.UUID
	Code        order.PaymentReference
	Method      domaincheckout.PaymentMethod
	Total       valueobject.Money
	State       SubmissionState
	Resumed     bool
	SubmittedAt time.Time
}

// Pipeline persists an OrderDraft as a pending order. At most one
// submission runs at a time; header and items are written in one
// transaction.
type Pipeline struct {
	mu    sync.Mutex
	state SubmissionState
	last  *Submission

	cart    Cart
	orders  order.Repository
	codes   order.CodeSource
	claims  shared.IdempotencyStore
	events  shared.EventPublisher
	metrics Metrics
	tracer  trace.Tracer
	logger  *zap.Logger
	cfg     PipelineConfig
}

// NewPipeline creates a pipeline draining c on completion
func NewPipeline(c Cart, deps PipelineDeps, cfg PipelineConfig) *Pipeline {
	defaults := DefaultPipelineConfig()
	if cfg.CodeAttempts < 1 {
		cfg.CodeAttempts = defaults.CodeAttempts
	}
	if cfg.SubmitTimeout <= 0 {
		cfg.SubmitTimeout = defaults.SubmitTimeout
	}
	if cfg.ClaimTTL <= 0 {
		cfg.ClaimTTL = defaults.ClaimTTL
	}

	p := &Pipeline{
		state:   StateIdle,
		cart:    c,
		orders:  deps.Orders,
		codes:   deps.Codes,
		claims:  deps.Claims,
		events:  deps.Events,
		metrics: deps.Metrics,
		logger:  deps.Logger,
		tracer:  otel.Tracer(tracerName),
		cfg:     cfg,
	}
	if p.codes == nil {
		p.codes = order.NewRandomCodeSource(nil)
	}
	if p.metrics == nil {
		p.metrics = nopMetrics{}
	}
	if p.logger == nil {
		p.logger = zap.NewNop()
	}
	return p
}

// State returns the current state and the last successful submission
func (p *Pipeline) State() (SubmissionState, *Submission) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.last == nil {
		return p.state, nil
	}
	sub := *p.last
	return p.state, &sub
}

// Submit places the draft as a pending order.
//
// A submit while another is running fails with ErrSubmissionInFlight.
// Any persistence failure leaves the pipeline Failed and returns an
// error matching ErrSystemBusy; nothing is half written. A key that
// already placed an order for another draft fails with
// ErrIdempotencyKeyReused and leaves the pipeline as it was.
func (p *Pipeline) Submit(ctx context.Context, cmd SubmitCommand) (*Submission, error) {
	if cmd.Draft == nil {
		return nil, shared.ErrInvalidInput
	}
	method := cmd.Draft.PaymentMethod

	prev, err := p.begin()
	if err != nil {
		if errors.Is(err, ErrSubmissionInFlight) {
			p.metrics.RecordSubmission(ctx, method.String(), OutcomeInFlight)
		}
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, p.cfg.SubmitTimeout)
	defer cancel()
	ctx, span := p.tracer.Start(ctx, "checkout.submit", trace.WithAttributes(
		attribute.String("payment.method", method.String()),
		attribute.Int("cart.lines", len(cmd.Draft.Lines)),
	))
	defer span.End()

	log := p.logger.With(
		zap.String("payment_method", method.String()),
		zap.String("idempotency_key", cmd.IdempotencyKey),
	)
	log.Debug("submission started", zap.String("total", cmd.Draft.Total.String()))

	// An order already placed under this key is returned as is
	existing, err := p.findExisting(ctx, cmd.IdempotencyKey)
	if err != nil {
		return nil, p.fail(ctx, span, log, method, &SubmissionError{Stage: "lookup", Err: err})
	}
	if existing != nil {
		if !sameDraft(existing, cmd) {
			return nil, p.reject(ctx, span, log, prev, method, existing)
		}
		return p.finish(ctx, span, log, existing, true), nil
	}

	if !p.claim(ctx, cmd.IdempotencyKey, log) {
		p.restore(prev)
		p.metrics.RecordSubmission(ctx, method.String(), OutcomeInFlight)
		return nil, ErrSubmissionInFlight
	}

	o, err := p.place(ctx, cmd, log)
	if err != nil {
		p.release(cmd.IdempotencyKey, log)

		// Lost the race on the key's unique index: another request committed
		if errors.Is(err, shared.ErrConflict) && cmd.IdempotencyKey != "" {
			if winner, findErr := p.orders.FindByIdempotencyKey(ctx, cmd.IdempotencyKey); findErr == nil {
				if !sameDraft(winner, cmd) {
					return nil, p.reject(ctx, span, log, prev, method, winner)
				}
				return p.finish(ctx, span, log, winner, true), nil
			}
		}
		return nil, p.fail(ctx, span, log, method, err)
	}
	return p.finish(ctx, span, log, o, false), nil
}

// Reset returns the pipeline to Idle for a new checkout
func (p *Pipeline) Reset() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state.IsBusy() {
		return ErrSubmissionInFlight
	}
	p.state = StateIdle
	p.last = nil
	return nil
}

// CompletePayment moves AwaitingPayment to Completed once the customer
// confirmed a transfer
func (p *Pipeline) CompletePayment() error {
	return p.transition(StateAwaitingPayment, StateCompleted)
}

// ReleasePayment moves AwaitingPayment back to Idle when the customer
// abandons the payment step. The placed order is kept.
func (p *Pipeline) ReleasePayment() error {
	return p.transition(StateAwaitingPayment, StateIdle)
}

func (p *Pipeline) begin() (SubmissionState, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	prev := p.state
	switch {
	case prev.IsBusy():
		return prev, ErrSubmissionInFlight
	case !prev.AcceptsSubmit():
		return prev, ErrAlreadySubmitted
	}
	p.state = StateSubmitting
	return prev, nil
}

func (p *Pipeline) transition(from, to SubmissionState) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state != from || !from.CanTransitionTo(to) {
		return shared.NewDomainError("INVALID_STATE", "Cannot move checkout from "+p.state.String()+" to "+to.String())
	}
	p.state = to
	return nil
}

func (p *Pipeline) advance(to SubmissionState) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state.CanTransitionTo(to) {
		p.state = to
	}
}

func (p *Pipeline) restore(to SubmissionState) {
	p.mu.Lock()
	p.state = to
	p.mu.Unlock()
}

func (p *Pipeline) findExisting(ctx context.Context, key string) (*order.Order, error) {
	if key == "" {
		return nil, nil
	}
	o, err := p.orders.FindByIdempotencyKey(ctx, key)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return o, nil
}

// sameDraft reports whether o was placed from the draft of cmd. Orders
// without a fingerprint match any draft.
func sameDraft(o *order.Order, cmd SubmitCommand) bool {
	return o.DraftFingerprint == "" || cmd.Fingerprint == "" || o.DraftFingerprint == cmd.Fingerprint
}

func claimKey(key string) string {
	return "checkout:submit:" + key
}

// claim reserves the key across instances. An unavailable claim store
// does not block the submission; the unique index still holds.
func (p *Pipeline) claim(ctx context.Context, key string, log *zap.Logger) bool {
	if p.claims == nil || key == "" {
		return true
	}
	ok, err := p.claims.MarkProcessed(ctx, claimKey(key), p.cfg.ClaimTTL)
	if err != nil {
		log.Warn("idempotency claim unavailable", zap.Error(err))
		return true
	}
	return ok
}

func (p *Pipeline) release(key string, log *zap.Logger) {
	if p.claims == nil || key == "" {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := p.claims.Release(ctx, claimKey(key)); err != nil {
		log.Warn("failed to release idempotency claim", zap.Error(err))
	}
}

func (p *Pipeline) drawCode(ctx context.Context, log *zap.Logger) order.PaymentReference {
	var code order.PaymentReference
	for attempt := 1; attempt <= p.cfg.CodeAttempts; attempt++ {
		code = p.codes.Next()
		inUse, err := p.orders.PaymentCodeInUse(ctx, code)
		if err != nil {
			log.Warn("payment code check failed, keeping code", zap.Error(err))
			return code
		}
		if !inUse {
			return code
		}
		log.Debug("payment code collision", zap.String("code", code.String()), zap.Int("attempt", attempt))
	}
	log.Warn("payment code still collides, keeping last draw", zap.String("code", code.String()))
	return code
}

func (p *Pipeline) place(ctx context.Context, cmd SubmitCommand, log *zap.Logger) (*order.Order, error) {
	draft := cmd.Draft
	code := p.drawCode(ctx, log)

	o, err := order.NewOrder(order.NewOrderParams{
		Customer: order.Customer{
			FullName: draft.Customer.FullName,
			Phone:    draft.Customer.Phone,
			Email:    draft.Customer.Email,
			Address:  draft.Customer.Address,
		},
		Total:            draft.Total,
		Method:           draft.PaymentMethod.String(),
		Code:             code,
		CustomerRef:      cmd.CustomerRef,
		IdempotencyKey:   cmd.IdempotencyKey,
		DraftFingerprint: cmd.Fingerprint,
	})
	if err != nil {
		return nil, err
	}
	for _, l := range draft.Lines {
		if _, err := o.AddItem(l.ProductID, l.Name, l.Quantity, l.UnitPrice); err != nil {
			return nil, err
		}
	}

	stage := "header"
	err = p.orders.WithinTx(ctx, func(w order.Writer) error {
		if err := w.InsertHeader(ctx, o); err != nil {
			return err
		}
		p.advance(StateHeaderPersisted)
		log.Debug("order header written", zap.String("order_id", o.ID.String()))

		stage = "items"
		if err := w.InsertItems(ctx, o.Items); err != nil {
			return err
		}
		p.advance(StateItemsPersisted)
		stage = "commit"
		return nil
	})
	if err != nil {
		return nil, &SubmissionError{Stage: stage, Err: err}
	}
	return o, nil
}

func (p *Pipeline) fail(ctx context.Context, span trace.Span, log *zap.Logger, method domaincheckout.PaymentMethod, err error) error {
	p.mu.Lock()
	p.state = StateFailed
	p.mu.Unlock()

	span.RecordError(err)
	span.SetStatus(codes.Error, "submission failed")
	p.metrics.RecordSubmission(ctx, method.String(), OutcomeFailed)
	log.Error("order submission failed", zap.Error(err))
	return err
}

func (p *Pipeline) reject(ctx context.Context, span trace.Span, log *zap.Logger, prev SubmissionState, method domaincheckout.PaymentMethod, existing *order.Order) error {
	p.restore(prev)

	span.SetStatus(codes.Error, "idempotency key reused")
	p.metrics.RecordSubmission(ctx, method.String(), OutcomeKeyReused)
	log.Warn("idempotency key already placed a different order",
		zap.String("order_id", existing.ID.String()))
	return ErrIdempotencyKeyReused
}

func (p *Pipeline) finish(ctx context.Context, span trace.Span, log *zap.Logger, o *order.Order, resumed bool) *Submission {
	method, ok := domaincheckout.NormalizePaymentMethod(o.Method())
	if !ok {
		method = domaincheckout.PaymentCOD
	}

	if !resumed {
		o.MarkPlaced()
		if p.events != nil {
			if err := p.events.Publish(ctx, o.GetDomainEvents()...); err != nil {
				log.Warn("failed to publish order events", zap.Error(err))
			}
		}
		o.ClearDomainEvents()
	}

	state := StateCompleted
	if method.RequiresPrepayment() {
		state = StateAwaitingPayment
	} else if err := p.cart.Clear(ctx); err != nil {
		log.Warn("order placed but cart snapshot was not cleared",
			zap.String("order_id", o.ID.String()), zap.Error(err))
	}

	sub := &Submission{
		OrderID:     o.ID,
		Code:        o.PaymentCode,
		Method:      method,
		Total:       o.Total,
		State:       state,
		Resumed:     resumed,
		SubmittedAt: o.CreatedAt,
	}

	p.mu.Lock()
	p.state = state
	p.last = sub
	p.mu.Unlock()

	outcome := OutcomeCompleted
	switch {
	case resumed:
		outcome = OutcomeResumed
	case state == StateAwaitingPayment:
		outcome = OutcomeAwaitingPayment
	}
	p.metrics.RecordSubmission(ctx, method.String(), outcome)
	span.SetAttributes(
		attribute.String("order.id", o.ID.String()),
		attribute.String("checkout.outcome", outcome),
	)
	log.Info("order submitted",
		zap.String("order_id", o.ID.String()),
		zap.String("payment_code", o.PaymentCode.String()),
		zap.String("total", o.Total.String()),
		zap.String("state", state.String()),
		zap.Bool("resumed", resumed),
	)
	return sub
}
