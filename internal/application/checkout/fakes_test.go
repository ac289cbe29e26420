package checkout

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/kiendrone/storefront/internal/domain/cart"
	domaincheckout "github.com/kiendrone/storefront/internal/domain/checkout"
	"github.com/kiendrone/storefront/internal/domain/order"
	"github.com/kiendrone/storefront/internal/domain/shared"
	"github.com/kiendrone/storefront/internal/domain/shared/valueobject"
	"github.com/stretchr/testify/mock"
)

// memOrderRepo is a transactional in-memory order.Repository
type memOrderRepo struct {
	mu            sync.Mutex
	orders        map[uuid.UUID]*order.Order
	byKey         map[string]uuid.UUID
	codesInUse    map[order.PaymentReference]bool
	headerErr     error
	itemsErr      error
	headerInserts int
	// headerGate, when set, blocks InsertHeader until it is closed
	headerGate chan struct{}
	entered    chan struct{}
}

func newMemOrderRepo() *memOrderRepo {
	return &memOrderRepo{
		orders:     make(map[uuid.UUID]*order.Order),
		byKey:      make(map[string]uuid.UUID),
		codesInUse: make(map[order.PaymentReference]bool),
	}
}

type stagedWriter struct {
	repo   *memOrderRepo
	header *order.Order
	items  []order.LineItem
}

func (w *stagedWriter) InsertHeader(ctx context.Context, o *order.Order) error {
	w.repo.mu.Lock()
	w.repo.headerInserts++
	gate, entered, headerErr := w.repo.headerGate, w.repo.entered, w.repo.headerErr
	w.repo.mu.Unlock()

	if entered != nil {
		entered <- struct{}{}
	}
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if headerErr != nil {
		return headerErr
	}
	w.header = o
	return nil
}

func (w *stagedWriter) InsertItems(ctx context.Context, items []order.LineItem) error {
	if w.repo.itemsErr != nil {
		return w.repo.itemsErr
	}
	w.items = append(w.items, items...)
	return nil
}

func (r *memOrderRepo) WithinTx(ctx context.Context, fn func(w order.Writer) error) error {
	w := &stagedWriter{repo: r}
	if err := fn(w); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if w.header == nil {
		return nil
	}
	if key := w.header.IdempotencyKey; key != "" {
		if _, taken := r.byKey[key]; taken {
			return fmt.Errorf("insert order header: %w", shared.ErrConflict)
		}
		r.byKey[key] = w.header.ID
	}
	stored := *w.header
	stored.Items = append([]order.LineItem(nil), w.items...)
	r.orders[stored.ID] = &stored
	return nil
}

func (r *memOrderRepo) FindByID(ctx context.Context, id uuid.UUID) (*order.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	return o, nil
}

func (r *memOrderRepo) FindByIdempotencyKey(ctx context.Context, key string) (*order.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id, ok := r.byKey[key]
	if !ok {
		return nil, shared.ErrNotFound
	}
	return r.orders[id], nil
}

func (r *memOrderRepo) FindByCustomer(ctx context.Context, customerRef uuid.UUID, filter shared.Filter) ([]order.Order, error) {
	return nil, nil
}

func (r *memOrderRepo) CountByCustomer(ctx context.Context, customerRef uuid.UUID) (int64, error) {
	return 0, nil
}

func (r *memOrderRepo) PaymentCodeInUse(ctx context.Context, code order.PaymentReference) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.codesInUse[code], nil
}

func (r *memOrderRepo) UpdateStatus(ctx context.Context, id uuid.UUID, status order.Status) error {
	return nil
}

func (r *memOrderRepo) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.orders)
}

func (r *memOrderRepo) only() *order.Order {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, o := range r.orders {
		return o
	}
	return nil
}

// fakeCart is a Cart with a fixed set of lines
type fakeCart struct {
	mu       sync.Mutex
	lines    []cart.CartLine
	clears   int
	clearErr error
}

func (c *fakeCart) Lines() []cart.CartLine {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]cart.CartLine(nil), c.lines...)
}

func (c *fakeCart) Clear(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.clears++
	c.lines = nil
	return c.clearErr
}

func (c *fakeCart) isEmpty() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.lines) == 0
}

// sequenceCodes yields codes in order, repeating the last one
type sequenceCodes struct {
	mu    sync.Mutex
	codes []order.PaymentReference
}

func (s *sequenceCodes) Next() order.PaymentReference {
	s.mu.Lock()
	defer s.mu.Unlock()
	code := s.codes[0]
	if len(s.codes) > 1 {
		s.codes = s.codes[1:]
	}
	return code
}

// recordingPublisher keeps published events
type recordingPublisher struct {
	mu     sync.Mutex
	events []shared.DomainEvent
}

func (p *recordingPublisher) Publish(ctx context.Context, events ...shared.DomainEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, events...)
	return nil
}

// MockIdempotencyStore is a mock implementation of shared.IdempotencyStore
type MockIdempotencyStore struct {
	mock.Mock
}

func (m *MockIdempotencyStore) MarkProcessed(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	args := m.Called(ctx, key, ttl)
	return args.Bool(0), args.Error(1)
}

func (m *MockIdempotencyStore) IsProcessed(ctx context.Context, key string) (bool, error) {
	args := m.Called(ctx, key)
	return args.Bool(0), args.Error(1)
}

func (m *MockIdempotencyStore) Release(ctx context.Context, key string) error {
	args := m.Called(ctx, key)
	return args.Error(0)
}

func (m *MockIdempotencyStore) Close() error {
	return nil
}

// MockMetrics is a mock implementation of Metrics
type MockMetrics struct {
	mock.Mock
}

func (m *MockMetrics) RecordSubmission(ctx context.Context, method, outcome string) {
	m.Called(method, outcome)
}

func (m *MockMetrics) RecordPaymentConfirmed(ctx context.Context, method string) {
	m.Called(method)
}

func (m *MockMetrics) RecordPaymentAbandoned(ctx context.Context, method string, expired bool) {
	m.Called(method, expired)
}

const catalogUUID = "4f9c2a1e-7b3d-4c55-9e21-8d0a6b3f1c77"

func sampleLines() []cart.CartLine {
	return []cart.CartLine{
		{ProductID: "DJI-MINI-4", Name: "DJI Mini 4 Pro", UnitPrice: valueobject.VNDFromInt(500000), Quantity: 2, Condition: cart.ConditionNew},
		{ProductID: catalogUUID, Name: "GoPro Hero 12", UnitPrice: valueobject.VNDFromInt(300000), Quantity: 1, Condition: cart.ConditionUsed},
	}
}

func sampleForm() domaincheckout.CustomerForm {
	return domaincheckout.CustomerForm{
		FullName: "Nguyễn Văn An",
		Phone:    "0901234567",
		Email:    "an@example.vn",
		Address:  "12 Lê Lợi, Quận 1, TP.HCM",
	}
}

func draftFor(lines []cart.CartLine, method string) *domaincheckout.OrderDraft {
	d, err := domaincheckout.Compose(lines, sampleForm(), method)
	if err != nil {
		panic(err)
	}
	return d
}
