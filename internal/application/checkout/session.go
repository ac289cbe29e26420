package checkout

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	cartapp "github.com/kiendrone/storefront/internal/application/cart"
	"github.com/kiendrone/storefront/internal/domain/cart"
	domaincheckout "github.com/kiendrone/storefront/internal/domain/checkout"
	"github.com/kiendrone/storefront/internal/domain/order"
	"github.com/kiendrone/storefront/internal/domain/payment"
	"github.com/kiendrone/storefront/internal/domain/shared"
	"go.uber.org/zap"
)

const maxSessionIDLength = 128

// Session is one browsing session: a cart, its submission pipeline, and
// the payment gate of the current checkout
type Session struct {
	ID string

	store    *cartapp.Store
	pipeline *Pipeline

	mu       sync.Mutex
	gate     *Gate
	attempt  string
	lastSeen time.Time

	recipient payment.Recipient
	window    time.Duration
	metrics   Metrics
	logger    *zap.Logger
}

// Cart returns the cart store of the session
func (s *Session) Cart() *cartapp.Store {
	return s.store
}

// Pipeline returns the submission pipeline of the session
func (s *Session) Pipeline() *Pipeline {
	return s.pipeline
}

// Gate returns the payment gate of the current checkout, nil before a
// pre-paid order was placed
func (s *Session) Gate() *Gate {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gate
}

// Submit runs the pipeline and opens the payment gate for pre-paid
// orders. A client key is scoped to the session. Without one the
// submission is keyed by the session, the checkout attempt and the draft
// contents, so a retry after a lost response finds the order it already
// placed.
func (s *Session) Submit(ctx context.Context, draft *domaincheckout.OrderDraft, customerRef *uuid.UUID, key string) (*Submission, *payment.Instructions, error) {
	fingerprint := draftFingerprint(draft)
	if key == "" {
		key = s.derivedKey(fingerprint)
	} else {
		key = s.scopedKey(key)
	}

	sub, err := s.pipeline.Submit(ctx, SubmitCommand{
		Draft:          draft,
		CustomerRef:    customerRef,
		IdempotencyKey: key,
		Fingerprint:    fingerprint,
	})
	if err != nil {
		return nil, nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.attempt = uuid.NewString()

	if sub.State != StateAwaitingPayment {
		s.gate = nil
		return sub, nil, nil
	}

	s.gate = NewGate(s.store, s.pipeline, s.window,
		WithGateMetrics(s.metrics),
		WithGateLogger(s.logger),
	)
	in, err := s.gate.Open(sub, s.recipient)
	if err != nil {
		return sub, nil, err
	}
	return sub, &in, nil
}

// Reset starts a new checkout. A displayed payment step is abandoned.
func (s *Session) Reset(ctx context.Context) error {
	s.mu.Lock()
	gate := s.gate
	s.mu.Unlock()

	if gate != nil && gate.State() == GateQRDisplayed {
		if err := gate.Abandon(ctx); err != nil {
			return err
		}
	}
	if err := s.pipeline.Reset(); err != nil {
		return err
	}

	s.mu.Lock()
	s.gate = nil
	s.mu.Unlock()
	return nil
}

func (s *Session) touch(now time.Time) {
	s.mu.Lock()
	s.lastSeen = now
	s.mu.Unlock()
}

func (s *Session) idleSince() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSeen
}

func (s *Session) derivedKey(fingerprint string) string {
	s.mu.Lock()
	attempt := s.attempt
	s.mu.Unlock()
	return s.ID + ":" + attempt + ":" + fingerprint[:16]
}

func (s *Session) scopedKey(clientKey string) string {
	sum := sha256.Sum256([]byte(clientKey))
	return s.ID + ":key:" + hex.EncodeToString(sum[:16])
}

// draftFingerprint hashes everything an order is placed from
func draftFingerprint(draft *domaincheckout.OrderDraft) string {
	h := sha256.New()
	fmt.Fprintf(h, "%s|%s|%s|%s|%s|%s", draft.PaymentMethod, draft.Total.String(),
		draft.Customer.FullName, draft.Customer.Phone, draft.Customer.Email, draft.Customer.Address)
	for _, l := range draft.Lines {
		fmt.Fprintf(h, "|%s:%d:%s", l.ProductID, l.Quantity, l.UnitPrice.String())
	}
	return hex.EncodeToString(h.Sum(nil))
}

// SessionConfig holds session manager settings
type SessionConfig struct {
	// IdleTTL evicts sessions not seen for this long
	IdleTTL time.Duration
	// CleanupInterval is how often idle sessions are evicted
	CleanupInterval time.Duration
	// PaymentWindow closes a displayed payment step after this long
	PaymentWindow time.Duration
	Pipeline      PipelineConfig
	Recipient     payment.Recipient
}

// SessionDeps are the collaborators shared by all sessions
type SessionDeps struct {
	Snapshots cart.SnapshotRepository
	Orders    order.Repository
	Codes     order.CodeSource
	Claims    shared.IdempotencyStore
	Events    shared.EventPublisher
	Notifier  cart.Notifier
	Metrics   Metrics
	Logger    *zap.Logger
}

// SessionManager owns the live sessions of this instance. Carts are shared
// with other instances through the snapshot slot; the submission pipeline
// and payment step of a checkout live on the instance that placed the
// order, so the payment routes need session affinity.
type SessionManager struct {
	mu       sync.Mutex
	sessions map[string]*Session

	deps SessionDeps
	cfg  SessionConfig
	now  func() time.Time

	stopChan  chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once
}

// NewSessionManager creates a session manager and starts its cleanup loop
func NewSessionManager(deps SessionDeps, cfg SessionConfig) *SessionManager {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.Metrics == nil {
		deps.Metrics = nopMetrics{}
	}
	if deps.Codes == nil {
		deps.Codes = order.NewRandomCodeSource(nil)
	}
	if cfg.IdleTTL <= 0 {
		cfg.IdleTTL = 2 * time.Hour
	}
	if cfg.CleanupInterval <= 0 {
		cfg.CleanupInterval = 5 * time.Minute
	}

	m := &SessionManager{
		sessions: make(map[string]*Session),
		deps:     deps,
		cfg:      cfg,
		now:      time.Now,
		stopChan: make(chan struct{}),
	}

	m.wg.Add(1)
	go m.cleanupLoop()

	return m
}

// CartKey returns the snapshot slot key of a session
func CartKey(sessionID string) string {
	return "cart:" + sessionID
}

// Get returns the session, opening its cart from the snapshot slot on
// first use. A session already open reloads its cart when another
// instance saved a newer snapshot.
func (m *SessionManager) Get(ctx context.Context, sessionID string) (*Session, error) {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" || len(sessionID) > maxSessionIDLength {
		return nil, shared.NewDomainError("INVALID_INPUT", "Invalid cart session id")
	}

	if s, ok := m.cached(sessionID); ok {
		s.store.Refresh(ctx)
		return s, nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	if s, ok := m.sessions[sessionID]; ok {
		s.touch(now)
		return s, nil
	}

	log := m.deps.Logger.With(zap.String("session_id", sessionID))
	store := cartapp.Open(ctx, CartKey(sessionID), m.deps.Snapshots,
		cartapp.WithNotifier(m.deps.Notifier),
		cartapp.WithLogger(log),
	)
	pipeline := NewPipeline(store, PipelineDeps{
		Orders:  m.deps.Orders,
		Codes:   m.deps.Codes,
		Claims:  m.deps.Claims,
		Events:  m.deps.Events,
		Metrics: m.deps.Metrics,
		Logger:  log,
	}, m.cfg.Pipeline)

	s := &Session{
		ID:        sessionID,
		store:     store,
		pipeline:  pipeline,
		attempt:   uuid.NewString(),
		lastSeen:  now,
		recipient: m.cfg.Recipient,
		window:    m.cfg.PaymentWindow,
		metrics:   m.deps.Metrics,
		logger:    log,
	}
	m.sessions[sessionID] = s
	log.Debug("cart session opened", zap.Int("items", store.TotalItems()))
	return s, nil
}

func (m *SessionManager) cached(sessionID string) (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[sessionID]
	if ok {
		s.touch(m.now())
	}
	return s, ok
}

// CartStore implements cartapp.StoreProvider
func (m *SessionManager) CartStore(ctx context.Context, sessionID string) (*cartapp.Store, error) {
	s, err := m.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return s.Cart(), nil
}

// Len returns the number of live sessions
func (m *SessionManager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// Close stops the cleanup goroutine. Safe to call multiple times.
func (m *SessionManager) Close() error {
	m.closeOnce.Do(func() {
		close(m.stopChan)
		m.wg.Wait()
	})
	return nil
}

func (m *SessionManager) cleanupLoop() {
	defer m.wg.Done()

	ticker := time.NewTicker(m.cfg.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-m.stopChan:
			return
		case <-ticker.C:
			m.evictIdle()
		}
	}
}

// evictIdle drops sessions idle for longer than IdleTTL that are neither
// in the middle of a submission nor showing a payment step. Their carts
// survive in the snapshot slot.
func (m *SessionManager) evictIdle() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	cutoff := m.now().Add(-m.cfg.IdleTTL)
	evicted := 0
	for id, s := range m.sessions {
		if !s.idleSince().Before(cutoff) {
			continue
		}
		if state, _ := s.pipeline.State(); state.IsBusy() {
			continue
		}
		if gate := s.Gate(); gate != nil && gate.State() == GateQRDisplayed {
			continue
		}
		delete(m.sessions, id)
		evicted++
	}
	if evicted > 0 {
		m.deps.Logger.Debug("evicted idle cart sessions", zap.Int("count", evicted))
	}
	return evicted
}
