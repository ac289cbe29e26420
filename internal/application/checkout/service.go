package checkout

import (
	"context"
	"encoding/base64"
	"errors"

	"github.com/google/uuid"
	domaincheckout "github.com/kiendrone/storefront/internal/domain/checkout"
	"github.com/kiendrone/storefront/internal/domain/customer"
	"github.com/kiendrone/storefront/internal/domain/shared"
	"go.uber.org/zap"
)

const (
	messageOrderPlaced     = "Đặt hàng thành công! Chúng tôi sẽ liên hệ để xác nhận đơn hàng."
	messageAwaitingPayment = "Vui lòng chuyển khoản theo thông tin bên dưới để hoàn tất đơn hàng."
)

// Service handles checkout operations for HTTP sessions
type Service struct {
	sessions *SessionManager
	composer *domaincheckout.Composer
	profiles customer.ProfileRepository
	qr       QRRenderer
	qrSize   int
	logger   *zap.Logger
}

// NewService creates a new checkout Service
func NewService(sessions *SessionManager, composer *domaincheckout.Composer, logger *zap.Logger) *Service {
	if composer == nil {
		composer = domaincheckout.NewComposer(domaincheckout.DefaultShippingPolicy())
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		sessions: sessions,
		composer: composer,
		qrSize:   256,
		logger:   logger,
	}
}

// SetProfileRepository enables checkout prefill for signed-in customers
func (s *Service) SetProfileRepository(profiles customer.ProfileRepository) {
	s.profiles = profiles
}

// SetQRRenderer enables PNG rendering of payment QR payloads
func (s *Service) SetQRRenderer(qr QRRenderer, size int) {
	s.qr = qr
	if size > 0 {
		s.qrSize = size
	}
}

// Quote composes the session cart with the form without persisting anything
func (s *Service) Quote(ctx context.Context, sessionID string, req CheckoutRequest) (*QuoteResponse, error) {
	session, err := s.sessions.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	draft, err := s.composer.Compose(session.Cart().Lines(), req.Form(), req.PaymentMethod)
	if err != nil {
		return nil, err
	}
	resp := ToQuoteResponse(draft)
	return &resp, nil
}

// Submit composes and places the session cart as an order
func (s *Service) Submit(ctx context.Context, sessionID string, in SubmitInput) (*SubmitResponse, error) {
	session, err := s.sessions.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	// Validation failures never reach the order store
	draft, err := s.composer.Compose(session.Cart().Lines(), in.Form(), in.PaymentMethod)
	if err != nil {
		return nil, err
	}

	sub, instructions, err := session.Submit(ctx, draft, in.CustomerRef, in.IdempotencyKey)
	if err != nil {
		return nil, err
	}

	resp := &SubmitResponse{
		State:   sub.State.String(),
		Order:   ToSubmissionResponse(sub),
		Message: messageOrderPlaced,
	}
	if instructions != nil {
		gate := session.Gate()
		payment := ToPaymentResponse(*instructions, GateQRDisplayed, gate.ExpiresAt())
		payment.QRDataURL = s.dataURL(payment.QRPayload)
		resp.Payment = &payment
		resp.Message = messageAwaitingPayment
	}
	return resp, nil
}

// Status returns the checkout state of a session
func (s *Service) Status(ctx context.Context, sessionID string) (*StatusResponse, error) {
	session, err := s.sessions.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return statusOf(session), nil
}

// Payment returns the displayed payment instructions
func (s *Service) Payment(ctx context.Context, sessionID string) (*PaymentResponse, error) {
	gate, err := s.gate(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	in, err := gate.Instructions()
	if err != nil {
		return nil, err
	}
	resp := ToPaymentResponse(in, gate.State(), gate.ExpiresAt())
	resp.QRDataURL = s.dataURL(resp.QRPayload)
	return &resp, nil
}

// PaymentQR renders the QR code of the displayed payment instructions
func (s *Service) PaymentQR(ctx context.Context, sessionID string) ([]byte, error) {
	if s.qr == nil {
		return nil, shared.NewDomainError("NOT_FOUND", "QR rendering is not available")
	}
	gate, err := s.gate(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	in, err := gate.Instructions()
	if err != nil {
		return nil, err
	}
	return s.qr.PNG(in.QRPayload, s.qrSize)
}

// ConfirmPayment records that the customer paid; the order stays pending
func (s *Service) ConfirmPayment(ctx context.Context, sessionID string) (*StatusResponse, error) {
	session, err := s.sessions.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	gate := session.Gate()
	if gate == nil {
		return nil, ErrNoPendingPayment
	}
	if err := gate.Confirm(ctx); err != nil {
		return nil, err
	}
	return statusOf(session), nil
}

// AbandonPayment closes the payment step, keeping the cart and the order
func (s *Service) AbandonPayment(ctx context.Context, sessionID string) (*StatusResponse, error) {
	session, err := s.sessions.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	gate := session.Gate()
	if gate == nil {
		return nil, ErrNoPendingPayment
	}
	if err := gate.Abandon(ctx); err != nil {
		return nil, err
	}
	return statusOf(session), nil
}

// Reset starts a new checkout for the session
func (s *Service) Reset(ctx context.Context, sessionID string) (*StatusResponse, error) {
	session, err := s.sessions.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if err := session.Reset(ctx); err != nil {
		return nil, err
	}
	return statusOf(session), nil
}

// Prefill returns the saved contact fields of a signed-in customer. A
// missing profile yields only the token email.
func (s *Service) Prefill(ctx context.Context, userID uuid.UUID, email string) (*PrefillResponse, error) {
	resp := &PrefillResponse{Email: email}
	if s.profiles == nil {
		return resp, nil
	}

	profile, err := s.profiles.FindByUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return resp, nil
		}
		return nil, err
	}

	resp.FullName = profile.FullName
	resp.Phone = digitsOnly(profile.Phone)
	resp.Address = profile.Address
	if profile.Email != "" {
		resp.Email = profile.Email
	}
	return resp, nil
}

func (s *Service) gate(ctx context.Context, sessionID string) (*Gate, error) {
	session, err := s.sessions.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	gate := session.Gate()
	if gate == nil {
		return nil, ErrNoPendingPayment
	}
	return gate, nil
}

func (s *Service) dataURL(payload string) string {
	if s.qr == nil || payload == "" {
		return ""
	}
	png, err := s.qr.PNG(payload, s.qrSize)
	if err != nil {
		s.logger.Warn("failed to render payment QR", zap.Error(err))
		return ""
	}
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(png)
}

func statusOf(session *Session) *StatusResponse {
	state, sub := session.Pipeline().State()
	resp := &StatusResponse{
		State:     state.String(),
		GateState: GateIdle.String(),
	}
	if gate := session.Gate(); gate != nil {
		resp.GateState = gate.State().String()
		resp.Expired = gate.Expired()
		// expiry may have just released the pipeline
		state, sub = session.Pipeline().State()
		resp.State = state.String()
	}
	if sub != nil {
		order := ToSubmissionResponse(sub)
		resp.Order = &order
	}
	return resp
}
