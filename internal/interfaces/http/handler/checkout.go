package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	checkoutapp "github.com/kiendrone/storefront/internal/application/checkout"
	"github.com/kiendrone/storefront/internal/interfaces/http/dto"
	"github.com/kiendrone/storefront/internal/interfaces/http/middleware"
)

// maxIdempotencyKeyLength matches the orders.idempotency_key column
const maxIdempotencyKeyLength = 200

// CheckoutService is the checkout use case surface the handler drives
type CheckoutService interface {
	Quote(ctx context.Context, sessionID string, req checkoutapp.CheckoutRequest) (*checkoutapp.QuoteResponse, error)
	Submit(ctx context.Context, sessionID string, in checkoutapp.SubmitInput) (*checkoutapp.SubmitResponse, error)
	Status(ctx context.Context, sessionID string) (*checkoutapp.StatusResponse, error)
	Payment(ctx context.Context, sessionID string) (*checkoutapp.PaymentResponse, error)
	PaymentQR(ctx context.Context, sessionID string) ([]byte, error)
	ConfirmPayment(ctx context.Context, sessionID string) (*checkoutapp.StatusResponse, error)
	AbandonPayment(ctx context.Context, sessionID string) (*checkoutapp.StatusResponse, error)
	Reset(ctx context.Context, sessionID string) (*checkoutapp.StatusResponse, error)
	Prefill(ctx context.Context, userID uuid.UUID, email string) (*checkoutapp.PrefillResponse, error)
}

// CheckoutHandler handles the checkout and payment endpoints
type CheckoutHandler struct {
	BaseHandler
	checkoutService CheckoutService
}

// NewCheckoutHandler creates a new CheckoutHandler
func NewCheckoutHandler(checkoutService CheckoutService) *CheckoutHandler {
	return &CheckoutHandler{checkoutService: checkoutService}
}

// Quote prices the cart and validates the form without placing anything.
// POST /checkout/quote
func (h *CheckoutHandler) Quote(c *gin.Context) {
	var req checkoutapp.CheckoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindError(c, err)
		return
	}

	resp, err := h.checkoutService.Quote(c.Request.Context(), middleware.GetCartSession(c), req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, resp)
}

// Submit places the order. A new order answers 201; a submission resumed
// under the same idempotency key answers 200 with the existing order.
// POST /checkout/submit
func (h *CheckoutHandler) Submit(c *gin.Context) {
	var req checkoutapp.CheckoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindError(c, err)
		return
	}

	key := strings.TrimSpace(c.GetHeader(middleware.IdempotencyKeyHeader))
	if len(key) > maxIdempotencyKeyLength {
		h.BadRequest(c, "Idempotency-Key is too long")
		return
	}

	in := checkoutapp.SubmitInput{CheckoutRequest: req, IdempotencyKey: key}
	if userID, ok := middleware.GetUserID(c); ok {
		in.CustomerRef = &userID
	}

	resp, err := h.checkoutService.Submit(c.Request.Context(), middleware.GetCartSession(c), in)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	if resp.Order.Resumed {
		h.Success(c, resp)
		return
	}
	h.Created(c, resp)
}

// Status returns the checkout and payment state of the session.
// GET /checkout/status
func (h *CheckoutHandler) Status(c *gin.Context) {
	resp, err := h.checkoutService.Status(c.Request.Context(), middleware.GetCartSession(c))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, resp)
}

// Payment returns the instructions of the displayed payment step.
// GET /checkout/payment
func (h *CheckoutHandler) Payment(c *gin.Context) {
	resp, err := h.checkoutService.Payment(c.Request.Context(), middleware.GetCartSession(c))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, resp)
}

// PaymentQR streams the payment QR code as a PNG.
// GET /checkout/payment/qr.png
func (h *CheckoutHandler) PaymentQR(c *gin.Context) {
	png, err := h.checkoutService.PaymentQR(c.Request.Context(), middleware.GetCartSession(c))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	c.Header("Cache-Control", "no-store")
	c.Data(http.StatusOK, "image/png", png)
}

// ConfirmPayment records the customer's "I have paid".
// POST /checkout/payment/confirm
func (h *CheckoutHandler) ConfirmPayment(c *gin.Context) {
	resp, err := h.checkoutService.ConfirmPayment(c.Request.Context(), middleware.GetCartSession(c))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, resp)
}

// AbandonPayment closes the payment step without paying.
// POST /checkout/payment/abandon
func (h *CheckoutHandler) AbandonPayment(c *gin.Context) {
	resp, err := h.checkoutService.AbandonPayment(c.Request.Context(), middleware.GetCartSession(c))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, resp)
}

// Reset starts a new checkout for the session.
// POST /checkout/reset
func (h *CheckoutHandler) Reset(c *gin.Context) {
	resp, err := h.checkoutService.Reset(c.Request.Context(), middleware.GetCartSession(c))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, resp)
}

// Prefill returns the saved contact details of the signed-in customer.
// GET /checkout/prefill
func (h *CheckoutHandler) Prefill(c *gin.Context) {
	identity, ok := middleware.GetIdentity(c)
	if !ok {
		h.Error(c, http.StatusUnauthorized, dto.ErrCodeUnauthorized, "Sign in required")
		return
	}

	resp, err := h.checkoutService.Prefill(c.Request.Context(), identity.UserID, identity.Email)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, resp)
}
