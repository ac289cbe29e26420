package checkout

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/kiendrone/storefront/internal/domain/cart"
	domaincheckout "github.com/kiendrone/storefront/internal/domain/checkout"
	"github.com/kiendrone/storefront/internal/domain/payment"
	"github.com/kiendrone/storefront/internal/domain/shared/valueobject"
)

// CheckoutRequest carries the checkout form
type CheckoutRequest struct {
	FullName      string `json:"full_name" binding:"max=200"`
	Phone         string `json:"phone" binding:"max=30"`
	Email         string `json:"email" binding:"max=200"`
	Address       string `json:"address" binding:"max=500"`
	PaymentMethod string `json:"payment_method" binding:"max=30"`
}

// Form converts the request to a CustomerForm. Phone input keeps digits only.
func (r CheckoutRequest) Form() domaincheckout.CustomerForm {
	return domaincheckout.CustomerForm{
		FullName: r.FullName,
		Phone:    digitsOnly(r.Phone),
		Email:    r.Email,
		Address:  r.Address,
	}
}

func digitsOnly(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// SubmitInput is a checkout submission as seen by the service
type SubmitInput struct {
	CheckoutRequest
	IdempotencyKey string
	CustomerRef    *uuid.UUID
}

// QuoteLine represents a priced cart line
type QuoteLine struct {
	ProductID string            `json:"product_id"`
	Name      string            `json:"name"`
	Quantity  int               `json:"quantity"`
	UnitPrice valueobject.Money `json:"unit_price"`
	LineTotal valueobject.Money `json:"line_total"`
}

// QuoteResponse represents a priced and validated checkout
type QuoteResponse struct {
	Lines         []QuoteLine                 `json:"lines"`
	Subtotal      valueobject.Money           `json:"subtotal"`
	ShippingFee   valueobject.Money           `json:"shipping_fee"`
	Total         valueobject.Money           `json:"total"`
	TotalDisplay  string                      `json:"total_display"`
	FreeShipping  bool                        `json:"free_shipping"`
	PaymentMethod string                      `json:"payment_method"`
	Customer      domaincheckout.CustomerForm `json:"customer"`
}

// PaymentResponse represents the instructions of a displayed payment step
type PaymentResponse struct {
	State         string            `json:"state"`
	Method        string            `json:"method"`
	Amount        valueobject.Money `json:"amount"`
	AmountDisplay string            `json:"amount_display"`
	Memo          string            `json:"memo"`
	Recipient     string            `json:"recipient"`
	Account       string            `json:"account"`
	QRPayload     string            `json:"qr_payload"`
	QRImageURL    string            `json:"qr_image_url,omitempty"`
	QRDataURL     string            `json:"qr_data_url,omitempty"`
	ExpiresAt     *time.Time        `json:"expires_at,omitempty"`
}

// SubmissionResponse summarises a placed order
type SubmissionResponse struct {
	OrderID       uuid.UUID         `json:"order_id"`
	PaymentCode   string            `json:"payment_code"`
	PaymentMethod string            `json:"payment_method"`
	Total         valueobject.Money `json:"total"`
	TotalDisplay  string            `json:"total_display"`
	Resumed       bool              `json:"resumed"`
	SubmittedAt   time.Time         `json:"submitted_at"`
}

// SubmitResponse is returned by a successful submit
type SubmitResponse struct {
	State   string             `json:"state"`
	Order   SubmissionResponse `json:"order"`
	Payment *PaymentResponse   `json:"payment,omitempty"`
	Message string             `json:"message"`
}

// StatusResponse represents the checkout state of a session
type StatusResponse struct {
	State     string              `json:"state"`
	GateState string              `json:"gate_state"`
	Expired   bool                `json:"payment_expired,omitempty"`
	Order     *SubmissionResponse `json:"order,omitempty"`
}

// PrefillResponse represents the saved contact fields of a signed-in user
type PrefillResponse struct {
	FullName string `json:"full_name"`
	Phone    string `json:"phone"`
	Email    string `json:"email"`
	Address  string `json:"address"`
}

// ToQuoteResponse converts an OrderDraft to a QuoteResponse
func ToQuoteResponse(d *domaincheckout.OrderDraft) QuoteResponse {
	lines := make([]QuoteLine, len(d.Lines))
	for i, l := range d.Lines {
		lines[i] = toQuoteLine(l)
	}
	return QuoteResponse{
		Lines:         lines,
		Subtotal:      d.Subtotal,
		ShippingFee:   d.ShippingFee,
		Total:         d.Total,
		TotalDisplay:  d.Total.Display(),
		FreeShipping:  d.ShippingFee.IsZero(),
		PaymentMethod: d.PaymentMethod.String(),
		Customer:      d.Customer,
	}
}

func toQuoteLine(l cart.CartLine) QuoteLine {
	return QuoteLine{
		ProductID: l.ProductID,
		Name:      l.Name,
		Quantity:  l.Quantity,
		UnitPrice: l.UnitPrice,
		LineTotal: l.LineTotal(),
	}
}

// ToSubmissionResponse converts a Submission to a SubmissionResponse
func ToSubmissionResponse(s *Submission) SubmissionResponse {
	return SubmissionResponse{
		OrderID:       s.OrderID,
		PaymentCode:   s.Code.String(),
		PaymentMethod: s.Method.String(),
		Total:         s.Total,
		TotalDisplay:  s.Total.Display(),
		Resumed:       s.Resumed,
		SubmittedAt:   s.SubmittedAt,
	}
}

// ToPaymentResponse converts payment instructions to a PaymentResponse
func ToPaymentResponse(in payment.Instructions, state GateState, expiresAt time.Time) PaymentResponse {
	resp := PaymentResponse{
		State:         state.String(),
		Method:        in.Method.String(),
		Amount:        in.Amount,
		AmountDisplay: in.Amount.Display(),
		Memo:          in.Memo,
		Recipient:     in.Recipient,
		Account:       in.Account,
		QRPayload:     in.QRPayload,
		QRImageURL:    in.QRImageURL,
	}
	if !expiresAt.IsZero() {
		resp.ExpiresAt = &expiresAt
	}
	return resp
}
