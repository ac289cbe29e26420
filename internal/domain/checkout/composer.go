package checkout

import (
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/kiendrone/storefront/internal/domain/cart"
	"github.com/kiendrone/storefront/internal/domain/shared"
	"github.com/kiendrone/storefront/internal/domain/shared/valueobject"
)

var (
	// ErrEmptyCart is returned when composing an order from an empty cart
	ErrEmptyCart = shared.NewDomainError("EMPTY_CART", "Cart is empty, nothing to check out")

	fieldValidator = validator.New()
)

// CustomerForm holds the contact fields entered at checkout
type CustomerForm struct {
	FullName string `json:"full_name"`
	Phone    string `json:"phone"`
	Email    string `json:"email"`
	Address  string `json:"address"`
}

// ShippingPolicy decides the shipping fee from the subtotal
type ShippingPolicy struct {
	// FreeAbove is the subtotal above which shipping is free
	FreeAbove valueobject.Money
	// FlatFee is charged when the subtotal does not exceed FreeAbove
	FlatFee valueobject.Money
}

// DefaultShippingPolicy is free shipping above 10,000,000đ, 50,000đ otherwise
func DefaultShippingPolicy() ShippingPolicy {
	return ShippingPolicy{
		FreeAbove: valueobject.VNDFromInt(10_000_000),
		FlatFee:   valueobject.VNDFromInt(50_000),
	}
}

// FeeFor returns the shipping fee for subtotal
func (p ShippingPolicy) FeeFor(subtotal valueobject.Money) valueobject.Money {
	if subtotal.Amount().GreaterThan(p.FreeAbove.Amount()) {
		return valueobject.Zero(subtotal.Currency())
	}
	return p.FlatFee
}

// OrderDraft is the priced and validated checkout proposal. It is never
// persisted as-is.
type OrderDraft struct {
	Lines         []cart.CartLine
	Subtotal      valueobject.Money
	ShippingFee   valueobject.Money
	Total         valueobject.Money
	Customer      CustomerForm
	PaymentMethod PaymentMethod
}

// Composer turns a cart and checkout form into an OrderDraft
type Composer struct {
	shipping ShippingPolicy
}

// NewComposer creates a composer with the given shipping policy
func NewComposer(shipping ShippingPolicy) *Composer {
	return &Composer{shipping: shipping}
}

// Compose prices and validates a checkout. It has no side effects and
// may be called any number of times.
func (c *Composer) Compose(lines []cart.CartLine, form CustomerForm, method string) (*OrderDraft, error) {
	if len(lines) == 0 {
		return nil, ErrEmptyCart
	}

	subtotal := cart.Subtotal(lines)
	fee := c.shipping.FeeFor(subtotal)
	total := subtotal.MustAdd(fee)

	form = normalizeForm(form)
	problems := validateForm(form)

	pm, ok := NormalizePaymentMethod(method)
	if !ok {
		problems["payment_method"] = "Unsupported payment method"
	}
	if len(problems) > 0 {
		return nil, shared.ErrValidation.WithDetails(problems)
	}

	owned := make([]cart.CartLine, len(lines))
	copy(owned, lines)
	return &OrderDraft{
		Lines:         owned,
		Subtotal:      subtotal,
		ShippingFee:   fee,
		Total:         total,
		Customer:      form,
		PaymentMethod: pm,
	}, nil
}

// Compose prices a checkout with the default shipping policy
func Compose(lines []cart.CartLine, form CustomerForm, method string) (*OrderDraft, error) {
	return NewComposer(DefaultShippingPolicy()).Compose(lines, form, method)
}

func normalizeForm(f CustomerForm) CustomerForm {
	return CustomerForm{
		FullName: strings.TrimSpace(f.FullName),
		Phone:    strings.TrimSpace(f.Phone),
		Email:    strings.TrimSpace(f.Email),
		Address:  strings.TrimSpace(f.Address),
	}
}

func validateForm(f CustomerForm) map[string]string {
	problems := make(map[string]string)
	if f.FullName == "" {
		problems["full_name"] = "Full name is required"
	}
	if f.Address == "" {
		problems["address"] = "Address is required"
	}
	switch {
	case f.Phone == "":
		problems["phone"] = "Phone is required"
	case !isDigits(f.Phone):
		problems["phone"] = "Phone must contain digits only"
	}
	if f.Email != "" && fieldValidator.Var(f.Email, "email") != nil {
		problems["email"] = "Email is not well-formed"
	}
	return problems
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
