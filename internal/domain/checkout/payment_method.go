package checkout

import (
	"strings"
)

// PaymentMethod is the normalized checkout payment selection
type PaymentMethod string

const (
	PaymentCOD     PaymentMethod = "cod"
	PaymentBank    PaymentMethod = "bank"
	PaymentEWallet PaymentMethod = "ewallet"
)

// IsValid checks if the payment method is a known value
func (m PaymentMethod) IsValid() bool {
	switch m {
	case PaymentCOD, PaymentBank, PaymentEWallet:
		return true
	}
	return false
}

// String returns the string representation of PaymentMethod
func (m PaymentMethod) String() string {
	return string(m)
}

// RequiresPrepayment reports whether the customer pays before delivery
func (m PaymentMethod) RequiresPrepayment() bool {
	return m == PaymentBank || m == PaymentEWallet
}

// NormalizePaymentMethod maps a raw selection onto a PaymentMethod.
// Empty input means cash on delivery.
func NormalizePaymentMethod(raw string) (PaymentMethod, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", "cod", "cash":
		return PaymentCOD, true
	case "bank", "transfer", "bank_transfer":
		return PaymentBank, true
	case "ewallet", "e-wallet", "wallet", "momo":
		return PaymentEWallet, true
	}
	return "", false
}
