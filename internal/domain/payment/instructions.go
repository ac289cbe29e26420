// Package payment builds the out-of-band payment instructions shown for
// pre-paid orders. Nothing here talks to a payment rail; the customer pays
// by scanning a QR code and quoting the memo.
package payment

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/kiendrone/storefront/internal/domain/checkout"
	"github.com/kiendrone/storefront/internal/domain/order"
	"github.com/kiendrone/storefront/internal/domain/shared"
	"github.com/kiendrone/storefront/internal/domain/shared/valueobject"
)

// Recipient describes the merchant accounts customers pay into
type Recipient struct {
	// StorePrefix starts every transfer memo, e.g. "KIENDRONE"
	StorePrefix string
	// BankCode is the VietQR bank identifier, e.g. "MB"
	BankCode      string
	BankAccount   string
	AccountName   string
	WalletAccount string
}

// Instructions is what the customer needs to complete a pre-paid order
type Instructions struct {
	Method    checkout.PaymentMethod `json:"method"`
	Amount    valueobject.Money      `json:"amount"`
	Memo      string                 `json:"memo"`
	Recipient string                 `json:"recipient"`
	Account   string                 `json:"account"`
	// QRPayload is the string encoded into the QR code
	QRPayload string `json:"qr_payload"`
	// QRImageURL points at a hosted QR rendering, when the rail offers one
	QRImageURL string `json:"qr_image_url,omitempty"`
}

// Memo builds the transfer memo "<STORE-PREFIX>-<code>"
func Memo(prefix string, code order.PaymentReference) string {
	return strings.ToUpper(strings.TrimSpace(prefix)) + "-" + code.String()
}

// BuildInstructions computes the payment instructions for a pre-paid
// order. It is pure given its arguments.
func BuildInstructions(method checkout.PaymentMethod, total valueobject.Money, code order.PaymentReference, to Recipient) (Instructions, error) {
	memo := Memo(to.StorePrefix, code)
	amount := fmt.Sprintf("%d", total.Amount().Round(0).IntPart())

	switch method {
	case checkout.PaymentBank:
		q := url.Values{}
		q.Set("amount", amount)
		q.Set("addInfo", memo)
		q.Set("accountName", to.AccountName)
		imageURL := fmt.Sprintf("https://img.vietqr.io/image/%s-%s-compact2.png?%s",
			url.PathEscape(to.BankCode), url.PathEscape(to.BankAccount), q.Encode())
		return Instructions{
			Method:     method,
			Amount:     total,
			Memo:       memo,
			Recipient:  to.AccountName,
			Account:    to.BankCode + " " + to.BankAccount,
			QRPayload:  imageURL,
			QRImageURL: imageURL,
		}, nil
	case checkout.PaymentEWallet:
		q := url.Values{}
		q.Set("amount", amount)
		q.Set("message", memo)
		link := fmt.Sprintf("https://me.momo.vn/%s?%s", url.PathEscape(to.WalletAccount), q.Encode())
		return Instructions{
			Method:    method,
			Amount:    total,
			Memo:      memo,
			Recipient: to.AccountName,
			Account:   "MoMo " + to.WalletAccount,
			QRPayload: link,
		}, nil
	}
	return Instructions{}, shared.NewDomainError("INVALID_INPUT",
		fmt.Sprintf("Payment method %s has no payment instructions", method))
}
