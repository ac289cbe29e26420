package order

import (
	"fmt"
	"math/rand/v2"
	"strconv"
	"strings"
	"sync"
)

const (
	minPaymentCode = 100000
	maxPaymentCode = 999999
)

// PaymentReference is the six digit code a customer quotes as the
// transfer memo. It never has a leading zero.
type PaymentReference string

// NewPaymentReference validates a code
func NewPaymentReference(code string) (PaymentReference, error) {
	n, err := strconv.Atoi(code)
	if err != nil || len(code) != 6 || n < minPaymentCode || n > maxPaymentCode {
		return "", fmt.Errorf("invalid payment reference %q: want six digits", code)
	}
	return PaymentReference(code), nil
}

// String returns the code
func (r PaymentReference) String() string {
	return string(r)
}

// CodeSource yields payment reference codes
type CodeSource interface {
	Next() PaymentReference
}

// RandomCodeSource draws codes uniformly from [100000, 999999] using a
// non-cryptographic generator
type RandomCodeSource struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewRandomCodeSource creates a code source. A nil rng uses the global
// generator.
func NewRandomCodeSource(rng *rand.Rand) *RandomCodeSource {
	return &RandomCodeSource{rng: rng}
}

// Next implements CodeSource
func (s *RandomCodeSource) Next() PaymentReference {
	var n int
	if s.rng != nil {
		s.mu.Lock()
		n = s.rng.IntN(maxPaymentCode - minPaymentCode + 1)
		s.mu.Unlock()
	} else {
		n = rand.IntN(maxPaymentCode - minPaymentCode + 1)
	}
	return PaymentReference(strconv.Itoa(minPaymentCode + n))
}

// PaymentTag builds the stored payment_method value "<method>_<code>"
func PaymentTag(method string, code PaymentReference) string {
	return method + "_" + code.String()
}

// ParsePaymentTag splits a stored payment_method value back into method
// and code
func ParsePaymentTag(tag string) (string, PaymentReference, error) {
	i := strings.LastIndex(tag, "_")
	if i <= 0 {
		return "", "", fmt.Errorf("payment tag %q has no code", tag)
	}
	code, err := NewPaymentReference(tag[i+1:])
	if err != nil {
		return "", "", err
	}
	return tag[:i], code, nil
}
