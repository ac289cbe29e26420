package checkout

import (
	"fmt"

	"github.com/kiendrone/storefront/internal/domain/shared"
)

var (
	// ErrSystemBusy is the single message shown for any persistence failure
	ErrSystemBusy = shared.NewDomainError("SYSTEM_BUSY", "Hệ thống đang bận, vui lòng thử lại sau")

	// ErrSubmissionInFlight rejects a submit while another one is running
	ErrSubmissionInFlight = shared.NewDomainError("SUBMISSION_IN_FLIGHT", "Đơn hàng đang được gửi, vui lòng chờ")

	// ErrAlreadySubmitted rejects a submit once the checkout has an order
	ErrAlreadySubmitted = shared.NewDomainError("INVALID_STATE", "Checkout already placed an order, start a new checkout first")

	// ErrNoPendingPayment is returned by gate operations outside QRDisplayed
	ErrNoPendingPayment = shared.NewDomainError("INVALID_STATE", "No payment is waiting for confirmation")

	// ErrIdempotencyKeyReused rejects a key that already placed an order for
	// a different cart or form
	ErrIdempotencyKeyReused = shared.NewDomainError("CONFLICT", "Idempotency key was already used for a different order")
)

// SubmissionError records the stage at which a submission failed. It
// matches ErrSystemBusy with errors.Is and errors.As, and unwraps to the
// underlying cause for logging.
type SubmissionError struct {
	Stage string
	Err   error
}

func (e *SubmissionError) Error() string {
	return fmt.Sprintf("submit order: %s: %v", e.Stage, e.Err)
}

// Unwrap exposes ErrSystemBusy first so the HTTP layer maps it to the
// generic message
func (e *SubmissionError) Unwrap() []error {
	return []error{ErrSystemBusy, e.Err}
}
