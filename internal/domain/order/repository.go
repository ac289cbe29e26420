package order

import (
	"context"

	"github.com/google/uuid"
	"github.com/kiendrone/storefront/internal/domain/shared"
)

// Writer performs the two writes of an order placement inside one unit
// of work. The header must be inserted before its items.
type Writer interface {
	InsertHeader(ctx context.Context, o *Order) error
	InsertItems(ctx context.Context, items []LineItem) error
}

// Repository defines the interface for order persistence
type Repository interface {
	// WithinTx runs fn in a single transaction; any error rolls back both
	// the header and the items
	WithinTx(ctx context.Context, fn func(w Writer) error) error

	// FindByID finds an order with its items
	FindByID(ctx context.Context, id uuid.UUID) (*Order, error)

	// FindByIdempotencyKey finds the order placed under key
	FindByIdempotencyKey(ctx context.Context, key string) (*Order, error)

	// FindByCustomer lists a customer's orders, newest first
	FindByCustomer(ctx context.Context, customerRef uuid.UUID, filter shared.Filter) ([]Order, error)

	// CountByCustomer counts a customer's orders
	CountByCustomer(ctx context.Context, customerRef uuid.UUID) (int64, error)

	// PaymentCodeInUse reports whether a pending order already carries code
	PaymentCodeInUse(ctx context.Context, code PaymentReference) (bool, error)

	// UpdateStatus moves an order to status, guarded by the status machine.
	// It is the back-office hook for advancing orders; the storefront
	// itself never changes the status of an order it placed.
	UpdateStatus(ctx context.Context, id uuid.UUID, status Status) error
}
