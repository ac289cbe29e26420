package order

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/kiendrone/storefront/internal/domain/shared"
	"github.com/kiendrone/storefront/internal/domain/shared/valueobject"
)

// LineItem is the durable per-product record of a placed order.
// Name and price are snapshots taken at order time.
type LineItem struct {
	ID          uuid.UUID
	OrderID     uuid.UUID
	ProductID   *uuid.UUID
	ProductName string
	Quantity    int
	UnitPrice   valueobject.Money
	CreatedAt   time.Time
}

// Amount returns unit price times quantity
func (i LineItem) Amount() valueobject.Money {
	return i.UnitPrice.MultiplyByInt(int64(i.Quantity))
}

// ProductRef returns the catalog product id for a cart line id, or nil
// when the id is not a persistent product identifier. Only the hyphenated
// 36 character form counts; urn, braced and bare hex forms do not.
func ProductRef(cartProductID string) *uuid.UUID {
	if len(cartProductID) != 36 {
		return nil
	}
	id, err := uuid.Parse(cartProductID)
	if err != nil || id == uuid.Nil {
		return nil
	}
	return &id
}

// Order is the aggregate root for a placed storefront order
type Order struct {
	shared.BaseAggregateRoot
	CustomerName     string
	Phone            string
	Email            string
	Address          string
	Total            valueobject.Money
	Status           Status
	PaymentMethod    string
	PaymentCode      PaymentReference
	CustomerRef      *uuid.UUID
	IdempotencyKey   string
	// DraftFingerprint identifies the cart and form the order was placed from
	DraftFingerprint string
	Items            []LineItem
}

// Customer carries the contact fields copied onto the order header
type Customer struct {
	FullName string
	Phone    string
	Email    string
	Address  string
}

// NewOrderParams holds everything needed to place an order
type NewOrderParams struct {
	Customer         Customer
	Total            valueobject.Money
	Method           string
	Code             PaymentReference
	CustomerRef      *uuid.UUID
	IdempotencyKey   string
	DraftFingerprint string
}

// NewOrder creates a pending order header
func NewOrder(p NewOrderParams) (*Order, error) {
	if strings.TrimSpace(p.Customer.FullName) == "" {
		return nil, shared.NewDomainError("INVALID_INPUT", "Customer name cannot be empty")
	}
	if strings.TrimSpace(p.Customer.Address) == "" {
		return nil, shared.NewDomainError("INVALID_INPUT", "Address cannot be empty")
	}
	if p.Method == "" {
		return nil, shared.NewDomainError("INVALID_INPUT", "Payment method cannot be empty")
	}
	if p.Total.IsNegative() {
		return nil, shared.NewDomainError("INVALID_INPUT", "Order total cannot be negative")
	}
	if _, err := NewPaymentReference(p.Code.String()); err != nil {
		return nil, shared.NewDomainError("INVALID_INPUT", err.Error())
	}

	o := &Order{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		CustomerName:      strings.TrimSpace(p.Customer.FullName),
		Phone:             p.Customer.Phone,
		Email:             strings.TrimSpace(p.Customer.Email),
		Address:           strings.TrimSpace(p.Customer.Address),
		Total:             p.Total,
		Status:            StatusPending,
		PaymentMethod:     PaymentTag(p.Method, p.Code),
		PaymentCode:       p.Code,
		CustomerRef:       p.CustomerRef,
		IdempotencyKey:    p.IdempotencyKey,
		DraftFingerprint:  p.DraftFingerprint,
		Items:             make([]LineItem, 0),
	}
	return o, nil
}

// AddItem attaches a line item snapshot to the order
func (o *Order) AddItem(cartProductID, name string, quantity int, unitPrice valueobject.Money) (*LineItem, error) {
	if quantity < 1 {
		return nil, shared.NewDomainError("INVALID_INPUT", "Quantity must be at least 1")
	}
	if strings.TrimSpace(name) == "" {
		return nil, shared.NewDomainError("INVALID_INPUT", "Product name cannot be empty")
	}
	item := LineItem{
		ID:          uuid.New(),
		OrderID:     o.ID,
		ProductID:   ProductRef(cartProductID),
		ProductName: name,
		Quantity:    quantity,
		UnitPrice:   unitPrice,
		CreatedAt:   time.Now(),
	}
	o.Items = append(o.Items, item)
	return &o.Items[len(o.Items)-1], nil
}

// MarkPlaced records the OrderPlaced event once header and items are durable
func (o *Order) MarkPlaced() {
	o.AddDomainEvent(NewOrderPlacedEvent(o))
}

// ChangeStatus moves the order to target, guarded by the status machine.
// Used by the back office; the storefront only ever writes pending.
func (o *Order) ChangeStatus(target Status) error {
	if !target.IsValid() {
		return shared.NewDomainError("INVALID_INPUT", fmt.Sprintf("Unknown order status %q", target))
	}
	if !o.Status.CanTransitionTo(target) {
		return shared.NewDomainError("INVALID_STATE", fmt.Sprintf("Cannot move order from %s to %s", o.Status, target))
	}
	o.Status = target
	o.Touch()
	return nil
}

// Method returns the payment method part of the stored tag
func (o *Order) Method() string {
	method, _, err := ParsePaymentTag(o.PaymentMethod)
	if err != nil {
		return o.PaymentMethod
	}
	return method
}

// ItemCount returns the sum of item quantities
func (o *Order) ItemCount() int {
	n := 0
	for _, i := range o.Items {
		n += i.Quantity
	}
	return n
}
