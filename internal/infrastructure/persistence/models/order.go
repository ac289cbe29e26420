package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/kiendrone/storefront/internal/domain/order"
	"github.com/kiendrone/storefront/internal/domain/shared/valueobject"
	"github.com/shopspring/decimal"
)

// OrderModel is the persistence model for the Order aggregate root.
type OrderModel struct {
	BaseModel
	CustomerName   string           `gorm:"type:varchar(200);not null"`
	Phone          string           `gorm:"type:varchar(20);not null"`
	Email          string           `gorm:"type:varchar(200)"`
	Address        string           `gorm:"type:text;not null"`
	Total          decimal.Decimal  `gorm:"type:decimal(18,0);not null;default:0"`
	Status         order.Status     `gorm:"type:varchar(20);not null;default:'pending'"`
	PaymentMethod  string           `gorm:"type:varchar(40);not null"`
	PaymentCode    string           `gorm:"type:varchar(6);not null;index:idx_orders_payment_code"`
	UserID         *uuid.UUID       `gorm:"type:uuid;index:idx_orders_user_id"`
	IdempotencyKey *string          `gorm:"type:varchar(200);uniqueIndex:idx_orders_idempotency_key"`
	Fingerprint    string           `gorm:"column:draft_fingerprint;type:varchar(64)"`
	Items          []OrderItemModel `gorm:"foreignKey:OrderID;references:ID"`
}

// TableName returns the table name for GORM
func (OrderModel) TableName() string {
	return "orders"
}

// ToDomain converts the persistence model to a domain Order.
func (m *OrderModel) ToDomain() *order.Order {
	o := &order.Order{
		BaseAggregateRoot: m.ToDomainAggregateRoot(),
		CustomerName:      m.CustomerName,
		Phone:             m.Phone,
		Email:             m.Email,
		Address:           m.Address,
		Total:             valueobject.VNDFromDecimal(m.Total),
		Status:            m.Status,
		PaymentMethod:     m.PaymentMethod,
		PaymentCode:       order.PaymentReference(m.PaymentCode),
		CustomerRef:       m.UserID,
		DraftFingerprint:  m.Fingerprint,
		Items:             make([]order.LineItem, len(m.Items)),
	}
	if m.IdempotencyKey != nil {
		o.IdempotencyKey = *m.IdempotencyKey
	}
	for i := range m.Items {
		o.Items[i] = m.Items[i].ToDomain()
	}
	return o
}

// FromDomain populates the header columns from a domain Order. Items are
// written separately.
func (m *OrderModel) FromDomain(o *order.Order) {
	m.FromDomainAggregateRoot(o.BaseAggregateRoot)
	m.CustomerName = o.CustomerName
	m.Phone = o.Phone
	m.Email = o.Email
	m.Address = o.Address
	m.Total = o.Total.Amount()
	m.Status = o.Status
	m.PaymentMethod = o.PaymentMethod
	m.PaymentCode = o.PaymentCode.String()
	m.UserID = o.CustomerRef
	m.Fingerprint = o.DraftFingerprint
	m.IdempotencyKey = nil
	if o.IdempotencyKey != "" {
		key := o.IdempotencyKey
		m.IdempotencyKey = &key
	}
}

// OrderItemModel is the persistence model for an order line item.
type OrderItemModel struct {
	ID          uuid.UUID       `gorm:"type:uuid;primaryKey"`
	OrderID     uuid.UUID       `gorm:"type:uuid;not null;index"`
	ProductID   *uuid.UUID      `gorm:"type:uuid"`
	ProductName string          `gorm:"type:varchar(300);not null"`
	Quantity    int             `gorm:"not null"`
	Price       decimal.Decimal `gorm:"type:decimal(18,0);not null"`
	CreatedAt   time.Time       `gorm:"not null"`
}

// TableName returns the table name for GORM
func (OrderItemModel) TableName() string {
	return "order_items"
}

// ToDomain converts the persistence model to a domain LineItem.
func (m *OrderItemModel) ToDomain() order.LineItem {
	return order.LineItem{
		ID:          m.ID,
		OrderID:     m.OrderID,
		ProductID:   m.ProductID,
		ProductName: m.ProductName,
		Quantity:    m.Quantity,
		UnitPrice:   valueobject.VNDFromDecimal(m.Price),
		CreatedAt:   m.CreatedAt,
	}
}

// OrderItemModelFromDomain creates a persistence model from a domain LineItem.
func OrderItemModelFromDomain(i order.LineItem) OrderItemModel {
	return OrderItemModel{
		ID:          i.ID,
		OrderID:     i.OrderID,
		ProductID:   i.ProductID,
		ProductName: i.ProductName,
		Quantity:    i.Quantity,
		Price:       i.UnitPrice.Amount(),
		CreatedAt:   i.CreatedAt,
	}
}
