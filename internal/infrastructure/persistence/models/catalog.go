package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/kiendrone/storefront/internal/domain/cart"
	"github.com/kiendrone/storefront/internal/domain/shared/valueobject"
	"github.com/shopspring/decimal"
)

// ProductModel is the persistence model for a catalog product. The
// storefront only reads it.
type ProductModel struct {
	ID            uuid.UUID       `gorm:"type:uuid;primaryKey"`
	Name          string          `gorm:"type:varchar(300);not null"`
	Brand         string          `gorm:"type:varchar(100)"`
	Category      string          `gorm:"type:varchar(50)"`
	Condition     string          `gorm:"type:varchar(50);not null;default:'Mới'"`
	Price         decimal.Decimal `gorm:"type:decimal(18,0);not null"`
	DiscountPrice decimal.Decimal `gorm:"type:decimal(18,0);not null;default:0"`
	IsOnSale      bool            `gorm:"not null;default:false"`
	Image         string          `gorm:"type:text"`
	Stock         int             `gorm:"not null;default:0"`
	CreatedAt     time.Time       `gorm:"not null"`
	UpdatedAt     time.Time       `gorm:"not null"`
}

// TableName returns the table name for GORM
func (ProductModel) TableName() string {
	return "products"
}

// EffectivePrice is the discount price while the product is on sale
func (m *ProductModel) EffectivePrice() decimal.Decimal {
	if m.IsOnSale && m.DiscountPrice.IsPositive() {
		return m.DiscountPrice
	}
	return m.Price
}

// ToDomain converts the persistence model to the cart's product view.
func (m *ProductModel) ToDomain() *cart.Product {
	return &cart.Product{
		ID:        m.ID.String(),
		Name:      m.Name,
		Brand:     m.Brand,
		Condition: cart.ParseCondition(m.Condition),
		Price:     valueobject.VNDFromDecimal(m.EffectivePrice()),
		ImageRef:  m.Image,
	}
}
