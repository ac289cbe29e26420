package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/kiendrone/storefront/internal/domain/customer"
)

// ProfileModel is the persistence model for a customer profile. Rows
// are keyed by the identity provider's user id.
type ProfileModel struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey"`
	FullName  string    `gorm:"type:varchar(200)"`
	Phone     string    `gorm:"type:varchar(20)"`
	Email     string    `gorm:"type:varchar(200)"`
	Address   string    `gorm:"type:text"`
	Role      string    `gorm:"type:varchar(20);not null;default:'customer'"`
	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`
}

// TableName returns the table name for GORM
func (ProfileModel) TableName() string {
	return "profiles"
}

// ToDomain converts the persistence model to a domain Profile.
func (m *ProfileModel) ToDomain() *customer.Profile {
	return &customer.Profile{
		UserID:   m.ID,
		FullName: m.FullName,
		Phone:    m.Phone,
		Email:    m.Email,
		Address:  m.Address,
	}
}
