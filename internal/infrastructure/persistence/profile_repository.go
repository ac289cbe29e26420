package persistence

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/kiendrone/storefront/internal/domain/customer"
	"github.com/kiendrone/storefront/internal/domain/shared"
	"github.com/kiendrone/storefront/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
)

// GormProfileRepository implements customer.ProfileRepository using GORM
type GormProfileRepository struct {
	db *gorm.DB
}

// NewGormProfileRepository creates a new GormProfileRepository
func NewGormProfileRepository(db *gorm.DB) *GormProfileRepository {
	return &GormProfileRepository{db: db}
}

// FindByUserID finds the profile saved for userID
func (r *GormProfileRepository) FindByUserID(ctx context.Context, userID uuid.UUID) (*customer.Profile, error) {
	var model models.ProfileModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}
