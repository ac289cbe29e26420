package persistence

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/kiendrone/storefront/internal/domain/cart"
	"github.com/kiendrone/storefront/internal/domain/shared"
	"github.com/kiendrone/storefront/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
)

// GormCatalogRepository implements cart.Catalog using GORM
type GormCatalogRepository struct {
	db *gorm.DB
}

// NewGormCatalogRepository creates a new GormCatalogRepository
func NewGormCatalogRepository(db *gorm.DB) *GormCatalogRepository {
	return &GormCatalogRepository{db: db}
}

// FindProduct resolves a product by id. Ids that are not UUIDs are
// never persistent products.
func (r *GormCatalogRepository) FindProduct(ctx context.Context, id string) (*cart.Product, error) {
	productID, err := uuid.Parse(id)
	if err != nil {
		return nil, shared.ErrNotFound
	}

	var model models.ProductModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", productID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}
