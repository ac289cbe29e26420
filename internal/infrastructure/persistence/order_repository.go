package persistence

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/kiendrone/storefront/internal/domain/order"
	"github.com/kiendrone/storefront/internal/domain/shared"
	"github.com/kiendrone/storefront/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
)

// GormOrderRepository implements order.Repository using GORM
type GormOrderRepository struct {
	db *gorm.DB
}

// NewGormOrderRepository creates a new GormOrderRepository
func NewGormOrderRepository(db *gorm.DB) *GormOrderRepository {
	return &GormOrderRepository{db: db}
}

// orderWriter performs placement writes on an open transaction
type orderWriter struct {
	tx      *gorm.DB
	orderID uuid.UUID
}

// InsertHeader inserts the order row
func (w *orderWriter) InsertHeader(ctx context.Context, o *order.Order) error {
	model := &models.OrderModel{}
	model.FromDomain(o)
	if err := w.tx.WithContext(ctx).Omit("Items").Create(model).Error; err != nil {
		return translateWriteError("insert order header", err)
	}
	w.orderID = o.ID
	return nil
}

// InsertItems batch inserts the line items of the header written before
func (w *orderWriter) InsertItems(ctx context.Context, items []order.LineItem) error {
	if w.orderID == uuid.Nil {
		return fmt.Errorf("insert order items: header not inserted")
	}
	if len(items) == 0 {
		return nil
	}
	rows := make([]models.OrderItemModel, len(items))
	for i, item := range items {
		if item.OrderID != w.orderID {
			return fmt.Errorf("insert order items: item %s belongs to order %s", item.ID, item.OrderID)
		}
		rows[i] = models.OrderItemModelFromDomain(item)
	}
	if err := w.tx.WithContext(ctx).Create(&rows).Error; err != nil {
		return translateWriteError("insert order items", err)
	}
	return nil
}

// WithinTx runs fn in a single transaction. Any error from fn, or from
// the commit, rolls back header and items together.
func (r *GormOrderRepository) WithinTx(ctx context.Context, fn func(w order.Writer) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&orderWriter{tx: tx})
	})
}

// FindByID finds an order with its items
func (r *GormOrderRepository) FindByID(ctx context.Context, id uuid.UUID) (*order.Order, error) {
	var model models.OrderModel
	if err := r.db.WithContext(ctx).
		Preload("Items", orderItemsByCreation).
		First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindByIdempotencyKey finds the order placed under key
func (r *GormOrderRepository) FindByIdempotencyKey(ctx context.Context, key string) (*order.Order, error) {
	if key == "" {
		return nil, shared.ErrNotFound
	}
	var model models.OrderModel
	if err := r.db.WithContext(ctx).
		Preload("Items", orderItemsByCreation).
		Where("idempotency_key = ?", key).
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindByCustomer lists a customer's orders with items, newest first
func (r *GormOrderRepository) FindByCustomer(ctx context.Context, customerRef uuid.UUID, filter shared.Filter) ([]order.Order, error) {
	var rows []models.OrderModel
	query := r.applyFilter(
		r.db.WithContext(ctx).Model(&models.OrderModel{}).Where("user_id = ?", customerRef),
		filter,
	)
	if err := query.Preload("Items", orderItemsByCreation).Find(&rows).Error; err != nil {
		return nil, err
	}

	orders := make([]order.Order, len(rows))
	for i := range rows {
		orders[i] = *rows[i].ToDomain()
	}
	return orders, nil
}

// CountByCustomer counts a customer's orders
func (r *GormOrderRepository) CountByCustomer(ctx context.Context, customerRef uuid.UUID) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&models.OrderModel{}).
		Where("user_id = ?", customerRef).
		Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// PaymentCodeInUse reports whether a pending order already carries code
func (r *GormOrderRepository) PaymentCodeInUse(ctx context.Context, code order.PaymentReference) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&models.OrderModel{}).
		Where("payment_code = ? AND status = ?", code.String(), order.StatusPending).
		Limit(1).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// UpdateStatus moves an order to status, guarded by the status machine.
// Only the back office calls it; storefront routes never do.
func (r *GormOrderRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status order.Status) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var model models.OrderModel
		if err := tx.Select("id", "status").First(&model, "id = ?", id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return shared.ErrNotFound
			}
			return err
		}

		o := &order.Order{Status: model.Status}
		if err := o.ChangeStatus(status); err != nil {
			return err
		}

		// the status guard keeps a concurrent writer from skipping the check
		result := tx.Model(&models.OrderModel{}).
			Where("id = ? AND status = ?", id, model.Status).
			Updates(map[string]any{"status": status, "updated_at": time.Now()})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return shared.ErrConflict.WithDetails(map[string]string{"order_id": id.String()})
		}
		return nil
	})
}

// orderColumns whitelists the columns My orders may be sorted by
var orderColumns = map[string]bool{
	"created_at": true,
	"total":      true,
	"status":     true,
}

// orderClause builds the ORDER BY clause for filter. Unknown columns fall
// back to created_at and anything but asc sorts descending.
func orderClause(filter shared.Filter) string {
	column := strings.TrimSpace(filter.OrderBy)
	if !orderColumns[column] {
		column = "created_at"
	}
	dir := "DESC"
	if strings.EqualFold(strings.TrimSpace(filter.OrderDir), "asc") {
		dir = "ASC"
	}
	return column + " " + dir
}

func (r *GormOrderRepository) applyFilter(query *gorm.DB, filter shared.Filter) *gorm.DB {
	query = query.Order(orderClause(filter))

	if filter.PageSize > 0 {
		query = query.Limit(filter.PageSize).Offset(filter.Offset())
	}
	return query
}

func orderItemsByCreation(db *gorm.DB) *gorm.DB {
	return db.Order("created_at ASC")
}

// translateWriteError maps a unique violation onto shared.ErrConflict
func translateWriteError(op string, err error) error {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return fmt.Errorf("%s: %w", op, shared.ErrConflict)
	}
	return fmt.Errorf("%s: %w", op, err)
}
