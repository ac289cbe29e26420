package persistence

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/kiendrone/storefront/internal/domain/order"
	"github.com/kiendrone/storefront/internal/domain/shared"
	"github.com/kiendrone/storefront/internal/domain/shared/valueobject"
	"github.com/kiendrone/storefront/internal/infrastructure/persistence/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func setupStorefrontTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := Open(sqlite.Open(":memory:"), nil)
	require.NoError(t, err)

	// every pooled connection to :memory: would be a separate database
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	err = db.AutoMigrate(
		&models.OrderModel{},
		&models.OrderItemModel{},
		&models.ProfileModel{},
		&models.ProductModel{},
	)
	require.NoError(t, err)

	return db
}

func newTestOrder(t *testing.T, customerRef *uuid.UUID, key string) *order.Order {
	t.Helper()

	code, err := order.NewPaymentReference("123456")
	require.NoError(t, err)

	o, err := order.NewOrder(order.NewOrderParams{
		Customer: order.Customer{
			FullName: "Nguyễn Văn A",
			Phone:    "0912345678",
			Email:    "a@example.com",
			Address:  "12 Lê Lợi, Quận 1",
		},
		Total:          valueobject.VNDFromInt(25_000_000),
		Method:         "bank",
		Code:           code,
		CustomerRef:    customerRef,
		IdempotencyKey: key,
	})
	require.NoError(t, err)
	return o
}

func withCode(t *testing.T, o *order.Order, code string) *order.Order {
	t.Helper()
	ref, err := order.NewPaymentReference(code)
	require.NoError(t, err)
	o.PaymentCode = ref
	o.PaymentMethod = order.PaymentTag("bank", ref)
	return o
}

func addTestItem(t *testing.T, o *order.Order, productID string, qty int, price int64) {
	t.Helper()
	_, err := o.AddItem(productID, "DJI Mini 4 Pro", qty, valueobject.VNDFromInt(price))
	require.NoError(t, err)
}

func placeOrder(t *testing.T, repo *GormOrderRepository, o *order.Order) {
	t.Helper()
	err := repo.WithinTx(context.Background(), func(w order.Writer) error {
		if err := w.InsertHeader(context.Background(), o); err != nil {
			return err
		}
		return w.InsertItems(context.Background(), o.Items)
	})
	require.NoError(t, err)
}

func TestGormOrderRepository_PlaceAndFind(t *testing.T) {
	db := setupStorefrontTestDB(t)
	repo := NewGormOrderRepository(db)
	ctx := context.Background()

	o := newTestOrder(t, nil, "key-1")
	o.DraftFingerprint = "fp-1"
	addTestItem(t, o, uuid.NewString(), 2, 10_000_000)
	addTestItem(t, o, "local-42", 1, 5_000_000)
	placeOrder(t, repo, o)

	t.Run("find by id returns header and items", func(t *testing.T) {
		found, err := repo.FindByID(ctx, o.ID)
		require.NoError(t, err)

		assert.Equal(t, o.ID, found.ID)
		assert.Equal(t, "Nguyễn Văn A", found.CustomerName)
		assert.Equal(t, order.StatusPending, found.Status)
		assert.Equal(t, "bank_123456", found.PaymentMethod)
		assert.Equal(t, "123456", found.PaymentCode.String())
		assert.Equal(t, int64(25_000_000), found.Total.IntPart())
		assert.Nil(t, found.CustomerRef)
		require.Len(t, found.Items, 2)
		assert.NotNil(t, found.Items[0].ProductID)
		assert.Nil(t, found.Items[1].ProductID)
		assert.Equal(t, int64(5_000_000), found.Items[1].UnitPrice.IntPart())
	})

	t.Run("find by idempotency key", func(t *testing.T) {
		found, err := repo.FindByIdempotencyKey(ctx, "key-1")
		require.NoError(t, err)
		assert.Equal(t, o.ID, found.ID)
		assert.Equal(t, "key-1", found.IdempotencyKey)
		assert.Equal(t, "fp-1", found.DraftFingerprint)
	})

	t.Run("unknown id is not found", func(t *testing.T) {
		_, err := repo.FindByID(ctx, uuid.New())
		assert.ErrorIs(t, err, shared.ErrNotFound)
	})

	t.Run("empty idempotency key is not found", func(t *testing.T) {
		_, err := repo.FindByIdempotencyKey(ctx, "")
		assert.ErrorIs(t, err, shared.ErrNotFound)
	})
}

func TestGormOrderRepository_DuplicateIdempotencyKey(t *testing.T) {
	db := setupStorefrontTestDB(t)
	repo := NewGormOrderRepository(db)

	first := newTestOrder(t, nil, "dup-key")
	addTestItem(t, first, "p1", 1, 100)
	placeOrder(t, repo, first)

	second := withCode(t, newTestOrder(t, nil, "dup-key"), "654321")
	addTestItem(t, second, "p1", 1, 100)
	err := repo.WithinTx(context.Background(), func(w order.Writer) error {
		return w.InsertHeader(context.Background(), second)
	})

	assert.ErrorIs(t, err, shared.ErrConflict)
}

func TestGormOrderRepository_OrdersWithoutKeyDoNotCollide(t *testing.T) {
	db := setupStorefrontTestDB(t)
	repo := NewGormOrderRepository(db)

	for _, code := range []string{"111111", "222222", "333333"} {
		o := withCode(t, newTestOrder(t, nil, ""), code)
		addTestItem(t, o, "p1", 1, 100)
		placeOrder(t, repo, o)
	}

	var count int64
	require.NoError(t, db.Model(&models.OrderModel{}).Where("idempotency_key IS NULL").Count(&count).Error)
	assert.Equal(t, int64(3), count)
}

func TestGormOrderRepository_ItemFailureRollsBackHeader(t *testing.T) {
	db := setupStorefrontTestDB(t)
	repo := NewGormOrderRepository(db)
	ctx := context.Background()

	o := newTestOrder(t, nil, "rollback-key")
	addTestItem(t, o, "p1", 1, 100)
	addTestItem(t, o, "p2", 1, 100)
	o.Items[1].ID = o.Items[0].ID

	err := repo.WithinTx(ctx, func(w order.Writer) error {
		if err := w.InsertHeader(ctx, o); err != nil {
			return err
		}
		return w.InsertItems(ctx, o.Items)
	})
	require.Error(t, err)

	_, err = repo.FindByID(ctx, o.ID)
	assert.ErrorIs(t, err, shared.ErrNotFound)

	var items int64
	require.NoError(t, db.Model(&models.OrderItemModel{}).Where("order_id = ?", o.ID).Count(&items).Error)
	assert.Zero(t, items)
}

func TestGormOrderRepository_FindByCustomer(t *testing.T) {
	db := setupStorefrontTestDB(t)
	repo := NewGormOrderRepository(db)
	ctx := context.Background()

	customerRef := uuid.New()
	other := uuid.New()
	base := time.Now().Add(-time.Hour)

	codes := []string{"100001", "100002", "100003"}
	ids := make([]uuid.UUID, len(codes))
	for i, code := range codes {
		o := withCode(t, newTestOrder(t, &customerRef, ""), code)
		o.CreatedAt = base.Add(time.Duration(i) * time.Minute)
		addTestItem(t, o, "p1", i+1, 100)
		placeOrder(t, repo, o)
		ids[i] = o.ID
	}
	stranger := withCode(t, newTestOrder(t, &other, ""), "200001")
	addTestItem(t, stranger, "p1", 1, 100)
	placeOrder(t, repo, stranger)

	t.Run("newest first with items", func(t *testing.T) {
		orders, err := repo.FindByCustomer(ctx, customerRef, shared.DefaultFilter())
		require.NoError(t, err)
		require.Len(t, orders, 3)
		assert.Equal(t, ids[2], orders[0].ID)
		assert.Equal(t, ids[0], orders[2].ID)
		require.Len(t, orders[0].Items, 1)
		assert.Equal(t, 3, orders[0].Items[0].Quantity)
	})

	t.Run("paging", func(t *testing.T) {
		orders, err := repo.FindByCustomer(ctx, customerRef, shared.Filter{Page: 2, PageSize: 2})
		require.NoError(t, err)
		require.Len(t, orders, 1)
		assert.Equal(t, ids[0], orders[0].ID)
	})

	t.Run("unknown sort field falls back to created_at", func(t *testing.T) {
		orders, err := repo.FindByCustomer(ctx, customerRef, shared.Filter{OrderBy: "1; DROP TABLE orders", OrderDir: "asc"})
		require.NoError(t, err)
		require.Len(t, orders, 3)
		assert.Equal(t, ids[0], orders[0].ID)
	})

	t.Run("count", func(t *testing.T) {
		count, err := repo.CountByCustomer(ctx, customerRef)
		require.NoError(t, err)
		assert.Equal(t, int64(3), count)
	})
}

func TestGormOrderRepository_PaymentCodeInUse(t *testing.T) {
	db := setupStorefrontTestDB(t)
	repo := NewGormOrderRepository(db)
	ctx := context.Background()

	o := newTestOrder(t, nil, "")
	addTestItem(t, o, "p1", 1, 100)
	placeOrder(t, repo, o)

	inUse, err := repo.PaymentCodeInUse(ctx, o.PaymentCode)
	require.NoError(t, err)
	assert.True(t, inUse)

	inUse, err = repo.PaymentCodeInUse(ctx, order.PaymentReference("999999"))
	require.NoError(t, err)
	assert.False(t, inUse)

	require.NoError(t, repo.UpdateStatus(ctx, o.ID, order.StatusCompleted))

	inUse, err = repo.PaymentCodeInUse(ctx, o.PaymentCode)
	require.NoError(t, err)
	assert.False(t, inUse, "codes of settled orders may be reused")
}

func TestGormOrderRepository_UpdateStatus(t *testing.T) {
	db := setupStorefrontTestDB(t)
	repo := NewGormOrderRepository(db)
	ctx := context.Background()

	o := newTestOrder(t, nil, "")
	addTestItem(t, o, "p1", 1, 100)
	placeOrder(t, repo, o)

	t.Run("pending to processing", func(t *testing.T) {
		require.NoError(t, repo.UpdateStatus(ctx, o.ID, order.StatusProcessing))
		found, err := repo.FindByID(ctx, o.ID)
		require.NoError(t, err)
		assert.Equal(t, order.StatusProcessing, found.Status)
	})

	t.Run("back to pending is refused", func(t *testing.T) {
		err := repo.UpdateStatus(ctx, o.ID, order.StatusPending)
		assert.ErrorIs(t, err, shared.ErrInvalidState)
	})

	t.Run("unknown status is refused", func(t *testing.T) {
		err := repo.UpdateStatus(ctx, o.ID, order.Status("shipped"))
		assert.ErrorIs(t, err, shared.ErrInvalidInput)
	})

	t.Run("unknown order", func(t *testing.T) {
		err := repo.UpdateStatus(ctx, uuid.New(), order.StatusCompleted)
		assert.ErrorIs(t, err, shared.ErrNotFound)
	})
}

func TestOrderClause(t *testing.T) {
	tests := []struct {
		name   string
		filter shared.Filter
		want   string
	}{
		{"defaults to newest first", shared.Filter{}, "created_at DESC"},
		{"allowed column ascending", shared.Filter{OrderBy: "total", OrderDir: "ASC"}, "total ASC"},
		{"direction is case insensitive", shared.Filter{OrderBy: "status", OrderDir: " asc "}, "status ASC"},
		{"unlisted column falls back", shared.Filter{OrderBy: "payment_code"}, "created_at DESC"},
		{"injection attempt falls back", shared.Filter{OrderBy: "total; DROP TABLE orders", OrderDir: "ASC;--"}, "created_at DESC"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, orderClause(tt.filter))
		})
	}
}
