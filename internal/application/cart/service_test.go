package cart

import (
	"context"
	"errors"
	"testing"

	"github.com/kiendrone/storefront/internal/domain/cart"
	"github.com/kiendrone/storefront/internal/domain/shared"
	"github.com/kiendrone/storefront/internal/domain/shared/valueobject"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type fakeProvider struct {
	repo   *memSnapshotRepo
	stores map[string]*Store
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{repo: newMemSnapshotRepo(), stores: make(map[string]*Store)}
}

func (p *fakeProvider) CartStore(ctx context.Context, sessionID string) (*Store, error) {
	if s, ok := p.stores[sessionID]; ok {
		return s, nil
	}
	s := Open(ctx, "cart:"+sessionID, p.repo)
	p.stores[sessionID] = s
	return s, nil
}

// MockCatalog is a mock implementation of cart.Catalog
type MockCatalog struct {
	mock.Mock
}

func (m *MockCatalog) FindProduct(ctx context.Context, id string) (*cart.Product, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*cart.Product), args.Error(1)
}

func TestService_AddItemFromClient(t *testing.T) {
	ctx := context.Background()
	svc := NewService(newFakeProvider())

	resp, err := svc.AddItem(ctx, "s1", AddItemRequest{
		ProductID: "DJI-MINI-4",
		Name:      "DJI Mini 4 Pro",
		Condition: "Cũ (Like New)",
		Price:     18500000,
	})
	require.NoError(t, err)

	assert.Equal(t, 1, resp.Cart.TotalItems)
	assert.Equal(t, "used", resp.Cart.Lines[0].Condition)
	assert.Equal(t, "18.500.000đ", resp.Cart.TotalDisplay)
	assert.Equal(t, "DJI Mini 4 Pro", resp.Notice.Name)
	assert.Equal(t, 1, resp.Notice.TotalItems)
}

func TestService_AddItemUsesCatalogForUUIDs(t *testing.T) {
	ctx := context.Background()
	catalog := new(MockCatalog)
	svc := NewService(newFakeProvider())
	svc.SetCatalog(catalog)

	id := "4f9c2a1e-7b3d-4c55-9e21-8d0a6b3f1c77"
	catalog.On("FindProduct", ctx, id).Return(&cart.Product{
		ID:        id,
		Name:      "DJI Avata 2",
		Condition: cart.ConditionNew,
		Price:     valueobject.VNDFromInt(21000000),
	}, nil)

	resp, err := svc.AddItem(ctx, "s1", AddItemRequest{ProductID: id, Name: "tampered", Price: 1})
	require.NoError(t, err)
	assert.Equal(t, "DJI Avata 2", resp.Cart.Lines[0].Name)
	assert.Equal(t, int64(21000000), resp.Cart.TotalValue.IntPart())
	catalog.AssertExpectations(t)
}

func TestService_AddItemUnknownCatalogProduct(t *testing.T) {
	ctx := context.Background()
	catalog := new(MockCatalog)
	svc := NewService(newFakeProvider())
	svc.SetCatalog(catalog)

	id := "4f9c2a1e-7b3d-4c55-9e21-8d0a6b3f1c77"
	catalog.On("FindProduct", ctx, id).Return(nil, shared.ErrNotFound)

	_, err := svc.AddItem(ctx, "s1", AddItemRequest{ProductID: id, Name: "x"})
	assert.True(t, errors.Is(err, shared.ErrNotFound))
}

func TestService_AddItemKeepsNonCanonicalIDsLocal(t *testing.T) {
	tests := []struct {
		name string
		id   string
	}{
		{"urn", "urn:uuid:4f9c2a1e-7b3d-4c55-9e21-8d0a6b3f1c77"},
		{"braced", "{4f9c2a1e-7b3d-4c55-9e21-8d0a6b3f1c77}"},
		{"bare hex", "4f9c2a1e7b3d4c559e218d0a6b3f1c77"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			catalog := new(MockCatalog)
			svc := NewService(newFakeProvider())
			svc.SetCatalog(catalog)

			resp, err := svc.AddItem(context.Background(), "s1", AddItemRequest{
				ProductID: tt.id,
				Name:      "DJI Mini 4 Pro",
				Price:     18500000,
			})
			require.NoError(t, err)
			assert.Equal(t, tt.id, resp.Cart.Lines[0].ProductID)
			catalog.AssertNotCalled(t, "FindProduct", mock.Anything, mock.Anything)
		})
	}
}

func TestService_AddItemRejectsInvalidProduct(t *testing.T) {
	svc := NewService(newFakeProvider())
	resp, err := svc.AddItem(context.Background(), "s1", AddItemRequest{ProductID: "A"})
	require.Error(t, err)
	assert.Nil(t, resp)
}

func TestService_SessionsAreIsolated(t *testing.T) {
	ctx := context.Background()
	svc := NewService(newFakeProvider())

	_, err := svc.AddItem(ctx, "s1", AddItemRequest{ProductID: "A", Name: "A", Price: 10})
	require.NoError(t, err)

	other, err := svc.View(ctx, "s2")
	require.NoError(t, err)
	assert.Empty(t, other.Lines)
	assert.Zero(t, other.TotalItems)
}

func TestService_QuantityAndRemove(t *testing.T) {
	ctx := context.Background()
	svc := NewService(newFakeProvider())
	_, err := svc.AddItem(ctx, "s1", AddItemRequest{ProductID: "A", Name: "A", Price: 10})
	require.NoError(t, err)

	resp, err := svc.UpdateQuantity(ctx, "s1", "A", 2)
	require.NoError(t, err)
	assert.Equal(t, 3, resp.TotalItems)
	assert.Equal(t, int64(30), resp.TotalValue.IntPart())

	resp, err = svc.RemoveItem(ctx, "s1", "A")
	require.NoError(t, err)
	assert.Empty(t, resp.Lines)

	resp, err = svc.Clear(ctx, "s1")
	require.NoError(t, err)
	assert.Zero(t, resp.TotalItems)
}
