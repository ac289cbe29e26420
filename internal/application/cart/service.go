package cart

import (
	"context"

	"github.com/google/uuid"
	"github.com/kiendrone/storefront/internal/domain/cart"
	"github.com/kiendrone/storefront/internal/domain/shared/valueobject"
)

// StoreProvider hands out the cart store of a browsing session
type StoreProvider interface {
	CartStore(ctx context.Context, sessionID string) (*Store, error)
}

// Service handles cart operations for HTTP sessions
type Service struct {
	stores  StoreProvider
	catalog cart.Catalog
}

// NewService creates a new cart Service
func NewService(stores StoreProvider) *Service {
	return &Service{stores: stores}
}

// SetCatalog makes the catalog authoritative for persistent product ids
func (s *Service) SetCatalog(catalog cart.Catalog) {
	s.catalog = catalog
}

// View returns the cart of a session
func (s *Service) View(ctx context.Context, sessionID string) (*CartResponse, error) {
	store, err := s.stores.CartStore(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	resp := ToCartResponse(store)
	return &resp, nil
}

// AddItem puts one unit of a product into the session cart. A snapshot
// save failure is returned alongside the updated cart.
func (s *Service) AddItem(ctx context.Context, sessionID string, req AddItemRequest) (*AddItemResponse, error) {
	store, err := s.stores.CartStore(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	product, err := s.resolveProduct(ctx, req)
	if err != nil {
		return nil, err
	}

	line, addErr := store.AddItem(ctx, *product)
	if line.ProductID == "" {
		return nil, addErr
	}

	resp := ToCartResponse(store)
	return &AddItemResponse{
		Cart: resp,
		Notice: NoticeData{
			ProductID:  line.ProductID,
			Name:       line.Name,
			Quantity:   line.Quantity,
			TotalItems: resp.TotalItems,
		},
	}, addErr
}

// UpdateQuantity changes a line quantity by delta, never below 1
func (s *Service) UpdateQuantity(ctx context.Context, sessionID, productID string, delta int) (*CartResponse, error) {
	store, err := s.stores.CartStore(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	saveErr := store.UpdateQuantity(ctx, productID, delta)
	resp := ToCartResponse(store)
	return &resp, saveErr
}

// RemoveItem removes a product line
func (s *Service) RemoveItem(ctx context.Context, sessionID, productID string) (*CartResponse, error) {
	store, err := s.stores.CartStore(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	saveErr := store.RemoveItem(ctx, productID)
	resp := ToCartResponse(store)
	return &resp, saveErr
}

// Clear empties the session cart
func (s *Service) Clear(ctx context.Context, sessionID string) (*CartResponse, error) {
	store, err := s.stores.CartStore(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	saveErr := store.Clear(ctx)
	resp := ToCartResponse(store)
	return &resp, saveErr
}

func (s *Service) resolveProduct(ctx context.Context, req AddItemRequest) (*cart.Product, error) {
	if s.catalog != nil && isCatalogID(req.ProductID) {
		return s.catalog.FindProduct(ctx, req.ProductID)
	}
	return &cart.Product{
		ID:        req.ProductID,
		Name:      req.Name,
		Brand:     req.Brand,
		Condition: cart.ParseCondition(req.Condition),
		Price:     valueobject.VNDFromInt(req.Price),
		ImageRef:  req.ImageRef,
	}, nil
}

// isCatalogID reports whether id is a catalog product id in its hyphenated
// form. Anything else is a local product described by the request.
func isCatalogID(id string) bool {
	if len(id) != 36 {
		return false
	}
	parsed, err := uuid.Parse(id)
	return err == nil && parsed != uuid.Nil
}
