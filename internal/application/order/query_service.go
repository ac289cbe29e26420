package order

import (
	"context"

	"github.com/google/uuid"
	"github.com/kiendrone/storefront/internal/domain/order"
	"github.com/kiendrone/storefront/internal/domain/shared"
)

// QueryService serves a signed-in customer's order history
type QueryService struct {
	orders order.Repository
}

// NewQueryService creates a new QueryService
func NewQueryService(orders order.Repository) *QueryService {
	return &QueryService{orders: orders}
}

// ListMine lists the customer's orders newest first, with their items
func (s *QueryService) ListMine(ctx context.Context, userID uuid.UUID, req ListMineRequest) (*shared.Paginated[OrderResponse], error) {
	filter := shared.DefaultFilter()
	if req.Page > 0 {
		filter.Page = req.Page
	}
	if req.PageSize > 0 {
		filter.PageSize = req.PageSize
	}

	orders, err := s.orders.FindByCustomer(ctx, userID, filter)
	if err != nil {
		return nil, err
	}
	total, err := s.orders.CountByCustomer(ctx, userID)
	if err != nil {
		return nil, err
	}

	items := make([]OrderResponse, len(orders))
	for i := range orders {
		items[i] = ToOrderResponse(&orders[i])
	}
	page := shared.NewPaginated(items, total, filter.Page, filter.PageSize)
	return &page, nil
}
