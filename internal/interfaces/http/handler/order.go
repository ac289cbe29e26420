package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	orderapp "github.com/kiendrone/storefront/internal/application/order"
	"github.com/kiendrone/storefront/internal/domain/shared"
	"github.com/kiendrone/storefront/internal/interfaces/http/dto"
	"github.com/kiendrone/storefront/internal/interfaces/http/middleware"
)

// OrderQuery lists a customer's orders
type OrderQuery interface {
	ListMine(ctx context.Context, userID uuid.UUID, req orderapp.ListMineRequest) (*shared.Paginated[orderapp.OrderResponse], error)
}

// OrderHandler handles the signed-in customer's order history
type OrderHandler struct {
	BaseHandler
	orders OrderQuery
}

// NewOrderHandler creates a new OrderHandler
func NewOrderHandler(orders OrderQuery) *OrderHandler {
	return &OrderHandler{orders: orders}
}

// ListMine returns the caller's orders, newest first.
// GET /orders/mine?page=&page_size=
func (h *OrderHandler) ListMine(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		h.Error(c, http.StatusUnauthorized, dto.ErrCodeUnauthorized, "Sign in required")
		return
	}

	var req orderapp.ListMineRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		h.BindError(c, err)
		return
	}

	page, err := h.orders.ListMine(c.Request.Context(), userID, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.SuccessWithMeta(c, page.Items, page.Total, page.Page, page.PageSize)
}
