package handler

import (
	"context"

	"github.com/gin-gonic/gin"
	cartapp "github.com/kiendrone/storefront/internal/application/cart"
	"github.com/kiendrone/storefront/internal/interfaces/http/middleware"
)

// CartService is the cart use case surface the handler drives
type CartService interface {
	View(ctx context.Context, sessionID string) (*cartapp.CartResponse, error)
	AddItem(ctx context.Context, sessionID string, req cartapp.AddItemRequest) (*cartapp.AddItemResponse, error)
	UpdateQuantity(ctx context.Context, sessionID, productID string, delta int) (*cartapp.CartResponse, error)
	RemoveItem(ctx context.Context, sessionID, productID string) (*cartapp.CartResponse, error)
	Clear(ctx context.Context, sessionID string) (*cartapp.CartResponse, error)
}

// CartHandler handles the session cart endpoints
type CartHandler struct {
	BaseHandler
	cartService CartService
}

// NewCartHandler creates a new CartHandler
func NewCartHandler(cartService CartService) *CartHandler {
	return &CartHandler{cartService: cartService}
}

// View returns the cart of the session.
// GET /cart
func (h *CartHandler) View(c *gin.Context) {
	resp, err := h.cartService.View(c.Request.Context(), middleware.GetCartSession(c))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, resp)
}

// AddItem puts one unit of a product in the cart.
// POST /cart/items
func (h *CartHandler) AddItem(c *gin.Context) {
	var req cartapp.AddItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindError(c, err)
		return
	}

	resp, err := h.cartService.AddItem(c.Request.Context(), middleware.GetCartSession(c), req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, resp)
}

// UpdateQuantity changes a line quantity by a signed delta. A line that
// drops below one unit is removed.
// PATCH /cart/items/:product_id
func (h *CartHandler) UpdateQuantity(c *gin.Context) {
	var req cartapp.UpdateQuantityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindError(c, err)
		return
	}

	resp, err := h.cartService.UpdateQuantity(c.Request.Context(), middleware.GetCartSession(c), c.Param("product_id"), req.Delta)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, resp)
}

// RemoveItem drops a line from the cart.
// DELETE /cart/items/:product_id
func (h *CartHandler) RemoveItem(c *gin.Context) {
	resp, err := h.cartService.RemoveItem(c.Request.Context(), middleware.GetCartSession(c), c.Param("product_id"))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, resp)
}

// Clear empties the cart.
// DELETE /cart
func (h *CartHandler) Clear(c *gin.Context) {
	resp, err := h.cartService.Clear(c.Request.Context(), middleware.GetCartSession(c))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, resp)
}
