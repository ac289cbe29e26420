package cart

import (
	"github.com/kiendrone/storefront/internal/domain/cart"
	"github.com/kiendrone/storefront/internal/domain/shared/valueobject"
)

// AddItemRequest represents a request to put one unit of a product in the cart
type AddItemRequest struct {
	ProductID string `json:"product_id" binding:"required,max=100"`
	Name      string `json:"name" binding:"max=200"`
	Brand     string `json:"brand" binding:"max=100"`
	Condition string `json:"condition" binding:"max=50"`
	Price     int64  `json:"price" binding:"gte=0"`
	ImageRef  string `json:"image_ref" binding:"max=500"`
}

// UpdateQuantityRequest represents a relative quantity change
type UpdateQuantityRequest struct {
	Delta int `json:"delta" binding:"required,ne=0,min=-999,max=999"`
}

// LineResponse represents a cart line in API responses
type LineResponse struct {
	ProductID string            `json:"product_id"`
	Name      string            `json:"name"`
	Brand     string            `json:"brand,omitempty"`
	Condition string            `json:"condition"`
	ImageRef  string            `json:"image_ref,omitempty"`
	UnitPrice valueobject.Money `json:"unit_price"`
	Quantity  int               `json:"quantity"`
	LineTotal valueobject.Money `json:"line_total"`
	Display   string            `json:"line_total_display"`
}

// CartResponse represents the cart read model
type CartResponse struct {
	Lines        []LineResponse    `json:"lines"`
	TotalItems   int               `json:"total_items"`
	TotalValue   valueobject.Money `json:"total_value"`
	TotalDisplay string            `json:"total_display"`
}

// AddItemResponse is the cart after an add plus the transient notice
type AddItemResponse struct {
	Cart   CartResponse `json:"cart"`
	Notice NoticeData   `json:"notice"`
}

// NoticeData is the "added to cart" toast payload
type NoticeData struct {
	ProductID  string `json:"product_id"`
	Name       string `json:"name"`
	Quantity   int    `json:"quantity"`
	TotalItems int    `json:"total_items"`
}

// ToLineResponse converts a domain CartLine to a LineResponse
func ToLineResponse(l cart.CartLine) LineResponse {
	total := l.LineTotal()
	return LineResponse{
		ProductID: l.ProductID,
		Name:      l.Name,
		Brand:     l.Brand,
		Condition: string(l.Condition),
		ImageRef:  l.ImageRef,
		UnitPrice: l.UnitPrice,
		Quantity:  l.Quantity,
		LineTotal: total,
		Display:   total.Display(),
	}
}

// ToCartResponse builds the read model of a store
func ToCartResponse(s *Store) CartResponse {
	lines := s.Lines()
	resp := CartResponse{
		Lines:      make([]LineResponse, len(lines)),
		TotalItems: 0,
		TotalValue: cart.Subtotal(lines),
	}
	for i, l := range lines {
		resp.Lines[i] = ToLineResponse(l)
		resp.TotalItems += l.Quantity
	}
	resp.TotalDisplay = resp.TotalValue.Display()
	return resp
}
