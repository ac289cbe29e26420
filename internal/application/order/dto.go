package order

import (
	"time"

	"github.com/google/uuid"
	"github.com/kiendrone/storefront/internal/domain/order"
	"github.com/kiendrone/storefront/internal/domain/shared/valueobject"
)

// ListMineRequest represents paging options for a customer's orders
type ListMineRequest struct {
	Page     int `form:"page" binding:"omitempty,min=1"`
	PageSize int `form:"page_size" binding:"omitempty,min=1,max=100"`
}

// OrderItemResponse represents an order line in API responses
type OrderItemResponse struct {
	ProductID   *uuid.UUID        `json:"product_id,omitempty"`
	ProductName string            `json:"product_name"`
	Quantity    int               `json:"quantity"`
	UnitPrice   valueobject.Money `json:"unit_price"`
	Amount      valueobject.Money `json:"amount"`
}

// OrderResponse represents an order in API responses
type OrderResponse struct {
	ID            uuid.UUID           `json:"id"`
	Status        string              `json:"status"`
	StatusLabel   string              `json:"status_label"`
	PaymentMethod string              `json:"payment_method"`
	PaymentCode   string              `json:"payment_code"`
	Total         valueobject.Money   `json:"total"`
	TotalDisplay  string              `json:"total_display"`
	CustomerName  string              `json:"customer_name"`
	Phone         string              `json:"phone"`
	Address       string              `json:"address"`
	Items         []OrderItemResponse `json:"items"`
	CreatedAt     time.Time           `json:"created_at"`
}

// ToOrderResponse converts a domain Order to an OrderResponse
func ToOrderResponse(o *order.Order) OrderResponse {
	items := make([]OrderItemResponse, len(o.Items))
	for i, item := range o.Items {
		items[i] = OrderItemResponse{
			ProductID:   item.ProductID,
			ProductName: item.ProductName,
			Quantity:    item.Quantity,
			UnitPrice:   item.UnitPrice,
			Amount:      item.Amount(),
		}
	}
	return OrderResponse{
		ID:            o.ID,
		Status:        o.Status.String(),
		StatusLabel:   o.Status.Label(),
		PaymentMethod: o.Method(),
		PaymentCode:   o.PaymentCode.String(),
		Total:         o.Total,
		TotalDisplay:  o.Total.Display(),
		CustomerName:  o.CustomerName,
		Phone:         o.Phone,
		Address:       o.Address,
		Items:         items,
		CreatedAt:     o.CreatedAt,
	}
}
