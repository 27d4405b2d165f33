package handler

import (
	"time"

	"github.com/sakashimaa/go-pet-project/services/order/internal/domain"
)

type CreateOrderItemInput struct {
	Sku      string `json:"sku" validate:"required,max=64"`
	Quantity int32  `json:"quantity" validate:"required,gt=0"`
}

type CreateOrderInput struct {
	Items           []CreateOrderItemInput `json:"items" validate:"required,min=1,dive"`
	ShippingAddress string                 `json:"shippingAddress" validate:"required,max=500"`
}

type UpdateStatusInput struct {
	Status string `json:"status"`
}

type PayOrderInput struct {
	Method string `json:"method" validate:"max=32"`
}

type OrderItemResponse struct {
	Sku       string `json:"sku"`
	Quantity  int32  `json:"quantity"`
	UnitPrice int64  `json:"unitPrice"`
	Subtotal  int64  `json:"subtotal"`
}

type OrderResponse struct {
	OrderID         int64               `json:"orderId"`
	OrderNumber     string              `json:"orderNumber"`
	UserID          string              `json:"userId"`
	Status          string              `json:"status"`
	TotalAmount     int64               `json:"totalAmount"`
	ShippingAddress string              `json:"shippingAddress"`
	Items           []OrderItemResponse `json:"items"`
	CreatedAt       time.Time           `json:"createdAt"`
	UpdatedAt       time.Time           `json:"updatedAt"`
}

func toOrderResponse(order *domain.Order) OrderResponse {
	items := make([]OrderItemResponse, len(order.Items))
	for i, item := range order.Items {
		items[i] = OrderItemResponse{
			Sku:       item.Sku,
			Quantity:  item.Quantity,
			UnitPrice: item.UnitPrice,
			Subtotal:  item.Subtotal,
		}
	}

	return OrderResponse{
		OrderID:         order.ID,
		OrderNumber:     order.OrderNumber,
		UserID:          order.UserID,
		Status:          string(order.Status),
		TotalAmount:     order.TotalAmount,
		ShippingAddress: order.ShippingAddress,
		Items:           items,
		CreatedAt:       order.CreatedAt,
		UpdatedAt:       order.UpdatedAt,
	}
}
