package handler

import (
	"time"

	"github.com/sakashimaa/go-pet-project/services/inventory/internal/domain"
)

type CreateProductInput struct {
	Sku         string `json:"sku" validate:"required,max=64"`
	Name        string `json:"name" validate:"required,max=200"`
	Description string `json:"description" validate:"max=2000"`
	Price       int64  `json:"price" validate:"gt=0"`
	Category    string `json:"category" validate:"max=100"`
	ImageURL    string `json:"imageUrl" validate:"max=500"`
}

type StockInput struct {
	Sku      string `json:"sku" validate:"required,max=64"`
	Quantity int32  `json:"quantity" validate:"required,gt=0"`
}

type ReservationInput struct {
	Token    string `json:"token" validate:"required,max=64"`
	Sku      string `json:"sku" validate:"required,max=64"`
	Quantity int32  `json:"quantity" validate:"required,gt=0"`
}

type ProductResponse struct {
	ID          int64     `json:"id"`
	Sku         string    `json:"sku"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Price       int64     `json:"price"`
	Category    string    `json:"category"`
	ImageURL    string    `json:"imageUrl"`
	CreatedAt   time.Time `json:"createdAt"`
}

type ProductDetailsResponse struct {
	ProductResponse
	TotalQuantity     int32 `json:"totalQuantity"`
	AvailableQuantity int32 `json:"availableQuantity"`
	InStock           bool  `json:"inStock"`
	LowStock          bool  `json:"lowStock"`
}

type ProductPage struct {
	Items  []ProductResponse `json:"items"`
	Total  int64             `json:"total"`
	Limit  int64             `json:"limit"`
	Offset int64             `json:"offset"`
}

type StockResponse struct {
	Sku               string `json:"sku"`
	Quantity          int32  `json:"quantity"`
	ReservedQuantity  int32  `json:"reservedQuantity"`
	AvailableQuantity int32  `json:"availableQuantity"`
	LowStockThreshold int32  `json:"lowStockThreshold"`
	LowStock          bool   `json:"lowStock"`
}

type AvailabilityResponse struct {
	Sku       string `json:"sku"`
	Quantity  int32  `json:"quantity"`
	Available bool   `json:"available"`
}

func toProductResponse(p *domain.Product) ProductResponse {
	return ProductResponse{
		ID:          p.ID,
		Sku:         p.Sku,
		Name:        p.Name,
		Description: p.Description,
		Price:       p.Price,
		Category:    p.Category,
		ImageURL:    p.ImageURL,
		CreatedAt:   p.CreatedAt,
	}
}

func toProductDetailsResponse(d *domain.ProductDetails) ProductDetailsResponse {
	return ProductDetailsResponse{
		ProductResponse:   toProductResponse(&d.Product),
		TotalQuantity:     d.TotalQuantity,
		AvailableQuantity: d.AvailableQuantity,
		InStock:           d.InStock,
		LowStock:          d.LowStock,
	}
}

func toStockResponse(s *domain.StockLevel) StockResponse {
	return StockResponse{
		Sku:               s.Sku,
		Quantity:          s.Quantity,
		ReservedQuantity:  s.Reserved,
		AvailableQuantity: s.Available(),
		LowStockThreshold: s.LowStockThreshold,
		LowStock:          s.IsLow(),
	}
}
