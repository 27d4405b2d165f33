package service

import (
	"context"

	"github.com/sakashimaa/go-pet-project/pkg/mylogger"
	"github.com/sakashimaa/go-pet-project/services/inventory/internal/domain"
	"go.uber.org/zap"
)

type DetailsService interface {
	GetProductDetails(ctx context.Context, id int64) (*domain.ProductDetails, error)
}

type detailsService struct {
	catalog   CatalogService
	inventory InventoryService
	logger    *zap.Logger
}

// NewDetailsService degrades to zeroed stock when the ledger lookup fails; only a missing product is an error.
func NewDetailsService(catalog CatalogService, inventory InventoryService, logger *zap.Logger) DetailsService {
	return &detailsService{
		catalog:   catalog,
		inventory: inventory,
		logger:    logger,
	}
}

func (s *detailsService) GetProductDetails(ctx context.Context, id int64) (*domain.ProductDetails, error) {
	product, err := s.catalog.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	details := &domain.ProductDetails{Product: *product}

	level, err := s.inventory.GetStock(ctx, product.Sku)
	if err != nil {
		mylogger.Warn(ctx, s.logger, "Stock unavailable for product details",
			zap.Int64("product_id", id),
			zap.String("sku", product.Sku),
			zap.Error(err),
		)
		return details, nil
	}

	details.TotalQuantity = level.Quantity
	details.AvailableQuantity = level.Available()
	details.InStock = level.Available() > 0
	details.LowStock = level.IsLow()

	return details, nil
}
