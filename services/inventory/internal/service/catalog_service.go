package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sakashimaa/go-pet-project/pkg/mylogger"
	"github.com/sakashimaa/go-pet-project/services/inventory/internal/domain"
	"github.com/sakashimaa/go-pet-project/services/inventory/internal/repository"
	"go.uber.org/zap"
)

const maxPageSize = 100

type CatalogService interface {
	Create(ctx context.Context, product *domain.Product) (*domain.Product, error)
	FindByID(ctx context.Context, id int64) (*domain.Product, error)
	FindBySku(ctx context.Context, sku string) (*domain.Product, error)
	List(ctx context.Context, limit, offset int64, search, category string) ([]domain.Product, int64, error)
}

type catalogService struct {
	pool        *pgxpool.Pool
	productRepo repository.ProductRepository
	stockRepo   repository.StockRepository
	threshold   int32
	logger      *zap.Logger
}

func NewCatalogService(
	pool *pgxpool.Pool,
	productRepo repository.ProductRepository,
	stockRepo repository.StockRepository,
	lowStockThreshold int32,
	logger *zap.Logger,
) CatalogService {
	return &catalogService{
		pool:        pool,
		productRepo: productRepo,
		stockRepo:   stockRepo,
		threshold:   lowStockThreshold,
		logger:      logger,
	}
}

// Create registers the product and opens an empty inventory record for its sku.
func (s *catalogService) Create(ctx context.Context, product *domain.Product) (*domain.Product, error) {
	product.Sku = strings.TrimSpace(product.Sku)
	if product.Sku == "" {
		return nil, fmt.Errorf("%w: sku is required", domain.ErrInvalidRequest)
	}
	if product.Price < 0 {
		return nil, fmt.Errorf("%w: price must not be negative", domain.ErrInvalidRequest)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		mylogger.Error(ctx, s.logger, "Error starting transaction", zap.Error(err))
		return nil, err
	}
	defer func() {
		cleanupCtx := context.WithoutCancel(ctx)

		if err := tx.Rollback(cleanupCtx); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
			mylogger.Warn(cleanupCtx, s.logger, "Error rolling back transaction", zap.Error(err))
		}
	}()

	if err := s.productRepo.Create(ctx, tx, product); err != nil {
		return nil, translate(err)
	}

	if err := s.stockRepo.Ensure(ctx, tx, product.Sku, s.threshold); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		mylogger.Error(ctx, s.logger, "Error commiting transaction", zap.Error(err))
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	mylogger.Info(ctx, s.logger, "Product created", zap.String("sku", product.Sku), zap.Int64("id", product.ID))

	return product, nil
}

func (s *catalogService) FindByID(ctx context.Context, id int64) (*domain.Product, error) {
	product, err := s.productRepo.GetByID(ctx, id)
	if err != nil {
		return nil, translate(err)
	}

	return product, nil
}

func (s *catalogService) FindBySku(ctx context.Context, sku string) (*domain.Product, error) {
	product, err := s.productRepo.GetBySku(ctx, sku)
	if err != nil {
		return nil, translate(err)
	}

	return product, nil
}

func (s *catalogService) List(ctx context.Context, limit, offset int64, search, category string) ([]domain.Product, int64, error) {
	if limit <= 0 || limit > maxPageSize {
		limit = maxPageSize
	}
	if offset < 0 {
		offset = 0
	}

	products, total, err := s.productRepo.List(ctx, limit, offset, search, category)
	if err != nil {
		return nil, 0, fmt.Errorf("error listing products: %w", err)
	}

	return products, total, nil
}
