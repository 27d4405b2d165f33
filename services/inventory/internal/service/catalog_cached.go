package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sakashimaa/go-pet-project/pkg/mylogger"
	"github.com/sakashimaa/go-pet-project/services/inventory/internal/domain"
	"go.uber.org/zap"
)

type cachedCatalogService struct {
	next        CatalogService
	redisClient *redis.Client
	cacheTTL    time.Duration
	logger      *zap.Logger
}

// NewCachedCatalogService serves sku lookups from Redis. A Redis failure falls through to next.
func NewCachedCatalogService(next CatalogService, redisClient *redis.Client, ttl time.Duration, logger *zap.Logger) CatalogService {
	return &cachedCatalogService{
		next:        next,
		redisClient: redisClient,
		cacheTTL:    ttl,
		logger:      logger,
	}
}

func skuKey(sku string) string {
	return fmt.Sprintf("product:sku:%s", sku)
}

func (s *cachedCatalogService) Create(ctx context.Context, product *domain.Product) (*domain.Product, error) {
	created, err := s.next.Create(ctx, product)
	if err != nil {
		return nil, err
	}

	s.redisClient.Del(ctx, skuKey(created.Sku))
	return created, nil
}

func (s *cachedCatalogService) FindByID(ctx context.Context, id int64) (*domain.Product, error) {
	return s.next.FindByID(ctx, id)
}

func (s *cachedCatalogService) FindBySku(ctx context.Context, sku string) (*domain.Product, error) {
	key := skuKey(sku)

	val, err := s.redisClient.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var product domain.Product
		if err := json.Unmarshal(val, &product); err == nil {
			return &product, nil
		}
		mylogger.Warn(ctx, s.logger, "Dropping unreadable cache entry", zap.String("key", key))
		s.redisClient.Del(ctx, key)
	case !errors.Is(err, redis.Nil):
		mylogger.Warn(ctx, s.logger, "Cache read failed", zap.String("key", key), zap.Error(err))
	}

	product, err := s.next.FindBySku(ctx, sku)
	if err != nil {
		return nil, err
	}

	if data, err := json.Marshal(product); err == nil {
		if err := s.redisClient.Set(ctx, key, data, s.cacheTTL).Err(); err != nil {
			mylogger.Warn(ctx, s.logger, "Cache write failed", zap.String("key", key), zap.Error(err))
		}
	}

	return product, nil
}

func (s *cachedCatalogService) List(ctx context.Context, limit, offset int64, search, category string) ([]domain.Product, int64, error) {
	return s.next.List(ctx, limit, offset, search, category)
}
