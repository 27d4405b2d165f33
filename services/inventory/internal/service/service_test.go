package service

import (
	"testing"
	"time"

	generalDomain "github.com/sakashimaa/go-pet-project/pkg/domain"
	"github.com/sakashimaa/go-pet-project/pkg/testsuite"
	"github.com/sakashimaa/go-pet-project/services/inventory/internal/domain"
	"github.com/sakashimaa/go-pet-project/services/inventory/internal/repository"
	"github.com/stretchr/testify/suite"
	"go.uber.org/zap"
)

type InventorySuite struct {
	testsuite.BaseSuite

	inventory InventoryService
	catalog   CatalogService
	cached    CatalogService
	details   DetailsService
}

func (s *InventorySuite) SetupSuite() {
	s.SetupInfrastructure(testsuite.Infrastructure{
		MigrationsPath: "../../migrations",
		WithRedis:      true,
	})

	logger := zap.NewNop()
	stockRepo := repository.NewStockRepository(logger)

	s.inventory = NewInventoryService(s.DbPool, stockRepo, 10, logger)
	s.catalog = NewCatalogService(s.DbPool, repository.NewProductRepository(s.DbPool, logger), stockRepo, 10, logger)
	s.cached = NewCachedCatalogService(s.catalog, s.Redis, time.Minute, logger)
	s.details = NewDetailsService(s.cached, s.inventory, logger)
}

func (s *InventorySuite) TearDownSuite() {
	s.TearDownInfrastructure()
}

func (s *InventorySuite) SetupTest() {
	s.TruncateTables("products", "inventory", "reservations", "processed_events")
	s.Require().NoError(s.Redis.FlushAll(s.Ctx).Err())
}

func (s *InventorySuite) seed(sku string, quantity int32) {
	_, err := s.catalog.Create(s.Ctx, &domain.Product{Sku: sku, Name: "Product " + sku, Price: 1000})
	s.Require().NoError(err)

	if quantity > 0 {
		_, err = s.inventory.AddStock(s.Ctx, sku, quantity)
		s.Require().NoError(err)
	}
}

func (s *InventorySuite) TestReserve_HoldsStockOncePerToken() {
	s.seed("A", 25)

	in := ReservationInput{Token: "t-1", Sku: "A", Quantity: 5}

	level, err := s.inventory.Reserve(s.Ctx, in)
	s.Require().NoError(err)
	s.Equal(int32(20), level.Available())

	level, err = s.inventory.Reserve(s.Ctx, in)
	s.Require().NoError(err)
	s.Equal(int32(5), level.Reserved)
}

func (s *InventorySuite) TestReserve_InsufficientStock() {
	s.seed("A", 3)

	_, err := s.inventory.Reserve(s.Ctx, ReservationInput{Token: "t-1", Sku: "A", Quantity: 4})
	s.Require().ErrorIs(err, domain.ErrInsufficientStock)

	level, err := s.inventory.GetStock(s.Ctx, "A")
	s.Require().NoError(err)
	s.Zero(level.Reserved)
}

func (s *InventorySuite) TestReserve_UnknownSku() {
	_, err := s.inventory.Reserve(s.Ctx, ReservationInput{Token: "t-1", Sku: "ZZZ", Quantity: 1})
	s.Require().ErrorIs(err, domain.ErrNotFound)
}

func (s *InventorySuite) TestRelease_ReturnsHeldStock() {
	s.seed("A", 10)

	in := ReservationInput{Token: "t-1", Sku: "A", Quantity: 4}
	_, err := s.inventory.Reserve(s.Ctx, in)
	s.Require().NoError(err)

	level, err := s.inventory.Release(s.Ctx, in)
	s.Require().NoError(err)
	s.Zero(level.Reserved)

	level, err = s.inventory.Release(s.Ctx, in)
	s.Require().NoError(err)
	s.Zero(level.Reserved)
	s.Equal(int32(10), level.Available())
}

func (s *InventorySuite) TestRelease_BeforeReserveRefusesLateReserve() {
	s.seed("A", 10)

	in := ReservationInput{Token: "t-1", Sku: "A", Quantity: 4}

	level, err := s.inventory.Release(s.Ctx, in)
	s.Require().NoError(err)
	s.Zero(level.Reserved)

	_, err = s.inventory.Reserve(s.Ctx, in)
	s.Require().ErrorIs(err, domain.ErrReservationConflict)
}

func (s *InventorySuite) TestConfirmDeduction() {
	s.seed("A", 10)

	in := ReservationInput{Token: "t-1", Sku: "A", Quantity: 4}
	_, err := s.inventory.Reserve(s.Ctx, in)
	s.Require().NoError(err)

	level, err := s.inventory.ConfirmDeduction(s.Ctx, in)
	s.Require().NoError(err)
	s.Equal(int32(6), level.Quantity)
	s.Zero(level.Reserved)

	level, err = s.inventory.ConfirmDeduction(s.Ctx, in)
	s.Require().NoError(err)
	s.Equal(int32(6), level.Quantity)

	_, err = s.inventory.Release(s.Ctx, in)
	s.Require().ErrorIs(err, domain.ErrReservationConflict)
}

func (s *InventorySuite) TestConfirmDeduction_WithoutReservation() {
	s.seed("A", 10)

	_, err := s.inventory.ConfirmDeduction(s.Ctx, ReservationInput{Token: "t-9", Sku: "A", Quantity: 1})
	s.Require().ErrorIs(err, domain.ErrNotFound)
}

func (s *InventorySuite) TestIsInStock() {
	s.seed("A", 2)

	ok, err := s.inventory.IsInStock(s.Ctx, "A", 2)
	s.Require().NoError(err)
	s.True(ok)

	ok, err = s.inventory.IsInStock(s.Ctx, "A", 3)
	s.Require().NoError(err)
	s.False(ok)

	ok, err = s.inventory.IsInStock(s.Ctx, "unknown", 1)
	s.Require().NoError(err)
	s.False(ok)
}

func (s *InventorySuite) TestLowStockAlerts() {
	s.seed("A", 50)
	s.seed("B", 8)

	levels, err := s.inventory.LowStockAlerts(s.Ctx)
	s.Require().NoError(err)
	s.Require().Len(levels, 1)
	s.Equal("B", levels[0].Sku)
	s.True(levels[0].IsLow())
}

func (s *InventorySuite) TestReleaseOrder_AppliedOnce() {
	s.seed("A", 10)
	s.seed("B", 10)

	for _, sku := range []string{"A", "B"} {
		_, err := s.inventory.Reserve(s.Ctx, ReservationInput{Token: "t-1", Sku: sku, Quantity: 3})
		s.Require().NoError(err)
	}

	event := &generalDomain.OrderCancelledEvent{
		OrderNumber:      "AB12CD34",
		ReservationToken: "t-1",
		Items: []generalDomain.OrderItem{
			{Sku: "A", Quantity: 3},
			{Sku: "B", Quantity: 3},
			{Sku: "gone", Quantity: 1},
		},
	}

	s.Require().NoError(s.inventory.ReleaseOrder(s.Ctx, "order_events:OrderCancelled:1", event))
	s.Require().NoError(s.inventory.ReleaseOrder(s.Ctx, "order_events:OrderCancelled:1", event))

	for _, sku := range []string{"A", "B"} {
		level, err := s.inventory.GetStock(s.Ctx, sku)
		s.Require().NoError(err)
		s.Zero(level.Reserved)
	}
}

func (s *InventorySuite) TestCatalog_DuplicateSku() {
	s.seed("A", 0)

	_, err := s.catalog.Create(s.Ctx, &domain.Product{Sku: "A", Name: "again", Price: 1})
	s.Require().ErrorIs(err, domain.ErrInvalidRequest)
}

func (s *InventorySuite) TestCatalog_ListFilters() {
	_, err := s.catalog.Create(s.Ctx, &domain.Product{Sku: "K1", Name: "Keyboard", Category: "input", Price: 5000})
	s.Require().NoError(err)
	_, err = s.catalog.Create(s.Ctx, &domain.Product{Sku: "M1", Name: "Mouse", Category: "input", Price: 2000})
	s.Require().NoError(err)
	_, err = s.catalog.Create(s.Ctx, &domain.Product{Sku: "D1", Name: "Display", Category: "screens", Price: 20000})
	s.Require().NoError(err)

	products, total, err := s.catalog.List(s.Ctx, 10, 0, "", "input")
	s.Require().NoError(err)
	s.Equal(int64(2), total)
	s.Len(products, 2)

	products, total, err = s.catalog.List(s.Ctx, 10, 0, "key", "")
	s.Require().NoError(err)
	s.Equal(int64(1), total)
	s.Equal("K1", products[0].Sku)
}

func (s *InventorySuite) TestCachedCatalog_ServesFromRedis() {
	s.seed("A", 0)

	product, err := s.cached.FindBySku(s.Ctx, "A")
	s.Require().NoError(err)
	s.Equal(int64(1000), product.Price)

	exists, err := s.Redis.Exists(s.Ctx, skuKey("A")).Result()
	s.Require().NoError(err)
	s.Equal(int64(1), exists)

	_, err = s.DbPool.Exec(s.Ctx, `UPDATE products SET price = 1 WHERE sku = 'A'`)
	s.Require().NoError(err)

	product, err = s.cached.FindBySku(s.Ctx, "A")
	s.Require().NoError(err)
	s.Equal(int64(1000), product.Price)
}

func (s *InventorySuite) TestCachedCatalog_MissIsNotCached() {
	_, err := s.cached.FindBySku(s.Ctx, "missing")
	s.Require().ErrorIs(err, domain.ErrNotFound)

	exists, err := s.Redis.Exists(s.Ctx, skuKey("missing")).Result()
	s.Require().NoError(err)
	s.Zero(exists)
}

func (s *InventorySuite) TestProductDetails_JoinsStock() {
	s.seed("A", 25)
	_, err := s.inventory.Reserve(s.Ctx, ReservationInput{Token: "t-1", Sku: "A", Quantity: 20})
	s.Require().NoError(err)

	product, err := s.catalog.FindBySku(s.Ctx, "A")
	s.Require().NoError(err)

	details, err := s.details.GetProductDetails(s.Ctx, product.ID)
	s.Require().NoError(err)
	s.Equal("A", details.Sku)
	s.Equal(int64(1000), details.Price)
	s.Equal(int32(25), details.TotalQuantity)
	s.Equal(int32(5), details.AvailableQuantity)
	s.True(details.InStock)
	s.True(details.LowStock)
}

func (s *InventorySuite) TestProductDetails_MissingStockIsZeroed() {
	s.seed("A", 0)

	product, err := s.catalog.FindBySku(s.Ctx, "A")
	s.Require().NoError(err)

	_, err = s.DbPool.Exec(s.Ctx, `DELETE FROM inventory WHERE sku = 'A'`)
	s.Require().NoError(err)

	details, err := s.details.GetProductDetails(s.Ctx, product.ID)
	s.Require().NoError(err)
	s.Equal("Product A", details.Name)
	s.Zero(details.TotalQuantity)
	s.Zero(details.AvailableQuantity)
	s.False(details.InStock)
	s.False(details.LowStock)
}

func (s *InventorySuite) TestProductDetails_UnknownProduct() {
	_, err := s.details.GetProductDetails(s.Ctx, 999)
	s.Require().ErrorIs(err, domain.ErrNotFound)
}

func TestInventorySuite(t *testing.T) {
	if testing.Short() {
		t.Skip("integration suite needs docker")
	}

	suite.Run(t, new(InventorySuite))
}
