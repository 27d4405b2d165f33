package tests

import (
	"github.com/sakashimaa/go-pet-project/services/order/internal/domain"
	"github.com/sakashimaa/go-pet-project/services/order/internal/service"
)

func (s *IntegrationTestSuite) TestCreateOrder_Success() {
	order := s.createOrder(service.ItemInput{Sku: "A", Quantity: 2}, service.ItemInput{Sku: "B", Quantity: 1})

	s.Equal(int64(2550), order.TotalAmount)
	s.Equal("pending", s.statusOf(order.OrderNumber))
	s.Equal("reserved", s.Ledger.state(order.ReservationToken, "A"))
	s.Equal("reserved", s.Ledger.state(order.ReservationToken, "B"))

	s.eventuallyPublished(order.OrderNumber, "OrderCreated")
}

func (s *IntegrationTestSuite) TestCreateOrder_RejectedReserveReleasesEarlierItems() {
	s.Ledger.failReserve["B"] = true

	_, err := s.OrderService.CreateOrder(s.Ctx, service.CreateOrderInput{
		ShippingAddress: "X",
		Items:           []service.ItemInput{{Sku: "A", Quantity: 2}, {Sku: "B", Quantity: 1}},
	})
	s.Require().ErrorIs(err, domain.ErrInvalidRequest)

	var orders int
	s.Require().NoError(s.DbPool.QueryRow(s.Ctx, `SELECT COUNT(*) FROM orders`).Scan(&orders))
	s.Zero(orders)

	s.Ledger.mu.Lock()
	defer s.Ledger.mu.Unlock()
	s.Equal(int32(10), s.Ledger.stock["A"])
}

func (s *IntegrationTestSuite) TestCreateOrder_UnknownSku() {
	_, err := s.OrderService.CreateOrder(s.Ctx, service.CreateOrderInput{
		ShippingAddress: "X",
		Items:           []service.ItemInput{{Sku: "ZZZ", Quantity: 1}},
	})

	s.Require().ErrorIs(err, domain.ErrInvalidRequest)
}
