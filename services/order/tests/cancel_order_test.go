package tests

import (
	"github.com/sakashimaa/go-pet-project/services/order/internal/domain"
)

func (s *IntegrationTestSuite) TestCancelOrder_Success() {
	order := s.createOrder()

	cancelled, err := s.OrderService.CancelOrder(s.Ctx, order.OrderNumber)
	s.Require().NoError(err)

	s.Equal(domain.OrderStatusCancelled, cancelled.Status)
	s.Equal("cancelled", s.statusOf(order.OrderNumber))
	s.Equal("released", s.Ledger.state(order.ReservationToken, "A"))

	s.eventuallyPublished(order.OrderNumber, "OrderCancelled")
}

func (s *IntegrationTestSuite) TestCancelOrder_NotFound() {
	_, err := s.OrderService.CancelOrder(s.Ctx, "FFFFFFFF")

	s.Require().ErrorIs(err, domain.ErrNotFound)
}

func (s *IntegrationTestSuite) TestCancelOrder_Idempotency() {
	order := s.createOrder()

	_, err := s.OrderService.CancelOrder(s.Ctx, order.OrderNumber)
	s.Require().NoError(err)

	again, err := s.OrderService.CancelOrder(s.Ctx, order.OrderNumber)
	s.Require().NoError(err)
	s.Equal(domain.OrderStatusCancelled, again.Status)

	var cancelledEvents int
	err = s.DbPool.QueryRow(s.Ctx, `SELECT COUNT(*) FROM outbox WHERE aggregate_id = $1 AND event_type = 'OrderCancelled'`, order.OrderNumber).
		Scan(&cancelledEvents)
	s.Require().NoError(err)
	s.Equal(1, cancelledEvents)
}

func (s *IntegrationTestSuite) TestCancelOrder_FailIfShipped() {
	order := s.createOrder()

	_, err := s.OrderService.UpdateOrderStatus(s.Ctx, order.OrderNumber, "shipped")
	s.Require().NoError(err)

	_, err = s.OrderService.CancelOrder(s.Ctx, order.OrderNumber)
	s.Require().ErrorIs(err, domain.ErrInvalidRequest)
	s.Equal("shipped", s.statusOf(order.OrderNumber))
	s.Equal("reserved", s.Ledger.state(order.ReservationToken, "A"))
}

func (s *IntegrationTestSuite) TestDeliveredConfirmsReservation() {
	order := s.createOrder()

	_, err := s.OrderService.UpdateOrderStatus(s.Ctx, order.OrderNumber, "delivered")
	s.Require().NoError(err)

	s.Equal("confirmed", s.Ledger.state(order.ReservationToken, "A"))
	s.eventuallyPublished(order.OrderNumber, "OrderStatusChanged")
}
