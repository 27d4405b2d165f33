package repository

import (
	"context"
	"testing"
	"time"

	outboxRepository "github.com/sakashimaa/go-pet-project/pkg/outbox/repository"
	"github.com/sakashimaa/go-pet-project/pkg/testsuite"
	"github.com/sakashimaa/go-pet-project/services/order/internal/domain"
	"github.com/stretchr/testify/suite"
	"go.uber.org/zap"
)

type OrderStoreSuite struct {
	testsuite.BaseSuite

	store OrderStore
}

func (s *OrderStoreSuite) SetupSuite() {
	s.SetupInfrastructure(testsuite.Infrastructure{MigrationsPath: "../../migrations"})
}

func (s *OrderStoreSuite) TearDownSuite() {
	s.TearDownInfrastructure()
}

func (s *OrderStoreSuite) SetupTest() {
	s.TruncateTables("orders", "order_items", "outbox", "processed_events")

	logger := zap.NewNop()
	s.store = NewOrderStore(s.DbPool, NewOrderRepository(logger), outboxRepository.NewOutboxRepository(10), OrderEventsTopic, logger)
}

func (s *OrderStoreSuite) newOrder() *domain.Order {
	order := domain.NewOrder("user-1", "221B Baker Street")
	order.AddLineItem(domain.NewLineItem("SKU-1", 2, 1000))
	order.AddLineItem(domain.NewLineItem("SKU-2", 1, 550))
	return order
}

func (s *OrderStoreSuite) countOutbox(eventType string) int {
	var n int
	err := s.DbPool.QueryRow(s.Ctx, `SELECT COUNT(*) FROM outbox WHERE event_type = $1`, eventType).Scan(&n)
	s.Require().NoError(err)
	return n
}

func (s *OrderStoreSuite) TestCreate_PersistsAggregateAndEvent() {
	order := s.newOrder()

	s.Require().NoError(s.store.Create(s.Ctx, order))
	s.NotZero(order.ID)

	got, err := s.store.GetByNumber(s.Ctx, order.OrderNumber)
	s.Require().NoError(err)

	s.Equal(domain.OrderStatusPending, got.Status)
	s.Equal(int64(2550), got.TotalAmount)
	s.Equal(order.ReservationToken, got.ReservationToken)
	s.Require().Len(got.Items, 2)
	s.Equal("SKU-1", got.Items[0].Sku)
	s.Equal(int64(2000), got.Items[0].Subtotal)
	s.NoError(got.Validate())

	s.Equal(1, s.countOutbox("OrderCreated"))
}

func (s *OrderStoreSuite) TestCreate_EmptyOrderIsNeverPersisted() {
	order := domain.NewOrder("", "nowhere")

	err := s.store.Create(s.Ctx, order)
	s.Require().ErrorIs(err, domain.ErrInvalidRequest)

	var n int
	s.Require().NoError(s.DbPool.QueryRow(s.Ctx, `SELECT COUNT(*) FROM orders`).Scan(&n))
	s.Zero(n)
	s.Zero(s.countOutbox("OrderCreated"))
}

func (s *OrderStoreSuite) TestCreate_RegeneratesTakenOrderNumber() {
	first := s.newOrder()
	s.Require().NoError(s.store.Create(s.Ctx, first))

	second := s.newOrder()
	second.OrderNumber = first.OrderNumber

	s.Require().NoError(s.store.Create(s.Ctx, second))
	s.NotEqual(first.OrderNumber, second.OrderNumber)
	s.Equal(2, s.countOutbox("OrderCreated"))
}

func (s *OrderStoreSuite) TestGetByNumber_NotFound() {
	_, err := s.store.GetByNumber(s.Ctx, "DEADBEEF")
	s.ErrorIs(err, ErrOrderNotFound)
}

func (s *OrderStoreSuite) TestUpdateStatus_ConditionalWriteKeepsShippedOrder() {
	order := s.newOrder()
	s.Require().NoError(s.store.Create(s.Ctx, order))

	_, err := s.store.UpdateStatus(s.Ctx, order.OrderNumber, domain.OrderStatusShipped)
	s.Require().NoError(err)

	current, err := s.store.UpdateStatus(
		s.Ctx,
		order.OrderNumber,
		domain.OrderStatusCancelled,
		domain.CancellableStatuses()...,
	)
	s.Require().ErrorIs(err, ErrStatusConflict)
	s.Equal(domain.OrderStatusShipped, current.Status)

	got, err := s.store.GetByNumber(s.Ctx, order.OrderNumber)
	s.Require().NoError(err)
	s.Equal(domain.OrderStatusShipped, got.Status)
	s.Zero(s.countOutbox("OrderCancelled"))
}

func (s *OrderStoreSuite) TestUpdateStatus_CancelEmitsCancelledEvent() {
	order := s.newOrder()
	s.Require().NoError(s.store.Create(s.Ctx, order))

	updated, err := s.store.UpdateStatus(s.Ctx, order.OrderNumber, domain.OrderStatusCancelled, domain.CancellableStatuses()...)
	s.Require().NoError(err)

	s.Equal(domain.OrderStatusCancelled, updated.Status)
	s.Equal(1, s.countOutbox("OrderCancelled"))
	s.Zero(s.countOutbox("OrderStatusChanged"))
}

func (s *OrderStoreSuite) TestCancel_CompensatesUnderLockAndEmits() {
	order := s.newOrder()
	s.Require().NoError(s.store.Create(s.Ctx, order))

	type shipResult struct {
		order *domain.Order
		err   error
	}
	shipped := make(chan shipResult, 1)

	var compensated *domain.Order
	cancelled, err := s.store.Cancel(s.Ctx, order.OrderNumber, func(ctx context.Context, locked *domain.Order) {
		compensated = locked

		go func() {
			o, err := s.store.UpdateStatus(s.Ctx, order.OrderNumber, domain.OrderStatusShipped, domain.CancellableStatuses()...)
			shipped <- shipResult{order: o, err: err}
		}()

		select {
		case <-shipped:
			s.Fail("status write landed while the cancel held the order")
		case <-time.After(200 * time.Millisecond):
		}
	})
	s.Require().NoError(err)
	s.Equal(domain.OrderStatusCancelled, cancelled.Status)

	s.Require().NotNil(compensated)
	s.Equal(domain.OrderStatusPending, compensated.Status)
	s.Len(compensated.Items, 2)

	res := <-shipped
	s.ErrorIs(res.err, ErrStatusConflict)
	s.Equal(domain.OrderStatusCancelled, res.order.Status)

	s.Equal(1, s.countOutbox("OrderCancelled"))
}

func (s *OrderStoreSuite) TestCancel_ShippedOrderIsNotCompensated() {
	order := s.newOrder()
	s.Require().NoError(s.store.Create(s.Ctx, order))

	_, err := s.store.UpdateStatus(s.Ctx, order.OrderNumber, domain.OrderStatusShipped)
	s.Require().NoError(err)

	called := false
	got, err := s.store.Cancel(s.Ctx, order.OrderNumber, func(context.Context, *domain.Order) { called = true })

	s.Require().ErrorIs(err, ErrStatusConflict)
	s.Equal(domain.OrderStatusShipped, got.Status)
	s.False(called)
	s.Zero(s.countOutbox("OrderCancelled"))
}

func (s *OrderStoreSuite) TestCancel_AlreadyCancelledIsNoop() {
	order := s.newOrder()
	s.Require().NoError(s.store.Create(s.Ctx, order))

	noop := func(context.Context, *domain.Order) {}
	_, err := s.store.Cancel(s.Ctx, order.OrderNumber, noop)
	s.Require().NoError(err)

	called := false
	got, err := s.store.Cancel(s.Ctx, order.OrderNumber, func(context.Context, *domain.Order) { called = true })

	s.Require().NoError(err)
	s.Equal(domain.OrderStatusCancelled, got.Status)
	s.False(called)
	s.Equal(1, s.countOutbox("OrderCancelled"))
}

func (s *OrderStoreSuite) TestUpdateStatus_UnknownOrder() {
	_, err := s.store.UpdateStatus(s.Ctx, "NOPE0000", domain.OrderStatusShipped)
	s.ErrorIs(err, ErrOrderNotFound)
}

func (s *OrderStoreSuite) TestMarkPaidOnce_DeduplicatesEvent() {
	order := s.newOrder()
	s.Require().NoError(s.store.Create(s.Ctx, order))

	applied, err := s.store.MarkPaidOnce(s.Ctx, "payment_events-0-7", order.OrderNumber)
	s.Require().NoError(err)
	s.True(applied)

	applied, err = s.store.MarkPaidOnce(s.Ctx, "payment_events-0-7", order.OrderNumber)
	s.Require().NoError(err)
	s.False(applied)

	got, err := s.store.GetByNumber(s.Ctx, order.OrderNumber)
	s.Require().NoError(err)
	s.Equal(domain.OrderStatusPaid, got.Status)
	s.Equal(1, s.countOutbox("OrderStatusChanged"))
}

func (s *OrderStoreSuite) TestMarkPaidOnce_IgnoresCancelledOrder() {
	order := s.newOrder()
	s.Require().NoError(s.store.Create(s.Ctx, order))

	_, err := s.store.UpdateStatus(s.Ctx, order.OrderNumber, domain.OrderStatusCancelled, domain.CancellableStatuses()...)
	s.Require().NoError(err)

	applied, err := s.store.MarkPaidOnce(s.Ctx, "payment_events-0-8", order.OrderNumber)
	s.Require().NoError(err)
	s.False(applied)

	got, err := s.store.GetByNumber(s.Ctx, order.OrderNumber)
	s.Require().NoError(err)
	s.Equal(domain.OrderStatusCancelled, got.Status)
}

func (s *OrderStoreSuite) TestDeletingOrderCascadesToItems() {
	order := s.newOrder()
	s.Require().NoError(s.store.Create(s.Ctx, order))

	_, err := s.DbPool.Exec(s.Ctx, `DELETE FROM orders WHERE id = $1`, order.ID)
	s.Require().NoError(err)

	var n int
	s.Require().NoError(s.DbPool.QueryRow(s.Ctx, `SELECT COUNT(*) FROM order_items WHERE order_id = $1`, order.ID).Scan(&n))
	s.Zero(n)
}

func TestOrderStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("integration suite needs docker")
	}

	suite.Run(t, new(OrderStoreSuite))
}
