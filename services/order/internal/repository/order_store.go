package repository

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	generalDomain "github.com/sakashimaa/go-pet-project/pkg/domain"
	"github.com/sakashimaa/go-pet-project/pkg/mylogger"
	"github.com/sakashimaa/go-pet-project/pkg/outbox/dedup"
	outboxDomain "github.com/sakashimaa/go-pet-project/pkg/outbox/domain"
	"github.com/sakashimaa/go-pet-project/pkg/outbox/worker"
	"github.com/sakashimaa/go-pet-project/services/order/internal/domain"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const (
	OrderEventsTopic   = "order_events"
	orderAggregateType = "Order"
	maxNumberAttempts  = 5
)

// OrderStore persists the order aggregate and writes its events to the outbox in the same transaction.
type OrderStore interface {
	Create(ctx context.Context, order *domain.Order) error
	GetByNumber(ctx context.Context, orderNumber string) (*domain.Order, error)
	UpdateStatus(ctx context.Context, orderNumber string, status domain.OrderStatus, allowedFrom ...domain.OrderStatus) (*domain.Order, error)
	MarkPaidOnce(ctx context.Context, eventKey, orderNumber string) (bool, error)
	Cancel(ctx context.Context, orderNumber string, compensate func(ctx context.Context, order *domain.Order)) (*domain.Order, error)
}

type orderStore struct {
	pool       *pgxpool.Pool
	orderRepo  OrderRepository
	outboxRepo worker.OutboxRepository
	topic      string
	logger     *zap.Logger
	tracer     trace.Tracer
}

func NewOrderStore(
	pool *pgxpool.Pool,
	orderRepo OrderRepository,
	outboxRepo worker.OutboxRepository,
	topic string,
	logger *zap.Logger,
) OrderStore {
	if topic == "" {
		topic = OrderEventsTopic
	}

	return &orderStore{
		pool:       pool,
		orderRepo:  orderRepo,
		outboxRepo: outboxRepo,
		topic:      topic,
		logger:     logger,
		tracer:     otel.Tracer("order_store"),
	}
}

func (s *orderStore) Create(ctx context.Context, order *domain.Order) error {
	ctx, span := s.tracer.Start(ctx, "OrderStore.Create")
	defer span.End()

	if err := order.Validate(); err != nil {
		return err
	}

	for attempt := 1; attempt <= maxNumberAttempts; attempt++ {
		err := s.inTx(ctx, func(ctx context.Context, tx pgx.Tx) error {
			if err := s.orderRepo.CreateOrder(ctx, tx, order); err != nil {
				return err
			}

			return s.emit(ctx, tx, order, generalDomain.EventOrderCreated, generalDomain.OrderCreatedEvent{
				OrderNumber: order.OrderNumber,
				UserID:      order.UserID,
				TotalAmount: order.TotalAmount,
				Items:       eventItems(order),
				CreatedAt:   order.CreatedAt,
			})
		})
		if err == nil {
			span.SetAttributes(attribute.String("order_number", order.OrderNumber))
			return nil
		}

		if !errors.Is(err, ErrOrderNumberTaken) {
			span.RecordError(err)
			return err
		}

		order.OrderNumber = domain.NewOrderNumber()
	}

	return ErrOrderNumberExhausted
}

func (s *orderStore) GetByNumber(ctx context.Context, orderNumber string) (*domain.Order, error) {
	ctx, span := s.tracer.Start(ctx, "OrderStore.GetByNumber")
	defer span.End()

	return s.orderRepo.GetOrderByNumber(ctx, s.pool, orderNumber, false)
}

// UpdateStatus locks the order, applies the transition and records the matching event. The returned order is
// the current row: on ErrStatusConflict it shows the status that blocked the write.
func (s *orderStore) UpdateStatus(
	ctx context.Context,
	orderNumber string,
	status domain.OrderStatus,
	allowedFrom ...domain.OrderStatus,
) (*domain.Order, error) {
	ctx, span := s.tracer.Start(ctx, "OrderStore.UpdateStatus")
	defer span.End()

	span.SetAttributes(
		attribute.String("order_number", orderNumber),
		attribute.String("status", string(status)),
	)

	var order *domain.Order
	err := s.inTx(ctx, func(ctx context.Context, tx pgx.Tx) error {
		var err error
		order, err = s.orderRepo.GetOrderByNumber(ctx, tx, orderNumber, true)
		if err != nil {
			return err
		}

		if len(allowedFrom) > 0 && !slices.Contains(allowedFrom, order.Status) {
			return ErrStatusConflict
		}

		if err := s.orderRepo.ChangeOrderStatus(ctx, tx, order, status, allowedFrom...); err != nil {
			return err
		}

		return s.emitStatusEvent(ctx, tx, order)
	})
	if err != nil {
		span.RecordError(err)
		return order, err
	}

	return order, nil
}

// Cancel holds the order row lock while compensate runs and while the cancelled status is written, so no
// concurrent status write can land between the two. An order that is already cancelled is returned as is;
// one that can no longer be cancelled is returned with ErrStatusConflict and compensate is not called.
func (s *orderStore) Cancel(
	ctx context.Context,
	orderNumber string,
	compensate func(ctx context.Context, order *domain.Order),
) (*domain.Order, error) {
	ctx, span := s.tracer.Start(ctx, "OrderStore.Cancel")
	defer span.End()

	span.SetAttributes(attribute.String("order_number", orderNumber))

	var order *domain.Order
	err := s.inTx(ctx, func(ctx context.Context, tx pgx.Tx) error {
		var err error
		order, err = s.orderRepo.GetOrderByNumber(ctx, tx, orderNumber, true)
		if err != nil {
			return err
		}

		if order.Status == domain.OrderStatusCancelled {
			return nil
		}
		if !order.Status.CanCancel() {
			return ErrStatusConflict
		}

		compensate(ctx, order)

		if err := s.orderRepo.ChangeOrderStatus(ctx, tx, order, domain.OrderStatusCancelled, domain.CancellableStatuses()...); err != nil {
			return err
		}

		return s.emitStatusEvent(ctx, tx, order)
	})
	if err != nil {
		span.RecordError(err)
		return order, err
	}

	return order, nil
}

// MarkPaidOnce moves a pending order to paid at most once per eventKey. Unknown orders and orders that already
// left pending are acknowledged without a write.
func (s *orderStore) MarkPaidOnce(ctx context.Context, eventKey, orderNumber string) (bool, error) {
	ctx, span := s.tracer.Start(ctx, "OrderStore.MarkPaidOnce")
	defer span.End()

	applied := false
	err := dedup.ProcessOnce(ctx, s.pool, s.logger, eventKey, func(ctx context.Context, tx pgx.Tx) error {
		order, err := s.orderRepo.GetOrderByNumber(ctx, tx, orderNumber, true)
		if errors.Is(err, ErrOrderNotFound) {
			mylogger.Warn(ctx, s.logger, "Payment for unknown order", zap.String("order_number", orderNumber))
			return nil
		}
		if err != nil {
			return err
		}

		if order.Status != domain.OrderStatusPending {
			mylogger.Info(
				ctx,
				s.logger,
				"Order is no longer pending, payment not applied",
				zap.String("order_number", orderNumber),
				zap.String("status", string(order.Status)),
			)
			return nil
		}

		if err := s.orderRepo.ChangeOrderStatus(ctx, tx, order, domain.OrderStatusPaid, domain.OrderStatusPending); err != nil {
			return err
		}

		applied = true
		return s.emitStatusEvent(ctx, tx, order)
	})
	if err != nil {
		span.RecordError(err)
		return false, err
	}

	return applied, nil
}

func (s *orderStore) emitStatusEvent(ctx context.Context, tx pgx.Tx, order *domain.Order) error {
	if order.Status == domain.OrderStatusCancelled {
		return s.emit(ctx, tx, order, generalDomain.EventOrderCancelled, generalDomain.OrderCancelledEvent{
			OrderNumber:      order.OrderNumber,
			ReservationToken: order.ReservationToken,
			Items:            eventItems(order),
			CancelledAt:      order.UpdatedAt,
		})
	}

	return s.emit(ctx, tx, order, generalDomain.EventOrderStatusChanged, generalDomain.OrderStatusChangedEvent{
		OrderNumber: order.OrderNumber,
		Status:      string(order.Status),
		ChangedAt:   order.UpdatedAt,
	})
}

func (s *orderStore) emit(ctx context.Context, tx pgx.Tx, order *domain.Order, eventType string, payload any) error {
	event, err := outboxDomain.NewOutboxEvent(orderAggregateType, order.OrderNumber, eventType, s.topic, payload)
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", eventType, err)
	}

	if err := s.outboxRepo.SaveOutboxEvent(ctx, tx, event); err != nil {
		mylogger.Error(
			ctx,
			s.logger,
			"Failed to save outbox event",
			zap.String("event_type", eventType),
			zap.Error(err),
		)

		return err
	}

	return nil
}

func (s *orderStore) inTx(ctx context.Context, fn func(ctx context.Context, tx pgx.Tx) error) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		mylogger.Error(ctx, s.logger, "Failed to begin transaction", zap.Error(err))
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		shutdownCtx := context.WithoutCancel(ctx)

		if err := tx.Rollback(shutdownCtx); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
			mylogger.Warn(shutdownCtx, s.logger, "Error rolling back transaction", zap.Error(err))
		}
	}()

	if err := fn(ctx, tx); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		mylogger.Error(ctx, s.logger, "Failed to commit transaction", zap.Error(err))
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

func eventItems(order *domain.Order) []generalDomain.OrderItem {
	items := make([]generalDomain.OrderItem, len(order.Items))
	for i, item := range order.Items {
		items[i] = generalDomain.OrderItem{
			Sku:       item.Sku,
			Quantity:  item.Quantity,
			UnitPrice: item.UnitPrice,
		}
	}
	return items
}

