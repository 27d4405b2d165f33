package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	generalDomain "github.com/sakashimaa/go-pet-project/pkg/domain"
	"github.com/sakashimaa/go-pet-project/pkg/mylogger"
	"github.com/sakashimaa/go-pet-project/services/order/internal/cache"
	"github.com/sakashimaa/go-pet-project/services/order/internal/domain"
	"github.com/sakashimaa/go-pet-project/services/order/internal/gateway"
	"github.com/sakashimaa/go-pet-project/services/order/internal/repository"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

type ItemInput struct {
	Sku      string
	Quantity int32
}

type CreateOrderInput struct {
	UserID          string
	ShippingAddress string
	Items           []ItemInput
	IdempotencyKey  string
}

type OrderService interface {
	CreateOrder(ctx context.Context, in CreateOrderInput) (*domain.Order, error)
	GetOrder(ctx context.Context, orderNumber string) (*domain.Order, error)
	CancelOrder(ctx context.Context, orderNumber string) (*domain.Order, error)
	UpdateOrderStatus(ctx context.Context, orderNumber, status string) (*domain.Order, error)
	PayOrder(ctx context.Context, orderNumber, method string) (domain.PaymentAck, error)
	HandlePaymentSucceeded(ctx context.Context, eventKey string, event *generalDomain.PaymentSucceededEvent) error
}

type orderService struct {
	store       repository.OrderStore
	catalog     gateway.CatalogGateway
	stock       gateway.StockGateway
	payments    gateway.PaymentGateway
	idempotency cache.IdempotencyStore
	logger      *zap.Logger
	tracer      trace.Tracer
}

// NewOrderService wires the saga. idempotency may be nil, in which case X-Idempotency-Key is ignored.
func NewOrderService(
	store repository.OrderStore,
	catalog gateway.CatalogGateway,
	stock gateway.StockGateway,
	payments gateway.PaymentGateway,
	idempotency cache.IdempotencyStore,
	logger *zap.Logger,
) OrderService {
	return &orderService{
		store:       store,
		catalog:     catalog,
		stock:       stock,
		payments:    payments,
		idempotency: idempotency,
		logger:      logger,
		tracer:      otel.Tracer("order_service"),
	}
}

type reservation struct {
	sku      string
	quantity int32
}

func (s *orderService) CreateOrder(ctx context.Context, in CreateOrderInput) (*domain.Order, error) {
	ctx, span := s.tracer.Start(ctx, "OrderService.CreateOrder")
	defer span.End()

	span.SetAttributes(
		attribute.String("user_id", in.UserID),
		attribute.Int("items_count", len(in.Items)),
	)

	if err := validateItems(in.Items); err != nil {
		return nil, err
	}

	key := in.IdempotencyKey
	if key != "" && s.idempotency != nil {
		existing, err := s.idempotency.Begin(ctx, key)
		switch {
		case errors.Is(err, cache.ErrInProgress):
			return nil, fmt.Errorf("%w: %v, retry later", domain.ErrUnavailable, err)
		case err != nil:
			mylogger.Warn(ctx, s.logger, "Idempotency store unavailable, continuing without it", zap.Error(err))
			key = ""
		case existing != "":
			mylogger.Info(ctx, s.logger, "Replaying order for idempotency key", zap.String("order_number", existing))
			return s.GetOrder(ctx, existing)
		}
	} else {
		key = ""
	}

	order, err := s.runSaga(ctx, in)

	if key != "" {
		detached := context.WithoutCancel(ctx)
		if err != nil {
			if abandonErr := s.idempotency.Abandon(detached, key); abandonErr != nil {
				mylogger.Warn(detached, s.logger, "Failed to release idempotency key", zap.Error(abandonErr))
			}
		} else if completeErr := s.idempotency.Complete(detached, key, order.OrderNumber); completeErr != nil {
			mylogger.Warn(detached, s.logger, "Failed to store idempotency key", zap.Error(completeErr))
		}
	}

	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	return order, nil
}

// runSaga reserves every line in request order, then persists the order. Any failure after the first reserve
// releases what was acquired; the original failure is what the caller sees.
func (s *orderService) runSaga(ctx context.Context, in CreateOrderInput) (*domain.Order, error) {
	order := domain.NewOrder(in.UserID, in.ShippingAddress)
	reserved := make([]reservation, 0, len(in.Items))

	fail := func(err error) (*domain.Order, error) {
		s.compensate(ctx, order, reserved)
		return nil, err
	}

	for _, item := range in.Items {
		product, err := s.catalog.LookupBySku(ctx, item.Sku)
		if err != nil {
			if errors.Is(err, gateway.ErrNotFound) {
				return fail(fmt.Errorf("%w: product not found: %s", domain.ErrInvalidRequest, item.Sku))
			}
			return fail(s.translate(ctx, "lookup", item.Sku, err))
		}

		available, err := s.stock.IsAvailable(ctx, item.Sku, item.Quantity)
		if err != nil {
			return fail(s.translate(ctx, "availability", item.Sku, err))
		}
		if !available {
			return fail(fmt.Errorf("%w: insufficient stock for %s", domain.ErrInvalidRequest, item.Sku))
		}

		if err := s.stock.Reserve(ctx, order.ReservationToken, item.Sku, item.Quantity); err != nil {
			if !errors.Is(err, gateway.ErrRejected) && !errors.Is(err, gateway.ErrNotFound) {
				// the ledger may have applied it; release is a no-op for a reservation that never happened
				reserved = append(reserved, reservation{sku: item.Sku, quantity: item.Quantity})
			}

			if errors.Is(err, gateway.ErrRejected) {
				return fail(fmt.Errorf("%w: could not reserve %s: %v", domain.ErrInvalidRequest, item.Sku, err))
			}
			return fail(s.translate(ctx, "reserve", item.Sku, err))
		}
		reserved = append(reserved, reservation{sku: item.Sku, quantity: item.Quantity})

		order.AddLineItem(domain.NewLineItem(item.Sku, item.Quantity, product.UnitPrice))
	}

	if err := s.store.Create(ctx, order); err != nil {
		if errors.Is(err, domain.ErrInvalidRequest) {
			return fail(err)
		}

		mylogger.Error(
			ctx,
			s.logger,
			"Failed to persist order",
			zap.String("order_number", order.OrderNumber),
			zap.Error(err),
		)

		return fail(fmt.Errorf("%w: failed to persist order", domain.ErrInternal))
	}

	mylogger.Info(
		ctx,
		s.logger,
		"Order created",
		zap.String("order_number", order.OrderNumber),
		zap.Int64("total_amount", order.TotalAmount),
	)

	return order, nil
}

func (s *orderService) compensate(ctx context.Context, order *domain.Order, reserved []reservation) {
	if len(reserved) == 0 {
		return
	}

	ctx = context.WithoutCancel(ctx)
	for _, r := range reserved {
		s.release(ctx, order, r.sku, r.quantity, "compensate")
	}
}

func (s *orderService) release(ctx context.Context, order *domain.Order, sku string, quantity int32, step string) {
	if err := s.stock.Release(ctx, order.ReservationToken, sku, quantity); err != nil {
		mylogger.Error(
			ctx,
			s.logger,
			"Failed to release reservation",
			zap.String("order_number", order.OrderNumber),
			zap.String("sku", sku),
			zap.Int32("quantity", quantity),
			zap.String("step", step),
			zap.Error(err),
		)
		return
	}

	mylogger.Info(
		ctx,
		s.logger,
		"Reservation released",
		zap.String("order_number", order.OrderNumber),
		zap.String("sku", sku),
		zap.String("step", step),
	)
}

func (s *orderService) GetOrder(ctx context.Context, orderNumber string) (*domain.Order, error) {
	ctx, span := s.tracer.Start(ctx, "OrderService.GetOrder")
	defer span.End()

	order, err := s.store.GetByNumber(ctx, orderNumber)
	if err != nil {
		return nil, s.storeError(ctx, orderNumber, err)
	}

	return order, nil
}

func (s *orderService) CancelOrder(ctx context.Context, orderNumber string) (*domain.Order, error) {
	ctx, span := s.tracer.Start(ctx, "OrderService.CancelOrder")
	defer span.End()

	span.SetAttributes(attribute.String("order_number", orderNumber))

	// releases run under the order row lock and must finish even if the caller goes away
	ctx = context.WithoutCancel(ctx)

	released := false
	order, err := s.store.Cancel(ctx, orderNumber, func(ctx context.Context, order *domain.Order) {
		released = true
		for _, item := range order.Items {
			s.release(ctx, order, item.Sku, item.Quantity, "cancel")
		}
	})
	if errors.Is(err, repository.ErrStatusConflict) && order != nil {
		return nil, fmt.Errorf("%w: order %s is %s and cannot be cancelled", domain.ErrInvalidRequest, orderNumber, order.Status)
	}
	if err != nil {
		span.RecordError(err)
		return nil, s.storeError(ctx, orderNumber, err)
	}

	if released {
		mylogger.Info(ctx, s.logger, "Order cancelled", zap.String("order_number", orderNumber))
	}

	return order, nil
}

func (s *orderService) UpdateOrderStatus(ctx context.Context, orderNumber, rawStatus string) (*domain.Order, error) {
	ctx, span := s.tracer.Start(ctx, "OrderService.UpdateOrderStatus")
	defer span.End()

	span.SetAttributes(
		attribute.String("order_number", orderNumber),
		attribute.String("status", rawStatus),
	)

	status, err := domain.ParseOrderStatus(rawStatus)
	if err != nil {
		return nil, err
	}

	order, err := s.store.UpdateStatus(ctx, orderNumber, status)
	if err != nil {
		span.RecordError(err)
		return nil, s.storeError(ctx, orderNumber, err)
	}

	if status == domain.OrderStatusDelivered {
		s.confirmAll(context.WithoutCancel(ctx), order)
	}

	mylogger.Info(
		ctx,
		s.logger,
		"Order status updated",
		zap.String("order_number", orderNumber),
		zap.String("status", string(status)),
	)

	return order, nil
}

func (s *orderService) confirmAll(ctx context.Context, order *domain.Order) {
	for _, item := range order.Items {
		if err := s.stock.Confirm(ctx, order.ReservationToken, item.Sku, item.Quantity); err != nil {
			mylogger.Error(
				ctx,
				s.logger,
				"Failed to confirm reservation",
				zap.String("order_number", order.OrderNumber),
				zap.String("sku", item.Sku),
				zap.String("step", "confirm"),
				zap.Error(err),
			)
		}
	}
}

func (s *orderService) PayOrder(ctx context.Context, orderNumber, method string) (domain.PaymentAck, error) {
	ctx, span := s.tracer.Start(ctx, "OrderService.PayOrder")
	defer span.End()

	span.SetAttributes(attribute.String("order_number", orderNumber))

	order, err := s.store.GetByNumber(ctx, orderNumber)
	if err != nil {
		return domain.PaymentAck{}, s.storeError(ctx, orderNumber, err)
	}

	if order.Status != domain.OrderStatusPending {
		return domain.PaymentAck{}, fmt.Errorf("%w: order %s is %s, only pending orders can be paid", domain.ErrInvalidRequest, orderNumber, order.Status)
	}

	method = strings.ToUpper(strings.TrimSpace(method))
	if method == "" {
		method = domain.DefaultPaymentMethod
	}

	ack, err := s.payments.InitiatePayment(ctx, orderNumber, order.TotalAmount, method)
	if err != nil {
		span.RecordError(err)
		if errors.Is(err, gateway.ErrRejected) {
			return domain.PaymentAck{}, fmt.Errorf("%w: payment rejected: %v", domain.ErrInvalidRequest, err)
		}
		return domain.PaymentAck{}, s.translate(ctx, "payment", orderNumber, err)
	}

	mylogger.Info(
		ctx,
		s.logger,
		"Payment initiated",
		zap.String("order_number", orderNumber),
		zap.String("transaction_id", ack.TransactionID),
	)

	return ack, nil
}

func (s *orderService) HandlePaymentSucceeded(ctx context.Context, eventKey string, event *generalDomain.PaymentSucceededEvent) error {
	ctx, span := s.tracer.Start(ctx, "OrderService.HandlePaymentSucceeded")
	defer span.End()

	span.SetAttributes(
		attribute.String("order_number", event.OrderNumber),
		attribute.String("event_key", eventKey),
	)

	applied, err := s.store.MarkPaidOnce(ctx, eventKey, event.OrderNumber)
	if err != nil {
		span.RecordError(err)

		mylogger.Error(
			ctx,
			s.logger,
			"Failed to apply payment",
			zap.String("order_number", event.OrderNumber),
			zap.Error(err),
		)

		return err
	}

	if applied {
		mylogger.Info(
			ctx,
			s.logger,
			"Order paid",
			zap.String("order_number", event.OrderNumber),
			zap.String("transaction_id", event.TransactionID),
		)
	}

	return nil
}

func validateItems(items []ItemInput) error {
	if len(items) == 0 {
		return fmt.Errorf("%w: order must have at least one item", domain.ErrInvalidRequest)
	}

	seen := make(map[string]struct{}, len(items))
	for _, item := range items {
		if strings.TrimSpace(item.Sku) == "" {
			return fmt.Errorf("%w: sku is required", domain.ErrInvalidRequest)
		}
		if item.Quantity <= 0 {
			return fmt.Errorf("%w: quantity for %s must be positive", domain.ErrInvalidRequest, item.Sku)
		}
		if _, dup := seen[item.Sku]; dup {
			return fmt.Errorf("%w: duplicate sku %s", domain.ErrInvalidRequest, item.Sku)
		}
		seen[item.Sku] = struct{}{}
	}

	return nil
}

// translate maps a gateway failure onto the domain taxonomy.
func (s *orderService) translate(ctx context.Context, step, subject string, err error) error {
	switch {
	case errors.Is(err, gateway.ErrUnavailable):
		mylogger.Warn(ctx, s.logger, "Downstream unavailable", zap.String("step", step), zap.String("subject", subject), zap.Error(err))
		return fmt.Errorf("%w: %v", domain.ErrUnavailable, err)
	case errors.Is(err, gateway.ErrRejected), errors.Is(err, gateway.ErrNotFound):
		return fmt.Errorf("%w: %s %s: %v", domain.ErrInvalidRequest, step, subject, err)
	default:
		mylogger.Error(ctx, s.logger, "Unexpected downstream error", zap.String("step", step), zap.String("subject", subject), zap.Error(err))
		return fmt.Errorf("%w: %s failed", domain.ErrInternal, step)
	}
}

func (s *orderService) storeError(ctx context.Context, orderNumber string, err error) error {
	if errors.Is(err, repository.ErrOrderNotFound) {
		return fmt.Errorf("%w: order %s", domain.ErrNotFound, orderNumber)
	}

	mylogger.Error(ctx, s.logger, "Order store failure", zap.String("order_number", orderNumber), zap.Error(err))
	return fmt.Errorf("%w: order store failure", domain.ErrInternal)
}
