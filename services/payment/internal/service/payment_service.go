package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	generalDomain "github.com/sakashimaa/go-pet-project/pkg/domain"
	"github.com/sakashimaa/go-pet-project/pkg/mylogger"
	"github.com/sakashimaa/go-pet-project/pkg/outbox/dedup"
	outboxDomain "github.com/sakashimaa/go-pet-project/pkg/outbox/domain"
	"github.com/sakashimaa/go-pet-project/pkg/outbox/worker"
	"github.com/sakashimaa/go-pet-project/services/payment/internal/domain"
	"github.com/sakashimaa/go-pet-project/services/payment/internal/repository"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const paymentAggregateType = "Payment"

type InitiateInput struct {
	OrderID string
	Amount  int64
	Method  string
}

type PaymentService interface {
	// Initiate settles the payment for an order. A second call for the same order returns the
	// existing payment with created=false.
	Initiate(ctx context.Context, in InitiateInput) (payment *domain.Payment, created bool, err error)
	GetByTransactionID(ctx context.Context, transactionID string) (*domain.Payment, error)
	GetByOrderID(ctx context.Context, orderID string) (*domain.Payment, error)
	Refund(ctx context.Context, transactionID string) (*domain.Payment, error)
	RefundOrder(ctx context.Context, eventKey string, event *generalDomain.OrderCancelledEvent) error
}

type paymentService struct {
	pool        *pgxpool.Pool
	paymentRepo repository.PaymentRepository
	outboxRepo  worker.OutboxRepository
	topic       string
	logger      *zap.Logger
	tracer      trace.Tracer
}

func NewPaymentService(
	pool *pgxpool.Pool,
	paymentRepo repository.PaymentRepository,
	outboxRepo worker.OutboxRepository,
	topic string,
	logger *zap.Logger,
) PaymentService {
	return &paymentService{
		pool:        pool,
		paymentRepo: paymentRepo,
		outboxRepo:  outboxRepo,
		topic:       topic,
		logger:      logger,
		tracer:      otel.Tracer("service/payment_service"),
	}
}

func (s *paymentService) Initiate(ctx context.Context, in InitiateInput) (*domain.Payment, bool, error) {
	ctx, span := s.tracer.Start(ctx, "PaymentService.Initiate")
	defer span.End()

	in.OrderID = strings.TrimSpace(in.OrderID)
	if in.OrderID == "" {
		return nil, false, fmt.Errorf("%w: orderId is required", domain.ErrInvalidRequest)
	}
	if in.Amount <= 0 {
		return nil, false, fmt.Errorf("%w: amount must be positive", domain.ErrInvalidRequest)
	}
	if in.Method == "" {
		in.Method = domain.DefaultMethod
	}

	mylogger.Info(ctx, s.logger, "Initiating payment", zap.String("order_id", in.OrderID))

	payment := &domain.Payment{
		OrderID:       in.OrderID,
		Amount:        in.Amount,
		Method:        in.Method,
		Status:        domain.PaymentCompleted,
		TransactionID: domain.NewTransactionID(),
	}

	err := s.inTx(ctx, func(ctx context.Context, tx pgx.Tx) error {
		if err := s.paymentRepo.Create(ctx, tx, payment); err != nil {
			return err
		}

		return s.emit(ctx, tx, payment, generalDomain.EventPaymentSucceeded, generalDomain.PaymentSucceededEvent{
			OrderNumber:   payment.OrderID,
			TransactionID: payment.TransactionID,
			Amount:        payment.Amount,
			PaidAt:        payment.CreatedAt,
		})
	})
	if errors.Is(err, repository.ErrPaymentExists) {
		existing, err := s.paymentRepo.GetByOrderID(ctx, s.pool, in.OrderID, false)
		if err != nil {
			return nil, false, translate(err)
		}

		mylogger.Info(
			ctx,
			s.logger,
			"Payment already exists for this order",
			zap.String("order_id", in.OrderID),
			zap.String("transaction_id", existing.TransactionID),
		)

		return existing, false, nil
	}
	if err != nil {
		span.RecordError(err)
		return nil, false, err
	}

	mylogger.Info(
		ctx,
		s.logger,
		"Payment completed",
		zap.String("order_id", payment.OrderID),
		zap.String("transaction_id", payment.TransactionID),
	)

	return payment, true, nil
}

func (s *paymentService) GetByTransactionID(ctx context.Context, transactionID string) (*domain.Payment, error) {
	payment, err := s.paymentRepo.GetByTransactionID(ctx, s.pool, transactionID, false)
	if err != nil {
		return nil, translate(err)
	}

	return payment, nil
}

func (s *paymentService) GetByOrderID(ctx context.Context, orderID string) (*domain.Payment, error) {
	payment, err := s.paymentRepo.GetByOrderID(ctx, s.pool, orderID, false)
	if err != nil {
		return nil, translate(err)
	}

	return payment, nil
}

func (s *paymentService) Refund(ctx context.Context, transactionID string) (*domain.Payment, error) {
	ctx, span := s.tracer.Start(ctx, "PaymentService.Refund")
	defer span.End()

	var payment *domain.Payment
	err := s.inTx(ctx, func(ctx context.Context, tx pgx.Tx) error {
		var err error
		payment, err = s.paymentRepo.GetByTransactionID(ctx, tx, transactionID, true)
		if err != nil {
			return err
		}

		if payment.Status != domain.PaymentCompleted {
			return fmt.Errorf(
				"%w: only completed payments can be refunded, current status %s",
				domain.ErrInvalidRequest, payment.Status,
			)
		}

		return s.refund(ctx, tx, payment)
	})
	if err != nil {
		return nil, translate(err)
	}

	mylogger.Info(ctx, s.logger, "Payment refunded", zap.String("transaction_id", transactionID))

	return payment, nil
}

// RefundOrder refunds the completed payment of a cancelled order, once per event.
func (s *paymentService) RefundOrder(ctx context.Context, eventKey string, event *generalDomain.OrderCancelledEvent) error {
	return dedup.ProcessOnce(ctx, s.pool, s.logger, eventKey, func(ctx context.Context, tx pgx.Tx) error {
		payment, err := s.paymentRepo.GetByOrderID(ctx, tx, event.OrderNumber, true)
		if errors.Is(err, repository.ErrPaymentNotFound) {
			return nil
		}
		if err != nil {
			return err
		}

		if payment.Status != domain.PaymentCompleted {
			mylogger.Info(
				ctx,
				s.logger,
				"Cancelled order has no refundable payment",
				zap.String("order_id", event.OrderNumber),
				zap.String("status", string(payment.Status)),
			)
			return nil
		}

		return s.refund(ctx, tx, payment)
	})
}

func (s *paymentService) refund(ctx context.Context, tx pgx.Tx, payment *domain.Payment) error {
	if err := s.paymentRepo.UpdateStatus(ctx, tx, payment, domain.PaymentRefunded); err != nil {
		return err
	}

	return s.emit(ctx, tx, payment, generalDomain.EventPaymentRefunded, generalDomain.PaymentRefundedEvent{
		OrderNumber:   payment.OrderID,
		TransactionID: payment.TransactionID,
		Amount:        payment.Amount,
		RefundedAt:    payment.UpdatedAt,
	})
}

func (s *paymentService) emit(ctx context.Context, tx pgx.Tx, payment *domain.Payment, eventType string, payload any) error {
	event, err := outboxDomain.NewOutboxEvent(paymentAggregateType, payment.OrderID, eventType, s.topic, payload)
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", eventType, err)
	}

	if err := s.outboxRepo.SaveOutboxEvent(ctx, tx, event); err != nil {
		mylogger.Warn(ctx, s.logger, "Failed to emit event", zap.String("event_type", eventType), zap.Error(err))
		return err
	}

	return nil
}

func (s *paymentService) inTx(ctx context.Context, fn func(ctx context.Context, tx pgx.Tx) error) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		mylogger.Error(ctx, s.logger, "Error beginning transaction", zap.Error(err))
		return fmt.Errorf("error beginning transaction: %w", err)
	}
	defer func() {
		cleanupCtx := context.WithoutCancel(ctx)

		if err := tx.Rollback(cleanupCtx); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
			mylogger.Warn(cleanupCtx, s.logger, "Error rolling back transaction", zap.Error(err))
		}
	}()

	if err := fn(ctx, tx); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

func translate(err error) error {
	if errors.Is(err, repository.ErrPaymentNotFound) {
		return fmt.Errorf("%w: %w", domain.ErrNotFound, err)
	}

	return err
}
