package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/sakashimaa/go-pet-project/pkg/mylogger"
	"github.com/sakashimaa/go-pet-project/services/payment/internal/domain"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const paymentColumns = `id, order_id, amount, status, method, transaction_id, created_at, updated_at`

// DBTX is satisfied by both pgxpool.Pool and pgx.Tx.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type PaymentRepository interface {
	Create(ctx context.Context, tx pgx.Tx, payment *domain.Payment) error
	GetByOrderID(ctx context.Context, db DBTX, orderID string, forUpdate bool) (*domain.Payment, error)
	GetByTransactionID(ctx context.Context, db DBTX, transactionID string, forUpdate bool) (*domain.Payment, error)
	UpdateStatus(ctx context.Context, tx pgx.Tx, payment *domain.Payment, status domain.PaymentStatus) error
}

type paymentRepo struct {
	logger *zap.Logger
	tracer trace.Tracer
}

func NewPaymentRepository(logger *zap.Logger) PaymentRepository {
	return &paymentRepo{
		logger: logger,
		tracer: otel.Tracer("repository/payment_repo"),
	}
}

func (r *paymentRepo) Create(ctx context.Context, tx pgx.Tx, payment *domain.Payment) error {
	ctx, span := r.tracer.Start(ctx, "PaymentRepository.Create")
	defer span.End()

	span.SetAttributes(
		attribute.String("order_id", payment.OrderID),
		attribute.Int64("amount", payment.Amount),
	)

	query := `
		INSERT INTO payments (order_id, amount, status, method, transaction_id)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at, updated_at
	`

	if err := tx.QueryRow(ctx, query,
		payment.OrderID,
		payment.Amount,
		payment.Status,
		payment.Method,
		payment.TransactionID,
	).Scan(
		&payment.ID,
		&payment.CreatedAt,
		&payment.UpdatedAt,
	); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" && pgErr.ConstraintName == "payments_order_id_key" {
			return ErrPaymentExists
		}

		span.RecordError(err)
		mylogger.Warn(ctx, r.logger, "Create payment failed", zap.Error(err))

		return fmt.Errorf("error creating payment: %w", err)
	}

	return nil
}

func (r *paymentRepo) GetByOrderID(ctx context.Context, db DBTX, orderID string, forUpdate bool) (*domain.Payment, error) {
	ctx, span := r.tracer.Start(ctx, "PaymentRepository.GetByOrderID")
	defer span.End()

	span.SetAttributes(attribute.String("order_id", orderID))

	return r.getOne(ctx, span, db, "order_id", orderID, forUpdate)
}

func (r *paymentRepo) GetByTransactionID(ctx context.Context, db DBTX, transactionID string, forUpdate bool) (*domain.Payment, error) {
	ctx, span := r.tracer.Start(ctx, "PaymentRepository.GetByTransactionID")
	defer span.End()

	span.SetAttributes(attribute.String("transaction_id", transactionID))

	return r.getOne(ctx, span, db, "transaction_id", transactionID, forUpdate)
}

func (r *paymentRepo) getOne(ctx context.Context, span trace.Span, db DBTX, column, value string, forUpdate bool) (*domain.Payment, error) {
	query := fmt.Sprintf(`SELECT %s FROM payments WHERE %s = $1`, paymentColumns, column)
	if forUpdate {
		query += ` FOR UPDATE`
	}

	rows, err := db.Query(ctx, query, value)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("error getting payment: %w", err)
	}

	payment, err := pgx.CollectExactlyOneRow(rows, pgx.RowToStructByName[domain.Payment])
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPaymentNotFound
		}

		span.RecordError(err)
		mylogger.Error(ctx, r.logger, "Get payment failed", zap.String(column, value), zap.Error(err))

		return nil, fmt.Errorf("error getting payment: %w", err)
	}

	return &payment, nil
}

func (r *paymentRepo) UpdateStatus(ctx context.Context, tx pgx.Tx, payment *domain.Payment, status domain.PaymentStatus) error {
	ctx, span := r.tracer.Start(ctx, "PaymentRepository.UpdateStatus")
	defer span.End()

	span.SetAttributes(
		attribute.Int64("id", payment.ID),
		attribute.String("status", string(status)),
	)

	query := `
		UPDATE payments
		SET status = $2, updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at
	`

	if err := tx.QueryRow(ctx, query, payment.ID, status).Scan(&payment.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrPaymentNotFound
		}

		span.RecordError(err)
		return fmt.Errorf("error updating payment status: %w", err)
	}

	payment.Status = status
	return nil
}
