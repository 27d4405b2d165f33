package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/sakashimaa/go-pet-project/pkg/mylogger"
	"github.com/sakashimaa/go-pet-project/services/inventory/internal/domain"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const stockColumns = `sku, quantity, reserved, low_stock_threshold, updated_at`

// DBTX is satisfied by both pgxpool.Pool and pgx.Tx.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type StockRepository interface {
	Ensure(ctx context.Context, tx pgx.Tx, sku string, threshold int32) error
	Get(ctx context.Context, db DBTX, sku string, forUpdate bool) (*domain.StockLevel, error)
	Adjust(ctx context.Context, tx pgx.Tx, sku string, quantityDelta, reservedDelta int32) (*domain.StockLevel, error)
	LowStock(ctx context.Context, db DBTX) ([]domain.StockLevel, error)

	GetReservation(ctx context.Context, tx pgx.Tx, token, sku string) (*domain.Reservation, error)
	SaveReservation(ctx context.Context, tx pgx.Tx, reservation *domain.Reservation) error
	SetReservationStatus(ctx context.Context, tx pgx.Tx, token, sku string, status domain.ReservationStatus) error
}

type stockRepo struct {
	tracer trace.Tracer
	logger *zap.Logger
}

func NewStockRepository(logger *zap.Logger) StockRepository {
	return &stockRepo{
		logger: logger,
		tracer: otel.Tracer("inventory/stock_repo"),
	}
}

func (r *stockRepo) Ensure(ctx context.Context, tx pgx.Tx, sku string, threshold int32) error {
	ctx, span := r.tracer.Start(ctx, "StockRepository.Ensure")
	defer span.End()

	query := `
		INSERT INTO inventory (sku, low_stock_threshold)
		VALUES ($1, $2)
		ON CONFLICT (sku) DO NOTHING
	`

	if _, err := tx.Exec(ctx, query, sku, threshold); err != nil {
		span.RecordError(err)
		mylogger.Error(ctx, r.logger, "Failed to create inventory record", zap.String("sku", sku), zap.Error(err))

		return fmt.Errorf("error creating inventory record: %w", err)
	}

	return nil
}

func (r *stockRepo) Get(ctx context.Context, db DBTX, sku string, forUpdate bool) (*domain.StockLevel, error) {
	ctx, span := r.tracer.Start(ctx, "StockRepository.Get")
	defer span.End()

	span.SetAttributes(
		attribute.String("sku", sku),
		attribute.Bool("for_update", forUpdate),
	)

	query := `SELECT ` + stockColumns + ` FROM inventory WHERE sku = $1`
	if forUpdate {
		query += ` FOR UPDATE`
	}

	rows, err := db.Query(ctx, query, sku)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("error getting inventory record: %w", err)
	}

	level, err := pgx.CollectExactlyOneRow(rows, pgx.RowToStructByName[domain.StockLevel])
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrStockNotFound
		}

		span.RecordError(err)
		mylogger.Error(ctx, r.logger, "Error scanning inventory record", zap.String("sku", sku), zap.Error(err))

		return nil, fmt.Errorf("error getting inventory record: %w", err)
	}

	return &level, nil
}

// Adjust applies both deltas in one statement. Neither column drops below zero.
func (r *stockRepo) Adjust(ctx context.Context, tx pgx.Tx, sku string, quantityDelta, reservedDelta int32) (*domain.StockLevel, error) {
	ctx, span := r.tracer.Start(ctx, "StockRepository.Adjust")
	defer span.End()

	span.SetAttributes(
		attribute.String("sku", sku),
		attribute.Int("quantity_delta", int(quantityDelta)),
		attribute.Int("reserved_delta", int(reservedDelta)),
	)

	query := `
		UPDATE inventory
		SET quantity = GREATEST(quantity + $2, 0),
			reserved = GREATEST(reserved + $3, 0),
			updated_at = NOW()
		WHERE sku = $1
		RETURNING ` + stockColumns

	rows, err := tx.Query(ctx, query, sku, quantityDelta, reservedDelta)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("error adjusting stock: %w", err)
	}

	level, err := pgx.CollectExactlyOneRow(rows, pgx.RowToStructByName[domain.StockLevel])
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrStockNotFound
		}

		span.RecordError(err)

		mylogger.Error(
			ctx,
			r.logger,
			"Error adjusting stock",
			zap.String("sku", sku),
			zap.Int32("quantity_delta", quantityDelta),
			zap.Int32("reserved_delta", reservedDelta),
			zap.Error(err),
		)

		return nil, fmt.Errorf("error adjusting stock: %w", err)
	}

	return &level, nil
}

func (r *stockRepo) LowStock(ctx context.Context, db DBTX) ([]domain.StockLevel, error) {
	ctx, span := r.tracer.Start(ctx, "StockRepository.LowStock")
	defer span.End()

	query := `
		SELECT ` + stockColumns + `
		FROM inventory
		WHERE quantity - reserved <= low_stock_threshold
		ORDER BY quantity - reserved, sku
	`

	rows, err := db.Query(ctx, query)
	if err != nil {
		span.RecordError(err)
		mylogger.Error(ctx, r.logger, "Error querying low stock", zap.Error(err))

		return nil, fmt.Errorf("error querying low stock: %w", err)
	}

	levels, err := pgx.CollectRows(rows, pgx.RowToStructByName[domain.StockLevel])
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("error scanning low stock: %w", err)
	}

	return levels, nil
}

func (r *stockRepo) GetReservation(ctx context.Context, tx pgx.Tx, token, sku string) (*domain.Reservation, error) {
	ctx, span := r.tracer.Start(ctx, "StockRepository.GetReservation")
	defer span.End()

	span.SetAttributes(
		attribute.String("token", token),
		attribute.String("sku", sku),
	)

	query := `
		SELECT token, sku, quantity, status, created_at, updated_at
		FROM reservations
		WHERE token = $1 AND sku = $2
		FOR UPDATE
	`

	rows, err := tx.Query(ctx, query, token, sku)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("error getting reservation: %w", err)
	}

	reservation, err := pgx.CollectExactlyOneRow(rows, pgx.RowToStructByName[domain.Reservation])
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrReservationNotFound
		}

		span.RecordError(err)
		return nil, fmt.Errorf("error getting reservation: %w", err)
	}

	return &reservation, nil
}

func (r *stockRepo) SaveReservation(ctx context.Context, tx pgx.Tx, reservation *domain.Reservation) error {
	ctx, span := r.tracer.Start(ctx, "StockRepository.SaveReservation")
	defer span.End()

	query := `
		INSERT INTO reservations (token, sku, quantity, status)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at, updated_at
	`

	err := tx.QueryRow(ctx, query, reservation.Token, reservation.Sku, reservation.Quantity, reservation.Status).
		Scan(&reservation.CreatedAt, &reservation.UpdatedAt)
	if err != nil {
		span.RecordError(err)

		mylogger.Error(
			ctx,
			r.logger,
			"Failed to save reservation",
			zap.String("token", reservation.Token),
			zap.String("sku", reservation.Sku),
			zap.Error(err),
		)

		return fmt.Errorf("error saving reservation: %w", err)
	}

	return nil
}

func (r *stockRepo) SetReservationStatus(ctx context.Context, tx pgx.Tx, token, sku string, status domain.ReservationStatus) error {
	ctx, span := r.tracer.Start(ctx, "StockRepository.SetReservationStatus")
	defer span.End()

	query := `
		UPDATE reservations
		SET status = $3, updated_at = NOW()
		WHERE token = $1 AND sku = $2
	`

	tag, err := tx.Exec(ctx, query, token, sku, status)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("error updating reservation: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return ErrReservationNotFound
	}

	return nil
}
