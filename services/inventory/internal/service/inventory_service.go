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
	"github.com/sakashimaa/go-pet-project/services/inventory/internal/domain"
	"github.com/sakashimaa/go-pet-project/services/inventory/internal/repository"
	"go.uber.org/zap"
)

// ReservationInput addresses one line of the reservation ledger.
type ReservationInput struct {
	Token    string
	Sku      string
	Quantity int32
}

type InventoryService interface {
	GetStock(ctx context.Context, sku string) (*domain.StockLevel, error)
	AddStock(ctx context.Context, sku string, quantity int32) (*domain.StockLevel, error)
	IsInStock(ctx context.Context, sku string, quantity int32) (bool, error)
	Reserve(ctx context.Context, in ReservationInput) (*domain.StockLevel, error)
	Release(ctx context.Context, in ReservationInput) (*domain.StockLevel, error)
	ConfirmDeduction(ctx context.Context, in ReservationInput) (*domain.StockLevel, error)
	LowStockAlerts(ctx context.Context) ([]domain.StockLevel, error)
	ReleaseOrder(ctx context.Context, eventKey string, event *generalDomain.OrderCancelledEvent) error
}

type inventoryService struct {
	pool      *pgxpool.Pool
	stockRepo repository.StockRepository
	threshold int32
	logger    *zap.Logger
}

func NewInventoryService(
	pool *pgxpool.Pool,
	stockRepo repository.StockRepository,
	lowStockThreshold int32,
	logger *zap.Logger,
) InventoryService {
	return &inventoryService{
		pool:      pool,
		stockRepo: stockRepo,
		threshold: lowStockThreshold,
		logger:    logger,
	}
}

func (s *inventoryService) GetStock(ctx context.Context, sku string) (*domain.StockLevel, error) {
	level, err := s.stockRepo.Get(ctx, s.pool, sku, false)
	if err != nil {
		return nil, translate(err)
	}

	return level, nil
}

func (s *inventoryService) AddStock(ctx context.Context, sku string, quantity int32) (*domain.StockLevel, error) {
	if err := validateLine(sku, quantity); err != nil {
		return nil, err
	}

	var level *domain.StockLevel
	err := s.inTx(ctx, func(ctx context.Context, tx pgx.Tx) error {
		if err := s.stockRepo.Ensure(ctx, tx, sku, s.threshold); err != nil {
			return err
		}

		var err error
		level, err = s.stockRepo.Adjust(ctx, tx, sku, quantity, 0)
		return err
	})
	if err != nil {
		return nil, translate(err)
	}

	mylogger.Info(
		ctx,
		s.logger,
		"Stock added",
		zap.String("sku", sku),
		zap.Int32("added", quantity),
		zap.Int32("total", level.Quantity),
	)

	return level, nil
}

// IsInStock reports false for an unknown sku rather than failing.
func (s *inventoryService) IsInStock(ctx context.Context, sku string, quantity int32) (bool, error) {
	if quantity <= 0 {
		quantity = 1
	}

	level, err := s.stockRepo.Get(ctx, s.pool, sku, false)
	if err != nil {
		if errors.Is(err, repository.ErrStockNotFound) {
			return false, nil
		}
		return false, translate(err)
	}

	return level.Available() >= quantity, nil
}

func (s *inventoryService) Reserve(ctx context.Context, in ReservationInput) (*domain.StockLevel, error) {
	if err := validateReservation(in); err != nil {
		return nil, err
	}

	var level *domain.StockLevel
	err := s.inTx(ctx, func(ctx context.Context, tx pgx.Tx) error {
		var err error
		level, err = s.stockRepo.Get(ctx, tx, in.Sku, true)
		if err != nil {
			return err
		}

		existing, err := s.stockRepo.GetReservation(ctx, tx, in.Token, in.Sku)
		switch {
		case err == nil:
			if existing.Status == domain.ReservationReleased {
				return fmt.Errorf("%w: reservation %s for %s was already released", domain.ErrReservationConflict, in.Token, in.Sku)
			}
			return nil
		case !errors.Is(err, repository.ErrReservationNotFound):
			return err
		}

		if level.Available() < in.Quantity {
			return fmt.Errorf(
				"%w for sku %s: available %d, requested %d",
				domain.ErrInsufficientStock, in.Sku, level.Available(), in.Quantity,
			)
		}

		level, err = s.stockRepo.Adjust(ctx, tx, in.Sku, 0, in.Quantity)
		if err != nil {
			return err
		}

		return s.stockRepo.SaveReservation(ctx, tx, &domain.Reservation{
			Token:    in.Token,
			Sku:      in.Sku,
			Quantity: in.Quantity,
			Status:   domain.ReservationReserved,
		})
	})
	if err != nil {
		return nil, translate(err)
	}

	mylogger.Info(ctx, s.logger, "Stock reserved", zap.String("sku", in.Sku), zap.Int32("quantity", in.Quantity))

	return level, nil
}

func (s *inventoryService) Release(ctx context.Context, in ReservationInput) (*domain.StockLevel, error) {
	if err := validateReservation(in); err != nil {
		return nil, err
	}

	var level *domain.StockLevel
	err := s.inTx(ctx, func(ctx context.Context, tx pgx.Tx) error {
		var err error
		level, err = s.release(ctx, tx, in)
		return err
	})
	if err != nil {
		return nil, translate(err)
	}

	return level, nil
}

// release frees what the ledger line holds. A release for a line that was never reserved leaves a
// released marker so a late reserve with the same token is refused.
func (s *inventoryService) release(ctx context.Context, tx pgx.Tx, in ReservationInput) (*domain.StockLevel, error) {
	level, err := s.stockRepo.Get(ctx, tx, in.Sku, true)
	if err != nil {
		return nil, err
	}

	existing, err := s.stockRepo.GetReservation(ctx, tx, in.Token, in.Sku)
	if errors.Is(err, repository.ErrReservationNotFound) {
		mylogger.Info(ctx, s.logger, "Release without reservation, recording marker", zap.String("sku", in.Sku))

		return level, s.stockRepo.SaveReservation(ctx, tx, &domain.Reservation{
			Token:    in.Token,
			Sku:      in.Sku,
			Quantity: in.Quantity,
			Status:   domain.ReservationReleased,
		})
	}
	if err != nil {
		return nil, err
	}

	switch existing.Status {
	case domain.ReservationReleased:
		return level, nil
	case domain.ReservationConfirmed:
		return nil, fmt.Errorf("%w: reservation %s for %s was already confirmed", domain.ErrReservationConflict, in.Token, in.Sku)
	}

	level, err = s.stockRepo.Adjust(ctx, tx, in.Sku, 0, -existing.Quantity)
	if err != nil {
		return nil, err
	}

	if err := s.stockRepo.SetReservationStatus(ctx, tx, in.Token, in.Sku, domain.ReservationReleased); err != nil {
		return nil, err
	}

	mylogger.Info(ctx, s.logger, "Stock released", zap.String("sku", in.Sku), zap.Int32("quantity", existing.Quantity))

	return level, nil
}

func (s *inventoryService) ConfirmDeduction(ctx context.Context, in ReservationInput) (*domain.StockLevel, error) {
	if err := validateReservation(in); err != nil {
		return nil, err
	}

	var level *domain.StockLevel
	err := s.inTx(ctx, func(ctx context.Context, tx pgx.Tx) error {
		var err error
		level, err = s.stockRepo.Get(ctx, tx, in.Sku, true)
		if err != nil {
			return err
		}

		existing, err := s.stockRepo.GetReservation(ctx, tx, in.Token, in.Sku)
		if err != nil {
			return err
		}

		switch existing.Status {
		case domain.ReservationConfirmed:
			return nil
		case domain.ReservationReleased:
			return fmt.Errorf("%w: reservation %s for %s was already released", domain.ErrReservationConflict, in.Token, in.Sku)
		}

		level, err = s.stockRepo.Adjust(ctx, tx, in.Sku, -existing.Quantity, -existing.Quantity)
		if err != nil {
			return err
		}

		return s.stockRepo.SetReservationStatus(ctx, tx, in.Token, in.Sku, domain.ReservationConfirmed)
	})
	if err != nil {
		return nil, translate(err)
	}

	mylogger.Info(
		ctx,
		s.logger,
		"Stock deducted",
		zap.String("sku", in.Sku),
		zap.Int32("remaining", level.Quantity),
	)

	return level, nil
}

func (s *inventoryService) LowStockAlerts(ctx context.Context) ([]domain.StockLevel, error) {
	levels, err := s.stockRepo.LowStock(ctx, s.pool)
	if err != nil {
		return nil, translate(err)
	}

	return levels, nil
}

// ReleaseOrder frees every line of a cancelled order once per event. Lines that are already
// released or unknown are skipped so a partial earlier release does not block the rest.
func (s *inventoryService) ReleaseOrder(ctx context.Context, eventKey string, event *generalDomain.OrderCancelledEvent) error {
	if event.ReservationToken == "" {
		mylogger.Warn(ctx, s.logger, "Cancelled order without reservation token", zap.String("order_number", event.OrderNumber))
		return nil
	}

	return dedup.ProcessOnce(ctx, s.pool, s.logger, eventKey, func(ctx context.Context, tx pgx.Tx) error {
		for _, item := range event.Items {
			_, err := s.release(ctx, tx, ReservationInput{
				Token:    event.ReservationToken,
				Sku:      item.Sku,
				Quantity: item.Quantity,
			})
			if err == nil {
				continue
			}

			if errors.Is(err, repository.ErrStockNotFound) || errors.Is(err, domain.ErrReservationConflict) {
				mylogger.Warn(
					ctx,
					s.logger,
					"Skipping release for cancelled order",
					zap.String("order_number", event.OrderNumber),
					zap.String("sku", item.Sku),
					zap.Error(err),
				)
				continue
			}

			return err
		}

		return nil
	})
}

func (s *inventoryService) inTx(ctx context.Context, fn func(ctx context.Context, tx pgx.Tx) error) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		mylogger.Error(ctx, s.logger, "Failed to begin transaction", zap.Error(err))
		return fmt.Errorf("failed to begin transaction: %w", err)
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
		mylogger.Error(ctx, s.logger, "Failed to commit transaction", zap.Error(err))
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

func validateLine(sku string, quantity int32) error {
	if strings.TrimSpace(sku) == "" {
		return fmt.Errorf("%w: sku is required", domain.ErrInvalidRequest)
	}
	if quantity <= 0 {
		return fmt.Errorf("%w: quantity must be positive", domain.ErrInvalidRequest)
	}

	return nil
}

func validateReservation(in ReservationInput) error {
	if strings.TrimSpace(in.Token) == "" {
		return fmt.Errorf("%w: token is required", domain.ErrInvalidRequest)
	}

	return validateLine(in.Sku, in.Quantity)
}

func translate(err error) error {
	switch {
	case errors.Is(err, repository.ErrStockNotFound),
		errors.Is(err, repository.ErrProductNotFound),
		errors.Is(err, repository.ErrReservationNotFound):
		return fmt.Errorf("%w: %w", domain.ErrNotFound, err)
	case errors.Is(err, repository.ErrSkuTaken):
		return fmt.Errorf("%w: %w", domain.ErrInvalidRequest, err)
	default:
		return err
	}
}
