package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sakashimaa/go-pet-project/pkg/mylogger"
	"github.com/sakashimaa/go-pet-project/services/inventory/internal/domain"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const productColumns = `id, sku, name, description, price, category, image_url, created_at, updated_at`

type ProductRepository interface {
	Create(ctx context.Context, tx pgx.Tx, product *domain.Product) error
	GetByID(ctx context.Context, id int64) (*domain.Product, error)
	GetBySku(ctx context.Context, sku string) (*domain.Product, error)
	List(ctx context.Context, limit, offset int64, search, category string) ([]domain.Product, int64, error)
}

type productRepo struct {
	pool   *pgxpool.Pool
	tracer trace.Tracer
	logger *zap.Logger
}

func NewProductRepository(pool *pgxpool.Pool, logger *zap.Logger) ProductRepository {
	return &productRepo{
		pool:   pool,
		logger: logger,
		tracer: otel.Tracer("inventory/product_repo"),
	}
}

func (r *productRepo) Create(ctx context.Context, tx pgx.Tx, product *domain.Product) error {
	ctx, span := r.tracer.Start(ctx, "ProductRepository.Create")
	defer span.End()

	span.SetAttributes(
		attribute.String("sku", product.Sku),
	)

	query := `
		INSERT INTO products (sku, name, description, price, category, image_url)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at, updated_at;
	`

	err := tx.QueryRow(
		ctx,
		query,
		product.Sku,
		product.Name,
		product.Description,
		product.Price,
		product.Category,
		product.ImageURL,
	).Scan(&product.ID, &product.CreatedAt, &product.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrSkuTaken
		}

		span.RecordError(err)

		mylogger.Error(
			ctx,
			r.logger,
			"Error creating product",
			zap.String("sku", product.Sku),
			zap.Error(err),
		)

		return fmt.Errorf("error creating product: %w", err)
	}

	return nil
}

func (r *productRepo) GetByID(ctx context.Context, id int64) (*domain.Product, error) {
	ctx, span := r.tracer.Start(ctx, "ProductRepository.GetByID")
	defer span.End()

	span.SetAttributes(
		attribute.Int64("id", id),
	)

	query := `SELECT ` + productColumns + ` FROM products WHERE id = $1`

	return r.getOne(ctx, span, query, id)
}

func (r *productRepo) GetBySku(ctx context.Context, sku string) (*domain.Product, error) {
	ctx, span := r.tracer.Start(ctx, "ProductRepository.GetBySku")
	defer span.End()

	span.SetAttributes(
		attribute.String("sku", sku),
	)

	query := `SELECT ` + productColumns + ` FROM products WHERE sku = $1`

	return r.getOne(ctx, span, query, sku)
}

func (r *productRepo) getOne(ctx context.Context, span trace.Span, query string, arg any) (*domain.Product, error) {
	rows, err := r.pool.Query(ctx, query, arg)
	if err != nil {
		span.RecordError(err)
		mylogger.Error(ctx, r.logger, "Error querying product", zap.Error(err))

		return nil, fmt.Errorf("error getting product: %w", err)
	}

	product, err := pgx.CollectExactlyOneRow(rows, pgx.RowToStructByName[domain.Product])
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrProductNotFound
		}

		span.RecordError(err)
		mylogger.Error(ctx, r.logger, "Error scanning product", zap.Error(err))

		return nil, fmt.Errorf("error getting product: %w", err)
	}

	return &product, nil
}

func (r *productRepo) List(ctx context.Context, limit, offset int64, search, category string) ([]domain.Product, int64, error) {
	ctx, span := r.tracer.Start(ctx, "ProductRepository.List")
	defer span.End()

	span.SetAttributes(
		attribute.Int64("limit", limit),
		attribute.Int64("offset", offset),
		attribute.String("search", search),
		attribute.String("category", category),
	)

	filter := ` WHERE 1 = 1`
	var args []any
	argID := 1

	if search != "" {
		filter += fmt.Sprintf(" AND name ILIKE $%d", argID)
		args = append(args, "%"+search+"%")
		argID++
	}

	if category != "" {
		filter += fmt.Sprintf(" AND category = $%d", argID)
		args = append(args, category)
		argID++
	}

	var totalCount int64
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM products`+filter, args...).Scan(&totalCount); err != nil {
		span.RecordError(err)

		mylogger.Error(
			ctx,
			r.logger,
			"Failed to count products",
			zap.Error(err),
		)

		return nil, 0, fmt.Errorf("failed to count products: %w", err)
	}

	query := `SELECT ` + productColumns + ` FROM products` + filter +
		fmt.Sprintf(" ORDER BY created_at DESC, id DESC LIMIT $%d OFFSET $%d", argID, argID+1)

	rows, err := r.pool.Query(ctx, query, append(args, limit, offset)...)
	if err != nil {
		span.RecordError(err)

		mylogger.Error(
			ctx,
			r.logger,
			"Error getting products",
			zap.String("search", search),
			zap.Int64("limit", limit),
			zap.Int64("offset", offset),
			zap.Error(err),
		)

		return nil, 0, fmt.Errorf("error selecting products: %w", err)
	}

	products, err := pgx.CollectRows(rows, pgx.RowToStructByName[domain.Product])
	if err != nil {
		span.RecordError(err)
		mylogger.Error(ctx, r.logger, "Failed to scan rows", zap.Error(err))

		return nil, 0, fmt.Errorf("error scanning rows: %w", err)
	}

	return products, totalCount, nil
}
