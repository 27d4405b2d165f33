package gateway

import (
	"context"
	"errors"
	"fmt"

	"github.com/sakashimaa/go-pet-project/pkg/mylogger"
	"github.com/sakashimaa/go-pet-project/services/order/internal/domain"
	"go.uber.org/zap"
)

const (
	catalogService = "Product"
	stockService   = "Inventory"
	paymentService = "Payment"
)

// fallback replaces an unavailable outcome with a uniform message. Business answers pass through.
func fallback(ctx context.Context, logger *zap.Logger, service, operation string, err error) error {
	if err == nil || !errors.Is(err, ErrUnavailable) {
		return err
	}

	mylogger.Warn(
		ctx,
		logger,
		"Fallback triggered for "+operation,
		zap.String("service", service),
		zap.Error(err),
	)

	return fmt.Errorf("%w: %s service is currently unavailable", ErrUnavailable, service)
}

type catalogFallback struct {
	next   CatalogGateway
	logger *zap.Logger
}

func WithCatalogFallback(next CatalogGateway, logger *zap.Logger) CatalogGateway {
	return &catalogFallback{next: next, logger: logger}
}

func (f *catalogFallback) LookupBySku(ctx context.Context, sku string) (domain.Product, error) {
	product, err := f.next.LookupBySku(ctx, sku)
	if err != nil {
		return domain.Product{}, fallback(ctx, f.logger, catalogService, "LookupBySku", err)
	}
	return product, nil
}

type stockFallback struct {
	next   StockGateway
	logger *zap.Logger
}

func WithStockFallback(next StockGateway, logger *zap.Logger) StockGateway {
	return &stockFallback{next: next, logger: logger}
}

func (f *stockFallback) IsAvailable(ctx context.Context, sku string, quantity int32) (bool, error) {
	ok, err := f.next.IsAvailable(ctx, sku, quantity)
	if err != nil {
		return false, fallback(ctx, f.logger, stockService, "IsAvailable", err)
	}
	return ok, nil
}

func (f *stockFallback) Reserve(ctx context.Context, token, sku string, quantity int32) error {
	return fallback(ctx, f.logger, stockService, "Reserve", f.next.Reserve(ctx, token, sku, quantity))
}

func (f *stockFallback) Release(ctx context.Context, token, sku string, quantity int32) error {
	return fallback(ctx, f.logger, stockService, "Release", f.next.Release(ctx, token, sku, quantity))
}

func (f *stockFallback) Confirm(ctx context.Context, token, sku string, quantity int32) error {
	return fallback(ctx, f.logger, stockService, "Confirm", f.next.Confirm(ctx, token, sku, quantity))
}

type paymentFallback struct {
	next   PaymentGateway
	logger *zap.Logger
}

func WithPaymentFallback(next PaymentGateway, logger *zap.Logger) PaymentGateway {
	return &paymentFallback{next: next, logger: logger}
}

func (f *paymentFallback) InitiatePayment(ctx context.Context, orderNumber string, amount int64, method string) (domain.PaymentAck, error) {
	ack, err := f.next.InitiatePayment(ctx, orderNumber, amount, method)
	if err != nil {
		return domain.PaymentAck{}, fallback(ctx, f.logger, paymentService, "InitiatePayment", err)
	}
	return ack, nil
}
