package gateway

import (
	"context"
	"errors"

	"github.com/sakashimaa/go-pet-project/services/order/internal/domain"
)

var (
	ErrNotFound    = errors.New("resource not found")
	ErrRejected    = errors.New("request rejected")
	ErrUnavailable = errors.New("service unavailable")
)

type CatalogGateway interface {
	LookupBySku(ctx context.Context, sku string) (domain.Product, error)
}

// StockGateway talks to the stock ledger. Every mutating call is keyed by (token, sku) so repeating it is harmless.
type StockGateway interface {
	IsAvailable(ctx context.Context, sku string, quantity int32) (bool, error)
	Reserve(ctx context.Context, token, sku string, quantity int32) error
	Release(ctx context.Context, token, sku string, quantity int32) error
	Confirm(ctx context.Context, token, sku string, quantity int32) error
}

type PaymentGateway interface {
	InitiatePayment(ctx context.Context, orderNumber string, amount int64, method string) (domain.PaymentAck, error)
}
