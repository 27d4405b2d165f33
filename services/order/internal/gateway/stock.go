package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/sakashimaa/go-pet-project/services/order/internal/resilience"
)

type reservationRequest struct {
	Token    string `json:"token"`
	Sku      string `json:"sku"`
	Quantity int32  `json:"quantity"`
}

type availability struct {
	Sku       string `json:"sku"`
	Quantity  int32  `json:"quantity"`
	Available bool   `json:"available"`
}

type StockClient struct {
	http *httpClient
}

func NewStockClient(baseURL string, timeout time.Duration) *StockClient {
	return &StockClient{http: newHTTPClient(baseURL, timeout)}
}

func (c *StockClient) IsAvailable(ctx context.Context, sku string, quantity int32) (bool, error) {
	path := fmt.Sprintf("/api/inventory/check/%s?quantity=%d", url.PathEscape(sku), quantity)

	res, err := doJSON[availability](ctx, c.http, http.MethodGet, path, nil)
	if err != nil {
		return false, err
	}

	return res.Available, nil
}

func (c *StockClient) Reserve(ctx context.Context, token, sku string, quantity int32) error {
	return c.mutate(ctx, "/api/inventory/reserve", token, sku, quantity)
}

func (c *StockClient) Release(ctx context.Context, token, sku string, quantity int32) error {
	return c.mutate(ctx, "/api/inventory/release", token, sku, quantity)
}

func (c *StockClient) Confirm(ctx context.Context, token, sku string, quantity int32) error {
	return c.mutate(ctx, "/api/inventory/confirm-deduction", token, sku, quantity)
}

func (c *StockClient) mutate(ctx context.Context, path, token, sku string, quantity int32) error {
	_, err := doJSON[json.RawMessage](ctx, c.http, http.MethodPost, path, reservationRequest{
		Token:    token,
		Sku:      sku,
		Quantity: quantity,
	})
	return err
}

// StockPolicies holds one policy per stock call site so a failing reserve path cannot open the release breaker.
type StockPolicies struct {
	Check   *resilience.Policy
	Reserve *resilience.Policy
	Release *resilience.Policy
	Confirm *resilience.Policy
}

type resilientStock struct {
	next     StockGateway
	policies StockPolicies
}

func NewResilientStock(next StockGateway, policies StockPolicies) StockGateway {
	return &resilientStock{next: next, policies: policies}
}

func (r *resilientStock) IsAvailable(ctx context.Context, sku string, quantity int32) (bool, error) {
	ok, err := resilience.Execute(ctx, r.policies.Check, func(ctx context.Context) (bool, error) {
		return r.next.IsAvailable(ctx, sku, quantity)
	})
	return ok, classify(err)
}

func (r *resilientStock) Reserve(ctx context.Context, token, sku string, quantity int32) error {
	return r.run(ctx, r.policies.Reserve, func(ctx context.Context) error {
		return r.next.Reserve(ctx, token, sku, quantity)
	})
}

func (r *resilientStock) Release(ctx context.Context, token, sku string, quantity int32) error {
	return r.run(ctx, r.policies.Release, func(ctx context.Context) error {
		return r.next.Release(ctx, token, sku, quantity)
	})
}

func (r *resilientStock) Confirm(ctx context.Context, token, sku string, quantity int32) error {
	return r.run(ctx, r.policies.Confirm, func(ctx context.Context) error {
		return r.next.Confirm(ctx, token, sku, quantity)
	})
}

func (r *resilientStock) run(ctx context.Context, p *resilience.Policy, fn func(ctx context.Context) error) error {
	_, err := resilience.Execute(ctx, p, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	return classify(err)
}
