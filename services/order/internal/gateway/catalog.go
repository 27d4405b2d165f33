package gateway

import (
	"context"
	"net/http"
	"net/url"
	"time"

	"github.com/sakashimaa/go-pet-project/services/order/internal/domain"
	"github.com/sakashimaa/go-pet-project/services/order/internal/resilience"
)

type CatalogClient struct {
	http *httpClient
}

func NewCatalogClient(baseURL string, timeout time.Duration) *CatalogClient {
	return &CatalogClient{http: newHTTPClient(baseURL, timeout)}
}

func (c *CatalogClient) LookupBySku(ctx context.Context, sku string) (domain.Product, error) {
	return doJSON[domain.Product](ctx, c.http, http.MethodGet, "/api/products/sku/"+url.PathEscape(sku), nil)
}

type resilientCatalog struct {
	next   CatalogGateway
	lookup *resilience.Policy
}

func NewResilientCatalog(next CatalogGateway, lookup *resilience.Policy) CatalogGateway {
	return &resilientCatalog{next: next, lookup: lookup}
}

func (r *resilientCatalog) LookupBySku(ctx context.Context, sku string) (domain.Product, error) {
	product, err := resilience.Execute(ctx, r.lookup, func(ctx context.Context) (domain.Product, error) {
		return r.next.LookupBySku(ctx, sku)
	})
	return product, classify(err)
}
