package service

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/sakashimaa/go-pet-project/services/order/internal/cache"
	"github.com/sakashimaa/go-pet-project/services/order/internal/domain"
	"github.com/sakashimaa/go-pet-project/services/order/internal/gateway"
	"github.com/sakashimaa/go-pet-project/services/order/internal/repository"
)

type fakeCatalog struct {
	products map[string]domain.Product
	err      error
	lookups  []string
}

func (f *fakeCatalog) LookupBySku(_ context.Context, sku string) (domain.Product, error) {
	f.lookups = append(f.lookups, sku)
	if f.err != nil {
		return domain.Product{}, f.err
	}

	p, ok := f.products[sku]
	if !ok {
		return domain.Product{}, fmt.Errorf("%w: %s", gateway.ErrNotFound, sku)
	}
	return p, nil
}

type stockCall struct {
	op       string
	token    string
	sku      string
	quantity int32
}

type fakeStock struct {
	mu          sync.Mutex
	unavailable map[string]bool
	reserveErr  map[string]error
	releaseErr  error
	confirmErr  error
	calls       []stockCall
}

func newFakeStock() *fakeStock {
	return &fakeStock{
		unavailable: map[string]bool{},
		reserveErr:  map[string]error{},
	}
}

func (f *fakeStock) record(op, token, sku string, quantity int32) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, stockCall{op: op, token: token, sku: sku, quantity: quantity})
}

func (f *fakeStock) IsAvailable(_ context.Context, sku string, quantity int32) (bool, error) {
	f.record("check", "", sku, quantity)
	return !f.unavailable[sku], nil
}

func (f *fakeStock) Reserve(_ context.Context, token, sku string, quantity int32) error {
	f.record("reserve", token, sku, quantity)
	return f.reserveErr[sku]
}

func (f *fakeStock) Release(_ context.Context, token, sku string, quantity int32) error {
	f.record("release", token, sku, quantity)
	return f.releaseErr
}

func (f *fakeStock) Confirm(_ context.Context, token, sku string, quantity int32) error {
	f.record("confirm", token, sku, quantity)
	return f.confirmErr
}

func (f *fakeStock) ops(op string) []stockCall {
	f.mu.Lock()
	defer f.mu.Unlock()

	var out []stockCall
	for _, c := range f.calls {
		if c.op == op {
			out = append(out, c)
		}
	}
	return out
}

type fakePayments struct {
	err   error
	calls int
	last  struct {
		orderNumber string
		amount      int64
		method      string
	}
}

func (f *fakePayments) InitiatePayment(_ context.Context, orderNumber string, amount int64, method string) (domain.PaymentAck, error) {
	f.calls++
	f.last.orderNumber, f.last.amount, f.last.method = orderNumber, amount, method
	if f.err != nil {
		return domain.PaymentAck{}, f.err
	}

	return domain.PaymentAck{
		OrderID:       orderNumber,
		Amount:        amount,
		Method:        method,
		Status:        domain.PaymentStatusCompleted,
		TransactionID: "TXN-000000000001",
	}, nil
}

type fakeStore struct {
	mu        sync.Mutex
	orders    map[string]*domain.Order
	processed map[string]bool
	nextID    int64
	createErr error
	// statusOverride simulates a concurrent writer that commits before the store takes the order lock
	statusOverride domain.OrderStatus
}

func newFakeStore() *fakeStore {
	return &fakeStore{orders: map[string]*domain.Order{}, processed: map[string]bool{}}
}

func clone(o *domain.Order) *domain.Order {
	c := *o
	c.Items = slices.Clone(o.Items)
	return &c
}

func (f *fakeStore) Create(_ context.Context, order *domain.Order) error {
	if err := order.Validate(); err != nil {
		return err
	}
	if f.createErr != nil {
		return f.createErr
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	f.nextID++
	order.ID = f.nextID
	order.CreatedAt = time.Now()
	order.UpdatedAt = order.CreatedAt
	f.orders[order.OrderNumber] = clone(order)
	return nil
}

func (f *fakeStore) GetByNumber(_ context.Context, orderNumber string) (*domain.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	o, ok := f.orders[orderNumber]
	if !ok {
		return nil, repository.ErrOrderNotFound
	}
	return clone(o), nil
}

func (f *fakeStore) UpdateStatus(_ context.Context, orderNumber string, status domain.OrderStatus, allowedFrom ...domain.OrderStatus) (*domain.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	o, ok := f.orders[orderNumber]
	if !ok {
		return nil, repository.ErrOrderNotFound
	}
	if f.statusOverride != "" {
		o.Status = f.statusOverride
	}
	if len(allowedFrom) > 0 && !slices.Contains(allowedFrom, o.Status) {
		return clone(o), repository.ErrStatusConflict
	}

	o.Status = status
	o.UpdatedAt = time.Now()
	return clone(o), nil
}

func (f *fakeStore) Cancel(
	ctx context.Context,
	orderNumber string,
	compensate func(ctx context.Context, order *domain.Order),
) (*domain.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	o, ok := f.orders[orderNumber]
	if !ok {
		return nil, repository.ErrOrderNotFound
	}
	if f.statusOverride != "" {
		o.Status = f.statusOverride
	}
	if o.Status == domain.OrderStatusCancelled {
		return clone(o), nil
	}
	if !o.Status.CanCancel() {
		return clone(o), repository.ErrStatusConflict
	}

	compensate(ctx, clone(o))

	o.Status = domain.OrderStatusCancelled
	o.UpdatedAt = time.Now()
	return clone(o), nil
}

func (f *fakeStore) MarkPaidOnce(_ context.Context, eventKey, orderNumber string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.processed[eventKey] {
		return false, nil
	}
	f.processed[eventKey] = true

	o, ok := f.orders[orderNumber]
	if !ok || o.Status != domain.OrderStatusPending {
		return false, nil
	}
	o.Status = domain.OrderStatusPaid
	return true, nil
}

func (f *fakeStore) put(order *domain.Order) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.orders[order.OrderNumber] = clone(order)
}

type fakeIdempotency struct {
	values    map[string]string
	abandoned []string
}

func newFakeIdempotency() *fakeIdempotency {
	return &fakeIdempotency{values: map[string]string{}}
}

func (f *fakeIdempotency) Begin(_ context.Context, key string) (string, error) {
	v, ok := f.values[key]
	if !ok {
		f.values[key] = "__pending__"
		return "", nil
	}
	if v == "__pending__" {
		return "", cache.ErrInProgress
	}
	return v, nil
}

func (f *fakeIdempotency) Complete(_ context.Context, key, orderNumber string) error {
	f.values[key] = orderNumber
	return nil
}

func (f *fakeIdempotency) Abandon(_ context.Context, key string) error {
	delete(f.values, key)
	f.abandoned = append(f.abandoned, key)
	return nil
}
