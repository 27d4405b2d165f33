package metrics

import (
	"context"
	"errors"

	"github.com/prometheus/client_golang/prometheus"
	generalDomain "github.com/sakashimaa/go-pet-project/pkg/domain"
	"github.com/sakashimaa/go-pet-project/services/order/internal/domain"
	"github.com/sakashimaa/go-pet-project/services/order/internal/service"
	"github.com/sony/gobreaker"
)

type Saga struct {
	breakerState *prometheus.GaugeVec
	operations   *prometheus.CounterVec
}

func NewSaga(reg prometheus.Registerer) *Saga {
	m := &Saga{
		breakerState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "order",
			Name:      "breaker_state",
			Help:      "Circuit breaker state per call site: 0 closed, 1 half-open, 2 open.",
		}, []string{"call_site"}),
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "order",
			Name:      "operations_total",
			Help:      "Order operations by outcome.",
		}, []string{"operation", "result"}),
	}

	reg.MustRegister(m.breakerState, m.operations)

	return m
}

// Track seeds a closed gauge for each call site so it is visible before the first transition.
func (m *Saga) Track(callSites ...string) {
	for _, name := range callSites {
		m.breakerState.WithLabelValues(name).Set(stateValue(gobreaker.StateClosed))
	}
}

// OnStateChange matches resilience.StateListener.
func (m *Saga) OnStateChange(name string, _ gobreaker.State, to gobreaker.State) {
	m.breakerState.WithLabelValues(name).Set(stateValue(to))
}

func (m *Saga) Observe(operation string, err error) {
	m.operations.WithLabelValues(operation, result(err)).Inc()
}

func stateValue(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return 0
	}
}

func result(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, domain.ErrInvalidRequest):
		return "invalid"
	case errors.Is(err, domain.ErrNotFound):
		return "not_found"
	case errors.Is(err, domain.ErrUnavailable):
		return "unavailable"
	default:
		return "error"
	}
}

type instrumented struct {
	next    service.OrderService
	metrics *Saga
}

// Instrument counts every OrderService call by outcome.
func Instrument(next service.OrderService, m *Saga) service.OrderService {
	return &instrumented{next: next, metrics: m}
}

func (s *instrumented) CreateOrder(ctx context.Context, in service.CreateOrderInput) (*domain.Order, error) {
	order, err := s.next.CreateOrder(ctx, in)
	s.metrics.Observe("create", err)
	return order, err
}

func (s *instrumented) GetOrder(ctx context.Context, orderNumber string) (*domain.Order, error) {
	order, err := s.next.GetOrder(ctx, orderNumber)
	s.metrics.Observe("get", err)
	return order, err
}

func (s *instrumented) CancelOrder(ctx context.Context, orderNumber string) (*domain.Order, error) {
	order, err := s.next.CancelOrder(ctx, orderNumber)
	s.metrics.Observe("cancel", err)
	return order, err
}

func (s *instrumented) UpdateOrderStatus(ctx context.Context, orderNumber, status string) (*domain.Order, error) {
	order, err := s.next.UpdateOrderStatus(ctx, orderNumber, status)
	s.metrics.Observe("update_status", err)
	return order, err
}

func (s *instrumented) PayOrder(ctx context.Context, orderNumber, method string) (domain.PaymentAck, error) {
	ack, err := s.next.PayOrder(ctx, orderNumber, method)
	s.metrics.Observe("pay", err)
	return ack, err
}

func (s *instrumented) HandlePaymentSucceeded(ctx context.Context, eventKey string, event *generalDomain.PaymentSucceededEvent) error {
	err := s.next.HandlePaymentSucceeded(ctx, eventKey, event)
	s.metrics.Observe("payment_succeeded", err)
	return err
}
