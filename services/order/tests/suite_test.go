package tests

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/sakashimaa/go-pet-project/pkg/config"
	kafka2 "github.com/sakashimaa/go-pet-project/pkg/kafka"
	outboxRepository "github.com/sakashimaa/go-pet-project/pkg/outbox/repository"
	"github.com/sakashimaa/go-pet-project/pkg/outbox/worker"
	"github.com/sakashimaa/go-pet-project/pkg/response"
	"github.com/sakashimaa/go-pet-project/pkg/testsuite"
	"github.com/sakashimaa/go-pet-project/services/order/internal/domain"
	"github.com/sakashimaa/go-pet-project/services/order/internal/gateway"
	"github.com/sakashimaa/go-pet-project/services/order/internal/repository"
	"github.com/sakashimaa/go-pet-project/services/order/internal/resilience"
	"github.com/sakashimaa/go-pet-project/services/order/internal/service"
	"github.com/sakashimaa/go-pet-project/services/order/internal/transport/kafka"
	"github.com/stretchr/testify/suite"
	"go.uber.org/zap"
)

// ledger is an in-memory stand-in for the inventory service HTTP API.
type ledger struct {
	mu           sync.Mutex
	prices       map[string]int64
	stock        map[string]int32
	reservations map[string]string
	failReserve  map[string]bool
}

func newLedger() *ledger {
	return &ledger{
		prices:       map[string]int64{"A": 1000, "B": 550},
		stock:        map[string]int32{"A": 10, "B": 10},
		reservations: map[string]string{},
		failReserve:  map[string]bool{},
	}
}

func reply(w http.ResponseWriter, status int, success bool, message string, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(response.Envelope[any]{Success: success, Message: message, Data: data, Timestamp: time.Now()})
}

func (l *ledger) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	l.mu.Lock()
	defer l.mu.Unlock()

	switch {
	case strings.HasPrefix(r.URL.Path, "/api/products/sku/"):
		sku := strings.TrimPrefix(r.URL.Path, "/api/products/sku/")
		price, ok := l.prices[sku]
		if !ok {
			reply(w, http.StatusNotFound, false, "product not found", nil)
			return
		}
		reply(w, http.StatusOK, true, "", domain.Product{Sku: sku, Name: sku, UnitPrice: price})
	case strings.HasPrefix(r.URL.Path, "/api/inventory/check/"):
		sku := strings.TrimPrefix(r.URL.Path, "/api/inventory/check/")
		reply(w, http.StatusOK, true, "", map[string]any{"sku": sku, "available": l.stock[sku] > 0})
	case r.Method == http.MethodPost && strings.HasPrefix(r.URL.Path, "/api/inventory/"):
		var req struct {
			Token    string `json:"token"`
			Sku      string `json:"sku"`
			Quantity int32  `json:"quantity"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)
		key := req.Token + "/" + req.Sku

		switch strings.TrimPrefix(r.URL.Path, "/api/inventory/") {
		case "reserve":
			if l.failReserve[req.Sku] {
				reply(w, http.StatusConflict, false, "insufficient stock", nil)
				return
			}
			if _, ok := l.reservations[key]; !ok {
				l.stock[req.Sku] -= req.Quantity
				l.reservations[key] = "reserved"
			}
		case "release":
			if l.reservations[key] == "reserved" {
				l.stock[req.Sku] += req.Quantity
				l.reservations[key] = "released"
			}
		case "confirm-deduction":
			if l.reservations[key] == "reserved" {
				l.reservations[key] = "confirmed"
			}
		}
		reply(w, http.StatusOK, true, "", nil)
	default:
		reply(w, http.StatusNotFound, false, "no route", nil)
	}
}

func (l *ledger) state(token, sku string) string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.reservations[token+"/"+sku]
}

type IntegrationTestSuite struct {
	testsuite.BaseSuite

	OrderService    service.OrderService
	Store           repository.OrderStore
	TestProducer    kafka2.Producer
	OutboxProcessor *worker.OutboxProcessor
	Ledger          *ledger
	ledgerServer    *httptest.Server
	workerCancel    context.CancelFunc
}

func (s *IntegrationTestSuite) SetupSuite() {
	s.SetupInfrastructure(testsuite.Infrastructure{
		MigrationsPath: "../migrations",
		WithKafka:      true,
	})

	var err error
	s.TestProducer, err = kafka2.NewProducer(s.KafkaBrokers, zap.NewNop())
	s.Require().NoError(err, "failed to create kafka producer")
}

func (s *IntegrationTestSuite) TearDownSuite() {
	if s.TestProducer != nil {
		_ = s.TestProducer.Close()
	}
	s.TearDownInfrastructure()
}

func (s *IntegrationTestSuite) SetupTest() {
	s.TruncateTables("orders", "order_items", "outbox", "processed_events")

	logger := zap.NewNop()

	s.Ledger = newLedger()
	s.ledgerServer = httptest.NewServer(s.Ledger)

	cfg := config.Resilience{
		MaxAttempts:         2,
		InitialBackoff:      10 * time.Millisecond,
		MaxBackoff:          20 * time.Millisecond,
		Multiplier:          2,
		RandomizationFactor: 0.5,
		FailureRatio:        0.6,
		MinRequests:         5,
		Interval:            10 * time.Second,
		OpenTimeout:         10 * time.Second,
		HalfOpenRequests:    1,
	}
	policy := func(name string) *resilience.Policy {
		return resilience.NewPolicy(resilience.SettingsFromConfig(name, cfg), logger)
	}

	catalog := gateway.NewResilientCatalog(gateway.NewCatalogClient(s.ledgerServer.URL, time.Second), policy("catalog.lookup"))
	stock := gateway.NewResilientStock(gateway.NewStockClient(s.ledgerServer.URL, time.Second), gateway.StockPolicies{
		Check:   policy("stock.check"),
		Reserve: policy("stock.reserve"),
		Release: policy("stock.release"),
		Confirm: policy("stock.confirm"),
	})
	payments := gateway.NewResilientPayment(gateway.NewPaymentClient(s.ledgerServer.URL, time.Second), policy("payment.initiate"))

	outboxRepo := outboxRepository.NewOutboxRepository(10)
	s.Store = repository.NewOrderStore(s.DbPool, repository.NewOrderRepository(logger), outboxRepo, repository.OrderEventsTopic, logger)
	s.OrderService = service.NewOrderService(s.Store, catalog, stock, payments, nil, logger)

	s.OutboxProcessor = worker.NewOutboxProcessor(s.DbPool, outboxRepo, s.TestProducer, logger, 50, 100*time.Millisecond)

	workerCtx, cancel := context.WithCancel(s.Ctx)
	s.workerCancel = cancel

	go s.OutboxProcessor.Start(workerCtx)
	go func() {
		_ = kafka.NewConsumer(s.OrderService, logger).Start(workerCtx, s.KafkaBrokers, "order-tests", "payment_events")
	}()
}

func (s *IntegrationTestSuite) TearDownTest() {
	if s.workerCancel != nil {
		s.workerCancel()
	}
	if s.ledgerServer != nil {
		s.ledgerServer.Close()
	}
}

func (s *IntegrationTestSuite) createOrder(items ...service.ItemInput) *domain.Order {
	if len(items) == 0 {
		items = []service.ItemInput{{Sku: "A", Quantity: 2}}
	}

	order, err := s.OrderService.CreateOrder(s.Ctx, service.CreateOrderInput{
		UserID:          "user-999",
		ShippingAddress: "Kuronami street 1",
		Items:           items,
	})
	s.Require().NoError(err)
	s.Require().NotNil(order)

	return order
}

func (s *IntegrationTestSuite) statusOf(orderNumber string) string {
	var status string
	err := s.DbPool.QueryRow(s.Ctx, `SELECT status FROM orders WHERE order_number = $1`, orderNumber).Scan(&status)
	s.Require().NoError(err)
	return status
}

func (s *IntegrationTestSuite) eventuallyPublished(orderNumber, eventType string) {
	query := `
		SELECT published_at
		FROM outbox
		WHERE aggregate_id = $1 AND event_type = $2
	`

	s.Require().Eventually(func() bool {
		var publishedAt *time.Time
		err := s.DbPool.QueryRow(s.Ctx, query, orderNumber, eventType).Scan(&publishedAt)
		return err == nil && publishedAt != nil
	}, 10*time.Second, 100*time.Millisecond)
}

func TestIntegrationSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("integration suite needs docker")
	}

	suite.Run(t, new(IntegrationTestSuite))
}
