package main

import (
	"context"
	"errors"
	"log"
	"net"
	"os/signal"
	"syscall"
	"time"

	grpc_prometheus "github.com/grpc-ecosystem/go-grpc-prometheus"
	"github.com/joho/godotenv"
	"github.com/sakashimaa/go-pet-project/pkg/config"
	"github.com/sakashimaa/go-pet-project/pkg/db"
	kafka2 "github.com/sakashimaa/go-pet-project/pkg/kafka"
	"github.com/sakashimaa/go-pet-project/pkg/metrics"
	"github.com/sakashimaa/go-pet-project/pkg/mylogger"
	outboxRepository "github.com/sakashimaa/go-pet-project/pkg/outbox/repository"
	"github.com/sakashimaa/go-pet-project/pkg/outbox/worker"
	"github.com/sakashimaa/go-pet-project/pkg/utils"
	"github.com/sakashimaa/go-pet-project/services/order/internal/cache"
	"github.com/sakashimaa/go-pet-project/services/order/internal/gateway"
	orderMetrics "github.com/sakashimaa/go-pet-project/services/order/internal/metrics"
	"github.com/sakashimaa/go-pet-project/services/order/internal/repository"
	"github.com/sakashimaa/go-pet-project/services/order/internal/resilience"
	"github.com/sakashimaa/go-pet-project/services/order/internal/service"
	"github.com/sakashimaa/go-pet-project/services/order/internal/transport/grpc"
	orderHttp "github.com/sakashimaa/go-pet-project/services/order/internal/transport/http"
	"github.com/sakashimaa/go-pet-project/services/order/internal/transport/http/handler"
	"github.com/sakashimaa/go-pet-project/services/order/internal/transport/kafka"
	"go.uber.org/zap"
)

var callSites = []string{
	"catalog.lookup",
	"stock.check",
	"stock.reserve",
	"stock.release",
	"stock.confirm",
	"payment.initiate",
}

func main() {
	if err := godotenv.Load(); err != nil {
		log.Printf(".env not found: %v\n", err)
	}

	cfg := config.MustLoad()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger, err := cfg.LoggerFor("order-service")
	if err != nil {
		log.Fatalf("failed to create logger: %v", err)
	}
	defer func() {
		_ = logger.Sync()
	}()

	tp, err := utils.InitTracer(ctx, "order-service", cfg.Tracing.Endpoint, cfg.Env)
	if err != nil {
		log.Fatalf("failed to init tracer: %v", err)
	}

	pool, err := db.NewPostgresDB(ctx, cfg.Postgres)
	if err != nil {
		log.Fatalf("failed to create pool: %v", err)
	}

	var idempotency cache.IdempotencyStore
	redisClient, err := db.NewRedisClient(ctx, cfg.Redis)
	if err != nil {
		mylogger.Warn(ctx, logger, "Redis unavailable, idempotency keys disabled", zap.Error(err))
	} else {
		idempotency = cache.NewIdempotencyStore(redisClient, cfg.Redis.IdempotencyTTL, cfg.Redis.ClaimTTL)
	}

	reg := metrics.NewRegistry()
	grpc_prometheus.EnableHandlingTimeHistogram()
	reg.MustRegister(grpc_prometheus.DefaultServerMetrics)

	sagaMetrics := orderMetrics.NewSaga(reg)
	sagaMetrics.Track(callSites...)

	go func() {
		if err := metrics.Serve(ctx, cfg.Metrics.Port, reg, logger); err != nil {
			mylogger.Error(ctx, logger, "Metrics serving failed", zap.Error(err))
		}
	}()

	health := grpc.NewHealthReporter(logger, callSites...)
	policy := func(name string) *resilience.Policy {
		return resilience.NewPolicy(
			resilience.SettingsFromConfig(name, cfg.Resilience),
			logger,
			health.OnStateChange,
			sagaMetrics.OnStateChange,
		)
	}

	callTimeout := cfg.Resilience.CallTimeout

	catalog := gateway.WithCatalogFallback(
		gateway.NewResilientCatalog(gateway.NewCatalogClient(cfg.Services.CatalogURL, callTimeout), policy("catalog.lookup")),
		logger,
	)
	stock := gateway.WithStockFallback(
		gateway.NewResilientStock(gateway.NewStockClient(cfg.Services.StockURL, callTimeout), gateway.StockPolicies{
			Check:   policy("stock.check"),
			Reserve: policy("stock.reserve"),
			Release: policy("stock.release"),
			Confirm: policy("stock.confirm"),
		}),
		logger,
	)
	payments := gateway.WithPaymentFallback(
		gateway.NewResilientPayment(gateway.NewPaymentClient(cfg.Services.PaymentURL, callTimeout), policy("payment.initiate")),
		logger,
	)

	outboxRepo := outboxRepository.NewOutboxRepository(cfg.Outbox.MaxAttempts)
	store := repository.NewOrderStore(pool, repository.NewOrderRepository(logger), outboxRepo, cfg.Kafka.OrderTopic, logger)
	orderService := orderMetrics.Instrument(
		service.NewOrderService(store, catalog, stock, payments, idempotency, logger),
		sagaMetrics,
	)

	kafkaProducer, err := kafka2.NewProducer(cfg.Kafka.Brokers, logger)
	if err != nil {
		log.Fatalf("error creating kafka producer: %v", err)
	}

	outboxProcessor := worker.NewOutboxProcessor(pool, outboxRepo, kafkaProducer, logger, cfg.Outbox.BatchSize, cfg.Outbox.Interval)
	go outboxProcessor.Start(ctx)

	consumer := kafka.NewConsumer(orderService, logger)
	consumerDone := make(chan struct{})
	go func() {
		defer close(consumerDone)
		if err := consumer.Start(ctx, cfg.Kafka.Brokers, cfg.Kafka.GroupID, cfg.Kafka.PaymentTopic); err != nil {
			mylogger.Error(ctx, logger, "Payment events consumer stopped", zap.Error(err))
		}
	}()

	lis, err := net.Listen("tcp", cfg.GRPC.Port)
	if err != nil {
		log.Fatalf("Error listening on %s: %v", cfg.GRPC.Port, err)
	}

	grpcServer := grpc.NewServer(health)
	go func() {
		mylogger.Info(ctx, logger, "gRPC health server listening", zap.String("port", cfg.GRPC.Port))
		if err := grpcServer.Serve(lis); err != nil {
			mylogger.Error(ctx, logger, "Error serving gRPC", zap.Error(err))
		}
	}()

	app := orderHttp.NewApp(cfg.HTTP)
	orderHttp.RegisterRoutes(app, handler.NewOrderHandler(orderService, logger), cfg.Limiter)

	go func() {
		mylogger.Info(ctx, logger, "HTTP service listening", zap.String("port", cfg.HTTP.Port))
		if err := app.Listen(cfg.HTTP.Port); err != nil {
			log.Fatalf("Error listening on HTTP port %v: %v\n", cfg.HTTP.Port, err)
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	mylogger.Info(shutdownCtx, logger, "Shutting down order service")

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		mylogger.Warn(shutdownCtx, logger, "Error shutting down HTTP app", zap.Error(err))
	}

	health.Shutdown()
	grpcServer.GracefulStop()

	select {
	case <-consumerDone:
	case <-shutdownCtx.Done():
		mylogger.Warn(shutdownCtx, logger, "Consumer did not stop in time")
	}

	if err := kafkaProducer.Close(); err != nil {
		mylogger.Warn(shutdownCtx, logger, "Error closing kafka producer", zap.Error(err))
	}

	if redisClient != nil {
		_ = redisClient.Close()
	}

	pool.Close()

	if err := tp.Shutdown(shutdownCtx); err != nil && !errors.Is(err, context.Canceled) {
		mylogger.Warn(shutdownCtx, logger, "Failed to shut down telemetry", zap.Error(err))
	}
}
