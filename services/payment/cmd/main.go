package main

import (
	"context"
	"errors"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/sakashimaa/go-pet-project/pkg/config"
	"github.com/sakashimaa/go-pet-project/pkg/db"
	kafka2 "github.com/sakashimaa/go-pet-project/pkg/kafka"
	"github.com/sakashimaa/go-pet-project/pkg/metrics"
	"github.com/sakashimaa/go-pet-project/pkg/mylogger"
	outbox "github.com/sakashimaa/go-pet-project/pkg/outbox/repository"
	"github.com/sakashimaa/go-pet-project/pkg/outbox/worker"
	"github.com/sakashimaa/go-pet-project/pkg/utils"
	"github.com/sakashimaa/go-pet-project/services/payment/internal/repository"
	"github.com/sakashimaa/go-pet-project/services/payment/internal/service"
	paymentHttp "github.com/sakashimaa/go-pet-project/services/payment/internal/transport/http"
	"github.com/sakashimaa/go-pet-project/services/payment/internal/transport/http/handler"
	"github.com/sakashimaa/go-pet-project/services/payment/internal/transport/kafka"
	"go.uber.org/zap"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Printf(".env not found: %v\n", err)
	}

	cfg := config.MustLoad()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger, err := cfg.LoggerFor("payment-service")
	if err != nil {
		log.Fatalf("failed to create logger: %v", err)
	}
	defer func() {
		_ = logger.Sync()
	}()

	tp, err := utils.InitTracer(ctx, "payment-service", cfg.Tracing.Endpoint, cfg.Env)
	if err != nil {
		log.Fatalf("Error init tracer: %v", err)
	}

	go func() {
		if err := metrics.Serve(ctx, cfg.Metrics.Port, metrics.NewRegistry(), logger); err != nil {
			mylogger.Error(ctx, logger, "Metrics serving failed", zap.Error(err))
		}
	}()

	pool, err := db.NewPostgresDB(ctx, cfg.Postgres)
	if err != nil {
		log.Fatalf("Error creating postgres DB: %v", err)
	}

	outboxRepo := outbox.NewOutboxRepository(cfg.Outbox.MaxAttempts)
	paymentService := service.NewPaymentService(
		pool,
		repository.NewPaymentRepository(logger),
		outboxRepo,
		cfg.Kafka.PaymentTopic,
		logger,
	)

	kafkaProducer, err := kafka2.NewProducer(cfg.Kafka.Brokers, logger)
	if err != nil {
		log.Fatalf("error creating kafka producer: %v", err)
	}

	outboxProcessor := worker.NewOutboxProcessor(pool, outboxRepo, kafkaProducer, logger, cfg.Outbox.BatchSize, cfg.Outbox.Interval)
	go outboxProcessor.Start(ctx)

	consumer := kafka.NewConsumer(paymentService, logger)
	consumerDone := make(chan struct{})
	go func() {
		defer close(consumerDone)
		if err := consumer.Start(ctx, cfg.Kafka.Brokers, cfg.Kafka.GroupID, cfg.Kafka.OrderTopic); err != nil {
			mylogger.Error(ctx, logger, "Order events consumer stopped", zap.Error(err))
		}
	}()

	app := paymentHttp.NewApp(cfg.HTTP)
	paymentHttp.RegisterRoutes(app, handler.NewPaymentHandler(paymentService, logger), cfg.Limiter)

	go func() {
		mylogger.Info(ctx, logger, "HTTP service listening", zap.String("port", cfg.HTTP.Port))
		if err := app.Listen(cfg.HTTP.Port); err != nil {
			log.Fatalf("Error listening on HTTP port %v: %v\n", cfg.HTTP.Port, err)
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	mylogger.Info(shutdownCtx, logger, "Shutting down payment service")

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		mylogger.Warn(shutdownCtx, logger, "Error shutting down HTTP app", zap.Error(err))
	}

	select {
	case <-consumerDone:
	case <-shutdownCtx.Done():
		mylogger.Warn(shutdownCtx, logger, "Consumer did not stop in time")
	}

	if err := kafkaProducer.Close(); err != nil {
		mylogger.Warn(shutdownCtx, logger, "Error closing kafka producer", zap.Error(err))
	}

	pool.Close()

	if err := tp.Shutdown(shutdownCtx); err != nil && !errors.Is(err, context.Canceled) {
		mylogger.Warn(shutdownCtx, logger, "Failed to shut down telemetry", zap.Error(err))
	}
}
