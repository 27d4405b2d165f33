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
	"github.com/sakashimaa/go-pet-project/pkg/metrics"
	"github.com/sakashimaa/go-pet-project/pkg/mylogger"
	"github.com/sakashimaa/go-pet-project/pkg/utils"
	"github.com/sakashimaa/go-pet-project/services/inventory/internal/repository"
	"github.com/sakashimaa/go-pet-project/services/inventory/internal/service"
	inventoryHttp "github.com/sakashimaa/go-pet-project/services/inventory/internal/transport/http"
	"github.com/sakashimaa/go-pet-project/services/inventory/internal/transport/http/handler"
	"github.com/sakashimaa/go-pet-project/services/inventory/internal/transport/kafka"
	"go.uber.org/zap"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Printf(".env not found: %v\n", err)
	}

	cfg := config.MustLoad()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger, err := cfg.LoggerFor("inventory-service")
	if err != nil {
		log.Fatalf("failed to create logger: %v", err)
	}
	defer func() {
		_ = logger.Sync()
	}()

	tp, err := utils.InitTracer(ctx, "inventory-service", cfg.Tracing.Endpoint, cfg.Env)
	if err != nil {
		log.Fatalf("failed to init tracer: %v", err)
	}

	go func() {
		if err := metrics.Serve(ctx, cfg.Metrics.Port, metrics.NewRegistry(), logger); err != nil {
			mylogger.Error(ctx, logger, "Metrics serving failed", zap.Error(err))
		}
	}()

	pool, err := db.NewPostgresDB(ctx, cfg.Postgres)
	if err != nil {
		log.Fatalf("failed to create pool: %v", err)
	}

	stockRepo := repository.NewStockRepository(logger)
	threshold := cfg.Inventory.LowStockThreshold

	inventoryService := service.NewInventoryService(pool, stockRepo, threshold, logger)
	catalogService := service.NewCatalogService(pool, repository.NewProductRepository(pool, logger), stockRepo, threshold, logger)

	redisClient, err := db.NewRedisClient(ctx, cfg.Redis)
	if err != nil {
		mylogger.Warn(ctx, logger, "Redis unavailable, catalog cache disabled", zap.Error(err))
	} else {
		catalogService = service.NewCachedCatalogService(catalogService, redisClient, cfg.Redis.CacheTTL, logger)
	}

	consumer := kafka.NewConsumer(inventoryService, logger)
	consumerDone := make(chan struct{})
	go func() {
		defer close(consumerDone)
		if err := consumer.Start(ctx, cfg.Kafka.Brokers, cfg.Kafka.GroupID, cfg.Kafka.OrderTopic); err != nil {
			mylogger.Error(ctx, logger, "Order events consumer stopped", zap.Error(err))
		}
	}()

	app := inventoryHttp.NewApp(cfg.HTTP)
	inventoryHttp.RegisterRoutes(
		app,
		handler.NewProductHandler(catalogService, logger),
		handler.NewDetailsHandler(service.NewDetailsService(catalogService, inventoryService, logger), logger),
		handler.NewInventoryHandler(inventoryService, logger),
		cfg.Limiter,
	)

	go func() {
		mylogger.Info(ctx, logger, "HTTP service listening", zap.String("port", cfg.HTTP.Port))
		if err := app.Listen(cfg.HTTP.Port); err != nil {
			log.Fatalf("Error listening on HTTP port %v: %v\n", cfg.HTTP.Port, err)
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	mylogger.Info(shutdownCtx, logger, "Shutting down inventory service")

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		mylogger.Warn(shutdownCtx, logger, "Error shutting down HTTP app", zap.Error(err))
	}

	select {
	case <-consumerDone:
	case <-shutdownCtx.Done():
		mylogger.Warn(shutdownCtx, logger, "Consumer did not stop in time")
	}

	if redisClient != nil {
		_ = redisClient.Close()
	}

	pool.Close()

	if err := tp.Shutdown(shutdownCtx); err != nil && !errors.Is(err, context.Canceled) {
		mylogger.Warn(shutdownCtx, logger, "Failed to shut down telemetry", zap.Error(err))
	}
}
