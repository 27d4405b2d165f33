package http

import (
	"github.com/gofiber/contrib/otelfiber"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/sakashimaa/go-pet-project/pkg/config"
	"github.com/sakashimaa/go-pet-project/pkg/middleware"
	"github.com/sakashimaa/go-pet-project/services/payment/internal/transport/http/handler"
)

func NewApp(cfg config.HTTP) *fiber.App {
	return fiber.New(fiber.Config{
		AppName:     "payment-service",
		ReadTimeout: cfg.Timeout,
	})
}

func RegisterRoutes(app *fiber.App, h *handler.PaymentHandler, limiter config.Limiter) {
	app.Use(recover.New())
	app.Use(otelfiber.Middleware())
	app.Use(middleware.NewCorrelationMiddleware())

	app.Get("/health", h.Health)

	payments := app.Group("/api/payments", middleware.NewLimiter(limiter))
	payments.Post("/initiate", h.Initiate)
	payments.Get("/order/:orderId", h.GetByOrder)
	payments.Get("/:transactionId", h.Get)
	payments.Post("/:transactionId/refund", h.Refund)
}
