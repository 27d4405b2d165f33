package http

import (
	"github.com/gofiber/contrib/otelfiber"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/sakashimaa/go-pet-project/pkg/config"
	"github.com/sakashimaa/go-pet-project/pkg/middleware"
	"github.com/sakashimaa/go-pet-project/services/order/internal/transport/http/handler"
)

func NewApp(cfg config.HTTP) *fiber.App {
	return fiber.New(fiber.Config{
		AppName:     "order-service",
		ReadTimeout: cfg.Timeout,
	})
}

func RegisterRoutes(app *fiber.App, h *handler.OrderHandler, limiter config.Limiter) {
	app.Use(recover.New())
	app.Use(otelfiber.Middleware())
	app.Use(middleware.NewCorrelationMiddleware())

	app.Get("/health", h.Health)

	api := app.Group("/api", middleware.NewLimiter(limiter))

	order := api.Group("/orders")
	order.Post("", h.Create)
	order.Get("/:orderNumber", h.Get)
	order.Put("/:orderNumber/cancel", h.Cancel)
	order.Put("/:orderNumber/status", h.UpdateStatus)
	order.Post("/:orderNumber/pay", h.Pay)
}
