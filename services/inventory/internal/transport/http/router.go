package http

import (
	"github.com/gofiber/contrib/otelfiber"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/sakashimaa/go-pet-project/pkg/config"
	"github.com/sakashimaa/go-pet-project/pkg/middleware"
	"github.com/sakashimaa/go-pet-project/services/inventory/internal/transport/http/handler"
)

func NewApp(cfg config.HTTP) *fiber.App {
	return fiber.New(fiber.Config{
		AppName:     "inventory-service",
		ReadTimeout: cfg.Timeout,
	})
}

// RegisterRoutes rate limits the catalog only; ledger endpoints serve the order service.
func RegisterRoutes(app *fiber.App, products *handler.ProductHandler, details *handler.DetailsHandler, inventory *handler.InventoryHandler, limiter config.Limiter) {
	app.Use(recover.New())
	app.Use(otelfiber.Middleware())
	app.Use(middleware.NewCorrelationMiddleware())

	app.Get("/health", inventory.Health)

	api := app.Group("/api")

	catalog := api.Group("/products", middleware.NewLimiter(limiter))
	catalog.Post("", products.Create)
	catalog.Get("", products.List)
	catalog.Get("/sku/:sku", products.GetBySku)
	catalog.Get("/:id/details", details.Get)
	catalog.Get("/:id", products.GetByID)

	stock := api.Group("/inventory")
	stock.Get("/check/:sku", inventory.Check)
	stock.Get("/alerts/low-stock", inventory.LowStock)
	stock.Post("/add", inventory.Add)
	stock.Post("/reserve", inventory.Reserve)
	stock.Post("/release", inventory.Release)
	stock.Post("/confirm-deduction", inventory.ConfirmDeduction)
	stock.Get("/:sku", inventory.Get)
}
