package handler

import (
	"context"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/sakashimaa/go-pet-project/pkg/response"
	"github.com/sakashimaa/go-pet-project/pkg/utils"
	"github.com/sakashimaa/go-pet-project/services/inventory/internal/domain"
	"github.com/sakashimaa/go-pet-project/services/inventory/internal/service"
	"go.uber.org/zap"
)

type InventoryHandler struct {
	svc      service.InventoryService
	validate *validator.Validate
	logger   *zap.Logger
}

func NewInventoryHandler(svc service.InventoryService, logger *zap.Logger) *InventoryHandler {
	return &InventoryHandler{
		svc:      svc,
		validate: validator.New(),
		logger:   logger,
	}
}

func (h *InventoryHandler) Get(c *fiber.Ctx) error {
	level, err := h.svc.GetStock(c.UserContext(), c.Params("sku"))
	if err != nil {
		return fail(c, h.logger, "get stock", err)
	}

	return response.OK(c, fiber.StatusOK, "", toStockResponse(level))
}

func (h *InventoryHandler) Add(c *fiber.Ctx) error {
	input := new(StockInput)
	if err := c.BodyParser(input); err != nil {
		return response.Fail(c, fiber.StatusBadRequest, "error parsing body")
	}

	if err := h.validate.Struct(input); err != nil {
		return response.Invalid(c, "validation failed", utils.FormatValidationError(err))
	}

	level, err := h.svc.AddStock(c.UserContext(), input.Sku, input.Quantity)
	if err != nil {
		return fail(c, h.logger, "add stock", err)
	}

	return response.OK(c, fiber.StatusOK, "Stock added", toStockResponse(level))
}

func (h *InventoryHandler) Check(c *fiber.Ctx) error {
	sku := c.Params("sku")
	quantity := int32(c.QueryInt("quantity", 1))

	ok, err := h.svc.IsInStock(c.UserContext(), sku, quantity)
	if err != nil {
		return fail(c, h.logger, "check stock", err)
	}

	return response.OK(c, fiber.StatusOK, "", AvailabilityResponse{Sku: sku, Quantity: quantity, Available: ok})
}

func (h *InventoryHandler) Reserve(c *fiber.Ctx) error {
	return h.mutate(c, "reserve stock", "Stock reserved", h.svc.Reserve)
}

func (h *InventoryHandler) Release(c *fiber.Ctx) error {
	return h.mutate(c, "release stock", "Stock released", h.svc.Release)
}

func (h *InventoryHandler) ConfirmDeduction(c *fiber.Ctx) error {
	return h.mutate(c, "confirm deduction", "Stock deducted", h.svc.ConfirmDeduction)
}

func (h *InventoryHandler) LowStock(c *fiber.Ctx) error {
	levels, err := h.svc.LowStockAlerts(c.UserContext())
	if err != nil {
		return fail(c, h.logger, "low stock alerts", err)
	}

	out := make([]StockResponse, 0, len(levels))
	for i := range levels {
		out = append(out, toStockResponse(&levels[i]))
	}

	return response.OK(c, fiber.StatusOK, "", out)
}

func (h *InventoryHandler) mutate(
	c *fiber.Ctx,
	op, message string,
	apply func(ctx context.Context, in service.ReservationInput) (*domain.StockLevel, error),
) error {
	input := new(ReservationInput)
	if err := c.BodyParser(input); err != nil {
		return response.Fail(c, fiber.StatusBadRequest, "error parsing body")
	}

	if err := h.validate.Struct(input); err != nil {
		return response.Invalid(c, "validation failed", utils.FormatValidationError(err))
	}

	level, err := apply(c.UserContext(), service.ReservationInput{
		Token:    input.Token,
		Sku:      input.Sku,
		Quantity: input.Quantity,
	})
	if err != nil {
		return fail(c, h.logger, op, err)
	}

	return response.OK(c, fiber.StatusOK, message, toStockResponse(level))
}

func (h *InventoryHandler) Health(c *fiber.Ctx) error {
	return response.OK(c, fiber.StatusOK, "", fiber.Map{"status": "UP"})
}
