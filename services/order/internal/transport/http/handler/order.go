package handler

import (
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/sakashimaa/go-pet-project/pkg/mylogger"
	"github.com/sakashimaa/go-pet-project/pkg/response"
	"github.com/sakashimaa/go-pet-project/pkg/utils"
	"github.com/sakashimaa/go-pet-project/services/order/internal/service"
	"go.uber.org/zap"
)

const (
	UserHeader        = "X-Auth-User"
	IdempotencyHeader = "X-Idempotency-Key"
)

type OrderHandler struct {
	svc      service.OrderService
	validate *validator.Validate
	logger   *zap.Logger
}

func NewOrderHandler(svc service.OrderService, logger *zap.Logger) *OrderHandler {
	return &OrderHandler{
		svc:      svc,
		validate: validator.New(),
		logger:   logger,
	}
}

func (h *OrderHandler) Create(c *fiber.Ctx) error {
	ctx := c.UserContext()

	input := new(CreateOrderInput)
	if err := c.BodyParser(input); err != nil {
		mylogger.Warn(ctx, h.logger, "failed to parse body in create", zap.Error(err))
		return response.Fail(c, fiber.StatusBadRequest, "error parsing body")
	}

	if err := h.validate.Struct(input); err != nil {
		return response.Invalid(c, "validation failed", utils.FormatValidationError(err))
	}

	items := make([]service.ItemInput, len(input.Items))
	for i, item := range input.Items {
		items[i] = service.ItemInput{Sku: item.Sku, Quantity: item.Quantity}
	}

	order, err := h.svc.CreateOrder(ctx, service.CreateOrderInput{
		UserID:          c.Get(UserHeader),
		ShippingAddress: input.ShippingAddress,
		Items:           items,
		IdempotencyKey:  c.Get(IdempotencyHeader),
	})
	if err != nil {
		return h.fail(c, "create order", err)
	}

	mylogger.Info(ctx, h.logger, "create order succeeded", zap.String("order_number", order.OrderNumber))

	return response.OK(c, fiber.StatusCreated, "Order created", toOrderResponse(order))
}

func (h *OrderHandler) Get(c *fiber.Ctx) error {
	order, err := h.svc.GetOrder(c.UserContext(), c.Params("orderNumber"))
	if err != nil {
		return h.fail(c, "get order", err)
	}

	return response.OK(c, fiber.StatusOK, "", toOrderResponse(order))
}

func (h *OrderHandler) Cancel(c *fiber.Ctx) error {
	order, err := h.svc.CancelOrder(c.UserContext(), c.Params("orderNumber"))
	if err != nil {
		return h.fail(c, "cancel order", err)
	}

	return response.OK(c, fiber.StatusOK, "Order cancelled", toOrderResponse(order))
}

func (h *OrderHandler) UpdateStatus(c *fiber.Ctx) error {
	status := c.Query("status")
	if status == "" && len(c.Body()) > 0 {
		input := new(UpdateStatusInput)
		if err := c.BodyParser(input); err != nil {
			return response.Fail(c, fiber.StatusBadRequest, "error parsing body")
		}
		status = input.Status
	}

	if status == "" {
		return response.Invalid(c, "validation failed", map[string]string{"status": "status is required"})
	}

	order, err := h.svc.UpdateOrderStatus(c.UserContext(), c.Params("orderNumber"), status)
	if err != nil {
		return h.fail(c, "update order status", err)
	}

	return response.OK(c, fiber.StatusOK, "Order status updated", toOrderResponse(order))
}

func (h *OrderHandler) Pay(c *fiber.Ctx) error {
	input := new(PayOrderInput)
	if len(c.Body()) > 0 {
		if err := c.BodyParser(input); err != nil {
			return response.Fail(c, fiber.StatusBadRequest, "error parsing body")
		}
		if err := h.validate.Struct(input); err != nil {
			return response.Invalid(c, "validation failed", utils.FormatValidationError(err))
		}
	}

	ack, err := h.svc.PayOrder(c.UserContext(), c.Params("orderNumber"), input.Method)
	if err != nil {
		return h.fail(c, "pay order", err)
	}

	return response.OK(c, fiber.StatusAccepted, "Payment initiated", ack)
}

func (h *OrderHandler) Health(c *fiber.Ctx) error {
	return response.OK(c, fiber.StatusOK, "", fiber.Map{"status": "UP"})
}
