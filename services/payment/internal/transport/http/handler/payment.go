package handler

import (
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/sakashimaa/go-pet-project/pkg/mylogger"
	"github.com/sakashimaa/go-pet-project/pkg/response"
	"github.com/sakashimaa/go-pet-project/pkg/utils"
	"github.com/sakashimaa/go-pet-project/services/payment/internal/domain"
	"github.com/sakashimaa/go-pet-project/services/payment/internal/service"
	"go.uber.org/zap"
)

type PaymentHandler struct {
	svc      service.PaymentService
	validate *validator.Validate
	logger   *zap.Logger
}

func NewPaymentHandler(svc service.PaymentService, logger *zap.Logger) *PaymentHandler {
	return &PaymentHandler{
		svc:      svc,
		validate: validator.New(),
		logger:   logger,
	}
}

func (h *PaymentHandler) Initiate(c *fiber.Ctx) error {
	input := new(InitiatePaymentInput)
	if err := c.BodyParser(input); err != nil {
		mylogger.Warn(c.UserContext(), h.logger, "failed to parse body in initiate", zap.Error(err))
		return response.Fail(c, fiber.StatusBadRequest, "error parsing body")
	}

	if err := h.validate.Struct(input); err != nil {
		return response.Invalid(c, "validation failed", utils.FormatValidationError(err))
	}

	payment, created, err := h.svc.Initiate(c.UserContext(), service.InitiateInput{
		OrderID: input.OrderID,
		Amount:  input.Amount,
		Method:  input.Method,
	})
	if err != nil {
		return h.fail(c, "initiate payment", err)
	}

	if !created {
		return response.OK(c, fiber.StatusOK, "Payment already initiated", toPaymentResponse(payment))
	}

	return response.OK(c, fiber.StatusCreated, "Payment initiated", toPaymentResponse(payment))
}

func (h *PaymentHandler) Get(c *fiber.Ctx) error {
	payment, err := h.svc.GetByTransactionID(c.UserContext(), c.Params("transactionId"))
	if err != nil {
		return h.fail(c, "get payment", err)
	}

	return response.OK(c, fiber.StatusOK, "", toPaymentResponse(payment))
}

func (h *PaymentHandler) GetByOrder(c *fiber.Ctx) error {
	payment, err := h.svc.GetByOrderID(c.UserContext(), c.Params("orderId"))
	if err != nil {
		return h.fail(c, "get payment by order", err)
	}

	return response.OK(c, fiber.StatusOK, "", toPaymentResponse(payment))
}

func (h *PaymentHandler) Refund(c *fiber.Ctx) error {
	payment, err := h.svc.Refund(c.UserContext(), c.Params("transactionId"))
	if err != nil {
		return h.fail(c, "refund payment", err)
	}

	return response.OK(c, fiber.StatusOK, "Payment refunded", toPaymentResponse(payment))
}

func (h *PaymentHandler) Health(c *fiber.Ctx) error {
	return response.OK(c, fiber.StatusOK, "", fiber.Map{"status": "UP"})
}

func (h *PaymentHandler) fail(c *fiber.Ctx, op string, err error) error {
	switch {
	case errors.Is(err, domain.ErrInvalidRequest):
		return response.Fail(c, fiber.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrNotFound):
		return response.Fail(c, fiber.StatusNotFound, err.Error())
	default:
		mylogger.Error(c.UserContext(), h.logger, op+" failed", zap.Error(err))
		return response.Fail(c, fiber.StatusInternalServerError, "internal error")
	}
}
