package handler

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/sakashimaa/go-pet-project/pkg/mylogger"
	"github.com/sakashimaa/go-pet-project/pkg/response"
	"github.com/sakashimaa/go-pet-project/services/order/internal/domain"
	"go.uber.org/zap"
)

func (h *OrderHandler) fail(c *fiber.Ctx, op string, err error) error {
	switch {
	case errors.Is(err, domain.ErrInvalidRequest):
		mylogger.Info(c.UserContext(), h.logger, op+" rejected", zap.Error(err))
		return response.Fail(c, fiber.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrNotFound):
		return response.Fail(c, fiber.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrUnavailable):
		mylogger.Warn(c.UserContext(), h.logger, op+" unavailable", zap.Error(err))
		return response.Fail(c, fiber.StatusServiceUnavailable, err.Error())
	default:
		mylogger.Error(c.UserContext(), h.logger, op+" failed", zap.Error(err))
		return response.Fail(c, fiber.StatusInternalServerError, "internal error")
	}
}
