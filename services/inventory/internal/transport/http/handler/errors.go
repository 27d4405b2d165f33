package handler

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/sakashimaa/go-pet-project/pkg/mylogger"
	"github.com/sakashimaa/go-pet-project/pkg/response"
	"github.com/sakashimaa/go-pet-project/services/inventory/internal/domain"
	"go.uber.org/zap"
)

func fail(c *fiber.Ctx, logger *zap.Logger, op string, err error) error {
	switch {
	case errors.Is(err, domain.ErrInvalidRequest):
		return response.Fail(c, fiber.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrNotFound):
		return response.Fail(c, fiber.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrInsufficientStock), errors.Is(err, domain.ErrReservationConflict):
		mylogger.Info(c.UserContext(), logger, op+" refused", zap.Error(err))
		return response.Fail(c, fiber.StatusConflict, err.Error())
	default:
		mylogger.Error(c.UserContext(), logger, op+" failed", zap.Error(err))
		return response.Fail(c, fiber.StatusInternalServerError, "internal error")
	}
}
