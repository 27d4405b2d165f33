package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/sakashimaa/go-pet-project/pkg/response"
	"github.com/sakashimaa/go-pet-project/services/inventory/internal/service"
	"go.uber.org/zap"
)

type DetailsHandler struct {
	svc    service.DetailsService
	logger *zap.Logger
}

func NewDetailsHandler(svc service.DetailsService, logger *zap.Logger) *DetailsHandler {
	return &DetailsHandler{
		svc:    svc,
		logger: logger,
	}
}

func (h *DetailsHandler) Get(c *fiber.Ctx) error {
	id, err := c.ParamsInt("id")
	if err != nil || id <= 0 {
		return response.Fail(c, fiber.StatusBadRequest, "invalid product id")
	}

	details, err := h.svc.GetProductDetails(c.UserContext(), int64(id))
	if err != nil {
		return fail(c, h.logger, "get product details", err)
	}

	return response.OK(c, fiber.StatusOK, "", toProductDetailsResponse(details))
}
