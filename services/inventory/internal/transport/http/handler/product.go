package handler

import (
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/sakashimaa/go-pet-project/pkg/mylogger"
	"github.com/sakashimaa/go-pet-project/pkg/response"
	"github.com/sakashimaa/go-pet-project/pkg/utils"
	"github.com/sakashimaa/go-pet-project/services/inventory/internal/domain"
	"github.com/sakashimaa/go-pet-project/services/inventory/internal/service"
	"go.uber.org/zap"
)

type ProductHandler struct {
	svc      service.CatalogService
	validate *validator.Validate
	logger   *zap.Logger
}

func NewProductHandler(svc service.CatalogService, logger *zap.Logger) *ProductHandler {
	return &ProductHandler{
		svc:      svc,
		validate: validator.New(),
		logger:   logger,
	}
}

func (h *ProductHandler) Create(c *fiber.Ctx) error {
	input := new(CreateProductInput)
	if err := c.BodyParser(input); err != nil {
		mylogger.Warn(c.UserContext(), h.logger, "failed to parse body in create product", zap.Error(err))
		return response.Fail(c, fiber.StatusBadRequest, "error parsing body")
	}

	if err := h.validate.Struct(input); err != nil {
		return response.Invalid(c, "validation failed", utils.FormatValidationError(err))
	}

	product, err := h.svc.Create(c.UserContext(), &domain.Product{
		Sku:         input.Sku,
		Name:        input.Name,
		Description: input.Description,
		Price:       input.Price,
		Category:    input.Category,
		ImageURL:    input.ImageURL,
	})
	if err != nil {
		return fail(c, h.logger, "create product", err)
	}

	return response.OK(c, fiber.StatusCreated, "Product created", toProductResponse(product))
}

func (h *ProductHandler) GetByID(c *fiber.Ctx) error {
	id, err := c.ParamsInt("id")
	if err != nil || id <= 0 {
		return response.Fail(c, fiber.StatusBadRequest, "invalid product id")
	}

	product, err := h.svc.FindByID(c.UserContext(), int64(id))
	if err != nil {
		return fail(c, h.logger, "get product", err)
	}

	return response.OK(c, fiber.StatusOK, "", toProductResponse(product))
}

func (h *ProductHandler) GetBySku(c *fiber.Ctx) error {
	product, err := h.svc.FindBySku(c.UserContext(), c.Params("sku"))
	if err != nil {
		return fail(c, h.logger, "get product by sku", err)
	}

	return response.OK(c, fiber.StatusOK, "", toProductResponse(product))
}

func (h *ProductHandler) List(c *fiber.Ctx) error {
	limit := int64(c.QueryInt("limit", 20))
	offset := int64(c.QueryInt("offset", 0))

	products, total, err := h.svc.List(c.UserContext(), limit, offset, c.Query("search"), c.Query("category"))
	if err != nil {
		return fail(c, h.logger, "list products", err)
	}

	page := ProductPage{
		Items:  make([]ProductResponse, 0, len(products)),
		Total:  total,
		Limit:  limit,
		Offset: offset,
	}
	for i := range products {
		page.Items = append(page.Items, toProductResponse(&products[i]))
	}

	return response.OK(c, fiber.StatusOK, "", page)
}
