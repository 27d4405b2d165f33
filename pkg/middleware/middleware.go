package middleware

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/google/uuid"
	"github.com/sakashimaa/go-pet-project/pkg/config"
	"github.com/sakashimaa/go-pet-project/pkg/mylogger"
	"github.com/sakashimaa/go-pet-project/pkg/response"
)

const (
	CorrelationHeader = "X-Correlation-Id"
	correlationLocal  = "correlationId"
)

// NewCorrelationMiddleware accepts or generates a correlation id, echoes it back and stores it in the
// request's user context so mylogger attaches it to every line.
func NewCorrelationMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := c.Get(CorrelationHeader)
		if id == "" {
			id = uuid.NewString()
		}

		c.Set(CorrelationHeader, id)
		c.Locals(correlationLocal, id)
		c.SetUserContext(mylogger.WithCorrelationID(c.UserContext(), id))

		return c.Next()
	}
}

func NewLimiter(cfg config.Limiter) fiber.Handler {
	return limiter.New(limiter.Config{
		Max:        cfg.Max,
		Expiration: cfg.Expiration,
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return response.Fail(c, fiber.StatusTooManyRequests, "Too many requests. Try again later.")
		},
	})
}
