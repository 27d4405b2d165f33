package response

import (
	"time"

	"github.com/gofiber/fiber/v2"
)

// Envelope is the uniform body shared by every HTTP service in the repository.
type Envelope[T any] struct {
	Success   bool              `json:"success"`
	Message   string            `json:"message,omitempty"`
	Data      T                 `json:"data,omitempty"`
	Errors    map[string]string `json:"errors,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
}

func OK[T any](c *fiber.Ctx, status int, message string, data T) error {
	return c.Status(status).JSON(Envelope[T]{
		Success:   true,
		Message:   message,
		Data:      data,
		Timestamp: time.Now().UTC(),
	})
}

func Fail(c *fiber.Ctx, status int, message string) error {
	return c.Status(status).JSON(Envelope[any]{
		Success:   false,
		Message:   message,
		Timestamp: time.Now().UTC(),
	})
}

func Invalid(c *fiber.Ctx, message string, fields map[string]string) error {
	return c.Status(fiber.StatusBadRequest).JSON(Envelope[any]{
		Success:   false,
		Message:   message,
		Errors:    fields,
		Timestamp: time.Now().UTC(),
	})
}
