package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/jhoicas/inventario-tags/internal/application/dto"
	"github.com/jhoicas/inventario-tags/internal/application/ratelimit"
)

// RateLimit limita por actor (o por IP si la ruta no está autenticada).
// limiter nil deja pasar todo.
func RateLimit(limiter *ratelimit.Limiter) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if limiter == nil {
			return c.Next()
		}
		key := GetUserID(c)
		if key == "" {
			key = "ip:" + c.IP()
		}
		if !limiter.Allow(key) {
			return c.Status(fiber.StatusTooManyRequests).JSON(dto.ErrorResponse{Code: "RATE_LIMITED", Message: "demasiadas solicitudes"})
		}
		return c.Next()
	}
}
