package http

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"

	"github.com/jhoicas/inventario-tags/internal/application/dto"
	"github.com/jhoicas/inventario-tags/internal/domain"
)

// errorMapping sentinela -> estado HTTP y código. Se evalúa en orden con errors.Is.
var errorMapping = []struct {
	err    error
	status int
	code   string
}{
	{domain.ErrInvalidInput, fiber.StatusBadRequest, "VALIDATION"},
	{domain.ErrInvalidSelection, fiber.StatusBadRequest, "INVALID_SELECTION"},
	{domain.ErrUnauthorized, fiber.StatusUnauthorized, "UNAUTHORIZED"},
	{domain.ErrForbidden, fiber.StatusForbidden, "FORBIDDEN"},
	{domain.ErrNotFound, fiber.StatusNotFound, "NOT_FOUND"},
	{domain.ErrInsufficientStock, fiber.StatusConflict, "INSUFFICIENT_STOCK"},
	{domain.ErrAlreadyClaimed, fiber.StatusConflict, "ALREADY_CLAIMED"},
	{domain.ErrAlreadyTerminal, fiber.StatusConflict, "ALREADY_TERMINAL"},
	{domain.ErrNotClaimedByThisLine, fiber.StatusConflict, "NOT_CLAIMED_BY_THIS_LINE"},
	{domain.ErrNotClaimed, fiber.StatusConflict, "NOT_CLAIMED"},
	{domain.ErrReconcileRunning, fiber.StatusConflict, "RECONCILE_RUNNING"},
	{domain.ErrConflict, fiber.StatusConflict, "CONFLICT"},
	{domain.ErrRateLimited, fiber.StatusTooManyRequests, "RATE_LIMITED"},
}

// writeError traduce errores de dominio a dto.ErrorResponse.
func writeError(c *fiber.Ctx, err error) error {
	for _, m := range errorMapping {
		if errors.Is(err, m.err) {
			return c.Status(m.status).JSON(dto.ErrorResponse{Code: m.code, Message: err.Error()})
		}
	}
	log.Error().Err(err).Str("method", c.Method()).Str("path", c.Path()).Msg("error interno en handler")
	return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Code: "INTERNAL", Message: "error interno"})
}

func badBody(c *fiber.Ctx) error {
	return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "INVALID_BODY", Message: "cuerpo inválido"})
}

func invalid(c *fiber.Ctx, fields map[string]string) error {
	return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "VALIDATION", Message: "datos inválidos", Fields: fields})
}
