package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/jhoicas/inventario-tags/internal/application/dto"
	"github.com/jhoicas/inventario-tags/internal/application/reconcile"
)

// AdminHandler operaciones administrativas (solo admin).
type AdminHandler struct {
	reconcile *reconcile.Service
}

// NewAdminHandler construye el handler.
func NewAdminHandler(svc *reconcile.Service) *AdminHandler {
	return &AdminHandler{reconcile: svc}
}

// Reconcile godoc
// @Summary      Ejecutar conciliación de inventario
// @Tags         admin
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        body  body  dto.ReconcileRequest  false  "sku_ids, dry_run"
// @Success      200  {object}  reconcile.Report
// @Failure      403  {object}  dto.ErrorResponse
// @Failure      409  {object}  dto.ErrorResponse
// @Router       /api/admin/reconcile [post]
func (h *AdminHandler) Reconcile(c *fiber.Ctx) error {
	var in dto.ReconcileRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&in); err != nil {
			return badBody(c)
		}
	}
	if fields := dto.Validate(&in); fields != nil {
		return invalid(c, fields)
	}
	report, err := h.reconcile.Run(c.Context(), reconcile.Options{DryRun: in.DryRun, SKUIDs: in.SKUIDs}, GetActor(c))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(report)
}
