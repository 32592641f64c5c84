package http

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/jhoicas/inventario-tags/internal/application/allocation"
	"github.com/jhoicas/inventario-tags/internal/application/dto"
	"github.com/jhoicas/inventario-tags/internal/application/inventory"
	"github.com/jhoicas/inventario-tags/internal/application/tags"
	"github.com/jhoicas/inventario-tags/internal/domain/entity"
)

// InventoryHandler recepciones, agregados y vista previa de asignación (protegido).
type InventoryHandler struct {
	receipts   *inventory.ReceiptUseCase
	aggregator *inventory.AggregatorUseCase
	tags       *tags.Manager
	restock    *inventory.ReplenishmentUseCase
}

// NewInventoryHandler construye el handler.
func NewInventoryHandler(receipts *inventory.ReceiptUseCase, aggregator *inventory.AggregatorUseCase, tagManager *tags.Manager, restock *inventory.ReplenishmentUseCase) *InventoryHandler {
	return &InventoryHandler{receipts: receipts, aggregator: aggregator, tags: tagManager, restock: restock}
}

// Receive godoc
// @Summary      Registrar recepción de stock
// @Tags         inventory
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        body  body  dto.ReceiptRequest  true  "sku_id, quantity, unit_cost, location"
// @Success      201   {array}   dto.InstanceDTO
// @Failure      400   {object}  dto.ErrorResponse
// @Failure      404   {object}  dto.ErrorResponse
// @Router       /api/inventory/receipts [post]
func (h *InventoryHandler) Receive(c *fiber.Ctx) error {
	var in dto.ReceiptRequest
	if err := c.BodyParser(&in); err != nil {
		return badBody(c)
	}
	if fields := dto.Validate(&in); fields != nil {
		return invalid(c, fields)
	}
	input := inventory.ReceiptInput{
		SKUID:     in.SKUID,
		Quantity:  in.Quantity,
		UnitCost:  in.UnitCost,
		Location:  in.Location,
		Condition: in.Condition,
		Notes:     in.Notes,
	}
	if in.AcquiredAt != nil {
		input.AcquiredAt = *in.AcquiredAt
	}
	created, err := h.receipts.Receive(c.Context(), input, GetActor(c))
	if err != nil {
		return writeError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(dto.NewInstanceList(created))
}

// GetAggregate godoc
// @Summary      Resumen de inventario de un SKU
// @Tags         inventory
// @Security     Bearer
// @Produce      json
// @Param        sku_id  path  string  true  "SKU"
// @Success      200  {object}  dto.AggregateDTO
// @Failure      404  {object}  dto.ErrorResponse
// @Router       /api/inventory/{sku_id} [get]
func (h *InventoryHandler) GetAggregate(c *fiber.Ctx) error {
	agg, err := h.aggregator.Get(c.Context(), c.Params("sku_id"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(dto.NewAggregateDTO(agg))
}

// Recompute godoc
// @Summary      Recalcular el agregado de un SKU desde sus instancias
// @Tags         inventory
// @Security     Bearer
// @Produce      json
// @Param        sku_id  path  string  true  "SKU"
// @Success      200  {object}  dto.AggregateDTO
// @Failure      404  {object}  dto.ErrorResponse
// @Router       /api/inventory/{sku_id}/recompute [post]
func (h *InventoryHandler) Recompute(c *fiber.Ctx) error {
	mv := &entity.Movement{Type: entity.MovementTypeRecompute, Actor: GetUserID(c), At: time.Now()}
	agg, err := h.aggregator.Recompute(c.Context(), c.Params("sku_id"), mv)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(dto.NewAggregateDTO(agg))
}

// Preview godoc
// @Summary      Vista previa de asignación (no reclama)
// @Tags         inventory
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        body  body  dto.PreviewRequest  true  "sku_id, quantity, method"
// @Success      200  {array}   dto.InstanceDTO
// @Failure      409  {object}  dto.ErrorResponse
// @Router       /api/inventory/allocations/preview [post]
func (h *InventoryHandler) Preview(c *fiber.Ctx) error {
	var in dto.PreviewRequest
	if err := c.BodyParser(&in); err != nil {
		return badBody(c)
	}
	if fields := dto.Validate(&in); fields != nil {
		return invalid(c, fields)
	}
	picks, err := h.tags.Preview(c.Context(), allocation.Request{
		SKUID:       in.SKUID,
		Quantity:    in.Quantity,
		Method:      in.Method,
		InstanceIDs: in.InstanceIDs,
	})
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(dto.NewInstanceList(picks))
}

// Replenishment godoc
// @Summary      Lista de reposición (SKUs en o bajo el umbral)
// @Tags         inventory
// @Security     Bearer
// @Produce      json
// @Success      200  {array}  dto.ReplenishmentSuggestionDTO
// @Router       /api/inventory/replenishment [get]
func (h *InventoryHandler) Replenishment(c *fiber.Ctx) error {
	list, err := h.restock.GenerateReplenishmentList(c.Context())
	if err != nil {
		return writeError(c, err)
	}
	out := make([]dto.ReplenishmentSuggestionDTO, 0, len(list))
	for _, s := range list {
		out = append(out, dto.ReplenishmentSuggestionDTO{
			SKUID:              s.SKUID,
			Code:               s.Code,
			Name:               s.Name,
			TotalQuantity:      s.TotalQuantity,
			AvailableQuantity:  s.AvailableQuantity,
			Threshold:          s.Threshold,
			IdealStock:         s.IdealStock,
			SuggestedOrderQty:  s.SuggestedOrderQty,
			UnitCost:           s.UnitCost,
			EstimatedOrderCost: s.EstimatedOrderCost,
			OutOfStock:         s.OutOfStock,
			Priority:           s.Priority,
		})
	}
	return c.JSON(out)
}
