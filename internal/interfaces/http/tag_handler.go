package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/jhoicas/inventario-tags/internal/application/dto"
	"github.com/jhoicas/inventario-tags/internal/application/tags"
	"github.com/jhoicas/inventario-tags/internal/domain/entity"
)

// TagHandler ciclo de vida de tags (protegido).
type TagHandler struct {
	manager *tags.Manager
}

// NewTagHandler construye el handler.
func NewTagHandler(manager *tags.Manager) *TagHandler {
	return &TagHandler{manager: manager}
}

// Create godoc
// @Summary      Crear tag y reclamar instancias
// @Tags         tags
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        body  body  dto.CreateTagRequest  true  "customer_id o project_id, type, lines"
// @Success      201  {object}  dto.TagDTO
// @Failure      400  {object}  dto.ErrorResponse
// @Failure      409  {object}  dto.ErrorResponse
// @Router       /api/tags [post]
func (h *TagHandler) Create(c *fiber.Ctx) error {
	var in dto.CreateTagRequest
	if err := c.BodyParser(&in); err != nil {
		return badBody(c)
	}
	if fields := dto.Validate(&in); fields != nil {
		return invalid(c, fields)
	}
	input := tags.CreateTagInput{
		CustomerID: in.CustomerID,
		ProjectID:  in.ProjectID,
		Type:       in.Type,
		DueDate:    in.DueDate,
		Notes:      in.Notes,
	}
	for _, l := range in.Lines {
		input.Lines = append(input.Lines, tags.LineInput{
			SKUID:       l.SKUID,
			Method:      l.Method,
			Quantity:    l.Quantity,
			InstanceIDs: l.InstanceIDs,
			Notes:       l.Notes,
		})
	}
	tag, err := h.manager.CreateTag(c.Context(), input, GetActor(c))
	if err != nil {
		return writeError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(dto.NewTagDTO(tag))
}

// List godoc
// @Summary      Listar tags
// @Tags         tags
// @Security     Bearer
// @Produce      json
// @Param        status  query  string  false  "active | fulfilled | cancelled"
// @Param        limit   query  int     false  "máximo 100"
// @Param        offset  query  int     false  "desplazamiento"
// @Success      200  {object}  map[string]interface{}
// @Router       /api/tags [get]
func (h *TagHandler) List(c *fiber.Ctx) error {
	var page dto.PageRequest
	if err := c.QueryParser(&page); err != nil {
		return badBody(c)
	}
	if fields := dto.Validate(&page); fields != nil {
		return invalid(c, fields)
	}
	page.DefaultPage()
	status := c.Query("status")
	switch status {
	case "", entity.TagStatusActive, entity.TagStatusFulfilled, entity.TagStatusCancelled:
	default:
		return invalid(c, map[string]string{"status": "oneof"})
	}
	list, err := h.manager.ListTags(c.Context(), status, page.Limit, page.Offset)
	if err != nil {
		return writeError(c, err)
	}
	items := make([]dto.TagDTO, 0, len(list))
	for _, t := range list {
		items = append(items, dto.NewTagDTO(t))
	}
	return c.JSON(fiber.Map{
		"items": items,
		"page":  dto.PageResponse{Limit: page.Limit, Offset: page.Offset},
	})
}

// Get godoc
// @Summary      Obtener tag
// @Tags         tags
// @Security     Bearer
// @Produce      json
// @Param        id  path  string  true  "ID del tag"
// @Success      200  {object}  dto.TagDTO
// @Failure      404  {object}  dto.ErrorResponse
// @Router       /api/tags/{id} [get]
func (h *TagHandler) Get(c *fiber.Ctx) error {
	tag, err := h.manager.GetTag(c.Context(), c.Params("id"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(dto.NewTagDTO(tag))
}

// AmendLine godoc
// @Summary      Re-seleccionar las instancias de una línea
// @Tags         tags
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        id       path  string                 true  "ID del tag"
// @Param        line_id  path  string                 true  "ID de la línea"
// @Param        body     body  dto.AmendLineRequest   true  "method, quantity, instance_ids"
// @Success      200  {object}  dto.TagDTO
// @Failure      409  {object}  dto.ErrorResponse
// @Router       /api/tags/{id}/lines/{line_id} [put]
func (h *TagHandler) AmendLine(c *fiber.Ctx) error {
	var in dto.AmendLineRequest
	if err := c.BodyParser(&in); err != nil {
		return badBody(c)
	}
	if fields := dto.Validate(&in); fields != nil {
		return invalid(c, fields)
	}
	tag, err := h.manager.AmendLine(c.Context(), c.Params("id"), c.Params("line_id"), tags.LineSelection{
		Method:      in.Method,
		Quantity:    in.Quantity,
		InstanceIDs: in.InstanceIDs,
		Notes:       in.Notes,
	}, GetActor(c))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(dto.NewTagDTO(tag))
}

// FulfillLine godoc
// @Summary      Consumir instancias de una línea
// @Tags         tags
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        id       path  string                  true  "ID del tag"
// @Param        line_id  path  string                  true  "ID de la línea"
// @Param        body     body  dto.FulfillLineRequest  true  "instance_ids"
// @Success      200  {object}  dto.TagDTO
// @Failure      409  {object}  dto.ErrorResponse
// @Router       /api/tags/{id}/lines/{line_id}/fulfill [post]
func (h *TagHandler) FulfillLine(c *fiber.Ctx) error {
	var in dto.FulfillLineRequest
	if err := c.BodyParser(&in); err != nil {
		return badBody(c)
	}
	if fields := dto.Validate(&in); fields != nil {
		return invalid(c, fields)
	}
	tag, err := h.manager.FulfillLine(c.Context(), c.Params("id"), c.Params("line_id"), in.InstanceIDs, GetActor(c))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(dto.NewTagDTO(tag))
}

// Cancel godoc
// @Summary      Cancelar tag (libera las instancias retenidas)
// @Tags         tags
// @Security     Bearer
// @Produce      json
// @Param        id  path  string  true  "ID del tag"
// @Success      200  {object}  dto.TagDTO
// @Failure      403  {object}  dto.ErrorResponse
// @Failure      409  {object}  dto.ErrorResponse
// @Router       /api/tags/{id}/cancel [post]
func (h *TagHandler) Cancel(c *fiber.Ctx) error {
	tag, err := h.manager.CancelTag(c.Context(), c.Params("id"), GetActor(c))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(dto.NewTagDTO(tag))
}
