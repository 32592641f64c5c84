package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/jhoicas/inventario-tags/internal/application/inventory"
	"github.com/jhoicas/inventario-tags/internal/application/ratelimit"
	"github.com/jhoicas/inventario-tags/internal/application/reconcile"
	"github.com/jhoicas/inventario-tags/internal/application/tags"
	"github.com/jhoicas/inventario-tags/internal/domain/entity"
)

// RouterDeps dependencias para el router.
type RouterDeps struct {
	Receipts   *inventory.ReceiptUseCase
	Aggregator *inventory.AggregatorUseCase
	Restock    *inventory.ReplenishmentUseCase
	Tags       *tags.Manager
	Reconcile  *reconcile.Service
	Limiter    *ratelimit.Limiter // nil = sin límite
	JWTSecret  string
}

// Router registra las rutas de la API. Todo bajo /api requiere Bearer Token.
func Router(app *fiber.App, deps RouterDeps) {
	api := app.Group("/api", AuthMiddleware(deps.JWTSecret), RateLimit(deps.Limiter))

	staff := RequireRole(entity.RoleAdmin, entity.RoleBodeguero)
	anyRole := RequireRole(entity.RoleAdmin, entity.RoleBodeguero, entity.RoleVendedor)

	// Inventario
	invGroup := api.Group("/inventory")
	inventoryHandler := NewInventoryHandler(deps.Receipts, deps.Aggregator, deps.Tags, deps.Restock)
	invGroup.Post("/receipts", staff, inventoryHandler.Receive)
	invGroup.Post("/allocations/preview", anyRole, inventoryHandler.Preview)
	invGroup.Get("/replenishment", staff, inventoryHandler.Replenishment)
	invGroup.Get("/:sku_id", anyRole, inventoryHandler.GetAggregate)
	invGroup.Post("/:sku_id/recompute", staff, inventoryHandler.Recompute)

	// Tags; la cancelación la decide la política del caso de uso
	tagGroup := api.Group("/tags")
	tagHandler := NewTagHandler(deps.Tags)
	tagGroup.Post("/", anyRole, tagHandler.Create)
	tagGroup.Get("/", anyRole, tagHandler.List)
	tagGroup.Get("/:id", anyRole, tagHandler.Get)
	tagGroup.Put("/:id/lines/:line_id", anyRole, tagHandler.AmendLine)
	tagGroup.Post("/:id/lines/:line_id/fulfill", staff, tagHandler.FulfillLine)
	tagGroup.Post("/:id/cancel", tagHandler.Cancel)

	// Administración
	admin := api.Group("/admin", RequireRole(entity.RoleAdmin))
	adminHandler := NewAdminHandler(deps.Reconcile)
	admin.Post("/reconcile", adminHandler.Reconcile)
}
