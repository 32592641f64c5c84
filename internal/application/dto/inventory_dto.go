package dto

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/jhoicas/inventario-tags/internal/domain/entity"
)

// ReceiptRequest body para POST /api/inventory/receipts. Crea una instancia por unidad.
type ReceiptRequest struct {
	SKUID      string           `json:"sku_id" validate:"required"`
	Quantity   int              `json:"quantity" validate:"required,min=1,max=10000"`
	UnitCost   *decimal.Decimal `json:"unit_cost,omitempty"` // vacío = costo del SKU
	Location   string           `json:"location" validate:"max=120"`
	AcquiredAt *time.Time       `json:"acquired_at,omitempty"`
	Condition  string           `json:"condition" validate:"omitempty,oneof=new opened damaged"`
	Notes      string           `json:"notes" validate:"max=500"`
}

// PreviewRequest body para POST /api/inventory/allocations/preview.
type PreviewRequest struct {
	SKUID       string   `json:"sku_id" validate:"required"`
	Quantity    int      `json:"quantity" validate:"min=0"`
	Method      string   `json:"method" validate:"omitempty,oneof=manual auto fifo cost_based"`
	InstanceIDs []string `json:"instance_ids" validate:"omitempty,dive,required"`
}

// InstanceDTO una instancia física.
type InstanceDTO struct {
	ID              string          `json:"id"`
	SKUID           string          `json:"sku_id"`
	AcquisitionCost decimal.Decimal `json:"acquisition_cost"`
	AcquiredAt      time.Time       `json:"acquired_at"`
	Location        string          `json:"location"`
	Condition       string          `json:"condition"`
	TagID           string          `json:"tag_id,omitempty"`
	LineID          string          `json:"line_id,omitempty"`
	Synthetic       bool            `json:"synthetic,omitempty"`
	Notes           string          `json:"notes,omitempty"`
}

// MovementDTO último movimiento del agregado.
type MovementDTO struct {
	Type     string    `json:"type"`
	Quantity int       `json:"quantity"`
	Actor    string    `json:"actor"`
	At       time.Time `json:"at"`
}

// AggregateDTO resumen de inventario de un SKU.
type AggregateDTO struct {
	SKUID             string          `json:"sku_id"`
	TotalQuantity     int             `json:"total_quantity"`
	AvailableQuantity int             `json:"available_quantity"`
	ReservedQuantity  int             `json:"reserved_quantity"`
	BrokenQuantity    int             `json:"broken_quantity"`
	LoanedQuantity    int             `json:"loaned_quantity"`
	TotalValue        decimal.Decimal `json:"total_value"`
	AverageCost       decimal.Decimal `json:"average_cost"`
	IsLowStock        bool            `json:"is_low_stock"`
	IsOutOfStock      bool            `json:"is_out_of_stock"`
	IsOverstock       bool            `json:"is_overstock"`
	LastMovement      *MovementDTO    `json:"last_movement,omitempty"`
	UpdatedAt         time.Time       `json:"updated_at"`
}

// ReplenishmentSuggestionDTO un renglón de GET /api/inventory/replenishment.
type ReplenishmentSuggestionDTO struct {
	SKUID              string          `json:"sku_id"`
	Code               string          `json:"code"`
	Name               string          `json:"name"`
	TotalQuantity      int             `json:"total_quantity"`
	AvailableQuantity  int             `json:"available_quantity"`
	Threshold          int             `json:"understocked_threshold"`
	IdealStock         int             `json:"ideal_stock"`
	SuggestedOrderQty  int             `json:"suggested_order_qty"`
	UnitCost           decimal.Decimal `json:"unit_cost"`
	EstimatedOrderCost decimal.Decimal `json:"estimated_order_cost"`
	OutOfStock         bool            `json:"out_of_stock"`
	Priority           int             `json:"priority"`
}

// NewInstanceDTO mapea una instancia.
func NewInstanceDTO(inst *entity.Instance) InstanceDTO {
	out := InstanceDTO{
		ID:              inst.ID,
		SKUID:           inst.SKUID,
		AcquisitionCost: inst.AcquisitionCost,
		AcquiredAt:      inst.AcquiredAt,
		Location:        inst.Location,
		Condition:       inst.Condition,
		Synthetic:       inst.Synthetic,
		Notes:           inst.Notes,
	}
	if inst.Claim != nil {
		out.TagID = inst.Claim.TagID
		out.LineID = inst.Claim.LineID
	}
	return out
}

// NewInstanceList mapea una lista de instancias.
func NewInstanceList(list []*entity.Instance) []InstanceDTO {
	out := make([]InstanceDTO, 0, len(list))
	for _, inst := range list {
		out = append(out, NewInstanceDTO(inst))
	}
	return out
}

// NewAggregateDTO mapea un agregado.
func NewAggregateDTO(agg *entity.Aggregate) AggregateDTO {
	out := AggregateDTO{
		SKUID:             agg.SKUID,
		TotalQuantity:     agg.TotalQuantity,
		AvailableQuantity: agg.AvailableQuantity,
		ReservedQuantity:  agg.ReservedQuantity,
		BrokenQuantity:    agg.BrokenQuantity,
		LoanedQuantity:    agg.LoanedQuantity,
		TotalValue:        agg.TotalValue,
		AverageCost:       agg.AverageCost,
		IsLowStock:        agg.IsLowStock,
		IsOutOfStock:      agg.IsOutOfStock,
		IsOverstock:       agg.IsOverstock,
		UpdatedAt:         agg.UpdatedAt,
	}
	if mv := agg.LastMovement; mv != nil {
		out.LastMovement = &MovementDTO{Type: mv.Type, Quantity: mv.Quantity, Actor: mv.Actor, At: mv.At}
	}
	return out
}
