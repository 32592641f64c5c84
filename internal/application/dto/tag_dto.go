package dto

import (
	"time"

	"github.com/jhoicas/inventario-tags/internal/domain/entity"
)

// TagLineRequest una línea al crear un tag. Para manual se envían instance_ids; si no, quantity.
type TagLineRequest struct {
	SKUID       string   `json:"sku_id" validate:"required"`
	Method      string   `json:"method" validate:"omitempty,oneof=manual auto fifo cost_based"`
	Quantity    int      `json:"quantity" validate:"min=0,max=10000"`
	InstanceIDs []string `json:"instance_ids" validate:"omitempty,dive,required"`
	Notes       string   `json:"notes" validate:"max=500"`
}

// CreateTagRequest body para POST /api/tags.
type CreateTagRequest struct {
	CustomerID string           `json:"customer_id" validate:"required_without=ProjectID"`
	ProjectID  string           `json:"project_id" validate:"required_without=CustomerID"`
	Type       string           `json:"type" validate:"omitempty,oneof=reserved broken imperfect loaned stock"`
	DueDate    *time.Time       `json:"due_date,omitempty"`
	Notes      string           `json:"notes" validate:"max=1000"`
	Lines      []TagLineRequest `json:"lines" validate:"dive"`
}

// AmendLineRequest body para PUT /api/tags/:id/lines/:line_id.
type AmendLineRequest struct {
	Method      string   `json:"method" validate:"omitempty,oneof=manual auto fifo cost_based"`
	Quantity    int      `json:"quantity" validate:"min=0,max=10000"`
	InstanceIDs []string `json:"instance_ids" validate:"omitempty,dive,required"`
	Notes       *string  `json:"notes,omitempty"`
}

// FulfillLineRequest body para POST /api/tags/:id/lines/:line_id/fulfill.
type FulfillLineRequest struct {
	InstanceIDs []string `json:"instance_ids" validate:"required,min=1,dive,required"`
}

// TagLineDTO línea de un tag. Quantity siempre es len(selected_ids).
type TagLineDTO struct {
	ID          string   `json:"id"`
	SKUID       string   `json:"sku_id"`
	Method      string   `json:"method"`
	Quantity    int      `json:"quantity"`
	SelectedIDs []string `json:"selected_ids"`
	ConsumedIDs []string `json:"consumed_ids"`
	Notes       string   `json:"notes,omitempty"`
}

// TagDTO tag con sus líneas.
type TagDTO struct {
	ID          string       `json:"id"`
	CustomerID  string       `json:"customer_id,omitempty"`
	ProjectID   string       `json:"project_id,omitempty"`
	Type        string       `json:"type"`
	Status      string       `json:"status"`
	DueDate     *time.Time   `json:"due_date,omitempty"`
	Notes       string       `json:"notes,omitempty"`
	Lines       []TagLineDTO `json:"lines"`
	CreatedBy   string       `json:"created_by"`
	UpdatedBy   string       `json:"updated_by"`
	CreatedAt   time.Time    `json:"created_at"`
	UpdatedAt   time.Time    `json:"updated_at"`
	FulfilledAt *time.Time   `json:"fulfilled_at,omitempty"`
	CancelledAt *time.Time   `json:"cancelled_at,omitempty"`
}

// NewTagDTO mapea un tag.
func NewTagDTO(t *entity.Tag) TagDTO {
	out := TagDTO{
		ID:          t.ID,
		CustomerID:  t.CustomerID,
		ProjectID:   t.ProjectID,
		Type:        t.Type,
		Status:      t.Status,
		DueDate:     t.DueDate,
		Notes:       t.Notes,
		Lines:       make([]TagLineDTO, 0, len(t.Lines)),
		CreatedBy:   t.CreatedBy,
		UpdatedBy:   t.UpdatedBy,
		CreatedAt:   t.CreatedAt,
		UpdatedAt:   t.UpdatedAt,
		FulfilledAt: t.FulfilledAt,
		CancelledAt: t.CancelledAt,
	}
	for _, l := range t.Lines {
		out.Lines = append(out.Lines, TagLineDTO{
			ID:          l.ID,
			SKUID:       l.SKUID,
			Method:      l.Method,
			Quantity:    l.Quantity(),
			SelectedIDs: nonNil(l.SelectedIDs),
			ConsumedIDs: nonNil(l.ConsumedIDs),
			Notes:       l.Notes,
		})
	}
	return out
}

func nonNil(ids []string) []string {
	if ids == nil {
		return []string{}
	}
	return ids
}
