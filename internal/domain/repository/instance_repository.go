package repository

import (
	"context"
	"iter"

	"github.com/jhoicas/inventario-tags/internal/domain/entity"
)

// Órdenes soportados por Query.
const (
	OrderNone = ""
	OrderFIFO = "fifo" // acquired_at, id
	OrderCost = "cost" // acquisition_cost, acquired_at, id
)

// InstanceFilter criterios de InstanceRepository.Query. Los campos vacíos no filtran.
type InstanceFilter struct {
	Unclaimed         bool     // solo claim nulo
	ClaimLineID       string   // solo instancias reclamadas por esta línea
	Conditions        []string // condición dentro de la lista
	ExcludeConditions []string // condición fuera de la lista
	ExcludeIDs        []string
	Order             string
	Limit             int
}

// AvailableFilter instancias elegibles para asignación automática.
func AvailableFilter() InstanceFilter {
	return InstanceFilter{
		Unclaimed:         true,
		ExcludeConditions: []string{entity.ConditionDamaged, entity.ConditionUsed},
	}
}

// LiveFilter instancias no consumidas (las que cuentan en el agregado).
func LiveFilter() InstanceFilter {
	return InstanceFilter{ExcludeConditions: []string{entity.ConditionUsed}}
}

// InstanceRepository puerto del almacén de instancias. Es la única fuente de verdad mutable.
//
// Claim debe ser un único compare-and-set sobre el reclamo en el almacenamiento:
// dos llamadas concurrentes sobre la misma instancia nunca tienen éxito ambas.
type InstanceRepository interface {
	Create(ctx context.Context, inst *entity.Instance) error
	GetByID(ctx context.Context, id string) (*entity.Instance, error)
	// Claim: ErrAlreadyClaimed si ya tiene dueño (o está consumida), ErrNotFound si no existe.
	Claim(ctx context.Context, id string, ref entity.ClaimRef) (entity.InstanceChange, error)
	// Release limpia el reclamo sin importar quién lo tenga. Las instancias consumidas no se tocan.
	Release(ctx context.Context, id string) (entity.InstanceChange, error)
	// Consume marca la instancia como usada. Requiere reclamo vivo; si lineID != "" debe ser de esa línea.
	Consume(ctx context.Context, id, lineID string) (entity.InstanceChange, error)
	// Query devuelve una secuencia perezosa; cada recorrido vuelve a ejecutar la consulta.
	Query(ctx context.Context, skuID string, f InstanceFilter) iter.Seq2[*entity.Instance, error]
}
