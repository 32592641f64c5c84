package allocation

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/jhoicas/inventario-tags/internal/domain"
	"github.com/jhoicas/inventario-tags/internal/domain/entity"
	"github.com/jhoicas/inventario-tags/internal/domain/repository"
)

// DefaultMethod estrategia usada cuando la línea no indica una. auto equivale a fifo.
const DefaultMethod = entity.SelectionFIFO

// Request demanda de N unidades de un SKU.
type Request struct {
	SKUID       string
	Quantity    int
	Method      string
	InstanceIDs []string // solo manual, en el orden del llamador
	Exclude     []string // instancias a ignorar (p. ej. reclamos perdidos en un reintento)
}

// Engine elige qué instancias sin reclamar satisfacen una demanda.
// Solo lee: los reclamos los hace el llamador, así la asignación sirve también como vista previa.
type Engine struct {
	instances repository.InstanceRepository
	skus      repository.SKURepository
}

// NewEngine construye el motor sobre los repositorios dados (pool o transacción).
func NewEngine(instances repository.InstanceRepository, skus repository.SKURepository) *Engine {
	return &Engine{instances: instances, skus: skus}
}

// NormalizeMethod resuelve el método efectivo; "" y auto son fifo.
func NormalizeMethod(method string) (string, error) {
	switch method {
	case "", entity.SelectionAuto, entity.SelectionFIFO:
		return DefaultMethod, nil
	case entity.SelectionManual, entity.SelectionCostBased:
		return method, nil
	}
	return "", fmt.Errorf("método de selección %q: %w", method, domain.ErrInvalidInput)
}

// Allocate devuelve las instancias elegidas en orden. Todo o nada: si no alcanzan
// devuelve ErrInsufficientStock sin elegir ninguna.
func (e *Engine) Allocate(ctx context.Context, req Request) ([]*entity.Instance, error) {
	method, err := NormalizeMethod(req.Method)
	if err != nil {
		return nil, err
	}
	if req.SKUID == "" {
		return nil, domain.ErrInvalidInput
	}
	if _, err := e.skus.GetByID(ctx, req.SKUID); err != nil {
		return nil, err
	}
	if method == entity.SelectionManual {
		return e.manual(ctx, req)
	}
	if req.Quantity <= 0 {
		return nil, domain.ErrInvalidInput
	}

	filter := repository.AvailableFilter()
	filter.ExcludeIDs = req.Exclude
	filter.Order = repository.OrderFIFO
	if method == entity.SelectionCostBased {
		filter.Order = repository.OrderCost
	}
	filter.Limit = req.Quantity

	candidates := make([]*entity.Instance, 0, req.Quantity)
	for inst, err := range e.instances.Query(ctx, req.SKUID, filter) {
		if err != nil {
			return nil, err
		}
		candidates = append(candidates, inst)
	}
	// El orden no se delega al almacenamiento: ambas implementaciones deben dar el mismo resultado.
	sort.SliceStable(candidates, less(method, candidates))
	if len(candidates) < req.Quantity {
		return nil, domain.ErrInsufficientStock
	}
	return candidates[:req.Quantity], nil
}

func (e *Engine) manual(ctx context.Context, req Request) ([]*entity.Instance, error) {
	if len(req.InstanceIDs) == 0 {
		return nil, domain.ErrInvalidSelection
	}
	if req.Quantity > 0 && req.Quantity != len(req.InstanceIDs) {
		return nil, domain.ErrInvalidSelection
	}
	seen := make(map[string]bool, len(req.InstanceIDs))
	out := make([]*entity.Instance, 0, len(req.InstanceIDs))
	for _, id := range req.InstanceIDs {
		if seen[id] {
			return nil, domain.ErrInvalidSelection
		}
		seen[id] = true
		inst, err := e.instances.GetByID(ctx, id)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return nil, domain.ErrInvalidSelection
			}
			return nil, err
		}
		if inst.SKUID != req.SKUID || inst.IsClaimed() || inst.IsConsumed() {
			return nil, domain.ErrInvalidSelection
		}
		out = append(out, inst)
	}
	return out, nil
}

func less(method string, list []*entity.Instance) func(i, j int) bool {
	return func(i, j int) bool {
		a, b := list[i], list[j]
		if method == entity.SelectionCostBased && !a.AcquisitionCost.Equal(b.AcquisitionCost) {
			return a.AcquisitionCost.LessThan(b.AcquisitionCost)
		}
		if !a.AcquiredAt.Equal(b.AcquiredAt) {
			return a.AcquiredAt.Before(b.AcquiredAt)
		}
		return a.ID < b.ID
	}
}
