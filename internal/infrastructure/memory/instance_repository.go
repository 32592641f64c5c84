package memory

import (
	"context"
	"fmt"
	"iter"
	"slices"
	"sort"

	"github.com/jhoicas/inventario-tags/internal/domain"
	"github.com/jhoicas/inventario-tags/internal/domain/entity"
	"github.com/jhoicas/inventario-tags/internal/domain/repository"
)

var _ repository.InstanceRepository = (*InstanceRepo)(nil)

// InstanceRepo almacén de instancias en memoria.
type InstanceRepo struct {
	v *view
}

// Create persiste una instancia nueva (siempre disponible).
func (r *InstanceRepo) Create(_ context.Context, inst *entity.Instance) error {
	if inst.AcquisitionCost.IsNegative() {
		return domain.ErrInvalidInput
	}
	st, release := r.v.acquire()
	defer release()
	if _, ok := st.instances[inst.ID]; ok {
		return fmt.Errorf("insert instance %s: %w", inst.ID, domain.ErrConflict)
	}
	st.instances[inst.ID] = inst.Clone()
	return nil
}

// GetByID obtiene una instancia.
func (r *InstanceRepo) GetByID(_ context.Context, id string) (*entity.Instance, error) {
	st, release := r.v.acquire()
	defer release()
	inst, ok := st.instances[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	c := inst.Clone()
	return &c, nil
}

// Claim compare-and-set de claim nulo a ref.
func (r *InstanceRepo) Claim(_ context.Context, id string, ref entity.ClaimRef) (entity.InstanceChange, error) {
	return r.mutate(id, func(inst *entity.Instance) error {
		if inst.Claim != nil || inst.IsConsumed() {
			return domain.ErrAlreadyClaimed
		}
		c := ref
		inst.Claim = &c
		return nil
	})
}

// Release limpia el reclamo; las consumidas quedan igual.
func (r *InstanceRepo) Release(_ context.Context, id string) (entity.InstanceChange, error) {
	return r.mutate(id, func(inst *entity.Instance) error {
		if !inst.IsConsumed() {
			inst.Claim = nil
		}
		return nil
	})
}

// Consume marca como usada una instancia reclamada.
func (r *InstanceRepo) Consume(_ context.Context, id, lineID string) (entity.InstanceChange, error) {
	return r.mutate(id, func(inst *entity.Instance) error {
		if inst.Claim == nil || inst.IsConsumed() {
			return domain.ErrNotClaimed
		}
		if lineID != "" && inst.Claim.LineID != lineID {
			return domain.ErrNotClaimedByThisLine
		}
		now := r.v.now()
		inst.Condition = entity.ConditionUsed
		inst.ConsumedAt = &now
		return nil
	})
}

func (r *InstanceRepo) mutate(id string, fn func(inst *entity.Instance) error) (entity.InstanceChange, error) {
	st, release := r.v.acquire()
	defer release()
	cur, ok := st.instances[id]
	if !ok {
		return entity.InstanceChange{}, domain.ErrNotFound
	}
	before := cur.Clone()
	next := cur.Clone()
	if err := fn(&next); err != nil {
		return entity.InstanceChange{}, err
	}
	next.UpdatedAt = r.v.now()
	st.instances[id] = next
	after := next.Clone()
	return entity.InstanceChange{Before: &before, After: &after}, nil
}

// Query filtra y ordena una foto de las instancias del SKU al momento de recorrer.
func (r *InstanceRepo) Query(ctx context.Context, skuID string, f repository.InstanceFilter) iter.Seq2[*entity.Instance, error] {
	return func(yield func(*entity.Instance, error) bool) {
		if err := ctx.Err(); err != nil {
			yield(nil, err)
			return
		}
		st, release := r.v.acquire()
		var list []entity.Instance
		for _, inst := range st.instances {
			if inst.SKUID == skuID && matches(&inst, f) {
				list = append(list, inst.Clone())
			}
		}
		release()

		sortInstances(list, f.Order)
		if f.Limit > 0 && len(list) > f.Limit {
			list = list[:f.Limit]
		}
		for i := range list {
			if !yield(&list[i], nil) {
				return
			}
		}
	}
}

func matches(inst *entity.Instance, f repository.InstanceFilter) bool {
	if f.Unclaimed && inst.Claim != nil {
		return false
	}
	if f.ClaimLineID != "" && (inst.Claim == nil || inst.Claim.LineID != f.ClaimLineID) {
		return false
	}
	if len(f.Conditions) > 0 && !slices.Contains(f.Conditions, inst.Condition) {
		return false
	}
	if slices.Contains(f.ExcludeConditions, inst.Condition) {
		return false
	}
	return !slices.Contains(f.ExcludeIDs, inst.ID)
}

func sortInstances(list []entity.Instance, order string) {
	sort.Slice(list, func(i, j int) bool {
		a, b := list[i], list[j]
		switch order {
		case repository.OrderCost:
			if !a.AcquisitionCost.Equal(b.AcquisitionCost) {
				return a.AcquisitionCost.LessThan(b.AcquisitionCost)
			}
			fallthrough
		case repository.OrderFIFO:
			if !a.AcquiredAt.Equal(b.AcquiredAt) {
				return a.AcquiredAt.Before(b.AcquiredAt)
			}
		}
		return a.ID < b.ID
	})
}
