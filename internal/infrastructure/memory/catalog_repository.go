package memory

import (
	"context"
	"fmt"
	"sort"

	"github.com/jhoicas/inventario-tags/internal/domain"
	"github.com/jhoicas/inventario-tags/internal/domain/entity"
	"github.com/jhoicas/inventario-tags/internal/domain/repository"
)

var (
	_ repository.SKURepository       = (*SKURepo)(nil)
	_ repository.AggregateRepository = (*AggregateRepo)(nil)
	_ repository.TagRepository       = (*TagRepo)(nil)
)

// SKURepo catálogo en memoria.
type SKURepo struct {
	v *view
}

func (r *SKURepo) Create(_ context.Context, sku *entity.SKU) error {
	st, release := r.v.acquire()
	defer release()
	if _, ok := st.skus[sku.ID]; ok {
		return fmt.Errorf("insert sku %s: %w", sku.ID, domain.ErrConflict)
	}
	st.skus[sku.ID] = *sku
	return nil
}

func (r *SKURepo) GetByID(_ context.Context, id string) (*entity.SKU, error) {
	st, release := r.v.acquire()
	defer release()
	sku, ok := st.skus[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &sku, nil
}

func (r *SKURepo) List(_ context.Context) ([]*entity.SKU, error) {
	st, release := r.v.acquire()
	defer release()
	list := make([]*entity.SKU, 0, len(st.skus))
	for _, sku := range st.skus {
		s := sku
		list = append(list, &s)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].ID < list[j].ID })
	return list, nil
}

// AggregateRepo caché de agregados en memoria.
type AggregateRepo struct {
	v *view
}

func (r *AggregateRepo) Get(_ context.Context, skuID string) (*entity.Aggregate, error) {
	st, release := r.v.acquire()
	defer release()
	agg, ok := st.aggregates[skuID]
	if !ok {
		return nil, nil
	}
	c := cloneAggregate(agg)
	return &c, nil
}

// GetForUpdate en memoria equivale a Get: la transacción ya tiene el estado en exclusiva.
func (r *AggregateRepo) GetForUpdate(ctx context.Context, skuID string) (*entity.Aggregate, error) {
	return r.Get(ctx, skuID)
}

func (r *AggregateRepo) Upsert(_ context.Context, agg *entity.Aggregate) error {
	st, release := r.v.acquire()
	defer release()
	c := cloneAggregate(*agg)
	c.UpdatedAt = r.v.now()
	st.aggregates[agg.SKUID] = c
	return nil
}

func (r *AggregateRepo) List(_ context.Context) ([]*entity.Aggregate, error) {
	st, release := r.v.acquire()
	defer release()
	list := make([]*entity.Aggregate, 0, len(st.aggregates))
	for _, agg := range st.aggregates {
		c := cloneAggregate(agg)
		list = append(list, &c)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].SKUID < list[j].SKUID })
	return list, nil
}

// TagRepo tags en memoria.
type TagRepo struct {
	v *view
}

func (r *TagRepo) Create(_ context.Context, tag *entity.Tag) error {
	st, release := r.v.acquire()
	defer release()
	if _, ok := st.tags[tag.ID]; ok {
		return fmt.Errorf("insert tag %s: %w", tag.ID, domain.ErrConflict)
	}
	st.tags[tag.ID] = tag.Clone()
	return nil
}

func (r *TagRepo) GetByID(_ context.Context, id string) (*entity.Tag, error) {
	st, release := r.v.acquire()
	defer release()
	tag, ok := st.tags[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	c := tag.Clone()
	return &c, nil
}

func (r *TagRepo) GetForUpdate(ctx context.Context, id string) (*entity.Tag, error) {
	return r.GetByID(ctx, id)
}

func (r *TagRepo) Update(_ context.Context, tag *entity.Tag) error {
	st, release := r.v.acquire()
	defer release()
	if _, ok := st.tags[tag.ID]; !ok {
		return domain.ErrNotFound
	}
	st.tags[tag.ID] = tag.Clone()
	return nil
}

func (r *TagRepo) List(_ context.Context, status string, limit, offset int) ([]*entity.Tag, error) {
	st, release := r.v.acquire()
	defer release()
	list := make([]*entity.Tag, 0, len(st.tags))
	for _, tag := range st.tags {
		if status != "" && tag.Status != status {
			continue
		}
		c := tag.Clone()
		list = append(list, &c)
	}
	sort.Slice(list, func(i, j int) bool {
		if !list[i].CreatedAt.Equal(list[j].CreatedAt) {
			return list[i].CreatedAt.After(list[j].CreatedAt)
		}
		return list[i].ID < list[j].ID
	})
	if offset >= len(list) {
		return []*entity.Tag{}, nil
	}
	list = list[offset:]
	if limit > 0 && len(list) > limit {
		list = list[:limit]
	}
	return list, nil
}
