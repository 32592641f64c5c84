package memory_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/inventario-tags/internal/domain"
	"github.com/jhoicas/inventario-tags/internal/domain/entity"
	"github.com/jhoicas/inventario-tags/internal/domain/repository"
	"github.com/jhoicas/inventario-tags/internal/infrastructure/memory"
)

var fixed = time.Date(2026, 4, 2, 10, 0, 0, 0, time.UTC)

func newStore(t *testing.T) (*memory.Store, repository.Repositories) {
	t.Helper()
	store := memory.NewStore(memory.WithClock(func() time.Time { return fixed }))
	repos := store.Repositories()
	require.NoError(t, repos.SKUs.Create(context.Background(), &entity.SKU{ID: "sku-1", Code: "S1", Name: "uno"}))
	return store, repos
}

func create(t *testing.T, repos repository.Repositories, id string, acquired time.Time, cost int64) {
	t.Helper()
	require.NoError(t, repos.Instances.Create(context.Background(), &entity.Instance{
		ID:              id,
		SKUID:           "sku-1",
		AcquisitionCost: decimal.NewFromInt(cost),
		AcquiredAt:      acquired,
		Condition:       entity.ConditionNew,
	}))
}

var ref = entity.ClaimRef{TagID: "t-1", LineID: "l-1", TagType: entity.TagTypeReserved}

// ──────────────────────────────────────────────────────────────────────────────
// Transacciones
// ──────────────────────────────────────────────────────────────────────────────

func TestRun_RollbackNoDejaEscriturasParciales(t *testing.T) {
	store, repos := newStore(t)
	ctx := context.Background()
	create(t, repos, "a", fixed, 1)
	create(t, repos, "b", fixed, 1)

	boom := errors.New("falla a mitad")
	err := store.Run(ctx, func(tx repository.Repositories) error {
		if _, err := tx.Instances.Claim(ctx, "a", ref); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	a, err := repos.Instances.GetByID(ctx, "a")
	require.NoError(t, err)
	assert.Nil(t, a.Claim, "el reclamo debe revertirse")
}

func TestRun_CommitPublicaLosCambios(t *testing.T) {
	store, repos := newStore(t)
	ctx := context.Background()
	create(t, repos, "a", fixed, 1)

	require.NoError(t, store.Run(ctx, func(tx repository.Repositories) error {
		_, err := tx.Instances.Claim(ctx, "a", ref)
		return err
	}))

	a, err := repos.Instances.GetByID(ctx, "a")
	require.NoError(t, err)
	require.NotNil(t, a.Claim)
	assert.Equal(t, "l-1", a.Claim.LineID)
	assert.Equal(t, fixed, a.UpdatedAt)
}

func TestRun_ContextoCancelado(t *testing.T) {
	store, _ := newStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	called := false
	err := store.Run(ctx, func(repository.Repositories) error {
		called = true
		return nil
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, called)
}

// ──────────────────────────────────────────────────────────────────────────────
// Instancias
// ──────────────────────────────────────────────────────────────────────────────

func TestClaim_CompareAndSet(t *testing.T) {
	_, repos := newStore(t)
	ctx := context.Background()
	create(t, repos, "a", fixed, 1)

	ch, err := repos.Instances.Claim(ctx, "a", ref)
	require.NoError(t, err)
	assert.Nil(t, ch.Before.Claim)
	require.NotNil(t, ch.After.Claim)

	_, err = repos.Instances.Claim(ctx, "a", entity.ClaimRef{TagID: "t-2", LineID: "l-2"})
	assert.ErrorIs(t, err, domain.ErrAlreadyClaimed)

	_, err = repos.Instances.Claim(ctx, "fantasma", ref)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestConsume_RequiereReclamoDeLaLinea(t *testing.T) {
	_, repos := newStore(t)
	ctx := context.Background()
	create(t, repos, "a", fixed, 1)

	_, err := repos.Instances.Consume(ctx, "a", "")
	assert.ErrorIs(t, err, domain.ErrNotClaimed)

	_, err = repos.Instances.Claim(ctx, "a", ref)
	require.NoError(t, err)
	_, err = repos.Instances.Consume(ctx, "a", "otra-linea")
	assert.ErrorIs(t, err, domain.ErrNotClaimedByThisLine)

	ch, err := repos.Instances.Consume(ctx, "a", "l-1")
	require.NoError(t, err)
	assert.True(t, ch.After.IsConsumed())
	assert.Equal(t, fixed, *ch.After.ConsumedAt)

	_, err = repos.Instances.Consume(ctx, "a", "l-1")
	assert.ErrorIs(t, err, domain.ErrNotClaimed, "ya consumida")

	_, err = repos.Instances.Claim(ctx, "a", ref)
	assert.ErrorIs(t, err, domain.ErrAlreadyClaimed, "una consumida no se vuelve a reclamar")
}

func TestRelease_NoTocaConsumidas(t *testing.T) {
	_, repos := newStore(t)
	ctx := context.Background()
	create(t, repos, "a", fixed, 1)
	create(t, repos, "b", fixed, 1)
	for _, id := range []string{"a", "b"} {
		_, err := repos.Instances.Claim(ctx, id, ref)
		require.NoError(t, err)
	}
	_, err := repos.Instances.Consume(ctx, "b", "")
	require.NoError(t, err)

	ch, err := repos.Instances.Release(ctx, "a")
	require.NoError(t, err)
	assert.Nil(t, ch.After.Claim)

	ch, err = repos.Instances.Release(ctx, "b")
	require.NoError(t, err)
	assert.NotNil(t, ch.After.Claim)
	assert.True(t, ch.After.IsConsumed())
}

func TestCreate_Validaciones(t *testing.T) {
	_, repos := newStore(t)
	ctx := context.Background()
	create(t, repos, "a", fixed, 1)

	err := repos.Instances.Create(ctx, &entity.Instance{ID: "a", SKUID: "sku-1"})
	assert.ErrorIs(t, err, domain.ErrConflict)

	err = repos.Instances.Create(ctx, &entity.Instance{ID: "neg", SKUID: "sku-1", AcquisitionCost: decimal.NewFromInt(-3)})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestGetByID_DevuelveCopia(t *testing.T) {
	_, repos := newStore(t)
	ctx := context.Background()
	create(t, repos, "a", fixed, 1)
	_, err := repos.Instances.Claim(ctx, "a", ref)
	require.NoError(t, err)

	got, err := repos.Instances.GetByID(ctx, "a")
	require.NoError(t, err)
	got.Claim.LineID = "modificada"

	again, err := repos.Instances.GetByID(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, "l-1", again.Claim.LineID)
}

// ──────────────────────────────────────────────────────────────────────────────
// Query
// ──────────────────────────────────────────────────────────────────────────────

func collect(t *testing.T, repos repository.Repositories, f repository.InstanceFilter) []string {
	t.Helper()
	var ids []string
	for inst, err := range repos.Instances.Query(context.Background(), "sku-1", f) {
		require.NoError(t, err)
		ids = append(ids, inst.ID)
	}
	return ids
}

func TestQuery_FiltrosOrdenYLimite(t *testing.T) {
	_, repos := newStore(t)
	ctx := context.Background()
	create(t, repos, "c", fixed.Add(2*time.Hour), 1)
	create(t, repos, "a", fixed, 9)
	create(t, repos, "b", fixed.Add(time.Hour), 5)
	_, err := repos.Instances.Claim(ctx, "b", ref)
	require.NoError(t, err)

	assert.Equal(t, []string{"a", "b", "c"}, collect(t, repos, repository.InstanceFilter{Order: repository.OrderFIFO}))
	assert.Equal(t, []string{"c", "b", "a"}, collect(t, repos, repository.InstanceFilter{Order: repository.OrderCost}))
	assert.Equal(t, []string{"a", "c"}, collect(t, repos, repository.InstanceFilter{Unclaimed: true, Order: repository.OrderFIFO}))
	assert.Equal(t, []string{"b"}, collect(t, repos, repository.InstanceFilter{ClaimLineID: "l-1"}))
	assert.Equal(t, []string{"a"}, collect(t, repos, repository.InstanceFilter{Order: repository.OrderFIFO, Limit: 1}))
	assert.Equal(t, []string{"c"}, collect(t, repos, repository.InstanceFilter{Unclaimed: true, ExcludeIDs: []string{"a"}}))
}

func TestQuery_EsReiniciable(t *testing.T) {
	_, repos := newStore(t)
	create(t, repos, "a", fixed, 1)

	seq := repos.Instances.Query(context.Background(), "sku-1", repository.LiveFilter())
	first, second := 0, 0
	for range seq {
		first++
	}
	create(t, repos, "b", fixed, 1)
	for range seq {
		second++
	}
	assert.Equal(t, 1, first)
	assert.Equal(t, 2, second, "cada recorrido vuelve a consultar")
}

// ──────────────────────────────────────────────────────────────────────────────
// Tags
// ──────────────────────────────────────────────────────────────────────────────

func TestTags_CRUDYPaginacion(t *testing.T) {
	_, repos := newStore(t)
	ctx := context.Background()

	for i, id := range []string{"t-1", "t-2", "t-3"} {
		require.NoError(t, repos.Tags.Create(ctx, &entity.Tag{
			ID:        id,
			Status:    entity.TagStatusActive,
			CreatedAt: fixed.Add(time.Duration(i) * time.Minute),
			Lines:     []*entity.TagLine{{ID: id + "-l", TagID: id, SelectedIDs: []string{"x"}}},
		}))
	}
	assert.ErrorIs(t, repos.Tags.Create(ctx, &entity.Tag{ID: "t-1"}), domain.ErrConflict)

	page, err := repos.Tags.List(ctx, "", 2, 0)
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, "t-3", page[0].ID, "más recientes primero")

	page, err = repos.Tags.List(ctx, "", 2, 2)
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, "t-1", page[0].ID)

	tag, err := repos.Tags.GetByID(ctx, "t-2")
	require.NoError(t, err)
	tag.Status = entity.TagStatusCancelled
	tag.Lines[0].SelectedIDs = append(tag.Lines[0].SelectedIDs, "y")
	require.NoError(t, repos.Tags.Update(ctx, tag))

	cancelled, err := repos.Tags.List(ctx, entity.TagStatusCancelled, 0, 0)
	require.NoError(t, err)
	require.Len(t, cancelled, 1)
	assert.Equal(t, []string{"x", "y"}, cancelled[0].Lines[0].SelectedIDs)

	assert.ErrorIs(t, repos.Tags.Update(ctx, &entity.Tag{ID: "no-existe"}), domain.ErrNotFound)
	_, err = repos.Tags.GetByID(ctx, "no-existe")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
