package inventory_test

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/inventario-tags/internal/application/inventory"
	"github.com/jhoicas/inventario-tags/internal/domain"
	"github.com/jhoicas/inventario-tags/internal/domain/entity"
	domaininv "github.com/jhoicas/inventario-tags/internal/domain/inventory"
	"github.com/jhoicas/inventario-tags/internal/domain/repository"
	"github.com/jhoicas/inventario-tags/internal/infrastructure/memory"
)

var actor = entity.Actor{ID: "u-1", Role: entity.RoleBodeguero}

type fixture struct {
	ctx        context.Context
	store      *memory.Store
	repos      repository.Repositories
	aggregator *inventory.AggregatorUseCase
	receipts   *inventory.ReceiptUseCase
}

func newFixture(t *testing.T, skus ...*entity.SKU) *fixture {
	t.Helper()
	store := memory.NewStore()
	repos := store.Repositories()
	ctx := context.Background()
	for _, sku := range skus {
		require.NoError(t, repos.SKUs.Create(ctx, sku))
	}
	agg := inventory.NewAggregatorUseCase(store, repos, zerolog.Nop())
	return &fixture{
		ctx:        ctx,
		store:      store,
		repos:      repos,
		aggregator: agg,
		receipts:   inventory.NewReceiptUseCase(store, agg),
	}
}

func sku(id string, under, over int) *entity.SKU {
	return &entity.SKU{ID: id, Code: id, Name: id, UnitCost: decimal.NewFromInt(10), UnderstockedThreshold: under, OverstockedThreshold: over}
}

// ──────────────────────────────────────────────────────────────────────────────
// Receive
// ──────────────────────────────────────────────────────────────────────────────

func TestReceive_CreaInstanciasYAplicaIN(t *testing.T) {
	f := newFixture(t, sku("sku-1", 2, 0))
	cost := decimal.NewFromInt(7)

	created, err := f.receipts.Receive(f.ctx, inventory.ReceiptInput{SKUID: "sku-1", Quantity: 3, UnitCost: &cost, Location: "A-1"}, actor)
	require.NoError(t, err)
	require.Len(t, created, 3)
	for _, inst := range created {
		assert.Nil(t, inst.Claim)
		assert.Equal(t, entity.ConditionNew, inst.Condition)
		assert.Equal(t, "A-1", inst.Location)
	}

	agg, err := f.aggregator.Get(f.ctx, "sku-1")
	require.NoError(t, err)
	assert.Equal(t, 3, agg.TotalQuantity)
	assert.Equal(t, 3, agg.AvailableQuantity)
	assert.True(t, agg.TotalValue.Equal(decimal.NewFromInt(21)))
	assert.True(t, agg.AverageCost.Equal(cost))
	assert.False(t, agg.IsLowStock)
	require.NotNil(t, agg.LastMovement)
	assert.Equal(t, entity.MovementTypeIN, agg.LastMovement.Type)
	assert.Equal(t, 3, agg.LastMovement.Quantity)
	assert.Equal(t, actor.ID, agg.LastMovement.Actor)
}

func TestReceive_SinCostoUsaElDelSKU(t *testing.T) {
	f := newFixture(t, sku("sku-1", 0, 0))

	created, err := f.receipts.Receive(f.ctx, inventory.ReceiptInput{SKUID: "sku-1", Quantity: 1}, actor)
	require.NoError(t, err)
	assert.True(t, created[0].AcquisitionCost.Equal(decimal.NewFromInt(10)))
	assert.False(t, created[0].AcquiredAt.IsZero())
}

func TestReceive_EntradasInvalidas(t *testing.T) {
	f := newFixture(t, sku("sku-1", 0, 0))
	neg := decimal.NewFromInt(-1)

	cases := map[string]inventory.ReceiptInput{
		"cantidad cero":   {SKUID: "sku-1"},
		"costo negativo":  {SKUID: "sku-1", Quantity: 1, UnitCost: &neg},
		"condición used":  {SKUID: "sku-1", Quantity: 1, Condition: entity.ConditionUsed},
		"condición rara":  {SKUID: "sku-1", Quantity: 1, Condition: "rota"},
		"sin SKU":         {Quantity: 1},
		"demasiadas":      {SKUID: "sku-1", Quantity: 10001},
	}
	for name, in := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := f.receipts.Receive(f.ctx, in, actor)
			assert.ErrorIs(t, err, domain.ErrInvalidInput)
		})
	}

	_, err := f.receipts.Receive(f.ctx, inventory.ReceiptInput{SKUID: "no-existe", Quantity: 1}, actor)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestReceive_DañadasCuentanComoRotas(t *testing.T) {
	f := newFixture(t, sku("sku-1", 0, 0))

	_, err := f.receipts.Receive(f.ctx, inventory.ReceiptInput{SKUID: "sku-1", Quantity: 2, Condition: entity.ConditionDamaged}, actor)
	require.NoError(t, err)

	agg, err := f.aggregator.Get(f.ctx, "sku-1")
	require.NoError(t, err)
	assert.Equal(t, 2, agg.BrokenQuantity)
	assert.Equal(t, 0, agg.AvailableQuantity)
	assert.Equal(t, 2, agg.TotalQuantity)
}

// ──────────────────────────────────────────────────────────────────────────────
// ApplyDelta == Recompute
// ──────────────────────────────────────────────────────────────────────────────

var tagTypes = []string{
	entity.TagTypeReserved, entity.TagTypeBroken, entity.TagTypeImperfect, entity.TagTypeLoaned, entity.TagTypeStock,
}

// mutateRandomly aplica operaciones aleatorias sobre las instancias y devuelve los cambios por operación.
func mutateRandomly(t *testing.T, f *fixture, rng *rand.Rand, ids []string, steps int) [][]entity.InstanceChange {
	t.Helper()
	var batches [][]entity.InstanceChange
	for range steps {
		id := ids[rng.Intn(len(ids))]
		var ch entity.InstanceChange
		err := f.store.Run(f.ctx, func(repos repository.Repositories) error {
			inst, err := repos.Instances.GetByID(f.ctx, id)
			if err != nil {
				return err
			}
			switch {
			case inst.IsConsumed():
				return nil
			case inst.Claim == nil:
				ch, err = repos.Instances.Claim(f.ctx, id, entity.ClaimRef{
					TagID: "t", LineID: "l", TagType: tagTypes[rng.Intn(len(tagTypes))],
				})
			case rng.Intn(2) == 0:
				ch, err = repos.Instances.Release(f.ctx, id)
			default:
				ch, err = repos.Instances.Consume(f.ctx, id, "")
			}
			return err
		})
		require.NoError(t, err)
		if ch.After != nil {
			batches = append(batches, []entity.InstanceChange{ch})
		}
	}
	return batches
}

func TestApplyDelta_IgualARecomputeParaCualquierOrden(t *testing.T) {
	for seed := int64(1); seed <= 20; seed++ {
		f := newFixture(t, sku("sku-1", 3, 12))
		rng := rand.New(rand.NewSource(seed))

		var ids []string
		for i := range 3 {
			cost := decimal.NewFromInt(int64(5 + i))
			cond := entity.ConditionNew
			if i == 2 {
				cond = entity.ConditionDamaged
			}
			created, err := f.receipts.Receive(f.ctx, inventory.ReceiptInput{SKUID: "sku-1", Quantity: 4, UnitCost: &cost, Condition: cond}, actor)
			require.NoError(t, err)
			for _, inst := range created {
				ids = append(ids, inst.ID)
			}
		}

		batches := mutateRandomly(t, f, rng, ids, 40)
		rng.Shuffle(len(batches), func(i, j int) { batches[i], batches[j] = batches[j], batches[i] })
		for _, b := range batches {
			require.NoError(t, f.aggregator.ApplyChanges(f.ctx, b, entity.MovementTypeClaim, actor.ID))
		}

		cached, err := f.repos.Aggregates.Get(f.ctx, "sku-1")
		require.NoError(t, err)
		fresh, err := inventory.Compute(f.ctx, f.repos, "sku-1")
		require.NoError(t, err)

		assert.True(t, domaininv.SameState(cached, fresh), "seed %d: delta %+v != recompute %+v", seed, cached, fresh)
		assert.Equal(t, cached.TotalQuantity,
			cached.AvailableQuantity+cached.ReservedQuantity+cached.BrokenQuantity+cached.LoanedQuantity)
	}
}

// failingAggregates rechaza toda escritura de agregados.
type failingAggregates struct {
	repository.AggregateRepository
}

func (failingAggregates) Upsert(context.Context, *entity.Aggregate) error {
	return errors.New("agregados no disponibles")
}

type failingAggregatesRunner struct {
	inner repository.TxRunner
}

func (r failingAggregatesRunner) Run(ctx context.Context, fn func(repos repository.Repositories) error) error {
	return r.inner.Run(ctx, func(repos repository.Repositories) error {
		repos.Aggregates = failingAggregates{AggregateRepository: repos.Aggregates}
		return fn(repos)
	})
}

func TestReceive_FalloDelAgregadoRevierteLasInstancias(t *testing.T) {
	f := newFixture(t, sku("sku-1", 0, 0))
	_, err := f.receipts.Receive(f.ctx, inventory.ReceiptInput{SKUID: "sku-1", Quantity: 2}, actor)
	require.NoError(t, err)

	broken := inventory.NewReceiptUseCase(failingAggregatesRunner{inner: f.store}, f.aggregator)
	_, err = broken.Receive(f.ctx, inventory.ReceiptInput{SKUID: "sku-1", Quantity: 3}, actor)
	require.Error(t, err)

	n := 0
	for _, err := range f.repos.Instances.Query(f.ctx, "sku-1", repository.LiveFilter()) {
		require.NoError(t, err)
		n++
	}
	assert.Equal(t, 2, n)
	agg, err := f.repos.Aggregates.Get(f.ctx, "sku-1")
	require.NoError(t, err)
	assert.Equal(t, 2, agg.TotalQuantity)
}

func TestApplyDelta_RecomputesIntercaladosNoDuplican(t *testing.T) {
	f := newFixture(t, sku("sku-1", 3, 0))
	_, err := f.receipts.Receive(f.ctx, inventory.ReceiptInput{SKUID: "sku-1", Quantity: 3}, actor)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if i%2 == 0 {
				_, err := f.receipts.Receive(f.ctx, inventory.ReceiptInput{SKUID: "sku-1", Quantity: 1}, actor)
				assert.NoError(t, err)
				return
			}
			_, err := f.aggregator.Recompute(f.ctx, "sku-1", nil)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	cached, err := f.repos.Aggregates.Get(f.ctx, "sku-1")
	require.NoError(t, err)
	fresh, err := inventory.Compute(f.ctx, f.repos, "sku-1")
	require.NoError(t, err)
	assert.Equal(t, 13, fresh.TotalQuantity)
	assert.True(t, domaininv.SameState(cached, fresh), "delta %+v != recompute %+v", cached, fresh)
}

func TestApplyChanges_AgrupaPorSKU(t *testing.T) {
	f := newFixture(t, sku("sku-1", 0, 0), sku("sku-2", 0, 0))
	a, err := f.receipts.Receive(f.ctx, inventory.ReceiptInput{SKUID: "sku-1", Quantity: 2}, actor)
	require.NoError(t, err)
	b, err := f.receipts.Receive(f.ctx, inventory.ReceiptInput{SKUID: "sku-2", Quantity: 1}, actor)
	require.NoError(t, err)

	var changes []entity.InstanceChange
	ref := entity.ClaimRef{TagID: "t", LineID: "l", TagType: entity.TagTypeLoaned}
	require.NoError(t, f.store.Run(f.ctx, func(repos repository.Repositories) error {
		for _, inst := range append(a, b...) {
			ch, err := repos.Instances.Claim(f.ctx, inst.ID, ref)
			if err != nil {
				return err
			}
			changes = append(changes, ch)
		}
		return nil
	}))
	require.NoError(t, f.aggregator.ApplyChanges(f.ctx, changes, entity.MovementTypeClaim, actor.ID))

	agg1, err := f.aggregator.Get(f.ctx, "sku-1")
	require.NoError(t, err)
	assert.Equal(t, 2, agg1.LoanedQuantity)
	assert.Equal(t, 0, agg1.AvailableQuantity)
	assert.Equal(t, 2, agg1.LastMovement.Quantity)
	assert.Equal(t, entity.MovementTypeClaim, agg1.LastMovement.Type)

	agg2, err := f.aggregator.Get(f.ctx, "sku-2")
	require.NoError(t, err)
	assert.Equal(t, 1, agg2.LoanedQuantity)
	assert.Equal(t, 1, agg2.LastMovement.Quantity)
}

// ──────────────────────────────────────────────────────────────────────────────
// Recompute / Get
// ──────────────────────────────────────────────────────────────────────────────

func TestRecompute_CorrigeDeriva(t *testing.T) {
	f := newFixture(t, sku("sku-1", 0, 0))
	_, err := f.receipts.Receive(f.ctx, inventory.ReceiptInput{SKUID: "sku-1", Quantity: 4}, actor)
	require.NoError(t, err)

	// Caché desalineado a propósito
	require.NoError(t, f.repos.Aggregates.Upsert(f.ctx, &entity.Aggregate{SKUID: "sku-1", TotalQuantity: 99, AvailableQuantity: 99, TotalValue: decimal.Zero}))

	agg, err := f.aggregator.Recompute(f.ctx, "sku-1", &entity.Movement{Type: entity.MovementTypeRecompute, Actor: actor.ID})
	require.NoError(t, err)
	assert.Equal(t, 4, agg.TotalQuantity)
	assert.Equal(t, 4, agg.AvailableQuantity)
	assert.Equal(t, entity.MovementTypeRecompute, agg.LastMovement.Type)

	stored, err := f.repos.Aggregates.Get(f.ctx, "sku-1")
	require.NoError(t, err)
	assert.True(t, domaininv.SameState(agg, stored))
}

func TestRecompute_SinMovimientoConservaElAnterior(t *testing.T) {
	f := newFixture(t, sku("sku-1", 0, 0))
	_, err := f.receipts.Receive(f.ctx, inventory.ReceiptInput{SKUID: "sku-1", Quantity: 1}, actor)
	require.NoError(t, err)

	agg, err := f.aggregator.Recompute(f.ctx, "sku-1", nil)
	require.NoError(t, err)
	require.NotNil(t, agg.LastMovement)
	assert.Equal(t, entity.MovementTypeIN, agg.LastMovement.Type)
}

func TestGet_SKUSinMovimientosRecalcula(t *testing.T) {
	f := newFixture(t, sku("sku-1", 1, 0))

	agg, err := f.aggregator.Get(f.ctx, "sku-1")
	require.NoError(t, err)
	assert.Equal(t, 0, agg.TotalQuantity)
	assert.True(t, agg.IsOutOfStock)
	assert.True(t, agg.IsLowStock)

	_, err = f.aggregator.Get(f.ctx, "no-existe")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
