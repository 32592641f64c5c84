package reconcile_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/inventario-tags/internal/application/inventory"
	"github.com/jhoicas/inventario-tags/internal/application/policy"
	"github.com/jhoicas/inventario-tags/internal/application/reconcile"
	"github.com/jhoicas/inventario-tags/internal/domain"
	"github.com/jhoicas/inventario-tags/internal/domain/entity"
	"github.com/jhoicas/inventario-tags/internal/domain/repository"
	"github.com/jhoicas/inventario-tags/internal/infrastructure/memory"
)

// ──────────────────────────────────────────────────────────────────────────────
// Helpers de test
// ──────────────────────────────────────────────────────────────────────────────

var (
	admin  = entity.Actor{ID: "u-admin", Role: entity.RoleAdmin}
	system = entity.Actor{ID: "reconcile-cli", Role: entity.RoleSystem}
)

type fixture struct {
	ctx      context.Context
	store    *memory.Store
	repos    repository.Repositories
	agg      *inventory.AggregatorUseCase
	receipts *inventory.ReceiptUseCase
	locker   *reconcile.LocalLocker
	svc      *reconcile.Service
}

func newFixture(t *testing.T, skuIDs ...string) *fixture {
	t.Helper()
	store := memory.NewStore()
	repos := store.Repositories()
	ctx := context.Background()
	for _, id := range skuIDs {
		require.NoError(t, repos.SKUs.Create(ctx, &entity.SKU{ID: id, Code: id, Name: id, UnitCost: decimal.NewFromInt(10), UnderstockedThreshold: 5}))
	}
	agg := inventory.NewAggregatorUseCase(store, repos, zerolog.Nop())
	locker := reconcile.NewLocalLocker()
	return &fixture{
		ctx:      ctx,
		store:    store,
		repos:    repos,
		agg:      agg,
		receipts: inventory.NewReceiptUseCase(store, agg),
		locker:   locker,
		svc: reconcile.NewService(store, repos, agg, locker, policy.NewRolePolicy(nil), zerolog.Nop(), reconcile.Config{
			Workers: 2,
			LockTTL: time.Minute,
		}),
	}
}

// drift recibe found unidades y luego deja el agregado almacenado en expected, como si se hubieran perdido instancias.
func (f *fixture) drift(t *testing.T, skuID string, expected, found int) {
	t.Helper()
	if found > 0 {
		_, err := f.receipts.Receive(f.ctx, inventory.ReceiptInput{SKUID: skuID, Quantity: found}, admin)
		require.NoError(t, err)
	}
	require.NoError(t, f.repos.Aggregates.Upsert(f.ctx, &entity.Aggregate{
		SKUID:             skuID,
		TotalQuantity:     expected,
		AvailableQuantity: expected,
		TotalValue:        decimal.NewFromInt(int64(expected * 10)),
	}))
}

// pausingRunner deja abierta la transacción, con las escrituras ya hechas, hasta que el test cierra release.
type pausingRunner struct {
	inner   repository.TxRunner
	inside  chan struct{}
	release chan struct{}
}

func (r *pausingRunner) Run(ctx context.Context, fn func(repos repository.Repositories) error) error {
	return r.inner.Run(ctx, func(repos repository.Repositories) error {
		if err := fn(repos); err != nil {
			return err
		}
		close(r.inside)
		<-r.release
		return nil
	})
}

func (f *fixture) live(t *testing.T, skuID string) []*entity.Instance {
	t.Helper()
	var out []*entity.Instance
	for inst, err := range f.repos.Instances.Query(f.ctx, skuID, repository.LiveFilter()) {
		require.NoError(t, err)
		out = append(out, inst)
	}
	return out
}

func entryFor(t *testing.T, r *reconcile.Report, skuID string) reconcile.Entry {
	t.Helper()
	for _, e := range r.Entries {
		if e.SKUID == skuID {
			return e
		}
	}
	t.Fatalf("sin entrada para %s", skuID)
	return reconcile.Entry{}
}

// ──────────────────────────────────────────────────────────────────────────────
// Run
// ──────────────────────────────────────────────────────────────────────────────

func TestRun_DuranteUnaRecepcionNoFabricaUnidades(t *testing.T) {
	f := newFixture(t, "muro")
	_, err := f.receipts.Receive(f.ctx, inventory.ReceiptInput{SKUID: "muro", Quantity: 3}, admin)
	require.NoError(t, err)

	runner := &pausingRunner{inner: f.store, inside: make(chan struct{}), release: make(chan struct{})}
	slow := inventory.NewReceiptUseCase(runner, f.agg)
	received := make(chan error, 1)
	go func() {
		_, err := slow.Receive(f.ctx, inventory.ReceiptInput{SKUID: "muro", Quantity: 2}, admin)
		received <- err
	}()
	<-runner.inside

	reconciled := make(chan error, 1)
	go func() {
		_, err := f.svc.Run(f.ctx, reconcile.Options{}, admin)
		reconciled <- err
	}()
	// La conciliación arranca con la recepción todavía abierta
	time.Sleep(50 * time.Millisecond)
	close(runner.release)
	require.NoError(t, <-received)
	require.NoError(t, <-reconciled)

	agg, err := f.repos.Aggregates.Get(f.ctx, "muro")
	require.NoError(t, err)
	assert.Equal(t, 5, agg.TotalQuantity)

	report, err := f.svc.Run(f.ctx, reconcile.Options{}, admin)
	require.NoError(t, err)
	e := entryFor(t, report, "muro")
	assert.Equal(t, 5, e.Expected)
	assert.Equal(t, 5, e.Found)
	assert.Zero(t, e.Synthesized)
	assert.Len(t, f.live(t, "muro"), 5)
}

func TestRun_SintetizaLasInstanciasFaltantes(t *testing.T) {
	f := newFixture(t, "muro")
	f.drift(t, "muro", 50, 3)

	report, err := f.svc.Run(f.ctx, reconcile.Options{}, admin)
	require.NoError(t, err)

	e := entryFor(t, report, "muro")
	assert.Equal(t, 50, e.Expected)
	assert.Equal(t, 3, e.Found)
	assert.Equal(t, 47, e.Synthesized)
	assert.Empty(t, e.Error)
	assert.Equal(t, 0, report.Failures)
	assert.Equal(t, 47, report.Synthesized())
	assert.False(t, report.FinishedAt.Before(report.StartedAt))

	live := f.live(t, "muro")
	require.Len(t, live, 50)
	synthetic := 0
	for _, inst := range live {
		if !inst.Synthetic {
			continue
		}
		synthetic++
		assert.True(t, inst.AcquisitionCost.IsZero())
		assert.Equal(t, entity.LocationUnknown, inst.Location)
		assert.Equal(t, entity.ConditionNew, inst.Condition)
		assert.Equal(t, reconcile.RecoveryNote, inst.Notes)
		assert.Nil(t, inst.Claim)
	}
	assert.Equal(t, 47, synthetic)

	agg, err := f.repos.Aggregates.Get(f.ctx, "muro")
	require.NoError(t, err)
	assert.Equal(t, 50, agg.TotalQuantity)
	assert.Equal(t, 50, agg.AvailableQuantity)
	assert.True(t, agg.TotalValue.Equal(decimal.NewFromInt(30)), "las sintéticas valen 0")
	require.NotNil(t, agg.LastMovement)
	assert.Equal(t, entity.MovementTypeRecovery, agg.LastMovement.Type)
	assert.Equal(t, 47, agg.LastMovement.Quantity)
	assert.Equal(t, admin.ID, agg.LastMovement.Actor)
}

func TestRun_DryRunNoEscribe(t *testing.T) {
	f := newFixture(t, "muro")
	f.drift(t, "muro", 50, 3)

	report, err := f.svc.Run(f.ctx, reconcile.Options{DryRun: true}, admin)
	require.NoError(t, err)
	assert.True(t, report.DryRun)
	assert.Equal(t, 47, entryFor(t, report, "muro").Synthesized)

	assert.Len(t, f.live(t, "muro"), 3)
	agg, err := f.repos.Aggregates.Get(f.ctx, "muro")
	require.NoError(t, err)
	assert.Equal(t, 50, agg.TotalQuantity, "el agregado no se toca en dry-run")
}

func TestRun_SinDerivaSoloRecalcula(t *testing.T) {
	f := newFixture(t, "muro", "taladro")
	f.drift(t, "muro", 2, 4)
	_, err := f.receipts.Receive(f.ctx, inventory.ReceiptInput{SKUID: "taladro", Quantity: 2}, admin)
	require.NoError(t, err)

	report, err := f.svc.Run(f.ctx, reconcile.Options{}, system)
	require.NoError(t, err)
	assert.Equal(t, 0, report.Synthesized())

	assert.Len(t, f.live(t, "muro"), 4, "la conciliación nunca borra instancias")
	agg, err := f.repos.Aggregates.Get(f.ctx, "muro")
	require.NoError(t, err)
	assert.Equal(t, 4, agg.TotalQuantity, "el agregado vuelve a coincidir con las instancias")

	e := entryFor(t, report, "taladro")
	assert.Equal(t, 2, e.Expected)
	assert.Equal(t, 2, e.Found)
}

func TestRun_SoloLosSKUsIndicados(t *testing.T) {
	f := newFixture(t, "muro", "taladro")
	f.drift(t, "muro", 5, 1)
	f.drift(t, "taladro", 5, 1)

	report, err := f.svc.Run(f.ctx, reconcile.Options{SKUIDs: []string{"taladro"}}, admin)
	require.NoError(t, err)
	require.Len(t, report.Entries, 1)
	assert.Equal(t, "taladro", report.Entries[0].SKUID)
	assert.Len(t, f.live(t, "muro"), 1)
	assert.Len(t, f.live(t, "taladro"), 5)
}

func TestRun_FalloPorSKUNoDetieneElLote(t *testing.T) {
	f := newFixture(t, "muro")
	f.drift(t, "muro", 4, 1)

	report, err := f.svc.Run(f.ctx, reconcile.Options{SKUIDs: []string{"no-existe", "muro"}}, admin)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Failures)
	assert.NotEmpty(t, entryFor(t, report, "no-existe").Error)
	assert.Equal(t, 3, entryFor(t, report, "muro").Synthesized)
	assert.Len(t, f.live(t, "muro"), 4)
}

func TestRun_SKUSinAgregadoEsperaCero(t *testing.T) {
	f := newFixture(t, "muro")

	report, err := f.svc.Run(f.ctx, reconcile.Options{}, admin)
	require.NoError(t, err)
	e := entryFor(t, report, "muro")
	assert.Equal(t, 0, e.Expected)
	assert.Equal(t, 0, e.Synthesized)
}

// ──────────────────────────────────────────────────────────────────────────────
// Candado y política
// ──────────────────────────────────────────────────────────────────────────────

func TestRun_ConcurrenteDevuelveErrReconcileRunning(t *testing.T) {
	f := newFixture(t, "muro")
	f.drift(t, "muro", 10, 1)

	held, err := f.locker.Obtain(f.ctx, reconcile.LockKey, time.Minute)
	require.NoError(t, err)

	_, err = f.svc.Run(f.ctx, reconcile.Options{}, admin)
	assert.ErrorIs(t, err, domain.ErrReconcileRunning)
	assert.True(t, reconcile.IsRunning(err))
	assert.Len(t, f.live(t, "muro"), 1, "la ejecución rechazada no escribe")

	require.NoError(t, held.Release(f.ctx))
	_, err = f.svc.Run(f.ctx, reconcile.Options{}, admin)
	require.NoError(t, err)
	assert.Len(t, f.live(t, "muro"), 10)
}

func TestRun_LiberaElCandadoAlTerminar(t *testing.T) {
	f := newFixture(t, "muro")

	_, err := f.svc.Run(f.ctx, reconcile.Options{}, admin)
	require.NoError(t, err)

	lock, err := f.locker.Obtain(f.ctx, reconcile.LockKey, time.Minute)
	require.NoError(t, err)
	require.NoError(t, lock.Release(f.ctx))
}

func TestRun_Politica(t *testing.T) {
	f := newFixture(t, "muro")
	f.drift(t, "muro", 10, 1)

	_, err := f.svc.Run(f.ctx, reconcile.Options{}, entity.Actor{ID: "u-bodega", Role: entity.RoleBodeguero})
	assert.ErrorIs(t, err, domain.ErrForbidden)

	_, err = f.svc.Run(f.ctx, reconcile.Options{DryRun: true}, entity.Actor{})
	assert.ErrorIs(t, err, domain.ErrUnauthorized, "dry-run también exige actor")

	assert.Len(t, f.live(t, "muro"), 1)
}

// ──────────────────────────────────────────────────────────────────────────────
// LocalLocker / Scheduler
// ──────────────────────────────────────────────────────────────────────────────

func TestLocalLocker_ExpiraConElTTL(t *testing.T) {
	l := reconcile.NewLocalLocker()
	ctx := context.Background()

	first, err := l.Obtain(ctx, "k", 10*time.Millisecond)
	require.NoError(t, err)
	_, err = l.Obtain(ctx, "k", time.Minute)
	require.ErrorIs(t, err, domain.ErrReconcileRunning)

	time.Sleep(20 * time.Millisecond)
	second, err := l.Obtain(ctx, "k", time.Minute)
	require.NoError(t, err)

	// Liberar el candado vencido no suelta el del nuevo dueño
	require.NoError(t, first.Release(ctx))
	_, err = l.Obtain(ctx, "k", time.Minute)
	assert.ErrorIs(t, err, domain.ErrReconcileRunning)

	require.NoError(t, second.Release(ctx))
	_, err = l.Obtain(ctx, "k", time.Minute)
	assert.NoError(t, err)
}

func TestScheduler_EjecutaHastaCancelar(t *testing.T) {
	f := newFixture(t, "muro")
	f.drift(t, "muro", 6, 2)

	ctx, cancel := context.WithTimeout(f.ctx, 300*time.Millisecond)
	defer cancel()

	err := reconcile.NewScheduler(f.svc, 20*time.Millisecond, reconcile.Options{}, system, zerolog.Nop()).Start(ctx)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
	assert.Len(t, f.live(t, "muro"), 6, "la primera ejecución repara la deriva")
}
