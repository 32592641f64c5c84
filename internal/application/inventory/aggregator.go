package inventory

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"github.com/jhoicas/inventario-tags/internal/domain/entity"
	domaininv "github.com/jhoicas/inventario-tags/internal/domain/inventory"
	"github.com/jhoicas/inventario-tags/internal/domain/repository"
)

// AggregatorUseCase mantiene el caché de agregados por SKU.
// Recompute es el camino autoritativo (escaneo completo); ApplyDelta es el camino rápido
// y debe dar el mismo resultado que Recompute para el mismo estado de instancias.
type AggregatorUseCase struct {
	txRunner repository.TxRunner
	repos    repository.Repositories
	log      zerolog.Logger
	now      func() time.Time
}

// NewAggregatorUseCase construye el agregador.
func NewAggregatorUseCase(txRunner repository.TxRunner, repos repository.Repositories, log zerolog.Logger) *AggregatorUseCase {
	return &AggregatorUseCase{txRunner: txRunner, repos: repos, log: log, now: time.Now}
}

// Compute calcula el agregado desde las instancias sin persistirlo.
func Compute(ctx context.Context, repos repository.Repositories, skuID string) (*entity.Aggregate, error) {
	sku, err := repos.SKUs.GetByID(ctx, skuID)
	if err != nil {
		return nil, err
	}
	agg, err := domaininv.Summarize(skuID, repos.Instances.Query(ctx, skuID, repository.LiveFilter()))
	if err != nil {
		return nil, fmt.Errorf("scan instances %s: %w", skuID, err)
	}
	domaininv.Finalize(agg, sku)
	return agg, nil
}

// Recompute recalcula y persiste el agregado de un SKU. Si mv es nil se conserva el último movimiento.
func (uc *AggregatorUseCase) Recompute(ctx context.Context, skuID string, mv *entity.Movement) (*entity.Aggregate, error) {
	var out *entity.Aggregate
	err := uc.txRunner.Run(ctx, func(repos repository.Repositories) error {
		agg, err := uc.RecomputeTx(ctx, repos, skuID, mv)
		out = agg
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// RecomputeTx es Recompute dentro de una transacción abierta por el llamador.
func (uc *AggregatorUseCase) RecomputeTx(ctx context.Context, repos repository.Repositories, skuID string, mv *entity.Movement) (*entity.Aggregate, error) {
	// Bloquea la fila del agregado mientras se escanea
	cur, err := repos.Aggregates.GetForUpdate(ctx, skuID)
	if err != nil {
		return nil, err
	}
	agg, err := Compute(ctx, repos, skuID)
	if err != nil {
		return nil, err
	}
	switch {
	case mv != nil:
		m := *mv
		agg.LastMovement = &m
	case cur != nil:
		agg.LastMovement = cur.LastMovement
	}
	agg.UpdatedAt = uc.now()
	if err := repos.Aggregates.Upsert(ctx, agg); err != nil {
		return nil, err
	}
	return agg, nil
}

// ApplyDelta ajusta los contadores sin escanear en una transacción propia.
func (uc *AggregatorUseCase) ApplyDelta(ctx context.Context, d entity.Delta) (*entity.Aggregate, error) {
	var out *entity.Aggregate
	err := uc.txRunner.Run(ctx, func(repos repository.Repositories) error {
		agg, err := uc.ApplyDeltaTx(ctx, repos, d)
		out = agg
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// ApplyDeltaTx aplica el delta dentro de la transacción que produjo los cambios de instancias.
// Si el SKU aún no tiene agregado lo recalcula; el escaneo ya incluye esos cambios y el delta se descarta.
func (uc *AggregatorUseCase) ApplyDeltaTx(ctx context.Context, repos repository.Repositories, d entity.Delta) (*entity.Aggregate, error) {
	cur, err := repos.Aggregates.GetForUpdate(ctx, d.SKUID)
	if err != nil {
		return nil, err
	}
	if cur == nil {
		return uc.RecomputeTx(ctx, repos, d.SKUID, d.Movement)
	}
	sku, err := repos.SKUs.GetByID(ctx, d.SKUID)
	if err != nil {
		return nil, err
	}
	agg := domaininv.Apply(cur, d)
	domaininv.Finalize(agg, sku)
	agg.UpdatedAt = uc.now()
	if err := repos.Aggregates.Upsert(ctx, agg); err != nil {
		return nil, err
	}
	return agg, nil
}

// ApplyChanges es ApplyChangesTx en una transacción propia.
func (uc *AggregatorUseCase) ApplyChanges(ctx context.Context, changes []entity.InstanceChange, movementType, actor string) error {
	return uc.txRunner.Run(ctx, func(repos repository.Repositories) error {
		return uc.ApplyChangesTx(ctx, repos, changes, movementType, actor)
	})
}

// ApplyChangesTx agrupa cambios de instancias en un delta por SKU y los aplica en la transacción abierta.
// Los agregados se bloquean en orden de SKU; un fallo aborta la transacción del llamador.
func (uc *AggregatorUseCase) ApplyChangesTx(ctx context.Context, repos repository.Repositories, changes []entity.InstanceChange, movementType, actor string) error {
	deltas := make(map[string]entity.Delta)
	counts := make(map[string]int)
	for _, ch := range changes {
		d := domaininv.DeltaFor(ch)
		if d.SKUID == "" {
			continue
		}
		counts[d.SKUID]++
		if prev, ok := deltas[d.SKUID]; ok {
			d = domaininv.Merge(prev, d)
		}
		deltas[d.SKUID] = d
	}

	skuIDs := make([]string, 0, len(deltas))
	for id := range deltas {
		skuIDs = append(skuIDs, id)
	}
	sort.Strings(skuIDs)

	now := uc.now()
	for _, skuID := range skuIDs {
		d := deltas[skuID]
		d.Movement = &entity.Movement{Type: movementType, Quantity: counts[skuID], Actor: actor, At: now}
		if _, err := uc.ApplyDeltaTx(ctx, repos, d); err != nil {
			uc.log.Error().Err(err).Str("sku_id", skuID).Str("movement", movementType).
				Msg("no se pudo aplicar el delta del agregado")
			return fmt.Errorf("apply delta %s: %w", skuID, err)
		}
	}
	return nil
}

// Get devuelve el agregado en caché; si no existe lo recalcula.
func (uc *AggregatorUseCase) Get(ctx context.Context, skuID string) (*entity.Aggregate, error) {
	agg, err := uc.repos.Aggregates.Get(ctx, skuID)
	if err != nil {
		return nil, err
	}
	if agg != nil {
		return agg, nil
	}
	return uc.Recompute(ctx, skuID, nil)
}
