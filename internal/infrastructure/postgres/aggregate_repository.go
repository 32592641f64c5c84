package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/jhoicas/inventario-tags/internal/domain/entity"
	"github.com/jhoicas/inventario-tags/internal/domain/repository"
)

var _ repository.AggregateRepository = (*AggregateRepo)(nil)

const aggregateColumns = `sku_id, total_quantity, available_quantity, reserved_quantity, broken_quantity, loaned_quantity,
	total_value, average_cost, is_low_stock, is_out_of_stock, is_overstock,
	last_movement_type, last_movement_quantity, last_movement_actor, last_movement_at, updated_at`

// AggregateRepo caché de agregados por SKU sobre PostgreSQL.
type AggregateRepo struct {
	q Querier
}

// NewAggregateRepository construye el adaptador. Pasar pool o tx (Querier).
func NewAggregateRepository(q Querier) *AggregateRepo {
	return &AggregateRepo{q: q}
}

// Get obtiene el agregado; (nil, nil) si el SKU aún no tiene.
func (r *AggregateRepo) Get(ctx context.Context, skuID string) (*entity.Aggregate, error) {
	agg, err := scanAggregate(r.q.QueryRow(ctx, `SELECT `+aggregateColumns+` FROM inventory_aggregates WHERE sku_id = $1`, skuID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get aggregate: %w", err)
	}
	return agg, nil
}

// GetForUpdate obtiene el agregado y bloquea la fila (SELECT FOR UPDATE).
func (r *AggregateRepo) GetForUpdate(ctx context.Context, skuID string) (*entity.Aggregate, error) {
	query := `SELECT ` + aggregateColumns + ` FROM inventory_aggregates WHERE sku_id = $1 FOR UPDATE`
	agg, err := scanAggregate(r.q.QueryRow(ctx, query, skuID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get aggregate for update: %w", err)
	}
	return agg, nil
}

// Upsert inserta o reemplaza el agregado del SKU.
func (r *AggregateRepo) Upsert(ctx context.Context, agg *entity.Aggregate) error {
	query := `
		INSERT INTO inventory_aggregates (` + aggregateColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, now())
		ON CONFLICT (sku_id) DO UPDATE SET
			total_quantity = EXCLUDED.total_quantity,
			available_quantity = EXCLUDED.available_quantity,
			reserved_quantity = EXCLUDED.reserved_quantity,
			broken_quantity = EXCLUDED.broken_quantity,
			loaned_quantity = EXCLUDED.loaned_quantity,
			total_value = EXCLUDED.total_value,
			average_cost = EXCLUDED.average_cost,
			is_low_stock = EXCLUDED.is_low_stock,
			is_out_of_stock = EXCLUDED.is_out_of_stock,
			is_overstock = EXCLUDED.is_overstock,
			last_movement_type = EXCLUDED.last_movement_type,
			last_movement_quantity = EXCLUDED.last_movement_quantity,
			last_movement_actor = EXCLUDED.last_movement_actor,
			last_movement_at = EXCLUDED.last_movement_at,
			updated_at = now()`
	var (
		mvType, mvActor *string
		mvQty           *int
		mvAt            *time.Time
	)
	if mv := agg.LastMovement; mv != nil {
		mvType, mvActor, mvQty, mvAt = &mv.Type, &mv.Actor, &mv.Quantity, &mv.At
	}
	_, err := r.q.Exec(ctx, query,
		agg.SKUID, agg.TotalQuantity, agg.AvailableQuantity, agg.ReservedQuantity, agg.BrokenQuantity,
		agg.LoanedQuantity, agg.TotalValue, agg.AverageCost, agg.IsLowStock, agg.IsOutOfStock, agg.IsOverstock,
		mvType, mvQty, mvActor, mvAt,
	)
	if err != nil {
		return fmt.Errorf("upsert aggregate: %w", err)
	}
	return nil
}

// List todos los agregados ordenados por SKU.
func (r *AggregateRepo) List(ctx context.Context) ([]*entity.Aggregate, error) {
	rows, err := r.q.Query(ctx, `SELECT `+aggregateColumns+` FROM inventory_aggregates ORDER BY sku_id`)
	if err != nil {
		return nil, fmt.Errorf("list aggregates: %w", err)
	}
	defer rows.Close()
	var list []*entity.Aggregate
	for rows.Next() {
		agg, err := scanAggregate(rows)
		if err != nil {
			return nil, fmt.Errorf("scan aggregate: %w", err)
		}
		list = append(list, agg)
	}
	return list, rows.Err()
}

func scanAggregate(row pgx.Row) (*entity.Aggregate, error) {
	var (
		a               entity.Aggregate
		mvType, mvActor *string
		mvQty           *int
		mvAt            *time.Time
	)
	err := row.Scan(
		&a.SKUID, &a.TotalQuantity, &a.AvailableQuantity, &a.ReservedQuantity, &a.BrokenQuantity, &a.LoanedQuantity,
		&a.TotalValue, &a.AverageCost, &a.IsLowStock, &a.IsOutOfStock, &a.IsOverstock,
		&mvType, &mvQty, &mvActor, &mvAt, &a.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if mvType != nil {
		a.LastMovement = &entity.Movement{Type: *mvType}
		if mvQty != nil {
			a.LastMovement.Quantity = *mvQty
		}
		if mvActor != nil {
			a.LastMovement.Actor = *mvActor
		}
		if mvAt != nil {
			a.LastMovement.At = *mvAt
		}
	}
	return &a, nil
}
