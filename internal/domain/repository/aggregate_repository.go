package repository

import (
	"context"

	"github.com/jhoicas/inventario-tags/internal/domain/entity"
)

// AggregateRepository puerto del caché de agregados por SKU.
type AggregateRepository interface {
	// Get devuelve nil, nil si el SKU aún no tiene agregado.
	Get(ctx context.Context, skuID string) (*entity.Aggregate, error)
	// GetForUpdate igual que Get pero bloquea la fila hasta el fin de la transacción.
	GetForUpdate(ctx context.Context, skuID string) (*entity.Aggregate, error)
	Upsert(ctx context.Context, agg *entity.Aggregate) error
	List(ctx context.Context) ([]*entity.Aggregate, error)
}
