package repository

import (
	"context"

	"github.com/jhoicas/inventario-tags/internal/domain/entity"
)

// SKURepository puerto de lectura del catálogo (DIP). Create solo se usa para sembrar datos.
type SKURepository interface {
	Create(ctx context.Context, sku *entity.SKU) error
	GetByID(ctx context.Context, id string) (*entity.SKU, error)
	List(ctx context.Context) ([]*entity.SKU, error)
}
