package repository

import (
	"context"

	"github.com/jhoicas/inventario-tags/internal/domain/entity"
)

// TagRepository puerto de persistencia de tags y sus líneas.
type TagRepository interface {
	Create(ctx context.Context, tag *entity.Tag) error
	GetByID(ctx context.Context, id string) (*entity.Tag, error)
	GetForUpdate(ctx context.Context, id string) (*entity.Tag, error)
	// Update reescribe cabecera y líneas.
	Update(ctx context.Context, tag *entity.Tag) error
	List(ctx context.Context, status string, limit, offset int) ([]*entity.Tag, error)
}
