package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/jhoicas/inventario-tags/internal/domain"
	"github.com/jhoicas/inventario-tags/internal/domain/entity"
	"github.com/jhoicas/inventario-tags/internal/domain/repository"
)

var _ repository.SKURepository = (*SKURepo)(nil)

const skuColumns = `id, code, name, unit_cost, understocked_threshold, overstocked_threshold, details, created_at, updated_at`

// SKURepo catálogo sobre PostgreSQL (usable con pool o tx).
type SKURepo struct {
	q Querier
}

// NewSKURepository construye el adaptador. Pasar pool o tx (Querier).
func NewSKURepository(q Querier) *SKURepo {
	return &SKURepo{q: q}
}

// Create persiste un SKU (siembra del catálogo).
func (r *SKURepo) Create(ctx context.Context, sku *entity.SKU) error {
	query := `
		INSERT INTO skus (` + skuColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`
	var details []byte
	if len(sku.Details) > 0 {
		details = sku.Details
	}
	_, err := r.q.Exec(ctx, query,
		sku.ID, sku.Code, sku.Name, sku.UnitCost, sku.UnderstockedThreshold, sku.OverstockedThreshold,
		details, sku.CreatedAt, sku.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("insert sku %s: %w", sku.Code, domain.ErrConflict)
		}
		return fmt.Errorf("insert sku: %w", err)
	}
	return nil
}

// GetByID obtiene un SKU; ErrNotFound si no existe.
func (r *SKURepo) GetByID(ctx context.Context, id string) (*entity.SKU, error) {
	query := `SELECT ` + skuColumns + ` FROM skus WHERE id = $1`
	sku, err := scanSKU(r.q.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("get sku: %w", err)
	}
	return sku, nil
}

// List todo el catálogo ordenado por id.
func (r *SKURepo) List(ctx context.Context) ([]*entity.SKU, error) {
	rows, err := r.q.Query(ctx, `SELECT `+skuColumns+` FROM skus ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list skus: %w", err)
	}
	defer rows.Close()
	var list []*entity.SKU
	for rows.Next() {
		sku, err := scanSKU(rows)
		if err != nil {
			return nil, fmt.Errorf("scan sku: %w", err)
		}
		list = append(list, sku)
	}
	return list, rows.Err()
}

func scanSKU(row pgx.Row) (*entity.SKU, error) {
	var (
		s       entity.SKU
		details []byte
	)
	err := row.Scan(&s.ID, &s.Code, &s.Name, &s.UnitCost, &s.UnderstockedThreshold, &s.OverstockedThreshold,
		&details, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return nil, err
	}
	s.Details = details
	return &s, nil
}
