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

var _ repository.TagRepository = (*TagRepo)(nil)

const (
	tagColumns = `id, customer_id, project_id, type, status, due_date, notes,
	created_by, updated_by, created_at, updated_at, fulfilled_at, cancelled_at`
	tagLineColumns = `id, tag_id, sku_id, method, selected_ids, consumed_ids, notes`
)

// TagRepo tags y sus líneas sobre PostgreSQL.
type TagRepo struct {
	q Querier
}

// NewTagRepository construye el adaptador. Pasar pool o tx (Querier).
func NewTagRepository(q Querier) *TagRepo {
	return &TagRepo{q: q}
}

// Create inserta el tag y sus líneas. Llamar dentro de una tx.
func (r *TagRepo) Create(ctx context.Context, tag *entity.Tag) error {
	query := `
		INSERT INTO tags (` + tagColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`
	_, err := r.q.Exec(ctx, query,
		tag.ID, tag.CustomerID, tag.ProjectID, tag.Type, tag.Status, tag.DueDate, tag.Notes,
		tag.CreatedBy, tag.UpdatedBy, tag.CreatedAt, tag.UpdatedAt, tag.FulfilledAt, tag.CancelledAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("insert tag %s: %w", tag.ID, domain.ErrConflict)
		}
		return fmt.Errorf("insert tag: %w", err)
	}
	return r.saveLines(ctx, tag)
}

// GetByID obtiene el tag con sus líneas; ErrNotFound si no existe.
func (r *TagRepo) GetByID(ctx context.Context, id string) (*entity.Tag, error) {
	return r.get(ctx, `SELECT `+tagColumns+` FROM tags WHERE id = $1`, id)
}

// GetForUpdate obtiene el tag bloqueando su fila; serializa las mutaciones sobre el mismo tag.
func (r *TagRepo) GetForUpdate(ctx context.Context, id string) (*entity.Tag, error) {
	return r.get(ctx, `SELECT `+tagColumns+` FROM tags WHERE id = $1 FOR UPDATE`, id)
}

func (r *TagRepo) get(ctx context.Context, query, id string) (*entity.Tag, error) {
	tag, err := scanTag(r.q.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("get tag: %w", err)
	}
	if err := r.loadLines(ctx, []*entity.Tag{tag}); err != nil {
		return nil, err
	}
	return tag, nil
}

// Update guarda estado, auditoría y las líneas del tag.
func (r *TagRepo) Update(ctx context.Context, tag *entity.Tag) error {
	query := `
		UPDATE tags SET
			customer_id = $2, project_id = $3, status = $4, due_date = $5, notes = $6,
			updated_by = $7, updated_at = $8, fulfilled_at = $9, cancelled_at = $10
		WHERE id = $1`
	ct, err := r.q.Exec(ctx, query,
		tag.ID, tag.CustomerID, tag.ProjectID, tag.Status, tag.DueDate, tag.Notes,
		tag.UpdatedBy, tag.UpdatedAt, tag.FulfilledAt, tag.CancelledAt,
	)
	if err != nil {
		return fmt.Errorf("update tag: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return r.saveLines(ctx, tag)
}

// List tags por estado ("" = todos), más recientes primero.
func (r *TagRepo) List(ctx context.Context, status string, limit, offset int) ([]*entity.Tag, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `
		SELECT ` + tagColumns + ` FROM tags
		WHERE ($1 = '' OR status = $1)
		ORDER BY created_at DESC, id
		LIMIT $2 OFFSET $3`
	rows, err := r.q.Query(ctx, query, status, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list tags: %w", err)
	}
	defer rows.Close()
	list := []*entity.Tag{}
	for rows.Next() {
		tag, err := scanTag(rows)
		if err != nil {
			return nil, fmt.Errorf("scan tag: %w", err)
		}
		list = append(list, tag)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list tags: %w", err)
	}
	if err := r.loadLines(ctx, list); err != nil {
		return nil, err
	}
	return list, nil
}

func (r *TagRepo) saveLines(ctx context.Context, tag *entity.Tag) error {
	query := `
		INSERT INTO tag_lines (id, tag_id, position, sku_id, method, selected_ids, consumed_ids, notes)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO UPDATE SET
			position = EXCLUDED.position,
			method = EXCLUDED.method,
			selected_ids = EXCLUDED.selected_ids,
			consumed_ids = EXCLUDED.consumed_ids,
			notes = EXCLUDED.notes`
	for i, l := range tag.Lines {
		selected, consumed := l.SelectedIDs, l.ConsumedIDs
		if selected == nil {
			selected = []string{}
		}
		if consumed == nil {
			consumed = []string{}
		}
		if _, err := r.q.Exec(ctx, query, l.ID, tag.ID, i, l.SKUID, l.Method, selected, consumed, l.Notes); err != nil {
			return fmt.Errorf("save tag line %s: %w", l.ID, err)
		}
	}
	return nil
}

func (r *TagRepo) loadLines(ctx context.Context, tags []*entity.Tag) error {
	if len(tags) == 0 {
		return nil
	}
	byID := make(map[string]*entity.Tag, len(tags))
	ids := make([]string, 0, len(tags))
	for _, t := range tags {
		byID[t.ID] = t
		ids = append(ids, t.ID)
	}
	query := `SELECT ` + tagLineColumns + ` FROM tag_lines WHERE tag_id = ANY($1) ORDER BY tag_id, position`
	rows, err := r.q.Query(ctx, query, ids)
	if err != nil {
		return fmt.Errorf("load tag lines: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var l entity.TagLine
		if err := rows.Scan(&l.ID, &l.TagID, &l.SKUID, &l.Method, &l.SelectedIDs, &l.ConsumedIDs, &l.Notes); err != nil {
			return fmt.Errorf("scan tag line: %w", err)
		}
		if t := byID[l.TagID]; t != nil {
			t.Lines = append(t.Lines, &l)
		}
	}
	return rows.Err()
}

func scanTag(row pgx.Row) (*entity.Tag, error) {
	var t entity.Tag
	err := row.Scan(
		&t.ID, &t.CustomerID, &t.ProjectID, &t.Type, &t.Status, &t.DueDate, &t.Notes,
		&t.CreatedBy, &t.UpdatedBy, &t.CreatedAt, &t.UpdatedAt, &t.FulfilledAt, &t.CancelledAt,
	)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
