package postgres

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/jhoicas/inventario-tags/internal/domain"
	"github.com/jhoicas/inventario-tags/internal/domain/entity"
	"github.com/jhoicas/inventario-tags/internal/domain/repository"
)

var _ repository.InstanceRepository = (*InstanceRepo)(nil)

const instanceColumns = `id, sku_id, acquisition_cost, acquired_at, location,
	claim_tag_id, claim_line_id, claim_tag_type, condition, notes, synthetic, consumed_at, created_at, updated_at`

// InstanceRepo almacén de instancias sobre PostgreSQL (usable con pool o tx).
type InstanceRepo struct {
	q Querier
}

// NewInstanceRepository construye el adaptador. Pasar pool o tx (Querier).
func NewInstanceRepository(q Querier) *InstanceRepo {
	return &InstanceRepo{q: q}
}

// Create persiste una instancia nueva.
func (r *InstanceRepo) Create(ctx context.Context, inst *entity.Instance) error {
	if inst.AcquisitionCost.IsNegative() {
		return domain.ErrInvalidInput
	}
	query := `
		INSERT INTO instances (` + instanceColumns + `)
		VALUES ($1, $2, $3, $4, $5, NULL, NULL, NULL, $6, $7, $8, NULL, $9, $10)`
	_, err := r.q.Exec(ctx, query,
		inst.ID, inst.SKUID, inst.AcquisitionCost, inst.AcquiredAt, inst.Location,
		inst.Condition, inst.Notes, inst.Synthetic, inst.CreatedAt, inst.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("insert instance %s: %w", inst.ID, domain.ErrConflict)
		}
		return fmt.Errorf("insert instance: %w", err)
	}
	return nil
}

// GetByID obtiene una instancia; ErrNotFound si no existe.
func (r *InstanceRepo) GetByID(ctx context.Context, id string) (*entity.Instance, error) {
	inst, err := scanInstance(r.q.QueryRow(ctx, `SELECT `+instanceColumns+` FROM instances WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("get instance: %w", err)
	}
	return inst, nil
}

// Claim un único UPDATE condicional: solo gana si el reclamo sigue nulo.
func (r *InstanceRepo) Claim(ctx context.Context, id string, ref entity.ClaimRef) (entity.InstanceChange, error) {
	query := `
		UPDATE instances
		SET claim_tag_id = $2, claim_line_id = $3, claim_tag_type = $4, updated_at = now()
		WHERE id = $1 AND claim_line_id IS NULL AND condition <> 'used'
		RETURNING ` + instanceColumns
	after, err := scanInstance(r.q.QueryRow(ctx, query, id, ref.TagID, ref.LineID, ref.TagType))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			if _, getErr := r.GetByID(ctx, id); getErr != nil {
				return entity.InstanceChange{}, getErr
			}
			return entity.InstanceChange{}, domain.ErrAlreadyClaimed
		}
		return entity.InstanceChange{}, fmt.Errorf("claim instance: %w", err)
	}
	before := after.Clone()
	before.Claim = nil
	return entity.InstanceChange{Before: &before, After: after}, nil
}

// Release limpia el reclamo. Las instancias consumidas no cambian.
func (r *InstanceRepo) Release(ctx context.Context, id string) (entity.InstanceChange, error) {
	before, err := r.getForUpdate(ctx, id)
	if err != nil {
		return entity.InstanceChange{}, err
	}
	if before.IsConsumed() || before.Claim == nil {
		same := before.Clone()
		return entity.InstanceChange{Before: before, After: &same}, nil
	}
	query := `
		UPDATE instances
		SET claim_tag_id = NULL, claim_line_id = NULL, claim_tag_type = NULL, updated_at = now()
		WHERE id = $1
		RETURNING ` + instanceColumns
	after, err := scanInstance(r.q.QueryRow(ctx, query, id))
	if err != nil {
		return entity.InstanceChange{}, fmt.Errorf("release instance: %w", err)
	}
	return entity.InstanceChange{Before: before, After: after}, nil
}

// Consume marca la instancia como usada; conserva el reclamo como referencia histórica.
func (r *InstanceRepo) Consume(ctx context.Context, id, lineID string) (entity.InstanceChange, error) {
	before, err := r.getForUpdate(ctx, id)
	if err != nil {
		return entity.InstanceChange{}, err
	}
	if before.Claim == nil || before.IsConsumed() {
		return entity.InstanceChange{}, domain.ErrNotClaimed
	}
	if lineID != "" && before.Claim.LineID != lineID {
		return entity.InstanceChange{}, domain.ErrNotClaimedByThisLine
	}
	query := `
		UPDATE instances
		SET condition = 'used', consumed_at = now(), updated_at = now()
		WHERE id = $1
		RETURNING ` + instanceColumns
	after, err := scanInstance(r.q.QueryRow(ctx, query, id))
	if err != nil {
		return entity.InstanceChange{}, fmt.Errorf("consume instance: %w", err)
	}
	return entity.InstanceChange{Before: before, After: after}, nil
}

func (r *InstanceRepo) getForUpdate(ctx context.Context, id string) (*entity.Instance, error) {
	inst, err := scanInstance(r.q.QueryRow(ctx, `SELECT `+instanceColumns+` FROM instances WHERE id = $1 FOR UPDATE`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("get instance for update: %w", err)
	}
	return inst, nil
}

// Query ejecuta la consulta al recorrer la secuencia. Mientras se recorre, la conexión está ocupada:
// no emitir otras consultas sobre la misma tx dentro del bucle.
func (r *InstanceRepo) Query(ctx context.Context, skuID string, f repository.InstanceFilter) iter.Seq2[*entity.Instance, error] {
	return func(yield func(*entity.Instance, error) bool) {
		query, args := buildInstanceQuery(skuID, f)
		rows, err := r.q.Query(ctx, query, args...)
		if err != nil {
			yield(nil, fmt.Errorf("query instances: %w", err))
			return
		}
		defer rows.Close()
		for rows.Next() {
			inst, err := scanInstance(rows)
			if err != nil {
				yield(nil, fmt.Errorf("scan instance: %w", err))
				return
			}
			if !yield(inst, nil) {
				return
			}
		}
		if err := rows.Err(); err != nil {
			yield(nil, fmt.Errorf("query instances: %w", err))
		}
	}
}

func buildInstanceQuery(skuID string, f repository.InstanceFilter) (string, []any) {
	var sb strings.Builder
	args := []any{skuID}
	sb.WriteString(`SELECT ` + instanceColumns + ` FROM instances WHERE sku_id = $1`)

	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}
	if f.Unclaimed {
		sb.WriteString(` AND claim_line_id IS NULL`)
	}
	if f.ClaimLineID != "" {
		sb.WriteString(` AND claim_line_id = ` + arg(f.ClaimLineID))
	}
	if len(f.Conditions) > 0 {
		sb.WriteString(` AND condition = ANY(` + arg(f.Conditions) + `)`)
	}
	if len(f.ExcludeConditions) > 0 {
		sb.WriteString(` AND condition <> ALL(` + arg(f.ExcludeConditions) + `)`)
	}
	if len(f.ExcludeIDs) > 0 {
		sb.WriteString(` AND id <> ALL(` + arg(f.ExcludeIDs) + `)`)
	}
	switch f.Order {
	case repository.OrderFIFO:
		sb.WriteString(` ORDER BY acquired_at, id`)
	case repository.OrderCost:
		sb.WriteString(` ORDER BY acquisition_cost, acquired_at, id`)
	default:
		sb.WriteString(` ORDER BY id`)
	}
	if f.Limit > 0 {
		sb.WriteString(` LIMIT ` + arg(f.Limit))
	}
	return sb.String(), args
}

func scanInstance(row pgx.Row) (*entity.Instance, error) {
	var (
		inst                   entity.Instance
		tagID, lineID, tagType *string
	)
	err := row.Scan(
		&inst.ID, &inst.SKUID, &inst.AcquisitionCost, &inst.AcquiredAt, &inst.Location,
		&tagID, &lineID, &tagType, &inst.Condition, &inst.Notes, &inst.Synthetic, &inst.ConsumedAt,
		&inst.CreatedAt, &inst.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if lineID != nil {
		inst.Claim = &entity.ClaimRef{LineID: *lineID}
		if tagID != nil {
			inst.Claim.TagID = *tagID
		}
		if tagType != nil {
			inst.Claim.TagType = *tagType
		}
	}
	return &inst, nil
}
