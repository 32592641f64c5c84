package inventory

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/jhoicas/inventario-tags/internal/domain"
	"github.com/jhoicas/inventario-tags/internal/domain/entity"
	"github.com/jhoicas/inventario-tags/internal/domain/repository"
)

// maxReceiptQuantity tope de unidades por recepción.
const maxReceiptQuantity = 10000

// ReceiptUseCase registra entradas de stock: una instancia por unidad física recibida.
type ReceiptUseCase struct {
	txRunner   repository.TxRunner
	aggregator *AggregatorUseCase
	now        func() time.Time
}

// NewReceiptUseCase construye el caso de uso.
func NewReceiptUseCase(txRunner repository.TxRunner, aggregator *AggregatorUseCase) *ReceiptUseCase {
	return &ReceiptUseCase{txRunner: txRunner, aggregator: aggregator, now: time.Now}
}

// ReceiptInput entrada de una recepción.
// UnitCost nil usa el costo unitario del SKU; AcquiredAt cero usa la fecha actual.
type ReceiptInput struct {
	SKUID      string
	Quantity   int
	UnitCost   *decimal.Decimal
	Location   string
	AcquiredAt time.Time
	Condition  string
	Notes      string
}

// Receive crea las instancias y aplica el delta IN al agregado en la misma transacción.
func (uc *ReceiptUseCase) Receive(ctx context.Context, in ReceiptInput, actor entity.Actor) ([]*entity.Instance, error) {
	if in.SKUID == "" || in.Quantity <= 0 || in.Quantity > maxReceiptQuantity {
		return nil, domain.ErrInvalidInput
	}
	if in.UnitCost != nil && in.UnitCost.IsNegative() {
		return nil, domain.ErrInvalidInput
	}
	if in.Condition == "" {
		in.Condition = entity.ConditionNew
	}
	if !entity.ValidCondition(in.Condition) || in.Condition == entity.ConditionUsed {
		return nil, domain.ErrInvalidInput
	}

	now := uc.now()
	if in.AcquiredAt.IsZero() {
		in.AcquiredAt = now
	}

	var (
		created []*entity.Instance
		changes []entity.InstanceChange
	)
	err := uc.txRunner.Run(ctx, func(repos repository.Repositories) error {
		created, changes = nil, nil
		sku, err := repos.SKUs.GetByID(ctx, in.SKUID)
		if err != nil {
			return err
		}
		cost := sku.UnitCost
		if in.UnitCost != nil {
			cost = *in.UnitCost
		}
		for i := 0; i < in.Quantity; i++ {
			inst := &entity.Instance{
				ID:              uuid.New().String(),
				SKUID:           sku.ID,
				AcquisitionCost: cost,
				AcquiredAt:      in.AcquiredAt,
				Location:        in.Location,
				Condition:       in.Condition,
				Notes:           in.Notes,
				CreatedAt:       now,
				UpdatedAt:       now,
			}
			if err := repos.Instances.Create(ctx, inst); err != nil {
				return err
			}
			created = append(created, inst)
			changes = append(changes, entity.InstanceChange{After: inst})
		}
		return uc.aggregator.ApplyChangesTx(ctx, repos, changes, entity.MovementTypeIN, actor.ID)
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}
