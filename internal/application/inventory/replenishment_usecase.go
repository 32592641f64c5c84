package inventory

import (
	"context"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/jhoicas/inventario-tags/internal/domain/entity"
	"github.com/jhoicas/inventario-tags/internal/domain/repository"
)

// ReplenishmentSuggestion un SKU en o bajo su umbral de bajo stock.
type ReplenishmentSuggestion struct {
	SKUID              string
	Code               string
	Name               string
	TotalQuantity      int
	AvailableQuantity  int
	Threshold          int
	IdealStock         int
	SuggestedOrderQty  int
	UnitCost           decimal.Decimal
	EstimatedOrderCost decimal.Decimal
	OutOfStock         bool
	Priority           int // 1 = más urgente
}

// ReplenishmentUseCase genera la lista de reposición a partir de los agregados almacenados.
type ReplenishmentUseCase struct {
	repos repository.Repositories
}

// NewReplenishmentUseCase construye el caso de uso de reposición.
func NewReplenishmentUseCase(repos repository.Repositories) *ReplenishmentUseCase {
	return &ReplenishmentUseCase{repos: repos}
}

// GenerateReplenishmentList devuelve los SKUs marcados como bajo stock con la cantidad sugerida de pedido.
// Un SKU sin agregado cuenta como agotado.
func (uc *ReplenishmentUseCase) GenerateReplenishmentList(ctx context.Context) ([]ReplenishmentSuggestion, error) {
	skus, err := uc.repos.SKUs.List(ctx)
	if err != nil {
		return nil, err
	}
	aggs, err := uc.repos.Aggregates.List(ctx)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]*entity.Aggregate, len(aggs))
	for _, a := range aggs {
		byID[a.SKUID] = a
	}

	out := make([]ReplenishmentSuggestion, 0)
	for _, sku := range skus {
		agg := byID[sku.ID]
		if agg == nil {
			agg = &entity.Aggregate{SKUID: sku.ID, IsOutOfStock: true, IsLowStock: sku.UnderstockedThreshold >= 0}
		}
		if !agg.IsLowStock {
			continue
		}
		ideal := idealStock(sku)
		suggested := max(ideal-agg.TotalQuantity, 0)
		// Costo estimado con el promedio actual; sin unidades se usa el costo del catálogo
		unitCost := agg.AverageCost
		if agg.TotalQuantity == 0 || unitCost.IsZero() {
			unitCost = sku.UnitCost
		}
		out = append(out, ReplenishmentSuggestion{
			SKUID:              sku.ID,
			Code:               sku.Code,
			Name:               sku.Name,
			TotalQuantity:      agg.TotalQuantity,
			AvailableQuantity:  agg.AvailableQuantity,
			Threshold:          sku.UnderstockedThreshold,
			IdealStock:         ideal,
			SuggestedOrderQty:  suggested,
			UnitCost:           unitCost,
			EstimatedOrderCost: unitCost.Mul(decimal.NewFromInt(int64(suggested))),
			OutOfStock:         agg.TotalQuantity == 0,
		})
	}

	// Primero agotados, luego mayor déficit, luego ID
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.OutOfStock != b.OutOfStock {
			return a.OutOfStock
		}
		if a.SuggestedOrderQty != b.SuggestedOrderQty {
			return a.SuggestedOrderQty > b.SuggestedOrderQty
		}
		return a.SKUID < b.SKUID
	})
	for i := range out {
		out[i].Priority = i + 1
	}
	return out, nil
}

// idealStock 1.5 veces el umbral (mínimo umbral+1), sin llegar al umbral de sobre stock.
func idealStock(sku *entity.SKU) int {
	ideal := max((sku.UnderstockedThreshold*3+1)/2, sku.UnderstockedThreshold+1)
	if sku.OverstockedThreshold > 0 && ideal >= sku.OverstockedThreshold {
		ideal = max(sku.OverstockedThreshold-1, 0)
	}
	return ideal
}
