package inventory

import (
	"iter"

	"github.com/shopspring/decimal"

	"github.com/jhoicas/inventario-tags/internal/domain/entity"
)

// Bucket contador del agregado en el que cae una instancia no consumida.
type Bucket int

const (
	BucketNone Bucket = iota // consumida: fuera del stock
	BucketAvailable
	BucketReserved
	BucketBroken
	BucketLoaned
)

// BucketOf clasifica una instancia. Cada instancia viva cae en exactamente un bucket,
// por eso total = available + reserved + broken + loaned.
func BucketOf(inst *entity.Instance) Bucket {
	if inst == nil || inst.IsConsumed() {
		return BucketNone
	}
	if inst.Claim != nil {
		switch inst.Claim.TagType {
		case entity.TagTypeLoaned:
			return BucketLoaned
		case entity.TagTypeBroken, entity.TagTypeImperfect:
			return BucketBroken
		default: // reserved, stock
			return BucketReserved
		}
	}
	if inst.Condition == entity.ConditionDamaged {
		return BucketBroken
	}
	return BucketAvailable
}

func addBucket(d *entity.Delta, b Bucket, n int) {
	switch b {
	case BucketAvailable:
		d.Available += n
	case BucketReserved:
		d.Reserved += n
	case BucketBroken:
		d.Broken += n
	case BucketLoaned:
		d.Loaned += n
	}
}

// DeltaFor traduce el antes/después de una instancia en un ajuste del agregado.
func DeltaFor(change entity.InstanceChange) entity.Delta {
	var d entity.Delta
	inst := change.After
	if inst == nil {
		inst = change.Before
	}
	if inst != nil {
		d.SKUID = inst.SKUID
	}
	d.Value = decimal.Zero

	before, after := BucketOf(change.Before), BucketOf(change.After)
	if before != BucketNone {
		addBucket(&d, before, -1)
		d.Value = d.Value.Sub(change.Before.AcquisitionCost)
	}
	if after != BucketNone {
		addBucket(&d, after, 1)
		d.Value = d.Value.Add(change.After.AcquisitionCost)
	}
	return d
}

// Merge suma deltas del mismo SKU.
func Merge(a, b entity.Delta) entity.Delta {
	return entity.Delta{
		SKUID:     a.SKUID,
		Available: a.Available + b.Available,
		Reserved:  a.Reserved + b.Reserved,
		Broken:    a.Broken + b.Broken,
		Loaned:    a.Loaned + b.Loaned,
		Value:     a.Value.Add(b.Value),
		Movement:  a.Movement,
	}
}

// Summarize recorre las instancias de un SKU y arma los contadores desde cero.
func Summarize(skuID string, instances iter.Seq2[*entity.Instance, error]) (*entity.Aggregate, error) {
	agg := &entity.Aggregate{SKUID: skuID, TotalValue: decimal.Zero}
	for inst, err := range instances {
		if err != nil {
			return nil, err
		}
		switch BucketOf(inst) {
		case BucketNone:
			continue
		case BucketAvailable:
			agg.AvailableQuantity++
		case BucketReserved:
			agg.ReservedQuantity++
		case BucketBroken:
			agg.BrokenQuantity++
		case BucketLoaned:
			agg.LoanedQuantity++
		}
		agg.TotalValue = agg.TotalValue.Add(inst.AcquisitionCost)
	}
	return agg, nil
}

// Apply suma un delta a una copia del agregado. agg puede ser nil (primer movimiento del SKU).
func Apply(agg *entity.Aggregate, d entity.Delta) *entity.Aggregate {
	out := &entity.Aggregate{SKUID: d.SKUID, TotalValue: decimal.Zero}
	if agg != nil {
		cp := *agg
		out = &cp
	}
	out.AvailableQuantity += d.Available
	out.ReservedQuantity += d.Reserved
	out.BrokenQuantity += d.Broken
	out.LoanedQuantity += d.Loaned
	out.TotalValue = out.TotalValue.Add(d.Value)
	if d.Movement != nil {
		mv := *d.Movement
		out.LastMovement = &mv
	}
	return out
}

// Finalize recalcula los campos derivados: total, costo promedio y banderas de stock.
func Finalize(agg *entity.Aggregate, sku *entity.SKU) {
	agg.TotalQuantity = agg.AvailableQuantity + agg.ReservedQuantity + agg.BrokenQuantity + agg.LoanedQuantity
	agg.AverageCost = AverageCost(agg.TotalValue, agg.TotalQuantity)
	agg.IsOutOfStock = agg.TotalQuantity == 0
	agg.IsLowStock = false
	agg.IsOverstock = false
	if sku != nil {
		agg.IsLowStock = agg.TotalQuantity <= sku.UnderstockedThreshold
		agg.IsOverstock = sku.OverstockedThreshold > 0 && agg.TotalQuantity >= sku.OverstockedThreshold
	}
}

// SameState compara contadores, valor y banderas (ignora LastMovement y UpdatedAt).
func SameState(a, b *entity.Aggregate) bool {
	return a.TotalQuantity == b.TotalQuantity &&
		a.AvailableQuantity == b.AvailableQuantity &&
		a.ReservedQuantity == b.ReservedQuantity &&
		a.BrokenQuantity == b.BrokenQuantity &&
		a.LoanedQuantity == b.LoanedQuantity &&
		a.TotalValue.Equal(b.TotalValue) &&
		a.AverageCost.Equal(b.AverageCost) &&
		a.IsLowStock == b.IsLowStock &&
		a.IsOutOfStock == b.IsOutOfStock &&
		a.IsOverstock == b.IsOverstock
}
