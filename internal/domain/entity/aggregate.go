package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// Tipos de movimiento registrados en el agregado.
const (
	MovementTypeIN        = "IN"        // recepción de stock
	MovementTypeClaim     = "CLAIM"     // reserva por un tag
	MovementTypeRelease   = "RELEASE"   // liberación (cancelación o enmienda)
	MovementTypeConsume   = "CONSUME"   // consumo al cumplir una línea
	MovementTypeRecompute = "RECOMPUTE" // recálculo completo
	MovementTypeAmend     = "AMEND"     // re-selección de una línea
	MovementTypeRecovery  = "RECOVERY"  // instancias sintéticas de conciliación
)

// Movement describe el último movimiento que afectó a un agregado.
type Movement struct {
	Type     string
	Quantity int
	Actor    string
	At       time.Time
}

// Aggregate es el resumen por SKU derivado de la población de instancias (caché, no fuente de verdad).
// TotalQuantity siempre es la suma de los cuatro buckets.
type Aggregate struct {
	SKUID             string
	TotalQuantity     int
	AvailableQuantity int
	ReservedQuantity  int
	BrokenQuantity    int
	LoanedQuantity    int
	TotalValue        decimal.Decimal
	AverageCost       decimal.Decimal
	IsLowStock        bool
	IsOutOfStock      bool
	IsOverstock       bool
	LastMovement      *Movement
	UpdatedAt         time.Time
}

// Delta ajuste incremental sobre un agregado. Los ajustes conmutan.
type Delta struct {
	SKUID     string
	Available int
	Reserved  int
	Broken    int
	Loaned    int
	Value     decimal.Decimal
	Movement  *Movement
}

// IsZero indica si el delta no cambia ningún contador ni el valor.
func (d Delta) IsZero() bool {
	return d.Available == 0 && d.Reserved == 0 && d.Broken == 0 && d.Loaned == 0 && d.Value.IsZero()
}

// Quantity cambio neto en el total.
func (d Delta) Quantity() int {
	return d.Available + d.Reserved + d.Broken + d.Loaned
}
