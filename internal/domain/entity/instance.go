package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// Condiciones de una instancia. Used es terminal: la instancia fue consumida por una línea.
const (
	ConditionNew     = "new"
	ConditionOpened  = "opened"
	ConditionDamaged = "damaged"
	ConditionUsed    = "used"
)

// LocationUnknown ubicación centinela de las instancias sintéticas de recuperación.
const LocationUnknown = "UNKNOWN"

// ValidCondition indica si c es una condición conocida.
func ValidCondition(c string) bool {
	switch c {
	case ConditionNew, ConditionOpened, ConditionDamaged, ConditionUsed:
		return true
	}
	return false
}

// ClaimRef identifica la línea de tag que retiene una instancia.
// TagType se desnormaliza para que el agregado dependa solo de las instancias.
type ClaimRef struct {
	TagID   string
	LineID  string
	TagType string
}

// Instance es una unidad física de un SKU.
type Instance struct {
	ID              string
	SKUID           string
	AcquisitionCost decimal.Decimal
	AcquiredAt      time.Time
	Location        string
	Claim           *ClaimRef // nil = disponible
	Condition       string
	Notes           string
	Synthetic       bool // creada por conciliación, no por una recepción real
	ConsumedAt      *time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// IsClaimed indica si la instancia tiene una referencia de reclamo.
func (i *Instance) IsClaimed() bool { return i.Claim != nil }

// IsConsumed indica si la instancia ya fue consumida (condición terminal).
func (i *Instance) IsConsumed() bool { return i.Condition == ConditionUsed }

// IsAvailable: sin reclamo y en condición utilizable.
func (i *Instance) IsAvailable() bool {
	return i.Claim == nil && i.Condition != ConditionDamaged && i.Condition != ConditionUsed
}

// HeldBy indica si la instancia está retenida (sin consumir) por la línea indicada.
func (i *Instance) HeldBy(lineID string) bool {
	return i.Claim != nil && i.Claim.LineID == lineID && !i.IsConsumed()
}

// Clone devuelve una copia profunda.
func (i Instance) Clone() Instance {
	if i.Claim != nil {
		c := *i.Claim
		i.Claim = &c
	}
	if i.ConsumedAt != nil {
		t := *i.ConsumedAt
		i.ConsumedAt = &t
	}
	return i
}

// InstanceChange es el antes/después de una escritura sobre una instancia.
// Before es nil cuando la instancia se acaba de crear.
type InstanceChange struct {
	Before *Instance
	After  *Instance
}
