package entity

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// SKU representa un producto del catálogo. Lo administra el catálogo externo; el núcleo solo lo lee.
// Details es la bolsa de atributos del catálogo (muro, herramienta, ...) y nunca se interpreta aquí.
type SKU struct {
	ID                    string
	Code                  string // código único del catálogo
	Name                  string
	UnitCost              decimal.Decimal
	UnderstockedThreshold int // total <= umbral => bajo stock
	OverstockedThreshold  int // total >= umbral => sobre stock (0 = sin límite)
	Details               json.RawMessage
	CreatedAt             time.Time
	UpdatedAt             time.Time
}
