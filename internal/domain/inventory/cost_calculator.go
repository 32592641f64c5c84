package inventory

import "github.com/shopspring/decimal"

// AverageCost costo promedio de las unidades en stock (servicio de dominio).
// CostoPromedio = ValorTotal / Cantidad; 0 si no hay unidades.
func AverageCost(totalValue decimal.Decimal, quantity int) decimal.Decimal {
	if quantity <= 0 {
		return decimal.Zero
	}
	return totalValue.Div(decimal.NewFromInt(int64(quantity)))
}
