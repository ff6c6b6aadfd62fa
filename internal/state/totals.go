package state

import (
	"github.com/shopspring/decimal"

	"github.com/Skotchmaster/storefront/internal/models"
)

type Totals struct {
	Total     float64 `json:"total"`
	ItemCount int     `json:"itemCount"`
}

// CalculateTotals sums price*quantity and quantity over items.
func CalculateTotals(items []models.CartLineItem) Totals {
	total := decimal.Zero
	count := 0
	for _, it := range items {
		line := decimal.NewFromFloat(it.Product.Price).Mul(decimal.NewFromInt(int64(it.Quantity)))
		total = total.Add(line)
		count += it.Quantity
	}
	f, _ := total.Float64()
	return Totals{Total: f, ItemCount: count}
}
