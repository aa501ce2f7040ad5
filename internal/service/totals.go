package service

import (
	"github.com/shopspring/decimal"

	"github.com/nurpe/cnc-service/internal/model"
)

type Totals struct {
	Subtotal  float64
	TaxAmount float64
	Total     float64
}

// CalculateTotals sums quantity x unit price over the items and applies the
// tax rate. Every amount is rounded to cents, half away from zero.
func CalculateTotals(items []model.DocumentItem, taxRate float64) Totals {
	subtotal := decimal.Zero
	for _, item := range items {
		subtotal = subtotal.Add(lineTotal(item))
	}
	subtotal = subtotal.Round(2)
	tax := subtotal.Mul(decimal.NewFromFloat(taxRate)).Round(2)
	total := subtotal.Add(tax).Round(2)

	return Totals{
		Subtotal:  subtotal.InexactFloat64(),
		TaxAmount: tax.InexactFloat64(),
		Total:     total.InexactFloat64(),
	}
}

func lineTotal(item model.DocumentItem) decimal.Decimal {
	return decimal.NewFromFloat(item.Quantity).Mul(decimal.NewFromFloat(item.UnitPrice))
}

// withLineTotals returns a copy of items with Total filled in.
func withLineTotals(items []model.DocumentItem) []model.DocumentItem {
	result := make([]model.DocumentItem, len(items))
	for i, item := range items {
		item.Total = lineTotal(item).Round(2).InexactFloat64()
		result[i] = item
	}
	return result
}
