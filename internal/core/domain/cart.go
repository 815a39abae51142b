// internal/core/domain/cart.go
package domain

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// LineKey addresses a cart line. A product can appear on several lines
// at once when its units span more than one batch, so the batch ID is
// part of the key.
type LineKey struct {
	ProductID uuid.UUID `json:"product_id"`
	BatchID   uuid.UUID `json:"batch_id"`
}

// CartLine is one entry in an in-progress sale, bound to exactly one
// stock batch. Price and cost are snapshotted from the batch at
// allocation time and never re-read.
type CartLine struct {
	ProductID   uuid.UUID       `json:"product_id"`
	ProductName string          `json:"product_name"`
	BatchID     uuid.UUID       `json:"batch_id"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	UnitCost    decimal.Decimal `json:"unit_cost"`
	Quantity    int             `json:"quantity"`
}

// Key returns the structural key addressing this line.
func (l *CartLine) Key() LineKey {
	return LineKey{ProductID: l.ProductID, BatchID: l.BatchID}
}

// LineTotal returns unit price times quantity.
func (l *CartLine) LineTotal() decimal.Decimal {
	return l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// Totals holds the computed amounts for a cart or transaction.
type Totals struct {
	Subtotal decimal.Decimal `json:"subtotal"`
	Tax      decimal.Decimal `json:"tax"`
	Total    decimal.Decimal `json:"total"`
}

// ComputeTotals sums the lines and applies the tax rate (percent).
// Pure function; callers recompute it on every change.
func ComputeTotals(lines []CartLine, taxRatePercent decimal.Decimal) Totals {
	subtotal := decimal.Zero
	for i := range lines {
		subtotal = subtotal.Add(lines[i].LineTotal())
	}

	tax := subtotal.Mul(taxRatePercent).Div(decimal.NewFromInt(100))

	return Totals{
		Subtotal: subtotal,
		Tax:      tax,
		Total:    subtotal.Add(tax),
	}
}
