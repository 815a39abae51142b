// internal/core/domain/cart_test.go
package domain_test

import (
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/posflow/pos-be/internal/core/domain"
)

func TestComputeTotals(t *testing.T) {
	line := func(price float64, qty int) domain.CartLine {
		return domain.CartLine{
			ProductID: uuid.New(),
			BatchID:   uuid.New(),
			UnitPrice: decimal.NewFromFloat(price),
			Quantity:  qty,
		}
	}

	tests := []struct {
		name     string
		lines    []domain.CartLine
		taxRate  decimal.Decimal
		subtotal string
		tax      string
		total    string
	}{
		{
			name:     "empty cart",
			lines:    nil,
			taxRate:  decimal.NewFromInt(8),
			subtotal: "0",
			tax:      "0",
			total:    "0",
		},
		{
			name:     "single line no tax",
			lines:    []domain.CartLine{line(100, 2)},
			taxRate:  decimal.Zero,
			subtotal: "200",
			tax:      "0",
			total:    "200",
		},
		{
			name:     "multiple lines with tax",
			lines:    []domain.CartLine{line(100, 2), line(50, 1)},
			taxRate:  decimal.NewFromInt(8),
			subtotal: "250",
			tax:      "20",
			total:    "270",
		},
		{
			name:     "fractional tax",
			lines:    []domain.CartLine{line(99.99, 1)},
			taxRate:  decimal.NewFromInt(12),
			subtotal: "99.99",
			tax:      "11.9988",
			total:    "111.9888",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			totals := domain.ComputeTotals(tt.lines, tt.taxRate)
			assert.True(t, totals.Subtotal.Equal(decimal.RequireFromString(tt.subtotal)), "subtotal = %s", totals.Subtotal)
			assert.True(t, totals.Tax.Equal(decimal.RequireFromString(tt.tax)), "tax = %s", totals.Tax)
			assert.True(t, totals.Total.Equal(decimal.RequireFromString(tt.total)), "total = %s", totals.Total)
		})
	}
}

func TestLineKey_DistinguishesBatches(t *testing.T) {
	productID := uuid.New()
	a := domain.CartLine{ProductID: productID, BatchID: uuid.New()}
	b := domain.CartLine{ProductID: productID, BatchID: uuid.New()}

	assert.NotEqual(t, a.Key(), b.Key(), "same product in different batches must key differently")
	assert.Equal(t, a.Key(), domain.LineKey{ProductID: productID, BatchID: a.BatchID})
}

func TestCartLine_LineTotal(t *testing.T) {
	l := domain.CartLine{UnitPrice: decimal.NewFromFloat(12.5), Quantity: 4}
	assert.True(t, l.LineTotal().Equal(decimal.NewFromInt(50)))
}
