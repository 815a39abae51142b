// internal/core/domain/batch.go
package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// StockBatch is a lot of inventory received at one cost/price point.
// Batches are consumed in arrival order (FIFO); a batch that reaches
// zero remaining is never deleted, it stays as the historical record
// for the sales that drew from it.
type StockBatch struct {
	ID        uuid.UUID       `json:"id"`
	ProductID uuid.UUID       `json:"product_id"`
	Remaining int             `json:"quantity_remaining"`
	Cost      decimal.Decimal `json:"cost"`
	Price     decimal.Decimal `json:"price"`
	CreatedAt time.Time       `json:"created_at"`
}

// Validate performs domain validation on the stock batch
func (b *StockBatch) Validate() error {
	if b.ProductID == uuid.Nil {
		return fmt.Errorf("product_id is required")
	}
	if b.Remaining < 0 {
		return fmt.Errorf("quantity_remaining cannot be negative")
	}
	if b.Cost.IsNegative() {
		return fmt.Errorf("cost cannot be negative")
	}
	if b.Price.IsNegative() {
		return fmt.Errorf("price cannot be negative")
	}
	return nil
}

// PrepareForStorage prepares the batch for database storage
func (b *StockBatch) PrepareForStorage() {
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	if b.CreatedAt.IsZero() {
		b.CreatedAt = time.Now()
	}
}

// Before reports whether b precedes other in FIFO order. Older batches
// come first; equal timestamps fall back to the batch ID so the order
// is deterministic.
func (b *StockBatch) Before(other *StockBatch) bool {
	if !b.CreatedAt.Equal(other.CreatedAt) {
		return b.CreatedAt.Before(other.CreatedAt)
	}
	return strings.Compare(b.ID.String(), other.ID.String()) < 0
}
