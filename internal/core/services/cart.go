// internal/core/services/cart.go
package services

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/posflow/pos-be/internal/core/domain"
)

// Cart is the ordered set of lines for one in-progress sale. Every
// mutating operation moves units between the cart and the ledger in
// lockstep, so a failed operation leaves both untouched.
//
// A product may appear on several lines at once: when the batch a line
// is bound to runs out mid-sale, further units roll forward to the
// next batch as a new line, preserving per-unit cost and price
// accuracy.
type Cart struct {
	ledger *BatchLedger
	lines  []domain.CartLine
	index  map[domain.LineKey]int
}

// NewCart creates an empty cart drawing stock from the given ledger.
func NewCart(ledger *BatchLedger) *Cart {
	return &Cart{
		ledger: ledger,
		index:  make(map[domain.LineKey]int),
	}
}

// AddUnit allocates one unit of the product from the oldest eligible
// batch and merges it into the line already bound to that batch, or
// appends a new line. Price and cost are snapshotted from the batch; a
// batch without a price override falls back to the product's catalog
// price.
func (c *Cart) AddUnit(product *domain.Product) error {
	batch, err := c.ledger.AllocateOne(product.ID)
	if err != nil {
		return err
	}

	price := batch.Price
	if price.IsZero() {
		price = product.Price
	}

	key := domain.LineKey{ProductID: product.ID, BatchID: batch.ID}
	if idx, ok := c.index[key]; ok {
		c.lines[idx].Quantity++
		return nil
	}

	c.lines = append(c.lines, domain.CartLine{
		ProductID:   product.ID,
		ProductName: product.Name,
		BatchID:     batch.ID,
		UnitPrice:   price,
		UnitCost:    batch.Cost,
		Quantity:    1,
	})
	c.index[key] = len(c.lines) - 1
	return nil
}

// IncrementLine adds one unit to an existing line. If the line's batch
// still has stock the unit comes from it; otherwise allocation rolls
// forward to the next oldest batch for the product and a new line is
// created for it. Fails with domain.ErrOutOfStock when no batch has
// stock, leaving cart and ledger unchanged.
func (c *Cart) IncrementLine(key domain.LineKey) error {
	idx, ok := c.index[key]
	if !ok {
		return fmt.Errorf("%w: product %s batch %s", domain.ErrLineNotFound, key.ProductID, key.BatchID)
	}
	line := &c.lines[idx]

	if c.ledger.TryAllocate(key.BatchID) {
		line.Quantity++
		return nil
	}

	// Bound batch exhausted; roll forward to the next one.
	next, err := c.ledger.AllocateOne(key.ProductID)
	if err != nil {
		return err
	}

	price := next.Price
	if price.IsZero() {
		price = line.UnitPrice
	}

	nextKey := domain.LineKey{ProductID: key.ProductID, BatchID: next.ID}
	if j, ok := c.index[nextKey]; ok {
		c.lines[j].Quantity++
		return nil
	}

	c.lines = append(c.lines, domain.CartLine{
		ProductID:   line.ProductID,
		ProductName: line.ProductName,
		BatchID:     next.ID,
		UnitPrice:   price,
		UnitCost:    next.Cost,
		Quantity:    1,
	})
	c.index[nextKey] = len(c.lines) - 1
	return nil
}

// DecrementLine returns one unit to the line's batch. A line that
// reaches zero quantity is removed from the cart.
func (c *Cart) DecrementLine(key domain.LineKey) error {
	idx, ok := c.index[key]
	if !ok {
		return fmt.Errorf("%w: product %s batch %s", domain.ErrLineNotFound, key.ProductID, key.BatchID)
	}

	if err := c.ledger.Release(key.BatchID, 1); err != nil {
		return err
	}

	c.lines[idx].Quantity--
	if c.lines[idx].Quantity == 0 {
		c.removeAt(idx)
	}
	return nil
}

// RemoveLine returns the line's entire quantity to its batch in one
// step and deletes the line.
func (c *Cart) RemoveLine(key domain.LineKey) error {
	idx, ok := c.index[key]
	if !ok {
		return fmt.Errorf("%w: product %s batch %s", domain.ErrLineNotFound, key.ProductID, key.BatchID)
	}

	if err := c.ledger.Release(key.BatchID, c.lines[idx].Quantity); err != nil {
		return err
	}

	c.removeAt(idx)
	return nil
}

func (c *Cart) removeAt(idx int) {
	delete(c.index, c.lines[idx].Key())
	c.lines = append(c.lines[:idx], c.lines[idx+1:]...)
	for i := idx; i < len(c.lines); i++ {
		c.index[c.lines[i].Key()] = i
	}
}

// Lines returns a copy of the cart lines in insertion order.
func (c *Cart) Lines() []domain.CartLine {
	out := make([]domain.CartLine, len(c.lines))
	copy(out, c.lines)
	return out
}

// Len returns the number of cart lines.
func (c *Cart) Len() int {
	return len(c.lines)
}

// Totals computes subtotal, tax and total for the current lines.
func (c *Cart) Totals(taxRatePercent decimal.Decimal) domain.Totals {
	return domain.ComputeTotals(c.lines, taxRatePercent)
}

// Clear drops all lines without releasing stock to the ledger. Called
// after a successful checkout, when the sold units have already been
// durably decremented at the store.
func (c *Cart) Clear() {
	c.lines = nil
	c.index = make(map[domain.LineKey]int)
}
