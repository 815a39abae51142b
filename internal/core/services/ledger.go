// internal/core/services/ledger.go
package services

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/google/uuid"

	"github.com/posflow/pos-be/internal/core/domain"
	"github.com/posflow/pos-be/internal/core/ports"
)

// ledgerBatch is a loaded batch plus its remaining quantity at load
// time. The latter never changes and anchors the conservation check:
// units reserved in the cart plus units still available always add up
// to loadedRemaining.
type ledgerBatch struct {
	domain.StockBatch
	loadedRemaining int
}

// BatchLedger is the session-scoped, in-memory view of available stock
// batches. It is loaded from the store once when a POS session opens;
// AllocateOne and Release never touch the network. Durable decrements
// happen only at checkout.
//
// The ledger is not safe for concurrent use; the owning session
// serializes access.
type BatchLedger struct {
	store     ports.SaleStore
	byProduct map[uuid.UUID][]*ledgerBatch
	byID      map[uuid.UUID]*ledgerBatch
	logger    *slog.Logger
}

// NewBatchLedger creates an empty ledger backed by the given store.
func NewBatchLedger(store ports.SaleStore, logger *slog.Logger) *BatchLedger {
	return &BatchLedger{
		store:     store,
		byProduct: make(map[uuid.UUID][]*ledgerBatch),
		byID:      make(map[uuid.UUID]*ledgerBatch),
		logger:    logger.With(slog.String("component", "batch_ledger")),
	}
}

// Load replaces the ledger contents with a fresh snapshot of all
// batches with remaining stock for the given products, in FIFO order.
func (l *BatchLedger) Load(ctx context.Context, productIDs []uuid.UUID) error {
	batches, err := l.store.ListBatches(ctx, productIDs)
	if err != nil {
		return fmt.Errorf("failed to load stock batches: %w", err)
	}

	l.byProduct = make(map[uuid.UUID][]*ledgerBatch, len(productIDs))
	l.byID = make(map[uuid.UUID]*ledgerBatch, len(batches))

	for i := range batches {
		b := batches[i]
		if b.Remaining <= 0 {
			continue
		}
		lb := &ledgerBatch{StockBatch: b, loadedRemaining: b.Remaining}
		l.byProduct[b.ProductID] = append(l.byProduct[b.ProductID], lb)
		l.byID[b.ID] = lb
	}

	// The store returns createdAt order, but re-sort so the FIFO
	// ordering (including the ID tie-break) never depends on it.
	for _, group := range l.byProduct {
		sort.Slice(group, func(i, j int) bool {
			return group[i].StockBatch.Before(&group[j].StockBatch)
		})
	}

	l.logger.DebugContext(ctx, "batch ledger loaded",
		slog.Int("products", len(l.byProduct)),
		slog.Int("batches", len(l.byID)))

	return nil
}

// AllocateOne picks the oldest batch with remaining stock for the
// product, decrements it by one unit, and returns a snapshot of it.
// Returns domain.ErrOutOfStock when every batch is exhausted; the
// ledger is unchanged in that case.
func (l *BatchLedger) AllocateOne(productID uuid.UUID) (domain.StockBatch, error) {
	for _, lb := range l.byProduct[productID] {
		if lb.Remaining > 0 {
			lb.Remaining--
			return lb.StockBatch, nil
		}
	}
	return domain.StockBatch{}, domain.ErrOutOfStock
}

// TryAllocate decrements the named batch by one unit if it still has
// remaining stock. Used when a cart line wants another unit from the
// batch it is already bound to.
func (l *BatchLedger) TryAllocate(batchID uuid.UUID) bool {
	lb, ok := l.byID[batchID]
	if !ok || lb.Remaining <= 0 {
		return false
	}
	lb.Remaining--
	return true
}

// Release returns quantity units to the named batch. The batch must
// have been loaded; releasing to an unknown batch is a bug in the
// caller, not an operator-visible condition.
func (l *BatchLedger) Release(batchID uuid.UUID, quantity int) error {
	lb, ok := l.byID[batchID]
	if !ok {
		return fmt.Errorf("%w: %s", domain.ErrUnknownBatch, batchID)
	}
	lb.Remaining += quantity
	return nil
}

// Remaining returns the current in-memory remaining quantity for a
// batch, or zero if the batch is unknown.
func (l *BatchLedger) Remaining(batchID uuid.UUID) int {
	if lb, ok := l.byID[batchID]; ok {
		return lb.Remaining
	}
	return 0
}

// LoadedRemaining returns the batch's remaining quantity as of Load.
func (l *BatchLedger) LoadedRemaining(batchID uuid.UUID) int {
	if lb, ok := l.byID[batchID]; ok {
		return lb.loadedRemaining
	}
	return 0
}

// PeekFIFO returns the batch the next allocation for the product would
// draw from, without allocating. Used to preview the effective unit
// price on the product grid.
func (l *BatchLedger) PeekFIFO(productID uuid.UUID) (domain.StockBatch, bool) {
	for _, lb := range l.byProduct[productID] {
		if lb.Remaining > 0 {
			return lb.StockBatch, true
		}
	}
	return domain.StockBatch{}, false
}
