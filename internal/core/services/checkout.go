// internal/core/services/checkout.go
package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/posflow/pos-be/internal/core/domain"
	"github.com/posflow/pos-be/internal/core/ports"
)

// CheckoutState tracks how far a single checkout attempt progressed.
// There are no backward transitions and no retries: a failed attempt
// terminates where it failed and the partial writes stay in the store
// for manual reconciliation.
type CheckoutState string

const (
	StateIdle           CheckoutState = "idle"
	StateHeaderWritten  CheckoutState = "header_written"
	StateItemsWritten   CheckoutState = "items_written"
	StateBatchesUpdated CheckoutState = "batches_updated"
	StateStockUpdated   CheckoutState = "stock_updated"
	StateFailed         CheckoutState = "failed"
)

// CheckoutService converts a finalized cart into a durable transaction
// through an ordered sequence of store writes.
//
// The sequence is intentionally not atomic: a failure aborts the
// remaining steps but never undoes writes already committed. Inventing
// compensation here would change behavior callers rely on; the partial
// states are distinguishable through the CheckoutError step instead.
type CheckoutService struct {
	store  ports.SaleStore
	logger *slog.Logger
}

// NewCheckoutService creates a new checkout service
func NewCheckoutService(store ports.SaleStore, logger *slog.Logger) *CheckoutService {
	return &CheckoutService{
		store:  store,
		logger: logger.With(slog.String("service", "checkout")),
	}
}

// Checkout records the cart as a completed transaction. On success the
// cart is cleared without releasing stock back to the ledger: the sold
// units were already durably decremented at the store.
func (s *CheckoutService) Checkout(ctx context.Context, cart *Cart, taxRatePercent decimal.Decimal, method domain.PaymentMethod) (*domain.Receipt, error) {
	if cart.Len() == 0 {
		return nil, domain.ErrEmptyCart
	}

	lines := cart.Lines()
	totals := cart.Totals(taxRatePercent)
	state := StateIdle

	fail := func(step domain.CheckoutStep, err error) (*domain.Receipt, error) {
		s.logger.ErrorContext(ctx, "checkout aborted",
			slog.String("step", string(step)),
			slog.String("state", string(state)),
			slog.String("error", err.Error()))
		state = StateFailed
		return nil, domain.NewCheckoutError(step, err)
	}

	// Step 2: transaction header.
	trx := &domain.Transaction{
		Subtotal:      totals.Subtotal,
		Tax:           totals.Tax,
		Total:         totals.Total,
		PaymentMethod: method,
		Status:        domain.StatusCompleted,
	}
	if err := trx.Validate(); err != nil {
		return nil, fmt.Errorf("invalid transaction: %w", err)
	}

	trxID, err := s.store.InsertTransaction(ctx, trx)
	if err != nil {
		return fail(domain.StepTransactionWrite, err)
	}
	state = StateHeaderWritten

	// Step 3: one item row per cart line. The first failure halts the
	// loop; the header and items written so far stay in the store.
	for i := range lines {
		item := &domain.TransactionItem{
			TransactionID: trxID,
			ProductID:     lines[i].ProductID,
			BatchID:       lines[i].BatchID,
			ProductName:   lines[i].ProductName,
			Quantity:      lines[i].Quantity,
			UnitPrice:     lines[i].UnitPrice,
			TotalPrice:    lines[i].LineTotal(),
			UnitCost:      lines[i].UnitCost,
		}
		if err := s.store.InsertTransactionItem(ctx, item); err != nil {
			return fail(domain.StepLineItemWrite, fmt.Errorf("line %d (%s): %w", i, lines[i].ProductName, err))
		}
	}
	state = StateItemsWritten

	// Step 4: decrement each line's batch. The store value is re-read
	// rather than trusting the ledger, since concurrent sessions may
	// have drawn from the same batch. Clamped at zero, matching the
	// store's invariant that remaining never goes negative.
	for i := range lines {
		remaining, err := s.store.ReadBatchRemaining(ctx, lines[i].BatchID)
		if err != nil {
			return fail(domain.StepBatchUpdate, fmt.Errorf("read batch %s: %w", lines[i].BatchID, err))
		}
		remaining -= lines[i].Quantity
		if remaining < 0 {
			remaining = 0
		}
		if err := s.store.WriteBatchRemaining(ctx, lines[i].BatchID, remaining); err != nil {
			return fail(domain.StepBatchUpdate, fmt.Errorf("write batch %s: %w", lines[i].BatchID, err))
		}
	}
	state = StateBatchesUpdated

	// Step 5: decrement aggregate product stock, one write per product.
	for _, pt := range aggregateByProduct(lines) {
		stock, err := s.store.ReadProductStock(ctx, pt.productID)
		if err != nil {
			return fail(domain.StepStockUpdate, fmt.Errorf("read product %s: %w", pt.productID, err))
		}
		stock -= pt.quantity
		if stock < 0 {
			stock = 0
		}
		if err := s.store.WriteProductStock(ctx, pt.productID, stock); err != nil {
			return fail(domain.StepStockUpdate, fmt.Errorf("write product %s: %w", pt.productID, err))
		}
	}
	state = StateStockUpdated

	cart.Clear()

	s.logger.InfoContext(ctx, "checkout completed",
		slog.String("transaction_id", trxID.String()),
		slog.Int("lines", len(lines)),
		slog.String("total", totals.Total.String()),
		slog.String("state", string(state)))

	return &domain.Receipt{
		TransactionID: trxID,
		Total:         totals.Total,
		CreatedAt:     time.Now(),
	}, nil
}

type productTotal struct {
	productID uuid.UUID
	quantity  int
}

// aggregateByProduct sums units sold per product, preserving first-seen
// order so the step 5 write sequence is deterministic.
func aggregateByProduct(lines []domain.CartLine) []productTotal {
	idx := make(map[uuid.UUID]int, len(lines))
	var out []productTotal
	for i := range lines {
		if j, ok := idx[lines[i].ProductID]; ok {
			out[j].quantity += lines[i].Quantity
			continue
		}
		idx[lines[i].ProductID] = len(out)
		out = append(out, productTotal{productID: lines[i].ProductID, quantity: lines[i].Quantity})
	}
	return out
}
