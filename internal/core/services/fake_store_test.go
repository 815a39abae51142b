// internal/core/services/fake_store_test.go
package services_test

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/posflow/pos-be/internal/core/domain"
	"github.com/posflow/pos-be/internal/core/ports"
	"github.com/posflow/pos-be/internal/core/services"
)

// fakeSaleStore is an in-memory SaleStore that records every call in
// order and can be scripted to fail the nth call of a method. The
// checkout tests use it to pin down exactly which writes happened
// before a failure.
type fakeSaleStore struct {
	batches      map[uuid.UUID]*domain.StockBatch
	productStock map[uuid.UUID]int
	transactions []domain.Transaction
	items        []domain.TransactionItem

	calls  []string
	counts map[string]int
	fail   map[string]map[int]error
}

var _ ports.SaleStore = (*fakeSaleStore)(nil)

func newFakeSaleStore() *fakeSaleStore {
	return &fakeSaleStore{
		batches:      make(map[uuid.UUID]*domain.StockBatch),
		productStock: make(map[uuid.UUID]int),
		counts:       make(map[string]int),
		fail:         make(map[string]map[int]error),
	}
}

// resetCalls clears the recorded call log and counters. Fixtures call
// it after seeding so assertions see only the operation under test.
func (f *fakeSaleStore) resetCalls() {
	f.calls = nil
	f.counts = make(map[string]int)
}

// failAt makes the nth call (1-based) of method return err.
func (f *fakeSaleStore) failAt(method string, n int, err error) {
	if f.fail[method] == nil {
		f.fail[method] = make(map[int]error)
	}
	f.fail[method][n] = err
}

// record registers the call and returns a scripted error, if any.
func (f *fakeSaleStore) record(method string) error {
	f.counts[method]++
	f.calls = append(f.calls, method)
	if errs, ok := f.fail[method]; ok {
		if err, ok := errs[f.counts[method]]; ok {
			return err
		}
	}
	return nil
}

func (f *fakeSaleStore) addBatch(b domain.StockBatch) domain.StockBatch {
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	cp := b
	f.batches[b.ID] = &cp
	return b
}

func (f *fakeSaleStore) ListBatches(ctx context.Context, productIDs []uuid.UUID) ([]domain.StockBatch, error) {
	if err := f.record("ListBatches"); err != nil {
		return nil, err
	}
	wanted := make(map[uuid.UUID]bool, len(productIDs))
	for _, id := range productIDs {
		wanted[id] = true
	}
	var out []domain.StockBatch
	for _, b := range f.batches {
		if wanted[b.ProductID] && b.Remaining > 0 {
			out = append(out, *b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (f *fakeSaleStore) InsertTransaction(ctx context.Context, trx *domain.Transaction) (uuid.UUID, error) {
	if err := f.record("InsertTransaction"); err != nil {
		return uuid.Nil, err
	}
	trx.ID = uuid.New()
	trx.CreatedAt = time.Now()
	f.transactions = append(f.transactions, *trx)
	return trx.ID, nil
}

func (f *fakeSaleStore) InsertTransactionItem(ctx context.Context, item *domain.TransactionItem) error {
	if err := f.record("InsertTransactionItem"); err != nil {
		return err
	}
	item.ID = uuid.New()
	f.items = append(f.items, *item)
	return nil
}

func (f *fakeSaleStore) ReadBatchRemaining(ctx context.Context, batchID uuid.UUID) (int, error) {
	if err := f.record("ReadBatchRemaining"); err != nil {
		return 0, err
	}
	b, ok := f.batches[batchID]
	if !ok {
		return 0, fmt.Errorf("batch not found: %s", batchID)
	}
	return b.Remaining, nil
}

func (f *fakeSaleStore) WriteBatchRemaining(ctx context.Context, batchID uuid.UUID, remaining int) error {
	if err := f.record("WriteBatchRemaining"); err != nil {
		return err
	}
	b, ok := f.batches[batchID]
	if !ok {
		return fmt.Errorf("batch not found: %s", batchID)
	}
	b.Remaining = remaining
	return nil
}

func (f *fakeSaleStore) ReadProductStock(ctx context.Context, productID uuid.UUID) (int, error) {
	if err := f.record("ReadProductStock"); err != nil {
		return 0, err
	}
	return f.productStock[productID], nil
}

func (f *fakeSaleStore) WriteProductStock(ctx context.Context, productID uuid.UUID, stock int) error {
	if err := f.record("WriteProductStock"); err != nil {
		return err
	}
	f.productStock[productID] = stock
	return nil
}

func (f *fakeSaleStore) InsertStockBatch(ctx context.Context, batch *domain.StockBatch) error {
	if err := f.record("InsertStockBatch"); err != nil {
		return err
	}
	cp := *batch
	f.batches[batch.ID] = &cp
	return nil
}

// Test fixtures shared by the ledger, cart and checkout tests.

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}

func testProduct(name string, price float64) *domain.Product {
	return &domain.Product{
		ID:    uuid.New(),
		Name:  name,
		Price: decimal.NewFromFloat(price),
		Cost:  decimal.NewFromFloat(price / 2),
	}
}

func testBatch(productID uuid.UUID, remaining int, cost, price float64, createdAt time.Time) domain.StockBatch {
	return domain.StockBatch{
		ID:        uuid.New(),
		ProductID: productID,
		Remaining: remaining,
		Cost:      decimal.NewFromFloat(cost),
		Price:     decimal.NewFromFloat(price),
		CreatedAt: createdAt,
	}
}

// loadedLedger builds a ledger over the store's current batches.
func loadedLedger(t *testing.T, store *fakeSaleStore, productIDs ...uuid.UUID) *services.BatchLedger {
	t.Helper()
	ledger := services.NewBatchLedger(store, testLogger())
	if err := ledger.Load(context.Background(), productIDs); err != nil {
		t.Fatalf("failed to load ledger: %v", err)
	}
	return ledger
}
