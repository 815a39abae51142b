// test/benchmarks/helpers.go
package benchmarks

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/posflow/pos-be/internal/core/domain"
)

// benchStore is an in-memory SaleStore without scripted failures,
// fast enough that the benchmarks measure the engine rather than the
// store.
type benchStore struct {
	batches      map[uuid.UUID]*domain.StockBatch
	productStock map[uuid.UUID]int
	transactions int
	items        int
}

func newBenchStore() *benchStore {
	return &benchStore{
		batches:      make(map[uuid.UUID]*domain.StockBatch),
		productStock: make(map[uuid.UUID]int),
	}
}

func (s *benchStore) ListBatches(ctx context.Context, productIDs []uuid.UUID) ([]domain.StockBatch, error) {
	wanted := make(map[uuid.UUID]bool, len(productIDs))
	for _, id := range productIDs {
		wanted[id] = true
	}
	var out []domain.StockBatch
	for _, b := range s.batches {
		if wanted[b.ProductID] && b.Remaining > 0 {
			out = append(out, *b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *benchStore) InsertTransaction(ctx context.Context, trx *domain.Transaction) (uuid.UUID, error) {
	s.transactions++
	return uuid.New(), nil
}

func (s *benchStore) InsertTransactionItem(ctx context.Context, item *domain.TransactionItem) error {
	s.items++
	return nil
}

func (s *benchStore) ReadBatchRemaining(ctx context.Context, batchID uuid.UUID) (int, error) {
	b, ok := s.batches[batchID]
	if !ok {
		return 0, fmt.Errorf("batch not found: %s", batchID)
	}
	return b.Remaining, nil
}

func (s *benchStore) WriteBatchRemaining(ctx context.Context, batchID uuid.UUID, remaining int) error {
	b, ok := s.batches[batchID]
	if !ok {
		return fmt.Errorf("batch not found: %s", batchID)
	}
	b.Remaining = remaining
	return nil
}

func (s *benchStore) ReadProductStock(ctx context.Context, productID uuid.UUID) (int, error) {
	return s.productStock[productID], nil
}

func (s *benchStore) WriteProductStock(ctx context.Context, productID uuid.UUID, stock int) error {
	s.productStock[productID] = stock
	return nil
}

func (s *benchStore) InsertStockBatch(ctx context.Context, batch *domain.StockBatch) error {
	cp := *batch
	s.batches[batch.ID] = &cp
	return nil
}

func benchLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}

// seedBenchStore fills the store with numProducts products, each with
// batchesPerProduct batches of unitsPerBatch units, and returns the
// products in catalog order.
func seedBenchStore(store *benchStore, numProducts, batchesPerProduct, unitsPerBatch int) []domain.Product {
	base := time.Now().Add(-24 * time.Hour)
	products := make([]domain.Product, 0, numProducts)

	for i := 0; i < numProducts; i++ {
		product := domain.Product{
			ID:    uuid.New(),
			Name:  fmt.Sprintf("Bench Product %d", i),
			Price: decimal.NewFromInt(int64(100 + i)),
			Cost:  decimal.NewFromInt(int64(40 + i)),
		}
		products = append(products, product)

		for j := 0; j < batchesPerProduct; j++ {
			batch := domain.StockBatch{
				ID:        uuid.New(),
				ProductID: product.ID,
				Remaining: unitsPerBatch,
				Cost:      product.Cost,
				Price:     product.Price,
				CreatedAt: base.Add(time.Duration(j) * time.Minute),
			}
			cp := batch
			store.batches[batch.ID] = &cp
			store.productStock[product.ID] += unitsPerBatch
		}
	}

	return products
}

func productIDs(products []domain.Product) []uuid.UUID {
	ids := make([]uuid.UUID, len(products))
	for i := range products {
		ids[i] = products[i].ID
	}
	return ids
}
