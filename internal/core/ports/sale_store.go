// internal/core/ports/sale_store.go
package ports

import (
	"context"

	"github.com/posflow/pos-be/internal/core/domain"
	"github.com/google/uuid"
)

// SaleStore is the persistence port the POS engine writes sales
// through. Each method is a single round trip; the checkout sequence
// deliberately does not wrap its steps in one transaction (see the
// checkout service), so implementations must not assume they are
// called inside one.
type SaleStore interface {
	// ListBatches returns batches with remaining stock for the given
	// products, ordered by creation time ascending.
	ListBatches(ctx context.Context, productIDs []uuid.UUID) ([]domain.StockBatch, error)

	// InsertTransaction writes one transaction header row and returns
	// the generated identifier.
	InsertTransaction(ctx context.Context, trx *domain.Transaction) (uuid.UUID, error)

	// InsertTransactionItem writes one sold line.
	InsertTransactionItem(ctx context.Context, item *domain.TransactionItem) error

	ReadBatchRemaining(ctx context.Context, batchID uuid.UUID) (int, error)
	WriteBatchRemaining(ctx context.Context, batchID uuid.UUID, remaining int) error

	ReadProductStock(ctx context.Context, productID uuid.UUID) (int, error)
	WriteProductStock(ctx context.Context, productID uuid.UUID, stock int) error

	// InsertStockBatch records newly received stock. Called by restock
	// and product creation, never by checkout.
	InsertStockBatch(ctx context.Context, batch *domain.StockBatch) error
}
