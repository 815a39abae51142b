// internal/adapters/db/sale_store.go
package db

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/posflow/pos-be/internal/core/domain"
	"github.com/posflow/pos-be/internal/core/ports"
)

// saleStore implements ports.SaleStore on PostgreSQL. Every method is a
// single statement; the checkout sequence issues them one at a time and
// treats each as independently durable.
type saleStore struct {
	db     *Database
	logger *slog.Logger
}

// NewSaleStore creates a new sale store
func NewSaleStore(db *Database, logger *slog.Logger) ports.SaleStore {
	return &saleStore{
		db:     db,
		logger: logger.With(slog.String("repository", "sale_store")),
	}
}

// ListBatches returns all batches with remaining stock for the given
// products, oldest first.
func (s *saleStore) ListBatches(ctx context.Context, productIDs []uuid.UUID) ([]domain.StockBatch, error) {
	if len(productIDs) == 0 {
		return nil, nil
	}

	query := `
		SELECT id, product_id, quantity_remaining, cost, price, created_at
		FROM stock_batches
		WHERE product_id = ANY($1) AND quantity_remaining > 0
		ORDER BY created_at ASC, id ASC`

	rows, err := s.db.Query(ctx, query, productIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to query stock batches: %w", err)
	}
	defer rows.Close()

	var batches []domain.StockBatch
	for rows.Next() {
		var b domain.StockBatch
		err := rows.Scan(&b.ID, &b.ProductID, &b.Remaining, &b.Cost, &b.Price, &b.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan stock batch: %w", err)
		}
		if err := b.Validate(); err != nil {
			return nil, fmt.Errorf("invalid stock batch %s: %w", b.ID, err)
		}
		batches = append(batches, b)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating stock batches: %w", err)
	}

	return batches, nil
}

// InsertTransaction writes the sale header and returns its ID.
func (s *saleStore) InsertTransaction(ctx context.Context, trx *domain.Transaction) (uuid.UUID, error) {
	if err := trx.Validate(); err != nil {
		return uuid.Nil, fmt.Errorf("invalid transaction: %w", err)
	}

	query := `
		INSERT INTO transactions (subtotal, tax, total_amount, payment_method, status)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at`

	err := s.db.QueryRow(ctx, query,
		trx.Subtotal, trx.Tax, trx.Total, trx.PaymentMethod, trx.Status,
	).Scan(&trx.ID, &trx.CreatedAt)
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to insert transaction: %w", err)
	}

	s.logger.DebugContext(ctx, "transaction header written",
		slog.String("transaction_id", trx.ID.String()),
		slog.String("total", trx.Total.String()))

	return trx.ID, nil
}

// InsertTransactionItem writes one sold line.
func (s *saleStore) InsertTransactionItem(ctx context.Context, item *domain.TransactionItem) error {
	if item.TransactionID == uuid.Nil {
		return fmt.Errorf("transaction_id is required")
	}
	if item.Quantity <= 0 {
		return fmt.Errorf("quantity must be positive")
	}

	query := `
		INSERT INTO transaction_items (
			transaction_id, product_id, batch_id, product_name,
			quantity, unit_price, total_price, cost
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id`

	err := s.db.QueryRow(ctx, query,
		item.TransactionID, item.ProductID, item.BatchID, item.ProductName,
		item.Quantity, item.UnitPrice, item.TotalPrice, item.UnitCost,
	).Scan(&item.ID)
	if err != nil {
		return fmt.Errorf("failed to insert transaction item: %w", err)
	}

	return nil
}

// ReadBatchRemaining returns the batch's current remaining quantity.
func (s *saleStore) ReadBatchRemaining(ctx context.Context, batchID uuid.UUID) (int, error) {
	var remaining int
	err := s.db.QueryRow(ctx,
		`SELECT quantity_remaining FROM stock_batches WHERE id = $1`, batchID,
	).Scan(&remaining)
	if err != nil {
		if err == pgx.ErrNoRows {
			return 0, fmt.Errorf("stock batch not found: %s", batchID)
		}
		return 0, fmt.Errorf("failed to read batch remaining: %w", err)
	}
	return remaining, nil
}

// WriteBatchRemaining sets the batch's remaining quantity.
func (s *saleStore) WriteBatchRemaining(ctx context.Context, batchID uuid.UUID, remaining int) error {
	if remaining < 0 {
		return fmt.Errorf("quantity_remaining cannot be negative")
	}

	tag, err := s.db.Exec(ctx,
		`UPDATE stock_batches SET quantity_remaining = $2 WHERE id = $1`,
		batchID, remaining)
	if err != nil {
		return fmt.Errorf("failed to write batch remaining: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("stock batch not found: %s", batchID)
	}
	return nil
}

// ReadProductStock returns the product's aggregate stock counter.
func (s *saleStore) ReadProductStock(ctx context.Context, productID uuid.UUID) (int, error) {
	var stock int
	err := s.db.QueryRow(ctx,
		`SELECT stock_quantity FROM products WHERE id = $1 AND deleted_at IS NULL`, productID,
	).Scan(&stock)
	if err != nil {
		if err == pgx.ErrNoRows {
			return 0, fmt.Errorf("product not found: %s", productID)
		}
		return 0, fmt.Errorf("failed to read product stock: %w", err)
	}
	return stock, nil
}

// WriteProductStock sets the product's aggregate stock counter and the
// derived in_stock flag.
func (s *saleStore) WriteProductStock(ctx context.Context, productID uuid.UUID, stock int) error {
	if stock < 0 {
		return fmt.Errorf("stock_quantity cannot be negative")
	}

	tag, err := s.db.Exec(ctx, `
		UPDATE products
		SET stock_quantity = $2, in_stock = $2 > 0, updated_at = NOW()
		WHERE id = $1 AND deleted_at IS NULL`,
		productID, stock)
	if err != nil {
		return fmt.Errorf("failed to write product stock: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("product not found: %s", productID)
	}
	return nil
}

// InsertStockBatch records a newly received lot.
func (s *saleStore) InsertStockBatch(ctx context.Context, batch *domain.StockBatch) error {
	batch.PrepareForStorage()
	if err := batch.Validate(); err != nil {
		return fmt.Errorf("invalid stock batch: %w", err)
	}

	query := `
		INSERT INTO stock_batches (id, product_id, quantity_remaining, cost, price, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`

	_, err := s.db.Exec(ctx, query,
		batch.ID, batch.ProductID, batch.Remaining, batch.Cost, batch.Price, batch.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert stock batch: %w", err)
	}

	s.logger.DebugContext(ctx, "stock batch inserted",
		slog.String("batch_id", batch.ID.String()),
		slog.String("product_id", batch.ProductID.String()),
		slog.Int("quantity", batch.Remaining))

	return nil
}
