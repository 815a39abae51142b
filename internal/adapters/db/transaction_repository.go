// internal/adapters/db/transaction_repository.go
package db

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/posflow/pos-be/internal/core/domain"
	"github.com/posflow/pos-be/internal/core/ports"
)

// transactionRepository implements ports.TransactionRepository
type transactionRepository struct {
	db     *Database
	logger *slog.Logger
}

// NewTransactionRepository creates a new transaction repository
func NewTransactionRepository(db *Database, logger *slog.Logger) ports.TransactionRepository {
	return &transactionRepository{
		db:     db,
		logger: logger.With(slog.String("repository", "transaction")),
	}
}

// FindByID retrieves a transaction header. Returns nil, nil when no
// transaction matches.
func (r *transactionRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Transaction, error) {
	query := `
		SELECT id, subtotal, tax, total_amount, payment_method, status, created_at
		FROM transactions
		WHERE id = $1`

	var trx domain.Transaction
	err := r.db.QueryRow(ctx, query, id).Scan(
		&trx.ID, &trx.Subtotal, &trx.Tax, &trx.Total,
		&trx.PaymentMethod, &trx.Status, &trx.CreatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find transaction: %w", err)
	}

	return &trx, nil
}

// FindItems retrieves all sold lines for a transaction.
func (r *transactionRepository) FindItems(ctx context.Context, transactionID uuid.UUID) ([]domain.TransactionItem, error) {
	query := `
		SELECT id, transaction_id, product_id, batch_id, product_name,
		       quantity, unit_price, total_price, cost
		FROM transaction_items
		WHERE transaction_id = $1
		ORDER BY id ASC`

	rows, err := r.db.Query(ctx, query, transactionID)
	if err != nil {
		return nil, fmt.Errorf("failed to query transaction items: %w", err)
	}
	defer rows.Close()

	var items []domain.TransactionItem
	for rows.Next() {
		var item domain.TransactionItem
		err := rows.Scan(
			&item.ID, &item.TransactionID, &item.ProductID, &item.BatchID, &item.ProductName,
			&item.Quantity, &item.UnitPrice, &item.TotalPrice, &item.UnitCost,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan transaction item: %w", err)
		}
		items = append(items, item)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating transaction items: %w", err)
	}

	return items, nil
}

// List retrieves transactions with filtering and pagination, newest
// first.
func (r *transactionRepository) List(ctx context.Context, params ports.TransactionListParams) (*ports.TransactionListResult, error) {
	qb := squirrel.Select(
		"id", "subtotal", "tax", "total_amount", "payment_method", "status", "created_at",
	).From("transactions").
		PlaceholderFormat(squirrel.Dollar)

	if params.Status != "" {
		qb = qb.Where(squirrel.Eq{"status": params.Status})
	}
	if params.From != nil {
		qb = qb.Where("created_at >= ?", *params.From)
	}
	if params.To != nil {
		qb = qb.Where("created_at < ?", *params.To)
	}

	// Count before pagination.
	countQb := qb.Column("COUNT(*) OVER()").Limit(1)
	countSQL, countArgs, err := countQb.ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build count query: %w", err)
	}

	var totalCount int64
	var discard domain.Transaction
	err = r.db.QueryRow(ctx, countSQL, countArgs...).Scan(
		&discard.ID, &discard.Subtotal, &discard.Tax, &discard.Total,
		&discard.PaymentMethod, &discard.Status, &discard.CreatedAt, &totalCount,
	)
	if err != nil && err != pgx.ErrNoRows {
		return nil, fmt.Errorf("failed to count transactions: %w", err)
	}

	qb = qb.OrderBy("created_at DESC")

	page := params.Page
	if page < 1 {
		page = 1
	}
	pageSize := params.PageSize
	if pageSize <= 0 {
		pageSize = 50
	}
	qb = qb.Limit(uint64(pageSize)).Offset(uint64((page - 1) * pageSize))

	sqlQuery, args, err := qb.ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build query: %w", err)
	}

	rows, err := r.db.Query(ctx, sqlQuery, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query transactions: %w", err)
	}
	defer rows.Close()

	var transactions []domain.Transaction
	for rows.Next() {
		var trx domain.Transaction
		err := rows.Scan(
			&trx.ID, &trx.Subtotal, &trx.Tax, &trx.Total,
			&trx.PaymentMethod, &trx.Status, &trx.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		transactions = append(transactions, trx)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating transactions: %w", err)
	}

	totalPages := int((totalCount + int64(pageSize) - 1) / int64(pageSize))

	return &ports.TransactionListResult{
		Transactions: transactions,
		Page:         page,
		PageSize:     pageSize,
		TotalCount:   totalCount,
		TotalPages:   totalPages,
	}, nil
}
