// internal/core/ports/transaction_repository.go
package ports

import (
	"context"
	"time"

	"github.com/posflow/pos-be/internal/core/domain"
	"github.com/google/uuid"
)

// TransactionRepository defines the read-side port for recorded sales.
// The write side goes through SaleStore during checkout.
type TransactionRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*domain.Transaction, error)
	FindItems(ctx context.Context, transactionID uuid.UUID) ([]domain.TransactionItem, error)
	List(ctx context.Context, params TransactionListParams) (*TransactionListResult, error)
}

// TransactionListParams holds parameters for listing transactions
type TransactionListParams struct {
	Status   string
	From     *time.Time
	To       *time.Time
	Page     int
	PageSize int
}

// TransactionListResult holds the result of listing transactions
type TransactionListResult struct {
	Transactions []domain.Transaction `json:"transactions"`
	Page         int                  `json:"page"`
	PageSize     int                  `json:"page_size"`
	TotalCount   int64                `json:"total_count"`
	TotalPages   int                  `json:"total_pages"`
}
