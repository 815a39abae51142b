// internal/core/services/transaction.go
package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/posflow/pos-be/internal/core/domain"
	"github.com/posflow/pos-be/internal/core/ports"
)

// TransactionService serves the read side of recorded sales.
type TransactionService struct {
	repo   ports.TransactionRepository
	logger *slog.Logger
}

// NewTransactionService creates a new transaction service
func NewTransactionService(repo ports.TransactionRepository, logger *slog.Logger) *TransactionService {
	return &TransactionService{
		repo:   repo,
		logger: logger.With(slog.String("service", "transaction")),
	}
}

// GetByID retrieves a transaction with its items
func (s *TransactionService) GetByID(ctx context.Context, id uuid.UUID) (*domain.Transaction, error) {
	trx, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get transaction: %w", err)
	}
	if trx == nil {
		return nil, fmt.Errorf("transaction not found: %s", id)
	}

	items, err := s.repo.FindItems(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get transaction items: %w", err)
	}
	trx.Items = items

	return trx, nil
}

// List retrieves transactions with filtering and pagination. Items are
// loaded per header, matching what the history screen shows.
func (s *TransactionService) List(ctx context.Context, params ports.TransactionListParams, withItems bool) (*ports.TransactionListResult, error) {
	result, err := s.repo.List(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}

	if withItems {
		for i := range result.Transactions {
			items, err := s.repo.FindItems(ctx, result.Transactions[i].ID)
			if err != nil {
				return nil, fmt.Errorf("failed to get items for transaction %s: %w", result.Transactions[i].ID, err)
			}
			result.Transactions[i].Items = items
		}
	}

	return result, nil
}
