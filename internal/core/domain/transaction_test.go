// internal/core/domain/transaction_test.go
package domain_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/posflow/pos-be/internal/core/domain"
)

func TestTransaction_ValidateDefaults(t *testing.T) {
	trx := domain.Transaction{Total: decimal.NewFromInt(100)}
	require.NoError(t, trx.Validate())

	assert.Equal(t, domain.PaymentCash, trx.PaymentMethod)
	assert.Equal(t, domain.StatusCompleted, trx.Status)
}

func TestTransaction_ValidateRejectsNegativeTotal(t *testing.T) {
	trx := domain.Transaction{Total: decimal.NewFromInt(-1)}
	assert.Error(t, trx.Validate())
}

func TestCheckoutError_WrapsCause(t *testing.T) {
	cause := errors.New("connection refused")
	err := domain.NewCheckoutError(domain.StepBatchUpdate, cause)

	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "batch_update")

	wrapped := fmt.Errorf("checkout: %w", err)
	var cerr *domain.CheckoutError
	require.ErrorAs(t, wrapped, &cerr)
	assert.Equal(t, domain.StepBatchUpdate, cerr.Step)
}
