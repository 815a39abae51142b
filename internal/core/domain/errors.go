// internal/core/domain/errors.go
package domain

import (
	"errors"
	"fmt"
)

// Recoverable cart/ledger errors. Operations that fail with these leave
// both the cart and the ledger untouched.
var (
	// ErrOutOfStock means no batch for the product has remaining stock.
	ErrOutOfStock = errors.New("no stock available")

	// ErrEmptyCart means checkout was attempted with no cart lines.
	ErrEmptyCart = errors.New("cart is empty")

	// ErrLineNotFound means the addressed cart line does not exist.
	ErrLineNotFound = errors.New("cart line not found")

	// ErrUnknownBatch means a release addressed a batch the ledger never
	// loaded. This indicates a programming error, not an operator one.
	ErrUnknownBatch = errors.New("unknown stock batch")
)

// CheckoutStep identifies which write of the checkout sequence failed.
// Each step leaves the store in a different partial state, so failures
// must stay distinguishable for manual reconciliation.
type CheckoutStep string

const (
	StepTransactionWrite CheckoutStep = "transaction_write"
	StepLineItemWrite    CheckoutStep = "line_item_write"
	StepBatchUpdate      CheckoutStep = "batch_update"
	StepStockUpdate      CheckoutStep = "stock_update"
)

// CheckoutError wraps a store failure during checkout with the step it
// occurred at. Writes committed by earlier steps are not undone.
type CheckoutError struct {
	Step CheckoutStep
	Err  error
}

func (e *CheckoutError) Error() string {
	return fmt.Sprintf("checkout failed at %s: %v", e.Step, e.Err)
}

func (e *CheckoutError) Unwrap() error {
	return e.Err
}

// NewCheckoutError creates a CheckoutError for the given step.
func NewCheckoutError(step CheckoutStep, err error) *CheckoutError {
	return &CheckoutError{Step: step, Err: err}
}
