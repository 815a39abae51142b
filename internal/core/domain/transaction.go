// internal/core/domain/transaction.go
package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// TransactionStatus represents the lifecycle status of a transaction
type TransactionStatus string

// Status constants. Checkout only ever produces "completed"; the other
// statuses are set by administrative processes.
const (
	StatusCompleted TransactionStatus = "completed"
	StatusRefunded  TransactionStatus = "refunded"
	StatusVoided    TransactionStatus = "voided"
)

// PaymentMethod represents how a transaction was paid
type PaymentMethod string

// Payment method constants
const (
	PaymentCash    PaymentMethod = "cash"
	PaymentCard    PaymentMethod = "card"
	PaymentEWallet PaymentMethod = "e_wallet"
)

// Transaction is a durable record of a completed sale. Created once at
// checkout, immutable afterwards.
type Transaction struct {
	ID            uuid.UUID         `json:"id"`
	Subtotal      decimal.Decimal   `json:"subtotal"`
	Tax           decimal.Decimal   `json:"tax"`
	Total         decimal.Decimal   `json:"total_amount"`
	PaymentMethod PaymentMethod     `json:"payment_method"`
	Status        TransactionStatus `json:"status"`
	Items         []TransactionItem `json:"items,omitempty"`
	CreatedAt     time.Time         `json:"created_at"`
}

// Validate performs domain validation on the transaction header
func (t *Transaction) Validate() error {
	if t.Total.IsNegative() {
		return fmt.Errorf("total_amount cannot be negative")
	}
	if t.PaymentMethod == "" {
		t.PaymentMethod = PaymentCash
	}
	if t.Status == "" {
		t.Status = StatusCompleted
	}
	return nil
}

// TransactionItem is one sold line, pinned to the batch it was
// allocated from so cost of goods reflects purchase order.
type TransactionItem struct {
	ID            uuid.UUID       `json:"id"`
	TransactionID uuid.UUID       `json:"transaction_id"`
	ProductID     uuid.UUID       `json:"product_id"`
	BatchID       uuid.UUID       `json:"batch_id"`
	ProductName   string          `json:"product_name"`
	Quantity      int             `json:"quantity"`
	UnitPrice     decimal.Decimal `json:"unit_price"`
	TotalPrice    decimal.Decimal `json:"total_price"`
	UnitCost      decimal.Decimal `json:"cost"`
}

// Receipt is returned to the caller after a successful checkout.
type Receipt struct {
	TransactionID uuid.UUID       `json:"transaction_id"`
	Total         decimal.Decimal `json:"total"`
	CreatedAt     time.Time       `json:"created_at"`
}
