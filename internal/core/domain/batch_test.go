// internal/core/domain/batch_test.go
package domain_test

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/posflow/pos-be/internal/core/domain"
)

func TestStockBatch_Validate(t *testing.T) {
	valid := func() domain.StockBatch {
		return domain.StockBatch{
			ID:        uuid.New(),
			ProductID: uuid.New(),
			Remaining: 10,
			Cost:      decimal.NewFromInt(5),
			Price:     decimal.NewFromInt(12),
		}
	}

	tests := []struct {
		name    string
		mutate  func(*domain.StockBatch)
		wantErr bool
	}{
		{name: "valid batch", mutate: func(b *domain.StockBatch) {}, wantErr: false},
		{name: "zero remaining is valid", mutate: func(b *domain.StockBatch) { b.Remaining = 0 }, wantErr: false},
		{name: "zero price falls back at sale time", mutate: func(b *domain.StockBatch) { b.Price = decimal.Zero }, wantErr: false},
		{name: "missing product", mutate: func(b *domain.StockBatch) { b.ProductID = uuid.Nil }, wantErr: true},
		{name: "negative remaining", mutate: func(b *domain.StockBatch) { b.Remaining = -1 }, wantErr: true},
		{name: "negative cost", mutate: func(b *domain.StockBatch) { b.Cost = decimal.NewFromInt(-1) }, wantErr: true},
		{name: "negative price", mutate: func(b *domain.StockBatch) { b.Price = decimal.NewFromInt(-1) }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := valid()
			tt.mutate(&b)
			err := b.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestStockBatch_Before(t *testing.T) {
	t1 := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	t2 := t1.Add(time.Minute)

	older := domain.StockBatch{ID: uuid.New(), CreatedAt: t1}
	newer := domain.StockBatch{ID: uuid.New(), CreatedAt: t2}

	assert.True(t, older.Before(&newer))
	assert.False(t, newer.Before(&older))
}

func TestStockBatch_BeforeBreaksTiesByID(t *testing.T) {
	created := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	a := domain.StockBatch{ID: uuid.New(), CreatedAt: created}
	b := domain.StockBatch{ID: uuid.New(), CreatedAt: created}

	// Exactly one ordering holds, decided by the ID strings.
	assert.NotEqual(t, a.Before(&b), b.Before(&a))
	if a.ID.String() < b.ID.String() {
		assert.True(t, a.Before(&b))
	} else {
		assert.True(t, b.Before(&a))
	}
}

func TestStockBatch_PrepareForStorage(t *testing.T) {
	b := domain.StockBatch{ProductID: uuid.New(), Remaining: 5}
	b.PrepareForStorage()

	assert.NotEqual(t, uuid.Nil, b.ID)
	assert.False(t, b.CreatedAt.IsZero())
}
