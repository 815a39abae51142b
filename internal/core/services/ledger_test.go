// internal/core/services/ledger_test.go
package services_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/posflow/pos-be/internal/core/domain"
	"github.com/posflow/pos-be/internal/core/services"
)

func TestBatchLedger_AllocatesOldestBatchFirst(t *testing.T) {
	store := newFakeSaleStore()
	productID := uuid.New()

	t1 := time.Date(2026, 1, 10, 9, 0, 0, 0, time.UTC)
	t2 := t1.Add(24 * time.Hour)
	b1 := store.addBatch(testBatch(productID, 1, 40, 100, t1))
	b2 := store.addBatch(testBatch(productID, 5, 45, 110, t2))

	ledger := loadedLedger(t, store, productID)

	first, err := ledger.AllocateOne(productID)
	require.NoError(t, err)
	assert.Equal(t, b1.ID, first.ID)

	second, err := ledger.AllocateOne(productID)
	require.NoError(t, err)
	assert.Equal(t, b2.ID, second.ID)

	assert.Equal(t, 0, ledger.Remaining(b1.ID))
	assert.Equal(t, 4, ledger.Remaining(b2.ID))
}

func TestBatchLedger_EqualTimestampsBreakTiesByBatchID(t *testing.T) {
	store := newFakeSaleStore()
	productID := uuid.New()
	created := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	a := store.addBatch(testBatch(productID, 1, 10, 20, created))
	b := store.addBatch(testBatch(productID, 1, 10, 20, created))

	expectedFirst, expectedSecond := a, b
	if b.ID.String() < a.ID.String() {
		expectedFirst, expectedSecond = b, a
	}

	ledger := loadedLedger(t, store, productID)

	first, err := ledger.AllocateOne(productID)
	require.NoError(t, err)
	assert.Equal(t, expectedFirst.ID, first.ID)

	second, err := ledger.AllocateOne(productID)
	require.NoError(t, err)
	assert.Equal(t, expectedSecond.ID, second.ID)
}

func TestBatchLedger_AllocateFailsWhenExhausted(t *testing.T) {
	store := newFakeSaleStore()
	productID := uuid.New()
	b := store.addBatch(testBatch(productID, 2, 30, 60, time.Now()))

	ledger := loadedLedger(t, store, productID)

	_, err := ledger.AllocateOne(productID)
	require.NoError(t, err)
	_, err = ledger.AllocateOne(productID)
	require.NoError(t, err)

	_, err = ledger.AllocateOne(productID)
	assert.ErrorIs(t, err, domain.ErrOutOfStock)
	assert.Equal(t, 0, ledger.Remaining(b.ID), "failed allocation must not change the ledger")
}

func TestBatchLedger_AllocateUnknownProduct(t *testing.T) {
	store := newFakeSaleStore()
	ledger := loadedLedger(t, store)

	_, err := ledger.AllocateOne(uuid.New())
	assert.ErrorIs(t, err, domain.ErrOutOfStock)
}

func TestBatchLedger_ReleaseRestoresRemaining(t *testing.T) {
	store := newFakeSaleStore()
	productID := uuid.New()
	b := store.addBatch(testBatch(productID, 3, 30, 60, time.Now()))

	ledger := loadedLedger(t, store, productID)

	_, err := ledger.AllocateOne(productID)
	require.NoError(t, err)
	require.Equal(t, 2, ledger.Remaining(b.ID))

	require.NoError(t, ledger.Release(b.ID, 1))
	assert.Equal(t, 3, ledger.Remaining(b.ID))
}

func TestBatchLedger_ReleaseUnknownBatch(t *testing.T) {
	store := newFakeSaleStore()
	ledger := loadedLedger(t, store)

	err := ledger.Release(uuid.New(), 1)
	assert.ErrorIs(t, err, domain.ErrUnknownBatch)
}

func TestBatchLedger_TryAllocate(t *testing.T) {
	store := newFakeSaleStore()
	productID := uuid.New()
	b := store.addBatch(testBatch(productID, 1, 30, 60, time.Now()))

	ledger := loadedLedger(t, store, productID)

	assert.True(t, ledger.TryAllocate(b.ID))
	assert.False(t, ledger.TryAllocate(b.ID), "exhausted batch must refuse")
	assert.False(t, ledger.TryAllocate(uuid.New()), "unknown batch must refuse")
}

func TestBatchLedger_LoadSkipsExhaustedBatches(t *testing.T) {
	store := newFakeSaleStore()
	productID := uuid.New()
	store.addBatch(testBatch(productID, 0, 30, 60, time.Now().Add(-time.Hour)))
	live := store.addBatch(testBatch(productID, 2, 35, 70, time.Now()))

	ledger := services.NewBatchLedger(store, testLogger())
	require.NoError(t, ledger.Load(context.Background(), []uuid.UUID{productID}))

	got, err := ledger.AllocateOne(productID)
	require.NoError(t, err)
	assert.Equal(t, live.ID, got.ID)
}

func TestBatchLedger_PeekFIFODoesNotAllocate(t *testing.T) {
	store := newFakeSaleStore()
	productID := uuid.New()
	b := store.addBatch(testBatch(productID, 2, 30, 60, time.Now()))

	ledger := loadedLedger(t, store, productID)

	peeked, ok := ledger.PeekFIFO(productID)
	require.True(t, ok)
	assert.Equal(t, b.ID, peeked.ID)
	assert.Equal(t, 2, ledger.Remaining(b.ID))

	_, ok = ledger.PeekFIFO(uuid.New())
	assert.False(t, ok)
}
