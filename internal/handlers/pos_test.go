// internal/handlers/pos_test.go
package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	redis_a "github.com/posflow/pos-be/internal/adapters/redis_adapter"
	"github.com/posflow/pos-be/internal/core/domain"
	"github.com/posflow/pos-be/internal/core/ports"
	"github.com/posflow/pos-be/internal/core/services"
	"github.com/posflow/pos-be/internal/handlers"
	"github.com/posflow/pos-be/test/helpers"
)

// stubCatalog serves a fixed product list.
type stubCatalog struct {
	products []domain.Product
}

func (c *stubCatalog) Save(ctx context.Context, product *domain.Product) error   { return nil }
func (c *stubCatalog) Update(ctx context.Context, product *domain.Product) error { return nil }
func (c *stubCatalog) SoftDelete(ctx context.Context, id uuid.UUID) error        { return nil }
func (c *stubCatalog) Exists(ctx context.Context, id uuid.UUID) (bool, error)    { return true, nil }
func (c *stubCatalog) ListCategories(ctx context.Context) ([]domain.Category, error) {
	return nil, nil
}

func (c *stubCatalog) FindByID(ctx context.Context, id uuid.UUID) (*domain.Product, error) {
	for i := range c.products {
		if c.products[i].ID == id {
			cp := c.products[i]
			return &cp, nil
		}
	}
	return nil, fmt.Errorf("product not found: %s", id)
}

func (c *stubCatalog) FindAll(ctx context.Context, params ports.ProductListParams) ([]domain.Product, error) {
	out := make([]domain.Product, len(c.products))
	copy(out, c.products)
	return out, nil
}

// stubSaleStore is an in-memory SaleStore whose writes can be
// scripted to fail.
type stubSaleStore struct {
	batches      map[uuid.UUID]*domain.StockBatch
	productStock map[uuid.UUID]int
	transactions []domain.Transaction
	items        []domain.TransactionItem

	failItemWrites bool
}

func newStubSaleStore() *stubSaleStore {
	return &stubSaleStore{
		batches:      make(map[uuid.UUID]*domain.StockBatch),
		productStock: make(map[uuid.UUID]int),
	}
}

func (f *stubSaleStore) ListBatches(ctx context.Context, productIDs []uuid.UUID) ([]domain.StockBatch, error) {
	wanted := make(map[uuid.UUID]bool, len(productIDs))
	for _, id := range productIDs {
		wanted[id] = true
	}
	var out []domain.StockBatch
	for _, b := range f.batches {
		if wanted[b.ProductID] && b.Remaining > 0 {
			out = append(out, *b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (f *stubSaleStore) InsertTransaction(ctx context.Context, trx *domain.Transaction) (uuid.UUID, error) {
	trx.ID = uuid.New()
	f.transactions = append(f.transactions, *trx)
	return trx.ID, nil
}

func (f *stubSaleStore) InsertTransactionItem(ctx context.Context, item *domain.TransactionItem) error {
	if f.failItemWrites {
		return fmt.Errorf("store unavailable")
	}
	f.items = append(f.items, *item)
	return nil
}

func (f *stubSaleStore) ReadBatchRemaining(ctx context.Context, batchID uuid.UUID) (int, error) {
	b, ok := f.batches[batchID]
	if !ok {
		return 0, fmt.Errorf("batch not found: %s", batchID)
	}
	return b.Remaining, nil
}

func (f *stubSaleStore) WriteBatchRemaining(ctx context.Context, batchID uuid.UUID, remaining int) error {
	b, ok := f.batches[batchID]
	if !ok {
		return fmt.Errorf("batch not found: %s", batchID)
	}
	b.Remaining = remaining
	return nil
}

func (f *stubSaleStore) ReadProductStock(ctx context.Context, productID uuid.UUID) (int, error) {
	return f.productStock[productID], nil
}

func (f *stubSaleStore) WriteProductStock(ctx context.Context, productID uuid.UUID, stock int) error {
	f.productStock[productID] = stock
	return nil
}

func (f *stubSaleStore) InsertStockBatch(ctx context.Context, batch *domain.StockBatch) error {
	cp := *batch
	f.batches[batch.ID] = &cp
	return nil
}

// posFixture wires a POS handler over the stub store and catalog.
type posFixture struct {
	handler *handlers.POSHandler
	store   *stubSaleStore
	product domain.Product
	batchID uuid.UUID
}

func newPOSFixture(t *testing.T, stock int) *posFixture {
	t.Helper()

	slogger := helpers.TestLogger()

	product := domain.Product{
		ID:    uuid.New(),
		Name:  "House Blend 250g",
		Price: decimal.NewFromFloat(145.00),
		Cost:  decimal.NewFromFloat(82.00),
	}

	store := newStubSaleStore()
	batchID := uuid.New()
	if stock > 0 {
		store.batches[batchID] = &domain.StockBatch{
			ID:        batchID,
			ProductID: product.ID,
			Remaining: stock,
			Cost:      product.Cost,
			Price:     product.Price,
			CreatedAt: time.Now().Add(-time.Hour),
		}
		store.productStock[product.ID] = stock
	}

	catalog := &stubCatalog{products: []domain.Product{product}}
	checkout := services.NewCheckoutService(store, slogger)
	sessions := services.NewSessionManager(store, catalog, checkout, slogger)

	testRedis := helpers.SetupTestRedis(t)
	cache := redis_a.NewCache(testRedis.Client, time.Minute, slogger)

	return &posFixture{
		handler: handlers.NewPOSHandler(sessions, cache, slogger, 12.0),
		store:   store,
		product: product,
		batchID: batchID,
	}
}

// openSession drives the handler to open a session and returns its ID.
func (fx *posFixture) openSession(t *testing.T) uuid.UUID {
	t.Helper()

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/pos/sessions", nil)
	fx.handler.OpenSession(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code)

	var view services.SessionView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &view))
	return view.SessionID
}

func (fx *posFixture) post(t *testing.T, path, sessionID string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}

	req := httptest.NewRequest(http.MethodPost, path, &buf)
	req.SetPathValue("id", sessionID)
	rec := httptest.NewRecorder()
	return fx.dispatch(rec, req, path)
}

func (fx *posFixture) dispatch(rec *httptest.ResponseRecorder, req *http.Request, path string) *httptest.ResponseRecorder {
	switch {
	case strings.HasSuffix(path, "/cart/increment"):
		fx.handler.IncrementLine(rec, req)
	case strings.HasSuffix(path, "/cart/decrement"):
		fx.handler.DecrementLine(rec, req)
	case strings.HasSuffix(path, "/cart/remove"):
		fx.handler.RemoveLine(rec, req)
	case strings.HasSuffix(path, "/checkout"):
		fx.handler.Checkout(rec, req)
	default:
		fx.handler.AddUnit(rec, req)
	}
	return rec
}

func TestPOSHandler_OpenSession(t *testing.T) {
	fx := newPOSFixture(t, 5)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/pos/sessions", nil)
	fx.handler.OpenSession(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)

	var view services.SessionView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &view))
	assert.NotEqual(t, uuid.Nil, view.SessionID)
	require.Len(t, view.Products, 1)
	assert.True(t, view.Products[0].Available)
	assert.Equal(t, "145", view.Products[0].EffectivePrice.String())
}

func TestPOSHandler_AddUnit(t *testing.T) {
	fx := newPOSFixture(t, 5)
	sessionID := fx.openSession(t)

	rec := fx.post(t, "/cart", sessionID.String(),
		map[string]string{"product_id": fx.product.ID.String()})
	require.Equal(t, http.StatusOK, rec.Code)

	var view services.CartView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &view))
	require.Len(t, view.Lines, 1)
	assert.Equal(t, fx.batchID, view.Lines[0].BatchID)
	assert.Equal(t, 1, view.Lines[0].Quantity)
	assert.Equal(t, "145", view.Totals.Subtotal.String())
	assert.Equal(t, "162.4", view.Totals.Total.String())
}

func TestPOSHandler_AddUnit_OutOfStock(t *testing.T) {
	fx := newPOSFixture(t, 0)
	sessionID := fx.openSession(t)

	rec := fx.post(t, "/cart", sessionID.String(),
		map[string]string{"product_id": fx.product.ID.String()})
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestPOSHandler_AddUnit_SessionNotFound(t *testing.T) {
	fx := newPOSFixture(t, 5)

	rec := fx.post(t, "/cart", uuid.New().String(),
		map[string]string{"product_id": fx.product.ID.String()})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestPOSHandler_AddUnit_InvalidSessionID(t *testing.T) {
	fx := newPOSFixture(t, 5)

	rec := fx.post(t, "/cart", "not-a-uuid",
		map[string]string{"product_id": fx.product.ID.String()})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPOSHandler_IncrementAndDecrement(t *testing.T) {
	fx := newPOSFixture(t, 5)
	sessionID := fx.openSession(t)

	fx.post(t, "/cart", sessionID.String(),
		map[string]string{"product_id": fx.product.ID.String()})

	key := map[string]string{
		"product_id": fx.product.ID.String(),
		"batch_id":   fx.batchID.String(),
	}

	rec := fx.post(t, "/cart/increment", sessionID.String(), key)
	require.Equal(t, http.StatusOK, rec.Code)

	var view services.CartView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &view))
	assert.Equal(t, 2, view.Lines[0].Quantity)

	rec = fx.post(t, "/cart/decrement", sessionID.String(), key)
	require.Equal(t, http.StatusOK, rec.Code)

	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &view))
	assert.Equal(t, 1, view.Lines[0].Quantity)
}

func TestPOSHandler_MutateLine_NotFound(t *testing.T) {
	fx := newPOSFixture(t, 5)
	sessionID := fx.openSession(t)

	rec := fx.post(t, "/cart/increment", sessionID.String(), map[string]string{
		"product_id": fx.product.ID.String(),
		"batch_id":   uuid.New().String(),
	})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestPOSHandler_Checkout(t *testing.T) {
	fx := newPOSFixture(t, 5)
	sessionID := fx.openSession(t)

	fx.post(t, "/cart", sessionID.String(),
		map[string]string{"product_id": fx.product.ID.String()})

	rec := fx.post(t, "/checkout", sessionID.String(),
		map[string]string{"payment_method": "cash"})
	require.Equal(t, http.StatusCreated, rec.Code)

	var receipt domain.Receipt
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &receipt))
	assert.NotEqual(t, uuid.Nil, receipt.TransactionID)
	assert.Equal(t, "162.4", receipt.Total.String())

	// The sale is durable and stock was decremented
	require.Len(t, fx.store.transactions, 1)
	require.Len(t, fx.store.items, 1)
	assert.Equal(t, 4, fx.store.batches[fx.batchID].Remaining)
	assert.Equal(t, 4, fx.store.productStock[fx.product.ID])
}

func TestPOSHandler_Checkout_EmptyCart(t *testing.T) {
	fx := newPOSFixture(t, 5)
	sessionID := fx.openSession(t)

	rec := fx.post(t, "/checkout", sessionID.String(), nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestPOSHandler_Checkout_UnknownPaymentMethod(t *testing.T) {
	fx := newPOSFixture(t, 5)
	sessionID := fx.openSession(t)

	fx.post(t, "/cart", sessionID.String(),
		map[string]string{"product_id": fx.product.ID.String()})

	rec := fx.post(t, "/checkout", sessionID.String(),
		map[string]string{"payment_method": "barter"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPOSHandler_Checkout_MidSequenceFailure(t *testing.T) {
	fx := newPOSFixture(t, 5)
	sessionID := fx.openSession(t)

	fx.post(t, "/cart", sessionID.String(),
		map[string]string{"product_id": fx.product.ID.String()})

	fx.store.failItemWrites = true

	rec := fx.post(t, "/checkout", sessionID.String(), nil)
	require.Equal(t, http.StatusBadGateway, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, string(domain.StepLineItemWrite), body["step"])

	// The header write survived the failure and the cart is kept
	assert.Len(t, fx.store.transactions, 1)
	assert.Empty(t, fx.store.items)

	fx.store.failItemWrites = false
	rec = fx.post(t, "/checkout", sessionID.String(), nil)
	assert.Equal(t, http.StatusCreated, rec.Code)
}

func TestPOSHandler_TaxRateOverride(t *testing.T) {
	fx := newPOSFixture(t, 5)
	sessionID := fx.openSession(t)

	var buf bytes.Buffer
	require.NoError(t, json.NewEncoder(&buf).Encode(
		map[string]string{"product_id": fx.product.ID.String()}))

	req := httptest.NewRequest(http.MethodPost, "/cart?tax_rate=0", &buf)
	req.SetPathValue("id", sessionID.String())
	rec := httptest.NewRecorder()
	fx.handler.AddUnit(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var view services.CartView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &view))
	assert.Equal(t, "0", view.Totals.Tax.String())
	assert.True(t, view.Totals.Total.Equal(view.Totals.Subtotal))
}

func TestPOSHandler_CloseSession(t *testing.T) {
	fx := newPOSFixture(t, 5)
	sessionID := fx.openSession(t)

	req := httptest.NewRequest(http.MethodDelete, "/api/v1/pos/sessions/"+sessionID.String(), nil)
	req.SetPathValue("id", sessionID.String())
	rec := httptest.NewRecorder()
	fx.handler.CloseSession(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	// Closing again reports not found
	rec = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodDelete, "/api/v1/pos/sessions/"+sessionID.String(), nil)
	req.SetPathValue("id", sessionID.String())
	fx.handler.CloseSession(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
