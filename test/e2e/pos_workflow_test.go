//go:build e2e
// +build e2e

package e2e_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"github.com/posflow/pos-be/internal/adapters/db"
	redis_a "github.com/posflow/pos-be/internal/adapters/redis_adapter"
	"github.com/posflow/pos-be/internal/core/services"
	"github.com/posflow/pos-be/internal/handlers"
	"github.com/posflow/pos-be/test/helpers"
	"github.com/posflow/pos-be/test/mocks"
)

// POSWorkflowSuite runs the register flow end to end against the real
// router, a containerized Postgres and an in-process Redis.
type POSWorkflowSuite struct {
	suite.Suite
	server      *httptest.Server
	client      *http.Client
	baseURL     string
	testDB      *helpers.TestDB
	testRedis   *helpers.TestRedis
	asynqClient *asynq.Client
}

func (s *POSWorkflowSuite) SetupSuite() {
	s.testDB = helpers.SetupTestDB(s.T())
	s.testRedis = helpers.SetupTestRedis(s.T())

	cfg := helpers.LoadTestConfig()
	slogger := helpers.TestLogger()
	appLogger := helpers.TestAppLogger()

	cache := redis_a.NewCache(s.testRedis.Client, cfg.Redis.TTL, slogger)

	ctrl := gomock.NewController(s.T())
	storageClient := mocks.NewMockStorageClient(ctrl)

	s.asynqClient = asynq.NewClient(asynq.RedisClientOpt{Addr: s.testRedis.Server.Addr()})

	saleStore := db.NewSaleStore(s.testDB.Database, slogger)
	productRepo := db.NewProductRepository(s.testDB.Database, slogger)
	transactionRepo := db.NewTransactionRepository(s.testDB.Database, slogger)

	checkout := services.NewCheckoutService(saleStore, slogger)
	sessions := services.NewSessionManager(saleStore, productRepo, checkout, slogger)
	products := services.NewProductService(productRepo, saleStore, slogger)
	transactions := services.NewTransactionService(transactionRepo, slogger)

	handler := handlers.NewRouter(handlers.RouterDeps{
		Config:       cfg,
		DB:           s.testDB.Database,
		Cache:        cache,
		Storage:      storageClient,
		Redis:        s.testRedis.Client,
		AsynqClient:  s.asynqClient,
		Sessions:     sessions,
		Products:     products,
		Transactions: transactions,
		AppLogger:    appLogger,
		Logger:       slogger,
	})

	s.server = httptest.NewServer(handler)
	s.client = &http.Client{Timeout: 10 * time.Second}
	s.baseURL = s.server.URL + "/api/v1"
}

func (s *POSWorkflowSuite) TearDownSuite() {
	s.server.Close()
	s.asynqClient.Close()
}

func (s *POSWorkflowSuite) TestCompleteSaleWorkflow() {
	// 1. Create a product with opening stock
	createReq := map[string]interface{}{
		"name":             "House Blend 250g",
		"description":      "Medium roast, whole beans",
		"price":            "145.00",
		"cost":             "82.00",
		"initial_quantity": 5,
	}

	resp := s.makeRequest("POST", "/products", createReq)
	s.Equal(http.StatusCreated, resp.StatusCode)

	var created map[string]interface{}
	s.decodeResponse(resp, &created)
	productID := created["id"].(string)
	s.NotEmpty(productID)

	// 2. Restock with a second, cheaper batch
	restockReq := map[string]interface{}{
		"quantity": 10,
		"cost":     "75.00",
	}

	resp = s.makeRequest("POST", fmt.Sprintf("/products/%s/restock", productID), restockReq)
	s.Equal(http.StatusCreated, resp.StatusCode)

	// 3. Open a register session; the catalog snapshot must include the
	// product with stock available.
	resp = s.makeRequest("POST", "/pos/sessions", nil)
	s.Equal(http.StatusCreated, resp.StatusCode)

	var session map[string]interface{}
	s.decodeResponse(resp, &session)
	sessionID := session["session_id"].(string)
	s.NotEmpty(sessionID)

	found := false
	for _, p := range session["products"].([]interface{}) {
		product := p.(map[string]interface{})
		if product["id"] == productID {
			found = true
			s.True(product["available"].(bool))
		}
	}
	s.True(found, "created product should appear in the session catalog")

	// 4. Ring up one unit; the line must draw from the older batch
	resp = s.makeRequest("POST", fmt.Sprintf("/pos/sessions/%s/cart", sessionID),
		map[string]interface{}{"product_id": productID})
	s.Equal(http.StatusOK, resp.StatusCode)

	var cart map[string]interface{}
	s.decodeResponse(resp, &cart)
	lines := cart["lines"].([]interface{})
	s.Len(lines, 1)

	line := lines[0].(map[string]interface{})
	batchID := line["batch_id"].(string)
	s.Equal("145", line["unit_price"])
	s.Equal("82", line["unit_cost"])

	// 5. Increment the line to two units
	resp = s.makeRequest("POST", fmt.Sprintf("/pos/sessions/%s/cart/increment", sessionID),
		map[string]interface{}{"product_id": productID, "batch_id": batchID})
	s.Equal(http.StatusOK, resp.StatusCode)

	s.decodeResponse(resp, &cart)
	line = cart["lines"].([]interface{})[0].(map[string]interface{})
	s.Equal(float64(2), line["quantity"])

	totals := cart["totals"].(map[string]interface{})
	s.Equal("290", totals["subtotal"])

	// 6. Checkout
	resp = s.makeRequest("POST", fmt.Sprintf("/pos/sessions/%s/checkout", sessionID),
		map[string]interface{}{"payment_method": "cash"})
	s.Equal(http.StatusCreated, resp.StatusCode)

	var receipt map[string]interface{}
	s.decodeResponse(resp, &receipt)
	trxID := receipt["transaction_id"].(string)
	s.NotEmpty(trxID)

	// 7. The transaction is durable and carries the sold line
	resp = s.makeRequest("GET", fmt.Sprintf("/transactions/%s", trxID), nil)
	s.Equal(http.StatusOK, resp.StatusCode)

	var trx map[string]interface{}
	s.decodeResponse(resp, &trx)
	s.Equal("completed", trx["status"])
	s.Len(trx["items"].([]interface{}), 1)

	// 8. Product stock reflects the sale: 5 + 10 - 2
	resp = s.makeRequest("GET", fmt.Sprintf("/products/%s", productID), nil)
	s.Equal(http.StatusOK, resp.StatusCode)

	var product map[string]interface{}
	s.decodeResponse(resp, &product)
	s.Equal(float64(13), product["stock_quantity"])

	// 9. The cart is empty after a successful checkout
	resp = s.makeRequest("GET", fmt.Sprintf("/pos/sessions/%s/cart", sessionID), nil)
	s.Equal(http.StatusOK, resp.StatusCode)

	s.decodeResponse(resp, &cart)
	s.Empty(cart["lines"])

	// 10. Close the session
	resp = s.makeRequest("DELETE", fmt.Sprintf("/pos/sessions/%s", sessionID), nil)
	s.Equal(http.StatusOK, resp.StatusCode)
}

func (s *POSWorkflowSuite) TestCheckoutEmptyCartConflicts() {
	resp := s.makeRequest("POST", "/pos/sessions", nil)
	s.Equal(http.StatusCreated, resp.StatusCode)

	var session map[string]interface{}
	s.decodeResponse(resp, &session)
	sessionID := session["session_id"].(string)

	resp = s.makeRequest("POST", fmt.Sprintf("/pos/sessions/%s/checkout", sessionID), nil)
	s.Equal(http.StatusConflict, resp.StatusCode)

	resp = s.makeRequest("DELETE", fmt.Sprintf("/pos/sessions/%s", sessionID), nil)
	s.Equal(http.StatusOK, resp.StatusCode)
}

func (s *POSWorkflowSuite) TestUnknownSessionReturnsNotFound() {
	resp := s.makeRequest("GET", "/pos/sessions/00000000-0000-0000-0000-000000000001/cart", nil)
	s.Equal(http.StatusNotFound, resp.StatusCode)
}

func (s *POSWorkflowSuite) TestQueueSalesReport() {
	resp := s.makeRequest("POST", "/export/reports", nil)
	s.Equal(http.StatusAccepted, resp.StatusCode)

	var queued map[string]interface{}
	s.decodeResponse(resp, &queued)
	s.Equal("queued", queued["status"])
	s.NotEmpty(queued["task_id"])
}

func (s *POSWorkflowSuite) TestExportTransactionsReturnsWorkbook() {
	resp := s.makeRequest("GET", "/export/transactions", nil)
	s.Equal(http.StatusOK, resp.StatusCode)
	s.Equal("application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
		resp.Header.Get("Content-Type"))
	resp.Body.Close()
}

func (s *POSWorkflowSuite) TestHealthCheck() {
	resp := s.makeRequest("GET", "/health", nil)
	s.Equal(http.StatusOK, resp.StatusCode)

	var health map[string]interface{}
	s.decodeResponse(resp, &health)
	s.Equal("healthy", health["status"])

	checked := health["services"].(map[string]interface{})
	s.Contains(checked, "database")
	s.Contains(checked, "redis")
}

// Helper methods

func (s *POSWorkflowSuite) makeRequest(method, path string, body interface{}) *http.Response {
	var reqBody io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		s.NoError(err)
		reqBody = bytes.NewReader(jsonBody)
	}

	req, err := http.NewRequest(method, s.baseURL+path, reqBody)
	s.NoError(err)

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := s.client.Do(req)
	s.NoError(err)

	return resp
}

func (s *POSWorkflowSuite) decodeResponse(resp *http.Response, v interface{}) {
	defer resp.Body.Close()
	err := json.NewDecoder(resp.Body).Decode(v)
	s.NoError(err)
}

func TestPOSWorkflowSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping E2E tests in short mode")
	}
	suite.Run(t, new(POSWorkflowSuite))
}
