// internal/handlers/router.go
package handlers

import (
	"log/slog"
	"net/http"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"github.com/posflow/pos-be/internal/adapters/db"
	"github.com/posflow/pos-be/internal/adapters/storage"
	"github.com/posflow/pos-be/internal/core/ports"
	"github.com/posflow/pos-be/internal/core/services"
	"github.com/posflow/pos-be/internal/handlers/middleware"
	"github.com/posflow/pos-be/internal/pkg/config"
	"github.com/posflow/pos-be/internal/pkg/logger"
)

// RouterDeps carries everything the HTTP surface needs. The same
// wiring serves production and the end-to-end tests.
type RouterDeps struct {
	Config         *config.Config
	DB             *db.Database
	Cache          ports.CacheRepository
	Storage        storage.StorageClient
	Redis          *redis.Client
	AsynqClient    *asynq.Client
	AsynqInspector *asynq.Inspector
	Sessions       *services.SessionManager
	Products       *services.ProductService
	Transactions   *services.TransactionService
	AppLogger      *logger.Logger
	Logger         *slog.Logger
}

// NewRouter builds the route table and wraps it in the middleware
// chain.
func NewRouter(deps RouterDeps) http.Handler {
	cfg := deps.Config

	pos := NewPOSHandler(deps.Sessions, deps.Cache, deps.Logger, cfg.POS.DefaultTaxRatePercent)
	products := NewProductHandler(deps.Products, deps.Storage, deps.Cache, deps.Logger)
	transactions := NewTransactionHandler(deps.Transactions, deps.Logger)
	dashboard := NewDashboardHandler(deps.DB, deps.Cache, deps.Logger, cfg.POS.LowStockThreshold)
	export := NewExportHandler(deps.Transactions, deps.AsynqClient, deps.Logger)
	importer := NewImportHandler(deps.Storage, deps.AsynqClient, deps.Logger,
		int64(cfg.FileProcessing.PDFMaxSizeMB)*1024*1024)
	health := NewHealthHandler(deps.DB, deps.Redis, deps.AsynqInspector, cfg, deps.Logger)

	mux := http.NewServeMux()
	apiV1 := "/api/v1"

	// Health and readiness endpoints
	if cfg.Server.EnableHealthCheck {
		mux.HandleFunc("GET /health", health.Health)
		mux.HandleFunc("GET /ready", health.Readiness)
		mux.HandleFunc("GET "+apiV1+"/health", health.Health)
	}

	// Register sessions and the cart
	mux.HandleFunc("POST "+apiV1+"/pos/sessions", pos.OpenSession)
	mux.HandleFunc("DELETE "+apiV1+"/pos/sessions/{id}", pos.CloseSession)
	mux.HandleFunc("POST "+apiV1+"/pos/sessions/{id}/reload", pos.ReloadSession)
	mux.HandleFunc("GET "+apiV1+"/pos/sessions/{id}/cart", pos.GetCart)
	mux.HandleFunc("POST "+apiV1+"/pos/sessions/{id}/cart", pos.AddUnit)
	mux.HandleFunc("POST "+apiV1+"/pos/sessions/{id}/cart/increment", pos.IncrementLine)
	mux.HandleFunc("POST "+apiV1+"/pos/sessions/{id}/cart/decrement", pos.DecrementLine)
	mux.HandleFunc("POST "+apiV1+"/pos/sessions/{id}/cart/remove", pos.RemoveLine)
	mux.HandleFunc("POST "+apiV1+"/pos/sessions/{id}/checkout", pos.Checkout)

	// Product catalog
	mux.HandleFunc("GET "+apiV1+"/products", products.ListProducts)
	mux.HandleFunc("POST "+apiV1+"/products", products.CreateProduct)
	mux.HandleFunc("GET "+apiV1+"/products/categories", products.ListCategories)
	mux.HandleFunc("GET "+apiV1+"/products/{id}", products.GetProduct)
	mux.HandleFunc("PUT "+apiV1+"/products/{id}", products.UpdateProduct)
	mux.HandleFunc("DELETE "+apiV1+"/products/{id}", products.DeleteProduct)
	mux.HandleFunc("POST "+apiV1+"/products/{id}/restock", products.Restock)
	mux.HandleFunc("POST "+apiV1+"/products/{id}/image", products.UploadImage)
	mux.HandleFunc("GET "+apiV1+"/products/{id}/image", products.GetImage)

	// Sales history
	mux.HandleFunc("GET "+apiV1+"/transactions", transactions.ListTransactions)
	mux.HandleFunc("GET "+apiV1+"/transactions/{id}", transactions.GetTransaction)

	// Dashboard endpoints
	mux.HandleFunc("GET "+apiV1+"/dashboard", dashboard.GetDashboard)
	mux.HandleFunc("GET "+apiV1+"/dashboard/analytics", dashboard.GetAnalytics)

	// Export endpoints
	mux.HandleFunc("GET "+apiV1+"/export/transactions", export.ExportTransactions)
	mux.HandleFunc("POST "+apiV1+"/export/reports", export.QueueSalesReport)

	// Import endpoints
	mux.HandleFunc("POST "+apiV1+"/import/delivery-note", importer.ImportDeliveryNote)

	// pprof endpoints (development only)
	if cfg.Server.EnablePprof && cfg.IsDevelopment() {
		mux.HandleFunc("GET /debug/pprof/", http.HandlerFunc(http.DefaultServeMux.ServeHTTP))
	}

	// Apply middleware in reverse order (innermost first)
	var handler http.Handler = mux

	if cfg.Server.WriteTimeout > 0 {
		handler = middleware.Timeout(cfg.Server.WriteTimeout)(handler)
	}

	handler = middleware.Compression(handler)

	if cfg.Security.RateLimitRequests > 0 {
		handler = middleware.RateLimit(cfg.Security.RateLimitRequests, cfg.Security.RateLimitDuration)(handler)
	}

	if len(cfg.Security.AllowedOrigins) > 0 {
		handler = middleware.CORS(cfg.Security.AllowedOrigins)(handler)
	}

	if cfg.Security.SecureHeaders {
		handler = middleware.SecureHeaders(handler)
	}

	handler = middleware.Logger(deps.AppLogger)(handler)
	handler = middleware.Recovery(deps.Logger)(handler)
	handler = middleware.RequestID(handler)

	return handler
}
