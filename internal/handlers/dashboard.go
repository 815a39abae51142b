// internal/handlers/dashboard.go
package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/posflow/pos-be/internal/adapters/db"
	redis_a "github.com/posflow/pos-be/internal/adapters/redis_adapter"
	"github.com/posflow/pos-be/internal/core/ports"
)

// DashboardHandler serves the store-front dashboard and the analytics
// views. Both are read-only aggregates over recorded sales, cached in
// Redis and invalidated on checkout.
type DashboardHandler struct {
	db                *db.Database
	cache             ports.CacheRepository
	logger            *slog.Logger
	lowStockThreshold int
}

// NewDashboardHandler creates a new dashboard handler
func NewDashboardHandler(database *db.Database, cache ports.CacheRepository, logger *slog.Logger, lowStockThreshold int) *DashboardHandler {
	return &DashboardHandler{
		db:                database,
		cache:             cache,
		logger:            logger.With(slog.String("handler", "dashboard")),
		lowStockThreshold: lowStockThreshold,
	}
}

// GetDashboard handles GET /api/v1/dashboard
func (h *DashboardHandler) GetDashboard(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	cacheKey := redis_a.BuildKey(redis_a.PrefixDashboard, "main")
	var dashboard DashboardData

	err := h.cache.GetOrSet(ctx, cacheKey, &dashboard, func() (interface{}, error) {
		return h.loadDashboardData(ctx)
	}, 5*time.Minute)

	if err != nil {
		h.logger.ErrorContext(ctx, "failed to load dashboard", slog.String("error", err.Error()))
		h.respondError(w, http.StatusInternalServerError, "Failed to load dashboard")
		return
	}

	h.respondJSON(w, http.StatusOK, dashboard)
}

// GetAnalytics handles GET /api/v1/dashboard/analytics
func (h *DashboardHandler) GetAnalytics(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	period := r.URL.Query().Get("period")
	switch period {
	case "7d", "30d", "90d":
	default:
		period = "30d"
	}

	cacheKey := redis_a.BuildKey(redis_a.PrefixAnalytics, period)
	var analytics AnalyticsData

	err := h.cache.GetOrSet(ctx, cacheKey, &analytics, func() (interface{}, error) {
		return h.loadAnalyticsData(ctx, period)
	}, 15*time.Minute)

	if err != nil {
		h.logger.ErrorContext(ctx, "failed to load analytics", slog.String("error", err.Error()))
		h.respondError(w, http.StatusInternalServerError, "Failed to load analytics")
		return
	}

	h.respondJSON(w, http.StatusOK, analytics)
}

func (h *DashboardHandler) loadDashboardData(ctx context.Context) (*DashboardData, error) {
	dashboard := &DashboardData{
		Timestamp: time.Now(),
	}

	summaryQuery := `
		SELECT
			COALESCE(SUM(total_amount), 0) AS revenue,
			COUNT(*) AS transaction_count,
			COALESCE(AVG(total_amount), 0) AS avg_transaction
		FROM transactions
		WHERE status = 'completed'
		  AND created_at >= date_trunc('day', NOW())
	`

	err := h.db.QueryRow(ctx, summaryQuery).Scan(
		&dashboard.Summary.TodayRevenue,
		&dashboard.Summary.TodayTransactions,
		&dashboard.Summary.AvgTransaction,
	)
	if err != nil {
		return nil, err
	}

	stockQuery := `
		SELECT
			COUNT(*) FILTER (WHERE in_stock),
			COUNT(*) FILTER (WHERE stock_quantity <= $1)
		FROM products
		WHERE deleted_at IS NULL
	`
	err = h.db.QueryRow(ctx, stockQuery, h.lowStockThreshold).Scan(
		&dashboard.Summary.ProductsInStock,
		&dashboard.Summary.LowStockCount,
	)
	if err != nil {
		return nil, err
	}

	weeklyQuery := `
		SELECT
			date_trunc('day', created_at)::date AS day,
			COALESCE(SUM(total_amount), 0) AS revenue,
			COUNT(*) AS transaction_count
		FROM transactions
		WHERE status = 'completed'
		  AND created_at >= date_trunc('day', NOW()) - INTERVAL '6 days'
		GROUP BY day
		ORDER BY day
	`
	rows, err := h.db.Query(ctx, weeklyQuery)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var day DailySales
		if err := rows.Scan(&day.Date, &day.Revenue, &day.TransactionCount); err != nil {
			return nil, err
		}
		dashboard.WeeklySales = append(dashboard.WeeklySales, day)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	topQuery := `
		SELECT
			ti.product_id,
			ti.product_name,
			SUM(ti.quantity) AS units_sold,
			SUM(ti.total_price) AS revenue
		FROM transaction_items ti
		JOIN transactions t ON t.id = ti.transaction_id
		WHERE t.status = 'completed'
		  AND t.created_at >= NOW() - INTERVAL '30 days'
		GROUP BY ti.product_id, ti.product_name
		ORDER BY units_sold DESC
		LIMIT 10
	`
	topRows, err := h.db.Query(ctx, topQuery)
	if err != nil {
		return nil, err
	}
	defer topRows.Close()

	for topRows.Next() {
		var top TopProduct
		if err := topRows.Scan(&top.ProductID, &top.ProductName, &top.UnitsSold, &top.Revenue); err != nil {
			return nil, err
		}
		dashboard.TopProducts = append(dashboard.TopProducts, top)
	}
	if err := topRows.Err(); err != nil {
		return nil, err
	}

	lowStockQuery := `
		SELECT id, name, stock_quantity
		FROM products
		WHERE deleted_at IS NULL
		  AND stock_quantity <= $1
		ORDER BY stock_quantity ASC, name ASC
		LIMIT 20
	`
	lowRows, err := h.db.Query(ctx, lowStockQuery, h.lowStockThreshold)
	if err != nil {
		return nil, err
	}
	defer lowRows.Close()

	for lowRows.Next() {
		var item LowStockItem
		if err := lowRows.Scan(&item.ProductID, &item.Name, &item.StockQuantity); err != nil {
			return nil, err
		}
		dashboard.LowStock = append(dashboard.LowStock, item)
	}
	if err := lowRows.Err(); err != nil {
		return nil, err
	}

	return dashboard, nil
}

// loadAnalyticsData reads the precomputed daily_sales rollup for the
// per-day series, then joins sold items to categories for the
// breakdown. The rollup is maintained by the analytics worker.
func (h *DashboardHandler) loadAnalyticsData(ctx context.Context, period string) (*AnalyticsData, error) {
	days := map[string]int{"7d": 7, "30d": 30, "90d": 90}[period]

	analytics := &AnalyticsData{
		Period:    period,
		Timestamp: time.Now(),
	}

	dailyQuery := `
		SELECT sale_date, transaction_count, gross_sales, tax_collected, cost_of_goods
		FROM daily_sales
		WHERE sale_date >= CURRENT_DATE - $1::int
		ORDER BY sale_date
	`
	rows, err := h.db.Query(ctx, dailyQuery, days)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var day DailyBreakdown
		if err := rows.Scan(&day.Date, &day.TransactionCount, &day.GrossSales, &day.TaxCollected, &day.CostOfGoods); err != nil {
			return nil, err
		}
		day.Profit = day.GrossSales.Sub(day.CostOfGoods)

		analytics.Revenue = analytics.Revenue.Add(day.GrossSales)
		analytics.Cost = analytics.Cost.Add(day.CostOfGoods)
		analytics.TransactionCount += day.TransactionCount
		analytics.Daily = append(analytics.Daily, day)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	analytics.Profit = analytics.Revenue.Sub(analytics.Cost)

	categoryQuery := `
		SELECT
			COALESCE(c.name, 'Uncategorized') AS category,
			SUM(ti.quantity) AS units_sold,
			SUM(ti.total_price) AS revenue,
			SUM(ti.cost * ti.quantity) AS cost
		FROM transaction_items ti
		JOIN transactions t ON t.id = ti.transaction_id
		LEFT JOIN products p ON p.id = ti.product_id
		LEFT JOIN categories c ON c.id = p.category_id
		WHERE t.status = 'completed'
		  AND t.created_at >= NOW() - $1::int * INTERVAL '1 day'
		GROUP BY category
		ORDER BY revenue DESC
	`
	catRows, err := h.db.Query(ctx, categoryQuery, days)
	if err != nil {
		return nil, err
	}
	defer catRows.Close()

	for catRows.Next() {
		var cat CategorySales
		if err := catRows.Scan(&cat.Category, &cat.UnitsSold, &cat.Revenue, &cat.Cost); err != nil {
			return nil, err
		}
		cat.Profit = cat.Revenue.Sub(cat.Cost)
		analytics.Categories = append(analytics.Categories, cat)
	}
	if err := catRows.Err(); err != nil {
		return nil, err
	}

	return analytics, nil
}

// Type definitions

type DashboardData struct {
	Summary     DashboardSummary `json:"summary"`
	WeeklySales []DailySales     `json:"weekly_sales"`
	TopProducts []TopProduct     `json:"top_products"`
	LowStock    []LowStockItem   `json:"low_stock"`
	Timestamp   time.Time        `json:"timestamp"`
}

type DashboardSummary struct {
	TodayRevenue      decimal.Decimal `json:"today_revenue"`
	TodayTransactions int64           `json:"today_transactions"`
	AvgTransaction    decimal.Decimal `json:"avg_transaction"`
	ProductsInStock   int64           `json:"products_in_stock"`
	LowStockCount     int64           `json:"low_stock_count"`
}

type DailySales struct {
	Date             time.Time       `json:"date"`
	Revenue          decimal.Decimal `json:"revenue"`
	TransactionCount int64           `json:"transaction_count"`
}

type TopProduct struct {
	ProductID   uuid.UUID       `json:"product_id"`
	ProductName string          `json:"product_name"`
	UnitsSold   int64           `json:"units_sold"`
	Revenue     decimal.Decimal `json:"revenue"`
}

type LowStockItem struct {
	ProductID     uuid.UUID `json:"product_id"`
	Name          string    `json:"name"`
	StockQuantity int       `json:"stock_quantity"`
}

type AnalyticsData struct {
	Period           string           `json:"period"`
	Revenue          decimal.Decimal  `json:"revenue"`
	Cost             decimal.Decimal  `json:"cost"`
	Profit           decimal.Decimal  `json:"profit"`
	TransactionCount int64            `json:"transaction_count"`
	Daily            []DailyBreakdown `json:"daily"`
	Categories       []CategorySales  `json:"categories"`
	Timestamp        time.Time        `json:"timestamp"`
}

type DailyBreakdown struct {
	Date             time.Time       `json:"date"`
	TransactionCount int64           `json:"transaction_count"`
	GrossSales       decimal.Decimal `json:"gross_sales"`
	TaxCollected     decimal.Decimal `json:"tax_collected"`
	CostOfGoods      decimal.Decimal `json:"cost_of_goods"`
	Profit           decimal.Decimal `json:"profit"`
}

type CategorySales struct {
	Category  string          `json:"category"`
	UnitsSold int64           `json:"units_sold"`
	Revenue   decimal.Decimal `json:"revenue"`
	Cost      decimal.Decimal `json:"cost"`
	Profit    decimal.Decimal `json:"profit"`
}

// Helper methods

func (h *DashboardHandler) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func (h *DashboardHandler) respondError(w http.ResponseWriter, status int, message string) {
	h.respondJSON(w, status, map[string]string{"error": message})
}
