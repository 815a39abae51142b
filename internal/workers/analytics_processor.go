// internal/workers/analytics_processor.go
package workers

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"

	redis_a "github.com/posflow/pos-be/internal/adapters/redis_adapter"
	"github.com/posflow/pos-be/internal/core/ports"
)

const defaultRollupDays = 2

// AnalyticsProcessor maintains the daily_sales rollup that backs the
// analytics endpoint. The rollup recomputes a trailing window on every
// run, so a late-arriving transaction on a past day heals itself on
// the next pass.
type AnalyticsProcessor struct {
	db     ports.Database
	cache  ports.CacheRepository
	logger *slog.Logger
}

// NewAnalyticsProcessor creates a new analytics processor
func NewAnalyticsProcessor(db ports.Database, cache ports.CacheRepository, logger *slog.Logger) *AnalyticsProcessor {
	return &AnalyticsProcessor{
		db:     db,
		cache:  cache,
		logger: logger.With(slog.String("processor", "analytics")),
	}
}

// RollupDailySales handles TypeSalesRollup tasks.
func (p *AnalyticsProcessor) RollupDailySales(ctx context.Context, t *asynq.Task) error {
	days := defaultRollupDays
	if len(t.Payload()) > 0 {
		var payload SalesRollupPayload
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return fmt.Errorf("failed to unmarshal payload: %w", err)
		}
		if payload.Days > 0 {
			days = payload.Days
		}
	}

	p.logger.InfoContext(ctx, "rolling up daily sales",
		slog.Int("days", days))

	query := `
		INSERT INTO daily_sales (sale_date, transaction_count, gross_sales, tax_collected, cost_of_goods, computed_at)
		SELECT
			date_trunc('day', t.created_at)::date AS sale_date,
			COUNT(*) AS transaction_count,
			COALESCE(SUM(t.total_amount), 0) AS gross_sales,
			COALESCE(SUM(t.tax), 0) AS tax_collected,
			COALESCE(SUM(c.cost), 0) AS cost_of_goods,
			NOW() AS computed_at
		FROM transactions t
		LEFT JOIN LATERAL (
			SELECT SUM(ti.cost * ti.quantity) AS cost
			FROM transaction_items ti
			WHERE ti.transaction_id = t.id
		) c ON TRUE
		WHERE t.status = 'completed'
		  AND t.created_at >= date_trunc('day', NOW()) - ($1::int - 1) * INTERVAL '1 day'
		GROUP BY sale_date
		ON CONFLICT (sale_date) DO UPDATE SET
			transaction_count = EXCLUDED.transaction_count,
			gross_sales       = EXCLUDED.gross_sales,
			tax_collected     = EXCLUDED.tax_collected,
			cost_of_goods     = EXCLUDED.cost_of_goods,
			computed_at       = EXCLUDED.computed_at
	`

	result, err := p.db.Exec(ctx, query, days)
	if err != nil {
		return fmt.Errorf("failed to roll up daily sales: %w", err)
	}

	// Cached analytics views are stale the moment the rollup moves.
	redis_a.InvalidateSales(ctx, p.cache, p.logger)

	p.logger.InfoContext(ctx, "daily sales rolled up",
		slog.Int64("days_updated", result.RowsAffected()))

	return nil
}
