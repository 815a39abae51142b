// internal/workers/cleanup_processor.go
package workers

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"time"

	"github.com/hibiken/asynq"

	"github.com/posflow/pos-be/internal/adapters/storage"
)

// Generated reports stay downloadable for a month, then get swept.
const reportRetention = 30 * 24 * time.Hour

// Report filenames carry their generation time, e.g.
// sales_report_20260115_093000.xlsx.
var reportTimestampRe = regexp.MustCompile(`(\d{8}_\d{6})`)

// CleanupProcessor sweeps expired artifacts out of object storage.
type CleanupProcessor struct {
	storage storage.StorageClient
	logger  *slog.Logger
}

// NewCleanupProcessor creates a new cleanup processor
func NewCleanupProcessor(storageClient storage.StorageClient, logger *slog.Logger) *CleanupProcessor {
	return &CleanupProcessor{
		storage: storageClient,
		logger:  logger.With(slog.String("processor", "cleanup")),
	}
}

// CleanupExpiredReports handles TypeCleanupReports tasks. Report age is
// read from the timestamp embedded in the filename; keys without one
// are left alone.
func (p *CleanupProcessor) CleanupExpiredReports(ctx context.Context, t *asynq.Task) error {
	p.logger.InfoContext(ctx, "cleaning up expired reports")

	keys, err := p.storage.List(ctx, storage.PrefixSalesReports)
	if err != nil {
		return fmt.Errorf("failed to list reports: %w", err)
	}

	cutoff := time.Now().Add(-reportRetention)
	var deletedCount int

	for _, key := range keys {
		m := reportTimestampRe.FindString(key)
		if m == "" {
			continue
		}

		generatedAt, err := time.Parse("20060102_150405", m)
		if err != nil || !generatedAt.Before(cutoff) {
			continue
		}

		if err := p.storage.Delete(ctx, key); err != nil {
			p.logger.WarnContext(ctx, "failed to delete expired report",
				slog.String("key", key),
				slog.String("error", err.Error()))
			continue
		}
		deletedCount++
	}

	p.logger.InfoContext(ctx, "expired reports cleaned up",
		slog.Int("reports_deleted", deletedCount),
		slog.Int("reports_scanned", len(keys)))

	return nil
}
