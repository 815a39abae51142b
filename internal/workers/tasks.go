// internal/workers/tasks.go
package workers

import (
	"time"

	"github.com/google/uuid"
)

// Task type names shared between the API (enqueue side) and the worker
// (handler side).
const (
	TypeDeliveryNoteProcess = "import:delivery_note"
	TypeReportExport        = "export:sales_report"
	TypeSalesRollup         = "analytics:sales_rollup"
	TypeLowStockScan        = "stock:low_stock_scan"
	TypeCleanupReports      = "cleanup:expired_reports"
)

// DeliveryNotePayload identifies a supplier delivery note parked in
// object storage, waiting to be parsed into stock batches.
type DeliveryNotePayload struct {
	JobID      uuid.UUID `json:"job_id"`
	StorageKey string    `json:"storage_key"`
	Supplier   string    `json:"supplier"`
}

// DeliveryNoteResult is written to the task result for inspection via
// asynq tooling.
type DeliveryNoteResult struct {
	LinesParsed    int      `json:"lines_parsed"`
	BatchesCreated int      `json:"batches_created"`
	Skipped        []string `json:"skipped,omitempty"`
	ProcessingTime string   `json:"processing_time"`
}

// ReportExportPayload bounds the sales report. Nil endpoints mean
// unbounded on that side.
type ReportExportPayload struct {
	From *time.Time `json:"from,omitempty"`
	To   *time.Time `json:"to,omitempty"`
}

// SalesRollupPayload controls how many trailing days the rollup
// recomputes. Zero means the default window.
type SalesRollupPayload struct {
	Days int `json:"days,omitempty"`
}
