// internal/workers/report_processor.go
package workers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/hibiken/asynq"
	"github.com/shopspring/decimal"
	"github.com/tealeg/xlsx/v3"

	"github.com/posflow/pos-be/internal/adapters/storage"
	"github.com/posflow/pos-be/internal/core/domain"
	"github.com/posflow/pos-be/internal/core/ports"
	"github.com/posflow/pos-be/internal/core/services"
)

const reportPageSize = 500

// ReportProcessor builds full sales report workbooks and parks them in
// object storage. The synchronous export endpoint caps its result set;
// this path pages through everything in the requested window.
type ReportProcessor struct {
	transactions *services.TransactionService
	storage      storage.StorageClient
	logger       *slog.Logger
}

// NewReportProcessor creates a new report processor
func NewReportProcessor(transactions *services.TransactionService, storageClient storage.StorageClient, logger *slog.Logger) *ReportProcessor {
	return &ReportProcessor{
		transactions: transactions,
		storage:      storageClient,
		logger:       logger.With(slog.String("processor", "report")),
	}
}

// ProcessReportExport handles TypeReportExport tasks.
func (p *ReportProcessor) ProcessReportExport(ctx context.Context, t *asynq.Task) error {
	var payload ReportExportPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("failed to unmarshal payload: %w", err)
	}

	p.logger.InfoContext(ctx, "generating sales report")

	transactions, err := p.collectTransactions(ctx, payload)
	if err != nil {
		return fmt.Errorf("failed to collect transactions: %w", err)
	}

	workbook, err := p.buildReportWorkbook(transactions, payload)
	if err != nil {
		return fmt.Errorf("failed to build workbook: %w", err)
	}

	filename := fmt.Sprintf("sales_report_%s.xlsx", time.Now().Format("20060102_150405"))
	key := storage.SalesReportKey(filename)

	contentType := "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	if _, err := p.storage.Upload(ctx, key, bytes.NewReader(workbook), contentType); err != nil {
		return fmt.Errorf("failed to upload report: %w", err)
	}

	if w := t.ResultWriter(); w != nil {
		result, _ := json.Marshal(map[string]interface{}{
			"storage_key":  key,
			"transactions": len(transactions),
		})
		_, _ = w.Write(result)
	}

	p.logger.InfoContext(ctx, "sales report generated",
		slog.String("storage_key", key),
		slog.Int("transactions", len(transactions)))

	return nil
}

// collectTransactions pages through the completed sales in the window.
func (p *ReportProcessor) collectTransactions(ctx context.Context, payload ReportExportPayload) ([]domain.Transaction, error) {
	params := ports.TransactionListParams{
		Status:   string(domain.StatusCompleted),
		From:     payload.From,
		To:       payload.To,
		Page:     1,
		PageSize: reportPageSize,
	}

	var all []domain.Transaction
	for {
		result, err := p.transactions.List(ctx, params, true)
		if err != nil {
			return nil, err
		}

		all = append(all, result.Transactions...)

		if params.Page >= result.TotalPages || len(result.Transactions) == 0 {
			break
		}
		params.Page++
	}

	return all, nil
}

// buildReportWorkbook writes a summary sheet followed by one row per
// sold line.
func (p *ReportProcessor) buildReportWorkbook(transactions []domain.Transaction, payload ReportExportPayload) ([]byte, error) {
	file := xlsx.NewFile()

	summary, err := file.AddSheet("Summary")
	if err != nil {
		return nil, fmt.Errorf("failed to add summary sheet: %w", err)
	}

	var gross, tax, cost decimal.Decimal
	var units int
	for i := range transactions {
		trx := &transactions[i]
		gross = gross.Add(trx.Total)
		tax = tax.Add(trx.Tax)
		for j := range trx.Items {
			item := &trx.Items[j]
			units += item.Quantity
			cost = cost.Add(item.UnitCost.Mul(decimal.NewFromInt(int64(item.Quantity))))
		}
	}

	period := "all time"
	if payload.From != nil && payload.To != nil {
		period = fmt.Sprintf("%s to %s", payload.From.Format("2006-01-02"), payload.To.Format("2006-01-02"))
	} else if payload.From != nil {
		period = fmt.Sprintf("from %s", payload.From.Format("2006-01-02"))
	} else if payload.To != nil {
		period = fmt.Sprintf("until %s", payload.To.Format("2006-01-02"))
	}

	summaryRows := [][]string{
		{"Generated", time.Now().Format("2006-01-02 15:04:05")},
		{"Period", period},
		{"Transactions", strconv.Itoa(len(transactions))},
		{"Units Sold", strconv.Itoa(units)},
		{"Gross Sales", gross.StringFixed(2)},
		{"Tax Collected", tax.StringFixed(2)},
		{"Cost of Goods", cost.StringFixed(2)},
		{"Gross Profit", gross.Sub(tax).Sub(cost).StringFixed(2)},
	}
	for _, pair := range summaryRows {
		row := summary.AddRow()
		label := row.AddCell()
		label.Value = pair[0]
		label.GetStyle().Font.Bold = true
		row.AddCell().Value = pair[1]
	}
	summary.SetColWidth(0, 1, 20)

	sheet, err := file.AddSheet("Transactions")
	if err != nil {
		return nil, fmt.Errorf("failed to add transactions sheet: %w", err)
	}

	headers := []string{
		"Transaction ID", "Date", "Payment Method",
		"Product", "Batch", "Quantity", "Unit Price", "Line Total",
		"Unit Cost", "Subtotal", "Tax", "Total",
	}
	headerRow := sheet.AddRow()
	for _, header := range headers {
		cell := headerRow.AddCell()
		cell.Value = header
		cell.GetStyle().Font.Bold = true
	}

	for i := range transactions {
		trx := &transactions[i]
		for j := range trx.Items {
			item := &trx.Items[j]
			row := sheet.AddRow()
			for _, value := range []string{
				trx.ID.String(),
				trx.CreatedAt.Format("2006-01-02 15:04:05"),
				string(trx.PaymentMethod),
				item.ProductName,
				item.BatchID.String(),
				strconv.Itoa(item.Quantity),
				item.UnitPrice.StringFixed(2),
				item.TotalPrice.StringFixed(2),
				item.UnitCost.StringFixed(2),
				trx.Subtotal.StringFixed(2),
				trx.Tax.StringFixed(2),
				trx.Total.StringFixed(2),
			} {
				row.AddCell().Value = value
			}
		}
	}
	sheet.SetColWidth(0, len(headers)-1, 18)

	var buffer bytes.Buffer
	if err := file.Write(&buffer); err != nil {
		return nil, fmt.Errorf("failed to write workbook to buffer: %w", err)
	}

	return buffer.Bytes(), nil
}
