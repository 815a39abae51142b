// internal/handlers/export.go
package handlers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/hibiken/asynq"
	"github.com/tealeg/xlsx/v3"

	"github.com/posflow/pos-be/internal/core/domain"
	"github.com/posflow/pos-be/internal/core/ports"
	"github.com/posflow/pos-be/internal/core/services"
	"github.com/posflow/pos-be/internal/workers"
)

// ExportHandler produces spreadsheet exports of the sales history.
// Small exports stream back on the request; full reports are generated
// by the worker and land in object storage.
type ExportHandler struct {
	transactions *services.TransactionService
	asynqClient  *asynq.Client
	logger       *slog.Logger
}

// NewExportHandler creates a new export handler
func NewExportHandler(transactions *services.TransactionService, asynqClient *asynq.Client, logger *slog.Logger) *ExportHandler {
	return &ExportHandler{
		transactions: transactions,
		asynqClient:  asynqClient,
		logger:       logger.With(slog.String("handler", "export")),
	}
}

// ExportTransactions handles GET /api/v1/export/transactions. Returns
// an xlsx workbook with one row per sold line.
func (h *ExportHandler) ExportTransactions(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	params := h.parseExportParams(r)

	result, err := h.transactions.List(ctx, params, true)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to load transactions for export",
			slog.String("error", err.Error()))
		h.respondError(w, http.StatusInternalServerError, "Failed to retrieve data")
		return
	}

	excelData, err := h.generateWorkbook(result.Transactions)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to generate workbook",
			slog.String("error", err.Error()))
		h.respondError(w, http.StatusInternalServerError, "Failed to generate export")
		return
	}

	filename := fmt.Sprintf("transactions_%s.xlsx", time.Now().Format("20060102_150405"))
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))
	w.Header().Set("Content-Length", strconv.Itoa(len(excelData)))
	w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")

	if _, err := w.Write(excelData); err != nil {
		h.logger.ErrorContext(ctx, "failed to write export response",
			slog.String("error", err.Error()))
		return
	}

	h.logger.InfoContext(ctx, "transactions export completed",
		slog.Int("transactions", len(result.Transactions)),
		slog.String("filename", filename))
}

// QueueSalesReport handles POST /api/v1/export/reports. The worker
// builds the full report and uploads it to object storage.
func (h *ExportHandler) QueueSalesReport(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	params := h.parseExportParams(r)

	payload := workers.ReportExportPayload{
		From: params.From,
		To:   params.To,
	}

	b, err := json.Marshal(payload)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to marshal report payload",
			slog.String("error", err.Error()))
		h.respondError(w, http.StatusInternalServerError, "Failed to queue report")
		return
	}

	info, err := h.asynqClient.Enqueue(
		asynq.NewTask(workers.TypeReportExport, b),
		asynq.Queue("low"),
		asynq.MaxRetry(3),
		asynq.Retention(24*time.Hour))
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to enqueue report task",
			slog.String("error", err.Error()))
		h.respondError(w, http.StatusInternalServerError, "Failed to queue report")
		return
	}

	h.logger.InfoContext(ctx, "sales report queued",
		slog.String("task_id", info.ID))

	h.respondJSON(w, http.StatusAccepted, map[string]string{
		"task_id": info.ID,
		"status":  "queued",
	})
}

// parseExportParams reads the optional date range and status filter.
func (h *ExportHandler) parseExportParams(r *http.Request) ports.TransactionListParams {
	params := ports.TransactionListParams{
		Page:     1,
		PageSize: 1000,
	}

	q := r.URL.Query()
	params.Status = q.Get("status")

	if from := q.Get("from"); from != "" {
		if t, err := time.Parse("2006-01-02", from); err == nil {
			params.From = &t
		}
	}
	if to := q.Get("to"); to != "" {
		if t, err := time.Parse("2006-01-02", to); err == nil {
			end := t.AddDate(0, 0, 1)
			params.To = &end
		}
	}

	return params
}

// generateWorkbook builds the xlsx file in memory.
func (h *ExportHandler) generateWorkbook(transactions []domain.Transaction) ([]byte, error) {
	file := xlsx.NewFile()

	sheet, err := file.AddSheet("Transactions")
	if err != nil {
		return nil, fmt.Errorf("failed to add worksheet: %w", err)
	}

	headers := []string{
		"Transaction ID", "Date", "Status", "Payment Method",
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
				string(trx.Status),
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

	for i := 0; i < len(headers); i++ {
		sheet.SetColWidth(i, i, 18)
	}

	var buffer bytes.Buffer
	if err := file.Write(&buffer); err != nil {
		return nil, fmt.Errorf("failed to write workbook to buffer: %w", err)
	}

	return buffer.Bytes(), nil
}

// Helper methods

func (h *ExportHandler) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to encode JSON response",
			slog.String("error", err.Error()))
	}
}

func (h *ExportHandler) respondError(w http.ResponseWriter, status int, message string) {
	h.respondJSON(w, status, map[string]string{"error": message})
}
