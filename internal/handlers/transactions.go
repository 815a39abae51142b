// internal/handlers/transactions.go
package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/posflow/pos-be/internal/core/ports"
	"github.com/posflow/pos-be/internal/core/services"
)

// TransactionHandler serves the sales history endpoints.
type TransactionHandler struct {
	service *services.TransactionService
	logger  *slog.Logger
}

// NewTransactionHandler creates a new transaction handler
func NewTransactionHandler(service *services.TransactionService, logger *slog.Logger) *TransactionHandler {
	return &TransactionHandler{
		service: service,
		logger:  logger.With(slog.String("handler", "transactions")),
	}
}

// ListTransactions handles GET /api/v1/transactions
func (h *TransactionHandler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	params := h.parseListParams(r)
	withItems := r.URL.Query().Get("with_items") != "false"

	result, err := h.service.List(ctx, params, withItems)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to list transactions",
			slog.String("error", err.Error()))
		h.respondError(w, http.StatusInternalServerError, "Failed to list transactions")
		return
	}

	h.respondJSON(w, http.StatusOK, result)
}

// GetTransaction handles GET /api/v1/transactions/{id}
func (h *TransactionHandler) GetTransaction(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	idStr := r.PathValue("id")

	id, err := uuid.Parse(idStr)
	if err != nil {
		h.respondError(w, http.StatusBadRequest, "Invalid transaction ID format")
		return
	}

	trx, err := h.service.GetByID(ctx, id)
	if err != nil {
		if isNotFound(err) {
			h.respondError(w, http.StatusNotFound, "Transaction not found")
			return
		}
		h.logger.ErrorContext(ctx, "failed to get transaction",
			slog.String("transaction_id", idStr),
			slog.String("error", err.Error()))
		h.respondError(w, http.StatusInternalServerError, "Failed to retrieve transaction")
		return
	}

	h.respondJSON(w, http.StatusOK, trx)
}

// parseListParams parses query parameters for listing transactions
func (h *TransactionHandler) parseListParams(r *http.Request) ports.TransactionListParams {
	params := ports.TransactionListParams{
		Page:     1,
		PageSize: 50,
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
			// Upper bound is exclusive, so include the whole day.
			end := t.AddDate(0, 0, 1)
			params.To = &end
		}
	}

	if page := q.Get("page"); page != "" {
		if p, err := strconv.Atoi(page); err == nil && p > 0 {
			params.Page = p
		}
	}
	if limit := q.Get("limit"); limit != "" {
		if l, err := strconv.Atoi(limit); err == nil && l > 0 {
			if l > 100 {
				params.PageSize = 100
			} else {
				params.PageSize = l
			}
		}
	}

	return params
}

// Helper methods

func (h *TransactionHandler) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to encode JSON response",
			slog.String("error", err.Error()))
	}
}

func (h *TransactionHandler) respondError(w http.ResponseWriter, status int, message string) {
	h.respondJSON(w, status, map[string]string{"error": message})
}
