// internal/handlers/pos.go
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	redis_a "github.com/posflow/pos-be/internal/adapters/redis_adapter"
	"github.com/posflow/pos-be/internal/core/domain"
	"github.com/posflow/pos-be/internal/core/ports"
	"github.com/posflow/pos-be/internal/core/services"
)

// POSHandler exposes the register session lifecycle over HTTP. Every
// cart mutation addresses a session by ID and a line by its
// product/batch key.
type POSHandler struct {
	sessions       *services.SessionManager
	cache          ports.CacheRepository
	logger         *slog.Logger
	defaultTaxRate decimal.Decimal
}

// NewPOSHandler creates a new POS handler
func NewPOSHandler(sessions *services.SessionManager, cache ports.CacheRepository, logger *slog.Logger, defaultTaxRatePercent float64) *POSHandler {
	return &POSHandler{
		sessions:       sessions,
		cache:          cache,
		logger:         logger.With(slog.String("handler", "pos")),
		defaultTaxRate: decimal.NewFromFloat(defaultTaxRatePercent),
	}
}

// OpenSession handles POST /api/v1/pos/sessions
func (h *POSHandler) OpenSession(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	view, err := h.sessions.Open(ctx)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to open pos session",
			slog.String("error", err.Error()))
		h.respondError(w, http.StatusInternalServerError, "Failed to open session")
		return
	}

	h.respondJSON(w, http.StatusCreated, view)
}

// CloseSession handles DELETE /api/v1/pos/sessions/{id}
func (h *POSHandler) CloseSession(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := h.parseSessionID(w, r)
	if !ok {
		return
	}

	if err := h.sessions.Close(sessionID); err != nil {
		h.respondSessionError(w, r, err, "Failed to close session")
		return
	}

	h.respondJSON(w, http.StatusOK, map[string]string{
		"message": "Session closed",
	})
}

// ReloadSession handles POST /api/v1/pos/sessions/{id}/reload
func (h *POSHandler) ReloadSession(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sessionID, ok := h.parseSessionID(w, r)
	if !ok {
		return
	}

	view, err := h.sessions.Reload(ctx, sessionID)
	if err != nil {
		if errors.Is(err, services.ErrCartNotEmpty) {
			h.respondError(w, http.StatusConflict, "Cart must be empty before reloading")
			return
		}
		h.respondSessionError(w, r, err, "Failed to reload session")
		return
	}

	h.respondJSON(w, http.StatusOK, view)
}

// cartMutationRequest addresses an existing cart line.
type cartMutationRequest struct {
	ProductID uuid.UUID `json:"product_id"`
	BatchID   uuid.UUID `json:"batch_id"`
}

func (req *cartMutationRequest) key() domain.LineKey {
	return domain.LineKey{ProductID: req.ProductID, BatchID: req.BatchID}
}

// addUnitRequest rings up one unit of a product.
type addUnitRequest struct {
	ProductID uuid.UUID `json:"product_id"`
}

// AddUnit handles POST /api/v1/pos/sessions/{id}/cart
func (h *POSHandler) AddUnit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sessionID, ok := h.parseSessionID(w, r)
	if !ok {
		return
	}

	var req addUnitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.ProductID == uuid.Nil {
		h.respondError(w, http.StatusBadRequest, "product_id is required")
		return
	}

	view, err := h.sessions.AddUnit(ctx, sessionID, req.ProductID, h.taxRate(r))
	if err != nil {
		if errors.Is(err, domain.ErrOutOfStock) {
			h.respondError(w, http.StatusConflict, "Product is out of stock")
			return
		}
		h.respondSessionError(w, r, err, "Failed to add product")
		return
	}

	h.respondJSON(w, http.StatusOK, view)
}

// IncrementLine handles POST /api/v1/pos/sessions/{id}/cart/increment
func (h *POSHandler) IncrementLine(w http.ResponseWriter, r *http.Request) {
	h.mutateLine(w, r, h.sessions.IncrementLine)
}

// DecrementLine handles POST /api/v1/pos/sessions/{id}/cart/decrement
func (h *POSHandler) DecrementLine(w http.ResponseWriter, r *http.Request) {
	h.mutateLine(w, r, h.sessions.DecrementLine)
}

// RemoveLine handles POST /api/v1/pos/sessions/{id}/cart/remove
func (h *POSHandler) RemoveLine(w http.ResponseWriter, r *http.Request) {
	h.mutateLine(w, r, h.sessions.RemoveLine)
}

// GetCart handles GET /api/v1/pos/sessions/{id}/cart
func (h *POSHandler) GetCart(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := h.parseSessionID(w, r)
	if !ok {
		return
	}

	view, err := h.sessions.Cart(sessionID, h.taxRate(r))
	if err != nil {
		h.respondSessionError(w, r, err, "Failed to load cart")
		return
	}

	h.respondJSON(w, http.StatusOK, view)
}

// checkoutRequest finalizes the cart into a transaction.
type checkoutRequest struct {
	PaymentMethod string `json:"payment_method"`
}

// Checkout handles POST /api/v1/pos/sessions/{id}/checkout
func (h *POSHandler) Checkout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sessionID, ok := h.parseSessionID(w, r)
	if !ok {
		return
	}

	var req checkoutRequest
	if r.Body != nil {
		// Body is optional; payment method defaults to cash.
		_ = json.NewDecoder(r.Body).Decode(&req)
	}

	method := domain.PaymentMethod(req.PaymentMethod)
	switch method {
	case "", domain.PaymentCash:
		method = domain.PaymentCash
	case domain.PaymentCard, domain.PaymentEWallet:
	default:
		h.respondError(w, http.StatusBadRequest, "Unknown payment method")
		return
	}

	receipt, err := h.sessions.Checkout(ctx, sessionID, h.taxRate(r), method)
	if err != nil {
		if errors.Is(err, domain.ErrEmptyCart) {
			h.respondError(w, http.StatusConflict, "Cart is empty")
			return
		}

		var checkoutErr *domain.CheckoutError
		if errors.As(err, &checkoutErr) {
			// The store may now hold a partial record; the cart is kept
			// so the operator can retry or reconcile.
			h.logger.ErrorContext(ctx, "checkout failed mid-sequence",
				slog.String("session_id", sessionID.String()),
				slog.String("step", string(checkoutErr.Step)),
				slog.String("error", checkoutErr.Error()))
			h.respondJSON(w, http.StatusBadGateway, map[string]string{
				"error": "Checkout failed",
				"step":  string(checkoutErr.Step),
			})
			return
		}

		h.respondSessionError(w, r, err, "Checkout failed")
		return
	}

	redis_a.InvalidateSales(ctx, h.cache, h.logger)

	h.logger.InfoContext(ctx, "checkout completed",
		slog.String("session_id", sessionID.String()),
		slog.String("transaction_id", receipt.TransactionID.String()),
		slog.String("total", receipt.Total.String()))

	h.respondJSON(w, http.StatusCreated, receipt)
}

// mutateLine runs one of the line-addressed cart operations and maps
// the shared error cases.
func (h *POSHandler) mutateLine(
	w http.ResponseWriter,
	r *http.Request,
	op func(ctx context.Context, sessionID uuid.UUID, key domain.LineKey, taxRatePercent decimal.Decimal) (*services.CartView, error),
) {
	ctx := r.Context()
	sessionID, ok := h.parseSessionID(w, r)
	if !ok {
		return
	}

	var req cartMutationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.ProductID == uuid.Nil || req.BatchID == uuid.Nil {
		h.respondError(w, http.StatusBadRequest, "product_id and batch_id are required")
		return
	}

	view, err := op(ctx, sessionID, req.key(), h.taxRate(r))
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrLineNotFound):
			h.respondError(w, http.StatusNotFound, "Cart line not found")
		case errors.Is(err, domain.ErrOutOfStock):
			h.respondError(w, http.StatusConflict, "No more stock available")
		default:
			h.respondSessionError(w, r, err, "Failed to update cart")
		}
		return
	}

	h.respondJSON(w, http.StatusOK, view)
}

// Helper methods

func (h *POSHandler) parseSessionID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	sessionID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		h.respondError(w, http.StatusBadRequest, "Invalid session ID format")
		return uuid.Nil, false
	}
	return sessionID, true
}

// taxRate returns the tax rate for this request: the tax_rate query
// parameter when present, the configured default otherwise.
func (h *POSHandler) taxRate(r *http.Request) decimal.Decimal {
	if raw := r.URL.Query().Get("tax_rate"); raw != "" {
		if rate, err := decimal.NewFromString(raw); err == nil && !rate.IsNegative() {
			return rate
		}
	}
	return h.defaultTaxRate
}

func (h *POSHandler) respondSessionError(w http.ResponseWriter, r *http.Request, err error, fallback string) {
	if errors.Is(err, services.ErrSessionNotFound) {
		h.respondError(w, http.StatusNotFound, "Session not found")
		return
	}

	h.logger.ErrorContext(r.Context(), "pos request failed",
		slog.String("path", r.URL.Path),
		slog.String("error", err.Error()))
	h.respondError(w, http.StatusInternalServerError, fallback)
}

func (h *POSHandler) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to encode JSON response",
			slog.String("error", err.Error()))
	}
}

func (h *POSHandler) respondError(w http.ResponseWriter, status int, message string) {
	h.respondJSON(w, status, map[string]string{"error": message})
}
