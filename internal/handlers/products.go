// internal/handlers/products.go
package handlers

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	redis_a "github.com/posflow/pos-be/internal/adapters/redis_adapter"
	"github.com/posflow/pos-be/internal/adapters/storage"
	"github.com/posflow/pos-be/internal/core/domain"
	"github.com/posflow/pos-be/internal/core/ports"
	"github.com/posflow/pos-be/internal/core/services"
)

const maxImageSize = 5 << 20 // 5 MB

// ProductHandler handles catalog HTTP requests
type ProductHandler struct {
	service *services.ProductService
	storage storage.StorageClient
	cache   ports.CacheRepository
	logger  *slog.Logger
}

// NewProductHandler creates a new product handler
func NewProductHandler(service *services.ProductService, storageClient storage.StorageClient, cache ports.CacheRepository, logger *slog.Logger) *ProductHandler {
	return &ProductHandler{
		service: service,
		storage: storageClient,
		cache:   cache,
		logger:  logger.With(slog.String("handler", "products")),
	}
}

// ListProducts handles GET /api/v1/products
func (h *ProductHandler) ListProducts(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	params := h.parseListParams(r)

	products, err := h.service.List(ctx, params)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to list products",
			slog.String("error", err.Error()))
		h.respondError(w, http.StatusInternalServerError, "Failed to list products")
		return
	}

	h.respondJSON(w, http.StatusOK, map[string]interface{}{
		"products": products,
		"count":    len(products),
	})
}

// GetProduct handles GET /api/v1/products/{id}
func (h *ProductHandler) GetProduct(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, ok := h.parseProductID(w, r)
	if !ok {
		return
	}

	product, err := h.service.GetByID(ctx, id)
	if err != nil {
		if isNotFound(err) {
			h.respondError(w, http.StatusNotFound, "Product not found")
			return
		}
		h.logger.ErrorContext(ctx, "failed to get product",
			slog.String("product_id", id.String()),
			slog.String("error", err.Error()))
		h.respondError(w, http.StatusInternalServerError, "Failed to retrieve product")
		return
	}

	h.respondJSON(w, http.StatusOK, product)
}

// CreateProduct handles POST /api/v1/products
func (h *ProductHandler) CreateProduct(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req ProductRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := req.Validate(); err != nil {
		h.respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	product := req.ToDomain()
	if err := h.service.SaveProduct(ctx, product, req.InitialQuantity); err != nil {
		h.logger.ErrorContext(ctx, "failed to create product",
			slog.String("error", err.Error()))
		h.respondError(w, http.StatusInternalServerError, "Failed to create product")
		return
	}

	redis_a.InvalidateProducts(ctx, h.cache, h.logger)

	h.respondJSON(w, http.StatusCreated, product)
}

// UpdateProduct handles PUT /api/v1/products/{id}
func (h *ProductHandler) UpdateProduct(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, ok := h.parseProductID(w, r)
	if !ok {
		return
	}

	var req ProductRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := req.Validate(); err != nil {
		h.respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	product := req.ToDomain()
	if err := h.service.UpdateProduct(ctx, id, product); err != nil {
		if isNotFound(err) {
			h.respondError(w, http.StatusNotFound, "Product not found")
			return
		}
		h.logger.ErrorContext(ctx, "failed to update product",
			slog.String("product_id", id.String()),
			slog.String("error", err.Error()))
		h.respondError(w, http.StatusInternalServerError, "Failed to update product")
		return
	}

	redis_a.InvalidateProducts(ctx, h.cache, h.logger)

	h.respondJSON(w, http.StatusOK, product)
}

// DeleteProduct handles DELETE /api/v1/products/{id}
func (h *ProductHandler) DeleteProduct(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, ok := h.parseProductID(w, r)
	if !ok {
		return
	}

	if err := h.service.DeleteProduct(ctx, id); err != nil {
		if isNotFound(err) {
			h.respondError(w, http.StatusNotFound, "Product not found")
			return
		}
		h.logger.ErrorContext(ctx, "failed to delete product",
			slog.String("product_id", id.String()),
			slog.String("error", err.Error()))
		h.respondError(w, http.StatusInternalServerError, "Failed to delete product")
		return
	}

	redis_a.InvalidateProducts(ctx, h.cache, h.logger)

	h.respondJSON(w, http.StatusOK, map[string]string{
		"message": "Product deleted",
	})
}

// ListCategories handles GET /api/v1/categories
func (h *ProductHandler) ListCategories(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	categories, err := h.service.ListCategories(ctx)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to list categories",
			slog.String("error", err.Error()))
		h.respondError(w, http.StatusInternalServerError, "Failed to list categories")
		return
	}

	h.respondJSON(w, http.StatusOK, map[string]interface{}{
		"categories": categories,
	})
}

// RestockRequest receives new stock for a product.
type RestockRequest struct {
	Quantity int              `json:"quantity"`
	Cost     decimal.Decimal  `json:"cost"`
	Price    *decimal.Decimal `json:"price,omitempty"`
}

// Validate validates the restock request
func (r *RestockRequest) Validate() error {
	if r.Quantity <= 0 {
		return fmt.Errorf("quantity must be positive")
	}
	if r.Cost.IsNegative() {
		return fmt.Errorf("cost cannot be negative")
	}
	if r.Price != nil && r.Price.IsNegative() {
		return fmt.Errorf("price cannot be negative")
	}
	return nil
}

// Restock handles POST /api/v1/products/{id}/restock. A zero price on
// the new batch means units sell at the catalog price.
func (h *ProductHandler) Restock(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, ok := h.parseProductID(w, r)
	if !ok {
		return
	}

	var req RestockRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := req.Validate(); err != nil {
		h.respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	batch := &domain.StockBatch{
		ProductID: id,
		Remaining: req.Quantity,
		Cost:      req.Cost,
	}
	if req.Price != nil {
		batch.Price = *req.Price
	}

	created, err := h.service.Restock(ctx, batch)
	if err != nil {
		if isNotFound(err) {
			h.respondError(w, http.StatusNotFound, "Product not found")
			return
		}
		h.logger.ErrorContext(ctx, "failed to restock product",
			slog.String("product_id", id.String()),
			slog.String("error", err.Error()))
		h.respondError(w, http.StatusInternalServerError, "Failed to restock product")
		return
	}

	redis_a.InvalidateProducts(ctx, h.cache, h.logger)

	h.respondJSON(w, http.StatusCreated, created)
}

// UploadImage handles POST /api/v1/products/{id}/image. The image goes
// to object storage; the stored key is saved on the product and a
// short-lived presigned URL is returned.
func (h *ProductHandler) UploadImage(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, ok := h.parseProductID(w, r)
	if !ok {
		return
	}

	if err := r.ParseMultipartForm(maxImageSize); err != nil {
		h.respondError(w, http.StatusBadRequest, "Failed to parse form data")
		return
	}

	file, header, err := r.FormFile("image")
	if err != nil {
		h.respondError(w, http.StatusBadRequest, "Image file is required")
		return
	}
	defer file.Close()

	contentType := header.Header.Get("Content-Type")
	if !strings.HasPrefix(contentType, "image/") {
		h.respondError(w, http.StatusBadRequest, "Only image files are allowed")
		return
	}

	product, err := h.service.GetByID(ctx, id)
	if err != nil {
		if isNotFound(err) {
			h.respondError(w, http.StatusNotFound, "Product not found")
			return
		}
		h.respondError(w, http.StatusInternalServerError, "Failed to load product")
		return
	}

	key := storage.ProductImageKey(id, header.Filename)
	if _, err := h.storage.Upload(ctx, key, file, contentType); err != nil {
		h.logger.ErrorContext(ctx, "failed to upload product image",
			slog.String("product_id", id.String()),
			slog.String("error", err.Error()))
		h.respondError(w, http.StatusInternalServerError, "Failed to upload image")
		return
	}

	product.ImageURL = key
	if err := h.service.UpdateProduct(ctx, id, product); err != nil {
		h.logger.ErrorContext(ctx, "failed to save image key",
			slog.String("product_id", id.String()),
			slog.String("error", err.Error()))
		h.respondError(w, http.StatusInternalServerError, "Failed to save image")
		return
	}

	url, err := h.storage.GetPresignedURL(ctx, key, 15*time.Minute)
	if err != nil {
		h.logger.WarnContext(ctx, "failed to presign image URL",
			slog.String("key", key),
			slog.String("error", err.Error()))
	}

	redis_a.InvalidateProducts(ctx, h.cache, h.logger)

	h.respondJSON(w, http.StatusCreated, map[string]string{
		"key": key,
		"url": url,
	})
}

// GetImage handles GET /api/v1/products/{id}/image and redirects to a
// presigned URL.
func (h *ProductHandler) GetImage(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, ok := h.parseProductID(w, r)
	if !ok {
		return
	}

	product, err := h.service.GetByID(ctx, id)
	if err != nil {
		if isNotFound(err) {
			h.respondError(w, http.StatusNotFound, "Product not found")
			return
		}
		h.respondError(w, http.StatusInternalServerError, "Failed to load product")
		return
	}
	if product.ImageURL == "" {
		h.respondError(w, http.StatusNotFound, "Product has no image")
		return
	}

	url, err := h.storage.GetPresignedURL(ctx, product.ImageURL, 15*time.Minute)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to presign image URL",
			slog.String("key", product.ImageURL),
			slog.String("error", err.Error()))
		h.respondError(w, http.StatusInternalServerError, "Failed to resolve image")
		return
	}

	http.Redirect(w, r, url, http.StatusTemporaryRedirect)
}

// parseListParams parses query parameters for listing products
func (h *ProductHandler) parseListParams(r *http.Request) ports.ProductListParams {
	params := ports.ProductListParams{
		SortBy:    "created_at",
		SortOrder: "desc",
		Page:      1,
		PageSize:  50,
	}

	q := r.URL.Query()
	params.Search = q.Get("search")

	if raw := q.Get("category_id"); raw != "" {
		if id, err := uuid.Parse(raw); err == nil {
			params.CategoryID = &id
		}
	}

	if raw := q.Get("in_stock"); raw != "" {
		if val, err := strconv.ParseBool(raw); err == nil {
			params.InStock = &val
		}
	}

	if sortBy := q.Get("sort"); sortBy != "" {
		params.SortBy = sortBy
	}
	if order := q.Get("order"); order == "asc" || order == "desc" {
		params.SortOrder = order
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

func (h *ProductHandler) parseProductID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		h.respondError(w, http.StatusBadRequest, "Invalid product ID format")
		return uuid.Nil, false
	}
	return id, true
}

// isNotFound matches the service layer's not-found errors.
func isNotFound(err error) bool {
	return err != nil && strings.Contains(err.Error(), "not found")
}

// Helper methods

func (h *ProductHandler) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to encode JSON response",
			slog.String("error", err.Error()))
	}
}

func (h *ProductHandler) respondError(w http.ResponseWriter, status int, message string) {
	h.respondJSON(w, status, map[string]string{"error": message})
}

// Request/Response DTOs

// ProductRequest represents the request body for creating or updating
// a product.
type ProductRequest struct {
	Name            string          `json:"name"`
	Description     string          `json:"description,omitempty"`
	CategoryID      *uuid.UUID      `json:"category_id,omitempty"`
	Price           decimal.Decimal `json:"price"`
	Cost            decimal.Decimal `json:"cost"`
	InitialQuantity int             `json:"initial_quantity,omitempty"`
}

// Validate validates the product request
func (r *ProductRequest) Validate() error {
	if r.Name == "" {
		return fmt.Errorf("name is required")
	}
	if r.Price.IsNegative() {
		return fmt.Errorf("price cannot be negative")
	}
	if r.Cost.IsNegative() {
		return fmt.Errorf("cost cannot be negative")
	}
	if r.InitialQuantity < 0 {
		return fmt.Errorf("initial_quantity cannot be negative")
	}
	return nil
}

// ToDomain converts the request to a domain model
func (r *ProductRequest) ToDomain() *domain.Product {
	return &domain.Product{
		Name:        r.Name,
		Description: r.Description,
		CategoryID:  r.CategoryID,
		Price:       r.Price,
		Cost:        r.Cost,
	}
}
