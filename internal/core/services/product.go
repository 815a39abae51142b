// internal/core/services/product.go
package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/posflow/pos-be/internal/core/domain"
	"github.com/posflow/pos-be/internal/core/ports"
)

// ProductService handles catalog business logic. Stock arrives only as
// batches: creating a product with an initial quantity and restocking
// both insert a StockBatch row, which the POS ledger later consumes in
// FIFO order.
type ProductService struct {
	repo   ports.ProductRepository
	store  ports.SaleStore
	logger *slog.Logger
}

// NewProductService creates a new product service
func NewProductService(repo ports.ProductRepository, store ports.SaleStore, logger *slog.Logger) *ProductService {
	return &ProductService{
		repo:   repo,
		store:  store,
		logger: logger.With(slog.String("service", "product")),
	}
}

// SaveProduct creates a product. When initialQuantity is positive the
// first stock batch is created alongside, priced at the catalog
// price/cost.
func (s *ProductService) SaveProduct(ctx context.Context, product *domain.Product, initialQuantity int) error {
	if initialQuantity < 0 {
		return fmt.Errorf("initial quantity cannot be negative")
	}

	product.StockQuantity = initialQuantity
	if err := product.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}
	product.PrepareForStorage()

	if err := s.repo.Save(ctx, product); err != nil {
		return fmt.Errorf("failed to save product: %w", err)
	}

	if initialQuantity > 0 {
		batch := &domain.StockBatch{
			ProductID: product.ID,
			Remaining: initialQuantity,
			Cost:      product.Cost,
			Price:     product.Price,
		}
		batch.PrepareForStorage()
		if err := s.store.InsertStockBatch(ctx, batch); err != nil {
			return fmt.Errorf("failed to create initial stock batch: %w", err)
		}
	}

	s.logger.InfoContext(ctx, "product created",
		slog.String("product_id", product.ID.String()),
		slog.String("name", product.Name),
		slog.Int("initial_quantity", initialQuantity))

	return nil
}

// UpdateProduct updates catalog fields. Stock levels are not editable
// here; they move only through restock and checkout.
func (s *ProductService) UpdateProduct(ctx context.Context, id uuid.UUID, product *domain.Product) error {
	product.ID = id

	existing, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to load product: %w", err)
	}
	if existing == nil {
		return fmt.Errorf("product not found: %s", id)
	}

	product.StockQuantity = existing.StockQuantity
	if err := product.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	if err := s.repo.Update(ctx, product); err != nil {
		return fmt.Errorf("failed to update product: %w", err)
	}

	s.logger.InfoContext(ctx, "product updated",
		slog.String("product_id", id.String()))

	return nil
}

// GetByID retrieves a product by ID
func (s *ProductService) GetByID(ctx context.Context, id uuid.UUID) (*domain.Product, error) {
	product, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get product: %w", err)
	}
	if product == nil {
		return nil, fmt.Errorf("product not found: %s", id)
	}
	return product, nil
}

// List retrieves products with filtering
func (s *ProductService) List(ctx context.Context, params ports.ProductListParams) ([]domain.Product, error) {
	products, err := s.repo.FindAll(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("failed to list products: %w", err)
	}
	return products, nil
}

// DeleteProduct soft deletes a product. Its batches and past
// transaction items stay untouched as historical records.
func (s *ProductService) DeleteProduct(ctx context.Context, id uuid.UUID) error {
	exists, err := s.repo.Exists(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to check product existence: %w", err)
	}
	if !exists {
		return fmt.Errorf("product not found: %s", id)
	}

	if err := s.repo.SoftDelete(ctx, id); err != nil {
		return fmt.Errorf("failed to delete product: %w", err)
	}

	s.logger.InfoContext(ctx, "product deleted",
		slog.String("product_id", id.String()))

	return nil
}

// ListCategories returns all product categories
func (s *ProductService) ListCategories(ctx context.Context) ([]domain.Category, error) {
	return s.repo.ListCategories(ctx)
}

// Restock receives new stock as a fresh batch and bumps the product's
// aggregate stock counter. The read-then-write on the counter is not
// atomic across processes, matching the checkout side.
func (s *ProductService) Restock(ctx context.Context, batch *domain.StockBatch) (*domain.StockBatch, error) {
	if batch.Remaining <= 0 {
		return nil, fmt.Errorf("restock quantity must be positive")
	}
	if err := batch.Validate(); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}

	product, err := s.repo.FindByID(ctx, batch.ProductID)
	if err != nil {
		return nil, fmt.Errorf("failed to load product: %w", err)
	}
	if product == nil {
		return nil, fmt.Errorf("product not found: %s", batch.ProductID)
	}

	batch.PrepareForStorage()
	if err := s.store.InsertStockBatch(ctx, batch); err != nil {
		return nil, fmt.Errorf("failed to insert stock batch: %w", err)
	}

	stock, err := s.store.ReadProductStock(ctx, batch.ProductID)
	if err != nil {
		return nil, fmt.Errorf("failed to read product stock: %w", err)
	}
	if err := s.store.WriteProductStock(ctx, batch.ProductID, stock+batch.Remaining); err != nil {
		return nil, fmt.Errorf("failed to write product stock: %w", err)
	}

	s.logger.InfoContext(ctx, "product restocked",
		slog.String("product_id", batch.ProductID.String()),
		slog.String("batch_id", batch.ID.String()),
		slog.Int("quantity", batch.Remaining))

	return batch, nil
}
