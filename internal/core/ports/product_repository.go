// internal/core/ports/product_repository.go
package ports

import (
	"context"

	"github.com/posflow/pos-be/internal/core/domain"
	"github.com/google/uuid"
)

// ProductRepository defines the persistence port for the product
// catalog. This interface is implemented by the database adapter.
type ProductRepository interface {
	Save(ctx context.Context, product *domain.Product) error
	Update(ctx context.Context, product *domain.Product) error
	FindByID(ctx context.Context, id uuid.UUID) (*domain.Product, error)
	FindAll(ctx context.Context, params ProductListParams) ([]domain.Product, error)
	SoftDelete(ctx context.Context, id uuid.UUID) error
	Exists(ctx context.Context, id uuid.UUID) (bool, error)
	ListCategories(ctx context.Context) ([]domain.Category, error)
}

// ProductListParams holds parameters for listing products
type ProductListParams struct {
	Search     string
	CategoryID *uuid.UUID
	InStock    *bool
	SortBy     string
	SortOrder  string
	Page       int
	PageSize   int
}
