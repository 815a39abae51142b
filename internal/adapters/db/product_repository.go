// internal/adapters/db/product_repository.go
package db

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/posflow/pos-be/internal/core/domain"
	"github.com/posflow/pos-be/internal/core/ports"
)

// productRepository implements ports.ProductRepository
type productRepository struct {
	db     *Database
	logger *slog.Logger
}

// NewProductRepository creates a new product repository
func NewProductRepository(db *Database, logger *slog.Logger) ports.ProductRepository {
	return &productRepository{
		db:     db,
		logger: logger.With(slog.String("repository", "product")),
	}
}

const productColumns = `
	p.id, p.name, p.description, p.category_id, c.name,
	p.price, p.cost, p.image_url, p.stock_quantity, p.in_stock,
	p.created_at, p.updated_at`

// Save creates a new product
func (r *productRepository) Save(ctx context.Context, product *domain.Product) error {
	product.PrepareForStorage()
	if err := product.Validate(); err != nil {
		return fmt.Errorf("invalid product: %w", err)
	}

	query := `
		INSERT INTO products (
			id, name, description, category_id, price, cost,
			image_url, stock_quantity, in_stock, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`

	_, err := r.db.Exec(ctx, query,
		product.ID, product.Name, nullString(product.Description), product.CategoryID,
		product.Price, product.Cost, nullString(product.ImageURL),
		product.StockQuantity, product.InStock, product.CreatedAt, product.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save product: %w", err)
	}

	r.logger.DebugContext(ctx, "product saved",
		slog.String("product_id", product.ID.String()),
		slog.String("name", product.Name))

	return nil
}

// Update updates an existing product
func (r *productRepository) Update(ctx context.Context, product *domain.Product) error {
	if err := product.Validate(); err != nil {
		return fmt.Errorf("invalid product: %w", err)
	}
	product.UpdatedAt = time.Now()

	query := `
		UPDATE products SET
			name = $2, description = $3, category_id = $4, price = $5,
			cost = $6, image_url = $7, updated_at = $8
		WHERE id = $1 AND deleted_at IS NULL`

	tag, err := r.db.Exec(ctx, query,
		product.ID, product.Name, nullString(product.Description), product.CategoryID,
		product.Price, product.Cost, nullString(product.ImageURL), product.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update product: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("product not found: %s", product.ID)
	}

	r.logger.DebugContext(ctx, "product updated",
		slog.String("product_id", product.ID.String()))

	return nil
}

// FindByID retrieves a product by ID. Returns nil, nil when no live
// product matches.
func (r *productRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Product, error) {
	query := `
		SELECT` + productColumns + `
		FROM products p
		LEFT JOIN categories c ON c.id = p.category_id
		WHERE p.id = $1 AND p.deleted_at IS NULL`

	product, err := scanProduct(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find product: %w", err)
	}
	return product, nil
}

// FindAll retrieves products with filtering, sorting and pagination.
func (r *productRepository) FindAll(ctx context.Context, params ports.ProductListParams) ([]domain.Product, error) {
	qb := squirrel.Select(
		"p.id", "p.name", "p.description", "p.category_id", "c.name",
		"p.price", "p.cost", "p.image_url", "p.stock_quantity", "p.in_stock",
		"p.created_at", "p.updated_at",
	).From("products p").
		LeftJoin("categories c ON c.id = p.category_id").
		Where("p.deleted_at IS NULL").
		PlaceholderFormat(squirrel.Dollar)

	if params.Search != "" {
		qb = qb.Where("p.name ILIKE ?", "%"+params.Search+"%")
	}
	if params.CategoryID != nil {
		qb = qb.Where(squirrel.Eq{"p.category_id": *params.CategoryID})
	}
	if params.InStock != nil {
		qb = qb.Where(squirrel.Eq{"p.in_stock": *params.InStock})
	}

	orderBy := "p.name ASC"
	if params.SortBy != "" {
		direction := "ASC"
		if params.SortOrder == "desc" {
			direction = "DESC"
		}
		switch params.SortBy {
		case "price":
			orderBy = fmt.Sprintf("p.price %s", direction)
		case "stock":
			orderBy = fmt.Sprintf("p.stock_quantity %s", direction)
		case "created":
			orderBy = fmt.Sprintf("p.created_at %s", direction)
		default:
			orderBy = fmt.Sprintf("p.name %s", direction)
		}
	}
	qb = qb.OrderBy(orderBy)

	if params.PageSize > 0 {
		qb = qb.Limit(uint64(params.PageSize))
		if params.Page > 1 {
			qb = qb.Offset(uint64((params.Page - 1) * params.PageSize))
		}
	}

	sqlQuery, args, err := qb.ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build query: %w", err)
	}

	rows, err := r.db.Query(ctx, sqlQuery, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query products: %w", err)
	}
	defer rows.Close()

	var products []domain.Product
	for rows.Next() {
		product, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan product: %w", err)
		}
		products = append(products, *product)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating products: %w", err)
	}

	return products, nil
}

// SoftDelete marks a product as deleted; its batches and sold lines
// stay untouched for reporting.
func (r *productRepository) SoftDelete(ctx context.Context, id uuid.UUID) error {
	now := time.Now()
	tag, err := r.db.Exec(ctx,
		`UPDATE products SET deleted_at = $2, updated_at = $2 WHERE id = $1 AND deleted_at IS NULL`,
		id, now)
	if err != nil {
		return fmt.Errorf("failed to soft delete product: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("product not found: %s", id)
	}

	r.logger.InfoContext(ctx, "product soft deleted",
		slog.String("product_id", id.String()))

	return nil
}

// Exists checks if a live product exists
func (r *productRepository) Exists(ctx context.Context, id uuid.UUID) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM products WHERE id = $1 AND deleted_at IS NULL)`, id,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check product existence: %w", err)
	}
	return exists, nil
}

// ListCategories returns all categories ordered by name
func (r *productRepository) ListCategories(ctx context.Context) ([]domain.Category, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id, name, created_at FROM categories ORDER BY name ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to query categories: %w", err)
	}
	defer rows.Close()

	var categories []domain.Category
	for rows.Next() {
		var c domain.Category
		if err := rows.Scan(&c.ID, &c.Name, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan category: %w", err)
		}
		categories = append(categories, c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating categories: %w", err)
	}

	return categories, nil
}

// scanProduct reads one product row and validates it before handing it
// to the domain.
func scanProduct(row pgx.Row) (*domain.Product, error) {
	var (
		product      domain.Product
		description  sql.NullString
		categoryName sql.NullString
		imageURL     sql.NullString
	)

	err := row.Scan(
		&product.ID, &product.Name, &description, &product.CategoryID, &categoryName,
		&product.Price, &product.Cost, &imageURL, &product.StockQuantity, &product.InStock,
		&product.CreatedAt, &product.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	product.Description = description.String
	product.CategoryName = categoryName.String
	product.ImageURL = imageURL.String

	if err := product.Validate(); err != nil {
		return nil, fmt.Errorf("invalid product row %s: %w", product.ID, err)
	}

	return &product, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
