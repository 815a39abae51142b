package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"github.com/tealeg/xlsx/v3"

	"github.com/posflow/pos-be/internal/adapters/db"
)

// seedProduct is one catalog row to be inserted, either from the
// built-in demo data or from a spreadsheet.
type seedProduct struct {
	Name        string
	Description string
	Category    string
	Price       decimal.Decimal
	Cost        decimal.Decimal
	Quantity    int
}

// demoCatalog seeds a small cafe setup for development environments.
var demoCatalog = []seedProduct{
	{"House Blend 250g", "Medium roast, whole beans", "Coffee", dec("145.00"), dec("82.00"), 40},
	{"Arabica Beans 1kg", "Single origin, light roast", "Coffee", dec("520.00"), dec("310.00"), 24},
	{"Espresso Shot", "Double shot", "Beverages", dec("95.00"), dec("28.00"), 0},
	{"Cafe Latte 12oz", "Espresso with steamed milk", "Beverages", dec("140.00"), dec("46.00"), 0},
	{"Iced Tea 16oz", "House brewed, lightly sweetened", "Beverages", dec("85.00"), dec("22.00"), 0},
	{"Oat Milk 1L", "Barista edition", "Supplies", dec("145.00"), dec("82.50"), 36},
	{"Paper Cups 12oz", "Pack of 50", "Supplies", dec("210.00"), dec("120.00"), 18},
	{"Butter Croissant", "Baked daily", "Pastries", dec("75.00"), dec("32.00"), 25},
	{"Banana Bread Slice", "With walnuts", "Pastries", dec("65.00"), dec("24.00"), 20},
	{"Tote Bag", "Canvas, shop logo", "Merchandise", dec("250.00"), dec("95.00"), 12},
	{"Ceramic Mug", "350ml, shop logo", "Merchandise", dec("320.00"), dec("140.00"), 15},
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

// seeder inserts catalog rows and their opening stock batches.
type seeder struct {
	db     *pgxpool.Pool
	logger *slog.Logger
	dryRun bool
}

// loadCatalogFile reads products from a spreadsheet with columns
// name, description, category, price, cost, quantity. The first row
// is treated as a header.
func loadCatalogFile(path string, logger *slog.Logger) ([]seedProduct, error) {
	file, err := xlsx.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open catalog file: %w", err)
	}
	if len(file.Sheets) == 0 {
		return nil, fmt.Errorf("no sheets found in catalog file")
	}
	sheet := file.Sheets[0]

	var products []seedProduct
	rowIdx := 0
	err = sheet.ForEachRow(func(r *xlsx.Row) error {
		// Skip header
		if rowIdx == 0 {
			rowIdx++
			return nil
		}
		rowIdx++

		get := func(i int) string {
			c := r.GetCell(i)
			if c == nil {
				return ""
			}
			if s, err := c.FormattedValue(); err == nil {
				return strings.TrimSpace(s)
			}
			return strings.TrimSpace(c.String())
		}

		name := get(0)
		if name == "" {
			return nil
		}

		price, err := decimal.NewFromString(get(3))
		if err != nil {
			logger.Warn("skipping row with invalid price",
				slog.Int("row", rowIdx),
				slog.String("name", name))
			return nil
		}
		cost, err := decimal.NewFromString(get(4))
		if err != nil {
			cost = decimal.Zero
		}
		quantity, _ := strconv.Atoi(get(5))

		products = append(products, seedProduct{
			Name:        name,
			Description: get(1),
			Category:    get(2),
			Price:       price,
			Cost:        cost,
			Quantity:    quantity,
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to iterate rows: %w", err)
	}

	logger.Info("loaded catalog file",
		slog.String("path", path),
		slog.Int("products", len(products)))
	return products, nil
}

// seedCategories inserts the distinct category names and returns
// their ids keyed by name.
func (s *seeder) seedCategories(ctx context.Context, products []seedProduct) (map[string]uuid.UUID, error) {
	ids := make(map[string]uuid.UUID)

	for _, p := range products {
		if p.Category == "" {
			continue
		}
		if _, ok := ids[p.Category]; ok {
			continue
		}
		ids[p.Category] = uuid.New()
	}

	if s.dryRun {
		return ids, nil
	}

	for name, id := range ids {
		var existing uuid.UUID
		err := s.db.QueryRow(ctx,
			`INSERT INTO categories (id, name) VALUES ($1, $2)
			 ON CONFLICT (name) DO UPDATE SET name = EXCLUDED.name
			 RETURNING id`,
			id, name,
		).Scan(&existing)
		if err != nil {
			return nil, fmt.Errorf("failed to insert category %q: %w", name, err)
		}
		ids[name] = existing
	}

	s.logger.Info("seeded categories", slog.Int("count", len(ids)))
	return ids, nil
}

// seedProducts batch inserts products and an opening stock batch for
// every product with a nonzero quantity.
func (s *seeder) seedProducts(ctx context.Context, products []seedProduct, categoryIDs map[string]uuid.UUID) (int, int, error) {
	if s.dryRun {
		batches := 0
		for _, p := range products {
			if p.Quantity > 0 {
				batches++
			}
		}
		return len(products), batches, nil
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	batch := &pgx.Batch{}
	batchCount := 0
	now := time.Now()

	for _, p := range products {
		productID := uuid.New()

		var categoryID *uuid.UUID
		if id, ok := categoryIDs[p.Category]; ok {
			categoryID = &id
		}

		batch.Queue(`
			INSERT INTO products (
				id, name, description, category_id, price, cost,
				stock_quantity, in_stock, created_at, updated_at
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
			productID, p.Name, p.Description, categoryID, p.Price, p.Cost,
			p.Quantity, p.Quantity > 0, now, now,
		)

		if p.Quantity > 0 {
			batch.Queue(`
				INSERT INTO stock_batches (
					id, product_id, quantity_remaining, cost, price, created_at
				) VALUES ($1, $2, $3, $4, $5, $6)`,
				uuid.New(), productID, p.Quantity, p.Cost, p.Price, now,
			)
			batchCount++
		}
	}

	br := tx.SendBatch(ctx, batch)
	for i := 0; i < batch.Len(); i++ {
		if _, err := br.Exec(); err != nil {
			br.Close()
			return 0, 0, fmt.Errorf("failed to insert row: %w", err)
		}
	}
	if err := br.Close(); err != nil {
		return 0, 0, fmt.Errorf("failed to close batch results: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, 0, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return len(products), batchCount, nil
}

// hasProducts reports whether the catalog already contains live rows.
func (s *seeder) hasProducts(ctx context.Context) (bool, error) {
	var count int
	err := s.db.QueryRow(ctx,
		`SELECT COUNT(*) FROM products WHERE deleted_at IS NULL`,
	).Scan(&count)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func main() {
	// Parse flags
	var (
		catalogFile = flag.String("catalog", "", "Spreadsheet with products to seed (optional)")
		skipMigrate = flag.Bool("skip-migrate", false, "Skip running database migrations")
		logLevel    = flag.String("log-level", "info", "Log level (debug, info, warn, error)")
		dryRun      = flag.Bool("dry-run", false, "Preview changes without modifying database")
		force       = flag.Bool("force", false, "Seed even if products already exist")
	)
	flag.Parse()

	// Setup logging
	var slogLevel slog.Level
	switch *logLevel {
	case "debug":
		slogLevel = slog.LevelDebug
	case "warn":
		slogLevel = slog.LevelWarn
	case "error":
		slogLevel = slog.LevelError
	default:
		slogLevel = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level: slogLevel,
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, opts))
	slog.SetDefault(logger)

	// Database connection
	dbURL := fmt.Sprintf("postgresql://%s:%s@%s:%s/%s?sslmode=%s",
		getEnv("DB_USER", "posflow"),
		getEnv("DB_PASSWORD", "posflow_dev_2025"),
		getEnv("DB_HOST", "localhost"),
		getEnv("DB_PORT", "5432"),
		getEnv("DB_NAME", "posflow"),
		getEnv("DB_SSL_MODE", "disable"),
	)

	ctx := context.Background()

	if !*skipMigrate && !*dryRun {
		migrationConfig := &db.MigrationConfig{
			DatabaseURL:    dbURL,
			EmbeddedSource: db.EmbeddedMigrations,
			UseEmbedded:    true,
			TableName:      "schema_migrations",
			SchemaName:     "public",
		}
		if err := db.RunMigrationsWithRetry(ctx, migrationConfig, logger, 3); err != nil {
			logger.Error("failed to run migrations", slog.String("error", err.Error()))
			os.Exit(1)
		}
	}

	var pool *pgxpool.Pool
	var err error

	if !*dryRun {
		pool, err = pgxpool.New(ctx, dbURL)
		if err != nil {
			logger.Error("failed to connect to database", slog.String("error", err.Error()))
			os.Exit(1)
		}
		defer pool.Close()
	}

	s := &seeder{db: pool, logger: logger, dryRun: *dryRun}

	// Refuse to double-seed unless forced
	if !*dryRun && !*force {
		seeded, err := s.hasProducts(ctx)
		if err != nil {
			logger.Error("failed to check existing products", slog.String("error", err.Error()))
			os.Exit(1)
		}
		if seeded {
			fmt.Println("Products already exist; use -force to seed anyway")
			return
		}
	}

	// Pick the catalog source
	products := demoCatalog
	source := "built-in demo catalog"
	if *catalogFile != "" {
		products, err = loadCatalogFile(*catalogFile, logger)
		if err != nil {
			logger.Error("failed to load catalog file", slog.String("error", err.Error()))
			os.Exit(1)
		}
		source = *catalogFile
	}

	if len(products) == 0 {
		fmt.Println("Nothing to seed")
		return
	}

	categoryIDs, err := s.seedCategories(ctx, products)
	if err != nil {
		logger.Error("failed to seed categories", slog.String("error", err.Error()))
		os.Exit(1)
	}

	productCount, batchCount, err := s.seedProducts(ctx, products, categoryIDs)
	if err != nil {
		logger.Error("failed to seed products", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Summary
	fmt.Println("\n" + strings.Repeat("=", 60))
	fmt.Println("SEEDING SUMMARY")
	fmt.Println(strings.Repeat("=", 60))
	fmt.Printf("Source:         %s\n", source)
	fmt.Printf("Categories:     %d\n", len(categoryIDs))
	fmt.Printf("Products:       %d\n", productCount)
	fmt.Printf("Stock batches:  %d\n", batchCount)

	logger.Info("seed operation completed",
		slog.Int("categories", len(categoryIDs)),
		slog.Int("products", productCount),
		slog.Int("stock_batches", batchCount))

	if *dryRun {
		fmt.Println("\n[DRY RUN] No changes were made to the database")
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
