// test/helpers/helpers.go
package helpers

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/ory/dockertest/v3"
	"github.com/ory/dockertest/v3/docker"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/posflow/pos-be/internal/adapters/db"
	"github.com/posflow/pos-be/internal/core/domain"
	"github.com/posflow/pos-be/internal/pkg/config"
	"github.com/posflow/pos-be/internal/pkg/logger"
)

// TestDB bundles a dockertest Postgres container with the pool and
// wrapper the repositories expect.
type TestDB struct {
	PgxPool  *pgxpool.Pool
	Database *db.Database
	Resource *dockertest.Resource
	Pool     *dockertest.Pool
	Config   *db.Config
}

// TestRedis bundles a miniredis server with a client pointed at it.
type TestRedis struct {
	Client *redis.Client
	Server *miniredis.Miniredis
}

// TestLogger returns a quiet slog logger, verbose under -v.
func TestLogger() *slog.Logger {
	if testing.Verbose() {
		return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
			Level: slog.LevelDebug,
		}))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelError,
	}))
}

// TestAppLogger returns the wrapped application logger for components
// that need context-aware logging.
func TestAppLogger() *logger.Logger {
	if testing.Verbose() {
		return logger.SetupLogger("debug", "text")
	}
	return logger.SetupLogger("error", "text")
}

// SetupTestDB starts a throwaway Postgres 16 container, waits for it
// to accept connections and applies the embedded migrations. The
// container is purged when the test finishes.
func SetupTestDB(t *testing.T) *TestDB {
	t.Helper()

	pool, err := dockertest.NewPool("")
	require.NoError(t, err, "Could not connect to Docker")

	resource, err := pool.RunWithOptions(&dockertest.RunOptions{
		Repository: "postgres",
		Tag:        "16-alpine",
		Env: []string{
			"POSTGRES_USER=test",
			"POSTGRES_PASSWORD=test",
			"POSTGRES_DB=test_pos",
			"listen_addresses = '*'",
		},
	}, func(config *docker.HostConfig) {
		config.AutoRemove = true
		config.RestartPolicy = docker.RestartPolicy{Name: "no"}
	})
	require.NoError(t, err, "Could not start PostgreSQL container")

	t.Cleanup(func() {
		if err := pool.Purge(resource); err != nil {
			t.Logf("Could not purge resource: %s", err)
		}
	})

	dbConfig := &db.Config{
		Host:               "localhost",
		Port:               resource.GetPort("5432/tcp"),
		User:               "test",
		Password:           "test",
		Database:           "test_pos",
		SSLMode:            "disable",
		MaxConnections:     5,
		MinConnections:     1,
		MaxConnLifetime:    time.Hour,
		MaxConnIdleTime:    time.Minute * 30,
		HealthCheckPeriod:  time.Minute,
		ConnectTimeout:     time.Second * 10,
		StatementCacheMode: "describe",
		EnableQueryLogging: testing.Verbose(),
	}

	var database *db.Database
	err = pool.Retry(func() error {
		ctx := context.Background()
		var err error
		database, err = db.NewDatabase(ctx, dbConfig, TestLogger())
		if err != nil {
			return err
		}
		return database.Ping(ctx)
	})
	require.NoError(t, err, "Could not connect to PostgreSQL")

	ctx := context.Background()
	migrationConfig := &db.MigrationConfig{
		DatabaseURL: fmt.Sprintf("postgresql://%s:%s@%s:%s/%s?sslmode=%s",
			dbConfig.User, dbConfig.Password, dbConfig.Host, dbConfig.Port,
			dbConfig.Database, dbConfig.SSLMode),
		EmbeddedSource: db.EmbeddedMigrations,
		UseEmbedded:    true,
		TableName:      "schema_migrations",
		SchemaName:     "public",
	}

	err = db.RunMigrationsWithRetry(ctx, migrationConfig, TestLogger(), 3)
	require.NoError(t, err, "Could not run migrations")

	return &TestDB{
		PgxPool:  database.Pool(),
		Database: database,
		Resource: resource,
		Pool:     pool,
		Config:   dbConfig,
	}
}

// SetupTestRedis starts an in-process miniredis for cache tests.
func SetupTestRedis(t *testing.T) *TestRedis {
	t.Helper()

	mr := miniredis.RunT(t)

	client := redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})

	t.Cleanup(func() {
		client.Close()
		mr.Close()
	})

	return &TestRedis{
		Client: client,
		Server: mr,
	}
}

// LoadTestConfig returns a config suitable for tests: local
// endpoints, permissive security, PHP currency with 12% tax.
func LoadTestConfig() *config.Config {
	return &config.Config{
		App: config.AppConfig{
			Name:        "test-api",
			Environment: "test",
			Version:     "test",
			LogLevel:    "debug",
			LogFormat:   "text",
			Debug:       true,
		},
		POS: config.POSConfig{
			DefaultTaxRatePercent: 12.0,
			SessionIdleTimeout:    2 * time.Hour,
			LowStockThreshold:     10,
			Currency:              "PHP",
		},
		Database: config.DatabaseConfig{
			Host:               "localhost",
			Port:               "5432",
			User:               "test",
			Password:           "test",
			Name:               "test_pos",
			SSLMode:            "disable",
			MaxConnections:     10,
			MinConnections:     2,
			EnableQueryLogging: true,
		},
		Redis: config.RedisConfig{
			Host:     "localhost",
			Port:     "6379",
			DB:       0,
			TTL:      time.Hour,
			PoolSize: 10,
		},
		FileProcessing: config.FileProcessingConfig{
			PDFMaxSizeMB:      50,
			ExcelMaxSizeMB:    100,
			ProcessingTimeout: 5 * time.Minute,
			TempDir:           "/tmp",
		},
		Security: config.SecurityConfig{
			JWTSecret:         "test-secret",
			JWTExpiration:     24 * time.Hour,
			RateLimitRequests: 100,
			RateLimitDuration: time.Minute,
			AllowedOrigins:    []string{"*"},
			SecureHeaders:     false,
		},
		Server: config.ServerConfig{
			Host:              "localhost",
			Port:              "8080",
			ReadTimeout:       15 * time.Second,
			WriteTimeout:      15 * time.Second,
			EnableHealthCheck: true,
		},
	}
}

// CreateTestProduct builds a catalog product with sensible defaults.
// Pass overrides to tweak individual fields.
func CreateTestProduct(overrides ...func(*domain.Product)) *domain.Product {
	product := &domain.Product{
		ID:            uuid.New(),
		Name:          "House Blend 250g",
		Description:   "Medium roast, whole beans",
		Price:         decimal.NewFromFloat(145.00),
		Cost:          decimal.NewFromFloat(82.00),
		StockQuantity: 0,
		CreatedAt:     time.Now(),
		UpdatedAt:     time.Now(),
	}

	for _, override := range overrides {
		override(product)
	}

	product.InStock = product.StockQuantity > 0
	return product
}

// CreateTestBatch builds a stock batch for a product.
func CreateTestBatch(productID uuid.UUID, remaining int, overrides ...func(*domain.StockBatch)) *domain.StockBatch {
	batch := &domain.StockBatch{
		ID:        uuid.New(),
		ProductID: productID,
		Remaining: remaining,
		Cost:      decimal.NewFromFloat(82.00),
		Price:     decimal.NewFromFloat(145.00),
		CreatedAt: time.Now(),
	}

	for _, override := range overrides {
		override(batch)
	}

	return batch
}

// SeedProducts inserts products with raw SQL, bypassing the service
// layer so tests control exactly what is in the catalog.
func SeedProducts(t *testing.T, pool *pgxpool.Pool, products []domain.Product) {
	t.Helper()

	ctx := context.Background()

	for i := range products {
		p := &products[i]
		query := `
			INSERT INTO products (
				id, name, description, category_id, price, cost,
				image_url, stock_quantity, in_stock, created_at, updated_at
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		`

		_, err := pool.Exec(ctx, query,
			p.ID, p.Name, p.Description, p.CategoryID, p.Price, p.Cost,
			p.ImageURL, p.StockQuantity, p.InStock, p.CreatedAt, p.UpdatedAt,
		)
		require.NoError(t, err, "Failed to seed product")
	}
}

// SeedBatches inserts stock batches with raw SQL.
func SeedBatches(t *testing.T, pool *pgxpool.Pool, batches []domain.StockBatch) {
	t.Helper()

	ctx := context.Background()

	for i := range batches {
		b := &batches[i]
		query := `
			INSERT INTO stock_batches (
				id, product_id, quantity_remaining, cost, price, created_at
			) VALUES ($1, $2, $3, $4, $5, $6)
		`

		_, err := pool.Exec(ctx, query,
			b.ID, b.ProductID, b.Remaining, b.Cost, b.Price, b.CreatedAt,
		)
		require.NoError(t, err, "Failed to seed stock batch")
	}
}

// TruncateAllTables wipes every table between test cases. Order
// follows foreign keys, children first.
func TruncateAllTables(t *testing.T, db *pgxpool.Pool) {
	t.Helper()

	ctx := context.Background()
	tables := []string{
		"transaction_items",
		"transactions",
		"stock_batches",
		"products",
		"categories",
		"daily_sales",
	}

	for _, table := range tables {
		_, err := db.Exec(ctx, fmt.Sprintf("TRUNCATE TABLE %s CASCADE", table))
		require.NoError(t, err, "Failed to truncate table: %s", table)
	}
}

// AssertEventuallyWithTimeout polls condition until it holds or the
// timeout passes.
func AssertEventuallyWithTimeout(t *testing.T, condition func() bool, timeout time.Duration, msg string) {
	t.Helper()

	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if condition() {
			return
		}
		time.Sleep(100 * time.Millisecond)
	}

	t.Errorf("Condition not met within %v: %s", timeout, msg)
}
