// internal/workers/pdf_processor.go
package workers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/hibiken/asynq"
	"github.com/ledongthuc/pdf"
	"github.com/shopspring/decimal"

	"github.com/posflow/pos-be/internal/adapters/storage"
	"github.com/posflow/pos-be/internal/core/domain"
	"github.com/posflow/pos-be/internal/core/ports"
)

// ProductCatalog is the slice of the product service the delivery note
// worker needs: looking up products by name and receiving stock.
type ProductCatalog interface {
	List(ctx context.Context, params ports.ProductListParams) ([]domain.Product, error)
	Restock(ctx context.Context, batch *domain.StockBatch) (*domain.StockBatch, error)
}

// DeliveryNoteProcessor turns supplier delivery note PDFs into stock
// batches. Each parsed line becomes one batch priced at the delivered
// unit cost, keeping the product's current sell price.
type DeliveryNoteProcessor struct {
	catalog ProductCatalog
	storage storage.StorageClient
	logger  *slog.Logger
}

// NewDeliveryNoteProcessor creates a new delivery note processor
func NewDeliveryNoteProcessor(catalog ProductCatalog, storageClient storage.StorageClient, logger *slog.Logger) *DeliveryNoteProcessor {
	return &DeliveryNoteProcessor{
		catalog: catalog,
		storage: storageClient,
		logger:  logger.With(slog.String("processor", "delivery_note")),
	}
}

// ProcessDeliveryNote downloads the PDF from object storage, extracts
// delivery lines and restocks the matched products.
func (p *DeliveryNoteProcessor) ProcessDeliveryNote(ctx context.Context, t *asynq.Task) error {
	start := time.Now()

	var payload DeliveryNotePayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("failed to unmarshal payload: %w", err)
	}

	p.logger.InfoContext(ctx, "processing delivery note",
		slog.String("job_id", payload.JobID.String()),
		slog.String("supplier", payload.Supplier),
		slog.String("storage_key", payload.StorageKey))

	data, err := p.storage.Download(ctx, payload.StorageKey)
	if err != nil {
		return fmt.Errorf("failed to download delivery note: %w", err)
	}

	lines, err := p.extractDeliveryLines(ctx, data)
	if err != nil {
		return fmt.Errorf("failed to extract delivery lines: %w", err)
	}

	result := DeliveryNoteResult{LinesParsed: len(lines)}

	for _, line := range lines {
		product, err := p.matchProduct(ctx, line.name)
		if err != nil {
			return fmt.Errorf("failed to match product %q: %w", line.name, err)
		}
		if product == nil {
			result.Skipped = append(result.Skipped, fmt.Sprintf("%s: no matching product", line.name))
			continue
		}

		batch := &domain.StockBatch{
			ProductID: product.ID,
			Remaining: line.quantity,
			Cost:      line.unitCost,
			Price:     product.Price,
		}
		if _, err := p.catalog.Restock(ctx, batch); err != nil {
			result.Skipped = append(result.Skipped, fmt.Sprintf("%s: %v", line.name, err))
			continue
		}
		result.BatchesCreated++
	}

	result.ProcessingTime = time.Since(start).String()

	if resultJSON, err := json.Marshal(result); err == nil {
		if w := t.ResultWriter(); w != nil {
			_, _ = w.Write(resultJSON)
		}
	}

	if result.LinesParsed > 0 && result.BatchesCreated == 0 {
		p.logger.WarnContext(ctx, "delivery note produced no stock batches",
			slog.String("job_id", payload.JobID.String()),
			slog.Int("lines_parsed", result.LinesParsed))
	}

	p.logger.InfoContext(ctx, "delivery note processed",
		slog.String("job_id", payload.JobID.String()),
		slog.Int("lines_parsed", result.LinesParsed),
		slog.Int("batches_created", result.BatchesCreated),
		slog.Int("skipped", len(result.Skipped)))

	return nil
}

type deliveryLine struct {
	name     string
	quantity int
	unitCost decimal.Decimal
}

// extractDeliveryLines pulls the plain text out of every page and
// parses the item table.
func (p *DeliveryNoteProcessor) extractDeliveryLines(ctx context.Context, data []byte) ([]deliveryLine, error) {
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("failed to open PDF: %w", err)
	}

	var textLines []string
	totalPages := reader.NumPage()

	for pageNum := 1; pageNum <= totalPages; pageNum++ {
		page := reader.Page(pageNum)
		if page.V.IsNull() {
			continue
		}

		text, err := page.GetPlainText(nil)
		if err != nil {
			p.logger.WarnContext(ctx, "failed to extract text from page",
				slog.Int("page", pageNum),
				slog.String("error", err.Error()))
			continue
		}

		textLines = append(textLines, strings.Split(text, "\n")...)
	}

	return p.parseDeliveryLines(textLines), nil
}

// parseDeliveryLines scans for rows of the form
// "<product name> <qty> x <unit cost>" between the table header and
// the totals footer.
func (p *DeliveryNoteProcessor) parseDeliveryLines(lines []string) []deliveryLine {
	var items []deliveryLine

	headerRe := regexp.MustCompile(`(?i)(ITEM.*QTY.*(COST|PRICE)|DESCRIPTION.*QUANTITY)`)
	footerRe := regexp.MustCompile(`(?i)^\s*(TOTAL|GRAND TOTAL|RECEIVED BY|SIGNATURE)`)
	lineRe := regexp.MustCompile(`^(.+?)\s+(\d+)\s*[x@]\s*\$?\s*(\d{1,3}(?:,\d{3})*\.\d{2})\s*$`)

	startIdx := 0
	for i, line := range lines {
		if headerRe.MatchString(line) {
			startIdx = i + 1
			break
		}
	}

	for i := startIdx; i < len(lines); i++ {
		line := strings.TrimSpace(lines[i])
		if line == "" {
			continue
		}
		if footerRe.MatchString(line) {
			break
		}

		m := lineRe.FindStringSubmatch(line)
		if m == nil {
			continue
		}

		quantity, err := strconv.Atoi(m[2])
		if err != nil || quantity <= 0 {
			continue
		}

		name := strings.TrimSpace(m[1])
		if name == "" {
			continue
		}

		items = append(items, deliveryLine{
			name:     name,
			quantity: quantity,
			unitCost: p.parseCurrency(m[3]),
		})
	}

	return items
}

func (p *DeliveryNoteProcessor) parseCurrency(val string) decimal.Decimal {
	cleaned := strings.ReplaceAll(val, "$", "")
	cleaned = strings.ReplaceAll(cleaned, ",", "")
	cleaned = strings.TrimSpace(cleaned)

	d, err := decimal.NewFromString(cleaned)
	if err != nil {
		return decimal.Zero
	}
	return d
}

// matchProduct resolves a delivery line name to a catalog product. Only
// an exact case-insensitive name match counts; a fuzzy hit restocking
// the wrong product is worse than a skipped line.
func (p *DeliveryNoteProcessor) matchProduct(ctx context.Context, name string) (*domain.Product, error) {
	products, err := p.catalog.List(ctx, ports.ProductListParams{
		Search:   name,
		Page:     1,
		PageSize: 10,
	})
	if err != nil {
		return nil, err
	}

	for i := range products {
		if strings.EqualFold(products[i].Name, name) {
			return &products[i], nil
		}
	}

	return nil, nil
}
