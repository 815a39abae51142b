// internal/workers/notifications_processor.go
package workers

import (
	"context"
	"fmt"
	"log/slog"
	"net/smtp"
	"strings"

	"github.com/hibiken/asynq"

	"github.com/posflow/pos-be/internal/core/ports"
	"github.com/posflow/pos-be/internal/pkg/config"
)

// NotificationProcessor raises low stock alerts. The scan runs on a
// schedule rather than per checkout, so a busy hour produces one
// digest instead of a flood.
type NotificationProcessor struct {
	db     ports.Database
	config *config.Config
	logger *slog.Logger
}

// NewNotificationProcessor creates a new notification processor
func NewNotificationProcessor(db ports.Database, cfg *config.Config, logger *slog.Logger) *NotificationProcessor {
	return &NotificationProcessor{
		db:     db,
		config: cfg,
		logger: logger.With(slog.String("processor", "notification")),
	}
}

type lowStockProduct struct {
	name     string
	quantity int
}

// ScanLowStock handles TypeLowStockScan tasks.
func (p *NotificationProcessor) ScanLowStock(ctx context.Context, t *asynq.Task) error {
	threshold := p.config.POS.LowStockThreshold

	query := `
		SELECT name, stock_quantity
		FROM products
		WHERE deleted_at IS NULL
		  AND stock_quantity <= $1
		ORDER BY stock_quantity ASC, name ASC
	`

	rows, err := p.db.Query(ctx, query, threshold)
	if err != nil {
		return fmt.Errorf("failed to scan stock levels: %w", err)
	}
	defer rows.Close()

	var products []lowStockProduct
	for rows.Next() {
		var item lowStockProduct
		if err := rows.Scan(&item.name, &item.quantity); err != nil {
			return fmt.Errorf("failed to scan row: %w", err)
		}
		products = append(products, item)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("failed to read stock levels: %w", err)
	}

	if len(products) == 0 {
		p.logger.InfoContext(ctx, "low stock scan clean",
			slog.Int("threshold", threshold))
		return nil
	}

	p.logger.WarnContext(ctx, "low stock products found",
		slog.Int("count", len(products)),
		slog.Int("threshold", threshold))

	recipient := p.config.Notification.AlertRecipient
	if recipient == "" || p.config.App.Environment == "development" {
		for _, item := range products {
			p.logger.WarnContext(ctx, "low stock",
				slog.String("product", item.name),
				slog.Int("remaining", item.quantity))
		}
		return nil
	}

	if err := p.sendDigest(products, recipient); err != nil {
		return fmt.Errorf("failed to send low stock digest: %w", err)
	}

	p.logger.InfoContext(ctx, "low stock digest sent",
		slog.String("recipient", recipient),
		slog.Int("products", len(products)))

	return nil
}

func (p *NotificationProcessor) sendDigest(products []lowStockProduct, recipient string) error {
	cfg := p.config.Notification

	var body strings.Builder
	fmt.Fprintf(&body, "%d product(s) at or below the stock threshold of %d:\r\n\r\n",
		len(products), p.config.POS.LowStockThreshold)
	for _, item := range products {
		fmt.Fprintf(&body, "  %-40s %d remaining\r\n", item.name, item.quantity)
	}

	msg := []byte(fmt.Sprintf(
		"From: %s\r\nTo: %s\r\nSubject: Low stock alert (%d products)\r\n\r\n%s",
		cfg.FromAddress, recipient, len(products), body.String(),
	))

	addr := fmt.Sprintf("%s:%s", cfg.SMTPHost, cfg.SMTPPort)
	var auth smtp.Auth
	if cfg.SMTPUsername != "" {
		auth = smtp.PlainAuth("", cfg.SMTPUsername, cfg.SMTPPassword, cfg.SMTPHost)
	}

	return smtp.SendMail(addr, auth, cfg.FromAddress, []string{recipient}, msg)
}
