// internal/core/services/session.go
package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/posflow/pos-be/internal/core/domain"
	"github.com/posflow/pos-be/internal/core/ports"
)

// ErrSessionNotFound means the addressed POS session does not exist or
// has been pruned.
var ErrSessionNotFound = errors.New("pos session not found")

// ErrCartNotEmpty blocks a ledger reload while units are reserved in
// the cart; reloading would break the cart/ledger conservation.
var ErrCartNotEmpty = errors.New("cart is not empty")

// session holds the per-register state for one POS screen: the catalog
// snapshot, the batch ledger and the cart. All operations on a session
// run under its mutex, which gives the strict user-action ordering the
// cart logic assumes.
type session struct {
	id       uuid.UUID
	mu       sync.Mutex
	products map[uuid.UUID]domain.Product
	ledger   *BatchLedger
	cart     *Cart
	openedAt time.Time
	lastUsed time.Time
}

// SessionManager owns all live POS sessions. Session state never
// leaves process memory; the store is only read at open/reload and
// written at checkout.
type SessionManager struct {
	mu       sync.RWMutex
	sessions map[uuid.UUID]*session

	store    ports.SaleStore
	catalog  ports.ProductRepository
	checkout *CheckoutService
	logger   *slog.Logger
}

// NewSessionManager creates a new session manager
func NewSessionManager(store ports.SaleStore, catalog ports.ProductRepository, checkout *CheckoutService, logger *slog.Logger) *SessionManager {
	return &SessionManager{
		sessions: make(map[uuid.UUID]*session),
		store:    store,
		catalog:  catalog,
		checkout: checkout,
		logger:   logger.With(slog.String("service", "pos_session")),
	}
}

// SessionView is the handler-facing snapshot of a session.
type SessionView struct {
	SessionID uuid.UUID         `json:"session_id"`
	OpenedAt  time.Time         `json:"opened_at"`
	Products  []ProductView     `json:"products"`
	Lines     []domain.CartLine `json:"lines"`
}

// ProductView is a catalog product together with the price and cost
// of the batch the next sale unit would draw from.
type ProductView struct {
	domain.Product
	EffectivePrice decimal.Decimal `json:"effective_price"`
	EffectiveCost  decimal.Decimal `json:"effective_cost"`
	Available      bool            `json:"available"`
}

// CartView is the cart state returned after every mutation.
type CartView struct {
	SessionID uuid.UUID         `json:"session_id"`
	Lines     []domain.CartLine `json:"lines"`
	Totals    domain.Totals     `json:"totals"`
}

// Open starts a new POS session: it snapshots the product catalog and
// loads the batch ledger for every product in one pass.
func (m *SessionManager) Open(ctx context.Context) (*SessionView, error) {
	products, err := m.catalog.FindAll(ctx, ports.ProductListParams{})
	if err != nil {
		return nil, fmt.Errorf("failed to load catalog: %w", err)
	}

	byID := make(map[uuid.UUID]domain.Product, len(products))
	ids := make([]uuid.UUID, 0, len(products))
	for i := range products {
		byID[products[i].ID] = products[i]
		ids = append(ids, products[i].ID)
	}

	ledger := NewBatchLedger(m.store, m.logger)
	if err := ledger.Load(ctx, ids); err != nil {
		return nil, err
	}

	now := time.Now()
	s := &session{
		id:       uuid.New(),
		products: byID,
		ledger:   ledger,
		cart:     NewCart(ledger),
		openedAt: now,
		lastUsed: now,
	}

	m.mu.Lock()
	m.sessions[s.id] = s
	m.mu.Unlock()

	m.logger.InfoContext(ctx, "pos session opened",
		slog.String("session_id", s.id.String()),
		slog.Int("products", len(products)))

	return &SessionView{
		SessionID: s.id,
		OpenedAt:  s.openedAt,
		Products:  productViews(products, ledger),
		Lines:     s.cart.Lines(),
	}, nil
}

func productViews(products []domain.Product, ledger *BatchLedger) []ProductView {
	views := make([]ProductView, 0, len(products))
	for i := range products {
		v := ProductView{Product: products[i]}
		if batch, ok := ledger.PeekFIFO(products[i].ID); ok {
			v.Available = true
			v.EffectivePrice = batch.Price
			if v.EffectivePrice.IsZero() {
				v.EffectivePrice = products[i].Price
			}
			v.EffectiveCost = batch.Cost
		} else {
			v.EffectivePrice = products[i].Price
			v.EffectiveCost = products[i].Cost
		}
		views = append(views, v)
	}
	return views
}

func (m *SessionManager) get(sessionID uuid.UUID) (*session, error) {
	m.mu.RLock()
	s, ok := m.sessions[sessionID]
	m.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
	}
	return s, nil
}

// withSession runs fn with the session locked and marks it used.
func (m *SessionManager) withSession(sessionID uuid.UUID, fn func(*session) error) error {
	s, err := m.get(sessionID)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastUsed = time.Now()
	return fn(s)
}

// AddUnit rings up one unit of the product.
func (m *SessionManager) AddUnit(ctx context.Context, sessionID, productID uuid.UUID, taxRatePercent decimal.Decimal) (*CartView, error) {
	var view *CartView
	err := m.withSession(sessionID, func(s *session) error {
		product, ok := s.products[productID]
		if !ok {
			return fmt.Errorf("product %s not in session catalog", productID)
		}
		if err := s.cart.AddUnit(&product); err != nil {
			return err
		}
		view = m.cartView(s, taxRatePercent)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return view, nil
}

// IncrementLine adds one unit to an existing cart line.
func (m *SessionManager) IncrementLine(ctx context.Context, sessionID uuid.UUID, key domain.LineKey, taxRatePercent decimal.Decimal) (*CartView, error) {
	var view *CartView
	err := m.withSession(sessionID, func(s *session) error {
		if err := s.cart.IncrementLine(key); err != nil {
			return err
		}
		view = m.cartView(s, taxRatePercent)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return view, nil
}

// DecrementLine returns one unit from a cart line to its batch.
func (m *SessionManager) DecrementLine(ctx context.Context, sessionID uuid.UUID, key domain.LineKey, taxRatePercent decimal.Decimal) (*CartView, error) {
	var view *CartView
	err := m.withSession(sessionID, func(s *session) error {
		if err := s.cart.DecrementLine(key); err != nil {
			return err
		}
		view = m.cartView(s, taxRatePercent)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return view, nil
}

// RemoveLine drops a cart line, returning its whole quantity.
func (m *SessionManager) RemoveLine(ctx context.Context, sessionID uuid.UUID, key domain.LineKey, taxRatePercent decimal.Decimal) (*CartView, error) {
	var view *CartView
	err := m.withSession(sessionID, func(s *session) error {
		if err := s.cart.RemoveLine(key); err != nil {
			return err
		}
		view = m.cartView(s, taxRatePercent)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return view, nil
}

// Cart returns the current cart with totals at the given tax rate.
func (m *SessionManager) Cart(sessionID uuid.UUID, taxRatePercent decimal.Decimal) (*CartView, error) {
	var view *CartView
	err := m.withSession(sessionID, func(s *session) error {
		view = m.cartView(s, taxRatePercent)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return view, nil
}

// Checkout runs the checkout sequence for the session's cart. The
// session lock is held for the whole sequence, so no cart mutation can
// interleave with the store writes.
func (m *SessionManager) Checkout(ctx context.Context, sessionID uuid.UUID, taxRatePercent decimal.Decimal, method domain.PaymentMethod) (*domain.Receipt, error) {
	var receipt *domain.Receipt
	err := m.withSession(sessionID, func(s *session) error {
		r, err := m.checkout.Checkout(ctx, s.cart, taxRatePercent, method)
		if err != nil {
			return err
		}
		receipt = r
		return nil
	})
	if err != nil {
		return nil, err
	}
	return receipt, nil
}

// Reload refreshes the session's catalog snapshot and batch ledger
// from the store. Only allowed while the cart is empty.
func (m *SessionManager) Reload(ctx context.Context, sessionID uuid.UUID) (*SessionView, error) {
	var view *SessionView
	err := m.withSession(sessionID, func(s *session) error {
		if s.cart.Len() > 0 {
			return ErrCartNotEmpty
		}

		products, err := m.catalog.FindAll(ctx, ports.ProductListParams{})
		if err != nil {
			return fmt.Errorf("failed to load catalog: %w", err)
		}

		byID := make(map[uuid.UUID]domain.Product, len(products))
		ids := make([]uuid.UUID, 0, len(products))
		for i := range products {
			byID[products[i].ID] = products[i]
			ids = append(ids, products[i].ID)
		}
		if err := s.ledger.Load(ctx, ids); err != nil {
			return err
		}
		s.products = byID

		view = &SessionView{
			SessionID: s.id,
			OpenedAt:  s.openedAt,
			Products:  productViews(products, s.ledger),
			Lines:     s.cart.Lines(),
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return view, nil
}

// Close drops the session. Reserved cart units are simply forgotten;
// nothing was written to the store for them.
func (m *SessionManager) Close(sessionID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[sessionID]; !ok {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
	}
	delete(m.sessions, sessionID)
	return nil
}

// PruneIdle removes sessions idle longer than maxIdle and returns how
// many were dropped. The API process runs it on a ticker.
func (m *SessionManager) PruneIdle(maxIdle time.Duration) int {
	cutoff := time.Now().Add(-maxIdle)

	m.mu.Lock()
	defer m.mu.Unlock()

	pruned := 0
	for id, s := range m.sessions {
		s.mu.Lock()
		idle := s.lastUsed.Before(cutoff)
		s.mu.Unlock()
		if idle {
			delete(m.sessions, id)
			pruned++
		}
	}

	if pruned > 0 {
		m.logger.Info("pruned idle pos sessions", slog.Int("count", pruned))
	}
	return pruned
}

func (m *SessionManager) cartView(s *session, taxRatePercent decimal.Decimal) *CartView {
	return &CartView{
		SessionID: s.id,
		Lines:     s.cart.Lines(),
		Totals:    s.cart.Totals(taxRatePercent),
	}
}
