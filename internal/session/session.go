// Package session hosts live POS page states. A Session stands in for one
// mounted page view: it owns its state container until it is closed or
// evicted from the Registry.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/fairyhunter13/pos-session-service/internal/model"
	"github.com/fairyhunter13/pos-session-service/internal/obs"
	"github.com/fairyhunter13/pos-session-service/internal/payment"
	"github.com/fairyhunter13/pos-session-service/internal/pos"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

var tracer = otel.Tracer("session")

var (
	ErrNotFound            = errors.New("session not found")
	ErrClosed              = errors.New("session closed")
	ErrCartChanged         = errors.New("cart changed during checkout")
	ErrCheckoutInProgress  = errors.New("checkout already in progress")
	ErrTransactionNotFound = errors.New("transaction not found")
)

// Saver accepts snapshots for asynchronous persistence. Pending returns the
// newest snapshot accepted for key that has not reached the store yet.
type Saver interface {
	Enqueue(req model.SaveRequest) bool
	NextSequence() uint64
	Pending(key string) ([]byte, bool)
}

// ProductView is a catalog entry as the page shows it.
type ProductView struct {
	model.Product
	InCart int  `json:"in_cart"`
	CanAdd bool `json:"can_add"`
}

// View is the full page state.
type View struct {
	ID              string           `json:"id"`
	Preset          string           `json:"preset"`
	Title           string           `json:"title"`
	ClientID        string           `json:"client_id"`
	TrackStock      bool             `json:"track_stock"`
	Products        []ProductView    `json:"products"`
	Cart            []model.CartLine `json:"cart"`
	ItemCount       int              `json:"item_count"`
	Total           decimal.Decimal  `json:"total"`
	Revision        uint64           `json:"revision"`
	CheckoutPending bool             `json:"checkout_pending"`
}

// CheckoutQuote is the live checkout panel: total and change for an amount
// tendered. Ready reports whether a cash checkout would be accepted.
type CheckoutQuote struct {
	ItemCount int             `json:"item_count"`
	Total     decimal.Decimal `json:"total"`
	Tendered  decimal.Decimal `json:"tendered"`
	Change    decimal.Decimal `json:"change"`
	Ready     bool            `json:"ready"`
}

// Receipt is the result of a finalized checkout.
type Receipt struct {
	Transaction model.Transaction `json:"transaction"`
	Invoice     string            `json:"invoice"`
}

// Session is one live page state. All methods are safe for concurrent use.
type Session struct {
	ID         string
	Preset     pos.Preset
	ClientID   string
	StorageKey string
	OpenedAt   time.Time

	saver   Saver
	payment payment.Processor
	ctx     context.Context
	cancel  context.CancelFunc

	mu          sync.Mutex
	state       *pos.State
	revision    uint64
	cartRev     uint64
	checkingOut bool
}

func newSession(id string, preset pos.Preset, clientID, key string, state *pos.State, revision uint64, saver Saver, proc payment.Processor) *Session {
	ctx, cancel := context.WithCancel(context.Background())
	return &Session{
		ID:         id,
		Preset:     preset,
		ClientID:   clientID,
		StorageKey: key,
		OpenedAt:   time.Now().UTC(),
		saver:      saver,
		payment:    proc,
		ctx:        ctx,
		cancel:     cancel,
		state:      state,
		revision:   revision,
	}
}

// Close ends the session. A checkout waiting on payment is cancelled. Close
// returns after any mutation already holding the state has committed, so its
// snapshot is queued by then.
func (s *Session) Close() {
	s.cancel()
	s.mu.Lock()
	s.mu.Unlock()
}

// Done is closed when the session ends.
func (s *Session) Done() <-chan struct{} { return s.ctx.Done() }

func (s *Session) lock() error {
	s.mu.Lock()
	if s.ctx.Err() != nil {
		s.mu.Unlock()
		return ErrClosed
	}
	return nil
}

// commit bumps the revision and queues a snapshot. Callers hold s.mu.
func (s *Session) commit(ctx context.Context, cartChanged bool) {
	s.revision++
	if cartChanged {
		s.cartRev++
	}
	if !s.Preset.Persist || s.saver == nil {
		return
	}
	data, err := pos.EncodeSnapshot(s.state.Snapshot(s.revision))
	if err != nil {
		obs.L(ctx).Error("state_encode_failed", "session_id", s.ID, "error", err)
		return
	}
	req := model.SaveRequest{Key: s.StorageKey, Data: data, Sequence: s.saver.NextSequence()}
	if !s.saver.Enqueue(req) {
		obs.L(ctx).Warn("state_save_rejected", "session_id", s.ID, "key", s.StorageKey)
	}
}

func (s *Session) viewLocked() View {
	products := s.state.Catalog.List()
	pv := make([]ProductView, len(products))
	for i, p := range products {
		pv[i] = ProductView{Product: p, InCart: s.state.Cart.Quantity(p.ID), CanAdd: s.state.Catalog.CanAdd(p.ID)}
	}
	return View{
		ID:              s.ID,
		Preset:          s.Preset.Name,
		Title:           s.Preset.Title,
		ClientID:        s.ClientID,
		TrackStock:      s.Preset.TrackStock,
		Products:        pv,
		Cart:            s.state.Cart.Lines(),
		ItemCount:       s.state.Cart.ItemCount(),
		Total:           s.state.Total(),
		Revision:        s.revision,
		CheckoutPending: s.checkingOut,
	}
}

// View returns the current page state.
func (s *Session) View() (View, error) {
	if err := s.lock(); err != nil {
		return View{}, err
	}
	defer s.mu.Unlock()
	return s.viewLocked(), nil
}

// AddToCart adds one unit of a product.
func (s *Session) AddToCart(ctx context.Context, productID string) (model.CartLine, error) {
	if err := s.lock(); err != nil {
		return model.CartLine{}, err
	}
	defer s.mu.Unlock()
	line, err := s.state.Cart.Add(productID)
	if err != nil {
		return model.CartLine{}, err
	}
	s.commit(ctx, true)
	return line, nil
}

// ChangeQuantity moves a cart line by delta.
func (s *Session) ChangeQuantity(ctx context.Context, productID string, delta int) (model.CartLine, error) {
	if err := s.lock(); err != nil {
		return model.CartLine{}, err
	}
	defer s.mu.Unlock()
	before := s.state.Cart.Quantity(productID)
	line, err := s.state.Cart.ChangeQuantity(productID, delta)
	if err != nil {
		return line, err
	}
	if line.Quantity != before {
		s.commit(ctx, true)
	}
	return line, nil
}

// AdjustStock changes a product's stock by delta, floored at zero.
func (s *Session) AdjustStock(ctx context.Context, productID string, delta int) (model.Product, error) {
	if err := s.lock(); err != nil {
		return model.Product{}, err
	}
	defer s.mu.Unlock()
	p, err := s.state.Catalog.AdjustStock(productID, delta)
	if err != nil {
		return model.Product{}, err
	}
	s.commit(ctx, false)
	return p, nil
}

// ClearCart empties the cart without returning stock.
func (s *Session) ClearCart(ctx context.Context) error {
	if err := s.lock(); err != nil {
		return err
	}
	defer s.mu.Unlock()
	s.state.Cart.Clear()
	s.commit(ctx, true)
	return nil
}

// Reset restores the preset's default catalog, cart and history.
func (s *Session) Reset(ctx context.Context) (View, error) {
	if err := s.lock(); err != nil {
		return View{}, err
	}
	defer s.mu.Unlock()
	s.state = pos.NewState(s.Preset)
	s.commit(ctx, true)
	obs.L(ctx).Info("session_reset", "session_id", s.ID, "key", s.StorageKey)
	return s.viewLocked(), nil
}

// Quote computes total and change for tendered without changing state.
func (s *Session) Quote(tendered decimal.Decimal) (CheckoutQuote, error) {
	if err := s.lock(); err != nil {
		return CheckoutQuote{}, err
	}
	defer s.mu.Unlock()
	tendered = pos.ClampTender(tendered)
	return CheckoutQuote{
		ItemCount: s.state.Cart.ItemCount(),
		Total:     s.state.Total(),
		Tendered:  tendered,
		Change:    s.state.Change(tendered),
		Ready:     s.state.ValidateCheckout(model.PaymentCash, tendered) == nil,
	}, nil
}

// History returns finalized transactions, newest first.
func (s *Session) History() ([]model.Transaction, error) {
	if err := s.lock(); err != nil {
		return nil, err
	}
	defer s.mu.Unlock()
	return s.state.History.List(), nil
}

// Transaction looks up a past transaction by id.
func (s *Session) Transaction(txID string) (model.Transaction, error) {
	if err := s.lock(); err != nil {
		return model.Transaction{}, err
	}
	defer s.mu.Unlock()
	for _, tx := range s.state.History.List() {
		if tx.ID == txID {
			return tx, nil
		}
	}
	return model.Transaction{}, ErrTransactionNotFound
}

// Invoice renders the receipt of a past transaction.
func (s *Session) Invoice(txID string) (string, error) {
	tx, err := s.Transaction(txID)
	if err != nil {
		return "", err
	}
	return pos.RenderInvoice(s.Preset, tx), nil
}

// Report returns sales totals over the whole history.
func (s *Session) Report() (model.Report, error) {
	if err := s.lock(); err != nil {
		return model.Report{}, err
	}
	defer s.mu.Unlock()
	return s.state.History.Report(), nil
}

// Checkout validates the cart, waits for the payment step and finalizes.
// The payment wait ends early when ctx is done or the session closes; in
// that case nothing is recorded. If the cart changed while payment was in
// progress the checkout fails with ErrCartChanged and the cart is kept.
func (s *Session) Checkout(ctx context.Context, method model.PaymentMethod, tendered decimal.Decimal) (Receipt, error) {
	ctx, span := tracer.Start(ctx, "session.checkout")
	defer span.End()
	span.SetAttributes(attribute.String("session.id", s.ID), attribute.String("payment.method", string(method)))

	if err := s.lock(); err != nil {
		return Receipt{}, err
	}
	if s.checkingOut {
		s.mu.Unlock()
		return Receipt{}, ErrCheckoutInProgress
	}
	if err := s.state.ValidateCheckout(method, tendered); err != nil {
		s.mu.Unlock()
		return Receipt{}, err
	}
	total := s.state.Total()
	cartRev := s.cartRev
	s.checkingOut = true
	s.mu.Unlock()

	payCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	stop := context.AfterFunc(s.ctx, cancel)
	defer stop()
	payErr := s.payment.Process(payCtx, method, total)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.checkingOut = false
	if s.ctx.Err() != nil {
		return Receipt{}, ErrClosed
	}
	if payErr != nil {
		obs.L(ctx).Warn("checkout_aborted", "session_id", s.ID, "error", payErr)
		return Receipt{}, fmt.Errorf("payment: %w", payErr)
	}
	if s.cartRev != cartRev {
		return Receipt{}, ErrCartChanged
	}
	tx, err := s.state.Finalize(method, tendered, s.payment.QRISURL(total), time.Now())
	if err != nil {
		return Receipt{}, err
	}
	s.commit(ctx, true)
	obs.L(ctx).Info("checkout_finalized",
		"session_id", s.ID,
		"transaction_id", tx.ID,
		"method", tx.Method,
		"total", tx.Total.StringFixed(2),
		"items", tx.ItemCount(),
	)
	return Receipt{Transaction: tx, Invoice: pos.RenderInvoice(s.Preset, tx)}, nil
}
