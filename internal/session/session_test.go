package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/fairyhunter13/pos-session-service/internal/model"
	"github.com/fairyhunter13/pos-session-service/internal/payment"
	"github.com/fairyhunter13/pos-session-service/internal/pos"
	"github.com/fairyhunter13/pos-session-service/internal/store"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// syncSaver writes every request straight to the store.
type syncSaver struct {
	mu   sync.Mutex
	st   store.Store
	seq  uint64
	reqs []model.SaveRequest
}

func (s *syncSaver) NextSequence() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	return s.seq
}

func (s *syncSaver) Enqueue(req model.SaveRequest) bool {
	s.mu.Lock()
	s.reqs = append(s.reqs, req)
	s.mu.Unlock()
	_ = s.st.Save(context.Background(), req.Key, req.Data)
	return true
}

func (s *syncSaver) Pending(string) ([]byte, bool) { return nil, false }

func (s *syncSaver) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.reqs)
}

func newRegistry(t *testing.T, size int, delay time.Duration) (*Registry, *store.Memory, *syncSaver) {
	t.Helper()
	mem := store.NewMemory()
	saver := &syncSaver{st: mem}
	r, err := NewRegistry(size, mem, saver, payment.Processor{Delay: delay, PayBaseURL: "https://example.com/pay"})
	require.NoError(t, err)
	t.Cleanup(r.CloseAll)
	return r, mem, saver
}

func money(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func waitPending(t *testing.T, s *Session) {
	t.Helper()
	require.Eventually(t, func() bool {
		v, err := s.View()
		return err == nil && v.CheckoutPending
	}, 2*time.Second, 5*time.Millisecond)
}

func TestCoffeeShopPersistsAndReloads(t *testing.T) {
	ctx := context.Background()
	r, mem, saver := newRegistry(t, 8, 0)

	s, err := r.Open(ctx, pos.CoffeeShop, "alice")
	require.NoError(t, err)
	_, err = s.AddToCart(ctx, "espresso")
	require.NoError(t, err)
	_, err = s.AddToCart(ctx, "espresso")
	require.NoError(t, err)
	_, err = s.AdjustStock(ctx, "mocha", -5)
	require.NoError(t, err)
	assert.Equal(t, 3, saver.count())

	_, ok, _ := mem.Load(ctx, "alice/coffee-shop-storage")
	require.True(t, ok)

	again, err := r.Open(ctx, pos.CoffeeShop, "alice")
	require.NoError(t, err)
	assert.Equal(t, s.ID, again.ID, "one live session per storage key")

	require.NoError(t, r.Close(s.ID))
	_, err = s.View()
	require.ErrorIs(t, err, ErrClosed)

	reopened, err := r.Open(ctx, pos.CoffeeShop, "alice")
	require.NoError(t, err)
	assert.NotEqual(t, s.ID, reopened.ID)
	v, err := reopened.View()
	require.NoError(t, err)
	assert.Equal(t, uint64(3), v.Revision)
	assert.Equal(t, 2, v.ItemCount)
	for _, p := range v.Products {
		switch p.ID {
		case "espresso":
			assert.Equal(t, 48, p.Stock)
			assert.Equal(t, 2, p.InCart)
		case "mocha":
			assert.Equal(t, 30, p.Stock)
		}
	}

	other, err := r.Open(ctx, pos.CoffeeShop, "bob")
	require.NoError(t, err)
	ov, _ := other.View()
	assert.Equal(t, 0, ov.ItemCount)
}

func TestCorruptStateFallsBackToDefaults(t *testing.T) {
	ctx := context.Background()
	r, mem, _ := newRegistry(t, 8, 0)
	require.NoError(t, mem.Save(ctx, StorageKey(pos.CoffeeShop, ""), []byte("{broken")))

	s, err := r.Open(ctx, pos.CoffeeShop, "")
	require.NoError(t, err)
	assert.Equal(t, DefaultClientID, s.ClientID)
	v, err := s.View()
	require.NoError(t, err)
	assert.Len(t, v.Products, 10)
	assert.Equal(t, uint64(0), v.Revision)
}

func TestIceCreamIsNotPersisted(t *testing.T) {
	ctx := context.Background()
	r, _, saver := newRegistry(t, 8, 0)
	a, err := r.Open(ctx, pos.IceCream, "alice")
	require.NoError(t, err)
	b, err := r.Open(ctx, pos.IceCream, "alice")
	require.NoError(t, err)
	assert.NotEqual(t, a.ID, b.ID)

	_, err = a.AddToCart(ctx, "vanilla")
	require.NoError(t, err)
	assert.Equal(t, 0, saver.count())
	bv, _ := b.View()
	assert.Equal(t, 0, bv.ItemCount)
}

func TestCheckoutFinalizes(t *testing.T) {
	ctx := context.Background()
	r, _, _ := newRegistry(t, 8, 10*time.Millisecond)
	s, err := r.Open(ctx, pos.CoffeeShop, "c1")
	require.NoError(t, err)
	for _, id := range []string{"espresso", "espresso", "latte"} {
		_, err := s.AddToCart(ctx, id)
		require.NoError(t, err)
	}

	q, err := s.Quote(money("10"))
	require.NoError(t, err)
	assert.Equal(t, "8.75", q.Total.StringFixed(2))
	assert.Equal(t, "1.25", q.Change.StringFixed(2))
	assert.True(t, q.Ready)

	_, err = s.Checkout(ctx, model.PaymentCash, money("5"))
	require.ErrorIs(t, err, pos.ErrInsufficientTender)

	rc, err := s.Checkout(ctx, model.PaymentCash, money("10"))
	require.NoError(t, err)
	assert.Equal(t, "1.25", rc.Transaction.Change.StringFixed(2))
	assert.Contains(t, rc.Invoice, "Total: $8.75")

	v, _ := s.View()
	assert.Equal(t, 0, v.ItemCount)
	hist, _ := s.History()
	require.Len(t, hist, 1)
	rep, _ := s.Report()
	assert.Equal(t, 3, rep.ItemsSold)
	assert.Equal(t, "3.50", rep.Profit.StringFixed(2))

	_, err = s.Checkout(ctx, model.PaymentCash, money("10"))
	require.ErrorIs(t, err, pos.ErrEmptyCart)
}

func TestQRISCheckoutCarriesPayURL(t *testing.T) {
	ctx := context.Background()
	r, _, _ := newRegistry(t, 8, 0)
	s, _ := r.Open(ctx, pos.IceCream, "")
	_, _ = s.AddToCart(ctx, "cookie")
	rc, err := s.Checkout(ctx, model.PaymentQRIS, decimal.Zero)
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/pay/4.99", rc.Transaction.PaymentURL)
}

func TestCheckoutCancelledBySessionClose(t *testing.T) {
	ctx := context.Background()
	r, _, _ := newRegistry(t, 8, 5*time.Second)
	s, _ := r.Open(ctx, pos.CoffeeShop, "closer")
	_, _ = s.AddToCart(ctx, "mocha")

	errc := make(chan error, 1)
	go func() {
		_, err := s.Checkout(ctx, model.PaymentQRIS, decimal.Zero)
		errc <- err
	}()
	waitPending(t, s)
	require.NoError(t, r.Close(s.ID))

	select {
	case err := <-errc:
		require.ErrorIs(t, err, ErrClosed)
	case <-time.After(2 * time.Second):
		t.Fatal("checkout not cancelled by close")
	}
	assert.Equal(t, 0, s.state.History.Len())
}

func TestCheckoutCancelledByRequest(t *testing.T) {
	r, _, _ := newRegistry(t, 8, 5*time.Second)
	s, _ := r.Open(context.Background(), pos.CoffeeShop, "impatient")
	_, _ = s.AddToCart(context.Background(), "latte")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	_, err := s.Checkout(ctx, model.PaymentCash, money("100"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))

	v, err := s.View()
	require.NoError(t, err)
	assert.Equal(t, 1, v.ItemCount)
	assert.False(t, v.CheckoutPending)
}

func TestCheckoutDetectsCartChange(t *testing.T) {
	ctx := context.Background()
	r, _, _ := newRegistry(t, 8, 300*time.Millisecond)
	s, _ := r.Open(ctx, pos.CoffeeShop, "busy")
	_, _ = s.AddToCart(ctx, "americano")

	errc := make(chan error, 1)
	go func() {
		_, err := s.Checkout(ctx, model.PaymentCash, money("50"))
		errc <- err
	}()
	waitPending(t, s)

	_, err := s.Checkout(ctx, model.PaymentCash, money("50"))
	require.ErrorIs(t, err, ErrCheckoutInProgress)
	_, err = s.AddToCart(ctx, "americano")
	require.NoError(t, err)

	require.ErrorIs(t, <-errc, ErrCartChanged)
	v, _ := s.View()
	assert.Equal(t, 2, v.ItemCount)
	hist, _ := s.History()
	assert.Empty(t, hist)
}

func TestResetRestoresDefaults(t *testing.T) {
	ctx := context.Background()
	r, _, _ := newRegistry(t, 8, 0)
	s, _ := r.Open(ctx, pos.CoffeeShop, "resetter")
	_, _ = s.AddToCart(ctx, "espresso")
	_, err := s.Checkout(ctx, model.PaymentCash, money("5"))
	require.NoError(t, err)
	_, _ = s.AddToCart(ctx, "espresso")

	v, err := s.Reset(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, v.ItemCount)
	assert.Equal(t, 50, v.Products[0].Stock)
	hist, _ := s.History()
	assert.Empty(t, hist)
}

func TestEvictionClosesLeastRecentlyUsed(t *testing.T) {
	ctx := context.Background()
	r, _, _ := newRegistry(t, 2, 0)
	a, _ := r.Open(ctx, pos.IceCream, "")
	b, _ := r.Open(ctx, pos.IceCream, "")
	_, err := r.Get(a.ID)
	require.NoError(t, err)
	c, _ := r.Open(ctx, pos.IceCream, "")

	_, err = r.Get(b.ID)
	require.ErrorIs(t, err, ErrNotFound)
	select {
	case <-b.Done():
	default:
		t.Fatal("evicted session not closed")
	}
	_, err = b.AddToCart(ctx, "mint")
	require.ErrorIs(t, err, ErrClosed)

	_, err = r.Get(a.ID)
	require.NoError(t, err)
	_, err = r.Get(c.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, r.Len())
	require.ErrorIs(t, r.Close("missing"), ErrNotFound)
}

func TestConcurrentOpenSharesSession(t *testing.T) {
	r, _, _ := newRegistry(t, 8, 0)
	var wg sync.WaitGroup
	ids := make([]string, 20)
	for i := range ids {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			s, err := r.Open(context.Background(), pos.CoffeeShop, "crowd")
			if err == nil {
				ids[i] = s.ID
			}
		}(i)
	}
	wg.Wait()
	for _, id := range ids {
		assert.Equal(t, ids[0], id)
	}
	assert.Equal(t, 1, r.Len())
}

func TestInvoiceLookup(t *testing.T) {
	ctx := context.Background()
	r, _, _ := newRegistry(t, 8, 0)
	s, _ := r.Open(ctx, pos.IceCream, "")
	_, _ = s.AddToCart(ctx, "vanilla")
	rc, err := s.Checkout(ctx, model.PaymentCash, money("5"))
	require.NoError(t, err)

	inv, err := s.Invoice(rc.Transaction.ID)
	require.NoError(t, err)
	assert.Equal(t, rc.Invoice, inv)
	assert.Contains(t, inv, "Ice Cream POS Invoice\n")
	assert.Contains(t, inv, "Amount Paid: $5.00\n")

	_, err = s.Invoice("nope")
	require.ErrorIs(t, err, ErrTransactionNotFound)
}
