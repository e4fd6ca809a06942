package pos

import (
	"math/rand"
	"strings"
	"testing"
	"time"

	"github.com/fairyhunter13/pos-session-service/internal/model"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func money(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func assertMoney(t *testing.T, want string, got decimal.Decimal) {
	t.Helper()
	assert.Equal(t, money(want).StringFixed(2), got.StringFixed(2))
}

func smallPreset(stock int) Preset {
	return NewPreset("test", true, true, []model.Product{
		costed("a", "Alpha", "", "1", "2.5", stock),
		costed("b", "Beta", "", "2", "3.75", stock),
	})
}

func TestCheckoutTotalAndChange(t *testing.T) {
	s := NewState(CoffeeShop)
	_, err := s.Cart.Add("espresso")
	require.NoError(t, err)
	_, err = s.Cart.Add("espresso")
	require.NoError(t, err)
	_, err = s.Cart.Add("latte")
	require.NoError(t, err)

	assertMoney(t, "8.75", s.Total())
	assertMoney(t, "1.25", s.Change(money("10.00")))
	assertMoney(t, "0", s.Change(money("5")))

	tx, err := s.Finalize(model.PaymentCash, money("10.00"), "", time.Now())
	require.NoError(t, err)
	assertMoney(t, "8.75", tx.Total)
	assertMoney(t, "1.25", tx.Change)
	assertMoney(t, "10", tx.Tendered)
	assert.True(t, s.Cart.IsEmpty())
	assert.Equal(t, 1, s.History.Len())
	assert.Equal(t, tx.ID, s.History.List()[0].ID)
	assert.Equal(t, 3, tx.ItemCount())
}

func TestAddFloorsStockThenRefuses(t *testing.T) {
	s := NewState(smallPreset(2))
	for i := 0; i < 2; i++ {
		_, err := s.Cart.Add("a")
		require.NoError(t, err)
	}
	p, _ := s.Catalog.Get("a")
	assert.Equal(t, 0, p.Stock)
	assert.False(t, s.Catalog.CanAdd("a"))

	_, err := s.Cart.Add("a")
	require.ErrorIs(t, err, ErrOutOfStock)
	assert.Equal(t, 2, s.Cart.Quantity("a"))
	p, _ = s.Catalog.Get("a")
	assert.Equal(t, 0, p.Stock)
}

func TestAddUnknownProduct(t *testing.T) {
	s := NewState(smallPreset(1))
	_, err := s.Cart.Add("nope")
	require.ErrorIs(t, err, ErrProductNotFound)
}

func TestChangeQuantity(t *testing.T) {
	t.Run("decrement to zero removes line and restores stock", func(t *testing.T) {
		s := NewState(smallPreset(5))
		_, _ = s.Cart.Add("a")
		_, _ = s.Cart.Add("a")
		line, err := s.Cart.ChangeQuantity("a", -1)
		require.NoError(t, err)
		assert.Equal(t, 1, line.Quantity)
		line, err = s.Cart.ChangeQuantity("a", -1)
		require.NoError(t, err)
		assert.Equal(t, 0, line.Quantity)
		assert.True(t, s.Cart.IsEmpty())
		p, _ := s.Catalog.Get("a")
		assert.Equal(t, 5, p.Stock)
	})

	t.Run("large decrement floors at zero", func(t *testing.T) {
		s := NewState(smallPreset(5))
		_, _ = s.Cart.Add("b")
		_, err := s.Cart.ChangeQuantity("b", -10)
		require.NoError(t, err)
		assert.Equal(t, 0, s.Cart.Quantity("b"))
		p, _ := s.Catalog.Get("b")
		assert.Equal(t, 5, p.Stock)
	})

	t.Run("increase capped by stock", func(t *testing.T) {
		s := NewState(smallPreset(3))
		_, _ = s.Cart.Add("a")
		line, err := s.Cart.ChangeQuantity("a", 10)
		require.NoError(t, err)
		assert.Equal(t, 3, line.Quantity)
		p, _ := s.Catalog.Get("a")
		assert.Equal(t, 0, p.Stock)

		_, err = s.Cart.ChangeQuantity("a", 1)
		require.ErrorIs(t, err, ErrOutOfStock)
	})

	t.Run("unknown line", func(t *testing.T) {
		s := NewState(smallPreset(3))
		_, err := s.Cart.ChangeQuantity("a", 1)
		require.ErrorIs(t, err, ErrLineNotFound)
	})
}

func TestQuantityAndStockConserved(t *testing.T) {
	const initial = 7
	s := NewState(smallPreset(initial))
	rng := rand.New(rand.NewSource(42))
	ids := []string{"a", "b"}
	for i := 0; i < 2000; i++ {
		id := ids[rng.Intn(len(ids))]
		if rng.Intn(2) == 0 {
			_, _ = s.Cart.Add(id)
		} else {
			_, _ = s.Cart.ChangeQuantity(id, rng.Intn(9)-4)
		}
		for _, pid := range ids {
			q := s.Cart.Quantity(pid)
			require.GreaterOrEqual(t, q, 0)
			p, _ := s.Catalog.Get(pid)
			require.GreaterOrEqual(t, p.Stock, 0)
			require.Equal(t, initial, q+p.Stock, "product %s after op %d", pid, i)
		}
		want := decimal.Zero
		for _, l := range s.Cart.Lines() {
			require.Positive(t, l.Quantity)
			want = want.Add(l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity))))
		}
		require.True(t, want.Equal(s.Total()))
	}
}

func TestClearKeepsStockTaken(t *testing.T) {
	s := NewState(smallPreset(4))
	_, _ = s.Cart.Add("a")
	_, _ = s.Cart.Add("a")
	s.Cart.Clear()
	assert.True(t, s.Cart.IsEmpty())
	p, _ := s.Catalog.Get("a")
	assert.Equal(t, 2, p.Stock)
}

func TestAdjustStock(t *testing.T) {
	s := NewState(smallPreset(4))
	p, err := s.Catalog.AdjustStock("a", 10)
	require.NoError(t, err)
	assert.Equal(t, 14, p.Stock)
	p, err = s.Catalog.AdjustStock("a", -100)
	require.NoError(t, err)
	assert.Equal(t, 0, p.Stock)
	_, err = s.Catalog.AdjustStock("zzz", 1)
	require.ErrorIs(t, err, ErrProductNotFound)
}

func TestUntrackedCatalogNeverRunsOut(t *testing.T) {
	s := NewState(IceCream)
	for i := 0; i < 100; i++ {
		_, err := s.Cart.Add("vanilla")
		require.NoError(t, err)
	}
	assert.True(t, s.Catalog.CanAdd("vanilla"))
	line, err := s.Cart.ChangeQuantity("vanilla", 50)
	require.NoError(t, err)
	assert.Equal(t, 150, line.Quantity)
	p, _ := s.Catalog.AdjustStock("vanilla", 5)
	assert.Equal(t, 0, p.Stock)
}

func TestFinalizeGuards(t *testing.T) {
	s := NewState(smallPreset(5))
	_, err := s.Finalize(model.PaymentCash, money("100"), "", time.Now())
	require.ErrorIs(t, err, ErrEmptyCart)

	_, _ = s.Cart.Add("a")
	_, err = s.Finalize(model.PaymentCash, money("1"), "", time.Now())
	require.ErrorIs(t, err, ErrInsufficientTender)
	_, err = s.Finalize(model.PaymentCash, money("-5"), "", time.Now())
	require.ErrorIs(t, err, ErrInsufficientTender)
	_, err = s.Finalize("card", money("100"), "", time.Now())
	require.ErrorIs(t, err, ErrInvalidPaymentMethod)
	assert.Equal(t, 0, s.History.Len())
	assert.Equal(t, 1, s.Cart.Quantity("a"))

	tx, err := s.Finalize(model.PaymentQRIS, decimal.Zero, "https://pay.example/2.50", time.Now())
	require.NoError(t, err)
	assertMoney(t, "2.50", tx.Tendered)
	assertMoney(t, "0", tx.Change)
	assert.Equal(t, "https://pay.example/2.50", tx.PaymentURL)
}

func TestHistoryNewestFirstAndReport(t *testing.T) {
	s := NewState(CoffeeShop)
	_, _ = s.Cart.Add("espresso")
	_, _ = s.Cart.Add("espresso")
	_, _ = s.Cart.Add("latte")
	first, err := s.Finalize(model.PaymentCash, money("10"), "", time.Now())
	require.NoError(t, err)
	_, _ = s.Cart.Add("mocha")
	second, err := s.Finalize(model.PaymentQRIS, decimal.Zero, "", time.Now())
	require.NoError(t, err)

	list := s.History.List()
	require.Len(t, list, 2)
	assert.Equal(t, second.ID, list[0].ID)
	assert.Equal(t, first.ID, list[1].ID)

	r := s.History.Report()
	assert.Equal(t, 2, r.Transactions)
	assert.Equal(t, 4, r.ItemsSold)
	assertMoney(t, "12.75", r.Revenue)
	assertMoney(t, "5.00", r.Profit)
}

func TestReportSkipsProfitWithoutCost(t *testing.T) {
	s := NewState(IceCream)
	_, _ = s.Cart.Add("mango")
	_, err := s.Finalize(model.PaymentCash, money("5"), "", time.Now())
	require.NoError(t, err)
	r := s.History.Report()
	assertMoney(t, "4.59", r.Revenue)
	assertMoney(t, "0", r.Profit)
}

func TestSnapshotRestore(t *testing.T) {
	s := NewState(CoffeeShop)
	_, _ = s.Cart.Add("mocha")
	_, _ = s.Cart.Add("mocha")
	_, _ = s.Cart.Add("americano")
	_, err := s.Finalize(model.PaymentCash, money("20"), "", time.Now())
	require.NoError(t, err)
	_, _ = s.Cart.Add("latte")

	data, err := EncodeSnapshot(s.Snapshot(9))
	require.NoError(t, err)
	snap, err := DecodeSnapshot(data)
	require.NoError(t, err)
	assert.Equal(t, uint64(9), snap.Revision)

	got, err := Restore(CoffeeShop, snap)
	require.NoError(t, err)
	assert.Equal(t, 1, got.Cart.Quantity("latte"))
	p, _ := got.Catalog.Get("mocha")
	assert.Equal(t, 33, p.Stock)
	assert.Equal(t, 1, got.History.Len())
	assertMoney(t, "3.75", got.Total())
}

func TestRestoreRejectsCorruptSnapshots(t *testing.T) {
	_, err := DecodeSnapshot([]byte("{not json"))
	require.ErrorIs(t, err, ErrCorruptSnapshot)

	cases := map[string]model.Snapshot{
		"no products":  {},
		"unknown line": {Products: CoffeeShop.Products(), Cart: []model.CartLine{{ProductID: "tea", Quantity: 1}}},
		"zero line":    {Products: CoffeeShop.Products(), Cart: []model.CartLine{{ProductID: "latte", Quantity: 0}}},
		"duplicate": {Products: []model.Product{
			priced("x", "X", "1"), priced("x", "X again", "2"),
		}},
	}
	for name, snap := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Restore(CoffeeShop, snap)
			require.ErrorIs(t, err, ErrCorruptSnapshot)
		})
	}
}

func TestRenderInvoice(t *testing.T) {
	s := NewState(CoffeeShop)
	_, _ = s.Cart.Add("espresso")
	_, _ = s.Cart.Add("espresso")
	_, _ = s.Cart.Add("latte")
	tx, err := s.Finalize(model.PaymentCash, money("10"), "", time.Now())
	require.NoError(t, err)

	out := RenderInvoice(CoffeeShop, tx)
	assert.True(t, strings.HasPrefix(out, "Coffee Shop Invoice\n-------------------\n"))
	assert.Contains(t, out, "Espresso x2: $5.00\n")
	assert.Contains(t, out, "Latte x1: $3.75\n")
	assert.Contains(t, out, "Total: $8.75\n")
	assert.Contains(t, out, "Payment Method: CASH\n")
	assert.Contains(t, out, "Cash Received: $10.00\n")
	assert.Contains(t, out, "Change: $1.25\n")

	qris := RenderInvoice(CoffeeShop, model.Transaction{Method: model.PaymentQRIS, Total: money("4.99"), PaymentURL: "https://pay.example/4.99"})
	assert.Contains(t, qris, "Payment Method: QRIS\n")
	assert.Contains(t, qris, "Pay at: https://pay.example/4.99\n")
	assert.NotContains(t, qris, "Cash Received")
}

func TestRenderInvoiceCompactLayout(t *testing.T) {
	s := NewState(IceCream)
	_, _ = s.Cart.Add("vanilla")
	_, _ = s.Cart.Add("mango")
	tx, err := s.Finalize(model.PaymentCash, money("10"), "", time.Now())
	require.NoError(t, err)

	out := RenderInvoice(IceCream, tx)
	want := "Ice Cream POS Invoice\n" +
		"---------------------\n" +
		"Vanilla Delight x1: $3.99\n" +
		"Mango Tango x1: $4.59\n" +
		"\n" +
		"Total: $8.58\n" +
		"Amount Paid: $10.00\n" +
		"Change: $1.42\n"
	assert.Equal(t, want, out)
	assert.NotContains(t, out, "Payment Method")
}

func TestParseTender(t *testing.T) {
	assertMoney(t, "10.5", ParseTender("10.5"))
	assertMoney(t, "0", ParseTender("abc"))
	assertMoney(t, "0", ParseTender("-3"))
	assertMoney(t, "1.24", ParseTender("1.235"))
	assert.Equal(t, "$1,234.50", FormatMoney(money("1234.5")))
}
