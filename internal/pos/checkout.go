package pos

import (
	"fmt"
	"time"

	"github.com/fairyhunter13/pos-session-service/internal/model"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ClampTender turns a raw tendered amount into a usable one: negative
// amounts become zero and amounts are rounded to cents.
func ClampTender(tendered decimal.Decimal) decimal.Decimal {
	if tendered.IsNegative() {
		return decimal.Zero
	}
	return tendered.Round(2)
}

// ParseTender parses user input for a tendered amount. Anything that is not
// a number is treated as zero.
func ParseTender(raw string) decimal.Decimal {
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero
	}
	return ClampTender(d)
}

// Change returns tendered minus total, never below zero.
func Change(total, tendered decimal.Decimal) decimal.Decimal {
	c := ClampTender(tendered).Sub(total)
	if c.IsNegative() {
		return decimal.Zero
	}
	return c
}

// Total returns the current cart total.
func (s *State) Total() decimal.Decimal { return s.Cart.Total() }

// Change returns the change due for tendered against the current total.
func (s *State) Change(tendered decimal.Decimal) decimal.Decimal {
	return Change(s.Total(), tendered)
}

// ValidateCheckout reports whether the cart can be settled with method and
// tendered. Cash must cover the total. QRIS has no tender requirement.
func (s *State) ValidateCheckout(method model.PaymentMethod, tendered decimal.Decimal) error {
	if !method.Valid() {
		return fmt.Errorf("checkout with %q: %w", method, ErrInvalidPaymentMethod)
	}
	if s.Cart.IsEmpty() {
		return ErrEmptyCart
	}
	if method == model.PaymentCash && ClampTender(tendered).LessThan(s.Total()) {
		return fmt.Errorf("tendered %s for total %s: %w", ClampTender(tendered).StringFixed(2), s.Total().StringFixed(2), ErrInsufficientTender)
	}
	return nil
}

// Finalize snapshots the cart into a transaction, records it in history and
// clears the cart. QRIS transactions record the total as tendered with no
// change and carry paymentURL.
func (s *State) Finalize(method model.PaymentMethod, tendered decimal.Decimal, paymentURL string, now time.Time) (model.Transaction, error) {
	if err := s.ValidateCheckout(method, tendered); err != nil {
		return model.Transaction{}, err
	}
	id, err := uuid.NewV7()
	if err != nil {
		return model.Transaction{}, fmt.Errorf("transaction id: %w", err)
	}
	total := s.Total()
	tx := model.Transaction{
		ID:        id.String(),
		CreatedAt: now.UTC(),
		Lines:     s.Cart.Lines(),
		Total:     total,
		Method:    method,
	}
	switch method {
	case model.PaymentCash:
		tx.Tendered = ClampTender(tendered)
		tx.Change = Change(total, tendered)
	case model.PaymentQRIS:
		tx.Tendered = total
		tx.Change = decimal.Zero
		tx.PaymentURL = paymentURL
	}
	s.History.Append(tx)
	s.Cart.Clear()
	return tx, nil
}
