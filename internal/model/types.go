// Package model defines domain types used by the service.
package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// PaymentMethod identifies how a transaction was settled.
type PaymentMethod string

const (
	PaymentCash PaymentMethod = "cash"
	PaymentQRIS PaymentMethod = "qris"
)

// Valid reports whether m is a known payment method.
func (m PaymentMethod) Valid() bool {
	return m == PaymentCash || m == PaymentQRIS
}

// Product is a catalog entry. UnitCost is unset for catalogs that do not
// track a cost basis.
type Product struct {
	ID          string              `json:"id"`
	Name        string              `json:"name"`
	Description string              `json:"description,omitempty"`
	UnitPrice   decimal.Decimal     `json:"unit_price"`
	UnitCost    decimal.NullDecimal `json:"unit_cost"`
	Stock       int                 `json:"stock"`
}

// CartLine is a product in the cart with the price captured when it was added.
type CartLine struct {
	ProductID string              `json:"product_id"`
	Name      string              `json:"name"`
	UnitPrice decimal.Decimal     `json:"unit_price"`
	UnitCost  decimal.NullDecimal `json:"unit_cost"`
	Quantity  int                 `json:"quantity"`
}

// Subtotal returns quantity times unit price.
func (l CartLine) Subtotal() decimal.Decimal {
	return l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// Transaction is an immutable record of a finalized checkout.
type Transaction struct {
	ID         string          `json:"id"`
	CreatedAt  time.Time       `json:"created_at"`
	Lines      []CartLine      `json:"lines"`
	Total      decimal.Decimal `json:"total"`
	Method     PaymentMethod   `json:"method"`
	Tendered   decimal.Decimal `json:"tendered"`
	Change     decimal.Decimal `json:"change"`
	PaymentURL string          `json:"payment_url,omitempty"`
}

// ItemCount returns the number of units sold in the transaction.
func (t Transaction) ItemCount() int {
	n := 0
	for _, l := range t.Lines {
		n += l.Quantity
	}
	return n
}

// Report aggregates the transaction history.
type Report struct {
	Transactions int             `json:"transactions"`
	ItemsSold    int             `json:"items_sold"`
	Revenue      decimal.Decimal `json:"revenue"`
	Profit       decimal.Decimal `json:"profit"`
}

// Snapshot is the persisted page state stored under one storage key.
type Snapshot struct {
	Revision uint64        `json:"revision"`
	Products []Product     `json:"products"`
	Cart     []CartLine    `json:"cart"`
	History  []Transaction `json:"history"`
}

// SaveRequest asks the persistence writer to store an encoded snapshot.
// Sequence orders writes for the same key.
type SaveRequest struct {
	Key      string
	Data     []byte
	Sequence uint64
}
