package pos

import (
	"github.com/fairyhunter13/pos-session-service/internal/model"
	"github.com/shopspring/decimal"
)

// History is the list of finalized transactions, newest first.
type History struct {
	txs []model.Transaction
}

// Append records tx as the newest transaction.
func (h *History) Append(tx model.Transaction) {
	h.txs = append([]model.Transaction{tx}, h.txs...)
}

// List returns the transactions, newest first.
func (h *History) List() []model.Transaction {
	out := make([]model.Transaction, len(h.txs))
	copy(out, h.txs)
	return out
}

// Len returns the number of recorded transactions.
func (h *History) Len() int { return len(h.txs) }

// Report folds the whole history into sales totals. Lines without a cost
// basis add to revenue but not to profit.
func (h *History) Report() model.Report {
	r := model.Report{Revenue: decimal.Zero, Profit: decimal.Zero}
	for _, tx := range h.txs {
		r.Transactions++
		for _, l := range tx.Lines {
			qty := decimal.NewFromInt(int64(l.Quantity))
			r.ItemsSold += l.Quantity
			r.Revenue = r.Revenue.Add(l.UnitPrice.Mul(qty))
			if l.UnitCost.Valid {
				r.Profit = r.Profit.Add(l.UnitPrice.Sub(l.UnitCost.Decimal).Mul(qty))
			}
		}
	}
	return r
}
