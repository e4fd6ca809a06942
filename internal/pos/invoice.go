package pos

import (
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/fairyhunter13/pos-session-service/internal/model"
	"github.com/shopspring/decimal"
)

// InvoiceLayout selects how a preset's receipt is laid out.
type InvoiceLayout int

const (
	// InvoiceItemized rules off the totals and names the payment method.
	InvoiceItemized InvoiceLayout = iota
	// InvoiceCompact lists lines, then total, amount paid and change.
	InvoiceCompact
)

// FormatMoney renders an amount as US dollars, e.g. $1,234.50.
func FormatMoney(d decimal.Decimal) string {
	sign := ""
	if d.IsNegative() {
		sign = "-"
		d = d.Neg()
	}
	return sign + "$" + humanize.FormatFloat("#,###.##", d.Round(2).InexactFloat64())
}

// RenderInvoice renders the plain-text receipt for a transaction in the
// preset's layout.
func RenderInvoice(p Preset, tx model.Transaction) string {
	if p.Invoice == InvoiceCompact {
		return renderCompact(p.Title+" POS Invoice", tx)
	}
	return renderItemized(p.Title+" Invoice", tx)
}

func writeLines(b *strings.Builder, tx model.Transaction) {
	for _, l := range tx.Lines {
		fmt.Fprintf(b, "%s x%d: %s\n", l.Name, l.Quantity, FormatMoney(l.Subtotal()))
	}
}

func renderItemized(heading string, tx model.Transaction) string {
	const rule = "-------------------"
	var b strings.Builder
	fmt.Fprintf(&b, "%s\n%s\n", heading, rule)
	writeLines(&b, tx)
	fmt.Fprintf(&b, "%s\nTotal: %s\n", rule, FormatMoney(tx.Total))
	fmt.Fprintf(&b, "Payment Method: %s\n", strings.ToUpper(string(tx.Method)))
	switch tx.Method {
	case model.PaymentCash:
		fmt.Fprintf(&b, "Cash Received: %s\nChange: %s\n", FormatMoney(tx.Tendered), FormatMoney(tx.Change))
	case model.PaymentQRIS:
		if tx.PaymentURL != "" {
			fmt.Fprintf(&b, "Pay at: %s\n", tx.PaymentURL)
		}
	}
	b.WriteString("Thank you for your purchase!\n")
	return b.String()
}

func renderCompact(heading string, tx model.Transaction) string {
	const rule = "---------------------"
	var b strings.Builder
	fmt.Fprintf(&b, "%s\n%s\n", heading, rule)
	writeLines(&b, tx)
	fmt.Fprintf(&b, "\nTotal: %s\nAmount Paid: %s\nChange: %s\n",
		FormatMoney(tx.Total), FormatMoney(tx.Tendered), FormatMoney(tx.Change))
	if tx.PaymentURL != "" {
		fmt.Fprintf(&b, "Pay at: %s\n", tx.PaymentURL)
	}
	return b.String()
}
