package pos

import (
	"fmt"

	"github.com/fairyhunter13/pos-session-service/internal/model"
	"github.com/shopspring/decimal"
)

// Cart holds the lines of the current sale. Stock is taken from the catalog
// when quantity goes up and handed back when it goes down.
type Cart struct {
	catalog *Catalog
	lines   []model.CartLine
}

// NewCart returns an empty cart bound to catalog.
func NewCart(catalog *Catalog) *Cart {
	return &Cart{catalog: catalog}
}

// Lines returns a copy of the cart lines in insertion order.
func (c *Cart) Lines() []model.CartLine {
	out := make([]model.CartLine, len(c.lines))
	copy(out, c.lines)
	return out
}

// IsEmpty reports whether the cart has no lines.
func (c *Cart) IsEmpty() bool { return len(c.lines) == 0 }

// ItemCount returns the total number of units in the cart.
func (c *Cart) ItemCount() int {
	n := 0
	for _, l := range c.lines {
		n += l.Quantity
	}
	return n
}

// Quantity returns the cart quantity of a product, zero if absent.
func (c *Cart) Quantity(productID string) int {
	if i := c.find(productID); i >= 0 {
		return c.lines[i].Quantity
	}
	return 0
}

// Add puts one unit of the product in the cart and takes one from stock.
func (c *Cart) Add(productID string) (model.CartLine, error) {
	p, ok := c.catalog.Get(productID)
	if !ok {
		return model.CartLine{}, fmt.Errorf("add %q: %w", productID, ErrProductNotFound)
	}
	if !c.catalog.CanAdd(productID) {
		return model.CartLine{}, fmt.Errorf("add %q: %w", productID, ErrOutOfStock)
	}
	if _, err := c.catalog.AdjustStock(productID, -1); err != nil {
		return model.CartLine{}, err
	}
	i := c.find(productID)
	if i < 0 {
		c.lines = append(c.lines, model.CartLine{
			ProductID: p.ID,
			Name:      p.Name,
			UnitPrice: p.UnitPrice,
			UnitCost:  p.UnitCost,
			Quantity:  1,
		})
		return c.lines[len(c.lines)-1], nil
	}
	c.lines[i].Quantity++
	return c.lines[i], nil
}

// ChangeQuantity moves a line's quantity by delta. The quantity never goes
// below zero and a line that reaches zero is removed. Increases are capped by
// the stock left in a tracked catalog. Stock moves by the inverse of the
// change actually applied. The returned line has Quantity zero when removed.
func (c *Cart) ChangeQuantity(productID string, delta int) (model.CartLine, error) {
	i := c.find(productID)
	if i < 0 {
		return model.CartLine{}, fmt.Errorf("change quantity %q: %w", productID, ErrLineNotFound)
	}
	line := c.lines[i]
	applied := delta
	if applied < -line.Quantity {
		applied = -line.Quantity
	}
	if applied > 0 && c.catalog.TracksStock() {
		avail := c.catalog.stock(productID)
		if avail == 0 {
			return line, fmt.Errorf("change quantity %q: %w", productID, ErrOutOfStock)
		}
		if applied > avail {
			applied = avail
		}
	}
	if applied == 0 {
		return line, nil
	}
	if _, err := c.catalog.AdjustStock(productID, -applied); err != nil {
		return model.CartLine{}, err
	}
	line.Quantity += applied
	if line.Quantity == 0 {
		c.lines = append(c.lines[:i], c.lines[i+1:]...)
		return line, nil
	}
	c.lines[i] = line
	return line, nil
}

// Clear drops every line. Stock taken by the lines is not returned.
func (c *Cart) Clear() { c.lines = nil }

// Total returns the sum of quantity times unit price over all lines.
func (c *Cart) Total() decimal.Decimal {
	t := decimal.Zero
	for _, l := range c.lines {
		t = t.Add(l.Subtotal())
	}
	return t
}

func (c *Cart) find(productID string) int {
	for i, l := range c.lines {
		if l.ProductID == productID {
			return i
		}
	}
	return -1
}
