// Package pos holds the point-of-sale state: catalog, cart, checkout and
// history. Nothing in this package is safe for concurrent use; callers
// serialize access.
package pos

import (
	"fmt"

	"github.com/fairyhunter13/pos-session-service/internal/model"
)

// Catalog is the ordered product list of one page.
type Catalog struct {
	trackStock bool
	products   []model.Product
	index      map[string]int
}

// NewCatalog copies products into a catalog. Negative stock is clamped to
// zero. When trackStock is false stock values are ignored.
func NewCatalog(products []model.Product, trackStock bool) *Catalog {
	c := &Catalog{
		trackStock: trackStock,
		products:   make([]model.Product, len(products)),
		index:      make(map[string]int, len(products)),
	}
	copy(c.products, products)
	for i := range c.products {
		if c.products[i].Stock < 0 || !trackStock {
			c.products[i].Stock = 0
		}
		c.index[c.products[i].ID] = i
	}
	return c
}

// TracksStock reports whether stock limits additions to the cart.
func (c *Catalog) TracksStock() bool { return c.trackStock }

// List returns all products in catalog order.
func (c *Catalog) List() []model.Product {
	out := make([]model.Product, len(c.products))
	copy(out, c.products)
	return out
}

// Get returns the product with the given id.
func (c *Catalog) Get(id string) (model.Product, bool) {
	i, ok := c.index[id]
	if !ok {
		return model.Product{}, false
	}
	return c.products[i], true
}

// AdjustStock applies a signed delta to a product's stock. The result is
// floored at zero without error. Untracked catalogs leave stock untouched.
func (c *Catalog) AdjustStock(id string, delta int) (model.Product, error) {
	i, ok := c.index[id]
	if !ok {
		return model.Product{}, fmt.Errorf("adjust stock %q: %w", id, ErrProductNotFound)
	}
	if c.trackStock {
		next := c.products[i].Stock + delta
		if next < 0 {
			next = 0
		}
		c.products[i].Stock = next
	}
	return c.products[i], nil
}

// CanAdd reports whether the product can be added to the cart right now.
func (c *Catalog) CanAdd(id string) bool {
	p, ok := c.Get(id)
	if !ok {
		return false
	}
	return !c.trackStock || p.Stock > 0
}

func (c *Catalog) stock(id string) int {
	p, _ := c.Get(id)
	return p.Stock
}
