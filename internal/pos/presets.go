package pos

import (
	"github.com/fairyhunter13/pos-session-service/internal/model"
	"github.com/shopspring/decimal"
)

// Preset describes one POS page: its default catalog and how its state is
// kept.
type Preset struct {
	Name       string
	Title      string
	StorageKey string
	TrackStock bool
	Persist    bool
	Invoice    InvoiceLayout
	products   []model.Product
}

// Products returns a copy of the preset's default catalog.
func (p Preset) Products() []model.Product {
	out := make([]model.Product, len(p.products))
	copy(out, p.products)
	return out
}

func costed(id, name, desc, cost, price string, stock int) model.Product {
	return model.Product{
		ID:          id,
		Name:        name,
		Description: desc,
		UnitPrice:   decimal.RequireFromString(price),
		UnitCost:    decimal.NewNullDecimal(decimal.RequireFromString(cost)),
		Stock:       stock,
	}
}

func priced(id, name, price string) model.Product {
	return model.Product{ID: id, Name: name, UnitPrice: decimal.RequireFromString(price)}
}

var (
	// CoffeeShop tracks stock and cost basis and persists across sessions.
	CoffeeShop = Preset{
		Name:       "coffee-shop",
		Title:      "Coffee Shop",
		StorageKey: "coffee-shop-storage",
		TrackStock: true,
		Persist:    true,
		products: []model.Product{
			costed("espresso", "Espresso", "Strong and bold", "1.5", "2.5", 50),
			costed("cappuccino", "Cappuccino", "Creamy with a perfect balance", "2.0", "3.5", 40),
			costed("latte", "Latte", "Smooth and milky", "2.25", "3.75", 45),
			costed("americano", "Americano", "Classic and simple", "1.75", "3.0", 55),
			costed("mocha", "Mocha", "Chocolate-coffee indulgence", "2.5", "4.0", 35),
			costed("macchiato", "Macchiato", "Espresso with a touch of milk", "2.0", "3.25", 30),
			costed("flat-white", "Flat White", "Strong yet creamy", "2.25", "3.75", 40),
			costed("affogato", "Affogato", "Ice cream meets espresso", "3.0", "4.5", 25),
			costed("cold-brew", "Cold Brew", "Smooth and refreshing", "2.25", "3.75", 50),
			costed("iced-latte", "Iced Latte", "Chilled coffee perfection", "2.5", "4.0", 45),
		},
	}

	// IceCream has unlimited stock, no cost basis and lives only as long as
	// its session.
	IceCream = Preset{
		Name:    "ice-cream",
		Title:   "Ice Cream",
		Invoice: InvoiceCompact,
		products: []model.Product{
			priced("vanilla", "Vanilla Delight", "3.99"),
			priced("chocolate", "Chocolate Dream", "4.49"),
			priced("strawberry", "Strawberry Bliss", "4.29"),
			priced("mint", "Mint Chip Madness", "4.79"),
			priced("cookie", "Cookie Dough Craze", "4.99"),
			priced("mango", "Mango Tango", "4.59"),
		},
	}
)

// LookupPreset finds a preset by name.
func LookupPreset(name string) (Preset, bool) {
	switch name {
	case CoffeeShop.Name:
		return CoffeeShop, true
	case IceCream.Name:
		return IceCream, true
	}
	return Preset{}, false
}

// NewPreset builds a custom preset, mainly for tests.
func NewPreset(name string, trackStock, persist bool, products []model.Product) Preset {
	return Preset{
		Name:       name,
		Title:      name,
		StorageKey: name + "-storage",
		TrackStock: trackStock,
		Persist:    persist,
		products:   products,
	}
}
