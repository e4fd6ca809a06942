package pos

import (
	"encoding/json"
	"fmt"

	"github.com/fairyhunter13/pos-session-service/internal/model"
)

// State is the explicit state container of one POS page.
type State struct {
	Catalog *Catalog
	Cart    *Cart
	History *History
}

// NewState returns the default state of preset.
func NewState(preset Preset) *State {
	cat := NewCatalog(preset.Products(), preset.TrackStock)
	return &State{Catalog: cat, Cart: NewCart(cat), History: &History{}}
}

// Snapshot captures the state for persistence.
func (s *State) Snapshot(revision uint64) model.Snapshot {
	return model.Snapshot{
		Revision: revision,
		Products: s.Catalog.List(),
		Cart:     s.Cart.Lines(),
		History:  s.History.List(),
	}
}

// Restore rebuilds state from a snapshot taken with the same preset.
func Restore(preset Preset, snap model.Snapshot) (*State, error) {
	if len(snap.Products) == 0 {
		return nil, fmt.Errorf("no products: %w", ErrCorruptSnapshot)
	}
	cat := NewCatalog(snap.Products, preset.TrackStock)
	if len(cat.index) != len(snap.Products) {
		return nil, fmt.Errorf("duplicate product ids: %w", ErrCorruptSnapshot)
	}
	seen := make(map[string]bool, len(snap.Cart))
	for _, l := range snap.Cart {
		if _, ok := cat.Get(l.ProductID); !ok {
			return nil, fmt.Errorf("cart line %q: %w", l.ProductID, ErrCorruptSnapshot)
		}
		if l.Quantity <= 0 || seen[l.ProductID] {
			return nil, fmt.Errorf("cart line %q: %w", l.ProductID, ErrCorruptSnapshot)
		}
		seen[l.ProductID] = true
	}
	cart := NewCart(cat)
	cart.lines = append(cart.lines, snap.Cart...)
	hist := &History{txs: append([]model.Transaction(nil), snap.History...)}
	return &State{Catalog: cat, Cart: cart, History: hist}, nil
}

// EncodeSnapshot serializes a snapshot for storage.
func EncodeSnapshot(snap model.Snapshot) ([]byte, error) {
	return json.Marshal(snap)
}

// DecodeSnapshot parses a stored snapshot.
func DecodeSnapshot(data []byte) (model.Snapshot, error) {
	var snap model.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return model.Snapshot{}, fmt.Errorf("%w: %v", ErrCorruptSnapshot, err)
	}
	return snap, nil
}
