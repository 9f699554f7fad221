package cart

import (
	"strings"

	"bookstore-pos/internal/domain"
)

// Ledger holds the line items of the sale in progress. It is not safe for
// concurrent use; the checkout service serializes access to it.
type Ledger struct {
	lines []domain.CartLineItem
}

func New() *Ledger {
	return &Ledger{}
}

// AddItem increments the line for the product or appends a new line with
// quantity 1.
func (l *Ledger) AddItem(p domain.Product) {
	code := strings.TrimSpace(p.Code)
	if idx := l.index(code); idx >= 0 {
		l.lines[idx].Quantity++
		return
	}
	l.lines = append(l.lines, domain.CartLineItem{
		ProductCode:       code,
		Title:             p.Title,
		UnitPriceOriginal: p.Price,
		Quantity:          1,
		PromotionCode:     p.PromotionCode,
		PromotionValue:    p.PromotionValue,
	})
}

// UpdateQuantity sets the quantity of a line; a quantity of zero or less
// removes it.
func (l *Ledger) UpdateQuantity(code string, qty int) error {
	idx := l.index(strings.TrimSpace(code))
	if idx < 0 {
		return domain.ErrNotFound
	}
	if qty <= 0 {
		l.removeAt(idx)
		return nil
	}
	l.lines[idx].Quantity = qty
	return nil
}

func (l *Ledger) RemoveItem(code string) error {
	idx := l.index(strings.TrimSpace(code))
	if idx < 0 {
		return domain.ErrNotFound
	}
	l.removeAt(idx)
	return nil
}

func (l *Ledger) Clear() {
	l.lines = nil
}

// Lines returns a copy of the current lines in insertion order.
func (l *Ledger) Lines() []domain.CartLineItem {
	out := make([]domain.CartLineItem, len(l.lines))
	copy(out, l.lines)
	return out
}

func (l *Ledger) Len() int {
	return len(l.lines)
}

func (l *Ledger) index(code string) int {
	for i, line := range l.lines {
		if line.ProductCode == code {
			return i
		}
	}
	return -1
}

func (l *Ledger) removeAt(idx int) {
	l.lines = append(l.lines[:idx], l.lines[idx+1:]...)
}
