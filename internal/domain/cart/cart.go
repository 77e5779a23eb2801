// Package cart implements the caller-held order state of a conversation.
//
// A Cart is a value: every operation returns a new Cart and leaves its
// receiver untouched, so a request can never leak changes into the cart
// the client sent.
package cart

import (
	"github.com/shopspring/decimal"

	"github.com/xenking/menuchat/internal/domain/catalog"
)

// Line is a single cart entry. Name and Price are snapshots taken when the
// item was first added.
type Line struct {
	ID       string
	Name     string
	Price    decimal.Decimal
	Quantity int
}

// MaxQuantity bounds the quantity of a single line. Adds and merges that
// would exceed it saturate at MaxQuantity, so a line quantity is always in
// [1, MaxQuantity] whatever the client sends.
const MaxQuantity = 999

// Cart is an ordered list of lines, at most one per item id.
type Cart []Line

// addQuantity returns a+b saturated at MaxQuantity. Both are non-negative.
func addQuantity(a, b int) int {
	if b > MaxQuantity-a {
		return MaxQuantity
	}
	return a + b
}

// Find returns the index of the line for id, or -1.
func (c Cart) Find(id string) int {
	for i, l := range c {
		if l.ID == id {
			return i
		}
	}
	return -1
}

// Add returns a cart with qty more of item. An existing line keeps its
// snapshot and has its quantity increased; otherwise a new line is appended.
// The resulting quantity saturates at MaxQuantity.
func (c Cart) Add(item catalog.Item, qty int) Cart {
	if qty < 1 {
		return c.clone()
	}
	next := c.clone()
	if i := next.Find(item.ID); i >= 0 {
		next[i].Quantity = addQuantity(next[i].Quantity, qty)
		return next
	}
	return append(next, Line{
		ID:       item.ID,
		Name:     item.Name,
		Price:    item.Price,
		Quantity: min(qty, MaxQuantity),
	})
}

// Remove returns a cart with qty fewer of id. The line is dropped once its
// quantity reaches zero. The boolean reports whether id was in the cart.
func (c Cart) Remove(id string, qty int) (Cart, bool) {
	i := c.Find(id)
	if i < 0 {
		return c.clone(), false
	}
	next := c.clone()
	remaining := next[i].Quantity - max(qty, 0)
	if remaining > 0 {
		next[i].Quantity = remaining
		return next, true
	}
	return append(next[:i], next[i+1:]...), true
}

// Subtotal returns the sum of price * quantity across all lines.
func (c Cart) Subtotal() decimal.Decimal {
	sum := decimal.Zero
	for _, l := range c {
		sum = sum.Add(l.Price.Mul(decimal.NewFromInt(int64(l.Quantity))))
	}
	return sum
}

// Normalize restores the cart invariants on untrusted input: lines without
// an id or with a non-positive quantity are dropped, and repeated ids are
// merged into the first occurrence. Quantities above MaxQuantity, given or
// produced by a merge, are clamped to MaxQuantity.
func (c Cart) Normalize() Cart {
	next := make(Cart, 0, len(c))
	for _, l := range c {
		if l.ID == "" || l.Quantity < 1 {
			continue
		}
		if i := next.Find(l.ID); i >= 0 {
			next[i].Quantity = addQuantity(next[i].Quantity, l.Quantity)
			continue
		}
		l.Quantity = min(l.Quantity, MaxQuantity)
		next = append(next, l)
	}
	return next
}

func (c Cart) clone() Cart {
	next := make(Cart, len(c), len(c)+1)
	copy(next, c)
	return next
}
