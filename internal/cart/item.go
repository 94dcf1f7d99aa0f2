package cart

import (
	"github.com/roach88/shopcart/internal/shop"
)

// LineItem is one product's entry in the cart.
//
// JSON names match the persisted format shared with the web client:
// productId, productName, price, stock, qty.
type LineItem struct {
	ProductID   shop.ID    `json:"productId"`
	ProductName string     `json:"productName"`
	UnitPrice   shop.Money `json:"price"`
	Stock       *int       `json:"stock,omitempty"` // nil = unbounded
	Quantity    int        `json:"qty"`
}

// Subtotal returns unit price × quantity.
func (li LineItem) Subtotal() shop.Money {
	return li.UnitPrice.Times(li.Quantity)
}

// clamp limits qty to [0, stock]. A nil stock is unbounded.
func clamp(qty int, stock *int) int {
	if qty < 0 {
		return 0
	}
	if stock != nil && qty > *stock {
		if *stock < 0 {
			return 0
		}
		return *stock
	}
	return qty
}

// Stock returns a pointer to n, for building line items.
func Stock(n int) *int {
	return &n
}

// Cart is an ordered list of line items keyed by product id.
type Cart []LineItem

// Index returns the position of the line for id, or -1.
func (c Cart) Index(id shop.ID) int {
	target := shop.NewID(id.String())
	for i, li := range c {
		if shop.NewID(li.ProductID.String()) == target {
			return i
		}
	}
	return -1
}

// Find returns the line for id.
func (c Cart) Find(id shop.ID) (LineItem, bool) {
	if i := c.Index(id); i >= 0 {
		return c[i], true
	}
	return LineItem{}, false
}

// TotalQuantity returns the sum of quantities across all lines.
func (c Cart) TotalQuantity() int {
	n := 0
	for _, li := range c {
		n += li.Quantity
	}
	return n
}

// TotalPrice returns the sum of line subtotals in minor units.
func (c Cart) TotalPrice() shop.Money {
	var total shop.Money
	for _, li := range c {
		total = total.Plus(li.Subtotal())
	}
	return total
}

// Select returns the lines whose product id is in ids, in cart order.
func (c Cart) Select(ids []shop.ID) Cart {
	out := Cart{}
	for _, li := range c {
		if shop.ContainsID(ids, li.ProductID) {
			out = append(out, li)
		}
	}
	return out
}

// clone returns a copy whose Stock pointers are not shared.
func (c Cart) clone() Cart {
	out := make(Cart, len(c))
	for i, li := range c {
		if li.Stock != nil {
			li.Stock = Stock(*li.Stock)
		}
		out[i] = li
	}
	return out
}
