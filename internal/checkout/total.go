package checkout

import (
	"github.com/roach88/shopcart/internal/cart"
	"github.com/roach88/shopcart/internal/shop"
)

// ComputeTotal returns the payable amount of lines as a string with exactly
// two decimals. Sums are taken in integer cents.
func ComputeTotal(lines []cart.LineItem) string {
	var cents shop.Money
	for _, li := range lines {
		cents = cents.Plus(li.UnitPrice.Times(li.Quantity))
	}
	return cents.String()
}
