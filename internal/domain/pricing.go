package domain

import "github.com/shopspring/decimal"

// LineTotal is (unit base price + sum of customization deltas) * quantity.
func LineTotal(it Item) decimal.Decimal {
	unit := it.UnitBasePrice
	for _, c := range it.Customizations {
		unit = unit.Add(c.PriceDelta)
	}
	return unit.Mul(decimal.NewFromInt(int64(it.Quantity)))
}

// Recalculate derives subtotal and total from the items, tip and discount.
// Total never drops below zero, however large the discount.
func Recalculate(items map[string]Item, tip, discount decimal.Decimal) (subtotal, total decimal.Decimal) {
	subtotal = decimal.Zero
	for _, it := range items {
		subtotal = subtotal.Add(LineTotal(it))
	}
	total = subtotal.Add(tip).Sub(discount)
	if total.IsNegative() {
		total = decimal.Zero
	}
	return subtotal, total
}

// Recalculated returns a copy of c with every line total, the subtotal and the total refreshed.
func (c TeamCart) Recalculated() TeamCart {
	items := make(map[string]Item, len(c.Items))
	for id, it := range c.Items {
		it.LineTotal = LineTotal(it)
		items[id] = it
	}
	c.Items = items
	c.Subtotal, c.Total = Recalculate(items, c.Tip, c.Discount)
	return c
}
