package order

// All monetary arithmetic uses integer minor units (cents). Rates are basis
// points (1900 = 19%) so tax can be computed without floating point.

// LineTotal computes a line's total in minor units.
func LineTotal(unitPrice int64, quantity int) int64 {
	return unitPrice * int64(quantity)
}

// Subtotal sums line totals over items.
func Subtotal(items []Item) int64 {
	var total int64
	for _, item := range items {
		total += LineTotal(item.UnitPrice, item.Quantity)
	}
	return total
}

// Tax computes round(subtotal * rate) with half-up rounding in minor units.
func Tax(subtotal int64, rateBp int) int64 {
	if subtotal <= 0 || rateBp <= 0 {
		return 0
	}
	return (subtotal*int64(rateBp) + 5000) / 10000
}

// Total computes subtotal + tax - discount, clamped at zero.
func Total(subtotal, tax, discount int64) int64 {
	total := subtotal + tax - discount
	if total < 0 {
		return 0
	}
	return total
}
