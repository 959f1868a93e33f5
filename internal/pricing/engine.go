package pricing

// Money represents a monetary value stored in minor units (paise).
type Money = int64

// LineItem describes one cart or order line used for total calculation.
type LineItem struct {
	Qty         int
	UnitPrice   Money
	DiscountBps int
}

// Summary aggregates the computed pricing components.
type Summary struct {
	Subtotal Money
	Discount Money
	Tax      Money
	Total    Money
}

// Compute calculates order totals for the provided lines. Discounts are
// applied per line before GST is charged on the discounted amount. All
// divisions round half up so persisted amounts are exact to the paisa.
func Compute(items []LineItem, taxBps int) Summary {
	var subtotal, discount Money
	for _, it := range items {
		if it.Qty <= 0 {
			continue
		}
		line := Money(it.Qty) * it.UnitPrice
		subtotal += line
		bps := ClampBps(it.DiscountBps)
		if bps > 0 {
			discount += divHalfUp(line*Money(bps), 10000)
		}
	}
	taxable := subtotal - discount
	if taxable < 0 {
		taxable = 0
	}
	var tax Money
	if taxBps > 0 {
		tax = divHalfUp(taxable*Money(taxBps), 10000)
	}
	return Summary{
		Subtotal: subtotal,
		Discount: discount,
		Tax:      tax,
		Total:    subtotal - discount + tax,
	}
}

// PercentToBps converts a discount percentage to basis points, clamping the
// input to [0, 100]. Fractional percentages are kept to bps precision.
func PercentToBps(percent float64) int {
	if percent < 0 {
		return 0
	}
	if percent > 100 {
		return 10000
	}
	return int(percent*100 + 0.5)
}

// ClampBps bounds a basis-point value to the valid discount range.
func ClampBps(bps int) int {
	if bps < 0 {
		return 0
	}
	if bps > 10000 {
		return 10000
	}
	return bps
}

func divHalfUp(numerator, denominator Money) Money {
	if denominator <= 0 {
		return 0
	}
	if numerator >= 0 {
		return (numerator + denominator/2) / denominator
	}
	return -((-numerator + denominator/2) / denominator)
}
