package catalog

import (
	"strings"

	"github.com/shopspring/decimal"
)

const (
	discountPercentage = "percentage"
	discountAmount     = "amount"
)

var hundred = decimal.NewFromInt(100)

// Prices holds a record's base and final price. 0 <= Final <= Base.
type Prices struct {
	Base  decimal.Decimal
	Final decimal.Decimal
}

// priceOf reads the base price and derives the final price from the first
// layer carrying a pricing rule. Within a layer the order is: explicit final
// price, discount object, flat percentage, flat amount.
func priceOf(r layered) Prices {
	base, _ := r.decimal("price", "basePrice")
	if base.IsNegative() {
		base = decimal.Zero
	}
	base = base.Round(2)

	for _, layer := range r {
		if layer == nil {
			continue
		}
		if final, ok := finalFrom(layered{layer}, base); ok {
			return Prices{Base: base, Final: final}
		}
	}
	return Prices{Base: base, Final: base}
}

func finalFrom(r layered, base decimal.Decimal) (decimal.Decimal, bool) {
	if final, ok := r.decimal("finalPrice", "discountedPrice"); ok {
		return clampPrice(final, base), true
	}
	if obj, ok := r.object("discount"); ok {
		d := layered{obj}
		value, _ := d.decimal("value", "amount")
		switch strings.ToLower(d.str("type", "kind")) {
		case discountPercentage, "percent":
			return applyPercentage(base, value), true
		case discountAmount, "fixed":
			return clampPrice(base.Sub(value), base), true
		}
	}
	if pct, ok := r.decimal("discountPercentage"); ok {
		return applyPercentage(base, pct), true
	}
	if amt, ok := r.decimal("discountAmount"); ok {
		return clampPrice(base.Sub(amt), base), true
	}
	return decimal.Zero, false
}

func applyPercentage(base, pct decimal.Decimal) decimal.Decimal {
	pct = decimal.Max(decimal.Zero, decimal.Min(pct, hundred))
	return clampPrice(base.Mul(hundred.Sub(pct)).Div(hundred), base)
}

func clampPrice(v, base decimal.Decimal) decimal.Decimal {
	v = v.Round(2)
	if v.IsNegative() {
		return decimal.Zero
	}
	if v.GreaterThan(base) {
		return base
	}
	return v
}
