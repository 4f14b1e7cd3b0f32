package importer

import "math"

// RoundHalfUp rounds v half-up at the given decimal precision, clamped to
// [0, 8]. The epsilon nudge counteracts binary representation error so that
// e.g. RoundHalfUp(10.125, 2) == 10.13 rather than 10.12.
func RoundHalfUp(v float64, precision int) float64 {
	if precision < 0 {
		precision = 0
	}
	if precision > 8 {
		precision = 8
	}
	pow := math.Pow(10, float64(precision))
	return math.Round(v*pow+math.Copysign(1e-9, v)) / pow
}

// CalcCostAfterDiscount applies a percentage discount to a cost and rounds
// the result. A discount of zero or less is a passthrough: the cost is
// returned exactly as given, unrounded.
func CalcCostAfterDiscount(cost, discountPercent float64, precision int) float64 {
	if discountPercent <= 0 {
		return cost
	}
	return RoundHalfUp(cost*(1-discountPercent/100), precision)
}

// SellPriceInput feeds CalcSellPrice. Cost is gross (VAT-inclusive) by
// convention; CostAfterDiscount, when set, replaces Cost as the base.
type SellPriceInput struct {
	Cost              float64
	CostAfterDiscount *float64
	MarginPercent     float64
	VATPercent        float64
	UseMargin         bool
	UseVAT            bool
	Precision         int
}

// CalcSellPrice computes the sell price from a gross cost. With UseVAT the
// net cost is recovered first (divide by 1+vat/100), margin is applied only
// with UseMargin, and VAT is re-applied only with UseVAT. Intermediate
// arithmetic is full-precision; rounding happens once at the end.
func CalcSellPrice(in SellPriceInput) float64 {
	base := in.Cost
	if in.CostAfterDiscount != nil {
		base = *in.CostAfterDiscount
	}

	v := base
	if in.UseVAT {
		v /= 1 + in.VATPercent/100
	}
	if in.UseMargin {
		v *= 1 + in.MarginPercent/100
	}
	if in.UseVAT {
		v *= 1 + in.VATPercent/100
	}
	return RoundHalfUp(v, in.Precision)
}
