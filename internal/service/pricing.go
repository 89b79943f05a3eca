package service

import "github.com/shopspring/decimal"

var hundred = decimal.NewFromInt(100)

// Price is the breakdown of one purchase.
type Price struct {
	Subtotal   decimal.Decimal `json:"subtotal"`
	Discount   decimal.Decimal `json:"discount"`
	PointsUsed int64           `json:"points_used"`
	Total      decimal.Decimal `json:"total"`
}

// Quote prices a purchase.  The voucher's fixed amount comes off first,
// then the coupon percentage of what is left; together they never exceed
// the subtotal.  Points (one point per currency unit) pay whole units of
// the remainder, capped by what was requested and what is available.
func Quote(subtotal, voucherAmount, couponPercent decimal.Decimal, pointsRequested, pointsAvailable int64) Price {
	if subtotal.IsNegative() {
		subtotal = decimal.Zero
	}
	afterVoucher := subtotal.Sub(decimal.Max(voucherAmount, decimal.Zero))
	if afterVoucher.IsNegative() {
		afterVoucher = decimal.Zero
	}
	pct := decimal.Min(decimal.Max(couponPercent, decimal.Zero), hundred)
	couponCut := afterVoucher.Mul(pct).Div(hundred).Round(2)
	remaining := afterVoucher.Sub(couponCut)

	points := pointsRequested
	if points > pointsAvailable {
		points = pointsAvailable
	}
	if whole := remaining.Floor().IntPart(); points > whole {
		points = whole
	}
	if points < 0 {
		points = 0
	}

	return Price{
		Subtotal:   subtotal,
		Discount:   subtotal.Sub(remaining),
		PointsUsed: points,
		Total:      remaining.Sub(decimal.NewFromInt(points)),
	}
}
