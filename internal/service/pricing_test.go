package service

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestQuote(t *testing.T) {
	cases := []struct {
		name      string
		subtotal  string
		voucher   string
		coupon    string
		requested int64
		available int64
		discount  string
		points    int64
		total     string
	}{
		{"plain", "300000", "0", "0", 0, 0, "0", 0, "300000"},
		{"voucher then coupon", "300000", "50000", "10", 0, 0, "75000", 0, "225000"},
		{"points capped by balance", "100000", "0", "0", 50000, 20000, "0", 20000, "80000"},
		{"points capped by remaining", "100000", "0", "10", 500000, 500000, "10000", 90000, "0"},
		{"voucher larger than subtotal", "20000", "50000", "10", 100, 100, "20000", 0, "0"},
		{"fractional remainder keeps cents", "100.50", "0", "0", 1000, 1000, "0", 100, "0.5"},
		{"coupon rounding", "99.99", "0", "10", 0, 0, "10", 0, "89.99"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p := Quote(d(tc.subtotal), d(tc.voucher), d(tc.coupon), tc.requested, tc.available)
			assert.True(t, d(tc.discount).Equal(p.Discount), "discount %s", p.Discount)
			assert.Equal(t, tc.points, p.PointsUsed)
			assert.True(t, d(tc.total).Equal(p.Total), "total %s", p.Total)
			assert.False(t, p.Total.IsNegative())
		})
	}
}
