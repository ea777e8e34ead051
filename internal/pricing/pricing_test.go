package pricing_test

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/awibowo/backend-storefront/internal/coupon"
	"github.com/awibowo/backend-storefront/internal/pricing"
)

var (
	taxRate = decimal.NewFromFloat(0.08)
	policy  = pricing.ShippingPolicy{
		FreeThreshold: decimal.NewFromInt(50),
		FlatFee:       decimal.NewFromFloat(5.99),
	}
)

func dec(t *testing.T, s string) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(s)
	require.NoError(t, err)
	return d
}

func sampleCart(t *testing.T) []pricing.LineItem {
	return []pricing.LineItem{
		{UnitPrice: dec(t, "99.99"), Qty: 1},
		{UnitPrice: dec(t, "199.99"), Qty: 2},
	}
}

func TestSubtotalExact(t *testing.T) {
	subtotal := pricing.Subtotal(sampleCart(t))
	require.True(t, subtotal.Equal(dec(t, "499.97")), "got %s", subtotal)
}

func TestComputeNoCoupon(t *testing.T) {
	summary := pricing.Compute(sampleCart(t), nil, taxRate, policy).Round()
	require.Equal(t, "499.97", summary.Subtotal.StringFixed(2))
	require.Equal(t, "0.00", summary.ShippingFee.StringFixed(2))
	require.Equal(t, "40.00", summary.TaxAmount.StringFixed(2))
	require.Equal(t, "0.00", summary.DiscountAmount.StringFixed(2))
	require.Equal(t, "539.97", summary.Total.StringFixed(2))
}

func TestComputePercentageCoupon(t *testing.T) {
	rules := []coupon.Rule{{
		Code:        "WELCOME10",
		Kind:        coupon.KindPercentage,
		Value:       decimal.NewFromInt(10),
		MinSubtotal: decimal.NewFromInt(50),
		Active:      true,
	}}
	items := sampleCart(t)
	resolved, err := coupon.Resolve("welcome10", pricing.Subtotal(items), rules, time.Now())
	require.NoError(t, err)

	summary := pricing.Compute(items, &resolved, taxRate, policy).Round()
	require.Equal(t, "50.00", summary.DiscountAmount.StringFixed(2))
	require.Equal(t, "36.00", summary.TaxAmount.StringFixed(2))
	require.Equal(t, "485.97", summary.Total.StringFixed(2))
}

func TestCouponRoundTripRestoresTotal(t *testing.T) {
	items := sampleCart(t)
	before := pricing.Compute(items, nil, taxRate, policy)

	rules := []coupon.Rule{{
		Code:   "TENOFF",
		Kind:   coupon.KindFixedAmount,
		Value:  decimal.NewFromInt(10),
		Active: true,
	}}
	resolved, err := coupon.Resolve("TENOFF", pricing.Subtotal(items), rules, time.Now())
	require.NoError(t, err)
	withCoupon := pricing.Compute(items, &resolved, taxRate, policy)
	require.False(t, withCoupon.Total.Equal(before.Total))

	after := pricing.Compute(items, nil, taxRate, policy)
	require.True(t, after.Total.Equal(before.Total))
}

func TestShippingFreeAboveThreshold(t *testing.T) {
	cases := []struct {
		subtotal string
		fee      string
	}{
		{"0", "5.99"},
		{"49.99", "5.99"},
		{"50", "0"},
		{"50.01", "0"},
		{"499.97", "0"},
	}
	for _, tc := range cases {
		fee := policy.Fee(dec(t, tc.subtotal))
		require.True(t, fee.Equal(dec(t, tc.fee)), "subtotal %s: got %s", tc.subtotal, fee)
	}
}

func TestFreeShippingCouponZeroesFee(t *testing.T) {
	items := []pricing.LineItem{{UnitPrice: dec(t, "10.00"), Qty: 1}}
	resolved := coupon.Resolved{Rule: coupon.Rule{Kind: coupon.KindFreeShipping}}
	summary := pricing.Compute(items, &resolved, taxRate, policy)
	require.True(t, summary.ShippingFee.IsZero())
	require.True(t, summary.DiscountAmount.IsZero())
}

func TestTotalNeverNegative(t *testing.T) {
	items := []pricing.LineItem{{UnitPrice: dec(t, "5.00"), Qty: 1}}
	resolved := coupon.Resolved{
		Rule:     coupon.Rule{Kind: coupon.KindFixedAmount, Value: decimal.NewFromInt(100)},
		Discount: decimal.NewFromInt(5),
	}
	summary := pricing.Compute(items, &resolved, taxRate, policy)
	require.False(t, summary.Total.IsNegative())
	require.False(t, summary.TaxAmount.IsNegative())
}

func TestZeroQuantitySkipped(t *testing.T) {
	items := []pricing.LineItem{
		{UnitPrice: dec(t, "10.00"), Qty: 0},
		{UnitPrice: dec(t, "10.00"), Qty: 2},
	}
	require.True(t, pricing.Subtotal(items).Equal(dec(t, "20.00")))
}
