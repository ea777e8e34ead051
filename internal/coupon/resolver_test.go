package coupon_test

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/awibowo/backend-storefront/internal/coupon"
)

func rules() []coupon.Rule {
	return []coupon.Rule{
		{
			Code:        "WELCOME10",
			Kind:        coupon.KindPercentage,
			Value:       decimal.NewFromInt(10),
			MinSubtotal: decimal.NewFromInt(50),
			Active:      true,
		},
		{
			Code:        "SUMMER25",
			Kind:        coupon.KindFixedAmount,
			Value:       decimal.NewFromInt(25),
			MinSubtotal: decimal.NewFromInt(100),
			Active:      true,
		},
		{
			Code:   "SHIPFREE",
			Kind:   coupon.KindFreeShipping,
			Active: true,
		},
	}
}

func TestResolveUnknownCode(t *testing.T) {
	_, err := coupon.Resolve("NOPE", decimal.NewFromInt(500), rules(), time.Now())
	require.ErrorIs(t, err, coupon.ErrInvalidCoupon)
}

func TestResolveCaseInsensitive(t *testing.T) {
	resolved, err := coupon.Resolve("  welcome10 ", decimal.NewFromInt(200), rules(), time.Now())
	require.NoError(t, err)
	require.Equal(t, "WELCOME10", resolved.Rule.Code)
	require.Equal(t, "20.00", resolved.Discount.StringFixed(2))
}

func TestResolveBelowMinimumSubtotal(t *testing.T) {
	_, err := coupon.Resolve("SUMMER25", decimal.NewFromInt(20), rules(), time.Now())
	var belowMin *coupon.BelowMinimumError
	require.ErrorAs(t, err, &belowMin)
	require.Equal(t, "100.00", belowMin.Required.StringFixed(2))
}

func TestResolveFixedAmountClampedToSubtotal(t *testing.T) {
	resolved, err := coupon.Resolve("SUMMER25", decimal.NewFromInt(100), []coupon.Rule{{
		Code:   "SUMMER25",
		Kind:   coupon.KindFixedAmount,
		Value:  decimal.NewFromInt(250),
		Active: true,
	}}, time.Now())
	require.NoError(t, err)
	require.Equal(t, "100.00", resolved.Discount.StringFixed(2))
}

func TestResolveFreeShipping(t *testing.T) {
	resolved, err := coupon.Resolve("SHIPFREE", decimal.NewFromInt(10), rules(), time.Now())
	require.NoError(t, err)
	require.True(t, resolved.FreeShipping())
	require.True(t, resolved.Discount.IsZero())
}

func TestResolveInactiveBehavesAsUnknown(t *testing.T) {
	expired := time.Now().Add(-time.Hour)
	catalog := []coupon.Rule{
		{Code: "OLD", Kind: coupon.KindPercentage, Value: decimal.NewFromInt(5), Active: true, EndsAt: &expired},
		{Code: "OFF", Kind: coupon.KindPercentage, Value: decimal.NewFromInt(5), Active: false},
	}
	for _, code := range []string{"OLD", "OFF"} {
		_, err := coupon.Resolve(code, decimal.NewFromInt(500), catalog, time.Now())
		require.ErrorIs(t, err, coupon.ErrInvalidCoupon, code)
	}
}

func TestResolveDeterministic(t *testing.T) {
	now := time.Now()
	subtotal := decimal.NewFromFloat(499.97)
	first, err := coupon.Resolve("WELCOME10", subtotal, rules(), now)
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		again, err := coupon.Resolve("WELCOME10", subtotal, rules(), now)
		require.NoError(t, err)
		require.True(t, again.Discount.Equal(first.Discount))
	}
}

func TestBelowMinimumErrorMessage(t *testing.T) {
	err := &coupon.BelowMinimumError{Required: decimal.NewFromInt(100)}
	require.Contains(t, err.Error(), "100.00")
	require.False(t, errors.Is(err, coupon.ErrInvalidCoupon))
}
