// Package pricing computes order totals. It is the single place where
// subtotal, shipping, tax, and discounts are combined; cart, checkout, and
// order screens all consume the same Summary.
package pricing

import (
	"github.com/shopspring/decimal"

	"github.com/awibowo/backend-storefront/internal/coupon"
)

// LineItem describes one cart entry for valuation.
type LineItem struct {
	UnitPrice decimal.Decimal
	Qty       int64
}

// ExtendedPrice returns unit price multiplied by quantity. Quantity is
// guaranteed positive by input validation upstream.
func ExtendedPrice(it LineItem) decimal.Decimal {
	return it.UnitPrice.Mul(decimal.NewFromInt(it.Qty))
}

// Subtotal sums extended prices exactly, with no intermediate rounding.
func Subtotal(items []LineItem) decimal.Decimal {
	total := decimal.Zero
	for _, it := range items {
		if it.Qty <= 0 {
			continue
		}
		total = total.Add(ExtendedPrice(it))
	}
	return total
}

// ShippingPolicy determines the shipping fee from the subtotal: free at or
// above the threshold, a flat fee below it.
type ShippingPolicy struct {
	FreeThreshold decimal.Decimal
	FlatFee       decimal.Decimal
}

// Fee returns the shipping fee for the given subtotal.
func (p ShippingPolicy) Fee(subtotal decimal.Decimal) decimal.Decimal {
	if subtotal.GreaterThanOrEqual(p.FreeThreshold) {
		return decimal.Zero
	}
	return p.FlatFee
}

// Summary aggregates the computed pricing components. Values are exact;
// call Round before rendering.
type Summary struct {
	Subtotal       decimal.Decimal `json:"subtotal"`
	ShippingFee    decimal.Decimal `json:"shipping_fee"`
	TaxAmount      decimal.Decimal `json:"tax_amount"`
	DiscountAmount decimal.Decimal `json:"discount_amount"`
	Total          decimal.Decimal `json:"total"`
}

// Round returns a copy with every component rounded to two decimal places.
// Rounding happens only at presentation time so intermediate math does not
// compound rounding error.
func (s Summary) Round() Summary {
	return Summary{
		Subtotal:       s.Subtotal.Round(2),
		ShippingFee:    s.ShippingFee.Round(2),
		TaxAmount:      s.TaxAmount.Round(2),
		DiscountAmount: s.DiscountAmount.Round(2),
		Total:          s.Total.Round(2),
	}
}

// Compute builds the order summary from cart items, an optionally applied
// coupon, the tax rate, and the shipping policy. It never fails: invalid
// input is rejected upstream by the coupon resolver or request validation.
func Compute(items []LineItem, applied *coupon.Resolved, taxRate decimal.Decimal, policy ShippingPolicy) Summary {
	subtotal := Subtotal(items)

	shipping := policy.Fee(subtotal)
	if applied != nil && applied.FreeShipping() {
		shipping = decimal.Zero
	}

	discount := decimal.Zero
	if applied != nil {
		discount = applied.Discount
	}

	taxable := subtotal.Sub(discount)
	if taxable.IsNegative() {
		taxable = decimal.Zero
	}
	tax := taxable.Mul(taxRate)

	total := subtotal.Add(shipping).Add(tax).Sub(discount)
	if total.IsNegative() {
		total = decimal.Zero
	}

	return Summary{
		Subtotal:       subtotal,
		ShippingFee:    shipping,
		TaxAmount:      tax,
		DiscountAmount: discount,
		Total:          total,
	}
}
