package coupon

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// ErrInvalidCoupon is returned when the code does not match any active rule.
var ErrInvalidCoupon = errors.New("coupon code not recognised")

// BelowMinimumError indicates the subtotal did not reach the rule's floor.
// It carries the required minimum so handlers can surface it to the client.
type BelowMinimumError struct {
	Required decimal.Decimal
}

func (e *BelowMinimumError) Error() string {
	return fmt.Sprintf("subtotal below coupon minimum of %s", e.Required.StringFixed(2))
}

// Kind enumerates the supported discount mechanics.
type Kind string

const (
	KindPercentage   Kind = "percentage"
	KindFixedAmount  Kind = "fixed_amount"
	KindFreeShipping Kind = "free_shipping"
)

// Valid reports whether the kind is one of the supported values.
func (k Kind) Valid() bool {
	switch k {
	case KindPercentage, KindFixedAmount, KindFreeShipping:
		return true
	}
	return false
}

// Rule captures a promotional rule. Codes are matched case-insensitively,
// compared upper-cased.
type Rule struct {
	Code        string
	Kind        Kind
	Value       decimal.Decimal
	MinSubtotal decimal.Decimal
	Active      bool
	StartsAt    *time.Time
	EndsAt      *time.Time
}

// Resolved bundles the matched rule with the discount it yields against the
// subtotal it was resolved for.
type Resolved struct {
	Rule     Rule
	Discount decimal.Decimal
}

// FreeShipping reports whether the resolved coupon waives the shipping fee.
func (r Resolved) FreeShipping() bool {
	return r.Rule.Kind == KindFreeShipping
}

// Normalize upper-cases and trims a coupon code for catalog lookup.
func Normalize(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// Resolve validates code against the catalog of rules and the current
// subtotal. Resolution is stateless and idempotent: the same inputs always
// yield the same result. Rules outside their validity window behave as if
// the code did not exist.
func Resolve(code string, subtotal decimal.Decimal, rules []Rule, now time.Time) (Resolved, error) {
	normalized := Normalize(code)
	if normalized == "" {
		return Resolved{}, ErrInvalidCoupon
	}
	for _, rule := range rules {
		if Normalize(rule.Code) != normalized {
			continue
		}
		if !rule.usable(now) {
			return Resolved{}, ErrInvalidCoupon
		}
		if subtotal.LessThan(rule.MinSubtotal) {
			return Resolved{}, &BelowMinimumError{Required: rule.MinSubtotal}
		}
		return Resolved{Rule: rule, Discount: discountFor(rule, subtotal)}, nil
	}
	return Resolved{}, ErrInvalidCoupon
}

func (r Rule) usable(now time.Time) bool {
	if !r.Active || !r.Kind.Valid() {
		return false
	}
	if r.StartsAt != nil && now.Before(*r.StartsAt) {
		return false
	}
	if r.EndsAt != nil && now.After(*r.EndsAt) {
		return false
	}
	return true
}

func discountFor(rule Rule, subtotal decimal.Decimal) decimal.Decimal {
	switch rule.Kind {
	case KindPercentage:
		return subtotal.Mul(rule.Value).Div(decimal.NewFromInt(100))
	case KindFixedAmount:
		// Never discount below zero net.
		if rule.Value.GreaterThan(subtotal) {
			return subtotal
		}
		return rule.Value
	case KindFreeShipping:
		// The shipping waiver is applied by the pricing calculator.
		return decimal.Zero
	}
	return decimal.Zero
}
