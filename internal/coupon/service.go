package coupon

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/awibowo/backend-storefront/internal/common"
	"github.com/awibowo/backend-storefront/internal/store"
)

// CouponStore is the persistence surface the service needs.
type CouponStore interface {
	GetByCode(ctx context.Context, code string) (store.Coupon, error)
	List(ctx context.Context, limit, offset int32) ([]store.Coupon, int64, error)
	Create(ctx context.Context, c store.Coupon) (store.Coupon, error)
	Update(ctx context.Context, c store.Coupon) (store.Coupon, error)
	Delete(ctx context.Context, id string) error
}

// Service loads rules from the store and applies the resolver. Now is
// overridable for tests and defaults to time.Now.
type Service struct {
	Coupons CouponStore
	Now     func() time.Time
}

// Coupon is the admin-facing payload.
type Coupon struct {
	ID          string          `json:"id"`
	Code        string          `json:"code"`
	Kind        Kind            `json:"kind"`
	Value       decimal.Decimal `json:"value"`
	MinSubtotal decimal.Decimal `json:"min_subtotal"`
	Active      bool            `json:"active"`
	StartsAt    *time.Time      `json:"starts_at,omitempty"`
	EndsAt      *time.Time      `json:"ends_at,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
}

// Resolve looks the code up and applies the resolution rules against the
// subtotal. Unknown, inactive and out-of-window codes are indistinguishable
// to the caller.
func (s *Service) Resolve(ctx context.Context, code string, subtotal decimal.Decimal) (Resolved, error) {
	normalized := Normalize(code)
	if normalized == "" {
		return Resolved{}, ErrInvalidCoupon
	}
	row, err := s.Coupons.GetByCode(ctx, normalized)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return Resolved{}, ErrInvalidCoupon
		}
		return Resolved{}, fmt.Errorf("load coupon: %w", err)
	}
	return Resolve(normalized, subtotal, []Rule{toRule(row)}, s.now())
}

// List returns a page of coupons for the admin dashboard.
func (s *Service) List(ctx context.Context, limit, offset int32) ([]Coupon, int64, error) {
	rows, total, err := s.Coupons.List(ctx, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list coupons: %w", err)
	}
	out := make([]Coupon, 0, len(rows))
	for _, row := range rows {
		out = append(out, toCoupon(row))
	}
	return out, total, nil
}

// Create validates and persists a new rule.
func (s *Service) Create(ctx context.Context, c Coupon) (Coupon, error) {
	if err := validateRule(c); err != nil {
		return Coupon{}, err
	}
	row, err := s.Coupons.Create(ctx, store.Coupon{
		ID:          uuid.NewString(),
		Code:        Normalize(c.Code),
		Kind:        string(c.Kind),
		Value:       c.Value,
		MinSubtotal: c.MinSubtotal,
		Active:      c.Active,
		StartsAt:    c.StartsAt,
		EndsAt:      c.EndsAt,
	})
	if err != nil {
		if store.IsUniqueViolation(err) {
			return Coupon{}, common.NewAppError("COUPON_EXISTS", "coupon code already exists", http.StatusConflict, err)
		}
		return Coupon{}, fmt.Errorf("create coupon: %w", err)
	}
	return toCoupon(row), nil
}

// Update replaces the mutable fields of an existing rule.
func (s *Service) Update(ctx context.Context, c Coupon) (Coupon, error) {
	if err := validateRule(c); err != nil {
		return Coupon{}, err
	}
	row, err := s.Coupons.Update(ctx, store.Coupon{
		ID:          c.ID,
		Kind:        string(c.Kind),
		Value:       c.Value,
		MinSubtotal: c.MinSubtotal,
		Active:      c.Active,
		StartsAt:    c.StartsAt,
		EndsAt:      c.EndsAt,
	})
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return Coupon{}, common.NewAppError("NOT_FOUND", "coupon not found", http.StatusNotFound, err)
		}
		return Coupon{}, fmt.Errorf("update coupon: %w", err)
	}
	return toCoupon(row), nil
}

// Delete removes a rule.
func (s *Service) Delete(ctx context.Context, id string) error {
	if err := s.Coupons.Delete(ctx, id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return common.NewAppError("NOT_FOUND", "coupon not found", http.StatusNotFound, err)
		}
		return fmt.Errorf("delete coupon: %w", err)
	}
	return nil
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func validateRule(c Coupon) error {
	if Normalize(c.Code) == "" && c.ID == "" {
		return common.NewAppError("VALIDATION_ERROR", "code is required", http.StatusBadRequest, nil)
	}
	if !c.Kind.Valid() {
		return common.NewAppError("VALIDATION_ERROR", "kind must be percentage, fixed_amount or free_shipping", http.StatusBadRequest, nil)
	}
	if c.Value.IsNegative() || c.MinSubtotal.IsNegative() {
		return common.NewAppError("VALIDATION_ERROR", "value and min_subtotal must not be negative", http.StatusBadRequest, nil)
	}
	if c.Kind == KindPercentage && c.Value.GreaterThan(decimal.NewFromInt(100)) {
		return common.NewAppError("VALIDATION_ERROR", "percentage value cannot exceed 100", http.StatusBadRequest, nil)
	}
	return nil
}

func toRule(row store.Coupon) Rule {
	return Rule{
		Code:        row.Code,
		Kind:        Kind(row.Kind),
		Value:       row.Value,
		MinSubtotal: row.MinSubtotal,
		Active:      row.Active,
		StartsAt:    row.StartsAt,
		EndsAt:      row.EndsAt,
	}
}

func toCoupon(row store.Coupon) Coupon {
	return Coupon{
		ID:          row.ID,
		Code:        row.Code,
		Kind:        Kind(row.Kind),
		Value:       row.Value,
		MinSubtotal: row.MinSubtotal,
		Active:      row.Active,
		StartsAt:    row.StartsAt,
		EndsAt:      row.EndsAt,
		CreatedAt:   row.CreatedAt,
	}
}

// AsAppError translates resolution failures into the canonical error shape:
// unknown codes surface as INVALID_COUPON, floor violations as
// MIN_SUBTOTAL_NOT_MET carrying the required minimum.
func AsAppError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrInvalidCoupon) {
		return common.NewAppError("INVALID_COUPON", "coupon code is not valid", http.StatusNotFound, err)
	}
	var belowMin *BelowMinimumError
	if errors.As(err, &belowMin) {
		appErr := common.NewAppError("MIN_SUBTOTAL_NOT_MET", belowMin.Error(), http.StatusUnprocessableEntity, err)
		appErr.Details = map[string]string{"required_minimum": belowMin.Required.StringFixed(2)}
		return appErr
	}
	return err
}
