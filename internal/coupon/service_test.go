package coupon

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/awibowo/backend-storefront/internal/common"
	"github.com/awibowo/backend-storefront/internal/store"
)

type fakeCouponStore struct {
	byCode map[string]store.Coupon
}

func newFakeCouponStore(rows ...store.Coupon) *fakeCouponStore {
	f := &fakeCouponStore{byCode: map[string]store.Coupon{}}
	for _, row := range rows {
		f.byCode[row.Code] = row
	}
	return f
}

func (f *fakeCouponStore) GetByCode(_ context.Context, code string) (store.Coupon, error) {
	row, ok := f.byCode[Normalize(code)]
	if !ok {
		return store.Coupon{}, store.ErrNotFound
	}
	return row, nil
}

func (f *fakeCouponStore) List(context.Context, int32, int32) ([]store.Coupon, int64, error) {
	var out []store.Coupon
	for _, row := range f.byCode {
		out = append(out, row)
	}
	return out, int64(len(out)), nil
}

func (f *fakeCouponStore) Create(_ context.Context, c store.Coupon) (store.Coupon, error) {
	if _, exists := f.byCode[c.Code]; exists {
		return store.Coupon{}, errors.New("duplicate")
	}
	f.byCode[c.Code] = c
	return c, nil
}

func (f *fakeCouponStore) Update(_ context.Context, c store.Coupon) (store.Coupon, error) {
	for code, row := range f.byCode {
		if row.ID == c.ID {
			c.Code = code
			f.byCode[code] = c
			return c, nil
		}
	}
	return store.Coupon{}, store.ErrNotFound
}

func (f *fakeCouponStore) Delete(_ context.Context, id string) error {
	for code, row := range f.byCode {
		if row.ID == id {
			delete(f.byCode, code)
			return nil
		}
	}
	return store.ErrNotFound
}

func welcome10() store.Coupon {
	return store.Coupon{
		ID:          "cpn-1",
		Code:        "WELCOME10",
		Kind:        "percentage",
		Value:       decimal.NewFromInt(10),
		MinSubtotal: decimal.NewFromInt(50),
		Active:      true,
	}
}

func TestServiceResolve(t *testing.T) {
	svc := &Service{Coupons: newFakeCouponStore(welcome10())}
	ctx := context.Background()

	resolved, err := svc.Resolve(ctx, "welcome10", decimal.RequireFromString("499.97"))
	require.NoError(t, err)
	require.Equal(t, "49.997", resolved.Discount.String())

	_, err = svc.Resolve(ctx, "NOPE", decimal.NewFromInt(100))
	require.ErrorIs(t, err, ErrInvalidCoupon)

	_, err = svc.Resolve(ctx, "WELCOME10", decimal.NewFromInt(20))
	var belowMin *BelowMinimumError
	require.ErrorAs(t, err, &belowMin)
	require.Equal(t, "50.00", belowMin.Required.StringFixed(2))
}

func TestServiceResolveInactive(t *testing.T) {
	inactive := welcome10()
	inactive.Active = false
	svc := &Service{Coupons: newFakeCouponStore(inactive)}

	_, err := svc.Resolve(context.Background(), "WELCOME10", decimal.NewFromInt(100))
	require.ErrorIs(t, err, ErrInvalidCoupon)
}

func TestServiceCreateValidation(t *testing.T) {
	svc := &Service{Coupons: newFakeCouponStore()}
	ctx := context.Background()

	_, err := svc.Create(ctx, Coupon{Code: "OVER", Kind: KindPercentage, Value: decimal.NewFromInt(150)})
	var appErr *common.AppError
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, "VALIDATION_ERROR", appErr.Code)

	_, err = svc.Create(ctx, Coupon{Code: "BAD", Kind: Kind("bogus"), Value: decimal.NewFromInt(5)})
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, "VALIDATION_ERROR", appErr.Code)

	created, err := svc.Create(ctx, Coupon{Code: " summer25 ", Kind: KindFixedAmount, Value: decimal.NewFromInt(25), Active: true})
	require.NoError(t, err)
	require.Equal(t, "SUMMER25", created.Code)
}

func TestAsAppError(t *testing.T) {
	err := AsAppError(ErrInvalidCoupon)
	var appErr *common.AppError
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, "INVALID_COUPON", appErr.Code)
	require.Equal(t, http.StatusNotFound, appErr.HTTPStatus)

	err = AsAppError(&BelowMinimumError{Required: decimal.NewFromInt(100)})
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, "MIN_SUBTOTAL_NOT_MET", appErr.Code)
	require.Equal(t, http.StatusUnprocessableEntity, appErr.HTTPStatus)
	require.Equal(t, map[string]string{"required_minimum": "100.00"}, appErr.Details)

	require.NoError(t, AsAppError(nil))
}

func TestServiceResolveExpiredWindow(t *testing.T) {
	expired := welcome10()
	past := time.Now().Add(-time.Hour)
	expired.EndsAt = &past
	svc := &Service{Coupons: newFakeCouponStore(expired)}

	_, err := svc.Resolve(context.Background(), "WELCOME10", decimal.NewFromInt(100))
	require.ErrorIs(t, err, ErrInvalidCoupon)
}
