package checkout

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/awibowo/backend-storefront/internal/cart"
	"github.com/awibowo/backend-storefront/internal/common"
	"github.com/awibowo/backend-storefront/internal/coupon"
	"github.com/awibowo/backend-storefront/internal/pricing"
	"github.com/awibowo/backend-storefront/internal/store"
)

type memCarts struct {
	cart  store.Cart
	items []store.CartItem
}

func (m *memCarts) Create(_ context.Context, id string, _, _ *string) (store.Cart, error) {
	return store.Cart{ID: id}, nil
}
func (m *memCarts) GetByUser(context.Context, string) (store.Cart, error) {
	if m.cart.ID == "" {
		return store.Cart{}, store.ErrNotFound
	}
	return m.cart, nil
}
func (m *memCarts) GetByAnonToken(context.Context, string) (store.Cart, error) {
	return store.Cart{}, store.ErrNotFound
}
func (m *memCarts) SetCoupon(context.Context, string, *string) error { return nil }
func (m *memCarts) UpsertItem(context.Context, string, string, string, int32) error {
	return nil
}
func (m *memCarts) SetItemQty(context.Context, string, string, int32) error { return nil }
func (m *memCarts) RemoveItem(context.Context, string, string) error { return nil }
func (m *memCarts) ClearItems(context.Context, string) error { return nil }
func (m *memCarts) ListItems(context.Context, string) ([]store.CartItem, error) {
	return m.items, nil
}
func (m *memCarts) MergeItems(context.Context, string, string) error { return nil }

type memProducts struct{}

func (memProducts) GetProductByID(context.Context, string) (store.Product, error) {
	return store.Product{}, store.ErrNotFound
}

type ruleResolver struct {
	rules []coupon.Rule
}

func (r ruleResolver) Resolve(_ context.Context, code string, subtotal decimal.Decimal) (coupon.Resolved, error) {
	return coupon.Resolve(code, subtotal, r.rules, time.Now())
}

type fakeWriter struct {
	placed *PlacedOrder
	err    error
}

func (f *fakeWriter) PlaceOrder(_ context.Context, po PlacedOrder) (store.Order, error) {
	if f.err != nil {
		return store.Order{}, f.err
	}
	f.placed = &po
	return po.Order, nil
}

type fakeAddresses struct {
	byID map[string]store.Address
}

func (f fakeAddresses) GetForUser(_ context.Context, id, _ string) (store.Address, error) {
	a, ok := f.byID[id]
	if !ok {
		return store.Address{}, store.ErrNotFound
	}
	return a, nil
}

type fakeUsers struct{}

func (fakeUsers) GetByID(_ context.Context, id string) (store.User, error) {
	return store.User{ID: id, Email: "jane@example.com"}, nil
}

type fakeCoupons struct{}

func (fakeCoupons) GetByCode(_ context.Context, code string) (store.Coupon, error) {
	return store.Coupon{ID: "cp1", Code: code}, nil
}

func newService(carts *memCarts, writer *fakeWriter) *Service {
	cartSvc := &cart.Service{
		Carts:    carts,
		Products: memProducts{},
		Coupons: ruleResolver{rules: []coupon.Rule{{
			Code: "WELCOME10", Kind: coupon.KindPercentage,
			Value: decimal.NewFromInt(10), Active: true,
		}}},
		TaxRate:  decimal.RequireFromString("0.08"),
		Shipping: pricing.ShippingPolicy{FreeThreshold: decimal.NewFromInt(50), FlatFee: decimal.RequireFromString("5.99")},
	}
	return &Service{
		Cart:   cartSvc,
		Writer: writer,
		Addresses: fakeAddresses{byID: map[string]store.Address{
			"a1": {ID: "a1", UserID: "u1", Recipient: "Jane Doe", Line1: "1 Main St", City: "Springfield", Country: "US"},
		}},
		Users:    fakeUsers{},
		Coupons:  fakeCoupons{},
		Currency: "USD",
	}
}

func stockedCart(couponCode *string) *memCarts {
	return &memCarts{
		cart: store.Cart{ID: "c1", CouponCode: couponCode},
		items: []store.CartItem{
			{ProductID: "p1", ProductName: "Headphones", Qty: 2, UnitPrice: decimal.RequireFromString("199.99"), Stock: 10},
			{ProductID: "p2", ProductName: "Charger", Qty: 1, UnitPrice: decimal.RequireFromString("99.99"), Stock: 10},
		},
	}
}

func TestPlaceOrder(t *testing.T) {
	writer := &fakeWriter{}
	svc := newService(stockedCart(nil), writer)

	conf, err := svc.Place(context.Background(), "u1", "a1")
	require.NoError(t, err)
	require.Equal(t, "pending", conf.Status)
	require.Regexp(t, `^SO-[0-9A-F]{8}$`, conf.Number)
	require.Equal(t, "499.97", conf.Summary.Subtotal.String())
	require.Equal(t, "539.97", conf.Summary.Total.String())

	require.NotNil(t, writer.placed)
	require.Equal(t, "c1", writer.placed.CartID)
	require.Empty(t, writer.placed.CouponID)
	require.Len(t, writer.placed.Items, 2)
	require.Equal(t, "399.98", writer.placed.Items[0].LineTotal.String())

	var ev orderCreatedEvent
	require.NoError(t, json.Unmarshal(writer.placed.EventPayload, &ev))
	require.Equal(t, "jane@example.com", ev.Email)
	require.Equal(t, "539.97", ev.Total)
	require.Equal(t, "USD", ev.Currency)

	var snap addressSnapshot
	require.NoError(t, json.Unmarshal(writer.placed.Order.AddressSnapshot, &snap))
	require.Equal(t, "Jane Doe", snap.Recipient)
}

func TestPlaceOrderWithCoupon(t *testing.T) {
	code := "WELCOME10"
	writer := &fakeWriter{}
	svc := newService(stockedCart(&code), writer)

	conf, err := svc.Place(context.Background(), "u1", "a1")
	require.NoError(t, err)
	require.Equal(t, "50", conf.Summary.DiscountAmount.String())
	require.Equal(t, "485.97", conf.Summary.Total.String())

	require.Equal(t, "cp1", writer.placed.CouponID)
	require.NotNil(t, writer.placed.Order.CouponCode)
	require.Equal(t, "WELCOME10", *writer.placed.Order.CouponCode)
}

func TestPlaceEmptyCart(t *testing.T) {
	carts := &memCarts{cart: store.Cart{ID: "c1"}}
	svc := newService(carts, &fakeWriter{})

	_, err := svc.Place(context.Background(), "u1", "a1")
	var appErr *common.AppError
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, "EMPTY_CART", appErr.Code)
}

func TestPlaceUnknownAddress(t *testing.T) {
	svc := newService(stockedCart(nil), &fakeWriter{})

	_, err := svc.Place(context.Background(), "u1", "nope")
	var appErr *common.AppError
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, "NOT_FOUND", appErr.Code)
}

func TestPlaceOutOfStock(t *testing.T) {
	writer := &fakeWriter{err: &OutOfStockError{ProductID: "p2"}}
	svc := newService(stockedCart(nil), writer)

	_, err := svc.Place(context.Background(), "u1", "a1")
	var appErr *common.AppError
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, "INSUFFICIENT_STOCK", appErr.Code)
	require.Equal(t, map[string]any{"product_id": "p2"}, appErr.Details)
}
