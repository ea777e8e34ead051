package cart

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/awibowo/backend-storefront/internal/common"
	"github.com/awibowo/backend-storefront/internal/coupon"
	"github.com/awibowo/backend-storefront/internal/pricing"
	"github.com/awibowo/backend-storefront/internal/store"
)

type memCartStore struct {
	carts map[string]store.Cart
	items map[string]map[string]store.CartItem // cartID -> productID -> item
	prods *memProducts
}

func newMemCartStore(prods *memProducts) *memCartStore {
	return &memCartStore{
		carts: map[string]store.Cart{},
		items: map[string]map[string]store.CartItem{},
		prods: prods,
	}
}

func (m *memCartStore) Create(_ context.Context, id string, userID, anonToken *string) (store.Cart, error) {
	c := store.Cart{ID: id, UserID: userID, AnonToken: anonToken, CreatedAt: time.Now()}
	m.carts[id] = c
	m.items[id] = map[string]store.CartItem{}
	return c, nil
}

func (m *memCartStore) GetByUser(_ context.Context, userID string) (store.Cart, error) {
	for _, c := range m.carts {
		if c.UserID != nil && *c.UserID == userID {
			return c, nil
		}
	}
	return store.Cart{}, store.ErrNotFound
}

func (m *memCartStore) GetByAnonToken(_ context.Context, token string) (store.Cart, error) {
	for _, c := range m.carts {
		if c.UserID == nil && c.AnonToken != nil && *c.AnonToken == token {
			return c, nil
		}
	}
	return store.Cart{}, store.ErrNotFound
}

func (m *memCartStore) SetCoupon(_ context.Context, cartID string, code *string) error {
	c, ok := m.carts[cartID]
	if !ok {
		return store.ErrNotFound
	}
	c.CouponCode = code
	m.carts[cartID] = c
	return nil
}

func (m *memCartStore) UpsertItem(_ context.Context, id, cartID, productID string, qty int32) error {
	lines := m.items[cartID]
	if existing, ok := lines[productID]; ok {
		existing.Qty += qty
		lines[productID] = existing
		return nil
	}
	lines[productID] = store.CartItem{ID: id, CartID: cartID, ProductID: productID, Qty: qty}
	return nil
}

func (m *memCartStore) SetItemQty(_ context.Context, cartID, productID string, qty int32) error {
	lines := m.items[cartID]
	it, ok := lines[productID]
	if !ok {
		return store.ErrNotFound
	}
	it.Qty = qty
	lines[productID] = it
	return nil
}

func (m *memCartStore) RemoveItem(_ context.Context, cartID, productID string) error {
	lines := m.items[cartID]
	if _, ok := lines[productID]; !ok {
		return store.ErrNotFound
	}
	delete(lines, productID)
	return nil
}

func (m *memCartStore) ClearItems(_ context.Context, cartID string) error {
	m.items[cartID] = map[string]store.CartItem{}
	return nil
}

func (m *memCartStore) ListItems(_ context.Context, cartID string) ([]store.CartItem, error) {
	var out []store.CartItem
	for _, it := range m.items[cartID] {
		p := m.prods.byID[it.ProductID]
		it.ProductName = p.Name
		it.ProductSlug = p.Slug
		it.UnitPrice = p.Price
		it.Stock = p.Stock
		out = append(out, it)
	}
	return out, nil
}

func (m *memCartStore) MergeItems(_ context.Context, dstCartID, srcCartID string) error {
	for productID, it := range m.items[srcCartID] {
		if existing, ok := m.items[dstCartID][productID]; ok {
			existing.Qty += it.Qty
			m.items[dstCartID][productID] = existing
			continue
		}
		it.CartID = dstCartID
		m.items[dstCartID][productID] = it
	}
	delete(m.items, srcCartID)
	delete(m.carts, srcCartID)
	return nil
}

type memProducts struct {
	byID map[string]store.Product
}

func (m *memProducts) GetProductByID(_ context.Context, id string) (store.Product, error) {
	p, ok := m.byID[id]
	if !ok {
		return store.Product{}, store.ErrNotFound
	}
	return p, nil
}

type ruleResolver struct {
	rules []coupon.Rule
}

func (r ruleResolver) Resolve(_ context.Context, code string, subtotal decimal.Decimal) (coupon.Resolved, error) {
	return coupon.Resolve(code, subtotal, r.rules, time.Now())
}

func newTestService() (*Service, *memCartStore) {
	prods := &memProducts{byID: map[string]store.Product{
		"p1": {ID: "p1", Slug: "headphones", Name: "Headphones", Price: decimal.RequireFromString("99.99"), Stock: 10, Active: true},
		"p2": {ID: "p2", Slug: "keyboard", Name: "Keyboard", Price: decimal.RequireFromString("199.99"), Stock: 10, Active: true},
		"p3": {ID: "p3", Slug: "sticker", Name: "Sticker", Price: decimal.RequireFromString("2.50"), Stock: 3, Active: true},
		"p4": {ID: "p4", Slug: "sold-out", Name: "Sold Out", Price: decimal.RequireFromString("5.00"), Stock: 0, Active: true},
	}}
	carts := newMemCartStore(prods)
	svc := &Service{
		Carts:    carts,
		Products: prods,
		Coupons: ruleResolver{rules: []coupon.Rule{
			{Code: "WELCOME10", Kind: coupon.KindPercentage, Value: decimal.NewFromInt(10), MinSubtotal: decimal.NewFromInt(50), Active: true},
			{Code: "SUMMER25", Kind: coupon.KindFixedAmount, Value: decimal.NewFromInt(25), MinSubtotal: decimal.NewFromInt(100), Active: true},
			{Code: "SHIPFREE", Kind: coupon.KindFreeShipping, Active: true},
		}},
		TaxRate:  decimal.RequireFromString("0.08"),
		Shipping: pricing.ShippingPolicy{FreeThreshold: decimal.NewFromInt(50), FlatFee: decimal.RequireFromString("5.99")},
	}
	return svc, carts
}

func user(id string) Owner { return Owner{UserID: id} }

func TestAddItemsAndSummary(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	_, err := svc.AddItem(ctx, user("u1"), "p1", 1)
	require.NoError(t, err)
	view, err := svc.AddItem(ctx, user("u1"), "p2", 2)
	require.NoError(t, err)

	require.Len(t, view.Items, 2)
	require.Equal(t, "499.97", view.Summary.Subtotal.String())
	require.Equal(t, "0", view.Summary.ShippingFee.String())
	require.Equal(t, "40.00", view.Summary.TaxAmount.StringFixed(2))
	require.Equal(t, "539.97", view.Summary.Total.String())
}

func TestAddItemClampsToStock(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	_, err := svc.AddItem(ctx, user("u1"), "p3", 2)
	require.NoError(t, err)
	view, err := svc.AddItem(ctx, user("u1"), "p3", 2)
	require.NoError(t, err)
	require.Equal(t, int32(3), view.Items[0].Qty, "line clamped to stock")
}

func TestAddOutOfStock(t *testing.T) {
	svc, _ := newTestService()
	_, err := svc.AddItem(context.Background(), user("u1"), "p4", 1)
	var appErr *common.AppError
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, "OUT_OF_STOCK", appErr.Code)
}

func TestCouponRoundTrip(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	_, err := svc.AddItem(ctx, user("u1"), "p1", 1)
	require.NoError(t, err)
	_, err = svc.AddItem(ctx, user("u1"), "p2", 2)
	require.NoError(t, err)

	withCoupon, err := svc.ApplyCoupon(ctx, user("u1"), " welcome10 ")
	require.NoError(t, err)
	require.NotNil(t, withCoupon.Coupon)
	require.True(t, withCoupon.Coupon.Valid)
	require.Equal(t, "50.00", withCoupon.Summary.DiscountAmount.StringFixed(2))
	require.Equal(t, "36.00", withCoupon.Summary.TaxAmount.StringFixed(2))
	require.Equal(t, "485.97", withCoupon.Summary.Total.String())

	restored, err := svc.RemoveCoupon(ctx, user("u1"))
	require.NoError(t, err)
	require.Nil(t, restored.Coupon)
	require.Equal(t, "539.97", restored.Summary.Total.String())
}

func TestApplyCouponBelowMinimum(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	_, err := svc.AddItem(ctx, user("u1"), "p3", 3)
	require.NoError(t, err)

	_, err = svc.ApplyCoupon(ctx, user("u1"), "SUMMER25")
	var appErr *common.AppError
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, "MIN_SUBTOTAL_NOT_MET", appErr.Code)
	require.Equal(t, map[string]string{"required_minimum": "100.00"}, appErr.Details)
}

func TestApplyUnknownCoupon(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	_, err := svc.AddItem(ctx, user("u1"), "p1", 1)
	require.NoError(t, err)

	_, err = svc.ApplyCoupon(ctx, user("u1"), "NOPE")
	var appErr *common.AppError
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, "INVALID_COUPON", appErr.Code)
}

func TestStoredCouponInvalidatedByQtyDrop(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	_, err := svc.AddItem(ctx, user("u1"), "p2", 1)
	require.NoError(t, err)
	_, err = svc.ApplyCoupon(ctx, user("u1"), "SUMMER25")
	require.NoError(t, err)

	// Swap the expensive line for a cheap one; the stored code no longer
	// meets its floor, so the summary excludes the discount.
	_, err = svc.RemoveItem(ctx, user("u1"), "p2")
	require.NoError(t, err)
	view, err := svc.AddItem(ctx, user("u1"), "p3", 1)
	require.NoError(t, err)

	require.NotNil(t, view.Coupon)
	require.False(t, view.Coupon.Valid)
	require.Equal(t, "MIN_SUBTOTAL_NOT_MET", view.Coupon.Reason)
	require.True(t, view.Summary.DiscountAmount.IsZero())
}

func TestFreeShippingCoupon(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	// Below the free-shipping threshold, so the flat fee applies.
	_, err := svc.AddItem(ctx, user("u1"), "p3", 2)
	require.NoError(t, err)
	before, err := svc.GetOrCreate(ctx, user("u1"))
	require.NoError(t, err)
	require.Equal(t, "5.99", before.Summary.ShippingFee.String())

	after, err := svc.ApplyCoupon(ctx, user("u1"), "SHIPFREE")
	require.NoError(t, err)
	require.True(t, after.Summary.ShippingFee.IsZero())
	require.True(t, after.Summary.DiscountAmount.IsZero())
}

func TestGuestCartAndMerge(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	guest, err := svc.GetOrCreate(ctx, Owner{})
	require.NoError(t, err)
	require.NotNil(t, guest.AnonToken)

	token := *guest.AnonToken
	_, err = svc.AddItem(ctx, Owner{AnonToken: token}, "p1", 2)
	require.NoError(t, err)

	_, err = svc.AddItem(ctx, user("u1"), "p1", 1)
	require.NoError(t, err)

	require.NoError(t, svc.MergeGuestCart(ctx, "u1", token))

	merged, err := svc.GetOrCreate(ctx, user("u1"))
	require.NoError(t, err)
	require.Len(t, merged.Items, 1)
	require.Equal(t, int32(3), merged.Items[0].Qty)

	// The guest cart is gone.
	_, err = svc.Carts.GetByAnonToken(ctx, token)
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestClearResetsCoupon(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	_, err := svc.AddItem(ctx, user("u1"), "p2", 1)
	require.NoError(t, err)
	_, err = svc.ApplyCoupon(ctx, user("u1"), "SUMMER25")
	require.NoError(t, err)

	view, err := svc.Clear(ctx, user("u1"))
	require.NoError(t, err)
	require.Empty(t, view.Items)
	require.Nil(t, view.Coupon)
	require.True(t, view.Summary.Total.IsZero())
}
