package wishlist

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/awibowo/backend-storefront/internal/cart"
	"github.com/awibowo/backend-storefront/internal/common"
	"github.com/awibowo/backend-storefront/internal/pricing"
	"github.com/awibowo/backend-storefront/internal/store"
)

type memWishlist struct {
	saved map[string]map[string]time.Time // userID -> productID -> savedAt
	prods *memProducts
}

func newMemWishlist(prods *memProducts) *memWishlist {
	return &memWishlist{saved: map[string]map[string]time.Time{}, prods: prods}
}

func (m *memWishlist) List(_ context.Context, userID string) ([]store.WishlistItem, error) {
	var out []store.WishlistItem
	for productID, savedAt := range m.saved[userID] {
		p := m.prods.byID[productID]
		out = append(out, store.WishlistItem{
			UserID: userID, ProductID: productID,
			ProductName: p.Name, ProductSlug: p.Slug, UnitPrice: p.Price, Stock: p.Stock,
			CreatedAt: savedAt,
		})
	}
	return out, nil
}

func (m *memWishlist) Add(_ context.Context, _, userID, productID string) error {
	if m.saved[userID] == nil {
		m.saved[userID] = map[string]time.Time{}
	}
	if _, ok := m.saved[userID][productID]; !ok {
		m.saved[userID][productID] = time.Now()
	}
	return nil
}

func (m *memWishlist) Remove(_ context.Context, userID, productID string) error {
	if _, ok := m.saved[userID][productID]; !ok {
		return store.ErrNotFound
	}
	delete(m.saved[userID], productID)
	return nil
}

func (m *memWishlist) Exists(_ context.Context, userID, productID string) (bool, error) {
	_, ok := m.saved[userID][productID]
	return ok, nil
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

type memCarts struct {
	items map[string]int32 // productID -> qty, single user
}

func (m *memCarts) Create(_ context.Context, id string, _, _ *string) (store.Cart, error) {
	return store.Cart{ID: id}, nil
}
func (m *memCarts) GetByUser(_ context.Context, _ string) (store.Cart, error) {
	return store.Cart{ID: "c1"}, nil
}
func (m *memCarts) GetByAnonToken(context.Context, string) (store.Cart, error) {
	return store.Cart{}, store.ErrNotFound
}
func (m *memCarts) SetCoupon(context.Context, string, *string) error { return nil }
func (m *memCarts) UpsertItem(_ context.Context, _, _, productID string, qty int32) error {
	m.items[productID] += qty
	return nil
}
func (m *memCarts) SetItemQty(_ context.Context, _, productID string, qty int32) error {
	m.items[productID] = qty
	return nil
}
func (m *memCarts) RemoveItem(_ context.Context, _, productID string) error {
	delete(m.items, productID)
	return nil
}
func (m *memCarts) ClearItems(context.Context, string) error { return nil }
func (m *memCarts) ListItems(context.Context, string) ([]store.CartItem, error) {
	var out []store.CartItem
	for productID, qty := range m.items {
		out = append(out, store.CartItem{ProductID: productID, Qty: qty, Stock: 10})
	}
	return out, nil
}
func (m *memCarts) MergeItems(context.Context, string, string) error { return nil }

func newTestService() (*Service, *memCarts) {
	prods := &memProducts{byID: map[string]store.Product{
		"p1": {ID: "p1", Slug: "headphones", Name: "Headphones", Price: decimal.RequireFromString("99.99"), Stock: 5, Active: true},
		"p2": {ID: "p2", Slug: "retired", Name: "Retired", Price: decimal.NewFromInt(10), Stock: 5, Active: false},
	}}
	carts := &memCarts{items: map[string]int32{}}
	cartSvc := &cart.Service{
		Carts:    carts,
		Products: prods,
		TaxRate:  decimal.RequireFromString("0.08"),
		Shipping: pricing.ShippingPolicy{FreeThreshold: decimal.NewFromInt(50), FlatFee: decimal.RequireFromString("5.99")},
	}
	return &Service{
		Wishlists: newMemWishlist(prods),
		Products:  prods,
		Cart:      cartSvc,
	}, carts
}

func TestAddListRemove(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	require.NoError(t, svc.Add(ctx, "u1", "p1"))
	require.NoError(t, svc.Add(ctx, "u1", "p1"), "saving twice is a no-op")

	items, err := svc.List(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, items, 1)
	require.Equal(t, "Headphones", items[0].Name)
	require.True(t, items[0].InStock)

	require.NoError(t, svc.Remove(ctx, "u1", "p1"))
	err = svc.Remove(ctx, "u1", "p1")
	var appErr *common.AppError
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, "NOT_FOUND", appErr.Code)
}

func TestAddInactiveProduct(t *testing.T) {
	svc, _ := newTestService()
	err := svc.Add(context.Background(), "u1", "p2")
	var appErr *common.AppError
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, "NOT_FOUND", appErr.Code)
}

func TestToggle(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	saved, err := svc.Toggle(ctx, "u1", "p1")
	require.NoError(t, err)
	require.True(t, saved)

	saved, err = svc.Toggle(ctx, "u1", "p1")
	require.NoError(t, err)
	require.False(t, saved)

	items, err := svc.List(ctx, "u1")
	require.NoError(t, err)
	require.Empty(t, items)
}

func TestMoveToCart(t *testing.T) {
	svc, carts := newTestService()
	ctx := context.Background()

	require.NoError(t, svc.Add(ctx, "u1", "p1"))
	view, err := svc.MoveToCart(ctx, "u1", "p1")
	require.NoError(t, err)
	require.Equal(t, int32(1), carts.items["p1"])
	require.Len(t, view.Items, 1)

	// Moved out of the wishlist.
	items, err := svc.List(ctx, "u1")
	require.NoError(t, err)
	require.Empty(t, items)

	// Moving again fails: the line now lives in the cart.
	_, err = svc.MoveToCart(ctx, "u1", "p1")
	var appErr *common.AppError
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, "NOT_FOUND", appErr.Code)
}
