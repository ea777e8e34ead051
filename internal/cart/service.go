package cart

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/awibowo/backend-storefront/internal/common"
	"github.com/awibowo/backend-storefront/internal/coupon"
	"github.com/awibowo/backend-storefront/internal/obs"
	"github.com/awibowo/backend-storefront/internal/pricing"
	"github.com/awibowo/backend-storefront/internal/store"
)

// CartStore is the cart persistence surface the service needs.
type CartStore interface {
	Create(ctx context.Context, id string, userID, anonToken *string) (store.Cart, error)
	GetByUser(ctx context.Context, userID string) (store.Cart, error)
	GetByAnonToken(ctx context.Context, token string) (store.Cart, error)
	SetCoupon(ctx context.Context, cartID string, code *string) error
	UpsertItem(ctx context.Context, id, cartID, productID string, qty int32) error
	SetItemQty(ctx context.Context, cartID, productID string, qty int32) error
	RemoveItem(ctx context.Context, cartID, productID string) error
	ClearItems(ctx context.Context, cartID string) error
	ListItems(ctx context.Context, cartID string) ([]store.CartItem, error)
	MergeItems(ctx context.Context, dstCartID, srcCartID string) error
}

// ProductStore resolves products for stock and price checks.
type ProductStore interface {
	GetProductByID(ctx context.Context, id string) (store.Product, error)
}

// Resolver re-resolves the stored coupon code on every summary computation.
type Resolver interface {
	Resolve(ctx context.Context, code string, subtotal decimal.Decimal) (coupon.Resolved, error)
}

// Owner identifies whose cart an operation targets: an authenticated user or
// a guest token from the X-Cart-Token header.
type Owner struct {
	UserID    string
	AnonToken string
}

// Service implements cart operations. The applied coupon is stored as a bare
// code and re-resolved against the live subtotal on every read, so removing
// it restores the pre-coupon total exactly.
type Service struct {
	Carts    CartStore
	Products ProductStore
	Coupons  Resolver
	TaxRate  decimal.Decimal
	Shipping pricing.ShippingPolicy
}

// ItemView is one cart line in API responses.
type ItemView struct {
	ProductID     string          `json:"product_id"`
	Name          string          `json:"name"`
	Slug          string          `json:"slug"`
	UnitPrice     decimal.Decimal `json:"unit_price"`
	Qty           int32           `json:"qty"`
	ExtendedPrice decimal.Decimal `json:"extended_price"`
	ImageURL      *string         `json:"image_url,omitempty"`
	Stock         int32           `json:"stock"`
}

// CouponView reports the stored coupon and whether it still resolves.
type CouponView struct {
	Code     string          `json:"code"`
	Valid    bool            `json:"valid"`
	Discount decimal.Decimal `json:"discount"`
	Reason   string          `json:"reason,omitempty"`
}

// View is the cart payload, always carrying a freshly computed summary.
type View struct {
	ID        string          `json:"id"`
	AnonToken *string         `json:"anon_token,omitempty"`
	Items     []ItemView      `json:"items"`
	Coupon    *CouponView     `json:"coupon,omitempty"`
	Summary   pricing.Summary `json:"summary"`
}

// GetOrCreate returns the owner's cart, creating an empty one on first use.
// Guests without a token receive a fresh cart and token.
func (s *Service) GetOrCreate(ctx context.Context, owner Owner) (View, error) {
	c, err := s.findCart(ctx, owner)
	if err == nil {
		return s.buildView(ctx, c)
	}
	if !errors.Is(err, store.ErrNotFound) {
		return View{}, err
	}
	c, err = s.createCart(ctx, owner)
	if err != nil {
		return View{}, err
	}
	return s.buildView(ctx, c)
}

// AddItem adds qty of a product, clamping the resulting line to stock.
func (s *Service) AddItem(ctx context.Context, owner Owner, productID string, qty int32) (View, error) {
	if qty < 1 {
		return View{}, common.NewAppError("VALIDATION_ERROR", "qty must be at least 1", http.StatusBadRequest, nil)
	}
	product, err := s.loadSellable(ctx, productID)
	if err != nil {
		return View{}, err
	}
	c, err := s.ensureCart(ctx, owner)
	if err != nil {
		return View{}, err
	}
	if err := s.Carts.UpsertItem(ctx, uuid.NewString(), c.ID, product.ID, qty); err != nil {
		return View{}, fmt.Errorf("upsert cart item: %w", err)
	}
	if err := s.clampToStock(ctx, c.ID, product); err != nil {
		return View{}, err
	}
	return s.buildView(ctx, c)
}

// UpdateQty replaces a line quantity, clamped to available stock.
func (s *Service) UpdateQty(ctx context.Context, owner Owner, productID string, qty int32) (View, error) {
	if qty < 1 {
		return View{}, common.NewAppError("VALIDATION_ERROR", "qty must be at least 1", http.StatusBadRequest, nil)
	}
	product, err := s.loadSellable(ctx, productID)
	if err != nil {
		return View{}, err
	}
	if qty > product.Stock {
		qty = product.Stock
	}
	c, err := s.findCart(ctx, owner)
	if err != nil {
		return View{}, cartNotFound(err)
	}
	if err := s.Carts.SetItemQty(ctx, c.ID, productID, qty); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return View{}, common.NewAppError("NOT_FOUND", "item not in cart", http.StatusNotFound, err)
		}
		return View{}, fmt.Errorf("set item qty: %w", err)
	}
	return s.buildView(ctx, c)
}

// RemoveItem deletes a line.
func (s *Service) RemoveItem(ctx context.Context, owner Owner, productID string) (View, error) {
	c, err := s.findCart(ctx, owner)
	if err != nil {
		return View{}, cartNotFound(err)
	}
	if err := s.Carts.RemoveItem(ctx, c.ID, productID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return View{}, common.NewAppError("NOT_FOUND", "item not in cart", http.StatusNotFound, err)
		}
		return View{}, fmt.Errorf("remove cart item: %w", err)
	}
	return s.buildView(ctx, c)
}

// Clear removes every line and the applied coupon.
func (s *Service) Clear(ctx context.Context, owner Owner) (View, error) {
	c, err := s.findCart(ctx, owner)
	if err != nil {
		return View{}, cartNotFound(err)
	}
	if err := s.Carts.ClearItems(ctx, c.ID); err != nil {
		return View{}, fmt.Errorf("clear cart: %w", err)
	}
	if err := s.Carts.SetCoupon(ctx, c.ID, nil); err != nil {
		return View{}, fmt.Errorf("clear coupon: %w", err)
	}
	c.CouponCode = nil
	return s.buildView(ctx, c)
}

// ApplyCoupon validates the code against the current subtotal and stores it.
func (s *Service) ApplyCoupon(ctx context.Context, owner Owner, code string) (View, error) {
	c, err := s.findCart(ctx, owner)
	if err != nil {
		return View{}, cartNotFound(err)
	}
	items, err := s.Carts.ListItems(ctx, c.ID)
	if err != nil {
		return View{}, fmt.Errorf("list cart items: %w", err)
	}
	subtotal := pricing.Subtotal(toLineItems(items))
	if _, err := s.Coupons.Resolve(ctx, code, subtotal); err != nil {
		countCoupon("rejected")
		return View{}, coupon.AsAppError(err)
	}
	normalized := coupon.Normalize(code)
	if err := s.Carts.SetCoupon(ctx, c.ID, &normalized); err != nil {
		return View{}, fmt.Errorf("store coupon: %w", err)
	}
	countCoupon("applied")
	c.CouponCode = &normalized
	return s.buildView(ctx, c)
}

// RemoveCoupon clears the stored code; the next summary reflects the
// pre-coupon total.
func (s *Service) RemoveCoupon(ctx context.Context, owner Owner) (View, error) {
	c, err := s.findCart(ctx, owner)
	if err != nil {
		return View{}, cartNotFound(err)
	}
	if err := s.Carts.SetCoupon(ctx, c.ID, nil); err != nil {
		return View{}, fmt.Errorf("clear coupon: %w", err)
	}
	c.CouponCode = nil
	return s.buildView(ctx, c)
}

// MergeGuestCart folds a guest cart into the user's cart after login.
func (s *Service) MergeGuestCart(ctx context.Context, userID, anonToken string) error {
	if anonToken == "" {
		return nil
	}
	guest, err := s.Carts.GetByAnonToken(ctx, anonToken)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil
		}
		return err
	}
	own, err := s.ensureCart(ctx, Owner{UserID: userID})
	if err != nil {
		return err
	}
	if err := s.Carts.MergeItems(ctx, own.ID, guest.ID); err != nil {
		return fmt.Errorf("merge carts: %w", err)
	}
	return nil
}

// Snapshot returns the raw lines and computed summary for checkout. The
// returned coupon is nil when none is stored or the stored code no longer
// resolves.
func (s *Service) Snapshot(ctx context.Context, owner Owner) (store.Cart, []store.CartItem, *coupon.Resolved, pricing.Summary, error) {
	c, err := s.findCart(ctx, owner)
	if err != nil {
		return store.Cart{}, nil, nil, pricing.Summary{}, cartNotFound(err)
	}
	items, err := s.Carts.ListItems(ctx, c.ID)
	if err != nil {
		return store.Cart{}, nil, nil, pricing.Summary{}, fmt.Errorf("list cart items: %w", err)
	}
	resolved, _ := s.resolveStored(ctx, c, items)
	summary := pricing.Compute(toLineItems(items), resolved, s.TaxRate, s.Shipping)
	return c, items, resolved, summary, nil
}

func (s *Service) buildView(ctx context.Context, c store.Cart) (View, error) {
	items, err := s.Carts.ListItems(ctx, c.ID)
	if err != nil {
		return View{}, fmt.Errorf("list cart items: %w", err)
	}
	resolved, reason := s.resolveStored(ctx, c, items)
	// An empty cart owes nothing, shipping included.
	var summary pricing.Summary
	if len(items) > 0 {
		summary = pricing.Compute(toLineItems(items), resolved, s.TaxRate, s.Shipping)
	}

	view := View{
		ID:      c.ID,
		Items:   make([]ItemView, 0, len(items)),
		Summary: summary.Round(),
	}
	if c.UserID == nil {
		view.AnonToken = c.AnonToken
	}
	for _, it := range items {
		view.Items = append(view.Items, ItemView{
			ProductID:     it.ProductID,
			Name:          it.ProductName,
			Slug:          it.ProductSlug,
			UnitPrice:     it.UnitPrice,
			Qty:           it.Qty,
			ExtendedPrice: it.UnitPrice.Mul(decimal.NewFromInt(int64(it.Qty))).Round(2),
			ImageURL:      it.ImageURL,
			Stock:         it.Stock,
		})
	}
	if c.CouponCode != nil {
		cv := CouponView{Code: *c.CouponCode, Valid: resolved != nil}
		if resolved != nil {
			cv.Discount = resolved.Discount.Round(2)
		} else {
			cv.Reason = reason
		}
		view.Coupon = &cv
	}
	return view, nil
}

// A stored code that no longer resolves contributes no discount; the code
// stays on the cart so the client can show why.
func (s *Service) resolveStored(ctx context.Context, c store.Cart, items []store.CartItem) (*coupon.Resolved, string) {
	if c.CouponCode == nil || s.Coupons == nil {
		return nil, ""
	}
	subtotal := pricing.Subtotal(toLineItems(items))
	resolved, err := s.Coupons.Resolve(ctx, *c.CouponCode, subtotal)
	if err != nil {
		var belowMin *coupon.BelowMinimumError
		if errors.As(err, &belowMin) {
			return nil, "MIN_SUBTOTAL_NOT_MET"
		}
		return nil, "INVALID_COUPON"
	}
	return &resolved, ""
}

func (s *Service) findCart(ctx context.Context, owner Owner) (store.Cart, error) {
	if owner.UserID != "" {
		return s.Carts.GetByUser(ctx, owner.UserID)
	}
	if owner.AnonToken != "" {
		return s.Carts.GetByAnonToken(ctx, owner.AnonToken)
	}
	return store.Cart{}, store.ErrNotFound
}

func (s *Service) ensureCart(ctx context.Context, owner Owner) (store.Cart, error) {
	c, err := s.findCart(ctx, owner)
	if err == nil {
		return c, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return store.Cart{}, err
	}
	return s.createCart(ctx, owner)
}

func (s *Service) createCart(ctx context.Context, owner Owner) (store.Cart, error) {
	var userID, anonToken *string
	if owner.UserID != "" {
		userID = &owner.UserID
	} else {
		token := owner.AnonToken
		if token == "" {
			token = uuid.NewString()
		}
		anonToken = &token
	}
	c, err := s.Carts.Create(ctx, uuid.NewString(), userID, anonToken)
	if err != nil {
		return store.Cart{}, fmt.Errorf("create cart: %w", err)
	}
	return c, nil
}

func (s *Service) loadSellable(ctx context.Context, productID string) (store.Product, error) {
	product, err := s.Products.GetProductByID(ctx, productID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return store.Product{}, common.NewAppError("NOT_FOUND", "product not found", http.StatusNotFound, err)
		}
		return store.Product{}, fmt.Errorf("load product: %w", err)
	}
	if !product.Active {
		return store.Product{}, common.NewAppError("NOT_FOUND", "product not found", http.StatusNotFound, nil)
	}
	if product.Stock < 1 {
		return store.Product{}, common.NewAppError("OUT_OF_STOCK", "product is out of stock", http.StatusUnprocessableEntity, nil)
	}
	return product, nil
}

// Adding an in-stock product can still push the accumulated line over stock.
func (s *Service) clampToStock(ctx context.Context, cartID string, product store.Product) error {
	items, err := s.Carts.ListItems(ctx, cartID)
	if err != nil {
		return fmt.Errorf("list cart items: %w", err)
	}
	for _, it := range items {
		if it.ProductID == product.ID && it.Qty > product.Stock {
			if err := s.Carts.SetItemQty(ctx, cartID, product.ID, product.Stock); err != nil {
				return fmt.Errorf("clamp qty: %w", err)
			}
		}
	}
	return nil
}

func toLineItems(items []store.CartItem) []pricing.LineItem {
	out := make([]pricing.LineItem, 0, len(items))
	for _, it := range items {
		out = append(out, pricing.LineItem{UnitPrice: it.UnitPrice, Qty: int64(it.Qty)})
	}
	return out
}

func cartNotFound(err error) error {
	if errors.Is(err, store.ErrNotFound) {
		return common.NewAppError("NOT_FOUND", "cart not found", http.StatusNotFound, err)
	}
	return err
}

func countCoupon(result string) {
	if obs.CouponsAppliedTotal != nil {
		obs.CouponsAppliedTotal.WithLabelValues(result).Inc()
	}
}
