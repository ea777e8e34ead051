package store

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
)

// Cart is a shopping cart header. Guest carts carry an anon token and no
// user id; the two are reconciled at login by the cart service.
type Cart struct {
	ID         string
	UserID     *string
	AnonToken  *string
	CouponCode *string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// CartItem is a cart line joined with the product fields pricing needs.
type CartItem struct {
	ID          string
	CartID      string
	ProductID   string
	Qty         int32
	ProductName string
	ProductSlug string
	UnitPrice   decimal.Decimal
	ImageURL    *string
	Stock       int32
}

// Carts persists carts and their lines.
type Carts struct {
	DB DBTX
}

const cartColumns = `id, user_id, anon_token, coupon_code, created_at, updated_at`

func scanCart(row interface{ Scan(...any) error }) (Cart, error) {
	var c Cart
	err := row.Scan(&c.ID, &c.UserID, &c.AnonToken, &c.CouponCode, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return Cart{}, mapRowErr(err)
	}
	return c, nil
}

// Create inserts a cart for a user or a guest token.
func (r Carts) Create(ctx context.Context, id string, userID, anonToken *string) (Cart, error) {
	row := r.DB.QueryRow(ctx, `
		INSERT INTO carts (id, user_id, anon_token)
		VALUES ($1, $2, $3)
		RETURNING `+cartColumns, id, userID, anonToken)
	return scanCart(row)
}

// GetByID returns a cart by id.
func (r Carts) GetByID(ctx context.Context, id string) (Cart, error) {
	row := r.DB.QueryRow(ctx, `SELECT `+cartColumns+` FROM carts WHERE id = $1`, id)
	return scanCart(row)
}

// GetByUser returns the cart owned by a user.
func (r Carts) GetByUser(ctx context.Context, userID string) (Cart, error) {
	row := r.DB.QueryRow(ctx, `SELECT `+cartColumns+` FROM carts WHERE user_id = $1`, userID)
	return scanCart(row)
}

// GetByAnonToken returns a guest cart by its token.
func (r Carts) GetByAnonToken(ctx context.Context, token string) (Cart, error) {
	row := r.DB.QueryRow(ctx, `SELECT `+cartColumns+` FROM carts WHERE anon_token = $1 AND user_id IS NULL`, token)
	return scanCart(row)
}

// AttachUser claims a guest cart for a user after login.
func (r Carts) AttachUser(ctx context.Context, cartID, userID string) error {
	tag, err := r.DB.Exec(ctx, `
		UPDATE carts SET user_id = $2, anon_token = NULL, updated_at = now()
		WHERE id = $1 AND user_id IS NULL`, cartID, userID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// SetCoupon stores or clears the applied coupon code.
func (r Carts) SetCoupon(ctx context.Context, cartID string, code *string) error {
	tag, err := r.DB.Exec(ctx, `
		UPDATE carts SET coupon_code = $2, updated_at = now() WHERE id = $1`, cartID, code)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes a cart and, via cascade, its items.
func (r Carts) Delete(ctx context.Context, cartID string) error {
	_, err := r.DB.Exec(ctx, `DELETE FROM carts WHERE id = $1`, cartID)
	return err
}

// DeleteAbandonedGuest removes guest carts untouched since the cutoff.
// User carts are kept indefinitely.
func (r Carts) DeleteAbandonedGuest(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := r.DB.Exec(ctx, `
		DELETE FROM carts WHERE user_id IS NULL AND updated_at < $1`, cutoff)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// UpsertItem adds qty to an existing line or inserts a new one.
func (r Carts) UpsertItem(ctx context.Context, id, cartID, productID string, qty int32) error {
	_, err := r.DB.Exec(ctx, `
		INSERT INTO cart_items (id, cart_id, product_id, qty)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (cart_id, product_id)
		DO UPDATE SET qty = cart_items.qty + EXCLUDED.qty, updated_at = now()`,
		id, cartID, productID, qty)
	return err
}

// SetItemQty replaces a line quantity.
func (r Carts) SetItemQty(ctx context.Context, cartID, productID string, qty int32) error {
	tag, err := r.DB.Exec(ctx, `
		UPDATE cart_items SET qty = $3, updated_at = now()
		WHERE cart_id = $1 AND product_id = $2`, cartID, productID, qty)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// RemoveItem deletes a line.
func (r Carts) RemoveItem(ctx context.Context, cartID, productID string) error {
	tag, err := r.DB.Exec(ctx, `
		DELETE FROM cart_items WHERE cart_id = $1 AND product_id = $2`, cartID, productID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ClearItems deletes all lines of a cart.
func (r Carts) ClearItems(ctx context.Context, cartID string) error {
	_, err := r.DB.Exec(ctx, `DELETE FROM cart_items WHERE cart_id = $1`, cartID)
	return err
}

// ListItems returns cart lines joined with current product data.
func (r Carts) ListItems(ctx context.Context, cartID string) ([]CartItem, error) {
	rows, err := r.DB.Query(ctx, `
		SELECT ci.id, ci.cart_id, ci.product_id, ci.qty,
		       p.name, p.slug, p.price, p.image_url, p.stock
		FROM cart_items ci
		JOIN products p ON p.id = ci.product_id
		WHERE ci.cart_id = $1
		ORDER BY ci.created_at`, cartID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []CartItem
	for rows.Next() {
		var (
			it    CartItem
			price pgtype.Numeric
		)
		if err := rows.Scan(&it.ID, &it.CartID, &it.ProductID, &it.Qty,
			&it.ProductName, &it.ProductSlug, &price, &it.ImageURL, &it.Stock); err != nil {
			return nil, err
		}
		it.UnitPrice = NumericToDecimal(price)
		out = append(out, it)
	}
	return out, rows.Err()
}

// MergeItems folds the source cart's lines into the destination cart and
// deletes the source. Quantities of shared products are summed.
func (r Carts) MergeItems(ctx context.Context, dstCartID, srcCartID string) error {
	_, err := r.DB.Exec(ctx, `
		INSERT INTO cart_items (id, cart_id, product_id, qty)
		SELECT gen_random_uuid(), $1, product_id, qty FROM cart_items WHERE cart_id = $2
		ON CONFLICT (cart_id, product_id)
		DO UPDATE SET qty = cart_items.qty + EXCLUDED.qty, updated_at = now()`,
		dstCartID, srcCartID)
	if err != nil {
		return err
	}
	_, err = r.DB.Exec(ctx, `DELETE FROM carts WHERE id = $1`, srcCartID)
	return err
}
