package store

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
)

// WishlistItem is a saved product joined with display fields.
type WishlistItem struct {
	ID          string
	UserID      string
	ProductID   string
	ProductName string
	ProductSlug string
	UnitPrice   decimal.Decimal
	ImageURL    *string
	Stock       int32
	CreatedAt   time.Time
}

// Wishlists persists saved-for-later products.
type Wishlists struct {
	DB DBTX
}

// List returns a user's wishlist, newest first.
func (r Wishlists) List(ctx context.Context, userID string) ([]WishlistItem, error) {
	rows, err := r.DB.Query(ctx, `
		SELECT wi.id, wi.user_id, wi.product_id, p.name, p.slug, p.price, p.image_url, p.stock, wi.created_at
		FROM wishlist_items wi
		JOIN products p ON p.id = wi.product_id
		WHERE wi.user_id = $1
		ORDER BY wi.created_at DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []WishlistItem
	for rows.Next() {
		var (
			it    WishlistItem
			price pgtype.Numeric
		)
		if err := rows.Scan(&it.ID, &it.UserID, &it.ProductID, &it.ProductName, &it.ProductSlug,
			&price, &it.ImageURL, &it.Stock, &it.CreatedAt); err != nil {
			return nil, err
		}
		it.UnitPrice = NumericToDecimal(price)
		out = append(out, it)
	}
	return out, rows.Err()
}

// Add saves a product; adding twice is a no-op.
func (r Wishlists) Add(ctx context.Context, id, userID, productID string) error {
	_, err := r.DB.Exec(ctx, `
		INSERT INTO wishlist_items (id, user_id, product_id)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id, product_id) DO NOTHING`, id, userID, productID)
	return err
}

// Remove deletes a saved product.
func (r Wishlists) Remove(ctx context.Context, userID, productID string) error {
	tag, err := r.DB.Exec(ctx, `
		DELETE FROM wishlist_items WHERE user_id = $1 AND product_id = $2`, userID, productID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Exists reports whether the product is saved by the user.
func (r Wishlists) Exists(ctx context.Context, userID, productID string) (bool, error) {
	var exists bool
	err := r.DB.QueryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM wishlist_items WHERE user_id = $1 AND product_id = $2)`,
		userID, productID).Scan(&exists)
	return exists, err
}
