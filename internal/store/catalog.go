package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
)

// Category is a storefront category row.
type Category struct {
	ID        string
	Slug      string
	Name      string
	ImageURL  *string
	SortOrder int32
}

// Banner is a promotional banner row.
type Banner struct {
	ID        string
	Title     string
	ImageURL  string
	TargetURL *string
	SortOrder int32
	Active    bool
}

// Product is a catalog product row.
type Product struct {
	ID             string
	Slug           string
	Name           string
	Description    string
	Price          decimal.Decimal
	CompareAtPrice *decimal.Decimal
	Rating         decimal.Decimal
	ReviewCount    int32
	Stock          int32
	CategoryID     string
	ImageURL       *string
	Active         bool
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// ProductFilter narrows and pages product listings.
type ProductFilter struct {
	CategorySlug string
	Query        string
	Sort         string // newest | price_asc | price_desc | rating
	Limit        int32
	Offset       int32
}

// Catalog reads categories, banners and products.
type Catalog struct {
	DB DBTX
}

// ListCategories returns categories in display order.
func (r Catalog) ListCategories(ctx context.Context) ([]Category, error) {
	rows, err := r.DB.Query(ctx, `
		SELECT id, slug, name, image_url, sort_order
		FROM categories ORDER BY sort_order, name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Category
	for rows.Next() {
		var c Category
		if err := rows.Scan(&c.ID, &c.Slug, &c.Name, &c.ImageURL, &c.SortOrder); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// ListBanners returns active banners in display order.
func (r Catalog) ListBanners(ctx context.Context) ([]Banner, error) {
	rows, err := r.DB.Query(ctx, `
		SELECT id, title, image_url, target_url, sort_order, active
		FROM banners WHERE active ORDER BY sort_order`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Banner
	for rows.Next() {
		var b Banner
		if err := rows.Scan(&b.ID, &b.Title, &b.ImageURL, &b.TargetURL, &b.SortOrder, &b.Active); err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

const productColumns = `p.id, p.slug, p.name, p.description, p.price, p.compare_at_price,
	p.rating, p.review_count, p.stock, p.category_id, p.image_url, p.active, p.created_at, p.updated_at`

func scanProduct(row interface{ Scan(...any) error }) (Product, error) {
	var (
		p         Product
		price     pgtype.Numeric
		compareAt pgtype.Numeric
		rating    pgtype.Numeric
	)
	err := row.Scan(&p.ID, &p.Slug, &p.Name, &p.Description, &price, &compareAt,
		&rating, &p.ReviewCount, &p.Stock, &p.CategoryID, &p.ImageURL, &p.Active, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return Product{}, mapRowErr(err)
	}
	p.Price = NumericToDecimal(price)
	p.Rating = NumericToDecimal(rating)
	if compareAt.Valid {
		d := NumericToDecimal(compareAt)
		p.CompareAtPrice = &d
	}
	return p, nil
}

// ListProducts returns a filtered, ordered page of active products plus the
// total count matching the filter.
func (r Catalog) ListProducts(ctx context.Context, f ProductFilter) ([]Product, int64, error) {
	where := []string{"p.active"}
	args := []any{}
	if f.CategorySlug != "" {
		args = append(args, f.CategorySlug)
		where = append(where, fmt.Sprintf("p.category_id = (SELECT id FROM categories WHERE slug = $%d)", len(args)))
	}
	if q := strings.TrimSpace(f.Query); q != "" {
		args = append(args, "%"+q+"%")
		where = append(where, fmt.Sprintf("(p.name ILIKE $%d OR p.description ILIKE $%d)", len(args), len(args)))
	}
	cond := strings.Join(where, " AND ")

	var total int64
	if err := r.DB.QueryRow(ctx, `SELECT count(*) FROM products p WHERE `+cond, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	order := "p.created_at DESC"
	switch f.Sort {
	case "price_asc":
		order = "p.price ASC"
	case "price_desc":
		order = "p.price DESC"
	case "rating":
		order = "p.rating DESC, p.review_count DESC"
	}
	args = append(args, f.Limit, f.Offset)
	sql := fmt.Sprintf(`SELECT %s FROM products p WHERE %s ORDER BY %s LIMIT $%d OFFSET $%d`,
		productColumns, cond, order, len(args)-1, len(args))

	rows, err := r.DB.Query(ctx, sql, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, p)
	}
	return out, total, rows.Err()
}

// GetProductBySlug returns one active product by slug.
func (r Catalog) GetProductBySlug(ctx context.Context, slug string) (Product, error) {
	row := r.DB.QueryRow(ctx, `SELECT `+productColumns+` FROM products p WHERE p.slug = $1 AND p.active`, slug)
	return scanProduct(row)
}

// GetProductByID returns one product by id regardless of active flag.
func (r Catalog) GetProductByID(ctx context.Context, id string) (Product, error) {
	row := r.DB.QueryRow(ctx, `SELECT `+productColumns+` FROM products p WHERE p.id = $1`, id)
	return scanProduct(row)
}

// ListRelated returns other active products in the same category.
func (r Catalog) ListRelated(ctx context.Context, productID string, limit int32) ([]Product, error) {
	rows, err := r.DB.Query(ctx, `
		SELECT `+productColumns+` FROM products p
		WHERE p.active AND p.id <> $1
		  AND p.category_id = (SELECT category_id FROM products WHERE id = $1)
		ORDER BY p.rating DESC, p.created_at DESC
		LIMIT $2`, productID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// DecrementStock atomically reduces stock, failing when not enough remains.
func (r Catalog) DecrementStock(ctx context.Context, tx pgx.Tx, productID string, qty int32) error {
	tag, err := tx.Exec(ctx, `
		UPDATE products SET stock = stock - $2, updated_at = now()
		WHERE id = $1 AND stock >= $2`, productID, qty)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrInsufficientStock
	}
	return nil
}
