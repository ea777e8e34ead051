package store

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
)

// Coupon is a stored discount rule.
type Coupon struct {
	ID          string
	Code        string
	Kind        string
	Value       decimal.Decimal
	MinSubtotal decimal.Decimal
	Active      bool
	StartsAt    *time.Time
	EndsAt      *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Coupons persists discount rules and redemptions.
type Coupons struct {
	DB DBTX
}

const couponColumns = `id, code, kind, value, min_subtotal, active, starts_at, ends_at, created_at, updated_at`

func scanCoupon(row interface{ Scan(...any) error }) (Coupon, error) {
	var (
		c     Coupon
		value pgtype.Numeric
		minS  pgtype.Numeric
	)
	err := row.Scan(&c.ID, &c.Code, &c.Kind, &value, &minS, &c.Active, &c.StartsAt, &c.EndsAt, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return Coupon{}, mapRowErr(err)
	}
	c.Value = NumericToDecimal(value)
	c.MinSubtotal = NumericToDecimal(minS)
	return c, nil
}

// GetByCode returns a coupon by upper-cased code.
func (r Coupons) GetByCode(ctx context.Context, code string) (Coupon, error) {
	row := r.DB.QueryRow(ctx, `SELECT `+couponColumns+` FROM coupons WHERE code = upper($1)`, code)
	return scanCoupon(row)
}

// List returns a page of coupons, newest first, plus the total count.
func (r Coupons) List(ctx context.Context, limit, offset int32) ([]Coupon, int64, error) {
	var total int64
	if err := r.DB.QueryRow(ctx, `SELECT count(*) FROM coupons`).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.DB.Query(ctx, `
		SELECT `+couponColumns+` FROM coupons
		ORDER BY created_at DESC LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []Coupon
	for rows.Next() {
		c, err := scanCoupon(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, c)
	}
	return out, total, rows.Err()
}

// Create inserts a coupon.
func (r Coupons) Create(ctx context.Context, c Coupon) (Coupon, error) {
	row := r.DB.QueryRow(ctx, `
		INSERT INTO coupons (id, code, kind, value, min_subtotal, active, starts_at, ends_at)
		VALUES ($1, upper($2), $3, $4, $5, $6, $7, $8)
		RETURNING `+couponColumns,
		c.ID, c.Code, c.Kind, DecimalToNumeric(c.Value), DecimalToNumeric(c.MinSubtotal),
		c.Active, c.StartsAt, c.EndsAt)
	return scanCoupon(row)
}

// Update replaces the mutable fields of a coupon.
func (r Coupons) Update(ctx context.Context, c Coupon) (Coupon, error) {
	row := r.DB.QueryRow(ctx, `
		UPDATE coupons
		SET kind = $2, value = $3, min_subtotal = $4, active = $5,
		    starts_at = $6, ends_at = $7, updated_at = now()
		WHERE id = $1
		RETURNING `+couponColumns,
		c.ID, c.Kind, DecimalToNumeric(c.Value), DecimalToNumeric(c.MinSubtotal),
		c.Active, c.StartsAt, c.EndsAt)
	return scanCoupon(row)
}

// Delete removes a coupon.
func (r Coupons) Delete(ctx context.Context, id string) error {
	tag, err := r.DB.Exec(ctx, `DELETE FROM coupons WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// RecordRedemption logs a coupon use at checkout for audit. Run inside the
// checkout transaction by constructing Coupons over the tx.
func (r Coupons) RecordRedemption(ctx context.Context, id, couponID, orderID, userID string, discount decimal.Decimal) error {
	_, err := r.DB.Exec(ctx, `
		INSERT INTO coupon_redemptions (id, coupon_id, order_id, user_id, discount)
		VALUES ($1, $2, $3, $4, $5)`, id, couponID, orderID, userID, DecimalToNumeric(discount))
	return err
}
