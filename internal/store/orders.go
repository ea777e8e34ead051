package store

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
)

// Order is an order header with its pricing snapshot. Money fields are the
// rounded presentation values frozen at checkout time.
type Order struct {
	ID              string
	Number          string
	UserID          string
	Status          string
	Subtotal        decimal.Decimal
	ShippingFee     decimal.Decimal
	TaxAmount       decimal.Decimal
	DiscountAmount  decimal.Decimal
	Total           decimal.Decimal
	CouponCode      *string
	AddressSnapshot []byte
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// OrderItem is a line frozen at checkout; product name and unit price are
// snapshots, not live joins.
type OrderItem struct {
	ID        string
	OrderID   string
	ProductID string
	Name      string
	UnitPrice decimal.Decimal
	Qty       int32
	LineTotal decimal.Decimal
}

// StatusEvent is one entry of an order's tracking history.
type StatusEvent struct {
	ID        string
	OrderID   string
	Status    string
	Note      string
	CreatedAt time.Time
}

// Orders persists orders, their lines and status history.
type Orders struct {
	DB DBTX
}

const orderColumns = `id, number, user_id, status, subtotal, shipping_fee, tax_amount,
	discount_amount, total, coupon_code, address_snapshot, created_at, updated_at`

func scanOrder(row interface{ Scan(...any) error }) (Order, error) {
	var (
		o                                      Order
		subtotal, shipping, tax, discount, tot pgtype.Numeric
	)
	err := row.Scan(&o.ID, &o.Number, &o.UserID, &o.Status, &subtotal, &shipping, &tax,
		&discount, &tot, &o.CouponCode, &o.AddressSnapshot, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return Order{}, mapRowErr(err)
	}
	o.Subtotal = NumericToDecimal(subtotal)
	o.ShippingFee = NumericToDecimal(shipping)
	o.TaxAmount = NumericToDecimal(tax)
	o.DiscountAmount = NumericToDecimal(discount)
	o.Total = NumericToDecimal(tot)
	return o, nil
}

// Create inserts an order header.
func (r Orders) Create(ctx context.Context, o Order) (Order, error) {
	row := r.DB.QueryRow(ctx, `
		INSERT INTO orders (id, number, user_id, status, subtotal, shipping_fee, tax_amount,
			discount_amount, total, coupon_code, address_snapshot)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING `+orderColumns,
		o.ID, o.Number, o.UserID, o.Status,
		DecimalToNumeric(o.Subtotal), DecimalToNumeric(o.ShippingFee), DecimalToNumeric(o.TaxAmount),
		DecimalToNumeric(o.DiscountAmount), DecimalToNumeric(o.Total), o.CouponCode, o.AddressSnapshot)
	return scanOrder(row)
}

// CreateItem inserts one frozen order line.
func (r Orders) CreateItem(ctx context.Context, it OrderItem) error {
	_, err := r.DB.Exec(ctx, `
		INSERT INTO order_items (id, order_id, product_id, name, unit_price, qty, line_total)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		it.ID, it.OrderID, it.ProductID, it.Name, DecimalToNumeric(it.UnitPrice), it.Qty, DecimalToNumeric(it.LineTotal))
	return err
}

// GetByID returns an order by id.
func (r Orders) GetByID(ctx context.Context, id string) (Order, error) {
	row := r.DB.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, id)
	return scanOrder(row)
}

// GetByIDForUser returns an order only when owned by the user.
func (r Orders) GetByIDForUser(ctx context.Context, id, userID string) (Order, error) {
	row := r.DB.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1 AND user_id = $2`, id, userID)
	return scanOrder(row)
}

// ListByUser returns a page of the user's orders, newest first.
func (r Orders) ListByUser(ctx context.Context, userID string, limit, offset int32) ([]Order, int64, error) {
	var total int64
	if err := r.DB.QueryRow(ctx, `SELECT count(*) FROM orders WHERE user_id = $1`, userID).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.DB.Query(ctx, `
		SELECT `+orderColumns+` FROM orders
		WHERE user_id = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`, userID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, o)
	}
	return out, total, rows.Err()
}

// ListAll returns a page of all orders for the admin dashboard, optionally
// filtered by status.
func (r Orders) ListAll(ctx context.Context, status string, limit, offset int32) ([]Order, int64, error) {
	var total int64
	if err := r.DB.QueryRow(ctx, `
		SELECT count(*) FROM orders WHERE ($1 = '' OR status = $1)`, status).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.DB.Query(ctx, `
		SELECT `+orderColumns+` FROM orders
		WHERE ($1 = '' OR status = $1)
		ORDER BY created_at DESC LIMIT $2 OFFSET $3`, status, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, o)
	}
	return out, total, rows.Err()
}

// ListItems returns the frozen lines of an order.
func (r Orders) ListItems(ctx context.Context, orderID string) ([]OrderItem, error) {
	rows, err := r.DB.Query(ctx, `
		SELECT id, order_id, product_id, name, unit_price, qty, line_total
		FROM order_items WHERE order_id = $1 ORDER BY name`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []OrderItem
	for rows.Next() {
		var (
			it              OrderItem
			price, lineTotal pgtype.Numeric
		)
		if err := rows.Scan(&it.ID, &it.OrderID, &it.ProductID, &it.Name, &price, &it.Qty, &lineTotal); err != nil {
			return nil, err
		}
		it.UnitPrice = NumericToDecimal(price)
		it.LineTotal = NumericToDecimal(lineTotal)
		out = append(out, it)
	}
	return out, rows.Err()
}

// UpdateStatus transitions an order only when it currently holds one of the
// allowed source statuses, preventing racy double transitions.
func (r Orders) UpdateStatus(ctx context.Context, orderID, next string, allowedFrom []string) (Order, error) {
	row := r.DB.QueryRow(ctx, `
		UPDATE orders SET status = $2, updated_at = now()
		WHERE id = $1 AND status = ANY($3)
		RETURNING `+orderColumns, orderID, next, allowedFrom)
	return scanOrder(row)
}

// AppendStatusHistory records one tracking entry.
func (r Orders) AppendStatusHistory(ctx context.Context, id, orderID, status, note string) error {
	_, err := r.DB.Exec(ctx, `
		INSERT INTO order_status_history (id, order_id, status, note)
		VALUES ($1, $2, $3, $4)`, id, orderID, status, note)
	return err
}

// ListStatusHistory returns an order's tracking entries, oldest first.
func (r Orders) ListStatusHistory(ctx context.Context, orderID string) ([]StatusEvent, error) {
	rows, err := r.DB.Query(ctx, `
		SELECT id, order_id, status, note, created_at
		FROM order_status_history WHERE order_id = $1 ORDER BY created_at`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []StatusEvent
	for rows.Next() {
		var e StatusEvent
		if err := rows.Scan(&e.ID, &e.OrderID, &e.Status, &e.Note, &e.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
