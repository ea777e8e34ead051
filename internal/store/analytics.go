package store

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
)

// SalesPoint is one day of the sales series.
type SalesPoint struct {
	Day     time.Time
	Orders  int64
	Revenue decimal.Decimal
}

// TopProduct is one row of the top-sellers report.
type TopProduct struct {
	ProductID string
	Name      string
	Units     int64
	Revenue   decimal.Decimal
}

// Overview holds dashboard headline numbers.
type Overview struct {
	Orders        int64
	Revenue       decimal.Decimal
	Customers     int64
	AvgOrderValue decimal.Decimal
}

// Analytics runs dashboard aggregate queries. Cancelled orders are excluded
// from every report.
type Analytics struct {
	DB DBTX
}

// SalesSeries returns orders and revenue per day over [from, to].
func (r Analytics) SalesSeries(ctx context.Context, from, to time.Time) ([]SalesPoint, error) {
	rows, err := r.DB.Query(ctx, `
		SELECT date_trunc('day', created_at) AS day, count(*), coalesce(sum(total), 0)
		FROM orders
		WHERE status <> 'cancelled' AND created_at >= $1 AND created_at < $2
		GROUP BY day ORDER BY day`, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []SalesPoint
	for rows.Next() {
		var (
			p       SalesPoint
			revenue pgtype.Numeric
		)
		if err := rows.Scan(&p.Day, &p.Orders, &revenue); err != nil {
			return nil, err
		}
		p.Revenue = NumericToDecimal(revenue)
		out = append(out, p)
	}
	return out, rows.Err()
}

// TopProducts returns the best sellers by units over all time.
func (r Analytics) TopProducts(ctx context.Context, limit int32) ([]TopProduct, error) {
	rows, err := r.DB.Query(ctx, `
		SELECT oi.product_id, oi.name, sum(oi.qty)::bigint, coalesce(sum(oi.line_total), 0)
		FROM order_items oi
		JOIN orders o ON o.id = oi.order_id
		WHERE o.status <> 'cancelled'
		GROUP BY oi.product_id, oi.name
		ORDER BY sum(oi.qty) DESC
		LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []TopProduct
	for rows.Next() {
		var (
			p       TopProduct
			revenue pgtype.Numeric
		)
		if err := rows.Scan(&p.ProductID, &p.Name, &p.Units, &revenue); err != nil {
			return nil, err
		}
		p.Revenue = NumericToDecimal(revenue)
		out = append(out, p)
	}
	return out, rows.Err()
}

// GetOverview returns headline totals for the dashboard.
func (r Analytics) GetOverview(ctx context.Context) (Overview, error) {
	var (
		o       Overview
		revenue pgtype.Numeric
		avg     pgtype.Numeric
	)
	err := r.DB.QueryRow(ctx, `
		SELECT count(*), coalesce(sum(total), 0),
		       count(DISTINCT user_id), coalesce(avg(total), 0)
		FROM orders WHERE status <> 'cancelled'`).
		Scan(&o.Orders, &revenue, &o.Customers, &avg)
	if err != nil {
		return Overview{}, err
	}
	o.Revenue = NumericToDecimal(revenue)
	o.AvgOrderValue = NumericToDecimal(avg).Round(2)
	return o, nil
}
