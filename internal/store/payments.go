package store

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
)

// PaymentIntent tracks one payment attempt against a provider.
type PaymentIntent struct {
	ID         string
	OrderID    string
	Provider   string
	ExternalID string
	Amount     decimal.Decimal
	Currency   string
	Status     string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Payments persists payment intents.
type Payments struct {
	DB DBTX
}

const paymentColumns = `id, order_id, provider, external_id, amount, currency, status, created_at, updated_at`

func scanPayment(row interface{ Scan(...any) error }) (PaymentIntent, error) {
	var (
		p      PaymentIntent
		amount pgtype.Numeric
	)
	err := row.Scan(&p.ID, &p.OrderID, &p.Provider, &p.ExternalID, &amount, &p.Currency, &p.Status, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return PaymentIntent{}, mapRowErr(err)
	}
	p.Amount = NumericToDecimal(amount)
	return p, nil
}

// Create inserts a payment intent.
func (r Payments) Create(ctx context.Context, p PaymentIntent) (PaymentIntent, error) {
	row := r.DB.QueryRow(ctx, `
		INSERT INTO payment_intents (id, order_id, provider, external_id, amount, currency, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING `+paymentColumns,
		p.ID, p.OrderID, p.Provider, p.ExternalID, DecimalToNumeric(p.Amount), p.Currency, p.Status)
	return scanPayment(row)
}

// GetByID returns a payment intent by id.
func (r Payments) GetByID(ctx context.Context, id string) (PaymentIntent, error) {
	row := r.DB.QueryRow(ctx, `SELECT `+paymentColumns+` FROM payment_intents WHERE id = $1`, id)
	return scanPayment(row)
}

// GetLatestByOrder returns the most recent intent for an order.
func (r Payments) GetLatestByOrder(ctx context.Context, orderID string) (PaymentIntent, error) {
	row := r.DB.QueryRow(ctx, `
		SELECT `+paymentColumns+` FROM payment_intents
		WHERE order_id = $1 ORDER BY created_at DESC LIMIT 1`, orderID)
	return scanPayment(row)
}

// UpdateStatus transitions a payment intent.
func (r Payments) UpdateStatus(ctx context.Context, id, status string) (PaymentIntent, error) {
	row := r.DB.QueryRow(ctx, `
		UPDATE payment_intents SET status = $2, updated_at = now()
		WHERE id = $1
		RETURNING `+paymentColumns, id, status)
	return scanPayment(row)
}
