package store

import (
	"context"
	"time"
)

// Address is an address-book entry used at checkout.
type Address struct {
	ID         string
	UserID     string
	Label      string
	Recipient  string
	Phone      string
	Line1      string
	Line2      *string
	City       string
	State      string
	PostalCode string
	Country    string
	IsDefault  bool
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Addresses persists the address book.
type Addresses struct {
	DB DBTX
}

const addressColumns = `id, user_id, label, recipient, phone, line1, line2, city, state, postal_code, country, is_default, created_at, updated_at`

func scanAddress(row interface{ Scan(...any) error }) (Address, error) {
	var a Address
	err := row.Scan(&a.ID, &a.UserID, &a.Label, &a.Recipient, &a.Phone, &a.Line1, &a.Line2,
		&a.City, &a.State, &a.PostalCode, &a.Country, &a.IsDefault, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return Address{}, mapRowErr(err)
	}
	return a, nil
}

// List returns a user's addresses, default first.
func (r Addresses) List(ctx context.Context, userID string) ([]Address, error) {
	rows, err := r.DB.Query(ctx, `
		SELECT `+addressColumns+` FROM addresses
		WHERE user_id = $1 ORDER BY is_default DESC, created_at DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Address
	for rows.Next() {
		a, err := scanAddress(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// GetForUser returns an address only when owned by the user.
func (r Addresses) GetForUser(ctx context.Context, id, userID string) (Address, error) {
	row := r.DB.QueryRow(ctx, `SELECT `+addressColumns+` FROM addresses WHERE id = $1 AND user_id = $2`, id, userID)
	return scanAddress(row)
}

// Create inserts an address. Marking it default clears the previous default.
func (r Addresses) Create(ctx context.Context, a Address) (Address, error) {
	if a.IsDefault {
		if err := r.clearDefault(ctx, a.UserID); err != nil {
			return Address{}, err
		}
	}
	row := r.DB.QueryRow(ctx, `
		INSERT INTO addresses (id, user_id, label, recipient, phone, line1, line2, city, state, postal_code, country, is_default)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING `+addressColumns,
		a.ID, a.UserID, a.Label, a.Recipient, a.Phone, a.Line1, a.Line2, a.City, a.State, a.PostalCode, a.Country, a.IsDefault)
	return scanAddress(row)
}

// Update replaces an address owned by the user.
func (r Addresses) Update(ctx context.Context, a Address) (Address, error) {
	if a.IsDefault {
		if err := r.clearDefault(ctx, a.UserID); err != nil {
			return Address{}, err
		}
	}
	row := r.DB.QueryRow(ctx, `
		UPDATE addresses
		SET label = $3, recipient = $4, phone = $5, line1 = $6, line2 = $7, city = $8,
		    state = $9, postal_code = $10, country = $11, is_default = $12, updated_at = now()
		WHERE id = $1 AND user_id = $2
		RETURNING `+addressColumns,
		a.ID, a.UserID, a.Label, a.Recipient, a.Phone, a.Line1, a.Line2, a.City, a.State, a.PostalCode, a.Country, a.IsDefault)
	return scanAddress(row)
}

// Delete removes an address owned by the user.
func (r Addresses) Delete(ctx context.Context, id, userID string) error {
	tag, err := r.DB.Exec(ctx, `DELETE FROM addresses WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r Addresses) clearDefault(ctx context.Context, userID string) error {
	_, err := r.DB.Exec(ctx, `UPDATE addresses SET is_default = false WHERE user_id = $1 AND is_default`, userID)
	return err
}
