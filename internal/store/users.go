package store

import (
	"context"
	"time"
)

// User is an account row.
type User struct {
	ID           string
	Email        string
	Phone        *string
	PasswordHash string
	FullName     string
	AvatarURL    *string
	Role         string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Users persists accounts.
type Users struct {
	DB DBTX
}

const userColumns = `id, email, phone, password_hash, full_name, avatar_url, role, created_at, updated_at`

func scanUser(row interface{ Scan(...any) error }) (User, error) {
	var u User
	err := row.Scan(&u.ID, &u.Email, &u.Phone, &u.PasswordHash, &u.FullName, &u.AvatarURL, &u.Role, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return User{}, mapRowErr(err)
	}
	return u, nil
}

// Create inserts a new account.
func (r Users) Create(ctx context.Context, id, email, passwordHash, fullName string) (User, error) {
	row := r.DB.QueryRow(ctx, `
		INSERT INTO users (id, email, password_hash, full_name)
		VALUES ($1, lower($2), $3, $4)
		RETURNING `+userColumns, id, email, passwordHash, fullName)
	return scanUser(row)
}

// GetByEmail looks an account up by (case-insensitive) email.
func (r Users) GetByEmail(ctx context.Context, email string) (User, error) {
	row := r.DB.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE email = lower($1)`, email)
	return scanUser(row)
}

// GetByID looks an account up by id.
func (r Users) GetByID(ctx context.Context, id string) (User, error) {
	row := r.DB.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	return scanUser(row)
}

// UpdateProfile updates the mutable profile fields.
func (r Users) UpdateProfile(ctx context.Context, id, fullName string, phone, avatarURL *string) (User, error) {
	row := r.DB.QueryRow(ctx, `
		UPDATE users
		SET full_name = $2, phone = $3, avatar_url = $4, updated_at = now()
		WHERE id = $1
		RETURNING `+userColumns, id, fullName, phone, avatarURL)
	return scanUser(row)
}

// UpdatePassword replaces the stored password hash.
func (r Users) UpdatePassword(ctx context.Context, id, passwordHash string) error {
	tag, err := r.DB.Exec(ctx, `
		UPDATE users SET password_hash = $2, updated_at = now() WHERE id = $1`, id, passwordHash)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
