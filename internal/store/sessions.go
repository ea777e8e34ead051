package store

import (
	"context"
	"time"
)

// Session is a persisted refresh token. Only the SHA-256 hash of the token
// touches the database.
type Session struct {
	ID          string
	UserID      string
	RefreshHash string
	UserAgent   string
	IP          string
	ExpiresAt   time.Time
	RevokedAt   *time.Time
	CreatedAt   time.Time
}

// Sessions persists refresh sessions.
type Sessions struct {
	DB DBTX
}

const sessionColumns = `id, user_id, refresh_hash, user_agent, ip, expires_at, revoked_at, created_at`

func scanSession(row interface{ Scan(...any) error }) (Session, error) {
	var s Session
	err := row.Scan(&s.ID, &s.UserID, &s.RefreshHash, &s.UserAgent, &s.IP, &s.ExpiresAt, &s.RevokedAt, &s.CreatedAt)
	if err != nil {
		return Session{}, mapRowErr(err)
	}
	return s, nil
}

// Create stores a new session.
func (r Sessions) Create(ctx context.Context, id, userID, refreshHash, userAgent, ip string, expiresAt time.Time) (Session, error) {
	row := r.DB.QueryRow(ctx, `
		INSERT INTO sessions (id, user_id, refresh_hash, user_agent, ip, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING `+sessionColumns, id, userID, refreshHash, userAgent, ip, expiresAt)
	return scanSession(row)
}

// GetActiveByHash returns a live (unrevoked, unexpired) session by token hash.
func (r Sessions) GetActiveByHash(ctx context.Context, refreshHash string) (Session, error) {
	row := r.DB.QueryRow(ctx, `
		SELECT `+sessionColumns+` FROM sessions
		WHERE refresh_hash = $1 AND revoked_at IS NULL AND expires_at > now()`, refreshHash)
	return scanSession(row)
}

// Revoke marks the session with the given token hash as revoked.
func (r Sessions) Revoke(ctx context.Context, refreshHash string) error {
	_, err := r.DB.Exec(ctx, `
		UPDATE sessions SET revoked_at = now()
		WHERE refresh_hash = $1 AND revoked_at IS NULL`, refreshHash)
	return err
}

// RevokeAllForUser revokes every live session of a user.
func (r Sessions) RevokeAllForUser(ctx context.Context, userID string) error {
	_, err := r.DB.Exec(ctx, `
		UPDATE sessions SET revoked_at = now()
		WHERE user_id = $1 AND revoked_at IS NULL`, userID)
	return err
}

// DeleteExpired removes sessions past expiry, keeping the table small.
func (r Sessions) DeleteExpired(ctx context.Context) (int64, error) {
	tag, err := r.DB.Exec(ctx, `DELETE FROM sessions WHERE expires_at < now() - interval '7 days'`)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
