package model

import "time"

// VerificationTTL is how long an email verification token stays valid.
const VerificationTTL = 24 * time.Hour

// VerificationToken is a single-use token mailed to a user to prove they own
// their email address. A user may hold several over time (one per
// registration or resend).
type VerificationToken struct {
	ID        string    `db:"id"`
	Token     string    `db:"token"` // UUIDv4, unique
	UserID    string    `db:"user_id"`
	CreatedAt time.Time `db:"created_at"`
	ExpiresAt time.Time `db:"expires_at"`
	IsUsed    bool      `db:"is_used"`
}

// Expired reports whether the token is past its expiry at time now.
func (t *VerificationToken) Expired(now time.Time) bool {
	return now.After(t.ExpiresAt)
}

// RevokedToken is an entry in the refresh token revocation list.
type RevokedToken struct {
	JTI       string    `db:"jti"`
	UserID    string    `db:"user_id"`
	ExpiresAt time.Time `db:"expires_at"`
	RevokedAt time.Time `db:"revoked_at"`
}
