package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/rs/xid"
	"github.com/sakif/news-api/internal/apperror"
	"github.com/sakif/news-api/internal/model"
	"github.com/sakif/news-api/internal/repository"
)

var (
	_ repository.VerificationRepository = (*DB)(nil)
	_ repository.RevocationRepository   = (*DB)(nil)
)

const tokenColumns = `id, token, user_id, created_at, expires_at, is_used`

// CreateVerificationToken stores a new token. The caller fills Token, UserID
// and the timestamps; ID is assigned here.
func (db *DB) CreateVerificationToken(ctx context.Context, t *model.VerificationToken) error {
	return insertVerificationToken(ctx, db.conn, t)
}

func insertVerificationToken(ctx context.Context, q querier, t *model.VerificationToken) error {
	t.ID = xid.New().String()

	_, err := q.ExecContext(ctx,
		`INSERT INTO verification_tokens (`+tokenColumns+`) VALUES (?, ?, ?, ?, ?, ?)`,
		t.ID, t.Token, t.UserID, t.CreatedAt.UTC(), t.ExpiresAt.UTC(), t.IsUsed,
	)
	if err != nil {
		return fmt.Errorf("sqlite: inserting verification token for %s: %w", t.UserID, err)
	}
	return nil
}

// GetVerificationToken finds a token by its value.
func (db *DB) GetVerificationToken(ctx context.Context, value string) (*model.VerificationToken, error) {
	var t model.VerificationToken
	err := db.conn.QueryRowContext(ctx,
		`SELECT `+tokenColumns+` FROM verification_tokens WHERE token = ?`, value,
	).Scan(&t.ID, &t.Token, &t.UserID, &t.CreatedAt, &t.ExpiresAt, &t.IsUsed)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("verification token", value)
		}
		return nil, fmt.Errorf("sqlite: getting verification token: %w", err)
	}
	return &t, nil
}

// ConsumeVerificationToken flips the token to used and the user to verified
// atomically. The token update only matches an unused row, so of two
// concurrent submissions exactly one gets past it.
func (db *DB) ConsumeVerificationToken(ctx context.Context, tokenID, userID string) error {
	return db.withTx(ctx, func(tx *sql.Tx) error {
		result, err := tx.ExecContext(ctx,
			`UPDATE verification_tokens SET is_used = 1 WHERE id = ? AND is_used = 0`, tokenID)
		if err != nil {
			return fmt.Errorf("sqlite: consuming token %s: %w", tokenID, err)
		}
		n, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("sqlite: checking rows affected: %w", err)
		}
		if n == 0 {
			return repository.ErrAlreadyConsumed
		}

		result, err = tx.ExecContext(ctx,
			`UPDATE users SET is_email_verified = 1, updated_at = ? WHERE id = ?`,
			db.now(), userID)
		if err != nil {
			return fmt.Errorf("sqlite: verifying user %s: %w", userID, err)
		}
		return expectAffected(result, "user", userID)
	})
}

// ListVerificationTokens returns a user's tokens, newest first.
func (db *DB) ListVerificationTokens(ctx context.Context, userID string) ([]model.VerificationToken, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT `+tokenColumns+` FROM verification_tokens
		 WHERE user_id = ? ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing verification tokens: %w", err)
	}
	defer rows.Close()

	var tokens []model.VerificationToken
	for rows.Next() {
		var t model.VerificationToken
		if err := rows.Scan(&t.ID, &t.Token, &t.UserID, &t.CreatedAt, &t.ExpiresAt, &t.IsUsed); err != nil {
			return nil, fmt.Errorf("sqlite: scanning verification token: %w", err)
		}
		tokens = append(tokens, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating verification tokens: %w", err)
	}
	return tokens, nil
}

// RevokeToken adds a refresh token's jti to the revocation list.
func (db *DB) RevokeToken(ctx context.Context, t *model.RevokedToken) error {
	if t.RevokedAt.IsZero() {
		t.RevokedAt = db.now()
	}
	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO revoked_tokens (jti, user_id, expires_at, revoked_at) VALUES (?, ?, ?, ?)`,
		t.JTI, t.UserID, t.ExpiresAt.UTC(), t.RevokedAt.UTC(),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return repository.ErrAlreadyRevoked
		}
		return fmt.Errorf("sqlite: revoking token %s: %w", t.JTI, err)
	}
	return nil
}

func (db *DB) IsTokenRevoked(ctx context.Context, jti string) (bool, error) {
	var n int
	err := db.conn.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM revoked_tokens WHERE jti = ?`, jti).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("sqlite: checking revocation of %s: %w", jti, err)
	}
	return n > 0, nil
}

// PurgeRevokedTokens drops entries whose token would have expired anyway.
func (db *DB) PurgeRevokedTokens(ctx context.Context, before time.Time) (int64, error) {
	result, err := db.conn.ExecContext(ctx,
		`DELETE FROM revoked_tokens WHERE expires_at < ?`, before.UTC())
	if err != nil {
		return 0, fmt.Errorf("sqlite: purging revoked tokens: %w", err)
	}
	return result.RowsAffected()
}
