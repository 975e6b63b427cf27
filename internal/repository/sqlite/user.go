package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/rs/xid"
	"github.com/sakif/news-api/internal/apperror"
	"github.com/sakif/news-api/internal/model"
	"github.com/sakif/news-api/internal/repository"
)

// compile-time check that *DB implements repository.UserRepository
var _ repository.UserRepository = (*DB)(nil)

const userColumns = `id, email, username, first_name, last_name, password_hash,
	is_active, is_email_verified, created_at, updated_at`

// CreateUser inserts a new user, assigning its ID and timestamps. A non-nil
// tok is stored for the new user in the same transaction, so a registration
// never ends up without its verification token.
// A duplicate email or username becomes an apperror conflict naming the column.
func (db *DB) CreateUser(ctx context.Context, user *model.User, tok *model.VerificationToken) error {
	now := db.now()
	user.ID = xid.New().String()
	user.CreatedAt = now
	user.UpdatedAt = now

	return db.withTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO users (`+userColumns+`)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			user.ID,
			user.Email,
			user.Username,
			user.FirstName,
			user.LastName,
			user.PasswordHash,
			user.IsActive,
			user.IsEmailVerified,
			user.CreatedAt,
			user.UpdatedAt,
		)
		if err != nil {
			if isUniqueViolation(err) {
				return duplicateUser(err)
			}
			return fmt.Errorf("sqlite: inserting user %s: %w", user.Email, err)
		}
		if tok == nil {
			return nil
		}
		tok.UserID = user.ID
		return insertVerificationToken(ctx, tx, tok)
	})
}

func duplicateUser(err error) error {
	switch col := uniqueColumn(err); col {
	case "email":
		return apperror.ConflictField("email", "a user with this email already exists")
	case "username":
		return apperror.ConflictField("username", "a user with this username already exists")
	default:
		return apperror.ConflictField(col, "user already exists")
	}
}

// GetUserByID retrieves a user by their internal ID.
// Returns apperror.ErrNotFound if no user exists with that ID.
func (db *DB) GetUserByID(ctx context.Context, id string) (*model.User, error) {
	u, err := scanUser(db.conn.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = ?`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("user", id)
		}
		return nil, fmt.Errorf("sqlite: getting user %s: %w", id, err)
	}
	return u, nil
}

// GetUserByEmail looks a user up by their (already normalised) email.
func (db *DB) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	u, err := scanUser(db.conn.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE email = ?`, email))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("user", email)
		}
		return nil, fmt.Errorf("sqlite: getting user by email: %w", err)
	}
	return u, nil
}

// UpdateUser saves the editable account fields (names, flags). The password
// hash has its own method so a profile edit can never clobber it.
func (db *DB) UpdateUser(ctx context.Context, user *model.User) error {
	user.UpdatedAt = db.now()

	result, err := db.conn.ExecContext(ctx,
		`UPDATE users
		 SET username = ?, first_name = ?, last_name = ?, is_active = ?,
		     is_email_verified = ?, updated_at = ?
		 WHERE id = ?`,
		user.Username,
		user.FirstName,
		user.LastName,
		user.IsActive,
		user.IsEmailVerified,
		user.UpdatedAt,
		user.ID,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return duplicateUser(err)
		}
		return fmt.Errorf("sqlite: updating user %s: %w", user.ID, err)
	}
	return expectAffected(result, "user", user.ID)
}

// SetPassword replaces the stored bcrypt hash.
func (db *DB) SetPassword(ctx context.Context, userID, hash string) error {
	result, err := db.conn.ExecContext(ctx,
		`UPDATE users SET password_hash = ?, updated_at = ? WHERE id = ?`,
		hash, db.now(), userID,
	)
	if err != nil {
		return fmt.Errorf("sqlite: setting password for %s: %w", userID, err)
	}
	return expectAffected(result, "user", userID)
}

func scanUser(row *sql.Row) (*model.User, error) {
	var u model.User
	err := row.Scan(
		&u.ID,
		&u.Email,
		&u.Username,
		&u.FirstName,
		&u.LastName,
		&u.PasswordHash,
		&u.IsActive,
		&u.IsEmailVerified,
		&u.CreatedAt,
		&u.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// expectAffected turns "no rows matched" into apperror.NotFound.
func expectAffected(result sql.Result, resource, id string) error {
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	if n == 0 {
		return apperror.NotFound(resource, id)
	}
	return nil
}
