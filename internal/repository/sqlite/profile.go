package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/sakif/news-api/internal/apperror"
	"github.com/sakif/news-api/internal/model"
	"github.com/sakif/news-api/internal/repository"
)

var _ repository.ProfileRepository = (*DB)(nil)

// GetOrCreateProfile returns the user's profile, creating an empty one on
// first access. Returns apperror.ErrNotFound if the user doesn't exist.
func (db *DB) GetOrCreateProfile(ctx context.Context, userID string) (*model.Profile, error) {
	now := db.now()
	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO profiles (user_id, created_at, updated_at)
		 SELECT id, ?, ? FROM users WHERE id = ?
		 ON CONFLICT(user_id) DO NOTHING`,
		now, now, userID)
	if err != nil {
		return nil, fmt.Errorf("sqlite: creating profile for %s: %w", userID, err)
	}

	var (
		p   model.Profile
		dob sql.NullTime
	)
	err = db.conn.QueryRowContext(ctx,
		`SELECT p.user_id, u.email, u.username, p.profile_picture, p.full_name, p.bio,
		        p.date_of_birth, p.phone_number, p.address, p.created_at, p.updated_at
		 FROM profiles p JOIN users u ON u.id = p.user_id
		 WHERE p.user_id = ?`, userID,
	).Scan(&p.UserID, &p.Email, &p.Username, &p.ProfilePicture, &p.FullName, &p.Bio,
		&dob, &p.PhoneNumber, &p.Address, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("user", userID)
		}
		return nil, fmt.Errorf("sqlite: getting profile %s: %w", userID, err)
	}
	p.DateOfBirth = timePtr(dob)
	return &p, nil
}

// UpdateProfile saves the editable profile fields. The picture has its own
// method because it is written by the upload flow.
func (db *DB) UpdateProfile(ctx context.Context, p *model.Profile) error {
	p.UpdatedAt = db.now()
	result, err := db.conn.ExecContext(ctx,
		`UPDATE profiles
		 SET full_name = ?, bio = ?, date_of_birth = ?, phone_number = ?, address = ?, updated_at = ?
		 WHERE user_id = ?`,
		p.FullName, p.Bio, nullTime(p.DateOfBirth), p.PhoneNumber, p.Address, p.UpdatedAt, p.UserID)
	if err != nil {
		return fmt.Errorf("sqlite: updating profile %s: %w", p.UserID, err)
	}
	return expectAffected(result, "profile", p.UserID)
}

func (db *DB) SetProfilePicture(ctx context.Context, userID, path string) error {
	result, err := db.conn.ExecContext(ctx,
		`UPDATE profiles SET profile_picture = ?, updated_at = ? WHERE user_id = ?`,
		path, db.now(), userID)
	if err != nil {
		return fmt.Errorf("sqlite: setting picture for %s: %w", userID, err)
	}
	return expectAffected(result, "profile", userID)
}
