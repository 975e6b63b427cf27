package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/sakif/news-api/internal/apperror"
	"github.com/sakif/news-api/internal/media"
	"github.com/sakif/news-api/internal/model"
	"github.com/sakif/news-api/internal/repository"
)

// PictureStore persists uploaded profile pictures. *media.Store implements it.
type PictureStore interface {
	SaveProfilePicture(userID, filename string, r io.Reader) (string, error)
	Remove(rel string) error
}

// ProfileService manages user profiles and reading history.
type ProfileService struct {
	profiles repository.ProfileRepository
	history  repository.HistoryRepository
	pictures PictureStore
	logger   *slog.Logger
}

func NewProfileService(profiles repository.ProfileRepository, history repository.HistoryRepository, pictures PictureStore, logger *slog.Logger) *ProfileService {
	return &ProfileService{profiles: profiles, history: history, pictures: pictures, logger: logger}
}

// Get returns the profile of userID, creating an empty one on first access.
// It serves both the caller's own profile and public lookups.
func (s *ProfileService) Get(ctx context.Context, userID string) (*model.Profile, error) {
	return s.profiles.GetOrCreateProfile(ctx, userID)
}

// ProfileUpdate holds the editable profile fields. Nil means unchanged.
// DateOfBirth is YYYY-MM-DD; an empty string clears it.
type ProfileUpdate struct {
	FullName    *string
	Bio         *string
	DateOfBirth *string
	PhoneNumber *string
	Address     *string
}

func (s *ProfileService) Update(ctx context.Context, userID string, in ProfileUpdate) (*model.Profile, error) {
	p, err := s.profiles.GetOrCreateProfile(ctx, userID)
	if err != nil {
		return nil, err
	}

	if in.FullName != nil {
		p.FullName = strings.TrimSpace(*in.FullName)
	}
	if in.Bio != nil {
		p.Bio = strings.TrimSpace(*in.Bio)
	}
	if in.PhoneNumber != nil {
		p.PhoneNumber = strings.TrimSpace(*in.PhoneNumber)
	}
	if in.Address != nil {
		p.Address = strings.TrimSpace(*in.Address)
	}
	if in.DateOfBirth != nil {
		dob, err := parseDateOfBirth(*in.DateOfBirth, time.Now().UTC())
		if err != nil {
			return nil, err
		}
		p.DateOfBirth = dob
	}

	if err := s.profiles.UpdateProfile(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

func parseDateOfBirth(value string, now time.Time) (*time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, nil
	}
	dob, err := time.Parse(dateLayout, value)
	if err != nil {
		return nil, apperror.ValidationFailed("date_of_birth", "date_of_birth must be YYYY-MM-DD")
	}
	if dob.After(now) {
		return nil, apperror.ValidationFailed("date_of_birth", "date_of_birth cannot be in the future")
	}
	return &dob, nil
}

// UploadPicture stores a new profile picture and removes the previous one.
func (s *ProfileService) UploadPicture(ctx context.Context, userID, filename string, r io.Reader) (*model.Profile, error) {
	p, err := s.profiles.GetOrCreateProfile(ctx, userID)
	if err != nil {
		return nil, err
	}

	rel, err := s.pictures.SaveProfilePicture(userID, filename, r)
	if err != nil {
		if errors.Is(err, media.ErrTooLarge) || errors.Is(err, media.ErrUnsupportedType) {
			return nil, apperror.Invalid("profile_picture", err)
		}
		return nil, fmt.Errorf("saving profile picture: %w", err)
	}

	if err := s.profiles.SetProfilePicture(ctx, userID, rel); err != nil {
		s.removePicture(rel)
		return nil, err
	}
	if p.ProfilePicture != "" {
		s.removePicture(p.ProfilePicture)
	}

	s.logger.Info("profile picture updated", slog.String("userID", userID), slog.String("path", rel))
	p.ProfilePicture = rel
	return p, nil
}

// DeletePicture removes the picture file and clears the field.
func (s *ProfileService) DeletePicture(ctx context.Context, userID string) (*model.Profile, error) {
	p, err := s.profiles.GetOrCreateProfile(ctx, userID)
	if err != nil {
		return nil, err
	}
	if p.ProfilePicture == "" {
		return p, nil
	}

	if err := s.profiles.SetProfilePicture(ctx, userID, ""); err != nil {
		return nil, err
	}
	s.removePicture(p.ProfilePicture)
	p.ProfilePicture = ""
	return p, nil
}

// removePicture deletes a stored file. A leftover file is logged, not fatal.
func (s *ProfileService) removePicture(rel string) {
	if err := s.pictures.Remove(rel); err != nil {
		s.logger.Warn("profile picture not removed", slog.String("path", rel), slog.String("error", err.Error()))
	}
}

// History lists the articles the caller has opened, most recent first.
func (s *ProfileService) History(ctx context.Context, userID string, req PageRequest) (Page[model.HistoryEntry], error) {
	items, total, err := s.history.ListHistory(ctx, userID, req.options())
	if err != nil {
		return Page[model.HistoryEntry]{}, fmt.Errorf("listing history: %w", err)
	}
	return newPage(req, items, total), nil
}

// ClearHistory deletes the caller's reading history and reports how many
// entries went.
func (s *ProfileService) ClearHistory(ctx context.Context, userID string) (int64, error) {
	n, err := s.history.ClearHistory(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("clearing history: %w", err)
	}
	s.logger.Info("reading history cleared", slog.String("userID", userID), slog.Int64("deleted", n))
	return n, nil
}
