package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sakif/news-api/internal/apperror"
	"github.com/sakif/news-api/internal/mail"
	"github.com/sakif/news-api/internal/model"
	"github.com/sakif/news-api/internal/repository"
)

// verifyPath is where clients submit a verification token.
const verifyPath = "/api/auth/verify-email"

// VerificationService issues, mails and consumes email verification tokens.
//
// TOKEN LIFECYCLE:
//
//	Issue ──► (mailed) ──► Consume ──► used (user verified)
//	   └────────── 24h ──────────► expired
//
// A user can hold several live tokens: resending issues a new one without
// touching the old ones, and each expires on its own schedule.
type VerificationService struct {
	users       repository.UserRepository
	tokens      repository.VerificationRepository
	mailer      mail.Mailer
	baseURL     string
	sendTimeout time.Duration
	now         func() time.Time
	logger      *slog.Logger
}

func NewVerificationService(
	users repository.UserRepository,
	tokens repository.VerificationRepository,
	mailer mail.Mailer,
	baseURL string,
	logger *slog.Logger,
) *VerificationService {
	return &VerificationService{
		users:       users,
		tokens:      tokens,
		mailer:      mailer,
		baseURL:     strings.TrimRight(baseURL, "/"),
		sendTimeout: 10 * time.Second,
		now:         func() time.Time { return time.Now().UTC() },
		logger:      logger,
	}
}

func (s *VerificationService) newToken(userID string) *model.VerificationToken {
	now := s.now()
	return &model.VerificationToken{
		Token:     uuid.NewString(),
		UserID:    userID,
		CreatedAt: now,
		ExpiresAt: now.Add(model.VerificationTTL),
	}
}

// Enroll stores a new unverified user together with their first token, then
// emails it. Either both rows are written or neither is. emailSent reports
// whether the mailer accepted the message.
func (s *VerificationService) Enroll(ctx context.Context, user *model.User) (emailSent bool, err error) {
	tok := s.newToken("")
	if err := s.users.CreateUser(ctx, user, tok); err != nil {
		return false, err
	}
	return s.send(ctx, user, tok), nil
}

// Issue creates a token for user and emails it. emailSent reports whether
// the mailer accepted the message; a failed send is logged, not returned.
func (s *VerificationService) Issue(ctx context.Context, user *model.User) (*model.VerificationToken, bool, error) {
	tok := s.newToken(user.ID)
	if err := s.tokens.CreateVerificationToken(ctx, tok); err != nil {
		return nil, false, fmt.Errorf("issuing verification token: %w", err)
	}

	return tok, s.send(ctx, user, tok), nil
}

func (s *VerificationService) send(ctx context.Context, user *model.User, tok *model.VerificationToken) bool {
	msg, err := mail.VerificationEmail(user.Email, mail.VerificationData{
		Username:        user.Username,
		VerificationURL: s.baseURL + verifyPath,
		Token:           tok.Token,
		SiteName:        "news api",
	})
	if err != nil {
		s.logger.Error("rendering verification email", slog.String("userID", user.ID), slog.String("error", err.Error()))
		return false
	}

	ctx, cancel := context.WithTimeout(ctx, s.sendTimeout)
	defer cancel()

	if err := s.mailer.Send(ctx, msg); err != nil {
		s.logger.Warn("verification email not sent",
			slog.String("userID", user.ID),
			slog.String("error", err.Error()),
		)
		return false
	}
	return true
}

// Consume verifies the owner of the token. Failures, checked in this order,
// are validation errors on "token" caused by ErrTokenNotFound,
// ErrTokenExpired or ErrTokenUsed.
func (s *VerificationService) Consume(ctx context.Context, value string) (*model.User, error) {
	value = strings.TrimSpace(value)
	if _, err := uuid.Parse(value); err != nil {
		return nil, apperror.Invalid("token", ErrTokenNotFound)
	}

	tok, err := s.tokens.GetVerificationToken(ctx, value)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return nil, apperror.Invalid("token", ErrTokenNotFound)
		}
		return nil, fmt.Errorf("looking up verification token: %w", err)
	}

	if tok.Expired(s.now()) {
		return nil, apperror.Invalid("token", ErrTokenExpired)
	}
	if tok.IsUsed {
		return nil, apperror.Invalid("token", ErrTokenUsed)
	}

	if err := s.tokens.ConsumeVerificationToken(ctx, tok.ID, tok.UserID); err != nil {
		if errors.Is(err, repository.ErrAlreadyConsumed) {
			return nil, apperror.Invalid("token", ErrTokenUsed)
		}
		return nil, fmt.Errorf("consuming verification token: %w", err)
	}

	s.logger.Info("email verified", slog.String("userID", tok.UserID))
	return s.users.GetUserByID(ctx, tok.UserID)
}

// Resend issues a fresh token for the account registered under email.
// Earlier tokens stay valid until they expire.
func (s *VerificationService) Resend(ctx context.Context, email string) (bool, error) {
	email = normalizeEmail(email)
	if email == "" {
		return false, apperror.ValidationFailed("email", "email is required")
	}

	user, err := s.users.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return false, &apperror.AppError{
				Err:     apperror.ErrNotFound,
				Message: "no account is registered with this email",
				Field:   "email",
			}
		}
		return false, fmt.Errorf("resending verification: %w", err)
	}
	if user.IsEmailVerified {
		return false, apperror.Invalid("email", ErrAlreadyVerified)
	}

	_, sent, err := s.Issue(ctx, user)
	return sent, err
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
