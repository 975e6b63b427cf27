// Package service: authentication business logic.
//
// AuthService sits between the HTTP handlers and the repository/auth utilities:
//
//	AuthHandler (HTTP) → AuthService (business rules) → UserRepository (DB)
//	                   ↘ TokenService (JWT)  ↘ VerificationService (email)
//
// THE LOGIN GATE:
// Registration creates an unverified account and mails a verification token.
// Login refuses the account until that token has been consumed, and refuses
// disabled accounts outright. The gate lives here, not in the handler, so every
// entry point gets the same rules.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/sakif/news-api/internal/apperror"
	"github.com/sakif/news-api/internal/auth"
	"github.com/sakif/news-api/internal/model"
	"github.com/sakif/news-api/internal/repository"
)

const MaxUsernameLength = 150

var (
	usernamePattern = regexp.MustCompile(`^[\w.@+-]+$`)
	validate        = validator.New()
)

// AuthService handles registration, login and credential lifecycle.
type AuthService struct {
	users        repository.UserRepository
	revocations  repository.RevocationRepository
	verification *VerificationService
	tokens       *auth.TokenService
	passwords    *auth.PasswordService
	logger       *slog.Logger
}

func NewAuthService(
	users repository.UserRepository,
	revocations repository.RevocationRepository,
	verification *VerificationService,
	tokens *auth.TokenService,
	passwords *auth.PasswordService,
	logger *slog.Logger,
) *AuthService {
	return &AuthService{
		users:        users,
		revocations:  revocations,
		verification: verification,
		tokens:       tokens,
		passwords:    passwords,
		logger:       logger,
	}
}

type RegisterInput struct {
	Email           string
	Username        string
	Password        string
	PasswordConfirm string
	FirstName       string
	LastName        string
}

// RegisterResult bundles everything the register endpoint responds with.
type RegisterResult struct {
	User      *model.User
	Tokens    auth.Pair
	EmailSent bool
}

// Register creates an unverified account, mails a verification token and
// issues a token pair. A failed email does not fail the registration.
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (*RegisterResult, error) {
	in.Email = normalizeEmail(in.Email)
	in.Username = strings.TrimSpace(in.Username)
	in.FirstName = strings.TrimSpace(in.FirstName)
	in.LastName = strings.TrimSpace(in.LastName)

	fields := map[string]string{}
	if err := validate.Var(in.Email, "required,email"); err != nil {
		fields["email"] = "enter a valid email address"
	}
	if msg := checkUsername(in.Username); msg != "" {
		fields["username"] = msg
	}
	if err := auth.CheckPolicy(in.Password, in.Username, in.Email, in.FirstName, in.LastName); err != nil {
		fields["password"] = err.Error()
	}
	if in.Password != in.PasswordConfirm {
		fields["password_confirm"] = "passwords do not match"
	}
	if len(fields) > 0 {
		return nil, apperror.FieldErrors(fields)
	}

	hash, err := s.passwords.Hash(in.Password)
	if err != nil {
		return nil, fmt.Errorf("hashing password: %w", err)
	}

	user := &model.User{
		Email:        in.Email,
		Username:     in.Username,
		FirstName:    in.FirstName,
		LastName:     in.LastName,
		PasswordHash: hash,
		IsActive:     true,
	}
	sent, err := s.verification.Enroll(ctx, user)
	if err != nil {
		return nil, err
	}
	s.logger.Info("user registered", slog.String("userID", user.ID))

	pair, err := s.tokens.IssuePair(user.ID)
	if err != nil {
		return nil, fmt.Errorf("issuing tokens for %s: %w", user.ID, err)
	}

	return &RegisterResult{User: user, Tokens: pair, EmailSent: sent}, nil
}

func checkUsername(username string) string {
	switch {
	case username == "":
		return "username is required"
	case len(username) > MaxUsernameLength:
		return fmt.Sprintf("username must be %d characters or fewer", MaxUsernameLength)
	case !usernamePattern.MatchString(username):
		return "username may contain only letters, digits and @/./+/-/_"
	}
	return ""
}

// LoginResult is a successful login.
type LoginResult struct {
	User   *model.User
	Tokens auth.Pair
}

// Login checks credentials and the login gate, in that order: unknown email
// and wrong password look the same to the caller.
func (s *AuthService) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	email = normalizeEmail(email)
	if email == "" || password == "" {
		return nil, apperror.Invalid("", ErrInvalidCredentials)
	}

	user, err := s.users.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return nil, apperror.Invalid("", ErrInvalidCredentials)
		}
		return nil, fmt.Errorf("login lookup: %w", err)
	}
	if err := s.passwords.Verify(user.PasswordHash, password); err != nil {
		if errors.Is(err, auth.ErrPasswordMismatch) {
			return nil, apperror.Invalid("", ErrInvalidCredentials)
		}
		return nil, fmt.Errorf("verifying password: %w", err)
	}
	if !user.IsActive {
		return nil, apperror.Invalid("", ErrAccountDisabled)
	}
	if !user.IsEmailVerified {
		return nil, apperror.Invalid("", ErrEmailNotVerified)
	}

	pair, err := s.tokens.IssuePair(user.ID)
	if err != nil {
		return nil, fmt.Errorf("issuing tokens for %s: %w", user.ID, err)
	}

	s.logger.Info("user logged in", slog.String("userID", user.ID))
	return &LoginResult{User: user, Tokens: pair}, nil
}

// refreshClaims validates a refresh token against the signature, expiry and
// revocation list.
func (s *AuthService) refreshClaims(ctx context.Context, refresh string) (*auth.Claims, error) {
	claims, err := s.tokens.Validate(strings.TrimSpace(refresh), auth.KindRefresh)
	if err != nil {
		return nil, apperror.Invalid("refresh", ErrInvalidToken)
	}
	revoked, err := s.revocations.IsTokenRevoked(ctx, claims.ID)
	if err != nil {
		return nil, fmt.Errorf("checking revocation: %w", err)
	}
	if revoked {
		return nil, apperror.Invalid("refresh", ErrInvalidToken)
	}
	return claims, nil
}

// Refresh exchanges a live refresh token for a new access token.
func (s *AuthService) Refresh(ctx context.Context, refresh string) (string, error) {
	claims, err := s.refreshClaims(ctx, refresh)
	if err != nil {
		return "", err
	}

	user, err := s.users.GetUserByID(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return "", apperror.Invalid("refresh", ErrInvalidToken)
		}
		return "", err
	}
	if !user.IsActive {
		return "", apperror.Invalid("refresh", ErrAccountDisabled)
	}

	access, err := s.tokens.Generate(user.ID)
	if err != nil {
		return "", fmt.Errorf("issuing access token: %w", err)
	}
	return access, nil
}

// Logout revokes the refresh token. Revoking the same token twice, or a
// token belonging to someone else, is an invalid-token error.
func (s *AuthService) Logout(ctx context.Context, userID, refresh string) error {
	claims, err := s.refreshClaims(ctx, refresh)
	if err != nil {
		return err
	}
	if claims.Subject != userID {
		return apperror.Invalid("refresh", ErrInvalidToken)
	}

	err = s.revocations.RevokeToken(ctx, &model.RevokedToken{
		JTI:       claims.ID,
		UserID:    userID,
		ExpiresAt: claims.ExpiresAt.Time,
	})
	if err != nil {
		if errors.Is(err, repository.ErrAlreadyRevoked) {
			return apperror.Invalid("refresh", ErrInvalidToken)
		}
		return fmt.Errorf("revoking token: %w", err)
	}

	s.logger.Info("user logged out", slog.String("userID", userID))
	return nil
}

// PurgeRevocations drops revocation entries for tokens that have expired
// on their own. Run at startup.
func (s *AuthService) PurgeRevocations(ctx context.Context) (int64, error) {
	return s.revocations.PurgeRevokedTokens(ctx, time.Now().UTC())
}

// ChangePassword replaces the password after checking the old one.
func (s *AuthService) ChangePassword(ctx context.Context, userID, oldPassword, newPassword, confirm string) error {
	user, err := s.users.GetUserByID(ctx, userID)
	if err != nil {
		return err
	}
	if err := s.passwords.Verify(user.PasswordHash, oldPassword); err != nil {
		if errors.Is(err, auth.ErrPasswordMismatch) {
			return apperror.ValidationFailed("old_password", "old password is incorrect")
		}
		return fmt.Errorf("verifying password: %w", err)
	}
	if newPassword != confirm {
		return apperror.ValidationFailed("new_password_confirm", "passwords do not match")
	}
	if err := auth.CheckPolicy(newPassword, user.Username, user.Email, user.FirstName, user.LastName); err != nil {
		return apperror.Invalid("new_password", err)
	}

	hash, err := s.passwords.Hash(newPassword)
	if err != nil {
		return fmt.Errorf("hashing password: %w", err)
	}
	if err := s.users.SetPassword(ctx, userID, hash); err != nil {
		return err
	}

	s.logger.Info("password changed", slog.String("userID", userID))
	return nil
}

// Me returns the caller's account.
func (s *AuthService) Me(ctx context.Context, userID string) (*model.User, error) {
	return s.users.GetUserByID(ctx, userID)
}

// AccountUpdate holds the account fields a user may edit. Nil means unchanged.
type AccountUpdate struct {
	Username  *string
	FirstName *string
	LastName  *string
}

func (s *AuthService) UpdateMe(ctx context.Context, userID string, in AccountUpdate) (*model.User, error) {
	user, err := s.users.GetUserByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	if in.Username != nil {
		username := strings.TrimSpace(*in.Username)
		if msg := checkUsername(username); msg != "" {
			return nil, apperror.ValidationFailed("username", msg)
		}
		user.Username = username
	}
	if in.FirstName != nil {
		user.FirstName = strings.TrimSpace(*in.FirstName)
	}
	if in.LastName != nil {
		user.LastName = strings.TrimSpace(*in.LastName)
	}

	if err := s.users.UpdateUser(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}
