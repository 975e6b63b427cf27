// Package auth provides JWT credential issuing and validation, password
// hashing, and the HTTP middleware that turns a bearer token into a user id.
//
// CREDENTIAL PAIR:
// Login hands out two signed JWTs:
//   - access  (short-lived, default 15m) sent as "Authorization: Bearer <jwt>"
//   - refresh (long-lived, default 7d) exchanged for new access tokens
//
// Both carry the user id in "sub", a unique "jti" and a "token_type" claim.
// The token_type claim stops a refresh token from being used as an access
// token and vice versa. Refresh tokens can be revoked (logout) by recording
// their jti; access tokens simply expire.
//
// JWT STRUCTURE (three base64-encoded parts separated by dots):
//
//	HEADER.PAYLOAD.SIGNATURE
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/xid"
)

const issuer = "news-api"

// TokenKind distinguishes access credentials from refresh credentials.
type TokenKind string

const (
	KindAccess  TokenKind = "access"
	KindRefresh TokenKind = "refresh"
)

var (
	ErrTokenExpired = errors.New("token expired")
	ErrInvalidToken = errors.New("invalid token")
)

// TokenService handles JWT creation and validation.
type TokenService struct {
	secret     []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
}

// NewTokenService creates a TokenService with the given secret and lifetimes.
// The secret should be at least 32 bytes of random data in production.
// Example: JWT_SECRET=$(openssl rand -hex 32)
func NewTokenService(secret string, accessTTL, refreshTTL time.Duration) (*TokenService, error) {
	if len(secret) < 16 {
		return nil, errors.New("auth: JWT secret must be at least 16 characters")
	}
	if accessTTL <= 0 || refreshTTL <= 0 {
		return nil, errors.New("auth: token lifetimes must be positive")
	}
	return &TokenService{secret: []byte(secret), accessTTL: accessTTL, refreshTTL: refreshTTL}, nil
}

// Claims is the JWT payload.
type Claims struct {
	jwt.RegisteredClaims
	Kind TokenKind `json:"token_type"`
}

// Pair is an issued access/refresh credential pair.
type Pair struct {
	Access  string `json:"access"`
	Refresh string `json:"refresh"`
}

// IssuePair signs a fresh access token and refresh token for userID.
func (s *TokenService) IssuePair(userID string) (Pair, error) {
	access, err := s.GenerateWithDuration(userID, KindAccess, s.accessTTL)
	if err != nil {
		return Pair{}, err
	}
	refresh, err := s.GenerateWithDuration(userID, KindRefresh, s.refreshTTL)
	if err != nil {
		return Pair{}, err
	}
	return Pair{Access: access, Refresh: refresh}, nil
}

// Generate creates an access token with the configured lifetime.
func (s *TokenService) Generate(userID string) (string, error) {
	return s.GenerateWithDuration(userID, KindAccess, s.accessTTL)
}

// GenerateWithDuration creates a token of the given kind with a custom expiry.
// Used in tests (negative durations produce already-expired tokens).
func (s *TokenService) GenerateWithDuration(userID string, kind TokenKind, d time.Duration) (string, error) {
	now := time.Now()

	c := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        xid.New().String(),
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(d)),
			Issuer:    issuer,
		},
		Kind: kind,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, c)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("auth: signing token: %w", err)
	}

	return signed, nil
}

// Validate parses and verifies a JWT string of the expected kind.
//
// VALIDATION CHECKS (performed by the jwt library):
//   - Signature is valid (wasn't tampered with)
//   - Token is not expired
//   - Issuer matches
//   - Algorithm is HS256 (prevents algorithm confusion attacks)
//
// Errors wrap ErrTokenExpired or ErrInvalidToken.
func (s *TokenService) Validate(tokenStr string, kind TokenKind) (*Claims, error) {
	token, err := jwt.ParseWithClaims(
		tokenStr,
		&Claims{},
		func(token *jwt.Token) (any, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("auth: unexpected signing method: %v", token.Header["alg"])
			}
			return s.secret, nil
		},
		jwt.WithValidMethods([]string{"HS256"}),
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, fmt.Errorf("auth: %w", ErrTokenExpired)
		}
		return nil, fmt.Errorf("auth: %w: %v", ErrInvalidToken, err)
	}

	c, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("auth: %w: bad claims", ErrInvalidToken)
	}
	if c.Subject == "" || c.ID == "" {
		return nil, fmt.Errorf("auth: %w: missing subject or id", ErrInvalidToken)
	}
	if c.Kind != kind {
		return nil, fmt.Errorf("auth: %w: expected %s token, got %q", ErrInvalidToken, kind, c.Kind)
	}

	return c, nil
}
