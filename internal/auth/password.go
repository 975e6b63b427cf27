// Package auth: password hashing and password policy.
//
// bcrypt embeds the salt and cost in its output, so the full hash string is
// stored as-is in users.password_hash:
//
//	$2a$12$<22-char salt><31-char hash>
package auth

import (
	"errors"
	"fmt"
	"strings"
	"unicode"

	"golang.org/x/crypto/bcrypt"
)

// defaultCost is the bcrypt work factor (~250ms per hash on a modern server).
const defaultCost = 12

const (
	MinPasswordLength = 8
	MaxPasswordBytes  = 72 // bcrypt silently truncates longer input
)

// Password policy failures. Services surface these as validation errors on
// the password field.
var (
	ErrPasswordTooShort   = fmt.Errorf("password must be at least %d characters", MinPasswordLength)
	ErrPasswordTooLong    = fmt.Errorf("password must be %d bytes or fewer", MaxPasswordBytes)
	ErrPasswordNumeric    = errors.New("password cannot be entirely numeric")
	ErrPasswordTooSimilar = errors.New("password is too similar to the username or email")
	ErrPasswordMismatch   = errors.New("invalid password")
)

// PasswordService provides bcrypt hashing and verification. The cost is a
// field so tests can run at bcrypt.MinCost.
type PasswordService struct {
	cost int
}

// NewPasswordService creates a PasswordService with the default cost (12).
func NewPasswordService() *PasswordService {
	return &PasswordService{cost: defaultCost}
}

// newPasswordServiceWithCost is used by the tests in this package.
func newPasswordServiceWithCost(cost int) *PasswordService {
	return &PasswordService{cost: cost}
}

// NewPasswordServiceForTest creates a PasswordService with a low bcrypt cost
// for tests in other packages. Do NOT use in production.
func NewPasswordServiceForTest(cost int) *PasswordService {
	return &PasswordService{cost: cost}
}

// Hash hashes the given plaintext password with bcrypt.
func (p *PasswordService) Hash(plaintext string) (string, error) {
	if len(plaintext) > MaxPasswordBytes {
		return "", fmt.Errorf("auth: %w", ErrPasswordTooLong)
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(plaintext), p.cost)
	if err != nil {
		return "", fmt.Errorf("auth: hashing password: %w", err)
	}

	return string(hashed), nil
}

// Verify checks whether a plaintext password matches a stored bcrypt hash.
// A mismatch wraps ErrPasswordMismatch. The comparison is constant-time.
func (p *PasswordService) Verify(hash, plaintext string) error {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(plaintext))
	if err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return fmt.Errorf("auth: %w", ErrPasswordMismatch)
		}
		return fmt.Errorf("auth: comparing password hash: %w", err)
	}
	return nil
}

// CheckPolicy enforces the password rules for new passwords. attrs are user
// attributes (username, email) the password must not resemble.
func CheckPolicy(password string, attrs ...string) error {
	if len([]rune(password)) < MinPasswordLength {
		return ErrPasswordTooShort
	}
	if len(password) > MaxPasswordBytes {
		return ErrPasswordTooLong
	}
	if strings.IndexFunc(password, func(r rune) bool { return !unicode.IsDigit(r) }) < 0 {
		return ErrPasswordNumeric
	}

	lower := strings.ToLower(password)
	for _, a := range attrs {
		a = strings.ToLower(strings.TrimSpace(a))
		if local, _, ok := strings.Cut(a, "@"); ok {
			a = local
		}
		if len(a) >= 3 && (lower == a || strings.Contains(lower, a)) {
			return ErrPasswordTooSimilar
		}
	}
	return nil
}
