package sqlite

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/sakif/news-api/internal/apperror"
	"github.com/sakif/news-api/internal/model"
	"github.com/sakif/news-api/internal/repository"
)

// newTestDB returns a fresh in-memory database. Each call is isolated: the
// ":memory:" database lives and dies with its single connection.
func newTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := New(":memory:")
	if err != nil {
		t.Fatalf("failed to create test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func createTestUser(t *testing.T, db *DB, username string) *model.User {
	t.Helper()
	user := &model.User{
		Email:        username + "@example.com",
		Username:     username,
		PasswordHash: "not-a-real-hash",
		IsActive:     true,
	}
	if err := db.CreateUser(context.Background(), user, nil); err != nil {
		t.Fatalf("failed to create test user: %v", err)
	}
	return user
}

// =========================================================================
// USERS
// =========================================================================

func TestCreateUser_RoundTrip(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	user := createTestUser(t, db, "alice")
	if user.ID == "" || user.CreatedAt.IsZero() {
		t.Fatalf("CreateUser() did not fill ID/CreatedAt: %+v", user)
	}

	got, err := db.GetUserByEmail(ctx, "alice@example.com")
	if err != nil {
		t.Fatalf("GetUserByEmail() error = %v", err)
	}
	if got.ID != user.ID || got.Username != "alice" || !got.IsActive || got.IsEmailVerified {
		t.Errorf("GetUserByEmail() = %+v", got)
	}
}

func TestCreateUser_DuplicateEmail(t *testing.T) {
	db := newTestDB(t)
	createTestUser(t, db, "alice")

	dup := &model.User{Email: "alice@example.com", Username: "other", PasswordHash: "x"}
	err := db.CreateUser(context.Background(), dup, nil)

	if !errors.Is(err, apperror.ErrConflict) {
		t.Fatalf("CreateUser() error = %v, want conflict", err)
	}
	var appErr *apperror.AppError
	if errors.As(err, &appErr) && appErr.Field != "email" {
		t.Errorf("Field = %q, want email", appErr.Field)
	}
}

func TestCreateUser_DuplicateUsername(t *testing.T) {
	db := newTestDB(t)
	createTestUser(t, db, "alice")

	dup := &model.User{Email: "new@example.com", Username: "alice", PasswordHash: "x"}
	err := db.CreateUser(context.Background(), dup, nil)

	var appErr *apperror.AppError
	if !errors.As(err, &appErr) || appErr.Field != "username" {
		t.Fatalf("CreateUser() error = %v, want username conflict", err)
	}
}

func TestGetUserByID_NotFound(t *testing.T) {
	db := newTestDB(t)

	_, err := db.GetUserByID(context.Background(), "missing")
	if !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("GetUserByID() error = %v, want ErrNotFound", err)
	}
}

func TestSetPassword(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	user := createTestUser(t, db, "alice")

	if err := db.SetPassword(ctx, user.ID, "new-hash"); err != nil {
		t.Fatalf("SetPassword() error = %v", err)
	}
	got, _ := db.GetUserByID(ctx, user.ID)
	if got.PasswordHash != "new-hash" {
		t.Errorf("PasswordHash = %q", got.PasswordHash)
	}

	// Updating names must not touch the hash.
	got.FirstName = "Alice"
	if err := db.UpdateUser(ctx, got); err != nil {
		t.Fatalf("UpdateUser() error = %v", err)
	}
	again, _ := db.GetUserByID(ctx, user.ID)
	if again.PasswordHash != "new-hash" || again.FirstName != "Alice" {
		t.Errorf("after UpdateUser: %+v", again)
	}
}

// =========================================================================
// VERIFICATION TOKENS
// =========================================================================

func createTestToken(t *testing.T, db *DB, userID string) *model.VerificationToken {
	t.Helper()
	now := time.Now().UTC()
	tok := &model.VerificationToken{
		Token:     uuid.NewString(),
		UserID:    userID,
		CreatedAt: now,
		ExpiresAt: now.Add(model.VerificationTTL),
	}
	if err := db.CreateVerificationToken(context.Background(), tok); err != nil {
		t.Fatalf("failed to create token: %v", err)
	}
	return tok
}

func TestConsumeVerificationToken_OnlyOnce(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	user := createTestUser(t, db, "alice")
	tok := createTestToken(t, db, user.ID)

	if err := db.ConsumeVerificationToken(ctx, tok.ID, user.ID); err != nil {
		t.Fatalf("first consume error = %v", err)
	}

	err := db.ConsumeVerificationToken(ctx, tok.ID, user.ID)
	if !errors.Is(err, repository.ErrAlreadyConsumed) {
		t.Fatalf("second consume error = %v, want ErrAlreadyConsumed", err)
	}

	got, err := db.GetVerificationToken(ctx, tok.Token)
	if err != nil {
		t.Fatalf("GetVerificationToken() error = %v", err)
	}
	if !got.IsUsed {
		t.Error("token should be marked used")
	}
	u, _ := db.GetUserByID(ctx, user.ID)
	if !u.IsEmailVerified {
		t.Error("user should be verified")
	}
}

func TestVerificationTokens_ManyPerUser(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	user := createTestUser(t, db, "alice")

	first := createTestToken(t, db, user.ID)
	createTestToken(t, db, user.ID)

	tokens, err := db.ListVerificationTokens(ctx, user.ID)
	if err != nil {
		t.Fatalf("ListVerificationTokens() error = %v", err)
	}
	if len(tokens) != 2 {
		t.Fatalf("got %d tokens, want 2", len(tokens))
	}

	// The first token is still retrievable and unused.
	got, err := db.GetVerificationToken(ctx, first.Token)
	if err != nil || got.IsUsed {
		t.Errorf("first token = %+v, err = %v", got, err)
	}
}

func TestCreateUser_WithToken(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	now := time.Now().UTC()

	user := &model.User{Email: "alice@example.com", Username: "alice", PasswordHash: "x", IsActive: true}
	tok := &model.VerificationToken{Token: uuid.NewString(), CreatedAt: now, ExpiresAt: now.Add(model.VerificationTTL)}
	if err := db.CreateUser(ctx, user, tok); err != nil {
		t.Fatalf("CreateUser() error = %v", err)
	}
	if tok.UserID != user.ID || tok.ID == "" {
		t.Fatalf("token not bound to user: %+v", tok)
	}

	tokens, err := db.ListVerificationTokens(ctx, user.ID)
	if err != nil {
		t.Fatalf("ListVerificationTokens() error = %v", err)
	}
	if len(tokens) != 1 || tokens[0].Token != tok.Token {
		t.Errorf("tokens = %+v, want exactly the issued one", tokens)
	}
}

func TestCreateUser_TokenFailureRollsBackUser(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	other := createTestUser(t, db, "other")
	taken := createTestToken(t, db, other.ID)

	now := time.Now().UTC()
	user := &model.User{Email: "alice@example.com", Username: "alice", PasswordHash: "x", IsActive: true}
	tok := &model.VerificationToken{Token: taken.Token, CreatedAt: now, ExpiresAt: now.Add(model.VerificationTTL)}
	if err := db.CreateUser(ctx, user, tok); err == nil {
		t.Fatal("CreateUser() with a duplicate token value succeeded")
	}

	if _, err := db.GetUserByEmail(ctx, "alice@example.com"); !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("GetUserByEmail() error = %v, want ErrNotFound after rollback", err)
	}

	// The address is free for a retried registration.
	retry := &model.User{Email: "alice@example.com", Username: "alice", PasswordHash: "x", IsActive: true}
	if err := db.CreateUser(ctx, retry, nil); err != nil {
		t.Errorf("retried CreateUser() error = %v", err)
	}
}

func TestGetVerificationToken_NotFound(t *testing.T) {
	db := newTestDB(t)

	_, err := db.GetVerificationToken(context.Background(), uuid.NewString())
	if !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("error = %v, want ErrNotFound", err)
	}
}

// =========================================================================
// REVOCATION LIST
// =========================================================================

func TestRevokeToken(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	now := time.Now().UTC()

	rt := &model.RevokedToken{JTI: "jti-1", UserID: "u1", ExpiresAt: now.Add(time.Hour)}
	if err := db.RevokeToken(ctx, rt); err != nil {
		t.Fatalf("RevokeToken() error = %v", err)
	}

	revoked, err := db.IsTokenRevoked(ctx, "jti-1")
	if err != nil || !revoked {
		t.Fatalf("IsTokenRevoked() = %v, %v", revoked, err)
	}

	err = db.RevokeToken(ctx, &model.RevokedToken{JTI: "jti-1", UserID: "u1", ExpiresAt: now})
	if !errors.Is(err, repository.ErrAlreadyRevoked) {
		t.Errorf("second RevokeToken() error = %v, want ErrAlreadyRevoked", err)
	}
}

func TestPurgeRevokedTokens(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	now := time.Now().UTC()

	db.RevokeToken(ctx, &model.RevokedToken{JTI: "old", UserID: "u", ExpiresAt: now.Add(-time.Hour)})
	db.RevokeToken(ctx, &model.RevokedToken{JTI: "fresh", UserID: "u", ExpiresAt: now.Add(time.Hour)})

	n, err := db.PurgeRevokedTokens(ctx, now)
	if err != nil {
		t.Fatalf("PurgeRevokedTokens() error = %v", err)
	}
	if n != 1 {
		t.Errorf("purged %d, want 1", n)
	}
	if revoked, _ := db.IsTokenRevoked(ctx, "fresh"); !revoked {
		t.Error("unexpired entry must survive the purge")
	}
}

// =========================================================================
// PROFILES
// =========================================================================

func TestGetOrCreateProfile(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	user := createTestUser(t, db, "alice")

	p, err := db.GetOrCreateProfile(ctx, user.ID)
	if err != nil {
		t.Fatalf("GetOrCreateProfile() error = %v", err)
	}
	if p.Email != user.Email || p.Username != "alice" || p.DateOfBirth != nil {
		t.Errorf("profile = %+v", p)
	}

	dob := time.Date(1990, 4, 2, 0, 0, 0, 0, time.UTC)
	p.Bio = "hello"
	p.DateOfBirth = &dob
	if err := db.UpdateProfile(ctx, p); err != nil {
		t.Fatalf("UpdateProfile() error = %v", err)
	}

	again, err := db.GetOrCreateProfile(ctx, user.ID)
	if err != nil {
		t.Fatalf("second GetOrCreateProfile() error = %v", err)
	}
	if again.Bio != "hello" || again.DateOfBirth == nil || !again.DateOfBirth.Equal(dob) {
		t.Errorf("profile after update = %+v", again)
	}
}

func TestGetOrCreateProfile_UnknownUser(t *testing.T) {
	db := newTestDB(t)

	_, err := db.GetOrCreateProfile(context.Background(), "ghost")
	if !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("error = %v, want ErrNotFound", err)
	}
}

func TestDSN(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{":memory:", ":memory:?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"},
		{"data/news.db", "data/news.db?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_txlock=immediate"},
	}
	for _, tt := range tests {
		if got := dsn(tt.path); got != tt.want {
			t.Errorf("dsn(%q) = %q, want %q", tt.path, got, tt.want)
		}
	}
}
