package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/sakif/news-api/internal/apperror"
)

func TestConsume_VerifiesUserOnce(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	res, err := env.auth.Register(ctx, registerInput("alice"))
	if err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	tok := env.latestToken(t, res.User.ID)

	user, err := env.verification.Consume(ctx, tok.Token)
	if err != nil {
		t.Fatalf("Consume() error = %v", err)
	}
	if !user.IsEmailVerified {
		t.Error("user not verified after Consume")
	}
	if !env.latestToken(t, res.User.ID).IsUsed {
		t.Error("token not marked used after Consume")
	}

	_, err = env.verification.Consume(ctx, tok.Token)
	assertField(t, err, "token")
	if !errors.Is(err, ErrTokenUsed) {
		t.Fatalf("second Consume() error = %v, want ErrTokenUsed", err)
	}

	again, err := env.db.GetUserByID(ctx, res.User.ID)
	if err != nil {
		t.Fatalf("GetUserByID: %v", err)
	}
	if !again.IsEmailVerified {
		t.Error("repeat Consume un-verified the user")
	}
}

func TestConsume_Expired(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	res, err := env.auth.Register(ctx, registerInput("alice"))
	if err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	tok := env.latestToken(t, res.User.ID)

	env.verification.now = func() time.Time { return tok.ExpiresAt.Add(time.Second) }

	_, err = env.verification.Consume(ctx, tok.Token)
	assertKind(t, err, apperror.ErrValidation)
	if !errors.Is(err, ErrTokenExpired) {
		t.Fatalf("Consume() error = %v, want ErrTokenExpired", err)
	}

	user, err := env.db.GetUserByID(ctx, res.User.ID)
	if err != nil {
		t.Fatalf("GetUserByID: %v", err)
	}
	if user.IsEmailVerified {
		t.Error("expired token verified the user")
	}
}

func TestConsume_UnknownToken(t *testing.T) {
	env := newTestEnv(t)

	for _, value := range []string{"", "not-a-uuid", uuid.NewString()} {
		_, err := env.verification.Consume(context.Background(), value)
		assertField(t, err, "token")
		if !errors.Is(err, ErrTokenNotFound) {
			t.Errorf("Consume(%q) error = %v, want ErrTokenNotFound", value, err)
		}
	}
}

func TestConsume_ConcurrentSubmitsVerifyOnce(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	res, err := env.auth.Register(ctx, registerInput("alice"))
	if err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	tok := env.latestToken(t, res.User.ID).Token

	const n = 8
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
	)
	for range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := env.verification.Consume(ctx, tok)
			if err == nil {
				mu.Lock()
				successes++
				mu.Unlock()
				return
			}
			if !errors.Is(err, ErrTokenUsed) {
				t.Errorf("Consume() error = %v, want nil or ErrTokenUsed", err)
			}
		}()
	}
	wg.Wait()

	if successes != 1 {
		t.Errorf("%d submits succeeded, want exactly 1", successes)
	}
}

func TestResend(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	res, err := env.auth.Register(ctx, registerInput("alice"))
	if err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	first := env.latestToken(t, res.User.ID)

	sent, err := env.verification.Resend(ctx, " ALICE@example.com")
	if err != nil {
		t.Fatalf("Resend() error = %v", err)
	}
	if !sent {
		t.Error("Resend() sent = false, want true")
	}
	if env.mailer.count() != 2 {
		t.Errorf("mailer sent %d messages, want 2", env.mailer.count())
	}

	tokens, err := env.db.ListVerificationTokens(ctx, res.User.ID)
	if err != nil {
		t.Fatalf("ListVerificationTokens: %v", err)
	}
	if len(tokens) != 2 {
		t.Fatalf("got %d tokens, want 2", len(tokens))
	}

	// The older token still works.
	if _, err := env.verification.Consume(ctx, first.Token); err != nil {
		t.Fatalf("Consume(first) error = %v", err)
	}

	_, err = env.verification.Resend(ctx, "alice@example.com")
	if !errors.Is(err, ErrAlreadyVerified) {
		t.Errorf("Resend() for verified user error = %v, want ErrAlreadyVerified", err)
	}

	_, err = env.verification.Resend(ctx, "nobody@example.com")
	assertKind(t, err, apperror.ErrNotFound)
	assertField(t, err, "email")
}

func TestResend_MailFailureReported(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	if _, err := env.auth.Register(ctx, registerInput("alice")); err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	env.mailer.err = errors.New("smtp: 421 service unavailable")
	sent, err := env.verification.Resend(ctx, "alice@example.com")
	if err != nil {
		t.Fatalf("Resend() error = %v", err)
	}
	if sent {
		t.Error("Resend() sent = true with a failing mailer")
	}
}

func TestIssue_EmailCarriesToken(t *testing.T) {
	env := newTestEnv(t)
	res, err := env.auth.Register(context.Background(), registerInput("alice"))
	if err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	tok := env.latestToken(t, res.User.ID)

	msg := env.mailer.sent[0]
	if msg.To != "alice@example.com" {
		t.Errorf("To = %q, want alice@example.com", msg.To)
	}
	if !strings.Contains(msg.Text, tok.Token) {
		t.Error("plain-text body does not contain the token")
	}
	if !strings.Contains(msg.Text, "http://localhost:8080/api/auth/verify-email") {
		t.Error("plain-text body does not contain the verification URL")
	}
}
