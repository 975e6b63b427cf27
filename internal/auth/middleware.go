package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"
)

// contextKey is an unexported type used for context keys in this package,
// so no other package can read or shadow the user id.
type contextKey string

const userIDKey contextKey = "userID"

var (
	errNoBearer    = errors.New("missing bearer token")
	errEmptyBearer = errors.New("bearer token is empty")
)

// RequireAuth is a middleware that enforces authentication on protected routes.
//
// It reads the access JWT from the "Authorization: Bearer <token>" header,
// validates it, and stores the userID in the request context. If the token is
// missing, expired or invalid, it returns 401 Unauthorized and stops the chain.
func RequireAuth(tokens *TokenService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID, err := extractUserID(r, tokens)
			if err != nil {
				writeUnauthorized(w, err)
				return
			}

			ctx := WithUserID(r.Context(), userID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// OptionalAuth lets requests without a bearer token through anonymously and
// attaches the user identity when a valid one is present. A bearer token that
// fails validation gets 401, as with RequireAuth. Handlers call
// UserIDFromContext to tell the two apart.
func OptionalAuth(tokens *TokenService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID, err := extractUserID(r, tokens)
			switch {
			case errors.Is(err, errNoBearer):
			case err != nil:
				writeUnauthorized(w, err)
				return
			default:
				r = r.WithContext(WithUserID(r.Context(), userID))
			}
			next.ServeHTTP(w, r)
		})
	}
}

// WithUserID returns a copy of ctx carrying userID.
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDKey, userID)
}

// UserIDFromContext retrieves the authenticated user's ID from the request context.
// Returns ("", false) if the request is anonymous.
func UserIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(userIDKey).(string)
	return id, ok && id != ""
}

// extractUserID reads the bearer header and validates it as an access token.
// It returns errNoBearer when the header is absent or uses another scheme.
func extractUserID(r *http.Request, tokens *TokenService) (string, error) {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	scheme, value, _ := strings.Cut(header, " ")
	if !strings.EqualFold(scheme, "Bearer") {
		return "", errNoBearer
	}
	value = strings.TrimSpace(value)
	if value == "" {
		return "", errEmptyBearer
	}

	claims, err := tokens.Validate(value, KindAccess)
	if err != nil {
		return "", err
	}
	return claims.Subject, nil
}

func writeUnauthorized(w http.ResponseWriter, err error) {
	msg := "valid authentication required"
	if errors.Is(err, ErrTokenExpired) {
		msg = "access token expired"
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("WWW-Authenticate", `Bearer realm="news-api"`)
	w.WriteHeader(http.StatusUnauthorized)
	_, _ = w.Write([]byte(`{"error":"unauthorized","message":"` + msg + `"}`))
}
