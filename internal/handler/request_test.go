package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/news-api/internal/apperror"
	"github.com/sakif/news-api/internal/auth"
)

var quietLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

func TestWriteError_StatusMapping(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		wantCode  int
		wantError string
		wantField string
	}{
		{"validation", apperror.ValidationFailed("token", "bad token"), http.StatusBadRequest, "validation_error", "token"},
		{"conflict", apperror.ConflictField("email", "taken"), http.StatusBadRequest, "conflict", "email"},
		{"unauthorized", apperror.Unauthorized(errors.New("expired")), http.StatusUnauthorized, "unauthorized", ""},
		{"forbidden", apperror.Forbidden("not yours"), http.StatusForbidden, "forbidden", ""},
		{"not found", apperror.NotFound("article", "x"), http.StatusNotFound, "not_found", ""},
		{"wrapped not found", fmt.Errorf("loading: %w", apperror.NotFound("article", "x")), http.StatusNotFound, "not_found", ""},
		{"plain error", errors.New("disk on fire"), http.StatusInternalServerError, "internal_error", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodGet, "/api/news", nil)

			writeError(rr, req, quietLogger, tt.err)

			assert.Equal(t, tt.wantCode, rr.Code)
			assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))

			var body ErrorResponse
			require.NoError(t, json.NewDecoder(rr.Body).Decode(&body))
			assert.Equal(t, tt.wantError, body.Error)
			assert.Equal(t, tt.wantField, body.Field)
			assert.NotEmpty(t, body.Message)
		})
	}
}

func TestWriteError_HidesInternalDetails(t *testing.T) {
	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)

	writeError(rr, req, quietLogger, errors.New("sqlite: no such table: news"))

	assert.NotContains(t, rr.Body.String(), "sqlite")
}

func TestDecodeJSON(t *testing.T) {
	decode := func(body string) error {
		rr := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
		var dst registerRequest
		return decodeJSON(rr, req, &dst)
	}

	t.Run("valid body", func(t *testing.T) {
		err := decode(`{"email":"a@example.com","username":"a","password":"p","password_confirm":"p"}`)
		assert.NoError(t, err)
	})

	t.Run("empty body", func(t *testing.T) {
		err := decode(``)
		assert.ErrorIs(t, err, apperror.ErrValidation)
	})

	t.Run("malformed body", func(t *testing.T) {
		err := decode(`{"email":`)
		assert.ErrorIs(t, err, apperror.ErrValidation)
	})

	t.Run("wrong type names the field", func(t *testing.T) {
		err := decode(`{"email": 5}`)
		var appErr *apperror.AppError
		require.ErrorAs(t, err, &appErr)
		assert.Equal(t, "email", appErr.Field)
	})

	t.Run("missing fields use json names", func(t *testing.T) {
		err := decode(`{"email":"a@example.com","username":"a","password":"p"}`)
		var appErr *apperror.AppError
		require.ErrorAs(t, err, &appErr)
		assert.Equal(t, map[string]string{"password_confirm": "this field is required"}, appErr.Fields)
	})

	t.Run("oversized body", func(t *testing.T) {
		err := decode(`{"email":"` + strings.Repeat("a", maxBodyBytes) + `"}`)
		var appErr *apperror.AppError
		require.ErrorAs(t, err, &appErr)
		assert.Contains(t, appErr.Message, "must not exceed")
	})
}

func TestDecodeJSON_ValidationTags(t *testing.T) {
	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":"Tech","color_code":"red"}`))

	var dst createCategoryRequest
	err := decodeJSON(rr, req, &dst)

	var appErr *apperror.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Contains(t, appErr.Fields, "color_code")
}

func TestPageRequest(t *testing.T) {
	tests := []struct {
		query     string
		wantPage  int
		wantSize  int
		wantField string
	}{
		{"", 0, 0, ""},
		{"?page=3&page_size=50", 3, 50, ""},
		{"?page=0", 0, 0, "page"},
		{"?page=abc", 0, 0, "page"},
		{"?page_size=-1", 0, 0, "page_size"},
	}

	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/news"+tt.query, nil)
			got, err := pageRequest(req)
			if tt.wantField != "" {
				var appErr *apperror.AppError
				require.ErrorAs(t, err, &appErr)
				assert.Equal(t, tt.wantField, appErr.Field)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantPage, got.Page)
			assert.Equal(t, tt.wantSize, got.PageSize)
		})
	}
}

func TestCurrentUser(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)

	_, err := currentUser(req)
	assert.ErrorIs(t, err, apperror.ErrUnauthorized)
	assert.Empty(t, viewerID(req))

	req = req.WithContext(auth.WithUserID(req.Context(), "user-1"))
	id, err := currentUser(req)
	require.NoError(t, err)
	assert.Equal(t, "user-1", id)
	assert.Equal(t, "user-1", viewerID(req))
}
