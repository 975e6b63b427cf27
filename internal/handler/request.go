package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/sakif/news-api/internal/apperror"
	"github.com/sakif/news-api/internal/auth"
	"github.com/sakif/news-api/internal/service"
)

// maxBodyBytes caps JSON request bodies.
const maxBodyBytes = 1 << 20

// validate checks request structs. Field errors are reported under the json
// name, so a missing `password_confirm` is reported as "password_confirm",
// not "PasswordConfirm".
var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// decodeJSON reads a JSON body into dst and runs its `validate` tags.
//
// DECODING RULES:
//   - body over maxBodyBytes → validation error
//   - empty or malformed body → validation error naming the problem
//   - unknown fields are ignored, like most JSON APIs
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		var maxErr *http.MaxBytesError
		var typeErr *json.UnmarshalTypeError
		switch {
		case errors.Is(err, io.EOF):
			return apperror.ValidationFailed("", "request body must not be empty")
		case errors.As(err, &maxErr):
			return apperror.ValidationFailed("", fmt.Sprintf("request body must not exceed %d bytes", maxErr.Limit))
		case errors.As(err, &typeErr):
			return apperror.ValidationFailed(typeErr.Field, fmt.Sprintf("%s has the wrong type", typeErr.Field))
		default:
			return apperror.ValidationFailed("", "request body is not valid JSON")
		}
	}

	return validateStruct(dst)
}

// validateStruct turns validator errors into one FieldErrors value.
func validateStruct(v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}

	fields := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		fields[fe.Field()] = fieldMessage(fe)
	}
	return apperror.FieldErrors(fields)
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "this field is required"
	case "email":
		return "enter a valid email address"
	case "max":
		return fmt.Sprintf("must be at most %s characters", fe.Param())
	case "min":
		return fmt.Sprintf("must be at least %s characters", fe.Param())
	case "oneof":
		return fmt.Sprintf("must be one of: %s", fe.Param())
	case "hexcolor":
		return "must be a color like #RRGGBB"
	}
	return fmt.Sprintf("failed the %q check", fe.Tag())
}

// pageRequest reads ?page= and ?page_size=. Missing values pick the
// defaults; malformed ones are validation errors.
func pageRequest(r *http.Request) (service.PageRequest, error) {
	var req service.PageRequest
	q := r.URL.Query()

	if v := q.Get("page"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return req, apperror.ValidationFailed("page", "page must be a positive integer")
		}
		req.Page = n
	}
	if v := q.Get("page_size"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return req, apperror.ValidationFailed("page_size", "page_size must be a positive integer")
		}
		req.PageSize = n
	}
	return req, nil
}

// viewerID is the authenticated caller, or "" for anonymous requests.
func viewerID(r *http.Request) string {
	id, _ := auth.UserIDFromContext(r.Context())
	return id
}

// currentUser returns the caller on routes behind auth.RequireAuth.
func currentUser(r *http.Request) (string, error) {
	id, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		return "", apperror.Unauthorized(errors.New("authentication required"))
	}
	return id, nil
}
