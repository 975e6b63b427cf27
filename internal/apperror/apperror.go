// Package apperror defines the error taxonomy shared by the service and
// handler layers. Services return *AppError values; handlers map the kind to
// an HTTP status without knowing anything about the business rule behind it.
package apperror

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound     = errors.New("not found")
	ErrValidation   = errors.New("Validation Error")
	ErrConflict     = errors.New("conflict")
	ErrForbidden    = errors.New("forbidden")
	ErrUnauthorized = errors.New("unauthorized")
)

type AppError struct {
	Err     error             // kind: one of the sentinels above
	Cause   error             // Optional: domain reason, e.g. service.ErrTokenExpired
	Message string            // Human-readable error message
	Field   string            // Optional: field causing the error
	Fields  map[string]string // Optional: per-field messages for multi-field validation
}

func (e *AppError) Error() string {
	return e.Message
}

// Unwrap exposes both the kind and the cause, so errors.Is matches either.
func (e *AppError) Unwrap() []error {
	if e.Cause == nil {
		return []error{e.Err}
	}
	return []error{e.Err, e.Cause}
}

func NotFound(resource, id string) *AppError {
	return &AppError{
		Err:     ErrNotFound,
		Message: fmt.Sprintf("%s not found with id %s", resource, id),
	}
}

func ValidationFailed(field, message string) *AppError {
	return &AppError{
		Err:     ErrValidation,
		Message: message,
		Field:   field,
	}
}

// Invalid is a validation failure carrying a domain cause. The cause's text
// becomes the message.
func Invalid(field string, cause error) *AppError {
	return &AppError{
		Err:     ErrValidation,
		Cause:   cause,
		Message: cause.Error(),
		Field:   field,
	}
}

// FieldErrors reports several invalid fields at once.
func FieldErrors(fields map[string]string) *AppError {
	return &AppError{
		Err:     ErrValidation,
		Message: "request validation failed",
		Fields:  fields,
	}
}

func Conflict(resource, id string) *AppError {
	return &AppError{
		Err:     ErrConflict,
		Message: fmt.Sprintf("%s conflict with id %s", resource, id),
	}
}

// ConflictField reports a uniqueness violation on a specific field
// (duplicate email, duplicate username).
func ConflictField(field, message string) *AppError {
	return &AppError{
		Err:     ErrConflict,
		Message: message,
		Field:   field,
	}
}

// Forbidden returns an AppError indicating the caller lacks permission.
// HTTP handlers map this to 403 Forbidden.
func Forbidden(message string) *AppError {
	return &AppError{
		Err:     ErrForbidden,
		Message: message,
	}
}

// Unauthorized means the credential presented is missing, invalid or revoked.
func Unauthorized(cause error) *AppError {
	return &AppError{
		Err:     ErrUnauthorized,
		Cause:   cause,
		Message: cause.Error(),
	}
}
