// Package service holds the business rules of the news API.
//
// LAYERING:
//
//	handler (HTTP) → service (rules, ownership) → repository (SQL)
//
// Services never see an *http.Request. They return *apperror.AppError values
// for anything the caller did wrong; the handler layer turns the error kind
// into a status code. Anything else is an internal failure.
package service

import (
	"errors"

	"github.com/sakif/news-api/internal/repository"
)

// Domain reasons carried as the Cause of validation errors, so callers can
// match them with errors.Is.
var (
	ErrTokenNotFound   = errors.New("invalid verification token")
	ErrTokenExpired    = errors.New("verification token has expired")
	ErrTokenUsed       = errors.New("verification token has already been used")
	ErrAlreadyVerified = errors.New("email is already verified")

	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrAccountDisabled    = errors.New("user account is disabled")
	ErrEmailNotVerified   = errors.New("please verify your email before logging in")
	ErrInvalidToken       = errors.New("token is invalid or expired")
)

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// Page is one page of a paginated listing.
type Page[T any] struct {
	Count    int `json:"count"`
	Page     int `json:"page"`
	PageSize int `json:"page_size"`
	Results  []T `json:"results"`
}

// PageRequest is a 1-based page number and a page size. Zero values pick
// the defaults.
type PageRequest struct {
	Page     int
	PageSize int
}

func (p PageRequest) normalize() PageRequest {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.PageSize <= 0 {
		p.PageSize = DefaultPageSize
	}
	if p.PageSize > MaxPageSize {
		p.PageSize = MaxPageSize
	}
	return p
}

func (p PageRequest) options() repository.ListOptions {
	p = p.normalize()
	return repository.ListOptions{Limit: p.PageSize, Offset: (p.Page - 1) * p.PageSize}
}

func newPage[T any](req PageRequest, items []T, total int) Page[T] {
	req = req.normalize()
	if items == nil {
		items = []T{}
	}
	return Page[T]{Count: total, Page: req.Page, PageSize: req.PageSize, Results: items}
}
