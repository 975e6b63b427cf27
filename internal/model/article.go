package model

import (
	"fmt"
	"time"
)

// Status is the publication state of an article.
type Status string

const (
	StatusDraft     Status = "draft"
	StatusPublished Status = "published"
	StatusArchived  Status = "archived"
)

// Valid reports whether s is one of the known states.
func (s Status) Valid() bool {
	switch s {
	case StatusDraft, StatusPublished, StatusArchived:
		return true
	}
	return false
}

// CanTransition reports whether an article may move from s to next.
//
//	draft ──► published ──► archived
//
// Staying in the same state is always allowed. Nothing leads back to draft.
func (s Status) CanTransition(next Status) bool {
	if s == next {
		return true
	}
	switch s {
	case StatusDraft:
		return next == StatusPublished
	case StatusPublished:
		return next == StatusArchived
	}
	return false
}

// TransitionError describes a rejected status change.
type TransitionError struct {
	From, To Status
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("cannot change status from %s to %s", e.From, e.To)
}

// Category groups articles by topic.
type Category struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Slug        string    `json:"slug"`
	ColorCode   string    `json:"color_code"`
	IsActive    bool      `json:"is_active"`
	NewsCount   int       `json:"news_count"`
	CreatedAt   time.Time `json:"created_at"`
}

// Tag is a free-form label. UsageCount counts the articles that carry it.
type Tag struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	Slug       string    `json:"slug"`
	UsageCount int       `json:"usage_count"`
	CreatedAt  time.Time `json:"created_at"`
}

// Article is a news article.
//
// The viewer-relative fields (IsLiked, IsBookmarked) are computed per request
// for the authenticated caller and are false for anonymous readers.
type Article struct {
	ID            string     `json:"id"`
	Title         string     `json:"title"`
	Slug          string     `json:"slug"`
	Content       string     `json:"content"`
	AuthorID      string     `json:"author"`
	AuthorName    string     `json:"author_name"`
	CategoryID    *string    `json:"category"`
	CategoryName  string     `json:"category_name"`
	Tags          []Tag      `json:"tags"`
	Status        Status     `json:"status"`
	PublishedDate *time.Time `json:"published_date"`
	ViewCount     int        `json:"view_count"`
	LikeCount     int        `json:"like_count"`
	IsLiked       bool       `json:"is_liked"`
	IsBookmarked  bool       `json:"is_bookmarked"`
	CommentCount  int        `json:"comment_count"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// SetStatus applies a status change, enforcing the transition rules.
func (a *Article) SetStatus(next Status, now time.Time) error {
	if !a.Status.CanTransition(next) {
		return &TransitionError{From: a.Status, To: next}
	}
	a.Status = next
	if next == StatusPublished && a.PublishedDate == nil {
		t := now
		a.PublishedDate = &t
	}
	return nil
}

// ArticleDetail is an article plus its most recent comments.
type ArticleDetail struct {
	Article
	Comments []Comment `json:"comments"`
}
