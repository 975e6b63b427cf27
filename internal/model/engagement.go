package model

import "time"

// Comment is a reader's comment on an article. Only its author may edit or
// delete it.
type Comment struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user"`
	UserName  string    `json:"user_name"`
	ArticleID string    `json:"news"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Bookmark is a saved article. Presence of the (user, article) row is the
// bookmark itself.
type Bookmark struct {
	ID           string    `json:"id"`
	UserID       string    `json:"user"`
	ArticleID    string    `json:"news"`
	ArticleTitle string    `json:"news_title"`
	ArticleSlug  string    `json:"news_slug"`
	CreatedAt    time.Time `json:"created_at"`
}

// HistoryEntry is the first recorded view of an article by a user.
type HistoryEntry struct {
	ID           string    `json:"id"`
	ArticleID    string    `json:"news"`
	ArticleTitle string    `json:"news_title"`
	ArticleSlug  string    `json:"news_slug"`
	ViewedAt     time.Time `json:"viewed_at"`
}

// ToggleResult reports the state of a like or bookmark after a toggle.
// LikeCount is only meaningful for likes.
type ToggleResult struct {
	Created   bool
	LikeCount int
}
