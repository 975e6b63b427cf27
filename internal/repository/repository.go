// Package repository declares the storage interfaces the service layer
// depends on. internal/repository/sqlite implements all of them on one *DB.
package repository

import (
	"context"
	"errors"
	"time"

	"github.com/sakif/news-api/internal/model"
)

// Sentinels for outcomes of conditional writes. They are not user-facing;
// services translate them into apperror values.
var (
	ErrAlreadyConsumed = errors.New("repository: token already consumed")
	ErrAlreadyRevoked  = errors.New("repository: token already revoked")
)

type ListOptions struct {
	Limit  int
	Offset int
}

// Article orderings accepted by ListArticles.
const (
	OrderNewest      = "-published_date"
	OrderOldest      = "published_date"
	OrderMostViewed  = "-view_count"
	OrderLeastViewed = "view_count"
	OrderMostLiked   = "-like_count"
	OrderLeastLiked  = "like_count"
	OrderCreatedDesc = "-created_at"
	OrderCreatedAsc  = "created_at"
	OrderPopular     = "popular" // view_count desc, like_count desc
)

// ArticleFilter narrows ListArticles. Zero values mean "no restriction".
type ArticleFilter struct {
	Status     model.Status
	AuthorID   string
	CategoryID string
	Search     string // matched against title, content and author username
	From, To   *time.Time

	// Related restricts to articles in any of CategoryIDs OR carrying any of
	// TagIDs. Both empty with Related set yields no rows.
	Related     bool
	CategoryIDs []string
	TagIDs      []string
	ExcludeIDs  []string

	LikedBy string

	// ViewerID drives the is_liked / is_bookmarked columns.
	ViewerID string
	Ordering string
	ListOptions
}

type UserRepository interface {
	// CreateUser inserts user and, when tok is non-nil, its first
	// verification token in one transaction.
	CreateUser(ctx context.Context, user *model.User, tok *model.VerificationToken) error
	GetUserByID(ctx context.Context, id string) (*model.User, error)
	GetUserByEmail(ctx context.Context, email string) (*model.User, error)
	UpdateUser(ctx context.Context, user *model.User) error
	SetPassword(ctx context.Context, userID, hash string) error
}

type VerificationRepository interface {
	CreateVerificationToken(ctx context.Context, token *model.VerificationToken) error
	GetVerificationToken(ctx context.Context, value string) (*model.VerificationToken, error)
	// ConsumeVerificationToken marks the token used and the user verified in
	// one transaction. Returns ErrAlreadyConsumed if the token was used.
	ConsumeVerificationToken(ctx context.Context, tokenID, userID string) error
	ListVerificationTokens(ctx context.Context, userID string) ([]model.VerificationToken, error)
}

type RevocationRepository interface {
	// RevokeToken returns ErrAlreadyRevoked if the jti is already listed.
	RevokeToken(ctx context.Context, token *model.RevokedToken) error
	IsTokenRevoked(ctx context.Context, jti string) (bool, error)
	PurgeRevokedTokens(ctx context.Context, before time.Time) (int64, error)
}

type CategoryRepository interface {
	CreateCategory(ctx context.Context, c *model.Category) error
	GetCategoryByID(ctx context.Context, id string) (*model.Category, error)
	GetCategoryBySlug(ctx context.Context, slug string) (*model.Category, error)
	ListCategories(ctx context.Context, activeOnly bool) ([]model.Category, error)
	CategorySlugExists(ctx context.Context, slug string) (bool, error)
}

type TagRepository interface {
	ListTags(ctx context.Context, opts ListOptions) ([]model.Tag, error)
}

type ArticleRepository interface {
	// CreateArticle inserts a and links tags by Name, creating missing tags
	// in the same transaction.
	CreateArticle(ctx context.Context, a *model.Article, tags []model.Tag) error
	GetArticleBySlug(ctx context.Context, slug, viewerID string) (*model.Article, error)
	GetArticleByID(ctx context.Context, id, viewerID string) (*model.Article, error)
	// UpdateArticle saves the editable fields. A nil tags leaves tags untouched.
	UpdateArticle(ctx context.Context, a *model.Article, tags []model.Tag) error
	DeleteArticle(ctx context.Context, id string) error
	ListArticles(ctx context.Context, f ArticleFilter) ([]model.Article, int, error)
	ArticleSlugExists(ctx context.Context, slug string) (bool, error)
	IncrementViewCount(ctx context.Context, id string) error
	// ArticleTaxonomy returns the distinct category and tag ids of the given articles.
	ArticleTaxonomy(ctx context.Context, articleIDs []string) (categoryIDs, tagIDs []string, err error)
}

type EngagementRepository interface {
	ToggleLike(ctx context.Context, userID, articleID string) (model.ToggleResult, error)
	ToggleBookmark(ctx context.Context, userID, articleID string) (model.ToggleResult, error)
	ListBookmarks(ctx context.Context, userID string, opts ListOptions) ([]model.Bookmark, int, error)
}

type CommentRepository interface {
	CreateComment(ctx context.Context, c *model.Comment) error
	GetComment(ctx context.Context, id string) (*model.Comment, error)
	UpdateComment(ctx context.Context, c *model.Comment) error
	DeleteComment(ctx context.Context, id string) error
	ListComments(ctx context.Context, articleID string, opts ListOptions) ([]model.Comment, int, error)
}

type HistoryRepository interface {
	// RecordView inserts the (user, article) pair if absent; created reports
	// whether a row was added.
	RecordView(ctx context.Context, userID, articleID string) (created bool, err error)
	ViewedArticleIDs(ctx context.Context, userID string) ([]string, error)
	ListHistory(ctx context.Context, userID string, opts ListOptions) ([]model.HistoryEntry, int, error)
	ClearHistory(ctx context.Context, userID string) (int64, error)
}

type ProfileRepository interface {
	GetOrCreateProfile(ctx context.Context, userID string) (*model.Profile, error)
	UpdateProfile(ctx context.Context, p *model.Profile) error
	SetProfilePicture(ctx context.Context, userID, path string) error
}
