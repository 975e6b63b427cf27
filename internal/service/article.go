package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/gosimple/slug"
	"github.com/sakif/news-api/internal/apperror"
	"github.com/sakif/news-api/internal/model"
	"github.com/sakif/news-api/internal/repository"
)

const (
	MaxTitleLength    = 200
	MaxTagNameLength  = 50
	MaxTagsPerArticle = 20

	// detailComments is how many recent comments an article detail embeds.
	detailComments = 10
)

// ArticleService owns the article lifecycle: authoring, the publish state
// machine and reader-facing listings.
//
// OWNERSHIP:
// Every mutation looks the article up and compares AuthorID with the caller.
// A mismatch is reported as NotFound, not Forbidden, so non-authors can't
// probe for drafts by slug.
type ArticleService struct {
	articles   repository.ArticleRepository
	categories repository.CategoryRepository
	comments   repository.CommentRepository
	history    repository.HistoryRepository
	now        func() time.Time
	logger     *slog.Logger
}

func NewArticleService(
	articles repository.ArticleRepository,
	categories repository.CategoryRepository,
	comments repository.CommentRepository,
	history repository.HistoryRepository,
	logger *slog.Logger,
) *ArticleService {
	return &ArticleService{
		articles:   articles,
		categories: categories,
		comments:   comments,
		history:    history,
		now:        func() time.Time { return time.Now().UTC() },
		logger:     logger,
	}
}

// ArticleInput is a new article. Status defaults to draft.
type ArticleInput struct {
	Title      string
	Content    string
	CategoryID string
	Tags       []string // tag names; created on first use
	Status     model.Status
}

// ArticleUpdate holds the editable fields. Nil means unchanged; an empty
// CategoryID clears the category.
type ArticleUpdate struct {
	Title      *string
	Content    *string
	CategoryID *string
	Tags       *[]string
	Status     *model.Status
}

// Create stores a new article authored by authorID.
func (s *ArticleService) Create(ctx context.Context, authorID string, in ArticleInput) (*model.Article, error) {
	title, err := checkTitle(in.Title)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(in.Content) == "" {
		return nil, apperror.ValidationFailed("content", "content is required")
	}

	a := &model.Article{
		Title:    title,
		Content:  in.Content,
		AuthorID: authorID,
		Status:   model.StatusDraft,
	}

	if in.CategoryID != "" {
		if err := s.checkCategory(ctx, in.CategoryID); err != nil {
			return nil, err
		}
		id := in.CategoryID
		a.CategoryID = &id
	}

	if in.Status != "" {
		if err := s.applyStatus(a, in.Status); err != nil {
			return nil, err
		}
	}

	tags, err := normalizeTags(in.Tags)
	if err != nil {
		return nil, err
	}

	a.Slug, err = uniqueSlug(ctx, title, s.slugTaken)
	if err != nil {
		return nil, err
	}

	if err := s.articles.CreateArticle(ctx, a, tags); err != nil {
		s.logger.Error("failed to create article",
			slog.String("authorID", authorID),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("creating article: %w", err)
	}

	s.logger.Info("article created",
		slog.String("id", a.ID),
		slog.String("slug", a.Slug),
		slog.String("status", string(a.Status)),
	)
	return s.articles.GetArticleByID(ctx, a.ID, authorID)
}

// reservedSlugs are the static path segments under /api/news. An article
// slug equal to one of them could never be fetched by slug.
var reservedSlugs = map[string]bool{
	"search":          true,
	"tags":            true,
	"categories":      true,
	"recommendations": true,
	"my":              true,
}

// slugTaken reports whether slug is reserved or already used by an article.
func (s *ArticleService) slugTaken(ctx context.Context, slug string) (bool, error) {
	if reservedSlugs[slug] {
		return true, nil
	}
	return s.articles.ArticleSlugExists(ctx, slug)
}

func checkTitle(title string) (string, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return "", apperror.ValidationFailed("title", "title is required")
	}
	if len([]rune(title)) > MaxTitleLength {
		return "", apperror.ValidationFailed("title",
			fmt.Sprintf("title must be %d characters or fewer", MaxTitleLength))
	}
	return title, nil
}

// checkCategory requires an existing, active category.
func (s *ArticleService) checkCategory(ctx context.Context, id string) error {
	c, err := s.categories.GetCategoryByID(ctx, id)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return apperror.ValidationFailed("category", "category does not exist")
		}
		return err
	}
	if !c.IsActive {
		return apperror.ValidationFailed("category", "category is not active")
	}
	return nil
}

func (s *ArticleService) applyStatus(a *model.Article, next model.Status) error {
	if !next.Valid() {
		return apperror.ValidationFailed("status",
			fmt.Sprintf("status must be one of %s, %s, %s", model.StatusDraft, model.StatusPublished, model.StatusArchived))
	}
	if err := a.SetStatus(next, s.now()); err != nil {
		return apperror.Invalid("status", err)
	}
	return nil
}

// normalizeTags turns tag names into tags for the repository to find or
// create. Names are trimmed and de-duplicated; blanks are skipped.
func normalizeTags(names []string) ([]model.Tag, error) {
	seen := map[string]bool{}
	tags := []model.Tag{}
	for _, name := range names {
		name = strings.TrimSpace(name)
		if name == "" || seen[name] {
			continue
		}
		if len([]rune(name)) > MaxTagNameLength {
			return nil, apperror.ValidationFailed("tags",
				fmt.Sprintf("tag names must be %d characters or fewer", MaxTagNameLength))
		}
		seen[name] = true
		if len(seen) > MaxTagsPerArticle {
			return nil, apperror.ValidationFailed("tags",
				fmt.Sprintf("an article can have at most %d tags", MaxTagsPerArticle))
		}

		tagSlug := slug.Make(name)
		if tagSlug == "" {
			tagSlug = strings.ToLower(name)
		}
		tags = append(tags, model.Tag{Name: name, Slug: tagSlug})
	}
	return tags, nil
}

// Get returns the article at slug for viewerID (empty for anonymous).
//
// Published articles are visible to everyone; drafts and archived articles
// only to their author. Viewing increments the view count and, for signed-in
// readers, records the first view in their history. Both are best effort: a
// failure is logged and the article is still returned.
func (s *ArticleService) Get(ctx context.Context, slug, viewerID string) (*model.ArticleDetail, error) {
	a, err := s.articles.GetArticleBySlug(ctx, slug, viewerID)
	if err != nil {
		return nil, err
	}
	if a.Status != model.StatusPublished && a.AuthorID != viewerID {
		return nil, apperror.NotFound("article", slug)
	}

	if err := s.articles.IncrementViewCount(ctx, a.ID); err != nil {
		s.logger.Warn("view count not incremented", slog.String("id", a.ID), slog.String("error", err.Error()))
	} else {
		a.ViewCount++
	}

	if viewerID != "" {
		if _, err := s.history.RecordView(ctx, viewerID, a.ID); err != nil {
			s.logger.Warn("reading history not recorded",
				slog.String("userID", viewerID),
				slog.String("id", a.ID),
				slog.String("error", err.Error()),
			)
		}
	}

	comments, _, err := s.comments.ListComments(ctx, a.ID, repository.ListOptions{Limit: detailComments})
	if err != nil {
		return nil, fmt.Errorf("loading comments: %w", err)
	}

	return &model.ArticleDetail{Article: *a, Comments: comments}, nil
}

// ListQuery filters the public article listing.
type ListQuery struct {
	Category string // category id or slug
	Author   string // author user id
	Search   string
	Ordering string
	PageRequest
}

// List returns published articles.
func (s *ArticleService) List(ctx context.Context, q ListQuery, viewerID string) (Page[model.Article], error) {
	f := repository.ArticleFilter{
		Status:      model.StatusPublished,
		AuthorID:    strings.TrimSpace(q.Author),
		Search:      strings.TrimSpace(q.Search),
		Ordering:    q.Ordering,
		ViewerID:    viewerID,
		ListOptions: q.options(),
	}
	if err := s.categoryFilter(ctx, &f, q.Category); err != nil {
		return Page[model.Article]{}, err
	}
	return s.list(ctx, f, q.PageRequest)
}

// categoryFilter accepts either a slug or an id.
func (s *ArticleService) categoryFilter(ctx context.Context, f *repository.ArticleFilter, category string) error {
	category = strings.TrimSpace(category)
	if category == "" {
		return nil
	}
	c, err := s.categories.GetCategoryBySlug(ctx, category)
	switch {
	case err == nil:
		f.CategoryID = c.ID
	case errors.Is(err, apperror.ErrNotFound):
		f.CategoryID = category
	default:
		return err
	}
	return nil
}

func (s *ArticleService) list(ctx context.Context, f repository.ArticleFilter, req PageRequest) (Page[model.Article], error) {
	articles, total, err := s.articles.ListArticles(ctx, f)
	if err != nil {
		if errors.Is(err, apperror.ErrValidation) {
			return Page[model.Article]{}, err
		}
		return Page[model.Article]{}, fmt.Errorf("listing articles: %w", err)
	}
	return newPage(req, articles, total), nil
}

// SearchQuery is the advanced search form. Dates are YYYY-MM-DD and bound
// published_date inclusively.
type SearchQuery struct {
	Q        string
	Category string
	Author   string
	DateFrom string
	DateTo   string
	PageRequest
}

const dateLayout = "2006-01-02"

// Search finds published articles by text, category, author and date range.
func (s *ArticleService) Search(ctx context.Context, q SearchQuery, viewerID string) (Page[model.Article], error) {
	f := repository.ArticleFilter{
		Status:      model.StatusPublished,
		AuthorID:    strings.TrimSpace(q.Author),
		Search:      strings.TrimSpace(q.Q),
		ViewerID:    viewerID,
		ListOptions: q.options(),
	}
	if err := s.categoryFilter(ctx, &f, q.Category); err != nil {
		return Page[model.Article]{}, err
	}

	if q.DateFrom != "" {
		from, err := time.Parse(dateLayout, q.DateFrom)
		if err != nil {
			return Page[model.Article]{}, apperror.ValidationFailed("date_from", "date_from must be YYYY-MM-DD")
		}
		f.From = &from
	}
	if q.DateTo != "" {
		to, err := time.Parse(dateLayout, q.DateTo)
		if err != nil {
			return Page[model.Article]{}, apperror.ValidationFailed("date_to", "date_to must be YYYY-MM-DD")
		}
		end := to.AddDate(0, 0, 1)
		f.To = &end
	}
	return s.list(ctx, f, q.PageRequest)
}

// owned fetches the article at slug if userID wrote it.
func (s *ArticleService) owned(ctx context.Context, userID, slug string) (*model.Article, error) {
	a, err := s.articles.GetArticleBySlug(ctx, slug, userID)
	if err != nil {
		return nil, err
	}
	if a.AuthorID != userID {
		return nil, apperror.NotFound("article", slug)
	}
	return a, nil
}

// Update edits an article. A status change goes through the same transition
// rules as Publish and Archive.
func (s *ArticleService) Update(ctx context.Context, userID, slug string, in ArticleUpdate) (*model.Article, error) {
	a, err := s.owned(ctx, userID, slug)
	if err != nil {
		return nil, err
	}

	if in.Title != nil {
		if a.Title, err = checkTitle(*in.Title); err != nil {
			return nil, err
		}
	}
	if in.Content != nil {
		if strings.TrimSpace(*in.Content) == "" {
			return nil, apperror.ValidationFailed("content", "content is required")
		}
		a.Content = *in.Content
	}
	if in.CategoryID != nil {
		if *in.CategoryID == "" {
			a.CategoryID = nil
		} else {
			if err := s.checkCategory(ctx, *in.CategoryID); err != nil {
				return nil, err
			}
			id := *in.CategoryID
			a.CategoryID = &id
		}
	}
	if in.Status != nil {
		if err := s.applyStatus(a, *in.Status); err != nil {
			return nil, err
		}
	}

	var tags []model.Tag
	if in.Tags != nil {
		if tags, err = normalizeTags(*in.Tags); err != nil {
			return nil, err
		}
	}

	if err := s.articles.UpdateArticle(ctx, a, tags); err != nil {
		return nil, fmt.Errorf("updating article: %w", err)
	}

	s.logger.Info("article updated", slog.String("id", a.ID))
	return s.articles.GetArticleByID(ctx, a.ID, userID)
}

// Delete removes an article the caller wrote.
func (s *ArticleService) Delete(ctx context.Context, userID, slug string) error {
	a, err := s.owned(ctx, userID, slug)
	if err != nil {
		return err
	}
	if err := s.articles.DeleteArticle(ctx, a.ID); err != nil {
		return err
	}
	s.logger.Info("article deleted", slog.String("id", a.ID), slog.String("slug", slug))
	return nil
}

// Publish moves a draft to published, stamping published_date the first
// time. Publishing a published article is a no-op.
func (s *ArticleService) Publish(ctx context.Context, userID, slug string) (*model.Article, error) {
	return s.transition(ctx, userID, slug, model.StatusPublished)
}

// Archive moves a published article to archived.
func (s *ArticleService) Archive(ctx context.Context, userID, slug string) (*model.Article, error) {
	return s.transition(ctx, userID, slug, model.StatusArchived)
}

func (s *ArticleService) transition(ctx context.Context, userID, slug string, next model.Status) (*model.Article, error) {
	a, err := s.owned(ctx, userID, slug)
	if err != nil {
		return nil, err
	}
	prev := a.Status
	if err := s.applyStatus(a, next); err != nil {
		return nil, err
	}
	if prev == next {
		return a, nil
	}

	if err := s.articles.UpdateArticle(ctx, a, nil); err != nil {
		return nil, fmt.Errorf("changing status: %w", err)
	}
	s.logger.Info("article status changed",
		slog.String("id", a.ID),
		slog.String("from", string(prev)),
		slog.String("to", string(next)),
	)
	return a, nil
}

// Mine lists the caller's own articles in every status, newest first.
func (s *ArticleService) Mine(ctx context.Context, userID string, req PageRequest) (Page[model.Article], error) {
	return s.list(ctx, repository.ArticleFilter{
		AuthorID:    userID,
		ViewerID:    userID,
		Ordering:    repository.OrderCreatedDesc,
		ListOptions: req.options(),
	}, req)
}

// Liked lists the published articles the caller has liked.
func (s *ArticleService) Liked(ctx context.Context, userID string, req PageRequest) (Page[model.Article], error) {
	return s.list(ctx, repository.ArticleFilter{
		Status:      model.StatusPublished,
		LikedBy:     userID,
		ViewerID:    userID,
		ListOptions: req.options(),
	}, req)
}
