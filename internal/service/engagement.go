package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/sakif/news-api/internal/apperror"
	"github.com/sakif/news-api/internal/model"
	"github.com/sakif/news-api/internal/repository"
)

const MaxCommentLength = 5000

// EngagementService covers what readers do with published articles: likes,
// bookmarks and comments.
type EngagementService struct {
	articles   repository.ArticleRepository
	engagement repository.EngagementRepository
	comments   repository.CommentRepository
	logger     *slog.Logger
}

func NewEngagementService(
	articles repository.ArticleRepository,
	engagement repository.EngagementRepository,
	comments repository.CommentRepository,
	logger *slog.Logger,
) *EngagementService {
	return &EngagementService{
		articles:   articles,
		engagement: engagement,
		comments:   comments,
		logger:     logger,
	}
}

// published loads a published article by id. Anything else is NotFound.
func (s *EngagementService) published(ctx context.Context, articleID string) (*model.Article, error) {
	a, err := s.articles.GetArticleByID(ctx, articleID, "")
	if err != nil {
		return nil, err
	}
	if a.Status != model.StatusPublished {
		return nil, apperror.NotFound("article", articleID)
	}
	return a, nil
}

// ToggleLike likes the article, or unlikes it if the caller already had.
func (s *EngagementService) ToggleLike(ctx context.Context, userID, articleID string) (model.ToggleResult, error) {
	if _, err := s.published(ctx, articleID); err != nil {
		return model.ToggleResult{}, err
	}
	res, err := s.engagement.ToggleLike(ctx, userID, articleID)
	if err != nil {
		return model.ToggleResult{}, fmt.Errorf("toggling like: %w", err)
	}
	s.logger.Debug("like toggled",
		slog.String("userID", userID),
		slog.String("articleID", articleID),
		slog.Bool("liked", res.Created),
	)
	return res, nil
}

// ToggleBookmark saves the article, or removes the saved bookmark.
func (s *EngagementService) ToggleBookmark(ctx context.Context, userID, articleID string) (model.ToggleResult, error) {
	if _, err := s.published(ctx, articleID); err != nil {
		return model.ToggleResult{}, err
	}
	res, err := s.engagement.ToggleBookmark(ctx, userID, articleID)
	if err != nil {
		return model.ToggleResult{}, fmt.Errorf("toggling bookmark: %w", err)
	}
	return res, nil
}

// Bookmarks lists the caller's bookmarks, newest first.
func (s *EngagementService) Bookmarks(ctx context.Context, userID string, req PageRequest) (Page[model.Bookmark], error) {
	items, total, err := s.engagement.ListBookmarks(ctx, userID, req.options())
	if err != nil {
		return Page[model.Bookmark]{}, fmt.Errorf("listing bookmarks: %w", err)
	}
	return newPage(req, items, total), nil
}

func checkComment(content string) (string, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return "", apperror.ValidationFailed("content", "content is required")
	}
	if len([]rune(content)) > MaxCommentLength {
		return "", apperror.ValidationFailed("content",
			fmt.Sprintf("comments must be %d characters or fewer", MaxCommentLength))
	}
	return content, nil
}

// Comments lists the comments on a published article, newest first.
func (s *EngagementService) Comments(ctx context.Context, articleID string, req PageRequest) (Page[model.Comment], error) {
	if _, err := s.published(ctx, articleID); err != nil {
		return Page[model.Comment]{}, err
	}
	items, total, err := s.comments.ListComments(ctx, articleID, req.options())
	if err != nil {
		return Page[model.Comment]{}, fmt.Errorf("listing comments: %w", err)
	}
	return newPage(req, items, total), nil
}

// AddComment posts a comment on a published article.
func (s *EngagementService) AddComment(ctx context.Context, userID, articleID, content string) (*model.Comment, error) {
	content, err := checkComment(content)
	if err != nil {
		return nil, err
	}
	if _, err := s.published(ctx, articleID); err != nil {
		return nil, err
	}

	c := &model.Comment{UserID: userID, ArticleID: articleID, Content: content}
	if err := s.comments.CreateComment(ctx, c); err != nil {
		return nil, fmt.Errorf("creating comment: %w", err)
	}
	s.logger.Info("comment added", slog.String("id", c.ID), slog.String("articleID", articleID))
	return c, nil
}

// ownComment loads a comment and checks the caller wrote it.
func (s *EngagementService) ownComment(ctx context.Context, userID, commentID string) (*model.Comment, error) {
	c, err := s.comments.GetComment(ctx, commentID)
	if err != nil {
		return nil, err
	}
	if c.UserID != userID {
		return nil, apperror.Forbidden("you can only modify your own comments")
	}
	return c, nil
}

// EditComment replaces the text of the caller's comment.
func (s *EngagementService) EditComment(ctx context.Context, userID, commentID, content string) (*model.Comment, error) {
	content, err := checkComment(content)
	if err != nil {
		return nil, err
	}
	c, err := s.ownComment(ctx, userID, commentID)
	if err != nil {
		return nil, err
	}
	c.Content = content
	if err := s.comments.UpdateComment(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

// DeleteComment removes the caller's comment.
func (s *EngagementService) DeleteComment(ctx context.Context, userID, commentID string) error {
	if _, err := s.ownComment(ctx, userID, commentID); err != nil {
		return err
	}
	return s.comments.DeleteComment(ctx, commentID)
}
