package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/sakif/news-api/internal/model"
	"github.com/sakif/news-api/internal/repository"
)

const RecommendationLimit = 10

// RecommendationService suggests articles from a reader's history.
//
// ALGORITHM:
//
//  1. viewed     = articles in the reader's history
//  2. categories, tags of the viewed articles
//  3. candidates = published, category in categories OR any tag in tags,
//     not viewed, newest first
//  4. nothing found → most viewed then most liked published articles, not viewed
//
// Nothing is stored; every call recomputes from the tables.
type RecommendationService struct {
	articles repository.ArticleRepository
	history  repository.HistoryRepository
	logger   *slog.Logger
}

func NewRecommendationService(articles repository.ArticleRepository, history repository.HistoryRepository, logger *slog.Logger) *RecommendationService {
	return &RecommendationService{articles: articles, history: history, logger: logger}
}

// Recommend returns up to RecommendationLimit articles for userID.
func (s *RecommendationService) Recommend(ctx context.Context, userID string) ([]model.Article, error) {
	viewed, err := s.history.ViewedArticleIDs(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("loading reading history: %w", err)
	}

	if len(viewed) > 0 {
		categoryIDs, tagIDs, err := s.articles.ArticleTaxonomy(ctx, viewed)
		if err != nil {
			return nil, fmt.Errorf("loading taxonomy: %w", err)
		}

		related, _, err := s.articles.ListArticles(ctx, repository.ArticleFilter{
			Status:      model.StatusPublished,
			Related:     true,
			CategoryIDs: categoryIDs,
			TagIDs:      tagIDs,
			ExcludeIDs:  viewed,
			ViewerID:    userID,
			Ordering:    repository.OrderNewest,
			ListOptions: repository.ListOptions{Limit: RecommendationLimit},
		})
		if err != nil {
			return nil, fmt.Errorf("finding related articles: %w", err)
		}
		if len(related) > 0 {
			return related, nil
		}
	}

	s.logger.Debug("recommendations falling back to popular", slog.String("userID", userID), slog.Int("viewed", len(viewed)))

	popular, _, err := s.articles.ListArticles(ctx, repository.ArticleFilter{
		Status:      model.StatusPublished,
		ExcludeIDs:  viewed,
		ViewerID:    userID,
		Ordering:    repository.OrderPopular,
		ListOptions: repository.ListOptions{Limit: RecommendationLimit},
	})
	if err != nil {
		return nil, fmt.Errorf("finding popular articles: %w", err)
	}
	return popular, nil
}
