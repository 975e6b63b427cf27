package service

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/sakif/news-api/internal/apperror"
	"github.com/sakif/news-api/internal/model"
	"github.com/sakif/news-api/internal/repository"
)

var colorPattern = regexp.MustCompile(`^#[0-9A-Fa-f]{6}$`)

// TaxonomyService manages categories and exposes tags.
type TaxonomyService struct {
	categories repository.CategoryRepository
	tags       repository.TagRepository
	logger     *slog.Logger
}

func NewTaxonomyService(categories repository.CategoryRepository, tags repository.TagRepository, logger *slog.Logger) *TaxonomyService {
	return &TaxonomyService{categories: categories, tags: tags, logger: logger}
}

// ListCategories returns the active categories by name.
func (s *TaxonomyService) ListCategories(ctx context.Context) ([]model.Category, error) {
	return s.categories.ListCategories(ctx, true)
}

// GetCategory looks a category up by slug. Inactive categories are hidden.
func (s *TaxonomyService) GetCategory(ctx context.Context, slug string) (*model.Category, error) {
	c, err := s.categories.GetCategoryBySlug(ctx, slug)
	if err != nil {
		return nil, err
	}
	if !c.IsActive {
		return nil, apperror.NotFound("category", slug)
	}
	return c, nil
}

type CategoryInput struct {
	Name        string
	Description string
	ColorCode   string
	Inactive    bool
}

// CreateCategory adds a category, deriving its slug from the name.
func (s *TaxonomyService) CreateCategory(ctx context.Context, in CategoryInput) (*model.Category, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, apperror.ValidationFailed("name", "name is required")
	}
	if len([]rune(name)) > 100 {
		return nil, apperror.ValidationFailed("name", "name must be 100 characters or fewer")
	}
	if in.ColorCode != "" && !colorPattern.MatchString(in.ColorCode) {
		return nil, apperror.ValidationFailed("color_code", "color_code must look like #RRGGBB")
	}

	slug, err := uniqueSlug(ctx, name, s.categories.CategorySlugExists)
	if err != nil {
		return nil, err
	}

	c := &model.Category{
		Name:        name,
		Description: strings.TrimSpace(in.Description),
		Slug:        slug,
		ColorCode:   in.ColorCode,
		IsActive:    !in.Inactive,
	}
	if err := s.categories.CreateCategory(ctx, c); err != nil {
		return nil, err
	}

	s.logger.Info("category created", slog.String("id", c.ID), slog.String("slug", c.Slug))
	return c, nil
}

// ListTags returns tags by descending usage.
func (s *TaxonomyService) ListTags(ctx context.Context, req PageRequest) ([]model.Tag, error) {
	tags, err := s.tags.ListTags(ctx, req.options())
	if err != nil {
		return nil, fmt.Errorf("listing tags: %w", err)
	}
	return tags, nil
}
