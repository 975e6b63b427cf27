package service

import (
	"context"
	"testing"

	"github.com/sakif/news-api/internal/apperror"
)

func TestCreateCategory(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	c, err := env.taxonomy.CreateCategory(ctx, CategoryInput{Name: "World News", ColorCode: "#1A2b3C"})
	if err != nil {
		t.Fatalf("CreateCategory() error = %v", err)
	}
	if c.Slug != "world-news" || !c.IsActive {
		t.Errorf("category = %+v, want active with slug world-news", c)
	}

	plain := env.category(t, "Sports")
	if plain.ColorCode != "#000000" {
		t.Errorf("ColorCode = %q, want default #000000", plain.ColorCode)
	}

	_, err = env.taxonomy.CreateCategory(ctx, CategoryInput{Name: "Bad", ColorCode: "red"})
	assertField(t, err, "color_code")

	_, err = env.taxonomy.CreateCategory(ctx, CategoryInput{Name: "  "})
	assertField(t, err, "name")

	_, err = env.taxonomy.CreateCategory(ctx, CategoryInput{Name: "World News"})
	assertKind(t, err, apperror.ErrConflict)
}

func TestCategories_InactiveHidden(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	env.category(t, "Visible")
	if _, err := env.taxonomy.CreateCategory(ctx, CategoryInput{Name: "Hidden", Inactive: true}); err != nil {
		t.Fatalf("CreateCategory() error = %v", err)
	}

	list, err := env.taxonomy.ListCategories(ctx)
	if err != nil {
		t.Fatalf("ListCategories() error = %v", err)
	}
	if len(list) != 1 || list[0].Name != "Visible" {
		t.Errorf("ListCategories() = %+v, want only Visible", list)
	}

	if _, err := env.taxonomy.GetCategory(ctx, "visible"); err != nil {
		t.Errorf("GetCategory(visible) error = %v", err)
	}
	_, err = env.taxonomy.GetCategory(ctx, "hidden")
	assertKind(t, err, apperror.ErrNotFound)
}

func TestListTags_ByUsage(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	author := env.verifiedUser(t, "alice")

	env.publishedArticle(t, author, "A", "", "go", "sql")
	env.publishedArticle(t, author, "B", "", "go")

	tags, err := env.taxonomy.ListTags(ctx, PageRequest{})
	if err != nil {
		t.Fatalf("ListTags() error = %v", err)
	}
	if len(tags) != 2 {
		t.Fatalf("got %d tags, want 2", len(tags))
	}
	if tags[0].Name != "go" || tags[0].UsageCount != 2 {
		t.Errorf("top tag = %+v, want go with usage 2", tags[0])
	}
}
