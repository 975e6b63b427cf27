package sqlite

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/sakif/news-api/internal/apperror"
	"github.com/sakif/news-api/internal/model"
	"github.com/sakif/news-api/internal/repository"
)

func createTestCategory(t *testing.T, db *DB, name, slug string) *model.Category {
	t.Helper()
	c := &model.Category{Name: name, Slug: slug, IsActive: true}
	if err := db.CreateCategory(context.Background(), c); err != nil {
		t.Fatalf("failed to create category: %v", err)
	}
	return c
}

func createTestTag(t *testing.T, db *DB, name string) *model.Tag {
	t.Helper()
	tag, err := db.findOrCreateTag(context.Background(), db.conn, name, name)
	if err != nil {
		t.Fatalf("failed to create tag: %v", err)
	}
	return tag
}

// createTestArticle creates a published article by author. published sets
// both status and published_date so ordering tests can control the timeline.
func createTestArticle(t *testing.T, db *DB, author *model.User, slug string, published time.Time, categoryID *string, tags ...model.Tag) *model.Article {
	t.Helper()
	a := &model.Article{
		Title:         "Title " + slug,
		Slug:          slug,
		Content:       "content of " + slug,
		AuthorID:      author.ID,
		CategoryID:    categoryID,
		Status:        model.StatusPublished,
		PublishedDate: &published,
	}
	if err := db.CreateArticle(context.Background(), a, tags); err != nil {
		t.Fatalf("failed to create article: %v", err)
	}
	return a
}

func ids(articles []model.Article) []string {
	out := make([]string, len(articles))
	for i, a := range articles {
		out[i] = a.ID
	}
	return out
}

// =========================================================================
// ARTICLES
// =========================================================================

func TestCreateArticle_WithTags(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	author := createTestUser(t, db, "alice")
	cat := createTestCategory(t, db, "Tech", "tech")
	goTag := createTestTag(t, db, "go")
	dbTag := createTestTag(t, db, "databases")

	a := createTestArticle(t, db, author, "hello", time.Now().UTC(), &cat.ID, *goTag, *dbTag, *goTag)

	got, err := db.GetArticleBySlug(ctx, "hello", "")
	if err != nil {
		t.Fatalf("GetArticleBySlug() error = %v", err)
	}
	if got.ID != a.ID || got.AuthorName != "alice" || got.CategoryName != "Tech" {
		t.Errorf("article = %+v", got)
	}
	if got.CategoryID == nil || *got.CategoryID != cat.ID {
		t.Errorf("CategoryID = %v, want %s", got.CategoryID, cat.ID)
	}
	if len(got.Tags) != 2 {
		t.Fatalf("Tags = %v, want 2 (duplicates ignored)", got.Tags)
	}

	tags, _ := db.ListTags(ctx, repository.ListOptions{})
	for _, tag := range tags {
		if tag.UsageCount != 1 {
			t.Errorf("tag %s usage_count = %d, want 1", tag.Name, tag.UsageCount)
		}
	}
}

func TestCreateArticle_DuplicateSlug(t *testing.T) {
	db := newTestDB(t)
	author := createTestUser(t, db, "alice")
	createTestArticle(t, db, author, "same", time.Now().UTC(), nil)

	dup := &model.Article{Title: "x", Slug: "same", Content: "y", AuthorID: author.ID}
	err := db.CreateArticle(context.Background(), dup, nil)
	if !errors.Is(err, apperror.ErrConflict) {
		t.Errorf("error = %v, want conflict", err)
	}
}

func TestCreateArticle_FailureLeavesNoTags(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	author := createTestUser(t, db, "alice")
	createTestArticle(t, db, author, "same", time.Now().UTC(), nil)

	dup := &model.Article{Title: "x", Slug: "same", Content: "y", AuthorID: author.ID}
	err := db.CreateArticle(ctx, dup, []model.Tag{{Name: "fresh", Slug: "fresh"}})
	if !errors.Is(err, apperror.ErrConflict) {
		t.Fatalf("error = %v, want conflict", err)
	}

	tags, err := db.ListTags(ctx, repository.ListOptions{})
	if err != nil {
		t.Fatalf("ListTags() error = %v", err)
	}
	if len(tags) != 0 {
		t.Errorf("tags = %v, want none after rolled back create", tags)
	}
}

func TestCreateArticle_CreatesMissingTags(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	author := createTestUser(t, db, "alice")

	a := createTestArticle(t, db, author, "fresh", time.Now().UTC(), nil,
		model.Tag{Name: "Go", Slug: "go"}, model.Tag{Name: "SQL", Slug: "sql"})

	got, err := db.GetArticleByID(ctx, a.ID, "")
	if err != nil {
		t.Fatalf("GetArticleByID() error = %v", err)
	}
	if len(got.Tags) != 2 {
		t.Fatalf("Tags = %v, want 2", got.Tags)
	}
	for _, tag := range got.Tags {
		if tag.ID == "" || tag.UsageCount != 1 {
			t.Errorf("tag = %+v, want stored with usage_count 1", tag)
		}
	}
}

func TestUpdateArticle_ReplacesTags(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	author := createTestUser(t, db, "alice")
	oldTag := createTestTag(t, db, "old")
	newTag := createTestTag(t, db, "new")
	a := createTestArticle(t, db, author, "post", time.Now().UTC(), nil, *oldTag)

	a.Title = "Renamed"
	if err := db.UpdateArticle(ctx, a, []model.Tag{*newTag}); err != nil {
		t.Fatalf("UpdateArticle() error = %v", err)
	}

	got, _ := db.GetArticleByID(ctx, a.ID, "")
	if got.Title != "Renamed" || len(got.Tags) != 1 || got.Tags[0].ID != newTag.ID {
		t.Errorf("article after update = %+v", got)
	}

	tags, _ := db.ListTags(ctx, repository.ListOptions{})
	counts := map[string]int{}
	for _, tag := range tags {
		counts[tag.Name] = tag.UsageCount
	}
	if counts["old"] != 0 || counts["new"] != 1 {
		t.Errorf("usage counts = %v", counts)
	}

	// nil tags leave the set alone
	if err := db.UpdateArticle(ctx, got, nil); err != nil {
		t.Fatalf("UpdateArticle(nil tags) error = %v", err)
	}
	again, _ := db.GetArticleByID(ctx, a.ID, "")
	if len(again.Tags) != 1 {
		t.Errorf("Tags = %v, want unchanged", again.Tags)
	}
}

func TestDeleteArticle_Cascades(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	author := createTestUser(t, db, "alice")
	reader := createTestUser(t, db, "bob")
	a := createTestArticle(t, db, author, "doomed", time.Now().UTC(), nil)

	db.ToggleLike(ctx, reader.ID, a.ID)
	db.ToggleBookmark(ctx, reader.ID, a.ID)
	db.RecordView(ctx, reader.ID, a.ID)
	db.CreateComment(ctx, &model.Comment{UserID: reader.ID, ArticleID: a.ID, Content: "hi"})

	if err := db.DeleteArticle(ctx, a.ID); err != nil {
		t.Fatalf("DeleteArticle() error = %v", err)
	}

	for _, table := range []string{"likes", "bookmarks", "reading_history", "comments", "article_tags"} {
		var n int
		db.conn.QueryRow(`SELECT COUNT(*) FROM ` + table).Scan(&n)
		if n != 0 {
			t.Errorf("%s still has %d rows", table, n)
		}
	}

	if err := db.DeleteArticle(ctx, a.ID); !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("second delete error = %v, want ErrNotFound", err)
	}
}

func TestListArticles_FiltersAndOrdering(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	alice := createTestUser(t, db, "alice")
	bob := createTestUser(t, db, "bob")
	tech := createTestCategory(t, db, "Tech", "tech")
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	older := createTestArticle(t, db, alice, "older", base, &tech.ID)
	newer := createTestArticle(t, db, bob, "newer", base.Add(24*time.Hour), nil)
	draft := &model.Article{Title: "Draft", Slug: "draft", Content: "wip", AuthorID: alice.ID}
	if err := db.CreateArticle(ctx, draft, nil); err != nil {
		t.Fatalf("create draft: %v", err)
	}

	tests := []struct {
		name   string
		filter repository.ArticleFilter
		want   []string
	}{
		{"published newest first", repository.ArticleFilter{Status: model.StatusPublished}, []string{newer.ID, older.ID}},
		{"oldest first", repository.ArticleFilter{Status: model.StatusPublished, Ordering: repository.OrderOldest}, []string{older.ID, newer.ID}},
		{"by author", repository.ArticleFilter{AuthorID: alice.ID, Ordering: repository.OrderCreatedAsc}, []string{older.ID, draft.ID}},
		{"by category", repository.ArticleFilter{CategoryID: tech.ID}, []string{older.ID}},
		{"search matches username", repository.ArticleFilter{Status: model.StatusPublished, Search: "bob"}, []string{newer.ID}},
		{"search matches title", repository.ArticleFilter{Search: "Title old"}, []string{older.ID}},
		{"search wildcard is literal", repository.ArticleFilter{Search: "%"}, []string{}},
		{"date range", repository.ArticleFilter{From: ptr(base.Add(time.Hour)), To: ptr(base.Add(48 * time.Hour))}, []string{newer.ID}},
		{"exclude", repository.ArticleFilter{Status: model.StatusPublished, ExcludeIDs: []string{newer.ID}}, []string{older.ID}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, total, err := db.ListArticles(ctx, tt.filter)
			if err != nil {
				t.Fatalf("ListArticles() error = %v", err)
			}
			if total != len(tt.want) {
				t.Errorf("total = %d, want %d", total, len(tt.want))
			}
			gotIDs := ids(got)
			if len(gotIDs) != len(tt.want) {
				t.Fatalf("got %v, want %v", gotIDs, tt.want)
			}
			for i := range gotIDs {
				if gotIDs[i] != tt.want[i] {
					t.Errorf("position %d = %s, want %s", i, gotIDs[i], tt.want[i])
				}
			}
		})
	}
}

func ptr[T any](v T) *T { return &v }

func TestListArticles_Pagination(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	author := createTestUser(t, db, "alice")
	base := time.Now().UTC()
	for i, slug := range []string{"a", "b", "c", "d", "e"} {
		createTestArticle(t, db, author, slug, base.Add(time.Duration(i)*time.Minute), nil)
	}

	page, total, err := db.ListArticles(ctx, repository.ArticleFilter{
		ListOptions: repository.ListOptions{Limit: 2, Offset: 2},
	})
	if err != nil {
		t.Fatalf("ListArticles() error = %v", err)
	}
	if total != 5 || len(page) != 2 {
		t.Fatalf("total = %d, len = %d", total, len(page))
	}
	if page[0].Slug != "c" || page[1].Slug != "b" {
		t.Errorf("page = %s, %s; want c, b", page[0].Slug, page[1].Slug)
	}
}

func TestListArticles_UnknownOrdering(t *testing.T) {
	db := newTestDB(t)

	_, _, err := db.ListArticles(context.Background(), repository.ArticleFilter{Ordering: "title; DROP TABLE"})
	if !errors.Is(err, apperror.ErrValidation) {
		t.Errorf("error = %v, want validation error", err)
	}
}

func TestListArticles_Related(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	author := createTestUser(t, db, "alice")
	tech := createTestCategory(t, db, "Tech", "tech")
	sport := createTestCategory(t, db, "Sport", "sport")
	goTag := createTestTag(t, db, "go")
	now := time.Now().UTC()

	inCategory := createTestArticle(t, db, author, "in-cat", now, &tech.ID)
	withTag := createTestArticle(t, db, author, "with-tag", now.Add(-time.Hour), &sport.ID, *goTag)
	createTestArticle(t, db, author, "unrelated", now, &sport.ID)

	got, _, err := db.ListArticles(ctx, repository.ArticleFilter{
		Status:      model.StatusPublished,
		Related:     true,
		CategoryIDs: []string{tech.ID},
		TagIDs:      []string{goTag.ID},
	})
	if err != nil {
		t.Fatalf("ListArticles() error = %v", err)
	}
	gotIDs := ids(got)
	if len(gotIDs) != 2 || gotIDs[0] != inCategory.ID || gotIDs[1] != withTag.ID {
		t.Errorf("related = %v, want [%s %s]", gotIDs, inCategory.ID, withTag.ID)
	}

	empty, total, err := db.ListArticles(ctx, repository.ArticleFilter{Related: true})
	if err != nil || len(empty) != 0 || total != 0 {
		t.Errorf("related with no taxonomy = %v, %d, %v", empty, total, err)
	}
}

func TestArticleTaxonomy(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	author := createTestUser(t, db, "alice")
	tech := createTestCategory(t, db, "Tech", "tech")
	goTag := createTestTag(t, db, "go")

	a := createTestArticle(t, db, author, "a", time.Now().UTC(), &tech.ID, *goTag)
	b := createTestArticle(t, db, author, "b", time.Now().UTC(), nil, *goTag)

	cats, tags, err := db.ArticleTaxonomy(ctx, []string{a.ID, b.ID})
	if err != nil {
		t.Fatalf("ArticleTaxonomy() error = %v", err)
	}
	if len(cats) != 1 || cats[0] != tech.ID {
		t.Errorf("categories = %v", cats)
	}
	if len(tags) != 1 || tags[0] != goTag.ID {
		t.Errorf("tags = %v", tags)
	}
}

func TestIncrementViewCount(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	author := createTestUser(t, db, "alice")
	a := createTestArticle(t, db, author, "popular", time.Now().UTC(), nil)

	for range 3 {
		if err := db.IncrementViewCount(ctx, a.ID); err != nil {
			t.Fatalf("IncrementViewCount() error = %v", err)
		}
	}
	got, _ := db.GetArticleByID(ctx, a.ID, "")
	if got.ViewCount != 3 {
		t.Errorf("ViewCount = %d, want 3", got.ViewCount)
	}
}

// =========================================================================
// CATEGORIES & TAGS
// =========================================================================

func TestCategories(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	author := createTestUser(t, db, "alice")
	tech := createTestCategory(t, db, "Tech", "tech")
	createTestCategory(t, db, "Arts", "arts")
	hidden := &model.Category{Name: "Hidden", Slug: "hidden"}
	db.CreateCategory(ctx, hidden)

	createTestArticle(t, db, author, "one", time.Now().UTC(), &tech.ID)
	draft := &model.Article{Title: "d", Slug: "d", Content: "d", AuthorID: author.ID, CategoryID: &tech.ID}
	db.CreateArticle(ctx, draft, nil)

	active, err := db.ListCategories(ctx, true)
	if err != nil {
		t.Fatalf("ListCategories() error = %v", err)
	}
	if len(active) != 2 || active[0].Name != "Arts" || active[1].Name != "Tech" {
		t.Fatalf("active = %+v", active)
	}
	if active[1].NewsCount != 1 {
		t.Errorf("Tech news_count = %d, want 1 (drafts excluded)", active[1].NewsCount)
	}
	if active[0].ColorCode != "#000000" {
		t.Errorf("ColorCode default = %q", active[0].ColorCode)
	}

	got, err := db.GetCategoryBySlug(ctx, "hidden")
	if err != nil || got.IsActive {
		t.Errorf("GetCategoryBySlug(hidden) = %+v, %v", got, err)
	}

	dup := &model.Category{Name: "Tech", Slug: "tech-2"}
	if err := db.CreateCategory(ctx, dup); !errors.Is(err, apperror.ErrConflict) {
		t.Errorf("duplicate name error = %v, want conflict", err)
	}
}

func TestFindOrCreateTag_Idempotent(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	first, err := db.findOrCreateTag(ctx, db.conn, "Go", "go")
	if err != nil {
		t.Fatalf("findOrCreateTag() error = %v", err)
	}
	second, err := db.findOrCreateTag(ctx, db.conn, "Go", "go")
	if err != nil {
		t.Fatalf("second findOrCreateTag() error = %v", err)
	}
	if first.ID != second.ID {
		t.Errorf("ids differ: %s vs %s", first.ID, second.ID)
	}

	// Same slug, different name: gets its own tag with a derived slug.
	lower, err := db.findOrCreateTag(ctx, db.conn, "go", "go")
	if err != nil {
		t.Fatalf("findOrCreateTag(go) error = %v", err)
	}
	if lower.ID == first.ID || lower.Slug == "go" {
		t.Errorf("lower = %+v", lower)
	}
}

func TestToggleLike_TwiceRestoresState(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	author := createTestUser(t, db, "alice")
	reader := createTestUser(t, db, "bob")
	a := createTestArticle(t, db, author, "liked", time.Now().UTC(), nil)

	res, err := db.ToggleLike(ctx, reader.ID, a.ID)
	if err != nil {
		t.Fatalf("ToggleLike() error = %v", err)
	}
	if !res.Created || res.LikeCount != 1 {
		t.Errorf("first toggle = %+v, want created with count 1", res)
	}

	got, _ := db.GetArticleByID(ctx, a.ID, reader.ID)
	if !got.IsLiked || got.IsBookmarked {
		t.Errorf("viewer flags = liked %v, bookmarked %v", got.IsLiked, got.IsBookmarked)
	}

	res, err = db.ToggleLike(ctx, reader.ID, a.ID)
	if err != nil {
		t.Fatalf("second ToggleLike() error = %v", err)
	}
	if res.Created || res.LikeCount != 0 {
		t.Errorf("second toggle = %+v, want removed with count 0", res)
	}
}

func TestToggleLike_CountMatchesRows(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	author := createTestUser(t, db, "alice")
	a := createTestArticle(t, db, author, "busy", time.Now().UTC(), nil)

	var readers []*model.User
	for _, name := range []string{"r1", "r2", "r3", "r4"} {
		readers = append(readers, createTestUser(t, db, name))
	}

	// Each reader toggles three times (ends liked); run concurrently.
	var wg sync.WaitGroup
	for _, r := range readers {
		wg.Add(1)
		go func(userID string) {
			defer wg.Done()
			for range 3 {
				if _, err := db.ToggleLike(ctx, userID, a.ID); err != nil {
					t.Errorf("ToggleLike() error = %v", err)
				}
			}
		}(r.ID)
	}
	wg.Wait()

	var rows int
	db.conn.QueryRow(`SELECT COUNT(*) FROM likes WHERE article_id = ?`, a.ID).Scan(&rows)
	got, _ := db.GetArticleByID(ctx, a.ID, "")
	if rows != 4 || got.LikeCount != 4 {
		t.Errorf("rows = %d, like_count = %d, want 4 and 4", rows, got.LikeCount)
	}
}

func TestToggleBookmark_AndList(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	author := createTestUser(t, db, "alice")
	reader := createTestUser(t, db, "bob")
	a := createTestArticle(t, db, author, "saved", time.Now().UTC(), nil)

	res, err := db.ToggleBookmark(ctx, reader.ID, a.ID)
	if err != nil || !res.Created {
		t.Fatalf("ToggleBookmark() = %+v, %v", res, err)
	}

	list, total, err := db.ListBookmarks(ctx, reader.ID, repository.ListOptions{})
	if err != nil {
		t.Fatalf("ListBookmarks() error = %v", err)
	}
	if total != 1 || list[0].ArticleSlug != "saved" {
		t.Errorf("bookmarks = %+v", list)
	}

	res, _ = db.ToggleBookmark(ctx, reader.ID, a.ID)
	if res.Created {
		t.Error("second toggle should remove the bookmark")
	}
	_, total, _ = db.ListBookmarks(ctx, reader.ID, repository.ListOptions{})
	if total != 0 {
		t.Errorf("total after removal = %d", total)
	}
}

func TestComments(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	author := createTestUser(t, db, "alice")
	reader := createTestUser(t, db, "bob")
	a := createTestArticle(t, db, author, "discussed", time.Now().UTC(), nil)

	c := &model.Comment{UserID: reader.ID, ArticleID: a.ID, Content: "first"}
	if err := db.CreateComment(ctx, c); err != nil {
		t.Fatalf("CreateComment() error = %v", err)
	}
	if c.UserName != "bob" {
		t.Errorf("UserName = %q", c.UserName)
	}

	c.Content = "edited"
	if err := db.UpdateComment(ctx, c); err != nil {
		t.Fatalf("UpdateComment() error = %v", err)
	}
	got, _ := db.GetComment(ctx, c.ID)
	if got.Content != "edited" {
		t.Errorf("Content = %q", got.Content)
	}

	list, total, _ := db.ListComments(ctx, a.ID, repository.ListOptions{})
	if total != 1 || len(list) != 1 {
		t.Errorf("comments = %v", list)
	}
	article, _ := db.GetArticleByID(ctx, a.ID, "")
	if article.CommentCount != 1 {
		t.Errorf("CommentCount = %d", article.CommentCount)
	}

	if err := db.DeleteComment(ctx, c.ID); err != nil {
		t.Fatalf("DeleteComment() error = %v", err)
	}
	if _, err := db.GetComment(ctx, c.ID); !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("GetComment() after delete error = %v", err)
	}
}

func TestRecordView_InsertIfAbsent(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	author := createTestUser(t, db, "alice")
	reader := createTestUser(t, db, "bob")
	a := createTestArticle(t, db, author, "read", time.Now().UTC(), nil)

	created, err := db.RecordView(ctx, reader.ID, a.ID)
	if err != nil || !created {
		t.Fatalf("first RecordView() = %v, %v", created, err)
	}
	first, _, _ := db.ListHistory(ctx, reader.ID, repository.ListOptions{})

	for range 3 {
		created, err = db.RecordView(ctx, reader.ID, a.ID)
		if err != nil || created {
			t.Fatalf("repeat RecordView() = %v, %v", created, err)
		}
	}

	entries, total, err := db.ListHistory(ctx, reader.ID, repository.ListOptions{})
	if err != nil {
		t.Fatalf("ListHistory() error = %v", err)
	}
	if total != 1 || !entries[0].ViewedAt.Equal(first[0].ViewedAt) {
		t.Errorf("history = %+v, want one entry with the first viewed_at", entries)
	}

	viewed, _ := db.ViewedArticleIDs(ctx, reader.ID)
	if len(viewed) != 1 || viewed[0] != a.ID {
		t.Errorf("ViewedArticleIDs() = %v", viewed)
	}

	n, err := db.ClearHistory(ctx, reader.ID)
	if err != nil || n != 1 {
		t.Errorf("ClearHistory() = %d, %v", n, err)
	}
}
