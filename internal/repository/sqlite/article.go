package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/xid"
	"github.com/sakif/news-api/internal/apperror"
	"github.com/sakif/news-api/internal/model"
	"github.com/sakif/news-api/internal/repository"
)

var _ repository.ArticleRepository = (*DB)(nil)

// querier is the subset shared by *sql.DB and *sql.Tx, so helpers can run
// inside or outside a transaction.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// articleSelect needs the viewer id twice (is_liked, is_bookmarked) as its
// first two arguments. An empty viewer matches no row, so both come back false.
const articleSelect = `
	SELECT a.id, a.title, a.slug, a.content, a.author_id, u.username,
	       a.category_id, COALESCE(c.name, ''), a.status, a.published_date,
	       a.view_count, a.like_count,
	       EXISTS (SELECT 1 FROM likes l WHERE l.article_id = a.id AND l.user_id = ?),
	       EXISTS (SELECT 1 FROM bookmarks b WHERE b.article_id = a.id AND b.user_id = ?),
	       (SELECT COUNT(*) FROM comments cm WHERE cm.article_id = a.id),
	       a.created_at, a.updated_at
	FROM articles a
	JOIN users u ON u.id = a.author_id
	LEFT JOIN categories c ON c.id = a.category_id`

const articleFrom = `
	FROM articles a
	JOIN users u ON u.id = a.author_id
	LEFT JOIN categories c ON c.id = a.category_id`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanArticle(row rowScanner) (model.Article, error) {
	var (
		a         model.Article
		category  sql.NullString
		status    string
		published sql.NullTime
	)
	err := row.Scan(
		&a.ID, &a.Title, &a.Slug, &a.Content, &a.AuthorID, &a.AuthorName,
		&category, &a.CategoryName, &status, &published,
		&a.ViewCount, &a.LikeCount,
		&a.IsLiked, &a.IsBookmarked, &a.CommentCount,
		&a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		return a, err
	}
	if category.Valid {
		a.CategoryID = &category.String
	}
	a.Status = model.Status(status)
	a.PublishedDate = timePtr(published)
	a.Tags = []model.Tag{}
	return a, nil
}

// CreateArticle inserts the article and links tags, creating missing tags
// and bumping each one's usage_count, in one transaction. A failed insert
// leaves no new tags behind.
func (db *DB) CreateArticle(ctx context.Context, a *model.Article, tags []model.Tag) error {
	now := db.now()
	a.ID = xid.New().String()
	a.CreatedAt = now
	a.UpdatedAt = now
	if a.Status == "" {
		a.Status = model.StatusDraft
	}

	return db.withTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO articles (id, title, slug, content, author_id, category_id, status,
			                       published_date, view_count, like_count, created_at, updated_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, 0, 0, ?, ?)`,
			a.ID, a.Title, a.Slug, a.Content, a.AuthorID, a.CategoryID, string(a.Status),
			nullTime(a.PublishedDate), a.CreatedAt, a.UpdatedAt,
		)
		if err != nil {
			if isUniqueViolation(err) {
				return apperror.ConflictField("slug", "an article with this slug already exists")
			}
			return fmt.Errorf("sqlite: creating article: %w", err)
		}
		return db.tagArticle(ctx, tx, a.ID, tags)
	})
}

func (db *DB) GetArticleBySlug(ctx context.Context, slug, viewerID string) (*model.Article, error) {
	return db.getArticle(ctx, `a.slug = ?`, slug, viewerID)
}

func (db *DB) GetArticleByID(ctx context.Context, id, viewerID string) (*model.Article, error) {
	return db.getArticle(ctx, `a.id = ?`, id, viewerID)
}

func (db *DB) getArticle(ctx context.Context, where, key, viewerID string) (*model.Article, error) {
	a, err := scanArticle(db.conn.QueryRowContext(ctx,
		articleSelect+` WHERE `+where, viewerID, viewerID, key))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("article", key)
		}
		return nil, fmt.Errorf("sqlite: getting article %s: %w", key, err)
	}

	list := []model.Article{a}
	if err := loadTags(ctx, db.conn, list); err != nil {
		return nil, err
	}
	return &list[0], nil
}

// UpdateArticle saves title, slug, content, category, status and
// published_date. A non-nil tags replaces the tag set, adjusting usage counts.
func (db *DB) UpdateArticle(ctx context.Context, a *model.Article, tags []model.Tag) error {
	a.UpdatedAt = db.now()

	return db.withTx(ctx, func(tx *sql.Tx) error {
		result, err := tx.ExecContext(ctx,
			`UPDATE articles
			 SET title = ?, slug = ?, content = ?, category_id = ?, status = ?,
			     published_date = ?, updated_at = ?
			 WHERE id = ?`,
			a.Title, a.Slug, a.Content, a.CategoryID, string(a.Status),
			nullTime(a.PublishedDate), a.UpdatedAt, a.ID,
		)
		if err != nil {
			if isUniqueViolation(err) {
				return apperror.ConflictField("slug", "an article with this slug already exists")
			}
			return fmt.Errorf("sqlite: updating article %s: %w", a.ID, err)
		}
		if err := expectAffected(result, "article", a.ID); err != nil {
			return err
		}
		if tags == nil {
			return nil
		}
		if err := unlinkTags(ctx, tx, a.ID); err != nil {
			return err
		}
		return db.tagArticle(ctx, tx, a.ID, tags)
	})
}

// tagArticle finds or creates each tag by name and links it to the article.
func (db *DB) tagArticle(ctx context.Context, q querier, articleID string, tags []model.Tag) error {
	tagIDs := make([]string, 0, len(tags))
	for _, t := range tags {
		tag, err := db.findOrCreateTag(ctx, q, t.Name, t.Slug)
		if err != nil {
			return err
		}
		tagIDs = append(tagIDs, tag.ID)
	}
	return linkTags(ctx, q, articleID, tagIDs)
}

// DeleteArticle removes the article. Likes, bookmarks, comments, history and
// tag links go with it through ON DELETE CASCADE; tag usage counts are
// released first.
func (db *DB) DeleteArticle(ctx context.Context, id string) error {
	return db.withTx(ctx, func(tx *sql.Tx) error {
		if err := unlinkTags(ctx, tx, id); err != nil {
			return err
		}
		result, err := tx.ExecContext(ctx, `DELETE FROM articles WHERE id = ?`, id)
		if err != nil {
			return fmt.Errorf("sqlite: deleting article %s: %w", id, err)
		}
		return expectAffected(result, "article", id)
	})
}

// linkTags attaches tags to an article. Duplicate ids are ignored.
func linkTags(ctx context.Context, q querier, articleID string, tagIDs []string) error {
	for _, tagID := range tagIDs {
		result, err := q.ExecContext(ctx,
			`INSERT OR IGNORE INTO article_tags (article_id, tag_id) VALUES (?, ?)`,
			articleID, tagID)
		if err != nil {
			return fmt.Errorf("sqlite: tagging article %s: %w", articleID, err)
		}
		if n, _ := result.RowsAffected(); n == 0 {
			continue
		}
		if _, err := q.ExecContext(ctx,
			`UPDATE tags SET usage_count = usage_count + 1 WHERE id = ?`, tagID); err != nil {
			return fmt.Errorf("sqlite: counting tag %s: %w", tagID, err)
		}
	}
	return nil
}

// unlinkTags detaches every tag from an article and releases its usage counts.
func unlinkTags(ctx context.Context, q querier, articleID string) error {
	_, err := q.ExecContext(ctx,
		`UPDATE tags SET usage_count = MAX(usage_count - 1, 0)
		 WHERE id IN (SELECT tag_id FROM article_tags WHERE article_id = ?)`, articleID)
	if err != nil {
		return fmt.Errorf("sqlite: releasing tags of %s: %w", articleID, err)
	}
	if _, err := q.ExecContext(ctx,
		`DELETE FROM article_tags WHERE article_id = ?`, articleID); err != nil {
		return fmt.Errorf("sqlite: untagging article %s: %w", articleID, err)
	}
	return nil
}

// loadTags fills Tags for every article with a single query.
func loadTags(ctx context.Context, q querier, articles []model.Article) error {
	if len(articles) == 0 {
		return nil
	}
	index := make(map[string]int, len(articles))
	ids := make([]string, len(articles))
	for i := range articles {
		index[articles[i].ID] = i
		ids[i] = articles[i].ID
		if articles[i].Tags == nil {
			articles[i].Tags = []model.Tag{}
		}
	}

	rows, err := q.QueryContext(ctx,
		`SELECT at.article_id, t.id, t.name, t.slug, t.usage_count, t.created_at
		 FROM article_tags at
		 JOIN tags t ON t.id = at.tag_id
		 WHERE at.article_id IN (`+placeholders(len(ids))+`)
		 ORDER BY t.name`, stringArgs(ids)...)
	if err != nil {
		return fmt.Errorf("sqlite: loading tags: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			articleID string
			t         model.Tag
		)
		if err := rows.Scan(&articleID, &t.ID, &t.Name, &t.Slug, &t.UsageCount, &t.CreatedAt); err != nil {
			return fmt.Errorf("sqlite: scanning tag: %w", err)
		}
		i := index[articleID]
		articles[i].Tags = append(articles[i].Tags, t)
	}
	return rows.Err()
}

var articleOrderings = map[string]string{
	"":                          `a.published_date DESC, a.created_at DESC`,
	repository.OrderNewest:      `a.published_date DESC, a.created_at DESC`,
	repository.OrderOldest:      `a.published_date ASC, a.created_at ASC`,
	repository.OrderMostViewed:  `a.view_count DESC, a.published_date DESC`,
	repository.OrderLeastViewed: `a.view_count ASC, a.published_date DESC`,
	repository.OrderMostLiked:   `a.like_count DESC, a.published_date DESC`,
	repository.OrderLeastLiked:  `a.like_count ASC, a.published_date DESC`,
	repository.OrderCreatedDesc: `a.created_at DESC`,
	repository.OrderCreatedAsc:  `a.created_at ASC`,
	repository.OrderPopular:     `a.view_count DESC, a.like_count DESC, a.published_date DESC`,
}

// ListArticles returns one page of articles matching f plus the total number
// of matches.
func (db *DB) ListArticles(ctx context.Context, f repository.ArticleFilter) ([]model.Article, int, error) {
	if f.Related && len(f.CategoryIDs) == 0 && len(f.TagIDs) == 0 {
		return []model.Article{}, 0, nil
	}

	where, args := articleWhere(f)
	order, ok := articleOrderings[f.Ordering]
	if !ok {
		return nil, 0, apperror.ValidationFailed("ordering", fmt.Sprintf("unknown ordering %q", f.Ordering))
	}
	limit, offset := pageBounds(f.ListOptions)

	var total int
	if err := db.conn.QueryRowContext(ctx,
		`SELECT COUNT(*) `+articleFrom+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("sqlite: counting articles: %w", err)
	}

	queryArgs := append([]any{f.ViewerID, f.ViewerID}, args...)
	queryArgs = append(queryArgs, limit, offset)

	rows, err := db.conn.QueryContext(ctx,
		articleSelect+where+` ORDER BY `+order+`, a.id LIMIT ? OFFSET ?`, queryArgs...)
	if err != nil {
		return nil, 0, fmt.Errorf("sqlite: listing articles: %w", err)
	}
	defer rows.Close()

	articles := make([]model.Article, 0, limit)
	for rows.Next() {
		a, err := scanArticle(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("sqlite: scanning article: %w", err)
		}
		articles = append(articles, a)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("sqlite: iterating articles: %w", err)
	}
	rows.Close()

	if err := loadTags(ctx, db.conn, articles); err != nil {
		return nil, 0, err
	}
	return articles, total, nil
}

// articleWhere builds the WHERE clause (with a leading space) for f.
func articleWhere(f repository.ArticleFilter) (string, []any) {
	var (
		conds []string
		args  []any
	)
	add := func(cond string, vals ...any) {
		conds = append(conds, cond)
		args = append(args, vals...)
	}

	if f.Status != "" {
		add(`a.status = ?`, string(f.Status))
	}
	if f.AuthorID != "" {
		add(`a.author_id = ?`, f.AuthorID)
	}
	if f.CategoryID != "" {
		add(`a.category_id = ?`, f.CategoryID)
	}
	if f.Search != "" {
		like := "%" + escapeLike(f.Search) + "%"
		add(`(a.title LIKE ? ESCAPE '\' OR a.content LIKE ? ESCAPE '\' OR u.username LIKE ? ESCAPE '\')`,
			like, like, like)
	}
	if f.From != nil {
		add(`a.published_date >= ?`, f.From.UTC())
	}
	if f.To != nil {
		add(`a.published_date < ?`, f.To.UTC())
	}
	if f.Related {
		var related []string
		if len(f.CategoryIDs) > 0 {
			related = append(related, `a.category_id IN (`+placeholders(len(f.CategoryIDs))+`)`)
			args = append(args, stringArgs(f.CategoryIDs)...)
		}
		if len(f.TagIDs) > 0 {
			related = append(related, `EXISTS (SELECT 1 FROM article_tags at
				WHERE at.article_id = a.id AND at.tag_id IN (`+placeholders(len(f.TagIDs))+`))`)
			args = append(args, stringArgs(f.TagIDs)...)
		}
		conds = append(conds, `(`+strings.Join(related, ` OR `)+`)`)
	}
	if len(f.ExcludeIDs) > 0 {
		add(`a.id NOT IN (`+placeholders(len(f.ExcludeIDs))+`)`, stringArgs(f.ExcludeIDs)...)
	}
	if f.LikedBy != "" {
		add(`EXISTS (SELECT 1 FROM likes lk WHERE lk.article_id = a.id AND lk.user_id = ?)`, f.LikedBy)
	}

	if len(conds) == 0 {
		return "", nil
	}
	return ` WHERE ` + strings.Join(conds, ` AND `), args
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

func (db *DB) ArticleSlugExists(ctx context.Context, slug string) (bool, error) {
	return db.exists(ctx, `SELECT COUNT(*) FROM articles WHERE slug = ?`, slug)
}

// IncrementViewCount bumps view_count with a single UPDATE; concurrent readers
// can't lose each other's increments.
func (db *DB) IncrementViewCount(ctx context.Context, id string) error {
	result, err := db.conn.ExecContext(ctx,
		`UPDATE articles SET view_count = view_count + 1 WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("sqlite: incrementing views of %s: %w", id, err)
	}
	return expectAffected(result, "article", id)
}

func (db *DB) ArticleTaxonomy(ctx context.Context, articleIDs []string) ([]string, []string, error) {
	if len(articleIDs) == 0 {
		return nil, nil, nil
	}
	args := stringArgs(articleIDs)

	categoryIDs, err := db.collectIDs(ctx,
		`SELECT DISTINCT category_id FROM articles
		 WHERE category_id IS NOT NULL AND id IN (`+placeholders(len(args))+`)`, args...)
	if err != nil {
		return nil, nil, fmt.Errorf("sqlite: collecting categories: %w", err)
	}
	tagIDs, err := db.collectIDs(ctx,
		`SELECT DISTINCT tag_id FROM article_tags
		 WHERE article_id IN (`+placeholders(len(args))+`)`, args...)
	if err != nil {
		return nil, nil, fmt.Errorf("sqlite: collecting tags: %w", err)
	}
	return categoryIDs, tagIDs, nil
}

// collectIDs runs a single-column query and returns the values.
func (db *DB) collectIDs(ctx context.Context, query string, args ...any) ([]string, error) {
	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
