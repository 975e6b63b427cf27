package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/rs/xid"
	"github.com/sakif/news-api/internal/apperror"
	"github.com/sakif/news-api/internal/model"
	"github.com/sakif/news-api/internal/repository"
)

var (
	_ repository.CategoryRepository = (*DB)(nil)
	_ repository.TagRepository      = (*DB)(nil)
)

// news_count only counts published articles: drafts are nobody's business.
const categorySelect = `
	SELECT c.id, c.name, c.description, c.slug, c.color_code, c.is_active, c.created_at,
	       (SELECT COUNT(*) FROM articles a WHERE a.category_id = c.id AND a.status = 'published')
	FROM categories c`

func (db *DB) CreateCategory(ctx context.Context, c *model.Category) error {
	c.ID = xid.New().String()
	c.CreatedAt = db.now()
	if c.ColorCode == "" {
		c.ColorCode = "#000000"
	}

	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO categories (id, name, description, slug, color_code, is_active, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.Name, c.Description, c.Slug, c.ColorCode, c.IsActive, c.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			col := uniqueColumn(err)
			return apperror.ConflictField(col, fmt.Sprintf("a category with this %s already exists", col))
		}
		return fmt.Errorf("sqlite: creating category %q: %w", c.Name, err)
	}
	return nil
}

func (db *DB) GetCategoryByID(ctx context.Context, id string) (*model.Category, error) {
	c, err := scanCategory(db.conn.QueryRowContext(ctx, categorySelect+` WHERE c.id = ?`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("category", id)
		}
		return nil, fmt.Errorf("sqlite: getting category %s: %w", id, err)
	}
	return c, nil
}

func (db *DB) GetCategoryBySlug(ctx context.Context, slug string) (*model.Category, error) {
	c, err := scanCategory(db.conn.QueryRowContext(ctx, categorySelect+` WHERE c.slug = ?`, slug))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("category", slug)
		}
		return nil, fmt.Errorf("sqlite: getting category %s: %w", slug, err)
	}
	return c, nil
}

// ListCategories returns categories ordered by name.
func (db *DB) ListCategories(ctx context.Context, activeOnly bool) ([]model.Category, error) {
	query := categorySelect
	if activeOnly {
		query += ` WHERE c.is_active = 1`
	}
	query += ` ORDER BY c.name`

	rows, err := db.conn.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing categories: %w", err)
	}
	defer rows.Close()

	categories := []model.Category{}
	for rows.Next() {
		var c model.Category
		if err := rows.Scan(&c.ID, &c.Name, &c.Description, &c.Slug, &c.ColorCode,
			&c.IsActive, &c.CreatedAt, &c.NewsCount); err != nil {
			return nil, fmt.Errorf("sqlite: scanning category: %w", err)
		}
		categories = append(categories, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating categories: %w", err)
	}
	return categories, nil
}

func (db *DB) CategorySlugExists(ctx context.Context, slug string) (bool, error) {
	return db.exists(ctx, `SELECT COUNT(*) FROM categories WHERE slug = ?`, slug)
}

func scanCategory(row *sql.Row) (*model.Category, error) {
	var c model.Category
	if err := row.Scan(&c.ID, &c.Name, &c.Description, &c.Slug, &c.ColorCode,
		&c.IsActive, &c.CreatedAt, &c.NewsCount); err != nil {
		return nil, err
	}
	return &c, nil
}

// findOrCreateTag returns the tag called name, inserting it on first use.
// It runs on q so article writes can create tags inside their transaction.
// usage_count is maintained by linkTags, not here.
//
// Two names can share a slug ("Go" and "go"). When the slug is taken by a
// different name, the new tag gets the slug with its id appended.
func (db *DB) findOrCreateTag(ctx context.Context, q querier, name, slug string) (*model.Tag, error) {
	t := model.Tag{ID: xid.New().String(), Name: name, Slug: slug, CreatedAt: db.now()}

	for _, s := range []string{slug, slug + "-" + t.ID} {
		_, err := q.ExecContext(ctx,
			`INSERT INTO tags (id, name, slug, usage_count, created_at)
			 VALUES (?, ?, ?, 0, ?)
			 ON CONFLICT DO NOTHING`,
			t.ID, name, s, t.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("sqlite: creating tag %q: %w", name, err)
		}

		err = q.QueryRowContext(ctx,
			`SELECT id, name, slug, usage_count, created_at FROM tags WHERE name = ?`, name,
		).Scan(&t.ID, &t.Name, &t.Slug, &t.UsageCount, &t.CreatedAt)
		if err == nil {
			return &t, nil
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("sqlite: reading tag %q: %w", name, err)
		}
	}
	return nil, apperror.ConflictField("tags", fmt.Sprintf("could not create tag %q", name))
}

// ListTags orders by popularity, then name.
func (db *DB) ListTags(ctx context.Context, opts repository.ListOptions) ([]model.Tag, error) {
	limit, offset := pageBounds(opts)

	rows, err := db.conn.QueryContext(ctx,
		`SELECT id, name, slug, usage_count, created_at FROM tags
		 ORDER BY usage_count DESC, name
		 LIMIT ? OFFSET ?`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing tags: %w", err)
	}
	defer rows.Close()

	tags := make([]model.Tag, 0, limit)
	for rows.Next() {
		var t model.Tag
		if err := rows.Scan(&t.ID, &t.Name, &t.Slug, &t.UsageCount, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("sqlite: scanning tag: %w", err)
		}
		tags = append(tags, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating tags: %w", err)
	}
	return tags, nil
}

// exists runs a COUNT(*) query and reports whether it found anything.
func (db *DB) exists(ctx context.Context, query string, args ...any) (bool, error) {
	var n int
	if err := db.conn.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return false, fmt.Errorf("sqlite: existence check: %w", err)
	}
	return n > 0, nil
}
