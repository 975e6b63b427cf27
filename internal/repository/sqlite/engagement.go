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
	_ repository.EngagementRepository = (*DB)(nil)
	_ repository.CommentRepository    = (*DB)(nil)
	_ repository.HistoryRepository    = (*DB)(nil)
)

// ToggleLike flips the user's like on an article and recomputes like_count
// from the likes table inside the same transaction.
func (db *DB) ToggleLike(ctx context.Context, userID, articleID string) (model.ToggleResult, error) {
	var res model.ToggleResult
	err := db.withTx(ctx, func(tx *sql.Tx) error {
		created, err := db.toggle(ctx, tx, "likes", userID, articleID)
		if err != nil {
			return err
		}
		res.Created = created

		if _, err := tx.ExecContext(ctx,
			`UPDATE articles
			 SET like_count = (SELECT COUNT(*) FROM likes WHERE article_id = ?)
			 WHERE id = ?`, articleID, articleID); err != nil {
			return fmt.Errorf("sqlite: recounting likes of %s: %w", articleID, err)
		}
		return tx.QueryRowContext(ctx,
			`SELECT like_count FROM articles WHERE id = ?`, articleID).Scan(&res.LikeCount)
	})
	if err != nil {
		return model.ToggleResult{}, err
	}
	return res, nil
}

// ToggleBookmark flips the user's bookmark on an article.
func (db *DB) ToggleBookmark(ctx context.Context, userID, articleID string) (model.ToggleResult, error) {
	var res model.ToggleResult
	err := db.withTx(ctx, func(tx *sql.Tx) error {
		created, err := db.toggle(ctx, tx, "bookmarks", userID, articleID)
		res.Created = created
		return err
	})
	if err != nil {
		return model.ToggleResult{}, err
	}
	return res, nil
}

// toggle deletes the (user, article) row if present, otherwise inserts it.
// The UNIQUE(user_id, article_id) constraint plus INSERT OR IGNORE means a
// racing duplicate insert is a no-op rather than a second row.
// table is one of our own constants, never user input.
func (db *DB) toggle(ctx context.Context, tx *sql.Tx, table, userID, articleID string) (bool, error) {
	result, err := tx.ExecContext(ctx,
		`DELETE FROM `+table+` WHERE user_id = ? AND article_id = ?`, userID, articleID)
	if err != nil {
		return false, fmt.Errorf("sqlite: removing from %s: %w", table, err)
	}
	removed, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	if removed > 0 {
		return false, nil
	}

	result, err = tx.ExecContext(ctx,
		`INSERT OR IGNORE INTO `+table+` (id, user_id, article_id, created_at) VALUES (?, ?, ?, ?)`,
		xid.New().String(), userID, articleID, db.now())
	if err != nil {
		return false, fmt.Errorf("sqlite: adding to %s: %w", table, err)
	}
	added, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	return added == 1, nil
}

// ListBookmarks returns the user's bookmarks, newest first.
func (db *DB) ListBookmarks(ctx context.Context, userID string, opts repository.ListOptions) ([]model.Bookmark, int, error) {
	limit, offset := pageBounds(opts)

	var total int
	if err := db.conn.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM bookmarks WHERE user_id = ?`, userID).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("sqlite: counting bookmarks: %w", err)
	}

	rows, err := db.conn.QueryContext(ctx,
		`SELECT b.id, b.user_id, b.article_id, a.title, a.slug, b.created_at
		 FROM bookmarks b JOIN articles a ON a.id = b.article_id
		 WHERE b.user_id = ?
		 ORDER BY b.created_at DESC, b.id
		 LIMIT ? OFFSET ?`, userID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("sqlite: listing bookmarks: %w", err)
	}
	defer rows.Close()

	bookmarks := make([]model.Bookmark, 0, limit)
	for rows.Next() {
		var b model.Bookmark
		if err := rows.Scan(&b.ID, &b.UserID, &b.ArticleID, &b.ArticleTitle, &b.ArticleSlug, &b.CreatedAt); err != nil {
			return nil, 0, fmt.Errorf("sqlite: scanning bookmark: %w", err)
		}
		bookmarks = append(bookmarks, b)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("sqlite: iterating bookmarks: %w", err)
	}
	return bookmarks, total, nil
}

// =========================================================================
// COMMENTS
// =========================================================================

const commentSelect = `
	SELECT cm.id, cm.user_id, u.username, cm.article_id, cm.content, cm.created_at, cm.updated_at
	FROM comments cm JOIN users u ON u.id = cm.user_id`

func scanComment(row rowScanner) (model.Comment, error) {
	var c model.Comment
	err := row.Scan(&c.ID, &c.UserID, &c.UserName, &c.ArticleID, &c.Content, &c.CreatedAt, &c.UpdatedAt)
	return c, err
}

func (db *DB) CreateComment(ctx context.Context, c *model.Comment) error {
	now := db.now()
	c.ID = xid.New().String()
	c.CreatedAt = now
	c.UpdatedAt = now

	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO comments (id, user_id, article_id, content, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		c.ID, c.UserID, c.ArticleID, c.Content, c.CreatedAt, c.UpdatedAt)
	if err != nil {
		return fmt.Errorf("sqlite: creating comment: %w", err)
	}

	return db.conn.QueryRowContext(ctx,
		`SELECT username FROM users WHERE id = ?`, c.UserID).Scan(&c.UserName)
}

func (db *DB) GetComment(ctx context.Context, id string) (*model.Comment, error) {
	c, err := scanComment(db.conn.QueryRowContext(ctx, commentSelect+` WHERE cm.id = ?`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("comment", id)
		}
		return nil, fmt.Errorf("sqlite: getting comment %s: %w", id, err)
	}
	return &c, nil
}

func (db *DB) UpdateComment(ctx context.Context, c *model.Comment) error {
	c.UpdatedAt = db.now()
	result, err := db.conn.ExecContext(ctx,
		`UPDATE comments SET content = ?, updated_at = ? WHERE id = ?`,
		c.Content, c.UpdatedAt, c.ID)
	if err != nil {
		return fmt.Errorf("sqlite: updating comment %s: %w", c.ID, err)
	}
	return expectAffected(result, "comment", c.ID)
}

func (db *DB) DeleteComment(ctx context.Context, id string) error {
	result, err := db.conn.ExecContext(ctx, `DELETE FROM comments WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("sqlite: deleting comment %s: %w", id, err)
	}
	return expectAffected(result, "comment", id)
}

// ListComments returns an article's comments, newest first.
func (db *DB) ListComments(ctx context.Context, articleID string, opts repository.ListOptions) ([]model.Comment, int, error) {
	limit, offset := pageBounds(opts)

	var total int
	if err := db.conn.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM comments WHERE article_id = ?`, articleID).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("sqlite: counting comments: %w", err)
	}

	rows, err := db.conn.QueryContext(ctx,
		commentSelect+` WHERE cm.article_id = ?
		 ORDER BY cm.created_at DESC, cm.id DESC
		 LIMIT ? OFFSET ?`, articleID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("sqlite: listing comments: %w", err)
	}
	defer rows.Close()

	comments := make([]model.Comment, 0, limit)
	for rows.Next() {
		c, err := scanComment(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("sqlite: scanning comment: %w", err)
		}
		comments = append(comments, c)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("sqlite: iterating comments: %w", err)
	}
	return comments, total, nil
}

// =========================================================================
// READING HISTORY
// =========================================================================

// RecordView stores the first view of an article by a user. Later views
// leave the original viewed_at alone.
func (db *DB) RecordView(ctx context.Context, userID, articleID string) (bool, error) {
	result, err := db.conn.ExecContext(ctx,
		`INSERT OR IGNORE INTO reading_history (id, user_id, article_id, viewed_at)
		 VALUES (?, ?, ?, ?)`,
		xid.New().String(), userID, articleID, db.now())
	if err != nil {
		return false, fmt.Errorf("sqlite: recording view: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	return n == 1, nil
}

func (db *DB) ViewedArticleIDs(ctx context.Context, userID string) ([]string, error) {
	ids, err := db.collectIDs(ctx,
		`SELECT article_id FROM reading_history WHERE user_id = ?`, userID)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing viewed articles: %w", err)
	}
	return ids, nil
}

// ListHistory returns the user's reading history, most recent first.
func (db *DB) ListHistory(ctx context.Context, userID string, opts repository.ListOptions) ([]model.HistoryEntry, int, error) {
	limit, offset := pageBounds(opts)

	var total int
	if err := db.conn.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM reading_history WHERE user_id = ?`, userID).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("sqlite: counting history: %w", err)
	}

	rows, err := db.conn.QueryContext(ctx,
		`SELECT h.id, h.article_id, a.title, a.slug, h.viewed_at
		 FROM reading_history h JOIN articles a ON a.id = h.article_id
		 WHERE h.user_id = ?
		 ORDER BY h.viewed_at DESC, h.id DESC
		 LIMIT ? OFFSET ?`, userID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("sqlite: listing history: %w", err)
	}
	defer rows.Close()

	entries := make([]model.HistoryEntry, 0, limit)
	for rows.Next() {
		var h model.HistoryEntry
		if err := rows.Scan(&h.ID, &h.ArticleID, &h.ArticleTitle, &h.ArticleSlug, &h.ViewedAt); err != nil {
			return nil, 0, fmt.Errorf("sqlite: scanning history: %w", err)
		}
		entries = append(entries, h)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("sqlite: iterating history: %w", err)
	}
	return entries, total, nil
}

func (db *DB) ClearHistory(ctx context.Context, userID string) (int64, error) {
	result, err := db.conn.ExecContext(ctx, `DELETE FROM reading_history WHERE user_id = ?`, userID)
	if err != nil {
		return 0, fmt.Errorf("sqlite: clearing history: %w", err)
	}
	return result.RowsAffected()
}
