// Package sqlite implements the repository interfaces using SQLite as the storage backend.
//
// WHY modernc.org/sqlite INSTEAD OF github.com/mattn/go-sqlite3?
// mattn/go-sqlite3 uses CGo, which means you need a C compiler installed and
// cross-compilation becomes painful. modernc.org/sqlite is a pure Go translation
// of the SQLite C code, so `go build` is all you need.
//
// CONNECTION SETTINGS:
// PRAGMAs are per-connection in SQLite, and sql.DB is a pool of connections.
// Running `PRAGMA foreign_keys=ON` once would only configure whichever connection
// happened to execute it. Instead we pass them in the DSN as `_pragma=...` query
// parameters, which the driver applies to every new connection.
//
// TIMES:
// Every timestamp is written as UTC time.Time. The driver stores it as text in a
// fixed layout, so comparisons and ORDER BY on those columns sort chronologically.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/sakif/news-api/internal/repository"

	// Registers the "sqlite" driver with database/sql.
	_ "modernc.org/sqlite"
)

// DB wraps a sql.DB connection pool and implements every repository interface
// in internal/repository.
type DB struct {
	conn *sql.DB
	now  func() time.Time
}

// New opens the database at dbPath, configures it and runs migrations.
//
// dbPath examples:
//   - "data/news.db" → file-based database (persistent)
//   - ":memory:"     → in-memory database (tests; lost on close)
func New(dbPath string) (*DB, error) {
	conn, err := sql.Open("sqlite", dsn(dbPath))
	if err != nil {
		return nil, fmt.Errorf("sqlite: opening database: %w", err)
	}

	// Each connection to ":memory:" is its own empty database, so the pool
	// must never grow past one.
	if isMemory(dbPath) {
		conn.SetMaxOpenConns(1)
	}

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: pinging database: %w", err)
	}

	db := &DB{conn: conn, now: func() time.Time { return time.Now().UTC() }}

	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: running migrations: %w", err)
	}

	return db, nil
}

func isMemory(dbPath string) bool {
	return dbPath == ":memory:" || strings.Contains(dbPath, "mode=memory")
}

// dsn appends the per-connection pragmas to dbPath.
//
//   - foreign_keys(1): SQLite ships with FK enforcement off; cascades depend on it.
//   - busy_timeout(5000): wait up to 5s for a lock instead of failing with SQLITE_BUSY.
//   - journal_mode(WAL): readers don't block the writer (file databases only).
//   - _txlock=immediate: transactions take the write lock up front, so two
//     concurrent toggles queue instead of deadlocking on lock upgrade.
func dsn(dbPath string) string {
	params := []string{
		"_pragma=foreign_keys(1)",
		"_pragma=busy_timeout(5000)",
	}
	if !isMemory(dbPath) {
		params = append(params, "_pragma=journal_mode(WAL)", "_txlock=immediate")
	}

	sep := "?"
	if strings.Contains(dbPath, "?") {
		sep = "&"
	}
	return dbPath + sep + strings.Join(params, "&")
}

// Close closes the database connection pool.
func (db *DB) Close() error {
	return db.conn.Close()
}

// Ping reports whether the database is reachable. Used by the health check.
func (db *DB) Ping(ctx context.Context) error {
	return db.conn.PingContext(ctx)
}

// migrate creates every table. CREATE TABLE IF NOT EXISTS makes it safe to run
// on every start.
func (db *DB) migrate() error {
	steps := []struct {
		name string
		sql  string
	}{
		{"users", `
			CREATE TABLE IF NOT EXISTS users (
				id                TEXT PRIMARY KEY,
				email             TEXT NOT NULL UNIQUE,
				username          TEXT NOT NULL UNIQUE,
				first_name        TEXT NOT NULL DEFAULT '',
				last_name         TEXT NOT NULL DEFAULT '',
				password_hash     TEXT NOT NULL,
				is_active         INTEGER NOT NULL DEFAULT 1,
				is_email_verified INTEGER NOT NULL DEFAULT 0,
				created_at        DATETIME NOT NULL,
				updated_at        DATETIME NOT NULL
			);`},
		{"verification_tokens", `
			CREATE TABLE IF NOT EXISTS verification_tokens (
				id         TEXT PRIMARY KEY,
				token      TEXT NOT NULL UNIQUE,
				user_id    TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
				created_at DATETIME NOT NULL,
				expires_at DATETIME NOT NULL,
				is_used    INTEGER NOT NULL DEFAULT 0
			);
			CREATE INDEX IF NOT EXISTS idx_verification_tokens_user ON verification_tokens(user_id);`},
		{"revoked_tokens", `
			CREATE TABLE IF NOT EXISTS revoked_tokens (
				jti        TEXT PRIMARY KEY,
				user_id    TEXT NOT NULL,
				expires_at DATETIME NOT NULL,
				revoked_at DATETIME NOT NULL
			);`},
		{"profiles", `
			CREATE TABLE IF NOT EXISTS profiles (
				user_id         TEXT PRIMARY KEY REFERENCES users(id) ON DELETE CASCADE,
				profile_picture TEXT NOT NULL DEFAULT '',
				full_name       TEXT NOT NULL DEFAULT '',
				bio             TEXT NOT NULL DEFAULT '',
				date_of_birth   DATETIME,
				phone_number    TEXT NOT NULL DEFAULT '',
				address         TEXT NOT NULL DEFAULT '',
				created_at      DATETIME NOT NULL,
				updated_at      DATETIME NOT NULL
			);`},
		{"categories", `
			CREATE TABLE IF NOT EXISTS categories (
				id          TEXT PRIMARY KEY,
				name        TEXT NOT NULL UNIQUE,
				description TEXT NOT NULL DEFAULT '',
				slug        TEXT NOT NULL UNIQUE,
				color_code  TEXT NOT NULL DEFAULT '#000000',
				is_active   INTEGER NOT NULL DEFAULT 1,
				created_at  DATETIME NOT NULL
			);`},
		{"tags", `
			CREATE TABLE IF NOT EXISTS tags (
				id          TEXT PRIMARY KEY,
				name        TEXT NOT NULL UNIQUE,
				slug        TEXT NOT NULL UNIQUE,
				usage_count INTEGER NOT NULL DEFAULT 0,
				created_at  DATETIME NOT NULL
			);`},
		{"articles", `
			CREATE TABLE IF NOT EXISTS articles (
				id             TEXT PRIMARY KEY,
				title          TEXT NOT NULL,
				slug           TEXT NOT NULL UNIQUE,
				content        TEXT NOT NULL,
				author_id      TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
				category_id    TEXT REFERENCES categories(id) ON DELETE SET NULL,
				status         TEXT NOT NULL DEFAULT 'draft'
				               CHECK (status IN ('draft', 'published', 'archived')),
				published_date DATETIME,
				view_count     INTEGER NOT NULL DEFAULT 0,
				like_count     INTEGER NOT NULL DEFAULT 0,
				created_at     DATETIME NOT NULL,
				updated_at     DATETIME NOT NULL
			);
			CREATE INDEX IF NOT EXISTS idx_articles_status_published ON articles(status, published_date);
			CREATE INDEX IF NOT EXISTS idx_articles_author ON articles(author_id);
			CREATE INDEX IF NOT EXISTS idx_articles_category ON articles(category_id);`},
		{"article_tags", `
			CREATE TABLE IF NOT EXISTS article_tags (
				article_id TEXT NOT NULL REFERENCES articles(id) ON DELETE CASCADE,
				tag_id     TEXT NOT NULL REFERENCES tags(id) ON DELETE CASCADE,
				PRIMARY KEY (article_id, tag_id)
			);
			CREATE INDEX IF NOT EXISTS idx_article_tags_tag ON article_tags(tag_id);`},
		{"likes", `
			CREATE TABLE IF NOT EXISTS likes (
				id         TEXT PRIMARY KEY,
				user_id    TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
				article_id TEXT NOT NULL REFERENCES articles(id) ON DELETE CASCADE,
				created_at DATETIME NOT NULL,
				UNIQUE (user_id, article_id)
			);
			CREATE INDEX IF NOT EXISTS idx_likes_article ON likes(article_id);`},
		{"bookmarks", `
			CREATE TABLE IF NOT EXISTS bookmarks (
				id         TEXT PRIMARY KEY,
				user_id    TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
				article_id TEXT NOT NULL REFERENCES articles(id) ON DELETE CASCADE,
				created_at DATETIME NOT NULL,
				UNIQUE (user_id, article_id)
			);`},
		{"comments", `
			CREATE TABLE IF NOT EXISTS comments (
				id         TEXT PRIMARY KEY,
				user_id    TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
				article_id TEXT NOT NULL REFERENCES articles(id) ON DELETE CASCADE,
				content    TEXT NOT NULL,
				created_at DATETIME NOT NULL,
				updated_at DATETIME NOT NULL
			);
			CREATE INDEX IF NOT EXISTS idx_comments_article ON comments(article_id, created_at);`},
		{"reading_history", `
			CREATE TABLE IF NOT EXISTS reading_history (
				id         TEXT PRIMARY KEY,
				user_id    TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
				article_id TEXT NOT NULL REFERENCES articles(id) ON DELETE CASCADE,
				viewed_at  DATETIME NOT NULL,
				UNIQUE (user_id, article_id)
			);`},
	}

	for _, s := range steps {
		if _, err := db.conn.Exec(s.sql); err != nil {
			return fmt.Errorf("creating %s table: %w", s.name, err)
		}
	}
	return nil
}

// isUniqueViolation reports whether err came from a UNIQUE constraint.
// The pure-Go driver doesn't export typed error codes in a stable way, so we
// match on the message SQLite itself produces.
func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// uniqueColumn extracts "email" from "UNIQUE constraint failed: users.email".
func uniqueColumn(err error) string {
	msg := err.Error()
	i := strings.LastIndex(msg, ".")
	if i < 0 || i == len(msg)-1 {
		return ""
	}
	col := msg[i+1:]
	if j := strings.IndexAny(col, " ,)"); j >= 0 {
		col = col[:j]
	}
	return col
}

// pageBounds clamps list options to a sane page: default 20, max 100.
func pageBounds(opts repository.ListOptions) (limit, offset int) {
	limit = opts.Limit
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	offset = opts.Offset
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

// placeholders returns "?, ?, ?" for n values.
func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

func stringArgs(ids []string) []any {
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	return args
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}

func timePtr(nt sql.NullTime) *time.Time {
	if !nt.Valid {
		return nil
	}
	t := nt.Time
	return &t
}

// withTx runs fn inside a transaction, committing on success.
// While fn runs, every statement must go through tx: with a single
// connection pool (":memory:") a query on db.conn would wait forever.
func (db *DB) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: beginning transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sqlite: committing transaction: %w", err)
	}
	return nil
}
