package database

import (
	"database/sql"
	"fmt"

	"github.com/bingal/rss-reader/internal/model"
	_ "modernc.org/sqlite"
)

// DB wraps the SQLite connection.
type DB struct {
	conn *sql.DB
}

// Ensure DB implements Store.
var _ Store = (*DB)(nil)

// New opens or creates an SQLite database at the given path.
func New(path string) (*DB, error) {
	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	// Enable WAL mode for better concurrency.
	if _, err := conn.Exec("PRAGMA journal_mode=WAL;"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("set wal mode: %w", err)
	}
	db := &DB{conn: conn}
	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return db, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

// Ping checks that the database is reachable.
func (db *DB) Ping() error {
	if err := db.conn.Ping(); err != nil {
		return fmt.Errorf("storage unavailable: %w", err)
	}
	return nil
}

func (db *DB) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS feeds (
		id TEXT PRIMARY KEY,
		title TEXT NOT NULL,
		url TEXT NOT NULL UNIQUE,
		description TEXT,
		image_url TEXT,
		category TEXT,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);
	CREATE TABLE IF NOT EXISTS articles (
		id TEXT PRIMARY KEY,
		feed_id TEXT NOT NULL REFERENCES feeds(id),
		title TEXT NOT NULL,
		link TEXT NOT NULL,
		content TEXT,
		summary TEXT,
		author TEXT,
		pub_date INTEGER NOT NULL,
		is_read INTEGER DEFAULT 0,
		is_starred INTEGER DEFAULT 0,
		fetched_at INTEGER NOT NULL,
		UNIQUE(feed_id, link)
	);
	CREATE TABLE IF NOT EXISTS settings (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);
	CREATE TABLE IF NOT EXISTS translations (
		article_id TEXT PRIMARY KEY REFERENCES articles(id),
		content TEXT NOT NULL,
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_articles_feed ON articles(feed_id);
	CREATE INDEX IF NOT EXISTS idx_articles_date ON articles(pub_date DESC);
	CREATE INDEX IF NOT EXISTS idx_articles_read ON articles(is_read);
	CREATE INDEX IF NOT EXISTS idx_articles_starred ON articles(is_starred);
	`
	_, err := db.conn.Exec(schema)
	return err
}

// --- Feed Methods ---

// GetFeeds returns all feeds ordered by title.
func (db *DB) GetFeeds() ([]model.Feed, error) {
	rows, err := db.conn.Query(`
		SELECT id, title, url, description, image_url, category, created_at, updated_at
		FROM feeds ORDER BY title`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var feeds []model.Feed
	for rows.Next() {
		f, err := scanFeed(rows)
		if err != nil {
			return nil, err
		}
		feeds = append(feeds, *f)
	}
	return feeds, rows.Err()
}

// GetFeedByID returns a single feed, or ErrNotFound.
func (db *DB) GetFeedByID(id string) (*model.Feed, error) {
	row := db.conn.QueryRow(`
		SELECT id, title, url, description, image_url, category, created_at, updated_at
		FROM feeds WHERE id = ?`, id)
	return scanFeedRow(row)
}

// GetFeedByURL returns the feed subscribed at url, or ErrNotFound.
func (db *DB) GetFeedByURL(url string) (*model.Feed, error) {
	row := db.conn.QueryRow(`
		SELECT id, title, url, description, image_url, category, created_at, updated_at
		FROM feeds WHERE url = ?`, url)
	return scanFeedRow(row)
}

// CreateFeed inserts a new feed.
func (db *DB) CreateFeed(f *model.Feed) error {
	_, err := db.conn.Exec(`
		INSERT INTO feeds (id, title, url, description, image_url, category, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		f.ID, f.Title, f.URL, f.Description, f.ImageURL, f.Category, f.CreatedAt, f.UpdatedAt)
	return err
}

// DeleteFeed removes a feed together with its articles and their cached
// translations.
func (db *DB) DeleteFeed(id string) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(
		"DELETE FROM translations WHERE article_id IN (SELECT id FROM articles WHERE feed_id = ?)", id); err != nil {
		return err
	}
	if _, err := tx.Exec("DELETE FROM articles WHERE feed_id = ?", id); err != nil {
		return err
	}
	res, err := tx.Exec("DELETE FROM feeds WHERE id = ?", id)
	if err != nil {
		return err
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return ErrNotFound
	}
	return tx.Commit()
}

// TouchFeed advances a feed's updated_at timestamp.
func (db *DB) TouchFeed(id string, updatedAt int64) error {
	_, err := db.conn.Exec("UPDATE feeds SET updated_at = ? WHERE id = ?", updatedAt, id)
	return err
}

// --- Article Methods ---

// GetArticleLinks returns the set of links already stored for a feed.
func (db *DB) GetArticleLinks(feedID string) (map[string]struct{}, error) {
	rows, err := db.conn.Query("SELECT link FROM articles WHERE feed_id = ?", feedID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	links := make(map[string]struct{})
	for rows.Next() {
		var link string
		if err := rows.Scan(&link); err != nil {
			return nil, err
		}
		links[link] = struct{}{}
	}
	return links, rows.Err()
}

// AddArticle inserts an article if its link is not already stored for the
// feed. Returns whether a row was inserted.
func (db *DB) AddArticle(a *model.Article) (bool, error) {
	res, err := db.conn.Exec(`
		INSERT INTO articles (id, feed_id, title, link, content, summary, author,
			pub_date, is_read, is_starred, fetched_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(feed_id, link) DO NOTHING`,
		a.ID, a.FeedID, a.Title, a.Link, a.Content, a.Summary, a.Author,
		a.PubDate, boolToInt(a.IsRead), boolToInt(a.IsStarred), a.FetchedAt)
	if err != nil {
		return false, err
	}
	affected, _ := res.RowsAffected()
	return affected > 0, nil
}

// GetArticles returns articles ordered by pub_date descending. feedID and
// filter narrow the result; limit/offset page through it.
func (db *DB) GetArticles(feedID, filter string, limit, offset int) ([]model.Article, error) {
	query := `SELECT id, feed_id, title, link, content, summary, author,
		pub_date, is_read, is_starred, fetched_at FROM articles`
	var conds []string
	var args []any
	if feedID != "" {
		conds = append(conds, "feed_id = ?")
		args = append(args, feedID)
	}
	switch filter {
	case model.FilterUnread:
		conds = append(conds, "is_read = 0")
	case model.FilterStarred:
		conds = append(conds, "is_starred = 1")
	}
	for i, c := range conds {
		if i == 0 {
			query += " WHERE " + c
		} else {
			query += " AND " + c
		}
	}
	query += " ORDER BY pub_date DESC LIMIT ? OFFSET ?"
	args = append(args, limit, offset)

	rows, err := db.conn.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var articles []model.Article
	for rows.Next() {
		a, err := scanArticle(rows)
		if err != nil {
			return nil, err
		}
		articles = append(articles, *a)
	}
	return articles, rows.Err()
}

// GetArticleByID returns a single article, or ErrNotFound.
func (db *DB) GetArticleByID(id string) (*model.Article, error) {
	row := db.conn.QueryRow(`SELECT id, feed_id, title, link, content, summary, author,
		pub_date, is_read, is_starred, fetched_at FROM articles WHERE id = ?`, id)
	var a model.Article
	var isRead, isStarred int
	var summary, author sql.NullString
	err := row.Scan(&a.ID, &a.FeedID, &a.Title, &a.Link, &a.Content, &summary, &author,
		&a.PubDate, &isRead, &isStarred, &a.FetchedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	a.Summary = summary.String
	a.Author = author.String
	a.IsRead = isRead != 0
	a.IsStarred = isStarred != 0
	return &a, nil
}

// SetArticleRead updates the read flag.
func (db *DB) SetArticleRead(id string, read bool) error {
	return db.updateArticleFlag(id, "is_read", read)
}

// SetArticleStarred updates the starred flag.
func (db *DB) SetArticleStarred(id string, starred bool) error {
	return db.updateArticleFlag(id, "is_starred", starred)
}

func (db *DB) updateArticleFlag(id, column string, value bool) error {
	res, err := db.conn.Exec("UPDATE articles SET "+column+" = ? WHERE id = ?", boolToInt(value), id)
	if err != nil {
		return err
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return ErrNotFound
	}
	return nil
}

// --- Settings Methods ---

// GetSetting retrieves a setting value, or ErrNotFound.
func (db *DB) GetSetting(key string) (string, error) {
	var val string
	err := db.conn.QueryRow("SELECT value FROM settings WHERE key = ?", key).Scan(&val)
	if err == sql.ErrNoRows {
		return "", ErrNotFound
	}
	return val, err
}

// SetSetting saves a setting.
func (db *DB) SetSetting(key, value string) error {
	_, err := db.conn.Exec(
		"INSERT INTO settings (key, value) VALUES (?, ?) ON CONFLICT(key) DO UPDATE SET value = ?",
		key, value, value)
	return err
}

// --- Translation Methods ---

// GetTranslation returns the cached translation for an article, or ErrNotFound.
func (db *DB) GetTranslation(articleID string) (*model.Translation, error) {
	var t model.Translation
	err := db.conn.QueryRow(
		"SELECT article_id, content, created_at FROM translations WHERE article_id = ?",
		articleID).Scan(&t.ArticleID, &t.Content, &t.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// SaveTranslation stores or replaces the cached translation for an article.
func (db *DB) SaveTranslation(t *model.Translation) error {
	_, err := db.conn.Exec(`
		INSERT INTO translations (article_id, content, created_at) VALUES (?, ?, ?)
		ON CONFLICT(article_id) DO UPDATE SET content = excluded.content, created_at = excluded.created_at`,
		t.ArticleID, t.Content, t.CreatedAt)
	return err
}

// DeleteTranslation drops the cached translation for an article.
func (db *DB) DeleteTranslation(articleID string) error {
	_, err := db.conn.Exec("DELETE FROM translations WHERE article_id = ?", articleID)
	return err
}

// --- Helpers ---

type scanner interface {
	Scan(dest ...any) error
}

func scanFeed(s scanner) (*model.Feed, error) {
	var f model.Feed
	var description, imageURL, category sql.NullString
	err := s.Scan(&f.ID, &f.Title, &f.URL, &description, &imageURL, &category,
		&f.CreatedAt, &f.UpdatedAt)
	if err != nil {
		return nil, err
	}
	f.Description = description.String
	f.ImageURL = imageURL.String
	f.Category = category.String
	return &f, nil
}

func scanFeedRow(row *sql.Row) (*model.Feed, error) {
	f, err := scanFeed(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return f, nil
}

func scanArticle(s scanner) (*model.Article, error) {
	var a model.Article
	var isRead, isStarred int
	var summary, author sql.NullString
	err := s.Scan(&a.ID, &a.FeedID, &a.Title, &a.Link, &a.Content, &summary, &author,
		&a.PubDate, &isRead, &isStarred, &a.FetchedAt)
	if err != nil {
		return nil, err
	}
	a.Summary = summary.String
	a.Author = author.String
	a.IsRead = isRead != 0
	a.IsStarred = isStarred != 0
	return &a, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
