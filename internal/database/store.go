// Package database provides SQLite storage for the RSS reader.
package database

import (
	"errors"

	"github.com/bingal/rss-reader/internal/model"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("not found")

// Store defines the interface for database operations. The ingestion and
// HTTP layers depend on this rather than on the SQLite implementation.
type Store interface {
	Close() error

	// Ping reports whether the underlying database is reachable. Callers
	// check it once at operation boundaries instead of retrying implicitly.
	Ping() error

	// Feed operations
	GetFeeds() ([]model.Feed, error)
	GetFeedByID(id string) (*model.Feed, error)
	GetFeedByURL(url string) (*model.Feed, error)
	CreateFeed(f *model.Feed) error
	DeleteFeed(id string) error
	TouchFeed(id string, updatedAt int64) error

	// Article operations
	GetArticleLinks(feedID string) (map[string]struct{}, error)
	AddArticle(a *model.Article) (bool, error)
	GetArticles(feedID, filter string, limit, offset int) ([]model.Article, error)
	GetArticleByID(id string) (*model.Article, error)
	SetArticleRead(id string, read bool) error
	SetArticleStarred(id string, starred bool) error

	// Settings operations
	GetSetting(key string) (string, error)
	SetSetting(key, value string) error

	// Translation operations
	GetTranslation(articleID string) (*model.Translation, error)
	SaveTranslation(t *model.Translation) error
	DeleteTranslation(articleID string) error
}
