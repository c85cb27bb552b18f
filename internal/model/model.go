// Package model defines shared data structures.
package model

// Feed represents an RSS/Atom feed subscription.
type Feed struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	URL         string `json:"url"`
	Description string `json:"description,omitempty"`
	ImageURL    string `json:"imageUrl,omitempty"`
	Category    string `json:"category,omitempty"`
	CreatedAt   int64  `json:"createdAt"`
	UpdatedAt   int64  `json:"updatedAt"`
}

// Article represents a single entry from a feed. Content and Summary are
// stored as Markdown. Link is the dedup key within a feed: once an article
// is saved, later fetches of the same link never update or duplicate it.
type Article struct {
	ID        string `json:"id"`
	FeedID    string `json:"feedId"`
	Title     string `json:"title"`
	Link      string `json:"link"`
	Content   string `json:"content"`
	Summary   string `json:"summary"`
	Author    string `json:"author,omitempty"`
	PubDate   int64  `json:"pubDate"`
	IsRead    bool   `json:"isRead"`
	IsStarred bool   `json:"isStarred"`
	FetchedAt int64  `json:"fetchedAt"`
}

// Translation is a cached translation of an article's content.
type Translation struct {
	ArticleID string `json:"articleId"`
	Content   string `json:"content"`
	CreatedAt int64  `json:"createdAt"`
}

// Article list filters.
const (
	FilterAll     = "all"
	FilterUnread  = "unread"
	FilterStarred = "starred"
)

// Settings key constants.
const (
	SettingTranslationProvider   = "translation_provider"
	SettingTranslationBaseURL    = "translation_base_url"
	SettingTranslationAPIKey     = "translation_api_key"
	SettingTranslationModel      = "translation_model"
	SettingTranslationTargetLang = "translation_target_lang"
)
