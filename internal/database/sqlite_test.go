package database

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/bingal/rss-reader/internal/model"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func makeFeed(title, url string) *model.Feed {
	now := time.Now().Unix()
	return &model.Feed{
		ID:        uuid.NewString(),
		Title:     title,
		URL:       url,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func makeArticle(feedID, link string, pubDate int64) *model.Article {
	return &model.Article{
		ID:        uuid.NewString(),
		FeedID:    feedID,
		Title:     "An Article",
		Link:      link,
		Content:   "some content",
		Summary:   "some summary",
		Author:    "someone",
		PubDate:   pubDate,
		FetchedAt: time.Now().Unix(),
	}
}

func TestFeedCRUD(t *testing.T) {
	db := openTestDB(t)

	feed := makeFeed("Zeta Blog", "https://zeta.example.com/rss")
	feed.Description = "about zeta"
	feed.Category = "tech"
	if err := db.CreateFeed(feed); err != nil {
		t.Fatalf("CreateFeed() error = %v", err)
	}
	if err := db.CreateFeed(makeFeed("Alpha Blog", "https://alpha.example.com/rss")); err != nil {
		t.Fatalf("CreateFeed() error = %v", err)
	}

	got, err := db.GetFeedByID(feed.ID)
	if err != nil {
		t.Fatalf("GetFeedByID() error = %v", err)
	}
	if got.Title != "Zeta Blog" || got.Description != "about zeta" || got.Category != "tech" {
		t.Errorf("GetFeedByID() = %+v", got)
	}

	got, err = db.GetFeedByURL("https://zeta.example.com/rss")
	if err != nil {
		t.Fatalf("GetFeedByURL() error = %v", err)
	}
	if got.ID != feed.ID {
		t.Errorf("GetFeedByURL() id = %q, want %q", got.ID, feed.ID)
	}

	feeds, err := db.GetFeeds()
	if err != nil {
		t.Fatalf("GetFeeds() error = %v", err)
	}
	if len(feeds) != 2 {
		t.Fatalf("GetFeeds() returned %d, want 2", len(feeds))
	}
	if feeds[0].Title != "Alpha Blog" {
		t.Errorf("feeds not ordered by title: %q first", feeds[0].Title)
	}

	if _, err := db.GetFeedByID("missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetFeedByID(missing) error = %v, want ErrNotFound", err)
	}
	if _, err := db.GetFeedByURL("https://nowhere.example.com"); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetFeedByURL(missing) error = %v, want ErrNotFound", err)
	}
}

func TestCreateFeedDuplicateURL(t *testing.T) {
	db := openTestDB(t)
	if err := db.CreateFeed(makeFeed("One", "https://example.com/rss")); err != nil {
		t.Fatalf("CreateFeed() error = %v", err)
	}
	if err := db.CreateFeed(makeFeed("Two", "https://example.com/rss")); err == nil {
		t.Error("CreateFeed() with a duplicate url should fail")
	}
}

func TestTouchFeed(t *testing.T) {
	db := openTestDB(t)
	feed := makeFeed("Blog", "https://example.com/rss")
	if err := db.CreateFeed(feed); err != nil {
		t.Fatalf("CreateFeed() error = %v", err)
	}
	later := feed.UpdatedAt + 100
	if err := db.TouchFeed(feed.ID, later); err != nil {
		t.Fatalf("TouchFeed() error = %v", err)
	}
	got, _ := db.GetFeedByID(feed.ID)
	if got.UpdatedAt != later {
		t.Errorf("updated_at = %d, want %d", got.UpdatedAt, later)
	}
}

func TestDeleteFeedCascades(t *testing.T) {
	db := openTestDB(t)
	feed := makeFeed("Blog", "https://example.com/rss")
	if err := db.CreateFeed(feed); err != nil {
		t.Fatalf("CreateFeed() error = %v", err)
	}
	art := makeArticle(feed.ID, "https://example.com/1", 100)
	if _, err := db.AddArticle(art); err != nil {
		t.Fatalf("AddArticle() error = %v", err)
	}
	if err := db.SaveTranslation(&model.Translation{
		ArticleID: art.ID,
		Content:   "translated",
		CreatedAt: time.Now().Unix(),
	}); err != nil {
		t.Fatalf("SaveTranslation() error = %v", err)
	}

	if err := db.DeleteFeed(feed.ID); err != nil {
		t.Fatalf("DeleteFeed() error = %v", err)
	}
	if _, err := db.GetFeedByID(feed.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("feed still present after delete: %v", err)
	}
	if _, err := db.GetArticleByID(art.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("article survived feed delete: %v", err)
	}
	if _, err := db.GetTranslation(art.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("translation survived feed delete: %v", err)
	}

	if err := db.DeleteFeed("missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("DeleteFeed(missing) error = %v, want ErrNotFound", err)
	}
}

func TestAddArticleDedup(t *testing.T) {
	db := openTestDB(t)
	feed := makeFeed("Blog", "https://example.com/rss")
	if err := db.CreateFeed(feed); err != nil {
		t.Fatalf("CreateFeed() error = %v", err)
	}

	inserted, err := db.AddArticle(makeArticle(feed.ID, "https://example.com/1", 100))
	if err != nil {
		t.Fatalf("AddArticle() error = %v", err)
	}
	if !inserted {
		t.Error("first insert should report inserted")
	}

	inserted, err = db.AddArticle(makeArticle(feed.ID, "https://example.com/1", 100))
	if err != nil {
		t.Fatalf("AddArticle() error = %v", err)
	}
	if inserted {
		t.Error("duplicate link should not insert")
	}

	// Same link under another feed is a distinct article.
	other := makeFeed("Other", "https://other.example.com/rss")
	if err := db.CreateFeed(other); err != nil {
		t.Fatalf("CreateFeed() error = %v", err)
	}
	inserted, err = db.AddArticle(makeArticle(other.ID, "https://example.com/1", 100))
	if err != nil {
		t.Fatalf("AddArticle() error = %v", err)
	}
	if !inserted {
		t.Error("same link under a different feed should insert")
	}

	links, err := db.GetArticleLinks(feed.ID)
	if err != nil {
		t.Fatalf("GetArticleLinks() error = %v", err)
	}
	if len(links) != 1 {
		t.Errorf("GetArticleLinks() = %v, want one link", links)
	}
	if _, ok := links["https://example.com/1"]; !ok {
		t.Errorf("GetArticleLinks() missing stored link: %v", links)
	}
}

func TestGetArticlesFilters(t *testing.T) {
	db := openTestDB(t)
	feed := makeFeed("Blog", "https://example.com/rss")
	if err := db.CreateFeed(feed); err != nil {
		t.Fatalf("CreateFeed() error = %v", err)
	}

	var ids []string
	for i := 0; i < 5; i++ {
		a := makeArticle(feed.ID, uuid.NewString(), int64(100+i))
		if _, err := db.AddArticle(a); err != nil {
			t.Fatalf("AddArticle() error = %v", err)
		}
		ids = append(ids, a.ID)
	}
	if err := db.SetArticleRead(ids[0], true); err != nil {
		t.Fatalf("SetArticleRead() error = %v", err)
	}
	if err := db.SetArticleStarred(ids[1], true); err != nil {
		t.Fatalf("SetArticleStarred() error = %v", err)
	}

	all, err := db.GetArticles(feed.ID, model.FilterAll, 50, 0)
	if err != nil {
		t.Fatalf("GetArticles() error = %v", err)
	}
	if len(all) != 5 {
		t.Fatalf("all = %d articles, want 5", len(all))
	}
	// Newest first.
	if all[0].PubDate != 104 || all[4].PubDate != 100 {
		t.Errorf("ordering wrong: first=%d last=%d", all[0].PubDate, all[4].PubDate)
	}

	unread, err := db.GetArticles(feed.ID, model.FilterUnread, 50, 0)
	if err != nil {
		t.Fatalf("GetArticles(unread) error = %v", err)
	}
	if len(unread) != 4 {
		t.Errorf("unread = %d articles, want 4", len(unread))
	}

	starred, err := db.GetArticles("", model.FilterStarred, 50, 0)
	if err != nil {
		t.Fatalf("GetArticles(starred) error = %v", err)
	}
	if len(starred) != 1 || starred[0].ID != ids[1] {
		t.Errorf("starred = %+v, want only the starred one", starred)
	}

	page, err := db.GetArticles(feed.ID, model.FilterAll, 2, 2)
	if err != nil {
		t.Fatalf("GetArticles(paged) error = %v", err)
	}
	if len(page) != 2 || page[0].PubDate != 102 {
		t.Errorf("page = %+v, want the middle slice", page)
	}
}

func TestArticleFlagsNotFound(t *testing.T) {
	db := openTestDB(t)
	if err := db.SetArticleRead("missing", true); !errors.Is(err, ErrNotFound) {
		t.Errorf("SetArticleRead(missing) error = %v, want ErrNotFound", err)
	}
	if err := db.SetArticleStarred("missing", true); !errors.Is(err, ErrNotFound) {
		t.Errorf("SetArticleStarred(missing) error = %v, want ErrNotFound", err)
	}
}

func TestSettings(t *testing.T) {
	db := openTestDB(t)

	if _, err := db.GetSetting("theme"); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetSetting(missing) error = %v, want ErrNotFound", err)
	}
	if err := db.SetSetting("theme", "dark"); err != nil {
		t.Fatalf("SetSetting() error = %v", err)
	}
	if got, err := db.GetSetting("theme"); err != nil || got != "dark" {
		t.Errorf("GetSetting() = %q, %v", got, err)
	}
	// Overwrite.
	if err := db.SetSetting("theme", "light"); err != nil {
		t.Fatalf("SetSetting() overwrite error = %v", err)
	}
	if got, _ := db.GetSetting("theme"); got != "light" {
		t.Errorf("GetSetting() after overwrite = %q, want %q", got, "light")
	}
}

func TestTranslations(t *testing.T) {
	db := openTestDB(t)
	feed := makeFeed("Blog", "https://example.com/rss")
	if err := db.CreateFeed(feed); err != nil {
		t.Fatalf("CreateFeed() error = %v", err)
	}
	art := makeArticle(feed.ID, "https://example.com/1", 100)
	if _, err := db.AddArticle(art); err != nil {
		t.Fatalf("AddArticle() error = %v", err)
	}

	if _, err := db.GetTranslation(art.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetTranslation(missing) error = %v, want ErrNotFound", err)
	}

	tr := &model.Translation{ArticleID: art.ID, Content: "hola", CreatedAt: 100}
	if err := db.SaveTranslation(tr); err != nil {
		t.Fatalf("SaveTranslation() error = %v", err)
	}
	got, err := db.GetTranslation(art.ID)
	if err != nil {
		t.Fatalf("GetTranslation() error = %v", err)
	}
	if got.Content != "hola" {
		t.Errorf("Content = %q", got.Content)
	}

	// Replacing keeps a single row per article.
	tr.Content = "bonjour"
	tr.CreatedAt = 200
	if err := db.SaveTranslation(tr); err != nil {
		t.Fatalf("SaveTranslation() replace error = %v", err)
	}
	got, _ = db.GetTranslation(art.ID)
	if got.Content != "bonjour" || got.CreatedAt != 200 {
		t.Errorf("GetTranslation() after replace = %+v", got)
	}

	if err := db.DeleteTranslation(art.ID); err != nil {
		t.Fatalf("DeleteTranslation() error = %v", err)
	}
	if _, err := db.GetTranslation(art.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("translation still present after delete: %v", err)
	}
}
