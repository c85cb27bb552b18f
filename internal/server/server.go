// Package server provides the HTTP server and JSON API handlers.
package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/bingal/rss-reader/internal/database"
	"github.com/bingal/rss-reader/internal/markdown"
	"github.com/bingal/rss-reader/internal/model"
	"github.com/bingal/rss-reader/internal/opml"
	"github.com/bingal/rss-reader/internal/rss"
	"github.com/bingal/rss-reader/internal/translate"
)

// Version is the application version reported by /api/version.
const Version = "1.0.0"

const (
	defaultArticleLimit = 50
	maxArticleLimit     = 500
)

// Server is the main HTTP server.
type Server struct {
	db        database.Store
	refresher *rss.Refresher
	router    chi.Router
}

// New creates a new server around the given store.
func New(db database.Store) *Server {
	s := &Server{
		db:        db,
		refresher: rss.NewRefresher(db),
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))

	r.Route("/api", func(r chi.Router) {
		r.Get("/version", s.handleVersion)

		r.Route("/feeds", func(r chi.Router) {
			r.Get("/", s.handleListFeeds)
			r.Post("/", s.handleCreateFeed)
			r.Post("/refresh-all", s.handleRefreshAll)
			r.Post("/import-opml", s.handleImportOPML)
			r.Get("/export-opml", s.handleExportOPML)
			r.Delete("/{feedID}", s.handleDeleteFeed)
			r.Post("/{feedID}/refresh", s.handleRefreshFeed)
		})

		r.Route("/articles", func(r chi.Router) {
			r.Get("/", s.handleListArticles)
			r.Patch("/{articleID}/read", s.handleMarkRead)
			r.Patch("/{articleID}/starred", s.handleMarkStarred)
			r.Post("/{articleID}/translate", s.handleTranslate)
		})

		r.Get("/settings/{key}", s.handleGetSetting)
		r.Put("/settings/{key}", s.handleSetSetting)
	})

	s.router = r
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start starts the server.
func (s *Server) Start(addr string) error {
	log.Printf("Server starting on %s", addr)
	return http.ListenAndServe(addr, s.router)
}

// --- Feed Handlers ---

func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"version": Version})
}

func (s *Server) handleListFeeds(w http.ResponseWriter, r *http.Request) {
	feeds, err := s.db.GetFeeds()
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "Failed to load feeds")
		return
	}
	if feeds == nil {
		feeds = []model.Feed{}
	}
	s.writeJSON(w, http.StatusOK, feeds)
}

func (s *Server) handleCreateFeed(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Title       string `json:"title"`
		URL         string `json:"url"`
		Description string `json:"description"`
		Category    string `json:"category"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Title == "" || req.URL == "" {
		s.writeError(w, http.StatusBadRequest, "title and url are required")
		return
	}
	if _, err := s.db.GetFeedByURL(req.URL); err == nil {
		s.writeError(w, http.StatusConflict, "Already subscribed to this feed")
		return
	}

	now := time.Now().Unix()
	feed := &model.Feed{
		ID:          uuid.NewString(),
		Title:       req.Title,
		URL:         req.URL,
		Description: req.Description,
		Category:    req.Category,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.db.CreateFeed(feed); err != nil {
		s.writeError(w, http.StatusInternalServerError, "Failed to save feed")
		return
	}
	s.writeJSON(w, http.StatusCreated, feed)
}

func (s *Server) handleDeleteFeed(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "feedID")
	if err := s.db.DeleteFeed(id); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			s.writeError(w, http.StatusNotFound, "Feed not found")
			return
		}
		s.writeError(w, http.StatusInternalServerError, "Failed to delete feed")
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleRefreshFeed(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "feedID")
	res, err := s.refresher.RefreshFeed(r.Context(), id)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			s.writeError(w, http.StatusNotFound, "Feed not found")
			return
		}
		// The error already names the feed for display.
		s.writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]int{
		"count": res.New,
		"total": res.Total,
	})
}

func (s *Server) handleRefreshAll(w http.ResponseWriter, r *http.Request) {
	res, err := s.refresher.RefreshAll(r.Context())
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "Refresh failed")
		return
	}
	// Partial failures stay a 200: the refresh as a whole completed.
	resp := map[string]any{"count": res.New}
	if len(res.Errors) > 0 {
		resp["errors"] = res.Errors
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleImportOPML(w http.ResponseWriter, r *http.Request) {
	file, _, err := r.FormFile("opml")
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "No file provided")
		return
	}
	defer file.Close()

	entries, err := opml.Parse(file)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, fmt.Sprintf("Failed to parse OPML: %v", err))
		return
	}

	now := time.Now().Unix()
	imported := 0
	for _, entry := range entries {
		if _, err := s.db.GetFeedByURL(entry.URL); err == nil {
			continue
		}
		feed := &model.Feed{
			ID:        uuid.NewString(),
			Title:     entry.Title,
			URL:       entry.URL,
			Category:  entry.Category,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := s.db.CreateFeed(feed); err != nil {
			log.Printf("import feed %s: %v", entry.URL, err)
			continue
		}
		imported++
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"status":   "ok",
		"imported": imported,
		"total":    len(entries),
	})
}

func (s *Server) handleExportOPML(w http.ResponseWriter, r *http.Request) {
	feeds, err := s.db.GetFeeds()
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "Failed to load feeds")
		return
	}
	entries := make([]opml.FeedEntry, 0, len(feeds))
	for _, f := range feeds {
		entries = append(entries, opml.FeedEntry{
			Category: f.Category,
			Title:    f.Title,
			URL:      f.URL,
		})
	}
	data, err := opml.Export("RSS Reader Feeds", entries)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "Failed to export")
		return
	}
	w.Header().Set("Content-Type", "application/xml")
	w.Header().Set("Content-Disposition", "attachment; filename=feeds.opml")
	w.Write(data)
}

// --- Article Handlers ---

func (s *Server) handleListArticles(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	feedID := q.Get("feedId")
	filter := q.Get("filter")
	if filter == "" {
		filter = model.FilterAll
	}
	limit := intParam(q.Get("limit"), defaultArticleLimit)
	if limit > maxArticleLimit {
		limit = maxArticleLimit
	}
	offset := intParam(q.Get("offset"), 0)

	articles, err := s.db.GetArticles(feedID, filter, limit, offset)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "Failed to load articles")
		return
	}
	// Older databases may still hold raw HTML from before content was
	// normalized at ingestion; convert on the way out.
	for i := range articles {
		if markdown.IsHTML(articles[i].Content) {
			articles[i].Content = markdown.Normalize(articles[i].Content)
		}
		if markdown.IsHTML(articles[i].Summary) {
			articles[i].Summary = markdown.Normalize(articles[i].Summary)
		}
	}
	if articles == nil {
		articles = []model.Article{}
	}
	s.writeJSON(w, http.StatusOK, articles)
}

func (s *Server) handleMarkRead(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Read bool `json:"read"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	id := chi.URLParam(r, "articleID")
	if err := s.db.SetArticleRead(id, req.Read); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			s.writeError(w, http.StatusNotFound, "Article not found")
			return
		}
		s.writeError(w, http.StatusInternalServerError, "Failed to update article")
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleMarkStarred(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Starred bool `json:"starred"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	id := chi.URLParam(r, "articleID")
	if err := s.db.SetArticleStarred(id, req.Starred); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			s.writeError(w, http.StatusNotFound, "Article not found")
			return
		}
		s.writeError(w, http.StatusInternalServerError, "Failed to update article")
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleTranslate(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "articleID")
	article, err := s.db.GetArticleByID(id)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			s.writeError(w, http.StatusNotFound, "Article not found")
			return
		}
		s.writeError(w, http.StatusInternalServerError, "Failed to load article")
		return
	}

	force := r.URL.Query().Get("force") == "1"
	if !force {
		if cached, err := s.db.GetTranslation(id); err == nil {
			s.writeJSON(w, http.StatusOK, cached)
			return
		}
	}

	provider, targetLang, err := translate.FromStore(s.db)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	translated, err := provider.Translate(r.Context(), article.Content, targetLang)
	if err != nil {
		s.writeError(w, http.StatusBadGateway, err.Error())
		return
	}

	t := &model.Translation{
		ArticleID: id,
		Content:   translated,
		CreatedAt: time.Now().Unix(),
	}
	if err := s.db.SaveTranslation(t); err != nil {
		s.writeError(w, http.StatusInternalServerError, "Failed to save translation")
		return
	}
	s.writeJSON(w, http.StatusOK, t)
}

// --- Settings Handlers ---

func (s *Server) handleGetSetting(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")
	value, err := s.db.GetSetting(key)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			s.writeError(w, http.StatusNotFound, "Setting not found")
			return
		}
		s.writeError(w, http.StatusInternalServerError, "Failed to load setting")
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"key": key, "value": value})
}

func (s *Server) handleSetSetting(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Value string `json:"value"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	key := chi.URLParam(r, "key")
	if err := s.db.SetSetting(key, req.Value); err != nil {
		s.writeError(w, http.StatusInternalServerError, "Failed to save setting")
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// --- Helpers ---

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("encode response: %v", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, map[string]string{"error": msg})
}

func intParam(s string, fallback int) int {
	if s == "" {
		return fallback
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return fallback
	}
	return n
}
