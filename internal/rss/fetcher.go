// Package rss provides feed fetching, parsing and refresh orchestration.
package rss

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/mmcdole/gofeed"

	"github.com/bingal/rss-reader/internal/markdown"
	"github.com/bingal/rss-reader/internal/model"
)

const (
	fetchTimeout = 12 * time.Second
	userAgent    = "rss-reader/1.0 (+https://github.com/bingal/rss-reader)"
	acceptHeader = "application/rss+xml, application/atom+xml, application/xml;q=0.9, text/xml;q=0.8, */*;q=0.5"

	summaryMaxWords = 100
	summaryMaxRunes = 200
)

// Fetcher downloads and parses a single feed document into draft articles.
type Fetcher struct {
	client *http.Client
	parser *gofeed.Parser
}

// NewFetcher creates a fetcher with a timeout-bounded HTTP client.
func NewFetcher() *Fetcher {
	client := &http.Client{Timeout: fetchTimeout}
	parser := gofeed.NewParser()
	parser.UserAgent = userAgent
	parser.Client = client
	return &Fetcher{client: client, parser: parser}
}

// Fetch retrieves the feed at url and returns its items as draft articles
// in document order. The direct fetch-then-parse path is tried first; on
// any failure the parser library gets exactly one shot at fetching the URL
// itself, which covers feeds needing parser-specific quirk handling. When
// both paths fail the first error is surfaced since it carries the
// timeout/status detail.
func (f *Fetcher) Fetch(ctx context.Context, url string) ([]model.Article, error) {
	articles, err := f.fetchDirect(ctx, url)
	if err == nil {
		return articles, nil
	}

	parsed, fallbackErr := f.parser.ParseURLWithContext(url, ctx)
	if fallbackErr != nil {
		return nil, err
	}
	return f.articlesFromFeed(parsed), nil
}

func (f *Fetcher) fetchDirect(ctx context.Context, url string) ([]model.Article, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build request for %s: %w", url, err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", acceptHeader)

	resp, err := f.client.Do(req)
	if err != nil {
		if isTimeout(err) {
			return nil, &TimeoutError{URL: url, Err: err}
		}
		return nil, fmt.Errorf("fetch %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &HTTPError{URL: url, StatusCode: resp.StatusCode}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		if isTimeout(err) {
			return nil, &TimeoutError{URL: url, Err: err}
		}
		return nil, fmt.Errorf("read %s: %w", url, err)
	}

	parsed, err := f.parser.ParseString(string(body))
	if err != nil {
		return nil, &ParseError{URL: url, Err: err}
	}
	return f.articlesFromFeed(parsed), nil
}

func (f *Fetcher) articlesFromFeed(feed *gofeed.Feed) []model.Article {
	now := time.Now().Unix()
	articles := make([]model.Article, 0, len(feed.Items))
	for _, item := range feed.Items {
		if item == nil {
			continue
		}
		articles = append(articles, draftArticle(feed, item, now))
	}
	return articles
}

// draftArticle maps a parsed feed item onto the canonical article shape,
// defaulting every field the source may omit so ingestion never rejects an
// item for missing data.
func draftArticle(feed *gofeed.Feed, item *gofeed.Item, now int64) model.Article {
	title := strings.TrimSpace(item.Title)
	if title == "" {
		title = "Untitled"
	}

	// Link is the dedup key and must never be empty.
	link := item.Link
	if link == "" {
		link = item.GUID
	}
	if link == "" {
		link = uuid.NewString()
	}

	content := item.Content
	if content == "" {
		content = item.Description
	}
	if markdown.IsHTML(content) {
		content = markdown.Normalize(content)
	}

	// The feed's own summary is only worth keeping when it differs from the
	// derived content; a description-only item would otherwise repeat its
	// full body as the summary.
	var summary string
	if item.Description != "" {
		summary = item.Description
		if markdown.IsHTML(summary) {
			summary = markdown.Normalize(summary)
		}
	}
	if summary == "" || summary == content {
		summary = synthesizeSummary(content)
	}

	author := ""
	if len(item.Authors) > 0 && item.Authors[0] != nil {
		author = item.Authors[0].Name
	}
	if author == "" && item.Author != nil {
		author = item.Author.Name
	}
	if author == "" {
		author = feed.Title
	}

	pubDate := now
	if item.PublishedParsed != nil {
		pubDate = item.PublishedParsed.Unix()
	} else if item.UpdatedParsed != nil {
		pubDate = item.UpdatedParsed.Unix()
	}

	return model.Article{
		ID:      uuid.NewString(),
		Title:   title,
		Link:    link,
		Content: content,
		Summary: summary,
		Author:  author,
		PubDate: pubDate,
	}
}

var markdownSyntaxRe = regexp.MustCompile("[#*_`>\\[\\]()!~|-]")

// synthesizeSummary derives a short plain-text summary from Markdown
// content: syntax characters stripped, whitespace collapsed, first 100
// words, hard-capped at 200 characters.
func synthesizeSummary(content string) string {
	text := markdownSyntaxRe.ReplaceAllString(content, " ")
	words := strings.Fields(text)
	if len(words) > summaryMaxWords {
		words = words[:summaryMaxWords]
	}
	s := strings.Join(words, " ")
	if utf8.RuneCountInString(s) > summaryMaxRunes {
		s = string([]rune(s)[:summaryMaxRunes]) + "..."
	}
	return s
}

func isTimeout(err error) bool {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	return errors.Is(err, context.DeadlineExceeded)
}
