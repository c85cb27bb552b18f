package rss

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/bingal/rss-reader/internal/database"
	"github.com/bingal/rss-reader/internal/model"
)

// MaxConcurrentRefreshes bounds how many feeds a refresh-all fetches in
// parallel, balancing latency against slow or congested origin servers.
const MaxConcurrentRefreshes = 5

// refreshTimeout bounds a single feed's fetch within a refresh, covering
// both the direct and the fallback attempt.
const refreshTimeout = 30 * time.Second

// Refresher coordinates fetching feeds and persisting their new articles.
type Refresher struct {
	db      database.Store
	fetcher *Fetcher
}

// NewRefresher creates a refresher backed by the given store.
func NewRefresher(db database.Store) *Refresher {
	return &Refresher{db: db, fetcher: NewFetcher()}
}

// RefreshResult reports a single feed refresh.
type RefreshResult struct {
	New   int // articles inserted
	Total int // items fetched from the source
}

// RefreshAllResult aggregates a refresh across every subscribed feed.
type RefreshAllResult struct {
	New    int
	Errors []string // "Feed Title: error" per failed feed
}

// RefreshFeed fetches a single feed and stores its unseen articles.
// Failures are wrapped with the feed's title for display; an unknown
// feedID yields database.ErrNotFound.
func (r *Refresher) RefreshFeed(ctx context.Context, feedID string) (RefreshResult, error) {
	if err := r.db.Ping(); err != nil {
		return RefreshResult{}, err
	}
	feed, err := r.db.GetFeedByID(feedID)
	if err != nil {
		return RefreshResult{}, err
	}
	res, err := r.refresh(ctx, feed)
	if err != nil {
		return res, &RefreshError{FeedTitle: feed.Title, Err: err}
	}
	return res, nil
}

// refresh runs the fetch-dedup-insert cycle for one feed. The feed's
// updated_at advances on every successful pass, including ones that found
// nothing new.
func (r *Refresher) refresh(ctx context.Context, feed *model.Feed) (RefreshResult, error) {
	fetchCtx, cancel := context.WithTimeout(ctx, refreshTimeout)
	defer cancel()

	drafts, err := r.fetcher.Fetch(fetchCtx, feed.URL)
	if err != nil {
		return RefreshResult{}, err
	}

	existing, err := r.db.GetArticleLinks(feed.ID)
	if err != nil {
		return RefreshResult{}, fmt.Errorf("load stored links: %w", err)
	}

	now := time.Now().Unix()
	saved := 0
	for i := range drafts {
		a := &drafts[i]
		if _, seen := existing[a.Link]; seen {
			continue
		}
		// Marking the link seen here also collapses duplicates the feed
		// emitted within this same fetch.
		existing[a.Link] = struct{}{}

		a.FeedID = feed.ID
		a.IsRead = false
		a.IsStarred = false
		a.FetchedAt = now
		inserted, err := r.db.AddArticle(a)
		if err != nil {
			return RefreshResult{New: saved, Total: len(drafts)},
				fmt.Errorf("save article %s: %w", a.Link, err)
		}
		if inserted {
			saved++
		}
	}

	if err := r.db.TouchFeed(feed.ID, now); err != nil {
		log.Printf("update feed %s timestamp: %v", feed.ID, err)
	}
	return RefreshResult{New: saved, Total: len(drafts)}, nil
}

// RefreshAll refreshes every subscribed feed in batches of
// MaxConcurrentRefreshes. One feed's failure never aborts the others;
// failures are collected into the result rather than returned, so a
// partial refresh is always a soft outcome.
func (r *Refresher) RefreshAll(ctx context.Context) (RefreshAllResult, error) {
	if err := r.db.Ping(); err != nil {
		return RefreshAllResult{}, err
	}
	feeds, err := r.db.GetFeeds()
	if err != nil {
		return RefreshAllResult{}, err
	}

	type outcome struct {
		res RefreshResult
		err error
	}

	var result RefreshAllResult
	for start := 0; start < len(feeds); start += MaxConcurrentRefreshes {
		batch := feeds[start:min(start+MaxConcurrentRefreshes, len(feeds))]
		outcomes := make([]outcome, len(batch))

		var wg sync.WaitGroup
		for i := range batch {
			wg.Add(1)
			go func(i int, feed model.Feed) {
				defer wg.Done()
				res, err := r.refresh(ctx, &feed)
				outcomes[i] = outcome{res: res, err: err}
			}(i, batch[i])
		}
		wg.Wait()

		for i, o := range outcomes {
			if o.err != nil {
				log.Printf("refresh %s: %v", batch[i].URL, o.err)
				result.Errors = append(result.Errors,
					fmt.Sprintf("%s: %v", batch[i].Title, o.err))
				continue
			}
			result.New += o.res.New
		}
	}
	return result, nil
}
