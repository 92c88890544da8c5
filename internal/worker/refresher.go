package worker

import (
	"context"
	"log/slog"
	"time"

	"github.com/feedscribe/feedscribe/internal/feed"
	"github.com/feedscribe/feedscribe/internal/feedscribe"
)

const (
	// Articles scraped longer ago than this get refreshed each cycle.
	staleAfter = time.Hour

	// How many items to pull per category on a refresh poll.
	refreshLimit = 20
)

// CategoryFetcher polls the configured feeds for a category, persisting
// anything new as a side effect.
type CategoryFetcher interface {
	FetchCategory(ctx context.Context, category string, limit int) []feedscribe.FeedItem
}

// Refresher re-polls every feed category on a fixed interval and queues
// scrape work for articles that have no content yet or have gone stale.
type Refresher struct {
	repo     feedscribe.ArticleRepo
	agg      CategoryFetcher
	pool     *Pool
	interval time.Duration
}

func NewRefresher(repo feedscribe.ArticleRepo, agg CategoryFetcher, pool *Pool, interval time.Duration) *Refresher {
	return &Refresher{
		repo:     repo,
		agg:      agg,
		pool:     pool,
		interval: interval,
	}
}

// Run loops until the context is cancelled. The first cycle fires one
// full interval after startup so a fresh deploy doesn't hammer the feeds
// while it is still serving its first requests.
func (r *Refresher) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			r.cycle(ctx)
		}
	}
}

func (r *Refresher) cycle(ctx context.Context) {
	defer func() {
		if rec := recover(); rec != nil {
			slog.ErrorContext(ctx, "refresh cycle panicked", "panic", rec)
		}
	}()

	start := time.Now()

	for _, category := range feed.Categories() {
		r.agg.FetchCategory(ctx, category, refreshLimit)
	}

	queued := 0
	queued += r.queue(ctx, func() ([]feedscribe.Article, error) {
		return r.repo.Unscraped(ctx)
	})
	queued += r.queue(ctx, func() ([]feedscribe.Article, error) {
		return r.repo.ScrapedBefore(ctx, time.Now().Add(-staleAfter))
	})

	slog.InfoContext(ctx, "refresh cycle complete",
		"queued", queued,
		"took", time.Since(start).String(),
	)
}

func (r *Refresher) queue(ctx context.Context, list func() ([]feedscribe.Article, error)) int {
	articles, err := list()
	if err != nil {
		slog.ErrorContext(ctx, "error listing articles to scrape", "error", err)
		return 0
	}

	queued := 0
	for _, a := range articles {
		if r.pool.Submit(ctx, a.URL) {
			queued++
		}
	}

	return queued
}
