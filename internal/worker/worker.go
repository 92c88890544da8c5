// Package worker runs the background scraping machinery: a bounded pool
// that fills in article content off the request path, and a periodic
// refresher that keeps the store warm.
package worker

import (
	"context"
	"log/slog"
	"sync"

	"github.com/feedscribe/feedscribe/internal/feedscribe"
	"github.com/feedscribe/feedscribe/internal/scrape"
	"github.com/feedscribe/feedscribe/logger"
)

// ArticleScraper extracts readable content from a whitelisted page.
type ArticleScraper interface {
	Allowed(pageURL string) bool
	Article(ctx context.Context, pageURL string) (scrape.Result, bool)
}

// Pool scrapes submitted URLs on a fixed set of goroutines. Submissions
// never block the caller: when the queue is full the URL is dropped and
// picked up later by the refresher's unscraped sweep.
type Pool struct {
	repo    feedscribe.ArticleRepo
	scraper ArticleScraper

	workers int
	jobs    chan string
}

func NewPool(repo feedscribe.ArticleRepo, scraper ArticleScraper, workers int) *Pool {
	if workers < 1 {
		workers = 1
	}

	return &Pool{
		repo:    repo,
		scraper: scraper,
		workers: workers,
		jobs:    make(chan string, 256),
	}
}

// Submit enqueues a URL for scraping, reporting whether it was accepted.
// URLs outside the scrape whitelist are rejected up front.
func (p *Pool) Submit(ctx context.Context, pageURL string) bool {
	if !p.scraper.Allowed(pageURL) {
		return false
	}

	select {
	case p.jobs <- pageURL:
		return true
	default:
		slog.WarnContext(ctx, "scrape queue full, dropping url", "url", pageURL)
		return false
	}
}

// Run processes jobs until the context is cancelled, then drains the
// in-flight workers before returning.
func (p *Pool) Run(ctx context.Context) error {
	var wg sync.WaitGroup
	for range p.workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case pageURL := <-p.jobs:
					p.scrapeOne(ctx, pageURL)
				}
			}
		}()
	}

	wg.Wait()
	return ctx.Err()
}

func (p *Pool) scrapeOne(ctx context.Context, pageURL string) {
	ctx = logger.Ctx(ctx, slog.String("url", pageURL))

	res, ok := p.scraper.Article(ctx, pageURL)
	if !ok || res.Empty() {
		slog.InfoContext(ctx, "scrape produced no content")
		return
	}

	if err := p.repo.UpdateContent(ctx, pageURL, res.Title, res.Content); err != nil {
		slog.ErrorContext(ctx, "error storing scraped content", "error", err)
		return
	}

	slog.InfoContext(ctx, "scraped article content")
}
