// FeedScribe serves aggregated news feeds and a music catalog proxy over
// HTTP, scraping whitelisted article pages in the background.
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/sethvargo/go-envconfig"
	_ "golang.org/x/crypto/x509roots/fallback"
	"golang.org/x/sync/errgroup"
	_ "modernc.org/sqlite"

	"github.com/feedscribe/feedscribe/internal/api"
	"github.com/feedscribe/feedscribe/internal/cache"
	"github.com/feedscribe/feedscribe/internal/feed"
	"github.com/feedscribe/feedscribe/internal/migrations"
	"github.com/feedscribe/feedscribe/internal/music"
	"github.com/feedscribe/feedscribe/internal/scrape"
	"github.com/feedscribe/feedscribe/internal/sqlite"
	"github.com/feedscribe/feedscribe/internal/worker"
	"github.com/feedscribe/feedscribe/logger"
)

type config struct {
	Port     string `env:"PORT, default=8000"`
	Database string `env:"DATABASE, required"`

	// Which format to use for logging: either text or json
	LoggerFormat string `env:"LOGGER_FORMAT, default=text"`

	CORSOrigin string `env:"CORS_ORIGIN, default=*"`

	ScrapeInterval       time.Duration `env:"SCRAPE_INTERVAL, default=300s"`
	ScrapeWorkers        int           `env:"SCRAPE_WORKERS, default=4"`
	StartPeriodicScraper bool          `env:"START_PERIODIC_SCRAPER, default=true"`
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	// Parse the config
	var cfg config
	if err := envconfig.Process(ctx, &cfg); err != nil {
		log.Fatalf("error parsing config: %s", err)
	}

	// Determine which logger format to use
	var handler slog.Handler = slog.NewTextHandler(os.Stderr, nil)
	if cfg.LoggerFormat == "json" {
		handler = slog.NewJSONHandler(os.Stderr, nil)
	}
	l := slog.New(logger.NewContextHandler(handler))
	slog.SetDefault(l)

	if err := run(ctx, cfg); err != nil {
		slog.Error("error running", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config) error {
	slog.Info("running", "port", cfg.Port, "database", cfg.Database)

	// Connect to the db
	dbx, err := sqlx.Open("sqlite", fmt.Sprintf("%s?_txlock=immediate&_journal_mode=WAL&_busy_timeout=5000", cfg.Database))
	if err != nil {
		return fmt.Errorf("error opening database: %s", err)
	}

	// Migrate, always
	if err := migrations.Run(dbx); err != nil {
		return fmt.Errorf("error migrating: %s", err)
	}

	repo := sqlite.New(dbx)
	scraper := scrape.New()
	agg := feed.NewAggregator(repo, scraper)
	pool := worker.NewPool(repo, scraper, cfg.ScrapeWorkers)
	refresher := worker.NewRefresher(repo, agg, pool, cfg.ScrapeInterval)

	srv := api.NewServer(cfg.Port, cfg.CORSOrigin, api.New(
		repo,
		agg,
		music.NewClient(),
		cache.New(1024, cache.TTL),
		pool,
	))

	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("error listening: %s", err)
		}

		return nil
	})
	g.Go(func() error {
		// Block from shutting down until the group is canceled
		<-gCtx.Done()

		downCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(downCtx); err != nil {
			slog.Error("error shutting down server", "error", err)
		}

		return nil
	})
	g.Go(func() error {
		return pool.Run(gCtx)
	})

	if cfg.StartPeriodicScraper {
		g.Go(func() error {
			return refresher.Run(gCtx)
		})
	}

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("error running: %s", err)
	}

	return nil
}
