// Command scraper is the operational companion to the server: it scrapes
// article content into the same database, either for specific URLs or in
// bulk sweeps.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/urfave/cli/v2"
	_ "golang.org/x/crypto/x509roots/fallback"
	_ "modernc.org/sqlite"

	"github.com/feedscribe/feedscribe/internal/feed"
	"github.com/feedscribe/feedscribe/internal/feedscribe"
	"github.com/feedscribe/feedscribe/internal/migrations"
	"github.com/feedscribe/feedscribe/internal/scrape"
	"github.com/feedscribe/feedscribe/internal/sqlite"
	"github.com/feedscribe/feedscribe/internal/worker"
	"github.com/feedscribe/feedscribe/logger"
)

func main() {
	app := &cli.App{
		Name:  "scraper",
		Usage: "Scrape article content for stored feed links",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "db",
				Aliases:  []string{"d"},
				Usage:    "Database file path",
				EnvVars:  []string{"DATABASE"},
				Required: true,
			},
		},
		Commands: []*cli.Command{
			{
				Name:      "urls",
				Usage:     "Scrape specific article URLs",
				ArgsUsage: "<url>...",
				Action:    scrapeURLs,
			},
			{
				Name:   "all",
				Usage:  "Scrape every article that has no content yet",
				Action: scrapeUnscraped,
			},
			{
				Name:   "stale",
				Usage:  "Re-scrape articles last scraped over an hour ago",
				Action: scrapeStale,
			},
			{
				Name:  "run",
				Usage: "Loop forever: poll feeds and scrape on an interval",
				Flags: []cli.Flag{
					&cli.DurationFlag{
						Name:    "interval",
						Aliases: []string{"i"},
						Value:   300 * time.Second,
						Usage:   "Time between refresh cycles",
					},
				},
				Action: runPeriodic,
			},
		},
	}

	slog.SetDefault(slog.New(logger.NewContextHandler(slog.NewTextHandler(os.Stderr, nil))))

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "error: %s\n", err)
		os.Exit(1)
	}
}

func openRepo(c *cli.Context) (feedscribe.ArticleRepo, error) {
	dbx, err := sqlx.Open("sqlite", fmt.Sprintf("%s?_txlock=immediate&_journal_mode=WAL&_busy_timeout=5000", c.String("db")))
	if err != nil {
		return nil, fmt.Errorf("error opening database: %s", err)
	}

	if err := migrations.Run(dbx); err != nil {
		return nil, fmt.Errorf("error migrating: %s", err)
	}

	return sqlite.New(dbx), nil
}

func scrapeURLs(c *cli.Context) error {
	if c.Args().Len() == 0 {
		return cli.Exit("at least one url is required", 2)
	}

	repo, err := openRepo(c)
	if err != nil {
		return err
	}

	return scrapeEach(c.Context, repo, c.Args().Slice())
}

func scrapeUnscraped(c *cli.Context) error {
	repo, err := openRepo(c)
	if err != nil {
		return err
	}

	articles, err := repo.Unscraped(c.Context)
	if err != nil {
		return fmt.Errorf("error listing unscraped articles: %s", err)
	}

	return scrapeEach(c.Context, repo, urls(articles))
}

func scrapeStale(c *cli.Context) error {
	repo, err := openRepo(c)
	if err != nil {
		return err
	}

	articles, err := repo.ScrapedBefore(c.Context, time.Now().Add(-time.Hour))
	if err != nil {
		return fmt.Errorf("error listing stale articles: %s", err)
	}

	return scrapeEach(c.Context, repo, urls(articles))
}

func runPeriodic(c *cli.Context) error {
	repo, err := openRepo(c)
	if err != nil {
		return err
	}

	scraper := scrape.New()
	agg := feed.NewAggregator(repo, scraper)
	pool := worker.NewPool(repo, scraper, 4)
	refresher := worker.NewRefresher(repo, agg, pool, c.Duration("interval"))

	ctx, cancel := context.WithCancel(c.Context)
	defer cancel()
	go pool.Run(ctx)

	fmt.Printf("refreshing every %s\n", c.Duration("interval"))
	return refresher.Run(ctx)
}

// scrapeEach works through the URLs synchronously, printing per-URL
// progress and a final tally.
func scrapeEach(ctx context.Context, repo feedscribe.ArticleRepo, pageURLs []string) error {
	scraper := scrape.New()

	scraped := 0
	for _, pageURL := range pageURLs {
		if !scraper.Allowed(pageURL) {
			fmt.Printf("skip (not whitelisted): %s\n", pageURL)
			continue
		}

		res, ok := scraper.Article(ctx, pageURL)
		if !ok || res.Empty() {
			fmt.Printf("no content: %s\n", pageURL)
			continue
		}

		if _, err := repo.Stub(ctx, pageURL); err != nil {
			return fmt.Errorf("error ensuring article for %s: %s", pageURL, err)
		}
		if err := repo.UpdateContent(ctx, pageURL, res.Title, res.Content); err != nil {
			return fmt.Errorf("error storing content for %s: %s", pageURL, err)
		}

		fmt.Printf("scraped: %s\n", pageURL)
		scraped++
	}

	fmt.Printf("done: %d/%d scraped\n", scraped, len(pageURLs))
	return nil
}

func urls(articles []feedscribe.Article) []string {
	out := make([]string, 0, len(articles))
	for _, a := range articles {
		out = append(out, a.URL)
	}
	return out
}
