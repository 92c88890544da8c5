package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"

	"github.com/feedscribe/feedscribe/internal/feedscribe"
)

const articleNamespace = "-art"

func (r Repo) ArticleByURL(ctx context.Context, url string) (feedscribe.Article, error) {
	const q = `SELECT * FROM articles WHERE url = ?;`

	var a feedscribe.Article
	err := r.db.GetContext(ctx, &a, q, url)
	if errors.Is(err, sql.ErrNoRows) {
		return feedscribe.Article{}, feedscribe.ErrNotFound
	}
	if err != nil {
		return feedscribe.Article{}, fmt.Errorf("error fetching article: %s", err)
	}

	return a, nil
}

// EnsureArticle inserts the article keyed by its URL. A row that already
// exists for the URL is left alone, so repeat ingestion of the same link
// never overwrites earlier metadata. The unique constraint on url makes
// this safe under concurrent ingestion.
func (r Repo) EnsureArticle(ctx context.Context, a feedscribe.Article) error {
	const q = `INSERT INTO articles (id, url, title, excerpt, author, published_at, scraped_at, source, category, read_time, image)
	VALUES (:id, :url, :title, :excerpt, :author, :published_at, :scraped_at, :source, :category, :read_time, :image)
	ON CONFLICT(url) DO NOTHING;`

	a.ID = fmt.Sprintf("%s%s", uuid.NewString(), articleNamespace)
	if a.ScrapedAt.IsZero() {
		a.ScrapedAt = time.Now().UTC()
	}
	if _, err := r.db.NamedExecContext(ctx, q, a); err != nil {
		return fmt.Errorf("error inserting article: %s", err)
	}

	return nil
}

// Stub fetches the article for the URL, creating an empty record first if
// the URL has never been seen.
func (r Repo) Stub(ctx context.Context, url string) (feedscribe.Article, error) {
	if err := r.EnsureArticle(ctx, feedscribe.Article{URL: url}); err != nil {
		return feedscribe.Article{}, err
	}

	return r.ArticleByURL(ctx, url)
}

func (r Repo) Articles(ctx context.Context, args feedscribe.ListArticlesArgs) ([]feedscribe.Article, error) {
	q := sq.Select("*").From("articles").OrderBy("published_at DESC")
	if args.Category != "" && args.Category != "all" {
		q = q.Where(sq.Eq{"category": args.Category})
	}
	if args.Limit > 0 {
		q = q.Limit(args.Limit)
	}
	if args.Offset > 0 {
		q = q.Offset(args.Offset)
	}

	query, qArgs, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("error constructing sql: %s", err)
	}

	articles := []feedscribe.Article{}
	if err := r.db.SelectContext(ctx, &articles, query, qArgs...); err != nil {
		return nil, fmt.Errorf("error fetching articles: %s", err)
	}

	return articles, nil
}

// UpdateContent stores scraped title and content for a URL, marking the
// article scraped and refreshing scraped_at in the same statement.
func (r Repo) UpdateContent(ctx context.Context, url, title, content string) error {
	const q = `UPDATE articles SET title = ?, content = ?, is_scraped = 1, scraped_at = ? WHERE url = ?;`

	if _, err := r.db.ExecContext(ctx, q, title, content, time.Now().UTC(), url); err != nil {
		return fmt.Errorf("error updating article content: %s", err)
	}

	return nil
}

func (r Repo) Unscraped(ctx context.Context) ([]feedscribe.Article, error) {
	const q = `SELECT * FROM articles WHERE is_scraped = 0;`

	articles := []feedscribe.Article{}
	if err := r.db.SelectContext(ctx, &articles, q); err != nil {
		return nil, fmt.Errorf("error fetching unscraped articles: %s", err)
	}

	return articles, nil
}

// ScrapedBefore lists articles whose last write is older than t, used to
// refresh stale content on the periodic cycle.
func (r Repo) ScrapedBefore(ctx context.Context, t time.Time) ([]feedscribe.Article, error) {
	const q = `SELECT * FROM articles WHERE scraped_at < ?;`

	articles := []feedscribe.Article{}
	if err := r.db.SelectContext(ctx, &articles, q, t); err != nil {
		return nil, fmt.Errorf("error fetching stale articles: %s", err)
	}

	return articles, nil
}
