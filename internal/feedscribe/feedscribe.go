// Package feedscribe holds the core domain types shared between the
// aggregation, scraping, and API layers.
package feedscribe

import (
	"context"
	"encoding/base64"
	"errors"
	"time"
)

var (
	ErrConflict = errors.New("resource already exists")
	ErrNotFound = errors.New("resource not found")
)

type (
	// Article is the durable record of a single link. It is created the
	// first time a link shows up in a feed poll (or as an empty stub when
	// a detail request arrives for an unseen link) and is never deleted.
	Article struct {
		ID          string     `db:"id" json:"-"`
		URL         string     `db:"url" json:"url"`
		Title       string     `db:"title" json:"title"`
		Content     string     `db:"content" json:"content"`
		Excerpt     string     `db:"excerpt" json:"excerpt"`
		Author      *string    `db:"author" json:"author"`
		PublishedAt *time.Time `db:"published_at" json:"publishedAt"`
		ScrapedAt   time.Time  `db:"scraped_at" json:"scrapedAt"`
		Source      string     `db:"source" json:"source"`
		Category    string     `db:"category" json:"category"`
		ReadTime    string     `db:"read_time" json:"readTime"`
		Image       string     `db:"image" json:"image"`
		IsScraped   bool       `db:"is_scraped" json:"isScraped"`
	}

	// FeedItem is the transient, normalized representation of one feed
	// entry as it goes out over the API. It is rebuilt on every request
	// rather than persisted.
	FeedItem struct {
		ID          string  `json:"id"`
		Title       string  `json:"title"`
		Excerpt     string  `json:"excerpt"`
		Image       string  `json:"image"`
		Source      string  `json:"source"`
		PublishedAt string  `json:"publishedAt"`
		Trending    bool    `json:"trending"`
		Author      *string `json:"author"`
		Category    string  `json:"category"`
		ReadTime    string  `json:"readTime"`
		Link        string  `json:"link"`
	}

	// Holds the filters for listing stored articles.
	ListArticlesArgs struct {
		Category string // empty or "all" means no filter
		Limit    uint64
		Offset   uint64
	}

	ArticleRepo interface {
		ArticleByURL(ctx context.Context, url string) (Article, error)
		// EnsureArticle inserts the article if no row exists for its URL.
		// Repeat ingestion of the same link leaves the stored metadata
		// untouched.
		EnsureArticle(ctx context.Context, a Article) error
		// Stub fetches the article for the URL, creating an empty record
		// first if the URL has never been seen.
		Stub(ctx context.Context, url string) (Article, error)
		Articles(ctx context.Context, args ListArticlesArgs) ([]Article, error)
		// UpdateContent stores scraped content for a URL and flips the
		// article to scraped in the same statement.
		UpdateContent(ctx context.Context, url, title, content string) error
		Unscraped(ctx context.Context) ([]Article, error)
		ScrapedBefore(ctx context.Context, t time.Time) ([]Article, error)
	}
)

// EncodeItemID derives the API identifier for a link: URL-safe base64 with
// the padding stripped. The encoding is reversible via [DecodeItemID].
func EncodeItemID(link string) string {
	return base64.RawURLEncoding.EncodeToString([]byte(link))
}

// DecodeItemID recovers the original link from an item identifier.
func DecodeItemID(id string) (string, error) {
	b, err := base64.RawURLEncoding.DecodeString(id)
	if err != nil {
		return "", err
	}

	return string(b), nil
}
