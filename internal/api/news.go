package api

import (
	"fmt"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"

	"github.com/feedscribe/feedscribe/internal/cache"
	fserrs "github.com/feedscribe/feedscribe/internal/errors"
	"github.com/feedscribe/feedscribe/internal/feed"
	"github.com/feedscribe/feedscribe/internal/feedscribe"
)

const (
	defaultNewsLimit     = 12
	defaultTrendingLimit = 10
)

// news serves the paginated feed list for a category. Stored articles are
// preferred; an empty first page triggers a live poll of the category's
// sources, which persists whatever it finds.
func (a *API) news(w http.ResponseWriter, r *http.Request) error {
	ctx := r.Context()

	category := strings.ToLower(strings.TrimSpace(r.URL.Query().Get("category")))
	if category == "" {
		category = "world"
	}
	limit := queryInt(r, "limit", defaultNewsLimit)
	offset := queryInt(r, "offset", 0)

	key := cache.Key("news", map[string]string{
		"category": category,
		"limit":    strconv.Itoa(limit),
		"offset":   strconv.Itoa(offset),
	})
	if hit, err := a.replayCached(w, key); hit {
		return err
	}

	articles, err := a.repo.Articles(ctx, feedscribe.ListArticlesArgs{
		Category: category,
		Limit:    uint64(limit),
		Offset:   uint64(offset),
	})
	if err != nil {
		return fmt.Errorf("error listing articles: %w", err)
	}

	items := make([]feedscribe.FeedItem, 0, len(articles))
	for _, article := range articles {
		items = append(items, feed.ItemFromArticle(article))
	}
	feed.MarkTrending(items)

	// Nothing stored yet for this category: poll the feeds directly.
	if len(items) == 0 && offset == 0 {
		if category == "all" {
			items = a.agg.FetchAll(ctx, limit)
		} else {
			items = a.agg.FetchCategory(ctx, category, limit)
		}
	}
	if items == nil {
		items = []feedscribe.FeedItem{}
	}

	return a.respondCached(w, key, resultsResponse{Results: items})
}

// Full article payload for the detail endpoint.
type articleDetail struct {
	ID          string `json:"id"`
	Link        string `json:"link"`
	Title       string `json:"title"`
	Content     string `json:"content"`
	Excerpt     string `json:"excerpt"`
	Image       string `json:"image"`
	Source      string `json:"source"`
	Category    string `json:"category"`
	ReadTime    string `json:"readTime"`
	PublishedAt string `json:"publishedAt"`
	IsScraped   bool   `json:"isScraped"`
}

// newsDetail serves one article by its encoded link. Articles without
// scraped content come back as stubs while a scrape job is queued in the
// background; the client polls until isScraped flips.
func (a *API) newsDetail(w http.ResponseWriter, r *http.Request) error {
	ctx := r.Context()

	id := mux.Vars(r)["id"]
	link, err := feedscribe.DecodeItemID(id)
	if err != nil {
		return fserrs.E(http.StatusBadRequest, "malformed article id")
	}

	key := cache.Key("news_detail", map[string]string{"id": id})
	if hit, err := a.replayCached(w, key); hit {
		return err
	}

	article, err := a.repo.Stub(ctx, link)
	if err != nil {
		return fmt.Errorf("error fetching article: %w", err)
	}

	if !article.IsScraped && a.pool.Submit(ctx, link) {
		slog.InfoContext(ctx, "queued scrape for article", "url", link)
	}

	item := feed.ItemFromArticle(article)
	detail := articleDetail{
		ID:          item.ID,
		Link:        article.URL,
		Title:       article.Title,
		Content:     article.Content,
		Excerpt:     article.Excerpt,
		Image:       article.Image,
		Source:      article.Source,
		Category:    item.Category,
		ReadTime:    article.ReadTime,
		PublishedAt: item.PublishedAt,
		IsScraped:   article.IsScraped,
	}

	return a.respondCached(w, key, detail)
}

// Trimmed-down record for the trending rail.
type trendingItem struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	Image    string `json:"image"`
	Source   string `json:"source"`
	Category string `json:"category"`
	Views    string `json:"views"`
	TimeAgo  string `json:"timeAgo"`
	Link     string `json:"link"`
}

// trending serves the most recently published stored articles. An empty
// store gets primed with a small live poll of every category first.
func (a *API) trending(w http.ResponseWriter, r *http.Request) error {
	ctx := r.Context()

	limit := queryInt(r, "limit", defaultTrendingLimit)

	key := cache.Key("trending", map[string]string{"limit": strconv.Itoa(limit)})
	if hit, err := a.replayCached(w, key); hit {
		return err
	}

	articles, err := a.repo.Articles(ctx, feedscribe.ListArticlesArgs{Limit: uint64(limit)})
	if err != nil {
		return fmt.Errorf("error listing articles: %w", err)
	}

	if len(articles) == 0 {
		for _, category := range feed.Categories() {
			a.agg.FetchCategory(ctx, category, 5)
		}

		articles, err = a.repo.Articles(ctx, feedscribe.ListArticlesArgs{Limit: uint64(limit)})
		if err != nil {
			return fmt.Errorf("error listing articles: %w", err)
		}
	}

	items := make([]trendingItem, 0, len(articles))
	for _, article := range articles {
		item := feed.ItemFromArticle(article)
		items = append(items, trendingItem{
			ID:       item.ID,
			Title:    item.Title,
			Image:    article.Image,
			Source:   article.Source,
			Category: item.Category,
			Views:    fmt.Sprintf("%dK", 100+rand.IntN(1901)),
			TimeAgo:  "recent",
			Link:     article.URL,
		})
	}

	return a.respondCached(w, key, resultsResponse{Results: items})
}
