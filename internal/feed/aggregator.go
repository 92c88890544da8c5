package feed

import (
	"context"
	"log/slog"
	"net/http"
	"sort"
	"time"

	"github.com/mmcdole/gofeed"

	"github.com/feedscribe/feedscribe/internal/feedscribe"
)

// How many of the freshest items get the trending flag. Display-only, not
// a derived ranking.
const trendingCount = 5

// Aggregator pulls the configured feeds for a category, normalizes their
// entries, and persists an article record per link as a side effect.
type Aggregator struct {
	repo   feedscribe.ArticleRepo
	picker Picker
	parser *gofeed.Parser
}

func NewAggregator(repo feedscribe.ArticleRepo, og OGImageFetcher) *Aggregator {
	parser := gofeed.NewParser()
	parser.Client = &http.Client{Timeout: 10 * time.Second}
	parser.UserAgent = "FeedScribe/1.0"

	return &Aggregator{
		repo:   repo,
		picker: Picker{OG: og},
		parser: parser,
	}
}

// FetchCategory aggregates the category's configured sources.
func (a *Aggregator) FetchCategory(ctx context.Context, category string, limit int) []feedscribe.FeedItem {
	return a.Fetch(ctx, SourcesFor(category), category, limit)
}

// Fetch pulls every source in order, skipping sources that fail to parse,
// and returns the deduplicated items newest-first with the freshest
// min(5, N) marked trending. Each entry is also written through to the
// article store (create-if-absent, keyed by link).
func (a *Aggregator) Fetch(ctx context.Context, sources []string, category string, limit int) []feedscribe.FeedItem {
	var items []feedscribe.FeedItem
	for _, src := range sources {
		parsed, err := a.parser.ParseURLWithContext(src, ctx)
		if err != nil {
			slog.Warn("error parsing feed, skipping source", "url", src, "error", err)
			continue
		}

		source := parsed.Title
		if source == "" {
			source = "Source"
		}

		for _, entry := range parsed.Items {
			image := a.picker.Pick(ctx, entry, category)
			item, ok := NewItem(entry, source, category, image)
			if !ok {
				continue
			}

			a.persist(ctx, item, entry, category)
			items = append(items, item)
		}
	}

	items = dedupe(items)
	sortByPublished(items)
	markTrending(items)
	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}

	return items
}

// FetchAll aggregates every category and merges the results newest-first.
func (a *Aggregator) FetchAll(ctx context.Context, limit int) []feedscribe.FeedItem {
	var all []feedscribe.FeedItem
	for _, cat := range Categories() {
		all = append(all, a.FetchCategory(ctx, cat, limit)...)
	}

	sortByPublished(all)
	if limit > 0 && len(all) > limit {
		all = all[:limit]
	}

	return all
}

// The store keeps the first-seen metadata for a link; failures here only
// cost durability, not the response.
func (a *Aggregator) persist(ctx context.Context, item feedscribe.FeedItem, entry *gofeed.Item, category string) {
	published := resolvePublished(entry)

	err := a.repo.EnsureArticle(ctx, feedscribe.Article{
		URL:         item.Link,
		Title:       item.Title,
		Excerpt:     item.Excerpt,
		Author:      item.Author,
		PublishedAt: &published,
		Source:      item.Source,
		Category:    category,
		ReadTime:    item.ReadTime,
		Image:       item.Image,
	})
	if err != nil {
		slog.Warn("error persisting article", "url", item.Link, "error", err)
	}
}

// dedupe drops repeat links, keeping first-seen order.
func dedupe(items []feedscribe.FeedItem) []feedscribe.FeedItem {
	seen := make(map[string]struct{}, len(items))
	deduped := items[:0]
	for _, it := range items {
		if _, ok := seen[it.ID]; ok {
			continue
		}
		seen[it.ID] = struct{}{}
		deduped = append(deduped, it)
	}

	return deduped
}

// The timestamps are fixed-width ISO-8601, so lexicographic order is
// chronological order.
func sortByPublished(items []feedscribe.FeedItem) {
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].PublishedAt > items[j].PublishedAt
	})
}

func markTrending(items []feedscribe.FeedItem) {
	n := min(trendingCount, len(items))
	for i := 0; i < n; i++ {
		items[i].Trending = true
	}
}

// MarkTrending flags the first min(5, N) of an already newest-first list.
// Used when items are rebuilt from the store instead of a live fetch.
func MarkTrending(items []feedscribe.FeedItem) {
	markTrending(items)
}
