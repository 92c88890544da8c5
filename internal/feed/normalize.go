// Package feed turns raw RSS/Atom entries into the canonical items the API
// serves, picks representative images for them, and aggregates entries
// across the configured sources.
package feed

import (
	"fmt"
	"html"
	"strings"
	"time"

	"github.com/microcosm-cc/bluemonday"
	"github.com/mmcdole/gofeed"

	"github.com/feedscribe/feedscribe/internal/feedscribe"
)

// Timestamps go out as ISO-8601 UTC with the Z suffix.
const timeLayout = "2006-01-02T15:04:05Z"

const excerptLimit = 240

var stripPolicy = bluemonday.StrictPolicy()

// NewItem normalizes one raw feed entry into a FeedItem. The second return
// is false for entries without a link, which are skipped rather than
// treated as errors.
func NewItem(entry *gofeed.Item, source, category, image string) (feedscribe.FeedItem, bool) {
	if entry.Link == "" {
		return feedscribe.FeedItem{}, false
	}

	title := entry.Title
	if title == "" {
		title = "Untitled"
	}

	summary := entry.Description
	if summary == "" {
		summary = entry.Content
	}

	readFrom := summary
	if readFrom == "" {
		readFrom = title
	}

	var author *string
	if entry.Author != nil && entry.Author.Name != "" {
		author = &entry.Author.Name
	}

	return feedscribe.FeedItem{
		ID:          feedscribe.EncodeItemID(entry.Link),
		Title:       title,
		Excerpt:     Excerpt(summary),
		Image:       image,
		Source:      source,
		PublishedAt: resolvePublished(entry).Format(timeLayout),
		Author:      author,
		Category:    capitalize(category),
		ReadTime:    ReadTime(readFrom),
		Link:        entry.Link,
	}, true
}

// ItemFromArticle rebuilds the API item for an already-persisted article.
func ItemFromArticle(a feedscribe.Article) feedscribe.FeedItem {
	published := a.ScrapedAt
	if a.PublishedAt != nil {
		published = *a.PublishedAt
	}

	return feedscribe.FeedItem{
		ID:          feedscribe.EncodeItemID(a.URL),
		Title:       a.Title,
		Excerpt:     a.Excerpt,
		Image:       a.Image,
		Source:      a.Source,
		PublishedAt: published.UTC().Format(timeLayout),
		Author:      a.Author,
		Category:    capitalize(a.Category),
		ReadTime:    a.ReadTime,
		Link:        a.URL,
	}
}

// resolvePublished works out when an entry was published: the pre-parsed
// feed timestamp when the parser got one, then the raw date string per RFC
// 2822, then the current time. Parse failures fall through silently.
func resolvePublished(entry *gofeed.Item) time.Time {
	if entry.PublishedParsed != nil {
		return entry.PublishedParsed.UTC()
	}
	if entry.UpdatedParsed != nil {
		return entry.UpdatedParsed.UTC()
	}

	raw := entry.Published
	if raw == "" {
		raw = entry.Updated
	}
	if raw != "" {
		for _, layout := range []string{time.RFC1123Z, time.RFC1123} {
			if t, err := time.Parse(layout, raw); err == nil {
				return t.UTC()
			}
		}
	}

	return time.Now().UTC()
}

// Excerpt strips all HTML from a summary and truncates it for display.
// Empty summaries yield an empty excerpt.
func Excerpt(summary string) string {
	if summary == "" {
		return ""
	}

	text := strings.TrimSpace(html.UnescapeString(stripPolicy.Sanitize(summary)))
	if runes := []rune(text); len(runes) > excerptLimit {
		return string(runes[:excerptLimit])
	}

	return text
}

// ReadTime estimates reading minutes at 200 words per minute, never less
// than one minute.
func ReadTime(text string) string {
	minutes := len(strings.Fields(text)) / 200
	if minutes < 1 {
		minutes = 1
	}

	return fmt.Sprintf("%d min read", minutes)
}

// capitalize upper-cases the first letter and lower-cases the rest, for
// display.
func capitalize(s string) string {
	if s == "" {
		return s
	}

	return strings.ToUpper(s[:1]) + strings.ToLower(s[1:])
}
