package feed

import (
	"context"
	"regexp"
	"strings"

	"github.com/mmcdole/gofeed"
)

// OGImageFetcher resolves a page's Open Graph preview image. Implemented by
// the scraper; stubbed in tests.
type OGImageFetcher interface {
	OGImage(ctx context.Context, pageURL string) (string, bool)
}

// Picker chooses a representative image for a feed entry. It always comes
// back with something: a media attachment, an inline image, the page's
// OG image, or a deterministic category placeholder.
type Picker struct {
	OG OGImageFetcher
}

// Markers of generic site furniture (logos, icons, tracking pixels) that
// make a poor story image.
var genericMarkers = []string{
	"logo",
	"sprite",
	"icon",
	"favicon",
	"placeholder",
	"default",
	"badge",
	"brand",
	"avatar",
	"/logos/",
}

// Tracking pixels and tiny thumbnails advertise themselves with a
// one-or-two digit width query parameter.
var smallWidthRe = regexp.MustCompile(`(?i)[?&](?:w|width)=\d{1,2}(?:&|$)`)

var inlineImgRe = regexp.MustCompile(`(?i)<img[^>]+src=["']?([^"' >]+)`)

var imageExtensions = []string{".jpg", ".jpeg", ".png", ".gif", ".webp"}

// Pick selects the entry's image: the first valid non-generic candidate,
// else the entry page's OG image, else the first valid candidate however
// generic, else the category placeholder. Never empty.
func (p Picker) Pick(ctx context.Context, entry *gofeed.Item, category string) string {
	var valid []string
	for _, cand := range collectCandidates(entry) {
		u, ok := normalizeImageURL(cand)
		if !ok {
			continue
		}
		valid = append(valid, u)
	}

	for _, u := range valid {
		if !isGeneric(u) {
			return u
		}
	}

	if p.OG != nil && entry.Link != "" {
		if img, ok := p.OG.OGImage(ctx, entry.Link); ok {
			return img
		}
	}

	if len(valid) > 0 {
		return valid[0]
	}

	return Placeholder(category)
}

// Placeholder synthesizes a deterministic image URL seeded by the category.
func Placeholder(category string) string {
	seed := strings.ReplaceAll(strings.ToLower(category), " ", "-")

	return "https://picsum.photos/seed/" + seed + "-news/800/400"
}

// Candidates are gathered in priority order before any filtering, so the
// earliest sources win ties.
func collectCandidates(entry *gofeed.Item) []string {
	var cands []string

	for _, key := range []string{"content", "thumbnail"} {
		if media, ok := entry.Extensions["media"]; ok {
			for _, e := range media[key] {
				if u := e.Attrs["url"]; u != "" {
					cands = append(cands, u)
				}
			}
		}
	}

	for _, enc := range entry.Enclosures {
		if enc.URL == "" {
			continue
		}
		if strings.HasPrefix(enc.Type, "image/") || hasImageExtension(enc.URL) {
			cands = append(cands, enc.URL)
		}
	}

	if u := firstInlineImage(entry.Content); u != "" {
		cands = append(cands, u)
	} else if u := firstInlineImage(entry.Description); u != "" {
		cands = append(cands, u)
	}

	return cands
}

func hasImageExtension(u string) bool {
	lower := strings.ToLower(u)
	if i := strings.IndexAny(lower, "?#"); i >= 0 {
		lower = lower[:i]
	}
	for _, ext := range imageExtensions {
		if strings.HasSuffix(lower, ext) {
			return true
		}
	}

	return false
}

// firstInlineImage finds the first <img src> in an HTML body, skipping
// data: URIs.
func firstInlineImage(body string) string {
	for _, m := range inlineImgRe.FindAllStringSubmatch(body, -1) {
		if strings.HasPrefix(m[1], "data:") {
			continue
		}
		return m[1]
	}

	return ""
}

// normalizeImageURL validates a candidate and upgrades protocol-relative
// URLs to https.
func normalizeImageURL(u string) (string, bool) {
	switch {
	case strings.HasPrefix(u, "http://"), strings.HasPrefix(u, "https://"):
		return u, true
	case strings.HasPrefix(u, "//"):
		return "https:" + u, true
	}

	return "", false
}

func isGeneric(u string) bool {
	lower := strings.ToLower(u)
	for _, marker := range genericMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}

	return smallWidthRe.MatchString(u)
}
