// Package scrape extracts OG images and readable article content from a
// small, fixed set of trusted news sites.
//
// Extraction is pattern-based rather than a full DOM walk. That is fragile
// in general but fine for the whitelisted hosts, whose markup is known.
package scrape

import (
	"context"
	"html"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/sym01/htmlsanitizer"
)

const userAgent = "FeedScribe/1.0"

// DefaultDomains are the hosts the scraper will touch. Everything else is
// rejected before any network call.
var DefaultDomains = []string{
	"espn.com", "www.espn.com",
	"techcrunch.com", "www.techcrunch.com",
	"aljazeera.com", "www.aljazeera.com",
}

// Result holds whatever could be extracted from a page. Either field may be
// empty; both empty means the page yielded nothing.
type Result struct {
	Title   string
	Content string
}

func (r Result) Empty() bool {
	return r.Title == "" && r.Content == ""
}

// Scraper fetches whitelisted pages and memoizes per-URL results for the
// life of the process. The caches see concurrent last-writer-wins updates,
// which is fine: every write for a URL derives the same value.
type Scraper struct {
	// Domains a page's hostname must end in for the scraper to operate.
	Domains []string

	ogClient     *http.Client
	pageClient   *http.Client
	ogCache      *lru.Cache[string, string]
	contentCache *lru.Cache[string, Result]
}

func New() *Scraper {
	ogCache, _ := lru.New[string, string](4096)
	contentCache, _ := lru.New[string, Result](4096)

	return &Scraper{
		Domains:      DefaultDomains,
		ogClient:     &http.Client{Timeout: 3 * time.Second},
		pageClient:   &http.Client{Timeout: 10 * time.Second},
		ogCache:      ogCache,
		contentCache: contentCache,
	}
}

// Allowed reports whether the URL's hostname ends in one of the trusted
// domains.
func (s *Scraper) Allowed(pageURL string) bool {
	u, err := url.Parse(pageURL)
	if err != nil || u.Hostname() == "" {
		return false
	}

	host := u.Hostname()
	for _, d := range s.Domains {
		if strings.HasSuffix(host, d) {
			return true
		}
	}

	return false
}

var ogImagePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)<meta[^>]+property=["']og:image["'][^>]+content=["']([^"']+)`),
	regexp.MustCompile(`(?i)<meta[^>]+(?:name|property)=["']twitter:image["'][^>]+content=["']([^"']+)`),
	regexp.MustCompile(`(?i)<link[^>]+rel=["']image_src["'][^>]+href=["']([^"']+)`),
}

// OGImage returns the page's preview image URL. The second return is false
// when the host is not whitelisted or nothing could be extracted. Results,
// including misses, are memoized per URL.
func (s *Scraper) OGImage(ctx context.Context, pageURL string) (string, bool) {
	if !s.Allowed(pageURL) {
		return "", false
	}

	if img, ok := s.ogCache.Get(pageURL); ok {
		return img, img != ""
	}

	body, ok := s.fetch(ctx, s.ogClient, pageURL)
	if !ok {
		s.ogCache.Add(pageURL, "")
		return "", false
	}

	var img string
	for _, pat := range ogImagePatterns {
		if m := pat.FindStringSubmatch(body); m != nil {
			img = strings.TrimSpace(m[1])
			break
		}
	}
	if strings.HasPrefix(img, "//") {
		img = "https:" + img
	}

	s.ogCache.Add(pageURL, img)

	return img, img != ""
}

var (
	titlePatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)<title[^>]*>([^<]+)</title>`),
		regexp.MustCompile(`(?i)<meta[^>]+property=["']og:title["'][^>]+content=["']([^"']+)`),
		regexp.MustCompile(`(?i)<h1[^>]*>([^<]+)</h1>`),
	}

	// Ordered candidate containers for the article body.
	containerPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?is)<article[^>]*>(.*?)</article>`),
		regexp.MustCompile(`(?is)<div[^>]*class=["'][^"']*article[^"']*["'][^>]*>(.*?)</div>`),
		regexp.MustCompile(`(?is)<div[^>]*class=["'][^"']*content[^"']*["'][^>]*>(.*?)</div>`),
		regexp.MustCompile(`(?is)<div[^>]*class=["'][^"']*post[^"']*["'][^>]*>(.*?)</div>`),
		regexp.MustCompile(`(?is)<div[^>]*id=["'][^"']*content[^"']*["'][^>]*>(.*?)</div>`),
		regexp.MustCompile(`(?is)<div[^>]*id=["'][^"']*article[^"']*["'][^>]*>(.*?)</div>`),
	}

	scriptRe    = regexp.MustCompile(`(?is)<script[^>]*>.*?</script>`)
	styleRe     = regexp.MustCompile(`(?is)<style[^>]*>.*?</style>`)
	paragraphRe = regexp.MustCompile(`(?is)<p[^>]*>(.*?)</p>`)
)

// Article returns the extracted title and body text for a whitelisted page.
// The second return is false when the host is off-whitelist or the page
// yielded neither a title nor content. Results, including misses, are
// memoized per URL.
func (s *Scraper) Article(ctx context.Context, pageURL string) (Result, bool) {
	if !s.Allowed(pageURL) {
		return Result{}, false
	}

	if res, ok := s.contentCache.Get(pageURL); ok {
		return res, !res.Empty()
	}

	body, ok := s.fetch(ctx, s.pageClient, pageURL)
	if !ok {
		s.contentCache.Add(pageURL, Result{})
		return Result{}, false
	}

	res := Result{
		Title:   extractTitle(body),
		Content: extractContent(body),
	}
	s.contentCache.Add(pageURL, res)

	return res, !res.Empty()
}

func (s *Scraper) fetch(ctx context.Context, client *http.Client, pageURL string) (string, bool) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return "", false
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := client.Do(req)
	if err != nil {
		return "", false
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", false
	}

	byts, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", false
	}

	return string(byts), true
}

func extractTitle(body string) string {
	for _, pat := range titlePatterns {
		if m := pat.FindStringSubmatch(body); m != nil {
			return strings.TrimSpace(html.UnescapeString(m[1]))
		}
	}

	return ""
}

func extractContent(body string) string {
	// Accept the first container whose text runs past 200 characters.
	for _, pat := range containerPatterns {
		m := pat.FindStringSubmatch(body)
		if m == nil {
			continue
		}

		raw := scriptRe.ReplaceAllString(m[1], "")
		raw = styleRe.ReplaceAllString(raw, "")

		var content string
		if paragraphs := paragraphRe.FindAllStringSubmatch(raw, -1); paragraphs != nil {
			parts := make([]string, 0, len(paragraphs))
			for _, p := range paragraphs {
				if text := StripTags(p[1]); text != "" {
					parts = append(parts, text)
				}
			}
			content = strings.Join(parts, " ")
		} else {
			content = StripTags(raw)
		}

		if len(content) > 200 {
			return content
		}
	}

	// No container was substantial enough: gather every paragraph on the
	// page that carries more than trivial text.
	var parts []string
	for _, p := range paragraphRe.FindAllStringSubmatch(body, -1) {
		if text := StripTags(p[1]); len(text) > 20 {
			parts = append(parts, text)
		}
	}

	return strings.Join(parts, " ")
}

// Strips every tag; a nil allow list removes everything. The sanitizer
// tokenizes properly, so malformed or truncated markup never panics.
var stripper = func() *htmlsanitizer.HTMLSanitizer {
	s := htmlsanitizer.NewHTMLSanitizer()
	s.AllowList = nil
	return s
}()

// StripTags removes all HTML markup from s, returning trimmed plain text.
func StripTags(s string) string {
	out, err := stripper.SanitizeString(s)
	if err != nil {
		return ""
	}

	return strings.TrimSpace(html.UnescapeString(out))
}
