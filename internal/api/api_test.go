package api_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/feedscribe/feedscribe/internal/api"
	"github.com/feedscribe/feedscribe/internal/cache"
	"github.com/feedscribe/feedscribe/internal/feedscribe"
	"github.com/feedscribe/feedscribe/internal/music"
)

type stubRepo struct {
	mu        sync.Mutex
	articles  []feedscribe.Article
	byURL     map[string]feedscribe.Article
	listCalls int
}

func newStubRepo(articles ...feedscribe.Article) *stubRepo {
	byURL := map[string]feedscribe.Article{}
	for _, a := range articles {
		byURL[a.URL] = a
	}
	return &stubRepo{articles: articles, byURL: byURL}
}

func (r *stubRepo) ArticleByURL(ctx context.Context, url string) (feedscribe.Article, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.byURL[url]
	if !ok {
		return feedscribe.Article{}, feedscribe.ErrNotFound
	}
	return a, nil
}

func (r *stubRepo) EnsureArticle(ctx context.Context, a feedscribe.Article) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byURL[a.URL]; !ok {
		r.byURL[a.URL] = a
		r.articles = append(r.articles, a)
	}
	return nil
}

func (r *stubRepo) Stub(ctx context.Context, url string) (feedscribe.Article, error) {
	if err := r.EnsureArticle(ctx, feedscribe.Article{URL: url}); err != nil {
		return feedscribe.Article{}, err
	}
	return r.ArticleByURL(ctx, url)
}

func (r *stubRepo) Articles(ctx context.Context, args feedscribe.ListArticlesArgs) ([]feedscribe.Article, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.listCalls++

	out := []feedscribe.Article{}
	for _, a := range r.articles {
		if args.Category != "" && args.Category != "all" && a.Category != args.Category {
			continue
		}
		out = append(out, a)
	}
	if args.Offset >= uint64(len(out)) {
		return []feedscribe.Article{}, nil
	}
	out = out[args.Offset:]
	if args.Limit > 0 && uint64(len(out)) > args.Limit {
		out = out[:args.Limit]
	}
	return out, nil
}

func (r *stubRepo) UpdateContent(ctx context.Context, url, title, content string) error { return nil }

func (r *stubRepo) Unscraped(ctx context.Context) ([]feedscribe.Article, error) { return nil, nil }

func (r *stubRepo) ScrapedBefore(ctx context.Context, t time.Time) ([]feedscribe.Article, error) {
	return nil, nil
}

func (r *stubRepo) lists() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.listCalls
}

type stubAgg struct {
	mu       sync.Mutex
	items    []feedscribe.FeedItem
	fetched  []string
	allCalls int
}

func (a *stubAgg) FetchCategory(ctx context.Context, category string, limit int) []feedscribe.FeedItem {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.fetched = append(a.fetched, category)
	return a.items
}

func (a *stubAgg) FetchAll(ctx context.Context, limit int) []feedscribe.FeedItem {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.allCalls++
	return a.items
}

type stubCatalog struct {
	tracks    []music.Track
	track     music.Track
	searchErr error
	lookupErr error
}

func (c *stubCatalog) Search(ctx context.Context, term, country string, limit int) ([]music.Track, error) {
	if c.searchErr != nil {
		return nil, c.searchErr
	}
	if limit < len(c.tracks) {
		return c.tracks[:limit], nil
	}
	return c.tracks, nil
}

func (c *stubCatalog) Lookup(ctx context.Context, trackID int64) (music.Track, error) {
	if c.lookupErr != nil {
		return music.Track{}, c.lookupErr
	}
	return c.track, nil
}

type stubPool struct {
	mu        sync.Mutex
	submitted []string
}

func (p *stubPool) Submit(ctx context.Context, pageURL string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.submitted = append(p.submitted, pageURL)
	return true
}

func (p *stubPool) urls() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string{}, p.submitted...)
}

func testAPI(repo *stubRepo, agg *stubAgg, catalog *stubCatalog) (*api.API, *stubPool) {
	pool := &stubPool{}
	return api.New(repo, agg, catalog, cache.New(64, time.Minute), pool), pool
}

func do(t *testing.T, a *api.API, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	a.Routes().ServeHTTP(rec, req)
	return rec
}

func decodeResults[T any](t *testing.T, body []byte) []T {
	t.Helper()
	var envelope struct {
		Results []T `json:"results"`
	}
	require.NoError(t, json.Unmarshal(body, &envelope))
	return envelope.Results
}

func storedArticle(i int, category string) feedscribe.Article {
	published := time.Date(2026, 3, 1, 12, i, 0, 0, time.UTC)
	return feedscribe.Article{
		ID:          fmt.Sprintf("id-%d-art", i),
		URL:         fmt.Sprintf("https://news.example/%s/%d", category, i),
		Title:       fmt.Sprintf("Story %d", i),
		Excerpt:     "An excerpt.",
		PublishedAt: &published,
		ScrapedAt:   published,
		Source:      "Example News",
		Category:    category,
		ReadTime:    "1 min read",
		Image:       "https://img.example/a.jpg",
	}
}

func TestNewsServesStoredArticles(t *testing.T) {
	articles := make([]feedscribe.Article, 7)
	for i := range articles {
		articles[i] = storedArticle(i, "world")
	}
	repo := newStubRepo(articles...)
	agg := &stubAgg{}
	a, _ := testAPI(repo, agg, &stubCatalog{})

	rec := do(t, a, "/news?category=world")
	require.Equal(t, http.StatusOK, rec.Code)

	items := decodeResults[feedscribe.FeedItem](t, rec.Body.Bytes())
	require.Len(t, items, 7)
	assert.Equal(t, "Story 0", items[0].Title)
	assert.Equal(t, "World", items[0].Category)

	trending := 0
	for _, item := range items {
		if item.Trending {
			trending++
		}
	}
	assert.Equal(t, 5, trending)
	assert.Empty(t, agg.fetched, "stored articles should not trigger a live fetch")
}

func TestNewsFallsBackToLiveFetch(t *testing.T) {
	agg := &stubAgg{items: []feedscribe.FeedItem{{ID: "abc", Title: "Live Story"}}}
	a, _ := testAPI(newStubRepo(), agg, &stubCatalog{})

	rec := do(t, a, "/news?category=sports")
	require.Equal(t, http.StatusOK, rec.Code)

	items := decodeResults[feedscribe.FeedItem](t, rec.Body.Bytes())
	require.Len(t, items, 1)
	assert.Equal(t, "Live Story", items[0].Title)
	assert.Equal(t, []string{"sports"}, agg.fetched)
}

func TestNewsAllCategoryAggregatesEverySource(t *testing.T) {
	agg := &stubAgg{items: []feedscribe.FeedItem{{ID: "abc"}}}
	a, _ := testAPI(newStubRepo(), agg, &stubCatalog{})

	rec := do(t, a, "/news?category=all")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, agg.allCalls)
}

func TestNewsCacheHitBypassesStore(t *testing.T) {
	repo := newStubRepo(storedArticle(1, "world"))
	a, _ := testAPI(repo, &stubAgg{}, &stubCatalog{})

	first := do(t, a, "/news?category=world")
	second := do(t, a, "/news?category=world")

	require.Equal(t, http.StatusOK, first.Code)
	require.Equal(t, http.StatusOK, second.Code)
	assert.Equal(t, first.Body.String(), second.Body.String())
	assert.Equal(t, 1, repo.lists(), "second request should come from cache")
}

func TestNewsDetailMalformedID(t *testing.T) {
	a, _ := testAPI(newStubRepo(), &stubAgg{}, &stubCatalog{})

	rec := do(t, a, "/news/%25%25not-base64")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestNewsDetailStubQueuesScrape(t *testing.T) {
	a, pool := testAPI(newStubRepo(), &stubAgg{}, &stubCatalog{})

	link := "https://www.espn.com/story"
	rec := do(t, a, "/news/"+feedscribe.EncodeItemID(link))
	require.Equal(t, http.StatusOK, rec.Code)

	var detail struct {
		Link      string `json:"link"`
		IsScraped bool   `json:"isScraped"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &detail))
	assert.Equal(t, link, detail.Link)
	assert.False(t, detail.IsScraped)
	assert.Equal(t, []string{link}, pool.urls())
}

func TestNewsDetailScrapedArticleSkipsQueue(t *testing.T) {
	article := storedArticle(1, "technology")
	article.Content = "Full scraped content."
	article.IsScraped = true
	a, pool := testAPI(newStubRepo(article), &stubAgg{}, &stubCatalog{})

	rec := do(t, a, "/news/"+feedscribe.EncodeItemID(article.URL))
	require.Equal(t, http.StatusOK, rec.Code)

	var detail struct {
		Content   string `json:"content"`
		IsScraped bool   `json:"isScraped"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &detail))
	assert.Equal(t, "Full scraped content.", detail.Content)
	assert.True(t, detail.IsScraped)
	assert.Empty(t, pool.urls())
}

func TestTrendingPrimesEmptyStore(t *testing.T) {
	agg := &stubAgg{}
	a, _ := testAPI(newStubRepo(), agg, &stubCatalog{})

	rec := do(t, a, "/trending")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.ElementsMatch(t, []string{"world", "technology", "sports", "entertainment"}, agg.fetched)
}

func TestTrendingServesSimplifiedRecords(t *testing.T) {
	repo := newStubRepo(storedArticle(1, "world"), storedArticle(2, "sports"))
	a, _ := testAPI(repo, &stubAgg{}, &stubCatalog{})

	rec := do(t, a, "/trending")
	require.Equal(t, http.StatusOK, rec.Code)

	type record struct {
		Title   string `json:"title"`
		Views   string `json:"views"`
		TimeAgo string `json:"timeAgo"`
	}
	records := decodeResults[record](t, rec.Body.Bytes())
	require.Len(t, records, 2)
	assert.Equal(t, "recent", records[0].TimeAgo)
	assert.Regexp(t, `^\d+K$`, records[0].Views)
}

func catalogTracks(n int) []music.Track {
	tracks := make([]music.Track, n)
	for i := range tracks {
		tracks[i] = music.Track{ID: int64(i + 1), Title: fmt.Sprintf("Track %d", i+1)}
	}
	return tracks
}

func TestMusicSearchPaginates(t *testing.T) {
	a, _ := testAPI(newStubRepo(), &stubAgg{}, &stubCatalog{tracks: catalogTracks(10)})

	rec := do(t, a, "/music?limit=3&offset=2")
	require.Equal(t, http.StatusOK, rec.Code)

	tracks := decodeResults[music.Track](t, rec.Body.Bytes())
	require.Len(t, tracks, 3)
	assert.Equal(t, int64(3), tracks[0].ID)
	assert.Equal(t, int64(5), tracks[2].ID)
	for _, track := range tracks {
		assert.True(t, track.Featured, "a page shorter than four should be featured throughout")
	}
}

func TestMusicSearchFeaturesFirstFour(t *testing.T) {
	a, _ := testAPI(newStubRepo(), &stubAgg{}, &stubCatalog{tracks: catalogTracks(10)})

	rec := do(t, a, "/music?limit=8")
	require.Equal(t, http.StatusOK, rec.Code)

	tracks := decodeResults[music.Track](t, rec.Body.Bytes())
	require.Len(t, tracks, 8)
	for i, track := range tracks {
		assert.Equal(t, i < 4, track.Featured, "track %d", i)
	}
}

func TestMusicSearchDegradesToEmpty(t *testing.T) {
	a, _ := testAPI(newStubRepo(), &stubAgg{}, &stubCatalog{searchErr: errors.New("upstream down")})

	rec := do(t, a, "/music")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"results": []}`, rec.Body.String())
}

func TestMusicDetail(t *testing.T) {
	catalog := &stubCatalog{track: music.Track{ID: 7, Title: "Hit"}}
	a, _ := testAPI(newStubRepo(), &stubAgg{}, catalog)

	rec := do(t, a, "/music/7")
	require.Equal(t, http.StatusOK, rec.Code)

	var track music.Track
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &track))
	assert.Equal(t, "Hit", track.Title)
}

func TestMusicDetailMalformedID(t *testing.T) {
	a, _ := testAPI(newStubRepo(), &stubAgg{}, &stubCatalog{})

	rec := do(t, a, "/music/not-a-number")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestMusicDetailNotFound(t *testing.T) {
	a, _ := testAPI(newStubRepo(), &stubAgg{}, &stubCatalog{lookupErr: feedscribe.ErrNotFound})

	rec := do(t, a, "/music/999")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
