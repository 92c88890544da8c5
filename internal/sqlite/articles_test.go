package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/feedscribe/feedscribe/internal/feedscribe"
	"github.com/feedscribe/feedscribe/internal/migrations"
)

func testRepo(t *testing.T) Repo {
	t.Helper()

	dbx, err := sqlx.Open("sqlite", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { dbx.Close() })

	require.NoError(t, migrations.Run(dbx))

	return New(dbx)
}

func TestEnsureArticleIsCreateIfAbsent(t *testing.T) {
	var (
		repo = testRepo(t)
		ctx  = context.Background()
	)

	published := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, repo.EnsureArticle(ctx, feedscribe.Article{
		URL:         "https://example.com/story",
		Title:       "Original title",
		Excerpt:     "Original excerpt",
		PublishedAt: &published,
		Source:      "Example",
		Category:    "world",
		ReadTime:    "2 min read",
		Image:       "https://img.example.com/a.jpg",
	}))

	// A second ingestion of the same link must not replace the metadata.
	require.NoError(t, repo.EnsureArticle(ctx, feedscribe.Article{
		URL:   "https://example.com/story",
		Title: "Changed title",
	}))

	got, err := repo.ArticleByURL(ctx, "https://example.com/story")
	require.NoError(t, err)
	assert.Equal(t, "Original title", got.Title)
	assert.Equal(t, "world", got.Category)
	assert.False(t, got.IsScraped)
}

func TestArticleByURLNotFound(t *testing.T) {
	repo := testRepo(t)

	_, err := repo.ArticleByURL(context.Background(), "https://example.com/nope")
	assert.ErrorIs(t, err, feedscribe.ErrNotFound)
}

func TestStubCreatesEmptyArticle(t *testing.T) {
	var (
		repo = testRepo(t)
		ctx  = context.Background()
	)

	got, err := repo.Stub(ctx, "https://example.com/unseen")
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/unseen", got.URL)
	assert.Empty(t, got.Title)
	assert.False(t, got.IsScraped)

	// Stubbing again returns the same row rather than creating another.
	again, err := repo.Stub(ctx, "https://example.com/unseen")
	require.NoError(t, err)
	assert.Equal(t, got.ID, again.ID)
}

func TestArticlesFilterAndPagination(t *testing.T) {
	var (
		repo = testRepo(t)
		ctx  = context.Background()
	)

	base := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	for i, cat := range []string{"world", "world", "world", "sports"} {
		published := base.Add(time.Duration(i) * time.Hour)
		require.NoError(t, repo.EnsureArticle(ctx, feedscribe.Article{
			URL:         "https://example.com/" + cat + "/" + published.Format("15"),
			Title:       "story",
			PublishedAt: &published,
			Category:    cat,
		}))
	}

	world, err := repo.Articles(ctx, feedscribe.ListArticlesArgs{Category: "world", Limit: 2})
	require.NoError(t, err)
	require.Len(t, world, 2)
	// Most recent first
	assert.True(t, world[0].PublishedAt.After(*world[1].PublishedAt))

	rest, err := repo.Articles(ctx, feedscribe.ListArticlesArgs{Category: "world", Limit: 2, Offset: 2})
	require.NoError(t, err)
	assert.Len(t, rest, 1)

	all, err := repo.Articles(ctx, feedscribe.ListArticlesArgs{Category: "all", Limit: 10})
	require.NoError(t, err)
	assert.Len(t, all, 4)
}

func TestUpdateContentMarksScraped(t *testing.T) {
	var (
		repo = testRepo(t)
		ctx  = context.Background()
	)

	stub, err := repo.Stub(ctx, "https://example.com/scrapeme")
	require.NoError(t, err)

	require.NoError(t, repo.UpdateContent(ctx, stub.URL, "Scraped title", "Full body text"))

	got, err := repo.ArticleByURL(ctx, stub.URL)
	require.NoError(t, err)
	assert.True(t, got.IsScraped)
	assert.Equal(t, "Scraped title", got.Title)
	assert.Equal(t, "Full body text", got.Content)
	assert.False(t, got.ScrapedAt.Before(stub.ScrapedAt))
}

func TestUnscrapedAndStaleListings(t *testing.T) {
	var (
		repo = testRepo(t)
		ctx  = context.Background()
	)

	_, err := repo.Stub(ctx, "https://example.com/pending")
	require.NoError(t, err)

	stub, err := repo.Stub(ctx, "https://example.com/done")
	require.NoError(t, err)
	require.NoError(t, repo.UpdateContent(ctx, stub.URL, "t", "c"))

	unscraped, err := repo.Unscraped(ctx)
	require.NoError(t, err)
	require.Len(t, unscraped, 1)
	assert.Equal(t, "https://example.com/pending", unscraped[0].URL)

	// Everything is fresher than an hour ago.
	stale, err := repo.ScrapedBefore(ctx, time.Now().Add(-time.Hour))
	require.NoError(t, err)
	assert.Empty(t, stale)

	stale, err = repo.ScrapedBefore(ctx, time.Now().Add(time.Hour))
	require.NoError(t, err)
	assert.Len(t, stale, 2)
}
