// Package api wires the HTTP surface: routing, CORS, pagination parsing,
// and the handlers for the news and music endpoints.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	ghandlers "github.com/gorilla/handlers"
	"github.com/gorilla/mux"

	"github.com/feedscribe/feedscribe/internal/cache"
	"github.com/feedscribe/feedscribe/internal/feedscribe"
	"github.com/feedscribe/feedscribe/internal/music"
	"github.com/feedscribe/feedscribe/internal/serverutil"
)

type (
	// Aggregator produces live-normalized feed items, persisting new
	// articles as it goes.
	Aggregator interface {
		FetchCategory(ctx context.Context, category string, limit int) []feedscribe.FeedItem
		FetchAll(ctx context.Context, limit int) []feedscribe.FeedItem
	}

	// Catalog is the music provider surface.
	Catalog interface {
		Search(ctx context.Context, term, country string, limit int) ([]music.Track, error)
		Lookup(ctx context.Context, trackID int64) (music.Track, error)
	}

	// Submitter queues fire-and-forget scrape work.
	Submitter interface {
		Submit(ctx context.Context, pageURL string) bool
	}

	API struct {
		repo  feedscribe.ArticleRepo
		agg   Aggregator
		music Catalog
		cache *cache.ResponseCache
		pool  Submitter
	}
)

func New(repo feedscribe.ArticleRepo, agg Aggregator, catalog Catalog, respCache *cache.ResponseCache, pool Submitter) *API {
	return &API{
		repo:  repo,
		agg:   agg,
		music: catalog,
		cache: respCache,
		pool:  pool,
	}
}

// Routes assembles the router with all endpoints attached.
func (a *API) Routes() http.Handler {
	r := serverutil.ErrRouter{Router: mux.NewRouter()}
	r.Use(serverutil.AccessLogMiddleware)

	r.HandleFuncE("/news", a.news).Methods(http.MethodGet)
	r.HandleFuncE("/news/{id}", a.newsDetail).Methods(http.MethodGet)
	r.HandleFuncE("/trending", a.trending).Methods(http.MethodGet)
	r.HandleFuncE("/music", a.musicSearch).Methods(http.MethodGet)
	r.HandleFuncE("/music/{trackId}", a.musicDetail).Methods(http.MethodGet)

	return r
}

// NewServer wraps the routes in CORS and returns a configured server
// listening on the given port.
func NewServer(port, corsOrigin string, a *API) *http.Server {
	cors := ghandlers.CORS(
		ghandlers.AllowedOrigins([]string{corsOrigin}),
		ghandlers.AllowedMethods([]string{http.MethodGet, http.MethodOptions}),
		ghandlers.AllowedHeaders([]string{"Content-Type"}),
	)

	return &http.Server{
		Addr:         ":" + port,
		Handler:      cors(a.Routes()),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
}

// Every list endpoint responds with the same envelope.
type resultsResponse struct {
	Results any `json:"results"`
}

// respondCached serializes the payload once, stores it under the cache
// key, and writes those exact bytes so a later cache hit replays the
// identical response.
func (a *API) respondCached(w http.ResponseWriter, key string, data any) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("error marshalling response: %s", err)
	}

	a.cache.Set(key, payload)

	return serverutil.WriteRawJSON(w, http.StatusOK, payload)
}

// replayCached writes the cached payload for the key if there is one.
func (a *API) replayCached(w http.ResponseWriter, key string) (bool, error) {
	payload, ok := a.cache.Get(key)
	if !ok {
		return false, nil
	}

	return true, serverutil.WriteRawJSON(w, http.StatusOK, payload)
}

// queryInt reads an integer query parameter, falling back to the default
// on absence or garbage. Negative values fall back too.
func queryInt(r *http.Request, name string, def int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def
	}

	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return def
	}

	return n
}
