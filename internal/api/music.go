package api

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/feedscribe/feedscribe/internal/cache"
	fserrs "github.com/feedscribe/feedscribe/internal/errors"
	"github.com/feedscribe/feedscribe/internal/feedscribe"
	"github.com/feedscribe/feedscribe/internal/music"
)

const (
	defaultMusicLimit = 24
	featuredCount     = 4
)

// musicSearch proxies a catalog search. Pagination happens here: the
// provider is asked for enough rows to cover the requested page and the
// page is sliced out client-side. Provider trouble degrades to an empty
// result list rather than an error response.
func (a *API) musicSearch(w http.ResponseWriter, r *http.Request) error {
	ctx := r.Context()

	term := r.URL.Query().Get("term")
	if term == "" {
		term = "top hits"
	}
	country := r.URL.Query().Get("country")
	if country == "" {
		country = "US"
	}
	limit := queryInt(r, "limit", defaultMusicLimit)
	offset := queryInt(r, "offset", 0)

	key := cache.Key("music", map[string]string{
		"term":    term,
		"country": country,
		"limit":   strconv.Itoa(limit),
		"offset":  strconv.Itoa(offset),
	})
	if hit, err := a.replayCached(w, key); hit {
		return err
	}

	tracks, err := a.music.Search(ctx, term, country, offset+limit)
	if err != nil {
		slog.ErrorContext(ctx, "error searching music catalog", "error", err)
		tracks = nil
	}

	page := []music.Track{}
	if offset < len(tracks) {
		page = tracks[offset:min(offset+limit, len(tracks))]
	}
	for i := range min(featuredCount, len(page)) {
		page[i].Featured = true
	}

	return a.respondCached(w, key, resultsResponse{Results: page})
}

// musicDetail serves one track with its related tracks attached.
func (a *API) musicDetail(w http.ResponseWriter, r *http.Request) error {
	ctx := r.Context()

	rawID := mux.Vars(r)["trackId"]
	trackID, err := strconv.ParseInt(rawID, 10, 64)
	if err != nil {
		return fserrs.E(http.StatusBadRequest, "malformed track id")
	}

	key := cache.Key("music_detail", map[string]string{"trackId": rawID})
	if hit, err := a.replayCached(w, key); hit {
		return err
	}

	track, err := a.music.Lookup(ctx, trackID)
	if err != nil {
		if !errors.Is(err, feedscribe.ErrNotFound) {
			slog.ErrorContext(ctx, "error looking up track", "error", err, "track_id", trackID)
		}

		return fserrs.E(http.StatusNotFound, "track not found")
	}

	return a.respondCached(w, key, track)
}
