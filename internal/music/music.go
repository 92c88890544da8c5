// Package music proxies the iTunes catalog: search, lookup, and the
// normalization of provider tracks into the API's shape.
package music

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"math/rand/v2"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/feedscribe/feedscribe/internal/feedscribe"
)

const (
	defaultSearchURL = "https://itunes.apple.com/search"
	defaultLookupURL = "https://itunes.apple.com/lookup"

	// The provider caps search pages at 50.
	providerMaxLimit = 50

	relatedLimit = 5
)

type (
	// Track is a catalog track as the API serves it. Rating, downloads,
	// and likes are display garnish, randomized per response.
	Track struct {
		ID          int64   `json:"id"`
		Title       string  `json:"title"`
		Artist      string  `json:"artist"`
		Album       string  `json:"album"`
		Duration    string  `json:"duration"`
		Genre       string  `json:"genre"`
		Rating      float64 `json:"rating"`
		Downloads   int     `json:"downloads"`
		Image       string  `json:"image"`
		Featured    bool    `json:"featured"`
		AudioURL    string  `json:"audioUrl"`
		ReleaseDate string  `json:"releaseDate"`
		Likes       int     `json:"likes"`

		// Only populated on the detail endpoint.
		RelatedTracks []RelatedTrack `json:"relatedTracks,omitempty"`
	}

	RelatedTrack struct {
		ID       int64  `json:"id"`
		Title    string `json:"title"`
		Artist   string `json:"artist"`
		Duration string `json:"duration"`
		Image    string `json:"image"`
	}

	// Client talks to the catalog. The URLs are overridable for tests.
	Client struct {
		SearchURL string
		LookupURL string

		http *http.Client
	}
)

func NewClient() *Client {
	return &Client{
		SearchURL: defaultSearchURL,
		LookupURL: defaultLookupURL,
		http:      &http.Client{Timeout: 10 * time.Second},
	}
}

// Raw provider track payload.
type providerTrack struct {
	TrackID          int64  `json:"trackId"`
	TrackName        string `json:"trackName"`
	ArtistName       string `json:"artistName"`
	CollectionName   string `json:"collectionName"`
	TrackTimeMillis  int64  `json:"trackTimeMillis"`
	PrimaryGenreName string `json:"primaryGenreName"`
	ArtworkURL60     string `json:"artworkUrl60"`
	ArtworkURL100    string `json:"artworkUrl100"`
	PreviewURL       string `json:"previewUrl"`
	ReleaseDate      string `json:"releaseDate"`
}

type providerResponse struct {
	ResultCount int             `json:"resultCount"`
	Results     []providerTrack `json:"results"`
}

// Search queries the catalog for up to limit tracks (capped at the
// provider's page maximum). Entries without a track id are dropped.
func (c *Client) Search(ctx context.Context, term, country string, limit int) ([]Track, error) {
	params := url.Values{
		"term":    {term},
		"media":   {"music"},
		"limit":   {strconv.Itoa(min(limit, providerMaxLimit))},
		"country": {country},
	}

	resp, err := c.get(ctx, c.SearchURL, params)
	if err != nil {
		return nil, err
	}

	tracks := make([]Track, 0, len(resp.Results))
	for _, t := range resp.Results {
		if t.TrackID == 0 {
			continue
		}
		tracks = append(tracks, normalizeTrack(t))
	}

	return tracks, nil
}

// Lookup fetches one track by id, attaching up to five related tracks by
// the same artist. A missing track is [feedscribe.ErrNotFound]; failure to
// fetch related tracks is not an error, just fewer related tracks.
func (c *Client) Lookup(ctx context.Context, trackID int64) (Track, error) {
	resp, err := c.get(ctx, c.LookupURL, url.Values{"id": {strconv.FormatInt(trackID, 10)}})
	if err != nil {
		return Track{}, err
	}
	if len(resp.Results) == 0 {
		return Track{}, feedscribe.ErrNotFound
	}

	track := normalizeTrack(resp.Results[0])

	related, err := c.get(ctx, c.SearchURL, url.Values{
		"term":  {resp.Results[0].ArtistName},
		"media": {"music"},
		"limit": {strconv.Itoa(relatedLimit)},
	})
	if err == nil {
		track.RelatedTracks = []RelatedTrack{}
		for _, t := range related.Results {
			if t.TrackID == trackID || len(track.RelatedTracks) == relatedLimit {
				continue
			}

			image := t.ArtworkURL60
			if image == "" {
				image = t.ArtworkURL100
			}
			track.RelatedTracks = append(track.RelatedTracks, RelatedTrack{
				ID:       t.TrackID,
				Title:    t.TrackName,
				Artist:   t.ArtistName,
				Duration: trackDuration(t.TrackTimeMillis),
				Image:    image,
			})
		}
	}

	return track, nil
}

// get performs a catalog request, retrying transient transport errors with
// a short Fibonacci backoff before giving up.
func (c *Client) get(ctx context.Context, rawURL string, params url.Values) (providerResponse, error) {
	var out providerResponse

	backoff := retry.WithMaxRetries(2, retry.NewFibonacci(250*time.Millisecond))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL+"?"+params.Encode(), nil)
		if err != nil {
			return err
		}

		resp, err := c.http.Do(req)
		if err != nil {
			return retry.RetryableError(err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("unexpected status code: %d", resp.StatusCode)
		}

		out = providerResponse{}
		if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
			return fmt.Errorf("error decoding catalog response: %s", err)
		}

		return nil
	})

	return out, err
}

func normalizeTrack(t providerTrack) Track {
	image := t.ArtworkURL100
	if image == "" {
		image = t.ArtworkURL60
	}
	if image == "" {
		image = "https://picsum.photos/seed/music/300/300"
	}

	releaseDate := t.ReleaseDate
	if len(releaseDate) > 10 {
		releaseDate = releaseDate[:10]
	}

	return Track{
		ID:          t.TrackID,
		Title:       t.TrackName,
		Artist:      t.ArtistName,
		Album:       t.CollectionName,
		Duration:    trackDuration(t.TrackTimeMillis),
		Genre:       t.PrimaryGenreName,
		Rating:      math.Round((4.2+rand.Float64()*0.6)*10) / 10,
		Downloads:   3000 + rand.IntN(17001),
		Image:       image,
		AudioURL:    t.PreviewURL,
		ReleaseDate: releaseDate,
		Likes:       200 + rand.IntN(4801),
	}
}

func trackDuration(millis int64) string {
	if millis == 0 {
		return "3:00"
	}

	return fmt.Sprintf("%d:%02d", millis/60000, millis%60000/1000)
}
