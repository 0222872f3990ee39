// Package genius talks to the Genius lyrics catalog: its JSON API for search and
// song/artist metadata, and its song pages for the lyrics text itself.
package genius

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"lyrics-translator-go/circuitbreaker"
	"lyrics-translator-go/logcolors"
	"lyrics-translator-go/models"
	"lyrics-translator-go/services"

	"github.com/goccy/go-json"
	log "github.com/sirupsen/logrus"
)

const (
	serviceName    = "genius"
	DefaultBaseURL = "https://api.genius.com"
	userAgent      = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36"
	maxPageBytes   = 5 << 20
)

var (
	ErrNotFound = errors.New("genius: no matching song")
	ErrNoLyrics = errors.New("genius: no lyrics on page")
)

// Client is a Genius API and song page client.
type Client struct {
	token      string
	baseURL    string
	httpClient *http.Client
	breaker    *circuitbreaker.CircuitBreaker
}

// Options configures a Client.
type Options struct {
	Token   string
	BaseURL string
	Timeout time.Duration
	// Breaker guards every outgoing call. Optional.
	Breaker    *circuitbreaker.CircuitBreaker
	HTTPClient *http.Client
}

// New creates a Genius client.
func New(opts Options) *Client {
	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = 15 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	return &Client{
		token:      opts.Token,
		baseURL:    baseURL,
		httpClient: httpClient,
		breaker:    opts.Breaker,
	}
}

// Search returns the first song hit for query, or ErrNotFound.
func (c *Client) Search(ctx context.Context, query string) (*SongHit, error) {
	hits, err := c.SearchHits(ctx, query, 1)
	if err != nil {
		return nil, err
	}
	if len(hits) == 0 {
		return nil, ErrNotFound
	}
	return &hits[0], nil
}

// SearchHits returns up to perPage song hits for query.
func (c *Client) SearchHits(ctx context.Context, query string, perPage int) ([]SongHit, error) {
	params := url.Values{}
	params.Set("q", query)
	if perPage > 0 {
		params.Set("per_page", strconv.Itoa(perPage))
	}

	var resp searchResponse
	if err := c.getJSON(ctx, "search", "/search?"+params.Encode(), &resp); err != nil {
		return nil, err
	}

	hits := make([]SongHit, 0, len(resp.Response.Hits))
	for _, h := range resp.Response.Hits {
		if h.Type != "" && h.Type != "song" {
			continue
		}
		if h.Result.ID == 0 {
			continue
		}
		hits = append(hits, h.Result.hit())
		if perPage > 0 && len(hits) == perPage {
			break
		}
	}
	return hits, nil
}

// Song returns the metadata of one song.
func (c *Client) Song(ctx context.Context, id int) (*SongHit, error) {
	var resp songResponse
	if err := c.getJSON(ctx, "song", "/songs/"+strconv.Itoa(id), &resp); err != nil {
		return nil, err
	}
	if resp.Response.Song.ID == 0 {
		return nil, ErrNotFound
	}
	hit := resp.Response.Song.hit()
	return &hit, nil
}

// Artist returns the metadata of one artist.
func (c *Client) Artist(ctx context.Context, id int) (*models.Artist, error) {
	var resp artistResponse
	if err := c.getJSON(ctx, "artist", "/artists/"+strconv.Itoa(id), &resp); err != nil {
		return nil, err
	}
	a := resp.Response.Artist
	if a.ID == 0 {
		return nil, ErrNotFound
	}
	return &models.Artist{ID: a.ID, Name: a.Name, ImageURL: a.ImageURL}, nil
}

// ArtistSongs returns one page of an artist's songs, most popular first.
func (c *Client) ArtistSongs(ctx context.Context, artistID, page, perPage int) ([]models.ReconciledSong, error) {
	params := url.Values{}
	params.Set("per_page", strconv.Itoa(perPage))
	params.Set("page", strconv.Itoa(page))
	params.Set("sort", "popularity")

	var resp artistSongsResponse
	path := fmt.Sprintf("/artists/%d/songs?%s", artistID, params.Encode())
	if err := c.getJSON(ctx, "artist songs", path, &resp); err != nil {
		return nil, err
	}

	songs := make([]models.ReconciledSong, 0, len(resp.Response.Songs))
	for _, s := range resp.Response.Songs {
		songs = append(songs, models.ReconciledSong{ID: s.ID, Title: s.Title, Artist: s.PrimaryArtist.Name})
	}
	return songs, nil
}

// LookupSong resolves a free-text query to a song. A query without hits is
// (nil, nil), which is how the reconciler expects "no match".
func (c *Client) LookupSong(ctx context.Context, query string) (*models.ReconciledSong, error) {
	hit, err := c.Search(ctx, query)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &models.ReconciledSong{ID: hit.ID, Title: hit.Title, Artist: hit.ArtistName}, nil
}

// FetchLyrics searches for "song artist" and scrapes the first hit's page.
func (c *Client) FetchLyrics(ctx context.Context, song, artist string) (*LyricsPage, error) {
	query := strings.TrimSpace(song + " " + artist)
	hit, err := c.Search(ctx, query)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			log.Infof("%s No results found for: %s", logcolors.LogGenius, query)
		}
		return nil, err
	}

	text, err := c.FetchText(ctx, hit.URL)
	if err != nil {
		return nil, err
	}
	return &LyricsPage{Title: hit.Title, Artist: hit.ArtistName, Lyrics: text}, nil
}

// FetchText downloads a song page and returns its cleaned lyrics.
func (c *Client) FetchText(ctx context.Context, pageURL string) (string, error) {
	var text string
	err := c.guard(func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
		if err != nil {
			return fmt.Errorf("error creating page request: %w", err)
		}
		req.Header.Set("User-Agent", userAgent)

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return services.NewUpstreamError(serviceName, "fetch page", 0, err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			return services.NewUpstreamError(serviceName, "fetch page", resp.StatusCode, nil)
		}

		text, err = ScrapeLyrics(io.LimitReader(resp.Body, maxPageBytes))
		return err
	})
	if err != nil {
		log.Warnf("%s Error scraping lyrics from %s: %v", logcolors.LogGenius, pageURL, err)
		return "", err
	}
	return text, nil
}

func (c *Client) getJSON(ctx context.Context, op, path string, out any) error {
	return c.guard(func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
		if err != nil {
			return fmt.Errorf("error creating %s request: %w", op, err)
		}
		req.Header.Set("Authorization", "Bearer "+c.token)
		req.Header.Set("Accept", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return services.NewUpstreamError(serviceName, op, 0, err)
		}
		defer resp.Body.Close()

		if resp.StatusCode == http.StatusNotFound {
			return ErrNotFound
		}
		if resp.StatusCode != http.StatusOK {
			body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
			return services.NewUpstreamError(serviceName, op, resp.StatusCode, errors.New(strings.TrimSpace(string(body))))
		}

		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return services.NewUpstreamError(serviceName, op, resp.StatusCode, fmt.Errorf("error decoding response: %w", err))
		}
		return nil
	})
}

func (c *Client) guard(fn func() error) error {
	if c.breaker == nil {
		return fn()
	}
	err := c.breaker.Execute(fn, isOutage)
	if errors.Is(err, circuitbreaker.ErrCircuitOpen) {
		return services.NewUpstreamError(serviceName, "call", 0, err)
	}
	return err
}

// isOutage decides which errors count against the circuit breaker.
func isOutage(err error) bool {
	if errors.Is(err, ErrNotFound) || errors.Is(err, ErrNoLyrics) {
		return false
	}
	return services.IsTransient(err)
}
