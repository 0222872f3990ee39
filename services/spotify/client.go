// Package spotify is the music-catalog client: artist search, an artist's albums
// and singles, and album track listings. Requests are authorized with the
// client-credentials grant.
package spotify

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"lyrics-translator-go/circuitbreaker"
	"lyrics-translator-go/logcolors"
	"lyrics-translator-go/models"
	"lyrics-translator-go/services"

	"github.com/goccy/go-json"
	log "github.com/sirupsen/logrus"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

const (
	serviceName     = "spotify"
	DefaultBaseURL  = "https://api.spotify.com/v1"
	DefaultTokenURL = "https://accounts.spotify.com/api/token"
	pageLimit       = 50
	// maxPages stops runaway pagination on a misbehaving next link.
	maxPages = 20
)

var ErrNotConfigured = errors.New("spotify: credentials not configured")

// Client is a Spotify Web API client.
type Client struct {
	baseURL    string
	httpClient *http.Client
	breaker    *circuitbreaker.CircuitBreaker
}

// Options configures a Client.
type Options struct {
	ClientID     string
	ClientSecret string
	BaseURL      string
	TokenURL     string
	Timeout      time.Duration
	// Breaker guards every outgoing call. Optional.
	Breaker *circuitbreaker.CircuitBreaker
}

// New creates a Spotify client. Without credentials the client is returned
// unconfigured and every call fails with ErrNotConfigured.
func New(opts Options) *Client {
	c := &Client{
		baseURL: strings.TrimRight(opts.BaseURL, "/"),
		breaker: opts.Breaker,
	}
	if c.baseURL == "" {
		c.baseURL = DefaultBaseURL
	}

	if opts.ClientID == "" || opts.ClientSecret == "" {
		log.Warnf("%s Credentials not found. Album features will be limited.", logcolors.LogSpotify)
		return c
	}

	tokenURL := opts.TokenURL
	if tokenURL == "" {
		tokenURL = DefaultTokenURL
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}

	cc := &clientcredentials.Config{
		ClientID:     opts.ClientID,
		ClientSecret: opts.ClientSecret,
		TokenURL:     tokenURL,
		AuthStyle:    oauth2.AuthStyleInHeader,
	}
	// token requests use the same timeout as API calls
	tokenCtx := context.WithValue(context.Background(), oauth2.HTTPClient, &http.Client{Timeout: timeout})
	c.httpClient = cc.Client(tokenCtx)
	c.httpClient.Timeout = timeout
	return c
}

// Configured reports whether credentials were supplied.
func (c *Client) Configured() bool {
	return c.httpClient != nil
}

// SearchArtist returns the best matching artist, or nil when there is none.
func (c *Client) SearchArtist(ctx context.Context, name string) (*Artist, error) {
	params := url.Values{}
	params.Set("q", "artist:"+name)
	params.Set("type", "artist")
	params.Set("limit", "1")

	var resp searchResponse
	if err := c.getJSON(ctx, "search artist", c.baseURL+"/search?"+params.Encode(), &resp); err != nil {
		return nil, err
	}
	if len(resp.Artists.Items) == 0 {
		return nil, nil
	}
	a := resp.Artists.Items[0]
	return &Artist{ID: a.ID, Name: a.Name, ImageURL: firstImage(a.Images)}, nil
}

// ListAlbums returns an artist's albums and singles, newest first. Releases
// sharing a name (regional duplicates) are listed once.
func (c *Client) ListAlbums(ctx context.Context, artistID string) ([]models.AlbumListing, error) {
	params := url.Values{}
	params.Set("include_groups", "album,single")
	params.Set("limit", fmt.Sprint(pageLimit))
	next := fmt.Sprintf("%s/artists/%s/albums?%s", c.baseURL, url.PathEscape(artistID), params.Encode())

	albums := []models.AlbumListing{}
	seen := make(map[string]struct{})
	for page := 0; next != "" && page < maxPages; page++ {
		var resp albumsPage
		if err := c.getJSON(ctx, "list albums", next, &resp); err != nil {
			return nil, err
		}
		for _, a := range resp.Items {
			if _, dup := seen[a.Name]; dup {
				continue
			}
			seen[a.Name] = struct{}{}
			albums = append(albums, models.AlbumListing{
				ID:          a.ID,
				Name:        a.Name,
				Type:        a.AlbumType,
				TotalTracks: a.TotalTracks,
				ReleaseDate: a.ReleaseDate,
				ImageURL:    firstImage(a.Images),
			})
		}
		next = ""
		if resp.Next != nil {
			next = *resp.Next
		}
	}

	// release dates are ISO prefixes (YYYY, YYYY-MM or YYYY-MM-DD) and sort as strings
	sort.SliceStable(albums, func(i, j int) bool {
		return albums[i].ReleaseDate > albums[j].ReleaseDate
	})

	log.Debugf("%s Found %d albums for artist %s", logcolors.LogSpotify, len(albums), artistID)
	return albums, nil
}

// ListTracks returns an album's tracks in album order.
func (c *Client) ListTracks(ctx context.Context, albumID string) ([]models.TrackMatchCandidate, error) {
	params := url.Values{}
	params.Set("limit", fmt.Sprint(pageLimit))
	next := fmt.Sprintf("%s/albums/%s/tracks?%s", c.baseURL, url.PathEscape(albumID), params.Encode())

	tracks := []models.TrackMatchCandidate{}
	for page := 0; next != "" && page < maxPages; page++ {
		var resp tracksPage
		if err := c.getJSON(ctx, "list tracks", next, &resp); err != nil {
			return nil, err
		}
		for _, t := range resp.Items {
			artists := make([]string, 0, len(t.Artists))
			for _, a := range t.Artists {
				artists = append(artists, a.Name)
			}
			candidate := models.TrackMatchCandidate{
				Name:       t.Name,
				Artists:    artists,
				DurationMs: t.DurationMs,
			}
			if t.TrackNumber > 0 {
				candidate.TrackNumber = models.IntPtr(t.TrackNumber)
			}
			tracks = append(tracks, candidate)
		}
		next = ""
		if resp.Next != nil {
			next = *resp.Next
		}
	}
	return tracks, nil
}

func (c *Client) getJSON(ctx context.Context, op, endpoint string, out any) error {
	if !c.Configured() {
		return ErrNotConfigured
	}

	call := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return fmt.Errorf("error creating %s request: %w", op, err)
		}
		req.Header.Set("Accept", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return services.NewUpstreamError(serviceName, op, 0, err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
			return services.NewUpstreamError(serviceName, op, resp.StatusCode, errors.New(strings.TrimSpace(string(body))))
		}
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return services.NewUpstreamError(serviceName, op, resp.StatusCode, fmt.Errorf("error decoding response: %w", err))
		}
		return nil
	}

	if c.breaker == nil {
		return call()
	}
	err := c.breaker.Execute(call, services.IsTransient)
	if errors.Is(err, circuitbreaker.ErrCircuitOpen) {
		return services.NewUpstreamError(serviceName, op, 0, err)
	}
	return err
}
