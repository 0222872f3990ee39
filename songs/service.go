// Package songs implements the cache-first flows behind the HTTP API: lyrics
// translation, word glosses, artist search, album listings and album songs.
package songs

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"lyrics-translator-go/cache"
	"lyrics-translator-go/logcolors"
	"lyrics-translator-go/models"
	"lyrics-translator-go/reconcile"
	"lyrics-translator-go/services/genius"
	"lyrics-translator-go/services/spotify"
	"lyrics-translator-go/utils"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"
)

const (
	DefaultTargetLanguage = "English"
	// OriginalOnly skips translation and returns the lyrics as they are.
	OriginalOnly = "original_only"

	searchPerPage     = 20
	maxSearchArtists  = 50
	maxReturnArtists  = 30
	maxPopularQueries = 5
)

var (
	ErrInvalidRequest    = errors.New("invalid request")
	ErrSongNotFound      = errors.New("song not found or lyrics unavailable")
	ErrArtistNotFound    = errors.New("artist not found")
	ErrTranslationFailed = errors.New("translation failed")
	// ErrCacheOnly is returned when a request may only be served from cache and
	// the artifact is not cached.
	ErrCacheOnly = errors.New("not cached")
)

// LyricsSource is the lyrics catalog.
type LyricsSource interface {
	Song(ctx context.Context, id int) (*genius.SongHit, error)
	SearchHits(ctx context.Context, query string, perPage int) ([]genius.SongHit, error)
	Artist(ctx context.Context, id int) (*models.Artist, error)
	ArtistSongs(ctx context.Context, artistID, page, perPage int) ([]models.ReconciledSong, error)
	LookupSong(ctx context.Context, query string) (*models.ReconciledSong, error)
	FetchLyrics(ctx context.Context, song, artist string) (*genius.LyricsPage, error)
}

// Catalog is the music catalog used for album listings.
type Catalog interface {
	Configured() bool
	SearchArtist(ctx context.Context, name string) (*spotify.Artist, error)
	ListAlbums(ctx context.Context, artistID string) ([]models.AlbumListing, error)
	ListTracks(ctx context.Context, albumID string) ([]models.TrackMatchCandidate, error)
}

// Translator translates lyrics and single words.
type Translator interface {
	TranslateLyrics(ctx context.Context, lyrics, target, source string) (*cache.Translation, error)
	TranslateWord(ctx context.Context, word, sentence, target string) (string, error)
}

// Options tunes the flows. Zero values use the defaults.
type Options struct {
	Workers          int
	Limiter          *rate.Limiter
	AllSongsMaxPages int
	AllSongsPerPage  int
	SinglesMaxTracks int
	PopularArtists   []string
	PopularDArtists  []string
	// UpstreamTimeout bounds a translation shared by concurrent callers.
	UpstreamTimeout  time.Duration
}

// Service wires the cache to the upstream collaborators.
type Service struct {
	store      *cache.Store
	lyrics     LyricsSource
	catalog    Catalog
	translator Translator
	opts       Options
	flights    singleflight.Group
}

// New creates a Service.
func New(store *cache.Store, lyrics LyricsSource, catalog Catalog, translator Translator, opts Options) *Service {
	if opts.AllSongsMaxPages < 1 {
		opts.AllSongsMaxPages = 3
	}
	if opts.AllSongsPerPage < 1 {
		opts.AllSongsPerPage = 50
	}
	if len(opts.PopularArtists) == 0 {
		opts.PopularArtists = []string{"Drake"}
	}
	if opts.UpstreamTimeout <= 0 {
		opts.UpstreamTimeout = 2 * time.Minute
	}
	return &Service{
		store:      store,
		lyrics:     lyrics,
		catalog:    catalog,
		translator: translator,
		opts:       opts,
	}
}

type cacheOnlyKey struct{}

// WithCacheOnly marks ctx so that the flows answer from cache only.
func WithCacheOnly(ctx context.Context) context.Context {
	return context.WithValue(ctx, cacheOnlyKey{}, true)
}

// CacheOnly reports whether ctx was marked by WithCacheOnly.
func CacheOnly(ctx context.Context) bool {
	v, _ := ctx.Value(cacheOnlyKey{}).(bool)
	return v
}

// TranslateRequest identifies a song by lyrics-catalog id or by name.
type TranslateRequest struct {
	SongID         int
	SongName       string
	ArtistName     string
	TargetLanguage string
}

// TranslateResult is the original and translated text of one song.
type TranslateResult struct {
	Title            string `json:"title"`
	Artist           string `json:"artist"`
	OriginalLyrics   string `json:"original_lyrics"`
	TranslatedLyrics string `json:"translated_lyrics"`
	TargetLanguage   string `json:"target_language"`
	// Cached is true when nothing had to be fetched upstream.
	Cached bool `json:"-"`
}

// Translate returns a song's lyrics with their translation into the target language.
func (s *Service) Translate(ctx context.Context, req TranslateRequest) (*TranslateResult, error) {
	req.SongName = strings.TrimSpace(req.SongName)
	req.ArtistName = strings.TrimSpace(req.ArtistName)
	if req.SongID <= 0 && req.SongName == "" {
		return nil, fmt.Errorf("%w: song_id or song_name is required", ErrInvalidRequest)
	}
	target := strings.TrimSpace(req.TargetLanguage)
	if target == "" {
		target = DefaultTargetLanguage
	}

	var songKey any = req.SongName
	if req.SongID > 0 {
		songKey = req.SongID
	}

	lyrics, lyricsCached, err := s.loadLyrics(ctx, req, songKey)
	if err != nil {
		return nil, err
	}

	result := &TranslateResult{
		Title:          lyrics.Title,
		Artist:         lyrics.Artist,
		OriginalLyrics: lyrics.Lyrics,
	}

	if target == OriginalOnly {
		result.TranslatedLyrics = lyrics.Lyrics
		result.TargetLanguage = "Original"
		result.Cached = lyricsCached
		return result, nil
	}
	result.TargetLanguage = target

	if t, ok := cache.Lookup[cache.Translation](s.store, songKey, req.ArtistName, target); ok {
		log.Infof("%s Found cached translation to %s", logcolors.LogTranslate, target)
		result.TranslatedLyrics = t.Translated
		result.Cached = lyricsCached
		return result, nil
	}
	if CacheOnly(ctx) {
		return nil, ErrCacheOnly
	}

	key := cache.Fingerprint(cache.CategoryTranslation, songKey, req.ArtistName, target)
	v, err, shared := s.flights.Do(key, func() (any, error) {
		// joined callers must not fail because the first one went away
		callCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.opts.UpstreamTimeout)
		defer cancel()

		start := time.Now()
		t, err := s.translator.TranslateLyrics(callCtx, lyrics.Lyrics, target, "")
		if err != nil {
			return nil, err
		}
		s.store.Set(cache.CategoryTranslation, *t, songKey, req.ArtistName, target)
		log.Infof("%s Translated %q to %s in %v", logcolors.LogTranslate, lyrics.Title, target, time.Since(start).Round(time.Millisecond))
		return t, nil
	})
	if err != nil {
		log.Errorf("%s Translation of %q failed: %v", logcolors.LogTranslate, lyrics.Title, err)
		return nil, fmt.Errorf("%w: %v", ErrTranslationFailed, err)
	}
	if shared {
		log.Debugf("%s Shared in-flight translation of %q", logcolors.LogTranslate, lyrics.Title)
	}
	result.TranslatedLyrics = v.(*cache.Translation).Translated
	return result, nil
}

func (s *Service) loadLyrics(ctx context.Context, req TranslateRequest, songKey any) (*cache.Lyrics, bool, error) {
	if l, ok := cache.Lookup[cache.Lyrics](s.store, songKey, req.ArtistName); ok {
		log.Infof("%s Found cached lyrics for %v", logcolors.LogGenius, songKey)
		return &l, true, nil
	}
	if CacheOnly(ctx) {
		return nil, false, ErrCacheOnly
	}

	song, artist := req.SongName, req.ArtistName
	if req.SongID > 0 {
		hit, err := s.lyrics.Song(ctx, req.SongID)
		if errors.Is(err, genius.ErrNotFound) {
			return nil, false, ErrSongNotFound
		}
		if err != nil {
			return nil, false, fmt.Errorf("failed to fetch song %d: %w", req.SongID, err)
		}
		song, artist = hit.Title, hit.ArtistName
	}

	page, err := s.lyrics.FetchLyrics(ctx, song, artist)
	if errors.Is(err, genius.ErrNotFound) || errors.Is(err, genius.ErrNoLyrics) {
		return nil, false, ErrSongNotFound
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to fetch lyrics for %q: %w", song, err)
	}

	l := cache.Lyrics{Title: page.Title, Artist: page.Artist, Lyrics: page.Lyrics}
	s.store.Set(cache.CategoryLyrics, l, songKey, req.ArtistName)
	return &l, false, nil
}

// TranslateWord translates one word or short phrase as used in sentence.
func (s *Service) TranslateWord(ctx context.Context, word, sentence, target string) (*cache.WordGloss, bool, error) {
	if word == "" || sentence == "" {
		return nil, false, fmt.Errorf("%w: word and context are required", ErrInvalidRequest)
	}
	if target == "" {
		target = DefaultTargetLanguage
	}

	if g, ok := cache.Lookup[cache.WordGloss](s.store, word, sentence, target); ok {
		return &g, true, nil
	}
	if CacheOnly(ctx) {
		return nil, false, ErrCacheOnly
	}

	translation, err := s.translator.TranslateWord(ctx, word, sentence, target)
	if err != nil {
		log.Errorf("%s Error translating word %q: %v", logcolors.LogTranslate, word, err)
		return nil, false, fmt.Errorf("%w: %v", ErrTranslationFailed, err)
	}

	g := cache.WordGloss{Word: word, Translation: translation, Context: sentence}
	s.store.Set(cache.CategoryWord, g, word, sentence, target)
	return &g, false, nil
}

// SearchArtists returns lyrics-catalog artists for an autocomplete query. An
// empty query falls back to the first popular artist.
func (s *Service) SearchArtists(ctx context.Context, query string) ([]models.Artist, error) {
	if CacheOnly(ctx) {
		return nil, ErrCacheOnly
	}

	query = strings.TrimSpace(query)
	if query == "" {
		query = s.opts.PopularArtists[0]
	}

	queries := []string{query}
	if utf8.RuneCountInString(query) <= 2 && strings.HasPrefix(strings.ToLower(query), "d") && len(s.opts.PopularDArtists) > 0 {
		queries = s.opts.PopularDArtists
		if len(queries) > maxPopularQueries {
			queries = queries[:maxPopularQueries]
		}
	}

	artists := []models.Artist{}
	seen := make(map[int]struct{})
collect:
	for _, q := range queries {
		hits, err := s.lyrics.SearchHits(ctx, q, searchPerPage)
		if err != nil {
			return nil, fmt.Errorf("failed to search artists for %q: %w", q, err)
		}
		for _, h := range hits {
			if h.ArtistID == 0 {
				continue
			}
			if _, dup := seen[h.ArtistID]; !dup {
				seen[h.ArtistID] = struct{}{}
				artists = append(artists, models.Artist{ID: h.ArtistID, Name: h.ArtistName, ImageURL: h.ArtistImageURL})
			}
			if len(artists) >= maxSearchArtists {
				break collect
			}
		}
	}

	if utf8.RuneCountInString(query) >= 2 {
		needle := utils.NormalizeName(query)
		filtered := []models.Artist{}
		for _, a := range artists {
			if strings.Contains(utils.NormalizeName(a.Name), needle) {
				filtered = append(filtered, a)
			}
		}
		if len(filtered) > 0 {
			artists = filtered
		}
	}

	if len(artists) > maxReturnArtists {
		artists = artists[:maxReturnArtists]
	}
	log.Debugf("%s %d artists for %q", logcolors.LogArtists, len(artists), query)
	return artists, nil
}

// ArtistAlbums returns the album listing shown for an artist: All Songs, then
// Singles & EPs when the artist has any, then the full albums. Upstream
// failures degrade to All Songs alone.
func (s *Service) ArtistAlbums(ctx context.Context, artistID int, artistName string) ([]models.AlbumListing, bool, error) {
	artistName = strings.TrimSpace(artistName)
	if artistID <= 0 && artistName == "" {
		return nil, false, fmt.Errorf("%w: artist_id or artist_name is required", ErrInvalidRequest)
	}

	if c, ok := cache.Lookup[cache.Catalog](s.store, cache.CatalogAlbums, artistID, artistName); ok && c.Kind == cache.CatalogAlbums {
		log.Infof("%s Found cached albums for %d/%s", logcolors.LogAlbums, artistID, artistName)
		return c.Albums, true, nil
	}
	if CacheOnly(ctx) {
		return nil, false, ErrCacheOnly
	}

	albums, err := s.fetchAlbums(ctx, artistID, artistName)
	if err != nil {
		log.Warnf("%s Error fetching albums for %d/%s: %v", logcolors.LogAlbums, artistID, artistName, err)
		return []models.AlbumListing{reconcile.AllSongs()}, false, nil
	}
	return albums, false, nil
}

func (s *Service) fetchAlbums(ctx context.Context, artistID int, artistName string) ([]models.AlbumListing, error) {
	name := artistName
	if name == "" {
		a, err := s.lyrics.Artist(ctx, artistID)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve artist %d: %w", artistID, err)
		}
		name = a.Name
	}

	if !s.catalog.Configured() {
		return []models.AlbumListing{reconcile.AllSongs()}, nil
	}

	catalogArtist, err := s.catalog.SearchArtist(ctx, name)
	if err != nil {
		return nil, err
	}
	if catalogArtist == nil {
		log.Infof("%s No catalog artist for %q", logcolors.LogAlbums, name)
		return []models.AlbumListing{reconcile.AllSongs()}, nil
	}

	all, err := s.catalog.ListAlbums(ctx, catalogArtist.ID)
	if err != nil {
		return nil, err
	}

	classified := reconcile.Classify(all, s.opts.SinglesMaxTracks)
	listing := reconcile.WithSentinels(classified)

	s.store.Set(cache.CategoryCatalog, cache.Catalog{Kind: cache.CatalogAlbums, Albums: listing}, cache.CatalogAlbums, artistID, artistName)
	if len(classified.SinglesAndEPs) > 0 {
		s.store.Set(cache.CategoryCatalog, cache.Catalog{Kind: cache.CatalogSingles, Albums: classified.SinglesAndEPs}, cache.CatalogSingles, artistID, artistName)
	}

	log.Infof("%s %d full albums and %d singles/EPs for %q", logcolors.LogAlbums, len(classified.FullAlbums), len(classified.SinglesAndEPs), name)
	return listing, nil
}

// AlbumSongs returns the lyrics-catalog songs of one album listing entry.
// albumID may be a catalog album id or one of the sentinel ids.
func (s *Service) AlbumSongs(ctx context.Context, artistID int, albumID, artistName string) ([]models.ReconciledSong, bool, error) {
	artistName = strings.TrimSpace(artistName)
	if artistID <= 0 && artistName == "" {
		return nil, false, fmt.Errorf("%w: artist_id or artist_name is required", ErrInvalidRequest)
	}

	artistKey := songsArtistKey(artistID, artistName)
	if c, ok := cache.Lookup[cache.Catalog](s.store, cache.CatalogSongs, artistKey, albumID); ok && c.Kind == cache.CatalogSongs {
		log.Infof("%s Found cached songs for %d/%s", logcolors.LogSongs, artistID, albumID)
		return c.Songs, true, nil
	}
	if CacheOnly(ctx) {
		return nil, false, ErrCacheOnly
	}

	var (
		songs []models.ReconciledSong
		err   error
	)
	switch albumID {
	case models.SinglesID:
		songs, err = s.singlesSongs(ctx, artistID, artistName)
	case "", models.AllSongsID:
		songs, err = s.allSongs(ctx, artistID, artistName)
	default:
		songs, err = s.albumSongs(ctx, albumID, artistName)
	}
	if err != nil {
		return nil, false, err
	}

	// an empty list reads as a miss, so it is not worth storing
	if len(songs) > 0 {
		s.store.Set(cache.CategoryCatalog, cache.Catalog{Kind: cache.CatalogSongs, Songs: songs}, cache.CatalogSongs, artistKey, albumID)
	}
	return songs, false, nil
}

// songsArtistKey identifies the artist of a song list. Without an id the
// normalized name stands in, so name-only requests never share an entry.
func songsArtistKey(artistID int, artistName string) any {
	if artistID > 0 {
		return artistID
	}
	return "name:" + utils.NormalizeName(artistName)
}

func (s *Service) reconcileOptions(mode reconcile.Mode) reconcile.Options {
	return reconcile.Options{Workers: s.opts.Workers, Limiter: s.opts.Limiter, Mode: mode}
}

func (s *Service) albumSongs(ctx context.Context, albumID, artistName string) ([]models.ReconciledSong, error) {
	tracks, err := s.catalog.ListTracks(ctx, albumID)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		log.Warnf("%s Error fetching tracks of album %s: %v", logcolors.LogSongs, albumID, err)
		return []models.ReconciledSong{}, nil
	}
	return reconcile.Reconcile(ctx, tracks, artistName, s.lyrics.LookupSong, s.reconcileOptions(reconcile.ModeAlbum))
}

func (s *Service) singlesSongs(ctx context.Context, artistID int, artistName string) ([]models.ReconciledSong, error) {
	c, ok := cache.Lookup[cache.Catalog](s.store, cache.CatalogSingles, artistID, artistName)
	if !ok || c.Kind != cache.CatalogSingles || len(c.Albums) == 0 {
		log.Infof("%s No cached singles for %d/%s, listing all songs", logcolors.LogSongs, artistID, artistName)
		return s.allSongs(ctx, artistID, artistName)
	}

	var tracks []models.TrackMatchCandidate
	for _, album := range c.Albums {
		t, err := s.catalog.ListTracks(ctx, album.ID)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			log.Warnf("%s Error fetching tracks of single %s: %v", logcolors.LogSongs, album.ID, err)
			continue
		}
		tracks = append(tracks, t...)
	}
	return reconcile.Reconcile(ctx, tracks, artistName, s.lyrics.LookupSong, s.reconcileOptions(reconcile.ModeAggregate))
}

func (s *Service) allSongs(ctx context.Context, artistID int, artistName string) ([]models.ReconciledSong, error) {
	if artistID <= 0 {
		id, err := s.resolveArtistID(ctx, artistName)
		if err != nil {
			return nil, err
		}
		artistID = id
	}

	perPage := s.opts.AllSongsPerPage
	songs := []models.ReconciledSong{}
	seen := make(map[int]struct{})
	for page := 1; page <= s.opts.AllSongsMaxPages; page++ {
		batch, err := s.lyrics.ArtistSongs(ctx, artistID, page, perPage)
		if err != nil {
			return nil, fmt.Errorf("failed to list songs of artist %d: %w", artistID, err)
		}
		for _, song := range batch {
			if song.ID <= 0 {
				continue
			}
			if _, dup := seen[song.ID]; dup {
				continue
			}
			seen[song.ID] = struct{}{}
			songs = append(songs, song)
		}
		if len(batch) < perPage {
			break
		}
	}
	return songs, nil
}

// resolveArtistID finds the lyrics-catalog id of an artist given only a name.
func (s *Service) resolveArtistID(ctx context.Context, name string) (int, error) {
	hits, err := s.lyrics.SearchHits(ctx, name, searchPerPage)
	if err != nil {
		return 0, fmt.Errorf("failed to resolve artist %q: %w", name, err)
	}
	want := utils.NormalizeName(name)
	fallback := 0
	for _, h := range hits {
		if h.ArtistID == 0 {
			continue
		}
		if utils.NormalizeName(h.ArtistName) == want {
			return h.ArtistID, nil
		}
		if fallback == 0 {
			fallback = h.ArtistID
		}
	}
	if fallback == 0 {
		return 0, fmt.Errorf("%w: %q", ErrArtistNotFound, name)
	}
	return fallback, nil
}
