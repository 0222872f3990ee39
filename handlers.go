package main

import (
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"strconv"
	"strings"

	"lyrics-translator-go/cache"
	"lyrics-translator-go/circuitbreaker"
	"lyrics-translator-go/logcolors"
	"lyrics-translator-go/songs"

	"github.com/dustin/go-humanize"
	log "github.com/sirupsen/logrus"
)

const maxBodyBytes = 1 << 20

// writeServiceError maps a songs.Service error onto a status code. fallback is
// the message used for unexpected failures.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error, fallback string) {
	resp := Respond(w, r)
	switch {
	case errors.Is(err, songs.ErrInvalidRequest):
		msg := strings.TrimPrefix(err.Error(), songs.ErrInvalidRequest.Error()+": ")
		resp.ErrorMessage(http.StatusBadRequest, msg)
	case errors.Is(err, songs.ErrSongNotFound):
		resp.ErrorMessage(http.StatusNotFound, "Song not found or lyrics unavailable")
	case errors.Is(err, songs.ErrCacheOnly):
		w.Header().Set("Retry-After", "1")
		resp.SetCacheStatus("MISS").ErrorMessage(http.StatusTooManyRequests, "Rate limit exceeded. Only cached responses are available right now.")
	case errors.Is(err, songs.ErrTranslationFailed):
		resp.ErrorMessage(http.StatusInternalServerError, "Translation failed")
	case errors.Is(err, circuitbreaker.ErrCircuitOpen):
		w.Header().Set("Retry-After", "60")
		resp.ErrorMessage(http.StatusServiceUnavailable, "Upstream temporarily unavailable")
	default:
		log.Errorf("%s %s %s failed: %v", logcolors.LogHTTP, r.Method, r.URL.Path, err)
		resp.ErrorMessage(http.StatusInternalServerError, fallback)
	}
}

// readBody returns the request body, capped at maxBodyBytes.
func readBody(r *http.Request) ([]byte, error) {
	return io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
}

// queryInt parses an optional positive integer query parameter. A missing value is 0.
func queryInt(r *http.Request, name string) (int, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("%s must be a number", name)
	}
	return n, nil
}

func (srv *server) translateSong(w http.ResponseWriter, r *http.Request) {
	body, err := readBody(r)
	if err != nil || len(strings.TrimSpace(string(body))) == 0 {
		Respond(w, r).ErrorMessage(http.StatusBadRequest, "Request body is required")
		return
	}
	var req translateRequest
	if err := decodeBody(body, &req); err != nil {
		Respond(w, r).ErrorMessage(http.StatusBadRequest, fmt.Sprintf("Invalid request body: %v", err))
		return
	}

	result, err := srv.songs.Translate(r.Context(), songs.TranslateRequest{
		SongID:         int(req.SongID),
		SongName:       req.SongName,
		ArtistName:     req.ArtistName,
		TargetLanguage: req.TargetLanguage,
	})
	if err != nil {
		writeServiceError(w, r, err, "Failed to fetch song")
		return
	}

	Respond(w, r).SetCached(result.Cached).JSON(result)
}

func (srv *server) translateWord(w http.ResponseWriter, r *http.Request) {
	body, err := readBody(r)
	if err != nil {
		Respond(w, r).ErrorMessage(http.StatusBadRequest, "word and context are required")
		return
	}
	var req translateWordRequest
	if err := decodeBody(body, &req); err != nil || req.Word == nil || req.Context == nil {
		Respond(w, r).ErrorMessage(http.StatusBadRequest, "word and context are required")
		return
	}

	gloss, cached, err := srv.songs.TranslateWord(r.Context(), *req.Word, *req.Context, req.TargetLanguage)
	if err != nil {
		writeServiceError(w, r, err, "Translation failed")
		return
	}

	Respond(w, r).SetCached(cached).JSON(gloss)
}

func (srv *server) searchArtists(w http.ResponseWriter, r *http.Request) {
	artists, err := srv.songs.SearchArtists(r.Context(), r.URL.Query().Get("q"))
	if err != nil {
		if errors.Is(err, songs.ErrCacheOnly) {
			writeServiceError(w, r, err, "")
			return
		}
		log.Errorf("%s Artist search failed: %v", logcolors.LogArtists, err)
		Respond(w, r).ErrorMessage(http.StatusInternalServerError, err.Error())
		return
	}

	Respond(w, r).JSON(map[string]interface{}{"artists": artists})
}

func (srv *server) artistAlbums(w http.ResponseWriter, r *http.Request) {
	artistID, err := queryInt(r, "artist_id")
	if err != nil {
		Respond(w, r).ErrorMessage(http.StatusBadRequest, err.Error())
		return
	}

	albums, cached, err := srv.songs.ArtistAlbums(r.Context(), artistID, r.URL.Query().Get("artist_name"))
	if err != nil {
		writeServiceError(w, r, err, "Failed to fetch albums")
		return
	}

	Respond(w, r).SetCached(cached).JSON(map[string]interface{}{"albums": albums})
}

func (srv *server) albumSongs(w http.ResponseWriter, r *http.Request) {
	artistID, err := queryInt(r, "artist_id")
	if err != nil {
		Respond(w, r).ErrorMessage(http.StatusBadRequest, err.Error())
		return
	}
	q := r.URL.Query()

	list, cached, err := srv.songs.AlbumSongs(r.Context(), artistID, strings.TrimSpace(q.Get("album_id")), q.Get("artist_name"))
	if err != nil {
		writeServiceError(w, r, err, "Failed to fetch songs")
		return
	}

	Respond(w, r).SetCached(cached).JSON(map[string]interface{}{"songs": list})
}

func (srv *server) cacheStats(w http.ResponseWriter, r *http.Request) {
	byCategory, err := srv.store.Stats()
	if err != nil {
		log.Errorf("%s Failed to read cache stats: %v", logcolors.LogCache, err)
		Respond(w, r).ErrorMessage(http.StatusInternalServerError, "Failed to read cache stats")
		return
	}

	out := make(map[string]interface{}, len(byCategory))
	for category, st := range byCategory {
		out[category.String()] = map[string]interface{}{
			"count":      st.Count,
			"size_bytes": st.SizeBytes,
			"size_mb":    math.Round(float64(st.SizeBytes)/(1024*1024)*100) / 100,
			"size_human": humanize.Bytes(uint64(st.SizeBytes)),
		}
	}
	Respond(w, r).JSON(out)
}

func (srv *server) clearCache(w http.ResponseWriter, r *http.Request) {
	body, err := readBody(r)
	if err != nil {
		Respond(w, r).ErrorMessage(http.StatusBadRequest, "Invalid request body")
		return
	}
	var req clearCacheRequest
	if err := decodeBody(body, &req); err != nil {
		Respond(w, r).ErrorMessage(http.StatusBadRequest, fmt.Sprintf("Invalid request body: %v", err))
		return
	}

	var categories []cache.Category
	label := "all"
	if req.CacheType != nil && strings.TrimSpace(*req.CacheType) != "" {
		category, err := cache.ParseCategory(*req.CacheType)
		if err != nil {
			Respond(w, r).ErrorMessage(http.StatusBadRequest, err.Error())
			return
		}
		categories = append(categories, category)
		label = *req.CacheType
	}

	backupPath, err := srv.store.BackupAndClear(categories...)
	if err != nil {
		log.Errorf("%s Failed to backup and clear cache: %v", logcolors.LogCacheClear, err)
		Respond(w, r).ErrorMessage(http.StatusInternalServerError, fmt.Sprintf("Failed to backup and clear cache: %v", err))
		return
	}

	log.Infof("%s Cache cleared (%s), backup at: %s", logcolors.LogCacheClear, label, backupPath)
	Respond(w, r).JSON(map[string]interface{}{
		"success":     true,
		"message":     "Cache cleared: " + label,
		"backup_path": backupPath,
	})
}

func (srv *server) backupCache(w http.ResponseWriter, r *http.Request) {
	backupPath, err := srv.store.Backup()
	if err != nil {
		log.Errorf("%s Failed to backup cache: %v", logcolors.LogCacheBackup, err)
		Respond(w, r).ErrorMessage(http.StatusInternalServerError, fmt.Sprintf("Failed to backup cache: %v", err))
		return
	}

	Respond(w, r).JSON(map[string]interface{}{
		"message":     "Cache backed up successfully",
		"backup_path": backupPath,
	})
}

func (srv *server) listBackups(w http.ResponseWriter, r *http.Request) {
	backups, err := srv.store.ListBackups()
	if err != nil {
		log.Errorf("%s Failed to list backups: %v", logcolors.LogCacheBackup, err)
		Respond(w, r).ErrorMessage(http.StatusInternalServerError, fmt.Sprintf("Failed to list backups: %v", err))
		return
	}

	Respond(w, r).JSON(map[string]interface{}{
		"backups": backups,
		"count":   len(backups),
	})
}

func (srv *server) getHealthStatus(w http.ResponseWriter, r *http.Request) {
	health := map[string]interface{}{
		"status": "ok",
	}

	upstreams := make(map[string]circuitbreaker.Status, len(srv.breakers))
	for _, cb := range srv.breakers {
		st := cb.Status()
		upstreams[cb.Name()] = st
		// If any circuit breaker is open, mark as degraded
		if st.State == circuitbreaker.StateOpen.String() {
			health["status"] = "degraded"
		}
	}
	health["upstreams"] = upstreams
	health["spotify_configured"] = srv.conf.SpotifyConfigured()

	Respond(w, r).JSON(health)
}

func (srv *server) getStats(w http.ResponseWriter, r *http.Request) {
	snapshot := srv.stats.Snapshot()

	if byCategory, err := srv.store.Stats(); err == nil {
		storage := make(map[string]interface{}, len(byCategory))
		for category, st := range byCategory {
			storage[category.String()] = st
		}
		snapshot["cache_storage"] = storage
	}

	breakers := make(map[string]circuitbreaker.Status, len(srv.breakers))
	for _, cb := range srv.breakers {
		breakers[cb.Name()] = cb.Status()
	}
	snapshot["circuit_breakers"] = breakers

	Respond(w, r).JSON(snapshot)
}

func helpHandler(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		Respond(w, r).ErrorMessage(http.StatusNotFound, "Not found")
		return
	}
	Respond(w, r).JSON(map[string]interface{}{
		"endpoints": map[string]string{
			"POST /api/translate":       "Translate a song. Body: song_id or song_name, artist_name, target_language (use original_only to skip translation)",
			"POST /api/translate-word":  "Translate a word in context. Body: word, context, target_language",
			"GET /api/search-artists":   "Artist autocomplete. Query: q",
			"GET /api/artist-albums":    "Album listing. Query: artist_id or artist_name",
			"GET /api/album-songs":      "Songs of an album. Query: artist_id or artist_name, album_id (all, singles or a catalog id)",
			"GET /api/cache/stats":      "Cache size per category (requires access token)",
			"POST /api/cache/clear":     "Clear the cache. Body: cache_type (lyrics, translation, word, catalog) or empty for all (requires access token)",
			"POST /api/cache/backup":    "Snapshot the cache database (requires access token)",
			"GET /api/cache/backups":    "List cache snapshots (requires access token)",
			"GET /api/stats":            "Server statistics",
			"GET /api/health":           "Health and upstream circuit state",
			"GET /metrics":              "Prometheus metrics",
		},
	})
}
