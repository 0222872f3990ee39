package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"lyrics-translator-go/cache"
	"lyrics-translator-go/config"
	"lyrics-translator-go/logcolors"
	"lyrics-translator-go/middleware"
	"lyrics-translator-go/services/genius"
	"lyrics-translator-go/services/spotify"
	"lyrics-translator-go/services/translator"
	"lyrics-translator-go/songs"
	"lyrics-translator-go/stats"

	"github.com/rs/cors"
	log "github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

const shutdownTimeout = 10 * time.Second

func setupLogging(level string) {
	log.SetFormatter(&log.JSONFormatter{})
	log.SetOutput(os.Stdout)
	lvl, err := log.ParseLevel(level)
	if err != nil {
		log.Warnf("%s Unknown LOG_LEVEL %q, using info", logcolors.LogConfig, level)
		lvl = log.InfoLevel
	}
	log.SetLevel(lvl)
}

func corsHandler() *cors.Cors {
	return cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type", "Authorization", middleware.RequestIDHeader},
		ExposedHeaders: []string{"X-Cache-Status", "X-RateLimit-Type", "X-RateLimit-Limit", "X-RateLimit-Remaining", "Retry-After", middleware.RequestIDHeader},
	})
}

func main() {
	conf, err := config.Load()
	if err != nil {
		log.Fatalf("%s %v", logcolors.LogConfig, err)
	}
	setupLogging(conf.Configuration.LogLevel)
	if err := conf.Validate(); err != nil {
		log.Fatalf("%s %v", logcolors.LogConfig, err)
	}
	if !conf.SpotifyConfigured() {
		log.Warnf("%s Spotify credentials missing, album listings will only offer All Songs", logcolors.LogConfig)
	}

	serverStats := stats.New()
	statsStore, err := stats.NewStore(conf.Cache.StatsDBPath, serverStats)
	if err != nil {
		log.Fatalf("%s Failed to open stats store: %v", logcolors.LogStats, err)
	}
	if err := statsStore.Load(); err != nil {
		log.Warnf("%s %v", logcolors.LogStats, err)
	}
	statsStore.StartAutoSave(time.Duration(conf.Cache.StatsSaveIntervalSecs) * time.Second)

	store, err := cache.Open(cache.Options{
		DBPath:      conf.Cache.DBPath,
		BackupPath:  conf.Cache.BackupPath,
		Compression: conf.FeatureFlags.CacheCompression,
		TTLs: map[cache.Category]time.Duration{
			cache.CategoryLyrics:      conf.Cache.LyricsTTL,
			cache.CategoryTranslation: conf.Cache.TranslationTTL,
			cache.CategoryWord:        conf.Cache.WordTTL,
			cache.CategoryCatalog:     conf.Cache.CatalogTTL,
		},
		Observer: func(c cache.Category, result string) {
			serverStats.RecordCacheLookup(c.String(), result)
		},
	})
	if err != nil {
		log.Fatalf("%s Failed to open cache: %v", logcolors.LogCacheInit, err)
	}

	breakers := newUpstreamBreakers(conf)
	timeout := conf.Configuration.UpstreamTimeout

	lyricsClient := genius.New(genius.Options{
		Token:   conf.Genius.APIToken,
		BaseURL: conf.Genius.BaseURL,
		Timeout: timeout,
		Breaker: breakers.genius,
	})
	catalogClient := spotify.New(spotify.Options{
		ClientID:     conf.Spotify.ClientID,
		ClientSecret: conf.Spotify.ClientSecret,
		BaseURL:      conf.Spotify.BaseURL,
		TokenURL:     conf.Spotify.TokenURL,
		Timeout:      timeout,
		Breaker:      breakers.spotify,
	})
	translatorClient := translator.New(translator.Options{
		APIKey:  conf.OpenAI.APIKey,
		BaseURL: conf.OpenAI.BaseURL,
		Model:   conf.OpenAI.Model,
		Timeout: timeout,
		Breaker: breakers.translator,
	})

	var lookupLimiter *rate.Limiter
	if conf.Reconcile.LookupsPerSecond > 0 {
		lookupLimiter = rate.NewLimiter(rate.Limit(conf.Reconcile.LookupsPerSecond), 1)
	}

	songService := songs.New(store, lyricsClient, catalogClient, translatorClient, songs.Options{
		Workers:          conf.Reconcile.Workers,
		Limiter:          lookupLimiter,
		AllSongsMaxPages: conf.Reconcile.AllSongsMaxPages,
		AllSongsPerPage:  conf.Reconcile.AllSongsPerPage,
		SinglesMaxTracks: conf.Reconcile.SinglesMaxTracks,
		PopularArtists:   conf.Reconcile.PopularArtists,
		PopularDArtists:  conf.Reconcile.PopularDArtists,
		UpstreamTimeout:  timeout,
	})
	ipLimiter := middleware.NewIPRateLimiter(
		rate.Limit(conf.Configuration.RateLimitPerSecond), conf.Configuration.RateLimitBurstLimit,
		rate.Limit(conf.Configuration.CachedRateLimitPerSecond), conf.Configuration.CachedRateLimitBurstLimit,
	)

	srv := &server{
		conf:     conf,
		store:    store,
		songs:    songService,
		stats:    serverStats,
		limiter:  ipLimiter,
		breakers: breakers.all(),
	}

	bgCtx, stopBackground := context.WithCancel(context.Background())
	defer stopBackground()
	if idle := conf.Configuration.RateLimitIdleTTL; idle > 0 {
		srv.limiter.StartCleanup(bgCtx, idle/2, idle)
	}

	httpServer := &http.Server{
		Addr:         ":" + conf.Configuration.Port,
		Handler:      srv.handler(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 2 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Infof("%s Server listening on port %s", logcolors.LogServer, conf.Configuration.Port)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("%s %v", logcolors.LogServer, err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	log.Infof("%s Received %s, shutting down", logcolors.LogServer, sig)

	stopBackground()
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		log.Errorf("%s Shutdown: %v", logcolors.LogServer, err)
	}
	if err := store.Close(); err != nil {
		log.Errorf("%s Failed to close cache: %v", logcolors.LogCache, err)
	}
	if err := statsStore.Close(); err != nil {
		log.Errorf("%s Failed to close stats store: %v", logcolors.LogStats, err)
	}
}
