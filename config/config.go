package config

import (
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	log "github.com/sirupsen/logrus"
)

type Config struct {
	Configuration struct {
		Port     string `envconfig:"PORT" default:"5000"`
		LogLevel string `envconfig:"LOG_LEVEL" default:"info"`

		RateLimitPerSecond        int           `envconfig:"RATE_LIMIT_PER_SECOND" default:"2"`
		RateLimitBurstLimit       int           `envconfig:"RATE_LIMIT_BURST_LIMIT" default:"5"`
		CachedRateLimitPerSecond  int           `envconfig:"CACHED_RATE_LIMIT_PER_SECOND" default:"10"`
		CachedRateLimitBurstLimit int           `envconfig:"CACHED_RATE_LIMIT_BURST_LIMIT" default:"20"`
		CacheAccessToken          string        `envconfig:"CACHE_ACCESS_TOKEN" default:""`
		RateLimitIdleTTL          time.Duration `envconfig:"RATE_LIMIT_IDLE_TTL" default:"10m"`

		CircuitBreakerThreshold    int           `envconfig:"CIRCUIT_BREAKER_THRESHOLD" default:"5"`
		CircuitBreakerCooldownSecs int           `envconfig:"CIRCUIT_BREAKER_COOLDOWN_SECS" default:"300"`
		UpstreamTimeout            time.Duration `envconfig:"UPSTREAM_TIMEOUT" default:"15s"`
	}

	Cache struct {
		DBPath                string        `envconfig:"CACHE_DB_PATH" default:"cache/cache.db"`
		BackupPath            string        `envconfig:"CACHE_BACKUP_PATH" default:"cache/backups"`
		StatsDBPath           string        `envconfig:"STATS_DB_PATH" default:"cache/stats.db"`
		LyricsTTL             time.Duration `envconfig:"LYRICS_CACHE_TTL" default:"720h"`
		TranslationTTL        time.Duration `envconfig:"TRANSLATION_CACHE_TTL" default:"720h"`
		WordTTL               time.Duration `envconfig:"WORD_CACHE_TTL" default:"720h"`
		CatalogTTL            time.Duration `envconfig:"CATALOG_CACHE_TTL" default:"168h"`
		StatsSaveIntervalSecs int           `envconfig:"STATS_SAVE_INTERVAL_SECS" default:"300"`
	}

	// Upstream credentials and endpoints
	Genius struct {
		APIToken string `envconfig:"GENIUS_API_TOKEN" default:""`
		BaseURL  string `envconfig:"GENIUS_BASE_URL" default:"https://api.genius.com"`
	}

	Spotify struct {
		ClientID     string `envconfig:"SPOTIFY_CLIENT_ID" default:""`
		ClientSecret string `envconfig:"SPOTIFY_CLIENT_SECRET" default:""`
		BaseURL      string `envconfig:"SPOTIFY_BASE_URL" default:"https://api.spotify.com/v1"`
		TokenURL     string `envconfig:"SPOTIFY_TOKEN_URL" default:"https://accounts.spotify.com/api/token"`
	}

	OpenAI struct {
		APIKey  string `envconfig:"OPENAI_API_KEY" default:""`
		BaseURL string `envconfig:"OPENAI_BASE_URL" default:"https://api.openai.com/v1"`
		Model   string `envconfig:"OPENAI_MODEL" default:"gpt-4o-mini"`
	}

	Reconcile struct {
		Workers          int      `envconfig:"RECONCILE_WORKERS" default:"4"`
		LookupsPerSecond float64  `envconfig:"RECONCILE_LOOKUPS_PER_SECOND" default:"5"`
		AllSongsMaxPages int      `envconfig:"ALL_SONGS_MAX_PAGES" default:"3"`
		AllSongsPerPage  int      `envconfig:"ALL_SONGS_PER_PAGE" default:"50"`
		SinglesMaxTracks int      `envconfig:"SINGLES_MAX_TRACKS" default:"5"`
		PopularArtists   []string `envconfig:"POPULAR_ARTISTS" default:"Drake,Taylor Swift,Bad Bunny,The Weeknd,Ariana Grande,Kanye West,Beyoncé,Eminem,Rihanna,Ed Sheeran,Post Malone,Billie Eilish,Travis Scott,J. Cole,Kendrick Lamar,SZA,Justin Bieber,Bruno Mars,Doja Cat,Lil Baby"`
		PopularDArtists  []string `envconfig:"POPULAR_D_ARTISTS" default:"Drake,Doja Cat,DaBaby,Dua Lipa,DMX"`
	}

	FeatureFlags struct {
		CacheCompression bool `envconfig:"FF_CACHE_COMPRESSION" default:"false"`
	}
}

// load loads the configuration from the environment.
func load() (Config, error) {
	err := godotenv.Load()
	if err != nil {
		log.Warnf("Error loading env config: %v", err)
	}

	cfg := Config{}
	err = envconfig.Process("", &cfg)
	return cfg, err
}

// Load reads the configuration once at process start.
func Load() (Config, error) {
	cfg, err := load()
	if err != nil {
		return cfg, fmt.Errorf("unable to load configuration: %w", err)
	}
	return cfg, nil
}

// Validate reports credentials the process cannot run without.
// Spotify credentials are optional: album features degrade when they are missing.
func (c Config) Validate() error {
	if c.Genius.APIToken == "" {
		return fmt.Errorf("GENIUS_API_TOKEN not found in environment variables")
	}
	if c.OpenAI.APIKey == "" {
		return fmt.Errorf("OPENAI_API_KEY not found in environment variables")
	}
	return nil
}

// SpotifyConfigured reports whether catalog credentials are present.
func (c Config) SpotifyConfigured() bool {
	return c.Spotify.ClientID != "" && c.Spotify.ClientSecret != ""
}
