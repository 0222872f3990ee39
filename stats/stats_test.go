package stats

import (
	"net/http"
	"path/filepath"
	"testing"
	"time"
)

func TestRecordRequest(t *testing.T) {
	s := New()
	paths := []string{
		"/api/translate",
		"/api/translate-word",
		"/api/search-artists",
		"/api/artist-albums",
		"/api/album-songs",
		"/api/cache/stats",
		"/api/cache/clear",
		"/api/stats",
		"/api/health",
		"/metrics",
	}
	for _, p := range paths {
		s.RecordRequest(p)
	}

	tests := []struct {
		name string
		got  int64
		want int64
	}{
		{"total", s.TotalRequests.Load(), 10},
		{"translate", s.TranslateRequests.Load(), 1},
		{"word", s.WordRequests.Load(), 1},
		{"catalog", s.CatalogRequests.Load(), 3},
		{"cache", s.CacheRequests.Load(), 2},
		{"stats", s.StatsRequests.Load(), 1},
		{"health", s.HealthRequests.Load(), 1},
		{"other", s.OtherRequests.Load(), 1},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("%s: expected %d, got %d", tt.name, tt.want, tt.got)
		}
	}
}

func TestRecordCacheLookup(t *testing.T) {
	s := New()
	s.RecordCacheLookup("lyrics", "hit")
	s.RecordCacheLookup("lyrics", "hit")
	s.RecordCacheLookup("lyrics", "miss")
	s.RecordCacheLookup("catalog", "expired")

	if s.CacheHits.Load() != 2 || s.CacheMisses.Load() != 1 || s.CacheExpired.Load() != 1 {
		t.Errorf("Unexpected totals: hits=%d misses=%d expired=%d", s.CacheHits.Load(), s.CacheMisses.Load(), s.CacheExpired.Load())
	}
	if rate := s.CacheHitRate(); rate != 50 {
		t.Errorf("Expected 50%% hit rate, got %v", rate)
	}

	byCategory := s.CacheLookupsSnapshot()
	if byCategory["lyrics"]["hit"] != 2 || byCategory["lyrics"]["miss"] != 1 || byCategory["catalog"]["expired"] != 1 {
		t.Errorf("Unexpected per-category counts: %v", byCategory)
	}
}

func TestResponseTimes(t *testing.T) {
	s := New()
	if s.MinResponseTime() != 0 || s.AvgResponseTime() != 0 {
		t.Error("Expected zero response times before any request")
	}

	s.RecordResponseTime(10*time.Millisecond, "/api/translate")
	s.RecordResponseTime(30*time.Millisecond, "/api/health")

	if s.MinResponseTime() != 10*time.Millisecond {
		t.Errorf("Expected min 10ms, got %v", s.MinResponseTime())
	}
	if s.MaxResponseTime() != 30*time.Millisecond {
		t.Errorf("Expected max 30ms, got %v", s.MaxResponseTime())
	}
	if s.AvgResponseTime() != 20*time.Millisecond {
		t.Errorf("Expected avg 20ms, got %v", s.AvgResponseTime())
	}
	if s.AvgTranslateResponseTime() != 10*time.Millisecond {
		t.Errorf("Expected translate avg 10ms, got %v", s.AvgTranslateResponseTime())
	}
}

func TestRecordStatusCode(t *testing.T) {
	s := New()
	for _, code := range []int{http.StatusOK, http.StatusCreated, http.StatusNotFound, http.StatusTooManyRequests, http.StatusInternalServerError, http.StatusFound} {
		s.RecordStatusCode(code)
	}
	if s.Status2xx.Load() != 2 || s.Status4xx.Load() != 2 || s.Status5xx.Load() != 1 {
		t.Errorf("Unexpected status counts: 2xx=%d 4xx=%d 5xx=%d", s.Status2xx.Load(), s.Status4xx.Load(), s.Status5xx.Load())
	}
}

func TestStorePersistsAcrossRestarts(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "stats", "stats.db")

	first := New()
	store, err := NewStore(dbPath, first)
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	first.RecordRequest("/api/translate")
	first.RecordCacheLookup("word", "hit")
	first.RecordResponseTime(5*time.Millisecond, "/api/translate")
	if err := store.Close(); err != nil {
		t.Fatalf("Failed to close store: %v", err)
	}

	second := New()
	store, err = NewStore(dbPath, second)
	if err != nil {
		t.Fatalf("Failed to reopen store: %v", err)
	}
	defer store.Close()
	if err := store.Load(); err != nil {
		t.Fatalf("Failed to load stats: %v", err)
	}

	if second.TranslateRequests.Load() != 1 || second.TotalRequests.Load() != 1 {
		t.Errorf("Expected request counters to survive a restart, got %d/%d", second.TranslateRequests.Load(), second.TotalRequests.Load())
	}
	if second.CacheLookupsSnapshot()["word"]["hit"] != 1 {
		t.Errorf("Expected per-category lookups to survive a restart, got %v", second.CacheLookupsSnapshot())
	}
	if second.MinResponseTime() != 5*time.Millisecond {
		t.Errorf("Expected min response time to survive, got %v", second.MinResponseTime())
	}
	if !second.StartTime.Equal(first.StartTime) {
		t.Errorf("Expected first start time %v to be kept, got %v", first.StartTime, second.StartTime)
	}
}

func TestStoreLoadEmpty(t *testing.T) {
	s := New()
	start := s.StartTime
	store, err := NewStore(filepath.Join(t.TempDir(), "stats.db"), s)
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	defer store.Close()

	if err := store.Load(); err != nil {
		t.Fatalf("Unexpected error loading empty store: %v", err)
	}
	if !s.StartTime.Equal(start) || s.TotalRequests.Load() != 0 {
		t.Error("Expected loading an empty store to leave stats untouched")
	}
}
