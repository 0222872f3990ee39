package stats

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"lyrics-translator-go/logcolors"

	"github.com/goccy/go-json"
	log "github.com/sirupsen/logrus"
	bolt "go.etcd.io/bbolt"
)

const (
	statsBucketName = "stats"
	statsKey        = "server_stats"
)

// Store handles persistent storage for stats
type Store struct {
	db       *bolt.DB
	dbPath   string
	stats    *Stats
	mu       sync.Mutex
	stopChan chan struct{}
	wg       sync.WaitGroup
	stopOnce sync.Once
}

// PersistedStats represents the stats data that gets persisted to disk
type PersistedStats struct {
	// Cumulative counters (these accumulate across restarts)
	TotalRequests     int64 `json:"total_requests"`
	TranslateRequests int64 `json:"translate_requests"`
	WordRequests      int64 `json:"word_requests"`
	CatalogRequests   int64 `json:"catalog_requests"`
	CacheRequests     int64 `json:"cache_requests"`
	StatsRequests     int64 `json:"stats_requests"`
	HealthRequests    int64 `json:"health_requests"`
	OtherRequests     int64 `json:"other_requests"`
	CacheHits         int64 `json:"cache_hits"`
	CacheMisses       int64 `json:"cache_misses"`
	CacheExpired      int64 `json:"cache_expired"`
	CacheCorrupt      int64 `json:"cache_corrupt"`
	RateLimitNormal   int64 `json:"rate_limit_normal"`
	RateLimitCached   int64 `json:"rate_limit_cached"`
	RateLimitExceeded int64 `json:"rate_limit_exceeded"`
	Status2xx         int64 `json:"status_2xx"`
	Status4xx         int64 `json:"status_4xx"`
	Status5xx         int64 `json:"status_5xx"`

	// Response time tracking
	TotalResponseTime      int64 `json:"total_response_time"`
	ResponseCount          int64 `json:"response_count"`
	MinResponseTime        int64 `json:"min_response_time"`
	MaxResponseTime        int64 `json:"max_response_time"`
	TranslateResponseTime  int64 `json:"translate_response_time"`
	TranslateResponseCount int64 `json:"translate_response_count"`

	CacheLookups map[string]map[string]int64 `json:"cache_lookups"`

	// Metadata
	LastSaved    time.Time `json:"last_saved"`
	FirstStarted time.Time `json:"first_started"`
}

// NewStore creates a new stats store with a dedicated BoltDB file
func NewStore(dbPath string, stats *Stats) (*Store, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create stats directory: %w", err)
	}

	db, err := bolt.Open(dbPath, 0600, &bolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open stats database: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(statsBucketName))
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create stats bucket: %w", err)
	}

	store := &Store{
		db:       db,
		dbPath:   dbPath,
		stats:    stats,
		stopChan: make(chan struct{}),
	}

	log.Infof("%s Stats store initialized at %s", logcolors.LogStats, dbPath)
	return store, nil
}

// Load reads persisted stats from disk and applies them to the live counters
func (s *Store) Load() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var persisted PersistedStats
	found := false
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(statsBucketName))
		if b == nil {
			return nil
		}
		data := b.Get([]byte(statsKey))
		if data == nil {
			return nil // No persisted stats yet
		}
		found = true
		return json.Unmarshal(data, &persisted)
	})
	if err != nil {
		return fmt.Errorf("failed to load stats: %w", err)
	}
	if !found {
		return nil
	}

	st := s.stats
	st.TotalRequests.Store(persisted.TotalRequests)
	st.TranslateRequests.Store(persisted.TranslateRequests)
	st.WordRequests.Store(persisted.WordRequests)
	st.CatalogRequests.Store(persisted.CatalogRequests)
	st.CacheRequests.Store(persisted.CacheRequests)
	st.StatsRequests.Store(persisted.StatsRequests)
	st.HealthRequests.Store(persisted.HealthRequests)
	st.OtherRequests.Store(persisted.OtherRequests)
	st.CacheHits.Store(persisted.CacheHits)
	st.CacheMisses.Store(persisted.CacheMisses)
	st.CacheExpired.Store(persisted.CacheExpired)
	st.CacheCorrupt.Store(persisted.CacheCorrupt)
	st.RateLimitNormal.Store(persisted.RateLimitNormal)
	st.RateLimitCached.Store(persisted.RateLimitCached)
	st.RateLimitExceeded.Store(persisted.RateLimitExceeded)
	st.Status2xx.Store(persisted.Status2xx)
	st.Status4xx.Store(persisted.Status4xx)
	st.Status5xx.Store(persisted.Status5xx)
	st.totalResponseTime.Store(persisted.TotalResponseTime)
	st.responseCount.Store(persisted.ResponseCount)
	st.translateResponseTime.Store(persisted.TranslateResponseTime)
	st.translateResponseCount.Store(persisted.TranslateResponseCount)

	// Only update min/max if we have valid persisted values
	if persisted.MinResponseTime > 0 && persisted.MinResponseTime < maxInt64 {
		st.minResponseTime.Store(persisted.MinResponseTime)
	}
	if persisted.MaxResponseTime > 0 {
		st.maxResponseTime.Store(persisted.MaxResponseTime)
	}

	for category, results := range persisted.CacheLookups {
		for result, count := range results {
			st.lookupCounter(category + ":" + result).Store(count)
		}
	}

	// Preserve the original first start time if available
	if !persisted.FirstStarted.IsZero() {
		st.StartTime = persisted.FirstStarted
	}

	log.Infof("%s Loaded persisted stats (total requests: %d, first started: %s)",
		logcolors.LogStats, persisted.TotalRequests, persisted.FirstStarted.Format(time.RFC3339))
	return nil
}

// Save persists current stats to disk
func (s *Store) Save() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := s.stats
	persisted := PersistedStats{
		TotalRequests:          st.TotalRequests.Load(),
		TranslateRequests:      st.TranslateRequests.Load(),
		WordRequests:           st.WordRequests.Load(),
		CatalogRequests:        st.CatalogRequests.Load(),
		CacheRequests:          st.CacheRequests.Load(),
		StatsRequests:          st.StatsRequests.Load(),
		HealthRequests:         st.HealthRequests.Load(),
		OtherRequests:          st.OtherRequests.Load(),
		CacheHits:              st.CacheHits.Load(),
		CacheMisses:            st.CacheMisses.Load(),
		CacheExpired:           st.CacheExpired.Load(),
		CacheCorrupt:           st.CacheCorrupt.Load(),
		RateLimitNormal:        st.RateLimitNormal.Load(),
		RateLimitCached:        st.RateLimitCached.Load(),
		RateLimitExceeded:      st.RateLimitExceeded.Load(),
		Status2xx:              st.Status2xx.Load(),
		Status4xx:              st.Status4xx.Load(),
		Status5xx:              st.Status5xx.Load(),
		TotalResponseTime:      st.totalResponseTime.Load(),
		ResponseCount:          st.responseCount.Load(),
		MinResponseTime:        st.minResponseTime.Load(),
		MaxResponseTime:        st.maxResponseTime.Load(),
		TranslateResponseTime:  st.translateResponseTime.Load(),
		TranslateResponseCount: st.translateResponseCount.Load(),
		CacheLookups:           st.CacheLookupsSnapshot(),
		LastSaved:              time.Now(),
		FirstStarted:           st.StartTime,
	}

	data, err := json.Marshal(persisted)
	if err != nil {
		return fmt.Errorf("failed to marshal stats: %w", err)
	}

	err = s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(statsBucketName))
		if b == nil {
			return fmt.Errorf("stats bucket not found")
		}
		return b.Put([]byte(statsKey), data)
	})
	if err != nil {
		return fmt.Errorf("failed to save stats: %w", err)
	}
	return nil
}

// StartAutoSave begins periodic saving of stats
func (s *Store) StartAutoSave(interval time.Duration) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				if err := s.Save(); err != nil {
					log.Warnf("%s Failed to auto-save stats: %v", logcolors.LogStats, err)
				}
			case <-s.stopChan:
				return
			}
		}
	}()
	log.Infof("%s Started auto-save with interval %v", logcolors.LogStats, interval)
}

// Close saves stats and closes the database
func (s *Store) Close() error {
	s.stopOnce.Do(func() { close(s.stopChan) })
	s.wg.Wait()

	if err := s.Save(); err != nil {
		log.Warnf("%s Failed to save stats on close: %v", logcolors.LogStats, err)
	} else {
		log.Infof("%s Stats saved on shutdown", logcolors.LogStats)
	}

	return s.db.Close()
}
