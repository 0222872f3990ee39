package stats

import (
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

const maxInt64 = int64(^uint64(0) >> 1)

// Stats holds all server statistics with atomic counters
type Stats struct {
	// Server info
	StartTime time.Time

	// Request counters
	TotalRequests     atomic.Int64
	TranslateRequests atomic.Int64
	WordRequests      atomic.Int64
	CatalogRequests   atomic.Int64
	CacheRequests     atomic.Int64
	StatsRequests     atomic.Int64
	HealthRequests    atomic.Int64
	OtherRequests     atomic.Int64

	// Cache performance, summed over categories
	CacheHits    atomic.Int64
	CacheMisses  atomic.Int64
	CacheExpired atomic.Int64
	CacheCorrupt atomic.Int64

	// Rate limiting
	RateLimitNormal   atomic.Int64 // Requests served under normal rate limit
	RateLimitCached   atomic.Int64 // Requests served under cached-only tier
	RateLimitExceeded atomic.Int64 // Requests rejected (429)

	// Response status codes
	Status2xx atomic.Int64
	Status4xx atomic.Int64
	Status5xx atomic.Int64

	// Response time tracking (in microseconds for precision)
	totalResponseTime atomic.Int64
	responseCount     atomic.Int64
	minResponseTime   atomic.Int64
	maxResponseTime   atomic.Int64

	translateResponseTime  atomic.Int64
	translateResponseCount atomic.Int64

	// "category:result" -> *atomic.Int64
	cacheLookups sync.Map
}

// New returns an empty Stats starting now.
func New() *Stats {
	s := &Stats{StartTime: time.Now()}
	s.minResponseTime.Store(maxInt64)
	return s
}

// RecordRequest records a request to a specific endpoint
func (s *Stats) RecordRequest(endpoint string) {
	s.TotalRequests.Add(1)
	switch {
	case endpoint == "/api/translate":
		s.TranslateRequests.Add(1)
	case endpoint == "/api/translate-word":
		s.WordRequests.Add(1)
	case endpoint == "/api/search-artists", endpoint == "/api/artist-albums", endpoint == "/api/album-songs":
		s.CatalogRequests.Add(1)
	case strings.HasPrefix(endpoint, "/api/cache"):
		s.CacheRequests.Add(1)
	case endpoint == "/api/stats":
		s.StatsRequests.Add(1)
	case endpoint == "/api/health":
		s.HealthRequests.Add(1)
	default:
		s.OtherRequests.Add(1)
	}
}

// RecordCacheLookup records the outcome of one cache read. It matches the
// cache store's observer signature once the category is rendered as a string.
func (s *Stats) RecordCacheLookup(category, result string) {
	switch result {
	case "hit":
		s.CacheHits.Add(1)
	case "miss":
		s.CacheMisses.Add(1)
	case "expired":
		s.CacheExpired.Add(1)
	case "corrupt":
		s.CacheCorrupt.Add(1)
	}
	s.lookupCounter(category + ":" + result).Add(1)
}

func (s *Stats) lookupCounter(key string) *atomic.Int64 {
	if c, ok := s.cacheLookups.Load(key); ok {
		return c.(*atomic.Int64)
	}
	c, _ := s.cacheLookups.LoadOrStore(key, &atomic.Int64{})
	return c.(*atomic.Int64)
}

// CacheLookupsSnapshot returns lookup counts keyed by category, then result.
func (s *Stats) CacheLookupsSnapshot() map[string]map[string]int64 {
	out := make(map[string]map[string]int64)
	s.cacheLookups.Range(func(k, v any) bool {
		category, result, _ := strings.Cut(k.(string), ":")
		if out[category] == nil {
			out[category] = make(map[string]int64)
		}
		out[category][result] = v.(*atomic.Int64).Load()
		return true
	})
	return out
}

// RecordRateLimit records rate limit tier usage
func (s *Stats) RecordRateLimit(tier string) {
	switch tier {
	case "normal":
		s.RateLimitNormal.Add(1)
	case "cached":
		s.RateLimitCached.Add(1)
	case "exceeded":
		s.RateLimitExceeded.Add(1)
	}
}

// RecordStatusCode records a response status code
func (s *Stats) RecordStatusCode(code int) {
	switch {
	case code >= 200 && code < 300:
		s.Status2xx.Add(1)
	case code >= 400 && code < 500:
		s.Status4xx.Add(1)
	case code >= 500:
		s.Status5xx.Add(1)
	}
}

// RecordResponseTime records a response time
func (s *Stats) RecordResponseTime(duration time.Duration, endpoint string) {
	us := duration.Microseconds()

	s.totalResponseTime.Add(us)
	s.responseCount.Add(1)

	for {
		current := s.minResponseTime.Load()
		if us >= current || s.minResponseTime.CompareAndSwap(current, us) {
			break
		}
	}
	for {
		current := s.maxResponseTime.Load()
		if us <= current || s.maxResponseTime.CompareAndSwap(current, us) {
			break
		}
	}

	if endpoint == "/api/translate" {
		s.translateResponseTime.Add(us)
		s.translateResponseCount.Add(1)
	}
}

// Uptime returns the server uptime
func (s *Stats) Uptime() time.Duration {
	return time.Since(s.StartTime)
}

// CacheHitRate returns the cache hit rate as a percentage. Expired and corrupt
// entries count as misses.
func (s *Stats) CacheHitRate() float64 {
	hits := s.CacheHits.Load()
	total := hits + s.CacheMisses.Load() + s.CacheExpired.Load() + s.CacheCorrupt.Load()
	if total == 0 {
		return 0
	}
	return float64(hits) / float64(total) * 100
}

// AvgResponseTime returns the average response time
func (s *Stats) AvgResponseTime() time.Duration {
	count := s.responseCount.Load()
	if count == 0 {
		return 0
	}
	return time.Duration(s.totalResponseTime.Load()/count) * time.Microsecond
}

// MinResponseTime returns the minimum response time
func (s *Stats) MinResponseTime() time.Duration {
	min := s.minResponseTime.Load()
	if min == maxInt64 {
		return 0
	}
	return time.Duration(min) * time.Microsecond
}

// MaxResponseTime returns the maximum response time
func (s *Stats) MaxResponseTime() time.Duration {
	return time.Duration(s.maxResponseTime.Load()) * time.Microsecond
}

// AvgTranslateResponseTime returns the average response time of translate requests
func (s *Stats) AvgTranslateResponseTime() time.Duration {
	count := s.translateResponseCount.Load()
	if count == 0 {
		return 0
	}
	return time.Duration(s.translateResponseTime.Load()/count) * time.Microsecond
}

// Snapshot returns a point-in-time snapshot of all stats
func (s *Stats) Snapshot() map[string]interface{} {
	uptime := s.Uptime()

	byCategory := s.CacheLookupsSnapshot()
	categories := make([]string, 0, len(byCategory))
	for c := range byCategory {
		categories = append(categories, c)
	}
	sort.Strings(categories)

	return map[string]interface{}{
		"server": map[string]interface{}{
			"start_time":     s.StartTime.Format(time.RFC3339),
			"uptime":         uptime.String(),
			"uptime_seconds": int64(uptime.Seconds()),
		},
		"requests": map[string]interface{}{
			"total":     s.TotalRequests.Load(),
			"translate": s.TranslateRequests.Load(),
			"word":      s.WordRequests.Load(),
			"catalog":   s.CatalogRequests.Load(),
			"cache":     s.CacheRequests.Load(),
			"stats":     s.StatsRequests.Load(),
			"health":    s.HealthRequests.Load(),
			"other":     s.OtherRequests.Load(),
		},
		"cache": map[string]interface{}{
			"hits":        s.CacheHits.Load(),
			"misses":      s.CacheMisses.Load(),
			"expired":     s.CacheExpired.Load(),
			"corrupt":     s.CacheCorrupt.Load(),
			"hit_rate":    s.CacheHitRate(),
			"categories":  categories,
			"by_category": byCategory,
		},
		"rate_limiting": map[string]interface{}{
			"normal_tier": s.RateLimitNormal.Load(),
			"cached_tier": s.RateLimitCached.Load(),
			"exceeded":    s.RateLimitExceeded.Load(),
		},
		"responses": map[string]interface{}{
			"2xx": s.Status2xx.Load(),
			"4xx": s.Status4xx.Load(),
			"5xx": s.Status5xx.Load(),
		},
		"response_times": map[string]interface{}{
			"avg":           s.AvgResponseTime().String(),
			"min":           s.MinResponseTime().String(),
			"max":           s.MaxResponseTime().String(),
			"avg_translate": s.AvgTranslateResponseTime().String(),
		},
	}
}
