package cache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Lookup outcomes recorded by Get
const (
	resultHit     = "hit"
	resultMiss    = "miss"
	resultExpired = "expired"
	resultCorrupt = "corrupt"
)

var (
	// cacheLookups counts Get calls.
	// Labels:
	//   - category: lyrics, translation, word, catalog
	//   - result: hit, miss, expired, corrupt
	cacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lyrics_cache_lookups_total",
			Help: "Total number of cache lookups by category and outcome",
		},
		[]string{"category", "result"},
	)

	cacheWrites = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lyrics_cache_writes_total",
			Help: "Total number of cache writes by category and outcome",
		},
		[]string{"category", "outcome"},
	)
)
