package middleware

import (
	"context"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"lyrics-translator-go/logcolors"

	log "github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

// LimiterPair holds both normal and cached tier limiters for an IP
type LimiterPair struct {
	Normal *rate.Limiter
	Cached *rate.Limiter

	lastSeen atomic.Int64 // unix nanos
}

// GetNormalTokens returns the number of tokens available in the normal tier
func (lp *LimiterPair) GetNormalTokens() int {
	return int(math.Floor(lp.Normal.Tokens()))
}

// GetCachedTokens returns the number of tokens available in the cached tier
func (lp *LimiterPair) GetCachedTokens() int {
	return int(math.Floor(lp.Cached.Tokens()))
}

// IPRateLimiter hands out one limiter pair per client IP. Requests within the
// normal tier are served in full; requests over it but within the cached tier
// may only be answered from cache. Pairs idle for longer than the prune
// window are dropped.
type IPRateLimiter struct {
	ips         map[string]*LimiterPair
	mu          sync.RWMutex
	normalRate  rate.Limit
	normalBurst int
	cachedRate  rate.Limit
	cachedBurst int
	now         func() time.Time
}

// NewIPRateLimiter creates a new two-tier rate limiter
func NewIPRateLimiter(normalRate rate.Limit, normalBurst int, cachedRate rate.Limit, cachedBurst int) *IPRateLimiter {
	return &IPRateLimiter{
		ips:         make(map[string]*LimiterPair),
		normalRate:  normalRate,
		normalBurst: normalBurst,
		cachedRate:  cachedRate,
		cachedBurst: cachedBurst,
		now:         time.Now,
	}
}

// GetNormalLimit returns the normal tier burst limit
func (i *IPRateLimiter) GetNormalLimit() int {
	return i.normalBurst
}

// GetCachedLimit returns the cached tier burst limit
func (i *IPRateLimiter) GetCachedLimit() int {
	return i.cachedBurst
}

// AddIP installs a fresh limiter pair for ip, replacing any existing one.
func (i *IPRateLimiter) AddIP(ip string) *LimiterPair {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.addLocked(ip)
}

func (i *IPRateLimiter) addLocked(ip string) *LimiterPair {
	pair := &LimiterPair{
		Normal: rate.NewLimiter(i.normalRate, i.normalBurst),
		Cached: rate.NewLimiter(i.cachedRate, i.cachedBurst),
	}
	pair.lastSeen.Store(i.now().UnixNano())
	i.ips[ip] = pair
	return pair
}

// GetLimiter returns the limiter pair of ip, creating it on first use.
func (i *IPRateLimiter) GetLimiter(ip string) *LimiterPair {
	i.mu.RLock()
	pair, exists := i.ips[ip]
	i.mu.RUnlock()
	if exists {
		pair.lastSeen.Store(i.now().UnixNano())
		return pair
	}

	i.mu.Lock()
	defer i.mu.Unlock()
	if pair, exists := i.ips[ip]; exists {
		pair.lastSeen.Store(i.now().UnixNano())
		return pair
	}
	return i.addLocked(ip)
}

// Len returns the number of tracked IPs.
func (i *IPRateLimiter) Len() int {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return len(i.ips)
}

// Prune drops the pairs not used within maxIdle and returns how many were removed.
func (i *IPRateLimiter) Prune(maxIdle time.Duration) int {
	cutoff := i.now().Add(-maxIdle).UnixNano()

	i.mu.Lock()
	defer i.mu.Unlock()
	removed := 0
	for ip, pair := range i.ips {
		if pair.lastSeen.Load() < cutoff {
			delete(i.ips, ip)
			removed++
		}
	}
	return removed
}

// StartCleanup prunes idle pairs every interval until ctx is done.
func (i *IPRateLimiter) StartCleanup(ctx context.Context, interval, maxIdle time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if n := i.Prune(maxIdle); n > 0 {
					log.Debugf("%s Pruned %d idle clients, %d tracked", logcolors.LogRateLimit, n, i.Len())
				}
			case <-ctx.Done():
				return
			}
		}
	}()
}
