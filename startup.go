package main

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"lyrics-translator-go/cache"
	"lyrics-translator-go/circuitbreaker"
	"lyrics-translator-go/config"
	"lyrics-translator-go/logcolors"
	"lyrics-translator-go/middleware"
	"lyrics-translator-go/songs"
	"lyrics-translator-go/stats"

	log "github.com/sirupsen/logrus"
)

// server holds everything the HTTP handlers need.
type server struct {
	conf     config.Config
	store    *cache.Store
	songs    *songs.Service
	stats    *stats.Stats
	limiter  *middleware.IPRateLimiter
	breakers []*circuitbreaker.CircuitBreaker
}

// upstreamBreakers guard the lyrics catalog, the music catalog and the translator.
type upstreamBreakers struct {
	genius     *circuitbreaker.CircuitBreaker
	spotify    *circuitbreaker.CircuitBreaker
	translator *circuitbreaker.CircuitBreaker
}

func newUpstreamBreakers(conf config.Config) upstreamBreakers {
	newBreaker := func(name string) *circuitbreaker.CircuitBreaker {
		return circuitbreaker.New(circuitbreaker.Config{
			Name:      name,
			Threshold: conf.Configuration.CircuitBreakerThreshold,
			Cooldown:  time.Duration(conf.Configuration.CircuitBreakerCooldownSecs) * time.Second,
		})
	}
	return upstreamBreakers{
		genius:     newBreaker("genius"),
		spotify:    newBreaker("spotify"),
		translator: newBreaker("openai"),
	}
}

func (b upstreamBreakers) all() []*circuitbreaker.CircuitBreaker {
	return []*circuitbreaker.CircuitBreaker{b.genius, b.spotify, b.translator}
}

// clientIP strips the port from the remote address so one client maps to one limiter.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// limitMiddleware applies the two-tier per-IP limit. Requests over the normal
// tier are still served, but only from cache.
func (srv *server) limitMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := clientIP(r)
		limiters := srv.limiter.GetLimiter(ip)

		// Try normal tier first
		if limiters.Normal.Allow() {
			srv.stats.RecordRateLimit("normal")
			w.Header().Set("X-RateLimit-Limit", fmt.Sprintf("%d", srv.limiter.GetNormalLimit()))
			w.Header().Set("X-RateLimit-Remaining", fmt.Sprintf("%d", limiters.GetNormalTokens()))
			w.Header().Set("X-RateLimit-Type", "normal")
			ctx := context.WithValue(r.Context(), rateLimitTypeKey, "normal")
			next.ServeHTTP(w, r.WithContext(ctx))
			return
		}

		// Normal tier exceeded, try cached tier
		if limiters.Cached.Allow() {
			srv.stats.RecordRateLimit("cached")
			w.Header().Set("X-RateLimit-Limit", fmt.Sprintf("%d", srv.limiter.GetCachedLimit()))
			w.Header().Set("X-RateLimit-Remaining", fmt.Sprintf("%d", limiters.GetCachedTokens()))
			w.Header().Set("X-RateLimit-Type", "cached")
			log.Debugf("%s IP %s exceeded normal tier, using cached tier", logcolors.LogRateLimit, ip)
			ctx := songs.WithCacheOnly(r.Context())
			ctx = context.WithValue(ctx, rateLimitTypeKey, "cached")
			next.ServeHTTP(w, r.WithContext(ctx))
			return
		}

		// Both tiers exceeded
		srv.stats.RecordRateLimit("exceeded")
		log.Warnf("%s IP %s exceeded both rate limit tiers", logcolors.LogRateLimit, ip)
		w.Header().Set("X-RateLimit-Limit", fmt.Sprintf("%d", srv.limiter.GetCachedLimit()))
		w.Header().Set("X-RateLimit-Remaining", "0")
		w.Header().Set("X-RateLimit-Type", "exceeded")
		w.Header().Set("Retry-After", "1")
		http.Error(w, http.StatusText(http.StatusTooManyRequests), http.StatusTooManyRequests)
	})
}

// statsMiddleware counts every request by endpoint, status class and duration.
func (srv *server) statsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := middleware.NewResponseRecorder(w)
		next.ServeHTTP(rec, r)

		srv.stats.RecordRequest(r.URL.Path)
		srv.stats.RecordStatusCode(rec.StatusCode)
		srv.stats.RecordResponseTime(time.Since(start), r.URL.Path)
	})
}
