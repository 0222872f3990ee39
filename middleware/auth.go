package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"lyrics-translator-go/logcolors"

	log "github.com/sirupsen/logrus"
)

// AccessTokenMiddleware guards administrative routes with a shared token sent
// in the Authorization header, either bare or as "Bearer <token>". An empty
// token leaves the routes open.
func AccessTokenMiddleware(token string) func(http.Handler) http.Handler {
	if token == "" {
		log.Warnf("%s CACHE_ACCESS_TOKEN not set, cache admin routes are unauthenticated", logcolors.LogAuth)
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if token == "" {
				next.ServeHTTP(w, r)
				return
			}

			provided := strings.TrimSpace(strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer "))
			if provided == "" {
				log.Warnf("%s Missing access token from %s for %s", logcolors.LogAuth, r.RemoteAddr, r.URL.Path)
				writeUnauthorized(w, "Access token required")
				return
			}
			if subtle.ConstantTimeCompare([]byte(provided), []byte(token)) != 1 {
				log.Warnf("%s Invalid access token from %s for %s", logcolors.LogAuth, r.RemoteAddr, r.URL.Path)
				writeUnauthorized(w, "Invalid access token")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func writeUnauthorized(w http.ResponseWriter, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	w.Write([]byte(`{"error":"` + msg + `"}`))
}
