package main

import (
	"net/http"

	"lyrics-translator-go/middleware"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// setupRoutes configures all HTTP routes for the API
func (srv *server) setupRoutes(router *mux.Router) {
	api := router.PathPrefix("/api").Subrouter()

	// Translation
	api.HandleFunc("/translate", srv.translateSong).Methods(http.MethodPost)
	api.HandleFunc("/translate-word", srv.translateWord).Methods(http.MethodPost)

	// Artist and album browsing
	api.HandleFunc("/search-artists", srv.searchArtists).Methods(http.MethodGet)
	api.HandleFunc("/artist-albums", srv.artistAlbums).Methods(http.MethodGet)
	api.HandleFunc("/album-songs", srv.albumSongs).Methods(http.MethodGet)

	// Cache management endpoints
	cacheAdmin := api.PathPrefix("/cache").Subrouter()
	cacheAdmin.Use(middleware.AccessTokenMiddleware(srv.conf.Configuration.CacheAccessToken))
	cacheAdmin.HandleFunc("/stats", srv.cacheStats).Methods(http.MethodGet)
	cacheAdmin.HandleFunc("/clear", srv.clearCache).Methods(http.MethodPost)
	cacheAdmin.HandleFunc("/backup", srv.backupCache).Methods(http.MethodPost)
	cacheAdmin.HandleFunc("/backups", srv.listBackups).Methods(http.MethodGet)

	// Health and stats endpoints
	api.HandleFunc("/health", srv.getHealthStatus).Methods(http.MethodGet)
	api.HandleFunc("/stats", srv.getStats).Methods(http.MethodGet)
	router.Handle("/metrics", promhttp.Handler())

	router.HandleFunc("/", helpHandler)
}

// handler chains the router with the request middleware.
func (srv *server) handler() http.Handler {
	router := mux.NewRouter()
	srv.setupRoutes(router)

	var h http.Handler = router
	h = srv.statsMiddleware(h)
	h = middleware.LoggingMiddleware(h)
	h = corsHandler().Handler(h)
	h = srv.limitMiddleware(h)
	return middleware.RequestID(h)
}
