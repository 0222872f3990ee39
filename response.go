package main

import (
	"net/http"

	"github.com/goccy/go-json"
)

// APIResponse handles consistent header setting and JSON responses.
// It centralizes X-Cache-Status and X-RateLimit-Type handling.
type APIResponse struct {
	w           http.ResponseWriter
	r           *http.Request
	cacheStatus string
}

// Respond creates a response helper from request context
func Respond(w http.ResponseWriter, r *http.Request) *APIResponse {
	return &APIResponse{w: w, r: r}
}

// SetCacheStatus sets the X-Cache-Status header value
func (a *APIResponse) SetCacheStatus(status string) *APIResponse {
	a.cacheStatus = status
	return a
}

// SetCached sets X-Cache-Status to HIT or MISS
func (a *APIResponse) SetCached(cached bool) *APIResponse {
	if cached {
		return a.SetCacheStatus("HIT")
	}
	return a.SetCacheStatus("MISS")
}

func (a *APIResponse) writeHeaders() {
	a.w.Header().Set("Content-Type", "application/json")

	if a.cacheStatus != "" {
		a.w.Header().Set("X-Cache-Status", a.cacheStatus)
	}

	// Rate limit type from context
	if rateLimitType, ok := a.r.Context().Value(rateLimitTypeKey).(string); ok && rateLimitType != "" {
		a.w.Header().Set("X-RateLimit-Type", rateLimitType)
	}
}

// JSON writes headers and encodes data as JSON (200 OK)
func (a *APIResponse) JSON(data interface{}) error {
	a.writeHeaders()
	return json.NewEncoder(a.w).Encode(data)
}

// Error writes headers, sets status code, and encodes error response
func (a *APIResponse) Error(statusCode int, data interface{}) error {
	a.writeHeaders()
	a.w.WriteHeader(statusCode)
	return json.NewEncoder(a.w).Encode(data)
}

// ErrorMessage writes {"error": message} with the given status code
func (a *APIResponse) ErrorMessage(statusCode int, message string) error {
	return a.Error(statusCode, map[string]string{"error": message})
}
