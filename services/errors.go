// Package services holds what the upstream clients share.
package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// UpstreamError is returned by every upstream client when a call fails.
type UpstreamError struct {
	Service    string
	Op         string
	StatusCode int // zero when no response was received
	Err        error
}

func (e *UpstreamError) Error() string {
	msg := e.Service + ": " + e.Op
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(" (status %d)", e.StatusCode)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}

// NewUpstreamError creates a new UpstreamError
func NewUpstreamError(service, op string, statusCode int, err error) *UpstreamError {
	return &UpstreamError{
		Service:    service,
		Op:         op,
		StatusCode: statusCode,
		Err:        err,
	}
}

// IsTransient reports whether err says the upstream itself is unhealthy:
// transport failures, timeouts, throttling and 5xx responses. Client errors
// such as 404 or 400 are answers, not outages, and are not transient.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	var ue *UpstreamError
	if errors.As(err, &ue) {
		if ue.StatusCode == 0 {
			return true
		}
		return ue.StatusCode == http.StatusTooManyRequests || ue.StatusCode >= 500
	}
	return true
}
