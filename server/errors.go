package server

import (
	"net/http"

	"github.com/teranos/phylo/errors"
	"github.com/teranos/phylo/storage"
)

// Sentinel errors for common cases.
// Use these with errors.Is() for type-safe error checking.
var (
	// ErrNotFound indicates the requested resource does not exist
	ErrNotFound = errors.ErrNotFound

	// ErrInvalidRequest indicates the request was malformed or invalid
	ErrInvalidRequest = errors.ErrInvalidRequest

	// ErrRateLimited indicates the client exceeded its request budget
	ErrRateLimited = errors.New("rate limit exceeded")
)

// statusFor maps an error to the HTTP status it should produce.
// Tree-construction failures (phylogeny.ErrNoRoot) fall through to 500.
func statusFor(err error) int {
	switch {
	case errors.IsNotFoundError(err):
		return http.StatusNotFound
	case errors.IsInvalidRequestError(err), errors.Is(err, storage.ErrInvalidConcept):
		return http.StatusBadRequest
	case errors.Is(err, ErrRateLimited):
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// handleError logs server-side failures and writes the error response.
func (s *Server) handleError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.requestLogger(r).Errorw("Request failed",
			"error", err,
			"status", status,
		)
	}
	writeError(w, status, err.Error())
}
