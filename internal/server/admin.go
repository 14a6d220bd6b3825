package server

import (
	"crypto/subtle"
	"net/http"
)

// apiKeyHeader carries the shared secret for admin endpoints.
const apiKeyHeader = "X-API-Key"

// requireAPIKey guards admin routes behind the configured shared key.
// An unconfigured key disables the endpoints entirely.
func (s *Server) requireAPIKey(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.cfg.AdminAPIKey == "" {
			respondError(w, http.StatusServiceUnavailable, "endpoint not configured")

			return
		}

		provided := r.Header.Get(apiKeyHeader)
		if provided == "" {
			provided = r.URL.Query().Get("api_key")
		}

		if subtle.ConstantTimeCompare([]byte(provided), []byte(s.cfg.AdminAPIKey)) != 1 {
			respondError(w, http.StatusUnauthorized, "unauthorized")

			return
		}

		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleAdminFetch(w http.ResponseWriter, r *http.Request) {
	if s.fetch == nil {
		respondError(w, http.StatusServiceUnavailable, "fetch runner not configured")

		return
	}

	startedAt := s.now()
	results := s.fetch(r.Context())
	completedAt := s.now()

	success := true
	for i := range results {
		if !results[i].Success {
			success = false

			break
		}
	}

	code := http.StatusOK
	if !success {
		code = http.StatusInternalServerError
	}

	respondJSON(w, code, map[string]any{
		"success":      success,
		"started_at":   startedAt,
		"completed_at": completedAt,
		"results":      results,
	})
}
