package server

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/devpulse/devpulse/internal/observability"
)

// metricsMiddleware records RED metrics per route pattern. The pattern
// is resolved after the handler runs so parameterized routes collapse
// into one series.
func (s *Server) metricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		done := s.red.TrackInflight(r.Context(), "http")
		defer done()

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()

		next.ServeHTTP(ww, r)

		op := chi.RouteContext(r.Context()).RoutePattern()
		if op == "" {
			op = r.URL.Path
		}

		status := observability.StatusOK
		if ww.Status() >= http.StatusInternalServerError {
			status = observability.StatusError
		}

		s.red.RecordRequest(r.Context(), op, status, time.Since(start))
	})
}
