// Package httputil holds small HTTP middleware shared by the server's mux:
// request logging and response-status capture, in the style main.go's
// teacher wires its own otelhttp/logging middleware chain.
package httputil

import (
	"net/http"
	"time"

	"github.com/sap/ord-directory-server/internal/logging"
)

// statusRecorder captures the status code a handler wrote, defaulting to 200
// when WriteHeader is never called explicitly.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// LoggingMiddleware logs method, path, status, and duration for every
// request at Info level.
func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rec, r)

		logger := logging.FromContext(r.Context())
		logger.InfoContext(r.Context(), "request handled",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration", time.Since(start))
	})
}
