// Package middleware provides HTTP middleware for metrics collection and
// CORS handling.
package middleware

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/nadmax/profiledash/internal/metrics"
)

type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func Metrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &responseWriter{
			ResponseWriter: w,
			statusCode:     http.StatusOK,
		}

		next.ServeHTTP(wrapped, r)

		duration := time.Since(start)
		endpoint := normalizeEndpoint(r.URL.Path)
		status := strconv.Itoa(wrapped.statusCode)

		metrics.RecordHTTPRequest(r.Method, endpoint, status, duration)
	})
}

// CORS mirrors the permissive policy of the original serverless functions:
// any origin, with preflight handled here so handlers never see OPTIONS.
func CORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func normalizeEndpoint(path string) string {
	switch {
	case strings.HasPrefix(path, "/api/tasks/") && strings.HasSuffix(path, "/status"):
		return "/api/tasks/:id/status"
	case strings.HasPrefix(path, "/api/tasks/") && strings.HasSuffix(path, "/logs"):
		return "/api/tasks/:id/logs"
	case strings.HasPrefix(path, "/api/datasets/") && strings.Contains(strings.TrimPrefix(path, "/api/datasets/"), "/profiles/"):
		return "/api/datasets/:type/profiles/:id"
	case strings.HasPrefix(path, "/api/datasets/") && strings.HasSuffix(path, "/profiles"):
		return "/api/datasets/:type/profiles"
	case strings.HasPrefix(path, "/api/export/") && path != "/api/export/custom":
		return "/api/export/:type"
	default:
		return path
	}
}
