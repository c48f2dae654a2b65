package httputil

import (
	"mime"
	"net/http"
	"strconv"
	"time"

	"github.com/cofabri/site-backend/internal/pkg/metrics"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// MetricsMiddleware records latency per route and counts responses by
// representation, so widget, feed and script traffic can be told apart from
// JSON API calls. Must be the outermost middleware.
func MetricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		// Route pattern, not path, to bound label cardinality.
		route := chi.RouteContext(r.Context()).RoutePattern()
		if route == "" {
			route = "unknown"
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		code := strconv.Itoa(status)

		metrics.HTTPRequestDuration.WithLabelValues(r.Method, route, code).Observe(time.Since(start).Seconds())
		metrics.HTTPResponsesTotal.WithLabelValues(route, code, representation(ww.Header().Get("Content-Type"))).Inc()
	})
}

// representation buckets a Content-Type header into a small fixed set.
func representation(contentType string) string {
	if contentType == "" {
		return "none"
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return "other"
	}
	switch mediaType {
	case "application/json":
		return "json"
	case "text/html":
		return "html"
	case "application/rss+xml":
		return "rss"
	case "application/javascript", "text/javascript":
		return "script"
	case "text/plain":
		return "text"
	case "application/yaml", "application/x-yaml":
		return "yaml"
	default:
		return "other"
	}
}
