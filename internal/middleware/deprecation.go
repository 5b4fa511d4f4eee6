package middleware

import (
	"log/slog"
	"net/http"
	"time"
)

// Deprecation marks a route scheduled for removal with RFC 8594 headers.
// A zero sunset omits the Sunset header. Each hit is logged at debug level
// with the replacement so remaining callers can be found.
func Deprecation(sunset time.Time, replacement string) func(http.Handler) http.Handler {
	var sunsetStr string
	if !sunset.IsZero() {
		sunsetStr = sunset.UTC().Format(http.TimeFormat)
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Deprecation", "true")
			if sunsetStr != "" {
				w.Header().Set("Sunset", sunsetStr)
			}
			slog.Debug("deprecated route", "method", r.Method, "path", r.URL.Path, "use", replacement)
			next.ServeHTTP(w, r)
		})
	}
}
