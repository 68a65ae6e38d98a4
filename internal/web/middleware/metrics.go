package middleware

import (
	"net/http"
	"time"

	"github.com/JonMunkholm/gridform/internal/metrics"
)

// Metrics records request counts and latency by chi route pattern.
func Metrics(m *metrics.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := &responseWriter{ResponseWriter: w, status: http.StatusOK}

			next.ServeHTTP(ww, r)

			// The pattern is only complete after routing has finished.
			m.ObserveRequest(r.Method, routePattern(r), ww.status, time.Since(start))
		})
	}
}
