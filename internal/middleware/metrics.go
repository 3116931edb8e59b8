package middleware

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
)

// RequestObserver is the part of metrics.Metrics the middleware needs.
type RequestObserver interface {
	ObserveRequest(route, method string, status int, d time.Duration)
}

// Metrics records a count and a latency sample per request, labelled with
// the matched chi route pattern. Unmatched requests are labelled "unmatched".
func Metrics(obs RequestObserver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			wrapped := wrap(w)

			next.ServeHTTP(wrapped, r)

			obs.ObserveRequest(routePattern(r), r.Method, wrapped.statusCode, time.Since(start))
		})
	}
}

// routePattern is only complete after routing, so call it after next has run.
func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if p := rctx.RoutePattern(); p != "" {
			return p
		}
	}
	return "unmatched"
}
