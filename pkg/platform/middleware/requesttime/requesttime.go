// Package requesttime pins one clock reading per request.
package requesttime

import (
	"net/http"
	"time"

	"estateclaims/pkg/requestcontext"
)

// Middleware stores the arrival time, in UTC and truncated to the
// microsecond precision of timestamptz, so values read back from Postgres
// equal the ones written.
func Middleware(next http.Handler) http.Handler {
	return WithClock(time.Now)(next)
}

// WithClock is Middleware with an injectable clock.
func WithClock(now func() time.Time) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			at := now().UTC().Truncate(time.Microsecond)
			next.ServeHTTP(w, r.WithContext(requestcontext.WithTime(r.Context(), at)))
		})
	}
}
