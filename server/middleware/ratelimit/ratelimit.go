// Package ratelimit provides an HTTP middleware that sheds requests
// beyond a configured rate with 429 (too many requests).  A camera is a
// serial resource; concurrent grabs would only queue up behind the
// device's exclusive open.
package ratelimit

import (
	"net/http"

	"golang.org/x/time/rate"
)

// New returns a middleware allowing a sustained r requests per second
// with the given burst.
func New(r float64, burst int) func(http.Handler) http.Handler {
	lim := rate.NewLimiter(rate.Limit(r), burst)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			if !lim.Allow() {
				http.Error(w, "rate limit exceeded", http.StatusTooManyRequests)
				return
			}
			next.ServeHTTP(w, req)
		})
	}
}
