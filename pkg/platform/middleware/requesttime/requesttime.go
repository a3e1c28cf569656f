// Package requesttime pins one "now" per HTTP request so every timestamp a
// request writes (turn completion, selection time, audit events) agrees.
package requesttime

import (
	"net/http"
	"time"

	"stablehand/pkg/requestcontext"
)

// Middleware captures the current time at the start of the request.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := requestcontext.WithTime(r.Context(), time.Now().UTC())
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
