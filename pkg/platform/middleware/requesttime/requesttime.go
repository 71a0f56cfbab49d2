// Package requesttime provides middleware for request-scoped time. All
// operations within a single HTTP request use the same "now" timestamp,
// ensuring consistent expiry checks and audit timestamps across one atomic
// step.
package requesttime

import (
	"net/http"
	"time"

	"github.com/millisami/flow-name-service/pkg/requestcontext"
)

// Middleware captures the current time at the start of the request and
// stores it in the context for the rest of the request.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		now := time.Now()
		ctx := requestcontext.WithTime(r.Context(), now)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
