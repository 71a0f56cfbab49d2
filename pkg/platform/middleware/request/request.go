// Package request assigns a request ID to every incoming request so logs
// and audit events can be correlated.
package request

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/millisami/flow-name-service/pkg/requestcontext"
)

const headerRequestID = "X-Request-ID"

// Middleware reuses the caller-supplied X-Request-ID when present,
// otherwise generates one, and echoes it back on the response.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get(headerRequestID)
		if requestID == "" {
			requestID = uuid.NewString()
		}
		w.Header().Set(headerRequestID, requestID)
		ctx := requestcontext.WithRequestID(r.Context(), requestID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
