// Package auth gates account-scoped routes behind the bearer tokens issued
// at account creation.
package auth

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/millisami/flow-name-service/pkg/domain"
	"github.com/millisami/flow-name-service/pkg/requestcontext"
)

// TokenValidator validates an account bearer token and returns the account
// address it was issued for.
type TokenValidator interface {
	ValidateToken(tokenString string) (domain.Address, error)
}

// RequireAccount enforces a valid bearer token and injects the account
// address into the request context for handlers and services.
func RequireAccount(validator TokenValidator, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			const bearerPrefix = "Bearer "
			authHeader := r.Header.Get("Authorization")
			if !strings.HasPrefix(authHeader, bearerPrefix) {
				writeUnauthorized(w, "bearer token required")
				return
			}

			addr, err := validator.ValidateToken(strings.TrimPrefix(authHeader, bearerPrefix))
			if err != nil {
				ctx := r.Context()
				logger.WarnContext(ctx, "account token rejected",
					"request_id", requestcontext.RequestID(ctx),
					"error", err,
				)
				writeUnauthorized(w, "invalid account token")
				return
			}

			ctx := requestcontext.WithAccountAddress(r.Context(), addr)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func writeUnauthorized(w http.ResponseWriter, desc string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_, _ = w.Write([]byte(`{"error":"unauthorized","error_description":"` + desc + `"}`))
}
