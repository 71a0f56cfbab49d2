// Package requestcontext provides HTTP-independent context accessors for
// request-scoped values.
//
// Context keys and getters live here so middleware can set values that
// services consume without the services importing net/http. The request
// time accessor doubles as the domain clock: every operation within one
// request observes the same "now", and tests inject fixed times with
// WithTime.
package requestcontext

import (
	"context"
	"time"

	"github.com/millisami/flow-name-service/pkg/domain"
)

type (
	accountKey     struct{}
	requestIDKey   struct{}
	requestTimeKey struct{}
)

// AccountAddress retrieves the authenticated account address from the
// context. Returns the zero address if not set.
func AccountAddress(ctx context.Context) domain.Address {
	if addr, ok := ctx.Value(accountKey{}).(domain.Address); ok {
		return addr
	}
	return domain.ZeroAddress
}

// WithAccountAddress injects an authenticated account address.
func WithAccountAddress(ctx context.Context, addr domain.Address) context.Context {
	return context.WithValue(ctx, accountKey{}, addr)
}

// RequestID retrieves the request ID from the context.
func RequestID(ctx context.Context) string {
	if reqID, ok := ctx.Value(requestIDKey{}).(string); ok {
		return reqID
	}
	return ""
}

// WithRequestID injects a request ID into the context.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, requestID)
}

// Now retrieves the request-scoped time from context. Falls back to
// time.Now() for non-HTTP contexts (workers, CLI, tests that don't care).
func Now(ctx context.Context) time.Time {
	if t, ok := ctx.Value(requestTimeKey{}).(time.Time); ok {
		return t
	}
	return time.Now()
}

// WithTime injects a specific time into a context. Used by the requesttime
// middleware and by tests that need deterministic expiry arithmetic.
func WithTime(ctx context.Context, t time.Time) context.Context {
	return context.WithValue(ctx, requestTimeKey{}, t)
}
