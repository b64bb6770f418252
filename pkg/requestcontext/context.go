// Package requestcontext provides context accessors for values scoped to one
// outbound API call.
//
// The request pipeline stamps each call with a correlation id and an attempt
// number; transforms, loggers and the error normalizer read them back without
// needing access to the pipeline itself.
//
//	ctx = requestcontext.WithRequestID(ctx, id)
//	attempt := requestcontext.Attempt(ctx)
//
// Tests can pin the clock:
//
//	ctx = requestcontext.WithTime(ctx, fixedTime)
package requestcontext

import (
	"context"
	"time"
)

type (
	requestIDKey   struct{}
	attemptKey     struct{}
	requestTimeKey struct{}
	skipAuthKey    struct{}
)

// Exported context keys for direct use in tests that need context.WithValue.
var (
	ContextKeyRequestID   = requestIDKey{}
	ContextKeyAttempt     = attemptKey{}
	ContextKeyRequestTime = requestTimeKey{}
	ContextKeySkipAuth    = skipAuthKey{}
)

// RequestID retrieves the correlation id of the current call.
func RequestID(ctx context.Context) string {
	if reqID, ok := ctx.Value(ContextKeyRequestID).(string); ok {
		return reqID
	}
	return ""
}

// WithRequestID injects a correlation id into the context.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, ContextKeyRequestID, requestID)
}

// Attempt returns the 1-based attempt number, or 0 outside the pipeline.
func Attempt(ctx context.Context) int {
	if n, ok := ctx.Value(ContextKeyAttempt).(int); ok {
		return n
	}
	return 0
}

// WithAttempt records the attempt number for the call in flight.
func WithAttempt(ctx context.Context, attempt int) context.Context {
	return context.WithValue(ctx, ContextKeyAttempt, attempt)
}

// SkipAuth reports whether the call was marked as unauthenticated.
func SkipAuth(ctx context.Context) bool {
	skip, _ := ctx.Value(ContextKeySkipAuth).(bool)
	return skip
}

// WithSkipAuth marks the call as unauthenticated.
func WithSkipAuth(ctx context.Context, skip bool) context.Context {
	return context.WithValue(ctx, ContextKeySkipAuth, skip)
}

// Now retrieves the request-scoped time from context.
// Falls back to time.Now() if not set.
func Now(ctx context.Context) time.Time {
	if t, ok := ctx.Value(ContextKeyRequestTime).(time.Time); ok {
		return t
	}
	return time.Now()
}

// WithTime injects a specific time into a context.
func WithTime(ctx context.Context, t time.Time) context.Context {
	return context.WithValue(ctx, ContextKeyRequestTime, t)
}
