package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"golang.org/x/time/rate"

	"aiplatform/internal/platform/metrics"
	"aiplatform/pkg/requestcontext"
)

// Header names set by the pipeline.
const (
	HeaderAuthorization = "Authorization"
	HeaderRequestID     = "X-Request-ID"
)

// RequestTransform runs on every attempt before it is sent. Returning an
// error aborts the call without retrying.
type RequestTransform func(ctx context.Context, req *http.Request) error

// ResponseTransform observes every attempt after it completes. resp is nil
// when no response arrived; err is non-nil for any failure.
type ResponseTransform func(ctx context.Context, req *http.Request, resp *Response, err error)

// TokenSource supplies and revokes the bearer token.
type TokenSource interface {
	Token(ctx context.Context) string
	Invalidate(ctx context.Context, sentToken string) bool
}

// Navigator sends the user back to the login entry point.
type Navigator interface {
	RedirectToLogin(ctx context.Context)
}

// DefaultHeaders sets headers that every call carries unless already present.
func DefaultHeaders(userAgent string) RequestTransform {
	return func(_ context.Context, req *http.Request) error {
		if req.Header.Get("Accept") == "" {
			req.Header.Set("Accept", "application/json")
		}
		if userAgent != "" && req.Header.Get("User-Agent") == "" {
			req.Header.Set("User-Agent", userAgent)
		}
		return nil
	}
}

// CorrelationID stamps the attempt's request id.
func CorrelationID() RequestTransform {
	return func(ctx context.Context, req *http.Request) error {
		if id := requestcontext.RequestID(ctx); id != "" {
			req.Header.Set(HeaderRequestID, id)
		}
		return nil
	}
}

// BearerAuth attaches the current token unless the call skips auth or no
// session exists.
func BearerAuth(tokens TokenSource) RequestTransform {
	return func(ctx context.Context, req *http.Request) error {
		if requestcontext.SkipAuth(ctx) {
			return nil
		}
		if token := tokens.Token(ctx); token != "" {
			req.Header.Set(HeaderAuthorization, "Bearer "+token)
		}
		return nil
	}
}

// Throttle blocks until the limiter admits the attempt.
func Throttle(limiter *rate.Limiter) RequestTransform {
	return func(ctx context.Context, _ *http.Request) error {
		if err := limiter.Wait(ctx); err != nil {
			return fmt.Errorf("rate limit wait: %w", err)
		}
		return nil
	}
}

// LogExchange logs each attempt's outcome.
func LogExchange(logger *slog.Logger) ResponseTransform {
	return func(ctx context.Context, req *http.Request, resp *Response, err error) {
		attrs := []any{
			"method", req.Method,
			"path", req.URL.Path,
			"request_id", requestcontext.RequestID(ctx),
			"attempt", requestcontext.Attempt(ctx),
		}
		switch {
		case err == nil:
			logger.DebugContext(ctx, "api request completed", append(attrs, "status", resp.StatusCode)...)
		case resp != nil:
			logger.WarnContext(ctx, "api request failed", append(attrs, "status", resp.StatusCode)...)
		default:
			logger.WarnContext(ctx, "api request got no response", append(attrs, "error", err)...)
		}
	}
}

// AuthTeardown clears the session and redirects to login on 401, except for
// requests sent with SkipAuth. When a token was sent, only the attempt that
// actually clears it redirects, so a burst of concurrent 401s produces one
// teardown.
func AuthTeardown(tokens TokenSource, nav Navigator, logger *slog.Logger, m *metrics.Metrics) ResponseTransform {
	return func(ctx context.Context, req *http.Request, resp *Response, _ error) {
		if resp == nil || resp.StatusCode != http.StatusUnauthorized {
			return
		}
		if requestcontext.SkipAuth(ctx) {
			return
		}
		// A request sent without a token (signed out, or the token expired
		// client-side) has no session left to clear but still needs a login.
		// With a token, only the caller whose token is cleared redirects.
		if sent := sentToken(req); sent != "" && !tokens.Invalidate(ctx, sent) {
			return
		}
		m.IncAuthTeardown()
		logger.WarnContext(ctx, "authentication rejected, session cleared",
			"path", req.URL.Path,
			"request_id", requestcontext.RequestID(ctx),
		)
		if nav != nil {
			nav.RedirectToLogin(ctx)
		}
	}
}

func sentToken(req *http.Request) string {
	token, ok := strings.CutPrefix(req.Header.Get(HeaderAuthorization), "Bearer ")
	if !ok {
		return ""
	}
	return token
}
