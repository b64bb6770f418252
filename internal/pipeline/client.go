// Package pipeline is the single path every API call takes: ordered request
// transforms, the HTTP exchange, ordered response transforms, then a bounded
// retry decision.
package pipeline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"

	"aiplatform/internal/platform/metrics"
	"aiplatform/pkg/requestcontext"
)

const (
	defaultTimeout     = 30 * time.Second
	defaultMaxAttempts = 3
	defaultMaxUpload   = 10 << 20
	maxResponseBytes   = 32 << 20
	userAgent          = "aiplatform-client/1"
)

// Config holds the pipeline settings.
type Config struct {
	BaseURL        string
	Timeout        time.Duration
	MaxAttempts    int           // total attempts including the first
	BaseDelay      time.Duration // delay before retry n is BaseDelay*n; zero retries at once
	MaxUploadBytes int64
}

// Client executes API requests.
type Client struct {
	baseURL atomic.Pointer[url.URL]
	cfg     Config
	http    *http.Client

	tokens  TokenSource
	nav     Navigator
	limiter *rate.Limiter
	logger  *slog.Logger
	metrics *metrics.Metrics
	tracer  trace.Tracer
	sleep   func(ctx context.Context, d time.Duration) error

	extraRequest  []RequestTransform
	extraResponse []ResponseTransform

	requestTransforms  []RequestTransform
	responseTransforms []ResponseTransform
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.http = hc
	}
}

// WithTokenSource enables bearer auth and 401 teardown.
func WithTokenSource(tokens TokenSource) Option {
	return func(c *Client) {
		c.tokens = tokens
	}
}

// WithNavigator sets the login redirect target used after a 401 teardown.
func WithNavigator(nav Navigator) Option {
	return func(c *Client) {
		c.nav = nav
	}
}

// WithRateLimit throttles outgoing attempts.
func WithRateLimit(limiter *rate.Limiter) Option {
	return func(c *Client) {
		c.limiter = limiter
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Client) {
		c.metrics = m
	}
}

func WithTracer(tracer trace.Tracer) Option {
	return func(c *Client) {
		c.tracer = tracer
	}
}

// WithSleep overrides how retry delays are waited out.
func WithSleep(sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(c *Client) {
		c.sleep = sleep
	}
}

// WithRequestTransforms appends transforms after the built-in ones.
func WithRequestTransforms(ts ...RequestTransform) Option {
	return func(c *Client) {
		c.extraRequest = append(c.extraRequest, ts...)
	}
}

// WithResponseTransforms appends transforms after the built-in ones.
func WithResponseTransforms(ts ...ResponseTransform) Option {
	return func(c *Client) {
		c.extraResponse = append(c.extraResponse, ts...)
	}
}

// New builds a Client. Zero Timeout, MaxAttempts and MaxUploadBytes take
// package defaults.
func New(cfg Config, opts ...Option) (*Client, error) {
	base, err := parseBaseURL(cfg.BaseURL)
	if err != nil {
		return nil, err
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = defaultMaxAttempts
	}
	if cfg.BaseDelay < 0 {
		cfg.BaseDelay = 0
	}
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = defaultMaxUpload
	}

	c := &Client{
		cfg:    cfg,
		logger: slog.Default(),
		tracer: otel.Tracer("aiplatform/internal/pipeline"),
		sleep:  sleepContext,
	}
	c.baseURL.Store(base)
	for _, opt := range opts {
		opt(c)
	}
	if c.http == nil {
		c.http = &http.Client{Timeout: cfg.Timeout}
	}

	c.requestTransforms = []RequestTransform{DefaultHeaders(userAgent), CorrelationID()}
	if c.tokens != nil {
		c.requestTransforms = append(c.requestTransforms, BearerAuth(c.tokens))
	}
	if c.limiter != nil {
		c.requestTransforms = append(c.requestTransforms, Throttle(c.limiter))
	}
	c.requestTransforms = append(c.requestTransforms, c.extraRequest...)

	c.responseTransforms = []ResponseTransform{LogExchange(c.logger)}
	if c.tokens != nil {
		c.responseTransforms = append(c.responseTransforms, AuthTeardown(c.tokens, c.nav, c.logger, c.metrics))
	}
	c.responseTransforms = append(c.responseTransforms, c.extraResponse...)

	return c, nil
}

func parseBaseURL(raw string) (*url.URL, error) {
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid base URL %q", raw)
	}
	return u, nil
}

// SetBaseURL points the client at another backend.
func (c *Client) SetBaseURL(raw string) error {
	u, err := parseBaseURL(raw)
	if err != nil {
		return err
	}
	c.baseURL.Store(u)
	return nil
}

// BaseURL returns the current backend root.
func (c *Client) BaseURL() string {
	return c.baseURL.Load().String()
}

// Close releases idle connections.
func (c *Client) Close() {
	c.http.CloseIdleConnections()
}

// Get issues a GET.
func (c *Client) Get(ctx context.Context, path string, opts ...RequestOption) (*Response, error) {
	return c.Do(ctx, NewRequest(http.MethodGet, path, nil, opts...))
}

// Post issues a POST with a JSON body.
func (c *Client) Post(ctx context.Context, path string, body any, opts ...RequestOption) (*Response, error) {
	return c.Do(ctx, NewRequest(http.MethodPost, path, body, opts...))
}

// Put issues a PUT with a JSON body.
func (c *Client) Put(ctx context.Context, path string, body any, opts ...RequestOption) (*Response, error) {
	return c.Do(ctx, NewRequest(http.MethodPut, path, body, opts...))
}

// Delete issues a DELETE.
func (c *Client) Delete(ctx context.Context, path string, opts ...RequestOption) (*Response, error) {
	return c.Do(ctx, NewRequest(http.MethodDelete, path, nil, opts...))
}

// Upload posts a multipart form.
func (c *Client) Upload(ctx context.Context, path string, form Form, opts ...RequestOption) (*Response, error) {
	req, err := NewUploadRequest(path, form, opts...)
	if err != nil {
		return nil, err
	}
	return c.Do(ctx, req)
}

// Do executes req, retrying network failures and 5xx responses up to
// MaxAttempts in total. The last failure is returned unchanged.
func (c *Client) Do(ctx context.Context, req Request) (*Response, error) {
	body, contentType, err := req.encode()
	if err != nil {
		return nil, err
	}
	if req.RawBody != nil && int64(len(body)) > c.cfg.MaxUploadBytes {
		return nil, fmt.Errorf("%s %s: %d bytes: %w", req.Method, req.Path, len(body), ErrUploadTooLarge)
	}

	ctx = requestcontext.WithSkipAuth(ctx, req.SkipAuth)
	ctx, span := c.tracer.Start(ctx, req.Method+" "+req.Path,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("http.request.method", req.Method),
			attribute.String("url.path", req.Path),
		),
	)
	defer span.End()

	start := time.Now()
	var (
		resp    *Response
		lastErr error
		attempt int
	)
	for attempt = 1; ; attempt++ {
		attemptCtx := requestcontext.WithRequestID(requestcontext.WithAttempt(ctx, attempt), uuid.NewString())
		resp, lastErr = c.send(attemptCtx, req, body, contentType)
		if lastErr == nil {
			break
		}
		reason, retryable := retryReason(lastErr)
		if !retryable || attempt >= c.cfg.MaxAttempts {
			break
		}
		delay := c.cfg.BaseDelay * time.Duration(attempt)
		c.metrics.IncRetry(reason)
		c.logger.InfoContext(attemptCtx, "retrying api request",
			"method", req.Method,
			"path", req.Path,
			"attempt", attempt,
			"delay", delay,
			"reason", reason,
		)
		if err := c.sleep(ctx, delay); err != nil {
			lastErr = err
			break
		}
	}

	status := statusOf(resp, lastErr)
	c.metrics.ObserveRequest(req.Method, status, time.Since(start))
	span.SetAttributes(attribute.Int("aiplatform.attempts", attempt))
	if status != 0 {
		span.SetAttributes(attribute.Int("http.response.status_code", status))
	}
	if lastErr != nil {
		span.RecordError(lastErr)
		span.SetStatus(codes.Error, lastErr.Error())
		return nil, lastErr
	}
	resp.Attempts = attempt
	return resp, nil
}

// send performs one attempt.
func (c *Client) send(ctx context.Context, req Request, body []byte, contentType string) (*Response, error) {
	httpReq, err := http.NewRequestWithContext(ctx, req.Method, c.resolve(req.Path, req.Query), bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build %s %s: %w", req.Method, req.Path, err)
	}
	for key, values := range req.Header {
		for _, v := range values {
			httpReq.Header.Add(key, v)
		}
	}
	if contentType != "" {
		httpReq.Header.Set("Content-Type", contentType)
	}
	for _, transform := range c.requestTransforms {
		if err := transform(ctx, httpReq); err != nil {
			return nil, err
		}
	}

	requestID := requestcontext.RequestID(ctx)
	httpResp, err := c.http.Do(httpReq)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil && errors.Is(err, ctxErr) {
			return nil, ctxErr
		}
		failure := &NetworkError{Method: req.Method, Path: req.Path, RequestID: requestID, Err: err}
		c.observe(ctx, httpReq, nil, failure)
		return nil, failure
	}
	defer httpResp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(httpResp.Body, maxResponseBytes))
	if err != nil {
		failure := &NetworkError{Method: req.Method, Path: req.Path, RequestID: requestID, Err: fmt.Errorf("read body: %w", err)}
		c.observe(ctx, httpReq, nil, failure)
		return nil, failure
	}

	resp := &Response{
		StatusCode: httpResp.StatusCode,
		Header:     httpResp.Header,
		Body:       data,
		RequestID:  requestID,
	}
	var failure error
	if httpResp.StatusCode < 200 || httpResp.StatusCode > 299 {
		failure = &HTTPError{
			Method:     req.Method,
			Path:       req.Path,
			StatusCode: httpResp.StatusCode,
			Body:       data,
			RequestID:  requestID,
		}
	}
	c.observe(ctx, httpReq, resp, failure)
	if failure != nil {
		return nil, failure
	}
	return resp, nil
}

func (c *Client) observe(ctx context.Context, req *http.Request, resp *Response, err error) {
	for _, transform := range c.responseTransforms {
		transform(ctx, req, resp, err)
	}
}

func (c *Client) resolve(path string, query url.Values) string {
	u := c.baseURL.Load().JoinPath(path)
	if len(query) > 0 {
		u.RawQuery = query.Encode()
	}
	return u.String()
}

func statusOf(resp *Response, err error) int {
	if resp != nil {
		return resp.StatusCode
	}
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.StatusCode
	}
	return 0
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
