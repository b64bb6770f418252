// Package errorhandler turns failures into StandardErrors and surfaces them:
// a log line, a toast, an optional notification and an optional report.
package errorhandler

//go:generate mockgen -source=handler.go -destination=mocks/mocks.go -package=mocks Reporter

import (
	"context"
	"log/slog"
	"time"

	"aiplatform/internal/feedback"
	"aiplatform/internal/platform/metrics"
	"aiplatform/pkg/apierror"
)

// Config toggles each side effect.
type Config struct {
	ShowMessage      bool
	ShowNotification bool
	LogToConsole     bool
	ReportToServer   bool
}

// DefaultConfig shows a message and logs; notifications and reporting are off.
func DefaultConfig() Config {
	return Config{ShowMessage: true, LogToConsole: true}
}

// Reporter ships errors somewhere durable. Implementations must not block.
type Reporter interface {
	Report(ctx context.Context, se *apierror.StandardError) error
}

// Handler normalizes and surfaces errors.
type Handler struct {
	cfg      Config
	notifier feedback.Notifier
	reporter Reporter
	logger   *slog.Logger
	metrics  *metrics.Metrics
}

// Option configures a Handler.
type Option func(*Handler)

func WithNotifier(n feedback.Notifier) Option {
	return func(h *Handler) {
		h.notifier = n
	}
}

func WithReporter(r Reporter) Option {
	return func(h *Handler) {
		h.reporter = r
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(h *Handler) {
		h.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(h *Handler) {
		h.metrics = m
	}
}

func New(cfg Config, opts ...Option) *Handler {
	h := &Handler{cfg: cfg, logger: slog.Default()}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// CallOption overrides the handler config for one call.
type CallOption func(*Config)

// Silent suppresses the message and notification.
func Silent() CallOption {
	return func(c *Config) {
		c.ShowMessage = false
		c.ShowNotification = false
	}
}

func ShowMessage(on bool) CallOption {
	return func(c *Config) { c.ShowMessage = on }
}

func ShowNotification(on bool) CallOption {
	return func(c *Config) { c.ShowNotification = on }
}

func LogToConsole(on bool) CallOption {
	return func(c *Config) { c.LogToConsole = on }
}

func ReportToServer(on bool) CallOption {
	return func(c *Config) { c.ReportToServer = on }
}

// Handle normalizes v and runs the enabled side effects. It always returns
// a StandardError and never panics.
func (h *Handler) Handle(ctx context.Context, v any, opts ...CallOption) *apierror.StandardError {
	se := apierror.Normalize(ctx, v)

	cfg := h.cfg
	for _, opt := range opts {
		opt(&cfg)
	}

	h.metrics.IncErrorHandled(string(se.Type), string(se.Level))
	if cfg.LogToConsole {
		h.log(ctx, se)
	}
	if h.notifier != nil {
		if cfg.ShowMessage {
			h.notifier.Message(ctx, MessageFor(se))
		}
		if cfg.ShowNotification {
			h.notifier.Notify(ctx, NotificationFor(se))
		}
	}
	if cfg.ReportToServer && h.reporter != nil {
		if err := h.reporter.Report(ctx, se); err != nil {
			h.logger.DebugContext(ctx, "error report not queued", "error", err, "request_id", se.RequestID)
		}
	}
	return se
}

// Business builds and surfaces a BUSINESS error for a request the server
// completed but refused.
func (h *Handler) Business(ctx context.Context, code, message string, details any, opts ...CallOption) *apierror.StandardError {
	if code == "" {
		code = apierror.CodeBusiness
	}
	if message == "" {
		message = apierror.MsgBusiness
	}
	se := apierror.New(apierror.TypeBusiness, apierror.LevelMedium, code, message, apierror.WithDetails(details))
	return h.Handle(ctx, se, opts...)
}

func (h *Handler) log(ctx context.Context, se *apierror.StandardError) {
	attrs := []any{
		"type", se.Type,
		"level", se.Level,
		"code", se.Code,
		"request_id", se.RequestID,
	}
	if se.Status != 0 {
		attrs = append(attrs, "status", se.Status)
	}
	if cause := se.Unwrap(); cause != nil {
		attrs = append(attrs, "cause", cause)
	}
	switch se.Level {
	case apierror.LevelCritical, apierror.LevelHigh:
		h.logger.ErrorContext(ctx, se.Message, attrs...)
	case apierror.LevelMedium:
		h.logger.WarnContext(ctx, se.Message, attrs...)
	default:
		h.logger.InfoContext(ctx, se.Message, attrs...)
	}
}

// MessageFor maps severity to a toast.
func MessageFor(se *apierror.StandardError) feedback.Message {
	switch se.Level {
	case apierror.LevelCritical, apierror.LevelHigh:
		return feedback.Message{Kind: feedback.KindError, Text: se.Message, Duration: 6 * time.Second}
	case apierror.LevelMedium:
		return feedback.Message{Kind: feedback.KindWarning, Text: se.Message, Duration: 4 * time.Second}
	default:
		return feedback.Message{Kind: feedback.KindInfo, Text: se.Message, Duration: 3 * time.Second}
	}
}

// NotificationFor maps severity to a notification. Critical ones stay until
// dismissed.
func NotificationFor(se *apierror.StandardError) feedback.Notification {
	switch se.Level {
	case apierror.LevelCritical:
		return feedback.Notification{Kind: feedback.KindError, Title: "Critical error", Text: se.Message}
	case apierror.LevelHigh:
		return feedback.Notification{Kind: feedback.KindError, Title: "Error", Text: se.Message, Duration: 4500 * time.Millisecond}
	case apierror.LevelMedium:
		return feedback.Notification{Kind: feedback.KindWarning, Title: "Warning", Text: se.Message, Duration: 4500 * time.Millisecond}
	default:
		return feedback.Notification{Kind: feedback.KindInfo, Title: "Notice", Text: se.Message, Duration: 4500 * time.Millisecond}
	}
}
