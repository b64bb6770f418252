package testutil

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"aiplatform/internal/errorhandler"
	"aiplatform/internal/feedback"
	"aiplatform/internal/pipeline"
	"aiplatform/internal/platform/metrics"
	"aiplatform/internal/session"
	"aiplatform/pkg/testutil/backend"
)

// Harness wires the full client stack against a fake backend. Retry sleeps
// are recorded instead of slept.
type Harness struct {
	Backend  *backend.Backend
	Session  *session.Store
	Client   *pipeline.Client
	Errors   *errorhandler.Handler
	Feedback *feedback.Recorder
	Router   *feedback.Router
	Metrics  *metrics.Metrics
	Logger   *slog.Logger

	mu     sync.Mutex
	delays []time.Duration
}

// NewHarness starts a backend and a client pointed at it. Extra pipeline
// options are applied last.
func NewHarness(t testing.TB, opts ...pipeline.Option) *Harness {
	t.Helper()

	h := &Harness{
		Backend:  backend.New(),
		Feedback: feedback.NewRecorder(),
		Router:   feedback.NewRouter("/login"),
		Metrics:  metrics.New(prometheus.NewRegistry()),
		Logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	t.Cleanup(h.Backend.Close)

	h.Session = session.New(session.WithLogger(h.Logger), session.WithMetrics(h.Metrics))
	h.Errors = errorhandler.New(errorhandler.DefaultConfig(),
		errorhandler.WithNotifier(h.Feedback),
		errorhandler.WithLogger(h.Logger),
		errorhandler.WithMetrics(h.Metrics),
	)

	base := []pipeline.Option{
		pipeline.WithHTTPClient(h.Backend.Client()),
		pipeline.WithTokenSource(h.Session),
		pipeline.WithNavigator(h.Router),
		pipeline.WithLogger(h.Logger),
		pipeline.WithMetrics(h.Metrics),
		pipeline.WithSleep(func(ctx context.Context, d time.Duration) error {
			h.mu.Lock()
			h.delays = append(h.delays, d)
			h.mu.Unlock()
			return ctx.Err()
		}),
	}
	client, err := pipeline.New(pipeline.Config{
		BaseURL:     h.Backend.URL(),
		Timeout:     5 * time.Second,
		MaxAttempts: 3,
		BaseDelay:   100 * time.Millisecond,
	}, append(base, opts...)...)
	require.NoError(t, err)
	t.Cleanup(client.Close)
	h.Client = client
	return h
}

// SignIn creates a user on the backend and puts its session in the store.
func (h *Harness) SignIn(t testing.TB, username string, points int) string {
	t.Helper()
	user := h.Backend.AddUser(username, "secret-"+username, points)
	token := h.Backend.Token(username)
	require.NoError(t, h.Session.Set(context.Background(), token, &user))
	h.Router.Navigate("/dashboard")
	return token
}

// Delays returns the recorded retry delays.
func (h *Harness) Delays() []time.Duration {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]time.Duration(nil), h.delays...)
}
