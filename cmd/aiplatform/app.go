package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/time/rate"

	"aiplatform/internal/dashboard"
	"aiplatform/internal/errorhandler"
	"aiplatform/internal/errorhandler/report"
	"aiplatform/internal/feedback"
	"aiplatform/internal/pipeline"
	"aiplatform/internal/platform/config"
	"aiplatform/internal/platform/metrics"
	"aiplatform/internal/platform/postgres"
	"aiplatform/internal/platform/redis"
	"aiplatform/internal/services/ai"
	"aiplatform/internal/services/auth"
	"aiplatform/internal/services/points"
	"aiplatform/internal/services/user"
	"aiplatform/internal/session"
	"aiplatform/pkg/apierror"
	"aiplatform/pkg/platform/circuit"
)

// app holds the wired client stack for one CLI invocation.
type app struct {
	cfg    config.Config
	logger *slog.Logger
	stdout io.Writer

	session   *session.Store
	client    *pipeline.Client
	errors    *errorhandler.Handler
	auth      *auth.Service
	users     *user.Service
	ai        *ai.Service
	points    *points.Service
	dashboard *dashboard.Loader

	checks  map[string]func(context.Context) error
	closers []func(context.Context) error
}

func newApp(ctx context.Context, cfg config.Config, logger *slog.Logger, stdout, stderr io.Writer) (*app, error) {
	a := &app{cfg: cfg, logger: logger, stdout: stdout, checks: map[string]func(context.Context) error{}}
	registry := prometheus.NewRegistry()
	m := metrics.New(registry)
	if cfg.Log.Metrics {
		// First closer, so it runs after the reporter has flushed.
		a.closers = append(a.closers, func(context.Context) error { return writeMetrics(stderr, registry) })
	}

	backend, err := a.sessionBackend(ctx)
	if err != nil {
		_ = a.close(ctx)
		return nil, err
	}
	a.session = session.New(
		session.WithBackend(backend),
		session.WithLogger(logger),
		session.WithMetrics(m),
	)
	a.session.Load(ctx)

	router := feedback.NewRouter(cfg.API.LoginPath, feedback.OnRedirect(func(context.Context) {
		fmt.Fprintln(stderr, "session expired, run `aiplatform login` to sign in again")
	}))

	opts := []pipeline.Option{
		pipeline.WithTokenSource(a.session),
		pipeline.WithNavigator(router),
		pipeline.WithLogger(logger),
		pipeline.WithMetrics(m),
	}
	if cfg.API.RateLimit > 0 {
		opts = append(opts, pipeline.WithRateLimit(rate.NewLimiter(rate.Limit(cfg.API.RateLimit), max(1, cfg.API.RateBurst))))
	}
	a.client, err = pipeline.New(pipeline.Config{
		BaseURL:        cfg.API.BaseURL,
		Timeout:        cfg.API.Timeout,
		MaxAttempts:    cfg.API.MaxAttempts,
		BaseDelay:      cfg.API.RetryBaseDelay,
		MaxUploadBytes: cfg.API.MaxUploadBytes,
	}, opts...)
	if err != nil {
		_ = a.close(ctx)
		return nil, err
	}
	a.closers = append(a.closers, func(context.Context) error { a.client.Close(); return nil })

	handlerOpts := []errorhandler.Option{
		errorhandler.WithNotifier(feedback.NewTerminal(stderr)),
		errorhandler.WithLogger(logger),
		errorhandler.WithMetrics(m),
	}
	reporter, err := a.reporter(m)
	if err != nil {
		_ = a.close(ctx)
		return nil, err
	}
	if reporter != nil {
		handlerOpts = append(handlerOpts, errorhandler.WithReporter(reporter))
		a.closers = append(a.closers, reporter.Close)
	}
	a.errors = errorhandler.New(errorhandler.Config{
		ShowMessage:      cfg.Errors.ShowMessage,
		ShowNotification: cfg.Errors.ShowNotification,
		LogToConsole:     cfg.Errors.LogToConsole,
		ReportToServer:   cfg.Errors.ReportToServer && reporter != nil,
	}, handlerOpts...)

	if err := a.services(); err != nil {
		_ = a.close(ctx)
		return nil, err
	}
	return a, nil
}

func (a *app) services() error {
	var err error
	if a.auth, err = auth.New(a.client, a.errors, a.session, auth.WithLogger(a.logger)); err != nil {
		return err
	}
	if a.users, err = user.New(a.client, a.errors, a.session); err != nil {
		return err
	}
	if a.ai, err = ai.New(a.client, a.errors,
		ai.WithLogger(a.logger),
		ai.WithMaxUploadBytes(a.cfg.API.MaxUploadBytes),
	); err != nil {
		return err
	}
	if a.points, err = points.New(a.client, a.errors, points.WithLowBalanceThreshold(a.cfg.Points.LowBalanceThreshold)); err != nil {
		return err
	}
	a.dashboard, err = dashboard.New(a.users, a.points, a.logger)
	return err
}

func (a *app) sessionBackend(ctx context.Context) (session.Backend, error) {
	cfg := a.cfg
	switch cfg.Session.Backend {
	case config.BackendMemory:
		return session.NewMemoryBackend(), nil
	case config.BackendRedis:
		rc, err := redis.New(ctx, cfg.Redis)
		if err != nil {
			return nil, fmt.Errorf("connect session redis: %w", err)
		}
		a.closers = append(a.closers, func(context.Context) error { return rc.Close() })
		a.checks["session redis"] = rc.Health
		return session.NewRedisBackend(rc.Client,
			session.WithKeyPrefix(cfg.Session.KeyPrefix),
			session.WithTTL(cfg.Session.TTL),
		), nil
	case config.BackendPostgres:
		pool, err := postgres.New(ctx, cfg.Session.PostgresDSN)
		if err != nil {
			return nil, fmt.Errorf("connect session postgres: %w", err)
		}
		a.closers = append(a.closers, func(context.Context) error { pool.Close(); return nil })
		a.checks["session postgres"] = pool.Health
		pb := session.NewPostgresBackend(pool.Pool, cfg.Session.Namespace)
		if err := pb.EnsureSchema(ctx); err != nil {
			return nil, err
		}
		return pb, nil
	default:
		var opts []session.FileOption
		if cfg.Session.SealKey != "" {
			key, err := session.ParseSealKey(cfg.Session.SealKey)
			if err != nil {
				return nil, err
			}
			opts = append(opts, session.WithSealKey(key))
		}
		return session.NewFileBackend(cfg.Session.Path, opts...), nil
	}
}

func (a *app) reporter(m *metrics.Metrics) (*report.Publisher, error) {
	cfg := a.cfg.Report
	var sink report.Sink
	switch cfg.Sink {
	case config.SinkHTTP:
		sink = report.NewHTTPSink(cfg.URL, nil)
	case config.SinkKafka:
		ks, err := report.NewKafkaSink(cfg.KafkaBrokers, cfg.KafkaTopic)
		if err != nil {
			return nil, err
		}
		sink = ks
	default:
		return nil, nil
	}

	sampler := report.NewSampler(1)
	sampler.SetRate(apierror.LevelLow, cfg.LowSampleRate)
	return report.NewPublisher(sink,
		report.WithQueueSize(cfg.QueueSize),
		report.WithSendTimeout(cfg.Timeout),
		report.WithSampler(sampler),
		report.WithBreaker(circuit.New("error-report", circuit.WithCooldown(cfg.Timeout*6))),
		report.WithLogger(a.logger),
		report.WithMetrics(m),
	), nil
}

// writeMetrics prints every non-zero sample gathered from g, one per line.
// Histograms are reported by observation count.
func writeMetrics(w io.Writer, g prometheus.Gatherer) error {
	families, err := g.Gather()
	if err != nil {
		return fmt.Errorf("gather metrics: %w", err)
	}
	for _, mf := range families {
		for _, sample := range mf.GetMetric() {
			var v float64
			switch {
			case sample.GetCounter() != nil:
				v = sample.GetCounter().GetValue()
			case sample.GetHistogram() != nil:
				v = float64(sample.GetHistogram().GetSampleCount())
			case sample.GetGauge() != nil:
				v = sample.GetGauge().GetValue()
			default:
				continue
			}
			if v == 0 {
				continue
			}
			labels := make([]string, 0, len(sample.GetLabel()))
			for _, lp := range sample.GetLabel() {
				labels = append(labels, lp.GetName()+"="+lp.GetValue())
			}
			fmt.Fprintf(w, "%s{%s} %g\n", mf.GetName(), strings.Join(labels, ","), v)
		}
	}
	return nil
}

// close releases resources in reverse order of acquisition.
func (a *app) close(ctx context.Context) error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
