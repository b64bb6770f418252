// Package report ships StandardErrors to a collector without blocking the
// caller. Reports go through a bounded queue drained by one worker; when the
// sink keeps failing a circuit breaker drops reports until it recovers.
package report

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"sync"
	"time"

	"aiplatform/internal/platform/metrics"
	"aiplatform/pkg/apierror"
	"aiplatform/pkg/platform/circuit"
)

var (
	ErrQueueFull = errors.New("report queue full")
	ErrClosed    = errors.New("reporter closed")
)

// Report is the payload delivered to a sink.
type Report struct {
	Error      *apierror.StandardError `json:"error"`
	Host       string                  `json:"host,omitempty"`
	Client     string                  `json:"client"`
	ReportedAt time.Time               `json:"reportedAt"`
}

// Sink delivers one report.
type Sink interface {
	Send(ctx context.Context, r Report) error
	Close() error
}

// Publisher queues reports for asynchronous delivery.
type Publisher struct {
	sink    Sink
	queue   chan Report
	breaker *circuit.Breaker
	sampler *Sampler
	timeout time.Duration
	logger  *slog.Logger
	metrics *metrics.Metrics
	host    string

	mu     sync.RWMutex
	closed bool
	done   chan struct{}
}

// Option configures a Publisher.
type Option func(*Publisher)

func WithQueueSize(n int) Option {
	return func(p *Publisher) {
		if n > 0 {
			p.queue = make(chan Report, n)
		}
	}
}

func WithBreaker(b *circuit.Breaker) Option {
	return func(p *Publisher) {
		p.breaker = b
	}
}

func WithSampler(s *Sampler) Option {
	return func(p *Publisher) {
		p.sampler = s
	}
}

// WithSendTimeout bounds each delivery.
func WithSendTimeout(d time.Duration) Option {
	return func(p *Publisher) {
		if d > 0 {
			p.timeout = d
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(p *Publisher) {
		p.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(p *Publisher) {
		p.metrics = m
	}
}

// NewPublisher starts the delivery worker.
func NewPublisher(sink Sink, opts ...Option) *Publisher {
	host, _ := os.Hostname()
	p := &Publisher{
		sink:    sink,
		queue:   make(chan Report, 256),
		breaker: circuit.New("error-report", circuit.WithFailureThreshold(5), circuit.WithCooldown(time.Minute)),
		sampler: NewSampler(1),
		timeout: 5 * time.Second,
		logger:  slog.Default(),
		host:    host,
		done:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(p)
	}
	go p.run()
	return p
}

// Report enqueues se. It never blocks: a full queue drops the report.
func (p *Publisher) Report(_ context.Context, se *apierror.StandardError) error {
	if !p.sampler.ShouldSample(se.Level) {
		p.metrics.IncReportDropped("sampled")
		return nil
	}

	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrClosed
	}
	select {
	case p.queue <- Report{Error: se, Host: p.host, Client: "aiplatform-client", ReportedAt: time.Now()}:
		return nil
	default:
		p.metrics.IncReportDropped("queue_full")
		return ErrQueueFull
	}
}

func (p *Publisher) run() {
	defer close(p.done)
	for r := range p.queue {
		p.deliver(r)
	}
}

func (p *Publisher) deliver(r Report) {
	if !p.breaker.Allow() {
		p.metrics.IncReportDropped("circuit_open")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
	defer cancel()

	if err := p.sink.Send(ctx, r); err != nil {
		_, change := p.breaker.RecordFailure()
		p.metrics.IncReportDropped("send_failed")
		p.logger.Warn("error report delivery failed",
			"error", err,
			"request_id", r.Error.RequestID,
			"circuit_opened", change.Opened,
		)
		return
	}
	if _, change := p.breaker.RecordSuccess(); change.Closed {
		p.logger.Info("error report delivery recovered")
	}
	p.metrics.IncReportSent()
}

// Close stops accepting reports, drains the queue until ctx expires, and
// closes the sink.
func (p *Publisher) Close(ctx context.Context) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	close(p.queue)
	p.mu.Unlock()

	select {
	case <-p.done:
	case <-ctx.Done():
		return errors.Join(ctx.Err(), p.sink.Close())
	}
	return p.sink.Close()
}
