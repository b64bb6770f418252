package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus collectors for the API client. All methods are
// nil-safe so components can run without instrumentation.
type Metrics struct {
	Requests        *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
	Retries         *prometheus.CounterVec
	AuthTeardowns   prometheus.Counter
	ErrorsHandled   *prometheus.CounterVec
	ReportsSent     prometheus.Counter
	ReportsDropped  *prometheus.CounterVec
	SessionFailures *prometheus.CounterVec
}

// New creates and registers all collectors on reg. Pass
// prometheus.DefaultRegisterer in production and a fresh registry in tests.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Requests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "aiplatform_client_requests_total",
			Help: "API calls completed by the client, by method and outcome",
		}, []string{"method", "outcome"}),
		RequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "aiplatform_client_request_duration_seconds",
			Help:    "Wall time of an API call including retries",
			Buckets: []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		}, []string{"method"}),
		Retries: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "aiplatform_client_retries_total",
			Help: "Retry attempts scheduled, by trigger",
		}, []string{"reason"}),
		AuthTeardowns: factory.NewCounter(prometheus.CounterOpts{
			Name: "aiplatform_client_auth_teardowns_total",
			Help: "Sessions cleared after an authentication failure",
		}),
		ErrorsHandled: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "aiplatform_client_errors_total",
			Help: "Normalized errors surfaced to the caller, by type and level",
		}, []string{"type", "level"}),
		ReportsSent: factory.NewCounter(prometheus.CounterOpts{
			Name: "aiplatform_client_error_reports_sent_total",
			Help: "Error reports delivered to the report sink",
		}),
		ReportsDropped: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "aiplatform_client_error_reports_dropped_total",
			Help: "Error reports not delivered, by reason",
		}, []string{"reason"}),
		SessionFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "aiplatform_client_session_backend_failures_total",
			Help: "Session backend operations that failed, by operation",
		}, []string{"op"}),
	}
}

// ObserveRequest records one finished API call.
func (m *Metrics) ObserveRequest(method string, status int, d time.Duration) {
	if m == nil {
		return
	}
	m.Requests.WithLabelValues(method, outcome(status)).Inc()
	m.RequestDuration.WithLabelValues(method).Observe(d.Seconds())
}

// IncRetry counts a scheduled retry.
func (m *Metrics) IncRetry(reason string) {
	if m == nil {
		return
	}
	m.Retries.WithLabelValues(reason).Inc()
}

// IncAuthTeardown counts a session cleared by a 401.
func (m *Metrics) IncAuthTeardown() {
	if m == nil {
		return
	}
	m.AuthTeardowns.Inc()
}

// IncErrorHandled counts a normalized error.
func (m *Metrics) IncErrorHandled(errType, level string) {
	if m == nil {
		return
	}
	m.ErrorsHandled.WithLabelValues(errType, level).Inc()
}

// IncReportSent counts a delivered error report.
func (m *Metrics) IncReportSent() {
	if m == nil {
		return
	}
	m.ReportsSent.Inc()
}

// IncReportDropped counts an undelivered error report.
func (m *Metrics) IncReportDropped(reason string) {
	if m == nil {
		return
	}
	m.ReportsDropped.WithLabelValues(reason).Inc()
}

// IncSessionFailure counts a failed backend operation.
func (m *Metrics) IncSessionFailure(op string) {
	if m == nil {
		return
	}
	m.SessionFailures.WithLabelValues(op).Inc()
}

func outcome(status int) string {
	if status == 0 {
		return "network_error"
	}
	return strconv.Itoa(status/100) + "xx"
}
