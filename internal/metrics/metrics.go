package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/fx"
)

const namespace = "autobill"

// Run outcomes of the daily check
const (
	OutcomeSuccess        = "success"
	OutcomeFailure        = "failure"
	OutcomeAlreadyRunning = "already_running"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	registry *prometheus.Registry

	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// Daily check metrics
	DailyCheckRunsTotal     *prometheus.CounterVec
	DailyCheckDuration      prometheus.Histogram
	RecordsCreatedTotal     prometheus.Counter
	CustomersSkippedTotal   *prometheus.CounterVec
	MissedDueDatesTotal     prometheus.Counter
	StatusTransitionsTotal  *prometheus.CounterVec
	LedgerReconciledPeriods *prometheus.CounterVec
}

// Module provides a dedicated registry and the metrics registered on it
func Module() fx.Option {
	return fx.Provide(
		NewRegistry,
		NewMetrics,
	)
}

// NewRegistry returns a registry carrying the go and process collectors
func NewRegistry() *prometheus.Registry {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return registry
}

// NewMetrics creates and registers all Prometheus metrics
func NewMetrics(registry *prometheus.Registry) *Metrics {
	m := &Metrics{
		registry: registry,

		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),

		DailyCheckRunsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "daily_check_runs_total",
				Help:      "Daily billing checks by outcome",
			},
			[]string{"outcome"},
		),
		DailyCheckDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "daily_check_duration_seconds",
				Help:      "Daily billing check duration in seconds",
				Buckets:   prometheus.ExponentialBuckets(0.05, 2, 12),
			},
		),
		RecordsCreatedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "billing_records_created_total",
				Help:      "Automatic billing records created",
			},
		),
		CustomersSkippedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "customers_skipped_total",
				Help:      "Customers skipped by the daily check",
			},
			[]string{"reason"},
		),
		MissedDueDatesTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "missed_due_dates_total",
				Help:      "Next unpaid periods whose due date passed without a record",
			},
		),
		StatusTransitionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "billing_record_status_transitions_total",
				Help:      "Billing record status changes",
			},
			[]string{"from", "to"},
		),
		LedgerReconciledPeriods: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "ledger_reconciled_periods_total",
				Help:      "Paid periods added or removed by ledger reconciliation",
			},
			[]string{"change"},
		),
	}

	registry.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.DailyCheckRunsTotal,
		m.DailyCheckDuration,
		m.RecordsCreatedTotal,
		m.CustomersSkippedTotal,
		m.MissedDueDatesTotal,
		m.StatusTransitionsTotal,
		m.LedgerReconciledPeriods,
	)
	return m
}

// NewNopMetrics registers on a throwaway registry, used in tests
func NewNopMetrics() *Metrics {
	return NewMetrics(prometheus.NewRegistry())
}

// Handler serves the registry in the prometheus text format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveDailyCheck records one finished run
func (m *Metrics) ObserveDailyCheck(outcome string, created int, took time.Duration) {
	m.DailyCheckRunsTotal.WithLabelValues(outcome).Inc()
	m.DailyCheckDuration.Observe(took.Seconds())
	m.RecordsCreatedTotal.Add(float64(created))
}

// GinMiddleware counts and times every request by route template
func (m *Metrics) GinMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		m.HTTPRequestsTotal.WithLabelValues(c.Request.Method, path, strconv.Itoa(c.Writer.Status())).Inc()
		m.HTTPRequestDuration.WithLabelValues(c.Request.Method, path).Observe(time.Since(start).Seconds())
	}
}
