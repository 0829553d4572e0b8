// Package metrics exposes Prometheus instrumentation: generic HTTP
// metrics through the echo middleware plus counters for the pipeline
// stages (ticks, scanning, enrichment, proposals, exports).
package metrics

import (
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics. A nil *Metrics records
// nothing, so components can leave instrumentation unwired.
type Metrics struct {
	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
	HTTPRequestSize     *prometheus.HistogramVec
	HTTPResponseSize    *prometheus.HistogramVec

	// Pipeline metrics
	BackfillTicks        *prometheus.CounterVec
	MessagesScanned      prometheus.Counter
	CandidatesDiscovered prometheus.Counter
	EnrichmentOutcomes   *prometheus.CounterVec
	ProposalsEmitted     prometheus.Counter
	ProposalsResolved    *prometheus.CounterVec
	ExportsCreated       *prometheus.CounterVec
}

// New creates a Metrics instance registered on the default registry.
func New() *Metrics {
	return NewWith(prometheus.DefaultRegisterer)
}

// NewWith creates a Metrics instance on the given registerer. Tests
// use a private registry to avoid duplicate registration.
func NewWith(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		// HTTP metrics
		HTTPRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestSize: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_size_bytes",
				Help:    "HTTP request size in bytes",
				Buckets: []float64{100, 1000, 5000, 10000, 50000, 100000, 500000, 1000000},
			},
			[]string{"method", "path"},
		),
		HTTPResponseSize: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_response_size_bytes",
				Help:    "HTTP response size in bytes",
				Buckets: []float64{100, 1000, 5000, 10000, 50000, 100000, 500000, 1000000},
			},
			[]string{"method", "path"},
		),

		// Pipeline metrics
		BackfillTicks: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "backfill_ticks_total",
				Help: "Total number of backfill ticks executed",
			},
			[]string{"result"}, // ok, failed
		),
		MessagesScanned: factory.NewCounter(prometheus.CounterOpts{
			Name: "mailbox_messages_scanned_total",
			Help: "Total number of mailbox messages scanned",
		}),
		CandidatesDiscovered: factory.NewCounter(prometheus.CounterOpts{
			Name: "candidates_discovered_total",
			Help: "Total number of new supplier candidates discovered",
		}),
		EnrichmentOutcomes: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "enrichment_outcomes_total",
				Help: "Total number of enrichment verdicts by outcome",
			},
			[]string{"outcome"}, // imported, dismissed, needs_review, skipped, failed
		),
		ProposalsEmitted: factory.NewCounter(prometheus.CounterOpts{
			Name: "proposals_emitted_total",
			Help: "Total number of status proposals emitted by detection",
		}),
		ProposalsResolved: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "proposals_resolved_total",
				Help: "Total number of status proposals resolved",
			},
			[]string{"action"}, // accept, reject
		),
		ExportsCreated: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "exports_created_total",
				Help: "Total number of exports created",
			},
			[]string{"kind"}, // candidates, suppliers
		),
	}
}

// Middleware creates an Echo middleware for Prometheus metrics.
func (m *Metrics) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			req := c.Request()
			path := c.Path() // route pattern, not the raw path

			if req.ContentLength > 0 {
				m.HTTPRequestSize.WithLabelValues(req.Method, path).Observe(float64(req.ContentLength))
			}

			err := next(c)

			status := c.Response().Status
			duration := time.Since(start).Seconds()

			m.HTTPRequestsTotal.WithLabelValues(req.Method, path, strconv.Itoa(status)).Inc()
			m.HTTPRequestDuration.WithLabelValues(req.Method, path, strconv.Itoa(status)).Observe(duration)
			m.HTTPResponseSize.WithLabelValues(req.Method, path).Observe(float64(c.Response().Size))

			return err
		}
	}
}

// RecordTick counts one backfill tick.
func (m *Metrics) RecordTick(success bool) {
	if m == nil {
		return
	}
	result := "failed"
	if success {
		result = "ok"
	}
	m.BackfillTicks.WithLabelValues(result).Inc()
}

// RecordScanned adds scanned mailbox messages.
func (m *Metrics) RecordScanned(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.MessagesScanned.Add(float64(n))
}

// RecordDiscovered adds newly discovered candidates.
func (m *Metrics) RecordDiscovered(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.CandidatesDiscovered.Add(float64(n))
}

// RecordEnrichmentOutcome adds enrichment verdicts for one outcome.
func (m *Metrics) RecordEnrichmentOutcome(outcome string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.EnrichmentOutcomes.WithLabelValues(outcome).Add(float64(n))
}

// RecordProposalsEmitted adds emitted status proposals.
func (m *Metrics) RecordProposalsEmitted(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.ProposalsEmitted.Add(float64(n))
}

// RecordProposalResolved counts one proposal resolution.
func (m *Metrics) RecordProposalResolved(action string) {
	if m == nil {
		return
	}
	m.ProposalsResolved.WithLabelValues(action).Inc()
}

// RecordExportCreated counts one created export.
func (m *Metrics) RecordExportCreated(kind string) {
	if m == nil {
		return
	}
	m.ExportsCreated.WithLabelValues(kind).Inc()
}
