// Package metrics exposes Prometheus instrumentation for the catalog service.
//
// A Metrics value owns its registry, records catalog activity through the
// catalog.Recorder methods and serves the scrape endpoint:
//
//	m := metrics.New()
//	c := catalog.New(store, logger, catalog.WithRecorder(m))
//	r.Use(m.Middleware())
//	r.Handle("/metrics", m.Handler())
package metrics

import (
	"bufio"
	"errors"
	"net"
	"net/http"
	"strconv"
	"time"

	"invoiceflow/internal/model"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "invoiceflow"

// Write outcomes used as the status label.
const (
	StatusSuccess = "success"
	StatusFailed  = "failed"
	StatusUnknown = "unknown"
)

// Metrics holds every collector the service exports.
type Metrics struct {
	registry *prometheus.Registry

	catalogProducts  prometheus.Gauge
	catalogLowStock  prometheus.Gauge
	snapshotsApplied prometheus.Counter
	storeWrites      *prometheus.CounterVec
	validations      *prometheus.CounterVec
	streamClients    prometheus.Gauge
	exports          *prometheus.CounterVec

	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	requestInFlight prometheus.Gauge
}

// New creates the collectors and registers them, with the Go runtime and
// process collectors, on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),

		catalogProducts: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "catalog",
			Name:      "products",
			Help:      "Number of products in the latest catalog snapshot.",
		}),
		catalogLowStock: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "catalog",
			Name:      "low_stock_products",
			Help:      "Number of products at or below their minimum stock.",
		}),
		snapshotsApplied: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "catalog",
			Name:      "snapshots_applied_total",
			Help:      "Total catalog snapshots applied from the store.",
		}),
		storeWrites: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "store",
			Name:      "writes_total",
			Help:      "Total store writes by operation and outcome.",
		}, []string{"operation", "status"}),
		validations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "catalog",
			Name:      "rejected_inputs_total",
			Help:      "Total writes rejected before reaching the store.",
		}, []string{"code"}),
		streamClients: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "stream",
			Name:      "clients",
			Help:      "Number of connected catalog stream clients.",
		}),
		exports: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "export",
			Name:      "workbooks_total",
			Help:      "Total workbook exports by sink and outcome.",
		}, []string{"sink", "status"}),

		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests in seconds.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
		requestTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests.",
		}, []string{"method", "route", "status"}),
		requestInFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_in_flight",
			Help:      "Number of HTTP requests currently being served.",
		}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.catalogProducts,
		m.catalogLowStock,
		m.snapshotsApplied,
		m.storeWrites,
		m.validations,
		m.streamClients,
		m.exports,
		m.requestDuration,
		m.requestTotal,
		m.requestInFlight,
	)

	return m
}

// Registry exposes the underlying registry for custom collectors.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// SnapshotApplied records the size of the catalog just applied.
func (m *Metrics) SnapshotApplied(products, lowStock int) {
	m.snapshotsApplied.Inc()
	m.catalogProducts.Set(float64(products))
	m.catalogLowStock.Set(float64(lowStock))
}

// WriteCompleted records the outcome of a store write.
func (m *Metrics) WriteCompleted(op string, err error) {
	m.storeWrites.WithLabelValues(op, outcome(err)).Inc()
}

// ValidationFailed records a write rejected locally.
func (m *Metrics) ValidationFailed(code string) {
	m.validations.WithLabelValues(code).Inc()
}

// StreamClients records how many stream clients are connected.
func (m *Metrics) StreamClients(n int) {
	m.streamClients.Set(float64(n))
}

// ExportCompleted records a workbook written to a sink.
func (m *Metrics) ExportCompleted(sink string, err error) {
	status := StatusSuccess
	if err != nil {
		status = StatusFailed
	}
	m.exports.WithLabelValues(sink, status).Inc()
}

func outcome(err error) string {
	switch {
	case err == nil:
		return StatusSuccess
	case model.UnknownOutcome(err):
		return StatusUnknown
	default:
		return StatusFailed
	}
}

// statusRecorder captures the status code written by a handler.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// Hijack passes through so the catalog stream can upgrade.
func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := r.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer does not support hijacking")
	}
	return h.Hijack()
}

// Middleware records duration, count and in-flight requests. Requests are
// labelled by chi route pattern so IDs do not explode cardinality.
func (m *Metrics) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			m.requestInFlight.Inc()
			defer m.requestInFlight.Dec()

			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r)

			route := "unmatched"
			if rctx := chi.RouteContext(r.Context()); rctx != nil {
				if pattern := rctx.RoutePattern(); pattern != "" {
					route = pattern
				}
			}
			status := strconv.Itoa(rec.status)

			m.requestDuration.WithLabelValues(r.Method, route, status).Observe(time.Since(start).Seconds())
			m.requestTotal.WithLabelValues(r.Method, route, status).Inc()
		})
	}
}

// Handler serves the scrape endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
}
