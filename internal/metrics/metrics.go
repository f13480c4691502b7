// Package metrics exposes the service's Prometheus collectors.
package metrics

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	globalMetrics *Metrics
	metricsOnce   sync.Once
)

// Metrics holds the FlexiBoard collectors.
type Metrics struct {
	HTTPRequestsTotal *prometheus.CounterVec
	HTTPDuration      *prometheus.HistogramVec

	AutomationRunsTotal *prometheus.CounterVec
	DeferredTotal       *prometheus.CounterVec
	BoardSavesTotal     *prometheus.CounterVec

	SchedulerSweeps prometheus.Counter
	SweepDuration   prometheus.Histogram
	RealtimeClients *prometheus.GaugeVec
	TemplatesLoaded prometheus.Gauge
}

// New creates and registers the collectors once per process; later calls
// return the same instance so tests and reloads never double-register.
func New() *Metrics {
	metricsOnce.Do(func() {
		globalMetrics = &Metrics{
			HTTPRequestsTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "flexiboard_http_requests_total",
					Help: "Total HTTP requests by route and status code",
				},
				[]string{"method", "route", "code"},
			),
			HTTPDuration: promauto.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "flexiboard_http_request_duration_seconds",
					Help:    "HTTP request latency",
					Buckets: prometheus.ExponentialBuckets(0.001, 2, 12), // 1ms to ~4s
				},
				[]string{"method", "route"},
			),
			AutomationRunsTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "flexiboard_automation_runs_total",
					Help: "Automation runs by outcome",
				},
				[]string{"result"}, // "ok" or "error"
			),
			DeferredTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "flexiboard_deferred_actions_total",
					Help: "Delayed automation actions by lifecycle stage",
				},
				[]string{"stage"}, // "queued", "executed", "failed"
			),
			BoardSavesTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "flexiboard_board_saves_total",
					Help: "Board document writes by outcome",
				},
				[]string{"result"}, // "ok", "conflict", "error"
			),
			SchedulerSweeps: promauto.NewCounter(
				prometheus.CounterOpts{
					Name: "flexiboard_scheduler_sweeps_total",
					Help: "Completed automation scheduler sweeps",
				},
			),
			SweepDuration: promauto.NewHistogram(
				prometheus.HistogramOpts{
					Name:    "flexiboard_scheduler_sweep_duration_seconds",
					Help:    "Duration of one scheduler sweep",
					Buckets: prometheus.ExponentialBuckets(0.001, 2, 14),
				},
			),
			RealtimeClients: promauto.NewGaugeVec(
				prometheus.GaugeOpts{
					Name: "flexiboard_realtime_clients",
					Help: "Connected realtime clients by transport",
				},
				[]string{"transport"}, // "sse" or "ws"
			),
			TemplatesLoaded: promauto.NewGauge(
				prometheus.GaugeOpts{
					Name: "flexiboard_templates_loaded",
					Help: "Board templates currently registered",
				},
			),
		}
	})
	return globalMetrics
}

// RecordAutomationRuns counts finished automation runs.
func (m *Metrics) RecordAutomationRuns(ok, failed int) {
	if ok > 0 {
		m.AutomationRunsTotal.WithLabelValues("ok").Add(float64(ok))
	}
	if failed > 0 {
		m.AutomationRunsTotal.WithLabelValues("error").Add(float64(failed))
	}
}

// RecordBoardSave counts a board write by result.
func (m *Metrics) RecordBoardSave(result string) {
	m.BoardSavesTotal.WithLabelValues(result).Inc()
}

// RecordDeferred counts a deferred action transition.
func (m *Metrics) RecordDeferred(stage string, n int) {
	if n > 0 {
		m.DeferredTotal.WithLabelValues(stage).Add(float64(n))
	}
}

// RecordSweep records one scheduler sweep.
func (m *Metrics) RecordSweep(d time.Duration) {
	m.SchedulerSweeps.Inc()
	m.SweepDuration.Observe(d.Seconds())
}

// TrackClient adjusts the realtime client gauge for a transport by delta.
func (m *Metrics) TrackClient(transport string, delta int) {
	m.RealtimeClients.WithLabelValues(transport).Add(float64(delta))
}

// Handler serves the default registry in the Prometheus text format.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Middleware instruments HTTP handlers, labelling by chi route pattern so
// path parameters do not explode cardinality.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rc := chi.RouteContext(r.Context()); rc != nil {
			if p := rc.RoutePattern(); p != "" {
				route = p
			}
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		m.HTTPRequestsTotal.WithLabelValues(r.Method, route, strconv.Itoa(status)).Inc()
		m.HTTPDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}
