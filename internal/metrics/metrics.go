// Package metrics exposes Prometheus metrics for allocation, prediction
// and the HTTP surface. A nil *Metrics is valid and records nothing.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "patrolplan"

// Metrics holds every collector the service records to.
type Metrics struct {
	registry *prometheus.Registry

	allocationRuns     *prometheus.CounterVec
	allocationDuration prometheus.Histogram
	planRejections     *prometheus.CounterVec

	predictionFallbacks *prometheus.CounterVec
	trainingRuns        *prometheus.CounterVec
	modelAccuracy       prometheus.Gauge

	schedulerTicks *prometheus.CounterVec

	intelligenceReports *prometheus.CounterVec

	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	streamClients *prometheus.GaugeVec
}

// New registers all collectors on a fresh registry, together with the
// Go runtime and process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	auto := promauto.With(reg)

	return &Metrics{
		registry: reg,
		allocationRuns: auto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "allocation",
			Name: "runs_total",
			Help: "Allocation writes by source (model or plan).",
		}, []string{"source"}),
		allocationDuration: auto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace, Subsystem: "allocation",
			Name:    "run_duration_seconds",
			Help:    "Duration of a full reallocation including prediction.",
			Buckets: prometheus.DefBuckets,
		}),
		planRejections: auto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "allocation",
			Name: "plan_rejections_total",
			Help: "Allocation plans rejected before any write, by reason.",
		}, []string{"reason"}),
		predictionFallbacks: auto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "prediction",
			Name: "fallbacks_total",
			Help: "Risk predictions served by a fallback path.",
		}, []string{"path"}),
		trainingRuns: auto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "prediction",
			Name: "training_runs_total",
			Help: "Model training attempts by result.",
		}, []string{"result"}),
		modelAccuracy: auto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "prediction",
			Name: "model_accuracy",
			Help: "Accuracy of the active model on its training set.",
		}),
		schedulerTicks: auto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "scheduler",
			Name: "ticks_total",
			Help: "Retraining scheduler ticks by outcome.",
		}, []string{"outcome"}),
		intelligenceReports: auto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "intelligence",
			Name: "reports_total",
			Help: "Accepted intelligence reports by type.",
		}, []string{"type"}),
		httpRequests: auto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "http",
			Name: "requests_total",
			Help: "HTTP requests by method and status code.",
		}, []string{"method", "status"}),
		httpRequestDuration: auto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Subsystem: "http",
			Name:    "request_duration_seconds",
			Help:    "HTTP request latency by method.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method"}),
		streamClients: auto.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "stream",
			Name: "clients",
			Help: "Connected push clients by transport.",
		}, []string{"transport"}),
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) AllocationRun(source string, d time.Duration) {
	if m == nil {
		return
	}
	m.allocationRuns.WithLabelValues(source).Inc()
	if d > 0 {
		m.allocationDuration.Observe(d.Seconds())
	}
}

func (m *Metrics) PlanRejected(reason string) {
	if m == nil {
		return
	}
	m.planRejections.WithLabelValues(reason).Inc()
}

// PredictionFallback counts a prediction served by path
// ("severity" or "default").
func (m *Metrics) PredictionFallback(path string) {
	if m == nil {
		return
	}
	m.predictionFallbacks.WithLabelValues(path).Inc()
}

func (m *Metrics) TrainingRun(ok bool, accuracy float64) {
	if m == nil {
		return
	}
	if !ok {
		m.trainingRuns.WithLabelValues("failed").Inc()
		return
	}
	m.trainingRuns.WithLabelValues("succeeded").Inc()
	m.modelAccuracy.Set(accuracy)
}

func (m *Metrics) SchedulerTick(outcome string) {
	if m == nil {
		return
	}
	m.schedulerTicks.WithLabelValues(outcome).Inc()
}

func (m *Metrics) IntelligenceReported(eventType string) {
	if m == nil {
		return
	}
	m.intelligenceReports.WithLabelValues(eventType).Inc()
}

func (m *Metrics) HTTPRequest(method string, status int, d time.Duration) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(method, strconv.Itoa(status)).Inc()
	m.httpRequestDuration.WithLabelValues(method).Observe(d.Seconds())
}

// StreamClients adjusts the connected client gauge for transport
// ("ws" or "sse") by delta.
func (m *Metrics) StreamClients(transport string, delta int) {
	if m == nil {
		return
	}
	m.streamClients.WithLabelValues(transport).Add(float64(delta))
}
