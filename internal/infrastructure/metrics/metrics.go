package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Prygunov-Andrei/finance-sub003/internal/application/port"
)

// Metrics records invoice lifecycle signals in Prometheus
type Metrics struct {
	registry           *prometheus.Registry
	transitions        *prometheus.CounterVec
	transitionDuration *prometheus.HistogramVec
	generations        *prometheus.CounterVec
	webhooks           *prometheus.CounterVec
}

// New creates the lifecycle metrics on a dedicated registry
func New() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "payables_invoice_transitions_total",
			Help: "Invoice transition attempts by action and result.",
		}, []string{"action", "result"}),
		transitionDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "payables_invoice_transition_duration_seconds",
			Help:    "Latency of invoice transitions including the event log write.",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		}, []string{"action"}),
		generations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "payables_recurring_generations_total",
			Help: "Recurring payment generation outcomes.",
		}, []string{"result"}),
		webhooks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "payables_webhook_requests_total",
			Help: "Inbound CRM webhook requests by outcome.",
		}, []string{"status"}),
	}

	registry.MustRegister(
		m.transitions,
		m.transitionDuration,
		m.generations,
		m.webhooks,
		prometheus.NewGoCollector(),
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
	)
	return m
}

// ObserveTransition records one transition attempt
func (m *Metrics) ObserveTransition(action, result string, duration time.Duration) {
	m.transitions.WithLabelValues(action, result).Inc()
	m.transitionDuration.WithLabelValues(action).Observe(duration.Seconds())
}

// ObserveGeneration records recurring generation outcomes
func (m *Metrics) ObserveGeneration(result string, count int) {
	if count <= 0 {
		return
	}
	m.generations.WithLabelValues(result).Add(float64(count))
}

// ObserveWebhook records one inbound webhook outcome
func (m *Metrics) ObserveWebhook(status string) {
	m.webhooks.WithLabelValues(status).Inc()
}

// Handler exposes the registry in the Prometheus text format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Verify interface compliance
var _ port.TransitionObserver = (*Metrics)(nil)
