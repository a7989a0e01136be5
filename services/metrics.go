package services

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the Prometheus collectors for the polling pipeline.
// All methods are safe on a nil receiver so components can run without metrics.
type Metrics struct {
	registry *prometheus.Registry

	CycleDuration   prometheus.Histogram
	CycleFailures   prometheus.Counter
	NodesObserved   *prometheus.GaugeVec
	CreditsEligible prometheus.Gauge
	ActivityEvents  *prometheus.CounterVec
	AlertsSent      *prometheus.CounterVec
	DispatchErrors  *prometheus.CounterVec
}

// NewMetrics creates the collectors on a private registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		CycleDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "xandpulse_cycle_duration_seconds",
			Help:    "Duration of a full collect/diff/alert cycle",
			Buckets: prometheus.DefBuckets,
		}),
		CycleFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "xandpulse_cycle_failures_total",
			Help: "Polling cycles that could not collect any nodes",
		}),
		NodesObserved: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "xandpulse_nodes_observed",
			Help: "Nodes seen in the latest cycle by status",
		}, []string{"status"}),
		CreditsEligible: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "xandpulse_credits_eligible_nodes",
			Help: "Nodes at or above the credits eligibility threshold",
		}),
		ActivityEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "xandpulse_activity_events_total",
			Help: "Activity feed events emitted by type",
		}, []string{"type"}),
		AlertsSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "xandpulse_alerts_sent_total",
			Help: "Alert notifications delivered by type and channel",
		}, []string{"type", "channel"}),
		DispatchErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "xandpulse_alert_dispatch_errors_total",
			Help: "Failed alert deliveries by channel",
		}, []string{"channel"}),
	}

	m.registry.MustRegister(
		m.CycleDuration,
		m.CycleFailures,
		m.NodesObserved,
		m.CreditsEligible,
		m.ActivityEvents,
		m.AlertsSent,
		m.DispatchErrors,
	)

	return m
}

// Handler exposes the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) ObserveCycle(seconds float64) {
	if m != nil {
		m.CycleDuration.Observe(seconds)
	}
}

func (m *Metrics) CycleFailed() {
	if m != nil {
		m.CycleFailures.Inc()
	}
}

func (m *Metrics) SetNodeCounts(byStatus map[string]int) {
	if m == nil {
		return
	}
	m.NodesObserved.Reset()
	for status, n := range byStatus {
		m.NodesObserved.WithLabelValues(status).Set(float64(n))
	}
}

func (m *Metrics) SetEligible(n int) {
	if m != nil {
		m.CreditsEligible.Set(float64(n))
	}
}

func (m *Metrics) ActivityEvent(eventType string) {
	if m != nil {
		m.ActivityEvents.WithLabelValues(eventType).Inc()
	}
}

func (m *Metrics) AlertSent(alertType, channel string) {
	if m != nil {
		m.AlertsSent.WithLabelValues(alertType, channel).Inc()
	}
}

func (m *Metrics) DispatchError(channel string) {
	if m != nil {
		m.DispatchErrors.WithLabelValues(channel).Inc()
	}
}
