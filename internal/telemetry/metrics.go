package telemetry

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics owns a private registry so tests can build as many as they like
// without colliding on the default one.
type Metrics struct {
	Registry *prometheus.Registry

	AuditEvents        *prometheus.CounterVec
	AuditWriteFailures *prometheus.CounterVec
	CodeConflicts      prometheus.Counter
	CodeRetries        prometheus.Counter
}

func NewMetrics() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		AuditEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "pmtrack",
			Name:      "audit_events_total",
			Help:      "Audit events stored, by action.",
		}, []string{"action"}),
		AuditWriteFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "pmtrack",
			Name:      "audit_write_failures_total",
			Help:      "Audit events dropped, by failure reason.",
		}, []string{"reason"}),
		CodeConflicts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "pmtrack",
			Name:      "project_code_conflicts_total",
			Help:      "Project creations that collided on the code twice and were rejected.",
		}),
		CodeRetries: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "pmtrack",
			Name:      "project_code_retries_total",
			Help:      "Project creations retried after a duplicate code.",
		}),
	}

	m.Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.AuditEvents,
		m.AuditWriteFailures,
		m.CodeConflicts,
		m.CodeRetries,
	)
	return m
}

// Handler exposes the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{Registry: m.Registry})
}
