package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	Registry *prometheus.Registry

	Operations   *prometheus.CounterVec
	RateLimited  *prometheus.CounterVec
	Sessions     *prometheus.CounterVec
	MailFailures prometheus.Counter
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		Registry: reg,
		Operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "auth_operations_total",
			Help: "Credential lifecycle operations by outcome",
		}, []string{"operation", "outcome"}),
		RateLimited: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "auth_rate_limited_total",
			Help: "Requests rejected by the rate limiter",
		}, []string{"scope"}),
		Sessions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "auth_session_checks_total",
			Help: "Session credential checks by result",
		}, []string{"result"}),
		MailFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "auth_mail_failures_total",
			Help: "Emails the transport failed to accept",
		}),
	}
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.Operations, m.RateLimited, m.Sessions, m.MailFailures,
	)
	return m
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{Registry: m.Registry})
}

// Observe is nil-safe so callers without metrics need no guard.
func (m *Metrics) Observe(operation, outcome string) {
	if m == nil {
		return
	}
	m.Operations.WithLabelValues(operation, outcome).Inc()
}

func (m *Metrics) Session(result string) {
	if m == nil {
		return
	}
	m.Sessions.WithLabelValues(result).Inc()
}

func (m *Metrics) MailFailed() {
	if m == nil {
		return
	}
	m.MailFailures.Inc()
}
