package registry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	kindClient   = "client"
	kindUpstream = "upstream"
)

type registryMetrics struct {
	opened     *prometheus.CounterVec
	active     *prometheus.GaugeVec
	dialErrors prometheus.Counter
	acceptErrs prometheus.Counter
}

func newRegistryMetrics(r prometheus.Registerer, namespace string) *registryMetrics {
	if r == nil {
		r = prometheus.NewRegistry() // This registry will be discarded.
	}
	f := promauto.With(r)
	l := []string{"kind"}

	return &registryMetrics{
		opened: f.NewCounterVec(prometheus.CounterOpts{
			Name:      "registry_cx_total",
			Namespace: namespace,
			Help:      "Number of connections added to the registry",
		}, l),
		active: f.NewGaugeVec(prometheus.GaugeOpts{
			Name:      "registry_cx_active",
			Namespace: namespace,
			Help:      "Number of connections currently held by the registry",
		}, l),
		dialErrors: f.NewCounter(prometheus.CounterOpts{
			Name:      "upstream_dial_errors_total",
			Namespace: namespace,
			Help:      "Number of failed upstream connection attempts",
		}),
		acceptErrs: f.NewCounter(prometheus.CounterOpts{
			Name:      "listener_errors_total",
			Namespace: namespace,
			Help:      "Number of listener errors when accepting connections",
		}),
	}
}

func (m *registryMetrics) open(kind string) {
	m.opened.WithLabelValues(kind).Inc()
	m.active.WithLabelValues(kind).Inc()
}

func (m *registryMetrics) close(kind string) {
	m.active.WithLabelValues(kind).Dec()
}

func (m *registryMetrics) dialError() {
	m.dialErrors.Inc()
}

func (m *registryMetrics) acceptError() {
	m.acceptErrs.Inc()
}
