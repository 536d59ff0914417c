package proxy

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	requestQueued         = "queued"
	requestNotImplemented = "not_implemented"
	requestProtocolError  = "protocol_error"
	requestIOError        = "io_error"
)

type serverMetrics struct {
	requests *prometheus.CounterVec
}

func newServerMetrics(r prometheus.Registerer, namespace string) *serverMetrics {
	if r == nil {
		r = prometheus.NewRegistry() // This registry will be discarded.
	}
	f := promauto.With(r)

	return &serverMetrics{
		requests: f.NewCounterVec(prometheus.CounterOpts{
			Name:      "acceptor_requests_total",
			Namespace: namespace,
			Help:      "Number of client requests read by the acceptor, by outcome",
		}, []string{"outcome"}),
	}
}

func (m *serverMetrics) request(outcome string) {
	m.requests.WithLabelValues(outcome).Inc()
}
