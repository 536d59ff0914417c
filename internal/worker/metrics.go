package worker

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	outcomeRelayed        = "relayed"
	outcomeGatewayTimeout = "gateway_timeout"
	outcomeMalformedURL   = "malformed_url"
	outcomeUnknownHost    = "unknown_host"
	outcomeBlocked        = "blocked"
	outcomeError          = "error"
	outcomePanic          = "panic"
)

type poolMetrics struct {
	jobs     *prometheus.CounterVec
	duration prometheus.Histogram
	busy     prometheus.Gauge
}

func newPoolMetrics(r prometheus.Registerer, namespace string, queueLen func() float64) *poolMetrics {
	if r == nil {
		r = prometheus.NewRegistry() // This registry will be discarded.
	}
	f := promauto.With(r)

	f.NewGaugeFunc(prometheus.GaugeOpts{
		Name:      "queue_depth",
		Namespace: namespace,
		Help:      "Number of accepted requests waiting for a worker",
	}, queueLen)

	return &poolMetrics{
		jobs: f.NewCounterVec(prometheus.CounterOpts{
			Name:      "worker_jobs_total",
			Namespace: namespace,
			Help:      "Number of jobs processed, by outcome",
		}, []string{"outcome"}),
		duration: f.NewHistogram(prometheus.HistogramOpts{
			Name:      "worker_job_duration_seconds",
			Namespace: namespace,
			Help:      "Time from dequeue to client close",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 12),
		}),
		busy: f.NewGauge(prometheus.GaugeOpts{
			Name:      "worker_busy",
			Namespace: namespace,
			Help:      "Number of workers currently processing a job",
		}),
	}
}

func (m *poolMetrics) start() {
	m.busy.Inc()
}

func (m *poolMetrics) done(outcome string, d time.Duration) {
	m.busy.Dec()
	m.jobs.WithLabelValues(outcome).Inc()
	m.duration.Observe(d.Seconds())
}
