// Package metrics Prometheus collectors of the pagestash server
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "pagestash"

type Metrics struct {
	StepsTotal   *prometheus.CounterVec
	PassesTotal  *prometheus.CounterVec
	PassDuration prometheus.Histogram
	PageCount    prometheus.Gauge
	TasksTotal   *prometheus.CounterVec

	RPCTotal   *prometheus.CounterVec
	RPCLatency *prometheus.HistogramVec

	CacheTotal *prometheus.CounterVec

	gatherer prometheus.Gatherer
}

// New creates the collectors and registers them with reg
func New(reg *prometheus.Registry) *Metrics {
	m := &Metrics{
		StepsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "maintainer",
			Name:      "steps_total",
			Help:      "Maintenance steps by result.",
		}, []string{"result"}),
		PassesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "maintainer",
			Name:      "passes_total",
			Help:      "Maintenance passes by result.",
		}, []string{"result"}),
		PassDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "maintainer",
			Name:      "pass_duration_seconds",
			Help:      "Wall time of completed maintenance passes.",
			Buckets:   prometheus.ExponentialBuckets(0.01, 4, 10),
		}),
		PageCount: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "maintainer",
			Name:      "pages",
			Help:      "Pages written by the last completed pass.",
		}),
		TasksTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "taskqueue",
			Name:      "deliveries_total",
			Help:      "Task deliveries by kind and result.",
		}, []string{"kind", "result"}),
		RPCTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "rpc",
			Name:      "requests_total",
			Help:      "RPC requests by method and status code.",
		}, []string{"method", "code"}),
		RPCLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "rpc",
			Name:      "latency_seconds",
			Help:      "RPC handling latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method"}),
		CacheTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "lookups_total",
			Help:      "Page cache lookups by result.",
		}, []string{"result"}),
		gatherer: reg,
	}

	reg.MustRegister(
		m.StepsTotal,
		m.PassesTotal,
		m.PassDuration,
		m.PageCount,
		m.TasksTotal,
		m.RPCTotal,
		m.RPCLatency,
		m.CacheTotal,
	)
	return m
}

// NewUnregistered is for tests and tools that do not export metrics
func NewUnregistered() *Metrics {
	return New(prometheus.NewRegistry())
}

// Handler serves the registry in the Prometheus text format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}
