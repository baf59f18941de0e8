// Package metrics exposes Prometheus metrics for the relay.
//
// A nil *Collector is valid and records nothing, so components can take one
// unconditionally.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "toolrelay"

// Collector holds the relay's metrics on a private registry.
type Collector struct {
	reg *prometheus.Registry

	connections       prometheus.Gauge
	messagesTotal     *prometheus.CounterVec
	errorsTotal       *prometheus.CounterVec
	registrations     prometheus.Counter
	executionsTotal   *prometheus.CounterVec
	executionDuration prometheus.Histogram
	droppedTotal      prometheus.Counter
}

// New creates a Collector with Go runtime and process collectors attached.
func New() *Collector {
	reg := prometheus.NewRegistry()
	f := factory{reg}

	c := &Collector{reg: reg}

	c.connections = f.gauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "connections",
		Help:      "Number of connected peers",
	})

	c.messagesTotal = f.counterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "messages_total",
		Help:      "Inbound messages by type",
	}, []string{"type"})

	c.errorsTotal = f.counterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "errors_total",
		Help:      "Error responses sent, by code",
	}, []string{"code"})

	c.registrations = f.counter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "registrations_total",
		Help:      "Successful tool registrations",
	})

	c.executionsTotal = f.counterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "executions_total",
		Help:      "Finished executions by terminal status",
	}, []string{"status"})

	c.executionDuration = f.histogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "execution_duration_seconds",
		Help:      "Execution duration from begin to terminal status",
		Buckets:   []float64{0.005, 0.025, 0.1, 0.5, 1, 5, 30, 120, 300},
	})

	c.droppedTotal = f.counter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "dropped_messages_total",
		Help:      "Outbound messages dropped for slow peers",
	})

	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return c
}

type factory struct{ reg prometheus.Registerer }

func (f factory) gauge(opts prometheus.GaugeOpts) prometheus.Gauge {
	g := prometheus.NewGauge(opts)
	f.reg.MustRegister(g)
	return g
}

func (f factory) counter(opts prometheus.CounterOpts) prometheus.Counter {
	c := prometheus.NewCounter(opts)
	f.reg.MustRegister(c)
	return c
}

func (f factory) counterVec(opts prometheus.CounterOpts, labels []string) *prometheus.CounterVec {
	c := prometheus.NewCounterVec(opts, labels)
	f.reg.MustRegister(c)
	return c
}

func (f factory) histogram(opts prometheus.HistogramOpts) prometheus.Histogram {
	h := prometheus.NewHistogram(opts)
	f.reg.MustRegister(h)
	return h
}

// Handler serves the registry in the Prometheus text format.
func (c *Collector) Handler() http.Handler {
	if c == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(c.reg, promhttp.HandlerOpts{})
}

// Registry exposes the underlying registry, mainly for tests.
func (c *Collector) Registry() *prometheus.Registry { return c.reg }

func (c *Collector) PeerConnected() {
	if c != nil {
		c.connections.Inc()
	}
}

func (c *Collector) PeerDisconnected() {
	if c != nil {
		c.connections.Dec()
	}
}

func (c *Collector) Message(msgType string) {
	if c != nil {
		c.messagesTotal.WithLabelValues(msgType).Inc()
	}
}

func (c *Collector) Error(code string) {
	if c != nil {
		c.errorsTotal.WithLabelValues(code).Inc()
	}
}

func (c *Collector) Registered() {
	if c != nil {
		c.registrations.Inc()
	}
}

// Finished records a terminal execution.
func (c *Collector) Finished(status string, d time.Duration) {
	if c != nil {
		c.executionsTotal.WithLabelValues(status).Inc()
		c.executionDuration.Observe(d.Seconds())
	}
}

func (c *Collector) Dropped() {
	if c != nil {
		c.droppedTotal.Inc()
	}
}
