// Package metrics exposes Prometheus metrics for the WebSocket bridge.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector registers and records all bridge metrics against one Prometheus
// registry. A nil *Collector is valid and records nothing, so callers can
// leave metrics unconfigured in tests.
type Collector struct {
	registry *prometheus.Registry

	connectionsOpened *prometheus.CounterVec
	connectionsClosed *prometheus.CounterVec
	openConnections   prometheus.Gauge
	messagesReceived  *prometheus.CounterVec
	messagesSent      *prometheus.CounterVec
	handlerErrors     *prometheus.CounterVec
	duration          *prometheus.HistogramVec
}

// NewCollector creates a Collector in the given namespace. If registry is
// nil, a fresh registry is used.
func NewCollector(namespace string, registry *prometheus.Registry) *Collector {
	if registry == nil {
		registry = prometheus.NewRegistry()
	}
	if namespace == "" {
		namespace = "wsbridge"
	}

	c := &Collector{
		registry: registry,
		connectionsOpened: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "connections_opened_total",
			Help:      "WebSocket connections accepted, by route.",
		}, []string{"route"}),
		connectionsClosed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "connections_closed_total",
			Help:      "WebSocket connections closed, by route and close code.",
		}, []string{"route", "code"}),
		openConnections: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "open_connections",
			Help:      "WebSocket connections currently open.",
		}),
		messagesReceived: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_received_total",
			Help:      "Data messages received from peers, by route.",
		}, []string{"route"}),
		messagesSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_sent_total",
			Help:      "Data messages sent to peers, by route.",
		}, []string{"route"}),
		handlerErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "handler_errors_total",
			Help:      "Handler failures on WebSocket routes.",
		}, []string{"route"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "connection_duration_seconds",
			Help:      "Lifetime of closed WebSocket connections.",
			Buckets:   []float64{0.1, 1, 10, 60, 300, 1800, 3600, 14400},
		}, []string{"route"}),
	}

	registry.MustRegister(
		c.connectionsOpened,
		c.connectionsClosed,
		c.openConnections,
		c.messagesReceived,
		c.messagesSent,
		c.handlerErrors,
		c.duration,
	)
	return c
}

// ConnectionOpened records an accepted connection.
func (c *Collector) ConnectionOpened(route string) {
	if c == nil {
		return
	}
	c.connectionsOpened.WithLabelValues(route).Inc()
	c.openConnections.Inc()
}

// ConnectionClosed records a finished connection with its close code, total
// lifetime and message counts.
func (c *Collector) ConnectionClosed(route string, code int, lifetime time.Duration, received, sent int64) {
	if c == nil {
		return
	}
	c.connectionsClosed.WithLabelValues(route, strconv.Itoa(code)).Inc()
	c.openConnections.Dec()
	c.duration.WithLabelValues(route).Observe(lifetime.Seconds())
	c.messagesReceived.WithLabelValues(route).Add(float64(received))
	c.messagesSent.WithLabelValues(route).Add(float64(sent))
}

// HandlerError records a handler failure on a WebSocket route.
func (c *Collector) HandlerError(route string) {
	if c == nil {
		return
	}
	c.handlerErrors.WithLabelValues(route).Inc()
}

// Handler serves the registry over HTTP for scraping.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}
