// Package metrics exposes the gateway's Prometheus collectors.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector owns the gateway's metric families on a private registry, so tests
// can create independent collectors without duplicate-registration panics.
type Collector struct {
	registry *prometheus.Registry

	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	backendHealth   *prometheus.GaugeVec
	proxyInFlight   *prometheus.GaugeVec
}

// New creates a collector with the gateway metric families registered.
func New() *Collector {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)

	return &Collector{
		registry: registry,
		requestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "vkgw_requests_total",
				Help: "Total number of proxied requests",
			},
			[]string{"backend", "method", "status"},
		),
		requestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "vkgw_request_duration_seconds",
				Help:    "Proxied request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"backend", "method"},
		),
		backendHealth: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "vkgw_backend_health_status",
				Help: "Backend health status (1=healthy, 0=unhealthy)",
			},
			[]string{"backend"},
		),
		proxyInFlight: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "vkgw_proxy_requests_in_flight",
				Help: "Requests currently being proxied to a backend",
			},
			[]string{"backend"},
		),
	}
}

// Handler returns the scrape endpoint handler.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// ObserveRequest records one completed proxied request.
func (c *Collector) ObserveRequest(backendID, method string, status int, duration time.Duration) {
	c.requestsTotal.WithLabelValues(backendID, method, strconv.Itoa(status)).Inc()
	c.requestDuration.WithLabelValues(backendID, method).Observe(duration.Seconds())
}

// SetBackendHealth records a backend's current health status.
func (c *Collector) SetBackendHealth(serverID string, healthy bool) {
	value := 0.0
	if healthy {
		value = 1.0
	}
	c.backendHealth.WithLabelValues(serverID).Set(value)
}

// ProxyStarted marks a request in flight to the backend.
func (c *Collector) ProxyStarted(serverID string) {
	c.proxyInFlight.WithLabelValues(serverID).Inc()
}

// ProxyFinished marks a request as no longer in flight.
func (c *Collector) ProxyFinished(serverID string) {
	c.proxyInFlight.WithLabelValues(serverID).Dec()
}
