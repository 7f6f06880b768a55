// Package metrics exposes the gateway's Prometheus metrics: request counts
// by route and status, rate-limit rejections by tenant, and backend health
// by route and endpoint.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector owns the gateway's metric vectors, registered against a private
// registry so repeated construction (e.g. in tests) never panics on
// duplicate registration.
type Collector struct {
	registry *prometheus.Registry

	requestsTotal   *prometheus.CounterVec
	rateLimitRejects *prometheus.CounterVec
	backendHealth   *prometheus.GaugeVec
}

// NewCollector builds a Collector with its own registry.
func NewCollector() *Collector {
	registry := prometheus.NewRegistry()

	c := &Collector{
		registry: registry,
		requestsTotal: promauto.With(registry).NewCounterVec(prometheus.CounterOpts{
			Name: "gateway_requests_total",
			Help: "Total number of requests dispatched, by route and response status.",
		}, []string{"route", "status"}),
		rateLimitRejects: promauto.With(registry).NewCounterVec(prometheus.CounterOpts{
			Name: "gateway_rate_limit_rejections_total",
			Help: "Total number of requests rejected by the rate limiter, by tenant.",
		}, []string{"app_id"}),
		backendHealth: promauto.With(registry).NewGaugeVec(prometheus.GaugeOpts{
			Name: "gateway_backend_healthy",
			Help: "Current backend health (1 healthy, 0 unhealthy), by route and endpoint.",
		}, []string{"route", "endpoint"}),
	}
	return c
}

// RecordRequest increments the request counter for route and status.
func (c *Collector) RecordRequest(route, status string) {
	c.requestsTotal.WithLabelValues(route, status).Inc()
}

// RecordRateLimitReject increments the rejection counter for appID.
func (c *Collector) RecordRateLimitReject(appID string) {
	c.rateLimitRejects.WithLabelValues(appID).Inc()
}

// SetBackendHealth records the current health of one route's backend.
func (c *Collector) SetBackendHealth(route, endpoint string, healthy bool) {
	v := 0.0
	if healthy {
		v = 1.0
	}
	c.backendHealth.WithLabelValues(route, endpoint).Set(v)
}

// Handler returns the HTTP handler that serves this collector's registry in
// Prometheus text exposition format, for mounting at /metrics.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}
