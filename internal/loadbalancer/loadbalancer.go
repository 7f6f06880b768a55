// Package loadbalancer wraps a discovery source with a periodically
// refreshed backend set, an optional TCP health probe, and a round-robin
// selection function gated by a caller-supplied predicate.
package loadbalancer

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/naru-gw/gatewayd/internal/discovery"
	"github.com/naru-gw/gatewayd/internal/health"
	"github.com/naru-gw/gatewayd/internal/metrics"
)

const (
	backendRefreshInterval = 5 * time.Second
	healthRefreshInterval  = 1 * time.Second
)

// Predicate decides whether an endpoint is eligible for selection given its
// current health. The default predicate returns healthy unconditionally.
type Predicate func(ep discovery.Endpoint, healthy bool) bool

// DefaultPredicate accepts any healthy endpoint.
func DefaultPredicate(_ discovery.Endpoint, healthy bool) bool { return healthy }

// Backend is a point-in-time view of one endpoint and its health, used for
// introspection (metrics, admin GET).
type Backend struct {
	Endpoint discovery.Endpoint
	Healthy  bool
}

// LB is a round-robin load balancer over a discovery source. Callers run it
// as a supervised background task via Run; Select is safe to call
// concurrently with Run from any goroutine.
type LB struct {
	name        string
	source      discovery.Source
	healthCheck bool
	log         *zap.Logger

	mu       sync.RWMutex
	backends []discovery.Endpoint
	healthy  map[string]bool

	cursor uint64

	metrics *metrics.Collector
}

// SetMetrics attaches a metrics collector that receives this balancer's
// backend-health gauge updates, labeled by route name and endpoint. Nil
// disables recording.
func (lb *LB) SetMetrics(c *metrics.Collector) { lb.metrics = c }

// New builds a load balancer named name over source. When healthCheck is
// true, backends are probed every second over TCP; otherwise every backend
// is treated as healthy unconditionally.
func New(name string, source discovery.Source, healthCheck bool, log *zap.Logger) *LB {
	if log == nil {
		log = zap.NewNop()
	}
	return &LB{
		name:        name,
		source:      source,
		healthCheck: healthCheck,
		log:         log.With(zap.String("route", name)),
		healthy:     make(map[string]bool),
	}
}

// Name returns the route name this balancer was built for.
func (lb *LB) Name() string { return lb.name }

// HealthCheckEnabled reports whether this balancer runs TCP health probes.
func (lb *LB) HealthCheckEnabled() bool { return lb.healthCheck }

// Run drives the periodic backend-set and health refreshes until ctx is
// cancelled. It performs an initial refresh synchronously so the first
// request after registration observes a populated backend set.
func (lb *LB) Run(ctx context.Context) {
	lb.refreshBackends(ctx)
	if lb.healthCheck {
		lb.refreshHealth()
	}

	backendTicker := time.NewTicker(backendRefreshInterval)
	healthTicker := time.NewTicker(healthRefreshInterval)
	defer backendTicker.Stop()
	defer healthTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-backendTicker.C:
			lb.refreshBackends(ctx)
		case <-healthTicker.C:
			if lb.healthCheck {
				lb.refreshHealth()
			}
		}
	}
}

// refreshBackends pulls a fresh endpoint set from the discovery source and
// replaces the current backend list atomically under the write lock. A
// discovery failure is logged and non-fatal; the previous backend set is
// retained for this tick.
func (lb *LB) refreshBackends(ctx context.Context) {
	endpoints, readiness, err := lb.source.Discover(ctx)
	if err != nil {
		lb.log.Warn("discovery unavailable, keeping previous backend set", zap.Error(err))
		return
	}

	ordered := make([]discovery.Endpoint, 0, len(endpoints))
	for _, ep := range endpoints {
		ordered = append(ordered, ep)
	}
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].Address < ordered[j].Address })

	lb.mu.Lock()
	defer lb.mu.Unlock()

	lb.backends = ordered
	for addr := range endpoints {
		if _, known := lb.healthy[addr]; known {
			continue
		}
		if ready, ok := readiness[addr]; ok {
			lb.healthy[addr] = ready
		} else {
			lb.healthy[addr] = true
		}
	}
	for addr := range lb.healthy {
		if _, stillPresent := endpoints[addr]; !stillPresent {
			delete(lb.healthy, addr)
		}
	}
}

// refreshHealth probes every current backend over TCP and updates the
// health map. Probes run without holding the lock so a slow backend never
// blocks Select.
func (lb *LB) refreshHealth() {
	lb.mu.RLock()
	backends := make([]discovery.Endpoint, len(lb.backends))
	copy(backends, lb.backends)
	lb.mu.RUnlock()

	results := make(map[string]bool, len(backends))
	for _, ep := range backends {
		results[ep.Address] = health.Probe(ep.Address, 0) == nil
	}

	lb.mu.Lock()
	for addr, ok := range results {
		lb.healthy[addr] = ok
	}
	lb.mu.Unlock()

	if lb.metrics != nil {
		for addr, ok := range results {
			lb.metrics.SetBackendHealth(lb.name, addr, ok)
		}
	}
}

// Select iterates backends in round-robin order starting from a
// monotonically advancing cursor, returning the first endpoint for which
// predicate(endpoint, healthy) is true. A nil predicate defaults to
// DefaultPredicate. Returns ok=false when no backend satisfies predicate.
func (lb *LB) Select(predicate Predicate) (discovery.Endpoint, bool) {
	if predicate == nil {
		predicate = DefaultPredicate
	}

	lb.mu.RLock()
	defer lb.mu.RUnlock()
	backends := lb.backends
	healthSnapshot := lb.healthy
	healthCheck := lb.healthCheck

	n := len(backends)
	if n == 0 {
		return discovery.Endpoint{}, false
	}

	start := atomic.AddUint64(&lb.cursor, 1) - 1
	for i := 0; i < n; i++ {
		ep := backends[(int(start)+i)%n]
		healthy := healthSnapshot[ep.Address]
		if !healthCheck {
			healthy = true
		}
		if predicate(ep, healthy) {
			return ep, true
		}
	}
	return discovery.Endpoint{}, false
}

// Backends returns a point-in-time snapshot of the current backend set and
// health, for admin introspection and metrics.
func (lb *LB) Backends() []Backend {
	lb.mu.RLock()
	defer lb.mu.RUnlock()

	result := make([]Backend, len(lb.backends))
	for i, ep := range lb.backends {
		healthy := lb.healthy[ep.Address]
		if !lb.healthCheck {
			healthy = true
		}
		result[i] = Backend{Endpoint: ep, Healthy: healthy}
	}
	return result
}
