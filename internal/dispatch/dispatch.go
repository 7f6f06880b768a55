// Package dispatch implements the request dispatcher (C8): per-request
// rate-limit enforcement, route lookup, path rewrite, affinity-aware
// backend selection, and forwarding over plain HTTP.
package dispatch

import (
	"io"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/naru-gw/gatewayd/internal/discovery"
	"github.com/naru-gw/gatewayd/internal/gwerr"
	"github.com/naru-gw/gatewayd/internal/metrics"
	"github.com/naru-gw/gatewayd/internal/ratelimit"
	"github.com/naru-gw/gatewayd/internal/route"
)

// appIDHeader carries the tenant id used for rate-limit lookups.
const appIDHeader = "X-Gateway-AppId"

// extHeader and extQueryParam carry the affinity tag; the header wins when
// both are present.
const (
	extHeader     = "X-Gateway-Ext"
	extQueryParam = "x-gateway-ext"
)

// hopHeaders are stripped before forwarding in either direction.
var hopHeaders = []string{
	"Connection", "Proxy-Connection", "Keep-Alive",
	"Proxy-Authenticate", "Proxy-Authorization", "Te", "Trailer", "Transfer-Encoding", "Upgrade",
}

func removeHopHeaders(h http.Header) {
	for _, name := range hopHeaders {
		h.Del(name)
	}
}

// Dispatcher routes inbound requests against a live routing table and
// application registry. It holds no request-scoped state; a single
// instance is safe for concurrent use.
type Dispatcher struct {
	routes    *route.Table
	apps      *ratelimit.Registry
	transport http.RoundTripper
	log       *zap.Logger
	metrics   *metrics.Collector
}

// New builds a Dispatcher. A nil transport defaults to
// http.DefaultTransport.
func New(routes *route.Table, apps *ratelimit.Registry, transport http.RoundTripper, log *zap.Logger) *Dispatcher {
	if transport == nil {
		transport = http.DefaultTransport
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Dispatcher{routes: routes, apps: apps, transport: transport, log: log}
}

// SetMetrics attaches a metrics collector that records request counts by
// route and status and rate-limit rejections by tenant. Nil disables
// recording; the zero-value Dispatcher has no collector.
func (d *Dispatcher) SetMetrics(c *metrics.Collector) { d.metrics = c }

// ServeHTTP implements the two dispatcher hooks: the pre-forward rate-limit
// filter, then route lookup, rewrite, and backend selection.
func (d *Dispatcher) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if limited := d.enforceRateLimit(w, r); limited {
		return
	}

	rt, ok := d.routes.Lookup(r.URL.Path)
	if !ok {
		d.recordRequest("unmatched", http.StatusBadGateway)
		gwerr.New(gwerr.NoRoute, "no route matches "+r.URL.Path).WriteJSON(w)
		return
	}

	path := rt.RewritePath(r.URL.Path)
	tag := affinityTag(r)
	predicate := func(ep discovery.Endpoint, healthy bool) bool {
		if ep.Labels == nil {
			return healthy
		}
		if tag == "" {
			return false
		}
		return healthy && ep.Labels["ext"] == tag
	}

	ep, ok := rt.LB.Select(predicate)
	if !ok {
		d.recordRequest(rt.Name, http.StatusBadGateway)
		gwerr.New(gwerr.NoRoute, "no healthy backend for route "+rt.Name).WriteJSON(w)
		return
	}

	d.forward(w, r, rt.Name, ep.Address, path)
}

func (d *Dispatcher) recordRequest(routeName string, status int) {
	if d.metrics == nil {
		return
	}
	d.metrics.RecordRequest(routeName, strconv.Itoa(status))
}

// enforceRateLimit applies the pre-forward filter. It returns true when the
// request was rejected and the response already written.
func (d *Dispatcher) enforceRateLimit(w http.ResponseWriter, r *http.Request) bool {
	appID := r.Header.Get(appIDHeader)
	if appID == "" {
		return false
	}
	app, ok := d.apps.Get(appID)
	if !ok {
		return false
	}
	if app.Observe() <= app.Limit {
		return false
	}

	if d.metrics != nil {
		d.metrics.RecordRateLimitReject(appID)
	}
	w.Header().Set("X-Rate-Limit-Limit", strconv.Itoa(app.Limit))
	w.Header().Set("Connection", "close")
	gwerr.New(gwerr.RateLimited, "rate limit exceeded").WriteJSON(w)
	return true
}

func affinityTag(r *http.Request) string {
	if tag := r.Header.Get(extHeader); tag != "" {
		return tag
	}
	return r.URL.Query().Get(extQueryParam)
}

func (d *Dispatcher) forward(w http.ResponseWriter, r *http.Request, routeName, address, path string) {
	outbound := r.Clone(r.Context())
	outbound.URL.Scheme = "http"
	outbound.URL.Host = address
	outbound.URL.Path = path
	outbound.Host = address
	outbound.RequestURI = ""
	removeHopHeaders(outbound.Header)

	resp, err := d.transport.RoundTrip(outbound)
	if err != nil {
		d.log.Warn("upstream request failed", zap.String("backend", address), zap.Error(err))
		d.recordRequest(routeName, http.StatusBadGateway)
		gwerr.Wrap(gwerr.UpstreamFailure, "upstream request failed", err).WriteJSON(w)
		return
	}
	defer resp.Body.Close()

	dst := w.Header()
	for k, vv := range resp.Header {
		dst[k] = append(dst[k][:0:0], vv...)
	}
	removeHopHeaders(dst)

	d.recordRequest(routeName, resp.StatusCode)
	w.WriteHeader(resp.StatusCode)
	io.Copy(w, resp.Body)
}
