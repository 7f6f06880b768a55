// Package discovery defines the capability contract every backend source
// implements (static lists, container-runtime polling) and the static
// implementation that serves a fixed list of upstreams.
package discovery

import "context"

// Endpoint is a single reachable upstream address with an optional label
// bag. Discovery populates the labels; selection reads them for
// affinity-tag matching.
type Endpoint struct {
	Address string
	Labels  map[string]string
}

// Source is the narrow capability every discovery implementation satisfies:
// produce a set of endpoints (keyed by address, acting as the set) plus an
// optional readiness opinion per endpoint. An empty readiness map means "no
// opinion" — the load balancer's own health probe is authoritative.
type Source interface {
	Discover(ctx context.Context) (endpoints map[string]Endpoint, readiness map[string]bool, err error)
}

// Static serves a fixed list of host:port upstreams. It never produces
// labels and never reports readiness — its owning route defaults its
// health-check flag to off.
type Static struct {
	addresses []string
}

// NewStatic builds a Static discovery source from a list of host:port
// strings. Empty or duplicate entries are dropped.
func NewStatic(addresses []string) *Static {
	seen := make(map[string]struct{}, len(addresses))
	unique := make([]string, 0, len(addresses))
	for _, a := range addresses {
		if a == "" {
			continue
		}
		if _, ok := seen[a]; ok {
			continue
		}
		seen[a] = struct{}{}
		unique = append(unique, a)
	}
	return &Static{addresses: unique}
}

// Discover returns the same fixed endpoint set on every call.
func (s *Static) Discover(_ context.Context) (map[string]Endpoint, map[string]bool, error) {
	endpoints := make(map[string]Endpoint, len(s.addresses))
	for _, a := range s.addresses {
		endpoints[a] = Endpoint{Address: a}
	}
	return endpoints, nil, nil
}
