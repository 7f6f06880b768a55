package route

import (
	"sync"

	"github.com/naru-gw/gatewayd/internal/loadbalancer"
)

// Route pairs a match rule and optional rewrite with the load balancer that
// serves matching requests.
type Route struct {
	Name    string
	Match   Matcher
	Rewrite *Rewrite
	LB      *loadbalancer.LB
}

// RewritePath applies the route's rewrite to path, returning path
// unmodified when the route carries no rewrite or the rewrite regex does
// not match.
func (r *Route) RewritePath(path string) string {
	if r.Rewrite == nil {
		return path
	}
	rewritten, _ := r.Rewrite.Apply(path)
	return rewritten
}

// Table is the live routing table: an ordered set of routes evaluated in
// insertion order on lookup, so earlier routes take precedence over later,
// more general ones. Reads (Lookup, Snapshot) run concurrently with writes
// guarded by a single mutex.
type Table struct {
	mu     sync.RWMutex
	order  []string
	routes map[string]*Route
}

// NewTable builds an empty routing table.
func NewTable() *Table {
	return &Table{routes: make(map[string]*Route)}
}

// Set installs or replaces the route named name. A replacement keeps the
// route's original position in evaluation order.
func (t *Table) Set(route *Route) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, exists := t.routes[route.Name]; !exists {
		t.order = append(t.order, route.Name)
	}
	t.routes[route.Name] = route
}

// Delete removes the route named name. Idempotent on unknown names.
func (t *Table) Delete(name string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.routes[name]; !ok {
		return
	}
	delete(t.routes, name)
	for i, n := range t.order {
		if n == name {
			t.order = append(t.order[:i], t.order[i+1:]...)
			break
		}
	}
}

// Get returns the route named name, if present.
func (t *Table) Get(name string) (*Route, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	r, ok := t.routes[name]
	return r, ok
}

// Lookup returns the first route (in insertion order) whose matcher accepts
// path.
func (t *Table) Lookup(path string) (*Route, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	for _, name := range t.order {
		r := t.routes[name]
		if r.Match.Matches(path) {
			return r, true
		}
	}
	return nil, false
}

// Snapshot returns a point-in-time copy of every route, in evaluation
// order, for admin introspection.
func (t *Table) Snapshot() []*Route {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]*Route, 0, len(t.order))
	for _, name := range t.order {
		out = append(out, t.routes[name])
	}
	return out
}
