// Package store is the composition root (C9): it owns the routing table,
// the application (rate-limit) registry, the container discovery snapshot,
// and the two command-driven subsystems (route manager, background-task
// supervisor) that mutate them. It is built once at startup and threaded
// through explicitly rather than reached via package-level globals.
package store

import (
	"context"
	"fmt"
	"sync"

	"github.com/docker/docker/client"
	"go.uber.org/zap"

	"github.com/naru-gw/gatewayd/internal/containerdiscovery"
	"github.com/naru-gw/gatewayd/internal/metrics"
	"github.com/naru-gw/gatewayd/internal/ratelimit"
	"github.com/naru-gw/gatewayd/internal/route"
	"github.com/naru-gw/gatewayd/internal/supervisor"
)

// containerWatcherKey is the supervisor key for the single container
// watcher background task, shared by every container-discovery route.
const containerWatcherKey = "container_background_service"

// Store bundles every piece of shared state the dispatcher and admin API
// need, plus the command-driven managers that own its mutation.
type Store struct {
	Routes       *route.Table
	Applications *ratelimit.Registry
	Containers   *containerdiscovery.Snapshot

	RouteManager *route.Manager
	Supervisor   *supervisor.Supervisor

	docker *client.Client
	log    *zap.Logger

	watcherOnce sync.Once
}

// Option configures an optional Store dependency at construction time.
type Option func(*Store)

// WithDockerClient attaches a docker API client, enabling container
// discovery routes. Without it, ContainerDiscoverySource returns an error.
func WithDockerClient(cli *client.Client) Option {
	return func(s *Store) { s.docker = cli }
}

// New builds a Store with an empty routing table and application registry.
// Run must be called to start its background managers before any
// RouteManager.AddRoute/RemoveRoute call is issued.
func New(log *zap.Logger, opts ...Option) *Store {
	if log == nil {
		log = zap.NewNop()
	}
	s := &Store{
		Routes:       route.NewTable(),
		Applications: ratelimit.NewRegistry(),
		Containers:   containerdiscovery.NewSnapshot(),
		Supervisor:   supervisor.New(log),
		log:          log,
	}
	s.RouteManager = route.NewManager(s.Routes, s.Supervisor, log)
	return s
}

// Run drives the supervisor and route manager command loops, plus the
// container watcher when a docker client was supplied, until ctx is
// cancelled. Call it in its own goroutine before issuing any commands.
func (s *Store) Run(ctx context.Context) {
	go s.Supervisor.Run(ctx)
	go s.RouteManager.Run(ctx)
	if s.docker != nil {
		s.EnsureContainerWatcher()
	}
	<-ctx.Done()
}

// EnsureContainerWatcher registers the shared container watcher background
// task under the supervisor on first call; subsequent calls are no-ops.
// Called once at boot when a docker client is configured, and again by the
// admin API the first time a container-discovery route is added, per
// spec.md §4.10.
func (s *Store) EnsureContainerWatcher() {
	if s.docker == nil {
		return
	}
	s.watcherOnce.Do(func() {
		watcher := containerdiscovery.NewWatcher(s.docker, s.Containers, s.log)
		s.Supervisor.Add(containerWatcherKey, watcher.Run)
	})
}

// SetMetrics attaches a metrics collector passed through to the route
// manager, so every route installed from then on reports backend health.
func (s *Store) SetMetrics(c *metrics.Collector) { s.RouteManager.SetMetrics(c) }

// DockerClient returns the attached docker API client, or nil if none was
// configured.
func (s *Store) DockerClient() *client.Client { return s.docker }

// ContainerDiscoverySource builds a discovery.Source that derives backend
// endpoints for serviceName from the shared container snapshot. Returns an
// error if no docker client was configured.
func (s *Store) ContainerDiscoverySource(serviceName string) (*containerdiscovery.Discovery, error) {
	if s.docker == nil {
		return nil, fmt.Errorf("container discovery unavailable: no docker client configured")
	}
	return containerdiscovery.NewDiscovery(serviceName, s.Containers), nil
}
