package route

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/naru-gw/gatewayd/internal/discovery"
	"github.com/naru-gw/gatewayd/internal/loadbalancer"
	"github.com/naru-gw/gatewayd/internal/metrics"
	"github.com/naru-gw/gatewayd/internal/supervisor"
)

// healthCheckKeySuffix names the supervised task that runs a route's load
// balancer background refresh loop.
const healthCheckKeySuffix = "_hc"

// Options describes a route to be installed by AddRoute.
type Options struct {
	Match       Matcher
	Rewrite     *Rewrite
	Source      discovery.Source
	HealthCheck bool
}

type commandKind int

const (
	cmdAddRoute commandKind = iota
	cmdRemoveRoute
)

type command struct {
	kind commandKind
	name string
	opts Options
	done chan error
}

// Manager is the single owner of the routing table's mutations (C7). It
// consumes AddRoute/RemoveRoute commands in FIFO order from one goroutine,
// so two overlapping admin requests for the same route name never race.
type Manager struct {
	table      *Table
	supervisor *supervisor.Supervisor
	log        *zap.Logger

	cmds chan command

	metrics *metrics.Collector
}

// SetMetrics attaches a metrics collector passed through to every load
// balancer this manager installs from then on. Nil disables recording.
func (m *Manager) SetMetrics(c *metrics.Collector) { m.metrics = c }

// NewManager builds a route manager backed by table and supervisor. Run
// must be started before AddRoute/RemoveRoute are called.
func NewManager(table *Table, sup *supervisor.Supervisor, log *zap.Logger) *Manager {
	if log == nil {
		log = zap.NewNop()
	}
	return &Manager{
		table:      table,
		supervisor: sup,
		log:        log,
		cmds:       make(chan command, 256),
	}
}

// Run processes AddRoute/RemoveRoute commands until ctx is cancelled.
func (m *Manager) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case cmd := <-m.cmds:
			switch cmd.kind {
			case cmdAddRoute:
				cmd.done <- m.handleAdd(cmd.name, cmd.opts)
			case cmdRemoveRoute:
				m.handleRemove(cmd.name)
				cmd.done <- nil
			}
		}
	}
}

// AddRoute installs or replaces the route named name, starting its load
// balancer's background refresh loop under the supervisor. It blocks until
// the command has been applied or ctx is cancelled.
func (m *Manager) AddRoute(ctx context.Context, name string, opts Options) error {
	if opts.Match == nil {
		return fmt.Errorf("route %q: match rule is required", name)
	}
	if opts.Source == nil {
		return fmt.Errorf("route %q: discovery source is required", name)
	}

	done := make(chan error, 1)
	select {
	case m.cmds <- command{kind: cmdAddRoute, name: name, opts: opts, done: done}:
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// RemoveRoute deletes the route named name and stops its supervised
// background task. Idempotent on unknown names.
func (m *Manager) RemoveRoute(ctx context.Context, name string) error {
	done := make(chan error, 1)
	select {
	case m.cmds <- command{kind: cmdRemoveRoute, name: name, done: done}:
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (m *Manager) handleAdd(name string, opts Options) error {
	lb := loadbalancer.New(name, opts.Source, opts.HealthCheck, m.log)
	lb.SetMetrics(m.metrics)
	m.table.Set(&Route{Name: name, Match: opts.Match, Rewrite: opts.Rewrite, LB: lb})
	m.supervisor.Add(name+healthCheckKeySuffix, lb.Run)
	m.log.Info("route installed", zap.String("route", name), zap.Bool("health_check", opts.HealthCheck))
	return nil
}

func (m *Manager) handleRemove(name string) {
	if _, ok := m.table.Get(name); !ok {
		return
	}
	m.table.Delete(name)
	m.supervisor.Remove(name + healthCheckKeySuffix)
	m.log.Info("route removed", zap.String("route", name))
}
