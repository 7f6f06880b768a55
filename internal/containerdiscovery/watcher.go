package containerdiscovery

import (
	"context"
	"strings"
	"time"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/network"
	"github.com/docker/docker/client"
	"go.uber.org/zap"
)

const pollInterval = 2 * time.Second

// Watcher is the single background task (supervisor key
// "container_background_service") that keeps the shared Snapshot current.
// Every tick it lists all containers from the runtime, auto-attaches
// opted-in containers to any bridge network they are missing, and replaces
// the snapshot wholesale.
type Watcher struct {
	client   *client.Client
	snapshot *Snapshot
	log      *zap.Logger

	docker0IP string
}

// NewWatcher builds a container watcher over cli, publishing into snapshot.
func NewWatcher(cli *client.Client, snapshot *Snapshot, log *zap.Logger) *Watcher {
	if log == nil {
		log = zap.NewNop()
	}
	return &Watcher{client: cli, snapshot: snapshot, log: log, docker0IP: defaultBridgeGatewayIP}
}

// Run polls the runtime every 2 seconds until ctx is cancelled.
func (w *Watcher) Run(ctx context.Context) {
	w.tick(ctx)

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.tick(ctx)
		}
	}
}

func (w *Watcher) tick(ctx context.Context) {
	summaries, err := w.client.ContainerList(ctx, container.ListOptions{All: true})
	if err != nil {
		w.log.Warn("failed to list containers", zap.Error(err))
		return
	}

	w.autoConnectNetworks(ctx, summaries)
	w.refreshBridgeGatewayIP(ctx)

	records := make([]Container, 0, len(summaries))
	for _, c := range summaries {
		records = append(records, buildContainer(c, w.docker0IP))
	}
	w.snapshot.Replace(records)
}

// autoConnectNetworks connects every container labeled
// gateway.connect.network=true to any bridge-driver network it is not
// already attached to. Connection failures are logged and non-fatal.
func (w *Watcher) autoConnectNetworks(ctx context.Context, summaries []container.Summary) {
	var opted []container.Summary
	for _, c := range summaries {
		if c.Labels[LabelConnectNetwork] == "true" {
			opted = append(opted, c)
		}
	}
	if len(opted) == 0 {
		return
	}

	networks, err := w.client.NetworkList(ctx, network.ListOptions{})
	if err != nil {
		w.log.Warn("failed to list networks", zap.Error(err))
		return
	}

	for _, c := range opted {
		attached := attachedNetworks(c)
		for _, n := range networks {
			if n.Driver != "bridge" || n.Name == "" {
				continue
			}
			if attached[n.Name] {
				continue
			}
			if err := w.client.NetworkConnect(ctx, n.Name, c.ID, nil); err != nil {
				w.log.Warn("failed to connect container to network",
					zap.String("container", c.ID), zap.String("network", n.Name), zap.Error(err))
				continue
			}
			w.log.Info("connected container to network", zap.String("container", c.ID), zap.String("network", n.Name))
		}
	}
}

func attachedNetworks(c container.Summary) map[string]bool {
	attached := make(map[string]bool)
	if c.NetworkSettings == nil {
		return attached
	}
	for name := range c.NetworkSettings.Networks {
		attached[name] = true
	}
	return attached
}

// refreshBridgeGatewayIP re-resolves the docker0 gateway IP, used as the
// default host IP for host-mode containers with no override label.
func (w *Watcher) refreshBridgeGatewayIP(ctx context.Context) {
	inspect, err := w.client.NetworkInspect(ctx, "bridge", network.InspectOptions{})
	if err != nil {
		w.log.Warn("failed to inspect bridge network, keeping previous gateway ip", zap.Error(err))
		return
	}
	for _, cfg := range inspect.IPAM.Config {
		if cfg.Gateway != "" {
			w.docker0IP = cfg.Gateway
			return
		}
	}
}

// buildContainer converts a docker SDK container summary into our
// snapshot record, resolving mode, host IP, and bridge IPs per spec.md
// §4.3. Pulled out as a standalone function so it can be tested without a
// live docker client.
func buildContainer(c container.Summary, docker0IP string) Container {
	mode := resolveMode(c.Labels, hasHostNetwork(c))

	hostIP := c.Labels[LabelGatewayHostIP]
	if hostIP == "" {
		hostIP = docker0IP
	}

	ports := make([]Port, 0, len(c.Ports))
	for _, p := range c.Ports {
		ports = append(ports, Port{PrivatePort: p.PrivatePort, PublicPort: p.PublicPort})
	}

	innerIPs := make(map[string]string)
	if c.NetworkSettings != nil {
		for name, ep := range c.NetworkSettings.Networks {
			if strings.EqualFold(name, "host") || ep == nil || ep.IPAddress == "" {
				continue
			}
			innerIPs[name] = ep.IPAddress
		}
	}

	return Container{
		ID:       c.ID,
		Labels:   c.Labels,
		Mode:     mode,
		HostIP:   hostIP,
		InnerIPs: innerIPs,
		Ports:    ports,
	}
}

func hasHostNetwork(c container.Summary) bool {
	if c.NetworkSettings == nil {
		return false
	}
	_, ok := c.NetworkSettings.Networks["host"]
	return ok
}
