package containerdiscovery

import (
	"context"
	"fmt"

	"github.com/naru-gw/gatewayd/internal/discovery"
)

// Discovery derives backend endpoints for one named service from the
// shared container snapshot. It reports no readiness opinion — liveness is
// gated entirely by the owning load balancer's TCP health check.
type Discovery struct {
	serviceName string
	snapshot    *Snapshot
}

// NewDiscovery builds a container-runtime discovery source for serviceName,
// reading from the shared snapshot.
func NewDiscovery(serviceName string, snapshot *Snapshot) *Discovery {
	return &Discovery{serviceName: serviceName, snapshot: snapshot}
}

// Discover filters the shared snapshot to containers whose compose-service
// label matches serviceName and, using each container's first declared
// port, emits one host-IP:public-port endpoint for a host-mode container or
// one inner-IP:private-port endpoint per non-host network for a
// bridge-mode container. Containers with no declared ports are skipped.
func (d *Discovery) Discover(_ context.Context) (map[string]discovery.Endpoint, map[string]bool, error) {
	endpoints := make(map[string]discovery.Endpoint)

	for _, c := range d.snapshot.All() {
		if c.Labels[LabelComposeService] != d.serviceName {
			continue
		}
		if len(c.Ports) == 0 {
			continue
		}
		port := c.Ports[0]

		switch c.Mode {
		case ModeHost:
			hostIP := c.HostIP
			if hostIP == "" {
				hostIP = defaultBridgeGatewayIP
			}
			addr := fmt.Sprintf("%s:%d", hostIP, port.PublicPort)
			endpoints[addr] = discovery.Endpoint{Address: addr}
		case ModeBridge:
			for _, ip := range c.InnerIPs {
				addr := fmt.Sprintf("%s:%d", ip, port.PrivatePort)
				endpoints[addr] = discovery.Endpoint{Address: addr}
			}
		}
	}

	return endpoints, nil, nil
}
