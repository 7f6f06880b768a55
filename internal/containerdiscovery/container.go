// Package containerdiscovery implements the container-runtime discovery
// variant: a shared, periodically refreshed snapshot of container metadata
// and a discovery.Source that derives backend endpoints from it per named
// service.
package containerdiscovery

// Label names consumed from container metadata, per spec.
const (
	LabelComposeService = "orchestrator.compose.service"
	LabelGatewayHostIP  = "gateway.host.ip"
	LabelGatewayMode    = "gateway.mode"
	LabelConnectNetwork = "gateway.connect.network"
)

// defaultBridgeGatewayIP is used for host-mode endpoints when neither the
// override label nor a resolved docker0 gateway address is available.
const defaultBridgeGatewayIP = "172.17.0.1"

// Mode is a container's declared network mode, resolved from a label or
// from the presence of a host network attachment.
type Mode int

const (
	ModeBridge Mode = iota
	ModeHost
)

// Port is a single declared container port mapping.
type Port struct {
	PrivatePort uint16
	PublicPort  uint16
}

// Container is one record in the shared snapshot: the subset of container
// metadata discovery needs to derive endpoints.
type Container struct {
	ID       string
	Labels   map[string]string
	Mode     Mode
	HostIP   string            // override label or resolved bridge-gateway IP
	InnerIPs map[string]string // network name -> ipv4, excluding "host"
	Ports    []Port
}

// resolveMode applies the tie-breakers from spec.md §4.3: an explicit label
// wins; otherwise the presence of a "host" network attachment implies host
// mode, else bridge.
func resolveMode(labels map[string]string, hasHostNetwork bool) Mode {
	switch labels[LabelGatewayMode] {
	case "host":
		return ModeHost
	case "bridge":
		return ModeBridge
	}
	if hasHostNetwork {
		return ModeHost
	}
	return ModeBridge
}
