// Package health implements the one-shot TCP connect probe used by the load
// balancer's periodic health-check loop.
package health

import (
	"fmt"
	"net"
	"time"
)

// DefaultTimeout bounds a single probe when the caller does not supply one.
const DefaultTimeout = 2 * time.Second

// Probe dials address over TCP and closes the connection immediately,
// treating a successful dial as a healthy signal. It reports no application
// semantics beyond reachability.
func Probe(address string, timeout time.Duration) error {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	conn, err := net.DialTimeout("tcp", address, timeout)
	if err != nil {
		return fmt.Errorf("tcp probe %s: %w", address, err)
	}
	conn.Close()
	return nil
}
