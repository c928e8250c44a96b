package remote

import (
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/muurk/btscout/internal/server"
)

// Peer is a btscout server found on the network.
type Peer struct {
	// Instance is the mDNS instance name (e.g., "btscout-kitchen")
	Instance string

	// Hostname is the mDNS hostname (e.g., "kitchen.local.")
	Hostname string

	// IP is the preferred address, IPv4 when available
	IP string

	Port int

	// Metadata contains the TXT record: "version", "path", "backend"
	Metadata map[string]string

	// DiscoveredAt is when the peer answered
	DiscoveredAt time.Time
}

// String returns a human-readable string representation of the peer
func (p *Peer) String() string {
	return fmt.Sprintf("%s (%s) at %s", p.Instance, p.Hostname, p.HostPort())
}

// HostPort returns "ip:port", bracketing IPv6 addresses.
func (p *Peer) HostPort() string {
	return net.JoinHostPort(p.IP, strconv.Itoa(p.Port))
}

// EventsURL returns the WebSocket URL of the peer's event stream.
func (p *Peer) EventsURL() string {
	path := p.GetMetadata("path")
	if path == "" {
		path = server.EventsPath
	}
	return "ws://" + p.HostPort() + path
}

// GetMetadata retrieves a metadata value by key, or returns empty string if not found
func (p *Peer) GetMetadata(key string) string {
	if p.Metadata == nil {
		return ""
	}
	return p.Metadata[key]
}
