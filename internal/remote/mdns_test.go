package remote

import (
	"net"
	"testing"
	"time"

	"github.com/grandcat/zeroconf"

	"github.com/muurk/btscout/internal/server"
)

func entry(instance, host string, port int, v4, v6 []net.IP, txt ...string) *zeroconf.ServiceEntry {
	e := zeroconf.NewServiceEntry(instance, server.ServiceType, server.ServiceDomain)
	e.HostName = host
	e.Port = port
	e.AddrIPv4 = v4
	e.AddrIPv6 = v6
	e.Text = txt
	return e
}

func TestParseServiceEntry(t *testing.T) {
	tests := []struct {
		name     string
		entry    *zeroconf.ServiceEntry
		wantNil  bool
		wantIP   string
		wantPort int
	}{
		{
			name:     "IPv4 server",
			entry:    entry("btscout-kitchen", "kitchen.local.", 8765, []net.IP{net.ParseIP("192.168.4.16")}, nil),
			wantIP:   "192.168.4.16",
			wantPort: 8765,
		},
		{
			name:     "no port specified (should default)",
			entry:    entry("btscout-attic", "attic.local.", 0, []net.IP{net.ParseIP("10.0.0.5")}, nil),
			wantIP:   "10.0.0.5",
			wantPort: server.DefaultPort,
		},
		{
			name:     "IPv6 only server",
			entry:    entry("btscout-lab", "lab.local.", 9000, nil, []net.IP{net.ParseIP("fe80::1")}),
			wantIP:   "fe80::1",
			wantPort: 9000,
		},
		{
			name:     "both families (should prefer IPv4)",
			entry:    entry("btscout-desk", "desk.local.", 8765, []net.IP{net.ParseIP("192.168.1.50")}, []net.IP{net.ParseIP("fe80::2")}),
			wantIP:   "192.168.1.50",
			wantPort: 8765,
		},
		{
			name:    "no address",
			entry:   entry("btscout-ghost", "ghost.local.", 8765, nil, nil),
			wantNil: true,
		},
		{
			name:    "no instance",
			entry:   entry("", "anon.local.", 8765, []net.IP{net.ParseIP("192.168.1.1")}, nil),
			wantNil: true,
		},
		{
			name:    "nil entry",
			wantNil: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			peer := parseServiceEntry(tt.entry)
			if tt.wantNil {
				if peer != nil {
					t.Errorf("parseServiceEntry() = %v, want nil", peer)
				}
				return
			}
			if peer == nil {
				t.Fatal("parseServiceEntry() = nil, want peer")
			}
			if peer.IP != tt.wantIP || peer.Port != tt.wantPort {
				t.Errorf("peer at %s:%d, want %s:%d", peer.IP, peer.Port, tt.wantIP, tt.wantPort)
			}
			if peer.Instance != tt.entry.Instance || peer.Hostname != tt.entry.HostName {
				t.Errorf("peer = %+v", peer)
			}
			if time.Since(peer.DiscoveredAt) > time.Second {
				t.Errorf("DiscoveredAt is not recent: %v", peer.DiscoveredAt)
			}
		})
	}
}

func TestParseServiceEntryMetadata(t *testing.T) {
	peer := parseServiceEntry(entry("btscout-kitchen", "kitchen.local.", 8765,
		[]net.IP{net.ParseIP("192.168.4.16")}, nil,
		"version=v0.3.0", "path=/events", "backend=bluez", "flag"))
	if peer == nil {
		t.Fatal("parseServiceEntry() = nil")
	}
	want := map[string]string{"version": "v0.3.0", "path": "/events", "backend": "bluez", "flag": ""}
	if len(peer.Metadata) != len(want) {
		t.Errorf("Metadata has %d entries, want %d", len(peer.Metadata), len(want))
	}
	for k, v := range want {
		if got, ok := peer.Metadata[k]; !ok || got != v {
			t.Errorf("Metadata[%q] = %q (%v), want %q", k, got, ok, v)
		}
	}
}

func TestNewBrowser(t *testing.T) {
	if b := NewBrowser(); b.Timeout != DefaultBrowseTimeout {
		t.Errorf("Timeout = %v, want %v", b.Timeout, DefaultBrowseTimeout)
	}
}
