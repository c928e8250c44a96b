package remote

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/grandcat/zeroconf"

	"github.com/muurk/btscout/internal/server"
)

// DefaultBrowseTimeout is the default time to wait for servers to answer.
const DefaultBrowseTimeout = 3 * time.Second

// Browser finds btscout servers over mDNS.
type Browser struct {
	// Timeout is the maximum time to wait for answers
	Timeout time.Duration
}

// NewBrowser creates a browser with default settings
func NewBrowser() *Browser {
	return &Browser{Timeout: DefaultBrowseTimeout}
}

// Browse collects every server that answers before the timeout.
func (b *Browser) Browse(ctx context.Context) ([]*Peer, error) {
	ctx, cancel := context.WithTimeout(ctx, b.Timeout)
	defer cancel()

	var (
		mu    sync.Mutex
		peers []*Peer
		seen  = make(map[string]bool)
	)
	err := b.browse(ctx, func(p *Peer) bool {
		mu.Lock()
		defer mu.Unlock()
		if !seen[p.Instance] {
			seen[p.Instance] = true
			peers = append(peers, p)
		}
		return true
	})
	if err != nil {
		return nil, err
	}
	mu.Lock()
	defer mu.Unlock()
	return peers, nil
}

// Find waits for the server announced as instance, or the first server to
// answer when instance is empty.
func (b *Browser) Find(ctx context.Context, instance string) (*Peer, error) {
	ctx, cancel := context.WithTimeout(ctx, b.Timeout)
	defer cancel()

	found := make(chan *Peer, 1)
	err := b.browse(ctx, func(p *Peer) bool {
		if instance != "" && p.Instance != instance {
			return true
		}
		select {
		case found <- p:
		default:
		}
		cancel()
		return false
	})
	if err != nil {
		return nil, err
	}
	select {
	case p := <-found:
		return p, nil
	default:
	}
	if instance == "" {
		return nil, fmt.Errorf("no btscout server answered within %s", b.Timeout)
	}
	return nil, fmt.Errorf("server %q not found within %s", instance, b.Timeout)
}

// browse feeds parsed peers to fn until ctx ends or fn returns false.
func (b *Browser) browse(ctx context.Context, fn func(*Peer) bool) error {
	resolver, err := zeroconf.NewResolver(nil)
	if err != nil {
		return fmt.Errorf("failed to create mDNS resolver: %w", err)
	}

	entries := make(chan *zeroconf.ServiceEntry)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for entry := range entries {
			if p := parseServiceEntry(entry); p != nil && !fn(p) {
				return
			}
		}
	}()

	if err := resolver.Browse(ctx, server.ServiceType, server.ServiceDomain, entries); err != nil {
		return fmt.Errorf("failed to browse for mDNS services: %w", err)
	}
	<-ctx.Done()
	select {
	case <-done:
	case <-time.After(100 * time.Millisecond):
	}
	return nil
}

// parseServiceEntry turns a resolved entry into a Peer, or nil when the
// entry has no instance name or no address to dial.
func parseServiceEntry(entry *zeroconf.ServiceEntry) *Peer {
	if entry == nil || entry.Instance == "" {
		return nil
	}

	var ip string
	switch {
	case len(entry.AddrIPv4) > 0:
		ip = entry.AddrIPv4[0].String()
	case len(entry.AddrIPv6) > 0:
		ip = entry.AddrIPv6[0].String()
	default:
		return nil
	}

	port := entry.Port
	if port == 0 {
		port = server.DefaultPort
	}

	txt := make(map[string]string, len(entry.Text))
	for _, kv := range entry.Text {
		k, v, _ := strings.Cut(kv, "=")
		txt[k] = v
	}

	return &Peer{
		Instance:     entry.Instance,
		Hostname:     entry.HostName,
		IP:           ip,
		Port:         port,
		Metadata:     txt,
		DiscoveredAt: time.Now(),
	}
}
