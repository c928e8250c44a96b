package server

import (
	"encoding/json"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/muurk/btscout/internal/discovery"
	"github.com/muurk/btscout/internal/logging"
)

// clientBuffer is the number of messages a client may fall behind before
// it is disconnected.
const clientBuffer = 256

// Hub fans discovery events out to connected clients.
type Hub struct {
	presence *presence
	now      func() time.Time

	mu      sync.Mutex
	clients map[*client]struct{}
}

func NewHub(presenceRate float64, presenceBurst int) *Hub {
	return &Hub{
		presence: newPresence(presenceRate, presenceBurst),
		now:      time.Now,
		clients:  make(map[*client]struct{}),
	}
}

// Publish sends ev to every client. Slow clients are dropped rather than
// allowed to stall discovery.
func (h *Hub) Publish(ev discovery.Event) {
	now := h.now()
	if !h.presence.allow(ev, now) {
		return
	}
	data, err := json.Marshal(NewMessage(ev, now))
	if err != nil {
		logging.Error("Failed to encode event", zap.Stringer("type", ev.Type), zap.Error(err))
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		select {
		case c.send <- data:
		default:
			logging.Warn("Dropping slow client", zap.String("remote_addr", c.remote))
			delete(h.clients, c)
			close(c.send)
		}
	}
}

// Clients returns the number of connected clients.
func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

func (h *Hub) add(c *client) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
	logging.LogClientEvent(c.remote, "subscribed")
}

func (h *Hub) remove(c *client) {
	h.mu.Lock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
	h.mu.Unlock()
	logging.LogClientEvent(c.remote, "unsubscribed")
}

// closeAll disconnects every client.
func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		delete(h.clients, c)
		close(c.send)
	}
}
