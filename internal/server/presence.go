package server

import (
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/muurk/btscout/internal/bt"
	"github.com/muurk/btscout/internal/discovery"
)

// presence rate limits repeat sightings per device. The first sighting of a
// device in a session and any update that changes more than RSSI always
// pass.
type presence struct {
	limit rate.Limit
	burst int

	mu       sync.Mutex
	session  map[bt.Address]string
	limiters map[bt.Address]*rate.Limiter
}

// newPresence allows perSecond repeat sightings per device. perSecond <= 0
// disables throttling.
func newPresence(perSecond float64, burst int) *presence {
	if burst < 1 {
		burst = 1
	}
	return &presence{
		limit:    rate.Limit(perSecond),
		burst:    burst,
		session:  make(map[bt.Address]string),
		limiters: make(map[bt.Address]*rate.Limiter),
	}
}

func (p *presence) allow(ev discovery.Event, now time.Time) bool {
	if p.limit <= 0 {
		return true
	}
	addr := ev.Device.Address

	p.mu.Lock()
	defer p.mu.Unlock()
	switch ev.Type {
	case discovery.DeviceDiscovered:
		if p.session[addr] != ev.Session {
			p.session[addr] = ev.Session
			p.limiter(addr).AllowN(now, 1)
			return true
		}
	case discovery.DeviceUpdated:
		if ev.Fields&^bt.FieldRSSI != 0 {
			return true
		}
	default:
		return true
	}
	return p.limiter(addr).AllowN(now, 1)
}

func (p *presence) limiter(addr bt.Address) *rate.Limiter {
	l, ok := p.limiters[addr]
	if !ok {
		l = rate.NewLimiter(p.limit, p.burst)
		p.limiters[addr] = l
	}
	return l
}
