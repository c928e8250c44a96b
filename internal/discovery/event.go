package discovery

import (
	"fmt"

	"github.com/muurk/btscout/internal/bt"
)

// EventType identifies what a session is reporting.
type EventType int

const (
	DeviceDiscovered EventType = iota
	DeviceUpdated
	ServiceDiscovered
	Finished
	Canceled
	ErrorOccurred
)

func (t EventType) String() string {
	switch t {
	case DeviceDiscovered:
		return "device_discovered"
	case DeviceUpdated:
		return "device_updated"
	case ServiceDiscovered:
		return "service_discovered"
	case Finished:
		return "finished"
	case Canceled:
		return "canceled"
	case ErrorOccurred:
		return "error"
	default:
		return fmt.Sprintf("EventType(%d)", int(t))
	}
}

// Terminal reports whether t ends a session run.
func (t EventType) Terminal() bool {
	return t == Finished || t == Canceled
}

// Scope names the session an event came from.
type Scope int

const (
	ScopeDevices Scope = iota
	ScopeServices
)

func (s Scope) String() string {
	if s == ScopeServices {
		return "services"
	}
	return "devices"
}

// Event is emitted by a session. Device is set for device events, Service for
// ServiceDiscovered and Err for ErrorOccurred. Session is the run id of the
// session that produced it.
type Event struct {
	Type    EventType
	Scope   Scope
	Session string
	Device  bt.DeviceRecord
	Fields  bt.UpdatedFields
	Service bt.ServiceRecord
	Err     error
}

// Handler receives session events on the session goroutine.
type Handler func(Event)
