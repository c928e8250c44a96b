package bluez

import (
	"strings"
	"time"

	"github.com/godbus/dbus/v5"

	"github.com/muurk/btscout/internal/bt"
)

// Options selects and tunes the BlueZ adapter.
type Options struct {
	// Adapter is an interface name such as "hci1" or an adapter address.
	// Empty picks the first adapter bluetoothd reports.
	Adapter string
	// InquiryDuration bounds a classic scan. Zero means 10.24s.
	InquiryDuration time.Duration
	// ResolveTimeout bounds a full service query. Zero means 30s.
	ResolveTimeout time.Duration
	// PollInterval is how often ServicesResolved is checked. Zero means 250ms.
	PollInterval time.Duration
}

func (o Options) withDefaults() Options {
	if o.InquiryDuration <= 0 {
		o.InquiryDuration = 10240 * time.Millisecond
	}
	if o.ResolveTimeout <= 0 {
		o.ResolveTimeout = 30 * time.Second
	}
	if o.PollInterval <= 0 {
		o.PollInterval = 250 * time.Millisecond
	}
	return o
}

// pickAdapter finds the Adapter1 object matching want, or the
// lexically first one when want is empty.
func pickAdapter(objs managedObjects, want string) (dbus.ObjectPath, map[string]dbus.Variant, bool) {
	var (
		best  dbus.ObjectPath
		props map[string]dbus.Variant
	)
	for path, ifaces := range objs {
		ap, ok := ifaces[adapterIface]
		if !ok {
			continue
		}
		if want != "" && !adapterMatches(path, deviceProps(ap), want) {
			continue
		}
		if best == "" || path < best {
			best, props = path, ap
		}
	}
	return best, props, best != ""
}

func adapterMatches(path dbus.ObjectPath, props deviceProps, want string) bool {
	if strings.HasSuffix(string(path), "/"+want) {
		return true
	}
	wantAddr, err := bt.ParseAddress(want)
	if err != nil {
		return false
	}
	raw, _ := props.str("Address")
	addr, err := bt.ParseAddress(raw)
	return err == nil && addr == wantAddr
}

func adapterInfo(props map[string]dbus.Variant) bt.AdapterInfo {
	p := deviceProps(props)
	info := bt.AdapterInfo{Valid: true, Powered: p.boolean("Powered")}
	if raw, ok := p.str("Address"); ok {
		info.Address, _ = bt.ParseAddress(raw)
	}
	if name, ok := p.str("Alias"); ok {
		info.Name = name
	} else {
		info.Name, _ = p.str("Name")
	}
	return info
}
