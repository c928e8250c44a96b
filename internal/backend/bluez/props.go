package bluez

import (
	"strings"

	"github.com/godbus/dbus/v5"

	"github.com/muurk/btscout/internal/bt"
)

const (
	bluezService    = "org.bluez"
	adapterIface    = "org.bluez.Adapter1"
	deviceIface     = "org.bluez.Device1"
	gattServiceIfc  = "org.bluez.GattService1"
	objManagerIface = "org.freedesktop.DBus.ObjectManager"
	propsIface      = "org.freedesktop.DBus.Properties"
)

type managedObjects map[dbus.ObjectPath]map[string]map[string]dbus.Variant

// deviceProps is the last known Device1 property set of one object path.
type deviceProps map[string]dbus.Variant

// merge applies a PropertiesChanged update.
func (p deviceProps) merge(changed map[string]dbus.Variant, invalidated []string) {
	for k, v := range changed {
		p[k] = v
	}
	for _, k := range invalidated {
		delete(p, k)
	}
}

// record converts Device1 properties into a DeviceRecord. fallback is used
// when nothing in the properties tells which radio saw the device.
func (p deviceProps) record(path dbus.ObjectPath, fallback bt.CoreConfiguration) (bt.DeviceRecord, bool) {
	raw, _ := p.str("Address")
	if raw == "" {
		raw = macFromPath(path)
	}
	addr, err := bt.ParseAddress(raw)
	if err != nil {
		return bt.DeviceRecord{}, false
	}

	d := bt.DeviceRecord{Address: addr}
	if name, ok := p.str("Name"); ok {
		d.Name = name
	} else if alias, ok := p.str("Alias"); ok && !looksLikeAddress(alias) {
		d.Name = alias
	}
	if v, ok := p["Class"]; ok {
		if class, ok := v.Value().(uint32); ok {
			d.Class = bt.DeviceClass(class)
		}
	}
	if v, ok := p["RSSI"]; ok {
		if rssi, ok := v.Value().(int16); ok {
			d.RSSI = rssi
			d.HasRSSI = true
		}
	}
	if v, ok := p["ManufacturerData"]; ok {
		if data, ok := v.Value().(map[uint16]dbus.Variant); ok {
			m := make(map[uint16][]byte, len(data))
			for id, blob := range data {
				if b, ok := blob.Value().([]byte); ok {
					m[id] = b
				}
			}
			d.MergeManufacturerData(m)
		}
	}
	if v, ok := p["ServiceData"]; ok {
		if data, ok := v.Value().(map[string]dbus.Variant); ok {
			m := make(map[bt.UUID][]byte, len(data))
			for key, blob := range data {
				u, err := bt.ParseUUID(key)
				if err != nil {
					continue
				}
				if b, ok := blob.Value().([]byte); ok {
					m[u] = b
				}
			}
			d.MergeServiceData(m)
		}
	}
	d.AddServiceUUIDs(p.uuids()...)
	d.CoreConfigurations = p.core(fallback)
	return d, true
}

func (p deviceProps) core(fallback bt.CoreConfiguration) bt.CoreConfiguration {
	if t, ok := p.str("AddressType"); ok && t == "random" {
		return bt.CoreLowEnergy
	}
	if _, ok := p["Class"]; ok {
		return bt.CoreClassic
	}
	return fallback
}

func (p deviceProps) uuids() []bt.UUID {
	v, ok := p["UUIDs"]
	if !ok {
		return nil
	}
	list, _ := v.Value().([]string)
	out := make([]bt.UUID, 0, len(list))
	for _, s := range list {
		if u, err := bt.ParseUUID(s); err == nil {
			out = append(out, u)
		}
	}
	return out
}

func (p deviceProps) str(key string) (string, bool) {
	v, ok := p[key]
	if !ok {
		return "", false
	}
	s, ok := v.Value().(string)
	return s, ok && s != ""
}

func (p deviceProps) boolean(key string) bool {
	v, ok := p[key]
	if !ok {
		return false
	}
	b, _ := v.Value().(bool)
	return b
}

// macFromPath extracts the address from .../dev_XX_XX_XX_XX_XX_XX.
func macFromPath(p dbus.ObjectPath) string {
	s := string(p)
	idx := strings.LastIndex(s, "/dev_")
	if idx < 0 {
		return ""
	}
	mac := s[idx+5:]
	if slash := strings.IndexByte(mac, '/'); slash >= 0 {
		mac = mac[:slash]
	}
	return strings.ReplaceAll(mac, "_", ":")
}

// devicePath returns the Device1 path of addr under adapter.
func devicePath(adapter dbus.ObjectPath, addr bt.Address) dbus.ObjectPath {
	return dbus.ObjectPath(string(adapter) + "/dev_" + strings.ReplaceAll(addr.String(), ":", "_"))
}

// BlueZ sets Alias to the dashed address when a device has no name.
func looksLikeAddress(s string) bool {
	_, err := bt.ParseAddress(s)
	return err == nil
}

// gattServices lists the primary GATT services BlueZ resolved below dev.
func gattServices(objs managedObjects, dev dbus.ObjectPath) []bt.UUID {
	prefix := string(dev) + "/"
	var out []bt.UUID
	for path, ifaces := range objs {
		props, ok := ifaces[gattServiceIfc]
		if !ok || !strings.HasPrefix(string(path), prefix) {
			continue
		}
		p := deviceProps(props)
		if !p.boolean("Primary") {
			continue
		}
		raw, _ := p.str("UUID")
		if u, err := bt.ParseUUID(raw); err == nil && !bt.ContainsUUID(out, u) {
			out = append(out, u)
		}
	}
	return out
}
